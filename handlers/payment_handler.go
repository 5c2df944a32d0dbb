package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/Dosada05/tournify/services"
)

// PaymentWebhookHeader carries the shared secret of gateway callbacks.
const PaymentWebhookHeader = "X-Webhook-Secret"

type PaymentHandler struct {
	paymentService services.PaymentService
	webhookSecret  []byte
}

func NewPaymentHandler(ps services.PaymentService, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{
		paymentService: ps,
		webhookSecret:  []byte(webhookSecret),
	}
}

// InitiateHandler обрабатывает POST /tournaments/{tournamentID}/payments
func (h *PaymentHandler) InitiateHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.InitiatePaymentInput
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	payment, err := h.paymentService.InitiatePayment(r.Context(), currentUserID, tournamentID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"payment": payment}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CallbackHandler обрабатывает POST /payments/callback от платежного шлюза.
func (h *PaymentHandler) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if len(h.webhookSecret) == 0 {
		notFoundResponse(w, r, "")
		return
	}
	provided := []byte(r.Header.Get(PaymentWebhookHeader))
	if subtle.ConstantTimeCompare(provided, h.webhookSecret) != 1 {
		unauthorizedResponse(w, r, "invalid webhook secret")
		return
	}

	var input services.ConfirmInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.paymentService.ConfirmPayment(r.Context(), input)
	if err != nil {
		// Платеж уже зафиксирован, даже если вступление отклонено.
		if result != nil && !errors.Is(err, services.ErrPaymentAlreadySettled) {
			status := http.StatusConflict
			if errors.Is(err, services.ErrForbiddenOperation) || errors.Is(err, services.ErrSelfJoinByHost) {
				status = http.StatusForbidden
			}
			_ = writeJSON(w, status, jsonResponse{"payment": result.Payment, "error": err.Error()}, nil)
			return
		}
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"payment": result.Payment, "admission": result.Admission}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
