package handlers

import (
	"net/http"

	"github.com/Dosada05/tournify/models"
	"github.com/Dosada05/tournify/services"
)

type ParticipantHandler struct {
	participantService services.ParticipantService
}

func NewParticipantHandler(ps services.ParticipantService) *ParticipantHandler {
	return &ParticipantHandler{
		participantService: ps,
	}
}

type joinRequest struct {
	Name     string  `json:"name"`
	TeamName *string `json:"team_name,omitempty"`
}

type joinByCodeRequest struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	TeamName *string `json:"team_name,omitempty"`
}

// Join godoc
// @Summary Вступить в публичный турнир
// @Tags participants
// @Accept json
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Success 201 {object} services.AdmitResult
// @Failure 402 {object} map[string]string "Требуется оплата"
// @Failure 403 {object} map[string]string "Хост турнира / приватный турнир"
// @Failure 409 {object} map[string]string "Уже участник / турнир заполнен / регистрация закрыта"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/join [post]
func (h *ParticipantHandler) Join(w http.ResponseWriter, r *http.Request) {
	currentUserID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req joinRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.participantService.Admit(r.Context(), tournamentID, services.AdmitInput{
		UserID:      currentUserID,
		DisplayName: req.Name,
		TeamName:    req.TeamName,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"admission": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// JoinByCode godoc
// @Summary Вступить в турнир по коду приглашения
// @Tags participants
// @Accept json
// @Produce json
// @Success 201 {object} services.AdmitResult
// @Failure 404 {object} map[string]string "Турнир не найден"
// @Security BearerAuth
// @Router /tournaments/join [post]
func (h *ParticipantHandler) JoinByCode(w http.ResponseWriter, r *http.Request) {
	currentUserID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req joinByCodeRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.participantService.JoinByCode(r.Context(), req.Code, services.AdmitInput{
		UserID:      currentUserID,
		DisplayName: req.Name,
		TeamName:    req.TeamName,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"admission": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Leave godoc
// @Summary Покинуть завершенный турнир
// @Tags participants
// @Param tournamentID path int true "Tournament ID"
// @Success 204 "No Content"
// @Failure 409 {object} map[string]string "Турнир еще не завершен"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/leave [post]
func (h *ParticipantHandler) Leave(w http.ResponseWriter, r *http.Request) {
	currentUserID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.participantService.Leave(r.Context(), currentUserID, tournamentID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Remove godoc
// @Summary Удалить участника (только хост)
// @Tags participants
// @Param tournamentID path int true "Tournament ID"
// @Param participantID path int true "Participant ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/participants/{participantID} [delete]
func (h *ParticipantHandler) Remove(w http.ResponseWriter, r *http.Request) {
	currentUserID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	participantID, err := getIDFromURL(r, "participantID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.participantService.RemoveParticipant(r.Context(), currentUserID, tournamentID, participantID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ParticipantHandler) List(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	participants, err := h.participantService.ListParticipants(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if participants == nil {
		participants = []*models.Participant{}
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participants": participants}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
