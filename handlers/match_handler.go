package handlers

import (
	"net/http"

	"github.com/Dosada05/tournify/services"
)

type MatchHandler struct {
	bracketService services.BracketService
}

func NewMatchHandler(bs services.BracketService) *MatchHandler {
	return &MatchHandler{bracketService: bs}
}

// SubmitResultHandler обрабатывает PUT /matches/{matchID}/result
func (h *MatchHandler) SubmitResultHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.ResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	outcome, err := h.bracketService.SubmitResult(r.Context(), currentUserID, matchID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": outcome}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
