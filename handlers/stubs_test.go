package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/tournify/brackets"
	"github.com/Dosada05/tournify/middleware"
	"github.com/Dosada05/tournify/models"
	"github.com/Dosada05/tournify/services"
)

// Встроенный интерфейс паникует на неожиданных вызовах.
type stubTournamentService struct {
	services.TournamentService
	get  func(ctx context.Context, id int) (*models.Tournament, error)
	list func(ctx context.Context, viewerID *int, input services.ListTournamentsInput) ([]*models.Tournament, error)
}

func (s *stubTournamentService) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	return s.get(ctx, id)
}

func (s *stubTournamentService) ListTournaments(ctx context.Context, viewerID *int, input services.ListTournamentsInput) ([]*models.Tournament, error) {
	return s.list(ctx, viewerID, input)
}

type stubBracketService struct {
	services.BracketService
	submit    func(ctx context.Context, actorID, matchID int, input services.ResultInput) (*services.ResultOutcome, error)
	bracket   func(ctx context.Context, tournamentID int) (*brackets.BracketView, error)
	standings func(ctx context.Context, tournamentID int) ([]*models.StandingsRow, error)
}

func (s *stubBracketService) SubmitResult(ctx context.Context, actorID, matchID int, input services.ResultInput) (*services.ResultOutcome, error) {
	return s.submit(ctx, actorID, matchID, input)
}

func (s *stubBracketService) GetBracket(ctx context.Context, tournamentID int) (*brackets.BracketView, error) {
	return s.bracket(ctx, tournamentID)
}

func (s *stubBracketService) GetStandings(ctx context.Context, tournamentID int) ([]*models.StandingsRow, error) {
	return s.standings(ctx, tournamentID)
}

type stubParticipantService struct {
	services.ParticipantService
	admit func(ctx context.Context, tournamentID int, input services.AdmitInput) (*services.AdmitResult, error)
}

func (s *stubParticipantService) Admit(ctx context.Context, tournamentID int, input services.AdmitInput) (*services.AdmitResult, error) {
	return s.admit(ctx, tournamentID, input)
}

type stubPaymentService struct {
	services.PaymentService
	initiate func(ctx context.Context, userID, tournamentID int, input services.InitiatePaymentInput) (*models.Payment, error)
	confirm  func(ctx context.Context, input services.ConfirmInput) (*services.ConfirmResult, error)
}

func (s *stubPaymentService) InitiatePayment(ctx context.Context, userID, tournamentID int, input services.InitiatePaymentInput) (*models.Payment, error) {
	return s.initiate(ctx, userID, tournamentID, input)
}

func (s *stubPaymentService) ConfirmPayment(ctx context.Context, input services.ConfirmInput) (*services.ConfirmResult, error) {
	return s.confirm(ctx, input)
}

// asUser подставляет аутентифицированного пользователя без JWT.
func asUser(userID int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), userID)))
		})
	}
}

func serve(router chi.Router, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
