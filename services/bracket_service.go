package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/tournify/brackets"
	"github.com/Dosada05/tournify/models"
	"github.com/Dosada05/tournify/repositories"
	"github.com/Dosada05/tournify/storage"
)

const archiveTimeout = 30 * time.Second

// ResultInput carries either a winner or a draw flag, never both.
type ResultInput struct {
	WinnerID *int `json:"winner_id,omitempty"`
	IsDraw   bool `json:"is_draw"`
}

type ResultOutcome struct {
	Match      *models.Match          `json:"match"`
	Changed    bool                   `json:"changed"`
	Propagated []*models.Match        `json:"propagated,omitempty"`
	NewMatches []*models.Match        `json:"new_matches,omitempty"`
	State      string                 `json:"state,omitempty"`
	ChampionID *int                   `json:"champion_id,omitempty"`
	Standings  []*models.StandingsRow `json:"standings,omitempty"`
}

type AdvanceOutcome struct {
	State      string          `json:"state"`
	Round      int             `json:"round"`
	NewMatches []*models.Match `json:"new_matches"`
	ChampionID *int            `json:"champion_id,omitempty"`
}

type BracketService interface {
	SubmitResult(ctx context.Context, actorID, matchID int, input ResultInput) (*ResultOutcome, error)
	AdvanceRound(ctx context.Context, actorID, tournamentID int) (*AdvanceOutcome, error)
	GetBracket(ctx context.Context, tournamentID int) (*brackets.BracketView, error)
	GetStandings(ctx context.Context, tournamentID int) ([]*models.StandingsRow, error)
	RecomputeStandings(ctx context.Context, actorID, tournamentID int) ([]*models.StandingsRow, error)
}

type bracketService struct {
	tx              repositories.Transactor
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	standingRepo    repositories.StandingRepository
	rng             brackets.RandomSource
	hub             Broadcaster
	archiver        storage.BracketArchiver
	logger          *slog.Logger
}

func NewBracketService(
	tx repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	standingRepo repositories.StandingRepository,
	rng brackets.RandomSource,
	hub Broadcaster,
	archiver storage.BracketArchiver,
	logger *slog.Logger,
) BracketService {
	if archiver == nil {
		archiver = storage.NewBracketArchiver(nil)
	}
	return &bracketService{
		tx:              tx,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		standingRepo:    standingRepo,
		rng:             rng,
		hub:             hub,
		archiver:        archiver,
		logger:          logger,
	}
}

func validateResultInput(t *models.Tournament, m *models.Match, input ResultInput) error {
	if input.WinnerID == nil && !input.IsDraw {
		return ErrResultRequired
	}
	if input.WinnerID != nil && input.IsDraw {
		return ErrResultConflict
	}
	if input.IsDraw && t.Format == models.FormatKnockout {
		return ErrDrawNotAllowed
	}
	if m.Participant1ID == nil || m.Participant2ID == nil {
		return ErrMatchNotPlayable
	}
	if input.WinnerID != nil && !m.HasParticipant(*input.WinnerID) {
		return ErrWinnerNotInMatch
	}
	return nil
}

func sameOutcome(m *models.Match, input ResultInput) bool {
	if m.IsDraw != input.IsDraw {
		return false
	}
	if m.WinnerID == nil || input.WinnerID == nil {
		return m.WinnerID == nil && input.WinnerID == nil
	}
	return *m.WinnerID == *input.WinnerID
}

// SubmitResult records a match outcome. Everything it implies (propagation of
// a corrected knockout result, the next round or the champion, the league
// table) is written in the same transaction that locked the tournament.
func (s *bracketService) SubmitResult(ctx context.Context, actorID, matchID int, input ResultInput) (*ResultOutcome, error) {
	var (
		outcome    = &ResultOutcome{}
		tournament *models.Tournament
		newChamp   bool
		reopened   bool
	)

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetByID(ctx, exec, matchID)
		if err != nil {
			return handleRepositoryError(err)
		}
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, match.TournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		tournament = t
		if t.CreatedBy != actorID {
			return ErrForbiddenOperation
		}
		if t.IsFinished {
			return ErrTournamentFinished
		}

		// Повторное чтение под блокировкой турнира.
		matches, err := s.matchRepo.ListByTournament(ctx, exec, t.ID)
		if err != nil {
			return err
		}
		arena := brackets.NewArena(matches)
		m, ok := arena.Match(matchID)
		if !ok {
			return ErrMatchNotFound
		}
		if err := validateResultInput(t, m, input); err != nil {
			return err
		}

		outcome.Match = m
		if m.IsDecided() && sameOutcome(m, input) {
			return nil
		}

		m.WinnerID = copyInt(input.WinnerID)
		m.IsDraw = input.IsDraw
		if err := s.matchRepo.UpdateResult(ctx, exec, m.ID, m.WinnerID, m.IsDraw); err != nil {
			return handleRepositoryError(err)
		}
		outcome.Changed = true

		if t.Format == models.FormatLeague {
			rows, err := s.recomputeStandingsTx(ctx, exec, t, matches)
			if err != nil {
				return err
			}
			outcome.Standings = rows
			return nil
		}

		// Дочерние матчи существуют после коррекции: их слоты надо заполнить
		// заново, даже если этот матч был очищен и решается впервые.
		if len(arena.Children(m.ID)) > 0 {
			touched, err := brackets.Propagate(arena, m.ID)
			if err != nil {
				return err
			}
			for _, child := range touched {
				if err := s.matchRepo.UpdateSlotsAndResult(ctx, exec, child); err != nil {
					return handleRepositoryError(err)
				}
			}
			outcome.Propagated = touched
		}

		adv, err := s.advanceTx(ctx, exec, t, matches)
		if err != nil {
			return err
		}
		outcome.State = adv.State
		outcome.NewMatches = adv.NewMatches
		outcome.ChampionID = adv.ChampionID
		newChamp = adv.championChanged && adv.ChampionID != nil
		reopened = adv.championCleared
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome.Changed {
		s.logger.Info("match result recorded",
			slog.Int("tournament_id", tournament.ID),
			slog.Int("match_id", matchID),
			slog.Int("propagated", len(outcome.Propagated)),
			slog.Int("new_matches", len(outcome.NewMatches)))
		s.publishResult(ctx, tournament, outcome, newChamp)
	}
	if reopened {
		s.discardArchive(ctx, tournament.ID)
	}
	return outcome, nil
}

func (s *bracketService) publishResult(ctx context.Context, t *models.Tournament, outcome *ResultOutcome, newChampion bool) {
	notify(s.hub, t.ID, brackets.MessageMatchUpdated, outcome.Match)
	if t.Format == models.FormatLeague {
		notify(s.hub, t.ID, brackets.MessageStandingsUpdated, outcome.Standings)
		return
	}
	notify(s.hub, t.ID, brackets.MessageBracketUpdated, map[string]interface{}{
		"tournament_id": t.ID,
		"propagated":    outcome.Propagated,
		"new_matches":   outcome.NewMatches,
		"state":         outcome.State,
	})
	if newChampion {
		notify(s.hub, t.ID, brackets.MessageTournamentFinished, map[string]interface{}{
			"tournament_id": t.ID,
			"champion_id":   outcome.ChampionID,
		})
		s.archiveBracket(ctx, t.ID)
	}
}

// archiveBracket stores the decided bracket. Failures are logged only.
func (s *bracketService) archiveBracket(ctx context.Context, tournamentID int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	view, err := s.GetBracket(ctx, tournamentID)
	if err != nil {
		s.logger.Error("failed to build bracket for archive", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return
	}
	res, err := s.archiver.ArchiveBracket(ctx, tournamentID, view)
	if err != nil {
		s.logger.Error("failed to archive bracket", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return
	}
	if res != nil {
		s.logger.Info("bracket archived", slog.Int("tournament_id", tournamentID), slog.String("location", res.Location))
	}
}

// discardArchive drops the snapshot of a bracket reopened by a correction.
func (s *bracketService) discardArchive(ctx context.Context, tournamentID int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	if err := s.archiver.DiscardBracket(ctx, tournamentID); err != nil {
		s.logger.Error("failed to discard bracket archive", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return
	}
	s.logger.Info("stale bracket archive discarded", slog.Int("tournament_id", tournamentID))
}

type advanceResult struct {
	AdvanceOutcome
	championChanged bool
	championCleared bool
}

// advanceTx applies PlanAdvancement to the current match set: it persists a
// planned round, records the champion, or clears a champion whose final was
// reopened by a correction.
func (s *bracketService) advanceTx(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, matches []*models.Match) (*advanceResult, error) {
	adv, err := brackets.PlanAdvancement(matches, s.rng)
	if err != nil {
		if errors.Is(err, brackets.ErrKnockoutDraw) {
			return nil, fmt.Errorf("tournament %d: %w", t.ID, err)
		}
		return nil, err
	}

	res := &advanceResult{AdvanceOutcome: AdvanceOutcome{
		State:      adv.State.String(),
		Round:      adv.Round,
		NewMatches: []*models.Match{},
	}}

	switch adv.State {
	case brackets.RoundComplete:
		for _, pm := range adv.NewMatches {
			p1 := pm.Participant1ID
			m := &models.Match{
				TournamentID:   t.ID,
				Participant1ID: &p1,
				Participant2ID: pm.Participant2ID,
				RoundNumber:    pm.Round,
				Stage:          pm.Stage,
				WinnerID:       pm.WinnerID,
				ParentMatch1ID: pm.ParentMatch1ID,
				ParentMatch2ID: pm.ParentMatch2ID,
			}
			if err := s.matchRepo.Create(ctx, exec, m); err != nil {
				return nil, err
			}
			res.NewMatches = append(res.NewMatches, m)
		}
		for _, id := range adv.ByeParticipants {
			s.logger.Warn("bye assigned in knockout advancement",
				slog.Int("tournament_id", t.ID),
				slog.Int("participant_id", id),
				slog.Int("round", adv.Round+1))
		}
		if t.ChampionParticipantID != nil {
			if err := s.clearChampion(ctx, exec, t); err != nil {
				return nil, err
			}
			res.championCleared = true
		}
	case brackets.ChampionDetermined:
		res.ChampionID = adv.ChampionID
		if t.ChampionParticipantID == nil || *t.ChampionParticipantID != *adv.ChampionID {
			if err := s.tournamentRepo.UpdateChampion(ctx, exec, t.ID, adv.ChampionID); err != nil {
				return nil, handleRepositoryError(err)
			}
			t.ChampionParticipantID = copyInt(adv.ChampionID)
			res.championChanged = true
		}
	case brackets.AwaitingRound:
		if t.ChampionParticipantID != nil {
			if err := s.clearChampion(ctx, exec, t); err != nil {
				return nil, err
			}
			res.championCleared = true
		}
	}
	return res, nil
}

func (s *bracketService) clearChampion(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	if err := s.tournamentRepo.UpdateChampion(ctx, exec, t.ID, nil); err != nil {
		return handleRepositoryError(err)
	}
	s.logger.Info("champion cleared after correction", slog.Int("tournament_id", t.ID))
	t.ChampionParticipantID = nil
	return nil
}

// AdvanceRound is the explicit host trigger; it is a no-op while the latest
// round is still open.
func (s *bracketService) AdvanceRound(ctx context.Context, actorID, tournamentID int) (*AdvanceOutcome, error) {
	var (
		res *advanceResult
		t   *models.Tournament
	)
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		t, err = s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if t.CreatedBy != actorID {
			return ErrForbiddenOperation
		}
		if t.Format != models.FormatKnockout {
			return ErrNotKnockout
		}
		matches, err := s.matchRepo.ListByTournament(ctx, exec, t.ID)
		if err != nil {
			return err
		}
		res, err = s.advanceTx(ctx, exec, t, matches)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(res.NewMatches) > 0 {
		notify(s.hub, t.ID, brackets.MessageBracketUpdated, map[string]interface{}{
			"tournament_id": t.ID,
			"new_matches":   res.NewMatches,
			"state":         res.State,
		})
	}
	if res.championChanged {
		notify(s.hub, t.ID, brackets.MessageTournamentFinished, map[string]interface{}{
			"tournament_id": t.ID,
			"champion_id":   res.ChampionID,
		})
		s.archiveBracket(ctx, t.ID)
	}
	if res.championCleared {
		s.discardArchive(ctx, t.ID)
	}
	return &res.AdvanceOutcome, nil
}

// GetBracket loads the tournament, roster and matches concurrently and builds
// the rendering read model.
func (s *bracketService) GetBracket(ctx context.Context, tournamentID int) (*brackets.BracketView, error) {
	var (
		t            *models.Tournament
		participants []*models.Participant
		matches      []*models.Match
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		t, err = s.tournamentRepo.GetByID(gCtx, nil, tournamentID)
		return handleRepositoryError(err)
	})
	g.Go(func() error {
		var err error
		participants, err = s.participantRepo.ListByTournament(gCtx, nil, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = s.matchRepo.ListByTournament(gCtx, nil, tournamentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return brackets.BuildBracketView(t, participants, matches), nil
}

func (s *bracketService) GetStandings(ctx context.Context, tournamentID int) ([]*models.StandingsRow, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if t.Format != models.FormatLeague {
		return nil, ErrNotLeague
	}

	var (
		rows         []*models.StandingsRow
		participants []*models.Participant
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.standingRepo.ListByTournament(gCtx, nil, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		participants, err = s.participantRepo.ListByTournament(gCtx, nil, tournamentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	attachParticipants(rows, participants)
	return rows, nil
}

func (s *bracketService) RecomputeStandings(ctx context.Context, actorID, tournamentID int) ([]*models.StandingsRow, error) {
	var rows []*models.StandingsRow
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if t.CreatedBy != actorID {
			return ErrForbiddenOperation
		}
		if t.Format != models.FormatLeague {
			return ErrNotLeague
		}
		matches, err := s.matchRepo.ListByTournament(ctx, exec, t.ID)
		if err != nil {
			return err
		}
		rows, err = s.recomputeStandingsTx(ctx, exec, t, matches)
		return err
	})
	if err != nil {
		return nil, err
	}
	notify(s.hub, tournamentID, brackets.MessageStandingsUpdated, rows)
	return rows, nil
}

// recomputeStandingsTx rebuilds the whole league table from matches: reset
// the stored rows, then upsert every computed row.
func (s *bracketService) recomputeStandingsTx(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, matches []*models.Match) ([]*models.StandingsRow, error) {
	existing, err := s.standingRepo.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return nil, err
	}
	if err := s.standingRepo.ResetByTournament(ctx, exec, t.ID); err != nil {
		return nil, err
	}
	rows := brackets.ComputeStandings(t, existing, matches)
	for _, row := range rows {
		if err := s.standingRepo.Upsert(ctx, exec, row); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func attachParticipants(rows []*models.StandingsRow, participants []*models.Participant) {
	byID := make(map[int]*models.Participant, len(participants))
	for _, p := range participants {
		byID[p.ID] = p
	}
	for _, r := range rows {
		r.Participant = byID[r.ParticipantID]
	}
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
