package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/tournify/brackets"
	"github.com/Dosada05/tournify/models"
	"github.com/Dosada05/tournify/repositories"
)

// AdmitInput describes the identity asking to join and how it should be listed.
type AdmitInput struct {
	UserID      int     `json:"-"`
	DisplayName string  `json:"name"`
	TeamName    *string `json:"team_name,omitempty"`
}

type AdmitResult struct {
	Participant       *models.Participant `json:"participant"`
	Membership        *models.Membership  `json:"membership"`
	FixturesGenerated bool                `json:"fixtures_generated"`
	Matches           []*models.Match     `json:"matches,omitempty"`
}

type ParticipantService interface {
	// Admit joins a public tournament.
	Admit(ctx context.Context, tournamentID int, input AdmitInput) (*AdmitResult, error)
	// JoinByCode joins any tournament through its invite code.
	JoinByCode(ctx context.Context, code string, input AdmitInput) (*AdmitResult, error)
	// AdmitPaid completes a join whose entry fee was just confirmed.
	AdmitPaid(ctx context.Context, tournamentID int, input AdmitInput) (*AdmitResult, error)
	RemoveParticipant(ctx context.Context, actorID, tournamentID, participantID int) error
	Leave(ctx context.Context, userID, tournamentID int) error
	ListParticipants(ctx context.Context, tournamentID int) ([]*models.Participant, error)
}

type participantService struct {
	tx              repositories.Transactor
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	membershipRepo  repositories.MembershipRepository
	matchRepo       repositories.MatchRepository
	paymentRepo     repositories.PaymentRepository
	fixtures        *fixtureBuilder
	hub             Broadcaster
	logger          *slog.Logger
	now             func() time.Time
}

func NewParticipantService(
	tx repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	membershipRepo repositories.MembershipRepository,
	matchRepo repositories.MatchRepository,
	paymentRepo repositories.PaymentRepository,
	rng brackets.RandomSource,
	hub Broadcaster,
	logger *slog.Logger,
) ParticipantService {
	return &participantService{
		tx:              tx,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		membershipRepo:  membershipRepo,
		matchRepo:       matchRepo,
		paymentRepo:     paymentRepo,
		fixtures: &fixtureBuilder{
			participantRepo: participantRepo,
			matchRepo:       matchRepo,
			rng:             rng,
			logger:          logger,
		},
		hub:    hub,
		logger: logger,
		now:    time.Now,
	}
}

func (s *participantService) Admit(ctx context.Context, tournamentID int, input AdmitInput) (*AdmitResult, error) {
	return s.admit(ctx, tournamentID, input, false)
}

func (s *participantService) JoinByCode(ctx context.Context, code string, input AdmitInput) (*AdmitResult, error) {
	normalized, err := NormalizeTournamentCode(code)
	if err != nil {
		return nil, err
	}
	t, err := s.tournamentRepo.GetByCode(ctx, nil, normalized)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return s.admit(ctx, t.ID, input, true)
}

// Приватный турнир уже проверен по коду при создании платежа.
func (s *participantService) AdmitPaid(ctx context.Context, tournamentID int, input AdmitInput) (*AdmitResult, error) {
	return s.admit(ctx, tournamentID, input, true)
}

func (s *participantService) admit(ctx context.Context, tournamentID int, input AdmitInput, invited bool) (*AdmitResult, error) {
	name := strings.TrimSpace(input.DisplayName)
	if name == "" {
		return nil, ErrParticipantNameRequired
	}

	result := &AdmitResult{}
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		// Блокировка строки турнира сериализует конкурентные вступления.
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if err := s.checkAdmission(ctx, exec, t, input.UserID, invited); err != nil {
			return err
		}

		userID := input.UserID
		p := &models.Participant{
			TournamentID: t.ID,
			Name:         name,
			TeamName:     trimmedOrNil(input.TeamName),
			UserID:       &userID,
		}
		if err := s.participantRepo.Create(ctx, exec, p); err != nil {
			return handleRepositoryError(err)
		}
		m := &models.Membership{TournamentID: t.ID, UserID: userID, ParticipantID: p.ID}
		if err := s.membershipRepo.Create(ctx, exec, m); err != nil {
			return handleRepositoryError(err)
		}

		matches, err := s.fixtures.generateIfFull(ctx, exec, t)
		if err != nil {
			return err
		}
		result.Participant = p
		result.Membership = m
		result.Matches = matches
		result.FixturesGenerated = len(matches) > 0
		return nil
	})
	if err != nil {
		s.logger.Debug("admission rejected",
			slog.Int("tournament_id", tournamentID),
			slog.Int("user_id", input.UserID),
			slog.Any("reason", err))
		return nil, err
	}

	s.logger.Info("participant admitted",
		slog.Int("tournament_id", tournamentID),
		slog.Int("participant_id", result.Participant.ID),
		slog.Int("user_id", input.UserID),
		slog.Bool("fixtures_generated", result.FixturesGenerated))
	if result.FixturesGenerated {
		notify(s.hub, tournamentID, brackets.MessageFixturesGenerated, result.Matches)
	}
	return result, nil
}

// checkAdmission runs the rejection rules in a fixed order. The caller holds
// the tournament row lock.
func (s *participantService) checkAdmission(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, userID int, invited bool) error {
	if !t.IsActive || t.IsFinished {
		return ErrTournamentInactive
	}
	if t.RegistrationClosed(s.now()) {
		return ErrRegistrationClosed
	}
	if !t.IsPublic && !invited {
		return ErrTournamentPrivate
	}
	if t.CreatedBy == userID {
		return ErrSelfJoinByHost
	}
	member, err := s.membershipRepo.Exists(ctx, exec, t.ID, userID)
	if err != nil {
		return err
	}
	if member {
		return ErrAlreadyMember
	}
	count, err := s.participantRepo.CountByTournament(ctx, exec, t.ID)
	if err != nil {
		return err
	}
	if count >= t.Capacity {
		return ErrTournamentFull
	}
	if t.Format == models.FormatKnockout && !brackets.IsPowerOfTwo(t.Capacity) {
		return ErrInvalidKnockoutCapacity
	}
	if t.IsPaid {
		paid, err := s.paymentRepo.HasCompleted(ctx, exec, t.ID, userID)
		if err != nil {
			return err
		}
		if !paid {
			return ErrPaymentRequired
		}
	}
	return nil
}

// RemoveParticipant is the host-approved leave. Once fixtures exist the
// roster is frozen until the tournament is finished.
func (s *participantService) RemoveParticipant(ctx context.Context, actorID, tournamentID, participantID int) error {
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if t.CreatedBy != actorID {
			return ErrForbiddenOperation
		}
		p, err := s.participantRepo.FindByID(ctx, exec, participantID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if p.TournamentID != t.ID {
			return ErrParticipantNotFound
		}
		if !t.IsFinished {
			matchCount, err := s.matchRepo.CountByTournament(ctx, exec, t.ID)
			if err != nil {
				return err
			}
			if matchCount > 0 {
				return ErrFixturesLocked
			}
		}
		return handleRepositoryError(s.participantRepo.Delete(ctx, exec, p.ID))
	})
	if err != nil {
		return err
	}
	s.logger.Info("participant removed by host",
		slog.Int("tournament_id", tournamentID),
		slog.Int("participant_id", participantID))
	return nil
}

// Leave lets a member drop out of a finished tournament.
func (s *participantService) Leave(ctx context.Context, userID, tournamentID int) error {
	return s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		m, err := s.membershipRepo.GetByTournamentAndUser(ctx, exec, tournamentID, userID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if !t.IsFinished {
			return ErrTournamentNotFinished
		}
		return handleRepositoryError(s.participantRepo.Delete(ctx, exec, m.ParticipantID))
	})
}

func (s *participantService) ListParticipants(ctx context.Context, tournamentID int) ([]*models.Participant, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, handleRepositoryError(err)
	}
	return s.participantRepo.ListByTournament(ctx, nil, tournamentID)
}
