package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dosada05/tournify/models"
	"github.com/Dosada05/tournify/repositories"
)

type InitiatePaymentInput struct {
	// Code is required for private tournaments.
	Code string `json:"code,omitempty"`
}

// ConfirmInput is the gateway callback payload.
type ConfirmInput struct {
	Reference   string  `json:"reference"`
	Success     bool    `json:"success"`
	DisplayName string  `json:"name"`
	TeamName    *string `json:"team_name,omitempty"`
}

type ConfirmResult struct {
	Payment   *models.Payment `json:"payment"`
	Admission *AdmitResult    `json:"admission,omitempty"`
}

type PaymentService interface {
	InitiatePayment(ctx context.Context, userID, tournamentID int, input InitiatePaymentInput) (*models.Payment, error)
	ConfirmPayment(ctx context.Context, input ConfirmInput) (*ConfirmResult, error)
}

type paymentService struct {
	tx             repositories.Transactor
	tournamentRepo repositories.TournamentRepository
	membershipRepo repositories.MembershipRepository
	paymentRepo    repositories.PaymentRepository
	participants   ParticipantService
	logger         *slog.Logger
	now            func() time.Time
}

func NewPaymentService(
	tx repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	membershipRepo repositories.MembershipRepository,
	paymentRepo repositories.PaymentRepository,
	participants ParticipantService,
	logger *slog.Logger,
) PaymentService {
	return &paymentService{
		tx:             tx,
		tournamentRepo: tournamentRepo,
		membershipRepo: membershipRepo,
		paymentRepo:    paymentRepo,
		participants:   participants,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *paymentService) InitiatePayment(ctx context.Context, userID, tournamentID int, input InitiatePaymentInput) (*models.Payment, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if !t.IsPaid {
		return nil, ErrNotPaidTournament
	}
	if !t.IsActive || t.IsFinished {
		return nil, ErrTournamentInactive
	}
	if t.CreatedBy == userID {
		return nil, ErrSelfJoinByHost
	}
	if !t.IsPublic {
		code, err := NormalizeTournamentCode(input.Code)
		if err != nil || code != t.Code {
			return nil, ErrTournamentPrivate
		}
	}
	member, err := s.membershipRepo.Exists(ctx, nil, t.ID, userID)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, ErrAlreadyMember
	}

	payment := &models.Payment{
		TournamentID: t.ID,
		UserID:       userID,
		AmountCents:  t.PriceCents,
		Status:       models.PaymentPending,
		Reference:    uuid.NewString(),
	}
	if err := s.paymentRepo.Create(ctx, nil, payment); err != nil {
		return nil, handleRepositoryError(err)
	}
	s.logger.Info("payment initiated",
		slog.Int("tournament_id", t.ID),
		slog.Int("user_id", userID),
		slog.String("reference", payment.Reference))
	return payment, nil
}

// ConfirmPayment settles a pending payment. A successful payment is followed
// by the join itself; an admission failure at that point leaves the payment
// completed so it can be reused or refunded.
func (s *paymentService) ConfirmPayment(ctx context.Context, input ConfirmInput) (*ConfirmResult, error) {
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return nil, ErrInvalidPaymentCallback
	}
	if input.Success && strings.TrimSpace(input.DisplayName) == "" {
		return nil, ErrParticipantNameRequired
	}

	var payment *models.Payment
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		p, err := s.paymentRepo.GetByReference(ctx, exec, reference)
		if err != nil {
			return handleRepositoryError(err)
		}
		if p.Status != models.PaymentPending {
			return ErrPaymentAlreadySettled
		}
		status := models.PaymentFailed
		var completedAt *time.Time
		if input.Success {
			status = models.PaymentCompleted
			now := s.now()
			completedAt = &now
		}
		if err := s.paymentRepo.UpdateStatus(ctx, exec, p.ID, status, completedAt); err != nil {
			return handleRepositoryError(err)
		}
		p.Status = status
		p.CompletedAt = completedAt
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &ConfirmResult{Payment: payment}
	if !input.Success {
		s.logger.Info("payment failed", slog.String("reference", reference), slog.Int("tournament_id", payment.TournamentID))
		return result, nil
	}

	admission, err := s.participants.AdmitPaid(ctx, payment.TournamentID, AdmitInput{
		UserID:      payment.UserID,
		DisplayName: input.DisplayName,
		TeamName:    input.TeamName,
	})
	if err != nil {
		s.logger.Warn("paid admission rejected",
			slog.String("reference", reference),
			slog.Int("tournament_id", payment.TournamentID),
			slog.Int("user_id", payment.UserID),
			slog.Any("error", err))
		return result, err
	}
	result.Admission = admission
	return result, nil
}
