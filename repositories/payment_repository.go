package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/tournify/models"
)

var (
	ErrPaymentNotFound          = errors.New("payment not found")
	ErrPaymentReferenceConflict = errors.New("payment reference conflict")
)

// PaymentRepository хранит записи об оплате участия.
type PaymentRepository interface {
	// Create сохраняет платеж и заполняет ID и CreatedAt.
	Create(ctx context.Context, exec SQLExecutor, payment *models.Payment) error

	// GetByReference ищет платеж по уникальному идентификатору шлюза.
	GetByReference(ctx context.Context, exec SQLExecutor, reference string) (*models.Payment, error)

	// HasCompleted сообщает, есть ли у пользователя завершенная оплата турнира.
	HasCompleted(ctx context.Context, exec SQLExecutor, tournamentID, userID int) (bool, error)

	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.PaymentStatus, completedAt *time.Time) error
}

type postgresPaymentRepository struct {
	db *sql.DB
}

func NewPostgresPaymentRepository(db *sql.DB) PaymentRepository {
	return &postgresPaymentRepository{db: db}
}

func (r *postgresPaymentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPaymentRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Payment) error {
	query := `
		INSERT INTO payments (tournament_id, user_id, amount_cents, status, reference)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		p.TournamentID, p.UserID, p.AmountCents, p.Status, p.Reference,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if code, constraint, ok := pqViolation(err); ok && code == pqUniqueViolation &&
			constraint == "payments_reference_key" {
			return ErrPaymentReferenceConflict
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *postgresPaymentRepository) GetByReference(ctx context.Context, exec SQLExecutor, reference string) (*models.Payment, error) {
	query := `
		SELECT id, tournament_id, user_id, amount_cents, status, reference, created_at, completed_at
		FROM payments
		WHERE reference = $1`

	p := &models.Payment{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, reference).Scan(
		&p.ID, &p.TournamentID, &p.UserID, &p.AmountCents, &p.Status, &p.Reference, &p.CreatedAt, &p.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

func (r *postgresPaymentRepository) HasCompleted(ctx context.Context, exec SQLExecutor, tournamentID, userID int) (bool, error) {
	var exists bool
	err := r.getExecutor(exec).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE tournament_id = $1 AND user_id = $2 AND status = $3)`,
		tournamentID, userID, models.PaymentCompleted).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check payment: %w", err)
	}
	return exists, nil
}

func (r *postgresPaymentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.PaymentStatus, completedAt *time.Time) error {
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE payments SET status = $1, completed_at = $2 WHERE id = $3`, status, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return checkAffectedRows(result, ErrPaymentNotFound)
}
