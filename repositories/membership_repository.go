package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournify/models"
)

var (
	ErrMembershipNotFound = errors.New("membership not found")
	ErrMembershipConflict = errors.New("user is already a member of this tournament")
)

// MembershipRepository links identity accounts to the participant rows they joined as.
// Memberships are removed together with their participant (ON DELETE CASCADE).
type MembershipRepository interface {
	Create(ctx context.Context, exec SQLExecutor, m *models.Membership) error
	Exists(ctx context.Context, exec SQLExecutor, tournamentID, userID int) (bool, error)
	GetByTournamentAndUser(ctx context.Context, exec SQLExecutor, tournamentID, userID int) (*models.Membership, error)
	ListByUser(ctx context.Context, userID int) ([]*models.Membership, error)
}

type postgresMembershipRepository struct {
	db *sql.DB
}

func NewPostgresMembershipRepository(db *sql.DB) MembershipRepository {
	return &postgresMembershipRepository{db: db}
}

func (r *postgresMembershipRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMembershipRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Membership) error {
	query := `
		INSERT INTO tournament_memberships (tournament_id, user_id, participant_id)
		VALUES ($1, $2, $3)
		RETURNING id, joined_at`
	err := r.getExecutor(exec).QueryRowContext(ctx, query, m.TournamentID, m.UserID, m.ParticipantID).
		Scan(&m.ID, &m.JoinedAt)
	if err != nil {
		if code, constraint, ok := pqViolation(err); ok && code == pqUniqueViolation &&
			constraint == "tournament_memberships_tournament_id_user_id_key" {
			return ErrMembershipConflict
		}
		return fmt.Errorf("failed to create tournament membership: %w", err)
	}
	return nil
}

func (r *postgresMembershipRepository) Exists(ctx context.Context, exec SQLExecutor, tournamentID, userID int) (bool, error) {
	var exists bool
	err := r.getExecutor(exec).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tournament_memberships WHERE tournament_id = $1 AND user_id = $2)`,
		tournamentID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

func (r *postgresMembershipRepository) GetByTournamentAndUser(ctx context.Context, exec SQLExecutor, tournamentID, userID int) (*models.Membership, error) {
	query := `
		SELECT id, tournament_id, user_id, participant_id, joined_at
		FROM tournament_memberships
		WHERE tournament_id = $1 AND user_id = $2`
	m := &models.Membership{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID, userID).
		Scan(&m.ID, &m.TournamentID, &m.UserID, &m.ParticipantID, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

func (r *postgresMembershipRepository) ListByUser(ctx context.Context, userID int) ([]*models.Membership, error) {
	query := `
		SELECT id, tournament_id, user_id, participant_id, joined_at
		FROM tournament_memberships
		WHERE user_id = $1
		ORDER BY joined_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships for user %d: %w", userID, err)
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		m := &models.Membership{}
		if err := rows.Scan(&m.ID, &m.TournamentID, &m.UserID, &m.ParticipantID, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}
