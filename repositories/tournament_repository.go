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
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentCodeConflict = errors.New("tournament code already taken")
	ErrTournamentInUse        = errors.New("tournament is in use (participants/matches exist)")
	ErrExecutorRequired       = errors.New("operation requires a transaction executor")
)

type ListTournamentsFilter struct {
	Format     *models.MatchFormat
	Category   *models.Category
	CreatedBy  *int
	PublicOnly bool
	ActiveOnly bool
	Limit      int
	Offset     int
}

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	// GetByIDForUpdate locks the tournament row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	GetByCode(ctx context.Context, exec SQLExecutor, code string) (*models.Tournament, error)
	CodeExists(ctx context.Context, exec SQLExecutor, code string) (bool, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error)
	Update(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	UpdateChampion(ctx context.Context, exec SQLExecutor, tournamentID int, championID *int) error
	Finish(ctx context.Context, exec SQLExecutor, tournamentID int) error
	Delete(ctx context.Context, id int) error
	DeactivateExpired(ctx context.Context, now time.Time) ([]int, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, name, slug, description, category, code, capacity, format,
	is_public, is_paid, price_cents, is_active, is_finished,
	registration_deadline, created_by, champion_participant_id, created_at`

func scanTournament(row rowScanner) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := row.Scan(
		&t.ID, &t.Name, &t.Slug, &t.Description, &t.Category, &t.Code, &t.Capacity, &t.Format,
		&t.IsPublic, &t.IsPaid, &t.PriceCents, &t.IsActive, &t.IsFinished,
		&t.RegistrationDeadline, &t.CreatedBy, &t.ChampionParticipantID, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournaments (
			name, slug, description, category, code, capacity, format,
			is_public, is_paid, price_cents, is_active, is_finished,
			registration_deadline, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		t.Name, t.Slug, t.Description, t.Category, t.Code, t.Capacity, t.Format,
		t.IsPublic, t.IsPaid, t.PriceCents, t.IsActive, t.IsFinished,
		t.RegistrationDeadline, t.CreatedBy,
	).Scan(&t.ID, &t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	return scanTournament(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	if exec == nil {
		return nil, ErrExecutorRequired
	}
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1 FOR UPDATE`
	return scanTournament(exec.QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) GetByCode(ctx context.Context, exec SQLExecutor, code string) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE code = $1`
	return scanTournament(r.getExecutor(exec).QueryRowContext(ctx, query, code))
}

func (r *postgresTournamentRepository) CodeExists(ctx context.Context, exec SQLExecutor, code string) (bool, error) {
	var exists bool
	err := r.getExecutor(exec).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tournaments WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check tournament code: %w", err)
	}
	return exists, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.Format != nil {
		query += fmt.Sprintf(" AND format = $%d", argID)
		args = append(args, *filter.Format)
		argID++
	}
	if filter.Category != nil {
		query += fmt.Sprintf(" AND category = $%d", argID)
		args = append(args, *filter.Category)
		argID++
	}
	if filter.CreatedBy != nil {
		query += fmt.Sprintf(" AND created_by = $%d", argID)
		args = append(args, *filter.CreatedBy)
		argID++
	}
	if filter.PublicOnly {
		query += " AND is_public = TRUE"
	}
	if filter.ActiveOnly {
		query += " AND is_active = TRUE"
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		t, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	executor := r.getExecutor(exec)
	// code, created_by and champion_participant_id are managed separately
	query := `
		UPDATE tournaments SET
			name = $1,
			slug = $2,
			description = $3,
			category = $4,
			capacity = $5,
			format = $6,
			is_public = $7,
			is_paid = $8,
			price_cents = $9,
			is_active = $10,
			registration_deadline = $11
		WHERE id = $12`

	result, err := executor.ExecContext(ctx, query,
		t.Name, t.Slug, t.Description, t.Category, t.Capacity, t.Format,
		t.IsPublic, t.IsPaid, t.PriceCents, t.IsActive, t.RegistrationDeadline,
		t.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// UpdateChampion sets or clears the champion of a knockout tournament.
func (r *postgresTournamentRepository) UpdateChampion(ctx context.Context, exec SQLExecutor, tournamentID int, championID *int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE tournaments SET champion_participant_id = $1 WHERE id = $2`, championID, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to update champion for tournament %d: %w", tournamentID, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Finish(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE tournaments SET is_finished = TRUE, is_active = FALSE WHERE id = $1`, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to finish tournament %d: %w", tournamentID, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// DeactivateExpired closes registration of tournaments whose deadline passed
// before any fixtures were generated. Returns the affected ids.
func (r *postgresTournamentRepository) DeactivateExpired(ctx context.Context, now time.Time) ([]int, error) {
	query := `
		UPDATE tournaments t SET is_active = FALSE
		WHERE t.is_active = TRUE
		  AND t.is_finished = FALSE
		  AND t.registration_deadline IS NOT NULL
		  AND t.registration_deadline <= $1
		  AND NOT EXISTS (SELECT 1 FROM matches m WHERE m.tournament_id = t.id)
		RETURNING t.id`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate expired tournaments: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan deactivated tournament id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if code, constraint, ok := pqViolation(err); ok {
		switch code {
		case pqUniqueViolation:
			if constraint == "tournaments_code_key" {
				return ErrTournamentCodeConflict
			}
		case pqForeignKeyViolation:
			return ErrTournamentInUse
		}
	}
	return err
}
