package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/tournify/models"
)

var ErrStandingParticipantInvalid = errors.New("standing participant conflict or invalid")

type StandingRepository interface {
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.StandingsRow, error)
	// ResetByTournament zeroes every row of the tournament.
	ResetByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
	// Upsert inserts the row or overwrites the aggregates of an existing one.
	Upsert(ctx context.Context, exec SQLExecutor, row *models.StandingsRow) error
}

type postgresStandingRepository struct {
	db *sql.DB
}

func NewPostgresStandingRepository(db *sql.DB) StandingRepository {
	return &postgresStandingRepository{db: db}
}

func (r *postgresStandingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresStandingRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.StandingsRow, error) {
	// Порядок совпадает с brackets.SortStandings.
	query := `
		SELECT id, tournament_id, participant_id, matches_played, wins, losses, draws, points, updated_at
		FROM standings
		WHERE tournament_id = $1
		ORDER BY points DESC, wins DESC, participant_id ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list standings: %w", err)
	}
	defer rows.Close()

	standings := make([]*models.StandingsRow, 0)
	for rows.Next() {
		s := &models.StandingsRow{}
		if err := rows.Scan(
			&s.ID, &s.TournamentID, &s.ParticipantID, &s.MatchesPlayed,
			&s.Wins, &s.Losses, &s.Draws, &s.Points, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan standings row: %w", err)
		}
		standings = append(standings, s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return standings, nil
}

func (r *postgresStandingRepository) ResetByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	query := `
		UPDATE standings SET
			matches_played = 0, wins = 0, losses = 0, draws = 0, points = 0, updated_at = NOW()
		WHERE tournament_id = $1`
	if _, err := r.getExecutor(exec).ExecContext(ctx, query, tournamentID); err != nil {
		return fmt.Errorf("failed to reset standings for tournament %d: %w", tournamentID, err)
	}
	return nil
}

func (r *postgresStandingRepository) Upsert(ctx context.Context, exec SQLExecutor, s *models.StandingsRow) error {
	query := `
		INSERT INTO standings (tournament_id, participant_id, matches_played, wins, losses, draws, points, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tournament_id, participant_id) DO UPDATE SET
			matches_played = EXCLUDED.matches_played,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			draws = EXCLUDED.draws,
			points = EXCLUDED.points,
			updated_at = EXCLUDED.updated_at
		RETURNING id`

	s.UpdatedAt = time.Now()
	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		s.TournamentID, s.ParticipantID, s.MatchesPlayed, s.Wins, s.Losses, s.Draws, s.Points, s.UpdatedAt,
	).Scan(&s.ID)
	if err != nil {
		if code, _, ok := pqViolation(err); ok && code == pqForeignKeyViolation {
			return ErrStandingParticipantInvalid
		}
		return fmt.Errorf("failed to upsert standings row for participant %d: %w", s.ParticipantID, err)
	}
	return nil
}
