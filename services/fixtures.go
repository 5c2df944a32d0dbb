package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournify/brackets"
	"github.com/Dosada05/tournify/models"
	"github.com/Dosada05/tournify/repositories"
)

// fixtureBuilder materializes round 1 of a tournament whose roster is full.
// Callers hold the tournament row lock, so the count checks and the inserts
// below form one atomic step.
type fixtureBuilder struct {
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	rng             brackets.RandomSource
	logger          *slog.Logger
}

// generateIfFull creates fixtures only when the roster size equals capacity
// and the tournament has no matches yet. Otherwise it returns nil.
func (b *fixtureBuilder) generateIfFull(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) ([]*models.Match, error) {
	count, err := b.participantRepo.CountByTournament(ctx, exec, t.ID)
	if err != nil {
		return nil, err
	}
	if count != t.Capacity {
		return nil, nil
	}
	existing, err := b.matchRepo.CountByTournament(ctx, exec, t.ID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, nil
	}

	participants, err := b.participantRepo.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return nil, err
	}

	generator, err := brackets.NewGenerator(t.Format, b.rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	fixtures, err := generator.GenerateFixtures(ctx, brackets.GenerateFixturesParams{
		Tournament:   t,
		Participants: participants,
	})
	if err != nil {
		if errors.Is(err, brackets.ErrInvalidKnockoutSize) {
			return nil, ErrInvalidKnockoutCapacity
		}
		return nil, fmt.Errorf("failed to generate fixtures for tournament %d: %w", t.ID, err)
	}

	matches := make([]*models.Match, 0, len(fixtures))
	for _, f := range fixtures {
		p1 := f.Participant1ID
		m := &models.Match{
			TournamentID:   t.ID,
			Participant1ID: &p1,
			Participant2ID: f.Participant2ID,
			RoundNumber:    f.Round,
			Stage:          f.Stage,
		}
		if err := b.matchRepo.Create(ctx, exec, m); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}

	b.logger.Info("fixtures generated",
		slog.Int("tournament_id", t.ID),
		slog.String("generator", generator.GetName()),
		slog.Int("participants", len(participants)),
		slog.Int("matches", len(matches)))
	return matches, nil
}
