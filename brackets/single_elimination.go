package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournify/models"
)

type SingleEliminationGenerator struct {
	rng RandomSource
}

func NewSingleEliminationGenerator(rng RandomSource) BracketGenerator {
	return &SingleEliminationGenerator{rng: rng}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GenerateFixtures shuffles a copy of the roster and pairs adjacent entries.
// Only round 1 is produced; later rounds are created by PlanAdvancement as
// results arrive. Rosters that are not a power of two are rejected.
func (g *SingleEliminationGenerator) GenerateFixtures(ctx context.Context, params GenerateFixturesParams) ([]*Fixture, error) {
	n := len(params.Participants)
	if n < 2 {
		return nil, fmt.Errorf("SingleEliminationGenerator: %w (found %d)", ErrNotEnoughParticipants, n)
	}
	if !IsPowerOfTwo(n) {
		return nil, fmt.Errorf("SingleEliminationGenerator: %w (found %d)", ErrInvalidKnockoutSize, n)
	}
	if g.rng == nil {
		return nil, fmt.Errorf("SingleEliminationGenerator: random source is not configured")
	}

	shuffled := make([]*models.Participant, n)
	copy(shuffled, params.Participants)
	g.rng.Shuffle(n, func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	stage := StageForMatchCount(n / 2)
	fixtures := make([]*Fixture, 0, n/2)
	for i := 0; i < n; i += 2 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p2ID := shuffled[i+1].ID
		fixtures = append(fixtures, &Fixture{
			Order:          i/2 + 1,
			Round:          1,
			Stage:          stage,
			Participant1ID: shuffled[i].ID,
			Participant2ID: &p2ID,
		})
	}
	return fixtures, nil
}
