package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournify/models"
)

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() BracketGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return "RoundRobin"
}

// GenerateFixtures creates every unordered pair exactly once, enumerated in the
// order participants were given. All league fixtures belong to round 1.
func (g *RoundRobinGenerator) GenerateFixtures(ctx context.Context, params GenerateFixturesParams) ([]*Fixture, error) {
	participants := params.Participants
	if len(participants) < 2 {
		return nil, fmt.Errorf("RoundRobinGenerator: %w (found %d)", ErrNotEnoughParticipants, len(participants))
	}

	fixtures := make([]*Fixture, 0, len(participants)*(len(participants)-1)/2)
	order := 0
	for i := 0; i < len(participants); i++ {
		for j := i + 1; j < len(participants); j++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			p2ID := participants[j].ID
			order++
			fixtures = append(fixtures, &Fixture{
				Order:          order,
				Round:          1,
				Stage:          models.StageGroup,
				Participant1ID: participants[i].ID,
				Participant2ID: &p2ID,
			})
		}
	}
	return fixtures, nil
}
