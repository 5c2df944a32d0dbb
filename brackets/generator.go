package brackets

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Dosada05/tournify/models"
)

var (
	ErrNotEnoughParticipants = errors.New("not enough participants to generate fixtures (minimum 2)")
	ErrInvalidKnockoutSize   = errors.New("knockout fixtures require a power-of-two number of participants")
	ErrUnsupportedFormat     = errors.New("unsupported tournament format")
)

// RandomSource is the shuffling dependency of the knockout generator and the
// round advancement engine. *rand.Rand satisfies it.
type RandomSource interface {
	Shuffle(n int, swap func(i, j int))
}

// NewRandomSource returns a PCG-backed source. The same seed always yields the
// same bracket.
func NewRandomSource(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// NewTimeSeededSource is used when no seed is configured.
func NewTimeSeededSource() *rand.Rand {
	return NewRandomSource(time.Now().UnixNano())
}

// LockedSource serializes access to a RandomSource shared between requests.
type LockedSource struct {
	mu  sync.Mutex
	src RandomSource
}

func NewLockedSource(src RandomSource) *LockedSource {
	return &LockedSource{src: src}
}

func (l *LockedSource) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.src.Shuffle(n, swap)
}

// Fixture is a planned round-1 pairing, not yet persisted.
type Fixture struct {
	Order          int
	Round          int
	Stage          models.MatchStage
	Participant1ID int
	Participant2ID *int
}

type GenerateFixturesParams struct {
	Tournament   *models.Tournament
	Participants []*models.Participant
}

type BracketGenerator interface {
	GenerateFixtures(ctx context.Context, params GenerateFixturesParams) ([]*Fixture, error)

	GetName() string
}

// NewGenerator picks the generator for a tournament format.
func NewGenerator(format models.MatchFormat, rng RandomSource) (BracketGenerator, error) {
	switch format {
	case models.FormatLeague:
		return NewRoundRobinGenerator(), nil
	case models.FormatKnockout:
		return NewSingleEliminationGenerator(rng), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// IsPowerOfTwo reports n >= 2 && n is a power of two.
func IsPowerOfTwo(n int) bool {
	return n >= 2 && n&(n-1) == 0
}

// StageForMatchCount labels a knockout round by how many matches it holds.
func StageForMatchCount(count int) models.MatchStage {
	switch count {
	case 1:
		return models.StageFinal
	case 2:
		return models.StageSemi
	case 4:
		return models.StageQuarter
	default:
		return models.StageKnockout
	}
}
