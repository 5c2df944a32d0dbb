package brackets

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournify/models"
)

// bracketBook stands in for the match table: it hands out ids in creation order.
type bracketBook struct {
	nextID  int
	matches []*models.Match
}

func (b *bracketBook) addFixtures(fixtures []*Fixture) {
	for _, f := range fixtures {
		b.nextID++
		p1 := f.Participant1ID
		b.matches = append(b.matches, &models.Match{
			ID:             b.nextID,
			Participant1ID: &p1,
			Participant2ID: copyIntPtr(f.Participant2ID),
			RoundNumber:    f.Round,
			Stage:          f.Stage,
		})
	}
}

func (b *bracketBook) addPlanned(planned []*PlannedMatch) {
	for _, pm := range planned {
		b.nextID++
		p1 := pm.Participant1ID
		b.matches = append(b.matches, &models.Match{
			ID:             b.nextID,
			Participant1ID: &p1,
			Participant2ID: copyIntPtr(pm.Participant2ID),
			RoundNumber:    pm.Round,
			Stage:          pm.Stage,
			WinnerID:       copyIntPtr(pm.WinnerID),
			ParentMatch1ID: copyIntPtr(pm.ParentMatch1ID),
			ParentMatch2ID: copyIntPtr(pm.ParentMatch2ID),
		})
	}
}

func (b *bracketBook) round(n int) []*models.Match {
	var out []*models.Match
	for _, m := range b.matches {
		if m.RoundNumber == n {
			out = append(out, m)
		}
	}
	return out
}

// decideRound gives every undecided match of round n to participant1.
func (b *bracketBook) decideRound(n int) {
	for _, m := range b.round(n) {
		if !m.IsDecided() {
			m.WinnerID = copyIntPtr(m.Participant1ID)
		}
	}
}

func newKnockoutBook(t *testing.T, n int, seed int64) *bracketBook {
	t.Helper()
	fixtures, err := NewSingleEliminationGenerator(NewRandomSource(seed)).
		GenerateFixtures(context.Background(), GenerateFixturesParams{Participants: makeParticipants(n)})
	require.NoError(t, err)
	book := &bracketBook{}
	book.addFixtures(fixtures)
	return book
}

func TestPlanAdvancement_EightPlayerScenario(t *testing.T) {
	rng := NewRandomSource(3)
	book := newKnockoutBook(t, 8, 3)
	require.Len(t, book.round(1), 4)

	book.decideRound(1)
	adv, err := PlanAdvancement(book.matches, rng)
	require.NoError(t, err)
	require.Equal(t, RoundComplete, adv.State)
	require.Len(t, adv.NewMatches, 2)
	for _, pm := range adv.NewMatches {
		assert.Equal(t, models.StageSemi, pm.Stage)
		assert.Equal(t, 2, pm.Round)
		require.NotNil(t, pm.ParentMatch1ID)
		require.NotNil(t, pm.ParentMatch2ID)
	}
	book.addPlanned(adv.NewMatches)

	book.decideRound(2)
	adv, err = PlanAdvancement(book.matches, rng)
	require.NoError(t, err)
	require.Equal(t, RoundComplete, adv.State)
	require.Len(t, adv.NewMatches, 1)
	assert.Equal(t, models.StageFinal, adv.NewMatches[0].Stage)
	book.addPlanned(adv.NewMatches)

	book.decideRound(3)
	adv, err = PlanAdvancement(book.matches, rng)
	require.NoError(t, err)
	require.Equal(t, ChampionDetermined, adv.State)
	require.NotNil(t, adv.ChampionID)
	assert.Empty(t, adv.NewMatches)

	final := book.round(3)[0]
	assert.Equal(t, *final.WinnerID, *adv.ChampionID)
	assert.Empty(t, book.round(4))

	decidedFinals := 0
	for _, m := range book.matches {
		if m.Stage == models.StageFinal && m.WinnerID != nil {
			decidedFinals++
		}
	}
	assert.Equal(t, 1, decidedFinals)
}

func TestPlanAdvancement_TerminatesInLog2Rounds(t *testing.T) {
	for _, n := range []int{2, 4, 8, 16, 32, 64} {
		rng := NewRandomSource(int64(n))
		book := newKnockoutBook(t, n, int64(n))
		expectedRounds := int(math.Log2(float64(n)))

		var champion *int
		for round := 1; round <= expectedRounds+1; round++ {
			book.decideRound(round)
			adv, err := PlanAdvancement(book.matches, rng)
			require.NoError(t, err)
			if adv.State == ChampionDetermined {
				assert.Equal(t, expectedRounds, round, "n=%d", n)
				champion = adv.ChampionID
				break
			}
			require.Equal(t, RoundComplete, adv.State)
			assert.Empty(t, adv.ByeParticipants)
			book.addPlanned(adv.NewMatches)
		}
		require.NotNil(t, champion, "n=%d", n)
		last := book.round(expectedRounds)
		require.Len(t, last, 1)
		assert.Equal(t, models.StageFinal, last[0].Stage)
	}
}

func TestPlanAdvancement_IncompleteRoundIsNoop(t *testing.T) {
	rng := NewRandomSource(1)
	book := newKnockoutBook(t, 4, 1)

	adv, err := PlanAdvancement(book.matches, rng)
	require.NoError(t, err)
	assert.Equal(t, AwaitingRound, adv.State)
	assert.Equal(t, 1, adv.Round)

	book.decideRound(1)
	adv, err = PlanAdvancement(book.matches, rng)
	require.NoError(t, err)
	book.addPlanned(adv.NewMatches)
	count := len(book.matches)

	for i := 0; i < 3; i++ {
		adv, err = PlanAdvancement(book.matches, rng)
		require.NoError(t, err)
		assert.Equal(t, AwaitingRound, adv.State)
		assert.Equal(t, 2, adv.Round)
		assert.Empty(t, adv.NewMatches)
	}
	assert.Len(t, book.matches, count)
}

func TestPlanAdvancement_EmptyBracket(t *testing.T) {
	adv, err := PlanAdvancement(nil, NewRandomSource(1))
	require.NoError(t, err)
	assert.Equal(t, AwaitingRound, adv.State)
	assert.Equal(t, 0, adv.Round)
}

func TestPlanAdvancement_DrawIsRejected(t *testing.T) {
	book := newKnockoutBook(t, 2, 1)
	book.matches[0].IsDraw = true

	_, err := PlanAdvancement(book.matches, NewRandomSource(1))
	assert.ErrorIs(t, err, ErrKnockoutDraw)
}

func TestPlanAdvancement_TrailingWinnerGetsBye(t *testing.T) {
	book := &bracketBook{}
	// Three decided matches, as left behind by an unvalidated legacy roster.
	for i := 0; i < 3; i++ {
		p1, p2 := i*2+1, i*2+2
		book.nextID++
		book.matches = append(book.matches, &models.Match{
			ID: book.nextID, Participant1ID: &p1, Participant2ID: &p2, RoundNumber: 1, WinnerID: &p1,
		})
	}

	adv, err := PlanAdvancement(book.matches, NewRandomSource(9))
	require.NoError(t, err)
	require.Equal(t, RoundComplete, adv.State)
	require.Len(t, adv.NewMatches, 2)
	require.Len(t, adv.ByeParticipants, 1)

	bye := adv.NewMatches[1]
	assert.Nil(t, bye.Participant2ID)
	require.NotNil(t, bye.WinnerID)
	assert.Equal(t, bye.Participant1ID, *bye.WinnerID)
	assert.Equal(t, adv.ByeParticipants[0], bye.Participant1ID)
	assert.Equal(t, models.StageSemi, bye.Stage)
}

func TestPlanAdvancement_ParentsFollowWinners(t *testing.T) {
	rng := NewRandomSource(11)
	book := newKnockoutBook(t, 8, 11)
	book.decideRound(1)

	adv, err := PlanAdvancement(book.matches, rng)
	require.NoError(t, err)

	arena := NewArena(book.matches)
	for _, pm := range adv.NewMatches {
		parent1, ok := arena.Match(*pm.ParentMatch1ID)
		require.True(t, ok)
		parent2, ok := arena.Match(*pm.ParentMatch2ID)
		require.True(t, ok)
		assert.Equal(t, *parent1.WinnerID, pm.Participant1ID)
		assert.Equal(t, *parent2.WinnerID, *pm.Participant2ID)
	}
}
