package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournify/models"
)

// playOut decides every round of the book until a champion is known.
func playOut(t *testing.T, book *bracketBook, rng RandomSource) {
	t.Helper()
	for round := 1; ; round++ {
		book.decideRound(round)
		adv, err := PlanAdvancement(book.matches, rng)
		require.NoError(t, err)
		if adv.State == ChampionDetermined {
			return
		}
		book.addPlanned(adv.NewMatches)
	}
}

func TestPropagate_CorrectionClearsDownstream(t *testing.T) {
	for _, n := range []int{4, 8} {
		rng := NewRandomSource(5)
		book := newKnockoutBook(t, n, 5)
		playOut(t, book, rng)

		arena := NewArena(book.matches)
		changed := book.round(1)[0]
		newWinner := *changed.Participant2ID
		changed.WinnerID = &newWinner

		touched, err := Propagate(arena, changed.ID)
		require.NoError(t, err)

		require.NotEmpty(t, touched)

		child := arena.Children(changed.ID)
		require.Len(t, child, 1)
		direct := child[0]
		assert.True(t, direct.HasParticipant(newWinner), "n=%d: slot must hold the corrected winner", n)
		assert.Nil(t, direct.WinnerID)
		assert.False(t, direct.IsDraw)

		var final *models.Match
		for _, m := range book.matches {
			if m.Stage == models.StageFinal {
				final = m
			}
		}
		require.NotNil(t, final)
		assert.Nil(t, final.WinnerID, "n=%d: final result must be cleared", n)
		assert.Equal(t, final.ID, touched[len(touched)-1].ID)

		expectedDepth := 0
		for size := n / 2; size > 1; size /= 2 {
			expectedDepth++
		}
		assert.Len(t, touched, expectedDepth)
	}
}

func TestPropagate_FirstLevelSlotOnly(t *testing.T) {
	rng := NewRandomSource(2)
	book := newKnockoutBook(t, 4, 2)
	playOut(t, book, rng)

	final := book.round(2)[0]
	untouchedSlot := *final.Participant2ID

	arena := NewArena(book.matches)
	otherParent, _ := arena.Match(*final.ParentMatch2ID)
	changed, _ := arena.Match(*final.ParentMatch1ID)
	changed.WinnerID = copyIntPtr(changed.LoserID())

	touched, err := Propagate(arena, changed.ID)
	require.NoError(t, err)
	require.Len(t, touched, 1)

	assert.Equal(t, *changed.WinnerID, *final.Participant1ID)
	assert.Equal(t, untouchedSlot, *final.Participant2ID)
	assert.Equal(t, *otherParent.WinnerID, *final.Participant2ID)
	assert.Nil(t, final.WinnerID)
}

func TestPropagate_ClearedWinnerEmptiesSlot(t *testing.T) {
	p1, p2, p3, p4 := 1, 2, 3, 4
	m1, m2 := 1, 2
	matches := []*models.Match{
		{ID: 1, RoundNumber: 1, Participant1ID: &p1, Participant2ID: &p2},
		{ID: 2, RoundNumber: 1, Participant1ID: &p3, Participant2ID: &p4, WinnerID: &p4},
		{ID: 3, RoundNumber: 2, Participant1ID: &p1, Participant2ID: &p4, ParentMatch1ID: &m1, ParentMatch2ID: &m2, WinnerID: &p1},
	}
	arena := NewArena(matches)

	touched, err := Propagate(arena, 1)
	require.NoError(t, err)
	require.Len(t, touched, 1)
	assert.Nil(t, matches[2].Participant1ID)
	assert.Equal(t, p4, *matches[2].Participant2ID)
	assert.Nil(t, matches[2].WinnerID)
}

func TestPropagate_ByeChildReadvances(t *testing.T) {
	p1, p2 := 1, 2
	m1 := 1
	matches := []*models.Match{
		{ID: 1, RoundNumber: 1, Participant1ID: &p1, Participant2ID: &p2, WinnerID: &p2},
		{ID: 2, RoundNumber: 2, Participant1ID: &p1, ParentMatch1ID: &m1, WinnerID: &p1},
	}
	arena := NewArena(matches)

	_, err := Propagate(arena, 1)
	require.NoError(t, err)
	require.NotNil(t, matches[1].WinnerID)
	assert.Equal(t, p2, *matches[1].Participant1ID)
	assert.Equal(t, p2, *matches[1].WinnerID)
	assert.True(t, matches[1].IsBye())
}

func TestPropagate_LeafHasNoChildren(t *testing.T) {
	p1, p2 := 1, 2
	arena := NewArena([]*models.Match{{ID: 1, RoundNumber: 1, Participant1ID: &p1, Participant2ID: &p2, WinnerID: &p1}})
	touched, err := Propagate(arena, 1)
	require.NoError(t, err)
	assert.Empty(t, touched)
}

func TestPropagate_UnknownMatch(t *testing.T) {
	_, err := Propagate(NewArena(nil), 99)
	assert.ErrorIs(t, err, ErrMatchNotInArena)
}
