package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournify/models"
)

func TestBuildBracketView_KnockoutLabels(t *testing.T) {
	rng := NewRandomSource(4)
	book := newKnockoutBook(t, 8, 4)
	playOut(t, book, rng)

	champion := 3
	tournament := &models.Tournament{ID: 5, Format: models.FormatKnockout, ChampionParticipantID: &champion}
	view := BuildBracketView(tournament, makeParticipants(8), book.matches)

	require.Len(t, view.Rounds, 3)
	assert.Equal(t, "Round 1", view.Rounds[0].Label)
	assert.Equal(t, "Round 2", view.Rounds[1].Label)
	assert.Equal(t, "Final", view.Rounds[2].Label)
	assert.Len(t, view.Rounds[0].Matches, 4)
	assert.Len(t, view.Rounds[1].Matches, 2)
	assert.Len(t, view.Rounds[2].Matches, 1)
	assert.Equal(t, &champion, view.ChampionID)

	for i := 1; i < len(view.Rounds[0].Matches); i++ {
		assert.Less(t, view.Rounds[0].Matches[i-1].ID, view.Rounds[0].Matches[i].ID)
	}
	require.NotNil(t, view.Rounds[0].Matches[0].Participant1)
	assert.Equal(t, "player", view.Rounds[0].Matches[0].Participant1.Name)
}

func TestBuildBracketView_LeagueSingleRound(t *testing.T) {
	tournament := &models.Tournament{ID: 1, Format: models.FormatLeague}
	view := BuildBracketView(tournament, makeParticipants(2), leagueMatches(t, 2))
	require.Len(t, view.Rounds, 1)
	assert.Equal(t, "Round 1", view.Rounds[0].Label)
}

func TestBuildBracketView_Empty(t *testing.T) {
	view := BuildBracketView(&models.Tournament{ID: 1, Format: models.FormatKnockout}, nil, nil)
	assert.NotNil(t, view.Rounds)
	assert.Empty(t, view.Rounds)
}
