package brackets

import (
	"fmt"
	"sort"

	"github.com/Dosada05/tournify/models"
)

type ParticipantRef struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	TeamName *string `json:"team_name,omitempty"`
}

type MatchView struct {
	ID             int               `json:"id"`
	Stage          models.MatchStage `json:"stage"`
	Participant1   *ParticipantRef   `json:"participant1,omitempty"`
	Participant2   *ParticipantRef   `json:"participant2,omitempty"`
	WinnerID       *int              `json:"winner_id,omitempty"`
	IsDraw         bool              `json:"is_draw"`
	IsBye          bool              `json:"is_bye"`
	ParentMatch1ID *int              `json:"parent_match1_id,omitempty"`
	ParentMatch2ID *int              `json:"parent_match2_id,omitempty"`
}

type RoundView struct {
	Number  int         `json:"number"`
	Label   string      `json:"label"`
	Matches []MatchView `json:"matches"`
}

// BracketView is the read model handed to the rendering frontend.
type BracketView struct {
	TournamentID int                `json:"tournament_id"`
	Format       models.MatchFormat `json:"format"`
	ChampionID   *int               `json:"champion_id,omitempty"`
	Rounds       []RoundView        `json:"rounds"`
}

// BuildBracketView groups matches by round in creation order. A knockout
// round made of the single FINAL match is labelled "Final", every other
// round "Round N".
func BuildBracketView(t *models.Tournament, participants []*models.Participant, matches []*models.Match) *BracketView {
	refs := make(map[int]*ParticipantRef, len(participants))
	for _, p := range participants {
		refs[p.ID] = &ParticipantRef{ID: p.ID, Name: p.Name, TeamName: p.TeamName}
	}
	lookup := func(id *int) *ParticipantRef {
		if id == nil {
			return nil
		}
		if ref, ok := refs[*id]; ok {
			return ref
		}
		return &ParticipantRef{ID: *id}
	}

	sorted := make([]*models.Match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].RoundNumber != sorted[j].RoundNumber {
			return sorted[i].RoundNumber < sorted[j].RoundNumber
		}
		return sorted[i].ID < sorted[j].ID
	})

	view := &BracketView{
		TournamentID: t.ID,
		Format:       t.Format,
		ChampionID:   t.ChampionParticipantID,
		Rounds:       []RoundView{},
	}

	for _, m := range sorted {
		if n := len(view.Rounds); n == 0 || view.Rounds[n-1].Number != m.RoundNumber {
			view.Rounds = append(view.Rounds, RoundView{Number: m.RoundNumber})
		}
		r := &view.Rounds[len(view.Rounds)-1]
		r.Matches = append(r.Matches, MatchView{
			ID:             m.ID,
			Stage:          m.Stage,
			Participant1:   lookup(m.Participant1ID),
			Participant2:   lookup(m.Participant2ID),
			WinnerID:       m.WinnerID,
			IsDraw:         m.IsDraw,
			IsBye:          m.IsBye(),
			ParentMatch1ID: m.ParentMatch1ID,
			ParentMatch2ID: m.ParentMatch2ID,
		})
	}

	for i := range view.Rounds {
		r := &view.Rounds[i]
		if t.Format == models.FormatKnockout && len(r.Matches) == 1 && r.Matches[0].Stage == models.StageFinal {
			r.Label = "Final"
		} else {
			r.Label = fmt.Sprintf("Round %d", r.Number)
		}
	}
	return view
}
