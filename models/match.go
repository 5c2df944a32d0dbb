package models

import "time"

type MatchStage string

const (
	StageGroup    MatchStage = "GROUP"
	StageKnockout MatchStage = "KNOCKOUT"
	StageQuarter  MatchStage = "QUARTER"
	StageSemi     MatchStage = "SEMI"
	StageFinal    MatchStage = "FINAL"
)

// Match is a single fixture. Parent links are weak references to the two
// previous-round matches whose winners fill the slots.
type Match struct {
	ID             int        `json:"id" db:"id"`
	TournamentID   int        `json:"tournament_id" db:"tournament_id"`
	Participant1ID *int       `json:"participant1_id" db:"participant1_id"`
	Participant2ID *int       `json:"participant2_id,omitempty" db:"participant2_id"`
	RoundNumber    int        `json:"round_number" db:"round_number"`
	Stage          MatchStage `json:"stage" db:"stage"`
	WinnerID       *int       `json:"winner_id,omitempty" db:"winner_id"`
	IsDraw         bool       `json:"is_draw" db:"is_draw"`
	ParentMatch1ID *int       `json:"parent_match1_id,omitempty" db:"parent_match1_id"`
	ParentMatch2ID *int       `json:"parent_match2_id,omitempty" db:"parent_match2_id"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// IsDecided reports whether the match blocks its round from advancing.
func (m *Match) IsDecided() bool {
	return m.WinnerID != nil || m.IsDraw
}

// IsBye reports whether only one slot is filled and the winner was pre-assigned.
func (m *Match) IsBye() bool {
	return m.Participant2ID == nil && m.WinnerID != nil && m.Participant1ID != nil && *m.WinnerID == *m.Participant1ID
}

// HasParticipant reports whether id occupies either slot.
func (m *Match) HasParticipant(id int) bool {
	return (m.Participant1ID != nil && *m.Participant1ID == id) ||
		(m.Participant2ID != nil && *m.Participant2ID == id)
}

// LoserID returns the participant that did not win a decided, non-drawn match.
func (m *Match) LoserID() *int {
	if m.WinnerID == nil || m.Participant1ID == nil || m.Participant2ID == nil {
		return nil
	}
	if *m.WinnerID == *m.Participant1ID {
		return m.Participant2ID
	}
	return m.Participant1ID
}
