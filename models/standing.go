package models

import "time"

// StandingsRow is the league point-table line of one participant.
type StandingsRow struct {
	ID            int       `json:"id" db:"id"`
	TournamentID  int       `json:"tournament_id" db:"tournament_id"`
	ParticipantID int       `json:"participant_id" db:"participant_id"`
	MatchesPlayed int       `json:"matches_played" db:"matches_played"`
	Wins          int       `json:"wins" db:"wins"`
	Losses        int       `json:"losses" db:"losses"`
	Draws         int       `json:"draws" db:"draws"`
	Points        int       `json:"points" db:"points"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`

	// Optional linked data, populated by service
	Participant *Participant `json:"participant,omitempty" db:"-"`
}

// Reset zeroes the aggregates but keeps identity fields.
func (s *StandingsRow) Reset() {
	s.MatchesPlayed = 0
	s.Wins = 0
	s.Losses = 0
	s.Draws = 0
	s.Points = 0
}
