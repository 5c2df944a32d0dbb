package models

import "time"

// Participant is an entrant of exactly one tournament.
type Participant struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Name         string    `json:"name" db:"name"`
	TeamName     *string   `json:"team_name,omitempty" db:"team_name"`
	UserID       *int      `json:"user_id,omitempty" db:"user_id"`
	AddedBy      *int      `json:"added_by,omitempty" db:"added_by"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Membership links an identity account to the participant it joined as.
type Membership struct {
	ID            int       `json:"id" db:"id"`
	TournamentID  int       `json:"tournament_id" db:"tournament_id"`
	UserID        int       `json:"user_id" db:"user_id"`
	ParticipantID int       `json:"participant_id" db:"participant_id"`
	JoinedAt      time.Time `json:"joined_at" db:"joined_at"`
}
