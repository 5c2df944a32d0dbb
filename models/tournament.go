package models

import "time"

// MatchFormat определяет формат проведения турнира.
type MatchFormat string

const (
	FormatKnockout MatchFormat = "knockout"
	FormatLeague   MatchFormat = "league"
)

func (f MatchFormat) IsValid() bool {
	return f == FormatKnockout || f == FormatLeague
}

type Category string

const (
	CategoryFootball   Category = "football"
	CategoryValorant   Category = "valorant"
	CategoryCricket    Category = "cricket"
	CategoryBasketball Category = "basketball"
	CategoryOther      Category = "other"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryFootball, CategoryValorant, CategoryCricket, CategoryBasketball, CategoryOther:
		return true
	}
	return false
}

// Tournament представляет турнир.
type Tournament struct {
	ID                    int         `json:"id" db:"id"`
	Name                  string      `json:"name" db:"name"`
	Slug                  string      `json:"slug" db:"slug"`
	Description           *string     `json:"description,omitempty" db:"description"`
	Category              Category    `json:"category" db:"category"`
	Code                  string      `json:"code" db:"code"`
	Capacity              int         `json:"capacity" db:"capacity"`
	Format                MatchFormat `json:"format" db:"format"`
	IsPublic              bool        `json:"is_public" db:"is_public"`
	IsPaid                bool        `json:"is_paid" db:"is_paid"`
	PriceCents            int64       `json:"price_cents" db:"price_cents"`
	IsActive              bool        `json:"is_active" db:"is_active"`
	IsFinished            bool        `json:"is_finished" db:"is_finished"`
	RegistrationDeadline  *time.Time  `json:"registration_deadline,omitempty" db:"registration_deadline"`
	CreatedBy             int         `json:"created_by" db:"created_by"`
	ChampionParticipantID *int        `json:"champion_participant_id,omitempty" db:"champion_participant_id"`
	CreatedAt             time.Time   `json:"created_at" db:"created_at"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Participants []Participant `json:"participants,omitempty" db:"-"`
	Matches      []Match       `json:"matches,omitempty" db:"-"`
}

// RegistrationClosed reports whether the deadline has passed at the given moment.
func (t *Tournament) RegistrationClosed(now time.Time) bool {
	return t.RegistrationDeadline != nil && !now.Before(*t.RegistrationDeadline)
}
