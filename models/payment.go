package models

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is the on-file record of an entry fee.
type Payment struct {
	ID           int           `json:"id" db:"id"`
	TournamentID int           `json:"tournament_id" db:"tournament_id"`
	UserID       int           `json:"user_id" db:"user_id"`
	AmountCents  int64         `json:"amount_cents" db:"amount_cents"`
	Status       PaymentStatus `json:"status" db:"status"`
	Reference    string        `json:"reference" db:"reference"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
}
