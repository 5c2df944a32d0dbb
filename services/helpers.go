package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/Dosada05/tournify/brackets"
	"github.com/Dosada05/tournify/repositories"
)

const (
	tournamentCodeLength   = 6
	tournamentCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts        = 8
)

// Broadcaster pushes live updates to subscribers of a room. *brackets.Hub implements it.
type Broadcaster interface {
	BroadcastToRoom(roomID string, message interface{})
}

func notify(b Broadcaster, tournamentID int, msgType string, payload interface{}) {
	if b == nil {
		return
	}
	room := brackets.RoomForTournament(tournamentID)
	b.BroadcastToRoom(room, brackets.WebSocketMessage{Type: msgType, Payload: payload, RoomID: room})
}

func generateTournamentCode() (string, error) {
	var sb strings.Builder
	sb.Grow(tournamentCodeLength)
	max := big.NewInt(int64(len(tournamentCodeAlphabet)))
	for i := 0; i < tournamentCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(tournamentCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// NormalizeTournamentCode upper-cases and validates an invite code.
func NormalizeTournamentCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != tournamentCodeLength {
		return "", ErrInvalidTournamentCode
	}
	for _, r := range code {
		if !strings.ContainsRune(tournamentCodeAlphabet, r) {
			return "", ErrInvalidTournamentCode
		}
	}
	return code, nil
}

// handleRepositoryError переводит ошибки репозиториев в ошибки сервисного слоя.
func handleRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrParticipantNotFound):
		return ErrParticipantNotFound
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrPaymentNotFound):
		return ErrPaymentNotFound
	case errors.Is(err, repositories.ErrMembershipNotFound):
		return ErrNotMember
	case errors.Is(err, repositories.ErrMembershipConflict):
		return ErrAlreadyMember
	case errors.Is(err, repositories.ErrTournamentInUse):
		return ErrFixturesLocked
	case errors.Is(err, repositories.ErrMatchTournamentInvalid),
		errors.Is(err, repositories.ErrParticipantTournamentInvalid),
		errors.Is(err, repositories.ErrStandingParticipantInvalid):
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return err
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
