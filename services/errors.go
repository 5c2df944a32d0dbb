package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrMatchNotFound       = errors.New("match not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrNotMember           = errors.New("user is not a member of this tournament")

	// Ошибки валидации
	ErrValidationFailed        = errors.New("validation failed")
	ErrTournamentNameRequired  = errors.New("tournament name is required")
	ErrInvalidCapacity         = errors.New("tournament capacity must be at least 2")
	ErrInvalidFormat           = errors.New("tournament format must be knockout or league")
	ErrInvalidCategory         = errors.New("invalid tournament category")
	ErrInvalidPrice            = errors.New("paid tournaments require a positive price")
	ErrInvalidDeadline         = errors.New("registration deadline must be in the future")
	ErrRosterExceedsCapacity   = errors.New("roster exceeds tournament capacity")
	ErrInvalidKnockoutCapacity = errors.New("knockout tournaments require a power-of-two capacity")
	ErrParticipantNameRequired = errors.New("participant name is required")
	ErrResultRequired          = errors.New("select a winner or mark the match as a draw")
	ErrResultConflict          = errors.New("a match cannot have both a winner and a draw")
	ErrDrawNotAllowed          = errors.New("knockout matches cannot end in a draw")
	ErrWinnerNotInMatch        = errors.New("winner must be one of the match participants")
	ErrInvalidTournamentCode   = errors.New("invalid tournament code")
	ErrInvalidPaymentCallback  = errors.New("invalid payment callback")
	ErrCodeGenerationFailed    = errors.New("could not generate a unique tournament code")

	// Ошибки бизнес-правил и конфликтов
	ErrSelfJoinByHost        = errors.New("the host cannot join their own tournament")
	ErrAlreadyMember         = errors.New("user is already a member of this tournament")
	ErrTournamentFull        = errors.New("tournament registration is full")
	ErrPaymentRequired       = errors.New("a completed payment is required to join this tournament")
	ErrTournamentInactive    = errors.New("tournament is not accepting participants")
	ErrRegistrationClosed    = errors.New("tournament registration deadline has passed")
	ErrTournamentPrivate     = errors.New("private tournaments can only be joined with an invite code")
	ErrFixturesLocked        = errors.New("fixtures already exist for this tournament")
	ErrTournamentNotFinished = errors.New("tournament is not finished yet")
	ErrTournamentFinished    = errors.New("tournament is already finished")
	ErrMatchNotPlayable      = errors.New("match has an empty slot or is a bye")
	ErrNotKnockout           = errors.New("operation is only available for knockout tournaments")
	ErrNotLeague             = errors.New("standings are only available for league tournaments")
	ErrNotPaidTournament     = errors.New("tournament does not require payment")
	ErrPaymentAlreadySettled = errors.New("payment has already been settled")

	// Ошибки аутентификации и авторизации
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")
)
