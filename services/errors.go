package services

import (
	"errors"
	"fmt"
)

// Общие ошибки сервисов. Обработчики инструментов переводят их в коды LEAGUE_ERROR.
var (
	// Регистрация
	ErrRegistrationClosed      = errors.New("registration window is closed")
	ErrProtocolVersionMismatch = errors.New("protocol version mismatch")

	// Аутентификация и авторизация
	ErrAuthTokenMissing   = errors.New("auth token is missing")
	ErrAuthTokenInvalid   = errors.New("auth token is invalid")
	ErrForbiddenOperation = errors.New("operation not allowed for this sender")

	// Результаты матчей
	ErrUnknownMatch    = errors.New("match is not known or has not been dispatched")
	ErrDuplicateReport = errors.New("match result already recorded")
	ErrInvalidResult   = errors.New("match result is invalid")

	// Состояние лиги
	ErrNotEnoughPlayers = errors.New("not enough players registered")
	ErrNoReferees       = errors.New("no referees registered")

	// Судья
	ErrMatchAlreadyRunning = errors.New("match is already running")
)

// DescMatchAlreadyRunning is the LEAGUE_ERROR description a referee answers
// a repeated start_match with.
const DescMatchAlreadyRunning = "MATCH_ALREADY_RUNNING"

// MissingFieldError names the first required field absent from a request.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

func missingField(field string) error {
	return &MissingFieldError{Field: field}
}
