package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Dosada05/agent-league/games"
	"github.com/Dosada05/agent-league/models"
	"github.com/Dosada05/agent-league/services" // для маппинга ошибок сервисов
)

type jsonResponse map[string]any

var timeNow = time.Now

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	maxBytes := 1_048_576 // 1MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case err.Error() == "http: request body too large":
			return fmt.Errorf("body must not be larger than %d bytes", maxBytes)
		case errors.As(err, &invalidUnmarshalError):
			panic(err) // ошибка программиста: передан не указатель
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

func errorResponse(w http.ResponseWriter, r *http.Request, status int, message any) {
	env := jsonResponse{"error": message}
	if err := writeJSON(w, status, env, nil); err != nil {
		slog.Error("failed to write error response", slog.String("path", r.URL.Path), slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("internal server error", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("error", err))
	message := "the server encountered a problem and could not process your request"
	errorResponse(w, r, http.StatusInternalServerError, message)
}

func badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func notFoundResponse(w http.ResponseWriter, r *http.Request) {
	errorResponse(w, r, http.StatusNotFound, "the requested resource could not be found")
}

func unauthorizedResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusUnauthorized, message)
}

// Коды LEAGUE_ERROR, которые отдают инструменты менеджера и судьи.
const (
	CodeInternal          = "E000"
	CodeMissingField      = "E003"
	CodeUnknownMatch      = "E004"
	CodeDuplicateReport   = "E006"
	CodeInvalidResult     = "E007"
	CodeAuthTokenMissing  = "E011"
	CodeAuthTokenInvalid  = "E012"
	CodeForbidden         = "E013"
	CodeRegistrationError = "E018"
)

// mapServiceErrorToLeagueError переводит ошибки сервисного слоя в LEAGUE_ERROR.
// Единственное место, где выбирается код ошибки протокола.
func mapServiceErrorToLeagueError(err error, originalType string) *models.LeagueError {
	le := &models.LeagueError{
		Protocol:            models.ProtocolName,
		MessageType:         models.MsgLeagueError,
		Sender:              models.ManagerSender,
		Timestamp:           models.Timestamp(timeNow()),
		OriginalMessageType: originalType,
		Context:             map[string]any{"detail": err.Error()},
	}

	var missing *services.MissingFieldError
	switch {
	// Запрос
	case errors.As(err, &missing):
		le.ErrorCode, le.ErrorDescription = CodeMissingField, "MISSING_REQUIRED_FIELD"
		le.Context["missing_field"] = missing.Field

	// Регистрация
	case errors.Is(err, services.ErrRegistrationClosed):
		le.ErrorCode, le.ErrorDescription = CodeRegistrationError, "REGISTRATION_CLOSED"
	case errors.Is(err, services.ErrProtocolVersionMismatch):
		le.ErrorCode, le.ErrorDescription = CodeRegistrationError, "PROTOCOL_VERSION_MISMATCH"
	case errors.Is(err, games.ErrUnknownGameType):
		le.ErrorCode, le.ErrorDescription = CodeRegistrationError, "GAME_TYPE_NOT_SUPPORTED"

	// Аутентификация
	case errors.Is(err, services.ErrAuthTokenMissing):
		le.ErrorCode, le.ErrorDescription = CodeAuthTokenMissing, "AUTH_TOKEN_MISSING"
	case errors.Is(err, services.ErrAuthTokenInvalid):
		le.ErrorCode, le.ErrorDescription = CodeAuthTokenInvalid, "AUTH_TOKEN_INVALID"
	case errors.Is(err, services.ErrForbiddenOperation):
		le.ErrorCode, le.ErrorDescription = CodeForbidden, "FORBIDDEN"

	// Результаты матчей
	case errors.Is(err, services.ErrUnknownMatch):
		le.ErrorCode, le.ErrorDescription = CodeUnknownMatch, "UNKNOWN_MATCH"
	case errors.Is(err, services.ErrDuplicateReport):
		le.ErrorCode, le.ErrorDescription = CodeDuplicateReport, "DUPLICATE_REPORT"
	case errors.Is(err, services.ErrMatchAlreadyRunning):
		le.ErrorCode, le.ErrorDescription = CodeDuplicateReport, services.DescMatchAlreadyRunning
	case errors.Is(err, services.ErrInvalidResult):
		le.ErrorCode, le.ErrorDescription = CodeInvalidResult, "INVALID_RESULT"

	default:
		le.ErrorCode, le.ErrorDescription = CodeInternal, "INTERNAL_ERROR"
	}
	return le
}
