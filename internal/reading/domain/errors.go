package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	generation "github.com/felixgeelhaar/augur/internal/generation/domain"
	prize "github.com/felixgeelhaar/augur/internal/prize/domain"
)

// Code is the machine-readable failure class returned to callers.
type Code string

const (
	CodeMissingUserMessage   Code = "MISSING_USER_MESSAGE"
	CodeMessageTooLong       Code = "MESSAGE_TOO_LONG"
	CodeUnknownModule        Code = "UNKNOWN_MODULE"
	CodeInvalidSession       Code = "INVALID_SESSION"
	CodeInvalidRequest       Code = "INVALID_REQUEST"
	CodeAuthError            Code = "AUTH_ERROR"
	CodeQuotaExceeded        Code = "QUOTA_EXCEEDED"
	CodeSafetyFilter         Code = "SAFETY_FILTER"
	CodeServiceOverloaded    Code = "SERVICE_OVERLOADED"
	CodeAllModelsUnavailable Code = "ALL_MODELS_UNAVAILABLE"
	CodeRequestInProgress    Code = "REQUEST_IN_PROGRESS"
	CodeSpinInProgress       Code = "SPIN_IN_PROGRESS"
	CodeNoSpinAvailable      Code = "NO_SPIN_AVAILABLE"
	CodeInternalError        Code = "INTERNAL_ERROR"
)

// MissingDataCode builds the MISSING_<NAME>_DATA code for a module.
func MissingDataCode(name string) Code {
	return Code(fmt.Sprintf("MISSING_%s_DATA", strings.ToUpper(name)))
}

var (
	ErrUnknownModule   = errors.New("unknown module")
	ErrRequestInFlight = errors.New("a request for this session is already in progress")
	ErrQuotaExceeded   = errors.New("free message quota exceeded")
	ErrEmptyResponse   = errors.New("shaped response is empty")
)

// ValidationError rejects a request before any backend call.
type ValidationError struct {
	Code    Code
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// QuotaError is a DENY decision. It carries the conversion prompt.
type QuotaError struct {
	Module         string
	PaywallMessage string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Module, ErrQuotaExceeded)
}

// Is lets errors.Is match ErrQuotaExceeded.
func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// Classify maps an error onto the caller-facing taxonomy. Backend errors
// are checked before the exhausted sentinel so the last cause of an
// exhausted pipeline decides the code.
func Classify(err error) Code {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Code
	case errors.Is(err, ErrUnknownModule):
		return CodeUnknownModule
	case errors.Is(err, ErrQuotaExceeded):
		return CodeQuotaExceeded
	case errors.Is(err, ErrRequestInFlight):
		return CodeRequestInProgress
	case errors.Is(err, prize.ErrSpinInProgress):
		return CodeSpinInProgress
	case errors.Is(err, prize.ErrNoSpinAvailable):
		return CodeNoSpinAvailable
	case errors.Is(err, generation.ErrBackendSafety):
		return CodeSafetyFilter
	case errors.Is(err, generation.ErrBackendAuth):
		return CodeAuthError
	case errors.Is(err, generation.ErrBackendRateLimited), errors.Is(err, context.DeadlineExceeded):
		return CodeServiceOverloaded
	case errors.Is(err, generation.ErrAllBackendsExhausted), errors.Is(err, generation.ErrNoBackends),
		errors.Is(err, generation.ErrCircuitOpen):
		return CodeAllModelsUnavailable
	default:
		return CodeInternalError
	}
}

// HTTPStatus returns the status class of a code.
func HTTPStatus(code Code) int {
	switch code {
	case "":
		return http.StatusOK
	case CodeAuthError:
		return http.StatusUnauthorized
	case CodeQuotaExceeded:
		return http.StatusTooManyRequests
	case CodeSafetyFilter:
		return http.StatusUnprocessableEntity
	case CodeServiceOverloaded, CodeAllModelsUnavailable:
		return http.StatusServiceUnavailable
	case CodeRequestInProgress, CodeSpinInProgress, CodeNoSpinAvailable:
		return http.StatusConflict
	case CodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// UserMessage is the text shown to callers for a code.
func UserMessage(code Code) string {
	switch code {
	case CodeMissingUserMessage:
		return "Please enter a message."
	case CodeMessageTooLong:
		return fmt.Sprintf("Messages are limited to %d characters.", MaxMessageRunes)
	case CodeUnknownModule:
		return "This reading is not available."
	case CodeInvalidSession:
		return "The session identifier is invalid."
	case CodeAuthError:
		return "The reading service is misconfigured. Please try again later."
	case CodeQuotaExceeded:
		return "You have used all your free messages."
	case CodeSafetyFilter:
		return "This request can't be answered. Please rephrase your message."
	case CodeServiceOverloaded:
		return "The service is busy right now. Please retry in a few seconds."
	case CodeAllModelsUnavailable:
		return "The service is temporarily unavailable. Please retry shortly."
	case CodeRequestInProgress:
		return "Your previous message is still being answered."
	case CodeSpinInProgress:
		return "A spin is already in progress."
	case CodeNoSpinAvailable:
		return "No spin is available right now. Come back tomorrow."
	case CodeInternalError:
		return "Something went wrong. Please try again."
	default:
		return "Some required information is missing."
	}
}
