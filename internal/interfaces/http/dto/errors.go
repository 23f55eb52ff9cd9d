package dto

import (
	"errors"
	"net/http"

	"github.com/clinicdesk/backend/internal/domain/shared"
)

// Transport error codes. Domain errors keep their own codes (SESSION_ALREADY_OPEN, ...);
// these cover failures that never reach the domain.
// Format: ERR_<CATEGORY>_<DESCRIPTION>
const (
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation  = "ERR_VALIDATION"
	ErrCodeBadRequest  = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	ErrCodeInvalidID   = "ERR_INVALID_ID"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"

	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodePrecondition        = "ERR_PRECONDITION"

	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"
	ErrCodePayloadTooLarge    = "ERR_PAYLOAD_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps transport error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeInvalidJSON: http.StatusBadRequest,
	ErrCodeInvalidID:   http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusServiceUnavailable,
	ErrCodePrecondition:        http.StatusUnprocessableEntity,

	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodePayloadTooLarge:    http.StatusRequestEntityTooLarge,
}

// KindHTTPStatus maps domain error kinds to HTTP status codes
var KindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindValidation:   http.StatusBadRequest,
	shared.KindNotFound:     http.StatusNotFound,
	shared.KindConflict:     http.StatusConflict,
	shared.KindPrecondition: http.StatusUnprocessableEntity,
	// exhausted optimistic-lock retries; the client may try again
	shared.KindConcurrency: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status for a transport error code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorMapping is the HTTP rendition of an error returned by a service
type ErrorMapping struct {
	Status    int
	Code      string
	Message   string
	Retryable bool
}

// MapError classifies err for the HTTP edge. Domain errors keep their code and message;
// infrastructure failures become a retryable 503 without leaking the cause.
func MapError(err error) ErrorMapping {
	var de *shared.DomainError
	if errors.As(err, &de) {
		status, ok := KindHTTPStatus[de.Kind]
		if !ok {
			status = http.StatusBadRequest
		}
		return ErrorMapping{
			Status:    status,
			Code:      de.Code,
			Message:   de.Message,
			Retryable: shared.IsRetryable(err),
		}
	}
	if shared.IsRetryable(err) {
		return ErrorMapping{
			Status:    http.StatusServiceUnavailable,
			Code:      ErrCodeServiceUnavailable,
			Message:   "Storage is temporarily unavailable, retry the request",
			Retryable: true,
		}
	}
	return ErrorMapping{
		Status:  http.StatusInternalServerError,
		Code:    ErrCodeInternal,
		Message: "An unexpected error occurred",
	}
}
