package handler

import "github.com/clinicdesk/backend/internal/interfaces/http/dto"

// Swagger-only envelope shapes. Handlers write dto.Response directly.

// APIResponse is the success envelope with a typed data field
type APIResponse[T any] struct {
	Success bool      `json:"success" example:"true"`
	Data    T         `json:"data"`
	Meta    *dto.Meta `json:"meta,omitempty"`
}

// ErrorResponse is the failure envelope. Retryable errors also set the Retry-After header.
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error"`
}
