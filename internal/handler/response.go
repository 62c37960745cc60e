package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/xtxerr/soilwatch/internal/errors"
)

// =============================================================================
// API Errors
// =============================================================================

// ErrorCode is a stable, machine-readable error code.
type ErrorCode string

const (
	ErrorCodeInternalServerError ErrorCode = "internal_server_error"
	ErrorCodeNotFound            ErrorCode = "not_found"
	ErrorCodeMethodNotAllowed    ErrorCode = "method_not_allowed"
	ErrorCodeValidationFailed    ErrorCode = "validation_failed"
	ErrorCodeInvalidFormat       ErrorCode = "invalid_format"
	ErrorCodeDuplicateResource   ErrorCode = "duplicate_resource"
	ErrorCodeUnavailable         ErrorCode = "unavailable"
)

// Messages returned to clients for the common cases.
const (
	MsgCollectorNotFound = "Collector not found"
	MsgNoStatusFound     = "No status found"
	MsgDuplicateKey      = "Primary key already exists"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	StatusCode int       `json:"-"`
}

// Error implements the error interface.
func (e APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewAPIError is a constructor for APIError.
func NewAPIError(code ErrorCode, message string, details any, statusCode int) APIError {
	return APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
	}
}

// FromError maps a core error to the response the client sees. Internal
// errors do not leak their text.
func FromError(err error) APIError {
	status := errors.ErrorToStatus(err)

	switch {
	case errors.Is(err, errors.ErrStatusNotFound):
		return NewAPIError(ErrorCodeNotFound, MsgNoStatusFound, nil, status)
	case errors.IsNotFound(err):
		return NewAPIError(ErrorCodeNotFound, MsgCollectorNotFound, nil, status)
	case errors.IsAlreadyExists(err):
		return NewAPIError(ErrorCodeDuplicateResource, MsgDuplicateKey, nil, status)
	case errors.IsValidation(err):
		var details any
		var verrs *errors.ValidationErrors
		if errors.As(err, &verrs) {
			details = verrs.Messages()
		} else {
			details = []string{err.Error()}
		}
		return NewAPIError(ErrorCodeValidationFailed, "Validation failed", details, status)
	default:
		return NewAPIError(ErrorCodeInternalServerError, "Internal server error", nil, status)
	}
}

// =============================================================================
// Response Helpers
// =============================================================================

// RespondWithJSON sends a JSON response with the given status code.
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn("failed to encode response", "error", err)
	}
}

// RespondWithError sends apiErr as a JSON error response.
func RespondWithError(w http.ResponseWriter, apiErr APIError) {
	RespondWithJSON(w, apiErr.StatusCode, apiErr)
}

// respondErr maps err and sends it. Server errors are logged with the
// request id.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := FromError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID(r),
			"error", err,
		)
	}
	RespondWithError(w, apiErr)
}
