package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingField  ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidStatus ErrorCode = "validation_invalid_status"
	ErrCodeValidationBatchSize     ErrorCode = "validation_batch_size_exceeded"
	ErrCodeValidationInvalidInput  ErrorCode = "validation_invalid_input"

	// Auth (401)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"
	ErrCodeAuthTokenExpired ErrorCode = "auth_token_expired"
	ErrCodeAuthTokenRevoked ErrorCode = "auth_token_revoked"
	ErrCodeAuthNoCompany    ErrorCode = "auth_company_missing"

	// Permission (403)
	ErrCodePermissionOrgMismatch ErrorCode = "permission_organization_mismatch"
	ErrCodePermissionSystemOnly  ErrorCode = "permission_system_only"

	// Not Found (404)
	ErrCodeNotFoundSchedule ErrorCode = "not_found_schedule"
	ErrCodeNotFoundMessage  ErrorCode = "not_found_message"
	ErrCodeNotFoundAPIKey   ErrorCode = "not_found_api_key"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB                 ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected         ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamScheduler          ErrorCode = "upstream_scheduler_unavailable"
	ErrCodeUpstreamSchedulerNotConfig ErrorCode = "upstream_scheduler_not_configured"
	ErrCodeUpstreamUnavailable        ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited        ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamPushChannel        ErrorCode = "upstream_push_channel_unavailable"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized // 401
	case strings.HasPrefix(s, "permission_"):
		return http.StatusForbidden // 403
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case s == string(ErrCodeUpstreamSchedulerNotConfig):
		// A missing scheduler is a deployment problem, not an upstream outage.
		return http.StatusInternalServerError // 500
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the service.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
