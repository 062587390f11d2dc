package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeConfirmation ErrorType = "confirmation_mismatch"
	ErrorTypeRemote       ErrorType = "remote"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeDatabase     ErrorType = "database"
)

// APIError represents a structured API error
type APIError struct {
	Type        ErrorType         `json:"type"`
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Details     string            `json:"details,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
	HTTPStatus  int               `json:"-"`
	InternalErr error             `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Message, e.Details, e.Code)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Unwrap returns the underlying error
func (e *APIError) Unwrap() error {
	return e.InternalErr
}

// NewAPIError creates a new API error
func NewAPIError(errorType ErrorType, code, message string, httpStatus int) *APIError {
	return &APIError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// NewAPIErrorWithCause creates a new API error with an underlying cause
func NewAPIErrorWithCause(errorType ErrorType, code, message string, httpStatus int, cause error) *APIError {
	return &APIError{
		Type:        errorType,
		Code:        code,
		Message:     message,
		HTTPStatus:  httpStatus,
		InternalErr: cause,
	}
}

// ValidationError creates a validation error
func ValidationError(code, message string) *APIError {
	return NewAPIError(ErrorTypeValidation, code, message, http.StatusBadRequest)
}

// FieldValidationError creates a validation error listing the offending fields
func FieldValidationError(message string, fields map[string]string) *APIError {
	err := NewAPIError(ErrorTypeValidation, "VALIDATION_FAILED", message, http.StatusUnprocessableEntity)
	err.Fields = fields
	return err
}

// NotFoundError creates a not found error
func NotFoundError(resource string) *APIError {
	return NewAPIError(ErrorTypeNotFound, "RESOURCE_NOT_FOUND", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// ConflictError creates a conflict error
func ConflictError(message string) *APIError {
	return NewAPIError(ErrorTypeConflict, "RESOURCE_CONFLICT", message, http.StatusConflict)
}

// UnauthorizedError creates an unauthorized error
func UnauthorizedError(message string) *APIError {
	return NewAPIError(ErrorTypeUnauthorized, "UNAUTHORIZED", message, http.StatusUnauthorized)
}

// ForbiddenError creates a forbidden error
func ForbiddenError(message string) *APIError {
	return NewAPIError(ErrorTypeForbidden, "FORBIDDEN", message, http.StatusForbidden)
}

// ConfirmationMismatchError is returned when a typed safety confirmation does not match
func ConfirmationMismatchError(expected string) *APIError {
	return &APIError{
		Type:       ErrorTypeConfirmation,
		Code:       "CONFIRMATION_MISMATCH",
		Message:    "Confirmation text does not match",
		Details:    fmt.Sprintf("type %q to confirm", expected),
		HTTPStatus: http.StatusBadRequest,
	}
}

// RemoteCallError wraps a failed call to a remote function or service
func RemoteCallError(operation string, cause error) *APIError {
	return NewAPIErrorWithCause(ErrorTypeRemote, "REMOTE_CALL_FAILED",
		fmt.Sprintf("Remote operation failed: %s", operation),
		http.StatusBadGateway, cause)
}

// InternalError creates an internal server error
func InternalError(message string) *APIError {
	return NewAPIError(ErrorTypeInternal, "INTERNAL_ERROR", message, http.StatusInternalServerError)
}

// InternalErrorWithCause creates an internal server error with cause
func InternalErrorWithCause(message string, cause error) *APIError {
	return NewAPIErrorWithCause(ErrorTypeInternal, "INTERNAL_ERROR", message, http.StatusInternalServerError, cause)
}

// DatabaseError creates a database error
func DatabaseError(operation string, cause error) *APIError {
	return NewAPIErrorWithCause(ErrorTypeDatabase, "DATABASE_ERROR",
		fmt.Sprintf("Database operation failed: %s", operation),
		http.StatusInternalServerError, cause)
}

// GetAPIError extracts an APIError anywhere in the wrap chain
func GetAPIError(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// IsAPIError checks if an error is (or wraps) an APIError
func IsAPIError(err error) bool {
	return GetAPIError(err) != nil
}

// HandleDatabaseError maps GORM errors onto API errors.
// The *gorm.DB must be opened with TranslateError for duplicate keys to be recognised.
func HandleDatabaseError(err error, operation string, resource string) *APIError {
	if err == nil {
		return nil
	}
	if apiErr := GetAPIError(err); apiErr != nil {
		return apiErr
	}

	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return NotFoundError(resource)
	case stderrors.Is(err, gorm.ErrDuplicatedKey):
		return ConflictError(fmt.Sprintf("%s already exists", resource))
	default:
		return DatabaseError(operation, err)
	}
}

// ErrorResponse represents the JSON structure for error responses
type ErrorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Details   string            `json:"details,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(apiErr *APIError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Error:     apiErr.Message,
		Code:      apiErr.Code,
		Details:   apiErr.Details,
		Fields:    apiErr.Fields,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
