package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes used across the service
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeInternal       = "INTERNAL_ERROR"
	CodeDelivery       = "DELIVERY_FAILURE"
	CodeSchedulingUnit = "SCHEDULING_UNIT_FAILURE"
)

// Sentinels for errors.Is comparisons. Matching is by code only.
var (
	ErrValidation     = &AppError{Code: CodeValidation}
	ErrNotFound       = &AppError{Code: CodeNotFound}
	ErrConflict       = &AppError{Code: CodeConflict}
	ErrUnauthorized   = &AppError{Code: CodeUnauthorized}
	ErrInternal       = &AppError{Code: CodeInternal}
	ErrDelivery       = &AppError{Code: CodeDelivery}
	ErrSchedulingUnit = &AppError{Code: CodeSchedulingUnit}
)

// AppError represents an application error
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError carrying the same code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewValidationError creates a new validation error
func NewValidationError(message string, err error) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Err:     err,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: message,
		Err:     err,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string, err error) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Err:     err,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string, err error) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Err:     err,
	}
}

// NewDeliveryFailure wraps a channel push or tracking failure.
// Never returned to callers; only logged.
func NewDeliveryFailure(channel string, err error) *AppError {
	return &AppError{
		Code:    CodeDelivery,
		Message: "delivery to " + channel + " failed",
		Err:     err,
	}
}

// NewSchedulingUnitFailure wraps a failure while processing one organization or user in a scheduler cycle
func NewSchedulingUnitFailure(unit string, err error) *AppError {
	return &AppError{
		Code:    CodeSchedulingUnit,
		Message: "scheduling unit " + unit + " failed",
		Err:     err,
	}
}

// IsNotFound reports whether err is a NOT_FOUND application error
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is a VALIDATION_ERROR application error
func IsValidation(err error) bool {
	return stderrors.Is(err, ErrValidation)
}

// HTTPStatus maps an error to the HTTP status code handlers respond with
func HTTPStatus(err error) int {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// From converts any error into an AppError, wrapping unknown errors as internal
func From(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError("Internal server error", err)
}
