package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for the identity core. Repositories and services
// wrap these into AppError values; callers match with errors.Is.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicateEmail    = errors.New("email already in use")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrExpired           = errors.New("expired")
	ErrForeignKey        = errors.New("referenced resource does not exist")
	ErrInvalidInput      = errors.New("invalid input")
	ErrSchemaConflict    = errors.New("schema conflict")
	ErrInternal          = errors.New("internal error")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error for a missing resource.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// DuplicateEmail creates a 409 error for an email already bound to an account
// or identity.
func DuplicateEmail(email string) *AppError {
	return &AppError{
		Code:    "DUPLICATE_EMAIL",
		Message: fmt.Sprintf("email %q is already in use", email),
		Status:  http.StatusConflict,
		Err:     ErrDuplicateEmail,
	}
}

// InvalidCredential creates a 401 error for a failed authentication attempt.
// The message is deliberately uniform so callers cannot distinguish a wrong
// password from a password-less external identity.
func InvalidCredential() *AppError {
	return &AppError{
		Code:    "INVALID_CREDENTIAL",
		Message: "invalid email or password",
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidCredential,
	}
}

// Expired creates a 410 error for a token past its time-to-live.
func Expired(what string) *AppError {
	return &AppError{
		Code:    "EXPIRED",
		Message: fmt.Sprintf("%s has expired", what),
		Status:  http.StatusGone,
		Err:     ErrExpired,
	}
}

// ForeignKeyViolation creates a 409 error for a write referencing a row that
// does not exist.
func ForeignKeyViolation(resource, ref string) *AppError {
	return &AppError{
		Code:    "FOREIGN_KEY_VIOLATION",
		Message: fmt.Sprintf("%s references missing %s", resource, ref),
		Status:  http.StatusConflict,
		Err:     ErrForeignKey,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// SchemaConflict creates a migration-time error: a transformation cannot be
// applied to current data without explicit destructive confirmation.
func SchemaConflict(message string) *AppError {
	return &AppError{
		Code:    "SCHEMA_CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrSchemaConflict,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrForeignKey), errors.Is(err, ErrSchemaConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, ErrExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
