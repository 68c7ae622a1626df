package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrNotFound     ErrorType = "NOT_FOUND"
	ErrRateLimit    ErrorType = "RATE_LIMIT"
	ErrInvalidInput ErrorType = "INVALID_INPUT"
	ErrInternal     ErrorType = "INTERNAL"
	ErrUnauthorized ErrorType = "UNAUTHORIZED"
	ErrTransient    ErrorType = "TRANSIENT"
	ErrStorage      ErrorType = "STORAGE"
)

// AppError represents an application error
type AppError struct {
	Type      ErrorType
	Message   string
	Cause     error
	Timestamp time.Time
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:      errType,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// RateLimitError is returned when the upstream quota for a credential is
// exhausted. Callers must not retry before ResetTime.
type RateLimitError struct {
	ResetTime time.Time
	Limit     int
	Remaining int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, resets at %v (limit: %d, remaining: %d)",
		e.ResetTime.UTC().Format(time.RFC3339), e.Limit, e.Remaining)
}

// NewRateLimitError creates a new RateLimitError
func NewRateLimitError(resetTime time.Time, limit, remaining int) *RateLimitError {
	return &RateLimitError{
		ResetTime: resetTime,
		Limit:     limit,
		Remaining: remaining,
	}
}

// RepositoryNotFoundError represents a repository that is missing or was renamed upstream
type RepositoryNotFoundError struct {
	Owner string
	Name  string
}

func (e *RepositoryNotFoundError) Error() string {
	return fmt.Sprintf("repository not found: %s/%s", e.Owner, e.Name)
}

// NewRepositoryNotFoundError creates a new RepositoryNotFoundError
func NewRepositoryNotFoundError(owner, name string) *RepositoryNotFoundError {
	return &RepositoryNotFoundError{
		Owner: owner,
		Name:  name,
	}
}

// TypeOf returns the error category of err. Errors outside the taxonomy
// are reported as ErrInternal.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var rle *RateLimitError
	if stderrors.As(err, &rle) {
		return ErrRateLimit
	}
	var nfe *RepositoryNotFoundError
	if stderrors.As(err, &nfe) {
		return ErrNotFound
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrInternal
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrNotFound
}

// IsRateLimit checks if the error is a rate limit error
func IsRateLimit(err error) bool {
	return TypeOf(err) == ErrRateLimit
}

// IsInvalidInput checks if the error is an invalid input error
func IsInvalidInput(err error) bool {
	return TypeOf(err) == ErrInvalidInput
}

// IsValidationError is an alias for IsInvalidInput
func IsValidationError(err error) bool {
	return IsInvalidInput(err)
}

// IsUnauthorized checks if the error is an authentication error
func IsUnauthorized(err error) bool {
	return TypeOf(err) == ErrUnauthorized
}

// IsTransient checks if the error is a temporary upstream failure
func IsTransient(err error) bool {
	return TypeOf(err) == ErrTransient
}

// IsStorage checks if the error came from the persisted store
func IsStorage(err error) bool {
	return TypeOf(err) == ErrStorage
}

// IsRetryable reports whether an operation failing with err may be retried.
// Only transient errors qualify.
func IsRetryable(err error) bool {
	return IsTransient(err)
}

// AsRateLimit extracts the RateLimitError from err, if any.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if stderrors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, err error) *AppError {
	return New(ErrNotFound, message, err)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, err error) *AppError {
	return New(ErrInvalidInput, message, err)
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string, err error) *AppError {
	return New(ErrUnauthorized, message, err)
}

// NewTransientError creates a new transient error
func NewTransientError(message string, err error) *AppError {
	return New(ErrTransient, message, err)
}

// NewStorageError creates a new storage error
func NewStorageError(message string, err error) *AppError {
	return New(ErrStorage, message, err)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return New(ErrInternal, message, err)
}
