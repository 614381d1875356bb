package domain

import (
	"errors"
	"time"
)

// Common domain errors
var (
	ErrNotFound          = errors.New("download not found")
	ErrInvalidState      = errors.New("invalid download state")
	ErrInsufficientSpace = errors.New("insufficient disk space")
	ErrInvalidInput      = errors.New("invalid input")
)

// ErrorKind categorizes a transfer failure
type ErrorKind string

const (
	KindNetwork           ErrorKind = "network"
	KindHTTPStatus        ErrorKind = "http_status"
	KindStreamIO          ErrorKind = "stream_io"
	KindInsufficientSpace ErrorKind = "insufficient_space"
	KindInvalidInput      ErrorKind = "invalid_input"
)

// TransferError is a classified transfer failure.
// Message is short and user-facing; Err keeps the underlying cause.
type TransferError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Err        error
}

// Error returns the user-facing message
func (e *TransferError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "transfer failed"
}

// Unwrap returns the underlying error
func (e *TransferError) Unwrap() error {
	return e.Err
}

// NewTransferError creates a new classified transfer error
func NewTransferError(kind ErrorKind, message string, err error) *TransferError {
	return &TransferError{Kind: kind, Message: message, Err: err}
}

// ErrorKindOf returns the kind of a classified error, or "" if unclassified
func ErrorKindOf(err error) ErrorKind {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// RetryableError marks a failure that the request-stage retry loop may retry.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
}

// Error returns the error message
func (e *RetryableError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "retryable error"
}

// Unwrap returns the underlying error
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error, retryAfter time.Duration) *RetryableError {
	return &RetryableError{Err: err, RetryAfter: retryAfter}
}

// IsRetryable returns true if the error should be retried
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// GetRetryAfter returns the retry duration if the error is retryable
func GetRetryAfter(err error) (time.Duration, bool) {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.RetryAfter, true
	}
	return 0, false
}
