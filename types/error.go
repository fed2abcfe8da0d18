package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the module.
type ErrorCode string

const (
	// ErrTemplateVar means a prompt template referenced an unknown
	// placeholder. Recovered locally; the literal template is used.
	ErrTemplateVar ErrorCode = "TEMPLATE_VAR"
	// ErrRetrievalFailed means the embedding or index backend was
	// unavailable during retrieval. Recovered locally as an empty result.
	ErrRetrievalFailed ErrorCode = "RETRIEVAL_FAILED"
	// ErrWriteFailed means a memory write could not be persisted.
	ErrWriteFailed ErrorCode = "WRITE_FAILED"
	// ErrEmbeddingFailed means the embedder returned an error.
	ErrEmbeddingFailed ErrorCode = "EMBEDDING_FAILED"
	// ErrTokenizerError means the token codec could not count text.
	ErrTokenizerError ErrorCode = "TOKENIZER_ERROR"
	// ErrInvalidRecord means a memory record failed validation.
	ErrInvalidRecord ErrorCode = "INVALID_RECORD"
	// ErrUnknownBackend means no record store backend is registered
	// under the requested name.
	ErrUnknownBackend ErrorCode = "UNKNOWN_BACKEND"
)

// Error is a structured error with a code, message, and optional cause.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// GetErrorCode extracts the error code from an error chain.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable checks whether an error chain is marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
