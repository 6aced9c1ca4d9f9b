package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested paper was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownSource indicates a source selector that names no registered source.
	ErrUnknownSource = errors.New("unknown source")

	// ErrRateLimited indicates that the request was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that an external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrInternalError indicates an internal error.
	ErrInternalError = errors.New("internal error")
)

// ErrorKind classifies an error for callers that must tell "empty" from "failed".
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindNotFound      ErrorKind = "not_found"
	KindInvalidInput  ErrorKind = "invalid_input"
	KindUnknownSource ErrorKind = "unknown_source"
	KindRateLimited   ErrorKind = "rate_limited"
	KindUpstream      ErrorKind = "upstream"
	KindTimeout       ErrorKind = "timeout"
	KindCanceled      ErrorKind = "canceled"
	KindInternal      ErrorKind = "internal"
)

// KindOf returns the ErrorKind of err, or KindNone for a nil error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var (
		validationErr *ValidationError
		unknownErr    *UnknownSourceError
		externalErr   *ExternalAPIError
	)
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.As(err, &unknownErr), errors.Is(err, ErrUnknownSource):
		return KindUnknownSource
	case errors.As(err, &validationErr), errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &externalErr), errors.Is(err, ErrServiceUnavailable):
		return KindUpstream
	default:
		return KindInternal
	}
}

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a paper that could not be found.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// UnknownSourceError reports a source selector that is neither a registered
// source nor SelectorAll.
type UnknownSourceError struct {
	Selector string
	Valid    []string
}

// Error implements the error interface.
func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("invalid source '%s'. Available sources: %s", e.Selector, strings.Join(e.Valid, ", "))
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *UnknownSourceError) Unwrap() error {
	return ErrUnknownSource
}

// RateLimitError provides details about a rate limit error.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ExternalAPIError provides details about an external API error.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s API error: %s", e.Source, e.Message)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewUnknownSourceError creates a new UnknownSourceError. valid should already
// include SelectorAll when it is an acceptable choice.
func NewUnknownSourceError(selector string, valid []string) *UnknownSourceError {
	return &UnknownSourceError{
		Selector: selector,
		Valid:    valid,
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}
