/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package geocoding

import (
	"errors"
	"fmt"
)

// ErrQueryTooShort is returned by the normalizer for forward queries shorter than the configured minimum.
// It is not reported to the caller as an error: the lookup answers with an empty list.
var ErrQueryTooShort = errors.New("query is too short")

// ValidationError means the input is invalid and the request must not be repeated as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// QuotaExceededError means the caller's identity has used up its quota for the current window.
type QuotaExceededError struct {
	RetryAfterSeconds int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded, retry after %d seconds", e.RetryAfterSeconds)
}

// UpstreamError means the provider call failed.
// Retryable is true when attempts were exhausted on transient failures.
type UpstreamError struct {
	Status    int
	Retryable bool
	Err       error
}

func (e *UpstreamError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "transient"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s upstream failure, status %d", kind, e.Status)
	}
	return fmt.Sprintf("%s upstream failure, status %d: %v", kind, e.Status, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
