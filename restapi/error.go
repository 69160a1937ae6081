/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package restapi shapes every outward response of the gateway:
// success payloads are written verbatim, failures as {error, details?, retryable?, retryAfter?}.
package restapi

import (
	"net/http"
	"strings"
	"unicode"
)

// Error is the uniform error body.
type Error struct {
	// Code is a stable machine-readable identifier used in logs and metrics. It is not serialized.
	Code string `json:"-"`

	Message    string `json:"error"`
	Details    string `json:"details,omitempty"`
	Retryable  *bool  `json:"retryable,omitempty"`
	RetryAfter *int   `json:"retryAfter,omitempty"`
}

// Error codes.
// We are using "var" here because some services may want to use different error codes.
var (
	ErrCodeInternal          = "internalError"
	ErrCodeNotFound          = "notFound"
	ErrCodeMethodNotAllowed  = "methodNotAllowed"
	ErrCodeValidation        = "validationError"
	ErrCodeQuotaExceeded     = "quotaExceeded"
	ErrCodeUpstreamTransient = "upstreamTransient"
	ErrCodeUpstreamPermanent = "upstreamPermanent"
)

// Error messages.
// We are using "var" here because some services may want to use different error messages.
var (
	ErrMessageInternal         = "Internal error."
	ErrMessageNotFound         = "Not found."
	ErrMessageMethodNotAllowed = "Method not allowed."
)

// NewError creates a new Error with specified code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewInternalError creates a generic internal error which never exposes the underlying cause.
func NewInternalError() *Error {
	return NewError(ErrCodeInternal, ErrMessageInternal).WithRetryable(false)
}

// WithDetails sets human-readable details.
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// WithRetryable tells the caller whether repeating the same request later may succeed.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = &retryable
	return e
}

// WithRetryAfter sets the number of seconds the caller should wait before retrying.
func (e *Error) WithRetryAfter(seconds int) *Error {
	e.RetryAfter = &seconds
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + " " + e.Details
	}
	return e.Message
}

func httpCode2ErrorCode(httpCode int) string {
	if httpCode == http.StatusInternalServerError {
		return ErrCodeInternal
	}
	var builder strings.Builder
	capitalizeNext := false
	for _, char := range http.StatusText(httpCode) {
		if unicode.IsSpace(char) {
			capitalizeNext = true
			continue
		}
		if capitalizeNext {
			builder.WriteRune(unicode.ToTitle(char))
			capitalizeNext = false
			continue
		}
		builder.WriteRune(unicode.ToLower(char))
	}
	return builder.String()
}
