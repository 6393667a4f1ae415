// Package core provides shared utilities for the route energy calculator.
package core

import (
	"errors"
	"fmt"
)

// ErrorCode defines standard error codes for calculator failures
type ErrorCode string

// Standard error codes
const (
	// ErrConfiguration reports an invalid vehicle profile parameter.
	ErrConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// ErrMalformedInput reports a route file with a missing or unparsable field.
	ErrMalformedInput ErrorCode = "MALFORMED_INPUT"

	// ErrSanityCheck reports physically implausible derived values,
	// fatal for the containing track only.
	ErrSanityCheck ErrorCode = "SANITY_CHECK_FAILED"

	// ErrInsufficientData reports a track too short for a peak-search window.
	ErrInsufficientData ErrorCode = "INSUFFICIENT_DATA"

	// ErrNoResults reports a commute in which no track survived processing.
	ErrNoResults ErrorCode = "NO_RESULTS"
)

// Error is a calculator error carrying enough context for the caller to
// report which file, track, or point failed.
type Error struct {
	Code  ErrorCode
	Msg   string
	Track string // track identifier (usually the source file name)
	Point int    // point index within the track, -1 when not applicable
	Cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Code, e.Msg)
	if e.Track != "" {
		s += fmt.Sprintf(" (track %q", e.Track)
		if e.Point >= 0 {
			s += fmt.Sprintf(", point %d", e.Point)
		}
		s += ")"
	}
	return s
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:  code,
		Msg:   fmt.Sprintf(format, args...),
		Point: -1,
	}
}

// WithTrack attaches a track identifier to the error.
func (e *Error) WithTrack(track string) *Error {
	e.Track = track
	return e
}

// WithPoint attaches a point index to the error.
func (e *Error) WithPoint(index int) *Error {
	e.Point = index
	return e
}

// WithCause attaches an underlying cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// IsCode reports whether err (or any error it wraps) is a calculator Error
// with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
