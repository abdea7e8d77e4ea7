// Package keihi holds the domain error type shared across the bot's
// components. Remote-API failures are wrapped at component boundaries with
// the originating user and operation; the Slack dispatcher is the only place
// that turns these into user-visible text.
package keihi

import (
	"errors"
	"fmt"
)

// Kind classifies an error by originating concern.
type Kind int

const (
	// KindOperation is a remote operation failure (sheet write, upload, ...).
	KindOperation Kind = iota + 1
	// KindConfig is a missing or invalid user configuration (no settings row,
	// missing _base template, bad credentials).
	KindConfig
	// KindValidation is invalid user input, detected before any remote call.
	KindValidation
	// KindNotFound is a missing remote resource (settings row, worksheet, file).
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindOperation:
		return "operation"
	case KindConfig:
		return "config"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a domain-tagged error carrying the user and operation for
// diagnostics.
type Error struct {
	Kind    Kind
	UserID  string
	Op      string
	Message string // user-facing, optional
	Err     error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.UserID != "" {
		s += fmt.Sprintf(" (user %s)", e.UserID)
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a domain error wrapping err.
func E(kind Kind, userID, op string, err error) *Error {
	return &Error{Kind: kind, UserID: userID, Op: op, Err: err}
}

// Ef builds a domain error with a formatted user-facing message.
func Ef(kind Kind, userID, op, format string, args ...any) *Error {
	return &Error{Kind: kind, UserID: userID, Op: op, Message: fmt.Sprintf(format, args...)}
}

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool { return kindOf(err) == KindConfig }

// IsValidation reports whether err is an input validation error.
func IsValidation(err error) bool { return kindOf(err) == KindValidation }

// IsNotFound reports whether err is a missing-resource error.
func IsNotFound(err error) bool { return kindOf(err) == KindNotFound }

// IsOperation reports whether err is a remote operation failure.
func IsOperation(err error) bool { return kindOf(err) == KindOperation }
