// Package apperr defines the small error taxonomy shared across the request
// engine. Every user-facing error is one of these kinds; the API layer maps
// kinds to HTTP status codes in one place instead of scattering status
// constants through the handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the internal classification of an error, independent of the HTTP
// status it eventually produces (which a per-database auth/macro override
// can customize).
type Kind int

const (
	KindBadRequest Kind = iota
	KindForbidden
	KindUnauthorized
	KindNotFound
	KindConflict
	KindBusy
	KindEngine
	KindFatal
)

// Error wraps an underlying cause with a Kind and an optional item index,
// so the transaction executor can report "which item failed" per §7.
type Error struct {
	Kind  Kind
	Msg   string
	Index int // -1 when not applicable to a single request item
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Index: -1}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Index: -1, Cause: cause}
}

// WithIndex returns a copy of e annotated with the failing item's index.
func (e *Error) WithIndex(idx int) *Error {
	cp := *e
	cp.Index = idx
	return &cp
}

func BadRequest(format string, args ...any) *Error {
	return New(KindBadRequest, fmt.Sprintf(format, args...))
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Busy(format string, args ...any) *Error {
	return New(KindBusy, fmt.Sprintf(format, args...))
}

func Engine(cause error) *Error {
	return Wrap(KindEngine, "engine error", cause)
}

// Status maps a Kind to its default HTTP status, per spec §4.8 / §7.
// Callers that support a custom override (auth, macro/backup web calls)
// apply that override on top of this default.
func Status(kind Kind) int {
	switch kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindBusy:
		return http.StatusServiceUnavailable
	case KindEngine:
		return http.StatusInternalServerError
	case KindFatal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// As extracts an *Error from err, synthesizing a KindEngine wrapper for
// anything that isn't already classified (e.g. a raw driver error).
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Engine(err)
}
