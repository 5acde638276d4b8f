// Package errors defines the engine's error taxonomy and classification
// helpers. Services return these kinds directly; the transport layer owns
// any status-code mapping.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind classifies an engine error for the caller.
type Kind int

const (
	// KindValidation - malformed input, caller-fixable, never retried.
	KindValidation Kind = iota + 1
	// KindConflict - business-rule violation at the time of the attempt.
	KindConflict
	// KindNotFound - referenced entity does not exist.
	KindNotFound
	// KindTransient - infrastructure failure, retryable by the caller.
	KindTransient
)

// Error is the concrete error type carried across service boundaries.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns the classification of the error.
func (e *Error) Kind() Kind { return e.kind }

// Conflict sentinels. Compared with errors.Is, so they survive wrapping.
var (
	// ErrQueueDisabled - the global admission gate is off.
	ErrQueueDisabled = &Error{kind: KindConflict, msg: "queue admissions are disabled"}

	// ErrAlreadyPaired - the user already participates in an active pairing.
	ErrAlreadyPaired = &Error{kind: KindConflict, msg: "user already has an active pairing"}

	// ErrBlacklisted - the pair has broken up before and may not re-pair.
	ErrBlacklisted = &Error{kind: KindConflict, msg: "pair is blacklisted"}

	// ErrInvalidScore - a pairing with compatibility score <= 0 was attempted.
	ErrInvalidScore = &Error{kind: KindConflict, msg: "compatibility score must be positive"}

	// ErrInactive - the pairing exists but is no longer active.
	ErrInactive = &Error{kind: KindConflict, msg: "pairing is not active"}

	// ErrNotFound - the referenced record does not exist.
	ErrNotFound = &Error{kind: KindNotFound, msg: "record not found"}
)

// Validation creates a caller-fixable input error.
func Validation(format string, args ...any) error {
	return &Error{kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

// Transient wraps an infrastructure failure so callers can decide to retry.
func Transient(op string, cause error) error {
	return &Error{kind: KindTransient, msg: op + " failed", cause: cause}
}

// Map converts repo/infra errors into engine errors.
// Keeps service layer clean by centralizing error classification.
func Map(err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if stderrors.As(err, &e) {
		return err
	}

	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound

	case stderrors.Is(err, context.DeadlineExceeded),
		stderrors.Is(err, context.Canceled):
		return &Error{kind: KindTransient, msg: "request aborted", cause: err}

	default:
		// anything else out of the store is an infrastructure failure
		return &Error{kind: KindTransient, msg: "store operation failed", cause: err}
	}
}

func isKind(err error, k Kind) bool {
	var e *Error
	return stderrors.As(err, &e) && e.kind == k
}

// IsValidation reports whether err is a malformed-input error.
func IsValidation(err error) bool { return isKind(err, KindValidation) }

// IsConflict reports whether err is a business-rule conflict.
func IsConflict(err error) bool { return isKind(err, KindConflict) }

// IsNotFound reports whether err refers to a missing entity.
func IsNotFound(err error) bool { return isKind(err, KindNotFound) }

// IsTransient reports whether err is a retryable infrastructure failure.
func IsTransient(err error) bool { return isKind(err, KindTransient) }
