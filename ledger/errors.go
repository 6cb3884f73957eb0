/*
errors.go - Error taxonomy shared by the ledger and invoice packages

PURPOSE:
  Callers need to tell failures apart: a validation error must not be
  retried, a concurrency error may be. Every error leaving the core is
  classified into exactly one Kind.

ERROR KINDS:
  validation   Bad or missing fields, unknown foreign keys, over-payment
  not_found    Unknown invoice id
  concurrency  Lost update detected on a product stock adjustment
  persistence  Underlying store failure

USAGE:
  if errors.Is(err, ledger.ErrValidation) { ... }
  switch ledger.KindOf(err) { ... }

SEE ALSO:
  - api/errors.go: Kind to HTTP status mapping
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrConcurrency = errors.New("concurrent modification detected")
	ErrPersistence = errors.New("persistence failure")
)

type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindConcurrency Kind = "concurrency"
	KindPersistence Kind = "persistence"
)

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindConcurrency:
		return ErrConcurrency
	default:
		return ErrPersistence
	}
}

// =============================================================================
// STRUCTURED ERROR
// =============================================================================

// Error carries the kind, the failing operation and a human readable message.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Fields  map[string]string // per-field validation failures, if any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// ValidationFields reports several field-level failures at once.
func ValidationFields(op string, fields map[string]string) error {
	return &Error{Kind: KindValidation, Op: op, Message: "invalid fields", Fields: fields}
}

func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Concurrency(op, format string, args ...any) error {
	return &Error{Kind: KindConcurrency, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Persistence wraps a store failure. Errors that already carry a kind are
// returned unchanged so that a validation error raised inside a
// transaction is not reclassified on its way out.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// KindOf classifies err. Unclassified errors count as persistence failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrency)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
