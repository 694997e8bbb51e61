// Package faults classifies pipeline failures so retry decisions live in
// one place instead of ad-hoc string matching at each call site.
package faults

import (
	"errors"
	"fmt"
)

// Kind buckets an error by how the pipeline must react to it.
type Kind string

const (
	// KindValidation marks a malformed candidate or an out-of-vocabulary
	// value. The record is rejected and never retried.
	KindValidation Kind = "validation"
	// KindTransient marks timeouts, 5xx responses and connection failures.
	// Bounded retry, then logged as error.
	KindTransient Kind = "transient"
	// KindQuota marks a rate/quota signal from the classification boundary.
	// Backoff and credential rotation apply before giving up.
	KindQuota Kind = "quota"
	// KindParse marks a classification response without a usable JSON
	// array. The whole batch fails; no partial salvage.
	KindParse Kind = "parse"
	// KindPermanent marks a definitive remote rejection (4xx payload
	// errors). No retry.
	KindPermanent Kind = "permanent"
)

// Error wraps a cause with its kind and the failing operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err under the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validationf builds a validation error from a format string.
func Validationf(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// Transient wraps err as retryable.
func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Quota wraps err as a quota-exceeded signal.
func Quota(op string, err error) *Error {
	return &Error{Kind: KindQuota, Op: op, Err: err}
}

// Parsef builds a parse error from a format string.
func Parsef(op, format string, args ...any) *Error {
	return &Error{Kind: KindParse, Op: op, Err: fmt.Errorf(format, args...)}
}

// Permanent wraps err as non-retryable.
func Permanent(op string, err error) *Error {
	return &Error{Kind: KindPermanent, Op: op, Err: err}
}

// KindOf extracts the kind of err; unclassified errors count as transient
// so unknown infrastructure failures still get a bounded retry.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransient
}

// Retryable reports whether the pipeline may attempt the operation again.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindQuota:
		return true
	default:
		return false
	}
}
