// Package apperr defines the error kinds shared by the seating,
// catalog, inventory and order services.  Handlers switch on the kind
// to choose an HTTP status, so every operation reports a typed failure
// rather than a generic one.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// NotFound means a restaurant, user, variation or category could
	// not be resolved.  Always detected before any mutation.
	NotFound Kind = iota + 1
	// InvalidInput covers malformed requests such as a non-positive
	// party size or release amount.
	InvalidInput
	// Conflict signals state that forbids the operation, e.g. the user
	// is already queued or already seated.
	Conflict
	// RemoteRetryable is an external POS failure caused by transport
	// problems or a 5xx response; the same logical attempt may be
	// retried with a fresh idempotency token.
	RemoteRetryable
	// RemoteFatal is an external POS failure caused by a 4xx response;
	// retrying the identical request will not help.
	RemoteFatal
	// Inconsistency means the remote call succeeded but the local
	// persistence step failed (or vice versa).  The stores have
	// diverged and need reconciliation, not a blind retry.
	Inconsistency
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case InvalidInput:
		return "invalid_input"
	case Conflict:
		return "conflict"
	case RemoteRetryable:
		return "remote_retryable"
	case RemoteFatal:
		return "remote_fatal"
	case Inconsistency:
		return "inconsistency"
	}
	return "unknown"
}

// Error carries a kind, a human message and an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }

// Remote reports whether err is an external POS failure of either
// classification.
func Remote(err error) bool {
	k := KindOf(err)
	return k == RemoteRetryable || k == RemoteFatal
}
