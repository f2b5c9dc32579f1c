// Package hostcoreerr is the closed error taxonomy shared across
// hpos-core: every package that returns a classified failure wraps it
// in an *Error carrying a Kind and whether retrying the same operation
// could succeed.
package hostcoreerr

import (
	"errors"
	"fmt"
)

// Kind discriminates the small set of ways an hpos-core operation can
// fail. It is closed: callers switch on it exhaustively rather than
// string-matching error messages.
type Kind string

const (
	Request        Kind = "request"        // malformed or invalid caller input
	Authentication Kind = "authentication" // identity/claim could not be established
	Database       Kind = "database"       // the store could not complete the operation
	Transport      Kind = "transport"      // the bus or network link failed
	Timeout        Kind = "timeout"        // an operation did not complete in time
	Cryptographic  Kind = "cryptographic"  // signing, verification, or key decoding failed
	Workload       Kind = "workload"       // a workload's runtime or manifest is at fault
	Internal       Kind = "internal"       // a bug or invariant violation, not caller-fixable
)

// defaultRetryable gives New a sensible retryable value per Kind; call
// NewRetryable directly to override it for a specific failure.
var defaultRetryable = map[Kind]bool{
	Request:        false,
	Authentication: false,
	Database:       true,
	Transport:      true,
	Timeout:        true,
	Cryptographic:  false,
	Workload:       false,
	Internal:       false,
}

// Error is a Kind-tagged wrapper around a lower-level cause.
type Error struct {
	Kind      Kind
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// New wraps err as kind, using that kind's default retryable value.
// Returns nil if err is nil, so call sites can wrap unconditionally:
// return hostcoreerr.New(hostcoreerr.Database, err).
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Retryable: defaultRetryable[kind], Err: err}
}

// NewRetryable wraps err as kind with an explicit retryable value,
// overriding the kind's default.
func NewRetryable(kind Kind, retryable bool, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Retryable: retryable, Err: err}
}

// As extracts the first *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// KindOf reports err's classified Kind, or Internal if err was never
// wrapped by this package.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Internal
}

// IsRetryable reports whether retrying the operation that produced err
// could plausibly succeed. Unclassified errors are treated as
// non-retryable, the conservative default.
func IsRetryable(err error) bool {
	e, ok := As(err)
	return ok && e.Retryable
}
