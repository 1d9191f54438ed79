// Package aioerr defines the result-kind taxonomy shared by every go-aio
// component: a small fixed set of kinds, carried with context by *Error,
// whose Unwrap exposes the cause so callers can use errors.Is/errors.As
// through the chain,
// following the teacher's WrapError/cause-chain idiom.
package aioerr

import (
	"errors"
	"fmt"
)

// Kind is one of the fixed result kinds an aio operation can fail with.
type Kind int

const (
	// Interrupted means the operation was cancelled by fiber.Interrupt or
	// by the interrupt check of tasksync.ManualEvent.WaitInterruptible, not
	// by the operation itself.
	Interrupted Kind = iota
	// TimedOut means a deadline or wait timeout elapsed before completion.
	TimedOut
	// IO means the underlying OS/driver call failed (socket, file, poller).
	IO
	// BrokenPipeOnWrite means a write failed because the peer closed its
	// read side; distinguished from IO because callers often want to treat
	// it as a normal stream-end rather than a hard failure.
	BrokenPipeOnWrite
	// LimitExceeded means a configured bound was hit: mailbox overflow
	// under the throw policy, stream.LimitedReader's byte limit, etc.
	LimitExceeded
	// Protocol means data did not conform to an expected wire format
	// (base64, zlib/gzip framing, HTTP-adjacent parsing).
	Protocol
	// InvariantViolation means an internal invariant was violated: misuse
	// detected by a debug assertion (foreign-thread access, double-release,
	// self-deadlock), not an external failure.
	InvariantViolation
)

func (k Kind) String() string {
	switch k {
	case Interrupted:
		return "interrupted"
	case TimedOut:
		return "timed out"
	case IO:
		return "io"
	case BrokenPipeOnWrite:
		return "broken pipe on write"
	case LimitExceeded:
		return "limit exceeded"
	case Protocol:
		return "protocol"
	case InvariantViolation:
		return "invariant violation"
	default:
		return "unknown"
	}
}

// Error is the concrete error type carrying a Kind alongside a wrapped
// cause. Callers match on kind via Is(kind.Sentinel()) or unwrap via
// errors.As to this type's Cause field directly.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Cause)
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for e's Kind, so that
// errors.Is(err, aioerr.Interrupted.Sentinel()) matches regardless of the
// wrapped message or cause.
func (e *Error) Is(target error) bool {
	var sentinel *sentinelError
	if errors.As(target, &sentinel) {
		return sentinel.kind == e.Kind
	}
	return false
}

type sentinelError struct{ kind Kind }

func (s *sentinelError) Error() string { return s.kind.String() }

var sentinels = [...]*sentinelError{
	Interrupted:        {Interrupted},
	TimedOut:           {TimedOut},
	IO:                 {IO},
	BrokenPipeOnWrite:  {BrokenPipeOnWrite},
	LimitExceeded:      {LimitExceeded},
	Protocol:           {Protocol},
	InvariantViolation: {InvariantViolation},
}

// Sentinel returns the comparison target for errors.Is(err, kind.Sentinel()).
func (k Kind) Sentinel() error { return sentinels[k] }

// New builds an *Error of kind k with no wrapped cause.
func New(k Kind, message string) error {
	return &Error{Kind: k, Message: message}
}

// Wrap builds an *Error of kind k wrapping cause, mirroring the teacher's
// WrapError("context failed", originalErr) convenience function.
//
// The result satisfies errors.Is(result, cause) == true (because Unwrap
// exposes cause directly) as well as errors.Is(result, k.Sentinel()) == true.
func Wrap(k Kind, message string, cause error) error {
	if cause == nil {
		return New(k, message)
	}
	return &Error{Kind: k, Message: message, Cause: cause}
}

// Of reports the Kind of err, walking the chain via errors.As, and whether
// err carries one of this package's kinds at all.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err is (or wraps) an *Error of kind k.
func Is(err error, k Kind) bool {
	return errors.Is(err, k.Sentinel())
}
