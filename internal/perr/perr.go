// Package perr defines the shared error taxonomy used across Pika's
// transport core (token, syncutil, storage, ring, header) so that a
// *perr.Error produced deep in the engine surfaces unchanged through the
// typed façade at the top of the module.
package perr

import (
	"errors"
	"fmt"
)

// Kind classifies an error per the transport's error taxonomy (spec §7).
type Kind int

const (
	KindUnknown Kind = iota
	KindBackingStorage
	KindSyncPrimitive
	KindRingBuffer
	KindTimeout
	KindChannel
)

func (k Kind) String() string {
	switch k {
	case KindBackingStorage:
		return "backing-storage"
	case KindSyncPrimitive:
		return "sync-primitive"
	case KindRingBuffer:
		return "ring-buffer"
	case KindTimeout:
		return "timeout"
	case KindChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// Error is returned by every fallible operation in the transport core.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("pika: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("pika: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, &Error{Kind: KindTimeout}) match any *Error of
// the same Kind, regardless of Op or wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error, optionally wrapping cause (may be nil).
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

var (
	ErrTimeout         = &Error{Kind: KindTimeout}
	ErrChannelMismatch = &Error{Kind: KindChannel}
	ErrRingBuffer      = &Error{Kind: KindRingBuffer}

	// ErrZeroCopyUnsupported is the wrapped cause on AcquireFront/
	// AcquireBack/ReleaseFront/ReleaseBack errors from the lock-free
	// engine, distinct from ErrRingBuffer so errors.Is only matches this
	// specific condition, not every KindRingBuffer error (a bad src/dst
	// length, a nil region, ...).
	ErrZeroCopyUnsupported = errors.New("zero-copy access is not supported on the lock-free engine")
)
