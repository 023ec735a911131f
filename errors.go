package pika

import (
	"errors"

	"github.com/pika-ipc/pika/internal/perr"
)

// ErrorKind classifies a Pika error per the transport's error taxonomy.
type ErrorKind = perr.Kind

const (
	KindUnknown        = perr.KindUnknown
	KindBackingStorage = perr.KindBackingStorage
	KindSyncPrimitive  = perr.KindSyncPrimitive
	KindRingBuffer     = perr.KindRingBuffer
	KindTimeout        = perr.KindTimeout
	KindChannel        = perr.KindChannel
)

// Error is the error type returned by every Pika operation that can fail.
// It carries a Kind so callers can branch on the error taxonomy from the
// spec without parsing message text.
type Error = perr.Error

// Sentinel errors for errors.Is matching against error kinds, independent
// of the operation or message that produced them.
var (
	ErrTimeout         = perr.ErrTimeout
	ErrChannelMismatch = perr.ErrChannelMismatch

	// ErrZeroCopyUnsupported matches only AcquireFront/AcquireBack/
	// ReleaseFront/ReleaseBack errors on the lock-free engine, not every
	// KindRingBuffer error.
	ErrZeroCopyUnsupported = perr.ErrZeroCopyUnsupported
)

// IsTimeout reports whether err is (or wraps) a timeout error.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func newErr(kind ErrorKind, op string, err error) *Error {
	return perr.New(kind, op, err)
}
