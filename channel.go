package pika

import (
	"context"
	"fmt"
	"reflect"
	"time"
	"unsafe"

	"github.com/pika-ipc/pika/internal/header"
)

// InfiniteTimeout is the sentinel passed to Send/Receive to block until
// the operation can proceed, per spec §4.5/§4.6. A timeout of exactly 0
// means the opposite: fail immediately if the operation cannot proceed
// right away (spec §8).
const InfiniteTimeout time.Duration = -1

// Role distinguishes which counter a Channel endpoint occupies.
type Role = header.Role

const (
	RoleProducer = header.RoleProducer
	RoleConsumer = header.RoleConsumer
)

// Channel is the typed façade from spec §4.8: it casts T to and from the
// byte slots of the underlying ring engine and forwards connection
// queries to the channel header's rendezvous state. The transport core
// underneath (backing storage, ring engine, header) sees only
// (size, alignment); this is the one place Pika knows about T.
type Channel[T any] struct {
	c *header.Channel
}

// Create validates T, opens or attaches to the named channel, and
// registers the caller as role. Per spec §4.8, T must be fixed-size and
// self-contained: no pointers, slices, maps, channels, interfaces, or
// strings anywhere in its layout, since records are read back from a
// foreign address space where any such reference would dangle.
func Create[T any](name string, queueSize int, role Role, opts ...Option) (*Channel[T], error) {
	var zero T
	if err := validateRecordType(reflect.TypeOf(zero)); err != nil {
		return nil, err
	}

	recordSize := int(unsafe.Sizeof(zero))
	cfg := defaultConfig(recordSize)
	for _, o := range opts {
		o(&cfg)
	}

	params := header.Params{
		Name:            name,
		QueueSize:       queueSize,
		RecordSize:      recordSize,
		RecordAlignment: cfg.recordAlignment,
		Kind:            cfg.kind,
		SPSC:            cfg.spsc,
	}

	c, err := header.Create(params, role)
	if err != nil {
		return nil, err
	}
	return &Channel[T]{c: c}, nil
}

// config holds the channel creation options not determined by T or
// queueSize; see WithKind, WithSPSC and WithRecordAlignment.
type config struct {
	kind            Kind
	spsc            bool
	recordAlignment int
}

func defaultConfig(recordSize int) config {
	return config{
		kind:            InterThread,
		spsc:            false,
		recordAlignment: defaultAlignment(recordSize),
	}
}

// defaultAlignment mirrors the teacher's 64-byte cache-line alignment
// default; records smaller than a cache line get their size rounded up to
// a power of two instead (12 bytes -> 16), so a 4-byte counter record is
// not padded out to a full cache line's worth of slot.
func defaultAlignment(recordSize int) int {
	const cacheLine = 64
	if recordSize >= cacheLine {
		return cacheLine
	}
	a := 1
	for a < recordSize {
		a <<= 1
	}
	if a == 0 {
		a = 1
	}
	return a
}

// Option configures a channel at creation time.
type Option func(*config)

// WithKind selects inter-process (named shared memory) vs inter-thread
// (in-process heap) backing storage. The default is InterThread.
func WithKind(k Kind) Option {
	return func(c *config) { c.kind = k }
}

// WithSPSC selects the lock-free single-producer/single-consumer engine
// instead of the default coarse-locked MPMC engine.
func WithSPSC(spsc bool) Option {
	return func(c *config) { c.spsc = spsc }
}

// WithRecordAlignment overrides the default record alignment, which must
// be a power of two.
func WithRecordAlignment(align int) Option {
	return func(c *config) { c.recordAlignment = align }
}

// validateRecordType rejects record types that could not possibly be read
// back safely from a foreign address space: pointers, slices, maps,
// channels, funcs, interfaces, and strings anywhere in the type, applied
// recursively through structs and arrays.
func validateRecordType(t reflect.Type) error {
	if t == nil {
		return newErr(KindChannel, "validateRecordType", fmt.Errorf("record type must not be nil"))
	}
	switch t.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.String, reflect.UnsafePointer:
		return newErr(KindChannel, "validateRecordType", fmt.Errorf("record type %s is not self-contained: %s is not allowed in a shared record", t, t.Kind()))
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if err := validateRecordType(t.Field(i).Type); err != nil {
				return err
			}
		}
	case reflect.Array:
		return validateRecordType(t.Elem())
	}
	return nil
}

// Connect waits until a peer endpoint exists, per spec §4.7. Passing
// context.Background() reproduces the source's infinite wait; a context
// with a deadline turns the open-ended rendezvous loop into a timed one.
func (c *Channel[T]) Connect(ctx context.Context) error {
	return c.c.Connect(ctx)
}

// IsConnected reports whether a peer endpoint is currently registered.
func (c *Channel[T]) IsConnected() bool {
	return c.c.IsConnected()
}

// Send copies record into the next free slot, blocking up to timeout
// (InfiniteTimeout to block indefinitely). It returns ErrTimeout if the
// deadline elapses before a slot is free.
func (c *Channel[T]) Send(record *T, timeout time.Duration) error {
	return c.c.Engine().Put(recordBytes(record), timeout)
}

// Receive copies the next available record into out, blocking up to
// timeout. It returns ErrTimeout if the deadline elapses before a record
// is available.
func (c *Channel[T]) Receive(out *T, timeout time.Duration) error {
	return c.c.Engine().Get(recordBytes(out), timeout)
}

// SendContext is Send with a context.Context deadline instead of a fixed
// Duration, for callers already threading a context through their call
// chain (supplemental to spec §4.8, which specifies only a Duration).
func (c *Channel[T]) SendContext(ctx context.Context, record *T) error {
	return c.Send(record, timeoutFromContext(ctx))
}

// ReceiveContext is Receive with a context.Context deadline.
func (c *Channel[T]) ReceiveContext(ctx context.Context, out *T) error {
	return c.Receive(out, timeoutFromContext(ctx))
}

func timeoutFromContext(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return InfiniteTimeout
	}
	if d := time.Until(deadline); d > 0 {
		return d
	}
	return 0
}

// AcquireFront/ReleaseFront and AcquireBack/ReleaseBack expose the
// zero-copy slot access from spec §4.5 typed over T. They return
// ErrZeroCopyUnsupported on a channel created with WithSPSC(true).

// AcquireFront returns a pointer to the next free slot for the caller to
// write into directly, bypassing a Send's copy. The caller must pass the
// same *T to ReleaseFront.
func (c *Channel[T]) AcquireFront(timeout time.Duration) (*T, error) {
	ptr, err := c.c.Engine().AcquireFront(timeout)
	if err != nil {
		return nil, err
	}
	return (*T)(ptr), nil
}

// ReleaseFront advances the write index past record, which must be the
// pointer returned by the most recent AcquireFront on this channel.
func (c *Channel[T]) ReleaseFront(record *T) error {
	return c.c.Engine().ReleaseFront(unsafe.Pointer(record))
}

// AcquireBack returns a pointer to the next ready slot for the caller to
// read directly, bypassing a Receive's copy. The caller must pass the
// same *T to ReleaseBack.
func (c *Channel[T]) AcquireBack(timeout time.Duration) (*T, error) {
	ptr, err := c.c.Engine().AcquireBack(timeout)
	if err != nil {
		return nil, err
	}
	return (*T)(ptr), nil
}

// ReleaseBack advances the read index past record, which must be the
// pointer returned by the most recent AcquireBack on this channel.
func (c *Channel[T]) ReleaseBack(record *T) error {
	return c.c.Engine().ReleaseBack(unsafe.Pointer(record))
}

// Stats returns a snapshot of the underlying ring engine's indices.
func (c *Channel[T]) Stats() Stats {
	return c.c.Engine().Stats()
}

// Params returns the channel's registered (possibly peer-reconciled)
// parameters.
func (c *Channel[T]) Params() Params {
	return c.c.Params()
}

// Drop decrements this endpoint's role counter and releases its handle on
// the backing region, unlinking the named OS object if this was the last
// endpoint of an inter-process channel (spec §4.7/§9).
func (c *Channel[T]) Drop() error {
	return c.c.Drop()
}

func recordBytes[T any](record *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(record)), unsafe.Sizeof(*record))
}
