package header

import (
	"sync/atomic"
	"unsafe"

	"github.com/pika-ipc/pika/internal/ring"
)

// HeaderSize is the fixed size, in bytes, of the channel header at offset 0
// of every backing region (spec §3/§6). It is stable across builds: the
// struct below must never grow past it without bumping this constant and
// re-deriving every layout constant downstream, the same discipline the
// teacher applies to SegmentHeaderSize/RingHeaderSize.
const HeaderSize = 64

// Header is the channel header from spec §3: one-time registration flag,
// producer/consumer counters, and the immutable-after-registration shape
// parameters. It is placed directly at offset 0 of a caller-supplied byte
// region via unsafe.Pointer, so field order and size must not change.
type Header struct {
	registered      uint32 // atomic bool, false->true exactly once
	spscMode        uint32 // atomic bool, immutable once registered
	producerCount   uint32 // atomic
	consumerCount   uint32 // atomic
	queueSize       uint64 // atomic, immutable once registered
	recordSize      uint64 // atomic, immutable once registered
	recordAlignment uint64 // atomic, immutable once registered
	_               [24]byte
}

// View casts offset hdrOff within mem to a *Header. Callers are
// responsible for ensuring mem is at least hdrOff+HeaderSize bytes and
// hdrOff is 8-byte aligned.
func View(mem []byte, hdrOff uintptr) *Header {
	return (*Header)(unsafe.Pointer(&mem[hdrOff]))
}

// TryRegister atomically transitions registered from false to true,
// reporting whether this call performed the transition. Exactly one
// endpoint racing to create a channel observes true; every other endpoint
// (including later reattachments) observes false and must instead
// validate its parameters against the already-registered header.
func (h *Header) TryRegister() bool {
	return atomic.CompareAndSwapUint32(&h.registered, 0, 1)
}

func (h *Header) Registered() bool {
	return atomic.LoadUint32(&h.registered) != 0
}

func (h *Header) SPSC() bool {
	return atomic.LoadUint32(&h.spscMode) != 0
}

func (h *Header) setSPSC(v bool) {
	var n uint32
	if v {
		n = 1
	}
	atomic.StoreUint32(&h.spscMode, n)
}

func (h *Header) QueueSize() uint64       { return atomic.LoadUint64(&h.queueSize) }
func (h *Header) RecordSize() uint64      { return atomic.LoadUint64(&h.recordSize) }
func (h *Header) RecordAlignment() uint64 { return atomic.LoadUint64(&h.recordAlignment) }

func (h *Header) ProducerCount() uint32 { return atomic.LoadUint32(&h.producerCount) }
func (h *Header) ConsumerCount() uint32 { return atomic.LoadUint32(&h.consumerCount) }

func (h *Header) incProducerCount() uint32 { return atomic.AddUint32(&h.producerCount, 1) }
func (h *Header) incConsumerCount() uint32 { return atomic.AddUint32(&h.consumerCount, 1) }

// decProducerCount and decConsumerCount use the two's-complement trick for
// atomic decrement, same as the ring engines' count field.
func (h *Header) decProducerCount() uint32 { return atomic.AddUint32(&h.producerCount, ^uint32(0)) }
func (h *Header) decConsumerCount() uint32 { return atomic.AddUint32(&h.consumerCount, ^uint32(0)) }

// engineAreaSize returns the number of bytes the embedded ring engine's
// fixed-layout state occupies, which depends on which engine spscMode
// selects.
func engineAreaSize(spsc bool) uint64 {
	if spsc {
		return uint64(ring.LockFreeAreaSize)
	}
	return uint64(ring.LockedAreaSize)
}

func alignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

// EngineOffset is the fixed offset of the engine state area, immediately
// after the header. HeaderSize is already a multiple of 8, so no further
// alignment is needed here.
func EngineOffset() uint64 {
	return HeaderSize
}

// DataOffset returns the offset of slot 0 for a channel with the given
// parameters: the smallest offset at or after the engine area's end that
// is a multiple of record_alignment (spec §3/§6).
func DataOffset(p Params) uint64 {
	engineEnd := EngineOffset() + engineAreaSize(p.SPSC)
	return alignUp(engineEnd, uint64(p.RecordAlignment))
}

// SlotCount returns the number of record slots following the data offset:
// queue_size for the locked engine, queue_size+1 for the lock-free engine
// (one sentinel slot distinguishes full from empty without a count).
func SlotCount(p Params) uint64 {
	n := uint64(p.QueueSize)
	if p.SPSC {
		n++
	}
	return n
}

// TotalSize returns the number of bytes the backing region must hold for
// a channel with the given parameters: header + engine area (with
// alignment padding) + slot region.
func TotalSize(p Params) uint64 {
	return DataOffset(p) + SlotCount(p)*uint64(p.RecordSize)
}
