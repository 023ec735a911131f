// Package ring implements the two ring-buffer engines from spec §4.5/§4.6:
// a coarse-locked MPMC engine supporting blocking Put/Get with timeouts and
// optional zero-copy front/back access, and a lock-free SPSC engine using
// acquire/release atomics and busy-wait. Both sit on a caller-supplied byte
// region and a fixed slot layout (spec §3): engine state at a fixed offset,
// followed by exactly queue_length (locked) or queue_length+1 (lock-free)
// record slots.
package ring

import (
	"time"
	"unsafe"
)

// Stats is a read-only snapshot of engine state, for diagnostics (mirrors
// the teacher's RingState/DebugState).
type Stats struct {
	QueueLength uint64
	Count       uint64 // locked engine only; 0 for lock-free snapshots
	WriteIndex  uint64
	ReadIndex   uint64
}

// Engine is the contract both ring-buffer implementations satisfy. Put and
// Get copy record_size bytes; src/dst must be exactly that length.
//
// Every timeout parameter on this interface follows the same convention
// (spec §8): timeout == 0 fails immediately with ErrTimeout if the
// operation cannot proceed right away; timeout < 0 waits indefinitely;
// timeout > 0 bounds the wait to that duration.
type Engine interface {
	Put(src []byte, timeout time.Duration) error
	Get(dst []byte, timeout time.Duration) error

	// AcquireFront/ReleaseFront and AcquireBack/ReleaseBack implement the
	// zero-copy front/back pair from spec §4.5. The lock-free engine does
	// not support them and returns ErrZeroCopyUnsupported.
	AcquireFront(timeout time.Duration) (unsafe.Pointer, error)
	ReleaseFront(ptr unsafe.Pointer) error
	AcquireBack(timeout time.Duration) (unsafe.Pointer, error)
	ReleaseBack(ptr unsafe.Pointer) error

	Stats() Stats
}

// slotAt returns a pointer to slot i within a data area that starts at
// dataPtr and holds slots of recordSize bytes each.
func slotAt(dataPtr unsafe.Pointer, i uint64, recordSize uint64) unsafe.Pointer {
	return unsafe.Pointer(uintptr(dataPtr) + uintptr(i*recordSize))
}

func copyRecord(dst, src unsafe.Pointer, recordSize uint64) {
	dstSlice := unsafe.Slice((*byte)(dst), recordSize)
	srcSlice := unsafe.Slice((*byte)(src), recordSize)
	copy(dstSlice, srcSlice)
}
