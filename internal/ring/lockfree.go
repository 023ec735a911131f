package ring

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/pika-ipc/pika/internal/perr"
)

// LockFreeAreaSize is the fixed number of bytes the lock-free engine's
// state occupies at the start of its engine area (head, padding, and
// tail), sized the same way the teacher pads its ring indices to avoid
// false sharing between producer and consumer cache lines. It must be at
// least sizeof(lockfreeState) (64 bytes) so header.DataOffset never
// places slot 0 on top of the tail field.
const LockFreeAreaSize = 64

type lockfreeState struct {
	head uint64
	_    [24]byte // puts tail 32 bytes after head; both share one 64-byte line
	tail uint64
	_    [24]byte // pad lockfreeState out to a full cache line
}

// LockFreeEngine is the single-producer/single-consumer ring-buffer engine
// from spec §4.6: acquire/release atomics on head/tail, busy-wait with
// timeout, no OS thread suspension, internal_queue_length = queue_length+1
// slots (one sentinel distinguishes full from empty without a count).
type LockFreeEngine struct {
	mem              []byte
	hdrOff           uintptr
	dataOff          uintptr
	recordSize       uint64
	recordAlignment  uint64
	internalQueueLen uint64 // queue_length + 1
}

// NewLockFree constructs a LockFreeEngine over mem at the given offsets.
// queueLength is the user-requested capacity; the engine internally uses
// queueLength+1 slots.
func NewLockFree(mem []byte, hdrOff, dataOff uintptr, recordSize, recordAlignment, queueLength uint64, init bool) (*LockFreeEngine, error) {
	if mem == nil || hdrOff+uintptr(LockFreeAreaSize) > uintptr(len(mem)) {
		return nil, perr.New(perr.KindRingBuffer, "NewLockFree", fmt.Errorf("region too small or nil"))
	}
	if hdrOff%8 != 0 {
		return nil, perr.New(perr.KindRingBuffer, "NewLockFree", fmt.Errorf("engine area offset %d is not 8-byte aligned", hdrOff))
	}
	e := &LockFreeEngine{
		mem:              mem,
		hdrOff:           hdrOff,
		dataOff:          dataOff,
		recordSize:       recordSize,
		recordAlignment:  recordAlignment,
		internalQueueLen: queueLength + 1,
	}
	if init {
		s := e.state()
		atomic.StoreUint64(&s.head, 0)
		atomic.StoreUint64(&s.tail, 0)
	}
	return e, nil
}

func (e *LockFreeEngine) state() *lockfreeState {
	return (*lockfreeState)(unsafe.Pointer(&e.mem[e.hdrOff]))
}

func (e *LockFreeEngine) dataPtr() unsafe.Pointer {
	return unsafe.Pointer(&e.mem[e.dataOff])
}

func (e *LockFreeEngine) slot(i uint64) unsafe.Pointer {
	return slotAt(e.dataPtr(), i, e.recordSize)
}

// spinWait busy-waits, periodically yielding the OS thread via
// runtime.Gosched, until condition() is true or timeout elapses. timeout
// == 0 fails immediately if condition() is not already true; timeout < 0
// waits indefinitely; timeout > 0 bounds the wait (spec §8). It never
// parks the calling goroutine on a futex or channel, per spec §4.6/§5: the
// lock-free engine must not suspend the OS thread.
func spinWait(condition func() bool, timeout time.Duration) error {
	if condition() {
		return nil
	}
	var deadline time.Time
	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	} else if timeout == 0 {
		return perr.ErrTimeout
	}
	for {
		runtime.Gosched()
		if condition() {
			return nil
		}
		if hasDeadline && time.Now().After(deadline) {
			if condition() {
				return nil
			}
			return perr.ErrTimeout
		}
	}
}

// Put is the sole producer's entry point. It busy-waits for a free slot,
// copies src in, then release-stores the new tail.
func (e *LockFreeEngine) Put(src []byte, timeout time.Duration) error {
	if uint64(len(src)) != e.recordSize {
		return perr.New(perr.KindRingBuffer, "Put", fmt.Errorf("src length %d != record size %d", len(src), e.recordSize))
	}
	s := e.state()
	tail := atomic.LoadUint64(&s.tail) // relaxed: only the producer writes tail
	next := (tail + 1) % e.internalQueueLen

	notFull := func() bool { return next != atomic.LoadUint64(&s.head) }
	if err := spinWait(notFull, timeout); err != nil {
		return err
	}

	copyRecord(e.slot(tail), unsafe.Pointer(&src[0]), e.recordSize)
	atomic.StoreUint64(&s.tail, next) // release: publishes the copy above
	return nil
}

// Get is the sole consumer's entry point. It busy-waits for an available
// record, copies it out, then release-stores the new head.
func (e *LockFreeEngine) Get(dst []byte, timeout time.Duration) error {
	if uint64(len(dst)) != e.recordSize {
		return perr.New(perr.KindRingBuffer, "Get", fmt.Errorf("dst length %d != record size %d", len(dst), e.recordSize))
	}
	s := e.state()
	head := atomic.LoadUint64(&s.head) // relaxed: only the consumer writes head

	notEmpty := func() bool { return head != atomic.LoadUint64(&s.tail) }
	if err := spinWait(notEmpty, timeout); err != nil {
		return err
	}

	copyRecord(unsafe.Pointer(&dst[0]), e.slot(head), e.recordSize)
	atomic.StoreUint64(&s.head, (head+1)%e.internalQueueLen) // release
	return nil
}

// AcquireFront is unsupported on the lock-free engine (spec §4.6/§8).
func (e *LockFreeEngine) AcquireFront(timeout time.Duration) (unsafe.Pointer, error) {
	return nil, perr.New(perr.KindRingBuffer, "AcquireFront", perr.ErrZeroCopyUnsupported)
}

// ReleaseFront is unsupported on the lock-free engine.
func (e *LockFreeEngine) ReleaseFront(ptr unsafe.Pointer) error {
	return perr.New(perr.KindRingBuffer, "ReleaseFront", perr.ErrZeroCopyUnsupported)
}

// AcquireBack is unsupported on the lock-free engine.
func (e *LockFreeEngine) AcquireBack(timeout time.Duration) (unsafe.Pointer, error) {
	return nil, perr.New(perr.KindRingBuffer, "AcquireBack", perr.ErrZeroCopyUnsupported)
}

// ReleaseBack is unsupported on the lock-free engine.
func (e *LockFreeEngine) ReleaseBack(ptr unsafe.Pointer) error {
	return perr.New(perr.KindRingBuffer, "ReleaseBack", perr.ErrZeroCopyUnsupported)
}

// Stats returns a snapshot of head/tail. QueueLength reports the
// user-visible capacity (internal_queue_length - 1).
func (e *LockFreeEngine) Stats() Stats {
	s := e.state()
	return Stats{
		QueueLength: e.internalQueueLen - 1,
		WriteIndex:  atomic.LoadUint64(&s.tail),
		ReadIndex:   atomic.LoadUint64(&s.head),
	}
}
