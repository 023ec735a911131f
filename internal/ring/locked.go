package ring

import (
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/pika-ipc/pika/internal/perr"
	"github.com/pika-ipc/pika/internal/syncutil"
)

// LockedAreaSize is the fixed number of bytes the locked engine's state
// occupies at the start of its engine area, mirroring the teacher's fixed
// RingHeaderSize budget rather than a computed sizeof (stable across
// builds regardless of padding changes below).
const LockedAreaSize = 64

// lockedState is the locked-engine portion of spec §3's "Locked engine
// state": mutex, two condition variables, and the three indices. It is
// placed directly at a fixed offset inside the caller's backing region, so
// its layout (not just its Go type) must stay stable across endpoints of a
// single build.
type lockedState struct {
	mu         syncutil.Mutex
	notEmpty   syncutil.CondVar
	notFull    syncutil.CondVar
	_          uint32 // pad to 8-byte-align the indices below
	writeIndex uint64
	readIndex  uint64
	count      uint64
	_          [24]byte
}

// LockedEngine is the coarse-locked MPMC ring-buffer engine from spec §4.5.
type LockedEngine struct {
	mem             []byte
	hdrOff          uintptr
	dataOff         uintptr
	recordSize      uint64
	recordAlignment uint64
	queueLength     uint64
}

// NewLocked constructs a LockedEngine over mem at the given offsets. If
// init is true the state is zeroed (fresh header); otherwise the existing
// state in mem is reused as-is (reattaching to an already-registered
// channel). processShared is accepted for contract symmetry with spec
// §4.5's Initialize signature; the futex-based mutex/condvar pair beneath
// it already satisfies both the per-process and process-shared contracts
// (spec §9: "the mechanism is free"), so no separate code path is needed.
func NewLocked(mem []byte, hdrOff, dataOff uintptr, recordSize, recordAlignment, queueLength uint64, init, processShared bool) (*LockedEngine, error) {
	_ = processShared
	if mem == nil || hdrOff+uintptr(LockedAreaSize) > uintptr(len(mem)) {
		return nil, perr.New(perr.KindRingBuffer, "NewLocked", fmt.Errorf("region too small or nil"))
	}
	if hdrOff%8 != 0 {
		return nil, perr.New(perr.KindRingBuffer, "NewLocked", fmt.Errorf("engine area offset %d is not 8-byte aligned", hdrOff))
	}
	e := &LockedEngine{
		mem:             mem,
		hdrOff:          hdrOff,
		dataOff:         dataOff,
		recordSize:      recordSize,
		recordAlignment: recordAlignment,
		queueLength:     queueLength,
	}
	if init {
		s := e.state()
		s.mu = syncutil.Mutex{}
		s.notEmpty = syncutil.CondVar{}
		s.notFull = syncutil.CondVar{}
		s.writeIndex = 0
		s.readIndex = 0
		s.count = 0
	}
	return e, nil
}

func (e *LockedEngine) state() *lockedState {
	return (*lockedState)(unsafe.Pointer(&e.mem[e.hdrOff]))
}

func (e *LockedEngine) dataPtr() unsafe.Pointer {
	return unsafe.Pointer(&e.mem[e.dataOff])
}

func (e *LockedEngine) slot(i uint64) unsafe.Pointer {
	return slotAt(e.dataPtr(), i, e.recordSize)
}

// Put blocks until a slot is free (or timeout elapses), copies src into
// it, advances write_index, and signals one waiting Get.
func (e *LockedEngine) Put(src []byte, timeout time.Duration) error {
	if uint64(len(src)) != e.recordSize {
		return perr.New(perr.KindRingBuffer, "Put", fmt.Errorf("src length %d != record size %d", len(src), e.recordSize))
	}
	s := e.state()
	if err := s.mu.LockTimed(timeout); err != nil {
		return err
	}

	notFull := func() bool { return atomic.LoadUint64(&s.count) < e.queueLength }
	if err := s.notFull.Wait(&s.mu, notFull, timeout); err != nil {
		s.mu.Unlock()
		return err
	}

	wi := atomic.LoadUint64(&s.writeIndex)
	copyRecord(e.slot(wi), unsafe.Pointer(&src[0]), e.recordSize)
	atomic.StoreUint64(&s.writeIndex, (wi+1)%e.queueLength)
	atomic.AddUint64(&s.count, 1)

	s.mu.Unlock()
	s.notEmpty.Signal()
	return nil
}

// Get blocks until a record is available (or timeout elapses), copies it
// into dst, advances read_index, and signals one waiting Put.
func (e *LockedEngine) Get(dst []byte, timeout time.Duration) error {
	if uint64(len(dst)) != e.recordSize {
		return perr.New(perr.KindRingBuffer, "Get", fmt.Errorf("dst length %d != record size %d", len(dst), e.recordSize))
	}
	s := e.state()
	if err := s.mu.LockTimed(timeout); err != nil {
		return err
	}

	notEmpty := func() bool { return atomic.LoadUint64(&s.count) > 0 }
	if err := s.notEmpty.Wait(&s.mu, notEmpty, timeout); err != nil {
		s.mu.Unlock()
		return err
	}

	ri := atomic.LoadUint64(&s.readIndex)
	copyRecord(unsafe.Pointer(&dst[0]), e.slot(ri), e.recordSize)
	atomic.StoreUint64(&s.readIndex, (ri+1)%e.queueLength)
	atomic.AddUint64(&s.count, ^uint64(0)) // -1

	s.mu.Unlock()
	s.notFull.Signal()
	return nil
}

// AcquireFront returns a writable pointer into the next write slot while
// holding the mutex, with the not-full predicate already satisfied. The
// caller must call ReleaseFront(ptr) with the same pointer to advance the
// write index and release the mutex.
func (e *LockedEngine) AcquireFront(timeout time.Duration) (unsafe.Pointer, error) {
	s := e.state()
	if err := s.mu.LockTimed(timeout); err != nil {
		return nil, err
	}
	notFull := func() bool { return atomic.LoadUint64(&s.count) < e.queueLength }
	if err := s.notFull.Wait(&s.mu, notFull, timeout); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return e.slot(atomic.LoadUint64(&s.writeIndex)), nil
}

// ReleaseFront advances write_index and signals one waiting Get, provided
// ptr matches the slot that was current when AcquireFront returned. On
// mismatch the index is not advanced and the mutex remains held (spec
// §4.5/§9: the index must not advance on mismatch; the mutex is left
// locked so the caller's bug is visible rather than silently swallowed).
func (e *LockedEngine) ReleaseFront(ptr unsafe.Pointer) error {
	s := e.state()
	wi := atomic.LoadUint64(&s.writeIndex)
	if ptr != e.slot(wi) {
		return perr.New(perr.KindRingBuffer, "ReleaseFront", fmt.Errorf("released pointer does not match current write slot"))
	}
	atomic.StoreUint64(&s.writeIndex, (wi+1)%e.queueLength)
	atomic.AddUint64(&s.count, 1)
	s.mu.Unlock()
	s.notEmpty.Signal()
	return nil
}

// AcquireBack is the read-side counterpart of AcquireFront.
func (e *LockedEngine) AcquireBack(timeout time.Duration) (unsafe.Pointer, error) {
	s := e.state()
	if err := s.mu.LockTimed(timeout); err != nil {
		return nil, err
	}
	notEmpty := func() bool { return atomic.LoadUint64(&s.count) > 0 }
	if err := s.notEmpty.Wait(&s.mu, notEmpty, timeout); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return e.slot(atomic.LoadUint64(&s.readIndex)), nil
}

// ReleaseBack is the read-side counterpart of ReleaseFront.
func (e *LockedEngine) ReleaseBack(ptr unsafe.Pointer) error {
	s := e.state()
	ri := atomic.LoadUint64(&s.readIndex)
	if ptr != e.slot(ri) {
		return perr.New(perr.KindRingBuffer, "ReleaseBack", fmt.Errorf("released pointer does not match current read slot"))
	}
	atomic.StoreUint64(&s.readIndex, (ri+1)%e.queueLength)
	atomic.AddUint64(&s.count, ^uint64(0))
	s.mu.Unlock()
	s.notFull.Signal()
	return nil
}

// Stats returns a snapshot of the engine's indices and count. It does not
// acquire the mutex: callers observing Stats concurrently with Put/Get may
// see stale values. Each field is read with its own atomic load, so no
// single field is torn, but the three fields may come from different
// moments and need not agree with each other.
func (e *LockedEngine) Stats() Stats {
	s := e.state()
	return Stats{
		QueueLength: e.queueLength,
		Count:       atomic.LoadUint64(&s.count),
		WriteIndex:  atomic.LoadUint64(&s.writeIndex),
		ReadIndex:   atomic.LoadUint64(&s.readIndex),
	}
}
