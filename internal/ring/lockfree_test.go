package ring

import (
	"errors"
	"testing"
	"time"

	"github.com/pika-ipc/pika/internal/perr"
)

func newTestLockFree(t *testing.T, queueLength, recordSize uint64) *LockFreeEngine {
	t.Helper()
	dataOff := uintptr(LockFreeAreaSize)
	slots := queueLength + 1
	mem := make([]byte, int(dataOff)+int(slots*recordSize))
	e, err := NewLockFree(mem, 0, dataOff, recordSize, 8, queueLength, true)
	if err != nil {
		t.Fatalf("NewLockFree: %v", err)
	}
	return e
}

func TestLockFreePutGetRoundTrip(t *testing.T) {
	e := newTestLockFree(t, 4, 8)
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := e.Put(src, 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	dst := make([]byte, 8)
	if err := e.Get(dst, 0); err != nil {
		t.Fatalf("Get: %v", err)
	}
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("round-trip mismatch at %d: got %x, want %x", i, dst[i], src[i])
		}
	}
}

func TestLockFreeQueueSizeOneBlocksOnSecondPut(t *testing.T) {
	e := newTestLockFree(t, 1, 4)
	if err := e.Put([]byte{1, 2, 3, 4}, 0); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	err := e.Put([]byte{5, 6, 7, 8}, 10*time.Millisecond)
	if !errors.Is(err, perr.ErrTimeout) {
		t.Fatalf("second Put on a full queue_size=1 engine: got %v, want timeout", err)
	}
}

func TestLockFreeTimeoutZeroFailsFastWhenEmpty(t *testing.T) {
	e := newTestLockFree(t, 4, 4)
	dst := make([]byte, 4)
	if err := e.Get(dst, 0); !errors.Is(err, perr.ErrTimeout) {
		t.Fatalf("Get on an empty queue with timeout=0: got %v, want timeout", err)
	}
}

func TestLockFreeSPSCProducerOrderPreserved(t *testing.T) {
	e := newTestLockFree(t, 4, 8)
	const n = 1000

	done := make(chan error, 1)
	go func() {
		for i := uint64(0); i < n; i++ {
			buf := make([]byte, 8)
			putUint64(buf, i)
			if err := e.Put(buf, time.Second); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for i := uint64(0); i < n; i++ {
		dst := make([]byte, 8)
		if err := e.Get(dst, time.Second); err != nil {
			t.Fatalf("Get %d: %v", i, err)
		}
		if got := getUint64(dst); got != i {
			t.Fatalf("record %d out of order: got %d", i, got)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("producer goroutine: %v", err)
	}
}

func TestLockFreeZeroCopyUnsupported(t *testing.T) {
	e := newTestLockFree(t, 4, 8)

	if _, err := e.AcquireFront(0); !errors.Is(err, perr.ErrRingBuffer) {
		t.Fatalf("AcquireFront: got %v, want a ring-buffer error", err)
	}
	if _, err := e.AcquireBack(0); !errors.Is(err, perr.ErrRingBuffer) {
		t.Fatalf("AcquireBack: got %v, want a ring-buffer error", err)
	}
	if err := e.ReleaseFront(nil); !errors.Is(err, perr.ErrRingBuffer) {
		t.Fatalf("ReleaseFront: got %v, want a ring-buffer error", err)
	}
	if err := e.ReleaseBack(nil); !errors.Is(err, perr.ErrRingBuffer) {
		t.Fatalf("ReleaseBack: got %v, want a ring-buffer error", err)
	}
}
