package syncutil

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pika-ipc/pika/internal/perr"
)

func TestMutexLockUnlockBasic(t *testing.T) {
	var m Mutex
	if err := m.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	m.Unlock()
	if err := m.Lock(); err != nil {
		t.Fatalf("second Lock: %v", err)
	}
	m.Unlock()
}

func TestMutexLockTimedExpires(t *testing.T) {
	var m Mutex
	if err := m.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer m.Unlock()

	start := time.Now()
	err := m.LockTimed(20 * time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, perr.ErrTimeout) {
		t.Fatalf("LockTimed: expected timeout, got %v", err)
	}
	if elapsed > 500*time.Millisecond {
		t.Fatalf("LockTimed took %v, expected close to 20ms", elapsed)
	}
}

func TestMutexSerializesConcurrentIncrements(t *testing.T) {
	var m Mutex
	counter := 0
	const goroutines, perGoroutine = 8, 1000

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				if err := m.Lock(); err != nil {
					t.Errorf("Lock: %v", err)
					return
				}
				counter++
				m.Unlock()
			}
		}()
	}
	wg.Wait()

	if counter != goroutines*perGoroutine {
		t.Fatalf("counter = %d, want %d", counter, goroutines*perGoroutine)
	}
}
