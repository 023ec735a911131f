package token

import (
	"sync"
	"testing"
	"time"
)

func TestThreadTokenSerializesAcquirers(t *testing.T) {
	name := "test-thread-token"
	counter := 0
	const goroutines, perGoroutine = 8, 200

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				tok, err := NewThread(name)
				if err != nil {
					t.Errorf("NewThread: %v", err)
					return
				}
				if err := tok.Acquire(); err != nil {
					t.Errorf("Acquire: %v", err)
					return
				}
				counter++
				if err := tok.Release(); err != nil {
					t.Errorf("Release: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if counter != goroutines*perGoroutine {
		t.Fatalf("counter = %d, want %d", counter, goroutines*perGoroutine)
	}
}

func TestThreadTokenDifferentNamesDoNotCollide(t *testing.T) {
	a, err := NewThread("test-thread-token-a")
	if err != nil {
		t.Fatalf("NewThread a: %v", err)
	}
	b, err := NewThread("test-thread-token-b")
	if err != nil {
		t.Fatalf("NewThread b: %v", err)
	}

	if err := a.Acquire(); err != nil {
		t.Fatalf("Acquire a: %v", err)
	}
	defer a.Release()

	done := make(chan error, 1)
	go func() {
		if err := b.Acquire(); err != nil {
			done <- err
			return
		}
		done <- b.Release()
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Acquire/Release b: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("token for a different name was blocked by a's holder")
	}
}

func TestProcessTokenRoundTrip(t *testing.T) {
	tok, err := NewProcess("test-process-token")
	if err != nil {
		t.Fatalf("NewProcess: %v", err)
	}
	if err := tok.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := tok.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}
