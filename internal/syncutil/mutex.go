// Package syncutil implements the mutex + condition-variable pair from
// spec §4.2 as raw atomic fields, so the pair can be placed directly
// inside a shared-memory backing region and still work identically for
// threads of a single process. Per the design notes' "the mechanism is
// free" allowance, one futex-backed implementation serves both the
// per-process and process-shared contracts; there is no separate
// in-process fast path.
//
// Follows the teacher's futex technique (shm_futex_linux.go): a lock word
// plus futex wait/wake replaces a native process-shared pthread mutex,
// which Go does not expose.
package syncutil

import (
	"sync/atomic"
	"time"

	"github.com/pika-ipc/pika/internal/perr"
)

const (
	unlocked     = 0
	lockedNoWait = 1
	lockedWaiter = 2
)

// Mutex is a process-shared mutex occupying a single uint32. Zero value is
// unlocked. Safe to place at a fixed offset inside a shared-memory region.
type Mutex struct {
	state uint32
}

// Lock blocks until the mutex is acquired, waiting indefinitely.
func (m *Mutex) Lock() error {
	return m.LockTimed(-1)
}

// LockTimed blocks until the mutex is acquired or timeout elapses.
// timeout == 0 fails immediately if the mutex is not already free;
// timeout < 0 waits indefinitely; timeout > 0 bounds the wait. Returns
// perr.ErrTimeout on expiry.
func (m *Mutex) LockTimed(timeout time.Duration) error {
	if atomic.CompareAndSwapUint32(&m.state, unlocked, lockedNoWait) {
		return nil
	}
	if timeout == 0 {
		return perr.ErrTimeout
	}
	var deadline time.Time
	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}
	for {
		old := atomic.SwapUint32(&m.state, lockedWaiter)
		if old == unlocked {
			return nil
		}
		remainingNs := int64(-1) // no deadline: futexWaitTimeout blocks indefinitely
		if hasDeadline {
			remainingNs = int64(time.Until(deadline))
			if remainingNs <= 0 {
				return perr.ErrTimeout
			}
		}
		if err := futexWaitTimeout(&m.state, lockedWaiter, remainingNs); err != nil {
			if !hasDeadline {
				continue
			}
			return err
		}
	}
}

// Unlock releases the mutex, waking one waiter if any were recorded.
func (m *Mutex) Unlock() {
	old := atomic.SwapUint32(&m.state, unlocked)
	if old == lockedWaiter {
		futexWake(&m.state, 1)
	}
}
