package syncutil

import (
	"sync/atomic"
	"time"

	"github.com/pika-ipc/pika/internal/perr"
)

// CondVar is a process-shared condition variable occupying a single
// uint32 sequence number. Zero value is ready to use.
//
// Wait re-checks predicate after every wake, tolerating spurious wakes per
// spec §4.2. Signal wakes exactly one waiter (no broadcast is required:
// the engine signals on every slot transition, one signal per freed or
// filled slot).
type CondVar struct {
	seq uint32
}

// Wait unlocks mu, blocks until predicate() is true or timeout elapses,
// then relocks mu before returning. timeout == 0 fails immediately if
// predicate() is not already true; timeout < 0 waits indefinitely; timeout
// > 0 bounds the wait. Per spec §4.5/4.6 ordering notes, the mutex is held
// again by the time Wait returns, whether it succeeded or timed out.
func (c *CondVar) Wait(mu *Mutex, predicate func() bool, timeout time.Duration) error {
	if predicate() {
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
	for !predicate() {
		seq := atomic.LoadUint32(&c.seq)
		mu.Unlock()

		remainingNs := int64(-1) // no deadline: futexWaitTimeout blocks indefinitely
		if hasDeadline {
			remainingNs = int64(time.Until(deadline))
		}
		var waitErr error
		if hasDeadline && remainingNs <= 0 {
			waitErr = perr.ErrTimeout
		} else {
			waitErr = futexWaitTimeout(&c.seq, seq, remainingNs)
		}

		// Relock unconditionally (infinite wait), never under the caller's
		// deadline: every caller unlocks mu on any error Wait returns, so
		// Wait must never return without holding mu, even on timeout.
		mu.Lock()

		if waitErr != nil {
			if predicate() {
				return nil
			}
			return waitErr
		}
	}
	return nil
}

// Signal wakes one waiter blocked in Wait on this CondVar.
func (c *CondVar) Signal() {
	atomic.AddUint32(&c.seq, 1)
	futexWake(&c.seq, 1)
}
