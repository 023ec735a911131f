//go:build !linux || !(amd64 || arm64)

package syncutil

import (
	"sync/atomic"
	"time"

	"github.com/pika-ipc/pika/internal/perr"
)

// futexWaitTimeout and futexWake have no portable equivalent outside
// Linux; process-shared Mutex/CondVar fall back to a short-sleep spin here
// instead of a true futex. Correctness is unaffected (the atomic
// load/CAS/store protocol is unchanged); only the wait is busier.
func futexWaitTimeout(addr *uint32, val uint32, timeoutNs int64) error {
	hasDeadline := timeoutNs > 0
	var deadline time.Time
	if hasDeadline {
		deadline = time.Now().Add(time.Duration(timeoutNs))
	}
	for atomic.LoadUint32(addr) == val {
		if hasDeadline && time.Now().After(deadline) {
			return perr.ErrTimeout
		}
		time.Sleep(500 * time.Microsecond)
	}
	return nil
}

func futexWake(addr *uint32, n int) {
	// No-op: waiters on this platform are polling, not parked.
}
