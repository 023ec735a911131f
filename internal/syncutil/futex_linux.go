//go:build linux && (amd64 || arm64)

package syncutil

import (
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/pika-ipc/pika/internal/perr"
)

// The futex ops carry no FUTEX_PRIVATE_FLAG: a private futex is keyed on
// the calling process's address space, so a wake issued by another process
// mapping the same shared region would never reach the waiter.
const (
	futexWaitShared = 0 // FUTEX_WAIT
	futexWakeShared = 1 // FUTEX_WAKE
)

// futexWaitTimeout blocks while *addr == val, waking on a matching
// futexWake, a spurious signal, or timeoutNs elapsing (<= 0 waits
// indefinitely). It returns perr.ErrTimeout on expiry; callers must
// re-check their condition after it returns nil, since a wake does not
// itself guarantee the condition changed.
func futexWaitTimeout(addr *uint32, val uint32, timeoutNs int64) error {
	if atomic.LoadUint32(addr) != val {
		return nil
	}

	// Syscall6, not RawSyscall6: the wait blocks in the kernel, and Syscall6
	// tells the Go scheduler so, letting other goroutines (including the one
	// that will call futexWake) run even with GOMAXPROCS=1.
	var errno syscall.Errno
	if timeoutNs > 0 {
		ts := syscall.NsecToTimespec(timeoutNs)
		_, _, errno = syscall.Syscall6(
			syscall.SYS_FUTEX,
			uintptr(unsafe.Pointer(addr)),
			futexWaitShared,
			uintptr(val),
			uintptr(unsafe.Pointer(&ts)),
			0, 0,
		)
	} else {
		// NULL timespec: the kernel blocks until FUTEX_WAKE, matching the
		// teacher's shm_futex_linux.go infinite-wait call.
		_, _, errno = syscall.Syscall6(
			syscall.SYS_FUTEX,
			uintptr(unsafe.Pointer(addr)),
			futexWaitShared,
			uintptr(val),
			0, 0, 0,
		)
	}
	switch errno {
	case 0, syscall.EAGAIN, syscall.EINTR:
		return nil
	case syscall.ETIMEDOUT:
		return perr.ErrTimeout
	default:
		return perr.New(perr.KindSyncPrimitive, "futexWaitTimeout", errno)
	}
}

// futexWake wakes up to n waiters blocked on addr.
func futexWake(addr *uint32, n int) {
	syscall.RawSyscall6(
		syscall.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexWakeShared,
		uintptr(n),
		0, 0, 0,
	)
}
