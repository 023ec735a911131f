package storage

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/pika-ipc/pika/internal/perr"
)

// inProcessRegistry is the process-wide map from channel name to a
// heap-resident byte vector, per spec §4.4. A single mutex guards
// lookup/insert. No endpoint unmaps the vector; the refcount tracked here
// removes the entry when the last Region for that name is closed, after
// which a new OpenInProcess creates a fresh vector.
var (
	registryMu sync.Mutex
	registry   = make(map[string]*inProcessEntry)
)

type inProcessEntry struct {
	buf      []byte
	refCount int
}

// PeekInProcess reports the size of the already-registered byte vector
// for name, if one exists, without acquiring a Region handle on it. A
// caller that must reattach to an existing channel uses this to open with
// the channel's actual established size rather than its own (possibly
// stale or mismatched) request, so a parameter mismatch is diagnosed by
// the channel header rather than masked by a storage-level size error.
func PeekInProcess(name string) (size int, ok bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	e, found := registry[name]
	if !found {
		return 0, false
	}
	return len(e.buf), true
}

// OpenInProcess returns a Region backed by the process-wide byte vector
// for name, creating it with size bytes if this is the first request for
// that name. Subsequent requests for the same name must pass the same
// size, else a KindBackingStorage size-mismatch error is returned (mirroring the shared variant's
// size-mismatch failure for a named OS object).
func OpenInProcess(name string, size int) (Region, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	e, ok := registry[name]
	if !ok {
		buf := make([]byte, size)
		if len(buf) > 0 && uintptr(unsafe.Pointer(&buf[0]))%8 != 0 {
			// The shared variant gets 8-byte alignment for free from
			// page-aligned mmap; make([]byte, ...) doesn't promise it, only
			// the runtime allocator's observed behavior, so check rather
			// than assume (spec §3: backing region alignment >= header
			// alignment).
			return nil, perr.New(perr.KindBackingStorage, "OpenInProcess",
				fmt.Errorf("allocated region for %q is not 8-byte aligned", name))
		}
		e = &inProcessEntry{buf: buf}
		registry[name] = e
	} else if len(e.buf) != size {
		return nil, perr.New(perr.KindBackingStorage, "OpenInProcess",
			fmt.Errorf("size mismatch for %q: existing %d, requested %d", name, len(e.buf), size))
	}
	e.refCount++

	return &inProcessRegion{name: name, entry: e}, nil
}

type inProcessRegion struct {
	name   string
	entry  *inProcessEntry
	closed bool
}

func (r *inProcessRegion) Bytes() []byte { return r.entry.buf }

func (r *inProcessRegion) Close() error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.entry.refCount--
	if r.entry.refCount <= 0 {
		delete(registry, r.name)
	}
	return nil
}
