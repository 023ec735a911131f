//go:build unix

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/pika-ipc/pika/internal/perr"
)

// segmentPath derives the backing file path for a named shared-memory
// object from a channel name (which, for inter-process channels, the
// caller has already validated starts with '/'). /dev/shm is preferred
// when present (tmpfs, no disk I/O); otherwise the host temp directory is
// used, mirroring the teacher's generateSegmentPath fallback.
func segmentPath(name string) string {
	base := "pika_" + strings.TrimPrefix(name, "/")
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return filepath.Join("/dev/shm", base)
	}
	return filepath.Join(os.TempDir(), base)
}

// OpenShared opens (creating if absent) the named shared-memory object for
// name and maps exactly size bytes read-write into the caller's address
// space, per spec §4.3. If the object already exists with a different
// size, it fails with a KindBackingStorage size-mismatch error rather than
// truncating or growing it.
func OpenShared(name string, size int) (Region, error) {
	if !strings.HasPrefix(name, "/") {
		return nil, perr.New(perr.KindBackingStorage, "OpenShared", fmt.Errorf("shared-memory channel name %q must start with '/'", name))
	}
	path := segmentPath(name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, perr.New(perr.KindBackingStorage, "OpenShared", fmt.Errorf("open %s: %w", path, err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, perr.New(perr.KindBackingStorage, "OpenShared", fmt.Errorf("stat %s: %w", path, err))
	}

	if info.Size() == 0 {
		if err := f.Truncate(int64(size)); err != nil {
			return nil, perr.New(perr.KindBackingStorage, "OpenShared", fmt.Errorf("truncate %s: %w", path, err))
		}
	} else if info.Size() != int64(size) {
		return nil, perr.New(perr.KindBackingStorage, "OpenShared",
			fmt.Errorf("size mismatch for %q: existing %d, requested %d", name, info.Size(), size))
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, perr.New(perr.KindBackingStorage, "OpenShared", fmt.Errorf("mmap %s: %w", path, err))
	}

	return &sharedRegion{name: name, path: path, mem: mem}, nil
}

type sharedRegion struct {
	name   string
	path   string
	mem    []byte
	closed bool
}

func (r *sharedRegion) Bytes() []byte { return r.mem }

// Close unmaps this endpoint's view of the region. It does not unlink the
// named object; callers decide when to unlink (spec §9 open question:
// unlink only once the last endpoint drops), via UnlinkShared.
func (r *sharedRegion) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if err := unix.Munmap(r.mem); err != nil {
		return perr.New(perr.KindBackingStorage, "Close", fmt.Errorf("munmap %s: %w", r.path, err))
	}
	return nil
}

// PeekShared reports the size of the already-created OS object backing
// name, if one exists, without opening or mapping it. Mirrors
// PeekInProcess's role: a reattaching caller opens with the channel's
// actual established size instead of its own request.
func PeekShared(name string) (size int64, ok bool, err error) {
	path := segmentPath(name)
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return 0, false, nil
		}
		return 0, false, perr.New(perr.KindBackingStorage, "PeekShared", fmt.Errorf("stat %s: %w", path, statErr))
	}
	return info.Size(), true, nil
}

// UnlinkShared removes the named OS object backing a shared-memory
// channel. It tolerates the object already being gone (ErrNotExist),
// since multiple endpoints may race to unlink it (spec §9).
func UnlinkShared(name string) error {
	path := segmentPath(name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return perr.New(perr.KindBackingStorage, "UnlinkShared", fmt.Errorf("remove %s: %w", path, err))
	}
	return nil
}
