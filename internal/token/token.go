// Package token implements the named mutual-exclusion token that
// serializes one-time channel setup across processes (or threads) sharing
// a channel name.
//
// Two flavors exist, matching spec §4.1: an inter-process token backed by
// an flock'd file under the host's temp directory, and an inter-thread
// token backed by a process-wide registry keyed by name. The token name is
// derived from the channel name by appending a role suffix so the two
// families never collide even if a caller reuses a name across kinds.
package token

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/pika-ipc/pika/internal/perr"
)

const (
	interProcessSuffix = "_inter_process"
	interThreadSuffix  = "_inter_thread"
)

// Token is a host-global binary token keyed by channel name. Acquire blocks
// until the token is held; Release gives it up. A Token must be acquired
// and released from the same goroutine/process that called NewProcess or
// NewThread.
type Token interface {
	Acquire() error
	Release() error
}

// NewProcess returns the inter-process flavor of the token for channel
// name. It is backed by an flock'd regular file, so it is visible to every
// process on the host that derives the same path from the same name.
func NewProcess(channelName string) (Token, error) {
	path := filepath.Join(os.TempDir(), "pika"+sanitize(channelName)+interProcessSuffix+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, perr.New(perr.KindSyncPrimitive, "NewProcess", fmt.Errorf("open token file %s: %w", path, err))
	}
	return &fileToken{f: f}, nil
}

// NewThread returns the inter-thread flavor of the token for channel name,
// backed by a process-wide registry so all threads of this process
// serialize on the same *sync.Mutex for a given name.
func NewThread(channelName string) (Token, error) {
	key := channelName + interThreadSuffix
	return &registryToken{key: key}, nil
}

func sanitize(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c == '/' || c == os.PathSeparator {
			b[i] = '_'
		}
	}
	return string(b)
}

// fileToken is the inter-process flavor: flock on a regular file.
type fileToken struct {
	f *os.File
}

func (t *fileToken) Acquire() error {
	if err := unix.Flock(int(t.f.Fd()), unix.LOCK_EX); err != nil {
		return perr.New(perr.KindSyncPrimitive, "Acquire", err)
	}
	return nil
}

// Release unlocks and closes the token file. A fileToken is single-use —
// one Acquire/Release pair per Create call — so closing here rather than
// leaving the fd open for the token's lifetime avoids leaking one fd per
// channel creation or reattach.
func (t *fileToken) Release() error {
	unlockErr := unix.Flock(int(t.f.Fd()), unix.LOCK_UN)
	closeErr := t.f.Close()
	if unlockErr != nil {
		return perr.New(perr.KindSyncPrimitive, "Release", unlockErr)
	}
	if closeErr != nil {
		return perr.New(perr.KindSyncPrimitive, "Release", closeErr)
	}
	return nil
}

// registry is the process-wide map from inter-thread token key to mutex,
// mirroring the in-process backing-storage registry's lookup/insert
// pattern (spec §4.4): a single guard mutex protects lazy creation of the
// per-name entry.
var (
	registryMu sync.Mutex
	registry   = make(map[string]*sync.Mutex)
)

type registryToken struct {
	key string
}

func lookup(key string) *sync.Mutex {
	registryMu.Lock()
	defer registryMu.Unlock()
	m, ok := registry[key]
	if !ok {
		m = &sync.Mutex{}
		registry[key] = m
	}
	return m
}

func (t *registryToken) Acquire() error {
	lookup(t.key).Lock()
	return nil
}

func (t *registryToken) Release() error {
	lookup(t.key).Unlock()
	return nil
}
