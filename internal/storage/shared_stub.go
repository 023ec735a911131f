//go:build !unix

package storage

import (
	"fmt"

	"github.com/pika-ipc/pika/internal/perr"
)

// OpenShared has no implementation outside unix platforms: named,
// process-shared mmap regions are a POSIX shared-memory concept and the
// inter-process Kind is unsupported here. Inter-thread channels (backed
// by OpenInProcess) are unaffected.
func OpenShared(name string, size int) (Region, error) {
	return nil, perr.New(perr.KindBackingStorage, "OpenShared", fmt.Errorf("shared-memory backing storage is not supported on this platform"))
}

func UnlinkShared(name string) error {
	return nil
}

func PeekShared(name string) (size int64, ok bool, err error) {
	return 0, false, nil
}
