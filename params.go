package pika

import (
	"github.com/pika-ipc/pika/internal/header"
	"github.com/pika-ipc/pika/internal/ring"
)

// Kind selects the process topology a channel runs over.
type Kind = header.Kind

const (
	// InterProcess channels are visible to independent processes via a
	// named OS shared-memory object.
	InterProcess = header.InterProcess
	// InterThread channels are visible only within the creating process,
	// backed by a process-wide in-memory registry keyed by name.
	InterThread = header.InterThread
)

// Params describes a channel's fixed, validated-once-at-registration shape.
type Params = header.Params

// Stats is a read-only snapshot of a channel's underlying ring engine.
type Stats = ring.Stats
