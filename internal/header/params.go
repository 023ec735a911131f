package header

import (
	"fmt"
	"strings"

	"github.com/pika-ipc/pika/internal/perr"
)

// Kind selects the process topology a channel runs over.
type Kind int

const (
	// InterProcess channels are visible to independent processes via a
	// named OS shared-memory object.
	InterProcess Kind = iota
	// InterThread channels are visible only within the creating process.
	InterThread
)

func (k Kind) String() string {
	if k == InterProcess {
		return "inter-process"
	}
	return "inter-thread"
}

// Params describes a channel's fixed, validated-once-at-registration shape.
type Params struct {
	Name            string
	QueueSize       int
	RecordSize      int
	RecordAlignment int
	Kind            Kind
	SPSC            bool
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Validate checks the parameters in isolation and returns a *perr.Error of
// KindChannel on the first violation.
func (p Params) Validate() error {
	if p.Kind == InterProcess && !strings.HasPrefix(p.Name, "/") {
		return perr.New(perr.KindChannel, "Validate", fmt.Errorf("inter-process channel name %q must start with '/'", p.Name))
	}
	if p.Name == "" {
		return perr.New(perr.KindChannel, "Validate", fmt.Errorf("channel name must not be empty"))
	}
	if p.QueueSize <= 0 {
		return perr.New(perr.KindChannel, "Validate", fmt.Errorf("queue_size must be > 0, got %d", p.QueueSize))
	}
	if p.RecordSize <= 0 {
		return perr.New(perr.KindChannel, "Validate", fmt.Errorf("record_size must be > 0, got %d", p.RecordSize))
	}
	if !isPowerOfTwo(p.RecordAlignment) {
		return perr.New(perr.KindChannel, "Validate", fmt.Errorf("record_alignment must be a power of two, got %d", p.RecordAlignment))
	}
	return nil
}

// Mismatch reports the first immutable field (queue_size, record_size,
// record_alignment, spsc_mode) that differs between p and existing, or ""
// if they match. Grounded on the teacher's ValidateSegmentHeader, which
// reports which field mismatched rather than a bare boolean.
func (p Params) Mismatch(existing Params) string {
	switch {
	case p.QueueSize != existing.QueueSize:
		return "queue_size"
	case p.RecordSize != existing.RecordSize:
		return "record_size"
	case p.RecordAlignment != existing.RecordAlignment:
		return "record_alignment"
	case p.SPSC != existing.SPSC:
		return "spsc_mode"
	default:
		return ""
	}
}
