package header

import (
	"context"
	"fmt"
	"time"

	"github.com/pika-ipc/pika/internal/perr"
	"github.com/pika-ipc/pika/internal/ring"
	"github.com/pika-ipc/pika/internal/storage"
	"github.com/pika-ipc/pika/internal/token"
)

// Role distinguishes which counter a Channel endpoint occupies.
type Role int

const (
	RoleProducer Role = iota
	RoleConsumer
)

func (r Role) String() string {
	if r == RoleProducer {
		return "producer"
	}
	return "consumer"
}

// Channel is one endpoint's live handle on a registered channel: its
// backing region, a typed view of the header at offset 0, and the
// embedded ring engine selected by spsc_mode. It implements the rendezvous
// transitions from spec §4.7.
type Channel struct {
	params Params
	role   Role
	region storage.Region
	hdr    *Header
	engine ring.Engine
}

// Create implements spec §4.7 transition 1: acquire the named token, map
// or reuse the backing region, placement-construct the header on first
// arrival (or validate parameters against an already-registered header),
// increment the caller's role counter, release the token.
func Create(params Params, role Role) (*Channel, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	tok, err := newToken(params)
	if err != nil {
		return nil, err
	}
	if err := tok.Acquire(); err != nil {
		return nil, err
	}
	defer tok.Release()

	size, err := resolveRegionSize(params)
	if err != nil {
		return nil, err
	}
	region, err := openRegion(params, size)
	if err != nil {
		return nil, err
	}

	hdr := View(region.Bytes(), 0)

	if hdr.TryRegister() {
		hdr.setSPSC(params.SPSC)
		hdr.storeShape(params)
		eng, err := newEngine(region.Bytes(), params, true)
		if err != nil {
			region.Close()
			return nil, err
		}
		incRole(hdr, role)
		return &Channel{params: params, role: role, region: region, hdr: hdr, engine: eng}, nil
	}

	existing := Params{
		Name:            params.Name,
		QueueSize:       int(hdr.QueueSize()),
		RecordSize:      int(hdr.RecordSize()),
		RecordAlignment: int(hdr.RecordAlignment()),
		Kind:            params.Kind,
		SPSC:            hdr.SPSC(),
	}
	if field := params.Mismatch(existing); field != "" {
		region.Close()
		return nil, perr.New(perr.KindChannel, "Create", fmt.Errorf("parameter mismatch on %q: %s differs from registered channel", params.Name, field))
	}

	eng, err := newEngine(region.Bytes(), existing, false)
	if err != nil {
		region.Close()
		return nil, err
	}
	incRole(hdr, role)
	return &Channel{params: existing, role: role, region: region, hdr: hdr, engine: eng}, nil
}

func newToken(p Params) (token.Token, error) {
	if p.Kind == InterProcess {
		return token.NewProcess(p.Name)
	}
	return token.NewThread(p.Name)
}

// resolveRegionSize returns the size to open the backing region with: the
// channel's already-established size if one is registered, or the
// caller's own requested size for a fresh channel. Using the established
// size on reattach means a parameter mismatch surfaces as this package's
// *channel* error once the header is read, rather than as a
// backing-storage size-mismatch error from the storage layer itself.
func resolveRegionSize(p Params) (int, error) {
	if p.Kind == InterProcess {
		existing, ok, err := storage.PeekShared(p.Name)
		if err != nil {
			return 0, err
		}
		if ok {
			return int(existing), nil
		}
		return int(TotalSize(p)), nil
	}
	if existing, ok := storage.PeekInProcess(p.Name); ok {
		return existing, nil
	}
	return int(TotalSize(p)), nil
}

func openRegion(p Params, size int) (storage.Region, error) {
	if p.Kind == InterProcess {
		return storage.OpenShared(p.Name, size)
	}
	return storage.OpenInProcess(p.Name, size)
}

func newEngine(mem []byte, p Params, init bool) (ring.Engine, error) {
	hdrOff := uintptr(EngineOffset())
	dataOff := uintptr(DataOffset(p))
	if p.SPSC {
		return ring.NewLockFree(mem, hdrOff, dataOff, uint64(p.RecordSize), uint64(p.RecordAlignment), uint64(p.QueueSize), init)
	}
	return ring.NewLocked(mem, hdrOff, dataOff, uint64(p.RecordSize), uint64(p.RecordAlignment), uint64(p.QueueSize), init, p.Kind == InterProcess)
}

func (h *Header) storeShape(p Params) {
	h.queueSize = uint64(p.QueueSize)
	h.recordSize = uint64(p.RecordSize)
	h.recordAlignment = uint64(p.RecordAlignment)
}

func incRole(hdr *Header, role Role) uint32 {
	if role == RoleProducer {
		return hdr.incProducerCount()
	}
	return hdr.incConsumerCount()
}

func peerCount(hdr *Header, role Role) uint32 {
	if role == RoleProducer {
		return hdr.ConsumerCount()
	}
	return hdr.ProducerCount()
}

// connectPollInterval bounds how long Connect sleeps between polls of the
// peer counter; short enough to notice a peer within a few milliseconds,
// long enough not to spin a full core while waiting.
const connectPollInterval = 500 * time.Microsecond

// Connect implements spec §4.7 transition 2: wait until the peer role
// counter is non-zero. Unlike the source (spec §9 open question), it takes
// a context so callers can bound the wait; passing context.Background()
// reproduces the source's infinite-wait behavior.
func (c *Channel) Connect(ctx context.Context) error {
	if peerCount(c.hdr, c.role) > 0 {
		return nil
	}
	ticker := time.NewTicker(connectPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return perr.New(perr.KindTimeout, "Connect", ctx.Err())
		case <-ticker.C:
			if peerCount(c.hdr, c.role) > 0 {
				return nil
			}
		}
	}
}

// IsConnected implements spec §4.7 transition 3.
func (c *Channel) IsConnected() bool {
	return peerCount(c.hdr, c.role) > 0
}

// Drop implements spec §4.7 transition 4: decrement the caller's own
// counter, close the backing-region handle, and — for the shared-memory
// variant, only once both counters have reached zero — unlink the named
// OS object (spec §9: "unlink on every drop" is resolved here as "unlink
// on last drop").
func (c *Channel) Drop() error {
	var remaining uint32
	if c.role == RoleProducer {
		remaining = c.hdr.decProducerCount()
	} else {
		remaining = c.hdr.decConsumerCount()
	}

	var other uint32
	if c.role == RoleProducer {
		other = c.hdr.ConsumerCount()
	} else {
		other = c.hdr.ProducerCount()
	}

	closeErr := c.region.Close()

	if c.params.Kind == InterProcess && remaining == 0 && other == 0 {
		if err := storage.UnlinkShared(c.params.Name); err != nil {
			if closeErr == nil {
				return err
			}
		}
	}
	return closeErr
}

// Engine exposes the embedded ring engine to the typed façade.
func (c *Channel) Engine() ring.Engine { return c.engine }

// Params returns the channel's validated, possibly-reconciled parameters
// (reconciled meaning: if this endpoint attached to an already-registered
// channel, the registered shape rather than this endpoint's request).
func (c *Channel) Params() Params { return c.params }

// Role returns the endpoint's role.
func (c *Channel) Role() Role { return c.role }
