// Package storage implements the backing-storage abstraction from spec
// §4.3/§4.4: an identically-addressable, aligned byte region visible to
// every endpoint of a channel, whether or not they share an address
// space.
package storage

// Region is a mapped byte region backing one channel's header and slots.
// Close releases this endpoint's handle; it never unlinks the shared
// variant's named object (see UnlinkShared). It is safe to call once per
// endpoint.
type Region interface {
	// Bytes returns the full mapped region. The returned slice must not be
	// reallocated or resliced by callers; its backing array is the shared
	// storage itself.
	Bytes() []byte
	// Close releases this endpoint's handle on the region.
	Close() error
}
