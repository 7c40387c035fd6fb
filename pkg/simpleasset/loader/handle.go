package loader

import (
	"sync/atomic"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Handle is shared ownership of a decoded asset. Every handle returned by
// the loader must be released exactly once; Release is idempotent.
//
// A released handle still reads its value. Releasing the last handle lets
// the loader drop its strong reference, keeping only a weak one that a later
// Load revives without decoding again.
type Handle[A any] struct {
	loader   *Loader
	entry    *entry
	asset    *asset
	value    A
	released atomic.Bool
}

// Value returns the decoded asset.
func (h *Handle[A]) Value() A { return h.value }

// ID returns the identifier the handle was loaded by.
func (h *Handle[A]) ID() simpleasset.ID { return h.entry.key.id }

// Format returns the format the asset was decoded as.
func (h *Handle[A]) Format() string { return h.entry.key.format }

// Record describes the artifact that was decoded. Its ID differs from ID()
// when the source was re-imported.
func (h *Handle[A]) Record() simpleasset.ArtifactRecord { return h.asset.record }

// Clone returns a new handle sharing the same asset.
func (h *Handle[A]) Clone() *Handle[A] {
	h.loader.pin(h.entry, h.asset)
	return &Handle[A]{loader: h.loader, entry: h.entry, asset: h.asset, value: h.value}
}

// Release drops this handle's reference.
func (h *Handle[A]) Release() {
	if h.released.CompareAndSwap(false, true) {
		h.loader.unpin(h.entry)
	}
}

// Released reports whether Release was called.
func (h *Handle[A]) Released() bool { return h.released.Load() }
