package growarray

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/bonzini/callgraph/internal/xhash"
	"github.com/bonzini/callgraph/pkg/rcu"
)

// DefaultLoadFactor is the threshold Reserve uses to trigger growth for a
// plain CGA. Higher containers (CHS, CSM) construct their own backing
// array with a tighter 0.75 threshold; this default models the raw CGA's
// 1.0 threshold from the boundary behaviours table.
const DefaultLoadFactor = 1.0

// CopyFunc relocates live elements from an old backing slice into a
// freshly allocated one of greater capacity. oldCount is the number of
// slots in old that may be live; implementations must not assume every
// slot below oldCount is actually occupied, since a CGA reservation can
// race ahead of publication.
//
// A nil CopyFunc falls back to a positional copy, which is correct for a
// bare CGA but not for CHS/CSM, whose elements must be rehashed into
// their new bucket rather than copied positionally.
type CopyFunc[E any] func(old []E, oldCount uint64, fresh []E)

// Array is a concurrent, append-only, generic growable array. The zero
// value is not usable; construct one with New.
type Array[E any] struct {
	domain *rcu.Domain

	backing atomic.Pointer[[]E]
	cap     atomic.Uint64
	count   atomic.Uint64

	growMu sync.Mutex

	loadFactor float64
	copyFn     CopyFunc[E]
}

// New constructs an Array with the given initial capacity (rounded up to
// a power of two, minimum 1), load factor, and relocation policy. domain
// is the quiescence domain that Grow synchronizes on before letting the
// old backing go; it must be shared with every reader of the array.
func New[E any](domain *rcu.Domain, initialCap uint64, loadFactor float64, copyFn CopyFunc[E]) *Array[E] {
	cap := xhash.NextPow2(initialCap)
	if cap == 0 {
		cap = 1
	}

	backing := make([]E, cap)

	a := &Array[E]{
		domain:     domain,
		loadFactor: loadFactor,
		copyFn:     copyFn,
	}
	a.backing.Store(&backing)
	a.cap.Store(cap)

	return a
}

// Reserve grants exclusive write access to a freshly allocated slot and
// returns its index. It must be called from inside h's read region; it
// may transiently drop and reacquire that region to drive a grow.
func (a *Array[E]) Reserve(h *rcu.Handle) uint64 {
	current := a.count.Load()

	for {
		capSnap := a.cap.Load()

		if float64(current) >= a.loadFactor*float64(capSnap) {
			h.End()
			a.grow(capSnap, capSnap*2)
			h.Begin()

			current = a.count.Load()

			continue
		}

		if a.count.CompareAndSwap(current, current+1) {
			return current
		}

		current = a.count.Load()
	}
}

// DropReservation releases a slot reserved by Reserve that the caller
// decided not to use, e.g. because of a collision in a higher container.
func (a *Array[E]) DropReservation() {
	a.count.Dec()
}

// grow reallocates the backing slice to newCap, relocates live elements
// via the configured CopyFunc, publishes the new backing, and waits out
// any reader still holding the old one before returning.
func (a *Array[E]) grow(expectedCap, newCap uint64) {
	a.growMu.Lock()
	defer a.growMu.Unlock()

	if a.cap.Load() != expectedCap {
		// Another writer already grew past this point.
		return
	}

	oldBacking := *a.backing.Load()
	fresh := make([]E, newCap)

	if a.copyFn != nil {
		a.copyFn(oldBacking, a.count.Load(), fresh)
	} else {
		copy(fresh, oldBacking)
	}

	a.backing.Store(&fresh)
	a.cap.Store(newCap)

	a.domain.Synchronize()
}

// Backing returns the current capacity and backing slice, in the
// spec-mandated read order: capacity is loaded before the backing
// pointer so a reader that observes a fresh capacity also observes the
// backing slice it describes.
func (a *Array[E]) Backing() (uint64, []E) {
	capSnap := a.cap.Load()
	b := a.backing.Load()

	return capSnap, *b
}

// At returns a pointer to the element at index i in the current backing
// slice. The element type E is expected to carry its own atomic fields;
// Array provides no synchronization for access through the returned
// pointer beyond publishing the slice itself.
func (a *Array[E]) At(i uint64) *E {
	b := a.backing.Load()

	return &(*b)[i]
}

// Count returns the current occupied-slot count.
func (a *Array[E]) Count() uint64 {
	return a.count.Load()
}

// Cap returns the current capacity.
func (a *Array[E]) Cap() uint64 {
	return a.cap.Load()
}
