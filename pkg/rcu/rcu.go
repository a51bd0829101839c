package rcu

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"
)

// Domain is a single process-wide (or subsystem-wide) quiescence domain:
// one grace-period counter, one registry of handles, one wait channel.
// Keep a Domain in one place, per the source's own advice on where the
// RCU registry should live.
type Domain struct {
	generation atomic.Uint64

	mu      sync.Mutex
	handles []*Handle

	// syncMu serializes Synchronize: only one grace-period round may be
	// in flight at a time, since rounds share d.generation and d.waitSem.
	syncMu sync.Mutex

	// waitSem is rebuilt for every Synchronize call, sized to the number
	// of handles that must quiesce. Readers load it to post their
	// exit signal; nil between rounds.
	waitSem atomic.Pointer[semaphore.Weighted]
}

// NewDomain returns an empty quiescence domain with no registered readers.
func NewDomain() *Domain {
	d := &Domain{}

	// Period 0 means "outside a read region", so the grace-period counter
	// starts at 1: a reader that begins before the first Synchronize must
	// still be seen as pending.
	d.generation.Store(1)

	return d
}

// Handle is a per-thread (per-goroutine, in practice) reader registration.
// A Handle must not be used by more than one goroutine concurrently and
// must not be entered recursively.
type Handle struct {
	domain *Domain
	period atomic.Uint64
	depth  atomic.Int32
	wake   atomic.Bool
}

// Register creates and registers a new reader handle on d. Callers must
// Unregister the handle once the owning thread is done with it.
func (d *Domain) Register() *Handle {
	h := &Handle{domain: d}

	d.mu.Lock()
	d.handles = append(d.handles, h)
	d.mu.Unlock()

	return h
}

// Unregister removes h from the domain's registry. It is an error to
// unregister a handle that is still inside a read region.
func (d *Domain) Unregister(h *Handle) error {
	if h.depth.Load() != 0 {
		panic("rcu: unregister called while handle is inside a read region")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i, x := range d.handles {
		if x == h {
			d.handles = append(d.handles[:i], d.handles[i+1:]...)

			// A pending Synchronize may be waiting on this handle's
			// release; if so, release on its behalf so it is not
			// stranded waiting for a signal that will never come.
			if h.wake.CompareAndSwap(true, false) {
				if sem := d.waitSem.Load(); sem != nil {
					sem.Release(1)
				}
			}

			return nil
		}
	}

	return ErrUnknownHandle
}

// Begin opens a read region on h. It stores the domain's current
// generation into h's period word and fences so that every load
// performed after Begin returns happens after that store is visible to
// other threads. Recursive entry is a fatal programming error.
func (h *Handle) Begin() {
	if !h.depth.CompareAndSwap(0, 1) {
		panic("rcu: recursive read region entry")
	}

	h.period.Store(h.domain.generation.Load())
}

// End closes the read region opened by Begin. If a Synchronize call is
// waiting on this handle, End signals it.
func (h *Handle) End() {
	if !h.depth.CompareAndSwap(1, 0) {
		panic("rcu: read_end without a matching read_begin")
	}

	h.period.Store(0)

	if h.wake.CompareAndSwap(true, false) {
		if sem := h.domain.waitSem.Load(); sem != nil {
			sem.Release(1)
		}
	}
}

// Read runs fn inside a scoped read region on h, ending the region even
// if fn panics.
func (h *Handle) Read(fn func()) {
	h.Begin()
	defer h.End()

	fn()
}

// Synchronize advances the domain's grace period and blocks until every
// handle that was in the old grace period when this call started has
// left its read region. It is the only operation in this package that
// may block, and it may block arbitrarily long if a reader never calls
// End.
//
// At most one Synchronize call runs at a time per Domain: a Graph wires
// many independent containers (the node table, every name/username/file
// index, every node's edge sets) onto one shared Domain, so concurrent
// writers in different containers can cross their load-factor threshold
// and call Synchronize at the same moment. Without serialization, two
// rounds would race on d.generation and d.waitSem and a reader's exit
// signal could land in the wrong round's semaphore.
func (d *Domain) Synchronize() {
	d.syncMu.Lock()
	defer d.syncMu.Unlock()

	d.mu.Lock()
	snapshot := make([]*Handle, len(d.handles))
	copy(snapshot, d.handles)
	d.mu.Unlock()

	prevGen := d.generation.Load()
	d.generation.Store(prevGen + 1)

	pending := make([]*Handle, 0, len(snapshot))

	for _, h := range snapshot {
		if p := h.period.Load(); p != 0 && p == prevGen {
			pending = append(pending, h)
		}
	}

	if len(pending) == 0 {
		return
	}

	sem := semaphore.NewWeighted(int64(len(pending)))

	// Take every permit up front, so the final Acquire below blocks until
	// each pending handle has released one back.
	if !sem.TryAcquire(int64(len(pending))) {
		panic("rcu: fresh grace-period semaphore unexpectedly held")
	}

	d.waitSem.Store(sem)

	defer d.waitSem.Store(nil)

	for _, h := range pending {
		h.wake.Store(true)

		// The handle may have already left its region between the
		// snapshot above and this store; its End already ran and will
		// never observe the flag. Post on its behalf so the round
		// cannot wedge waiting for a signal that will never arrive.
		if p := h.period.Load(); !(p != 0 && p == prevGen) {
			if h.wake.CompareAndSwap(true, false) {
				sem.Release(1)
			}
		}
	}

	// Every handle in pending will, the next time it calls End, see its
	// own wake flag set and post exactly one permit. Waiting for all of
	// them to post is equivalent to waiting out the old grace period.
	if err := sem.Acquire(context.Background(), int64(len(pending))); err != nil {
		panic(err)
	}
}
