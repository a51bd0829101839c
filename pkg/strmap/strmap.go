package strmap

import (
	"fmt"
	"runtime"

	"go.uber.org/atomic"

	"github.com/bonzini/callgraph/internal/xhash"
	"github.com/bonzini/callgraph/pkg/growarray"
	"github.com/bonzini/callgraph/pkg/rcu"
)

const loadFactor = 0.75

// pendingMarker is a sentinel *string distinct from every real key
// pointer a Map ever stores, since Map always allocates a fresh *string
// for a resolved key and never reuses this address.
var pendingMarker = new(string)

// slot is one bucket of the table. key is nil when empty, pendingMarker
// while claimed-but-unfilled, and a pointer to an owned copy of the key
// once resolved. value is only safe to read once key has been observed
// non-pending and non-nil via an acquire load, which happens-before the
// release store that published it.
type slot[V any] struct {
	key   atomic.Pointer[string]
	value V
}

// Map is a concurrent, open-addressed string-keyed map with
// first-writer-wins semantics on colliding Add calls.
type Map[V any] struct {
	arr *growarray.Array[slot[V]]
}

// New constructs an empty Map with the given initial capacity (rounded
// up to a power of two).
func New[V any](domain *rcu.Domain, initialCap uint64) *Map[V] {
	m := &Map[V]{}
	m.arr = growarray.New[slot[V]](domain, initialCap, loadFactor, m.rehash)

	return m
}

// rehash is the growarray.CopyFunc policy point. Grow runs under a
// single writer, so entries are moved without allocation or CAS.
func (m *Map[V]) rehash(old []slot[V], _ uint64, fresh []slot[V]) {
	mask := uint64(len(fresh)) - 1

	for i := range old {
		keyPtr := old[i].key.Load()
		if keyPtr == nil || keyPtr == pendingMarker {
			continue
		}

		start := xhash.String(*keyPtr) & mask

		for probe := uint64(0); ; probe++ {
			idx := (start + probe) & mask
			if fresh[idx].key.Load() == nil {
				fresh[idx].value = old[i].value
				fresh[idx].key.Store(keyPtr)

				break
			}
		}
	}
}

// acquire reserves a slot for key, spinning out any concurrent pending
// insert for the same bucket. The returned bool is true iff the caller
// won exclusive rights to fill a freshly claimed slot.
func (m *Map[V]) acquire(h *rcu.Handle, key string) (*slot[V], bool) {
	m.arr.Reserve(h)

	capSnap, backing := m.arr.Backing()
	mask := capSnap - 1
	start := xhash.String(key) & mask

	for probe := uint64(0); probe < capSnap; {
		idx := (start + probe) & mask
		sl := &backing[idx]

		cur := sl.key.Load()

		switch {
		case cur == pendingMarker:
			runtime.Gosched()
			// re-examine the same slot
		case cur == nil:
			if sl.key.CompareAndSwap(nil, pendingMarker) {
				return sl, true
			}
			// lost the race; re-examine the same slot
		case *cur == key:
			m.arr.DropReservation()

			return sl, false
		default:
			probe++
		}
	}

	panic("strmap: table full, invariant violated")
}

// Add inserts key with value if absent, or returns the value already
// stored by whichever caller won the race. Must be called from inside
// h's read region.
func (m *Map[V]) Add(h *rcu.Handle, key string, value V) V {
	sl, fresh := m.acquire(h, key)
	if !fresh {
		return sl.value
	}

	sl.value = value

	owned := key
	sl.key.Store(&owned)

	return value
}

// GetOk probes for key and reports whether it is present.
func (m *Map[V]) GetOk(key string) (V, bool) {
	capSnap, backing := m.arr.Backing()
	mask := capSnap - 1
	start := xhash.String(key) & mask

	for probe := uint64(0); probe < capSnap; {
		idx := (start + probe) & mask
		sl := &backing[idx]

		cur := sl.key.Load()

		switch {
		case cur == pendingMarker:
			runtime.Gosched()
		case cur == nil:
			var zero V

			return zero, false
		case *cur == key:
			return sl.value, true
		default:
			probe++
		}
	}

	var zero V

	return zero, false
}

// Get probes for key, returning def if it is not present.
func (m *Map[V]) Get(key string, def V) V {
	if v, ok := m.GetOk(key); ok {
		return v
	}

	return def
}

// MustGet probes for key and panics if it is absent. It is for callers
// that have already proven presence, e.g. via an index obtained moments
// earlier from the same map.
func (m *Map[V]) MustGet(key string) V {
	v, ok := m.GetOk(key)
	if !ok {
		panic(fmt.Sprintf("strmap: key not present: %q", key))
	}

	return v
}

// Size returns the number of reserved slots. It counts inserts that are
// still in flight, so it equals the number of resolved entries only once
// no Add is running.
func (m *Map[V]) Size() uint64 {
	return m.arr.Count()
}

// Cap returns the current backing capacity, for monitoring/diagnostics.
func (m *Map[V]) Cap() uint64 {
	return m.arr.Cap()
}

// Entry is one key/value pair yielded by Iterate.
type Entry[V any] struct {
	Key   string
	Value V
}

// Seq is the iterator type returned by Iterate, shaped like
// iter.Seq[Entry[V]].
type Seq[V any] func(yield func(Entry[V]) bool)

// Iterate yields every resolved entry in backing order. Must be called
// from inside a reader region; it is a one-pass, best-effort snapshot.
func (m *Map[V]) Iterate() Seq[V] {
	_, backing := m.arr.Backing()

	return func(yield func(Entry[V]) bool) {
		for i := range backing {
			cur := backing[i].key.Load()
			if cur == nil || cur == pendingMarker {
				continue
			}

			if !yield(Entry[V]{Key: *cur, Value: backing[i].value}) {
				return
			}
		}
	}
}
