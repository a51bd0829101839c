package hashset

import (
	"go.uber.org/atomic"

	"github.com/bonzini/callgraph/internal/xhash"
	"github.com/bonzini/callgraph/pkg/growarray"
	"github.com/bonzini/callgraph/pkg/rcu"
)

// EmptyWord is the sentinel value marking an unoccupied slot. Inserting
// it is a programming error.
const EmptyWord = ^uint64(0)

const loadFactor = 0.75

// Set is a concurrent, open-addressed set of uint64 words.
type Set struct {
	arr *growarray.Array[atomic.Uint64]
}

// New constructs an empty Set with the given initial capacity (rounded
// up to a power of two).
func New(domain *rcu.Domain, initialCap uint64) *Set {
	s := &Set{}
	s.arr = growarray.New[atomic.Uint64](domain, initialCap, loadFactor, s.rehash)

	_, backing := s.arr.Backing()
	for i := range backing {
		backing[i].Store(EmptyWord)
	}

	return s
}

// rehash is the growarray.CopyFunc policy point: it scans the old table
// and linearly probes every live key into its new home, rather than
// copying positionally.
func (s *Set) rehash(old []atomic.Uint64, _ uint64, fresh []atomic.Uint64) {
	for i := range fresh {
		fresh[i].Store(EmptyWord)
	}

	mask := uint64(len(fresh)) - 1

	for i := range old {
		k := old[i].Load()
		if k == EmptyWord {
			continue
		}

		start := xhash.Word(k) & mask

		for probe := uint64(0); ; probe++ {
			idx := (start + probe) & mask
			if fresh[idx].Load() == EmptyWord {
				fresh[idx].Store(k)

				break
			}
		}
	}
}

// Insert adds k to the set. It returns true if k was not already
// present. Must be called from inside h's read region.
func (s *Set) Insert(h *rcu.Handle, k uint64) bool {
	if k == EmptyWord {
		panic("hashset: EmptyWord is reserved and cannot be inserted")
	}

	s.arr.Reserve(h)

	capSnap, backing := s.arr.Backing()
	mask := capSnap - 1
	start := xhash.Word(k) & mask

	for probe := uint64(0); probe < capSnap; {
		idx := (start + probe) & mask
		slot := &backing[idx]

		cur := slot.Load()

		switch {
		case cur == k:
			s.arr.DropReservation()

			return false
		case cur == EmptyWord:
			if slot.CompareAndSwap(EmptyWord, k) {
				return true
			}
			// Lost the race for this slot; re-examine it.
		default:
			probe++
		}
	}

	panic("hashset: table full, invariant violated")
}

// Contains reports whether k is a member of the set.
func (s *Set) Contains(k uint64) bool {
	if k == EmptyWord {
		return false
	}

	capSnap, backing := s.arr.Backing()
	mask := capSnap - 1
	start := xhash.Word(k) & mask

	for probe := uint64(0); probe < capSnap; probe++ {
		idx := (start + probe) & mask

		cur := backing[idx].Load()
		if cur == k {
			return true
		}

		if cur == EmptyWord {
			return false
		}
	}

	return false
}

// Size returns the number of occupied slots.
func (s *Set) Size() uint64 {
	return s.arr.Count()
}

// Seq is the iterator type returned by Iterate. It has the same underlying
// type as iter.Seq[uint64], so a caller can convert it to iter.Seq[uint64]
// and pass it to slices.Collect; this package does not depend on iter.
type Seq func(yield func(uint64) bool)

// Iterate yields every member word in backing order. Must be called from
// inside a reader region; it is a one-pass, best-effort snapshot of the
// table at the moment Iterate is called.
func (s *Set) Iterate() Seq {
	_, backing := s.arr.Backing()

	return func(yield func(uint64) bool) {
		for i := range backing {
			k := backing[i].Load()
			if k == EmptyWord {
				continue
			}

			if !yield(k) {
				return
			}
		}
	}
}

// Collect materializes a Seq into a slice, mirroring slices.Collect for
// callers that do not want to depend on the iter package.
func Collect(seq Seq) []uint64 {
	var out []uint64

	seq(func(k uint64) bool {
		out = append(out, k)

		return true
	})

	return out
}
