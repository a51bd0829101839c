package callgraph

import (
	"runtime"

	"go.uber.org/atomic"

	"github.com/bonzini/callgraph/pkg/growarray"
	"github.com/bonzini/callgraph/pkg/rcu"
)

// notPublished marks a reserved-but-not-yet-written slot in an
// indexList. It has the same value as NotFound, which is never a valid
// node index, so no appended entry can be mistaken for it; this sentinel
// is only ever compared against, never returned to a caller.
const notPublished = ^uint64(0)

// indexList is a bare CGA of node indices: the per-file node list named
// in the data model, chosen over a CHS because duplicate indices never
// occur per file and insertion order is informative. It reuses the same
// reserve-then-publish discipline as pkg/hashset, with a sentinel fill
// so a reader never observes a half-written slot.
type indexList struct {
	arr *growarray.Array[atomic.Uint64]
}

func newIndexList(domain *rcu.Domain, initialCap uint64) *indexList {
	l := &indexList{}
	l.arr = growarray.New[atomic.Uint64](domain, initialCap, growarray.DefaultLoadFactor, l.copy)

	_, backing := l.arr.Backing()
	for i := range backing {
		backing[i].Store(notPublished)
	}

	return l
}

func (l *indexList) copy(old []atomic.Uint64, oldCount uint64, fresh []atomic.Uint64) {
	for i := range fresh {
		fresh[i].Store(notPublished)
	}

	for i := uint64(0); i < oldCount; i++ {
		fresh[i].Store(old[i].Load())
	}
}

// Append adds v to the list. Must be called from inside h's read region.
func (l *indexList) Append(h *rcu.Handle, v uint64) {
	idx := l.arr.Reserve(h)
	_, backing := l.arr.Backing()
	backing[idx].Store(v)
}

// Iterate yields every entry present at call time, in append order.
func (l *indexList) Iterate() NodeSeq {
	count := l.arr.Count()
	_, backing := l.arr.Backing()

	return func(yield func(uint64) bool) {
		for i := uint64(0); i < count; i++ {
			for backing[i].Load() == notPublished {
				runtime.Gosched()
			}

			if !yield(backing[i].Load()) {
				return
			}
		}
	}
}
