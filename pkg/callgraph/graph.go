package callgraph

import (
	"go.uber.org/atomic"

	"github.com/bonzini/callgraph/pkg/growarray"
	"github.com/bonzini/callgraph/pkg/hashset"
	"github.com/bonzini/callgraph/pkg/rcu"
	"github.com/bonzini/callgraph/pkg/strmap"
)

const (
	nodesInitialCap      = 64
	namesInitialCap      = 64
	usernamesInitialCap  = 16
	filesInitialCap      = 16
	labelsInitialCap     = 8
	perFileListInitialCap = 4
)

// Graph holds the call-graph store's full state: the append-only node
// table and the four indices layered on it. A Graph is created empty,
// grown by concurrent writers, then read; it has no delete operation.
type Graph struct {
	domain *rcu.Domain

	nodes *growarray.Array[atomic.Pointer[Node]]

	byName     *strmap.Map[uint64]
	byUsername *strmap.Map[uint64]
	byFile     *strmap.Map[*indexList]

	labels atomic.Pointer[strmap.Map[*hashset.Set]]
}

// NewGraph returns an empty, ready-to-use Graph with its own quiescence
// domain.
func NewGraph() *Graph {
	g := &Graph{domain: rcu.NewDomain()}

	g.nodes = growarray.New[atomic.Pointer[Node]](g.domain, nodesInitialCap, growarray.DefaultLoadFactor, copyNodePointers)
	g.byName = strmap.New[uint64](g.domain, namesInitialCap)
	g.byUsername = strmap.New[uint64](g.domain, usernamesInitialCap)
	g.byFile = strmap.New[*indexList](g.domain, filesInitialCap)
	g.labels.Store(strmap.New[*hashset.Set](g.domain, labelsInitialCap))

	return g
}

func copyNodePointers(old []atomic.Pointer[Node], oldCount uint64, fresh []atomic.Pointer[Node]) {
	for i := uint64(0); i < oldCount; i++ {
		fresh[i].Store(old[i].Load())
	}
}

// RegisterReader registers a new reader handle with the graph's
// quiescence domain. Every Graph method below must be called from
// inside a region opened on a handle returned here.
func (g *Graph) RegisterReader() *rcu.Handle {
	return g.domain.Register()
}

// UnregisterReader removes h from the graph's domain.
func (g *Graph) UnregisterReader(h *rcu.Handle) error {
	return g.domain.Unregister(h)
}

func (g *Graph) node(i uint64) *Node {
	if i >= g.nodes.Count() {
		panic("callgraph: index out of range")
	}

	n := g.nodes.At(i).Load()
	if n == nil {
		panic("callgraph: invariant violated, unpublished node index observed")
	}

	return n
}

// AddExternal returns the index of the node named name, creating one if
// neither by_username nor by_name already knows it. Username lookup
// happens first, so a node that has been aliased can be re-found by its
// alias as well as its canonical name.
func (g *Graph) AddExternal(h *rcu.Handle, name string) uint64 {
	if i, ok := g.byUsername.GetOk(name); ok {
		return i
	}

	if i, ok := g.byName.GetOk(name); ok {
		return i
	}

	idx := g.nodes.Reserve(h)
	g.nodes.At(idx).Store(newNode(g.domain, name))

	return g.byName.Add(h, name, idx)
}

// SetDefined clears external on node i. Idempotent.
func (g *Graph) SetDefined(i uint64) {
	g.node(i).external.Store(false)
}

// SetUsername writes username on node i the first time it is called for
// that node and indexes the alias; later calls are no-ops regardless of
// whether they agree with the stored value, which trivially satisfies
// I6's "agree or be ignored" contract since the stored value never
// changes after the first write.
func (g *Graph) SetUsername(h *rcu.Handle, i uint64, username string) {
	n := g.node(i)

	if n.username.CompareAndSwap(nil, &username) {
		g.byUsername.Add(h, username, i)
	}
}

// SetLocation writes file and line on node i the first time it is
// called for that node and appends i to by_file[file]; later calls are
// no-ops per I6.
func (g *Graph) SetLocation(h *rcu.Handle, i uint64, file string, line int64) {
	n := g.node(i)

	if !n.file.CompareAndSwap(nil, &file) {
		return
	}

	n.line.Store(line)

	list := g.byFile.Add(h, file, newIndexList(g.domain, perFileListInitialCap))
	list.Append(h, i)
}

// AddEdge inserts a into nodes[b].callers and b into nodes[a].calls (if
// isCall) or nodes[a].refs. Both sides are inserted unconditionally.
func (g *Graph) AddEdge(h *rcu.Handle, a, b uint64, isCall bool) {
	na := g.node(a)
	nb := g.node(b)

	nb.callers.Insert(h, a)

	if isCall {
		na.calls.Insert(h, b)
	} else {
		na.refs.Insert(h, b)
	}
}

// HasEdge reports whether b is a call target of a, or — when refOk is
// true and b is not external — a ref target of a. The external check
// implements the policy that cross-translation-unit references to
// undefined symbols are not considered call edges.
func (g *Graph) HasEdge(a, b uint64, refOk bool) bool {
	na := g.node(a)

	if na.calls.Contains(b) {
		return true
	}

	if refOk {
		nb := g.node(b)
		if !nb.external.Load() && na.refs.Contains(b) {
			return true
		}
	}

	return false
}

// HasCallEdge reports whether b is a call target of a.
func (g *Graph) HasCallEdge(a, b uint64) bool {
	return g.node(a).calls.Contains(b)
}

// AddLabel inserts i into labels[l], creating the label's index set if
// this is the first member.
func (g *Graph) AddLabel(h *rcu.Handle, i uint64, l string) {
	m := g.labels.Load()
	set := m.Add(h, l, hashset.New(g.domain, nodeEdgeSetInitialCap))
	set.Insert(h, i)
}

// HasLabel reports whether i carries label l.
func (g *Graph) HasLabel(i uint64, l string) bool {
	m := g.labels.Load()

	set, ok := m.GetOk(l)
	if !ok {
		return false
	}

	return set.Contains(i)
}

// ResetLabels atomically swaps the labels index for a fresh, empty one
// and waits out the grace period before this call returns, so that
// readers who started before the reset never observe it mixed with the
// post-reset state.
func (g *Graph) ResetLabels(h *rcu.Handle) {
	fresh := strmap.New[*hashset.Set](g.domain, labelsInitialCap)
	g.labels.Store(fresh)

	h.End()
	g.domain.Synchronize()
	h.Begin()
}
