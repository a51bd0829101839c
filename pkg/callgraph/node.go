package callgraph

import (
	"go.uber.org/atomic"

	"github.com/bonzini/callgraph/pkg/hashset"
	"github.com/bonzini/callgraph/pkg/rcu"
)

// NoLine is the sentinel returned by LocationOf when a node has a file
// but no recorded line, or (as a file/line pair) when neither is set.
const NoLine int64 = -1

// NotFound is the sentinel index returned by lookups that fail to find a
// node, matching the source's (size_t)-1 convention.
const NotFound uint64 = ^uint64(0)

const nodeEdgeSetInitialCap = 4

// Node represents one function or function-pointer slot. name is set
// once at construction and never changes; every other attribute is
// write-once-guarded or monotonic per the store's invariants.
type Node struct {
	name string

	external atomic.Bool

	username atomic.Pointer[string]
	file     atomic.Pointer[string]
	line     atomic.Int64

	callers *hashset.Set
	calls   *hashset.Set
	refs    *hashset.Set
}

func newNode(domain *rcu.Domain, name string) *Node {
	n := &Node{name: name}

	n.external.Store(true)
	n.line.Store(NoLine)

	n.callers = hashset.New(domain, nodeEdgeSetInitialCap)
	n.calls = hashset.New(domain, nodeEdgeSetInitialCap)
	n.refs = hashset.New(domain, nodeEdgeSetInitialCap)

	return n
}
