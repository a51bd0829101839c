package callgraph

import (
	"github.com/bonzini/callgraph/pkg/hashset"
	"github.com/bonzini/callgraph/pkg/strmap"
)

// NodeSeq is the iterator type returned by every query that yields node
// indices. It has the same underlying type as iter.Seq[uint64], so a
// caller can convert it to iter.Seq[uint64] and pass it to slices.Collect;
// this module itself does not depend on iter.
type NodeSeq = hashset.Seq

// Collect materializes a NodeSeq into a slice.
func Collect(seq NodeSeq) []uint64 {
	return hashset.Collect(seq)
}

// NodeCount returns the number of nodes currently in the graph.
func (g *Graph) NodeCount() uint64 {
	return g.nodes.Count()
}

// GetNode returns the index of the node known by name, checking the
// username index first, or NotFound if no node matches.
func (g *Graph) GetNode(name string) (uint64, bool) {
	if i, ok := g.byUsername.GetOk(name); ok {
		return i, true
	}

	if i, ok := g.byName.GetOk(name); ok {
		return i, true
	}

	return NotFound, false
}

// NameOf returns the canonical name of node i.
func (g *Graph) NameOf(i uint64) string {
	return g.node(i).name
}

// UsernameOf returns the display alias of node i, if one has been set.
func (g *Graph) UsernameOf(i uint64) (string, bool) {
	u := g.node(i).username.Load()
	if u == nil {
		return "", false
	}

	return *u, true
}

// LocationOf returns the source file and line of node i. line is NoLine
// when no line was recorded even though a file is present; ok is false
// when no location has been set at all.
func (g *Graph) LocationOf(i uint64) (file string, line int64, ok bool) {
	n := g.node(i)

	f := n.file.Load()
	if f == nil {
		return "", NoLine, false
	}

	return *f, n.line.Load(), true
}

// IsExternal reports whether node i has not yet been marked defined.
func (g *Graph) IsExternal(i uint64) bool {
	return g.node(i).external.Load()
}

// GetCallers returns an iterator over the indices of nodes that call or
// reference node i.
func (g *Graph) GetCallers(i uint64) NodeSeq {
	return g.node(i).callers.Iterate()
}

// GetCallees returns an iterator over the indices node i calls.
func (g *Graph) GetCallees(i uint64) NodeSeq {
	return g.node(i).calls.Iterate()
}

// GetRefs returns an iterator over the indices node i references
// without calling.
func (g *Graph) GetRefs(i uint64) NodeSeq {
	return g.node(i).refs.Iterate()
}

// NodesForFile returns an iterator over the indices of nodes located in
// file f, or an empty iterator if f is unknown.
func (g *Graph) NodesForFile(f string) NodeSeq {
	list, ok := g.byFile.GetOk(f)
	if !ok {
		return emptySeq
	}

	return list.Iterate()
}

// NodesForLabel returns an iterator over the indices of nodes carrying
// label l, or an empty iterator if l is unknown.
func (g *Graph) NodesForLabel(l string) NodeSeq {
	m := g.labels.Load()

	set, ok := m.GetOk(l)
	if !ok {
		return emptySeq
	}

	return set.Iterate()
}

func emptySeq(func(uint64) bool) {}

// AllFiles returns a snapshot of every file currently indexed.
func (g *Graph) AllFiles() []string {
	var out []string

	g.byFile.Iterate()(func(e strmap.Entry[*indexList]) bool {
		out = append(out, e.Key)
		return true
	})

	return out
}

// AllLabels returns a snapshot of every label currently indexed.
func (g *Graph) AllLabels() []string {
	var out []string

	m := g.labels.Load()
	m.Iterate()(func(e strmap.Entry[*hashset.Set]) bool {
		out = append(out, e.Key)
		return true
	})

	return out
}
