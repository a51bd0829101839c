// Package callgraph implements the concurrent call-graph store (CG): the
// node table, the name/username/file indices, and the label index,
// layered on pkg/growarray, pkg/hashset, and pkg/strmap.
//
// A Graph is built once by many concurrent parser-worker goroutines, each
// holding its own reader handle, and later queried by a single-threaded
// front-end. Every exported Graph method that touches node or index
// storage must be called from inside a reader region obtained from
// RegisterReader; see pkg/rcu for the region discipline.
package callgraph
