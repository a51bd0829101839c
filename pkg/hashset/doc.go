// Package hashset implements the open-addressed concurrent hash set of
// machine words (CHS): linear probing over a growarray.Array backing, a
// reserved MAX sentinel for empty slots, and growth at 0.75 load factor.
//
// Set is the container behind every node-index set in pkg/callgraph
// (callers, calls, refs, and the per-label index sets). The per-file node
// lists are not Sets; they are append-ordered arrays in pkg/callgraph.
package hashset
