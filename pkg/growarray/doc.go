// Package growarray implements the published-pointer cell and the
// concurrent growable array built on top of it: an append-only, generic,
// indexed store that amortises growth by doubling and publishes a new
// backing slice to readers via a single atomic pointer swap.
//
// Array is the substrate every higher container in this module (hashset,
// strmap, and the node table in callgraph) is built from. It owns no
// knowledge of what its elements mean; growth-time relocation is a
// policy point supplied by the caller, because hashset and strmap must
// rehash rather than blindly copy.
package growarray
