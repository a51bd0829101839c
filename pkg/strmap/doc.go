// Package strmap implements the open-addressed concurrent string map
// (CSM): a linear-probed table whose key cell moves through three
// states — empty, pending, resolved — so that one goroutine's
// in-progress insert is never observed half-written by another.
//
// Map is the container behind the name, username, and per-file node
// index tables in pkg/callgraph.
package strmap
