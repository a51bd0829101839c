// Package xhash provides the hashing and bit-twiddling helpers shared by
// the open-addressed containers in pkg/hashset and pkg/strmap.
package xhash

import (
	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/constraints"
)

// Word hashes a machine-word key for use as a CHS bucket index.
func Word(k uint64) uint64 {
	var buf [8]byte

	for i := range buf {
		buf[i] = byte(k >> (8 * i))
	}

	return xxhash.Sum64(buf[:])
}

// String hashes a string key for use as a CSM bucket index.
func String(s string) uint64 {
	return xxhash.Sum64String(s)
}

// NextPow2 returns the smallest power of two greater than or equal to x.
// NextPow2(0) returns 1.
func NextPow2[T constraints.Unsigned](x T) T {
	if x <= 1 {
		return 1
	}

	x--

	for shift := T(1); shift < T(64); shift <<= 1 {
		x |= x >> shift
	}

	return x + 1
}
