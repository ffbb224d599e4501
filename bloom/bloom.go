// Package bloom implements the fixed-size Bloom filter embedded in the
// tail of large edge blocks (block.BloomBytes), backed by
// github.com/bits-and-blooms/bitset holding a copy of the block's own
// reserved byte window; Flush writes the bits back into the window.
package bloom

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/bits-and-blooms/bitset"
)

// numHashes is the number of independent hash probes per insert/contains.
// A small fixed count keeps the filter cheap; it only needs to avoid false
// negatives (invariant 8.7), false positives are an acceptable cost of a
// faster adjacency scan.
const numHashes = 4

// Filter is a working copy of a block's reserved Bloom-filter byte region.
// Insert/Contains/Clear act on the copy; Flush stores it back.
type Filter struct {
	bits *bitset.BitSet
	nbits uint
}

// Over wraps a block's Bloom-filter byte window (block.BloomBytes(order)
// bytes) as a Filter. The window's length must be a whole number of
// 8-byte words; the words are decoded into a fresh []uint64 that
// bitset.From wraps, so the Filter does not alias the window.
func Over(window []byte) Filter {
	words := make([]uint64, len(window)/8)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(window[i*8 : i*8+8])
	}
	bs := bitset.From(words)
	return Filter{bits: bs, nbits: uint(len(window) * 8)}
}

// Valid reports whether the filter has any capacity (non-empty window).
func (f Filter) Valid() bool { return f.nbits > 0 }

// Flush writes the filter's current bit state back into window (the same
// slice passed to Over), since bitset.BitSet keeps its own []uint64 copy
// rather than aliasing the original bytes.
func (f Filter) Flush(window []byte) {
	words := f.bits.Bytes()
	for i, w := range words {
		if i*8+8 > len(window) {
			break
		}
		binary.LittleEndian.PutUint64(window[i*8:i*8+8], w)
	}
}

func (f Filter) slots(vertexID uint64) [numHashes]uint {
	var out [numHashes]uint
	h := fnv.New64a()
	var buf [8]byte
	for i := 0; i < numHashes; i++ {
		binary.LittleEndian.PutUint64(buf[:], vertexID)
		h.Reset()
		h.Write(buf[:])
		h.Write([]byte{byte(i)})
		out[i] = uint(h.Sum64() % uint64(f.nbits))
	}
	return out
}

// Insert records vertexID as (possibly) present.
func (f Filter) Insert(vertexID uint64) {
	if f.nbits == 0 {
		return
	}
	for _, s := range f.slots(vertexID) {
		f.bits.Set(s)
	}
}

// Contains reports whether vertexID might be present. It never returns
// false for a vertex id that was Insert-ed and never Clear-ed (no false
// negatives); it may return true for ids never inserted (false positives
// are allowed).
func (f Filter) Contains(vertexID uint64) bool {
	if f.nbits == 0 {
		return true // an absent/invalid filter must not cause false negatives
	}
	for _, s := range f.slots(vertexID) {
		if !f.bits.Test(s) {
			return false
		}
	}
	return true
}

// Clear resets every bit.
func (f Filter) Clear() {
	f.bits.ClearAll()
}
