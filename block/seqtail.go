package block

import (
	"sync/atomic"
)

// EdgeTail wraps the seqlock-protected (num_entries, data_length) pair at
// the fixed offset [32:48) of an edge block. Go has no native 16-byte
// atomic, so this is a seqlock fallback: an even sequence counter means
// the pair is stable; odd means a writer is mid-publish. Readers retry on
// a changed or odd sequence.
//
// Byte layout within the 16-byte tail:
//
//	[0:8)   seq      uint64 (even = stable)
//	[8:12)  numEntries  uint32
//	[12:16) dataLength  uint32
type EdgeTail struct {
	b []byte // the 16-byte tail window
}

// NewEdgeTail wraps the tail window of an edge block (bytes [32:48)).
func NewEdgeTail(blockBytes []byte) EdgeTail {
	return EdgeTail{b: blockBytes[32:48]}
}

func (t EdgeTail) seqPtr() *uint64 {
	return (*uint64)(ptrAt(t.b, 0))
}

func (t EdgeTail) numEntriesPtr() *uint32 {
	return (*uint32)(ptrAt(t.b, 8))
}

func (t EdgeTail) dataLengthPtr() *uint32 {
	return (*uint32)(ptrAt(t.b, 12))
}

// Load returns a consistent (numEntries, dataLength) snapshot, retrying
// while a writer is mid-publish or the pair changed during the read.
func (t EdgeTail) Load() (numEntries, dataLength uint64) {
	for {
		seq1 := atomic.LoadUint64(t.seqPtr())
		if seq1&1 != 0 {
			continue // writer in progress
		}
		n := atomic.LoadUint32(t.numEntriesPtr())
		d := atomic.LoadUint32(t.dataLengthPtr())
		seq2 := atomic.LoadUint64(t.seqPtr())
		if seq1 == seq2 {
			return uint64(n), uint64(d)
		}
	}
}

// Publish atomically installs a new (numEntries, dataLength) pair. Callers
// must already have written the new entry/data bytes this pair makes
// visible before calling Publish; only one writer may publish to a given
// block at a time (serialized by the caller's per-vertex lock).
func (t EdgeTail) Publish(numEntries, dataLength uint64) {
	seq := atomic.LoadUint64(t.seqPtr())
	atomic.StoreUint64(t.seqPtr(), seq+1)
	atomic.StoreUint32(t.numEntriesPtr(), uint32(numEntries))
	atomic.StoreUint32(t.dataLengthPtr(), uint32(dataLength))
	atomic.StoreUint64(t.seqPtr(), seq+2)
}

// Init sets the tail to (0, 0) with a fresh, even sequence. Used when a
// freshly allocated edge block is first installed.
func (t EdgeTail) Init() {
	atomic.StoreUint64(t.seqPtr(), 0)
	atomic.StoreUint32(t.numEntriesPtr(), 0)
	atomic.StoreUint32(t.dataLengthPtr(), 0)
}
