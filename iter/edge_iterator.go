// Package iter implements the edge iterator, walking one
// edge block's tail-anchored entry array in either creation order or its
// reverse, skipping entries not visible to the caller's snapshot, and
// tracking the matching head-anchored data cursor so edge_data() stays
// O(1) per step.
package iter

import (
	"github.com/livegraph/livegraph/block"
	"github.com/livegraph/livegraph/core"
)

// EdgeIterator walks the entries of one edge block, forward (oldest first)
// or reverse (newest first), yielding only entries visible at readEpochID
// for localTxnID. It does not cross block boundaries — the caller walks
// the prev_pointer chain itself and constructs a new EdgeIterator per
// block.
type EdgeIterator struct {
	buf   []byte
	order uint8
	count int

	reverse     bool
	cursor      int // next slot index to examine
	dataCursor  int // data-region boundary not yet consumed in this direction
	readEpochID core.Timestamp
	localTxnID  int64

	valid    bool
	curIdx   int
	curEntry []byte
	curData  []byte
}

// New builds an iterator over blockBytes (a full edge block, header
// included), starting at the first visible entry.
func New(blockBytes []byte, reverse bool, readEpochID core.Timestamp, localTxnID int64) *EdgeIterator {
	order := block.Order(blockBytes)
	numEntries, dataLength := block.NewEdgeTail(blockBytes).Load()

	it := &EdgeIterator{
		buf:         blockBytes,
		order:       order,
		count:       int(numEntries),
		reverse:     reverse,
		readEpochID: readEpochID,
		localTxnID:  localTxnID,
	}

	if it.reverse {
		it.cursor = it.count - 1
		it.dataCursor = int(dataLength)
	} else {
		it.cursor = 0
		it.dataCursor = 0
	}
	it.advance()
	return it
}

func (it *EdgeIterator) visible(e []byte) bool {
	created := core.Timestamp(block.EntryCreationTime(e))
	if core.CompareTimestamp(created, it.readEpochID, it.localTxnID) > 0 {
		return false // created after our snapshot
	}
	deleted := block.EntryDeletionTime(e)
	if deleted == 0 {
		return true // never deleted
	}
	return core.CompareTimestamp(core.Timestamp(deleted), it.readEpochID, it.localTxnID) > 0 // deleted after our snapshot
}

// advance scans from the current cursor (inclusive) for the next visible
// entry, sliding the data cursor past every entry it skips — visible or
// not — since the data region is physically contiguous in append order
// regardless of which entries are currently visible.
func (it *EdgeIterator) advance() {
	for {
		if it.cursor < 0 || it.cursor >= it.count {
			it.valid = false
			it.curEntry, it.curData = nil, nil
			return
		}
		e := block.EntrySlot(it.buf, it.order, it.cursor)
		length := int(block.EntryLength(e))

		var dataStart, next int
		if it.reverse {
			dataStart = it.dataCursor - length
			next = dataStart
		} else {
			dataStart = it.dataCursor
			next = dataStart + length
		}

		if it.visible(e) {
			it.valid = true
			it.curIdx = it.cursor
			it.curEntry = e
			it.curData = it.buf[block.EdgeHeaderSize+dataStart : block.EdgeHeaderSize+dataStart+length]
			it.dataCursor = next
			it.step()
			return
		}

		it.dataCursor = next
		it.step()
	}
}

func (it *EdgeIterator) step() {
	if it.reverse {
		it.cursor--
	} else {
		it.cursor++
	}
}

// Valid reports whether the iterator currently points at a visible entry.
func (it *EdgeIterator) Valid() bool { return it.valid }

// Next advances to the following visible entry.
func (it *EdgeIterator) Next() {
	if !it.valid {
		return
	}
	it.advance()
}

// DstID returns the current entry's destination vertex id, or
// core.VertexTombstone once exhausted.
func (it *EdgeIterator) DstID() core.VertexID {
	if !it.valid {
		return core.VertexTombstone
	}
	return core.VertexID(block.EntryDst(it.curEntry))
}

// CreationTime returns the current entry's creation timestamp.
func (it *EdgeIterator) CreationTime() core.Timestamp {
	return core.Timestamp(block.EntryCreationTime(it.curEntry))
}

// EdgeData returns the current entry's variable-length payload, or an
// empty slice once exhausted.
func (it *EdgeIterator) EdgeData() []byte {
	if !it.valid {
		return nil
	}
	return it.curData
}

// Index returns the current entry's physical slot index within the
// block's tail-anchored entry array, for callers (e.g. compaction) that
// need to address the entry directly.
func (it *EdgeIterator) Index() int { return it.curIdx }
