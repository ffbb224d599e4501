package txn

import (
	"github.com/livegraph/livegraph/block"
	"github.com/livegraph/livegraph/bloom"
	"github.com/livegraph/livegraph/core"
	"github.com/livegraph/livegraph/internal/blockmgr"
	"github.com/livegraph/livegraph/iter"
)

// findLabelEntry scans a directory block for label, returning its index
// and current edge-block pointer read through the atomic accessor — the
// directory entry's pointer field is the one piece of an otherwise
// immutable block that overflow migration updates in place. A directory's head block always carries the complete,
// up-to-date label set, since growth always copies every prior entry
// forward, so a linear scan of just the head is enough for both readers
// and writers.
func findLabelEntry(dirBuf []byte, label core.Label) (idx int, ptr uint64, found bool) {
	n := int(block.AtomicNumLabelEntries(dirBuf))
	for i := 0; i < n; i++ {
		l, _ := block.LabelEntry(dirBuf, i)
		if core.Label(l) == label {
			return i, block.AtomicLabelPointer(dirBuf, i), true
		}
	}
	return 0, 0, false
}

// installLabelEntry appends a brand-new (label, edgeHead) pair to src's
// directory, growing or allocating the directory block if needed, and
// returns the directory block actually holding the entry plus its index
// (for later atomic pointer updates during overflow migration).
func (t *Transaction) installLabelEntry(src core.VertexID, label core.Label, edgeHead uint64) ([]byte, int, error) {
	oldDirHead := t.eng.vtable.EdgeLabelHead(src)

	if oldDirHead == blockmgr.NullPointer {
		order := orderFor(block.EdgeLabelHeaderSize, block.EdgeLabelEntrySize)
		buf, off, err := t.alloc(order)
		if err != nil {
			return nil, 0, err
		}
		block.SetType(buf, block.KindEdgeLabel)
		block.SetVertexID(buf, uint64(src))
		block.SetCreationTime(buf, int64(t.currentTimestamp()))
		block.SetPrevPointer(buf, blockmgr.NullPointer)
		block.SetLabelEntry(buf, 0, uint16(label), edgeHead)
		block.SetNumLabelEntries(buf, 1)

		t.eng.vtable.SetEdgeLabelHead(src, off)
		t.rollback = append(t.rollback, rollbackStep{kind: rollbackEdgeLabelHead, vertexID: src, oldValue: oldDirHead})
		return buf, 0, nil
	}

	old := t.eng.blockAt(oldDirHead)
	n := int(block.NumLabelEntries(old))
	order := block.Order(old)

	if block.DirHasSpace(order, uint64(n+1)) {
		block.SetLabelEntry(old, n, uint16(label), edgeHead)
		block.AtomicSetNumLabelEntries(old, uint64(n+1))
		return old, n, nil
	}

	newOrder := order + 1
	for !block.DirHasSpace(newOrder, uint64(n+1)) {
		newOrder++
	}
	buf, off, err := t.alloc(newOrder)
	if err != nil {
		return nil, 0, err
	}
	block.SetType(buf, block.KindEdgeLabel)
	block.SetVertexID(buf, uint64(src))
	block.SetCreationTime(buf, int64(t.currentTimestamp()))
	block.SetPrevPointer(buf, oldDirHead)
	for i := 0; i < n; i++ {
		l, p := block.LabelEntry(old, i)
		block.SetLabelEntry(buf, i, l, p)
	}
	block.SetLabelEntry(buf, n, uint16(label), edgeHead)
	block.SetNumLabelEntries(buf, uint64(n+1))

	t.eng.vtable.SetEdgeLabelHead(src, off)
	t.rollback = append(t.rollback, rollbackStep{kind: rollbackEdgeLabelHead, vertexID: src, oldValue: oldDirHead})
	return buf, n, nil
}

// smallestEdgeOrder returns the smallest order >= minOrder an edge block
// needs to hold numEntries entries and dataLength payload bytes.
func smallestEdgeOrder(minOrder uint8, numEntries, dataLength uint64) uint8 {
	order := minOrder
	for !block.HasSpace(order, numEntries, dataLength) {
		order++
	}
	return order
}

func (t *Transaction) initEdgeBlock(buf []byte, src core.VertexID, prev uint64) {
	block.SetType(buf, block.KindEdge)
	block.SetVertexID(buf, uint64(src))
	block.SetCreationTime(buf, int64(t.currentTimestamp()))
	block.SetPrevPointer(buf, prev)
	block.SetCommittedTime(buf, 0)
	block.NewEdgeTail(buf).Init()
}

func bloomWindow(buf []byte, order uint8) []byte {
	n := block.BloomBytes(order)
	if n == 0 {
		return nil
	}
	return buf[len(buf)-n:]
}

func insertBloom(buf []byte, order uint8, dst core.VertexID) {
	w := bloomWindow(buf, order)
	if w == nil {
		return
	}
	f := bloom.Over(w)
	f.Insert(uint64(dst))
	f.Flush(w)
}

// appendEntry writes a new tail-anchored entry at index idx and its
// payload at the head-anchored data offset dataOff.
func appendEntry(buf []byte, order uint8, idx, dataOff int, dst core.VertexID, data []byte, creationTime int64) {
	slot := block.EntrySlot(buf, order, idx)
	block.SetEntryLength(slot, uint16(len(data)))
	block.SetEntryDst(slot, uint64(dst))
	block.SetEntryCreationTime(slot, creationTime)
	block.SetEntryDeletionTime(slot, int64(core.PositiveInfinity))
	copy(buf[block.EdgeHeaderSize+dataOff:], data)
}

// markLiveEntryDeleted scans buf (the writer's own current-head view) for
// a live entry matching dst and stamps its deletion_time, returning the
// entry's bytes for a rollback step, or nil if none was found.
func (t *Transaction) markLiveEntryDeleted(buf []byte, dst core.VertexID, deletionStamp int64) []byte {
	order := block.Order(buf)
	numEntries, _ := block.NewEdgeTail(buf).Load()
	for i := int(numEntries) - 1; i >= 0; i-- {
		e := block.EntrySlot(buf, order, i)
		if block.EntryDst(e) != uint64(dst) {
			continue
		}
		del := core.Timestamp(block.EntryDeletionTime(e))
		if core.CompareTimestamp(del, t.readEpoch, t.localTxnID) <= 0 {
			continue // already dead from our own point of view; keep scanning
		}
		block.SetEntryDeletionTime(e, deletionStamp)
		return e
	}
	return nil
}

// PutEdge installs a new live version of (src,label,dst), replacing any
// existing live entry unless forceInsert is set.
func (t *Transaction) PutEdge(src core.VertexID, label core.Label, dst core.VertexID, data []byte, forceInsert bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireWritable(); err != nil {
		return err
	}

	lock := t.eng.vtable.Lock(src)
	lock.Lock()
	defer lock.Unlock()

	dirHead := t.eng.vtable.EdgeLabelHead(src)
	var dirBuf []byte
	var entryIdx int
	var edgeHead uint64
	found := false
	if dirHead != blockmgr.NullPointer {
		dirBuf = t.eng.blockAt(dirHead)
		entryIdx, edgeHead, found = findLabelEntry(dirBuf, label)
	}

	var edgeBuf []byte
	if !found {
		order := smallestEdgeOrder(6, 1, uint64(len(data)))
		buf, off, err := t.alloc(order)
		if err != nil {
			return err
		}
		t.initEdgeBlock(buf, src, blockmgr.NullPointer)
		edgeHead = off
		edgeBuf = buf

		newDirBuf, idx, err := t.installLabelEntry(src, label, edgeHead)
		if err != nil {
			return err
		}
		dirBuf, entryIdx = newDirBuf, idx
	} else {
		edgeBuf = t.eng.blockAt(edgeHead)
	}
	t.touchEdgeBlock(edgeHead)

	var deletedEntry []byte
	if !forceInsert {
		deletedEntry = t.markLiveEntryDeleted(edgeBuf, dst, int64(t.currentTimestamp()))
	}

	order := block.Order(edgeBuf)
	numEntries, dataLength := block.NewEdgeTail(edgeBuf).Load()

	if block.HasSpace(order, numEntries+1, dataLength+uint64(len(data))) {
		appendEntry(edgeBuf, order, int(numEntries), int(dataLength), dst, data, int64(t.currentTimestamp()))
		insertBloom(edgeBuf, order, dst)
		block.NewEdgeTail(edgeBuf).Publish(numEntries+1, dataLength+uint64(len(data)))
		t.rollback = append(t.rollback, rollbackStep{
			kind:          rollbackEdgeAppend,
			tailBuf:       edgeBuf,
			oldNumEntries: numEntries,
			oldDataLength: dataLength,
		})
	} else {
		newOrder := smallestEdgeOrder(order+1, numEntries+1, dataLength+uint64(len(data)))
		newBuf, newOff, err := t.alloc(newOrder)
		if err != nil {
			return err
		}
		t.initEdgeBlock(newBuf, src, edgeHead)

		liveCount, liveDataLen := copyLiveEntries(edgeBuf, newBuf, order, newOrder, int(numEntries))
		appendEntry(newBuf, newOrder, liveCount, liveDataLen, dst, data, int64(t.currentTimestamp()))
		for i := 0; i < liveCount; i++ {
			copied := block.EntrySlot(newBuf, newOrder, i)
			insertBloom(newBuf, newOrder, core.VertexID(block.EntryDst(copied)))
		}
		insertBloom(newBuf, newOrder, dst)
		block.NewEdgeTail(newBuf).Publish(uint64(liveCount+1), uint64(liveDataLen+len(data)))

		block.AtomicSetLabelPointer(dirBuf, entryIdx, newOff)
		t.rollback = append(t.rollback, rollbackStep{kind: rollbackEdgeBlockHead, dirBlock: dirBuf, entryIndex: entryIdx, oldValue: edgeHead})
	}

	if deletedEntry != nil {
		t.rollback = append(t.rollback, rollbackStep{kind: rollbackEdgeDeletion, entryBytes: deletedEntry})
	}

	t.mutLog = append(t.mutLog, Mutation{Kind: MutPutEdge, Src: src, Label: label, Dst: dst, Data: data, ForceInsert: forceInsert})
	return nil
}

// copyLiveEntries copies every entry from old (order oldOrder) that isn't
// already a permanently dead committed deletion into new (order
// newOrder), starting at slot 0 and data offset 0, returning the count
// and total data bytes copied. This is the overflow-migration step that
// copies only live entries forward, leaving committed-dead entries and
// their data-region bytes behind in the old block.
func copyLiveEntries(old []byte, new []byte, oldOrder, newOrder uint8, numEntries int) (count, dataLen int) {
	oldDataOff := 0
	for i := 0; i < numEntries; i++ {
		e := block.EntrySlot(old, oldOrder, i)
		length := int(block.EntryLength(e))
		data := old[block.EdgeHeaderSize+oldDataOff : block.EdgeHeaderSize+oldDataOff+length]
		oldDataOff += length

		del := core.Timestamp(block.EntryDeletionTime(e))
		if del != core.PositiveInfinity && !del.IsPending() {
			continue // committed-deleted: drop from the fresh block
		}

		dst := block.EntrySlot(new, newOrder, count)
		copy(dst, e)
		copy(new[block.EdgeHeaderSize+dataLen:], data)
		dataLen += length
		count++
	}
	return count, dataLen
}

// DelEdge marks the live entry for (src,label,dst) deleted, returning
// whether one existed under this transaction's own view.
func (t *Transaction) DelEdge(src core.VertexID, label core.Label, dst core.VertexID) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireWritable(); err != nil {
		return false, err
	}

	lock := t.eng.vtable.Lock(src)
	lock.Lock()
	defer lock.Unlock()

	dirHead := t.eng.vtable.EdgeLabelHead(src)
	if dirHead == blockmgr.NullPointer {
		return false, nil
	}
	dirBuf := t.eng.blockAt(dirHead)
	_, edgeHead, found := findLabelEntry(dirBuf, label)
	if !found {
		return false, nil
	}
	edgeBuf := t.eng.blockAt(edgeHead)
	t.touchEdgeBlock(edgeHead)

	deleted := t.markLiveEntryDeleted(edgeBuf, dst, int64(t.currentTimestamp()))
	if deleted == nil {
		return false, nil
	}

	t.rollback = append(t.rollback, rollbackStep{kind: rollbackEdgeDeletion, entryBytes: deleted})
	t.mutLog = append(t.mutLog, Mutation{Kind: MutDelEdge, Src: src, Label: label, Dst: dst})
	return true, nil
}

// emptyEdgeBlock synthesizes a zero-entry edge block for GetEdges to hand
// to package iter when (src,label) has no directory entry, or none
// visible to this snapshot, so callers always get a usable (if
// immediately exhausted) iterator instead of a nil special case.
func emptyEdgeBlock() []byte {
	const order = 6 // smallest order comfortably >= EdgeHeaderSize
	buf := make([]byte, 1<<order)
	block.SetOrder(buf, order)
	block.SetType(buf, block.KindEdge)
	block.NewEdgeTail(buf).Init()
	return buf
}

// resolveEdgeBlock returns the edge block holding (src,label)'s live
// entries under this transaction's snapshot, or nil if src has no such
// label.
func (t *Transaction) resolveEdgeBlock(src core.VertexID, label core.Label) []byte {
	dirHead := t.eng.vtable.EdgeLabelHead(src)
	dirBuf := t.eng.visibleVersion(dirHead, t.readEpoch, t.localTxnID)
	if dirBuf == nil {
		return nil
	}
	_, edgeHead, found := findLabelEntry(dirBuf, label)
	if !found {
		return nil
	}
	return t.eng.visibleVersion(edgeHead, t.readEpoch, t.localTxnID)
}

// GetEdges returns an iterator over the live edges for (src,label) under
// this transaction's snapshot, newest-first if reverse.
func (t *Transaction) GetEdges(src core.VertexID, label core.Label, reverse bool) *iter.EdgeIterator {
	edgeBuf := t.resolveEdgeBlock(src, label)
	if edgeBuf == nil {
		return iter.New(emptyEdgeBlock(), reverse, t.readEpoch, t.localTxnID)
	}
	return iter.New(edgeBuf, reverse, t.readEpoch, t.localTxnID)
}

// GetEdge returns the live payload for (src,label,dst) under this
// transaction's snapshot, or nil if absent. When force_insert produced
// more than one live entry for the same destination, the newest by
// creation_time wins, which a reverse walk gives for free.
//
// A block large enough to carry a Bloom filter is checked first: a
// negative Contains means dst cannot be in the block under any snapshot
// (Insert is never skipped for a live entry), so the full entry scan is
// skipped entirely.
func (t *Transaction) GetEdge(src core.VertexID, label core.Label, dst core.VertexID) []byte {
	edgeBuf := t.resolveEdgeBlock(src, label)
	if edgeBuf == nil {
		return nil
	}
	order := block.Order(edgeBuf)
	if w := bloomWindow(edgeBuf, order); w != nil {
		if !bloom.Over(w).Contains(uint64(dst)) {
			return nil
		}
	}
	it := iter.New(edgeBuf, true, t.readEpoch, t.localTxnID)
	for it.Valid() {
		if it.DstID() == dst {
			return it.EdgeData()
		}
		it.Next()
	}
	return nil
}
