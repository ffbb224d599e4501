package txn

import (
	"github.com/livegraph/livegraph/block"
	"github.com/livegraph/livegraph/core"
)

// NewVertex allocates a fresh vertex id, or reuses one from the recycle
// pool if useRecycled is requested and the pool is non-empty. The id is
// not visible to any reader until a PutVertex or edge insertion installs
// a block for it.
func (t *Transaction) NewVertex(useRecycled bool) (core.VertexID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireWritable(); err != nil {
		return 0, err
	}

	if useRecycled {
		if id, ok := t.eng.recycle.Pop(); ok {
			return id, nil
		}
	}

	id := core.VertexID(t.eng.nextVertexID.Add(1) - 1)
	if id > core.MaxVertexID {
		return 0, rollbackf("vertex id space exhausted")
	}
	return id, nil
}

// PutVertex installs a new version of vertex id's data.
func (t *Transaction) PutVertex(id core.VertexID, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireWritable(); err != nil {
		return err
	}
	if id > t.eng.vtable.MaxID() || id >= core.VertexID(t.eng.nextVertexID.Load()) {
		return vertexNotAllocated(id)
	}

	lock := t.eng.vtable.Lock(id)
	lock.Lock()
	defer lock.Unlock()

	oldHead := t.eng.vtable.DataHead(id)
	if visible := t.eng.visibleVersion(oldHead, t.readEpoch, t.localTxnID); visible != nil {
		if block.VertexLength(visible) == block.Tombstone {
			return vertexDeleted(id)
		}
	}

	order := orderFor(block.VertexHeaderSize, len(data))
	buf, off, err := t.alloc(order)
	if err != nil {
		return err
	}
	block.SetType(buf, block.KindVertex)
	block.SetVertexID(buf, uint64(id))
	block.SetCreationTime(buf, int64(t.currentTimestamp()))
	block.SetPrevPointer(buf, oldHead)
	block.SetVertexLength(buf, uint64(len(data)))
	copy(block.VertexData(buf), data)

	t.eng.vtable.SetDataHead(id, off)
	if t.eng.vtable.CreationTime(id) == 0 {
		t.eng.vtable.SetCreationTime(id, t.currentTimestamp())
	}
	oldDeletion := t.eng.vtable.DeletionTime(id)
	t.eng.vtable.SetDeletionTime(id, 0)

	t.rollback = append(t.rollback,
		rollbackStep{kind: rollbackVertexHead, vertexID: id, oldValue: oldHead},
		rollbackStep{kind: rollbackVertexDeletion, vertexID: id, oldValue: uint64(oldDeletion)},
	)
	t.mutLog = append(t.mutLog, Mutation{Kind: MutPutVertex, VertexID: id, Data: data})
	return nil
}

// DelVertex writes a tombstone version of id, optionally queuing it for
// recycling once this transaction commits. It returns whether the vertex
// was previously alive under this transaction's snapshot.
func (t *Transaction) DelVertex(id core.VertexID, recycleID bool) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireWritable(); err != nil {
		return false, err
	}
	if id > t.eng.vtable.MaxID() {
		return false, nil
	}

	lock := t.eng.vtable.Lock(id)
	lock.Lock()
	defer lock.Unlock()

	oldHead := t.eng.vtable.DataHead(id)
	visible := t.eng.visibleVersion(oldHead, t.readEpoch, t.localTxnID)
	wasAlive := visible != nil && block.VertexLength(visible) != block.Tombstone
	if !wasAlive {
		return false, nil
	}

	order := orderFor(block.VertexHeaderSize, 0)
	buf, off, err := t.alloc(order)
	if err != nil {
		return false, err
	}
	block.SetType(buf, block.KindVertex)
	block.SetVertexID(buf, uint64(id))
	block.SetCreationTime(buf, int64(t.currentTimestamp()))
	block.SetPrevPointer(buf, oldHead)
	block.SetVertexLength(buf, block.Tombstone)

	t.eng.vtable.SetDataHead(id, off)
	oldDeletion := t.eng.vtable.DeletionTime(id)
	t.eng.vtable.SetDeletionTime(id, t.currentTimestamp())

	t.rollback = append(t.rollback,
		rollbackStep{kind: rollbackVertexHead, vertexID: id, oldValue: oldHead},
		rollbackStep{kind: rollbackVertexDeletion, vertexID: id, oldValue: uint64(oldDeletion)},
	)
	t.mutLog = append(t.mutLog, Mutation{Kind: MutDelVertex, VertexID: id, Recycle: recycleID})

	if recycleID {
		t.recycled = append(t.recycled, id)
	}
	return true, nil
}

// GetVertex returns id's data under this transaction's snapshot, or nil
// if absent, tombstoned, or not yet visible.
func (t *Transaction) GetVertex(id core.VertexID) []byte {
	if id > t.eng.vtable.MaxID() {
		return nil
	}
	head := t.eng.vtable.DataHead(id)
	buf := t.eng.visibleVersion(head, t.readEpoch, t.localTxnID)
	if buf == nil || block.VertexLength(buf) == block.Tombstone {
		return nil
	}
	return block.VertexData(buf)
}
