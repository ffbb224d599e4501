package txn

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/livegraph/livegraph/block"
	"github.com/livegraph/livegraph/core"
	"github.com/livegraph/livegraph/internal/blockmgr"
)

// rollbackKind tags an undo step recorded as a write is applied.
type rollbackKind uint8

const (
	rollbackVertexHead      rollbackKind = iota // restore vtable data head
	rollbackEdgeLabelHead                       // restore vtable edge-label-directory head
	rollbackEdgeBlockHead                       // restore a directory entry's edge-block pointer
	rollbackVertexDeletion                      // clear a pending deletion_time stamp on a vertex
	rollbackEdgeDeletion                        // clear a pending deletion_time stamp on an edge entry
	rollbackEdgeAppend                          // revert an in-place edge-block tail publish
)

type rollbackStep struct {
	kind rollbackKind

	vertexID core.VertexID
	oldValue uint64 // old head pointer, or 0

	dirBlock   []byte // for rollbackEdgeBlockHead: the directory block holding the entry
	entryIndex int

	entryBytes []byte // for *Deletion steps: the entry/vertex block to clear

	tailBuf                      []byte // for rollbackEdgeAppend: the edge block whose tail was published
	oldNumEntries, oldDataLength uint64
}

// Transaction is one unit of work against an Engine: a read-only
// snapshot, a read-write transaction, or a batch loader.
type Transaction struct {
	eng       *Engine
	mode      Mode
	readEpoch core.Timestamp

	// localTxnID is this transaction's pending-timestamp magnitude. Zero
	// for read-only transactions, which never stamp anything.
	localTxnID int64

	mu       sync.Mutex // serializes this transaction's own op calls
	done     bool
	rollback []rollbackStep
	allocd   []blockAlloc // blocks this transaction allocated, freed on abort
	mutLog   []Mutation   // applied mutations, in order, for the WAL record
	recycled []core.VertexID

	// touchedEdge holds the offsets of pre-existing (not freshly allocated
	// by this transaction) edge blocks whose entries this transaction
	// appended to or marked deleted in place, so Commit's pending-stamp
	// rewrite pass also visits them — not just allocd's fresh blocks.
	touchedEdge map[uint64]struct{}

	// batchEpoch is the epoch batch-loaded writes are stamped with
	// directly (no pending sentinel, no WAL record).
	batchEpoch core.Timestamp
}

type blockAlloc struct {
	offset uint64
	order  uint8
}

// ReadEpochID returns the snapshot this transaction observes.
func (t *Transaction) ReadEpochID() core.Timestamp { return t.readEpoch }

// MutationCount returns the number of logical writes applied so far —
// exposed for callers (e.g. root-package logging/metrics hooks) that want
// to report commit size without package txn growing a dependency on them.
func (t *Transaction) MutationCount() int { return len(t.mutLog) }

// currentTimestamp is the value newly-written blocks are stamped with:
// the pending sentinel for read-write transactions, or an immediately-
// committed epoch for batch loaders.
func (t *Transaction) currentTimestamp() core.Timestamp {
	if t.mode == ModeBatchLoader {
		return t.batchEpoch
	}
	return core.Pending(t.localTxnID)
}

func (t *Transaction) requireWritable() error {
	if t.done {
		return rollbackf("transaction already committed or aborted")
	}
	if t.mode == ModeReadOnly {
		return rollbackf("read-only transaction cannot write")
	}
	return nil
}

// touchEdgeBlock records that this transaction wrote (appended an entry to,
// or marked an entry deleted in) the pre-existing edge block at offset, so
// its pending stamps get rewritten at commit even though the block itself
// wasn't allocated by this transaction. Safe to call redundantly for a
// block already in t.allocd.
func (t *Transaction) touchEdgeBlock(offset uint64) {
	if offset == blockmgr.NullPointer {
		return
	}
	if t.touchedEdge == nil {
		t.touchedEdge = make(map[uint64]struct{})
	}
	t.touchedEdge[offset] = struct{}{}
}

func (t *Transaction) alloc(order uint8) ([]byte, uint64, error) {
	off, err := t.eng.blocks.Alloc(order)
	if err != nil {
		return nil, 0, err
	}
	t.allocd = append(t.allocd, blockAlloc{offset: off, order: order})
	buf := t.eng.blocks.Block(off, order)
	block.SetOrder(buf, order)
	return buf, off, nil
}

// orderFor returns the smallest order whose block can hold headerSize +
// payloadLen bytes.
func orderFor(headerSize, payloadLen int) uint8 {
	need := headerSize + payloadLen
	var order uint8
	for (1 << order) < need {
		order++
	}
	return order
}

// Commit finalizes a read-write transaction: it stamps a write epoch,
// appends the mutation log to the WAL, rewrites every pending-timestamp
// field this transaction installed to that epoch, and — if waitVisible —
// blocks until the visible epoch catches up.
func (t *Transaction) Commit(waitVisible bool) (core.Timestamp, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return 0, rollbackf("transaction already committed or aborted")
	}
	t.done = true
	defer t.eng.deregisterReader(int64(t.readEpoch))

	if t.mode == ModeReadOnly {
		return t.readEpoch, nil
	}
	if t.mode == ModeBatchLoader {
		// Already stamped as committed at batchEpoch; nothing to rewrite.
		t.eng.recycle.Promote(t.recycled)
		t.eng.publishEpoch(int64(t.batchEpoch))
		return t.batchEpoch, nil
	}

	epoch := core.Timestamp(t.eng.writeEpoch.Add(1))

	if err := t.eng.wal.Append(epoch, t.mutLog); err != nil {
		t.rollbackInternal()
		return 0, fmt.Errorf("%w: %v", ErrWALWrite, err)
	}

	t.rewritePendingStamps(epoch)
	t.eng.recycle.Promote(t.recycled)

	// Advance the visible epoch strictly one at a time, in write-epoch
	// order, so a reader that sees visibleEpoch >= epoch is guaranteed
	// every commit <= epoch has already finished rewriting its stamps —
	// not just that this one has. A non-waiting commit makes one
	// opportunistic attempt and returns regardless; a waiting commit
	// keeps retrying until the epoch is published. Each attempt publishes
	// only this commit's own epoch, and only once visibleEpoch has
	// reached epoch-1.
	tryAdvance := func() bool {
		cur := t.eng.visibleEpoch.Load()
		if cur >= int64(epoch) {
			return true
		}
		return cur == int64(epoch)-1 && t.eng.visibleEpoch.CompareAndSwap(cur, int64(epoch))
	}

	tryAdvance()
	if waitVisible {
		for t.eng.visibleEpoch.Load() < int64(epoch) {
			tryAdvance()
			runtime.Gosched()
		}
	}

	return epoch, nil
}

// rewritePendingStamps walks every block this transaction installed,
// appended to, or marked — both freshly allocated blocks (t.allocd) and
// pre-existing blocks it wrote into in place (t.touchedEdge) — replacing
// the -local_txn_id sentinel with the final epoch. A pre-existing block's
// own creation_time is never pending (it was already committed by some
// earlier transaction), but any entry this transaction appended or marked
// deleted within it still carries the sentinel and must be rewritten the
// same as a freshly allocated block's entries.
func (t *Transaction) rewritePendingStamps(epoch core.Timestamp) {
	pending := int64(core.Pending(t.localTxnID))
	for _, a := range t.allocd {
		buf := t.eng.blocks.Block(a.offset, a.order)
		t.rewriteBlockStamps(buf, pending, epoch)
	}
	for offset := range t.touchedEdge {
		t.rewriteBlockStamps(t.eng.blockAt(offset), pending, epoch)
	}
	for _, id := range t.touchedVertices() {
		if t.eng.vtable.CreationTime(id) == core.Timestamp(pending) {
			t.eng.vtable.SetCreationTime(id, epoch)
		}
		if t.eng.vtable.DeletionTime(id) == core.Timestamp(pending) {
			t.eng.vtable.SetDeletionTime(id, epoch)
		}
	}
}

// rewriteBlockStamps rewrites buf's own creation_time, and (for edge
// blocks) every live entry's creation_time/deletion_time, from the pending
// sentinel to epoch wherever it appears.
func (t *Transaction) rewriteBlockStamps(buf []byte, pending int64, epoch core.Timestamp) {
	if block.CreationTime(buf) == pending {
		block.SetCreationTime(buf, int64(epoch))
	}
	if block.TypeOf(buf) != block.KindEdge {
		return
	}
	order := block.Order(buf)
	numEntries, _ := block.NewEdgeTail(buf).Load()
	for i := 0; i < int(numEntries); i++ {
		e := block.EntrySlot(buf, order, i)
		if block.EntryCreationTime(e) == pending {
			block.SetEntryCreationTime(e, int64(epoch))
		}
		if block.EntryDeletionTime(e) == pending {
			block.SetEntryDeletionTime(e, int64(epoch))
		}
	}
}

func (t *Transaction) touchedVertices() []core.VertexID {
	seen := map[core.VertexID]bool{}
	var out []core.VertexID
	for _, r := range t.rollback {
		if r.kind == rollbackVertexHead || r.kind == rollbackVertexDeletion {
			if !seen[r.vertexID] {
				seen[r.vertexID] = true
				out = append(out, r.vertexID)
			}
		}
	}
	return out
}

// Abort undoes every installed head, frees blocks this transaction
// allocated, re-surfaces entries it marked deleted, and drops any ids it
// queued for recycling.
func (t *Transaction) Abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	t.rollbackInternal()
	t.eng.deregisterReader(int64(t.readEpoch))
}

func (t *Transaction) rollbackInternal() {
	for i := len(t.rollback) - 1; i >= 0; i-- {
		r := t.rollback[i]
		switch r.kind {
		case rollbackVertexHead:
			t.eng.vtable.SetDataHead(r.vertexID, r.oldValue)
		case rollbackEdgeLabelHead:
			t.eng.vtable.SetEdgeLabelHead(r.vertexID, r.oldValue)
		case rollbackEdgeBlockHead:
			block.AtomicSetLabelPointer(r.dirBlock, r.entryIndex, r.oldValue)
		case rollbackVertexDeletion:
			t.eng.vtable.SetDeletionTime(r.vertexID, core.Timestamp(r.oldValue))
		case rollbackEdgeDeletion:
			block.SetEntryDeletionTime(r.entryBytes, int64(core.PositiveInfinity))
		case rollbackEdgeAppend:
			block.NewEdgeTail(r.tailBuf).Publish(r.oldNumEntries, r.oldDataLength)
		}
	}
	for _, a := range t.allocd {
		t.eng.blocks.Free(a.offset, a.order)
	}
}
