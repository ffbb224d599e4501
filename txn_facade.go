package livegraph

import (
	"time"

	"github.com/livegraph/livegraph/txn"
)

// Transaction is one unit of work against a Graph: a read-only snapshot, a
// read-write transaction, or a batch loader. It forwards
// directly to package txn's Transaction, adding only logging/metrics
// hooks and the root package's re-exported value types.
type Transaction struct {
	inner *txn.Transaction
	g     *Graph
	kind  string // "read-write" | "read-only" | "batch-loader"
}

// ReadEpochID returns the snapshot this transaction observes.
func (t *Transaction) ReadEpochID() Timestamp { return t.inner.ReadEpochID() }

// NewVertex allocates a fresh vertex id, or reuses one from the recycle
// pool if useRecycled is requested and the pool is non-empty. The id is
// not visible to any reader until PutVertex or an edge insertion installs
// a block for it.
func (t *Transaction) NewVertex(useRecycled bool) (VertexID, error) {
	return t.inner.NewVertex(useRecycled)
}

// PutVertex installs a new version of id's data.
func (t *Transaction) PutVertex(id VertexID, data []byte) error {
	return t.inner.PutVertex(id, data)
}

// DelVertex writes a tombstone version of id, optionally queuing it for
// recycling once this transaction commits. Returns whether the vertex was
// previously alive under this transaction's snapshot.
func (t *Transaction) DelVertex(id VertexID, recycle bool) (bool, error) {
	return t.inner.DelVertex(id, recycle)
}

// GetVertex returns id's data under this transaction's snapshot, or nil
// if absent, tombstoned, or not yet visible. Reads never fail.
func (t *Transaction) GetVertex(id VertexID) []byte {
	return t.inner.GetVertex(id)
}

// PutEdge installs a new live version of (src,label,dst), replacing any
// existing live entry unless forceInsert is set.
func (t *Transaction) PutEdge(src VertexID, label Label, dst VertexID, data []byte, forceInsert bool) error {
	return t.inner.PutEdge(src, label, dst, data, forceInsert)
}

// DelEdge marks the live entry for (src,label,dst) deleted, returning
// whether one existed under this transaction's own view.
func (t *Transaction) DelEdge(src VertexID, label Label, dst VertexID) (bool, error) {
	return t.inner.DelEdge(src, label, dst)
}

// GetEdge returns the live payload for (src,label,dst) under this
// transaction's snapshot, or nil if absent.
func (t *Transaction) GetEdge(src VertexID, label Label, dst VertexID) []byte {
	return t.inner.GetEdge(src, label, dst)
}

// GetEdges returns an iterator over the live edges for (src,label) under
// this transaction's snapshot, newest-first if reverse.
func (t *Transaction) GetEdges(src VertexID, label Label, reverse bool) *EdgeIterator {
	return &EdgeIterator{inner: t.inner.GetEdges(src, label, reverse)}
}

// Commit finalizes a read-write transaction: stamps a write epoch,
// appends the mutation log to the WAL, rewrites every pending-timestamp
// field this transaction installed, and — if waitVisible — blocks until
// the visible epoch catches up.
func (t *Transaction) Commit(waitVisible bool) (Timestamp, error) {
	start := time.Now()
	mutations := t.inner.MutationCount()
	epoch, err := t.inner.Commit(waitVisible)
	if t.g != nil {
		t.g.logger.LogCommit(t.kind, int64(epoch), mutations, err)
		t.g.metrics.RecordCommit(t.kind, time.Since(start), mutations, err)
	}
	return epoch, err
}

// Abort undoes every installed head, frees blocks this transaction
// allocated, re-surfaces entries it marked deleted, and drops any ids it
// queued for recycling.
func (t *Transaction) Abort() {
	t.inner.Abort()
	if t.g != nil {
		t.g.logger.LogAbort(t.kind, nil)
		t.g.metrics.RecordAbort(t.kind)
	}
}
