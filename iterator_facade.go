package livegraph

import "github.com/livegraph/livegraph/iter"

// EdgeIterator walks the live edges for one (src,label) under a
// transaction's snapshot, forward (insertion order) or reverse
// (newest-first). It forwards directly to package iter's EdgeIterator.
type EdgeIterator struct {
	inner *iter.EdgeIterator
}

// Valid reports whether the iterator currently points at a visible entry.
func (e *EdgeIterator) Valid() bool { return e.inner.Valid() }

// Next advances to the following visible entry.
func (e *EdgeIterator) Next() { e.inner.Next() }

// DstID returns the current entry's destination vertex id, or
// VertexTombstone once exhausted.
func (e *EdgeIterator) DstID() VertexID { return e.inner.DstID() }

// EdgeData returns the current entry's variable-length payload, or nil
// once exhausted.
func (e *EdgeIterator) EdgeData() []byte { return e.inner.EdgeData() }

// CreationTime returns the current entry's creation timestamp.
func (e *EdgeIterator) CreationTime() Timestamp { return e.inner.CreationTime() }
