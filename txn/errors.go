package txn

import (
	"errors"
	"fmt"

	"github.com/livegraph/livegraph/core"
)

// The ErrRollback family: distinguishable causes that all satisfy
// errors.Is(err, ErrRollback), so a caller that only cares "must I discard
// this transaction" can match on ErrRollback alone, while one that wants
// to branch on cause can match the specific sentinel.
var (
	// ErrVertexNotAllocated is returned by a write to a vertex id this
	// transaction's engine never handed out.
	ErrVertexNotAllocated = fmt.Errorf("%w: vertex not allocated", ErrRollback)

	// ErrVertexDeleted is returned by a write to a vertex tombstoned in
	// the transaction's own snapshot.
	ErrVertexDeleted = fmt.Errorf("%w: vertex deleted in this snapshot", ErrRollback)

	// ErrSnapshotConflict names a write that would violate the
	// transaction's read snapshot — a version it depended on changed
	// underneath it before commit. No write path in this package checks
	// for such conflicts, so it is never returned.
	ErrSnapshotConflict = fmt.Errorf("%w: snapshot conflict", ErrRollback)
)

// ErrWALWrite wraps a durability-log write failure at commit. The
// committing transaction is aborted automatically; its writes never
// become visible.
var ErrWALWrite = errors.New("livegraph: WAL write failed")

func vertexNotAllocated(id core.VertexID) error {
	return fmt.Errorf("%w: vertex %d", ErrVertexNotAllocated, id)
}

func vertexDeleted(id core.VertexID) error {
	return fmt.Errorf("%w: vertex %d", ErrVertexDeleted, id)
}
