package livegraph

import (
	"errors"

	"github.com/livegraph/livegraph/internal/blockmgr"
	"github.com/livegraph/livegraph/txn"
)

// The four error kinds the engine distinguishes: rollback, resource
// exhaustion, WAL I/O, and programming errors. Rollback and
// resource-exhaustion sentinels are defined in the packages that first
// detect them (txn, internal/blockmgr) and re-exported here so callers
// need only import the root package.
var (
	// ErrRollback is satisfied by any error that forces a transaction to
	// be discarded — a snapshot conflict or an invariant violation.
	// Callers should match on it with errors.Is when they only care
	// "must I discard this transaction" and don't need the specific cause.
	ErrRollback = txn.ErrRollback

	// ErrVertexNotAllocated is returned by a write to a vertex id that was
	// never handed out by new_vertex.
	ErrVertexNotAllocated = txn.ErrVertexNotAllocated

	// ErrVertexDeleted is returned by a write to a vertex tombstoned in
	// the writer's own snapshot.
	ErrVertexDeleted = txn.ErrVertexDeleted

	// ErrSnapshotConflict names a write that would violate the
	// transaction's read snapshot. No write path checks for such
	// conflicts, so it is never returned.
	ErrSnapshotConflict = txn.ErrSnapshotConflict

	// ErrWALWrite wraps a durability-log write failure at commit. The
	// committing transaction is aborted automatically.
	ErrWALWrite = txn.ErrWALWrite

	// ErrResourceExhausted wraps an allocator or mmap failure. Fatal to
	// the Graph that raised it: reopen rather than continue using it.
	ErrResourceExhausted = blockmgr.ErrResourceExhausted
)

// Programming errors: contract violations the hot path does not guard
// against. No operation in this module returns these sentinels.
var (
	// ErrInvalidVertexID names a vertex id outside the Graph's configured
	// id space. A write to such an id returns ErrVertexNotAllocated.
	ErrInvalidVertexID = errors.New("livegraph: invalid vertex id")

	// ErrDoubleFree names a block offset freed twice. The block manager
	// does not detect double frees.
	ErrDoubleFree = errors.New("livegraph: double free")

	// ErrUseAfterAbort names a Transaction method called after Commit or
	// Abort already finalized it. Writes and Commit on a finalized
	// transaction return an error matching ErrRollback instead.
	ErrUseAfterAbort = errors.New("livegraph: use after commit or abort")
)
