// Package vtable implements the sparse, mmap-backed vertex table: for
// every vertex id, a slot holding the head of its vertex-data version
// chain, the head of its edge-label directory chain, and cached
// creation/deletion timestamps.
package vtable

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/livegraph/livegraph/core"
	"github.com/livegraph/livegraph/internal/mmap"
)

// slotSize is the byte size of one vertex table entry: dataHead(8) +
// edgeLabelHead(8) + creationTime(8) + deletionTime(8).
const slotSize = 32

// Table is the vertex table. It is backed by one anonymous mapping sized
// for the caller's maxVertexID, so the OS lazily commits pages only for
// ids actually touched, via internal/mmap's anonymous mode — a plain Go
// slice or map can't give that lazy-commit property.
type Table struct {
	mapping *mmap.Mapping
	maxID   core.VertexID

	stripes []sync.Mutex // per-vertex write serialization, striped
}

const numStripes = 4096

// Open creates a vertex table with capacity for ids [0, maxVertexID].
func Open(maxVertexID core.VertexID) (*Table, error) {
	capacity := (int64(maxVertexID) + 1) * slotSize
	mp, err := mmap.OpenAnon(capacity)
	if err != nil {
		return nil, err
	}
	return &Table{
		mapping: mp,
		maxID:   maxVertexID,
		stripes: make([]sync.Mutex, numStripes),
	}, nil
}

// Close unmaps the table.
func (t *Table) Close() error { return t.mapping.Close() }

// MaxID returns the highest vertex id this table has capacity for.
func (t *Table) MaxID() core.VertexID { return t.maxID }

func (t *Table) slot(id core.VertexID) []byte {
	off := int64(id) * slotSize
	return t.mapping.Bytes()[off : off+slotSize]
}

// Lock returns the stripe mutex guarding writes to id's slot. Multiple ids
// share a stripe; callers must tolerate unrelated contention — a practical
// stand-in for a true per-vertex lightweight lock given Go's lack of cheap
// per-object locks.
func (t *Table) Lock(id core.VertexID) *sync.Mutex {
	return &t.stripes[uint64(id)%numStripes]
}

func u64ptr(b []byte, off int) *uint64 {
	return (*uint64)(unsafe.Pointer(&b[off])) //nolint:gosec // mmap'd, 8-byte-aligned slot window
}

// DataHead loads the head-of-vertex-data-chain pointer for id.
func (t *Table) DataHead(id core.VertexID) uint64 {
	return atomic.LoadUint64(u64ptr(t.slot(id), 0))
}

// SetDataHead installs a new head-of-vertex-data-chain pointer for id.
func (t *Table) SetDataHead(id core.VertexID, offset uint64) {
	atomic.StoreUint64(u64ptr(t.slot(id), 0), offset)
}

// EdgeLabelHead loads the head-of-edge-label-chain pointer for id.
func (t *Table) EdgeLabelHead(id core.VertexID) uint64 {
	return atomic.LoadUint64(u64ptr(t.slot(id), 8))
}

// SetEdgeLabelHead installs a new head-of-edge-label-chain pointer for id.
func (t *Table) SetEdgeLabelHead(id core.VertexID, offset uint64) {
	atomic.StoreUint64(u64ptr(t.slot(id), 8), offset)
}

// CreationTime loads the cached creation timestamp for id.
func (t *Table) CreationTime(id core.VertexID) core.Timestamp {
	return core.Timestamp(atomic.LoadUint64(u64ptr(t.slot(id), 16)))
}

// SetCreationTime caches a new creation timestamp for id.
func (t *Table) SetCreationTime(id core.VertexID, ts core.Timestamp) {
	atomic.StoreUint64(u64ptr(t.slot(id), 16), uint64(ts))
}

// DeletionTime loads the cached deletion timestamp for id.
func (t *Table) DeletionTime(id core.VertexID) core.Timestamp {
	return core.Timestamp(atomic.LoadUint64(u64ptr(t.slot(id), 24)))
}

// SetDeletionTime caches a new deletion timestamp for id.
func (t *Table) SetDeletionTime(id core.VertexID, ts core.Timestamp) {
	atomic.StoreUint64(u64ptr(t.slot(id), 24), uint64(ts))
}
