// Package recycle implements the vertex-id recycle pool: a
// live pool consumable by new_vertex(use_recycled=true), and the
// live-vertex-id accelerator bitmap behind MarkAllocated, MarkDead and
// LiveCount.
//
// The "tentative" pool — ids a still-uncommitted transaction has marked
// for recycling — is not a third structure here:
// a Transaction simply accumulates its own del_vertex(recycle=true) ids
// in a local slice and calls Pool.Promote on commit (or drops the slice
// on abort), which is the same tentative→live→drop lifecycle without a
// second synchronized pool to contend on.
package recycle

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/livegraph/livegraph/core"
)

// Pool holds vertex ids available for reuse, plus a live-id bitmap.
type Pool struct {
	mu   sync.Mutex
	live []core.VertexID

	liveIDs *roaring64.Bitmap // accelerator: currently-allocated, non-tombstoned ids
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{liveIDs: roaring64.New()}
}

// Pop removes and returns an id from the live pool. ok is false if the
// pool is empty.
func (p *Pool) Pop() (core.VertexID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.live) == 0 {
		return 0, false
	}
	n := len(p.live) - 1
	id := p.live[n]
	p.live = p.live[:n]
	return id, true
}

// Promote moves a committing transaction's tentatively-recycled ids into
// the live pool. Called once per commit, after the WAL record is durable.
func (p *Pool) Promote(ids []core.VertexID) {
	if len(ids) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live = append(p.live, ids...)
	for _, id := range ids {
		p.liveIDs.Remove(uint64(id))
	}
}

// MarkAllocated records id as allocated-and-alive in the accelerator
// bitmap. The engine's put_vertex and put_edge paths do not call it, so
// the bitmap holds only ids a caller has marked.
func (p *Pool) MarkAllocated(id core.VertexID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.liveIDs.Add(uint64(id))
}

// MarkDead removes id from the accelerator bitmap, without touching the
// recycle pool itself — recycling only happens via Promote. The engine's
// del_vertex path does not call it.
func (p *Pool) MarkDead(id core.VertexID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.liveIDs.Remove(uint64(id))
}

// LiveCount returns the accelerator bitmap's cardinality: the ids marked
// by MarkAllocated and not since removed by MarkDead or Promote. Nothing
// in the engine reads it; compaction sweeps every vertex-table slot.
func (p *Pool) LiveCount() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.liveIDs.GetCardinality()
}
