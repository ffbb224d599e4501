// Package txn implements the transaction protocol: the
// three transaction variants, every read/write operation, commit/abort,
// and the epoch bookkeeping that compaction and snapshot visibility
// depend on.
package txn

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/livegraph/livegraph/block"
	"github.com/livegraph/livegraph/core"
	"github.com/livegraph/livegraph/internal/blockmgr"
	"github.com/livegraph/livegraph/internal/recycle"
	"github.com/livegraph/livegraph/internal/vtable"
)

// WAL is the durability sink a committing write transaction appends to.
// The concrete implementation (package wal) is injected by the root
// package so this package stays free of file-format concerns.
type WAL interface {
	Append(epoch core.Timestamp, mutations []Mutation) error
}

// noopWAL is used by batch loaders, which omit WAL records entirely.
type noopWAL struct{}

func (noopWAL) Append(core.Timestamp, []Mutation) error { return nil }

// Mode selects a transaction's semantics.
type Mode uint8

const (
	ModeReadOnly Mode = iota
	ModeReadWrite
	ModeBatchLoader
)

// ErrRollback is returned when a transaction cannot proceed and must be
// discarded — a snapshot conflict or an invariant violation such as
// writing to a vertex id that was never allocated or is deleted in the
// reader's own snapshot.
var ErrRollback = errors.New("livegraph: transaction rolled back")

// Engine owns the storage substrate one Graph lifetime shares across all
// of its transactions: the block allocator, the vertex table, the
// recycle pool, and the epoch counters that establish snapshot order.
type Engine struct {
	blocks  *blockmgr.Manager
	vtable  *vtable.Table
	recycle *recycle.Pool
	wal     WAL

	nextVertexID atomic.Uint64 // high-water mark for fresh (non-recycled) ids

	writeEpoch   atomic.Int64 // last epoch handed to a committing transaction
	visibleEpoch atomic.Int64 // epochs <= this are guaranteed visible to new readers

	epochsMu sync.Mutex
	liveRead map[int64]int // read_epoch_id -> count of registered readers

	localTxnSeq atomic.Int64 // monotonic source of local_txn_id magnitudes
}

// NewEngine wires an Engine over already-open storage components. wal may
// be nil, meaning commits never become durable beyond process memory (an
// anonymous, no-WAL-path Graph).
func NewEngine(blocks *blockmgr.Manager, vt *vtable.Table, pool *recycle.Pool, w WAL) *Engine {
	if w == nil {
		w = noopWAL{}
	}
	return &Engine{
		blocks:   blocks,
		vtable:   vt,
		recycle:  pool,
		wal:      w,
		liveRead: make(map[int64]int),
	}
}

// BeginTransaction starts a read-write transaction.
func (e *Engine) BeginTransaction() *Transaction {
	return e.begin(ModeReadWrite)
}

// BeginReadOnlyTransaction starts a read-only snapshot.
func (e *Engine) BeginReadOnlyTransaction() *Transaction {
	return e.begin(ModeReadOnly)
}

// BeginBatchLoader starts a bulk-ingestion transaction: writes are stamped
// as immediately committed and no WAL record is produced.
func (e *Engine) BeginBatchLoader() *Transaction {
	return e.begin(ModeBatchLoader)
}

func (e *Engine) begin(mode Mode) *Transaction {
	readEpoch := core.Timestamp(e.visibleEpoch.Load())
	e.registerReader(int64(readEpoch))

	t := &Transaction{
		eng:       e,
		mode:      mode,
		readEpoch: readEpoch,
	}
	switch mode {
	case ModeReadWrite:
		t.localTxnID = e.localTxnSeq.Add(1)
	case ModeBatchLoader:
		// Batch-loaded writes are stamped as already committed, bypassing
		// the pending-sentinel/rewrite dance entirely. The
		// bulk epoch they share is claimed from the same counter normal
		// commits use, so it never collides with one; it is only
		// published to readers at Commit, same as any other transaction,
		// so a loader's partial progress stays invisible mid-load.
		t.batchEpoch = core.Timestamp(e.writeEpoch.Add(1))
	}
	return t
}

// publishEpoch advances the visible epoch to at least epoch, retrying
// until either this call or a concurrent one wins the race — used by the
// batch loader, which has no predecessor epoch to wait behind since it
// never went through the WAL-append/commit sequence normal writers do.
func (e *Engine) publishEpoch(epoch int64) {
	for {
		cur := e.visibleEpoch.Load()
		if cur >= epoch {
			return
		}
		if e.visibleEpoch.CompareAndSwap(cur, epoch) {
			return
		}
	}
}

// BeginRecovery starts a transaction that replays one WAL record's
// mutations at their already-recorded epoch, for crash recovery. Unlike
// BeginBatchLoader it never claims a fresh epoch from the counter — it
// reuses the one the record was written with — and it raises the write
// epoch watermark to at least that value so the first post-recovery
// writer claims a strictly greater one.
func (e *Engine) BeginRecovery(epoch core.Timestamp) *Transaction {
	readEpoch := core.Timestamp(e.visibleEpoch.Load())
	e.registerReader(int64(readEpoch))
	e.bumpWriteEpoch(int64(epoch))
	return &Transaction{
		eng:        e,
		mode:       ModeBatchLoader,
		readEpoch:  readEpoch,
		batchEpoch: epoch,
	}
}

func (e *Engine) bumpWriteEpoch(epoch int64) {
	for {
		cur := e.writeEpoch.Load()
		if cur >= epoch {
			return
		}
		if e.writeEpoch.CompareAndSwap(cur, epoch) {
			return
		}
	}
}

// ObserveVertexID raises the high-water mark new_vertex draws fresh ids
// from to at least id+1, so that replaying a WAL mutation referencing id
// makes it — and every id below it — allocated, without re-running the
// new_vertex call that originally produced it (new_vertex itself is not a
// durable mutation; only the writes that follow it are).
func (e *Engine) ObserveVertexID(id core.VertexID) {
	for {
		cur := e.nextVertexID.Load()
		if core.VertexID(cur) > id {
			return
		}
		if e.nextVertexID.CompareAndSwap(cur, uint64(id)+1) {
			return
		}
	}
}

func (e *Engine) registerReader(epoch int64) {
	e.epochsMu.Lock()
	e.liveRead[epoch]++
	e.epochsMu.Unlock()
}

func (e *Engine) deregisterReader(epoch int64) {
	e.epochsMu.Lock()
	e.liveRead[epoch]--
	if e.liveRead[epoch] <= 0 {
		delete(e.liveRead, epoch)
	}
	e.epochsMu.Unlock()
}

// minLiveReadEpoch returns the lowest registered read epoch, or the
// current visible epoch if no reader is registered.
func (e *Engine) minLiveReadEpoch() core.Timestamp {
	e.epochsMu.Lock()
	defer e.epochsMu.Unlock()
	min := e.visibleEpoch.Load()
	for epoch := range e.liveRead {
		if epoch < min {
			min = epoch
		}
	}
	return core.Timestamp(min)
}

// GetMaxVertexID returns the fresh-id high-water mark: one past the highest
// vertex id handed out (or observed during recovery), i.e. the id the next
// NewVertex(false) takes. It is 0 before any id is handed out.
func (e *Engine) GetMaxVertexID() core.VertexID {
	return core.VertexID(e.nextVertexID.Load())
}

func (e *Engine) blockAt(offset uint64) []byte {
	if offset == blockmgr.NullPointer {
		return nil
	}
	header := e.blocks.Bytes(offset)
	order := block.Order(header)
	return e.blocks.Block(offset, order)
}

// visibleVersion walks a version chain starting at head, returning the
// newest block whose creation_time is visible under (readEpoch,
// localTxnID) — the chain-walk primitive shared by vertex-data lookups,
// edge-label directory lookups, and edge-block lookups (they are all N2O
// chains).
func (e *Engine) visibleVersion(head uint64, readEpoch core.Timestamp, localTxnID int64) []byte {
	for off := head; off != blockmgr.NullPointer; {
		buf := e.blockAt(off)
		ts := core.Timestamp(block.CreationTime(buf))
		if core.CompareTimestamp(ts, readEpoch, localTxnID) <= 0 {
			return buf
		}
		off = block.PrevPointer(buf)
	}
	return nil
}

// Compact reclaims obsolete versions behind a safe epoch.
// readEpochID < 0 selects the minimum live reader epoch automatically.
func (e *Engine) Compact(readEpochID core.Timestamp) core.Timestamp {
	safe := readEpochID
	if safe < 0 {
		safe = e.minLiveReadEpoch()
	}

	maxID := e.GetMaxVertexID()
	for id := core.VertexID(0); id <= maxID; id++ {
		e.compactVertexChain(id, safe)
		e.compactEdgeLabelChain(id, safe)
	}
	return safe
}

// compactVertexChain collapses every vertex-data version with
// creation_time <= safe down to the single newest such version, freeing
// the strictly older ones.
func (e *Engine) compactVertexChain(id core.VertexID, safe core.Timestamp) {
	lock := e.vtable.Lock(id)
	lock.Lock()
	defer lock.Unlock()

	head := e.vtable.DataHead(id)
	e.compactChain(head, safe)
}

func (e *Engine) compactEdgeLabelChain(id core.VertexID, safe core.Timestamp) {
	lock := e.vtable.Lock(id)
	lock.Lock()
	defer lock.Unlock()

	head := e.vtable.EdgeLabelHead(id)
	e.compactChain(head, safe)

	if head == blockmgr.NullPointer {
		return
	}
	buf := e.blockAt(head)
	for i := 0; i < int(block.NumLabelEntries(buf)); i++ {
		_, ptr := block.LabelEntry(buf, i)
		e.compactEdgeBlockChain(ptr, safe)
	}
}

// compactChain walks from head and frees every version strictly older
// than the newest one with creation_time <= safe. Pending (uncommitted)
// versions are stepped over and never taken as that newest version.
func (e *Engine) compactChain(head uint64, safe core.Timestamp) {
	off := head
	for off != blockmgr.NullPointer {
		buf := e.blockAt(off)
		ts := core.Timestamp(block.CreationTime(buf))
		prev := block.PrevPointer(buf)
		if !ts.IsPending() && ts <= safe {
			e.freeChainFrom(prev)
			block.SetPrevPointer(buf, blockmgr.NullPointer)
			return
		}
		off = prev
	}
}

func (e *Engine) freeChainFrom(off uint64) {
	for off != blockmgr.NullPointer {
		buf := e.blockAt(off)
		prev := block.PrevPointer(buf)
		e.blocks.Free(off, block.Order(buf))
		off = prev
	}
}

func (e *Engine) compactEdgeBlockChain(head uint64, safe core.Timestamp) {
	e.compactChain(head, safe)
	if head == blockmgr.NullPointer {
		return
	}
	buf := e.blockAt(head)
	e.compactEdgeEntriesInPlace(buf, safe)
}

// compactEdgeEntriesInPlace removes entries whose deletion_time <= safe by
// rewriting the live suffix over the dead ones, sliding each surviving
// entry's payload bytes down with it so the data region stays contiguous
// in entry order, and republishing a smaller (num_entries, data_length)
// pair.
func (e *Engine) compactEdgeEntriesInPlace(buf []byte, safe core.Timestamp) {
	order := block.Order(buf)
	numEntries, _ := block.NewEdgeTail(buf).Load()

	kept := 0
	oldOff, newOff := 0, 0
	for i := 0; i < int(numEntries); i++ {
		src := block.EntrySlot(buf, order, i)
		length := int(block.EntryLength(src))
		del := core.Timestamp(block.EntryDeletionTime(src))
		if del != core.PositiveInfinity && !del.IsPending() && del <= safe {
			oldOff += length
			continue // dead to every possible future reader
		}
		if newOff != oldOff {
			copy(buf[block.EdgeHeaderSize+newOff:], buf[block.EdgeHeaderSize+oldOff:block.EdgeHeaderSize+oldOff+length])
		}
		if kept != i {
			dst := block.EntrySlot(buf, order, kept)
			copy(dst, src)
		}
		oldOff += length
		newOff += length
		kept++
	}
	if kept != int(numEntries) {
		block.NewEdgeTail(buf).Publish(uint64(kept), uint64(newOff))
	}
}

// BlockManager exposes the underlying allocator for components (e.g. a
// root-package diagnostics surface) that need raw block stats.
func (e *Engine) BlockManager() *blockmgr.Manager { return e.blocks }

// VertexTable exposes the vertex table for diagnostics.
func (e *Engine) VertexTable() *vtable.Table { return e.vtable }

// RecyclePool exposes the recycle pool for diagnostics.
func (e *Engine) RecyclePool() *recycle.Pool { return e.recycle }

func rollbackf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrRollback}, args...)...)
}
