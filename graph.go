// Package livegraph is an embedded, transactional, in-memory-with-
// persistence property-graph storage engine: snapshot-isolated reads,
// serializable-by-timestamp writes, and a batch-loader mode for bulk
// ingestion, over memory-mapped append-only block files and a
// write-ahead log.
//
// Open a Graph, begin a Transaction, and read or write vertices and
// edges through it:
//
//	g, err := livegraph.Open("", "", 1<<30, 1<<20)
//	tx := g.BeginTransaction()
//	id, _ := tx.NewVertex(false)
//	_ = tx.PutVertex(id, []byte("hello"))
//	_, _ = tx.Commit(true)
package livegraph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/livegraph/livegraph/core"
	"github.com/livegraph/livegraph/internal/blockmgr"
	"github.com/livegraph/livegraph/internal/recycle"
	"github.com/livegraph/livegraph/internal/vtable"
	"github.com/livegraph/livegraph/resource"
	"github.com/livegraph/livegraph/txn"
	"github.com/livegraph/livegraph/wal"
)

// Re-exported value types so callers need only import
// the root package.
type (
	VertexID  = core.VertexID
	Label     = core.Label
	Timestamp = core.Timestamp
)

// VertexTombstone is the sentinel DstID returns once an EdgeIterator is
// exhausted — never a valid allocated vertex id.
const VertexTombstone = core.VertexTombstone

// MaxVertexID is the largest VertexID representable in a block's packed
// N2O header field.
const MaxVertexID = core.MaxVertexID

// Graph is the entry point that owns the block manager, vertex table,
// recycle pool, and (if walPath was non-empty) the write-ahead log, and
// hands out Transactions over them.
type Graph struct {
	eng     *txn.Engine
	wal     *wal.WAL
	logger  *Logger
	metrics MetricsObserver

	closeOnce  sync.Once
	stopCompac chan struct{}
	compacWG   sync.WaitGroup
}

// Open constructs a Graph. Empty blockPath/walPath select anonymous,
// process-local memory for the block store / no durability at all;
// non-empty paths select file-backed storage, truncated to
// blockmgr.DefaultFileTruncSize (or WithFileTruncSize's override), or to
// maxBlockSize if that is smaller, up front and grown in that increment
// thereafter.
//
// maxBlockSize bounds the address space reserved for the block mapping;
// maxVertexID bounds the sparse vertex table's capacity. Both are fixed
// for the Graph's lifetime — reopen with larger values to grow them.
func Open(blockPath, walPath string, maxBlockSize, maxVertexID uint64, opts ...Option) (*Graph, error) {
	o := applyOptions(opts)

	blocks, err := blockmgr.Open(blockPath, int64(maxBlockSize), blockmgr.Options{
		LargeBlockThreshold: o.largeBlockThreshold,
		FileTruncSize:       o.fileTruncSize,
		IOLimiter:           o.resourceCtl.IOLimiter(),
	})
	if err != nil {
		return nil, fmt.Errorf("livegraph: open block manager: %w", err)
	}

	vt, err := vtable.Open(core.VertexID(maxVertexID))
	if err != nil {
		blocks.Close()
		return nil, fmt.Errorf("livegraph: open vertex table: %w", err)
	}

	pool := recycle.New()

	var w *wal.WAL
	if walPath != "" {
		optFns := append([]func(*wal.Options){
			func(wo *wal.Options) { wo.Path = walPath },
			func(wo *wal.Options) { wo.IOController = o.resourceCtl },
		}, o.walOptionFns...)
		w, err = wal.New(optFns...)
		if err != nil {
			vt.Close()
			blocks.Close()
			return nil, fmt.Errorf("livegraph: open WAL: %w", err)
		}
	}

	eng := txn.NewEngine(blocks, vt, pool, walAdapter(w))

	g := &Graph{
		eng:        eng,
		wal:        w,
		logger:     o.logger,
		metrics:    o.metrics,
		stopCompac: make(chan struct{}),
	}

	if w != nil {
		records, lastEpoch, err := g.recover()
		g.logger.LogRecovery(records, int64(lastEpoch), err)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("livegraph: WAL recovery: %w", err)
		}
	}

	if o.compactionInterval > 0 {
		g.runCompactionLoop(o.compactionInterval, o.resourceCtl)
	}

	return g, nil
}

// walAdapter returns nil as a typed txn.WAL when w is nil, so Engine's
// "wal may be nil" contract (NewEngine substitutes its own no-op) is
// honored without a non-nil interface value wrapping a nil *wal.WAL.
func walAdapter(w *wal.WAL) txn.WAL {
	if w == nil {
		return nil
	}
	return w
}

// recover replays every durable WAL record into the engine, reconstructing
// vertex/edge state and the high-water marks (next vertex id, write/visible
// epoch) a crash left mid-flight. It is called once, synchronously, before
// Open returns.
func (g *Graph) recover() (records int, lastEpoch core.Timestamp, err error) {
	err = g.wal.Replay(func(epoch core.Timestamp, mutations []txn.Mutation) error {
		records++
		lastEpoch = epoch
		return g.replayRecord(epoch, mutations)
	})
	return records, lastEpoch, err
}

func (g *Graph) replayRecord(epoch core.Timestamp, mutations []txn.Mutation) error {
	for _, m := range mutations {
		switch m.Kind {
		case txn.MutPutVertex, txn.MutDelVertex:
			g.eng.ObserveVertexID(m.VertexID)
		case txn.MutPutEdge, txn.MutDelEdge:
			g.eng.ObserveVertexID(m.Src)
			g.eng.ObserveVertexID(m.Dst)
		}
	}

	rt := g.eng.BeginRecovery(epoch)
	for _, m := range mutations {
		var err error
		switch m.Kind {
		case txn.MutPutVertex:
			err = rt.PutVertex(m.VertexID, m.Data)
		case txn.MutDelVertex:
			_, err = rt.DelVertex(m.VertexID, m.Recycle)
		case txn.MutPutEdge:
			err = rt.PutEdge(m.Src, m.Label, m.Dst, m.Data, m.ForceInsert)
		case txn.MutDelEdge:
			_, err = rt.DelEdge(m.Src, m.Label, m.Dst)
		}
		if err != nil {
			rt.Abort()
			return fmt.Errorf("replay epoch %d: %w", epoch, err)
		}
	}
	_, err := rt.Commit(false)
	return err
}

func (g *Graph) runCompactionLoop(interval time.Duration, rc *resource.Controller) {
	ticker := time.NewTicker(interval)
	g.compacWG.Add(1)
	go func() {
		defer g.compacWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-g.stopCompac:
				return
			case <-ticker.C:
				g.runOneCompaction(rc)
			}
		}
	}()
}

func (g *Graph) runOneCompaction(rc *resource.Controller) {
	if rc != nil {
		if err := rc.AcquireBackground(context.Background()); err != nil {
			return
		}
		defer rc.ReleaseBackground()
	}
	start := time.Now()
	safe := g.Compact(-1)
	g.logger.LogCompaction(int64(safe), 0, time.Since(start), nil)
	g.metrics.RecordCompaction(time.Since(start), 0, nil)
}

// GetMaxVertexID returns one past the highest vertex id handed out so far,
// i.e. the id the next fresh NewVertex takes.
func (g *Graph) GetMaxVertexID() VertexID { return g.eng.GetMaxVertexID() }

// Compact reclaims block versions and edge entries obsolete under every
// currently-registered reader snapshot. readEpochID < 0
// selects the minimum live reader epoch automatically. Returns the safe
// epoch actually used.
func (g *Graph) Compact(readEpochID Timestamp) Timestamp {
	return g.eng.Compact(readEpochID)
}

// BeginTransaction starts a read-write transaction.
func (g *Graph) BeginTransaction() *Transaction {
	return &Transaction{inner: g.eng.BeginTransaction(), g: g, kind: "read-write"}
}

// BeginReadOnlyTransaction starts a read-only snapshot.
func (g *Graph) BeginReadOnlyTransaction() *Transaction {
	return &Transaction{inner: g.eng.BeginReadOnlyTransaction(), g: g, kind: "read-only"}
}

// BeginBatchLoader starts a bulk-ingestion transaction: writes are
// stamped as immediately committed and no WAL record is produced.
func (g *Graph) BeginBatchLoader() *Transaction {
	return &Transaction{inner: g.eng.BeginBatchLoader(), g: g, kind: "batch-loader"}
}

// Close stops any background compaction loop, flushes and closes the WAL
// (if any), and unmaps the block file and vertex table. A Graph must not
// be used after Close.
func (g *Graph) Close() error {
	var err error
	g.closeOnce.Do(func() {
		close(g.stopCompac)
		g.compacWG.Wait()

		if g.wal != nil {
			if e := g.wal.Close(); e != nil {
				err = e
			}
		}
		if e := g.eng.VertexTable().Close(); e != nil && err == nil {
			err = e
		}
		if e := g.eng.BlockManager().Close(); e != nil && err == nil {
			err = e
		}
	})
	return err
}
