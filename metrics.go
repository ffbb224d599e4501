package livegraph

import (
	"sync/atomic"
	"time"
)

// MetricsObserver defines an interface for collecting operational metrics:
// one Record* method per observable operation, called after the fact with
// duration and outcome.
//
// Example Prometheus integration:
//
//	type PrometheusObserver struct {
//	    commits   prometheus.Counter
//	    compactLatency prometheus.Histogram
//	}
//
//	func (p *PrometheusObserver) RecordCommit(txnKind string, dur time.Duration, mutations int, err error) {
//	    p.commits.Inc()
//	}
type MetricsObserver interface {
	// RecordCommit is called after a transaction's Commit finishes,
	// successfully or not.
	RecordCommit(txnKind string, dur time.Duration, mutations int, err error)

	// RecordAbort is called after a transaction's Abort finishes.
	RecordAbort(txnKind string)

	// RecordCompaction is called after a compaction pass finishes.
	RecordCompaction(dur time.Duration, blocksFreed int, err error)

	// RecordAlloc reports a block allocation, tagged by order. The block
	// manager does not call it.
	RecordAlloc(order uint8, dur time.Duration)

	// RecordGrowth reports a block-file growth. The block manager does
	// not call it.
	RecordGrowth(newSize int64)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver. It is
// the default for a Graph opened without WithMetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) RecordCommit(string, time.Duration, int, error) {}
func (NoopMetricsObserver) RecordAbort(string)                             {}
func (NoopMetricsObserver) RecordCompaction(time.Duration, int, error)     {}
func (NoopMetricsObserver) RecordAlloc(uint8, time.Duration)               {}
func (NoopMetricsObserver) RecordGrowth(int64)                             {}

// BasicMetricsObserver provides simple in-memory metrics collection, useful
// for debugging and basic monitoring without wiring an external system.
type BasicMetricsObserver struct {
	CommitCount      atomic.Int64
	CommitErrors     atomic.Int64
	CommitTotalNanos atomic.Int64
	MutationsTotal   atomic.Int64
	AbortCount       atomic.Int64
	CompactionCount  atomic.Int64
	BlocksFreedTotal atomic.Int64
	AllocCount       atomic.Int64
	GrowthCount      atomic.Int64
}

func (b *BasicMetricsObserver) RecordCommit(_ string, dur time.Duration, mutations int, err error) {
	b.CommitCount.Add(1)
	b.CommitTotalNanos.Add(dur.Nanoseconds())
	b.MutationsTotal.Add(int64(mutations))
	if err != nil {
		b.CommitErrors.Add(1)
	}
}

func (b *BasicMetricsObserver) RecordAbort(string) { b.AbortCount.Add(1) }

func (b *BasicMetricsObserver) RecordCompaction(_ time.Duration, blocksFreed int, _ error) {
	b.CompactionCount.Add(1)
	b.BlocksFreedTotal.Add(int64(blocksFreed))
}

func (b *BasicMetricsObserver) RecordAlloc(uint8, time.Duration) { b.AllocCount.Add(1) }

func (b *BasicMetricsObserver) RecordGrowth(int64) { b.GrowthCount.Add(1) }

// Stats is a snapshot of BasicMetricsObserver state.
type Stats struct {
	CommitCount      int64
	CommitErrors     int64
	CommitAvgNanos   int64
	MutationsTotal   int64
	AbortCount       int64
	CompactionCount  int64
	BlocksFreedTotal int64
	AllocCount       int64
	GrowthCount      int64
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsObserver) GetStats() Stats {
	var avg int64
	if n := b.CommitCount.Load(); n > 0 {
		avg = b.CommitTotalNanos.Load() / n
	}
	return Stats{
		CommitCount:      b.CommitCount.Load(),
		CommitErrors:     b.CommitErrors.Load(),
		CommitAvgNanos:   avg,
		MutationsTotal:   b.MutationsTotal.Load(),
		AbortCount:       b.AbortCount.Load(),
		CompactionCount:  b.CompactionCount.Load(),
		BlocksFreedTotal: b.BlocksFreedTotal.Load(),
		AllocCount:       b.AllocCount.Load(),
		GrowthCount:      b.GrowthCount.Load(),
	}
}
