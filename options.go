package livegraph

import (
	"time"

	"github.com/livegraph/livegraph/internal/blockmgr"
	"github.com/livegraph/livegraph/resource"
	"github.com/livegraph/livegraph/wal"
)

// engineOptions holds everything Open can be configured with beyond its
// required positional arguments, via the functional-options pattern.
type engineOptions struct {
	logger              *Logger
	metrics             MetricsObserver
	resourceCtl         *resource.Controller
	walOptionFns        []func(*wal.Options)
	compactionInterval  time.Duration
	largeBlockThreshold uint8
	fileTruncSize       int64
}

// Option configures Open's ambient behavior without changing its
// positional (blockPath, walPath, maxBlockSize, maxVertexID) signature.
type Option func(*engineOptions)

// WithLogger configures structured logging for the Graph and every
// Transaction it begins. Pass nil to disable logging (the default).
func WithLogger(l *Logger) Option {
	return func(o *engineOptions) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsObserver configures a metrics observer for monitoring
// commits, aborts, compaction, and allocation. Pass nil to disable.
func WithMetricsObserver(m MetricsObserver) Option {
	return func(o *engineOptions) {
		if m == nil {
			m = NoopMetricsObserver{}
		}
		o.metrics = m
	}
}

// WithResourceController installs a resource.Controller gating background
// compaction workers and throttling block-file growth and WAL write
// throughput. A Graph opened without this option runs unthrottled.
func WithResourceController(c *resource.Controller) Option {
	return func(o *engineOptions) { o.resourceCtl = c }
}

// WithWALOptions layers WAL-specific configuration (durability mode,
// compression, auto-checkpoint thresholds) on top of wal.DefaultOptions.
// Has no effect when walPath is empty (no WAL is opened at all).
func WithWALOptions(optFns ...func(*wal.Options)) Option {
	return func(o *engineOptions) { o.walOptionFns = append(o.walOptionFns, optFns...) }
}

// WithCompactionInterval starts a background goroutine that calls
// Compact(-1) every d. d <= 0 (the default) disables background
// compaction; callers must invoke Graph.Compact themselves.
func WithCompactionInterval(d time.Duration) Option {
	return func(o *engineOptions) { o.compactionInterval = d }
}

// WithLargeBlockThreshold overrides the order at and above which block
// allocations share one global-mutex-guarded free list instead of a
// per-shard one.
func WithLargeBlockThreshold(order uint8) Option {
	return func(o *engineOptions) { o.largeBlockThreshold = order }
}

// WithFileTruncSize overrides the increment the backing block file grows
// by.
func WithFileTruncSize(n int64) Option {
	return func(o *engineOptions) { o.fileTruncSize = n }
}

func applyOptions(optFns []Option) engineOptions {
	o := engineOptions{
		logger:              NoopLogger(),
		metrics:             NoopMetricsObserver{},
		largeBlockThreshold: blockmgr.DefaultLargeBlockThreshold,
		fileTruncSize:       blockmgr.DefaultFileTruncSize,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
