package livegraph

import (
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with livegraph-specific context: domain-specific
// methods for structured logging with consistent field names, branching on
// error to pick the level.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler. If handler is
// nil, uses the default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler)}
}

// NoopLogger creates a Logger that discards all log output. This is the
// default for a Graph opened without WithLogger.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable
	})
	return &Logger{Logger: slog.New(handler)}
}

// WithTxnKind adds a transaction-kind field ("read-write", "read-only",
// "batch-loader") to the logger.
func (l *Logger) WithTxnKind(kind string) *Logger {
	return &Logger{Logger: l.Logger.With("txn_kind", kind)}
}

// WithEpoch adds an epoch field to the logger.
func (l *Logger) WithEpoch(epoch int64) *Logger {
	return &Logger{Logger: l.Logger.With("epoch", epoch)}
}

// LogCommit logs a transaction commit.
func (l *Logger) LogCommit(txnKind string, epoch int64, mutations int, err error) {
	if err != nil {
		l.Error("commit failed",
			"txn_kind", txnKind,
			"mutations", mutations,
			"error", err,
		)
	} else {
		l.Debug("commit completed",
			"txn_kind", txnKind,
			"epoch", epoch,
			"mutations", mutations,
		)
	}
}

// LogAbort logs a transaction abort.
func (l *Logger) LogAbort(txnKind string, reason error) {
	if reason != nil {
		l.Warn("transaction aborted",
			"txn_kind", txnKind,
			"reason", reason,
		)
	} else {
		l.Debug("transaction aborted",
			"txn_kind", txnKind,
		)
	}
}

// LogCompaction logs a compaction pass.
func (l *Logger) LogCompaction(safeEpoch int64, blocksFreed int, dur time.Duration, err error) {
	if err != nil {
		l.Error("compaction failed",
			"safe_epoch", safeEpoch,
			"duration", dur,
			"error", err,
		)
	} else {
		l.Info("compaction completed",
			"safe_epoch", safeEpoch,
			"blocks_freed", blocksFreed,
			"duration", dur,
		)
	}
}

// LogGrowth logs a block-file growth event.
func (l *Logger) LogGrowth(newSize int64) {
	l.Info("block file grown", "new_size", newSize)
}

// LogRecovery logs a WAL recovery pass.
func (l *Logger) LogRecovery(records int, lastEpoch int64, err error) {
	if err != nil {
		l.Error("WAL recovery failed",
			"records_replayed", records,
			"error", err,
		)
	} else {
		l.Info("WAL recovery completed",
			"records_replayed", records,
			"last_epoch", lastEpoch,
		)
	}
}
