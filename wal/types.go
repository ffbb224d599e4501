package wal

import (
	"time"

	"github.com/livegraph/livegraph/resource"
)

// DurabilityMode defines the fsync behavior for WAL writes.
type DurabilityMode int

const (
	// DurabilityAsync represents asynchronous durability.
	// No fsync, fastest writes but risk of data loss on crash.
	// Use for non-critical workloads or when external replication provides durability.
	DurabilityAsync DurabilityMode = iota

	// DurabilityGroupCommit represents group commit durability.
	// Batched fsync at regular intervals.
	// Balances throughput and durability by amortizing fsync cost across multiple commits.
	// Recommended for most production workloads.
	DurabilityGroupCommit

	// DurabilitySync represents synchronous durability.
	// fsync after every commit.
	// Slowest but strongest durability guarantee. Use for critical data.
	DurabilitySync
)

// Options contains configuration for the WAL.
type Options struct {
	// Path is the directory where the WAL file is stored.
	Path string

	// Compress enables zstd compression of each record's mutation bytes
	// (the epoch/count/crc framing is never compressed).
	Compress bool

	// CompressionLevel sets the zstd compression level (1-22).
	CompressionLevel int

	// AutoCheckpointRecords triggers a truncating checkpoint after N
	// records have been appended. Set to 0 to disable.
	AutoCheckpointRecords int

	// AutoCheckpointMB triggers a checkpoint when the WAL file exceeds N
	// megabytes. Set to 0 to disable.
	AutoCheckpointMB int

	// DurabilityMode controls fsync behavior (Async, GroupCommit, Sync).
	DurabilityMode DurabilityMode

	// GroupCommitInterval is the maximum time to wait before fsync in
	// GroupCommit mode.
	GroupCommitInterval time.Duration

	// GroupCommitMaxOps is the maximum records to batch before fsync in
	// GroupCommit mode.
	GroupCommitMaxOps int

	// IOController, if set, rate-limits every byte written to the WAL file
	// through its AcquireIO budget — the same budget background compaction
	// and block-file growth draw from, so a busy commit stream can't starve
	// those paths of disk bandwidth.
	IOController *resource.Controller
}

// DefaultOptions returns default WAL options.
var DefaultOptions = Options{
	Path:                  ".",
	Compress:              false,
	CompressionLevel:      3,
	AutoCheckpointRecords: 10000,
	AutoCheckpointMB:      100,
	DurabilityMode:        DurabilityGroupCommit,
	GroupCommitInterval:   10 * time.Millisecond,
	GroupCommitMaxOps:     100,
}
