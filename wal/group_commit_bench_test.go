package wal

import (
	"testing"
	"time"

	"github.com/livegraph/livegraph/core"
	"github.com/livegraph/livegraph/txn"
)

// BenchmarkDurabilityModes compares write latency across different durability modes.
func BenchmarkDurabilityAsync(b *testing.B) {
	benchmarkDurability(b, DurabilityAsync)
}

func BenchmarkDurabilityGroupCommit(b *testing.B) {
	benchmarkDurability(b, DurabilityGroupCommit)
}

func BenchmarkDurabilitySync(b *testing.B) {
	benchmarkDurability(b, DurabilitySync)
}

func benchmarkDurability(b *testing.B, mode DurabilityMode) {
	tmpDir := b.TempDir()

	w, err := New(func(o *Options) {
		o.Path = tmpDir
		o.DurabilityMode = mode
		o.GroupCommitInterval = 10 * time.Millisecond
		o.GroupCommitMaxOps = 100
		o.Compress = false
	})
	if err != nil {
		b.Fatal(err)
	}
	defer w.Close()

	data := []byte("test data")

	b.ResetTimer()
	for i := 0; b.Loop(); i++ {
		m := []txn.Mutation{{Kind: txn.MutPutVertex, VertexID: core.VertexID(i), Data: data}}
		if err := w.Append(core.Timestamp(i+1), m); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkGroupCommitBatchSizes measures throughput with different batch sizes.
func BenchmarkGroupCommitBatchSize10(b *testing.B) {
	benchmarkGroupCommitBatchSize(b, 10)
}

func BenchmarkGroupCommitBatchSize50(b *testing.B) {
	benchmarkGroupCommitBatchSize(b, 50)
}

func BenchmarkGroupCommitBatchSize100(b *testing.B) {
	benchmarkGroupCommitBatchSize(b, 100)
}

func BenchmarkGroupCommitBatchSize500(b *testing.B) {
	benchmarkGroupCommitBatchSize(b, 500)
}

func benchmarkGroupCommitBatchSize(b *testing.B, batchSize int) {
	tmpDir := b.TempDir()

	w, err := New(func(o *Options) {
		o.Path = tmpDir
		o.DurabilityMode = DurabilityGroupCommit
		o.GroupCommitInterval = 100 * time.Millisecond // Long interval to test batch size
		o.GroupCommitMaxOps = batchSize
		o.Compress = false
	})
	if err != nil {
		b.Fatal(err)
	}
	defer w.Close()

	data := []byte("test data")

	b.ResetTimer()
	for i := 0; b.Loop(); i++ {
		m := []txn.Mutation{{Kind: txn.MutPutVertex, VertexID: core.VertexID(i), Data: data}}
		if err := w.Append(core.Timestamp(i+1), m); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkGroupCommitIntervals measures impact of different fsync intervals.
func BenchmarkGroupCommitInterval1ms(b *testing.B) {
	benchmarkGroupCommitInterval(b, 1*time.Millisecond)
}

func BenchmarkGroupCommitInterval10ms(b *testing.B) {
	benchmarkGroupCommitInterval(b, 10*time.Millisecond)
}

func BenchmarkGroupCommitInterval50ms(b *testing.B) {
	benchmarkGroupCommitInterval(b, 50*time.Millisecond)
}

func BenchmarkGroupCommitInterval100ms(b *testing.B) {
	benchmarkGroupCommitInterval(b, 100*time.Millisecond)
}

func benchmarkGroupCommitInterval(b *testing.B, interval time.Duration) {
	tmpDir := b.TempDir()

	w, err := New(func(o *Options) {
		o.Path = tmpDir
		o.DurabilityMode = DurabilityGroupCommit
		o.GroupCommitInterval = interval
		o.GroupCommitMaxOps = 1000 // High threshold so interval is the trigger
		o.Compress = false
	})
	if err != nil {
		b.Fatal(err)
	}
	defer w.Close()

	data := []byte("test data")

	b.ResetTimer()
	for i := 0; b.Loop(); i++ {
		m := []txn.Mutation{{Kind: txn.MutPutVertex, VertexID: core.VertexID(i), Data: data}}
		if err := w.Append(core.Timestamp(i+1), m); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkParallelWrites measures concurrent write throughput.
func BenchmarkParallelWritesAsync(b *testing.B) {
	benchmarkParallelWrites(b, DurabilityAsync)
}

func BenchmarkParallelWritesGroupCommit(b *testing.B) {
	benchmarkParallelWrites(b, DurabilityGroupCommit)
}

func BenchmarkParallelWritesSync(b *testing.B) {
	benchmarkParallelWrites(b, DurabilitySync)
}

func benchmarkParallelWrites(b *testing.B, mode DurabilityMode) {
	tmpDir := b.TempDir()

	w, err := New(func(o *Options) {
		o.Path = tmpDir
		o.DurabilityMode = mode
		o.GroupCommitInterval = 10 * time.Millisecond
		o.GroupCommitMaxOps = 100
		o.Compress = false
	})
	if err != nil {
		b.Fatal(err)
	}
	defer w.Close()

	data := []byte("test data")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		var i uint64
		for pb.Next() {
			i++
			m := []txn.Mutation{{Kind: txn.MutPutVertex, VertexID: core.VertexID(i), Data: data}}
			if err := w.Append(core.Timestamp(i), m); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkRecoveryWithGroupCommit measures recovery time with group commit.
func BenchmarkRecoveryWithGroupCommit(b *testing.B) {
	tmpDir := b.TempDir()

	// Pre-populate WAL with 10k records.
	{
		w, err := New(func(o *Options) {
			o.Path = tmpDir
			o.DurabilityMode = DurabilityGroupCommit
			o.Compress = false
		})
		if err != nil {
			b.Fatal(err)
		}

		data := []byte("test data")
		for i := 0; i < 10000; i++ {
			_ = w.Append(core.Timestamp(i+1), []txn.Mutation{{Kind: txn.MutPutVertex, VertexID: core.VertexID(i), Data: data}})
		}
		w.Close()
	}

	b.ResetTimer()
	for b.Loop() {
		w2, err := New(func(o *Options) {
			o.Path = tmpDir
			o.DurabilityMode = DurabilityGroupCommit
		})
		if err != nil {
			b.Fatal(err)
		}
		_ = w2.Replay(func(core.Timestamp, []txn.Mutation) error { return nil })
		w2.Close()
	}
}
