package wal

import (
	"testing"

	"github.com/livegraph/livegraph/core"
	"github.com/livegraph/livegraph/txn"
)

// BenchmarkAppend benchmarks single-vertex-mutation commit records.
func BenchmarkAppend(b *testing.B) {
	dir := b.TempDir()
	w, err := New(func(o *Options) {
		o.Path = dir
		o.Compress = false
	})
	if err != nil {
		b.Fatalf("failed to create WAL: %v", err)
	}
	defer w.Close()

	data := make([]byte, 100)

	b.ResetTimer()
	for i := 0; b.Loop(); i++ {
		m := []txn.Mutation{{Kind: txn.MutPutVertex, VertexID: core.VertexID(i), Data: data}}
		if err := w.Append(core.Timestamp(i+1), m); err != nil {
			b.Fatalf("Append failed: %v", err)
		}
	}
}

// BenchmarkAppendCompressed benchmarks Append with zstd compression enabled.
func BenchmarkAppendCompressed(b *testing.B) {
	dir := b.TempDir()
	w, err := New(func(o *Options) {
		o.Path = dir
		o.Compress = true
	})
	if err != nil {
		b.Fatalf("failed to create WAL: %v", err)
	}
	defer w.Close()

	data := make([]byte, 100)

	b.ResetTimer()
	for i := 0; b.Loop(); i++ {
		m := []txn.Mutation{{Kind: txn.MutPutVertex, VertexID: core.VertexID(i), Data: data}}
		if err := w.Append(core.Timestamp(i+1), m); err != nil {
			b.Fatalf("Append failed: %v", err)
		}
	}
}

// BenchmarkAppendBatch benchmarks a record carrying many mutations at once,
// the shape a batch loader's periodic WAL flush would take.
func BenchmarkAppendBatch(b *testing.B) {
	dir := b.TempDir()
	w, err := New(func(o *Options) {
		o.Path = dir
		o.Compress = false
	})
	if err != nil {
		b.Fatalf("failed to create WAL: %v", err)
	}
	defer w.Close()

	const batchSize = 100
	mutations := make([]txn.Mutation, batchSize)
	for i := range mutations {
		mutations[i] = txn.Mutation{Kind: txn.MutPutVertex, VertexID: core.VertexID(i), Data: make([]byte, 100)}
	}

	b.ResetTimer()
	for i := 0; b.Loop(); i++ {
		if err := w.Append(core.Timestamp(i+1), mutations); err != nil {
			b.Fatalf("Append failed: %v", err)
		}
	}
}

// BenchmarkReplay benchmarks replaying a WAL of 1000 single-mutation records.
func BenchmarkReplay(b *testing.B) {
	dir := b.TempDir()
	w, err := New(func(o *Options) {
		o.Path = dir
		o.Compress = false
	})
	if err != nil {
		b.Fatalf("failed to create WAL: %v", err)
	}

	data := make([]byte, 100)
	for i := 0; i < 1000; i++ {
		_ = w.Append(core.Timestamp(i+1), []txn.Mutation{{Kind: txn.MutPutVertex, VertexID: core.VertexID(i), Data: data}})
	}
	w.Close()

	b.ResetTimer()
	for b.Loop() {
		w, err := New(func(o *Options) { o.Path = dir })
		if err != nil {
			b.Fatalf("failed to create WAL: %v", err)
		}

		count := 0
		err = w.Replay(func(core.Timestamp, []txn.Mutation) error {
			count++
			return nil
		})
		if err != nil {
			b.Fatalf("Replay failed: %v", err)
		}

		w.Close()
	}
}
