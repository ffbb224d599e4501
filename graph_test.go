package livegraph

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openAnonGraph(t *testing.T, opts ...Option) *Graph {
	t.Helper()
	g, err := Open("", "", 1<<24, 1024, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestOpen_AnonymousGraphSupportsWritesAndReads(t *testing.T) {
	g := openAnonGraph(t)

	tx := g.BeginTransaction()
	id, err := tx.NewVertex(false)
	require.NoError(t, err)
	require.NoError(t, tx.PutVertex(id, []byte("hello")))
	_, err = tx.Commit(true)
	require.NoError(t, err)

	reader := g.BeginReadOnlyTransaction()
	require.Equal(t, []byte("hello"), reader.GetVertex(id))
	require.Equal(t, id, g.GetMaxVertexID())
}

func TestBeginReadOnlyTransaction_IsolatedFromLaterWrites(t *testing.T) {
	g := openAnonGraph(t)

	tx := g.BeginTransaction()
	id, err := tx.NewVertex(false)
	require.NoError(t, err)
	require.NoError(t, tx.PutVertex(id, []byte("v1")))
	_, err = tx.Commit(true)
	require.NoError(t, err)

	reader := g.BeginReadOnlyTransaction()

	writer := g.BeginTransaction()
	require.NoError(t, writer.PutVertex(id, []byte("v2")))
	_, err = writer.Commit(true)
	require.NoError(t, err)

	require.Equal(t, []byte("v1"), reader.GetVertex(id))
}

func TestBeginBatchLoader_CommitsAsOneUnitOfWork(t *testing.T) {
	g := openAnonGraph(t)

	loader := g.BeginBatchLoader()
	var ids []VertexID
	for i := 0; i < 5; i++ {
		id, err := loader.NewVertex(false)
		require.NoError(t, err)
		require.NoError(t, loader.PutVertex(id, []byte("bulk")))
		ids = append(ids, id)
	}
	_, err := loader.Commit(true)
	require.NoError(t, err)

	reader := g.BeginReadOnlyTransaction()
	for _, id := range ids {
		require.Equal(t, []byte("bulk"), reader.GetVertex(id))
	}
}

func TestEdges_PutGetDelThroughTransactionFacade(t *testing.T) {
	g := openAnonGraph(t)

	tx := g.BeginTransaction()
	src, err := tx.NewVertex(false)
	require.NoError(t, err)
	require.NoError(t, tx.PutVertex(src, []byte("src")))
	dst, err := tx.NewVertex(false)
	require.NoError(t, err)
	require.NoError(t, tx.PutVertex(dst, []byte("dst")))

	const label Label = 1
	require.NoError(t, tx.PutEdge(src, label, dst, []byte("payload"), false))
	require.Equal(t, []byte("payload"), tx.GetEdge(src, label, dst))

	it := tx.GetEdges(src, label, false)
	require.True(t, it.Valid())
	require.Equal(t, dst, it.DstID())
	require.Equal(t, []byte("payload"), it.EdgeData())
	it.Next()
	require.False(t, it.Valid())
	require.Equal(t, VertexTombstone, it.DstID())

	ok, err := tx.DelEdge(src, label, dst)
	require.NoError(t, err)
	require.True(t, ok)
	require.Nil(t, tx.GetEdge(src, label, dst))

	_, err = tx.Commit(true)
	require.NoError(t, err)
}

func TestCompact_ReclaimsBehindMinLiveReaderEpoch(t *testing.T) {
	g := openAnonGraph(t)

	tx := g.BeginTransaction()
	id, err := tx.NewVertex(false)
	require.NoError(t, err)
	require.NoError(t, tx.PutVertex(id, []byte("v1")))
	_, err = tx.Commit(true)
	require.NoError(t, err)

	tx2 := g.BeginTransaction()
	require.NoError(t, tx2.PutVertex(id, []byte("v2")))
	epoch2, err := tx2.Commit(true)
	require.NoError(t, err)

	safe := g.Compact(-1)
	require.GreaterOrEqual(t, safe, epoch2)

	reader := g.BeginReadOnlyTransaction()
	require.Equal(t, []byte("v2"), reader.GetVertex(id))
}

func TestOpen_FileBackedGraphRecoversFromWALAfterRestart(t *testing.T) {
	dir := t.TempDir()
	blockPath := filepath.Join(dir, "blocks")
	walPath := filepath.Join(dir, "wal")

	g1, err := Open(blockPath, walPath, 1<<24, 1024)
	require.NoError(t, err)

	tx := g1.BeginTransaction()
	id, err := tx.NewVertex(false)
	require.NoError(t, err)
	require.NoError(t, tx.PutVertex(id, []byte("durable")))
	dst, err := tx.NewVertex(false)
	require.NoError(t, err)
	require.NoError(t, tx.PutVertex(dst, []byte("dst")))
	require.NoError(t, tx.PutEdge(id, Label(1), dst, []byte("edge"), false))
	_, err = tx.Commit(true)
	require.NoError(t, err)

	require.NoError(t, g1.Close())

	g2, err := Open(blockPath, walPath, 1<<24, 1024)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g2.Close() })

	reader := g2.BeginReadOnlyTransaction()
	require.Equal(t, []byte("durable"), reader.GetVertex(id))
	require.Equal(t, []byte("dst"), reader.GetVertex(dst))
	require.Equal(t, []byte("edge"), reader.GetEdge(id, Label(1), dst))
	require.GreaterOrEqual(t, g2.GetMaxVertexID(), dst)

	// A fresh write after recovery must not collide with recovered ids.
	writer := g2.BeginTransaction()
	fresh, err := writer.NewVertex(false)
	require.NoError(t, err)
	require.Greater(t, fresh, dst)
}

func TestWithMetricsObserver_RecordsCommitsAndAborts(t *testing.T) {
	obs := &BasicMetricsObserver{}
	g := openAnonGraph(t, WithMetricsObserver(obs))

	tx := g.BeginTransaction()
	id, err := tx.NewVertex(false)
	require.NoError(t, err)
	require.NoError(t, tx.PutVertex(id, []byte("v")))
	_, err = tx.Commit(true)
	require.NoError(t, err)

	aborted := g.BeginTransaction()
	aborted.Abort()

	stats := obs.GetStats()
	require.Equal(t, int64(1), stats.CommitCount)
	require.Equal(t, int64(1), stats.AbortCount)
}
