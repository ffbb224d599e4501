package txn

import (
	"testing"

	"github.com/livegraph/livegraph/core"
	"github.com/stretchr/testify/require"
)

func TestCommit_WaitVisibleBlocksUntilOwnEpochPublished(t *testing.T) {
	eng := newTestEngine(t)
	tx := eng.BeginTransaction()
	id, err := tx.NewVertex(false)
	require.NoError(t, err)
	require.NoError(t, tx.PutVertex(id, []byte("v")))

	epoch, err := tx.Commit(true)
	require.NoError(t, err)
	require.GreaterOrEqual(t, eng.visibleEpoch.Load(), int64(epoch))
}

func TestCommit_EpochsAdvanceInStrictSequentialOrder(t *testing.T) {
	eng := newTestEngine(t)

	tx1 := eng.BeginTransaction()
	id1, err := tx1.NewVertex(false)
	require.NoError(t, err)
	require.NoError(t, tx1.PutVertex(id1, []byte("v1")))

	tx2 := eng.BeginTransaction()
	id2, err := tx2.NewVertex(false)
	require.NoError(t, err)
	require.NoError(t, tx2.PutVertex(id2, []byte("v2")))

	// tx2 commits first without waiting: its epoch (2) cannot become
	// visible until tx1's epoch (1) does.
	epoch2, err := tx2.Commit(false)
	require.NoError(t, err)
	require.Less(t, eng.visibleEpoch.Load(), int64(epoch2))

	epoch1, err := tx1.Commit(true)
	require.NoError(t, err)
	require.GreaterOrEqual(t, eng.visibleEpoch.Load(), int64(epoch1))
	require.GreaterOrEqual(t, eng.visibleEpoch.Load(), int64(epoch2))
}

func TestBeginReadOnlyTransaction_SnapshotsCurrentVisibleEpoch(t *testing.T) {
	eng := newTestEngine(t)
	setup := eng.BeginTransaction()
	id, err := setup.NewVertex(false)
	require.NoError(t, err)
	require.NoError(t, setup.PutVertex(id, []byte("before")))
	_, err = setup.Commit(true)
	require.NoError(t, err)

	reader := eng.BeginReadOnlyTransaction()

	writer := eng.BeginTransaction()
	require.NoError(t, writer.PutVertex(id, []byte("after")))
	_, err = writer.Commit(true)
	require.NoError(t, err)

	require.Equal(t, []byte("before"), reader.GetVertex(id))

	fresh := eng.BeginReadOnlyTransaction()
	require.Equal(t, []byte("after"), fresh.GetVertex(id))
}

func TestBeginBatchLoader_WritesInvisibleUntilCommit(t *testing.T) {
	eng := newTestEngine(t)

	loader := eng.BeginBatchLoader()
	id, err := loader.NewVertex(false)
	require.NoError(t, err)
	require.NoError(t, loader.PutVertex(id, []byte("bulk")))

	concurrent := eng.BeginReadOnlyTransaction()
	require.Nil(t, concurrent.GetVertex(id))

	epoch, err := loader.Commit(true)
	require.NoError(t, err)
	require.Greater(t, epoch, core.Timestamp(0))
	require.GreaterOrEqual(t, eng.visibleEpoch.Load(), int64(epoch))

	reader := eng.BeginReadOnlyTransaction()
	require.Equal(t, []byte("bulk"), reader.GetVertex(id))
}

func TestBeginBatchLoader_ProducesNoWALRecord(t *testing.T) {
	eng := newTestEngine(t)
	calls := 0
	eng.wal = walFunc(func(core.Timestamp, []Mutation) error {
		calls++
		return nil
	})

	loader := eng.BeginBatchLoader()
	id, err := loader.NewVertex(false)
	require.NoError(t, err)
	require.NoError(t, loader.PutVertex(id, []byte("bulk")))
	_, err = loader.Commit(true)
	require.NoError(t, err)

	require.Equal(t, 0, calls)
}

func TestBeginRecovery_ReplaysAtRecordedEpochAndRaisesWriteEpoch(t *testing.T) {
	eng := newTestEngine(t)

	rt := eng.BeginRecovery(core.Timestamp(5))
	id := core.VertexID(7)
	eng.ObserveVertexID(id)
	require.NoError(t, rt.PutVertex(id, []byte("recovered")))
	epoch, err := rt.Commit(true)
	require.NoError(t, err)
	require.Equal(t, core.Timestamp(5), epoch)

	reader := eng.BeginReadOnlyTransaction()
	require.Equal(t, []byte("recovered"), reader.GetVertex(id))

	// The next fresh write epoch claimed must be strictly greater than the
	// recovered one, so a post-recovery commit can never collide with it.
	next := eng.BeginTransaction()
	nid, err := next.NewVertex(false)
	require.NoError(t, err)
	require.NoError(t, next.PutVertex(nid, []byte("v")))
	nextEpoch, err := next.Commit(true)
	require.NoError(t, err)
	require.Greater(t, nextEpoch, core.Timestamp(5))
}

func TestObserveVertexID_RaisesHighWaterMarkWithoutLowering(t *testing.T) {
	eng := newTestEngine(t)
	eng.ObserveVertexID(core.VertexID(41))
	require.Equal(t, core.VertexID(42), eng.GetMaxVertexID())

	eng.ObserveVertexID(core.VertexID(10))
	require.Equal(t, core.VertexID(42), eng.GetMaxVertexID())
}

type walFunc func(core.Timestamp, []Mutation) error

func (f walFunc) Append(epoch core.Timestamp, mutations []Mutation) error { return f(epoch, mutations) }

func TestCompact_CollapsesOldVersionsBehindSafeEpoch(t *testing.T) {
	eng := newTestEngine(t)
	setup := eng.BeginTransaction()
	id, err := setup.NewVertex(false)
	require.NoError(t, err)
	require.NoError(t, setup.PutVertex(id, []byte("v1")))
	_, err = setup.Commit(true)
	require.NoError(t, err)

	tx2 := eng.BeginTransaction()
	require.NoError(t, tx2.PutVertex(id, []byte("v2")))
	_, err = tx2.Commit(true)
	require.NoError(t, err)

	safe := eng.Compact(-1)
	require.GreaterOrEqual(t, safe, tx2.ReadEpochID())

	reader := eng.BeginReadOnlyTransaction()
	require.Equal(t, []byte("v2"), reader.GetVertex(id))
}
