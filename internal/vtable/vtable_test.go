package vtable

import (
	"testing"

	"github.com/livegraph/livegraph/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_SetAndLoadRoundTrip(t *testing.T) {
	tbl, err := Open(1000)
	require.NoError(t, err)
	defer tbl.Close()

	id := core.VertexID(42)
	tbl.SetDataHead(id, 0x1234)
	tbl.SetEdgeLabelHead(id, 0x5678)
	tbl.SetCreationTime(id, 77)
	tbl.SetDeletionTime(id, 88)

	assert.Equal(t, uint64(0x1234), tbl.DataHead(id))
	assert.Equal(t, uint64(0x5678), tbl.EdgeLabelHead(id))
	assert.Equal(t, core.Timestamp(77), tbl.CreationTime(id))
	assert.Equal(t, core.Timestamp(88), tbl.DeletionTime(id))
}

func TestTable_UntouchedSlotsAreZero(t *testing.T) {
	tbl, err := Open(1000)
	require.NoError(t, err)
	defer tbl.Close()

	assert.Equal(t, uint64(0), tbl.DataHead(999))
}

func TestTable_LockStripesShareAcrossIDs(t *testing.T) {
	tbl, err := Open(numStripes * 3)
	require.NoError(t, err)
	defer tbl.Close()

	a := tbl.Lock(core.VertexID(1))
	b := tbl.Lock(core.VertexID(1 + numStripes))
	assert.Same(t, a, b)
}
