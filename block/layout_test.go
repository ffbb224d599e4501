package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestN2OHeader_PacksVertexIDAndPointers(t *testing.T) {
	b := make([]byte, N2OHeaderSize)
	SetOrder(b, 12)
	SetType(b, KindVertex)
	SetVertexID(b, 0xABCDEF123456)
	SetCreationTime(b, 77)
	SetPrevPointer(b, 0xDEADBEEF)

	assert.Equal(t, uint8(12), Order(b))
	assert.Equal(t, KindVertex, TypeOf(b))
	assert.Equal(t, uint64(0xABCDEF123456), VertexIDOf(b))
	assert.Equal(t, int64(77), CreationTime(b))
	assert.Equal(t, uint64(0xDEADBEEF), PrevPointer(b))
}

func TestVertexData_TombstoneReturnsNil(t *testing.T) {
	b := make([]byte, VertexHeaderSize+8)
	SetVertexLength(b, Tombstone)
	assert.Nil(t, VertexData(b))

	SetVertexLength(b, 8)
	copy(b[VertexHeaderSize:], []byte("abcdefgh"))
	assert.Equal(t, []byte("abcdefgh"), VertexData(b))
}

func TestLabelEntry_RoundTrips(t *testing.T) {
	b := make([]byte, EdgeLabelHeaderSize+2*EdgeLabelEntrySize)
	SetNumLabelEntries(b, 2)
	SetLabelEntry(b, 0, 5, 0x1000)
	SetLabelEntry(b, 1, 9, 0x2000)

	assert.Equal(t, uint64(2), NumLabelEntries(b))
	l0, p0 := LabelEntry(b, 0)
	assert.Equal(t, uint16(5), l0)
	assert.Equal(t, uint64(0x1000), p0)
	l1, p1 := LabelEntry(b, 1)
	assert.Equal(t, uint16(9), l1)
	assert.Equal(t, uint64(0x2000), p1)
}

func TestEdgeEntry_RoundTrips(t *testing.T) {
	e := make([]byte, EdgeEntrySize)
	SetEntryLength(e, 16)
	SetEntryDst(e, 0x123456789ABC)
	SetEntryCreationTime(e, 100)
	SetEntryDeletionTime(e, 200)

	assert.Equal(t, uint16(16), EntryLength(e))
	assert.Equal(t, uint64(0x123456789ABC), EntryDst(e))
	assert.Equal(t, int64(100), EntryCreationTime(e))
	assert.Equal(t, int64(200), EntryDeletionTime(e))
}

func TestHasSpace_RespectsBloomReservation(t *testing.T) {
	// order 10 is exactly BloomThresholdOrder, so 64 bytes are reserved.
	const order = 10
	blockSize := uint64(1) << order
	bloom := uint64(BloomBytes(order))
	assert.Equal(t, uint64(64), bloom)

	headerAndBloom := uint64(EdgeHeaderSize) + bloom
	fitting := (blockSize - headerAndBloom) / EdgeEntrySize
	assert.True(t, HasSpace(order, fitting, 0))
	assert.False(t, HasSpace(order, fitting+1, 0))
}

func TestBloomBytes_ZeroBelowThreshold(t *testing.T) {
	assert.Equal(t, 0, BloomBytes(BloomThresholdOrder-1))
	assert.True(t, BloomBytes(BloomThresholdOrder) > 0)
}
