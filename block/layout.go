// Package block defines the on-disk/on-mmap byte layout of every block
// kind the engine allocates, and typed accessors over those layouts.
//
// Layouts are expressed as explicit encoding/binary get/set methods over a
// []byte window into the block manager's mapping, rather than as
// unsafe.Pointer struct casts, because several fields (notably the 48-bit
// packed vertex id) don't fall on natural Go struct alignment boundaries.
package block

import "encoding/binary"

// Kind tags the type byte of the common header.
type Kind uint8

const (
	KindFree      Kind = 0
	KindVertex    Kind = 1
	KindEdgeLabel Kind = 2
	KindEdge      Kind = 3
	KindSpecial   Kind = 4
)

// Byte sizes of each header, fixed by the compatibility-critical constants.
const (
	HeaderSize          = 2
	N2OHeaderSize       = 24
	VertexHeaderSize    = 32
	EdgeLabelEntrySize  = 16
	EdgeLabelHeaderSize = 32
	EdgeEntrySize       = 24
	EdgeHeaderSize      = 48
)

// Tombstone is the VertexBlockHeader.length sentinel meaning "deleted".
const Tombstone uint64 = ^uint64(0)

// --- common header: {order u8, type u8} ---

func Order(b []byte) uint8  { return b[0] }
func SetOrder(b []byte, o uint8) { b[0] = o }

func TypeOf(b []byte) Kind      { return Kind(b[1]) }
func SetType(b []byte, k Kind)  { b[1] = byte(k) }

// --- N2O header: common(2) + reserved(6, holds packed vertex id) +
//     creation_time(8) + prev_pointer(8) = 24 ---
//
// The 48-bit vertex id is packed into bytes [2:8] (little-endian within
// those 6 bytes); bytes [8:16) hold creation_time; [16:24) hold
// prev_pointer.

func VertexIDOf(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:6], b[2:8])
	return binary.LittleEndian.Uint64(buf[:])
}

func SetVertexID(b []byte, id uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], id)
	copy(b[2:8], buf[:6])
}

func CreationTime(b []byte) int64 {
	return int64(binary.LittleEndian.Uint64(b[8:16]))
}

func SetCreationTime(b []byte, ts int64) {
	binary.LittleEndian.PutUint64(b[8:16], uint64(ts))
}

func PrevPointer(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b[16:24])
}

func SetPrevPointer(b []byte, p uint64) {
	binary.LittleEndian.PutUint64(b[16:24], p)
}

// --- vertex-data block: N2O(24) + length(8) = 32, followed by inline bytes ---

func VertexLength(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b[24:32])
}

func SetVertexLength(b []byte, n uint64) {
	binary.LittleEndian.PutUint64(b[24:32], n)
}

// VertexData returns the inline payload window (VertexLength bytes after
// the header), or nil for a tombstone.
func VertexData(b []byte) []byte {
	n := VertexLength(b)
	if n == Tombstone {
		return nil
	}
	return b[VertexHeaderSize : VertexHeaderSize+int(n)]
}

// --- edge-label directory block: N2O(24) + num_entries(8) = 32,
//     followed by [label u16, pointer u64] entries, 16 bytes each ---

func NumLabelEntries(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b[24:32])
}

func SetNumLabelEntries(b []byte, n uint64) {
	binary.LittleEndian.PutUint64(b[24:32], n)
}

func LabelEntry(b []byte, i int) (label uint16, pointer uint64) {
	off := EdgeLabelHeaderSize + i*EdgeLabelEntrySize
	label = binary.LittleEndian.Uint16(b[off : off+2])
	pointer = binary.LittleEndian.Uint64(b[off+8 : off+16])
	return
}

func SetLabelEntry(b []byte, i int, label uint16, pointer uint64) {
	off := EdgeLabelHeaderSize + i*EdgeLabelEntrySize
	binary.LittleEndian.PutUint16(b[off:off+2], label)
	binary.LittleEndian.PutUint64(b[off+8:off+16], pointer)
}

// --- edge block: N2O(24) + committed_time(8) + seqlock tail(16) = 48 ---
//
// The tail occupies bytes [32:48): seq(8) at [32:40), then the atomically
// published pair num_entries(4)+data_length(4) — packed as two uint32s
// within one uint64 word, each written with its own atomic uint32 store
// inside the seqlock's write section; see seqtail.go. Entries grow down from the block's end (tail-anchored);
// variable-length data grows up from offset EdgeHeaderSize (head-anchored).

func CommittedTime(b []byte) int64 {
	return int64(binary.LittleEndian.Uint64(b[24:32]))
}

func SetCommittedTime(b []byte, ts int64) {
	binary.LittleEndian.PutUint64(b[24:32], uint64(ts))
}

// EdgeEntry layout (24 bytes): length(2) + dst(6, packed like vertex id) +
// creation_time(8) + deletion_time(8).

func EntryLength(e []byte) uint16   { return binary.LittleEndian.Uint16(e[0:2]) }
func SetEntryLength(e []byte, n uint16) { binary.LittleEndian.PutUint16(e[0:2], n) }

func EntryDst(e []byte) uint64 {
	var buf [8]byte
	copy(buf[:6], e[2:8])
	return binary.LittleEndian.Uint64(buf[:])
}

func SetEntryDst(e []byte, dst uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], dst)
	copy(e[2:8], buf[:6])
}

func EntryCreationTime(e []byte) int64 { return int64(binary.LittleEndian.Uint64(e[8:16])) }
func SetEntryCreationTime(e []byte, ts int64) {
	binary.LittleEndian.PutUint64(e[8:16], uint64(ts))
}

func EntryDeletionTime(e []byte) int64 { return int64(binary.LittleEndian.Uint64(e[16:24])) }
func SetEntryDeletionTime(e []byte, ts int64) {
	binary.LittleEndian.PutUint64(e[16:24], uint64(ts))
}

// EntrySlot returns the i-th entry's 24-byte window (in physical/append
// order) within an edge block of the given order. Entries are
// tail-anchored: slot 0 sits immediately before the Bloom reservation,
// and each following entry sits further toward the header, so appending
// entry n+1 never disturbs entries [0,n]'s byte offsets. Variable-length
// edge data is addressed separately and grows from the header forward
// (see EdgeEntrySize's accompanying data cursor in package iter and txn).
func EntrySlot(buf []byte, order uint8, i int) []byte {
	base := len(buf) - BloomBytes(order)
	off := base - (i+1)*EdgeEntrySize
	return buf[off : off+EdgeEntrySize]
}

// DirHasSpace reports whether an edge-label directory block of the given
// order can hold numEntries {label,pointer} entries alongside its header.
func DirHasSpace(order uint8, numEntries uint64) bool {
	total := uint64(EdgeLabelHeaderSize) + numEntries*EdgeLabelEntrySize
	return total <= uint64(1)<<order
}

// BloomThresholdOrder and BloomPortionShift mirror the original's
// BLOOM_FILTER_THRESHOLD=10 and "reserve block_size>>4 bytes at the tail".
const (
	BloomThresholdOrder = 10
	BloomPortionShift   = 4
)

// BloomBytes returns how many trailing bytes of a block of the given order
// are reserved for its Bloom filter (0 below BloomThresholdOrder).
func BloomBytes(order uint8) int {
	if order < BloomThresholdOrder {
		return 0
	}
	return 1 << (order - BloomPortionShift)
}

// HasSpace reports whether an edge block of the given order can hold
// numEntries entries and dataLength data bytes alongside its Bloom filter,
// per invariant 1: header + entries*24 + data_length + bloom_bytes <= 2^order.
func HasSpace(order uint8, numEntries, dataLength uint64) bool {
	total := uint64(EdgeHeaderSize) + numEntries*EdgeEntrySize + dataLength + uint64(BloomBytes(order))
	return total <= uint64(1)<<order
}
