// Package core defines the primitive value types shared across the storage
// engine: vertex and edge identifiers, block orders, and the timestamp
// arithmetic used to decide what a snapshot can see.
package core

// VertexID identifies a vertex. Ids are allocated monotonically or recycled;
// the packing into a block's N2O header limits the usable range to 48 bits.
type VertexID uint64

// MaxVertexID is the largest VertexID representable in a packed N2O header
// field: (2^16-1)<<32 + (2^32-1).
const MaxVertexID VertexID = (1<<16-1)<<32 | (1<<32 - 1)

// VertexTombstone is the sentinel returned by an exhausted EdgeIterator's
// DstID, and never a valid allocated vertex id.
const VertexTombstone VertexID = MaxVertexID + 1

// Label identifies the relation type of an edge. Labels are opaque to the
// engine; callers assign their own meaning.
type Label uint16

// Order is log2 of a block's byte size. A block of order o is 1<<o bytes.
type Order uint8

// Size returns the byte size of a block of this order.
func (o Order) Size() int64 { return int64(1) << o }

// Timestamp is a signed 64-bit logical clock value. Positive values are
// committed epochs; negative values are "pending" — the two's complement of
// a transaction-local id assigned before commit. Zero is not a valid
// pending value (a transaction never stamps with -0).
type Timestamp int64

// PositiveInfinity represents an edge's deletion_time while the edge is
// still live. It must compare greater than every committed epoch and every
// pending timestamp.
const PositiveInfinity Timestamp = 1<<63 - 1

// Pending returns the pending-timestamp encoding of a transaction-local id.
// localTxnID must be > 0.
func Pending(localTxnID int64) Timestamp { return Timestamp(-localTxnID) }

// IsPending reports whether ts encodes an uncommitted transaction-local id
// rather than a committed epoch.
func (ts Timestamp) IsPending() bool { return ts < 0 }

// CompareTimestamp orders a stored timestamp ts against a reader's snapshot
// (readEpochID) and, if ts is pending, against the reader's own
// localTxnID. It returns a value <0, 0, or >0 exactly like strings.Compare.
//
// A pending ts resolves against the reader's own localTxnID: if they match
// (the reader is the transaction that wrote ts), ts compares as older
// than readEpochID (-1), so a writer always sees its own uncommitted
// writes — callers that need strict ordering among a writer's own
// uncommitted writes should compare pending magnitudes directly instead.
// Any other reader sees a pending value as not-yet-visible: it compares as
// +∞ unless the magnitudes match.
func CompareTimestamp(ts, readEpochID Timestamp, localTxnID int64) int {
	if !ts.IsPending() {
		switch {
		case ts < readEpochID:
			return -1
		case ts > readEpochID:
			return 1
		default:
			return 0
		}
	}

	// ts is pending: -ts is the writer's local_txn_id.
	if int64(-ts) == localTxnID {
		// The reader is the writer of this pending value: visible as of now.
		return -1
	}

	// Pending values from a different (or no) transaction are invisible to
	// this reader: compare as +∞, i.e. greater than any epoch.
	return 1
}
