package txn

import "github.com/livegraph/livegraph/core"

// MutationKind tags a logical write recorded for the WAL and replayed on
// recovery.
type MutationKind uint8

const (
	MutPutVertex MutationKind = iota
	MutDelVertex
	MutPutEdge
	MutDelEdge
)

// Mutation is one logical write applied by a committing transaction, in
// the exact order it was applied — the unit the WAL persists and replay
// re-applies.
type Mutation struct {
	Kind MutationKind

	VertexID core.VertexID // PutVertex / DelVertex
	Data     []byte        // PutVertex payload, or PutEdge payload
	Recycle  bool          // DelVertex(recycle=true)

	Src, Dst    core.VertexID // PutEdge / DelEdge
	Label       core.Label
	ForceInsert bool // PutEdge
}
