// Package mmap provides memory-mapped file access for the block manager
// and the sparse vertex table.
//
// # Overview
//
// The block manager needs a single mapping that covers its full
// configured capacity up front, so that later growth is purely a matter
// of extending the backing file (ftruncate) without ever remapping —
// offsets handed out before a Grow stay valid after it.
//
// # Usage
//
//	m, err := mmap.OpenWritable("blocks.dat", capacity)
//	if err != nil { ... }
//	defer m.Close()
//
//	data := m.Bytes()        // zero-copy access to the whole capacity
//	region, _ := m.Region(offset, size)
//	m.Advise(mmap.AccessRandom)
//	m.Grow(newFileSize)       // ftruncate only; mapping already covers it
//
// # Platform Support
//
// Unix (Linux, macOS, BSD) via mmap(2)/madvise(2)/ftruncate(2).
//
// # Thread Safety
//
// Mapping and Region are safe for concurrent read access. The Close()
// method is idempotent and protected by atomic operations. Callers must
// ensure no goroutines access Bytes() after Close() returns.
//
// # Anonymous Mappings
//
// OpenAnon creates a read-write anonymous mapping (MAP_PRIVATE|MAP_ANON)
// for the no-path ("in-memory") Graph mode and for the vertex table, which
// is always anonymous regardless of whether the block file is file-backed.
package mmap
