package block

import "unsafe"

// ptrAt returns a pointer to byte offset off within b. The caller is
// responsible for alignment: EdgeTail's offsets (0, 8, 12) are chosen so
// that the resulting uint64/uint32 pointers are naturally aligned whenever
// b itself starts at an 8-byte-aligned address, which is guaranteed since
// b is a window into an mmap'd region (page-aligned) sliced at
// order-aligned, 8-byte-multiple offsets.
//
//nolint:gosec // unsafe is required to treat an mmap'd byte window as atomic integer storage
func ptrAt(b []byte, off int) unsafe.Pointer {
	return unsafe.Pointer(&b[off])
}
