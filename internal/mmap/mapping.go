package mmap

import (
	"io"
	"os"
	"sync/atomic"
)

// Mapping represents a memory-mapped region, either backed by a growable
// file or anonymous. It owns the underlying byte slice and is responsible
// for unmapping it.
type Mapping struct {
	data   []byte
	size   int // capacity of the mapping itself (constant after Open*)
	closed atomic.Bool
	unmap  func([]byte) error

	f        *os.File // nil for anonymous mappings
	fileSize int64    // current ftruncate'd length; <= size
}

// OpenWritable maps a file at path read-write, creating it if necessary,
// and reserves capacity bytes of address space for it up front so that
// later calls to Grow never need to remap. The file itself is truncated
// only to its current logical length, not to capacity — disk usage tracks
// Grow, not the mapping.
func OpenWritable(path string, capacity int64) (*Mapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0640) //nolint:gosec // block file path is caller-configured
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	data, unmapFunc, err := osMapFile(f, int(capacity))
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Mapping{
		data:     data,
		size:     int(capacity),
		unmap:    unmapFunc,
		f:        f,
		fileSize: fi.Size(),
	}, nil
}

// OpenAnon creates an anonymous read-write mapping of the given capacity,
// with no backing file. Used for in-memory Graph mode and for the sparse
// vertex table.
func OpenAnon(capacity int64) (*Mapping, error) {
	data, unmapFunc, err := osMapAnon(int(capacity))
	if err != nil {
		return nil, err
	}

	return &Mapping{
		data:     data,
		size:     int(capacity),
		unmap:    unmapFunc,
		fileSize: capacity, // "always resident": no growth bookkeeping needed
	}, nil
}

// Grow extends the backing file to at least newSize bytes via ftruncate.
// It is a no-op for anonymous mappings and when newSize is already
// covered. It never remaps: OpenWritable already reserved the full
// capacity, so offsets already handed out remain valid.
func (m *Mapping) Grow(newSize int64) error {
	if m.f == nil {
		return nil
	}
	if newSize <= m.fileSize {
		return nil
	}
	if newSize > int64(m.size) {
		return ErrOutOfBounds
	}
	if err := m.f.Truncate(newSize); err != nil {
		return err
	}
	m.fileSize = newSize
	return nil
}

// FileSize returns the current ftruncate'd length of the backing file (the
// mapping's own capacity, set at Open time, may be much larger).
func (m *Mapping) FileSize() int64 { return m.fileSize }

// Sync flushes dirty pages of a file-backed mapping to disk.
func (m *Mapping) Sync() error {
	if m.f == nil || m.closed.Load() {
		return nil
	}
	return osSync(m.data[:m.fileSize])
}

// Close unmaps the memory and closes the backing file, if any. It is
// idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil // Already closed
	}
	var unmapErr error
	if m.unmap != nil && m.data != nil {
		unmapErr = m.unmap(m.data)
	}
	if m.f != nil {
		if closeErr := m.f.Close(); closeErr != nil && unmapErr == nil {
			unmapErr = closeErr
		}
	}
	return unmapErr
}

// Bytes returns the underlying byte slice.
// Warning: The slice is valid only until Close() is called.
// Accessing the slice after Close() results in undefined behavior (likely a crash).
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return m.size
}

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.data == nil {
		return nil
	}
	return osAdvise(m.data, pattern)
}

// ReadAt implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (n int, err error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n = copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
