// Package blockmgr implements a size-classed, buddy-style block allocator:
// alloc/free/convert over a single mapped address region, backed by either
// an anonymous or a growable file-backed mapping.
package blockmgr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/livegraph/livegraph/internal/mmap"
	"golang.org/x/time/rate"
)

// NullPointer is the reserved offset meaning "no block".
const NullPointer uint64 = 0

// MaxOrder bounds the order_t range, matching the original's MAX_ORDER=64.
const MaxOrder = 64

// DefaultLargeBlockThreshold is the order at and above which orders share
// one mutex-guarded free list instead of a sharded one.
const DefaultLargeBlockThreshold uint8 = 20

// DefaultFileTruncSize is the increment the backing file grows by.
const DefaultFileTruncSize int64 = 1 << 30

// ErrResourceExhausted wraps allocator/mmap failures, fatal to the engine.
var ErrResourceExhausted = errors.New("livegraph: block manager resource exhausted")

// Manager is the block allocator. One Manager owns one mapping (either a
// growable file or anonymous memory) for the whole lifetime of a Graph.
type Manager struct {
	mapping        *mmap.Mapping
	capacity       int64
	fileTruncSize  int64
	largeThreshold uint8

	shards []*shard // small orders
	large  struct {
		mu   sync.Mutex
		free [][]uint64 // indexed by order
	}

	usedSize atomic.Int64
	growMu   sync.Mutex // guards file growth past the large-block lock, as in the original

	ioLimiter *rate.Limiter // throttles ftruncate-driven growth, see resource.Controller

	nullHolder uint64
}

// Options configures a Manager beyond its required path/capacity.
type Options struct {
	LargeBlockThreshold uint8 // default DefaultLargeBlockThreshold
	FileTruncSize       int64 // default DefaultFileTruncSize
	IOLimiter           *rate.Limiter
}

// Open creates a Manager over path (anonymous memory if path is empty),
// sized for capacity bytes of address space, and reserves the NULL
// pointer sentinel.
func Open(path string, capacity int64, opts Options) (*Manager, error) {
	if opts.LargeBlockThreshold == 0 {
		opts.LargeBlockThreshold = DefaultLargeBlockThreshold
	}
	if opts.FileTruncSize == 0 {
		opts.FileTruncSize = DefaultFileTruncSize
	}

	var mp *mmap.Mapping
	var err error
	if path == "" {
		mp, err = mmap.OpenAnon(capacity)
	} else {
		mp, err = mmap.OpenWritable(path, capacity)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceExhausted, err)
	}

	if path != "" {
		initial := opts.FileTruncSize
		if initial > capacity {
			initial = capacity
		}
		if err := mp.Grow(initial); err != nil {
			mp.Close()
			return nil, fmt.Errorf("%w: %v", ErrResourceExhausted, err)
		}
	}

	if err := mp.Advise(mmap.AccessRandom); err != nil {
		// Advisory only; never fatal.
		_ = err
	}

	m := &Manager{
		mapping:        mp,
		capacity:       capacity,
		fileTruncSize:  opts.FileTruncSize,
		largeThreshold: opts.LargeBlockThreshold,
		shards:         newShards(shardCount(), opts.LargeBlockThreshold),
		ioLimiter:      opts.IOLimiter,
	}
	m.large.free = make([][]uint64, MaxOrder)

	m.nullHolder, err = m.Alloc(opts.LargeBlockThreshold)
	if err != nil {
		mp.Close()
		return nil, err
	}

	return m, nil
}

// Close frees the sentinel block, syncs, and unmaps.
func (m *Manager) Close() error {
	m.Free(m.nullHolder, m.largeThreshold)
	if err := m.mapping.Sync(); err != nil {
		return err
	}
	return m.mapping.Close()
}

// Alloc returns the offset of a fresh block of the given order.
func (m *Manager) Alloc(order uint8) (uint64, error) {
	var (
		offset uint64
		ok     bool
	)

	if order < m.largeThreshold {
		// Start at the round-robin shard, then try the others, so a block
		// freed onto any shard is reused before the arena grows.
		start := shardCursor.Add(1)
		n := uint64(len(m.shards))
		for i := uint64(0); i < n && !ok; i++ {
			offset, ok = m.shards[(start+i)%n].pop(order)
		}
	} else {
		m.large.mu.Lock()
		offset, ok = popLarge(m.large.free, order)
		m.large.mu.Unlock()
	}
	if ok {
		return offset, nil
	}

	blockSize := int64(1) << order
	offset = uint64(m.usedSize.Add(blockSize) - blockSize)

	end := int64(offset) + blockSize
	if end > int64(m.capacity) {
		return 0, fmt.Errorf("%w: capacity exhausted", ErrResourceExhausted)
	}

	if m.mapping.FileSize() < end {
		if err := m.growTo(end); err != nil {
			return 0, err
		}
	}

	return offset, nil
}

// growTo extends the backing file (a no-op for anonymous mappings) to
// cover at least end bytes, rounding up to whole FileTruncSize units, and
// serializes under growMu: growth holds the allocator mutex and may block
// peers allocating large orders.
func (m *Manager) growTo(end int64) error {
	m.growMu.Lock()
	defer m.growMu.Unlock()

	if m.mapping.FileSize() >= end {
		return nil // another goroutine already grew past us
	}

	newSize := ((end / m.fileTruncSize) + 1) * m.fileTruncSize
	if m.ioLimiter != nil {
		// Growth is not cancellable mid-way, so we always wait
		// out the limiter rather than threading a caller context through.
		_ = m.ioLimiter.WaitN(context.Background(), int(newSize-m.mapping.FileSize()))
	}
	if err := m.mapping.Grow(newSize); err != nil {
		return fmt.Errorf("%w: %v", ErrResourceExhausted, err)
	}
	return nil
}

// Free returns a block to the appropriate free list. No coalescing, by
// design.
func (m *Manager) Free(offset uint64, order uint8) {
	if order < m.largeThreshold {
		m.pickShard().push(order, offset)
		return
	}
	m.large.mu.Lock()
	m.large.free[order] = append(m.large.free[order], offset)
	m.large.mu.Unlock()
}

// Bytes returns the byte slice starting at offset and running to the end
// of the mapping. Callers slice it down to the block's own size (readable
// from its header's order byte, or known a priori) themselves. Offset 0
// (NullPointer) returns nil.
func (m *Manager) Bytes(offset uint64) []byte {
	if offset == NullPointer {
		return nil
	}
	return m.mapping.Bytes()[offset:]
}

// Block returns the byte slice for the block of the given order at offset.
func (m *Manager) Block(offset uint64, order uint8) []byte {
	if offset == NullPointer {
		return nil
	}
	size := int64(1) << order
	return m.mapping.Bytes()[offset : int64(offset)+size]
}

func popLarge(free [][]uint64, order uint8) (uint64, bool) {
	list := free[order]
	if len(list) == 0 {
		return 0, false
	}
	p := list[len(list)-1]
	free[order] = list[:len(list)-1]
	return p, true
}
