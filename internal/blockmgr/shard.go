package blockmgr

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// shard is one mutex-guarded bank of per-order free lists. Go exposes no
// thread-local storage, so a per-OS-thread free list is reinterpreted as a
// small, fixed table of shards that callers round-robin across — far fewer
// shards than goroutines, but enough to keep small-order alloc/free off one
// global lock.
type shard struct {
	mu   sync.Mutex
	free [][]uint64 // indexed by order, len == largeThreshold
}

func newShards(n int, largeThreshold uint8) []*shard {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{free: make([][]uint64, largeThreshold)}
	}
	return shards
}

// shardCount picks a power-of-two shard count from GOMAXPROCS, capped at 64
// to bound memory and at 1 minimum.
func shardCount() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	p := 1
	for p < n && p < 64 {
		p <<= 1
	}
	return p
}

// pickShard round-robins across shards. It is not goroutine-affine (Go has
// no cheap goroutine id to key on); the point is only to spread contention
// across more than one lock, not to give any single goroutine a private,
// contention-free list. Free pushes onto the shard it picks; Alloc starts
// at the next round-robin shard and falls back to the others on a miss.
var shardCursor atomic.Uint64

func (m *Manager) pickShard() *shard {
	i := shardCursor.Add(1)
	return m.shards[i%uint64(len(m.shards))]
}

func (s *shard) pop(order uint8) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.free[order]
	if len(list) == 0 {
		return 0, false
	}
	p := list[len(list)-1]
	s.free[order] = list[:len(list)-1]
	return p, true
}

func (s *shard) push(order uint8, offset uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.free[order] = append(s.free[order], offset)
}
