// Package visited implements the per-search "has this id been seen"
// structure described in spec.md §4.5 and §9: a monotonically
// increasing epoch tag per slot, pooled across goroutines so a
// throughput workload doesn't allocate a fresh bitmap per query.
package visited

import "sync"

// Set is a single reusable visited-tracker. A checkout bumps the
// current epoch; "visited" means slot[id] == current epoch. Growing
// the slot array (on arena resize, or lazily on an out-of-range id)
// never shrinks it, so a Set only gets cheaper to reuse over time.
type Set struct {
	slots   []uint32
	epoch   uint32
}

// newSet returns a Set with capacity initial slots.
func newSet(initial int) *Set {
	return &Set{slots: make([]uint32, initial)}
}

// Reset starts a new search: bump the epoch, growing capacity to at
// least size first if needed. On epoch overflow (every ~2^32 checkouts
// per set — effectively never, but ~32k with the original uint16
// tag design spec.md §9 describes) the slot array is zeroed and the
// epoch restarts at 1, per spec.md §4.5 "on version overflow the slot
// array is zeroed."
func (s *Set) Reset(size int) {
	s.Grow(size)
	s.epoch++
	if s.epoch == 0 {
		for i := range s.slots {
			s.slots[i] = 0
		}
		s.epoch = 1
	}
}

// Grow extends the slot array to at least size, auto-extending mid-search
// if the graph grows under a live search (spec.md §4.5 "If graph grows
// mid-search the set auto-extends").
func (s *Set) Grow(size int) {
	if size <= len(s.slots) {
		return
	}
	grown := make([]uint32, size)
	copy(grown, s.slots)
	s.slots = grown
}

// Visit marks id as visited and reports whether it was already visited
// this epoch. An id beyond the current capacity is treated as
// "not visited" and grows the set to cover it, per spec.md §5's
// tolerance requirement for reader-side growth races.
func (s *Set) Visit(id uint32) (alreadyVisited bool) {
	if int(id) >= len(s.slots) {
		s.Grow(int(id) + 1)
	}
	if s.slots[id] == s.epoch {
		return true
	}
	s.slots[id] = s.epoch
	return false
}

// IsVisited reports whether id has been visited this epoch without
// marking it.
func (s *Set) IsVisited(id uint32) bool {
	if int(id) >= len(s.slots) {
		return false
	}
	return s.slots[id] == s.epoch
}

// Pool is a stack of reusable Sets guarded by a mutex, matching the
// "checkout-modify-return" pattern of spec.md §5.
type Pool struct {
	mu       sync.Mutex
	free     []*Set
	capacity int // sizing hint applied to newly minted Sets
}

// NewPool returns a pool that sizes fresh Sets to capacity slots,
// typically the arena's current capacity (§4.5 "keyed to the current
// graph capacity").
func NewPool(capacity int) *Pool {
	return &Pool{capacity: capacity}
}

// Checkout removes a Set from the pool (minting one if empty) and
// resets it for a search over sizeHint ids.
func (p *Pool) Checkout(sizeHint int) *Set {
	p.mu.Lock()
	var s *Set
	if n := len(p.free); n > 0 {
		s = p.free[n-1]
		p.free = p.free[:n-1]
	}
	p.mu.Unlock()

	if s == nil {
		cap := p.capacity
		if sizeHint > cap {
			cap = sizeHint
		}
		s = newSet(cap)
	}
	s.Reset(sizeHint)
	return s
}

// Return gives a Set back to the pool for reuse by the next search.
func (p *Pool) Return(s *Set) {
	p.mu.Lock()
	p.free = append(p.free, s)
	p.mu.Unlock()
}

// Resize bumps the pool's sizing hint so Sets minted after an arena
// growth event start large enough to avoid an immediate re-grow. This
// is the downstream callback fired by arena reallocation (spec.md §4.3
// step 2 / §5 "downstream pools must expand before any writer observes
// the new capacity").
func (p *Pool) Resize(newCapacity int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if newCapacity <= p.capacity {
		return
	}
	p.capacity = newCapacity
	for _, s := range p.free {
		s.Grow(newCapacity)
	}
}
