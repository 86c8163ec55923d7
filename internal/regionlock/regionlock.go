// Package regionlock implements the per-(node-id) neighborhood lock
// described in spec.md §4.4: a re-entrant, process-wide ownership table
// that lets structurally conflicting writers serialize against each
// other while writers on disjoint regions proceed concurrently.
package regionlock

import (
	"sync"

	"github.com/ann-go/hnswgraph/internal/logger"
)

// Token identifies "the current thread" for re-entrance purposes. Go
// has no cheap, portable goroutine id, so callers mint Tokens
// explicitly and thread them through every recursive Acquire: the hnsw
// façade mints one per Add or Remove, and the Connector's Update draws
// one per unit of work from the source the façade hands it — see
// SPEC_FULL.md's "goroutine identity" note.
type Token uint64

type ownership struct {
	token Token
	count int
}

// Locker is the process-wide ownership table. The zero value is not
// usable; construct with New.
type Locker struct {
	mu     sync.Mutex
	cond   *sync.Cond
	owners map[uint32]ownership
}

// New returns an empty Locker.
func New() *Locker {
	l := &Locker{owners: make(map[uint32]ownership)}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Resize is a no-op hook satisfying the same callback shape as
// arena.Arena.OnResize / visited.Pool.Resize — the ownership table is a
// map keyed by id, so it needs no pre-sizing, but registering it keeps
// every downstream pool wired through the same reallocation-event path
// (spec.md §4.3 / §5).
func (l *Locker) Resize(int) {}

// Guard is the held neighborhood returned by Acquire. Callers must call
// Release exactly once.
type Guard struct {
	locker *Locker
	held   []uint32
	token  Token
}

// Held returns the final (post-validation) neighborhood this guard owns.
func (g *Guard) Held() []uint32 { return g.held }

// Acquire implements the protocol of spec.md §4.4:
//
//  1. snapshot() computes S0 = {v} ∪ out(v,l) ∪ in(v,l).
//  2. Wait until every id in S0 is free or owned by token, then mark them.
//  3. Validate: resnapshot via snapshot(). If the neighborhood changed,
//     either extend the held set (if the extras are free-or-ours) or
//     unmark everything and retry from step 1.
//  4. Return a Guard holding the validated set.
//
// snapshot must be safe to call repeatedly and must return a fresh,
// possibly different, set each time (the Connector recomputes it by
// reading the node's current out/in edge lists).
func (l *Locker) Acquire(snapshot func() []uint32, token Token) *Guard {
	for {
		s0 := snapshot()

		l.mu.Lock()
		for !l.allFreeOrOursLocked(s0, token) {
			l.cond.Wait()
		}
		l.markLocked(s0, token)
		l.mu.Unlock()

		s1 := snapshot()
		extras := diff(s1, s0)
		removed := diff(s0, s1)

		if len(extras) == 0 && len(removed) == 0 {
			return &Guard{locker: l, held: s0, token: token}
		}

		l.mu.Lock()
		if l.allFreeOrOursLocked(extras, token) {
			l.markLocked(extras, token)
			l.unmarkLocked(removed, token)
			l.cond.Broadcast()
			l.mu.Unlock()
			return &Guard{locker: l, held: s1, token: token}
		}

		// Conflict on an extra id: release everything we grabbed this
		// round and retry the whole sequence.
		l.unmarkLocked(s0, token)
		l.cond.Broadcast()
		l.mu.Unlock()

		logger.Debug("region lock retry", "token", uint64(token), "held", len(s0), "extras", len(extras))
	}
}

// Release drops every id in the guard's held set, waking any waiters.
func (g *Guard) Release() {
	g.locker.mu.Lock()
	g.locker.unmarkLocked(g.held, g.token)
	g.locker.cond.Broadcast()
	g.locker.mu.Unlock()
}

func (l *Locker) allFreeOrOursLocked(ids []uint32, token Token) bool {
	for _, id := range ids {
		if o, ok := l.owners[id]; ok && o.token != token {
			return false
		}
	}
	return true
}

func (l *Locker) markLocked(ids []uint32, token Token) {
	for _, id := range ids {
		o := l.owners[id]
		if o.count == 0 {
			l.owners[id] = ownership{token: token, count: 1}
			continue
		}
		// Re-entrant: same token (allFreeOrOursLocked already ensured
		// no foreign owner is present among ids).
		o.count++
		l.owners[id] = o
	}
}

func (l *Locker) unmarkLocked(ids []uint32, token Token) {
	for _, id := range ids {
		o, ok := l.owners[id]
		if !ok || o.token != token {
			continue
		}
		o.count--
		if o.count <= 0 {
			delete(l.owners, id)
		} else {
			l.owners[id] = o
		}
	}
}

func diff(a, b []uint32) []uint32 {
	inB := make(map[uint32]struct{}, len(b))
	for _, id := range b {
		inB[id] = struct{}{}
	}
	var out []uint32
	for _, id := range a {
		if _, ok := inB[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
