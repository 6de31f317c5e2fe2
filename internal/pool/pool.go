// Package pool implements the handle/generational-pool runtime library
// (spec.md C5, §4.5) that emitted programs link against. It is the one
// runtime (rather than compile-time-checker) component of the core: a slab
// allocator keyed by (pool_id, index, generation) triples, with validation
// on every access.
//
// Grounded on the teacher's region/slab allocator style
// (internal/runtime/region_alloc.go: RegionID, RegionHeader, FreeBlock
// free-listing) and its GC-avoidance scope/lifetime bookkeeping
// (internal/runtime/gcavoidance/engine.go), adapted from raw-byte regions
// to a typed, generation-validated slot allocator.
package pool

import (
	"iter"
	"sync/atomic"
)

// ID is a pool's process-unique identifier, assigned at construction.
type ID uint32

var idCounter uint32

func nextID() ID {
	return ID(atomic.AddUint32(&idCounter, 1))
}

// Generation is a per-slot counter bumped on insertion and removal. An odd
// generation marks an occupied slot; an even (nonzero) generation marks a
// slot that has previously held a value and was removed; zero marks a slot
// that has never been occupied. A retired slot (I-Gen-Saturate) keeps its
// last, odd generation but is no longer occupied.
type Generation uint64

// Handle identifies one slot in one pool. Handles are Copy values; copying
// a handle does not copy the referent (spec.md §3 Entities: Handle).
type Handle[T any] struct {
	PoolID     ID
	Index      uint32
	Generation Generation
}

// LinearElement is implemented by element types that must be explicitly
// disposed of rather than silently dropped: Drain calls Dispose on every
// element it drops after an early exit. Close refuses to destroy a
// non-empty pool only when it was built WithLinearElements; implementing
// LinearElement alone does not make Close fault.
type LinearElement interface {
	Dispose()
}

type slot[T any] struct {
	value      T
	generation Generation
	occupied   bool
	retired    bool
}

// Pool is a slab-allocated collection of elements of type T. A Pool owns
// its elements; it is not inherently thread-safe (spec.md §5
// "Concurrency").
type Pool[T any] struct {
	id            ID
	slots         []slot[T]
	free          []uint32
	maxGeneration Generation
	// linearElements marks a pool whose element type must be drained
	// before Close, per spec.md's linear-container rule.
	linearElements bool
	// iterating guards the read-mode iteration context of Iter: while
	// true, Insert/Remove refuse to mutate the pool.
	iterating bool
}

// Option configures a Pool at construction.
type Option[T any] func(*Pool[T])

// WithMaxGeneration caps the generation counter, forcing earlier
// retirement than the Generation type's natural maximum. Spec.md notes a
// u32 variant suffices for ~2 billion cycles per slot and a u64 variant
// "never retires in practice"; tests use a small cap to exercise
// retirement deterministically (I-Gen-Saturate).
func WithMaxGeneration[T any](max Generation) Option[T] {
	return func(p *Pool[T]) { p.maxGeneration = max }
}

// WithLinearElements marks the pool as holding Linear-discipline elements:
// Close refuses to destroy a non-empty such pool (DropOfNonEmptyLinearPool).
func WithLinearElements[T any]() Option[T] {
	return func(p *Pool[T]) { p.linearElements = true }
}

// New constructs an empty pool with a fresh process-local id.
func New[T any](opts ...Option[T]) *Pool[T] {
	p := &Pool[T]{id: nextID(), maxGeneration: ^Generation(0)}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ID returns the pool's process-unique identifier.
func (p *Pool[T]) ID() ID { return p.id }

// Len returns the number of currently occupied slots.
func (p *Pool[T]) Len() int {
	n := 0

	for i := range p.slots {
		if p.slots[i].occupied {
			n++
		}
	}

	return n
}

// Insert places v into a free slot (from the free-list or by extending
// storage), bumps that slot's generation to the next occupied value, and
// returns the resulting handle. Amortized O(1). Inserting a Linear element
// transfers ownership to the pool.
func (p *Pool[T]) Insert(v T) Handle[T] {
	p.guardMutation("insert")

	var idx uint32
	if n := len(p.free); n > 0 {
		idx = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		idx = uint32(len(p.slots))
		p.slots = append(p.slots, slot[T]{})
	}

	s := &p.slots[idx]
	s.value = v
	s.generation++ // 0->1 on first use, or even(free)->odd(occupied)
	s.occupied = true

	return Handle[T]{PoolID: p.id, Index: idx, Generation: s.generation}
}

// validate performs the three checks of spec.md I-Handle-Validate in
// order, panicking with the matching Fault on any mismatch.
func (p *Pool[T]) validate(h Handle[T]) *slot[T] {
	if h.PoolID != p.id {
		raise(HandleWrongPool, "handle pool id %d does not match pool %d", h.PoolID, p.id)
	}

	if h.Index >= uint32(len(p.slots)) {
		raise(HandleIndexOOB, "handle index %d out of bounds (capacity %d)", h.Index, len(p.slots))
	}

	s := &p.slots[h.Index]
	if h.Generation != s.generation || !s.occupied {
		raise(HandleStale, "handle generation %d does not match current slot generation %d", h.Generation, s.generation)
	}

	return s
}

// Get validates h and returns a pointer into the slot's storage — an
// expression-scoped borrow of the element (spec.md §4.5 "Access pool[h]").
// It panics (via a *Fault) on any validation failure.
func (p *Pool[T]) Get(h Handle[T]) *T {
	return &p.validate(h).value
}

// TryGet is the fallible `pool.get(h)` form for Copy element types: it
// returns (zero, false) on any validation failure instead of panicking.
func (p *Pool[T]) TryGet(h Handle[T]) (T, bool) {
	if h.PoolID != p.id || h.Index >= uint32(len(p.slots)) {
		var zero T
		return zero, false
	}

	s := &p.slots[h.Index]
	if h.Generation != s.generation || !s.occupied {
		var zero T
		return zero, false
	}

	return s.value, true
}

// TryWith is the fallible access form for non-Copy element types: fn
// receives a scoped capability (a pointer) consumed entirely within the
// call, and TryWith reports whether fn ran.
func (p *Pool[T]) TryWith(h Handle[T], fn func(*T)) bool {
	if h.PoolID != p.id || h.Index >= uint32(len(p.slots)) {
		return false
	}

	s := &p.slots[h.Index]
	if h.Generation != s.generation || !s.occupied {
		return false
	}

	fn(&s.value)

	return true
}

// Remove validates h, moves the element out of the slot, bumps the slot's
// generation (retiring it on saturation per I-Gen-Saturate instead of
// wrapping), and returns the index to the free-list unless retired.
func (p *Pool[T]) Remove(h Handle[T]) T {
	p.guardMutation("remove")

	s := p.validate(h)

	v := s.value

	var zero T

	s.value = zero
	s.occupied = false

	if s.generation >= p.maxGeneration {
		s.retired = true
		// Index intentionally NOT returned to the free-list: a retired
		// slot is permanently unavailable (I-Gen-Saturate).
		return v
	}

	s.generation++ // next free value
	p.free = append(p.free, h.Index)

	return v
}

// Handles yields a Handle for every occupied slot at call time. Per
// spec.md, mutation, insertion, and removal during the loop are legal;
// slots inserted after iteration starts may or may not be visited.
func (p *Pool[T]) Handles() iter.Seq[Handle[T]] {
	return func(yield func(Handle[T]) bool) {
		n := len(p.slots)
		for i := 0; i < n && i < len(p.slots); i++ {
			s := &p.slots[i]
			if !s.occupied {
				continue
			}

			h := Handle[T]{PoolID: p.id, Index: uint32(i), Generation: s.generation}
			if !yield(h) {
				return
			}
		}
	}
}

// Iter yields (Handle, read-borrow) pairs for every occupied slot. For the
// duration of the loop the pool is in a read-mode iteration context:
// mutation and removal are refused.
func (p *Pool[T]) Iter() iter.Seq2[Handle[T], *T] {
	return func(yield func(Handle[T], *T) bool) {
		p.iterating = true
		defer func() { p.iterating = false }()

		n := len(p.slots)
		for i := 0; i < n; i++ {
			s := &p.slots[i]
			if !s.occupied {
				continue
			}

			h := Handle[T]{PoolID: p.id, Index: uint32(i), Generation: s.generation}
			if !yield(h, &s.value) {
				return
			}
		}
	}
}

// Drain yields owned elements for every occupied slot, in index order, and
// leaves the pool empty. If the consumer stops early (the loop body
// breaks), remaining elements are dropped in LIFO index order; if T is a
// LinearElement, Dispose is invoked on each dropped remainder.
func (p *Pool[T]) Drain() iter.Seq[T] {
	return func(yield func(T) bool) {
		indices := make([]uint32, 0, len(p.slots))

		for i := range p.slots {
			if p.slots[i].occupied {
				indices = append(indices, uint32(i))
			}
		}

		stopped := -1

		for pos, idx := range indices {
			s := &p.slots[idx]
			v := s.value

			var zero T

			s.value = zero
			s.occupied = false
			p.bumpOrRetire(s, idx)

			if !yield(v) {
				stopped = pos + 1
				break
			}
		}

		if stopped >= 0 {
			// Drop remaining elements in LIFO order, retiring each slot the
			// same way the main loop does so the pool is left empty
			// (spec.md §4.5 "Early exit drops remaining elements in LIFO
			// order", still leaving Drain's "leaves the pool empty"
			// postcondition intact).
			for i := len(indices) - 1; i >= stopped; i-- {
				idx := indices[i]
				s := &p.slots[idx]

				if disposer, ok := any(s.value).(LinearElement); ok {
					disposer.Dispose()
				}

				var zero T

				s.value = zero
				s.occupied = false
				p.bumpOrRetire(s, idx)
			}
		}
	}
}

func (p *Pool[T]) bumpOrRetire(s *slot[T], idx uint32) {
	if s.generation >= p.maxGeneration {
		s.retired = true
		return
	}

	s.generation++
	p.free = append(p.free, idx)
}

// Close destroys the pool. A pool holding Linear elements that is still
// occupied faults rather than silently dropping elements
// (DropOfNonEmptyLinearPool); drain it first.
func (p *Pool[T]) Close() {
	if p.linearElements && p.Len() > 0 {
		raise(DropOfNonEmptyLinearPool, "pool %d destroyed with %d linear element(s) still occupied", p.id, p.Len())
	}
}

func (p *Pool[T]) guardMutation(op string) {
	if p.iterating {
		panic("pool: " + op + " during read-mode iteration (Iter) is forbidden")
	}
}
