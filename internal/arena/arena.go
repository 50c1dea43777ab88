// internal/arena/arena.go
package arena

import (
	"errors"
	"fmt"
	"iter"
	"math"
)

var (
	// ErrStale is returned when an ID no longer addresses a live value,
	// either because the slot was freed or because it was reused by a later Alloc.
	ErrStale = errors.New("arena: stale or unknown id")
	// ErrAlias is returned by GetPair when both IDs address the same slot.
	ErrAlias = errors.New("arena: paired access to a single slot")
)

// -- Identifiers --

// ID is a generational handle into an Arena. Two IDs are equal iff both the slot
// and the generation match. The zero ID never resolves, since generations start at 1.
type ID struct {
	slot       uint32
	generation uint32
}

// Nil is the zero ID. It is never valid in any arena.
var Nil ID

// Slot returns the slot index component.
func (id ID) Slot() uint32 { return id.slot }

// Generation returns the generation component.
func (id ID) Generation() uint32 { return id.generation }

// IsNil reports whether the ID is the zero value.
func (id ID) IsNil() bool { return id.generation == 0 }

func (id ID) String() string {
	if id.IsNil() {
		return "nil"
	}
	return fmt.Sprintf("%dv%d", id.slot, id.generation)
}

// -- Arena --

type entry[T any] struct {
	generation uint32
	occupied   bool
	value      T
}

// Stats is a point-in-time snapshot of arena bookkeeping.
type Stats struct {
	Live     int
	Slots    int
	Free     int
	Retired  int
	Allocs   uint64
	Deallocs uint64
}

// Arena is a growable slot store addressed by generational IDs.
// Each slot is allocated separately, so a pointer returned by TryGet keeps
// addressing the same slot while the arena grows. It is not safe for concurrent use.
type Arena[T any] struct {
	entries  []*entry[T]
	free     []uint32
	live     int
	retired  int
	allocs   uint64
	deallocs uint64
}

// Option configures an Arena at construction time.
type Option func(*options)

type options struct {
	capacity int
}

// WithCapacity pre-sizes the slot storage.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// New creates an empty arena.
func New[T any](opts ...Option) *Arena[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Arena[T]{
		entries: make([]*entry[T], 0, o.capacity),
	}
}

// Alloc stores value in a free slot (or a new one) and returns its ID.
// Freed slots are reused last-in first-out.
func (a *Arena[T]) Alloc(value T) ID {
	a.allocs++
	a.live++

	if n := len(a.free); n > 0 {
		slot := a.free[n-1]
		a.free = a.free[:n-1]
		e := a.entries[slot]
		e.occupied = true
		e.value = value
		return ID{slot: slot, generation: e.generation}
	}

	if len(a.entries) >= math.MaxUint32 {
		panic("arena: slot space exhausted")
	}
	slot := uint32(len(a.entries))
	a.entries = append(a.entries, &entry[T]{generation: 1, occupied: true, value: value})
	return ID{slot: slot, generation: 1}
}

func (a *Arena[T]) lookup(id ID) *entry[T] {
	if id.IsNil() || int(id.slot) >= len(a.entries) {
		return nil
	}
	e := a.entries[id.slot]
	if !e.occupied || e.generation != id.generation {
		return nil
	}
	return e
}

// Contains reports whether id currently resolves.
func (a *Arena[T]) Contains(id ID) bool {
	return a.lookup(id) != nil
}

// TryGet returns the value addressed by id, or false when the slot is empty or
// the generation does not match. It never panics.
func (a *Arena[T]) TryGet(id ID) (*T, bool) {
	e := a.lookup(id)
	if e == nil {
		return nil, false
	}
	return &e.value, true
}

// TryGetMut is TryGet for call sites that intend to write through the pointer.
// Go has no separate shared/exclusive pointer types, so the two are identical;
// the distinction documents intent at the call site.
func (a *Arena[T]) TryGetMut(id ID) (*T, bool) {
	return a.TryGet(id)
}

// Get is TryGet with an error result.
func (a *Arena[T]) Get(id ID) (*T, error) {
	v, ok := a.TryGet(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStale, id)
	}
	return v, nil
}

// GetPair returns two distinct pointers for two distinct live IDs.
// It fails with ErrAlias when a == b, and with ErrStale when either does not resolve.
func (a *Arena[T]) GetPair(first, second ID) (*T, *T, error) {
	if first == second {
		return nil, nil, fmt.Errorf("%w: %s", ErrAlias, first)
	}
	e1 := a.lookup(first)
	if e1 == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrStale, first)
	}
	e2 := a.lookup(second)
	if e2 == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrStale, second)
	}
	return &e1.value, &e2.value, nil
}

// Remove frees the slot addressed by id and returns the value it held.
func (a *Arena[T]) Remove(id ID) (T, bool) {
	var zero T
	e := a.lookup(id)
	if e == nil {
		return zero, false
	}

	value := e.value
	e.value = zero
	e.occupied = false
	a.live--
	a.deallocs++

	// A slot whose generation cannot advance any further is never handed out
	// again; reusing it would let an ancient ID resolve to a fresh value.
	if e.generation == math.MaxUint32 {
		a.retired++
		return value, true
	}
	e.generation++
	a.free = append(a.free, id.slot)
	return value, true
}

// Dealloc frees the slot addressed by id. It returns false if id was already invalid.
func (a *Arena[T]) Dealloc(id ID) bool {
	_, ok := a.Remove(id)
	return ok
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int { return a.live }

// Cap returns the number of slots ever created.
func (a *Arena[T]) Cap() int { return len(a.entries) }

// Free returns the number of slots waiting for reuse.
func (a *Arena[T]) Free() int { return len(a.free) }

// Stats returns a snapshot of the arena's counters.
func (a *Arena[T]) Stats() Stats {
	return Stats{
		Live:     a.live,
		Slots:    len(a.entries),
		Free:     len(a.free),
		Retired:  a.retired,
		Allocs:   a.allocs,
		Deallocs: a.deallocs,
	}
}

// All yields every live value in slot order.
func (a *Arena[T]) All() iter.Seq2[ID, *T] {
	return func(yield func(ID, *T) bool) {
		for i, e := range a.entries {
			if !e.occupied {
				continue
			}
			if !yield(ID{slot: uint32(i), generation: e.generation}, &e.value) {
				return
			}
		}
	}
}
