// Package handle implements generation-checked handle tables. Opaque numeric
// handles stand in for live objects at the host boundary; a stale or unknown
// handle fails lookup explicitly instead of aliasing unrelated memory.
package handle

import (
	"errors"
	"fmt"
	"sync"
)

// Handle is an opaque reference to an object held in a Table. The zero value
// is never a valid handle.
type Handle uint64

// Zero is the invalid handle returned by failed allocations and lookups.
const Zero Handle = 0

var (
	// ErrInvalidHandle is returned for the zero handle or an index the table
	// never issued.
	ErrInvalidHandle = errors.New("invalid handle")
	// ErrStaleHandle is returned when the slot was released and possibly
	// reused since the handle was issued.
	ErrStaleHandle = errors.New("stale handle")
)

type slot[T any] struct {
	gen  uint32
	live bool
	v    T
}

// Table is a growable arena of live objects addressed by generation-checked
// handles. It is safe for concurrent use.
type Table[T any] struct {
	mu    sync.Mutex
	slots []slot[T]
	free  []uint32
}

// NewTable returns an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{}
}

func pack(idx, gen uint32) Handle {
	// Index is stored one-based so the zero handle stays invalid.
	return Handle(uint64(gen)<<32 | uint64(idx+1))
}

func unpack(h Handle) (idx, gen uint32, ok bool) {
	low := uint32(h)
	if low == 0 {
		return 0, 0, false
	}
	return low - 1, uint32(h >> 32), true
}

// Put stores v and returns its handle.
func (t *Table[T]) Put(v T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		idx = uint32(len(t.slots))
		t.slots = append(t.slots, slot[T]{})
	}
	s := &t.slots[idx]
	s.live = true
	s.v = v
	return pack(idx, s.gen)
}

// Get resolves h to the stored object.
func (t *Table[T]) Get(h Handle) (T, error) {
	var zero T
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, gen, ok := unpack(h)
	if !ok || int(idx) >= len(t.slots) {
		return zero, fmt.Errorf("%w: %#x", ErrInvalidHandle, uint64(h))
	}
	s := &t.slots[idx]
	if !s.live || s.gen != gen {
		return zero, fmt.Errorf("%w: %#x", ErrStaleHandle, uint64(h))
	}
	return s.v, nil
}

// Delete releases the slot behind h. The slot's generation is bumped so any
// outstanding copy of h fails future lookups.
func (t *Table[T]) Delete(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, gen, ok := unpack(h)
	if !ok || int(idx) >= len(t.slots) {
		return fmt.Errorf("%w: %#x", ErrInvalidHandle, uint64(h))
	}
	s := &t.slots[idx]
	if !s.live || s.gen != gen {
		return fmt.Errorf("%w: %#x", ErrStaleHandle, uint64(h))
	}
	var zero T
	s.live = false
	s.gen++
	s.v = zero
	t.free = append(t.free, idx)
	return nil
}

// Len returns the number of live objects.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots) - len(t.free)
}
