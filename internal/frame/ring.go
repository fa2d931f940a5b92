// Package frame tracks the swapchain slot ring: the current slot and the
// completion value each slot last signaled.
package frame

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotIncreasing is returned by Signal when a value does not exceed every
// value signaled before it.
var ErrNotIncreasing = errors.New("frame: slot value not increasing")

// Ring is a fixed ring of N slots.
//
// Ring is safe for concurrent use.
type Ring struct {
	mu     sync.Mutex
	values []uint64
	index  int
	max    uint64
}

// NewRing returns a ring of n slots, all at value 0, positioned at slot 0.
func NewRing(n int) *Ring {
	if n < 1 {
		panic(fmt.Sprintf("frame: ring size %d", n))
	}
	return &Ring{values: make([]uint64, n)}
}

// Len returns the number of slots.
func (r *Ring) Len() int { return len(r.values) }

// Index returns the current slot.
func (r *Ring) Index() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index
}

// Value returns the completion value of the current slot.
func (r *Ring) Value() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[r.index]
}

// SlotValue returns the completion value of slot i.
func (r *Ring) SlotValue(i int) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[i]
}

// MaxValue returns the highest value signaled on any slot.
func (r *Ring) MaxValue() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.max
}

// Signal stores v as the current slot's completion value. v must be
// strictly greater than every value signaled before.
func (r *Ring) Signal(v uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v <= r.max {
		return fmt.Errorf("%w: %d after %d", ErrNotIncreasing, v, r.max)
	}
	r.values[r.index] = v
	r.max = v
	return nil
}

// Advance moves to the next slot and returns it.
func (r *Ring) Advance() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index = (r.index + 1) % len(r.values)
	return r.index
}

// Reset positions the ring at slot index mod N. Slot values are kept so
// later signals still increase.
func (r *Ring) Reset(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.values)
	r.index = ((index % n) + n) % n
}
