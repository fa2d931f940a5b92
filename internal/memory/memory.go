// Package memory accounts device allocations per heap against a budget.
package memory

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrBudgetExceeded is returned when an allocation would exceed the budget.
	ErrBudgetExceeded = errors.New("memory: budget exceeded")

	// ErrDoubleFree is returned when an allocation is released twice.
	ErrDoubleFree = errors.New("memory: allocation already freed")
)

const (
	// DefaultBudget is the budget used when none is configured (1 GiB).
	DefaultBudget = 1 << 30

	// MinBudget is the smallest accepted budget (16 MiB).
	MinBudget = 16 << 20
)

// Heap is the memory pool an allocation lives in.
type Heap uint8

// Heaps.
const (
	// HeapDefault is device-local memory.
	HeapDefault Heap = iota
	// HeapUpload is host-visible memory, written by the CPU.
	HeapUpload

	heapCount
)

func (h Heap) String() string {
	switch h {
	case HeapDefault:
		return "default"
	case HeapUpload:
		return "upload"
	}
	return fmt.Sprintf("Heap(%d)", uint8(h))
}

// Stats is a snapshot of tracker usage.
type Stats struct {
	BudgetBytes    uint64
	UsedBytes      uint64
	AvailableBytes uint64
	PeakBytes      uint64
	Allocations    int

	// HeapBytes is UsedBytes split per heap, indexed by Heap.
	HeapBytes [heapCount]uint64

	// Utilization is UsedBytes / BudgetBytes in [0, 1].
	Utilization float64
}

func (s Stats) String() string {
	return fmt.Sprintf("Memory[%.1f%% used, %d/%d MB, %d allocations, peak %d MB]",
		s.Utilization*100,
		s.UsedBytes/(1024*1024),
		s.BudgetBytes/(1024*1024),
		s.Allocations,
		s.PeakBytes/(1024*1024))
}

// Allocation is a live accounting record returned by Tracker.Alloc.
type Allocation struct {
	heap  Heap
	size  uint64
	freed bool
}

// Heap returns the heap the allocation was charged to.
func (a *Allocation) Heap() Heap { return a.heap }

// Size returns the charged size in bytes.
func (a *Allocation) Size() uint64 { return a.size }

// Tracker charges allocations against a budget.
//
// Tracker is safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	budget uint64
	used   uint64
	peak   uint64
	count  int
	heaps  [heapCount]uint64
}

// NewTracker returns a tracker with the given budget in bytes. Budgets
// below MinBudget select DefaultBudget.
func NewTracker(budget uint64) *Tracker {
	if budget < MinBudget {
		budget = DefaultBudget
	}
	return &Tracker{budget: budget}
}

// Alloc charges size bytes to heap. It fails without side effects when
// the budget would be exceeded.
func (t *Tracker) Alloc(heap Heap, size uint64) (*Allocation, error) {
	if heap >= heapCount {
		return nil, fmt.Errorf("memory: unknown heap %v", heap)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if size > t.budget-t.used {
		return nil, fmt.Errorf("%w: %d bytes on %v heap, %d of %d used",
			ErrBudgetExceeded, size, heap, t.used, t.budget)
	}
	t.used += size
	t.heaps[heap] += size
	t.count++
	if t.used > t.peak {
		t.peak = t.used
	}
	return &Allocation{heap: heap, size: size}, nil
}

// Free releases a. Nil allocations are ignored.
func (t *Tracker) Free(a *Allocation) error {
	if a == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if a.freed {
		return ErrDoubleFree
	}
	a.freed = true
	t.used -= a.size
	t.heaps[a.heap] -= a.size
	t.count--
	return nil
}

// Stats returns a snapshot of current usage.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Stats{
		BudgetBytes:    t.budget,
		UsedBytes:      t.used,
		AvailableBytes: t.budget - t.used,
		PeakBytes:      t.peak,
		Allocations:    t.count,
		HeapBytes:      t.heaps,
		Utilization:    float64(t.used) / float64(t.budget),
	}
}
