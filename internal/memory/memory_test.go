package memory

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestNewTrackerBudget(t *testing.T) {
	tests := []struct {
		name   string
		budget uint64
		want   uint64
	}{
		{"zero selects default", 0, DefaultBudget},
		{"below minimum", MinBudget - 1, DefaultBudget},
		{"minimum", MinBudget, MinBudget},
		{"large", 4 << 30, 4 << 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewTracker(tt.budget).Stats().BudgetBytes; got != tt.want {
				t.Errorf("budget = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTrackerAllocFree(t *testing.T) {
	tr := NewTracker(MinBudget)

	a, err := tr.Alloc(HeapDefault, 1<<20)
	if err != nil {
		t.Fatalf("Alloc() = %v", err)
	}
	b, err := tr.Alloc(HeapUpload, 2<<20)
	if err != nil {
		t.Fatalf("Alloc() = %v", err)
	}

	s := tr.Stats()
	if s.UsedBytes != 3<<20 || s.Allocations != 2 {
		t.Errorf("stats after alloc = %+v", s)
	}
	if s.HeapBytes[HeapDefault] != 1<<20 || s.HeapBytes[HeapUpload] != 2<<20 {
		t.Errorf("heap bytes = %v", s.HeapBytes)
	}

	if err := tr.Free(a); err != nil {
		t.Fatalf("Free() = %v", err)
	}
	if err := tr.Free(a); !errors.Is(err, ErrDoubleFree) {
		t.Errorf("second Free() = %v, want ErrDoubleFree", err)
	}
	if err := tr.Free(b); err != nil {
		t.Fatalf("Free() = %v", err)
	}

	s = tr.Stats()
	if s.UsedBytes != 0 || s.Allocations != 0 {
		t.Errorf("stats after free = %+v", s)
	}
	if s.PeakBytes != 3<<20 {
		t.Errorf("peak = %d, want %d", s.PeakBytes, 3<<20)
	}
}

func TestTrackerBudgetExceeded(t *testing.T) {
	tr := NewTracker(MinBudget)
	if _, err := tr.Alloc(HeapDefault, MinBudget-10); err != nil {
		t.Fatalf("Alloc() = %v", err)
	}
	if _, err := tr.Alloc(HeapUpload, 11); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("Alloc() over budget = %v, want ErrBudgetExceeded", err)
	}
	if got := tr.Stats().Allocations; got != 1 {
		t.Errorf("failed alloc must not be counted, allocations = %d", got)
	}
	if _, err := tr.Alloc(HeapUpload, 10); err != nil {
		t.Errorf("Alloc() filling budget exactly = %v", err)
	}
}

func TestTrackerConcurrent(t *testing.T) {
	tr := NewTracker(MinBudget)
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				a, err := tr.Alloc(HeapDefault, 1024)
				if err != nil {
					t.Error(err)
					return
				}
				if err := tr.Free(a); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	if s := tr.Stats(); s.UsedBytes != 0 || s.Allocations != 0 {
		t.Errorf("stats after concurrent use = %+v", s)
	}
}

func TestStatsString(t *testing.T) {
	tr := NewTracker(MinBudget)
	if _, err := tr.Alloc(HeapDefault, 8<<20); err != nil {
		t.Fatal(err)
	}
	s := tr.Stats().String()
	for _, want := range []string{"50.0% used", "8/16 MB", "1 allocations"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}
