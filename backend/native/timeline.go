package native

import (
	"sync"
	"time"

	"github.com/gogpu/rhi"
	"github.com/gogpu/wgpu/hal"
)

// Poll back-off bounds for timeline waits.
const (
	pollMin = 50 * time.Microsecond
	pollMax = 2 * time.Millisecond
)

// submission is queue work whose HAL objects are released once it
// completes.
type submission struct {
	index    uint64
	encoders []hal.CommandEncoder
	buffers  []hal.CommandBuffer
}

// timeline serializes queue submissions and tracks their completion. All
// completion values in the backend are submission indices on this
// timeline.
type timeline struct {
	device hal.Device
	queue  hal.Queue

	mu       sync.Mutex
	last     uint64
	inflight []submission
}

func newTimeline(device hal.Device, queue hal.Queue) *timeline {
	return &timeline{device: device, queue: queue}
}

// submit enqueues buffers and takes ownership of their encoders. An empty
// submit still produces a new index.
func (t *timeline) submit(encoders []hal.CommandEncoder, buffers []hal.CommandBuffer) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	index, err := t.queue.Submit(buffers)
	if err != nil {
		return 0, err
	}
	t.last = index
	if len(encoders) > 0 || len(buffers) > 0 {
		t.inflight = append(t.inflight, submission{index: index, encoders: encoders, buffers: buffers})
	}
	t.retireLocked()
	return index, nil
}

// lastIndex returns the index of the most recent submission.
func (t *timeline) lastIndex() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// done reports whether the work at index has completed. Index 0 is always
// complete.
func (t *timeline) done(index uint64) bool {
	if index == 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return index <= t.queue.PollCompleted()
}

// wait blocks until index completes or timeout elapses.
func (t *timeline) wait(index uint64, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	backoff := pollMin
	for !t.done(index) {
		if time.Now().After(deadline) {
			return fatalf("%w: submission %d incomplete after %v", rhi.ErrTimeout, index, timeout)
		}
		time.Sleep(backoff)
		backoff = min(backoff*2, pollMax)
	}
	t.retire()
	return nil
}

func (t *timeline) retire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retireLocked()
}

func (t *timeline) retireLocked() {
	completed := t.queue.PollCompleted()
	n := 0
	for _, s := range t.inflight {
		if s.index > completed {
			t.inflight[n] = s
			n++
			continue
		}
		t.free(s)
	}
	clear(t.inflight[n:])
	t.inflight = t.inflight[:n]
}

// releaseAll frees every tracked submission. The caller must have drained
// the queue.
func (t *timeline) releaseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.inflight {
		t.free(s)
	}
	t.inflight = nil
}

// pending returns the number of submissions not yet retired.
func (t *timeline) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

func (t *timeline) free(s submission) {
	for _, b := range s.buffers {
		t.device.FreeCommandBuffer(b)
	}
	for _, e := range s.encoders {
		e.Destroy()
	}
}
