package native

import (
	"sync/atomic"
	"time"

	"github.com/gogpu/rhi"
)

// Fence is a completion value on the device timeline. A new fence holds
// value 0 and is complete.
type Fence struct {
	resource
	value atomic.Uint64
}

// Completed reports whether the fence value has been reached.
func (f *Fence) Completed() bool {
	return f.dev.timeline.done(f.value.Load())
}

// Value returns the submission index the fence waits for.
func (f *Fence) Value() uint64 { return f.value.Load() }

// Semaphore orders queue work. It is signaled by a submission or an
// acquire and consumed by the next submission or present that waits on it.
type Semaphore struct {
	resource
	signaled atomic.Bool
	value    atomic.Uint64
}

// Signaled reports whether the semaphore holds an unconsumed signal.
func (s *Semaphore) Signaled() bool { return s.signaled.Load() }

func (s *Semaphore) signal(v uint64) {
	s.value.Store(v)
	s.signaled.Store(true)
}

func (s *Semaphore) consume() { s.signaled.Store(false) }

// CreateFence returns an unsignaled fence. It reports complete until
// SignalFence attaches it to a submission.
func (d *Device) CreateFence() (rhi.Fence, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	return &Fence{resource: resource{dev: d}}, nil
}

// DestroyFence releases f.
func (d *Device) DestroyFence(f rhi.Fence) error {
	fence, err := own[*Fence](d, f, "fence")
	if err != nil {
		return err
	}
	return d.release(fence, "fence", func() {})
}

// CreateSemaphore returns an unsignaled semaphore.
func (d *Device) CreateSemaphore() (rhi.Semaphore, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	return &Semaphore{resource: resource{dev: d}}, nil
}

// DestroySemaphore releases s.
func (d *Device) DestroySemaphore(s rhi.Semaphore) error {
	sem, err := own[*Semaphore](d, s, "semaphore")
	if err != nil {
		return err
	}
	return d.release(sem, "semaphore", func() {})
}

// WaitFence blocks until f completes. A non-positive timeout uses the
// device fence timeout.
func (d *Device) WaitFence(f rhi.Fence, timeout time.Duration) error {
	if err := d.ready(); err != nil {
		return err
	}
	fence, err := own[*Fence](d, f, "fence")
	if err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = d.opts.fenceTimeout
	}
	return d.timeline.wait(fence.value.Load(), timeout)
}

// SignalFence makes f complete once all work submitted so far completes.
func (d *Device) SignalFence(f rhi.Fence) error {
	if err := d.ready(); err != nil {
		return err
	}
	fence, err := own[*Fence](d, f, "fence")
	if err != nil {
		return err
	}
	fence.value.Store(d.timeline.lastIndex())
	return nil
}

// semaphores resolves a semaphore list, skipping nil entries.
func (d *Device) semaphores(list []rhi.Semaphore) ([]*Semaphore, error) {
	out := make([]*Semaphore, 0, len(list))
	for _, s := range list {
		if s == nil {
			continue
		}
		sem, err := own[*Semaphore](d, s, "semaphore")
		if err != nil {
			return nil, err
		}
		out = append(out, sem)
	}
	return out, nil
}

// requireSignaled fails unless every semaphore holds a signal.
func requireSignaled(sems []*Semaphore) error {
	for i, s := range sems {
		if !s.Signaled() {
			return preconditionf("%w: wait semaphore %d", rhi.ErrNotSignaled, i)
		}
	}
	return nil
}
