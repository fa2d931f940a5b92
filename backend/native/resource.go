package native

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/rhi"
)

// resource is the bookkeeping shared by every wrapper the device hands out.
type resource struct {
	dev       *Device
	destroyed atomic.Bool

	// lastUse is the submission index of the last queue work that
	// referenced the resource.
	lastUse atomic.Uint64
}

func (r *resource) base() *resource { return r }

func (r *resource) markUse(index uint64) {
	for {
		cur := r.lastUse.Load()
		if index <= cur || r.lastUse.CompareAndSwap(cur, index) {
			return
		}
	}
}

// tracked is implemented by every wrapper through its embedded resource.
type tracked interface {
	base() *resource
}

// own resolves r to the concrete wrapper type T and checks that it was
// created by d and is still alive.
func own[T tracked](d *Device, r any, what string) (T, error) {
	var zero T
	if r == nil {
		return zero, fmt.Errorf("%w: %w: nil %s", rhi.ErrPrecondition, rhi.ErrInvalidArgument, what)
	}
	v, ok := r.(T)
	if !ok || v.base().dev != d {
		return zero, fmt.Errorf("%w: %w: %s %T", rhi.ErrPrecondition, rhi.ErrForeignResource, what, r)
	}
	if v.base().destroyed.Load() {
		return zero, fmt.Errorf("%w: %w: %s", rhi.ErrPrecondition, rhi.ErrDestroyed, what)
	}
	return v, nil
}

// inUse reports whether r is referenced by a recorded command buffer or by
// queue work that has not completed.
func (d *Device) inUse(r tracked) bool {
	if d.timeline != nil && !d.timeline.done(r.base().lastUse.Load()) {
		return true
	}
	d.poolMu.Lock()
	defer d.poolMu.Unlock()
	for p := range d.pools {
		if p.references(r) {
			return true
		}
	}
	return false
}

// release runs free exactly once for r, after checking that nothing still
// uses it.
func (d *Device) release(r tracked, what string, free func()) error {
	if err := d.ready(); err != nil {
		return err
	}
	if r.base().destroyed.Load() {
		return fmt.Errorf("%w: %w: %s", rhi.ErrPrecondition, rhi.ErrDestroyed, what)
	}
	if d.inUse(r) {
		return fmt.Errorf("%w: %w: %s", rhi.ErrPrecondition, rhi.ErrResourceInUse, what)
	}
	if !r.base().destroyed.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %w: %s", rhi.ErrPrecondition, rhi.ErrDestroyed, what)
	}
	free()
	return nil
}

func fatalf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{rhi.ErrFatal}, args...)...)
}

func preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{rhi.ErrPrecondition}, args...)...)
}
