package native

import (
	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/cmdlist"
	"github.com/gogpu/wgpu/hal"
)

// Submit replays the command buffers into HAL encoders and enqueues them
// as one queue submission. It returns once the work is enqueued.
//
// Every wait semaphore must hold a signal; the signals are consumed. Each
// signal semaphore is signaled at the new submission index.
func (d *Device) Submit(commandBuffers []rhi.CommandBuffer, waitSemaphores, signalSemaphores []rhi.Semaphore) error {
	if err := d.ready(); err != nil {
		return err
	}
	cbs := make([]*CommandBuffer, 0, len(commandBuffers))
	seen := make(map[*CommandBuffer]bool, len(commandBuffers))
	for i, c := range commandBuffers {
		cb, err := own[*CommandBuffer](d, c, "command buffer")
		if err != nil {
			return err
		}
		if seen[cb] {
			return preconditionf("%w: command buffer %d submitted twice", rhi.ErrInvalidArgument, i)
		}
		seen[cb] = true
		cbs = append(cbs, cb)
	}
	waits, err := d.semaphores(waitSemaphores)
	if err != nil {
		return err
	}
	signals, err := d.semaphores(signalSemaphores)
	if err != nil {
		return err
	}

	d.submitMu.Lock()
	defer d.submitMu.Unlock()
	for _, cb := range cbs {
		cb.mu.Lock()
		defer cb.mu.Unlock()
	}

	for i, cb := range cbs {
		if !cb.list.Executable() {
			return preconditionf("%w: command buffer %d is %v", rhi.ErrNotExecutable, i, cb.list.State())
		}
	}
	if err := requireSignaled(waits); err != nil {
		return err
	}
	refs := make(map[tracked]struct{})
	for _, cb := range cbs {
		cb.list.Refs(func(r any) {
			if t, ok := r.(tracked); ok {
				refs[t] = struct{}{}
			}
		})
	}
	for r := range refs {
		if r.base().destroyed.Load() {
			return preconditionf("%w: %T referenced by a command buffer", rhi.ErrDestroyed, r)
		}
	}
	states, err := d.simulateStates(cbs)
	if err != nil {
		return err
	}

	encoders, buffers, err := d.encode(cbs)
	if err != nil {
		return err
	}
	release := func() {
		for _, b := range buffers {
			d.device.FreeCommandBuffer(b)
		}
		for _, e := range encoders {
			e.Destroy()
		}
	}
	for r := range refs {
		if b, ok := r.(*Buffer); ok {
			if err := d.flush(b); err != nil {
				release()
				return err
			}
		}
	}
	index, err := d.timeline.submit(encoders, buffers)
	if err != nil {
		release()
		return fatalf("queue submit: %w", err)
	}

	for r := range refs {
		r.base().markUse(index)
	}
	for _, cb := range cbs {
		cb.markUse(index)
	}
	d.stateMu.Lock()
	for t, u := range states {
		t.state = u
	}
	d.stateMu.Unlock()
	for _, s := range waits {
		s.consume()
	}
	for _, s := range signals {
		s.signal(index)
	}
	return nil
}

// simulateStates checks each list's first transitions and pre-transition
// accesses against the device state, chaining through the lists in order,
// and returns the resulting states. A first usage of TextureUsageNone, or
// an unknown device state, accepts any state.
func (d *Device) simulateStates(cbs []*CommandBuffer) (map[*Texture]rhi.TextureUsage, error) {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	next := make(map[*Texture]rhi.TextureUsage)
	for i, cb := range cbs {
		var err error
		cb.list.Transitions(func(t rhi.Texture, tr cmdlist.Transition) {
			if err != nil {
				return
			}
			tex := t.(*Texture)
			cur, ok := next[tex]
			if !ok {
				cur = tex.state
			}
			if cur != rhi.TextureUsageNone && !cur.Has(tr.Needs) {
				err = preconditionf("%w: command buffer %d uses texture as %v, it is in %v",
					rhi.ErrStateMismatch, i, tr.Needs, cur)
				return
			}
			if !tr.Moved {
				return
			}
			if tr.First != rhi.TextureUsageNone && cur != rhi.TextureUsageNone && tr.First != cur {
				err = preconditionf("%w: command buffer %d moves texture from %v, it is in %v",
					rhi.ErrStateMismatch, i, tr.First, cur)
				return
			}
			next[tex] = tr.Last
		})
		if err != nil {
			return nil, err
		}
	}
	return next, nil
}

// encode replays every list into its own encoder. On failure nothing is
// left allocated.
func (d *Device) encode(cbs []*CommandBuffer) ([]hal.CommandEncoder, []hal.CommandBuffer, error) {
	encoders := make([]hal.CommandEncoder, 0, len(cbs))
	buffers := make([]hal.CommandBuffer, 0, len(cbs))
	fail := func(err error) ([]hal.CommandEncoder, []hal.CommandBuffer, error) {
		for _, b := range buffers {
			d.device.FreeCommandBuffer(b)
		}
		for _, e := range encoders {
			e.Destroy()
		}
		return nil, nil, err
	}
	for i, cb := range cbs {
		enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "rhi submit"})
		if err != nil {
			return fail(fatalf("create command encoder: %w", err))
		}
		encoders = append(encoders, enc)
		if err := enc.BeginEncoding("rhi command buffer"); err != nil {
			return fail(fatalf("begin encoding: %w", err))
		}
		sink := newHALSink(enc)
		if err := cb.list.Replay(sink); err != nil {
			if sink.rp != nil {
				sink.close()
			}
			enc.DiscardEncoding()
			return fail(fatalf("replay command buffer %d: %w", i, err))
		}
		raw, err := enc.EndEncoding()
		if err != nil {
			return fail(fatalf("end encoding: %w", err))
		}
		buffers = append(buffers, raw)
		d.logger().Debug("native: command buffer encoded",
			"index", i, "commands", cb.list.Len(), "passes", sink.opened)
	}
	return encoders, buffers, nil
}
