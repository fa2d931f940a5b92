package native

import (
	"sync"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/cmdlist"
)

// CommandPool allocates command buffers and tracks them so resources they
// reference cannot be destroyed.
type CommandPool struct {
	resource
	mu      sync.Mutex
	buffers map[*CommandBuffer]struct{}
}

// CommandBuffer is a recorded command list. It is replayed into a fresh
// HAL encoder at every submit, so it can be resubmitted unchanged.
type CommandBuffer struct {
	resource
	pool *CommandPool
	mu   sync.Mutex
	list *cmdlist.List
}

// Len returns the number of recorded commands.
func (c *CommandBuffer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Len()
}

// CreateCommandPool creates a pool to allocate command buffers from.
func (d *Device) CreateCommandPool() (rhi.CommandPool, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	p := &CommandPool{
		resource: resource{dev: d},
		buffers:  make(map[*CommandBuffer]struct{}),
	}
	d.poolMu.Lock()
	d.pools[p] = struct{}{}
	d.poolMu.Unlock()
	return p, nil
}

// DestroyCommandPool frees every buffer of the pool. It fails while any of
// them is still executing.
func (d *Device) DestroyCommandPool(pool rhi.CommandPool) error {
	p, err := own[*CommandPool](d, pool, "command pool")
	if err != nil {
		return err
	}
	if err := d.ready(); err != nil {
		return err
	}
	p.mu.Lock()
	for cb := range p.buffers {
		if !d.timeline.done(cb.lastUse.Load()) {
			p.mu.Unlock()
			return preconditionf("%w: command buffer of pool still executing", rhi.ErrResourceInUse)
		}
	}
	p.mu.Unlock()
	return d.release(p, "command pool", func() {
		d.poolMu.Lock()
		delete(d.pools, p)
		d.poolMu.Unlock()
		p.reset()
	})
}

// AllocateCommandBuffer returns an empty buffer in the initial state.
func (p *CommandPool) AllocateCommandBuffer() (rhi.CommandBuffer, error) {
	if err := p.dev.ready(); err != nil {
		return nil, err
	}
	if p.destroyed.Load() {
		return nil, preconditionf("%w: command pool", rhi.ErrDestroyed)
	}
	cb := &CommandBuffer{
		resource: resource{dev: p.dev},
		pool:     p,
		list:     cmdlist.New(),
	}
	p.mu.Lock()
	p.buffers[cb] = struct{}{}
	p.mu.Unlock()
	return cb, nil
}

// FreeCommandBuffer releases c. It fails while c is still executing.
func (p *CommandPool) FreeCommandBuffer(c rhi.CommandBuffer) error {
	cb, err := own[*CommandBuffer](p.dev, c, "command buffer")
	if err != nil {
		return err
	}
	if cb.pool != p {
		return preconditionf("%w: command buffer of another pool", rhi.ErrForeignResource)
	}
	return p.dev.release(cb, "command buffer", func() {
		p.mu.Lock()
		delete(p.buffers, cb)
		p.mu.Unlock()
		cb.mu.Lock()
		cb.list.Reset()
		cb.mu.Unlock()
	})
}

// references reports whether a live buffer of the pool has recorded r.
func (p *CommandPool) references(r tracked) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for cb := range p.buffers {
		cb.mu.Lock()
		ok := cb.list.References(r)
		cb.mu.Unlock()
		if ok {
			return true
		}
	}
	return false
}

// reset frees every buffer of the pool.
func (p *CommandPool) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for cb := range p.buffers {
		cb.destroyed.Store(true)
		cb.mu.Lock()
		cb.list.Reset()
		cb.mu.Unlock()
	}
	clear(p.buffers)
}

// record runs fn on the list of c with the buffer locked.
func (d *Device) record(c rhi.CommandBuffer, fn func(l *cmdlist.List) error) error {
	if err := d.ready(); err != nil {
		return err
	}
	cb, err := own[*CommandBuffer](d, c, "command buffer")
	if err != nil {
		return err
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return fn(cb.list)
}

// CmdBegin starts recording. Previous contents and their references are
// discarded.
func (d *Device) CmdBegin(cb rhi.CommandBuffer) error {
	return d.record(cb, func(l *cmdlist.List) error { return l.Begin() })
}

// CmdEnd finishes recording; the buffer becomes executable.
func (d *Device) CmdEnd(cb rhi.CommandBuffer) error {
	return d.record(cb, func(l *cmdlist.List) error { return l.End() })
}

// CmdBeginRender opens a render scope on pass. Its attachments must be
// in an attachment usage, or in unknown state.
func (d *Device) CmdBeginRender(cb rhi.CommandBuffer, pass rhi.RenderPass) error {
	p, err := own[*RenderPass](d, pass, "render pass")
	if err != nil {
		return err
	}
	return d.record(cb, func(l *cmdlist.List) error { return l.BeginRender(p) })
}

// CmdEndRender closes the render scope.
func (d *Device) CmdEndRender(cb rhi.CommandBuffer) error {
	return d.record(cb, func(l *cmdlist.List) error { return l.EndRender() })
}

// CmdSetViewport sets the viewport of the render scope.
func (d *Device) CmdSetViewport(cb rhi.CommandBuffer, x, y, width, height, depthMin, depthMax float32) error {
	return d.record(cb, func(l *cmdlist.List) error {
		return l.SetViewport(cmdlist.Viewport{
			X: x, Y: y, Width: width, Height: height,
			MinDepth: depthMin, MaxDepth: depthMax,
		})
	})
}

// CmdSetScissor sets the scissor rectangle of the render scope.
func (d *Device) CmdSetScissor(cb rhi.CommandBuffer, x, y, width, height uint32) error {
	return d.record(cb, func(l *cmdlist.List) error {
		return l.SetScissor(cmdlist.Scissor{X: x, Y: y, Width: width, Height: height})
	})
}

// CmdClearColorAttachment clears color attachment index of the open render
// scope. Clears before the first draw become the attachment load op.
func (d *Device) CmdClearColorAttachment(cb rhi.CommandBuffer, index uint32, clear rhi.ClearValue) error {
	return d.record(cb, func(l *cmdlist.List) error { return l.ClearColorAttachment(index, clear) })
}

// CmdBindRenderPipeline binds pipeline. It must be compatible with the
// pass of the open scope.
func (d *Device) CmdBindRenderPipeline(cb rhi.CommandBuffer, pipeline rhi.RenderPipeline) error {
	p, err := own[*RenderPipeline](d, pipeline, "render pipeline")
	if err != nil {
		return err
	}
	return d.record(cb, func(l *cmdlist.List) error {
		if pass, ok := l.Pass().(*RenderPass); ok && !p.pass.compatible(pass) {
			return preconditionf("%w: pipeline built for a %v x%d pass, scope is %v x%d",
				rhi.ErrInvalidArgument, p.pass.colorFormat, len(p.pass.colors), pass.colorFormat, len(pass.colors))
		}
		return l.BindPipeline(p)
	})
}

// CmdBindDescriptorSet binds set, whose layout must match the pipeline's.
func (d *Device) CmdBindDescriptorSet(cb rhi.CommandBuffer, pipeline rhi.RenderPipeline, set rhi.DescriptorSet) error {
	p, err := own[*RenderPipeline](d, pipeline, "render pipeline")
	if err != nil {
		return err
	}
	s, err := own[*DescriptorSet](d, set, "descriptor set")
	if err != nil {
		return err
	}
	if p.set == nil || p.set.layoutKey != s.layoutKey {
		return preconditionf("%w: descriptor set layout does not match the pipeline", rhi.ErrInvalidArgument)
	}
	return d.record(cb, func(l *cmdlist.List) error { return l.BindDescriptorSet(p, s) })
}

// CmdBindVertexBuffer binds buffer to vertex slot 0.
func (d *Device) CmdBindVertexBuffer(cb rhi.CommandBuffer, buffer rhi.Buffer) error {
	return d.CmdBindVertexBuffers(cb, []rhi.Buffer{buffer})
}

// CmdBindVertexBuffers binds buffers to vertex slots 0..n-1.
func (d *Device) CmdBindVertexBuffers(cb rhi.CommandBuffer, buffers []rhi.Buffer) error {
	bound := make([]rhi.Buffer, len(buffers))
	for i, b := range buffers {
		buf, err := own[*Buffer](d, b, "vertex buffer")
		if err != nil {
			return err
		}
		bound[i] = buf
	}
	return d.record(cb, func(l *cmdlist.List) error { return l.BindVertexBuffers(bound) })
}

// CmdBindIndexBuffer binds an index buffer; its stride selects 16 or 32
// bit indices.
func (d *Device) CmdBindIndexBuffer(cb rhi.CommandBuffer, buffer rhi.Buffer) error {
	b, err := own[*Buffer](d, buffer, "index buffer")
	if err != nil {
		return err
	}
	return d.record(cb, func(l *cmdlist.List) error { return l.BindIndexBuffer(b) })
}

// CmdDraw draws vertexCount vertices starting at vertexStart.
func (d *Device) CmdDraw(cb rhi.CommandBuffer, vertexCount, vertexStart uint32) error {
	return d.record(cb, func(l *cmdlist.List) error { return l.Draw(vertexCount, vertexStart) })
}

// CmdDrawIndexed draws indexCount indices starting at indexStart.
func (d *Device) CmdDrawIndexed(cb rhi.CommandBuffer, indexCount, indexStart uint32) error {
	return d.record(cb, func(l *cmdlist.List) error { return l.DrawIndexed(indexCount, indexStart) })
}

// CmdTransitionImage moves texture from before to after. A before of
// rhi.TextureUsageNone discards the contents and is valid from any state.
func (d *Device) CmdTransitionImage(cb rhi.CommandBuffer, texture rhi.Texture, before, after rhi.TextureUsage) error {
	t, err := own[*Texture](d, texture, "texture")
	if err != nil {
		return err
	}
	return d.record(cb, func(l *cmdlist.List) error { return l.Transition(t, before, after) })
}
