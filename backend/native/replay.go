package native

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/cmdlist"
	"github.com/gogpu/wgpu/hal"
)

// halSink replays a command list into a HAL command encoder.
//
// A HAL render pass is opened lazily, at the first draw or at the end of
// the render scope, so clears recorded before it become load ops. A clear
// recorded after a draw ends the HAL pass; the next draw reopens it and
// re-applies the bound state.
type halSink struct {
	enc hal.CommandEncoder
	rp  hal.RenderPassEncoder

	pass         *RenderPass
	clears       map[uint32]rhi.ClearValue
	depthCleared bool
	opened       int

	pipeline *RenderPipeline
	set      *DescriptorSet
	vertex   []*Buffer
	index    *Buffer
	viewport *cmdlist.Viewport
	scissor  *cmdlist.Scissor
}

var _ cmdlist.Sink = (*halSink)(nil)

func newHALSink(enc hal.CommandEncoder) *halSink {
	return &halSink{enc: enc, clears: make(map[uint32]rhi.ClearValue)}
}

func (s *halSink) BeginRender(pass rhi.RenderPass) error {
	s.pass = pass.(*RenderPass)
	clear(s.clears)
	s.depthCleared = false
	s.pipeline, s.set, s.vertex, s.index = nil, nil, nil, nil
	s.viewport, s.scissor = nil, nil
	return nil
}

func (s *halSink) EndRender() error {
	if s.rp == nil {
		s.open()
	}
	s.close()
	s.pass = nil
	return nil
}

func (s *halSink) SetViewport(v cmdlist.Viewport) error {
	s.viewport = &v
	if s.rp != nil {
		s.rp.SetViewport(v.X, v.Y, v.Width, v.Height, v.MinDepth, v.MaxDepth)
	}
	return nil
}

func (s *halSink) SetScissor(sc cmdlist.Scissor) error {
	s.scissor = &sc
	if s.rp != nil {
		s.rp.SetScissorRect(sc.X, sc.Y, sc.Width, sc.Height)
	}
	return nil
}

func (s *halSink) ClearColorAttachment(index uint32, value rhi.ClearValue) error {
	if s.rp != nil {
		s.close()
	}
	s.clears[index] = value
	return nil
}

func (s *halSink) BindPipeline(p rhi.RenderPipeline) error {
	s.pipeline = p.(*RenderPipeline)
	if s.rp != nil {
		s.rp.SetPipeline(s.pipeline.entry.raw)
	}
	return nil
}

func (s *halSink) BindDescriptorSet(_ rhi.RenderPipeline, set rhi.DescriptorSet) error {
	s.set = set.(*DescriptorSet)
	if s.rp != nil {
		s.rp.SetBindGroup(0, s.set.group, nil)
	}
	return nil
}

func (s *halSink) BindVertexBuffers(buffers []rhi.Buffer) error {
	s.vertex = s.vertex[:0]
	for _, b := range buffers {
		s.vertex = append(s.vertex, b.(*Buffer))
	}
	if s.rp != nil {
		s.applyVertex()
	}
	return nil
}

func (s *halSink) BindIndexBuffer(b rhi.Buffer) error {
	s.index = b.(*Buffer)
	if s.rp != nil {
		s.applyIndex()
	}
	return nil
}

func (s *halSink) Draw(count, first uint32) error {
	if s.rp == nil {
		s.open()
	}
	s.rp.Draw(count, 1, first, 0)
	return nil
}

func (s *halSink) DrawIndexed(count, first uint32) error {
	if s.rp == nil {
		s.open()
	}
	s.rp.DrawIndexed(count, 1, first, 0, 0)
	return nil
}

func (s *halSink) Transition(t rhi.Texture, before, after rhi.TextureUsage) error {
	tex := t.(*Texture)
	s.enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex.raw,
		Range: hal.TextureRange{
			Aspect:          gputypes.TextureAspectAll,
			MipLevelCount:   tex.desc.MipLevels,
			ArrayLayerCount: 1,
		},
		Usage: hal.TextureUsageTransition{
			OldUsage: stateUsage(toResourceStates(before)),
			NewUsage: stateUsage(toResourceStates(after)),
		},
	}})
	return nil
}

// open begins a HAL pass on the current scope. Pending clears become
// LoadOpClear; everything else loads. Depth is cleared by the first HAL
// pass of the scope only.
func (s *halSink) open() {
	p := s.pass
	colors := make([]hal.RenderPassColorAttachment, len(p.colors))
	for i, c := range p.colors {
		a := hal.RenderPassColorAttachment{
			View:    c.view,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}
		if len(p.msaa) > 0 {
			a.View = p.msaa[i].view
			a.ResolveTarget = c.view
		}
		if v, ok := s.clears[uint32(i)]; ok {
			a.LoadOp = gputypes.LoadOpClear
			a.ClearValue = toColor(v)
		}
		colors[i] = a
	}
	clear(s.clears)

	desc := &hal.RenderPassDescriptor{Label: "rhi render pass", ColorAttachments: colors}
	if ds := p.depth; ds != nil {
		att := &hal.RenderPassDepthStencilAttachment{
			View:         ds.view,
			DepthLoadOp:  gputypes.LoadOpLoad,
			DepthStoreOp: gputypes.StoreOpStore,
		}
		if !s.depthCleared {
			att.DepthLoadOp = gputypes.LoadOpClear
			att.DepthClearValue = ds.desc.ClearValue.Depth
		}
		if ds.desc.Format.HasStencil() {
			att.StencilLoadOp = att.DepthLoadOp
			att.StencilStoreOp = gputypes.StoreOpStore
			att.StencilClearValue = ds.desc.ClearValue.Stencil
		}
		desc.DepthStencilAttachment = att
		s.depthCleared = true
	}

	s.rp = s.enc.BeginRenderPass(desc)
	s.opened++
	s.reapply()
}

func (s *halSink) close() {
	s.rp.End()
	s.rp = nil
}

// reapply binds the recorded state on a freshly opened HAL pass.
func (s *halSink) reapply() {
	if s.pipeline != nil {
		s.rp.SetPipeline(s.pipeline.entry.raw)
	}
	if s.set != nil {
		s.rp.SetBindGroup(0, s.set.group, nil)
	}
	s.applyVertex()
	if s.index != nil {
		s.applyIndex()
	}
	if v := s.viewport; v != nil {
		s.rp.SetViewport(v.X, v.Y, v.Width, v.Height, v.MinDepth, v.MaxDepth)
	}
	if sc := s.scissor; sc != nil {
		s.rp.SetScissorRect(sc.X, sc.Y, sc.Width, sc.Height)
	}
}

func (s *halSink) applyVertex() {
	for slot, b := range s.vertex {
		s.rp.SetVertexBuffer(uint32(slot), b.raw, 0)
	}
}

func (s *halSink) applyIndex() {
	s.rp.SetIndexBuffer(s.index.raw, toIndexFormat(s.index.indexFormat()), 0)
}

func toColor(v rhi.ClearValue) gputypes.Color {
	return gputypes.Color{
		R: float64(v.Color[0]),
		G: float64(v.Color[1]),
		B: float64(v.Color[2]),
		A: float64(v.Color[3]),
	}
}
