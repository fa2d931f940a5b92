package native

import (
	"github.com/gogpu/rhi"
)

// RenderPass is an immutable set of attachments. Attachments the pass
// allocated are released with it.
type RenderPass struct {
	resource
	width       uint32
	height      uint32
	colorFormat rhi.Format
	depthFormat rhi.Format
	samples     rhi.SampleCount

	colors    []*Texture
	msaa      []*Texture
	depth     *Texture
	owned     []*Texture
	swapchain bool
}

// RenderPass implements rhi.RenderPass.
func (p *RenderPass) Width() uint32                  { return p.width }
func (p *RenderPass) Height() uint32                 { return p.height }
func (p *RenderPass) ColorAttachmentCount() int      { return len(p.colors) }
func (p *RenderPass) ColorFormat() rhi.Format        { return p.colorFormat }
func (p *RenderPass) DepthStencilFormat() rhi.Format { return p.depthFormat }
func (p *RenderPass) SampleCount() rhi.SampleCount   { return p.samples }

// ColorAttachments returns the single-sample color targets. With
// multisampling they receive the resolve.
func (p *RenderPass) ColorAttachments() []rhi.Texture { return textures(p.colors) }

// ColorMultisampleAttachments returns the multisample color targets, or nil.
func (p *RenderPass) ColorMultisampleAttachments() []rhi.Texture { return textures(p.msaa) }

// DepthStencilAttachment returns the depth target, or nil.
func (p *RenderPass) DepthStencilAttachment() rhi.Texture {
	if p.depth == nil {
		return nil
	}
	return p.depth
}

func textures(ts []*Texture) []rhi.Texture {
	if len(ts) == 0 {
		return nil
	}
	out := make([]rhi.Texture, len(ts))
	for i, t := range ts {
		out[i] = t
	}
	return out
}

// CreateRenderPass creates a pass from desc. Attachments not supplied are
// allocated and owned by the pass.
func (d *Device) CreateRenderPass(desc rhi.RenderPassDesc) (rhi.RenderPass, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	p, err := d.newRenderPass(desc, false)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// newRenderPass resolves supplied attachments and allocates the missing
// ones. On error every attachment it allocated is released.
func (d *Device) newRenderPass(desc rhi.RenderPassDesc, swapchain bool) (*RenderPass, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, preconditionf("%w: zero render pass extent %dx%d", rhi.ErrInvalidArgument, desc.Width, desc.Height)
	}
	if !desc.SampleCount.Valid() {
		return nil, preconditionf("%w: sample count %v", rhi.ErrInvalidArgument, desc.SampleCount)
	}
	count := desc.ColorAttachmentCount
	if n := len(desc.ColorAttachments); n > 0 {
		if count != 0 && count != n {
			return nil, preconditionf("%w: %d color attachments supplied for count %d", rhi.ErrInvalidArgument, n, count)
		}
		count = n
	}
	if count < 0 {
		return nil, preconditionf("%w: color attachment count %d", rhi.ErrInvalidArgument, count)
	}

	p := &RenderPass{
		resource:    resource{dev: d},
		width:       desc.Width,
		height:      desc.Height,
		colorFormat: desc.ColorFormat,
		depthFormat: desc.DepthStencilFormat,
		samples:     desc.SampleCount,
		swapchain:   swapchain,
	}
	if err := d.resolveAttachments(p, desc, count); err != nil {
		for _, t := range p.owned {
			d.freeTexture(t)
		}
		return nil, err
	}
	return p, nil
}

func (d *Device) resolveAttachments(p *RenderPass, desc rhi.RenderPassDesc, count int) error {
	if err := d.resolveColors(p, desc, count); err != nil {
		return err
	}
	return d.resolveDepth(p, desc)
}

func (d *Device) resolveColors(p *RenderPass, desc rhi.RenderPassDesc, count int) error {
	for i, a := range desc.ColorAttachments {
		t, err := own[*Texture](d, a, "color attachment")
		if err != nil {
			return err
		}
		if p.colorFormat == rhi.FormatUndefined {
			p.colorFormat = t.desc.Format
		}
		if t.desc.Format != p.colorFormat {
			return preconditionf("%w: color attachment %d format %v, pass format %v",
				rhi.ErrInvalidArgument, i, t.desc.Format, p.colorFormat)
		}
		p.colors = append(p.colors, t)
	}
	if count > 0 && (!p.colorFormat.Valid() || p.colorFormat.IsDepthStencil()) {
		return preconditionf("%w: color format %v", rhi.ErrUndefinedFormat, p.colorFormat)
	}
	for len(p.colors) < count {
		t, err := d.passTexture(p, p.colorFormat, rhi.SampleCount1X,
			rhi.TextureUsageColorAttachment|rhi.TextureUsageSampledImage|rhi.TextureUsageTransferSrc,
			rhi.ClearColor(0, 0, 0, 1))
		if err != nil {
			return err
		}
		p.colors = append(p.colors, t)
	}

	if n := len(desc.ColorMultisampleAttachments); n > 0 {
		if n != count {
			return preconditionf("%w: %d multisample attachments for %d color attachments", rhi.ErrInvalidArgument, n, count)
		}
		for _, a := range desc.ColorMultisampleAttachments {
			t, err := own[*Texture](d, a, "multisample attachment")
			if err != nil {
				return err
			}
			p.msaa = append(p.msaa, t)
		}
		p.samples = p.msaa[0].desc.SampleCount
		return nil
	}
	if p.samples > rhi.SampleCount1X {
		for range count {
			t, err := d.passTexture(p, p.colorFormat, p.samples,
				rhi.TextureUsageColorAttachment|rhi.TextureUsageResolveSrc, rhi.ClearColor(0, 0, 0, 1))
			if err != nil {
				return err
			}
			p.msaa = append(p.msaa, t)
		}
	}
	return nil
}

func (d *Device) resolveDepth(p *RenderPass, desc rhi.RenderPassDesc) error {
	if desc.DepthStencilAttachment != nil {
		t, err := own[*Texture](d, desc.DepthStencilAttachment, "depth-stencil attachment")
		if err != nil {
			return err
		}
		if !t.desc.Format.IsDepthStencil() {
			return preconditionf("%w: depth-stencil attachment format %v", rhi.ErrInvalidArgument, t.desc.Format)
		}
		p.depth = t
		p.depthFormat = t.desc.Format
		return nil
	}
	switch {
	case p.depthFormat == rhi.FormatUndefined:
		return nil
	case !p.depthFormat.IsDepthStencil():
		return preconditionf("%w: depth-stencil format %v", rhi.ErrInvalidArgument, p.depthFormat)
	}
	t, err := d.passTexture(p, p.depthFormat, p.samples,
		rhi.TextureUsageDepthStencilAttachment, rhi.ClearDepthStencil(1, 0))
	if err != nil {
		return err
	}
	p.depth = t
	return nil
}

// passTexture allocates an attachment owned by p.
func (d *Device) passTexture(p *RenderPass, format rhi.Format, samples rhi.SampleCount, usage rhi.TextureUsage, clear rhi.ClearValue) (*Texture, error) {
	t, err := d.newTexture(rhi.TextureDesc{
		Type:        rhi.TextureType2D,
		Width:       p.width,
		Height:      p.height,
		Depth:       1,
		MipLevels:   1,
		Format:      format,
		Usage:       usage,
		SampleCount: samples,
		ClearValue:  clear,
	})
	if err != nil {
		return nil, err
	}
	t.attachment = true
	t.swapchain = p.swapchain
	p.owned = append(p.owned, t)
	return t, nil
}

// DestroyRenderPass releases the pass and the attachments it allocated.
// Caller-supplied attachments are untouched.
func (d *Device) DestroyRenderPass(rp rhi.RenderPass) error {
	p, err := own[*RenderPass](d, rp, "render pass")
	if err != nil {
		return err
	}
	if p.swapchain {
		return preconditionf("%w: swapchain render passes belong to the device", rhi.ErrInvalidArgument)
	}
	for _, t := range p.owned {
		if d.inUse(t) {
			return preconditionf("%w: render pass attachment", rhi.ErrResourceInUse)
		}
	}
	return d.release(p, "render pass", func() { d.freePass(p) })
}

func (d *Device) freePass(p *RenderPass) {
	for _, t := range p.owned {
		if t.destroyed.CompareAndSwap(false, true) {
			d.freeTexture(t)
		}
	}
}

// compatible reports whether pipelines built for p can render into q.
func (p *RenderPass) compatible(q *RenderPass) bool {
	return p == q || (p.colorFormat == q.colorFormat &&
		len(p.colors) == len(q.colors) &&
		p.depthFormat == q.depthFormat &&
		p.samples == q.samples)
}
