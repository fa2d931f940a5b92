package native

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/memory"
	"github.com/gogpu/wgpu/hal"
)

// TextureFlags are the native creation capabilities of a texture.
type TextureFlags uint8

// Texture flags.
const (
	TextureFlagAllowRenderTarget TextureFlags = 1 << iota
	TextureFlagAllowDepthStencil
)

// Texture is a HAL texture and its default view.
//
// Owned textures release their HAL texture on destroy. Borrowed textures
// wrap an image owned elsewhere (a swapchain) and only release the view.
type Texture struct {
	resource
	desc   rhi.TextureDesc
	format gputypes.TextureFormat
	flags  TextureFlags
	owned  bool

	// swapchain and attachment textures are released by the device or
	// their render pass, never directly.
	swapchain  bool
	attachment bool

	raw   hal.Texture
	view  hal.TextureView
	alloc *memory.Allocation

	// state is the usage the queue leaves the texture in, guarded by
	// Device.stateMu. TextureUsageNone means unknown contents.
	state rhi.TextureUsage
}

// Texture implements rhi.Texture.
func (t *Texture) Type() rhi.TextureType        { return t.desc.Type }
func (t *Texture) Width() uint32                { return t.desc.Width }
func (t *Texture) Height() uint32               { return t.desc.Height }
func (t *Texture) Depth() uint32                { return t.desc.Depth }
func (t *Texture) MipLevels() uint32            { return t.desc.MipLevels }
func (t *Texture) Format() rhi.Format           { return t.desc.Format }
func (t *Texture) Usage() rhi.TextureUsage      { return t.desc.Usage }
func (t *Texture) SampleCount() rhi.SampleCount { return t.desc.SampleCount }
func (t *Texture) ClearValue() rhi.ClearValue   { return t.desc.ClearValue }
func (t *Texture) HostVisible() bool            { return t.desc.HostVisible }

// Owned reports whether destroying the texture releases its native image.
// Textures wrapping a backing image borrow it.
func (t *Texture) Owned() bool { return t.owned }

// Flags returns the creation flags derived from the usage.
func (t *Texture) Flags() TextureFlags { return t.flags }

// Raw returns the HAL texture.
func (t *Texture) Raw() hal.Texture { return t.raw }

// View returns the default view over every mip level.
func (t *Texture) View() hal.TextureView { return t.view }

// NativeFormat returns the HAL format the texture was created with.
func (t *Texture) NativeFormat() gputypes.TextureFormat { return t.format }

// State returns the device-tracked usage of the texture.
func (t *Texture) State() rhi.TextureUsage {
	t.dev.stateMu.Lock()
	defer t.dev.stateMu.Unlock()
	return t.state
}

// CreateTexture creates a texture from desc, filling defaults. A Backing
// wraps an existing HAL texture without taking ownership.
func (d *Device) CreateTexture(desc rhi.TextureDesc) (rhi.Texture, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	t, err := d.newTexture(desc)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTexture1D creates a one-dimensional texture.
func (d *Device) CreateTexture1D(width, mipLevels uint32, format rhi.Format, usage rhi.TextureUsage, hostVisible bool) (rhi.Texture, error) {
	return d.CreateTexture(rhi.TextureDesc{
		Type:        rhi.TextureType1D,
		Width:       width,
		Height:      1,
		Depth:       1,
		MipLevels:   mipLevels,
		Format:      format,
		Usage:       usage,
		SampleCount: rhi.SampleCount1X,
		HostVisible: hostVisible,
	})
}

// CreateTexture2D creates a 2D texture. MipLevels >= rhi.MipLevelsMax
// requests the full chain.
func (d *Device) CreateTexture2D(desc rhi.Texture2DDesc) (rhi.Texture, error) {
	mips := desc.MipLevels
	if mips >= rhi.MipLevelsMax {
		mips = rhi.ComputeMipLevels(desc.Width, desc.Height)
	}
	return d.CreateTexture(rhi.TextureDesc{
		Type:        rhi.TextureType2D,
		Width:       desc.Width,
		Height:      desc.Height,
		Depth:       1,
		MipLevels:   mips,
		Format:      desc.Format,
		Usage:       desc.Usage,
		SampleCount: desc.SampleCount,
		ClearValue:  desc.ClearValue,
		HostVisible: desc.HostVisible,
	})
}

// CreateTexture3D creates a volume texture with a single mip level.
func (d *Device) CreateTexture3D(width, height, depth uint32, format rhi.Format, usage rhi.TextureUsage, hostVisible bool) (rhi.Texture, error) {
	return d.CreateTexture(rhi.TextureDesc{
		Type:        rhi.TextureType3D,
		Width:       width,
		Height:      height,
		Depth:       depth,
		MipLevels:   1,
		Format:      format,
		Usage:       usage,
		SampleCount: rhi.SampleCount1X,
		HostVisible: hostVisible,
	})
}

// normalizeTextureDesc fills defaults and rejects descriptors no backend
// can create.
func normalizeTextureDesc(desc rhi.TextureDesc) (rhi.TextureDesc, error) {
	if desc.Format == rhi.FormatUndefined {
		return desc, preconditionf("%w: texture format", rhi.ErrUndefinedFormat)
	}
	if toFormat(desc.Format) == gputypes.TextureFormatUndefined {
		return desc, preconditionf("%w: texture format %v", rhi.ErrUnsupportedFormat, desc.Format)
	}
	if desc.Type > rhi.TextureType3D {
		return desc, preconditionf("%w: texture type %v", rhi.ErrInvalidArgument, desc.Type)
	}
	if !desc.SampleCount.Valid() {
		return desc, preconditionf("%w: sample count %v", rhi.ErrInvalidArgument, desc.SampleCount)
	}
	switch desc.Type {
	case rhi.TextureType1D:
		desc.Height, desc.Depth = 1, 1
	case rhi.TextureType2D:
		desc.Depth = 1
	}
	if desc.Width == 0 || desc.Height == 0 || desc.Depth == 0 {
		return desc, preconditionf("%w: zero texture extent %dx%dx%d",
			rhi.ErrInvalidArgument, desc.Width, desc.Height, desc.Depth)
	}
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	if full := rhi.ComputeMipLevels(max(desc.Width, desc.Depth), desc.Height); desc.MipLevels > full {
		return desc, preconditionf("%w: %d mip levels for %dx%d", rhi.ErrInvalidArgument, desc.MipLevels, desc.Width, desc.Height)
	}
	if desc.SampleCount > rhi.SampleCount1X && (desc.Type != rhi.TextureType2D || desc.MipLevels != 1) {
		return desc, preconditionf("%w: multisampled %v texture with %d mips",
			rhi.ErrInvalidArgument, desc.Type, desc.MipLevels)
	}
	return desc, nil
}

// textureHALUsage returns the HAL usage for a texture. Single-sampled color
// textures can always be written through the queue.
func textureHALUsage(desc rhi.TextureDesc) gputypes.TextureUsage {
	u := toTextureUsage(desc.Usage)
	if !desc.Format.IsDepthStencil() && desc.SampleCount <= rhi.SampleCount1X {
		u |= gputypes.TextureUsageCopyDst
	}
	if u == 0 {
		u = gputypes.TextureUsageTextureBinding
	}
	return u
}

func textureFlags(u rhi.TextureUsage) TextureFlags {
	var f TextureFlags
	if u.Has(rhi.TextureUsageColorAttachment) {
		f |= TextureFlagAllowRenderTarget
	}
	if u.Has(rhi.TextureUsageDepthStencilAttachment) {
		f |= TextureFlagAllowDepthStencil
	}
	return f
}

// textureBytes returns the size of every mip of desc.
func textureBytes(desc rhi.TextureDesc) uint64 {
	var total uint64
	w, h, z := uint64(desc.Width), uint64(desc.Height), uint64(desc.Depth)
	for range desc.MipLevels {
		total += w * h * z
		w, h = max(w/2, 1), max(h/2, 1)
		if desc.Type == rhi.TextureType3D {
			z = max(z/2, 1)
		}
	}
	return total * uint64(desc.Format.BytesPerPixel()) * uint64(toSampleCount(desc.SampleCount))
}

func (d *Device) newTexture(desc rhi.TextureDesc) (*Texture, error) {
	desc, err := normalizeTextureDesc(desc)
	if err != nil {
		return nil, err
	}
	t := &Texture{
		resource: resource{dev: d},
		desc:     desc,
		format:   toFormat(desc.Format),
		flags:    textureFlags(desc.Usage),
	}
	t.desc.Backing = nil

	if desc.Backing != nil {
		raw, ok := desc.Backing.(hal.Texture)
		if !ok {
			return nil, preconditionf("%w: texture backing %T is not a hal.Texture", rhi.ErrInvalidArgument, desc.Backing)
		}
		if err := t.bind(raw); err != nil {
			return nil, err
		}
		return t, nil
	}

	heap := memory.HeapDefault
	if desc.HostVisible {
		heap = memory.HeapUpload
	}
	size := textureBytes(desc)
	t.alloc, err = d.mem.Alloc(heap, size)
	if err != nil {
		return nil, fatalf("%w: %v texture of %d bytes: %w", rhi.ErrOutOfMemory, desc.Format, size, err)
	}
	t.raw, err = d.device.CreateTexture(&hal.TextureDescriptor{
		Label: "rhi " + desc.Type.String() + " texture",
		Size: hal.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: desc.Depth,
		},
		MipLevelCount: desc.MipLevels,
		SampleCount:   toSampleCount(desc.SampleCount),
		Dimension:     toTextureDimension(desc.Type),
		Format:        t.format,
		Usage:         textureHALUsage(desc),
	})
	if err != nil {
		_ = d.mem.Free(t.alloc)
		return nil, fatalf("create %v texture: %w", desc.Format, err)
	}
	t.owned = true
	if err := t.createView(); err != nil {
		d.device.DestroyTexture(t.raw)
		_ = d.mem.Free(t.alloc)
		return nil, err
	}
	d.logger().Debug("native: texture created",
		"type", desc.Type, "width", desc.Width, "height", desc.Height, "depth", desc.Depth,
		"mips", desc.MipLevels, "format", desc.Format, "samples", desc.SampleCount,
		"bytes", size, "heap", heap)
	return t, nil
}

func (t *Texture) createView() error {
	view, err := t.dev.device.CreateTextureView(t.raw, &hal.TextureViewDescriptor{
		Label:           "rhi default view",
		Format:          t.format,
		Dimension:       toViewDimension(t.desc.Type),
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   t.desc.MipLevels,
		ArrayLayerCount: 1,
	})
	if err != nil {
		return fatalf("create %v texture view: %w", t.desc.Format, err)
	}
	t.view = view
	return nil
}

// bind points a borrowed texture at img, recreating its view. The tracked
// state becomes unknown.
func (t *Texture) bind(img hal.Texture) error {
	if t.view != nil {
		t.dev.device.DestroyTextureView(t.view)
		t.view = nil
	}
	t.raw = img
	if err := t.createView(); err != nil {
		return err
	}
	t.dev.stateMu.Lock()
	t.state = rhi.TextureUsageNone
	t.dev.stateMu.Unlock()
	return nil
}

// DestroyTexture releases tex once no pending submission uses it.
// Swapchain and render pass attachments cannot be destroyed directly.
func (d *Device) DestroyTexture(tex rhi.Texture) error {
	t, err := own[*Texture](d, tex, "texture")
	if err != nil {
		return err
	}
	switch {
	case t.swapchain:
		return preconditionf("%w: swapchain textures belong to the device", rhi.ErrInvalidArgument)
	case t.attachment:
		return preconditionf("%w: render pass attachments are released with their pass", rhi.ErrInvalidArgument)
	}
	return d.release(t, "texture", func() { d.freeTexture(t) })
}

func (d *Device) freeTexture(t *Texture) {
	if t.view != nil {
		d.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.owned {
		d.device.DestroyTexture(t.raw)
		_ = d.mem.Free(t.alloc)
	}
	t.raw = nil
}

// WriteTexture uploads one full mip level of a color texture. data must
// hold exactly the tightly packed texels of that level.
func (d *Device) WriteTexture(tex rhi.Texture, mipLevel uint32, data []byte) error {
	if err := d.ready(); err != nil {
		return err
	}
	t, err := own[*Texture](d, tex, "texture")
	if err != nil {
		return err
	}
	if t.desc.Format.IsDepthStencil() || t.desc.SampleCount > rhi.SampleCount1X {
		return preconditionf("%w: cannot upload to %v texture with %v samples",
			rhi.ErrUnsupportedFormat, t.desc.Format, t.desc.SampleCount)
	}
	if mipLevel >= t.desc.MipLevels {
		return preconditionf("%w: mip level %d of %d", rhi.ErrInvalidArgument, mipLevel, t.desc.MipLevels)
	}
	w := max(t.desc.Width>>mipLevel, 1)
	h := max(t.desc.Height>>mipLevel, 1)
	z := t.desc.Depth
	if t.desc.Type == rhi.TextureType3D {
		z = max(z>>mipLevel, 1)
	}
	bpp := t.desc.Format.BytesPerPixel()
	if want := uint64(w) * uint64(h) * uint64(z) * uint64(bpp); uint64(len(data)) != want {
		return preconditionf("%w: mip %d needs %d bytes, got %d", rhi.ErrInvalidArgument, mipLevel, want, len(data))
	}
	err = d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.raw, MipLevel: mipLevel, Aspect: gputypes.TextureAspectAll},
		data,
		&hal.ImageDataLayout{BytesPerRow: w * bpp, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: z},
	)
	if err != nil {
		return fatalf("write texture: %w", err)
	}
	return nil
}
