package native

import (
	"image"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi"
	"github.com/gogpu/wgpu/hal"
)

// slot is one swapchain image with the render pass drawing into it. The
// color texture borrows the presenter's image; the pass owns the
// multisample and depth attachments.
type slot struct {
	color *Texture
	pass  *RenderPass
}

// swapchainUsage is the usage of every presentation image.
const swapchainUsage = rhi.TextureUsageColorAttachment | rhi.TextureUsageTransferSrc

func (d *Device) buildSlots() error {
	n := d.presenter.imageCount()
	slots := make([]*slot, 0, n)
	for i := range n {
		s, err := d.newSlot(i)
		if err != nil {
			for _, s := range slots {
				d.freeSlot(s)
			}
			return err
		}
		slots = append(slots, s)
	}
	d.slots = slots
	return nil
}

func (d *Device) newSlot(i int) (*slot, error) {
	width, height := d.width.Load(), d.height.Load()
	format := d.presenter.format()
	color := &Texture{
		resource: resource{dev: d},
		desc: rhi.TextureDesc{
			Type:        rhi.TextureType2D,
			Width:       width,
			Height:      height,
			Depth:       1,
			MipLevels:   1,
			Format:      format,
			Usage:       swapchainUsage,
			SampleCount: rhi.SampleCount1X,
			ClearValue:  rhi.ClearColor(0, 0, 0, 1),
		},
		format:    toFormat(format),
		flags:     textureFlags(swapchainUsage),
		swapchain: true,
	}
	if img := d.presenter.image(i); img != nil {
		if err := color.bind(img); err != nil {
			return nil, err
		}
	}
	pass, err := d.newRenderPass(rhi.RenderPassDesc{
		Width:              width,
		Height:             height,
		ColorFormat:        format,
		DepthStencilFormat: d.cfg.DepthStencilFormat,
		SampleCount:        d.cfg.Multisampling,
		ColorAttachments:   []rhi.Texture{color},
	}, true)
	if err != nil {
		d.freeTexture(color)
		return nil, err
	}
	return &slot{color: color, pass: pass}, nil
}

func (d *Device) freeSlot(s *slot) {
	d.freePass(s.pass)
	s.pass.destroyed.Store(true)
	d.freeTexture(s.color)
	s.color.destroyed.Store(true)
}

func (d *Device) destroySlots() {
	for _, s := range d.slots {
		d.freeSlot(s)
	}
	d.slots = nil
	d.acquired = false
}

// AcquireNextSwapchainImage waits until the current slot's previous work
// completed, binds its presentation image and returns its render pass.
// waitFence is set to the slot value, which is complete on return;
// signalSemaphore is signaled. Acquiring again before Present returns the
// same pass.
func (d *Device) AcquireNextSwapchainImage(waitFence rhi.Fence, signalSemaphore rhi.Semaphore) (rhi.RenderPass, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	var fence *Fence
	if waitFence != nil {
		f, err := own[*Fence](d, waitFence, "fence")
		if err != nil {
			return nil, err
		}
		fence = f
	}
	var sem *Semaphore
	if signalSemaphore != nil {
		s, err := own[*Semaphore](d, signalSemaphore, "semaphore")
		if err != nil {
			return nil, err
		}
		sem = s
	}

	d.swapMu.Lock()
	defer d.swapMu.Unlock()
	if d.resizing.Load() {
		return nil, preconditionf("%w", rhi.ErrResizeInProgress)
	}
	if len(d.slots) == 0 {
		return nil, fatalf("%w: swapchain lost", ErrNoSurface)
	}

	i := d.ring.Index()
	value := d.ring.SlotValue(i)
	if err := d.timeline.wait(value, d.opts.fenceTimeout); err != nil {
		return nil, err
	}
	s := d.slots[i]
	img, err := d.presenter.acquire(i)
	if err != nil {
		return nil, err
	}
	if img != s.color.raw {
		if err := s.color.bind(img); err != nil {
			return nil, err
		}
	}
	if fence != nil {
		fence.value.Store(value)
	}
	if sem != nil {
		sem.signal(value)
	}
	d.acquired = true
	return s.pass, nil
}

// Present shows the acquired image, signals its slot with a new
// submission index and advances to the next slot.
func (d *Device) Present(waitSemaphores []rhi.Semaphore) error {
	if err := d.ready(); err != nil {
		return err
	}
	waits, err := d.semaphores(waitSemaphores)
	if err != nil {
		return err
	}

	d.swapMu.Lock()
	defer d.swapMu.Unlock()
	if !d.acquired {
		return preconditionf("%w: present without an acquired image", rhi.ErrInvalidArgument)
	}
	if err := requireSignaled(waits); err != nil {
		return err
	}
	i := d.ring.Index()
	if err := d.presenter.present(i); err != nil {
		return err
	}
	d.acquired = false
	for _, s := range waits {
		s.consume()
	}

	value, err := d.timeline.submit(nil, nil)
	if err != nil {
		return fatalf("signal slot %d: %w", i, err)
	}
	if err := d.ring.Signal(value); err != nil {
		return fatalf("signal slot %d: %w", i, err)
	}
	d.ring.Advance()
	return nil
}

// CurrentImageIndex returns the slot the next acquire uses.
func (d *Device) CurrentImageIndex() int {
	if d.ring == nil {
		return 0
	}
	return d.ring.Index()
}

// ImageCount returns the number of swapchain slots.
func (d *Device) ImageCount() int {
	if d.ring == nil {
		return 0
	}
	return d.ring.Len()
}

// Resize recreates the swapchain images at the new size after draining
// the queue. Before Initialize, and for unchanged dimensions, it does
// nothing. If recreation fails the swapchain is lost: the size reads zero
// and acquire fails until a later Resize succeeds.
func (d *Device) Resize(width, height uint32) error {
	if !d.initialized.Load() {
		return nil
	}
	if width == d.width.Load() && height == d.height.Load() {
		return nil
	}
	if width == 0 || height == 0 {
		return preconditionf("%w: zero swapchain extent %dx%d", rhi.ErrInvalidArgument, width, height)
	}
	if !d.resizing.CompareAndSwap(false, true) {
		return preconditionf("%w", rhi.ErrResizeInProgress)
	}
	defer d.resizing.Store(false)

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized.Load() {
		return nil
	}
	d.swapMu.Lock()
	defer d.swapMu.Unlock()

	if err := d.drain(); err != nil {
		return err
	}
	d.destroySlots()
	lost := func(err error) error {
		d.width.Store(0)
		d.height.Store(0)
		d.logger().Warn("native: swapchain lost", "width", width, "height", height, "err", err)
		return err
	}
	if err := d.presenter.configure(width, height); err != nil {
		return lost(err)
	}
	d.width.Store(width)
	d.height.Store(height)
	if err := d.buildSlots(); err != nil {
		return lost(err)
	}
	d.ring.Reset(d.presenter.currentIndex())
	d.logger().Info("native: swapchain resized", "width", width, "height", height, "images", len(d.slots))
	return nil
}

// Capture reads swapchain image slot back into an RGBA image. It needs
// offscreen presentation and an 8-bit RGBA or BGRA color format.
func (d *Device) Capture(slot int) (*image.RGBA, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	d.swapMu.Lock()
	defer d.swapMu.Unlock()
	if _, ok := d.presenter.(*offscreenPresenter); !ok {
		return nil, preconditionf("%w", ErrNotHeadless)
	}
	if slot < 0 || slot >= len(d.slots) {
		return nil, preconditionf("%w: slot %d of %d", rhi.ErrInvalidArgument, slot, len(d.slots))
	}
	t := d.slots[slot].color
	format := t.desc.Format
	if format != rhi.FormatR8G8B8A8Unorm && format != rhi.FormatB8G8R8A8Unorm {
		return nil, preconditionf("%w: capture of %v", rhi.ErrUnsupportedFormat, format)
	}
	if err := d.timeline.wait(d.timeline.lastIndex(), d.opts.fenceTimeout); err != nil {
		return nil, err
	}
	return d.readback(t)
}

// readback copies t into a staging buffer with 256-byte aligned rows and
// maps it.
func (d *Device) readback(t *Texture) (*image.RGBA, error) {
	w, h := t.desc.Width, t.desc.Height
	row := (w*4 + 255) &^ 255
	size := uint64(row) * uint64(h)
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "rhi capture",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fatalf("create capture buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "rhi capture"})
	if err != nil {
		return nil, fatalf("create command encoder: %w", err)
	}
	if err := enc.BeginEncoding("rhi capture"); err != nil {
		enc.Destroy()
		return nil, fatalf("begin encoding: %w", err)
	}
	d.stateMu.Lock()
	old := stateUsage(toResourceStates(t.state))
	d.stateMu.Unlock()
	barrier := func(from, to gputypes.TextureUsage) {
		enc.TransitionTextures([]hal.TextureBarrier{{
			Texture: t.raw,
			Range:   hal.TextureRange{Aspect: gputypes.TextureAspectAll, MipLevelCount: 1, ArrayLayerCount: 1},
			Usage:   hal.TextureUsageTransition{OldUsage: from, NewUsage: to},
		}})
	}
	barrier(old, gputypes.TextureUsageCopySrc)
	enc.CopyTextureToBuffer(t.raw, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{BytesPerRow: row, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: t.raw, Aspect: gputypes.TextureAspectAll},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	if old != 0 && old != gputypes.TextureUsageCopySrc {
		barrier(gputypes.TextureUsageCopySrc, old)
	}
	raw, err := enc.EndEncoding()
	if err != nil {
		enc.Destroy()
		return nil, fatalf("end encoding: %w", err)
	}
	index, err := d.timeline.submit([]hal.CommandEncoder{enc}, []hal.CommandBuffer{raw})
	if err != nil {
		d.device.FreeCommandBuffer(raw)
		enc.Destroy()
		return nil, fatalf("submit capture: %w", err)
	}
	if err := d.timeline.wait(index, d.opts.fenceTimeout); err != nil {
		return nil, err
	}

	m, err := d.device.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, fatalf("map capture buffer: %w", err)
	}
	defer func() { _ = d.device.UnmapBuffer(staging) }()
	if m.Ptr == nil {
		return nil, fatalf("map capture buffer: nil mapping")
	}
	src := unsafe.Slice((*byte)(m.Ptr), size)
	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	for y := range int(h) {
		dst := img.Pix[y*img.Stride : y*img.Stride+int(w)*4]
		copy(dst, src[y*int(row):])
		if t.desc.Format == rhi.FormatB8G8R8A8Unorm {
			for x := 0; x < len(dst); x += 4 {
				dst[x], dst[x+2] = dst[x+2], dst[x]
			}
		}
	}
	return img, nil
}
