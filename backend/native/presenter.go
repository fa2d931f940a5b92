package native

import (
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/memory"
	"github.com/gogpu/wgpu/hal"
)

// presenter owns the presentation images behind the swapchain slots.
type presenter interface {
	// configure (re)creates the images at the given size.
	configure(width, height uint32) error
	imageCount() int
	format() rhi.Format
	// image returns the fixed image of a slot, or nil when images are
	// only known at acquire.
	image(slot int) hal.Texture
	// acquire returns the image slot renders into.
	acquire(slot int) (hal.Texture, error)
	present(slot int) error
	// currentIndex is the slot the next acquire uses.
	currentIndex() int
	destroy()
}

func (d *Device) newPresenter(surface hal.Surface, cfg rhi.Config, width, height uint32) (presenter, error) {
	var p presenter
	if surface == nil {
		p = &offscreenPresenter{d: d, colorFormat: cfg.ColorFormat, n: cfg.ImageCount}
	} else {
		sp, err := d.newSurfacePresenter(surface, cfg)
		if err != nil {
			return nil, err
		}
		p = sp
	}
	if err := p.configure(width, height); err != nil {
		return nil, err
	}
	return p, nil
}

// surfacePresenter presents to a window surface.
type surfacePresenter struct {
	d           *Device
	surface     hal.Surface
	config      hal.SurfaceConfiguration
	colorFormat rhi.Format
	n           int
	index       int
	current     hal.SurfaceTexture
}

// presentMode picks Fifo for vsync; otherwise the lowest latency mode the
// surface supports.
func presentMode(vsync bool, modes []gputypes.PresentMode) gputypes.PresentMode {
	if vsync {
		return gputypes.PresentModeFifo
	}
	for _, m := range []gputypes.PresentMode{gputypes.PresentModeImmediate, gputypes.PresentModeMailbox} {
		if slices.Contains(modes, m) {
			return m
		}
	}
	return gputypes.PresentModeFifo
}

func (d *Device) newSurfacePresenter(surface hal.Surface, cfg rhi.Config) (*surfacePresenter, error) {
	if d.adapter == nil {
		return nil, fatalf("%w: no adapter for surface", ErrNoSurface)
	}
	caps := d.adapter.SurfaceCapabilities(surface)
	if caps == nil || len(caps.Formats) == 0 {
		return nil, fatalf("%w: adapter %s cannot present to the window", ErrNoSurface, d.info.Name)
	}
	colorFormat := cfg.ColorFormat
	native := toFormat(colorFormat)
	if !slices.Contains(caps.Formats, native) {
		fallback := fromFormat(caps.Formats[0])
		if fallback == rhi.FormatUndefined {
			return nil, fatalf("%w: surface formats %v", rhi.ErrUnsupportedFormat, caps.Formats)
		}
		d.logger().Warn("native: surface format not supported, using fallback",
			"requested", colorFormat, "format", fallback)
		colorFormat, native = fallback, caps.Formats[0]
	}
	alpha := gputypes.CompositeAlphaModeAuto
	if len(caps.AlphaModes) > 0 {
		alpha = caps.AlphaModes[0]
	}
	return &surfacePresenter{
		d:       d,
		surface: surface,
		config: hal.SurfaceConfiguration{
			Format:      native,
			Usage:       gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
			PresentMode: presentMode(cfg.VSync, caps.PresentModes),
			AlphaMode:   alpha,
		},
		colorFormat: colorFormat,
		n:           cfg.ImageCount,
	}, nil
}

func (p *surfacePresenter) configure(width, height uint32) error {
	p.discard()
	p.config.Width, p.config.Height = width, height
	if err := p.surface.Configure(p.d.device, &p.config); err != nil {
		return fatalf("configure surface %dx%d: %w", width, height, err)
	}
	p.d.logger().Info("native: swapchain configured",
		"width", width, "height", height, "format", p.colorFormat,
		"present", p.config.PresentMode, "images", p.n)
	return nil
}

func (p *surfacePresenter) imageCount() int       { return p.n }
func (p *surfacePresenter) format() rhi.Format    { return p.colorFormat }
func (p *surfacePresenter) image(int) hal.Texture { return nil }
func (p *surfacePresenter) currentIndex() int     { return p.index }

func (p *surfacePresenter) acquire(int) (hal.Texture, error) {
	if p.current != nil {
		return p.current, nil
	}
	at, err := p.surface.AcquireTexture(nil)
	if err != nil {
		return nil, fatalf("acquire surface texture: %w", err)
	}
	if at.Suboptimal {
		p.d.logger().Debug("native: surface suboptimal")
	}
	p.current = at.Texture
	return at.Texture, nil
}

func (p *surfacePresenter) present(slot int) error {
	if p.current == nil {
		return preconditionf("%w: no surface texture acquired", rhi.ErrInvalidArgument)
	}
	err := p.d.queue.Present(p.surface, p.current, nil)
	p.current = nil
	p.index = (slot + 1) % p.n
	if err != nil {
		return fatalf("present: %w", err)
	}
	return nil
}

func (p *surfacePresenter) discard() {
	if p.current != nil {
		p.surface.DiscardTexture(p.current)
		p.current = nil
	}
}

func (p *surfacePresenter) destroy() {
	p.discard()
	p.surface.Unconfigure(p.d.device)
}

// offscreenPresenter renders into device-owned images; Device.Capture
// reads them back.
type offscreenPresenter struct {
	d           *Device
	colorFormat rhi.Format
	n           int
	index       int
	images      []hal.Texture
	allocs      []*memory.Allocation
}

func (p *offscreenPresenter) configure(width, height uint32) error {
	p.release()
	bytes := uint64(width) * uint64(height) * uint64(p.colorFormat.BytesPerPixel())
	for i := range p.n {
		alloc, err := p.d.mem.Alloc(memory.HeapDefault, bytes)
		if err != nil {
			p.release()
			return fatalf("%w: swapchain image %d: %w", rhi.ErrOutOfMemory, i, err)
		}
		img, err := p.d.device.CreateTexture(&hal.TextureDescriptor{
			Label:         "rhi offscreen image",
			Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        toFormat(p.colorFormat),
			Usage: gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc |
				gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding,
		})
		if err != nil {
			_ = p.d.mem.Free(alloc)
			p.release()
			return fatalf("create swapchain image %d: %w", i, err)
		}
		p.images = append(p.images, img)
		p.allocs = append(p.allocs, alloc)
	}
	p.index = 0
	p.d.logger().Info("native: offscreen swapchain configured",
		"width", width, "height", height, "format", p.colorFormat, "images", p.n)
	return nil
}

func (p *offscreenPresenter) imageCount() int                       { return p.n }
func (p *offscreenPresenter) format() rhi.Format                    { return p.colorFormat }
func (p *offscreenPresenter) image(slot int) hal.Texture            { return p.images[slot] }
func (p *offscreenPresenter) acquire(slot int) (hal.Texture, error) { return p.images[slot], nil }
func (p *offscreenPresenter) currentIndex() int                     { return p.index }

func (p *offscreenPresenter) present(slot int) error {
	p.index = (slot + 1) % p.n
	return nil
}

func (p *offscreenPresenter) release() {
	for _, img := range p.images {
		p.d.device.DestroyTexture(img)
	}
	for _, a := range p.allocs {
		_ = p.d.mem.Free(a)
	}
	p.images, p.allocs = nil, nil
}

func (p *offscreenPresenter) destroy() { p.release() }
