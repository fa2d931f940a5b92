package native

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/frame"
	"github.com/gogpu/rhi/internal/memory"
	"github.com/gogpu/wgpu/hal"
)

var _ rhi.GraphicsDevice = (*Device)(nil)

// Device implements rhi.GraphicsDevice over a wgpu HAL device and its
// single queue.
//
// Thread Safety: Device is safe for concurrent use. Lifecycle calls
// (Initialize, Resize, Destroy) serialize on one lock; the swapchain, the
// command pools, the texture states and the queue each have their own.
type Device struct {
	opts options

	mu          sync.Mutex
	initialized atomic.Bool
	destroyed   bool
	cfg         rhi.Config
	width       atomic.Uint32
	height      atomic.Uint32

	instance hal.Instance
	adapter  hal.Adapter
	info     gputypes.AdapterInfo
	surface  hal.Surface
	device   hal.Device
	queue    hal.Queue
	adopted  bool

	mem       *memory.Tracker
	pipelines *pipelineCache
	timeline  *timeline

	swapMu    sync.Mutex
	presenter presenter
	ring      *frame.Ring
	slots     []*slot
	acquired  bool
	resizing  atomic.Bool

	poolMu sync.Mutex
	pools  map[*CommandPool]struct{}

	// stateMu guards Texture.state.
	stateMu sync.Mutex

	// submitMu orders submit validation against the queue.
	submitMu sync.Mutex
}

// New returns an uninitialized device.
func New(opts ...Option) *Device {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Device{
		opts:  o,
		pools: make(map[*CommandPool]struct{}),
	}
}

func (d *Device) ready() error {
	if !d.initialized.Load() {
		return preconditionf("%w", rhi.ErrNotInitialized)
	}
	return nil
}

// cleanup is a stack of release steps run in reverse on failure.
type cleanup []func()

func (c *cleanup) push(f func()) { *c = append(*c, f) }

func (c cleanup) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// Initialize opens the HAL device and builds the swapchain. A zero window
// handle selects offscreen presentation into device-owned images.
func (d *Device) Initialize(window rhi.WindowHandle, cfg rhi.Config) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized.Load() {
		return nil
	}
	if d.destroyed {
		return preconditionf("%w: device", rhi.ErrDestroyed)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	mode, exact := rhi.SelectDisplayMode(window.Modes, cfg.Width, cfg.Height)
	if !exact && len(window.Modes) > 0 {
		d.logger().Warn("native: display mode not available, using first mode",
			"requested", [2]uint32{cfg.Width, cfg.Height}, "mode", [2]uint32{mode.Width, mode.Height})
	}
	width, height := cfg.Width, cfg.Height
	if cfg.Fullscreen {
		width, height = mode.Width, mode.Height
	}

	var undo cleanup
	defer func() {
		if err != nil {
			undo.run()
		}
	}()

	surface, err := d.openDevice(window, cfg, &undo)
	if err != nil {
		return err
	}

	d.cfg = cfg
	d.width.Store(width)
	d.height.Store(height)
	d.mem = memory.NewTracker(d.opts.memoryBudget)
	d.timeline = newTimeline(d.device, d.queue)
	d.pipelines = newPipelineCache()
	undo.push(func() {
		d.mem, d.timeline, d.pipelines = nil, nil, nil
	})

	p, err := d.newPresenter(surface, cfg, width, height)
	if err != nil {
		return err
	}
	d.presenter = p
	undo.push(func() {
		d.presenter.destroy()
		d.presenter = nil
	})

	if err := d.buildSlots(); err != nil {
		return err
	}
	d.ring = frame.NewRing(len(d.slots))
	d.ring.Reset(d.presenter.currentIndex())

	d.initialized.Store(true)
	d.logger().Info("native: device initialized",
		"adapter", d.info.Name, "backend", d.info.Backend, "type", d.info.DeviceType,
		"width", width, "height", height, "images", len(d.slots),
		"samples", cfg.Multisampling, "headless", surface == nil)
	return nil
}

// IsInitialized reports whether Initialize succeeded and Destroy has not
// run since.
func (d *Device) IsInitialized() bool { return d.initialized.Load() }

// IsResized reports whether the swapchain is settled: initialized and not
// being recreated.
func (d *Device) IsResized() bool {
	return d.initialized.Load() && !d.resizing.Load()
}

// Width returns the swapchain width, or 0 when the swapchain is lost.
func (d *Device) Width() uint32 { return d.width.Load() }

// Height returns the swapchain height, or 0 when the swapchain is lost.
func (d *Device) Height() uint32 { return d.height.Load() }

// Config returns the configuration the device was initialized with.
func (d *Device) Config() rhi.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// AdapterInfo describes the adapter the device runs on. It is zero for
// adopted devices.
func (d *Device) AdapterInfo() gputypes.AdapterInfo { return d.info }

// MemoryStats returns the heap accounting snapshot.
func (d *Device) MemoryStats() memory.Stats {
	if d.mem == nil {
		return memory.Stats{}
	}
	return d.mem.Stats()
}

// PipelineCacheStats returns pipeline cache hits, misses and the number of
// live native pipelines.
func (d *Device) PipelineCacheStats() (hits, misses uint64, size int) {
	if d.pipelines == nil {
		return 0, 0, 0
	}
	hits, misses = d.pipelines.Stats()
	return hits, misses, d.pipelines.Size()
}

// HAL returns the HAL device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) { return d.device, d.queue }

// WaitIdle blocks until f completes, or until every submission so far has
// completed when f is nil.
func (d *Device) WaitIdle(f rhi.Fence) error {
	if err := d.ready(); err != nil {
		return err
	}
	index := d.timeline.lastIndex()
	if f != nil {
		fence, err := own[*Fence](d, f, "fence")
		if err != nil {
			return err
		}
		index = fence.value.Load()
	}
	return d.timeline.wait(index, d.opts.fenceTimeout)
}

// drain waits for every slot value and submission, then for the HAL
// device itself.
func (d *Device) drain() error {
	index := d.timeline.lastIndex()
	if d.ring != nil {
		index = max(index, d.ring.MaxValue())
	}
	if err := d.timeline.wait(index, d.opts.fenceTimeout); err != nil {
		return err
	}
	if err := d.device.WaitIdle(); err != nil {
		return fatalf("wait idle: %w", err)
	}
	d.timeline.retire()
	return nil
}

// Destroy drains the queue and releases everything the device created.
// Resources the caller did not destroy are released with their HAL
// device. It is idempotent.
func (d *Device) Destroy() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.destroyed {
		return nil
	}
	d.destroyed = true
	if !d.initialized.Load() {
		return nil
	}
	d.initialized.Store(false)

	err := d.drain()
	if err != nil {
		d.logger().Error("native: drain before destroy failed", "err", err)
	}
	d.timeline.releaseAll()

	d.poolMu.Lock()
	for p := range d.pools {
		p.reset()
	}
	clear(d.pools)
	d.poolMu.Unlock()

	d.swapMu.Lock()
	d.destroySlots()
	d.presenter.destroy()
	d.presenter = nil
	d.swapMu.Unlock()

	d.pipelines.destroyAll(d.device)
	d.closeDevice()
	d.logger().Info("native: device destroyed")
	return err
}
