package native

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi"
	"github.com/gogpu/wgpu/hal"
)

func TestInitializeHeadless(t *testing.T) {
	d, _ := newTestDevice(t, testConfig())

	if !d.IsInitialized() {
		t.Fatal("device not initialized")
	}
	if !d.IsResized() {
		t.Error("IsResized = false on a settled swapchain")
	}
	if d.Width() != 64 || d.Height() != 32 {
		t.Errorf("size = %dx%d, want 64x32", d.Width(), d.Height())
	}
	if d.ImageCount() != 2 {
		t.Errorf("ImageCount = %d, want 2", d.ImageCount())
	}
	if d.CurrentImageIndex() != 0 {
		t.Errorf("CurrentImageIndex = %d, want 0", d.CurrentImageIndex())
	}
	if got := d.Config().ColorFormat; got != rhi.FormatR8G8B8A8Unorm {
		t.Errorf("Config().ColorFormat = %v", got)
	}
	if stats := d.MemoryStats(); stats.UsedBytes == 0 {
		t.Error("swapchain images were not charged to the memory budget")
	}

	// A second Initialize is a no-op.
	cfg := testConfig()
	cfg.Width = 999
	if err := d.Initialize(rhi.WindowHandle{}, cfg); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if d.Width() != 64 {
		t.Errorf("second Initialize changed width to %d", d.Width())
	}
}

func TestInitializeInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*rhi.Config)
		want   error
	}{
		{"zero width", func(c *rhi.Config) { c.Width = 0 }, rhi.ErrInvalidArgument},
		{"one image", func(c *rhi.Config) { c.ImageCount = 1 }, rhi.ErrInvalidArgument},
		{"too many images", func(c *rhi.Config) { c.ImageCount = rhi.MaxImageCount + 1 }, rhi.ErrInvalidArgument},
		{"undefined color", func(c *rhi.Config) { c.ColorFormat = rhi.FormatUndefined }, rhi.ErrUndefinedFormat},
		{"depth as color", func(c *rhi.Config) { c.ColorFormat = rhi.FormatD32Float }, rhi.ErrUndefinedFormat},
		{"color as depth", func(c *rhi.Config) { c.DepthStencilFormat = rhi.FormatR8Unorm }, rhi.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, queue, cleanup := createNoopDevice(t)
			defer cleanup()

			cfg := testConfig()
			tt.mutate(&cfg)
			d := New(WithHALDevice(dev, queue))
			err := d.Initialize(rhi.WindowHandle{}, cfg)
			if !errors.Is(err, rhi.ErrPrecondition) || !errors.Is(err, tt.want) {
				t.Fatalf("Initialize error = %v, want precondition %v", err, tt.want)
			}
			if d.IsInitialized() {
				t.Error("device initialized after failure")
			}
		})
	}
}

func TestInitializeAdoptedDeviceRejectsWindow(t *testing.T) {
	dev, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	d := New(WithHALDevice(dev, queue))
	err := d.Initialize(rhi.WindowHandle{Window: 1}, testConfig())
	if !errors.Is(err, ErrNoSurface) {
		t.Fatalf("Initialize error = %v, want ErrNoSurface", err)
	}
}

func TestInitializeAdoptedDeviceWithoutQueue(t *testing.T) {
	dev, _, cleanup := createNoopDevice(t)
	defer cleanup()

	d := New(WithHALDevice(dev, nil))
	err := d.Initialize(rhi.WindowHandle{}, testConfig())
	if !errors.Is(err, rhi.ErrPrecondition) {
		t.Fatalf("Initialize error = %v, want precondition", err)
	}
}

func TestInitializeRegisteredBackend(t *testing.T) {
	d := New(WithBackend(gputypes.BackendEmpty), WithShaderFS(testShaders, DefaultShaderDir))
	if err := d.Initialize(rhi.WindowHandle{}, testConfig()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer func() { _ = d.Destroy() }()

	if got := d.AdapterInfo().Backend; got != gputypes.BackendEmpty {
		t.Errorf("adapter backend = %v, want Empty", got)
	}
	dev, queue := d.HAL()
	if dev == nil || queue == nil {
		t.Error("HAL device or queue is nil")
	}
}

func TestNotInitialized(t *testing.T) {
	d := New()

	if _, err := d.CreateFence(); !errors.Is(err, rhi.ErrNotInitialized) {
		t.Errorf("CreateFence error = %v, want ErrNotInitialized", err)
	}
	if _, err := d.CreateVertexBuffer(16, 16, false); !errors.Is(err, rhi.ErrNotInitialized) {
		t.Errorf("CreateVertexBuffer error = %v, want ErrNotInitialized", err)
	}
	if _, err := d.AcquireNextSwapchainImage(nil, nil); !errors.Is(err, rhi.ErrPrecondition) {
		t.Errorf("AcquireNextSwapchainImage error = %v, want precondition", err)
	}
	if err := d.Resize(10, 10); err != nil {
		t.Errorf("Resize before Initialize = %v, want nil", err)
	}
	if d.ImageCount() != 0 || d.CurrentImageIndex() != 0 {
		t.Error("uninitialized device reports swapchain images")
	}
	if err := d.Destroy(); err != nil {
		t.Errorf("Destroy of uninitialized device = %v", err)
	}
}

func TestDestroy(t *testing.T) {
	dev, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	d := New(WithHALDevice(dev, queue), WithShaderFS(testShaders, DefaultShaderDir))
	must(t, d.Initialize(rhi.WindowHandle{}, testConfig()))
	_, cb := recordBuffer(t, d)
	_, err := d.CreateVertexBuffer(64, 16, true)
	must(t, err)

	if err := d.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := d.Destroy(); err != nil {
		t.Errorf("second Destroy: %v", err)
	}
	if d.IsInitialized() {
		t.Error("IsInitialized after Destroy")
	}
	if err := d.CmdBegin(cb); !errors.Is(err, rhi.ErrNotInitialized) {
		t.Errorf("CmdBegin after Destroy = %v, want ErrNotInitialized", err)
	}
	if err := d.Initialize(rhi.WindowHandle{}, testConfig()); !errors.Is(err, rhi.ErrDestroyed) {
		t.Errorf("Initialize after Destroy = %v, want ErrDestroyed", err)
	}
}

// renderFrame acquires, clears and presents one swapchain image.
func renderFrame(t *testing.T, d *Device, cb rhi.CommandBuffer, acquired, rendered rhi.Semaphore) rhi.RenderPass {
	t.Helper()
	pass, err := d.AcquireNextSwapchainImage(nil, acquired)
	must(t, err)
	must(t, d.CmdBegin(cb))
	must(t, d.CmdBeginRender(cb, pass))
	must(t, d.CmdClearColorAttachment(cb, 0, rhi.ClearColor(0, 0, 1, 1)))
	must(t, d.CmdEndRender(cb))
	must(t, d.CmdEnd(cb))
	must(t, d.Submit([]rhi.CommandBuffer{cb}, []rhi.Semaphore{acquired}, []rhi.Semaphore{rendered}))
	must(t, d.Present([]rhi.Semaphore{rendered}))
	return pass
}

func TestAcquirePresentCyclesSlots(t *testing.T) {
	cfg := testConfig()
	cfg.ImageCount = 3
	d, counting := newTestDevice(t, cfg)
	_, cb := recordBuffer(t, d)
	acquired, err := d.CreateSemaphore()
	must(t, err)
	rendered, err := d.CreateSemaphore()
	must(t, err)

	passes := make(map[rhi.RenderPass]int)
	for frame := range 7 {
		if got, want := d.CurrentImageIndex(), frame%3; got != want {
			t.Fatalf("frame %d: CurrentImageIndex = %d, want %d", frame, got, want)
		}
		pass := renderFrame(t, d, cb, acquired, rendered)
		passes[pass]++
		if acquired.Signaled() || rendered.Signaled() {
			t.Fatalf("frame %d: semaphores not consumed", frame)
		}
	}
	if len(passes) != 3 {
		t.Errorf("distinct swapchain passes = %d, want 3", len(passes))
	}
	recorded, _, _, _ := counting.snapshot()
	if len(recorded) != 7 {
		t.Errorf("HAL render passes = %d, want 7", len(recorded))
	}
}

func TestAcquireTwiceReturnsSamePass(t *testing.T) {
	d, _ := newTestDevice(t, testConfig())
	fence, err := d.CreateFence()
	must(t, err)

	first, err := d.AcquireNextSwapchainImage(fence, nil)
	must(t, err)
	second, err := d.AcquireNextSwapchainImage(nil, nil)
	must(t, err)
	if first != second {
		t.Error("second acquire returned a different pass")
	}
	if !fence.Completed() {
		t.Error("acquire fence not complete")
	}
	if d.CurrentImageIndex() != 0 {
		t.Errorf("CurrentImageIndex = %d before present", d.CurrentImageIndex())
	}
}

func TestPresentPreconditions(t *testing.T) {
	d, _ := newTestDevice(t, testConfig())

	if err := d.Present(nil); !errors.Is(err, rhi.ErrPrecondition) {
		t.Errorf("Present without acquire = %v, want precondition", err)
	}

	sem, err := d.CreateSemaphore()
	must(t, err)
	_, err = d.AcquireNextSwapchainImage(nil, nil)
	must(t, err)
	if err := d.Present([]rhi.Semaphore{sem}); !errors.Is(err, rhi.ErrNotSignaled) {
		t.Errorf("Present on unsignaled semaphore = %v, want ErrNotSignaled", err)
	}
	if err := d.Present(nil); err != nil {
		t.Errorf("Present: %v", err)
	}
	if d.CurrentImageIndex() != 1 {
		t.Errorf("CurrentImageIndex = %d after present, want 1", d.CurrentImageIndex())
	}
}

func TestSwapchainTexturesBelongToDevice(t *testing.T) {
	d, _ := newTestDevice(t, testConfig())
	pass, err := d.AcquireNextSwapchainImage(nil, nil)
	must(t, err)

	color := pass.ColorAttachments()[0]
	if color.Owned() {
		t.Error("swapchain image reports Owned")
	}
	if err := d.DestroyTexture(color); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Errorf("DestroyTexture(swapchain) = %v, want ErrInvalidArgument", err)
	}
}

func TestResize(t *testing.T) {
	cfg := testConfig()
	cfg.DepthStencilFormat = rhi.FormatD24UnormS8Uint
	d, _ := newTestDevice(t, cfg)
	_, cb := recordBuffer(t, d)
	acquired, err := d.CreateSemaphore()
	must(t, err)
	rendered, err := d.CreateSemaphore()
	must(t, err)
	old := renderFrame(t, d, cb, acquired, rendered)

	if err := d.Resize(128, 96); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if d.Width() != 128 || d.Height() != 96 {
		t.Fatalf("size = %dx%d, want 128x96", d.Width(), d.Height())
	}
	if d.ImageCount() != 2 || d.CurrentImageIndex() != 0 {
		t.Errorf("ImageCount/CurrentImageIndex = %d/%d, want 2/0", d.ImageCount(), d.CurrentImageIndex())
	}
	must(t, d.CmdBegin(cb))
	if err := d.CmdBeginRender(cb, old); !errors.Is(err, rhi.ErrDestroyed) {
		t.Errorf("CmdBeginRender on old swapchain pass = %v, want ErrDestroyed", err)
	}

	pass := renderFrame(t, d, cb, acquired, rendered)
	if pass.Width() != 128 || pass.Height() != 96 {
		t.Errorf("new pass size = %dx%d", pass.Width(), pass.Height())
	}
	if ds := pass.DepthStencilAttachment(); ds == nil || ds.Width() != 128 {
		t.Error("depth attachment not recreated at the new size")
	}

	index := d.CurrentImageIndex()
	if index == 0 {
		t.Fatal("CurrentImageIndex = 0 after present")
	}
	raws := make([]hal.Texture, len(d.slots))
	for i, s := range d.slots {
		raws[i] = s.color.raw
	}
	if err := d.Resize(128, 96); err != nil {
		t.Errorf("Resize to the same size = %v", err)
	}
	if got := d.CurrentImageIndex(); got != index {
		t.Errorf("CurrentImageIndex = %d after same-size resize, want %d", got, index)
	}
	if len(d.slots) != len(raws) {
		t.Fatalf("slots = %d after same-size resize, want %d", len(d.slots), len(raws))
	}
	for i, s := range d.slots {
		if s.color.raw != raws[i] {
			t.Errorf("slot %d image replaced by same-size resize", i)
		}
	}
	if err := d.Resize(0, 96); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Errorf("Resize(0, 96) = %v, want ErrInvalidArgument", err)
	}
}

// failingPresenter fails the next configure.
type failingPresenter struct {
	presenter
	fail bool
}

func (p *failingPresenter) configure(width, height uint32) error {
	if p.fail {
		p.fail = false
		return fatalf("configure %dx%d: surface unavailable", width, height)
	}
	return p.presenter.configure(width, height)
}

func TestResizeFailureLosesSwapchain(t *testing.T) {
	d, _ := newTestDevice(t, testConfig())
	d.presenter = &failingPresenter{presenter: d.presenter, fail: true}

	if err := d.Resize(128, 96); !errors.Is(err, rhi.ErrFatal) {
		t.Fatalf("Resize with failing presenter = %v, want ErrFatal", err)
	}
	if d.Width() != 0 || d.Height() != 0 {
		t.Errorf("size after failed resize = %dx%d, want 0x0", d.Width(), d.Height())
	}
	if _, err := d.AcquireNextSwapchainImage(nil, nil); !errors.Is(err, rhi.ErrFatal) {
		t.Errorf("acquire on lost swapchain = %v, want ErrFatal", err)
	}

	must(t, d.Resize(64, 32))
	if d.ImageCount() != 2 || len(d.slots) != 2 {
		t.Fatalf("ImageCount/slots = %d/%d after recovery, want 2/2", d.ImageCount(), len(d.slots))
	}
	pass, err := d.AcquireNextSwapchainImage(nil, nil)
	must(t, err)
	if pass.Width() != 64 || pass.Height() != 32 {
		t.Errorf("pass size = %dx%d, want 64x32", pass.Width(), pass.Height())
	}
}

func TestCapture(t *testing.T) {
	for _, format := range []rhi.Format{rhi.FormatR8G8B8A8Unorm, rhi.FormatB8G8R8A8Unorm} {
		t.Run(format.String(), func(t *testing.T) {
			cfg := testConfig()
			cfg.ColorFormat = format
			d, counting := newTestDevice(t, cfg)
			_, cb := recordBuffer(t, d)
			acquired, err := d.CreateSemaphore()
			must(t, err)
			rendered, err := d.CreateSemaphore()
			must(t, err)
			renderFrame(t, d, cb, acquired, rendered)

			img, err := d.Capture(0)
			if err != nil {
				t.Fatalf("Capture: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 32 {
				t.Errorf("capture bounds = %v, want 64x32", b)
			}
			if _, _, _, barriers := counting.snapshot(); barriers == 0 {
				t.Error("capture recorded no texture barrier")
			}
			if _, err := d.Capture(2); !errors.Is(err, rhi.ErrInvalidArgument) {
				t.Errorf("Capture(2) = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestCaptureUnsupportedFormat(t *testing.T) {
	cfg := testConfig()
	cfg.ColorFormat = rhi.FormatR16G16B16A16Float
	d, _ := newTestDevice(t, cfg)
	if _, err := d.Capture(0); !errors.Is(err, rhi.ErrUnsupportedFormat) {
		t.Errorf("Capture of float image = %v, want ErrUnsupportedFormat", err)
	}
}

func TestWaitIdle(t *testing.T) {
	d, _ := newTestDevice(t, testConfig())
	_, cb := recordBuffer(t, d)
	must(t, d.CmdBegin(cb))
	must(t, d.CmdEnd(cb))
	must(t, d.Submit([]rhi.CommandBuffer{cb}, nil, nil))

	fence, err := d.CreateFence()
	must(t, err)
	must(t, d.SignalFence(fence))
	if err := d.WaitIdle(fence); err != nil {
		t.Errorf("WaitIdle(fence): %v", err)
	}
	if err := d.WaitIdle(nil); err != nil {
		t.Errorf("WaitIdle(nil): %v", err)
	}
	if !fence.Completed() {
		t.Error("fence not complete after WaitIdle")
	}
	if n := d.timeline.pending(); n != 0 {
		t.Errorf("%d submissions still tracked after WaitIdle", n)
	}
}

func TestSelectAdapter(t *testing.T) {
	adapter := func(name string, typ gputypes.DeviceType) hal.ExposedAdapter {
		return hal.ExposedAdapter{Info: gputypes.AdapterInfo{Name: name, DeviceType: typ}}
	}
	tests := []struct {
		name          string
		adapters      []hal.ExposedAdapter
		allowSoftware bool
		want          string
		wantErr       bool
	}{
		{
			name: "discrete over integrated",
			adapters: []hal.ExposedAdapter{
				adapter("igpu", gputypes.DeviceTypeIntegratedGPU),
				adapter("dgpu", gputypes.DeviceTypeDiscreteGPU),
			},
			want: "dgpu",
		},
		{
			name: "integrated over virtual",
			adapters: []hal.ExposedAdapter{
				adapter("vm", gputypes.DeviceTypeVirtualGPU),
				adapter("igpu", gputypes.DeviceTypeIntegratedGPU),
			},
			want: "igpu",
		},
		{
			name:     "cpu skipped",
			adapters: []hal.ExposedAdapter{adapter("llvmpipe", gputypes.DeviceTypeCPU)},
			wantErr:  true,
		},
		{
			name:          "cpu allowed",
			adapters:      []hal.ExposedAdapter{adapter("llvmpipe", gputypes.DeviceTypeCPU)},
			allowSoftware: true,
			want:          "llvmpipe",
		},
		{
			name:    "none",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(WithSoftwareAdapter(tt.allowSoftware))
			got, err := d.selectAdapter(tt.adapters)
			if tt.wantErr {
				if !errors.Is(err, rhi.ErrNoAdapter) {
					t.Fatalf("error = %v, want ErrNoAdapter", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("selectAdapter: %v", err)
			}
			if got.Info.Name != tt.want {
				t.Errorf("selected %q, want %q", got.Info.Name, tt.want)
			}
		})
	}
}

func TestPresentMode(t *testing.T) {
	tests := []struct {
		name  string
		vsync bool
		modes []gputypes.PresentMode
		want  gputypes.PresentMode
	}{
		{"vsync", true, []gputypes.PresentMode{gputypes.PresentModeImmediate}, gputypes.PresentModeFifo},
		{"immediate", false, []gputypes.PresentMode{gputypes.PresentModeFifo, gputypes.PresentModeImmediate}, gputypes.PresentModeImmediate},
		{"mailbox", false, []gputypes.PresentMode{gputypes.PresentModeFifo, gputypes.PresentModeMailbox}, gputypes.PresentModeMailbox},
		{"fifo only", false, []gputypes.PresentMode{gputypes.PresentModeFifo}, gputypes.PresentModeFifo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := presentMode(tt.vsync, tt.modes); got != tt.want {
				t.Errorf("presentMode = %v, want %v", got, tt.want)
			}
		})
	}
}
