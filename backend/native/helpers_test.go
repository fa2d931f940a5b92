package native

import (
	"sync"
	"testing"
	"testing/fstest"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

const triangleVert = `
@vertex
fn main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    let x = f32(i32(i) - 1);
    let y = f32(i32(i & 1u) * 2 - 1);
    return vec4<f32>(x, y, 0.0, 1.0);
}
`

const triangleFrag = `
@fragment
fn main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`

// testShaders holds the shaders every device test can load.
var testShaders = fstest.MapFS{
	"shaders/triangle.vert.wgsl": {Data: []byte(triangleVert)},
	"shaders/triangle.frag.wgsl": {Data: []byte(triangleFrag)},
	"shaders/wrong.frag.wgsl":    {Data: []byte(triangleVert)},
	"shaders/broken.vert.wgsl":   {Data: []byte("fn main( {")},
	"shaders/blob.vert.spv":      {Data: []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0}},
	"shaders/bad.vert.spv":       {Data: []byte{1, 2, 3}},
}

// createNoopDevice opens the noop HAL device tests run against.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func testConfig() rhi.Config {
	cfg := rhi.DefaultConfig()
	cfg.Width, cfg.Height = 64, 32
	cfg.ImageCount = 2
	cfg.DepthStencilFormat = rhi.FormatUndefined
	return cfg
}

// newTestDevice returns an initialized headless device on a counting noop
// HAL device.
func newTestDevice(t *testing.T, cfg rhi.Config, opts ...Option) (*Device, *countingDevice) {
	t.Helper()
	dev, queue, cleanup := createNoopDevice(t)
	counting := &countingDevice{Device: dev}
	opts = append([]Option{
		WithHALDevice(counting, queue),
		WithShaderFS(testShaders, DefaultShaderDir),
	}, opts...)
	d := New(opts...)
	if err := d.Initialize(rhi.WindowHandle{}, cfg); err != nil {
		cleanup()
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Destroy(); err != nil {
			t.Errorf("Destroy failed: %v", err)
		}
		cleanup()
	})
	return d, counting
}

// countingDevice records the render passes and draws encoded through it.
type countingDevice struct {
	hal.Device

	mu        sync.Mutex
	passes    []hal.RenderPassDescriptor
	draws     int
	pipelines int
	barriers  int
	released  map[hal.Texture]int
}

func (c *countingDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := c.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return &countingEncoder{CommandEncoder: enc, dev: c}, nil
}

func (c *countingDevice) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	c.mu.Lock()
	c.pipelines++
	c.mu.Unlock()
	return c.Device.CreateRenderPipeline(desc)
}

func (c *countingDevice) DestroyTexture(t hal.Texture) {
	c.mu.Lock()
	if c.released == nil {
		c.released = make(map[hal.Texture]int)
	}
	c.released[t]++
	c.mu.Unlock()
	c.Device.DestroyTexture(t)
}

// releases returns how often the native texture t was destroyed.
func (c *countingDevice) releases(t hal.Texture) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released[t]
}

func (c *countingDevice) snapshot() (passes []hal.RenderPassDescriptor, draws, pipelines, barriers int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]hal.RenderPassDescriptor(nil), c.passes...), c.draws, c.pipelines, c.barriers
}

type countingEncoder struct {
	hal.CommandEncoder
	dev *countingDevice
}

func (e *countingEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	e.dev.mu.Lock()
	e.dev.passes = append(e.dev.passes, *desc)
	e.dev.mu.Unlock()
	return &countingPass{RenderPassEncoder: e.CommandEncoder.BeginRenderPass(desc), dev: e.dev}
}

func (e *countingEncoder) TransitionTextures(barriers []hal.TextureBarrier) {
	e.dev.mu.Lock()
	e.dev.barriers += len(barriers)
	e.dev.mu.Unlock()
	e.CommandEncoder.TransitionTextures(barriers)
}

type countingPass struct {
	hal.RenderPassEncoder
	dev *countingDevice
}

func (p *countingPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.dev.mu.Lock()
	p.dev.draws++
	p.dev.mu.Unlock()
	p.RenderPassEncoder.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *countingPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.dev.mu.Lock()
	p.dev.draws++
	p.dev.mu.Unlock()
	p.RenderPassEncoder.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

// recordBuffer allocates a command buffer from a fresh pool.
func recordBuffer(t *testing.T, d *Device) (rhi.CommandPool, rhi.CommandBuffer) {
	t.Helper()
	pool, err := d.CreateCommandPool()
	if err != nil {
		t.Fatalf("CreateCommandPool failed: %v", err)
	}
	cb, err := pool.AllocateCommandBuffer()
	if err != nil {
		t.Fatalf("AllocateCommandBuffer failed: %v", err)
	}
	return pool, cb
}

// trianglePipeline builds a pipeline for pass from the test shaders.
func trianglePipeline(t *testing.T, d *Device, pass rhi.RenderPass) rhi.RenderPipeline {
	t.Helper()
	vs, err := d.CreateShader("triangle.vert")
	if err != nil {
		t.Fatalf("CreateShader(vert) failed: %v", err)
	}
	fs, err := d.CreateShader("triangle.frag")
	if err != nil {
		t.Fatalf("CreateShader(frag) failed: %v", err)
	}
	p, err := d.CreateRenderPipeline(rhi.RenderPipelineDesc{
		Topology:   rhi.PrimitiveTopologyTriangleList,
		RenderPass: pass,
		Vertex:     vs,
		Fragment:   fs,
	})
	if err != nil {
		t.Fatalf("CreateRenderPipeline failed: %v", err)
	}
	return p
}

// must fails the test on a non-nil error.
func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
