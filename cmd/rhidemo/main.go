// Command rhidemo renders a triangle through the rhi native backend and
// writes the presented image to a file.
//
// Settings come from flags, which default to RHI_* variables read from the
// environment and an optional .env file.
package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/backend/native"

	_ "github.com/gogpu/wgpu/hal/allbackends"
)

//go:embed shaders
var shaders embed.FS

func main() {
	envFile := envFlag()
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to load %s: %v", envFile, err)
	}

	var (
		width      = flag.Int("width", envInt("RHI_WIDTH", 800), "image width")
		height     = flag.Int("height", envInt("RHI_HEIGHT", 600), "image height")
		vsync      = flag.Bool("vsync", envBool("RHI_VSYNC", true), "wait for vertical blank")
		msaa       = flag.Int("msaa", envInt("RHI_MSAA", 1), "samples per pixel (1, 2, 4, 8, 16)")
		validation = flag.Bool("validation", envBool("RHI_VALIDATION", false), "enable backend validation")
		images     = flag.Int("images", envInt("RHI_IMAGES", rhi.DefaultImageCount), "swapchain images")
		frames     = flag.Int("frames", 3, "frames to render before capturing")
		output     = flag.String("output", "rhidemo.png", "output file (.png, .bmp or .tiff)")
		verbose    = flag.Bool("v", false, "log backend activity")
		_          = flag.String("env", envFile, "environment file")
	)
	flag.Parse()

	if *verbose {
		rhi.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	samples, err := sampleCount(*msaa)
	if err != nil {
		log.Fatal(err)
	}
	cfg := rhi.DefaultConfig()
	cfg.Width, cfg.Height = uint32(*width), uint32(*height)
	cfg.VSync = *vsync
	cfg.Multisampling = samples
	cfg.Validation = *validation
	cfg.ImageCount = *images

	dev := native.New(
		native.WithSoftwareAdapter(true),
		native.WithShaderFS(shaders, "shaders"),
	)
	if err := dev.Initialize(rhi.WindowHandle{}, cfg); err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer func() {
		if err := dev.Destroy(); err != nil {
			log.Printf("Destroy: %v", err)
		}
	}()
	info := dev.AdapterInfo()
	log.Printf("Adapter: %s (%v, %v)", info.Name, info.DeviceType, info.Backend)

	slot, err := render(dev, *frames)
	if err != nil {
		log.Fatalf("Failed to render: %v", err)
	}
	img, err := dev.Capture(slot)
	if err != nil {
		log.Fatalf("Failed to capture: %v", err)
	}
	if err := save(*output, img); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}

	hits, misses, _ := dev.PipelineCacheStats()
	log.Printf("Demo saved to %s (%dx%d, %d frames, pipeline cache %d/%d, %s)",
		*output, *width, *height, *frames, hits, hits+misses, dev.MemoryStats())
}

// render draws frames frames and returns the slot of the last one.
func render(dev *native.Device, frames int) (int, error) {
	vert, err := dev.CreateShader("triangle.vert")
	if err != nil {
		return 0, err
	}
	frag, err := dev.CreateShader("triangle.frag")
	if err != nil {
		return 0, err
	}
	pool, err := dev.CreateCommandPool()
	if err != nil {
		return 0, err
	}
	cb, err := pool.AllocateCommandBuffer()
	if err != nil {
		return 0, err
	}
	fence, err := dev.CreateFence()
	if err != nil {
		return 0, err
	}
	acquired, err := dev.CreateSemaphore()
	if err != nil {
		return 0, err
	}
	rendered, err := dev.CreateSemaphore()
	if err != nil {
		return 0, err
	}

	// Every swapchain pass has the same formats, so one pipeline serves
	// all slots.
	var pipeline rhi.RenderPipeline
	last := 0
	for frame := range frames {
		pass, err := dev.AcquireNextSwapchainImage(fence, acquired)
		if err != nil {
			return 0, err
		}
		last = dev.CurrentImageIndex()
		if pipeline == nil {
			pipeline, err = dev.CreateRenderPipeline(rhi.RenderPipelineDesc{
				Topology:   rhi.PrimitiveTopologyTriangleList,
				Rasterizer: rhi.RasterizerState{CullMode: rhi.CullModeNone},
				ColorBlend: rhi.ColorBlendState{WriteMask: rhi.ColorWriteAll},
				RenderPass: pass,
				Vertex:     vert,
				Fragment:   frag,
			})
			if err != nil {
				return 0, err
			}
		}

		t := float32(frame) / float32(max(frames-1, 1))
		steps := []func() error{
			func() error { return dev.CmdBegin(cb) },
			func() error { return dev.CmdBeginRender(cb, pass) },
			func() error { return dev.CmdClearColorAttachment(cb, 0, rhi.ClearColor(0.1, 0.1+0.2*t, 0.2, 1)) },
			func() error {
				return dev.CmdSetViewport(cb, 0, 0, float32(pass.Width()), float32(pass.Height()), 0, 1)
			},
			func() error { return dev.CmdSetScissor(cb, 0, 0, pass.Width(), pass.Height()) },
			func() error { return dev.CmdBindRenderPipeline(cb, pipeline) },
			func() error { return dev.CmdDraw(cb, 3, 0) },
			func() error { return dev.CmdEndRender(cb) },
			func() error { return dev.CmdEnd(cb) },
			func() error {
				return dev.Submit([]rhi.CommandBuffer{cb}, []rhi.Semaphore{acquired}, []rhi.Semaphore{rendered})
			},
			func() error { return dev.Present([]rhi.Semaphore{rendered}) },
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return 0, fmt.Errorf("frame %d: %w", frame, err)
			}
		}
	}
	return last, dev.WaitIdle(nil)
}

func sampleCount(n int) (rhi.SampleCount, error) {
	switch n {
	case 1:
		return rhi.SampleCount1X, nil
	case 2:
		return rhi.SampleCount2X, nil
	case 4:
		return rhi.SampleCount4X, nil
	case 8:
		return rhi.SampleCount8X, nil
	case 16:
		return rhi.SampleCount16X, nil
	}
	return 0, fmt.Errorf("unsupported sample count %d", n)
}

// save encodes img by the extension of path.
func save(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bmp":
		err = bmp.Encode(f, img)
	case ".tif", ".tiff":
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = png.Encode(f, img)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// envFlag returns the -env argument before flags are parsed, so the file
// can seed flag defaults.
func envFlag() string {
	for i, arg := range os.Args[1:] {
		switch {
		case arg == "-env" || arg == "--env":
			if i+2 < len(os.Args) {
				return os.Args[i+2]
			}
		case strings.HasPrefix(arg, "-env="), strings.HasPrefix(arg, "--env="):
			return arg[strings.Index(arg, "=")+1:]
		}
	}
	return ".env"
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}
