package native

import (
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DefaultFenceTimeout bounds every blocking wait.
const DefaultFenceTimeout = 5 * time.Second

// DefaultShaderDir is the directory shaders are loaded from when no
// shader file system is configured.
const DefaultShaderDir = "shaders"

// options holds construction-time settings.
type options struct {
	logger        *slog.Logger
	backend       gputypes.Backend
	backendSet    bool
	allowSoftware bool
	halDevice     hal.Device
	halQueue      hal.Queue
	provider      gpucontext.DeviceProvider
	shaderFS      fs.FS
	shaderDir     string
	memoryBudget  uint64
	fenceTimeout  time.Duration
}

func defaultOptions() options {
	return options{
		shaderDir:    DefaultShaderDir,
		fenceTimeout: DefaultFenceTimeout,
	}
}

// Option configures a Device.
type Option func(*options)

// WithLogger sets the device logger. Without it the device logs through
// rhi.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithBackend restricts the device to one HAL backend.
func WithBackend(b gputypes.Backend) Option {
	return func(o *options) {
		o.backend = b
		o.backendSet = true
	}
}

// WithSoftwareAdapter allows CPU adapters to be selected when no GPU is
// present.
func WithSoftwareAdapter(allow bool) Option {
	return func(o *options) {
		o.allowSoftware = allow
	}
}

// WithHALDevice makes the device adopt an existing HAL device and queue
// instead of opening its own. The caller keeps ownership of both.
func WithHALDevice(device hal.Device, queue hal.Queue) Option {
	return func(o *options) {
		o.halDevice = device
		o.halQueue = queue
	}
}

// WithDeviceProvider adopts the HAL device and queue of a host
// application. The provider's Device and Queue must be a hal.Device and a
// hal.Queue.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithShaderFS sets the file system and directory CreateShader reads from.
func WithShaderFS(fsys fs.FS, dir string) Option {
	return func(o *options) {
		o.shaderFS = fsys
		if dir == "" {
			dir = "."
		}
		o.shaderDir = dir
	}
}

// WithMemoryBudget sets the allocation budget in bytes.
func WithMemoryBudget(bytes uint64) Option {
	return func(o *options) {
		o.memoryBudget = bytes
	}
}

// WithFenceTimeout bounds blocking waits. Non-positive values keep the
// default.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fenceTimeout = d
		}
	}
}

func (o *options) shaders() fs.FS {
	if o.shaderFS != nil {
		return o.shaderFS
	}
	return os.DirFS(".")
}
