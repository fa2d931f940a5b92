package rhi

import "fmt"

// Default configuration values.
const (
	DefaultWidth      = 1280
	DefaultHeight     = 720
	DefaultImageCount = 3

	// MaxImageCount bounds the swapchain ring.
	MaxImageCount = 8
)

// Config is the immutable device configuration passed to Initialize.
type Config struct {
	Width         uint32
	Height        uint32
	Fullscreen    bool
	VSync         bool
	Multisampling SampleCount
	Validation    bool

	// ImageCount is the number of swapchain images, N.
	ImageCount int

	// ColorFormat and DepthStencilFormat are the swapchain attachment
	// formats.
	ColorFormat        Format
	DepthStencilFormat Format
}

// DefaultConfig returns a windowed 1280x720, vsynced, triple-buffered
// configuration without multisampling.
func DefaultConfig() Config {
	return Config{
		Width:              DefaultWidth,
		Height:             DefaultHeight,
		VSync:              true,
		Multisampling:      SampleCount1X,
		ImageCount:         DefaultImageCount,
		ColorFormat:        FormatR8G8B8A8Unorm,
		DepthStencilFormat: FormatD24UnormS8Uint,
	}
}

// Validate checks c for values no backend can honor.
func (c Config) Validate() error {
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("%w: %w: zero extent %dx%d", ErrPrecondition, ErrInvalidArgument, c.Width, c.Height)
	}
	if c.ImageCount < 2 || c.ImageCount > MaxImageCount {
		return fmt.Errorf("%w: %w: image count %d outside [2, %d]",
			ErrPrecondition, ErrInvalidArgument, c.ImageCount, MaxImageCount)
	}
	if !c.Multisampling.Valid() {
		return fmt.Errorf("%w: %w: sample count %v", ErrPrecondition, ErrInvalidArgument, c.Multisampling)
	}
	if !c.ColorFormat.Valid() || c.ColorFormat.IsDepthStencil() {
		return fmt.Errorf("%w: %w: color format %v", ErrPrecondition, ErrUndefinedFormat, c.ColorFormat)
	}
	if c.DepthStencilFormat != FormatUndefined && !c.DepthStencilFormat.IsDepthStencil() {
		return fmt.Errorf("%w: %w: depth-stencil format %v", ErrPrecondition, ErrInvalidArgument, c.DepthStencilFormat)
	}
	return nil
}
