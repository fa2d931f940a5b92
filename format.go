package rhi

import (
	"fmt"
	"math/bits"
)

// Format is a logical pixel format. Component order and bit widths are
// spelled out in the name; backends translate it to a native format.
type Format uint32

// Pixel formats.
const (
	FormatUndefined Format = iota
	FormatR8Unorm
	FormatR16Unorm
	FormatR16Float
	FormatR32Uint
	FormatR32Float
	FormatR8G8Unorm
	FormatR16G16Unorm
	FormatR16G16Float
	FormatR32G32Uint
	FormatR32G32Float
	FormatR32G32B32Uint
	FormatR32G32B32Float
	FormatB8G8R8A8Unorm
	FormatR8G8B8A8Unorm
	FormatR16G16B16A16Unorm
	FormatR16G16B16A16Float
	FormatR32G32B32A32Uint
	FormatR32G32B32A32Float
	FormatD16Unorm
	FormatX8D24UnormPack32
	FormatD32Float
	FormatD24UnormS8Uint
	FormatD32FloatS8Uint

	formatCount
)

var formatNames = [formatCount]string{
	"Undefined",
	"R8Unorm", "R16Unorm", "R16Float", "R32Uint", "R32Float",
	"R8G8Unorm", "R16G16Unorm", "R16G16Float", "R32G32Uint", "R32G32Float",
	"R32G32B32Uint", "R32G32B32Float",
	"B8G8R8A8Unorm", "R8G8B8A8Unorm", "R16G16B16A16Unorm", "R16G16B16A16Float",
	"R32G32B32A32Uint", "R32G32B32A32Float",
	"D16Unorm", "X8D24UnormPack32", "D32Float", "D24UnormS8Uint", "D32FloatS8Uint",
}

// Formats returns every enumerated format except FormatUndefined.
func Formats() []Format {
	out := make([]Format, 0, formatCount-1)
	for f := FormatUndefined + 1; f < formatCount; f++ {
		out = append(out, f)
	}
	return out
}

func (f Format) String() string {
	if f < formatCount {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", uint32(f))
}

// Valid reports whether f is an enumerated format other than undefined.
func (f Format) Valid() bool {
	return f > FormatUndefined && f < formatCount
}

// IsDepthStencil reports whether f carries a depth and/or stencil aspect.
func (f Format) IsDepthStencil() bool {
	switch f {
	case FormatD16Unorm, FormatX8D24UnormPack32, FormatD32Float,
		FormatD24UnormS8Uint, FormatD32FloatS8Uint:
		return true
	}
	return false
}

// HasStencil reports whether f carries a stencil aspect.
func (f Format) HasStencil() bool {
	return f == FormatD24UnormS8Uint || f == FormatD32FloatS8Uint
}

// BytesPerPixel returns the size of one texel, or 0 for undefined formats.
func (f Format) BytesPerPixel() uint32 {
	switch f {
	case FormatR8Unorm:
		return 1
	case FormatR16Unorm, FormatR16Float, FormatR8G8Unorm, FormatD16Unorm:
		return 2
	case FormatR32Uint, FormatR32Float, FormatR16G16Unorm, FormatR16G16Float,
		FormatB8G8R8A8Unorm, FormatR8G8B8A8Unorm,
		FormatX8D24UnormPack32, FormatD32Float, FormatD24UnormS8Uint:
		return 4
	case FormatR32G32Uint, FormatR32G32Float, FormatR16G16B16A16Unorm,
		FormatR16G16B16A16Float, FormatD32FloatS8Uint:
		return 8
	case FormatR32G32B32Uint, FormatR32G32B32Float:
		return 12
	case FormatR32G32B32A32Uint, FormatR32G32B32A32Float:
		return 16
	}
	return 0
}

// SampleCount selects a multisample level.
type SampleCount uint8

// Sample counts.
const (
	SampleCount1X SampleCount = iota
	SampleCount2X
	SampleCount4X
	SampleCount8X
	SampleCount16X
)

func (s SampleCount) String() string {
	switch s {
	case SampleCount1X:
		return "1x"
	case SampleCount2X:
		return "2x"
	case SampleCount4X:
		return "4x"
	case SampleCount8X:
		return "8x"
	case SampleCount16X:
		return "16x"
	}
	return fmt.Sprintf("SampleCount(%d)", uint8(s))
}

// Valid reports whether s is one of the enumerated sample counts.
func (s SampleCount) Valid() bool { return s <= SampleCount16X }

// MipLevelsMax requests a full mip chain from CreateTexture2D. Any mip
// count at or above it is replaced by ComputeMipLevels(width, height).
const MipLevelsMax = 16

// ComputeMipLevels returns floor(log2(max(width, height))) + 1, the length
// of a full mip chain. It returns 1 for empty extents.
func ComputeMipLevels(width, height uint32) uint32 {
	m := max(width, height)
	if m == 0 {
		return 1
	}
	return uint32(bits.Len32(m))
}
