package rhi

import (
	"fmt"
	"strings"
)

// TextureUsage is a bitmask of the accesses a texture supports.
type TextureUsage uint32

// Texture usage bits.
const (
	TextureUsageTransferSrc TextureUsage = 1 << iota
	TextureUsageTransferDst
	TextureUsageSampledImage
	TextureUsageStorage
	TextureUsageColorAttachment
	TextureUsageDepthStencilAttachment
	TextureUsageResolveSrc
	TextureUsageResolveDst

	// TextureUsageNone as a transition source discards the previous
	// contents; it is valid from any state.
	TextureUsageNone TextureUsage = 0

	textureUsageAll = TextureUsageTransferSrc | TextureUsageTransferDst |
		TextureUsageSampledImage | TextureUsageStorage |
		TextureUsageColorAttachment | TextureUsageDepthStencilAttachment |
		TextureUsageResolveSrc | TextureUsageResolveDst
)

var textureUsageNames = []string{
	"TransferSrc", "TransferDst", "SampledImage", "Storage",
	"ColorAttachment", "DepthStencilAttachment", "ResolveSrc", "ResolveDst",
}

// Has reports whether every bit of flag is set in u.
func (u TextureUsage) Has(flag TextureUsage) bool { return u&flag == flag }

func (u TextureUsage) String() string {
	if u == 0 {
		return "None"
	}
	var parts []string
	for i, name := range textureUsageNames {
		if u&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	if rest := u &^ textureUsageAll; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// BufferUsage is the role a buffer is created for.
type BufferUsage uint8

// Buffer usages.
const (
	BufferUsageNone BufferUsage = iota
	BufferUsageVertex
	BufferUsageIndex
	BufferUsageUniform
)

func (u BufferUsage) String() string {
	switch u {
	case BufferUsageNone:
		return "None"
	case BufferUsageVertex:
		return "Vertex"
	case BufferUsageIndex:
		return "Index"
	case BufferUsageUniform:
		return "Uniform"
	}
	return fmt.Sprintf("BufferUsage(%d)", uint8(u))
}

// IndexFormat selects 16- or 32-bit indices.
type IndexFormat uint8

// Index formats.
const (
	IndexFormatUint16 IndexFormat = iota
	IndexFormatUint32
)

// Stride returns the size in bytes of one index.
func (f IndexFormat) Stride() uint64 {
	if f == IndexFormatUint32 {
		return 4
	}
	return 2
}

// UniformAlignment is the granularity of uniform buffer sizes.
const UniformAlignment = 256

// AlignUniformSize rounds size up to the next multiple of UniformAlignment.
func AlignUniformSize(size uint64) uint64 {
	return (size + UniformAlignment - 1) &^ (UniformAlignment - 1)
}

// TextureType is the dimensionality of a texture.
type TextureType uint8

// Texture types.
const (
	TextureType1D TextureType = iota
	TextureType2D
	TextureType3D
)

func (t TextureType) String() string {
	switch t {
	case TextureType1D:
		return "1D"
	case TextureType2D:
		return "2D"
	case TextureType3D:
		return "3D"
	}
	return fmt.Sprintf("TextureType(%d)", uint8(t))
}

// ClearValue is the value an attachment is cleared to. Color is used for
// color attachments, Depth and Stencil for depth-stencil attachments.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// ClearColor returns a color clear value.
func ClearColor(r, g, b, a float32) ClearValue {
	return ClearValue{Color: [4]float32{r, g, b, a}}
}

// ClearDepthStencil returns a depth-stencil clear value.
func ClearDepthStencil(depth float32, stencil uint32) ClearValue {
	return ClearValue{Depth: depth, Stencil: stencil}
}
