package rhi

// Filter selects texel filtering.
type Filter uint8

// Filters.
const (
	FilterNearest Filter = iota
	FilterLinear
)

// AddressMode selects how coordinates outside [0, 1] resolve.
type AddressMode uint8

// Address modes.
const (
	AddressModeWrap AddressMode = iota
	AddressModeMirror
	AddressModeClampEdge
	AddressModeClampBorder
	AddressModeMirrorOnce
)

// BorderColor is the color sampled outside the texture with
// AddressModeClampBorder.
type BorderColor uint8

// Border colors.
const (
	BorderColorBlackTransparent BorderColor = iota
	BorderColorBlackOpaque
	BorderColorWhiteOpaque
)

// SamplerDesc describes a sampler. Zero LodMax means no upper clamp.
type SamplerDesc struct {
	FilterMag         Filter
	FilterMin         Filter
	FilterMip         Filter
	AddressModeU      AddressMode
	AddressModeV      AddressMode
	AddressModeW      AddressMode
	BorderColor       BorderColor
	CompareEnabled    bool
	CompareFunc       CompareFunc
	AnisotropyEnabled bool
	AnisotropyMax     float32
	LodMin            float32
	LodMax            float32
	LodMipBias        float32
}

// DefaultSamplerDesc returns a trilinear, wrapping sampler.
func DefaultSamplerDesc() SamplerDesc {
	return SamplerDesc{
		FilterMag: FilterLinear,
		FilterMin: FilterLinear,
		FilterMip: FilterLinear,
		LodMax:    1000,
	}
}
