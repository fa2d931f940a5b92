package native

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi"
	"github.com/gogpu/wgpu/hal"
)

// textureFormats is indexed by rhi.Format. Formats without a texture
// equivalent map to TextureFormatUndefined.
var textureFormats = [...]gputypes.TextureFormat{
	rhi.FormatUndefined:         gputypes.TextureFormatUndefined,
	rhi.FormatR8Unorm:           gputypes.TextureFormatR8Unorm,
	rhi.FormatR16Unorm:          gputypes.TextureFormatR16Unorm,
	rhi.FormatR16Float:          gputypes.TextureFormatR16Float,
	rhi.FormatR32Uint:           gputypes.TextureFormatR32Uint,
	rhi.FormatR32Float:          gputypes.TextureFormatR32Float,
	rhi.FormatR8G8Unorm:         gputypes.TextureFormatRG8Unorm,
	rhi.FormatR16G16Unorm:       gputypes.TextureFormatRG16Unorm,
	rhi.FormatR16G16Float:       gputypes.TextureFormatRG16Float,
	rhi.FormatR32G32Uint:        gputypes.TextureFormatRG32Uint,
	rhi.FormatR32G32Float:       gputypes.TextureFormatRG32Float,
	rhi.FormatR32G32B32Uint:     gputypes.TextureFormatUndefined,
	rhi.FormatR32G32B32Float:    gputypes.TextureFormatUndefined,
	rhi.FormatB8G8R8A8Unorm:     gputypes.TextureFormatBGRA8Unorm,
	rhi.FormatR8G8B8A8Unorm:     gputypes.TextureFormatRGBA8Unorm,
	rhi.FormatR16G16B16A16Unorm: gputypes.TextureFormatRGBA16Unorm,
	rhi.FormatR16G16B16A16Float: gputypes.TextureFormatRGBA16Float,
	rhi.FormatR32G32B32A32Uint:  gputypes.TextureFormatRGBA32Uint,
	rhi.FormatR32G32B32A32Float: gputypes.TextureFormatRGBA32Float,
	rhi.FormatD16Unorm:          gputypes.TextureFormatDepth16Unorm,
	rhi.FormatX8D24UnormPack32:  gputypes.TextureFormatDepth24Plus,
	rhi.FormatD32Float:          gputypes.TextureFormatDepth32Float,
	rhi.FormatD24UnormS8Uint:    gputypes.TextureFormatDepth24PlusStencil8,
	rhi.FormatD32FloatS8Uint:    gputypes.TextureFormatDepth32FloatStencil8,
}

// toFormat translates a logical format. It is total: values outside the
// enumeration yield TextureFormatUndefined.
func toFormat(f rhi.Format) gputypes.TextureFormat {
	if int(f) >= len(textureFormats) {
		return gputypes.TextureFormatUndefined
	}
	return textureFormats[f]
}

// fromFormat is the inverse of toFormat for formats the table maps.
func fromFormat(f gputypes.TextureFormat) rhi.Format {
	for i, tf := range textureFormats {
		if tf == f && tf != gputypes.TextureFormatUndefined {
			return rhi.Format(i)
		}
	}
	return rhi.FormatUndefined
}

var vertexFormats = [...]gputypes.VertexFormat{
	rhi.FormatR32Uint:           gputypes.VertexFormatUint32,
	rhi.FormatR32Float:          gputypes.VertexFormatFloat32,
	rhi.FormatR8G8Unorm:         gputypes.VertexFormatUnorm8x2,
	rhi.FormatR16G16Unorm:       gputypes.VertexFormatUnorm16x2,
	rhi.FormatR16G16Float:       gputypes.VertexFormatFloat16x2,
	rhi.FormatR32G32Uint:        gputypes.VertexFormatUint32x2,
	rhi.FormatR32G32Float:       gputypes.VertexFormatFloat32x2,
	rhi.FormatR32G32B32Uint:     gputypes.VertexFormatUint32x3,
	rhi.FormatR32G32B32Float:    gputypes.VertexFormatFloat32x3,
	rhi.FormatR8G8B8A8Unorm:     gputypes.VertexFormatUnorm8x4,
	rhi.FormatR16G16B16A16Unorm: gputypes.VertexFormatUnorm16x4,
	rhi.FormatR16G16B16A16Float: gputypes.VertexFormatFloat16x4,
	rhi.FormatR32G32B32A32Uint:  gputypes.VertexFormatUint32x4,
	rhi.FormatR32G32B32A32Float: gputypes.VertexFormatFloat32x4,
}

// toVertexFormat translates a vertex attribute format. Single-channel
// 8/16-bit, BGRA and depth formats have no vertex equivalent.
func toVertexFormat(f rhi.Format) gputypes.VertexFormat {
	if int(f) >= len(vertexFormats) {
		return gputypes.VertexFormatUndefined
	}
	return vertexFormats[f]
}

// toSampleCount maps each sample count to its value; anything else is 1.
func toSampleCount(s rhi.SampleCount) uint32 {
	switch s {
	case rhi.SampleCount2X:
		return 2
	case rhi.SampleCount4X:
		return 4
	case rhi.SampleCount8X:
		return 8
	case rhi.SampleCount16X:
		return 16
	}
	return 1
}

func toIndexFormat(f rhi.IndexFormat) gputypes.IndexFormat {
	if f == rhi.IndexFormatUint32 {
		return gputypes.IndexFormatUint32
	}
	return gputypes.IndexFormatUint16
}

func toTextureDimension(t rhi.TextureType) gputypes.TextureDimension {
	switch t {
	case rhi.TextureType1D:
		return gputypes.TextureDimension1D
	case rhi.TextureType3D:
		return gputypes.TextureDimension3D
	}
	return gputypes.TextureDimension2D
}

func toViewDimension(t rhi.TextureType) gputypes.TextureViewDimension {
	switch t {
	case rhi.TextureType1D:
		return gputypes.TextureViewDimension1D
	case rhi.TextureType3D:
		return gputypes.TextureViewDimension3D
	}
	return gputypes.TextureViewDimension2D
}

// toTextureUsage translates logical usage bits to HAL usage. Resolve and
// attachment usages all require RenderAttachment.
func toTextureUsage(u rhi.TextureUsage) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	if u.Has(rhi.TextureUsageTransferSrc) {
		out |= gputypes.TextureUsageCopySrc
	}
	if u.Has(rhi.TextureUsageTransferDst) {
		out |= gputypes.TextureUsageCopyDst
	}
	if u.Has(rhi.TextureUsageSampledImage) {
		out |= gputypes.TextureUsageTextureBinding
	}
	if u.Has(rhi.TextureUsageStorage) {
		out |= gputypes.TextureUsageStorageBinding
	}
	if u&(rhi.TextureUsageColorAttachment|rhi.TextureUsageDepthStencilAttachment|
		rhi.TextureUsageResolveSrc|rhi.TextureUsageResolveDst) != 0 {
		out |= gputypes.TextureUsageRenderAttachment
	}
	return out
}

func toCompare(f rhi.CompareFunc) gputypes.CompareFunction {
	switch f {
	case rhi.CompareFuncNever:
		return gputypes.CompareFunctionNever
	case rhi.CompareFuncLess:
		return gputypes.CompareFunctionLess
	case rhi.CompareFuncEqual:
		return gputypes.CompareFunctionEqual
	case rhi.CompareFuncLessOrEqual:
		return gputypes.CompareFunctionLessEqual
	case rhi.CompareFuncGreater:
		return gputypes.CompareFunctionGreater
	case rhi.CompareFuncNotEqual:
		return gputypes.CompareFunctionNotEqual
	case rhi.CompareFuncGreaterOrEqual:
		return gputypes.CompareFunctionGreaterEqual
	}
	return gputypes.CompareFunctionAlways
}

func toStencilOp(op rhi.StencilOp) hal.StencilOperation {
	switch op {
	case rhi.StencilOpZero:
		return hal.StencilOperationZero
	case rhi.StencilOpReplace:
		return hal.StencilOperationReplace
	case rhi.StencilOpIncrementClamp:
		return hal.StencilOperationIncrementClamp
	case rhi.StencilOpDecrementClamp:
		return hal.StencilOperationDecrementClamp
	case rhi.StencilOpInvert:
		return hal.StencilOperationInvert
	case rhi.StencilOpIncrementWrap:
		return hal.StencilOperationIncrementWrap
	case rhi.StencilOpDecrementWrap:
		return hal.StencilOperationDecrementWrap
	}
	return hal.StencilOperationKeep
}

func toStencilFace(s rhi.StencilOpState) hal.StencilFaceState {
	return hal.StencilFaceState{
		Compare:     toCompare(s.CompareFunc),
		FailOp:      toStencilOp(s.FailOp),
		DepthFailOp: toStencilOp(s.DepthFailOp),
		PassOp:      toStencilOp(s.PassOp),
	}
}

var blendFactors = [...]gputypes.BlendFactor{
	rhi.BlendFactorZero:             gputypes.BlendFactorZero,
	rhi.BlendFactorOne:              gputypes.BlendFactorOne,
	rhi.BlendFactorSrcColor:         gputypes.BlendFactorSrc,
	rhi.BlendFactorOneMinusSrcColor: gputypes.BlendFactorOneMinusSrc,
	rhi.BlendFactorDstColor:         gputypes.BlendFactorDst,
	rhi.BlendFactorOneMinusDstColor: gputypes.BlendFactorOneMinusDst,
	rhi.BlendFactorSrcAlpha:         gputypes.BlendFactorSrcAlpha,
	rhi.BlendFactorOneMinusSrcAlpha: gputypes.BlendFactorOneMinusSrcAlpha,
	rhi.BlendFactorDstAlpha:         gputypes.BlendFactorDstAlpha,
	rhi.BlendFactorOneMinusDstAlpha: gputypes.BlendFactorOneMinusDstAlpha,
	rhi.BlendFactorConstant:         gputypes.BlendFactorConstant,
	rhi.BlendFactorOneMinusConstant: gputypes.BlendFactorOneMinusConstant,
	rhi.BlendFactorSrcAlphaSaturate: gputypes.BlendFactorSrcAlphaSaturated,
}

func toBlendFactor(f rhi.BlendFactor) gputypes.BlendFactor {
	if int(f) >= len(blendFactors) {
		return gputypes.BlendFactorOne
	}
	return blendFactors[f]
}

func toBlendOp(op rhi.BlendOp) gputypes.BlendOperation {
	switch op {
	case rhi.BlendOpSubtract:
		return gputypes.BlendOperationSubtract
	case rhi.BlendOpReverseSubtract:
		return gputypes.BlendOperationReverseSubtract
	case rhi.BlendOpMin:
		return gputypes.BlendOperationMin
	case rhi.BlendOpMax:
		return gputypes.BlendOperationMax
	}
	return gputypes.BlendOperationAdd
}

// toColorTarget builds the HAL target for one color attachment.
func toColorTarget(format gputypes.TextureFormat, b rhi.ColorBlendState) gputypes.ColorTargetState {
	t := gputypes.ColorTargetState{
		Format:    format,
		WriteMask: toWriteMask(b.WriteMask),
	}
	if b.BlendEnabled {
		t.Blend = &gputypes.BlendState{
			Color: gputypes.BlendComponent{
				SrcFactor: toBlendFactor(b.SrcColorBlendFactor),
				DstFactor: toBlendFactor(b.DstColorBlendFactor),
				Operation: toBlendOp(b.ColorBlendOp),
			},
			Alpha: gputypes.BlendComponent{
				SrcFactor: toBlendFactor(b.SrcAlphaBlendFactor),
				DstFactor: toBlendFactor(b.DstAlphaBlendFactor),
				Operation: toBlendOp(b.AlphaBlendOp),
			},
		}
	}
	return t
}

func toWriteMask(m rhi.ColorWriteMask) gputypes.ColorWriteMask {
	if m == 0 {
		return gputypes.ColorWriteMaskAll
	}
	var out gputypes.ColorWriteMask
	if m&rhi.ColorWriteR != 0 {
		out |= gputypes.ColorWriteMaskRed
	}
	if m&rhi.ColorWriteG != 0 {
		out |= gputypes.ColorWriteMaskGreen
	}
	if m&rhi.ColorWriteB != 0 {
		out |= gputypes.ColorWriteMaskBlue
	}
	if m&rhi.ColorWriteA != 0 {
		out |= gputypes.ColorWriteMaskAlpha
	}
	return out
}

func toCull(c rhi.CullMode) gputypes.CullMode {
	switch c {
	case rhi.CullModeBack:
		return gputypes.CullModeBack
	case rhi.CullModeFront:
		return gputypes.CullModeFront
	}
	return gputypes.CullModeNone
}

func toFrontFace(f rhi.FrontFace) gputypes.FrontFace {
	if f == rhi.FrontFaceCW {
		return gputypes.FrontFaceCW
	}
	return gputypes.FrontFaceCCW
}

func toTopology(t rhi.PrimitiveTopology) gputypes.PrimitiveTopology {
	switch t {
	case rhi.PrimitiveTopologyTriangleStrip:
		return gputypes.PrimitiveTopologyTriangleStrip
	case rhi.PrimitiveTopologyLineList:
		return gputypes.PrimitiveTopologyLineList
	case rhi.PrimitiveTopologyLineStrip:
		return gputypes.PrimitiveTopologyLineStrip
	case rhi.PrimitiveTopologyPointList:
		return gputypes.PrimitiveTopologyPointList
	}
	return gputypes.PrimitiveTopologyTriangleList
}

func toFilter(f rhi.Filter) gputypes.FilterMode {
	if f == rhi.FilterLinear {
		return gputypes.FilterModeLinear
	}
	return gputypes.FilterModeNearest
}

// toAddressMode translates an address mode. The second result is false
// when the mode has no HAL equivalent and the nearest one was chosen.
func toAddressMode(m rhi.AddressMode) (gputypes.AddressMode, bool) {
	switch m {
	case rhi.AddressModeWrap:
		return gputypes.AddressModeRepeat, true
	case rhi.AddressModeMirror:
		return gputypes.AddressModeMirrorRepeat, true
	case rhi.AddressModeClampEdge:
		return gputypes.AddressModeClampToEdge, true
	case rhi.AddressModeMirrorOnce:
		return gputypes.AddressModeMirrorRepeat, false
	}
	return gputypes.AddressModeClampToEdge, false
}

// toShaderStages translates a stage mask for bind group visibility. An
// empty mask is visible to the vertex and fragment stages.
func toShaderStages(s rhi.ShaderStages) gputypes.ShaderStages {
	if s == 0 {
		return gputypes.ShaderStagesVertexFragment
	}
	var out gputypes.ShaderStages
	if s&rhi.ShaderStageVertex != 0 {
		out |= gputypes.ShaderStageVertex
	}
	if s&rhi.ShaderStageFragment != 0 {
		out |= gputypes.ShaderStageFragment
	}
	if s&rhi.ShaderStageCompute != 0 {
		out |= gputypes.ShaderStageCompute
	}
	return out
}
