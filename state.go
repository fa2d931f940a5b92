package rhi

// PrimitiveTopology describes how vertices assemble into primitives.
type PrimitiveTopology uint8

// Primitive topologies.
const (
	PrimitiveTopologyTriangleList PrimitiveTopology = iota
	PrimitiveTopologyTriangleStrip
	PrimitiveTopologyLineList
	PrimitiveTopologyLineStrip
	PrimitiveTopologyPointList
)

// VertexAttribute places one shader input within a vertex.
type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

// VertexLayout describes one interleaved vertex stream. A zero Stride is
// computed from the attributes.
type VertexLayout struct {
	Stride     uint32
	Attributes []VertexAttribute
}

// ComputedStride returns Stride, or the end of the furthest attribute when
// Stride is zero.
func (l VertexLayout) ComputedStride() uint32 {
	if l.Stride != 0 {
		return l.Stride
	}
	var end uint32
	for _, a := range l.Attributes {
		end = max(end, a.Offset+a.Format.BytesPerPixel())
	}
	return end
}

// FillMode selects polygon rasterization.
type FillMode uint8

// Fill modes.
const (
	FillModeSolid FillMode = iota
	FillModeWireframe
)

// CullMode selects faces discarded before rasterization.
type CullMode uint8

// Cull modes.
const (
	CullModeNone CullMode = iota
	CullModeBack
	CullModeFront
)

// FrontFace selects the winding treated as front facing.
type FrontFace uint8

// Front faces.
const (
	FrontFaceCCW FrontFace = iota
	FrontFaceCW
)

// RasterizerState configures rasterization. DepthClampEnabled disables
// near/far plane clipping.
type RasterizerState struct {
	FillMode            FillMode
	CullMode            CullMode
	FrontFace           FrontFace
	DepthBias           int32
	DepthBiasSlopeScale float32
	DepthBiasClamp      float32
	DepthClampEnabled   bool
}

// BlendFactor weights a blend operand.
type BlendFactor uint8

// Blend factors.
const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSrcColor
	BlendFactorOneMinusSrcColor
	BlendFactorDstColor
	BlendFactorOneMinusDstColor
	BlendFactorSrcAlpha
	BlendFactorOneMinusSrcAlpha
	BlendFactorDstAlpha
	BlendFactorOneMinusDstAlpha
	BlendFactorConstant
	BlendFactorOneMinusConstant
	BlendFactorSrcAlphaSaturate
)

// BlendOp combines weighted source and destination.
type BlendOp uint8

// Blend operations.
const (
	BlendOpAdd BlendOp = iota
	BlendOpSubtract
	BlendOpReverseSubtract
	BlendOpMin
	BlendOpMax
)

// ColorWriteMask selects the channels written to a color attachment.
type ColorWriteMask uint8

// Color write mask bits.
const (
	ColorWriteR ColorWriteMask = 1 << iota
	ColorWriteG
	ColorWriteB
	ColorWriteA

	ColorWriteAll = ColorWriteR | ColorWriteG | ColorWriteB | ColorWriteA
)

// ColorBlendState configures blending for every color attachment of the
// pipeline's render pass.
type ColorBlendState struct {
	BlendEnabled        bool
	SrcColorBlendFactor BlendFactor
	DstColorBlendFactor BlendFactor
	ColorBlendOp        BlendOp
	SrcAlphaBlendFactor BlendFactor
	DstAlphaBlendFactor BlendFactor
	AlphaBlendOp        BlendOp
	// WriteMask zero means ColorWriteAll.
	WriteMask           ColorWriteMask
}

// CompareFunc compares a reference against a stored value.
type CompareFunc uint8

// Compare functions.
const (
	CompareFuncNever CompareFunc = iota
	CompareFuncLess
	CompareFuncEqual
	CompareFuncLessOrEqual
	CompareFuncGreater
	CompareFuncNotEqual
	CompareFuncGreaterOrEqual
	CompareFuncAlways
)

// StencilOp updates the stencil buffer.
type StencilOp uint8

// Stencil operations.
const (
	StencilOpKeep StencilOp = iota
	StencilOpZero
	StencilOpReplace
	StencilOpIncrementClamp
	StencilOpDecrementClamp
	StencilOpInvert
	StencilOpIncrementWrap
	StencilOpDecrementWrap
)

// StencilOpState configures one face of the stencil test.
type StencilOpState struct {
	FailOp      StencilOp
	PassOp      StencilOp
	DepthFailOp StencilOp
	CompareFunc CompareFunc
}

// DepthStencilState configures the depth and stencil tests.
type DepthStencilState struct {
	DepthEnabled      bool
	DepthWriteEnabled bool
	DepthFunc         CompareFunc
	StencilEnabled    bool
	StencilReadMask   uint32
	StencilWriteMask  uint32
	Front             StencilOpState
	Back              StencilOpState
}

// RenderPipelineDesc composes everything a render pipeline binds.
// Vertex is required; any other stage may be nil.
type RenderPipelineDesc struct {
	Topology       PrimitiveTopology
	VertexLayout   VertexLayout
	Rasterizer     RasterizerState
	ColorBlend     ColorBlendState
	DepthStencil   DepthStencilState
	RenderPass     RenderPass
	DescriptorSet  DescriptorSet
	Vertex         Shader
	TessControl    Shader
	TessEvaluation Shader
	Geometry       Shader
	Fragment       Shader
}
