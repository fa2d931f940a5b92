package rhi

import "fmt"

// DescriptorType is the kind of resource a descriptor binds.
type DescriptorType uint8

// Descriptor types.
const (
	DescriptorTypeUniform DescriptorType = iota
	DescriptorTypeStorage
	DescriptorTypeTexture
	DescriptorTypeSampler
)

func (t DescriptorType) String() string {
	switch t {
	case DescriptorTypeUniform:
		return "Uniform"
	case DescriptorTypeStorage:
		return "Storage"
	case DescriptorTypeTexture:
		return "Texture"
	case DescriptorTypeSampler:
		return "Sampler"
	}
	return fmt.Sprintf("DescriptorType(%d)", uint8(t))
}

// ShaderStages is a bitmask of shader stages.
type ShaderStages uint8

// Shader stage bits.
const (
	ShaderStageVertex ShaderStages = 1 << iota
	ShaderStageTessControl
	ShaderStageTessEvaluation
	ShaderStageGeometry
	ShaderStageFragment
	ShaderStageCompute

	ShaderStagesGraphics = ShaderStageVertex | ShaderStageTessControl |
		ShaderStageTessEvaluation | ShaderStageGeometry | ShaderStageFragment
)

func (s ShaderStages) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageTessControl:
		return "tess-control"
	case ShaderStageTessEvaluation:
		return "tess-evaluation"
	case ShaderStageGeometry:
		return "geometry"
	case ShaderStageFragment:
		return "fragment"
	case ShaderStageCompute:
		return "compute"
	}
	return fmt.Sprintf("ShaderStages(0x%x)", uint8(s))
}

// Descriptor binds one resource to a shader-visible slot. Exactly the
// field matching Type must be set.
type Descriptor struct {
	Type    DescriptorType
	Binding uint32
	Stages  ShaderStages
	Buffer  Buffer
	Texture Texture
	Sampler Sampler
}
