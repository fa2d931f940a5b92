package native

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/rhi"
	"github.com/gogpu/wgpu/hal"
)

// ShaderEntryPoint is the entry point every shader stage is loaded with.
const ShaderEntryPoint = "main"

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// shaderStages maps identifier suffixes to stages.
var shaderStages = map[string]rhi.ShaderStages{
	".vert": rhi.ShaderStageVertex,
	".tesc": rhi.ShaderStageTessControl,
	".tese": rhi.ShaderStageTessEvaluation,
	".geom": rhi.ShaderStageGeometry,
	".frag": rhi.ShaderStageFragment,
	".comp": rhi.ShaderStageCompute,
}

// Shader is a HAL shader module for one stage.
type Shader struct {
	resource
	identifier string
	stage      rhi.ShaderStages
	codeHash   uint64
	raw        hal.ShaderModule
}

// Shader implements rhi.Shader.
func (s *Shader) Identifier() string      { return s.identifier }
func (s *Shader) Stage() rhi.ShaderStages { return s.stage }

// CodeHash returns the FNV-1a hash of the shader source.
func (s *Shader) CodeHash() uint64 { return s.codeHash }

// shaderStage returns the stage named by the identifier suffix.
func shaderStage(identifier string) (rhi.ShaderStages, error) {
	stage, ok := shaderStages[path.Ext(identifier)]
	if !ok {
		return 0, preconditionf("%w: shader %q has no stage suffix", rhi.ErrInvalidArgument, identifier)
	}
	return stage, nil
}

// CreateShader loads <dir>/<identifier>.wgsl, or <dir>/<identifier>.spv
// when no WGSL source exists, from the shader file system.
func (d *Device) CreateShader(identifier string) (rhi.Shader, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	stage, err := shaderStage(identifier)
	if err != nil {
		return nil, err
	}
	source, err := d.loadShader(identifier, stage)
	if err != nil {
		return nil, err
	}
	raw, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: identifier, Source: source.src})
	if err != nil {
		return nil, fatalf("create shader module %q: %w", identifier, err)
	}
	d.logger().Debug("native: shader loaded", "id", identifier, "stage", stage, "file", source.file)
	return &Shader{
		resource:   resource{dev: d},
		identifier: identifier,
		stage:      stage,
		codeHash:   source.hash,
		raw:        raw,
	}, nil
}

type shaderSource struct {
	file string
	src  hal.ShaderSource
	hash uint64
}

func (d *Device) loadShader(identifier string, stage rhi.ShaderStages) (shaderSource, error) {
	fsys := d.opts.shaders()
	base := path.Join(d.opts.shaderDir, identifier)

	file := base + ".wgsl"
	data, err := fs.ReadFile(fsys, file)
	if err == nil {
		if err := checkWGSL(d, identifier, string(data), stage); err != nil {
			return shaderSource{}, err
		}
		return shaderSource{file: file, src: hal.ShaderSource{WGSL: string(data)}, hash: hashBytes(data)}, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return shaderSource{}, fatalf("read shader %s: %w", file, err)
	}

	file = base + ".spv"
	data, err = fs.ReadFile(fsys, file)
	if err != nil {
		return shaderSource{}, fatalf("shader %q: no %s.wgsl or %s.spv: %w", identifier, base, base, err)
	}
	words, err := spirvWords(data)
	if err != nil {
		return shaderSource{}, fatalf("shader %s: %w", file, err)
	}
	return shaderSource{file: file, src: hal.ShaderSource{SPIRV: words}, hash: hashBytes(data)}, nil
}

var errBadSPIRV = errors.New("native: invalid SPIR-V")

// spirvWords converts little-endian SPIR-V bytes to words.
func spirvWords(data []byte) ([]uint32, error) {
	if len(data) < 4 || len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", errBadSPIRV, len(data))
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("%w: magic 0x%08x", errBadSPIRV, words[0])
	}
	return words, nil
}

// wgslStages maps the stages WGSL can express to naga stages.
var wgslStages = map[rhi.ShaderStages]ir.ShaderStage{
	rhi.ShaderStageVertex:   ir.StageVertex,
	rhi.ShaderStageFragment: ir.StageFragment,
	rhi.ShaderStageCompute:  ir.StageCompute,
}

// checkWGSL parses and lowers src with naga and requires a "main" entry
// point for stage. Validator findings are reported as warnings; the HAL
// compiles the source itself.
func checkWGSL(d *Device, identifier, src string, stage rhi.ShaderStages) error {
	want, ok := wgslStages[stage]
	if !ok {
		return fatalf("%w: WGSL has no %v stage (shader %q)", rhi.ErrUnsupportedStage, stage, identifier)
	}
	ast, err := naga.Parse(src)
	if err != nil {
		return fatalf("parse shader %q: %w", identifier, err)
	}
	module, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return fatalf("lower shader %q: %w", identifier, err)
	}
	found := false
	for _, ep := range module.EntryPoints {
		if ep.Name == ShaderEntryPoint && ep.Stage == want {
			found = true
			break
		}
	}
	if !found {
		return fatalf("%w: shader %q has no %v entry point %q",
			rhi.ErrInvalidArgument, identifier, stage, ShaderEntryPoint)
	}
	issues, err := naga.Validate(module)
	if err != nil {
		d.logger().Warn("native: shader validation failed", "id", identifier, "err", err)
	}
	for _, issue := range issues {
		d.logger().Warn("native: shader validation", "id", identifier, "function", issue.Function, "msg", issue.Message)
	}
	return nil
}

// DestroyShader releases s once no pending submission uses it.
func (d *Device) DestroyShader(s rhi.Shader) error {
	sh, err := own[*Shader](d, s, "shader")
	if err != nil {
		return err
	}
	return d.release(sh, "shader", func() { d.device.DestroyShaderModule(sh.raw) })
}
