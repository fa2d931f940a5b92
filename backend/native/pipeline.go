package native

import (
	"hash/fnv"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi"
	"github.com/gogpu/wgpu/hal"
)

// RenderPipeline is a handle on a cached native pipeline. Equal
// descriptions share one native pipeline.
type RenderPipeline struct {
	resource
	desc  rhi.RenderPipelineDesc
	pass  *RenderPass
	set   *DescriptorSet
	entry *pipelineEntry
}

// RenderPass returns the pass the pipeline was built for.
func (p *RenderPipeline) RenderPass() rhi.RenderPass { return p.pass }

// DescriptorSet returns the set whose layout the pipeline uses, or nil.
func (p *RenderPipeline) DescriptorSet() rhi.DescriptorSet {
	if p.set == nil {
		return nil
	}
	return p.set
}

// Raw returns the native pipeline.
func (p *RenderPipeline) Raw() hal.RenderPipeline { return p.entry.raw }

// pipelineStages holds the resolved shader stages of a description.
type pipelineStages struct {
	vertex   *Shader
	fragment *Shader
}

func (d *Device) resolveStages(desc rhi.RenderPipelineDesc) (pipelineStages, error) {
	var st pipelineStages
	if desc.Vertex == nil {
		return st, preconditionf("%w: render pipeline without a vertex shader", rhi.ErrInvalidArgument)
	}
	for _, s := range []struct {
		shader rhi.Shader
		stage  rhi.ShaderStages
	}{
		{desc.TessControl, rhi.ShaderStageTessControl},
		{desc.TessEvaluation, rhi.ShaderStageTessEvaluation},
		{desc.Geometry, rhi.ShaderStageGeometry},
	} {
		if s.shader != nil {
			return st, fatalf("%w: %v", rhi.ErrUnsupportedStage, s.stage)
		}
	}
	vs, err := own[*Shader](d, desc.Vertex, "vertex shader")
	if err != nil {
		return st, err
	}
	if vs.stage != rhi.ShaderStageVertex {
		return st, preconditionf("%w: %v shader %q in vertex slot", rhi.ErrInvalidArgument, vs.stage, vs.identifier)
	}
	st.vertex = vs
	if desc.Fragment != nil {
		fs, err := own[*Shader](d, desc.Fragment, "fragment shader")
		if err != nil {
			return st, err
		}
		if fs.stage != rhi.ShaderStageFragment {
			return st, preconditionf("%w: %v shader %q in fragment slot", rhi.ErrInvalidArgument, fs.stage, fs.identifier)
		}
		st.fragment = fs
	}
	return st, nil
}

// vertexBuffers translates the single interleaved layout to slot 0.
func vertexBuffers(l rhi.VertexLayout) ([]gputypes.VertexBufferLayout, error) {
	if len(l.Attributes) == 0 {
		return nil, nil
	}
	attrs := make([]gputypes.VertexAttribute, len(l.Attributes))
	for i, a := range l.Attributes {
		f := toVertexFormat(a.Format)
		if f == gputypes.VertexFormatUndefined {
			return nil, preconditionf("%w: vertex attribute %d format %v", rhi.ErrUnsupportedFormat, i, a.Format)
		}
		attrs[i] = gputypes.VertexAttribute{
			Format:         f,
			Offset:         uint64(a.Offset),
			ShaderLocation: a.Location,
		}
	}
	return []gputypes.VertexBufferLayout{{
		ArrayStride: uint64(l.ComputedStride()),
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes:  attrs,
	}}, nil
}

func depthStencilState(pass *RenderPass, r rhi.RasterizerState, ds rhi.DepthStencilState) *hal.DepthStencilState {
	if pass.depthFormat == rhi.FormatUndefined {
		return nil
	}
	keep := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
	out := &hal.DepthStencilState{
		Format:              toFormat(pass.depthFormat),
		DepthCompare:        gputypes.CompareFunctionAlways,
		StencilFront:        keep,
		StencilBack:         keep,
		DepthBias:           r.DepthBias,
		DepthBiasSlopeScale: r.DepthBiasSlopeScale,
		DepthBiasClamp:      r.DepthBiasClamp,
	}
	if ds.DepthEnabled {
		out.DepthCompare = toCompare(ds.DepthFunc)
		out.DepthWriteEnabled = ds.DepthWriteEnabled
	}
	if ds.StencilEnabled && pass.depthFormat.HasStencil() {
		out.StencilFront = toStencilFace(ds.Front)
		out.StencilBack = toStencilFace(ds.Back)
		out.StencilReadMask = ds.StencilReadMask
		out.StencilWriteMask = ds.StencilWriteMask
	}
	return out
}

// pipelineKey hashes everything the native pipeline depends on.
func pipelineKey(desc rhi.RenderPipelineDesc, st pipelineStages, pass *RenderPass, set *DescriptorSet) uint64 {
	h := fnv.New64a()
	hashWriteUint32(h, uint32(desc.Topology))

	hashWriteUint32(h, desc.VertexLayout.ComputedStride())
	hashWriteUint32(h, uint32(len(desc.VertexLayout.Attributes)))
	for _, a := range desc.VertexLayout.Attributes {
		hashWriteUint32(h, a.Location)
		hashWriteUint32(h, uint32(a.Format))
		hashWriteUint32(h, a.Offset)
	}

	r := desc.Rasterizer
	hashWriteUint32(h, uint32(r.CullMode))
	hashWriteUint32(h, uint32(r.FrontFace))
	hashWriteUint32(h, uint32(r.DepthBias))
	hashWriteFloat32(h, r.DepthBiasSlopeScale)
	hashWriteFloat32(h, r.DepthBiasClamp)
	hashWriteBool(h, r.DepthClampEnabled)

	b := desc.ColorBlend
	hashWriteBool(h, b.BlendEnabled)
	for _, v := range []uint8{
		uint8(b.SrcColorBlendFactor), uint8(b.DstColorBlendFactor), uint8(b.ColorBlendOp),
		uint8(b.SrcAlphaBlendFactor), uint8(b.DstAlphaBlendFactor), uint8(b.AlphaBlendOp),
		uint8(b.WriteMask),
	} {
		hashWriteUint32(h, uint32(v))
	}

	ds := desc.DepthStencil
	hashWriteBool(h, ds.DepthEnabled)
	hashWriteBool(h, ds.DepthWriteEnabled)
	hashWriteUint32(h, uint32(ds.DepthFunc))
	hashWriteBool(h, ds.StencilEnabled)
	hashWriteUint32(h, ds.StencilReadMask)
	hashWriteUint32(h, ds.StencilWriteMask)
	for _, f := range []rhi.StencilOpState{ds.Front, ds.Back} {
		hashWriteUint32(h, uint32(f.FailOp)|uint32(f.PassOp)<<8|uint32(f.DepthFailOp)<<16|uint32(f.CompareFunc)<<24)
	}

	hashWriteUint32(h, uint32(pass.colorFormat))
	hashWriteUint32(h, uint32(len(pass.colors)))
	hashWriteUint32(h, uint32(pass.depthFormat))
	hashWriteUint32(h, uint32(pass.samples))

	if set != nil {
		hashWriteUint64(h, set.layoutKey)
	} else {
		hashWriteUint64(h, 0)
	}
	hashWriteUint64(h, st.vertex.codeHash)
	if st.fragment != nil {
		hashWriteUint64(h, st.fragment.codeHash)
	} else {
		hashWriteUint64(h, 0)
	}
	return h.Sum64()
}

// CreateRenderPipeline builds a pipeline, or shares the native pipeline of
// an equal earlier description.
func (d *Device) CreateRenderPipeline(desc rhi.RenderPipelineDesc) (rhi.RenderPipeline, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	st, err := d.resolveStages(desc)
	if err != nil {
		return nil, err
	}
	if desc.Rasterizer.FillMode == rhi.FillModeWireframe {
		return nil, fatalf("%w: wireframe fill", rhi.ErrUnsupportedState)
	}
	pass, err := own[*RenderPass](d, desc.RenderPass, "render pass")
	if err != nil {
		return nil, err
	}
	var set *DescriptorSet
	if desc.DescriptorSet != nil {
		if set, err = own[*DescriptorSet](d, desc.DescriptorSet, "descriptor set"); err != nil {
			return nil, err
		}
	}
	buffers, err := vertexBuffers(desc.VertexLayout)
	if err != nil {
		return nil, err
	}

	key := pipelineKey(desc, st, pass, set)
	entry, hit, err := d.pipelines.acquire(key, func() (*pipelineEntry, error) {
		return d.newPipelineEntry(desc, st, pass, set, buffers)
	})
	if err != nil {
		return nil, err
	}
	d.logger().Debug("native: render pipeline", "key", key, "cached", hit)
	return &RenderPipeline{
		resource: resource{dev: d},
		desc:     desc,
		pass:     pass,
		set:      set,
		entry:    entry,
	}, nil
}

func (d *Device) newPipelineEntry(desc rhi.RenderPipelineDesc, st pipelineStages, pass *RenderPass, set *DescriptorSet, buffers []gputypes.VertexBufferLayout) (*pipelineEntry, error) {
	e := &pipelineEntry{}
	var groups []hal.BindGroupLayout
	if set != nil {
		entries, err := layoutEntries(set.descriptors)
		if err != nil {
			return nil, err
		}
		e.setLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   "rhi pipeline set",
			Entries: entries,
		})
		if err != nil {
			return nil, fatalf("create bind group layout: %w", err)
		}
		groups = []hal.BindGroupLayout{e.setLayout}
	}
	var err error
	e.layout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "rhi pipeline layout",
		BindGroupLayouts: groups,
	})
	if err != nil {
		if e.setLayout != nil {
			d.device.DestroyBindGroupLayout(e.setLayout)
		}
		return nil, fatalf("create pipeline layout: %w", err)
	}

	hd := &hal.RenderPipelineDescriptor{
		Label:  "rhi render pipeline",
		Layout: e.layout,
		Vertex: hal.VertexState{
			Module:     st.vertex.raw,
			EntryPoint: ShaderEntryPoint,
			Buffers:    buffers,
		},
		Primitive: gputypes.PrimitiveState{
			Topology:       toTopology(desc.Topology),
			FrontFace:      toFrontFace(desc.Rasterizer.FrontFace),
			CullMode:       toCull(desc.Rasterizer.CullMode),
			UnclippedDepth: desc.Rasterizer.DepthClampEnabled,
		},
		DepthStencil: depthStencilState(pass, desc.Rasterizer, desc.DepthStencil),
		Multisample: gputypes.MultisampleState{
			Count: toSampleCount(pass.samples),
			Mask:  ^uint64(0),
		},
	}
	if st.fragment != nil {
		targets := make([]gputypes.ColorTargetState, len(pass.colors))
		for i := range targets {
			targets[i] = toColorTarget(toFormat(pass.colorFormat), desc.ColorBlend)
		}
		hd.Fragment = &hal.FragmentState{
			Module:     st.fragment.raw,
			EntryPoint: ShaderEntryPoint,
			Targets:    targets,
		}
	}
	e.raw, err = d.device.CreateRenderPipeline(hd)
	if err != nil {
		d.device.DestroyPipelineLayout(e.layout)
		if e.setLayout != nil {
			d.device.DestroyBindGroupLayout(e.setLayout)
		}
		return nil, fatalf("create render pipeline: %w", err)
	}
	return e, nil
}

// DestroyRenderPipeline drops the handle; the native pipeline goes with
// its last handle.
func (d *Device) DestroyRenderPipeline(rp rhi.RenderPipeline) error {
	p, err := own[*RenderPipeline](d, rp, "render pipeline")
	if err != nil {
		return err
	}
	return d.release(p, "render pipeline", func() { d.pipelines.release(d.device, p.entry) })
}
