package native

import (
	"hash/fnv"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi"
	"github.com/gogpu/wgpu/hal"
)

// DescriptorSet is a HAL bind group with its own layout. It binds to
// group 0 of a pipeline.
type DescriptorSet struct {
	resource
	descriptors []rhi.Descriptor
	layoutKey   uint64

	layout hal.BindGroupLayout
	group  hal.BindGroup
}

// Descriptors returns a copy of the bound descriptors.
func (s *DescriptorSet) Descriptors() []rhi.Descriptor { return slices.Clone(s.descriptors) }

// LayoutKey identifies the layout of the set; sets with equal keys are
// interchangeable in a pipeline.
func (s *DescriptorSet) LayoutKey() uint64 { return s.layoutKey }

// layoutEntries validates descriptors and builds their layout entries.
func layoutEntries(descriptors []rhi.Descriptor) ([]gputypes.BindGroupLayoutEntry, error) {
	entries := make([]gputypes.BindGroupLayoutEntry, 0, len(descriptors))
	seen := make(map[uint32]bool, len(descriptors))
	for i, desc := range descriptors {
		if seen[desc.Binding] {
			return nil, preconditionf("%w: descriptor %d: duplicate binding %d", rhi.ErrInvalidArgument, i, desc.Binding)
		}
		seen[desc.Binding] = true
		e := gputypes.BindGroupLayoutEntry{
			Binding:    desc.Binding,
			Visibility: toShaderStages(desc.Stages),
		}
		switch desc.Type {
		case rhi.DescriptorTypeUniform, rhi.DescriptorTypeStorage:
			if desc.Buffer == nil || desc.Texture != nil || desc.Sampler != nil {
				return nil, mismatched(i, desc)
			}
			kind := gputypes.BufferBindingTypeUniform
			if desc.Type == rhi.DescriptorTypeStorage {
				kind = gputypes.BufferBindingTypeReadOnlyStorage
			}
			e.Buffer = &gputypes.BufferBindingLayout{Type: kind}
		case rhi.DescriptorTypeTexture:
			if desc.Texture == nil || desc.Buffer != nil || desc.Sampler != nil {
				return nil, mismatched(i, desc)
			}
			e.Texture = &gputypes.TextureBindingLayout{
				SampleType:    textureSampleType(desc.Texture.Format()),
				ViewDimension: toViewDimension(desc.Texture.Type()),
				Multisampled:  desc.Texture.SampleCount() > rhi.SampleCount1X,
			}
		case rhi.DescriptorTypeSampler:
			if desc.Sampler == nil || desc.Buffer != nil || desc.Texture != nil {
				return nil, mismatched(i, desc)
			}
			kind := gputypes.SamplerBindingTypeFiltering
			if desc.Sampler.Desc().CompareEnabled {
				kind = gputypes.SamplerBindingTypeComparison
			}
			e.Sampler = &gputypes.SamplerBindingLayout{Type: kind}
		default:
			return nil, preconditionf("%w: descriptor %d: type %v", rhi.ErrInvalidArgument, i, desc.Type)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func mismatched(i int, desc rhi.Descriptor) error {
	return preconditionf("%w: descriptor %d: %v binding %d needs exactly one matching resource",
		rhi.ErrInvalidArgument, i, desc.Type, desc.Binding)
}

func textureSampleType(f rhi.Format) gputypes.TextureSampleType {
	switch {
	case f.IsDepthStencil():
		return gputypes.TextureSampleTypeDepth
	case f == rhi.FormatR32Uint || f == rhi.FormatR32G32Uint || f == rhi.FormatR32G32B32A32Uint:
		return gputypes.TextureSampleTypeUint
	case f == rhi.FormatR32Float || f == rhi.FormatR32G32Float || f == rhi.FormatR32G32B32A32Float:
		return gputypes.TextureSampleTypeUnfilterableFloat
	}
	return gputypes.TextureSampleTypeFloat
}

// hashLayout keys a layout by its entries in binding order.
func hashLayout(entries []gputypes.BindGroupLayoutEntry) uint64 {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b gputypes.BindGroupLayoutEntry) int {
		return int(a.Binding) - int(b.Binding)
	})
	h := fnv.New64a()
	hashWriteUint32(h, uint32(len(sorted)))
	for _, e := range sorted {
		hashWriteUint32(h, e.Binding)
		hashWriteUint32(h, uint32(e.Visibility))
		switch {
		case e.Buffer != nil:
			hashWriteUint32(h, 1)
			hashWriteUint32(h, uint32(e.Buffer.Type))
		case e.Texture != nil:
			hashWriteUint32(h, 2)
			hashWriteUint32(h, uint32(e.Texture.SampleType))
			hashWriteUint32(h, uint32(e.Texture.ViewDimension))
			hashWriteBool(h, e.Texture.Multisampled)
		case e.Sampler != nil:
			hashWriteUint32(h, 3)
			hashWriteUint32(h, uint32(e.Sampler.Type))
		}
	}
	return h.Sum64()
}

// CreateDescriptorSet validates descriptors and builds a bind group for
// them. Bindings must be unique and each descriptor names one resource.
func (d *Device) CreateDescriptorSet(descriptors []rhi.Descriptor) (rhi.DescriptorSet, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	entries, err := layoutEntries(descriptors)
	if err != nil {
		return nil, err
	}
	bindings := make([]gputypes.BindGroupEntry, len(descriptors))
	for i, desc := range descriptors {
		res, err := d.bindingResource(desc)
		if err != nil {
			return nil, err
		}
		bindings[i] = gputypes.BindGroupEntry{Binding: desc.Binding, Resource: res}
	}

	layout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Label: "rhi descriptor set", Entries: entries})
	if err != nil {
		return nil, fatalf("create bind group layout: %w", err)
	}
	group, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "rhi descriptor set",
		Layout:  layout,
		Entries: bindings,
	})
	if err != nil {
		d.device.DestroyBindGroupLayout(layout)
		return nil, fatalf("create bind group: %w", err)
	}
	return &DescriptorSet{
		resource:    resource{dev: d},
		descriptors: slices.Clone(descriptors),
		layoutKey:   hashLayout(entries),
		layout:      layout,
		group:       group,
	}, nil
}

func (d *Device) bindingResource(desc rhi.Descriptor) (gputypes.BindingResource, error) {
	switch desc.Type {
	case rhi.DescriptorTypeUniform, rhi.DescriptorTypeStorage:
		b, err := own[*Buffer](d, desc.Buffer, "descriptor buffer")
		if err != nil {
			return nil, err
		}
		return gputypes.BufferBinding{Buffer: b.raw.NativeHandle(), Size: b.size}, nil
	case rhi.DescriptorTypeTexture:
		t, err := own[*Texture](d, desc.Texture, "descriptor texture")
		if err != nil {
			return nil, err
		}
		if !t.desc.Usage.Has(rhi.TextureUsageSampledImage) {
			return nil, preconditionf("%w: binding %d: texture usage %v lacks SampledImage",
				rhi.ErrInvalidArgument, desc.Binding, t.desc.Usage)
		}
		return gputypes.TextureViewBinding{TextureView: t.view.NativeHandle()}, nil
	default:
		s, err := own[*Sampler](d, desc.Sampler, "descriptor sampler")
		if err != nil {
			return nil, err
		}
		return gputypes.SamplerBinding{Sampler: s.raw.NativeHandle()}, nil
	}
}

// DestroyDescriptorSet releases s once no pending submission uses it.
func (d *Device) DestroyDescriptorSet(s rhi.DescriptorSet) error {
	set, err := own[*DescriptorSet](d, s, "descriptor set")
	if err != nil {
		return err
	}
	return d.release(set, "descriptor set", func() {
		d.device.DestroyBindGroup(set.group)
		d.device.DestroyBindGroupLayout(set.layout)
	})
}
