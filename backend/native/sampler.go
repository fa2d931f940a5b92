package native

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi"
	"github.com/gogpu/wgpu/hal"
)

// maxAnisotropy is the highest anisotropy HAL samplers accept.
const maxAnisotropy = 16

// Sampler is an immutable HAL sampler.
type Sampler struct {
	resource
	desc rhi.SamplerDesc
	raw  hal.Sampler
}

// Desc returns the description the sampler was created from.
func (s *Sampler) Desc() rhi.SamplerDesc { return s.desc }

// Raw returns the HAL sampler.
func (s *Sampler) Raw() hal.Sampler { return s.raw }

// samplerDescriptor translates desc. Parameters the HAL cannot express are
// logged and mapped to the nearest supported behaviour.
func (d *Device) samplerDescriptor(desc rhi.SamplerDesc) *hal.SamplerDescriptor {
	addr := func(axis string, m rhi.AddressMode) gputypes.AddressMode {
		out, exact := toAddressMode(m)
		if !exact {
			d.logger().Warn("native: sampler address mode not supported, using nearest",
				"axis", axis, "mode", m, "border", desc.BorderColor)
		}
		return out
	}
	hd := &hal.SamplerDescriptor{
		Label:        "rhi sampler",
		AddressModeU: addr("u", desc.AddressModeU),
		AddressModeV: addr("v", desc.AddressModeV),
		AddressModeW: addr("w", desc.AddressModeW),
		MagFilter:    toFilter(desc.FilterMag),
		MinFilter:    toFilter(desc.FilterMin),
		MipmapFilter: toFilter(desc.FilterMip),
		LodMinClamp:  desc.LodMin,
		LodMaxClamp:  desc.LodMax,
		Anisotropy:   1,
	}
	if hd.LodMaxClamp == 0 {
		hd.LodMaxClamp = 32
	}
	if desc.CompareEnabled {
		hd.Compare = toCompare(desc.CompareFunc)
	}
	if desc.AnisotropyEnabled {
		hd.Anisotropy = uint16(min(max(desc.AnisotropyMax, 1), maxAnisotropy))
	}
	if desc.LodMipBias != 0 {
		d.logger().Warn("native: sampler mip bias not supported, ignoring", "bias", desc.LodMipBias)
	}
	return hd
}

// CreateSampler creates a sampler. Address modes the HAL lacks map to
// their nearest equivalent.
func (d *Device) CreateSampler(desc rhi.SamplerDesc) (rhi.Sampler, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	if desc.LodMax != 0 && desc.LodMax < desc.LodMin {
		return nil, preconditionf("%w: lod range [%v, %v]", rhi.ErrInvalidArgument, desc.LodMin, desc.LodMax)
	}
	raw, err := d.device.CreateSampler(d.samplerDescriptor(desc))
	if err != nil {
		return nil, fatalf("create sampler: %w", err)
	}
	return &Sampler{resource: resource{dev: d}, desc: desc, raw: raw}, nil
}

// DestroySampler releases s.
func (d *Device) DestroySampler(s rhi.Sampler) error {
	smp, err := own[*Sampler](d, s, "sampler")
	if err != nil {
		return err
	}
	return d.release(smp, "sampler", func() { d.device.DestroySampler(smp.raw) })
}
