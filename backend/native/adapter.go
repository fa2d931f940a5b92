package native

import (
	"cmp"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi"
	"github.com/gogpu/wgpu/hal"
)

// backendOrder is the HAL backend preference when none is configured.
var backendOrder = []gputypes.Backend{
	gputypes.BackendVulkan,
	gputypes.BackendMetal,
	gputypes.BackendDX12,
	gputypes.BackendGL,
	gputypes.BackendEmpty,
}

// adapterRank orders device types; higher is preferred.
func adapterRank(t gputypes.DeviceType) int {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return 4
	case gputypes.DeviceTypeIntegratedGPU:
		return 3
	case gputypes.DeviceTypeVirtualGPU:
		return 2
	case gputypes.DeviceTypeOther:
		return 1
	}
	return 0
}

// candidateBackends returns the registered HAL backends to try, in order.
func (d *Device) candidateBackends() ([]hal.Backend, error) {
	if d.opts.backendSet {
		b, ok := hal.GetBackend(d.opts.backend)
		if !ok {
			return nil, fatalf("%w: %v", ErrNoBackend, d.opts.backend)
		}
		return []hal.Backend{b}, nil
	}
	available := hal.AvailableBackends()
	var out []hal.Backend
	for _, v := range backendOrder {
		if !slices.Contains(available, v) {
			continue
		}
		if b, ok := hal.GetBackend(v); ok {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, fatalf("%w: none registered", ErrNoBackend)
	}
	return out, nil
}

// openDevice adopts the configured HAL device or opens one on the best
// adapter. It returns the presentation surface, nil when headless.
func (d *Device) openDevice(window rhi.WindowHandle, cfg rhi.Config, undo *cleanup) (hal.Surface, error) {
	if adopted, err := d.adoptDevice(); adopted || err != nil {
		if err != nil {
			return nil, err
		}
		if !window.Headless() {
			return nil, preconditionf("%w: %w: adopted devices present offscreen only",
				rhi.ErrInvalidArgument, ErrNoSurface)
		}
		undo.push(func() {
			d.device, d.queue, d.adopted = nil, nil, false
		})
		return nil, nil
	}

	backends, err := d.candidateBackends()
	if err != nil {
		return nil, err
	}
	var lastErr error
	for _, b := range backends {
		surface, err := d.openOn(b, window, cfg, undo)
		if err == nil {
			return surface, nil
		}
		lastErr = err
		d.logger().Debug("native: backend unusable", "backend", b.Variant(), "err", err)
	}
	return nil, lastErr
}

// adoptDevice takes the device from WithHALDevice or WithDeviceProvider.
func (d *Device) adoptDevice() (bool, error) {
	device, queue := d.opts.halDevice, d.opts.halQueue
	if p := d.opts.provider; p != nil && device == nil {
		var ok1, ok2 bool
		device, ok1 = p.Device().(hal.Device)
		queue, ok2 = p.Queue().(hal.Queue)
		if !ok1 || !ok2 {
			return false, fatalf("%w: provider device %T / queue %T are not HAL objects",
				rhi.ErrNoAdapter, p.Device(), p.Queue())
		}
	}
	if device == nil {
		return false, nil
	}
	if queue == nil {
		return false, preconditionf("%w: adopted device without a queue", rhi.ErrInvalidArgument)
	}
	d.device, d.queue, d.adopted = device, queue, true
	d.logger().Info("native: adopted HAL device")
	return true, nil
}

// openOn creates an instance on backend b, picks its best adapter and
// opens a device. Everything it creates is pushed on undo.
func (d *Device) openOn(b hal.Backend, window rhi.WindowHandle, cfg rhi.Config, undo *cleanup) (hal.Surface, error) {
	desc := &hal.InstanceDescriptor{
		Backends: gputypes.Backends(1) << b.Variant(),
	}
	if cfg.Validation {
		desc.Flags = gputypes.InstanceFlagsValidation | gputypes.InstanceFlagsDebug
	}
	instance, err := b.CreateInstance(desc)
	if err != nil {
		return nil, fatalf("%w: create %v instance: %w", rhi.ErrNoAdapter, b.Variant(), err)
	}

	var local cleanup
	ok := false
	defer func() {
		if !ok {
			local.run()
		}
	}()
	local.push(instance.Destroy)

	var surface hal.Surface
	if !window.Headless() {
		surface, err = instance.CreateSurface(window.Display, window.Window)
		if err != nil {
			return nil, fatalf("create surface: %w", err)
		}
		local.push(surface.Destroy)
	}

	exposed, err := d.selectAdapter(instance.EnumerateAdapters(surface))
	if err != nil {
		return nil, err
	}
	local.push(exposed.Adapter.Destroy)

	od, err := exposed.Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		return nil, fatalf("%w: open %s: %w", rhi.ErrNoAdapter, exposed.Info.Name, err)
	}
	local.push(od.Device.Destroy)

	d.instance, d.adapter, d.info = instance, exposed.Adapter, exposed.Info
	d.surface, d.device, d.queue = surface, od.Device, od.Queue
	ok = true
	undo.push(func() {
		local.run()
		d.instance, d.adapter, d.surface, d.device, d.queue = nil, nil, nil, nil, nil
		d.info = gputypes.AdapterInfo{}
	})
	d.logger().Info("native: adapter selected",
		"name", exposed.Info.Name, "vendor", exposed.Info.Vendor,
		"type", exposed.Info.DeviceType, "backend", exposed.Info.Backend)
	return surface, nil
}

// selectAdapter returns the highest ranked adapter. CPU adapters qualify
// only when software adapters are allowed.
func (d *Device) selectAdapter(adapters []hal.ExposedAdapter) (hal.ExposedAdapter, error) {
	var candidates []hal.ExposedAdapter
	for _, a := range adapters {
		if a.Info.DeviceType == gputypes.DeviceTypeCPU && !d.opts.allowSoftware {
			continue
		}
		candidates = append(candidates, a)
	}
	if len(candidates) == 0 {
		return hal.ExposedAdapter{}, fatalf("%w: %d adapters enumerated, none usable", rhi.ErrNoAdapter, len(adapters))
	}
	best := slices.MaxFunc(candidates, func(a, b hal.ExposedAdapter) int {
		return cmp.Compare(adapterRank(a.Info.DeviceType), adapterRank(b.Info.DeviceType))
	})
	if best.Info.DeviceType == gputypes.DeviceTypeCPU {
		d.logger().Warn("native: using software adapter", "name", best.Info.Name)
	}
	return best, nil
}

// closeDevice releases the surface, HAL device, adapter and instance
// unless the device was adopted.
func (d *Device) closeDevice() {
	if !d.adopted {
		if d.surface != nil {
			d.surface.Destroy()
		}
		if d.device != nil {
			d.device.Destroy()
		}
		if d.adapter != nil {
			d.adapter.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.instance, d.adapter, d.surface, d.device, d.queue = nil, nil, nil, nil, nil
}
