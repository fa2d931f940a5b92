// Package native implements rhi.GraphicsDevice over the gogpu/wgpu HAL.
//
// The backend registers itself with the rhi registry as "native" when the
// package is imported. The HAL API it drives (Vulkan, Metal, DX12, GLES,
// software or noop) is chosen from the HAL backends linked into the
// binary; import github.com/gogpu/wgpu/hal/allbackends to link them all.
//
//	import (
//	    "github.com/gogpu/rhi"
//	    _ "github.com/gogpu/rhi/backend/native"
//	    _ "github.com/gogpu/wgpu/hal/allbackends"
//	)
//
//	dev, err := rhi.Open("native")
//
// Devices can also be constructed directly with New and functional
// options, for example to adopt a HAL device created elsewhere:
//
//	dev := native.New(native.WithHALDevice(device, queue))
//
// # Timeline
//
// Fences, slot values and resource last-use marks are all HAL submission
// indices. A value is complete once Queue.PollCompleted reaches it. Waits
// poll with a short back-off and give up after the fence timeout.
//
// # Presentation
//
// A non-zero window handle presents through a HAL surface. A headless
// device renders into N device-owned images; Capture reads one back.
package native
