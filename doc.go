// Package rhi defines a render hardware interface: a uniform device,
// resource and command API over explicit native graphics backends.
//
// # Overview
//
// A [GraphicsDevice] owns the native device, its single command queue and
// an N-image swapchain. Applications create resources through the device,
// record commands into [CommandBuffer] values and submit them, then
// present the current swapchain image:
//
//	dev, err := rhi.Open("native")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := dev.Initialize(rhi.WindowHandle{}, rhi.DefaultConfig()); err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Destroy()
//
//	pass, err := dev.AcquireNextSwapchainImage(nil, imageReady)
//	// record into cb between CmdBegin and CmdEnd ...
//	err = dev.Submit([]rhi.CommandBuffer{cb}, []rhi.Semaphore{imageReady}, []rhi.Semaphore{renderDone})
//	err = dev.Present([]rhi.Semaphore{renderDone})
//
// Backends register themselves with [Register]; the reference backend lives
// in github.com/gogpu/rhi/backend/native and drives gogpu/wgpu's HAL.
//
// # Errors
//
// Failures fall into two classes. Errors wrapping [ErrFatal] report native
// creation failures; the failing call releases everything it created before
// returning. Errors wrapping [ErrPrecondition] report programmer errors and
// are returned before any native call is made. Use errors.Is to classify.
//
// # Synchronization
//
// Submission is asynchronous. The calling goroutine blocks only in
// WaitIdle, fence waits, swapchain acquire (which waits for the slot's
// previous work), Resize and Destroy.
//
// # Logging
//
// The package is silent by default. Call [SetLogger] to route diagnostics
// to a log/slog logger.
package rhi
