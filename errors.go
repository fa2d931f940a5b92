package rhi

import "errors"

// Error classes. Every error returned by a GraphicsDevice wraps exactly one
// of these; classify with errors.Is.
var (
	// ErrFatal marks an unrecoverable native failure: adapter, device,
	// queue, surface, swapchain, resource, shader or pipeline creation.
	// The failing call retains no partial state.
	ErrFatal = errors.New("rhi: fatal")

	// ErrPrecondition marks a programmer error detected before any native
	// call was made.
	ErrPrecondition = errors.New("rhi: precondition violated")
)

// Specific failures, wrapped together with their class.
var (
	ErrNotInitialized    = errors.New("rhi: device not initialized")
	ErrNoAdapter         = errors.New("rhi: no suitable adapter")
	ErrUndefinedFormat   = errors.New("rhi: undefined pixel format")
	ErrUnsupportedFormat = errors.New("rhi: pixel format not supported by backend")
	ErrUnsupportedStage  = errors.New("rhi: shader stage not supported by backend")
	ErrUnsupportedState  = errors.New("rhi: pipeline state not supported by backend")
	ErrOutOfMemory       = errors.New("rhi: memory budget exhausted")
	ErrDestroyed         = errors.New("rhi: resource already destroyed")
	ErrResourceInUse     = errors.New("rhi: resource referenced by pending work")
	ErrForeignResource   = errors.New("rhi: resource belongs to another backend")
	ErrNotRecording      = errors.New("rhi: command buffer not recording")
	ErrNotExecutable     = errors.New("rhi: command buffer not executable")
	ErrRenderPassActive  = errors.New("rhi: render scope is open")
	ErrNoRenderPass      = errors.New("rhi: no render scope is open")
	ErrStateMismatch     = errors.New("rhi: texture state mismatch")
	ErrNotSignaled       = errors.New("rhi: semaphore not signaled")
	ErrResizeInProgress  = errors.New("rhi: resize already in progress")
	ErrTimeout           = errors.New("rhi: wait timed out")
	ErrInvalidArgument   = errors.New("rhi: invalid argument")
)
