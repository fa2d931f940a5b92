package rhi

import "time"

// GraphicsDevice is the backend-neutral device contract. One value exists
// per application; each backend provides one implementation.
//
// Command entry points take the CommandBuffer they record into. A command
// buffer has a single writer between CmdBegin and CmdEnd; commands replay
// in exactly the order they were recorded.
type GraphicsDevice interface {
	// Initialize opens the native device, its queue and the swapchain.
	// It is a no-op once it has succeeded.
	Initialize(window WindowHandle, cfg Config) error
	IsInitialized() bool
	// IsResized reports whether the swapchain is settled and may be resized.
	IsResized() bool
	Width() uint32
	Height() uint32
	// Resize recreates the swapchain images after draining in-flight work.
	// Unchanged dimensions, or a device that is not resizable, make it a no-op.
	Resize(width, height uint32) error
	// WaitIdle blocks until fence completes, or all queued work when fence
	// is nil.
	WaitIdle(fence Fence) error
	// Destroy drains the queue and releases the device. It is idempotent.
	Destroy() error

	AcquireNextSwapchainImage(waitFence Fence, signalSemaphore Semaphore) (RenderPass, error)
	Present(waitSemaphores []Semaphore) error
	CurrentImageIndex() int
	ImageCount() int

	CreateCommandPool() (CommandPool, error)
	DestroyCommandPool(pool CommandPool) error
	Submit(commandBuffers []CommandBuffer, waitSemaphores, signalSemaphores []Semaphore) error
	// SignalFence makes fence complete once all work submitted so far has.
	SignalFence(fence Fence) error

	CmdBegin(cb CommandBuffer) error
	CmdEnd(cb CommandBuffer) error
	CmdBeginRender(cb CommandBuffer, pass RenderPass) error
	CmdEndRender(cb CommandBuffer) error
	CmdSetViewport(cb CommandBuffer, x, y, width, height, depthMin, depthMax float32) error
	CmdSetScissor(cb CommandBuffer, x, y, width, height uint32) error
	CmdClearColorAttachment(cb CommandBuffer, index uint32, clear ClearValue) error
	CmdBindRenderPipeline(cb CommandBuffer, pipeline RenderPipeline) error
	CmdBindDescriptorSet(cb CommandBuffer, pipeline RenderPipeline, set DescriptorSet) error
	CmdBindVertexBuffer(cb CommandBuffer, buffer Buffer) error
	CmdBindVertexBuffers(cb CommandBuffer, buffers []Buffer) error
	CmdBindIndexBuffer(cb CommandBuffer, buffer Buffer) error
	CmdDraw(cb CommandBuffer, vertexCount, vertexStart uint32) error
	CmdDrawIndexed(cb CommandBuffer, indexCount, indexStart uint32) error
	CmdTransitionImage(cb CommandBuffer, texture Texture, before, after TextureUsage) error

	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore) error
	CreateFence() (Fence, error)
	DestroyFence(f Fence) error
	WaitFence(f Fence, timeout time.Duration) error

	CreateBuffer(usage BufferUsage, size, stride uint64, hostVisible, indexIs32Bit bool) (Buffer, error)
	CreateVertexBuffer(size, vertexStride uint64, hostVisible bool) (Buffer, error)
	CreateIndexBuffer(size uint64, format IndexFormat, hostVisible bool) (Buffer, error)
	CreateUniformBuffer(size uint64, hostVisible bool) (Buffer, error)
	DestroyBuffer(b Buffer) error
	WriteBuffer(b Buffer, offset uint64, data []byte) error

	CreateTexture(desc TextureDesc) (Texture, error)
	CreateTexture1D(width, mipLevels uint32, format Format, usage TextureUsage, hostVisible bool) (Texture, error)
	CreateTexture2D(desc Texture2DDesc) (Texture, error)
	CreateTexture3D(width, height, depth uint32, format Format, usage TextureUsage, hostVisible bool) (Texture, error)
	DestroyTexture(t Texture) error
	WriteTexture(t Texture, mipLevel uint32, data []byte) error

	CreateRenderPass(desc RenderPassDesc) (RenderPass, error)
	DestroyRenderPass(p RenderPass) error
	CreateSampler(desc SamplerDesc) (Sampler, error)
	DestroySampler(s Sampler) error
	CreateShader(identifier string) (Shader, error)
	DestroyShader(s Shader) error
	CreateDescriptorSet(descriptors []Descriptor) (DescriptorSet, error)
	DestroyDescriptorSet(s DescriptorSet) error
	CreateRenderPipeline(desc RenderPipelineDesc) (RenderPipeline, error)
	DestroyRenderPipeline(p RenderPipeline) error
}

// TextureDesc describes a texture for CreateTexture. Backing, when set,
// is a native image owned by someone else (a swapchain); the texture then
// borrows it and never releases it.
type TextureDesc struct {
	Type        TextureType
	Width       uint32
	Height      uint32
	Depth       uint32
	MipLevels   uint32
	Format      Format
	Usage       TextureUsage
	SampleCount SampleCount
	ClearValue  ClearValue
	HostVisible bool
	Backing     any
}

// Texture2DDesc describes a 2D texture. MipLevels >= MipLevelsMax requests
// a full mip chain.
type Texture2DDesc struct {
	Width       uint32
	Height      uint32
	MipLevels   uint32
	Format      Format
	Usage       TextureUsage
	SampleCount SampleCount
	ClearValue  ClearValue
	HostVisible bool
}

// RenderPassDesc describes a render pass. Nil attachment slices make the
// pass allocate and own its attachments.
type RenderPassDesc struct {
	Width                       uint32
	Height                      uint32
	ColorAttachmentCount        int
	ColorFormat                 Format
	DepthStencilFormat          Format
	SampleCount                 SampleCount
	ColorAttachments            []Texture
	ColorMultisampleAttachments []Texture
	DepthStencilAttachment      Texture
}

// Buffer is a linear GPU allocation.
type Buffer interface {
	Usage() BufferUsage
	// Size is the allocated size after alignment padding.
	Size() uint64
	Stride() uint64
	HostVisible() bool
	// Mapped is the persistently mapped contents; nil unless host-visible.
	Mapped() []byte
}

// Texture is an image resource.
type Texture interface {
	Type() TextureType
	Width() uint32
	Height() uint32
	Depth() uint32
	MipLevels() uint32
	Format() Format
	Usage() TextureUsage
	SampleCount() SampleCount
	ClearValue() ClearValue
	HostVisible() bool
	// Owned reports whether the texture releases its native image.
	Owned() bool
}

// RenderPass is an immutable set of attachments.
type RenderPass interface {
	Width() uint32
	Height() uint32
	ColorAttachmentCount() int
	ColorFormat() Format
	DepthStencilFormat() Format
	SampleCount() SampleCount
	ColorAttachments() []Texture
	ColorMultisampleAttachments() []Texture
	DepthStencilAttachment() Texture
}

// Sampler is an immutable sampler state object.
type Sampler interface {
	Desc() SamplerDesc
}

// Shader is a loaded shader module for one stage.
type Shader interface {
	Identifier() string
	Stage() ShaderStages
}

// DescriptorSet is an immutable group of bound resources.
type DescriptorSet interface {
	Descriptors() []Descriptor
}

// RenderPipeline is an immutable pipeline state object.
type RenderPipeline interface {
	RenderPass() RenderPass
	DescriptorSet() DescriptorSet
}

// CommandPool allocates command buffers.
type CommandPool interface {
	AllocateCommandBuffer() (CommandBuffer, error)
	FreeCommandBuffer(cb CommandBuffer) error
}

// CommandBuffer is an ordered, replayable command list.
type CommandBuffer interface {
	// Len is the number of recorded commands.
	Len() int
}

// Fence is a CPU-observable completion point.
type Fence interface {
	Completed() bool
}

// Semaphore orders GPU work between submissions.
type Semaphore interface {
	Signaled() bool
}
