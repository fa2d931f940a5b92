package native

import (
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi"
)

// ResourceState is the access state a resource is in on the queue. It is
// the unit the device tracks between submissions and the source of every
// texture barrier the backend records.
type ResourceState uint32

// Resource states.
const (
	ResourceStateCommon ResourceState = 0

	ResourceStateVertexAndConstantBuffer ResourceState = 1 << (iota - 1)
	ResourceStateIndexBuffer
	ResourceStateRenderTarget
	ResourceStateUnorderedAccess
	ResourceStateDepthWrite
	ResourceStateNonPixelShaderResource
	ResourceStatePixelShaderResource
	ResourceStateCopyDest
	ResourceStateCopySource
	ResourceStateResolveDest
	ResourceStateResolveSource

	// ResourceStateGenericRead is the state of host-visible buffers.
	ResourceStateGenericRead = ResourceStateVertexAndConstantBuffer |
		ResourceStateIndexBuffer | ResourceStateNonPixelShaderResource |
		ResourceStatePixelShaderResource | ResourceStateCopySource
)

var resourceStateNames = []string{
	"VertexAndConstantBuffer", "IndexBuffer", "RenderTarget", "UnorderedAccess",
	"DepthWrite", "NonPixelShaderResource", "PixelShaderResource", "CopyDest",
	"CopySource", "ResolveDest", "ResolveSource",
}

// String joins the names of the set states with '|'.
func (s ResourceState) String() string {
	if s == ResourceStateCommon {
		return "Common"
	}
	if s == ResourceStateGenericRead {
		return "GenericRead"
	}
	var parts []string
	for i, name := range resourceStateNames {
		if s&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// usageStates maps each texture usage bit to its state contribution.
var usageStates = [...]struct {
	usage rhi.TextureUsage
	state ResourceState
}{
	{rhi.TextureUsageTransferSrc, ResourceStateCopySource},
	{rhi.TextureUsageTransferDst, ResourceStateCopyDest},
	{rhi.TextureUsageSampledImage, ResourceStatePixelShaderResource | ResourceStateNonPixelShaderResource},
	{rhi.TextureUsageStorage, ResourceStateUnorderedAccess},
	{rhi.TextureUsageColorAttachment, ResourceStateRenderTarget},
	{rhi.TextureUsageDepthStencilAttachment, ResourceStateDepthWrite},
	{rhi.TextureUsageResolveSrc, ResourceStateResolveSource},
	{rhi.TextureUsageResolveDst, ResourceStateResolveDest},
}

// toResourceStates ORs the state of every usage bit in u. An empty mask is
// ResourceStateCommon.
func toResourceStates(u rhi.TextureUsage) ResourceState {
	var s ResourceState
	for _, e := range usageStates {
		if u&e.usage != 0 {
			s |= e.state
		}
	}
	return s
}

// stateUsage converts a state to the HAL usage a texture barrier names.
// Common has no HAL usage and maps to zero, which HAL barriers treat as
// undefined contents.
func stateUsage(s ResourceState) gputypes.TextureUsage {
	var u gputypes.TextureUsage
	if s&ResourceStateCopySource != 0 {
		u |= gputypes.TextureUsageCopySrc
	}
	if s&ResourceStateCopyDest != 0 {
		u |= gputypes.TextureUsageCopyDst
	}
	if s&(ResourceStatePixelShaderResource|ResourceStateNonPixelShaderResource) != 0 {
		u |= gputypes.TextureUsageTextureBinding
	}
	if s&ResourceStateUnorderedAccess != 0 {
		u |= gputypes.TextureUsageStorageBinding
	}
	if s&(ResourceStateRenderTarget|ResourceStateDepthWrite|ResourceStateResolveSource|ResourceStateResolveDest) != 0 {
		u |= gputypes.TextureUsageRenderAttachment
	}
	return u
}

// initialBufferState is the state a new buffer starts in.
func initialBufferState(usage rhi.BufferUsage, hostVisible bool) ResourceState {
	if hostVisible {
		return ResourceStateGenericRead
	}
	switch usage {
	case rhi.BufferUsageVertex, rhi.BufferUsageUniform:
		return ResourceStateVertexAndConstantBuffer
	case rhi.BufferUsageIndex:
		return ResourceStateIndexBuffer
	}
	return ResourceStateCopyDest
}
