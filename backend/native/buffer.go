package native

import (
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/internal/memory"
	"github.com/gogpu/wgpu/hal"
)

// copyAlignment is the granularity of buffer sizes, offsets and queue
// writes.
const copyAlignment = 4

// Buffer is a HAL buffer with its creation parameters.
//
// Host-visible buffers stay mapped for their whole life. When the HAL
// mapping is not coherent, Mapped returns a CPU shadow that is flushed to
// the buffer at every submit referencing it.
type Buffer struct {
	resource
	usage       rhi.BufferUsage
	size        uint64
	stride      uint64
	hostVisible bool
	state       ResourceState
	heap        memory.Heap

	raw    hal.Buffer
	alloc  *memory.Allocation
	mapped []byte
	shadow bool
}

// Buffer implements rhi.Buffer.
func (b *Buffer) Usage() rhi.BufferUsage { return b.usage }
func (b *Buffer) Size() uint64           { return b.size }
func (b *Buffer) Stride() uint64         { return b.stride }
func (b *Buffer) HostVisible() bool      { return b.hostVisible }
func (b *Buffer) Mapped() []byte         { return b.mapped }

// State returns the state the buffer was created in.
func (b *Buffer) State() ResourceState { return b.state }

// Raw returns the HAL buffer.
func (b *Buffer) Raw() hal.Buffer { return b.raw }

func (b *Buffer) indexFormat() rhi.IndexFormat {
	if b.stride == 4 {
		return rhi.IndexFormatUint32
	}
	return rhi.IndexFormatUint16
}

// bufferUsage returns the HAL usage for a buffer role.
func bufferUsage(usage rhi.BufferUsage, hostVisible bool) gputypes.BufferUsage {
	u := gputypes.BufferUsageCopyDst
	switch usage {
	case rhi.BufferUsageVertex:
		u |= gputypes.BufferUsageVertex
	case rhi.BufferUsageIndex:
		u |= gputypes.BufferUsageIndex
	case rhi.BufferUsageUniform:
		u |= gputypes.BufferUsageUniform
	default:
		u |= gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc
	}
	if hostVisible {
		u |= gputypes.BufferUsageMapWrite
	}
	return u
}

// CreateBuffer creates a buffer of at least size bytes. Vertex and index
// sizes round up to the stride, uniform sizes to rhi.UniformAlignment.
// Host-visible buffers stay mapped for their lifetime.
func (d *Device) CreateBuffer(usage rhi.BufferUsage, size, stride uint64, hostVisible, indexIs32Bit bool) (rhi.Buffer, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	b, err := d.newBuffer(usage, size, stride, hostVisible, indexIs32Bit)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CreateVertexBuffer creates a vertex buffer with the given stride.
func (d *Device) CreateVertexBuffer(size, vertexStride uint64, hostVisible bool) (rhi.Buffer, error) {
	return d.CreateBuffer(rhi.BufferUsageVertex, size, vertexStride, hostVisible, false)
}

// CreateIndexBuffer creates an index buffer of 16 or 32 bit indices.
func (d *Device) CreateIndexBuffer(size uint64, format rhi.IndexFormat, hostVisible bool) (rhi.Buffer, error) {
	return d.CreateBuffer(rhi.BufferUsageIndex, size, format.Stride(), hostVisible, format == rhi.IndexFormatUint32)
}

// CreateUniformBuffer creates a uniform buffer.
func (d *Device) CreateUniformBuffer(size uint64, hostVisible bool) (rhi.Buffer, error) {
	return d.CreateBuffer(rhi.BufferUsageUniform, size, 0, hostVisible, false)
}

func (d *Device) newBuffer(usage rhi.BufferUsage, size, stride uint64, hostVisible, indexIs32Bit bool) (*Buffer, error) {
	if size == 0 {
		return nil, preconditionf("%w: zero-sized %v buffer", rhi.ErrInvalidArgument, usage)
	}
	if usage > rhi.BufferUsageUniform {
		return nil, preconditionf("%w: buffer usage %v", rhi.ErrInvalidArgument, usage)
	}
	if usage == rhi.BufferUsageUniform {
		size = rhi.AlignUniformSize(size)
	}
	size = (size + copyAlignment - 1) &^ (copyAlignment - 1)
	if usage == rhi.BufferUsageIndex {
		stride = rhi.IndexFormatUint16.Stride()
		if indexIs32Bit {
			stride = rhi.IndexFormatUint32.Stride()
		}
	}

	heap := memory.HeapDefault
	if hostVisible {
		heap = memory.HeapUpload
	}
	alloc, err := d.mem.Alloc(heap, size)
	if err != nil {
		return nil, fatalf("%w: %v buffer of %d bytes: %w", rhi.ErrOutOfMemory, usage, size, err)
	}

	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "rhi " + usage.String() + " buffer",
		Size:  size,
		Usage: bufferUsage(usage, hostVisible),
	})
	if err != nil {
		_ = d.mem.Free(alloc)
		return nil, fatalf("create %v buffer: %w", usage, err)
	}

	b := &Buffer{
		resource:    resource{dev: d},
		usage:       usage,
		size:        size,
		stride:      stride,
		hostVisible: hostVisible,
		state:       initialBufferState(usage, hostVisible),
		heap:        heap,
		raw:         raw,
		alloc:       alloc,
	}
	if hostVisible {
		if err := d.mapBuffer(b); err != nil {
			d.device.DestroyBuffer(raw)
			_ = d.mem.Free(alloc)
			return nil, err
		}
	}
	d.logger().Debug("native: buffer created",
		"usage", usage, "size", size, "stride", stride, "heap", heap, "state", b.state)
	return b, nil
}

// mapBuffer maps b for its lifetime, falling back to a shadow copy when
// the mapping is not coherent.
func (d *Device) mapBuffer(b *Buffer) error {
	m, err := d.device.MapBuffer(b.raw, 0, b.size)
	if err != nil {
		return fatalf("map %v buffer: %w", b.usage, err)
	}
	if m.Ptr == nil {
		_ = d.device.UnmapBuffer(b.raw)
		return fatalf("map %v buffer: nil mapping", b.usage)
	}
	if m.IsCoherent {
		b.mapped = unsafe.Slice((*byte)(m.Ptr), b.size)
		return nil
	}
	if err := d.device.UnmapBuffer(b.raw); err != nil {
		return fatalf("unmap %v buffer: %w", b.usage, err)
	}
	b.mapped = make([]byte, b.size)
	b.shadow = true
	return nil
}

// DestroyBuffer releases buf and its memory once no pending submission
// uses it.
func (d *Device) DestroyBuffer(buf rhi.Buffer) error {
	b, err := own[*Buffer](d, buf, "buffer")
	if err != nil {
		return err
	}
	return d.release(b, "buffer", func() { d.freeBuffer(b) })
}

func (d *Device) freeBuffer(b *Buffer) {
	if b.hostVisible && !b.shadow {
		_ = d.device.UnmapBuffer(b.raw)
	}
	b.mapped = nil
	d.device.DestroyBuffer(b.raw)
	_ = d.mem.Free(b.alloc)
}

// WriteBuffer copies data into b at offset. Host-visible buffers are
// written through their mapping, others through the queue. Offset and
// length must be multiples of 4.
func (d *Device) WriteBuffer(buf rhi.Buffer, offset uint64, data []byte) error {
	if err := d.ready(); err != nil {
		return err
	}
	b, err := own[*Buffer](d, buf, "buffer")
	if err != nil {
		return err
	}
	n := uint64(len(data))
	if offset%copyAlignment != 0 || n%copyAlignment != 0 {
		return preconditionf("%w: write of %d bytes at %d is not %d-byte aligned",
			rhi.ErrInvalidArgument, n, offset, copyAlignment)
	}
	if offset > b.size || n > b.size-offset {
		return preconditionf("%w: write of %d bytes at %d exceeds buffer size %d",
			rhi.ErrInvalidArgument, n, offset, b.size)
	}
	if b.mapped != nil {
		copy(b.mapped[offset:], data)
		return nil
	}
	if err := d.queue.WriteBuffer(b.raw, offset, data); err != nil {
		return fatalf("write buffer: %w", err)
	}
	return nil
}

// flush uploads the shadow copy of a non-coherent mapped buffer.
func (d *Device) flush(b *Buffer) error {
	if !b.shadow {
		return nil
	}
	if err := d.queue.WriteBuffer(b.raw, 0, b.mapped); err != nil {
		return fatalf("flush mapped buffer: %w", err)
	}
	return nil
}
