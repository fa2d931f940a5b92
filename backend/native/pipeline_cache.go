package native

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"
)

// pipelineEntry is a native pipeline shared by every RenderPipeline
// created from an equal description.
type pipelineEntry struct {
	key uint64

	setLayout hal.BindGroupLayout
	layout    hal.PipelineLayout
	raw       hal.RenderPipeline

	refs atomic.Int32
}

func (e *pipelineEntry) destroy(device hal.Device) {
	device.DestroyRenderPipeline(e.raw)
	device.DestroyPipelineLayout(e.layout)
	if e.setLayout != nil {
		device.DestroyBindGroupLayout(e.setLayout)
	}
}

// pipelineCache deduplicates render pipelines by description hash and
// reference counts the shared native pipelines.
//
// The cache is safe for concurrent use. It uses an RWMutex with
// double-check locking so hits only take the read lock.
type pipelineCache struct {
	mu      sync.RWMutex
	entries map[uint64]*pipelineEntry

	hits   uint64
	misses uint64
}

func newPipelineCache() *pipelineCache {
	return &pipelineCache{entries: make(map[uint64]*pipelineEntry)}
}

// acquire returns the entry for key, creating it with create on a miss.
// Every successful call takes one reference.
func (c *pipelineCache) acquire(key uint64, create func() (*pipelineEntry, error)) (*pipelineEntry, bool, error) {
	c.mu.RLock()
	if e, ok := c.entries[key]; ok {
		e.refs.Add(1)
		c.mu.RUnlock()
		atomic.AddUint64(&c.hits, 1)
		return e, true, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.refs.Add(1)
		atomic.AddUint64(&c.hits, 1)
		return e, true, nil
	}

	e, err := create()
	if err != nil {
		return nil, false, err
	}
	e.key = key
	e.refs.Store(1)
	c.entries[key] = e
	atomic.AddUint64(&c.misses, 1)
	return e, false, nil
}

// release drops one reference and destroys the entry with the last one.
func (c *pipelineCache) release(device hal.Device, e *pipelineEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.refs.Add(-1) > 0 {
		return
	}
	delete(c.entries, e.key)
	e.destroy(device)
}

// Stats returns the number of cache hits and misses.
func (c *pipelineCache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}

// HitRate returns the cache hit rate in [0, 1], or 0 before any lookup.
func (c *pipelineCache) HitRate() float64 {
	hits, misses := c.Stats()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// Size returns the number of live native pipelines.
func (c *pipelineCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// destroyAll destroys every native pipeline regardless of references.
func (c *pipelineCache) destroyAll(device hal.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		e.destroy(device)
	}
	c.entries = make(map[uint64]*pipelineEntry)
}

// hashBytes computes an FNV-1a hash of a byte slice.
func hashBytes(data []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return h.Sum64()
}

func hashWriteUint32(h hash.Hash64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, _ = h.Write(buf[:])
}

func hashWriteUint64(h hash.Hash64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}

func hashWriteFloat32(h hash.Hash64, v float32) {
	hashWriteUint32(h, math.Float32bits(v))
}

func hashWriteBool(h hash.Hash64, v bool) {
	if v {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
}
