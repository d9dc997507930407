package pipeline

import (
	"fmt"

	"chosenoffset.com/fieldrender/internal/render"
	"chosenoffset.com/fieldrender/internal/tile"
)

const initialInstanceCapacity = 4096

// Triangle-strip corners of the unit quad every instance expands.
var unitQuad = []float32{0, 0, 1, 0, 0, 1, 1, 1}

// BufferStats describes instance buffer usage.
type BufferStats struct {
	Capacity        int
	Count           int
	BufferSizeBytes int
	Utilization     float64
}

// BufferManager owns the static quad and the growable instance buffer.
type BufferManager struct {
	dev       render.Device
	quad      render.VertexBuffer
	instances render.InstanceBuffer
	capacity  int
	count     int
	packed    []float32
}

// NewBufferManager creates the quad and an instance buffer of the initial
// capacity.
func NewBufferManager(dev render.Device) (*BufferManager, error) {
	m := &BufferManager{dev: dev}
	if err := m.Reset(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reset recreates both buffers, as after a context restore.
func (m *BufferManager) Reset() error {
	quad, err := m.dev.NewVertexBuffer(unitQuad)
	if err != nil {
		return fmt.Errorf("failed to create quad buffer: %w", err)
	}
	inst, err := m.dev.NewInstanceBuffer(initialInstanceCapacity)
	if err != nil {
		quad.Dispose()
		return fmt.Errorf("failed to create instance buffer: %w", err)
	}
	m.quad, m.instances = quad, inst
	m.capacity = initialInstanceCapacity
	m.count = 0
	return nil
}

// EnsureCapacity doubles the instance buffer until it holds n records.
// Capacity never shrinks.
func (m *BufferManager) EnsureCapacity(n int) error {
	if n <= m.capacity {
		return nil
	}
	next := max(m.capacity, initialInstanceCapacity)
	for next < n {
		next *= 2
	}
	inst, err := m.dev.NewInstanceBuffer(next)
	if err != nil {
		return fmt.Errorf("failed to grow instance buffer to %d: %w", next, err)
	}
	if m.instances != nil {
		m.instances.Dispose()
	}
	log().WithField("capacity", next).Debug("Instance buffer grown")
	m.instances = inst
	m.capacity = next
	return nil
}

// UpdateInstanceBuffer packs and uploads list.
func (m *BufferManager) UpdateInstanceBuffer(list []tile.Instance) error {
	if err := m.EnsureCapacity(len(list)); err != nil {
		return err
	}
	m.packed = tile.PackAll(m.packed, list)
	if err := m.instances.Upload(m.packed, len(list)); err != nil {
		return err
	}
	m.count = len(list)
	return nil
}

// Draw issues one instanced draw of the uploaded records.
func (m *BufferManager) Draw(program render.Program, pairs []render.PairTextures) error {
	if m.count == 0 {
		return nil
	}
	return m.dev.DrawInstanced(&render.InstancedDraw{
		Program:   program,
		Quad:      m.quad,
		Instances: m.instances,
		Count:     m.count,
		Pairs:     pairs,
	})
}

// Stats reports capacity and usage.
func (m *BufferManager) Stats() BufferStats {
	s := BufferStats{
		Capacity:        m.capacity,
		Count:           m.count,
		BufferSizeBytes: m.capacity * tile.FloatsPerInstance * 4,
	}
	if m.capacity > 0 {
		s.Utilization = float64(m.count) / float64(m.capacity)
	}
	return s
}

// Dispose releases both buffers.
func (m *BufferManager) Dispose() {
	if m.quad != nil {
		m.quad.Dispose()
		m.quad = nil
	}
	if m.instances != nil {
		m.instances.Dispose()
		m.instances = nil
	}
	m.capacity, m.count = 0, 0
}
