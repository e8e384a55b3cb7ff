package scene

import (
	"errors"
	"fmt"

	"Trigon/internal/hal"
)

// ErrTooFewVertices is returned for a model that cannot form a triangle.
var ErrTooFewVertices = errors.New("model needs at least 3 vertices")

// Model is a vertex buffer drawn as a triangle list. Models may be shared
// between objects.
type Model struct {
	buffer      hal.Buffer
	vertexCount uint32
}

// NewModel uploads vertices into a device-local vertex buffer.
func NewModel(device hal.Device, vertices []Vertex) (*Model, error) {
	if len(vertices) < 3 {
		return nil, fmt.Errorf("create model with %d vertices: %w", len(vertices), ErrTooFewVertices)
	}
	data := EncodeVertices(vertices)

	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Size:     uint64(len(data)),
		Usage:    hal.BufferUsageVertex | hal.BufferUsageTransferDst,
		Location: hal.MemoryDeviceLocal,
	})
	if err != nil {
		return nil, fmt.Errorf("create vertex buffer: %w", err)
	}
	if err := buf.Write(data); err != nil {
		buf.Destroy()
		return nil, fmt.Errorf("upload vertices: %w", err)
	}
	return &Model{buffer: buf, vertexCount: uint32(len(vertices))}, nil
}

func (m *Model) Bind(cb hal.CommandBuffer) {
	cb.BindVertexBuffers(m.buffer)
}

func (m *Model) Draw(cb hal.CommandBuffer) {
	cb.Draw(m.vertexCount, 1, 0, 0)
}

func (m *Model) VertexCount() uint32 { return m.vertexCount }

// Destroy releases the vertex buffer. The device must be idle.
func (m *Model) Destroy() {
	if m.buffer == nil {
		return
	}
	m.buffer.Destroy()
	m.buffer = nil
}
