package scene

import (
	"errors"

	"Trigon/internal/hal"
)

// fakeDevice records vertex buffers; every other hal.Device method panics.
type fakeDevice struct {
	hal.Device
	buffers   []*fakeBuffer
	createErr error
	writeErr  error
}

func (d *fakeDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	if d.createErr != nil {
		return nil, d.createErr
	}
	b := &fakeBuffer{desc: *desc, writeErr: d.writeErr}
	d.buffers = append(d.buffers, b)
	return b, nil
}

type fakeBuffer struct {
	desc      hal.BufferDescriptor
	data      []byte
	writeErr  error
	destroyed int
}

func (b *fakeBuffer) Size() uint64 { return b.desc.Size }

func (b *fakeBuffer) Write(data []byte) error {
	if b.writeErr != nil {
		return b.writeErr
	}
	if uint64(len(data)) > b.desc.Size {
		return errors.New("write past end of buffer")
	}
	b.data = append([]byte(nil), data...)
	return nil
}

func (b *fakeBuffer) Destroy() { b.destroyed++ }

// fakeCommandBuffer embeds hal.CommandBuffer and records binds and draws.
type fakeCommandBuffer struct {
	hal.CommandBuffer
	bound []hal.Buffer
	draws [][4]uint32
}

func (c *fakeCommandBuffer) BindVertexBuffers(buffers ...hal.Buffer) {
	c.bound = append(c.bound, buffers...)
}

func (c *fakeCommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.draws = append(c.draws, [4]uint32{vertexCount, instanceCount, firstVertex, firstInstance})
}
