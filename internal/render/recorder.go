package render

import (
	"fmt"

	"Trigon/internal/hal"
)

var clearValues = hal.ClearValues{
	Color:   [4]float32{0.01, 0.01, 0.01, 1},
	Depth:   1,
	Stencil: 0,
}

// Recorder owns one primary command buffer per chain image and re-records
// the buffer for an image every frame.
type Recorder struct {
	device  hal.Device
	buffers []hal.CommandBuffer
}

func NewRecorder(device hal.Device, count int) (*Recorder, error) {
	r := &Recorder{device: device}
	if err := r.allocate(count); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) allocate(count int) error {
	buffers, err := r.device.AllocateCommandBuffers(count)
	if err != nil {
		return fmt.Errorf("allocate %d command buffers: %w", count, err)
	}
	if len(buffers) != count {
		r.device.FreeCommandBuffers(buffers)
		return fmt.Errorf("allocate command buffers: got %d, want %d", len(buffers), count)
	}
	r.buffers = buffers
	return nil
}

// Reallocate frees every buffer and allocates count new ones. The device
// must be idle.
func (r *Recorder) Reallocate(count int) error {
	r.Free()
	return r.allocate(count)
}

// Free returns all buffers to the pool.
func (r *Recorder) Free() {
	if len(r.buffers) == 0 {
		return
	}
	r.device.FreeCommandBuffers(r.buffers)
	r.buffers = nil
}

func (r *Recorder) Len() int { return len(r.buffers) }

func (r *Recorder) Buffer(imageIndex uint32) hal.CommandBuffer { return r.buffers[imageIndex] }

// RecordFrame rewrites the command buffer for imageIndex: one render pass on
// the image's framebuffer, dynamic viewport and scissor covering the chain
// extent, the pipeline bound once, then a push + draw per renderable in
// order.
//
// The caller must have waited for any earlier submission of this buffer;
// Chain.AcquireNextImage does that.
func (r *Recorder) RecordFrame(chain *Chain, imageIndex uint32, pipeline Pipeline, layout hal.PipelineLayout, renderables []Renderable) error {
	if int(imageIndex) >= len(r.buffers) {
		return fmt.Errorf("record frame: image index %d out of range [0,%d)", imageIndex, len(r.buffers))
	}
	cb := r.buffers[imageIndex]

	if err := cb.Reset(); err != nil {
		return fmt.Errorf("reset command buffer %d: %w", imageIndex, err)
	}
	if err := cb.Begin(); err != nil {
		return fmt.Errorf("begin command buffer %d: %w", imageIndex, err)
	}

	extent := chain.Extent()
	cb.BeginRenderPass(chain.RenderPass(), chain.Framebuffer(int(imageIndex)), extent, clearValues)
	cb.SetViewport(hal.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	cb.SetScissor(hal.Rect{Extent: extent})

	pipeline.Bind(cb)
	for _, obj := range renderables {
		push := obj.PushConstants()
		cb.PushConstants(layout, PushConstantStages, 0, push.Bytes())
		obj.Bind(cb)
		obj.Draw(cb)
	}

	cb.EndRenderPass()
	if err := cb.End(); err != nil {
		return fmt.Errorf("record command buffer %d: %w", imageIndex, err)
	}
	return nil
}
