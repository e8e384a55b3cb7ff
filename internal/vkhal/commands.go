package vkhal

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"Trigon/internal/hal"
)

// commandBuffer is a primary command buffer from the device's pool. Record
// calls return nothing, so the first failure is kept and reported by End.
type commandBuffer struct {
	handle vulkan.CommandBuffer
	err    error
}

var _ hal.CommandBuffer = (*commandBuffer)(nil)

func unwrapCommandBuffer(cb hal.CommandBuffer) (*commandBuffer, error) {
	buf, ok := cb.(*commandBuffer)
	if !ok {
		return nil, errors.Errorf("foreign command buffer %T", cb)
	}
	return buf, nil
}

func (c *commandBuffer) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *commandBuffer) Reset() error {
	c.err = nil
	return check(vulkan.ResetCommandBuffer(c.handle, 0), "reset command buffer")
}

func (c *commandBuffer) Begin() error {
	c.err = nil
	beginInfo := vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
	}
	return check(vulkan.BeginCommandBuffer(c.handle, &beginInfo), "begin command buffer")
}

func (c *commandBuffer) End() error {
	if err := check(vulkan.EndCommandBuffer(c.handle), "end command buffer"); err != nil {
		return err
	}
	return c.err
}

func (c *commandBuffer) BeginRenderPass(rp hal.RenderPass, fb hal.Framebuffer, area hal.Extent, clear hal.ClearValues) {
	pass, err := unwrap[*renderPass](rp, "begin render pass")
	if err != nil {
		c.fail(err)
		return
	}
	target, err := unwrap[*framebuffer](fb, "begin render pass")
	if err != nil {
		c.fail(err)
		return
	}
	clearValues := []vulkan.ClearValue{
		vulkan.NewClearValue(clear.Color[:]),
		vulkan.NewClearDepthStencil(clear.Depth, clear.Stencil),
	}
	beginInfo := vulkan.RenderPassBeginInfo{
		SType:       vulkan.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass.handle,
		Framebuffer: target.handle,
		RenderArea: vulkan.Rect2D{
			Offset: vulkan.Offset2D{X: 0, Y: 0},
			Extent: toExtent(area),
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vulkan.CmdBeginRenderPass(c.handle, &beginInfo, vulkan.SubpassContentsInline)
}

func (c *commandBuffer) EndRenderPass() {
	vulkan.CmdEndRenderPass(c.handle)
}

func (c *commandBuffer) SetViewport(v hal.Viewport) {
	vulkan.CmdSetViewport(c.handle, 0, 1, []vulkan.Viewport{toViewport(v)})
}

func (c *commandBuffer) SetScissor(r hal.Rect) {
	vulkan.CmdSetScissor(c.handle, 0, 1, []vulkan.Rect2D{toRect(r)})
}

func (c *commandBuffer) BindPipeline(p hal.Pipeline) {
	pipeline, err := unwrap[*Pipeline](p, "bind pipeline")
	if err != nil {
		c.fail(err)
		return
	}
	vulkan.CmdBindPipeline(c.handle, vulkan.PipelineBindPointGraphics, pipeline.handle)
}

func (c *commandBuffer) PushConstants(layout hal.PipelineLayout, stages hal.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	l, err := unwrap[*pipelineLayout](layout, "push constants")
	if err != nil {
		c.fail(err)
		return
	}
	vulkan.CmdPushConstants(c.handle, l.handle, toShaderStages(stages), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (c *commandBuffer) BindVertexBuffers(buffers ...hal.Buffer) {
	if len(buffers) == 0 {
		return
	}
	handles := make([]vulkan.Buffer, len(buffers))
	offsets := make([]vulkan.DeviceSize, len(buffers))
	for i, b := range buffers {
		buf, err := unwrap[*buffer](b, "bind vertex buffers")
		if err != nil {
			c.fail(err)
			return
		}
		handles[i] = buf.handle
	}
	vulkan.CmdBindVertexBuffers(c.handle, 0, uint32(len(handles)), handles, offsets)
}

func (c *commandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vulkan.CmdDraw(c.handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (d *Device) AllocateCommandBuffers(count int) ([]hal.CommandBuffer, error) {
	if count <= 0 {
		return nil, nil
	}
	allocInfo := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}
	handles := make([]vulkan.CommandBuffer, count)
	if err := check(vulkan.AllocateCommandBuffers(d.device, &allocInfo, handles), "allocate command buffers"); err != nil {
		return nil, err
	}
	out := make([]hal.CommandBuffer, count)
	for i, h := range handles {
		out[i] = &commandBuffer{handle: h}
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(cbs []hal.CommandBuffer) {
	handles := make([]vulkan.CommandBuffer, 0, len(cbs))
	for _, cb := range cbs {
		if buf, err := unwrapCommandBuffer(cb); err == nil {
			handles = append(handles, buf.handle)
		}
	}
	if len(handles) == 0 {
		return
	}
	vulkan.FreeCommandBuffers(d.device, d.commandPool, uint32(len(handles)), handles)
}

// runOnce records a one-time command buffer with record, submits it on the
// graphics queue and waits for the queue to drain.
func (d *Device) runOnce(record func(cb vulkan.CommandBuffer)) error {
	allocInfo := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handles := make([]vulkan.CommandBuffer, 1)
	if err := check(vulkan.AllocateCommandBuffers(d.device, &allocInfo, handles), "allocate transfer command buffer"); err != nil {
		return err
	}
	defer vulkan.FreeCommandBuffers(d.device, d.commandPool, 1, handles)

	beginInfo := vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
		Flags: vulkan.CommandBufferUsageFlags(vulkan.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := check(vulkan.BeginCommandBuffer(handles[0], &beginInfo), "begin transfer command buffer"); err != nil {
		return err
	}
	record(handles[0])
	if err := check(vulkan.EndCommandBuffer(handles[0]), "end transfer command buffer"); err != nil {
		return err
	}

	submitInfo := vulkan.SubmitInfo{
		SType:              vulkan.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    handles,
	}
	if err := check(vulkan.QueueSubmit(d.graphicsQueue, 1, []vulkan.SubmitInfo{submitInfo}, vulkan.NullFence), "submit transfer"); err != nil {
		return err
	}
	return check(vulkan.QueueWaitIdle(d.graphicsQueue), "wait for transfer")
}
