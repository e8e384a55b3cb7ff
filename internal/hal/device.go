// Package hal is the device boundary consumed by the renderer core. It is a
// thin, API-shaped layer: every create call has a matching Destroy on the
// returned resource, and blocking calls take an explicit timeout.
package hal

import (
	"math"
	"time"
)

// NoTimeout makes a wait block until the condition is met.
const NoTimeout = time.Duration(math.MaxInt64)

// Resource is a device object released with Destroy. Destroy must be called
// exactly once, after the GPU has stopped using the object.
type Resource interface {
	Destroy()
}

type (
	Swapchain      interface{ Resource }
	Image          interface{ Resource }
	ImageView      interface{ Resource }
	RenderPass     interface{ Resource }
	Framebuffer    interface{ Resource }
	Semaphore      interface{ Resource }
	Fence          interface{ Resource }
	PipelineLayout interface{ Resource }
)

// Buffer is device memory holding vertex data.
type Buffer interface {
	Resource
	Size() uint64
	// Write copies data to the start of the buffer.
	Write(data []byte) error
}

// Pipeline is a compiled graphics pipeline bound by a command buffer.
type Pipeline interface {
	Resource
}

// CommandBuffer records commands for one submission. Recording errors are
// reported by End.
type CommandBuffer interface {
	Reset() error
	Begin() error
	End() error

	BeginRenderPass(rp RenderPass, fb Framebuffer, area Extent, clear ClearValues)
	EndRenderPass()
	SetViewport(v Viewport)
	SetScissor(r Rect)
	BindPipeline(p Pipeline)
	PushConstants(layout PipelineLayout, stages ShaderStage, offset uint32, data []byte)
	BindVertexBuffers(buffers ...Buffer)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
}

// Device exposes the command pool, the graphics/present queue pair and the
// allocation primitives of one logical device.
type Device interface {
	SurfaceSupport() (SurfaceSupport, error)
	DepthFormat() (Format, error)

	CreateSwapchain(desc *SwapchainDescriptor) (Swapchain, error)
	// SwapchainImages returns images owned by the swapchain; their Destroy
	// is a no-op.
	SwapchainImages(sc Swapchain) ([]Image, error)
	CreateImage(desc *ImageDescriptor) (Image, error)
	CreateImageView(img Image, desc *ImageViewDescriptor) (ImageView, error)
	CreateRenderPass(desc *RenderPassDescriptor) (RenderPass, error)
	CreateFramebuffer(desc *FramebufferDescriptor) (Framebuffer, error)
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	CreatePipelineLayout(desc *PipelineLayoutDescriptor) (PipelineLayout, error)

	CreateSemaphore() (Semaphore, error)
	CreateFence(signaled bool) (Fence, error)
	WaitFence(f Fence, timeout time.Duration) error
	ResetFence(f Fence) error
	FenceSignaled(f Fence) (bool, error)

	AllocateCommandBuffers(count int) ([]CommandBuffer, error)
	FreeCommandBuffers(cbs []CommandBuffer)

	AcquireNextImage(sc Swapchain, timeout time.Duration, signal Semaphore) (uint32, Status, error)
	Submit(cb CommandBuffer, wait, signal Semaphore, fence Fence) error
	Present(sc Swapchain, imageIndex uint32, wait Semaphore) (Status, error)

	WaitIdle() error
}
