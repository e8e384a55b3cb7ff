package vkhal

import (
	"time"

	"github.com/vulkan-go/vulkan"

	"Trigon/internal/hal"
)

// AcquireNextImage asks the swapchain for its next image. Out-of-date and
// suboptimal are reported as statuses, not errors.
func (d *Device) AcquireNextImage(sc hal.Swapchain, timeout time.Duration, signal hal.Semaphore) (uint32, hal.Status, error) {
	s, err := unwrap[*swapchain](sc, "acquire next image")
	if err != nil {
		return 0, hal.StatusFatal, err
	}
	sem, err := unwrap[*semaphore](signal, "acquire next image")
	if err != nil {
		return 0, hal.StatusFatal, err
	}
	var imageIndex uint32
	res := vulkan.AcquireNextImage(d.device, s.handle, toTimeout(timeout), sem.handle, vulkan.Fence(vulkan.NullHandle), &imageIndex)
	status, err := presentStatus(res, "acquire next image")
	return imageIndex, status, err
}

// Submit queues cb on the graphics queue. It waits on wait at the color
// output stage, signals signal, and signals fence once the GPU is done.
func (d *Device) Submit(cb hal.CommandBuffer, wait, signal hal.Semaphore, f hal.Fence) error {
	buf, err := unwrapCommandBuffer(cb)
	if err != nil {
		return err
	}
	waitSem, err := unwrap[*semaphore](wait, "queue submit")
	if err != nil {
		return err
	}
	signalSem, err := unwrap[*semaphore](signal, "queue submit")
	if err != nil {
		return err
	}
	fc, err := unwrap[*fence](f, "queue submit")
	if err != nil {
		return err
	}

	submitInfo := vulkan.SubmitInfo{
		SType:                vulkan.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vulkan.Semaphore{waitSem.handle},
		PWaitDstStageMask:    []vulkan.PipelineStageFlags{vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vulkan.CommandBuffer{buf.handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vulkan.Semaphore{signalSem.handle},
	}
	return check(vulkan.QueueSubmit(d.graphicsQueue, 1, []vulkan.SubmitInfo{submitInfo}, fc.handle), "queue submit")
}

// Present queues imageIndex for display once wait is signaled.
func (d *Device) Present(sc hal.Swapchain, imageIndex uint32, wait hal.Semaphore) (hal.Status, error) {
	s, err := unwrap[*swapchain](sc, "queue present")
	if err != nil {
		return hal.StatusFatal, err
	}
	sem, err := unwrap[*semaphore](wait, "queue present")
	if err != nil {
		return hal.StatusFatal, err
	}
	presentInfo := vulkan.PresentInfo{
		SType:              vulkan.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vulkan.Semaphore{sem.handle},
		SwapchainCount:     1,
		PSwapchains:        []vulkan.Swapchain{s.handle},
		PImageIndices:      []uint32{imageIndex},
	}
	return presentStatus(vulkan.QueuePresent(d.presentQueue, &presentInfo), "queue present")
}
