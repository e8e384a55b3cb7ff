package vkhal

import (
	"time"

	"github.com/vulkan-go/vulkan"

	"Trigon/internal/hal"
)

type semaphore struct {
	device vulkan.Device
	handle vulkan.Semaphore
}

func (s *semaphore) Destroy() {
	vulkan.DestroySemaphore(s.device, s.handle, nil)
}

type fence struct {
	device vulkan.Device
	handle vulkan.Fence
}

func (f *fence) Destroy() {
	vulkan.DestroyFence(f.device, f.handle, nil)
}

func (d *Device) CreateSemaphore() (hal.Semaphore, error) {
	info := vulkan.SemaphoreCreateInfo{
		SType: vulkan.StructureTypeSemaphoreCreateInfo,
	}
	var handle vulkan.Semaphore
	if err := check(vulkan.CreateSemaphore(d.device, &info, nil, &handle), "create semaphore"); err != nil {
		return nil, err
	}
	return &semaphore{device: d.device, handle: handle}, nil
}

func (d *Device) CreateFence(signaled bool) (hal.Fence, error) {
	info := vulkan.FenceCreateInfo{
		SType: vulkan.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vulkan.FenceCreateFlags(vulkan.FenceCreateSignaledBit)
	}
	var handle vulkan.Fence
	if err := check(vulkan.CreateFence(d.device, &info, nil, &handle), "create fence"); err != nil {
		return nil, err
	}
	return &fence{device: d.device, handle: handle}, nil
}

func (d *Device) WaitFence(f hal.Fence, timeout time.Duration) error {
	fc, err := unwrap[*fence](f, "wait for fence")
	if err != nil {
		return err
	}
	res := vulkan.WaitForFences(d.device, 1, []vulkan.Fence{fc.handle}, vulkan.True, toTimeout(timeout))
	if res == vulkan.Timeout {
		return ErrTimeout
	}
	return check(res, "wait for fence")
}

func (d *Device) ResetFence(f hal.Fence) error {
	fc, err := unwrap[*fence](f, "reset fence")
	if err != nil {
		return err
	}
	return check(vulkan.ResetFences(d.device, 1, []vulkan.Fence{fc.handle}), "reset fence")
}

func (d *Device) FenceSignaled(f hal.Fence) (bool, error) {
	fc, err := unwrap[*fence](f, "query fence")
	if err != nil {
		return false, err
	}
	switch res := vulkan.GetFenceStatus(d.device, fc.handle); res {
	case vulkan.Success:
		return true, nil
	case vulkan.NotReady:
		return false, nil
	default:
		return false, check(res, "query fence")
	}
}
