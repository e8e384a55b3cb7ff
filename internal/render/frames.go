package render

import (
	"fmt"

	"Trigon/internal/hal"
)

// MaxFramesInFlight is the number of frame slots, the bound on frames the
// CPU may have submitted before the GPU finishes any of them.
const MaxFramesInFlight = 2

// frameSlot is one reusable synchronization context.
type frameSlot struct {
	imageAvailable hal.Semaphore
	renderFinished hal.Semaphore
	// inFlight is created signaled so the first wait on it returns.
	inFlight hal.Fence
}

func frameSlotCount(imageCount int) int {
	if imageCount < MaxFramesInFlight {
		return imageCount
	}
	return MaxFramesInFlight
}

func createFrameSlots(device hal.Device, count int, rel *releaseStack) ([]frameSlot, error) {
	slots := make([]frameSlot, count)
	for i := range slots {
		sem, err := device.CreateSemaphore()
		if err != nil {
			return nil, fmt.Errorf("create image-available semaphore %d: %w", i, err)
		}
		rel.track(sem)
		slots[i].imageAvailable = sem

		if sem, err = device.CreateSemaphore(); err != nil {
			return nil, fmt.Errorf("create render-finished semaphore %d: %w", i, err)
		}
		rel.track(sem)
		slots[i].renderFinished = sem

		fence, err := device.CreateFence(true)
		if err != nil {
			return nil, fmt.Errorf("create in-flight fence %d: %w", i, err)
		}
		rel.track(fence)
		slots[i].inFlight = fence
	}
	return slots, nil
}
