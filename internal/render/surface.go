package render

import (
	"errors"

	"Trigon/internal/hal"
)

// Surface is the window the chain presents to.
type Surface interface {
	// Extent is the current framebuffer size; zero while minimized.
	Extent() hal.Extent
	WasResized() bool
	ResetResized()
	PollEvents()
	// WaitEvents blocks until at least one event arrives.
	WaitEvents()
	ShouldClose() bool
}

var (
	errNoSurfaceFormats = errors.New("surface reports no formats")
	errNoPresentModes   = errors.New("surface reports no present modes")
)

func chooseSurfaceFormat(available []hal.SurfaceFormat) (hal.SurfaceFormat, error) {
	if len(available) == 0 {
		return hal.SurfaceFormat{}, errNoSurfaceFormats
	}
	for _, f := range available {
		if f.Format == hal.FormatB8G8R8A8Srgb && f.ColorSpace == hal.ColorSpaceSrgbNonlinear {
			return f, nil
		}
	}
	return available[0], nil
}

func choosePresentMode(available []hal.PresentMode) (hal.PresentMode, error) {
	if len(available) == 0 {
		return 0, errNoPresentModes
	}
	for _, m := range available {
		if m == hal.PresentModeMailbox {
			return m, nil
		}
	}
	// FIFO is always available.
	return hal.PresentModeFifo, nil
}

func chooseExtent(caps hal.SurfaceCapabilities, requested hal.Extent) hal.Extent {
	if caps.CurrentExtent.Width != hal.UndefinedExtent {
		return caps.CurrentExtent
	}
	return hal.Extent{
		Width:  clamp(requested.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(requested.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func chooseImageCount(caps hal.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func clamp(val, lo, hi uint32) uint32 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
