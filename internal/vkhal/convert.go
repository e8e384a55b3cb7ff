package vkhal

import (
	"time"

	"github.com/vulkan-go/vulkan"

	"Trigon/internal/hal"
)

// hal enum values are the Vulkan values, so most conversions are casts.

func toExtent(e hal.Extent) vulkan.Extent2D {
	return vulkan.Extent2D{Width: e.Width, Height: e.Height}
}

func fromExtent(e vulkan.Extent2D) hal.Extent {
	return hal.Extent{Width: e.Width, Height: e.Height}
}

func fromCapabilities(caps vulkan.SurfaceCapabilities) hal.SurfaceCapabilities {
	return hal.SurfaceCapabilities{
		MinImageCount:  caps.MinImageCount,
		MaxImageCount:  caps.MaxImageCount,
		CurrentExtent:  fromExtent(caps.CurrentExtent),
		MinImageExtent: fromExtent(caps.MinImageExtent),
		MaxImageExtent: fromExtent(caps.MaxImageExtent),
	}
}

func fromSurfaceFormats(in []vulkan.SurfaceFormat) []hal.SurfaceFormat {
	out := make([]hal.SurfaceFormat, len(in))
	for i, f := range in {
		out[i] = hal.SurfaceFormat{
			Format:     hal.Format(f.Format),
			ColorSpace: hal.ColorSpace(f.ColorSpace),
		}
	}
	return out
}

func fromPresentModes(in []vulkan.PresentMode) []hal.PresentMode {
	out := make([]hal.PresentMode, len(in))
	for i, m := range in {
		out[i] = hal.PresentMode(m)
	}
	return out
}

func toSamples(s hal.SampleCount) vulkan.SampleCountFlagBits {
	if s == 0 {
		return vulkan.SampleCount1Bit
	}
	return vulkan.SampleCountFlagBits(s)
}

func toAspect(a hal.Aspect) vulkan.ImageAspectFlags {
	var flags vulkan.ImageAspectFlagBits
	if a&hal.AspectColor != 0 {
		flags |= vulkan.ImageAspectColorBit
	}
	if a&hal.AspectDepth != 0 {
		flags |= vulkan.ImageAspectDepthBit
	}
	if a&hal.AspectStencil != 0 {
		flags |= vulkan.ImageAspectStencilBit
	}
	return vulkan.ImageAspectFlags(flags)
}

func toShaderStages(s hal.ShaderStage) vulkan.ShaderStageFlags {
	return vulkan.ShaderStageFlags(s)
}

func toViewport(v hal.Viewport) vulkan.Viewport {
	return vulkan.Viewport{
		X:        v.X,
		Y:        v.Y,
		Width:    v.Width,
		Height:   v.Height,
		MinDepth: v.MinDepth,
		MaxDepth: v.MaxDepth,
	}
}

func toRect(r hal.Rect) vulkan.Rect2D {
	return vulkan.Rect2D{
		Offset: vulkan.Offset2D{X: r.X, Y: r.Y},
		Extent: toExtent(r.Extent),
	}
}

// toTimeout converts a wait duration to nanoseconds; hal.NoTimeout and
// negative durations wait forever.
func toTimeout(d time.Duration) uint64 {
	if d == hal.NoTimeout || d < 0 {
		return vulkan.MaxUint64
	}
	return uint64(d.Nanoseconds())
}

func toVertexInput(layout hal.VertexLayout) ([]vulkan.VertexInputBindingDescription, []vulkan.VertexInputAttributeDescription) {
	if layout.Stride == 0 {
		return nil, nil
	}
	bindings := []vulkan.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    layout.Stride,
		InputRate: vulkan.VertexInputRateVertex,
	}}
	attrs := make([]vulkan.VertexInputAttributeDescription, len(layout.Attributes))
	for i, a := range layout.Attributes {
		attrs[i] = vulkan.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   vulkan.Format(a.Format),
			Offset:   a.Offset,
		}
	}
	return bindings, attrs
}
