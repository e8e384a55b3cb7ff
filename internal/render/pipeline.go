package render

import "Trigon/internal/hal"

// Pipeline is a graphics pipeline compiled against a render pass. It is
// never changed in place; a rebuild produces a new Pipeline.
type Pipeline interface {
	Bind(cb hal.CommandBuffer)
	Destroy()
}

// PipelineFactory builds a pipeline for the given render pass and layout.
type PipelineFactory func(pass hal.RenderPass, layout hal.PipelineLayout) (Pipeline, error)

// RebuildPolicy decides after a chain replacement whether the pipeline has
// to be rebuilt. prev is the chain being replaced.
type RebuildPolicy func(prev, next *Chain) bool

// RebuildWhenIncompatible rebuilds only if the new render pass is not
// compatible with the old one. Viewport and scissor are dynamic, so a size
// change alone never needs a new pipeline.
func RebuildWhenIncompatible(prev, next *Chain) bool {
	return !next.CompatibleWith(prev)
}

// Renderable is something the recorder can draw.
type Renderable interface {
	Bind(cb hal.CommandBuffer)
	Draw(cb hal.CommandBuffer)
	PushConstants() PushConstants
}

// Scene supplies renderables for each frame.
type Scene interface {
	// Advance steps animation once per recorded frame.
	Advance()
	Renderables() []Renderable
}
