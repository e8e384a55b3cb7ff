package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"Trigon/internal/hal"
	"Trigon/internal/render"
)

// ID identifies an object within its registry.
type ID uint32

// Object is a model drawn with its own color and transform.
type Object struct {
	id        ID
	Model     *Model
	Color     mgl32.Vec3
	Transform Transform2D
}

func (o *Object) ID() ID { return o.id }

func (o *Object) Bind(cb hal.CommandBuffer) { o.Model.Bind(cb) }

func (o *Object) Draw(cb hal.CommandBuffer) { o.Model.Draw(cb) }

func (o *Object) PushConstants() render.PushConstants {
	return render.PushConstants{
		Transform: o.Transform.Mat2(),
		Offset:    o.Transform.Translation,
		Color:     o.Color,
	}
}
