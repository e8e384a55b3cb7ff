package scene

import (
	"math"

	"Trigon/internal/render"
)

// RotationStep is how far each object turns per frame, in radians.
const RotationStep = 0.01

// IDAllocator hands out sequential ids starting at 0.
type IDAllocator struct {
	next ID
}

func (a *IDAllocator) Next() ID {
	id := a.next
	a.next++
	return id
}

// Registry owns the objects of a scene and implements render.Scene.
type Registry struct {
	ids     IDAllocator
	objects []*Object
}

var (
	_ render.Scene      = (*Registry)(nil)
	_ render.Renderable = (*Object)(nil)
)

func NewRegistry() *Registry {
	return &Registry{}
}

// Spawn adds an object drawing model with an identity transform.
func (r *Registry) Spawn(model *Model) *Object {
	obj := &Object{
		id:        r.ids.Next(),
		Model:     model,
		Transform: NewTransform2D(),
	}
	r.objects = append(r.objects, obj)
	return obj
}

func (r *Registry) Objects() []*Object { return r.objects }

// Advance turns every object by RotationStep, wrapping at 2π.
func (r *Registry) Advance() {
	for _, obj := range r.objects {
		obj.Transform.Rotation = wrapAngle(obj.Transform.Rotation + RotationStep)
	}
}

func (r *Registry) Renderables() []render.Renderable {
	out := make([]render.Renderable, len(r.objects))
	for i, obj := range r.objects {
		out[i] = obj
	}
	return out
}

// Destroy releases every model once, however many objects share it.
func (r *Registry) Destroy() {
	seen := make(map[*Model]bool)
	for _, obj := range r.objects {
		if obj.Model == nil || seen[obj.Model] {
			continue
		}
		seen[obj.Model] = true
		obj.Model.Destroy()
	}
	r.objects = nil
}

func wrapAngle(a float32) float32 {
	const twoPi = 2 * math.Pi
	a = float32(math.Mod(float64(a), twoPi))
	if a < 0 {
		a += twoPi
	}
	return a
}
