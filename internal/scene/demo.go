package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"Trigon/internal/hal"
)

// DemoTriangle is a single triangle with red, green and blue corners.
func DemoTriangle() Triangle {
	return Triangle{
		A: Vertex{Position: mgl32.Vec2{0, -0.5}, Color: mgl32.Vec3{1, 0, 0}},
		B: Vertex{Position: mgl32.Vec2{0.5, 0.5}, Color: mgl32.Vec3{0, 1, 0}},
		C: Vertex{Position: mgl32.Vec2{-0.5, 0.5}, Color: mgl32.Vec3{0, 0, 1}},
	}
}

// sierpinskiSeed is the outer triangle subdivided for the sierpinski demo.
var sierpinskiSeed = Triangle{
	A: Vertex{Position: mgl32.Vec2{0, -0.5}},
	B: Vertex{Position: mgl32.Vec2{0.5, 0.8}},
	C: Vertex{Position: mgl32.Vec2{-0.7, 0.5}},
}

// LoadDemo adds the demo object to reg: the demo triangle, or a sierpinski
// mesh when sierpinskiDepth > 0, stretched, shifted right and turned a
// quarter turn.
func LoadDemo(device hal.Device, reg *Registry, sierpinskiDepth int) (*Object, error) {
	vertices := DemoTriangle().Vertices()
	if sierpinskiDepth > 0 {
		tris, err := Sierpinski(sierpinskiSeed, sierpinskiDepth)
		if err != nil {
			return nil, err
		}
		vertices = Flatten(tris)
	}

	model, err := NewModel(device, vertices)
	if err != nil {
		return nil, err
	}

	obj := reg.Spawn(model)
	obj.Color = mgl32.Vec3{0.1, 0.8, 0.1}
	obj.Transform.Translation = mgl32.Vec2{0.2, 0}
	obj.Transform.Scale = mgl32.Vec2{2, 0.5}
	obj.Transform.Rotation = 0.25 * 2 * math.Pi
	return obj, nil
}
