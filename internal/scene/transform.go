package scene

import "github.com/go-gl/mathgl/mgl32"

// Transform2D places an object in normalized device coordinates.
type Transform2D struct {
	Translation mgl32.Vec2
	Scale       mgl32.Vec2
	// Rotation in radians, counter-clockwise.
	Rotation float32
}

// NewTransform2D returns the identity transform.
func NewTransform2D() Transform2D {
	return Transform2D{Scale: mgl32.Vec2{1, 1}}
}

// Mat2 returns rotation * scale, so scaling happens first.
func (t Transform2D) Mat2() mgl32.Mat2 {
	scale := mgl32.Mat2{t.Scale.X(), 0, 0, t.Scale.Y()}
	return mgl32.Rotate2D(t.Rotation).Mul2(scale)
}
