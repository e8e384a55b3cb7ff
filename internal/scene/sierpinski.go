package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxSierpinskiDepth bounds the subdivision; depth d yields 3^d triangles.
const MaxSierpinskiDepth = 8

var (
	cornerA = mgl32.Vec3{0, 0.5, 0.5}
	cornerB = mgl32.Vec3{0, 1, 0}
	cornerC = mgl32.Vec3{0, 0, 1}
)

// Sierpinski subdivides seed depth times, keeping the three corner
// triangles of each split. Vertices are colored by corner. Depth 0 returns
// the seed unchanged.
func Sierpinski(seed Triangle, depth int) ([]Triangle, error) {
	if depth < 0 || depth > MaxSierpinskiDepth {
		return nil, fmt.Errorf("sierpinski depth %d outside [0,%d]", depth, MaxSierpinskiDepth)
	}
	tris := []Triangle{seed}
	for ; depth > 0; depth-- {
		next := make([]Triangle, 0, len(tris)*3)
		for _, t := range tris {
			next = append(next, split(t)...)
		}
		tris = next
	}
	return tris, nil
}

func split(t Triangle) []Triangle {
	a, b, c := t.A.Position, t.B.Position, t.C.Position
	ab := a.Add(b).Mul(0.5)
	bc := b.Add(c).Mul(0.5)
	ca := c.Add(a).Mul(0.5)
	return []Triangle{
		corners(a, ab, ca),
		corners(ab, b, bc),
		corners(ca, bc, c),
	}
}

func corners(a, b, c mgl32.Vec2) Triangle {
	return Triangle{
		A: Vertex{Position: a, Color: cornerA},
		B: Vertex{Position: b, Color: cornerB},
		C: Vertex{Position: c, Color: cornerC},
	}
}
