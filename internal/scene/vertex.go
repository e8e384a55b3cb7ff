// Package scene holds the objects the renderer draws: vertex data uploaded
// into models, 2D transforms, and a registry that hands out object ids and
// animates its objects once per frame.
package scene

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"Trigon/internal/hal"
)

// Vertex layout in the vertex buffer: position (2 x float32) at 0, color
// (3 x float32) at 8.
const (
	VertexStride   = 20
	PositionOffset = 0
	ColorOffset    = 8
)

// Layout returns the vertex input description matching EncodeVertices.
func Layout() hal.VertexLayout {
	return hal.VertexLayout{
		Stride: VertexStride,
		Attributes: []hal.VertexAttribute{
			{Location: 0, Format: hal.FormatR32G32Sfloat, Offset: PositionOffset},
			{Location: 1, Format: hal.FormatR32G32B32Sfloat, Offset: ColorOffset},
		},
	}
}

type Vertex struct {
	Position mgl32.Vec2
	Color    mgl32.Vec3
}

// Triangle is three vertices in drawing order.
type Triangle struct {
	A, B, C Vertex
}

func (t Triangle) Vertices() []Vertex {
	return []Vertex{t.A, t.B, t.C}
}

// Flatten lists the vertices of tris in order.
func Flatten(tris []Triangle) []Vertex {
	out := make([]Vertex, 0, len(tris)*3)
	for _, t := range tris {
		out = append(out, t.A, t.B, t.C)
	}
	return out
}

// EncodeVertices packs vertices for upload, little endian.
func EncodeVertices(vertices []Vertex) []byte {
	buf := make([]byte, len(vertices)*VertexStride)
	for i, v := range vertices {
		b := buf[i*VertexStride:]
		putFloat(b[PositionOffset:], v.Position.X())
		putFloat(b[PositionOffset+4:], v.Position.Y())
		putFloat(b[ColorOffset:], v.Color.X())
		putFloat(b[ColorOffset+4:], v.Color.Y())
		putFloat(b[ColorOffset+8:], v.Color.Z())
	}
	return buf
}

func putFloat(b []byte, f float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(f))
}
