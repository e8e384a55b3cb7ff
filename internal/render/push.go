package render

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"Trigon/internal/hal"
)

// PushConstantsSize is the size of the per-draw constant block. The layout
// follows the shader's push_constant block: mat2 at 0 (two vec2 columns),
// vec2 at 16, vec3 at 32 (16-byte aligned), padded to a multiple of 16.
const PushConstantsSize = 48

// PushConstantStages are the shader stages that read the block.
const PushConstantStages = hal.ShaderStageVertex | hal.ShaderStageFragment

// PushConstants is the data sent with every draw.
type PushConstants struct {
	Transform mgl32.Mat2
	Offset    mgl32.Vec2
	Color     mgl32.Vec3
}

// Bytes encodes p in the shader layout.
func (p PushConstants) Bytes() []byte {
	buf := make([]byte, PushConstantsSize)
	putFloats(buf[0:], p.Transform[:]...)
	putFloats(buf[16:], p.Offset[:]...)
	putFloats(buf[32:], p.Color[:]...)
	return buf
}

func putFloats(dst []byte, vals ...float32) {
	for i, v := range vals {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}
