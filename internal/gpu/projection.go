package gpu

import (
	"encoding/binary"

	"github.com/chewxy/math32"
)

// uniformSize is the byte size of the Globals uniform: one mat4x4<f32>.
const uniformSize = 64

// Ortho returns the column-major projection that maps screen pixels
// (origin top-left, y down) to clip space and depth z to 1 - z, so
// sections with a higher z pass a LessEqual depth test over lower ones.
func Ortho(width, height float32) [16]float32 {
	return [16]float32{
		2 / width, 0, 0, 0,
		0, -2 / height, 0, 0,
		0, 0, -1, 0,
		-1, 1, 1, 1,
	}
}

// Apply transforms the point (x, y, z, 1) by the column-major matrix m.
func Apply(m [16]float32, x, y, z float32) [4]float32 {
	var out [4]float32
	for row := 0; row < 4; row++ {
		out[row] = m[row]*x + m[4+row]*y + m[8+row]*z + m[12+row]
	}
	return out
}

func validViewport(width, height float32) bool {
	return width > 0 && height > 0 && !math32.IsInf(width, 0) && !math32.IsInf(height, 0)
}

func encodeMatrix(dst []byte, m [16]float32) []byte {
	for _, v := range m {
		dst = binary.LittleEndian.AppendUint32(dst, math32.Float32bits(v))
	}
	return dst
}
