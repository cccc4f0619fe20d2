package vertex

import (
	"cmp"
	"encoding/binary"
	"slices"

	"github.com/chewxy/math32"
	"github.com/gogpu/textbrush/internal/atlas"
	"github.com/gogpu/textbrush/layout"
)

// Size is the byte size of one vertex: position (3 x f32), uv (2 x f32)
// and color (4 x f32).
const Size = 36

// Per-quad counts.
const (
	VerticesPerQuad = 4
	IndicesPerQuad  = 6
)

// Vertex is one corner of a glyph quad.
type Vertex struct {
	Pos   [3]float32
	UV    [2]float32
	Color [4]float32
}

// Glyph is a resolved glyph ready to become a quad.
type Glyph struct {
	Screen layout.Rect
	UV     atlas.UVRect
	Color  [4]float32

	// Z is the section depth in [0, 1]. Higher values are drawn later.
	Z float32

	// Clip is the section clip rect. Infinite edges disable clipping.
	Clip layout.Rect
}

// Mesh is the output of one Build. Its slices belong to the Builder and
// are valid until the next Build.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32

	vbytes []byte
	ibytes []byte
}

// Quads returns the number of quads in the mesh.
func (m Mesh) Quads() int { return len(m.Vertices) / VerticesPerQuad }

// Empty reports whether the mesh has no quads.
func (m Mesh) Empty() bool { return len(m.Vertices) == 0 }

// VertexBytes returns the vertices encoded little-endian.
func (m Mesh) VertexBytes() []byte { return m.vbytes }

// IndexBytes returns the uint32 indices encoded little-endian.
func (m Mesh) IndexBytes() []byte { return m.ibytes }

// Builder turns resolved glyphs into quads. It has no GPU side effects
// and reuses its buffers between calls.
//
// Builder is not safe for concurrent use.
type Builder struct {
	order  []int
	verts  []Vertex
	idx    []uint32
	vbytes []byte
	ibytes []byte
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build emits one quad per visible glyph in ascending z order. Glyphs with
// equal z keep their input order. Quads are clipped to their glyph's clip
// rect with texture coordinates interpolated; quads entirely outside are
// dropped.
func (b *Builder) Build(glyphs []Glyph) Mesh {
	b.order = b.order[:0]
	for i := range glyphs {
		b.order = append(b.order, i)
	}
	sortByZ(b.order, glyphs)

	b.verts = b.verts[:0]
	b.idx = b.idx[:0]
	for _, i := range b.order {
		g, ok := clip(glyphs[i])
		if !ok {
			continue
		}
		base := uint32(len(b.verts)) //nolint:gosec // bounded by buffer capacity
		b.verts = appendQuad(b.verts, &g)
		b.idx = append(b.idx, base, base+1, base+2, base+2, base+3, base)
	}

	b.vbytes = encodeVertices(b.vbytes[:0], b.verts)
	b.ibytes = encodeIndices(b.ibytes[:0], b.idx)
	return Mesh{Vertices: b.verts, Indices: b.idx, vbytes: b.vbytes, ibytes: b.ibytes}
}

// sortByZ orders glyph indices by ascending z, keeping input order for
// equal z.
func sortByZ(order []int, glyphs []Glyph) {
	slices.SortStableFunc(order, func(i, j int) int {
		return cmp.Compare(glyphs[i].Z, glyphs[j].Z)
	})
}

// clip restricts g to its clip rect.
func clip(g Glyph) (Glyph, bool) {
	s := g.Screen
	r := s.Intersect(g.Clip)
	if r.Empty() {
		return g, false
	}
	if r == s {
		return g, true
	}

	w, h := s.Width(), s.Height()
	du := g.UV.U1 - g.UV.U0
	dv := g.UV.V1 - g.UV.V0
	g.UV = atlas.UVRect{
		U0: g.UV.U0 + du*(r.MinX-s.MinX)/w,
		V0: g.UV.V0 + dv*(r.MinY-s.MinY)/h,
		U1: g.UV.U1 - du*(s.MaxX-r.MaxX)/w,
		V1: g.UV.V1 - dv*(s.MaxY-r.MaxY)/h,
	}
	g.Screen = r
	return g, true
}

// appendQuad appends the corners top-left, top-right, bottom-right and
// bottom-left.
func appendQuad(dst []Vertex, g *Glyph) []Vertex {
	s, uv, z := g.Screen, g.UV, math32.Max(0, math32.Min(1, g.Z))
	return append(dst,
		Vertex{Pos: [3]float32{s.MinX, s.MinY, z}, UV: [2]float32{uv.U0, uv.V0}, Color: g.Color},
		Vertex{Pos: [3]float32{s.MaxX, s.MinY, z}, UV: [2]float32{uv.U1, uv.V0}, Color: g.Color},
		Vertex{Pos: [3]float32{s.MaxX, s.MaxY, z}, UV: [2]float32{uv.U1, uv.V1}, Color: g.Color},
		Vertex{Pos: [3]float32{s.MinX, s.MaxY, z}, UV: [2]float32{uv.U0, uv.V1}, Color: g.Color},
	)
}

func encodeVertices(dst []byte, verts []Vertex) []byte {
	for i := range verts {
		v := &verts[i]
		for _, f := range v.Pos {
			dst = binary.LittleEndian.AppendUint32(dst, math32.Float32bits(f))
		}
		for _, f := range v.UV {
			dst = binary.LittleEndian.AppendUint32(dst, math32.Float32bits(f))
		}
		for _, f := range v.Color {
			dst = binary.LittleEndian.AppendUint32(dst, math32.Float32bits(f))
		}
	}
	return dst
}

func encodeIndices(dst []byte, idx []uint32) []byte {
	for _, i := range idx {
		dst = binary.LittleEndian.AppendUint32(dst, i)
	}
	return dst
}
