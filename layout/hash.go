package layout

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/chewxy/math32"
)

// Hash returns a 64-bit FNV-1a hash of every field that affects layout
// and vertex output. Equal sections hash equal across calls and processes.
func (s *Section) Hash() uint64 {
	h := fnv.New64a()
	var buf [8]byte

	putF := func(v float32) {
		binary.LittleEndian.PutUint32(buf[:4], math32.Float32bits(v))
		_, _ = h.Write(buf[:4])
	}
	putU := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}

	putF(s.Position[0])
	putF(s.Position[1])
	putF(s.Bounds[0])
	putF(s.Bounds[1])
	putF(s.Z)
	putU(uint64(s.Layout.Wrap)<<16 | uint64(s.Layout.HAlign)<<8 | uint64(s.Layout.VAlign))
	putF(s.Layout.LineHeight)

	putU(uint64(len(s.Text)))
	for i := range s.Text {
		t := &s.Text[i]
		putU(uint64(len(t.Content)))
		_, _ = h.Write([]byte(t.Content))
		putF(t.Scale)
		for _, c := range t.Color {
			putF(c)
		}
		putU(uint64(t.Font)) //nolint:gosec // font ids are validated non-negative
	}
	return h.Sum64()
}
