package layout

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-text/typesetting/font"
	"golang.org/x/image/font/sfnt"
)

// FontID identifies a font by its index in the brush's font list.
// The list is fixed when the brush is built.
type FontID int

// Font is a parsed OpenType/TrueType font.
//
// A Font is parsed twice from the same bytes: go-text/typesetting provides
// the face used for shaping, x/image/font/sfnt provides glyph outlines for
// rasterization. Both agree on glyph indices because they read the same
// cmap and glyf/CFF tables.
//
// Font is heavyweight and should be shared across brushes.
type Font struct {
	name string
	data []byte

	face    *font.Face
	outline *sfnt.Font

	upem    float32
	extents font.FontExtents
}

// ParseFont parses font data (TTF or OTF).
// The data slice is copied internally and can be reused after this call.
func ParseFont(data []byte) (*Font, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFontData
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	face, err := font.ParseTTF(bytes.NewReader(dataCopy))
	if err != nil {
		return nil, fmt.Errorf("layout: parse font: %w", err)
	}
	outline, err := sfnt.Parse(dataCopy)
	if err != nil {
		return nil, fmt.Errorf("layout: parse font outlines: %w", err)
	}

	f := &Font{
		data:    dataCopy,
		face:    face,
		outline: outline,
		upem:    float32(face.Upem()),
	}
	if f.upem == 0 {
		f.upem = 1000
	}

	if ext, ok := face.FontHExtents(); ok {
		f.extents = ext
	} else {
		// Fonts without hhea/OS2 metrics: 0.8em ascent, 0.2em descent.
		f.extents = font.FontExtents{Ascender: 0.8 * f.upem, Descender: -0.2 * f.upem}
	}

	if name, err := outline.Name(nil, sfnt.NameIDFamily); err == nil && name != "" {
		f.name = name
	} else if name, err := outline.Name(nil, sfnt.NameIDFull); err == nil && name != "" {
		f.name = name
	} else {
		f.name = "Unknown"
	}

	return f, nil
}

// ParseFontFile loads and parses a font file.
func ParseFontFile(path string) (*Font, error) {
	// #nosec G304 -- Font file path is provided by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("layout: failed to read font file: %w", err)
	}
	return ParseFont(data)
}

// Name returns the font family name.
func (f *Font) Name() string { return f.name }

// Face returns the go-text face used for shaping.
func (f *Font) Face() *font.Face { return f.face }

// UnitsPerEm returns the font design units per em.
func (f *Font) UnitsPerEm() float32 { return f.upem }

// LineMetrics returns ascent (positive, above the baseline), descent
// (positive, below the baseline) and line gap at the given pixel size.
func (f *Font) LineMetrics(size float32) (ascent, descent, gap float32) {
	s := size / f.upem
	return f.extents.Ascender * s, -f.extents.Descender * s, f.extents.LineGap * s
}

// GlyphIndex returns the glyph id mapped to r, or false if the font has
// no glyph for it.
func (f *Font) GlyphIndex(r rune) (uint32, bool) {
	gid, ok := f.face.NominalGlyph(r)
	return uint32(gid), ok
}
