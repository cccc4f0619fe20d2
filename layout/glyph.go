package layout

import (
	"fmt"

	"github.com/chewxy/math32"
	"golang.org/x/image/math/fixed"
)

// GlyphKey identifies one rasterized glyph bitmap. Two glyphs with equal
// keys produce identical bitmaps.
type GlyphKey struct {
	// Font is the font the glyph belongs to.
	Font FontID
	// Glyph is the glyph id inside the font.
	Glyph uint32
	// Size is the pixel size per em in 26.6 fixed point.
	Size fixed.Int26_6
	// Subpixel is the horizontal subpixel bin the bitmap was rasterized at.
	Subpixel uint8
}

// String returns a string representation of the key.
func (k GlyphKey) String() string {
	return fmt.Sprintf("GlyphKey(font=%d, gid=%d, size=%v, sub=%d)", k.Font, k.Glyph, k.Size, k.Subpixel)
}

// PositionedGlyph is one glyph placed by the layout engine.
type PositionedGlyph struct {
	Key GlyphKey

	// X and Y are the pixel-snapped pen origin on the baseline, in screen
	// pixels. The fractional part of the unsnapped X is captured by
	// Key.Subpixel.
	X, Y float32

	// Color is straight RGBA copied from the text run.
	Color [4]float32

	// Section is the index of the section in the queued batch.
	Section int
}

// Bitmap is an 8-bit coverage mask produced by a Rasterizer.
type Bitmap struct {
	// Width and Height are the mask dimensions in pixels.
	Width, Height int

	// Left and Top are the offsets from the pen origin to the top-left
	// pixel of the mask (y down).
	Left, Top int

	// Pix holds Width*Height coverage values, row-major, stride Width.
	Pix []byte
}

// Empty reports whether the bitmap has no pixels (whitespace glyphs).
func (b Bitmap) Empty() bool { return b.Width <= 0 || b.Height <= 0 }

// Engine lays out sections into positioned glyphs.
type Engine interface {
	// Layout appends the glyphs of s to out and returns the extended
	// slice. Scale multiplies every text run's pixel scale (display scale
	// factor). Glyph Section fields are left zero; the caller assigns them.
	Layout(fonts []*Font, s *Section, scale float32, out []PositionedGlyph) ([]PositionedGlyph, error)
}

// Rasterizer produces coverage bitmaps for glyph keys.
type Rasterizer interface {
	Rasterize(f *Font, key GlyphKey) (Bitmap, error)
}

// SubpixelBins is the default number of horizontal subpixel positions.
const SubpixelBins = 4

// QuantizeX splits a pen x position into a pixel-snapped origin and a
// subpixel bin in [0, bins).
func QuantizeX(x float32, bins int) (snapped float32, bin uint8) {
	if bins <= 1 {
		return math32.Round(x), 0
	}
	fl := math32.Floor(x)
	b := int(math32.Floor((x - fl) * float32(bins)))
	if b >= bins {
		b = bins - 1
	}
	return fl, uint8(b) //nolint:gosec // bins is bounded to 255 by config validation
}

// SizeToFixed converts a pixel size to 26.6 fixed point, rounding to the
// nearest 1/64 pixel.
func SizeToFixed(size float32) fixed.Int26_6 {
	return fixed.Int26_6(math32.Round(size * 64))
}

// FixedToFloat converts a 26.6 fixed point value to float32.
func FixedToFloat(v fixed.Int26_6) float32 {
	return float32(v) / 64
}
