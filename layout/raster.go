package layout

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/chewxy/math32"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// OutlineRasterizer is the default Rasterizer. It loads glyph outlines
// with x/image/font/sfnt and fills them with the x/image/vector
// anti-aliasing rasterizer.
//
// OutlineRasterizer reuses its buffers and is not safe for concurrent use.
type OutlineRasterizer struct {
	bins int
	buf  sfnt.Buffer
	rast vector.Rasterizer
}

// NewOutlineRasterizer creates a rasterizer for glyph keys quantized to
// bins subpixel positions. bins must match the Engine's setting.
func NewOutlineRasterizer(bins int) *OutlineRasterizer {
	if bins < 1 {
		bins = 1
	}
	return &OutlineRasterizer{bins: bins}
}

// SubpixelBins returns the number of subpixel positions keys are
// quantized to.
func (r *OutlineRasterizer) SubpixelBins() int { return r.bins }

// Rasterize implements Rasterizer. Glyphs without ink (spaces) return an
// empty bitmap and no error.
func (r *OutlineRasterizer) Rasterize(f *Font, key GlyphKey) (Bitmap, error) {
	if key.Glyph > 0xFFFF {
		return Bitmap{}, fmt.Errorf("layout: glyph id %d out of range", key.Glyph)
	}

	segs, err := f.outline.LoadGlyph(&r.buf, sfnt.GlyphIndex(key.Glyph), key.Size, nil)
	if err != nil {
		if errors.Is(err, sfnt.ErrColoredGlyph) {
			return Bitmap{}, ErrNoOutline
		}
		return Bitmap{}, fmt.Errorf("layout: load glyph %d: %w", key.Glyph, err)
	}
	if len(segs) == 0 {
		return Bitmap{}, nil
	}

	dx := float32(key.Subpixel) / float32(r.bins)
	b := segs.Bounds()
	minX := int(math32.Floor(fixedF(b.Min.X) + dx))
	minY := int(math32.Floor(fixedF(b.Min.Y)))
	maxX := int(math32.Ceil(fixedF(b.Max.X) + dx))
	maxY := int(math32.Ceil(fixedF(b.Max.Y)))
	w, h := maxX-minX, maxY-minY
	if w <= 0 || h <= 0 {
		return Bitmap{}, nil
	}

	ox := dx - float32(minX)
	oy := -float32(minY)

	r.rast.Reset(w, h)
	r.rast.DrawOp = draw.Src
	started := false
	for _, s := range segs {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			if started {
				r.rast.ClosePath()
			}
			started = true
			r.rast.MoveTo(pt(s.Args[0], ox, oy))
		case sfnt.SegmentOpLineTo:
			r.rast.LineTo(pt(s.Args[0], ox, oy))
		case sfnt.SegmentOpQuadTo:
			cx, cy := pt(s.Args[0], ox, oy)
			tx, ty := pt(s.Args[1], ox, oy)
			r.rast.QuadTo(cx, cy, tx, ty)
		case sfnt.SegmentOpCubeTo:
			c1x, c1y := pt(s.Args[0], ox, oy)
			c2x, c2y := pt(s.Args[1], ox, oy)
			tx, ty := pt(s.Args[2], ox, oy)
			r.rast.CubeTo(c1x, c1y, c2x, c2y, tx, ty)
		}
	}
	if started {
		r.rast.ClosePath()
	}

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	r.rast.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	return Bitmap{
		Width:  w,
		Height: h,
		Left:   minX,
		Top:    minY,
		Pix:    mask.Pix,
	}, nil
}

func fixedF(v fixed.Int26_6) float32 { return float32(v) / 64 }

func pt(p fixed.Point26_6, ox, oy float32) (float32, float32) {
	return fixedF(p.X) + ox, fixedF(p.Y) + oy
}
