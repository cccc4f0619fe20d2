// Package layout describes the text a brush draws and turns it into
// positioned glyphs and glyph bitmaps.
//
// A [Section] is one block of text: styled [Text] runs, a screen anchor,
// optional bounds and a [Layout] (wrapping and alignment). An [Engine]
// lays a section out into [PositionedGlyph] values, and a [Rasterizer]
// turns the glyph keys it emits into coverage [Bitmap]s.
//
// The default engine, [Shaper], shapes with the go-text HarfBuzz port and
// breaks lines at UAX #14 opportunities. The default rasterizer,
// [OutlineRasterizer], fills sfnt outlines with x/image/vector. Both can be
// replaced through the brush options.
//
// Coordinates are screen pixels with the origin at the top-left and y
// pointing down.
package layout
