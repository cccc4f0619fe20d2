// Package glyphcache maps glyph keys to rasterized bitmaps packed in the
// texture atlas.
//
// Each frame the cache receives the positioned glyphs of every queued
// section. Keys seen for the first time are rasterized and packed; keys
// already packed are hits and cost nothing. When the atlas is out of
// space the cache grows it, and at maximum size compacts it down to the
// glyphs of the current frame before giving up with ErrAtlasFull.
//
// Texture coordinates are tied to the atlas generation. Any repack bumps
// the generation and the cache recomputes coordinates lazily on the next
// lookup.
package glyphcache
