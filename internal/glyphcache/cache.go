package glyphcache

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gogpu/textbrush/internal/atlas"
	"github.com/gogpu/textbrush/layout"
)

// ErrAtlasFull is returned when the glyphs of one frame do not fit into
// the atlas even at its maximum size.
var ErrAtlasFull = errors.New("glyphcache: atlas full")

// FullError reports an atlas overflow. It unwraps to ErrAtlasFull and to
// the growth error that stopped the atlas from growing further.
type FullError struct {
	Width, Height int
	Glyphs        int
	Cause         error
}

func (e *FullError) Error() string {
	return fmt.Sprintf("glyphcache: atlas full at %dx%d with %d glyphs in use", e.Width, e.Height, e.Glyphs)
}

func (e *FullError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrAtlasFull}
	}
	return []error{ErrAtlasFull, e.Cause}
}

// Glyph is a rasterized glyph packed into the atlas. Its UV is valid only
// while the atlas generation equals Generation.
type Glyph struct {
	Key layout.GlyphKey

	// Left, Top, Width and Height locate the bitmap relative to the pen
	// origin, in pixels (y down).
	Left, Top     int
	Width, Height int

	Rect       atlas.Rect
	UV         atlas.UVRect
	Generation uint64
}

// Resolved is one drawable glyph instance.
type Resolved struct {
	Key layout.GlyphKey

	// Screen is the glyph quad in screen pixels.
	Screen layout.Rect
	UV     atlas.UVRect
	Color  [4]float32

	// Section is copied from the positioned glyph.
	Section int

	// Generation is the atlas generation UV belongs to.
	Generation uint64
}

// Config holds cache configuration.
type Config struct {
	// MaxIdleFrames evicts glyphs not used for this many frames.
	// Zero keeps glyphs until Clear or compaction.
	MaxIdleFrames int
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{MaxIdleFrames: 120}
}

// Stats contains cache statistics.
type Stats struct {
	Entries     int
	Hits        uint64
	Misses      uint64
	Uploads     uint64
	Grows       uint64
	Compactions uint64
	Evictions   uint64
	Frame       uint64
}

type entry struct {
	glyph    Glyph
	empty    bool
	pending  *atlas.Bitmap
	lastUsed uint64
}

// Cache tracks which glyphs are rasterized into the atlas, rasterizes
// misses and keeps texture coordinates in step with the atlas generation.
//
// The atlas is owned by the caller and shared by reference. Glyph records
// link to it only through their key and generation number.
//
// Cache is not safe for concurrent use.
type Cache struct {
	cfg    Config
	fonts  []*layout.Font
	raster layout.Rasterizer
	atlas  *atlas.Atlas[layout.GlyphKey]

	entries map[layout.GlyphKey]*entry
	frame   uint64
	stats   Stats

	compacted bool
	inUse     int
}

// New creates a cache over the given fonts, rasterizer and atlas.
func New(fonts []*layout.Font, r layout.Rasterizer, a *atlas.Atlas[layout.GlyphKey], cfg Config) *Cache {
	return &Cache{
		cfg:     cfg,
		fonts:   fonts,
		raster:  r,
		atlas:   a,
		entries: make(map[layout.GlyphKey]*entry),
	}
}

// Queue resolves the positioned glyphs of one frame. Missing glyphs are
// rasterized and uploaded; when the atlas runs out of space it is grown
// and the upload retried, and at maximum size it is compacted once to the
// glyphs of this frame. Glyphs without ink are omitted from the result.
//
// On error nothing is resolved and out is returned unchanged.
func (c *Cache) Queue(glyphs []layout.PositionedGlyph, out []Resolved) ([]Resolved, error) {
	c.frame++
	c.compacted = false

	if err := c.prepare(glyphs); err != nil {
		return out, err
	}

	for {
		err := c.upload(glyphs)
		if err == nil {
			break
		}
		if !errors.Is(err, atlas.ErrNoSpace) {
			return out, err
		}
		if err := c.makeRoom(); err != nil {
			return out, err
		}
	}

	out = c.resolve(glyphs, out)
	c.evict()
	return out, nil
}

// prepare marks every key as used this frame and rasterizes new keys.
func (c *Cache) prepare(glyphs []layout.PositionedGlyph) error {
	misses := 0
	c.inUse = 0
	for i := range glyphs {
		g := &glyphs[i]
		if int(g.Key.Font) < 0 || int(g.Key.Font) >= len(c.fonts) {
			return &layout.SectionError{Section: g.Section, Text: -1, Field: "Font", Reason: "glyph references unknown font"}
		}
		if math32.IsNaN(g.X) || math32.IsInf(g.X, 0) || math32.IsNaN(g.Y) || math32.IsInf(g.Y, 0) {
			return &layout.SectionError{Section: g.Section, Text: -1, Field: "Position", Reason: "glyph position not finite"}
		}

		e, ok := c.entries[g.Key]
		if !ok {
			e = c.rasterize(g.Key)
			c.entries[g.Key] = e
			misses++
		} else if e.lastUsed != c.frame {
			c.stats.Hits++
		}
		if e.lastUsed != c.frame && !e.empty {
			c.inUse++
		}
		e.lastUsed = c.frame
	}
	c.stats.Misses += uint64(misses)
	if misses > 0 {
		slogger().Debug("glyph cache misses", "frame", c.frame, "misses", misses, "entries", len(c.entries))
	}
	return nil
}

// rasterize creates the entry for key. Rasterization failures produce an
// empty glyph so one bad glyph never fails a frame.
func (c *Cache) rasterize(key layout.GlyphKey) *entry {
	e := &entry{glyph: Glyph{Key: key}}
	bm, err := c.raster.Rasterize(c.fonts[key.Font], key)
	if err != nil {
		slogger().Debug("glyph rasterization failed", "key", key.String(), "err", err)
		e.empty = true
		return e
	}
	if bm.Empty() {
		e.empty = true
		return e
	}
	e.glyph.Left, e.glyph.Top = bm.Left, bm.Top
	e.glyph.Width, e.glyph.Height = bm.Width, bm.Height
	e.pending = &atlas.Bitmap{Width: bm.Width, Height: bm.Height, Pix: bm.Pix}
	return e
}

// upload packs every used glyph that is not in the atlas.
func (c *Cache) upload(glyphs []layout.PositionedGlyph) error {
	for i := range glyphs {
		key := glyphs[i].Key
		e := c.entries[key]
		if e.empty {
			continue
		}
		if _, ok := c.atlas.Rect(key); ok {
			continue
		}

		bm := e.pending
		if bm == nil {
			// Released by a repack that could not fit it; rasterize again.
			fresh := c.rasterize(key)
			if fresh.empty {
				e.empty = true
				continue
			}
			bm = fresh.pending
			e.pending = bm
		}
		if _, err := c.atlas.Upload(key, *bm); err != nil {
			return err
		}
		e.pending = nil
		c.stats.Uploads++
	}
	return nil
}

// makeRoom grows the atlas by one step or, at maximum size, compacts it
// once to the glyphs used this frame.
func (c *Cache) makeRoom() error {
	w, h, err := c.atlas.NextSize()
	if err == nil {
		if err := c.atlas.Grow(w, h); err != nil {
			return fmt.Errorf("glyphcache: grow atlas: %w", err)
		}
		c.stats.Grows++
		return nil
	}

	if c.compacted {
		aw, ah := c.atlas.Size()
		return &FullError{Width: aw, Height: ah, Glyphs: c.inUse, Cause: err}
	}
	c.compacted = true
	c.stats.Compactions++
	if cerr := c.atlas.Compact(c.usedThisFrame); cerr != nil {
		return fmt.Errorf("glyphcache: compact atlas: %w", cerr)
	}
	return nil
}

func (c *Cache) usedThisFrame(key layout.GlyphKey) bool {
	e, ok := c.entries[key]
	return ok && e.lastUsed == c.frame
}

// resolve appends the drawable glyphs, refreshing texture coordinates of
// entries packed under an older generation.
func (c *Cache) resolve(glyphs []layout.PositionedGlyph, out []Resolved) []Resolved {
	gen := c.atlas.Generation()
	for i := range glyphs {
		g := &glyphs[i]
		e := c.entries[g.Key]
		if e.empty {
			continue
		}
		if e.glyph.Generation != gen || !e.glyph.Rect.IsValid() {
			r, _ := c.atlas.Rect(g.Key)
			e.glyph.Rect = r
			e.glyph.UV = c.atlas.UV(r)
			e.glyph.Generation = gen
		}

		x := g.X + float32(e.glyph.Left)
		y := g.Y + float32(e.glyph.Top)
		out = append(out, Resolved{
			Key: g.Key,
			Screen: layout.Rect{
				MinX: x,
				MinY: y,
				MaxX: x + float32(e.glyph.Width),
				MaxY: y + float32(e.glyph.Height),
			},
			UV:         e.glyph.UV,
			Color:      g.Color,
			Section:    g.Section,
			Generation: gen,
		})
	}
	return out
}

// evict drops glyphs idle for more than MaxIdleFrames.
func (c *Cache) evict() {
	if c.cfg.MaxIdleFrames <= 0 {
		return
	}
	limit := uint64(c.cfg.MaxIdleFrames)
	for key, e := range c.entries {
		if c.frame-e.lastUsed > limit {
			delete(c.entries, key)
			c.atlas.Release(key)
			c.stats.Evictions++
		}
	}
}

// Lookup returns the current record of key, with texture coordinates
// refreshed if the atlas generation changed.
func (c *Cache) Lookup(key layout.GlyphKey) (Glyph, bool) {
	e, ok := c.entries[key]
	if !ok || e.empty {
		return Glyph{}, false
	}
	r, ok := c.atlas.Rect(key)
	if !ok {
		return Glyph{}, false
	}
	if gen := c.atlas.Generation(); e.glyph.Generation != gen {
		e.glyph.Rect = r
		e.glyph.UV = c.atlas.UV(r)
		e.glyph.Generation = gen
	}
	return e.glyph, true
}

// Compacted reports whether the last Queue had to compact the atlas.
func (c *Cache) Compacted() bool { return c.compacted }

// Clear drops every glyph and resets the atlas.
func (c *Cache) Clear() error {
	clear(c.entries)
	if err := c.atlas.Reset(); err != nil {
		return fmt.Errorf("glyphcache: reset atlas: %w", err)
	}
	return nil
}

// Stats returns cache statistics.
func (c *Cache) Stats() Stats {
	s := c.stats
	s.Entries = len(c.entries)
	s.Frame = c.frame
	return s
}
