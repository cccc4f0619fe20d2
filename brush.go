package textbrush

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"image"

	"github.com/chewxy/math32"
	"github.com/gogpu/textbrush/internal/atlas"
	"github.com/gogpu/textbrush/internal/cache"
	"github.com/gogpu/textbrush/internal/glyphcache"
	"github.com/gogpu/textbrush/internal/gpu"
	"github.com/gogpu/textbrush/internal/vertex"
	"github.com/gogpu/textbrush/layout"
	"github.com/gogpu/wgpu/hal"
)

// Section, Text and Layout are the section data model of package layout.
type (
	Section = layout.Section
	Text    = layout.Text
	Layout  = layout.Layout
)

// layoutKey identifies a cached section layout.
type layoutKey struct {
	hash  uint64
	scale float32
}

// Stats contains brush statistics of the last frame and running totals.
type Stats struct {
	// Frames counts successful Queue calls; ReusedFrames counts the ones
	// that reused the previous vertices.
	Frames       uint64
	ReusedFrames uint64

	// Sections, Glyphs and Quads describe the last queued frame.
	Sections int
	Glyphs   int
	Quads    int

	AtlasWidth       int
	AtlasHeight      int
	AtlasGeneration  uint64
	AtlasGlyphs      int
	AtlasUtilization float64
	AtlasGrows       uint64
	AtlasCompactions uint64

	GlyphHits   uint64
	GlyphMisses uint64

	LayoutHits   uint64
	LayoutMisses uint64

	QuadCapacity int
	DrawCalls    uint64
	State        string
}

// TextBrush renders text sections into a caller-provided render pass.
//
// Each frame the application calls Queue with the frame's sections and
// then Draw inside its render pass. Queue lays the sections out, packs
// missing glyphs into the atlas and uploads one vertex per glyph corner;
// Draw records a single indexed draw call.
//
// TextBrush is not safe for concurrent use.
type TextBrush struct {
	fonts []*layout.Font
	opts  options
	scale float32

	atlas    *atlas.Atlas[layout.GlyphKey]
	texture  *gpu.AtlasTexture
	mirror   *atlas.Image
	glyphs   *glyphcache.Cache
	layouts  *cache.Cache[layoutKey, []layout.PositionedGlyph]
	builder  *vertex.Builder
	pipeline *gpu.Pipeline

	positioned []layout.PositionedGlyph
	resolved   []glyphcache.Resolved
	quads      []vertex.Glyph
	clips      []layout.Rect

	// Previous successful frame, for vertex reuse.
	hasLast  bool
	lastHash uint64
	lastGen  uint64

	frames, reused   uint64
	sections, quadsN int
	destroyed        bool
}

// Queue replaces the frame's sections. It lays them out, rasterizes and
// packs glyphs missing from the atlas (growing it when needed) and
// uploads the vertices of all sections. When the sections and the atlas
// are unchanged since the previous frame the uploaded vertices are reused.
//
// On error nothing is drawn for this frame: Draw returns
// ErrPipelineNotReady until a later Queue succeeds.
func (tb *TextBrush) Queue(sections ...Section) error {
	if tb.destroyed {
		return ErrDestroyed
	}

	hash := tb.frameHash(sections)
	if tb.hasLast && hash == tb.lastHash && tb.atlas.Generation() == tb.lastGen {
		if err := tb.pipeline.Reuse(); err == nil {
			tb.frames++
			tb.reused++
			slogger().Debug("text frame reused", "sections", len(sections), "quads", tb.quadsN)
			return nil
		}
	}

	if err := tb.queue(sections); err != nil {
		tb.hasLast = false
		tb.pipeline.Invalidate()
		return err
	}
	tb.hasLast = true
	tb.lastHash = hash
	tb.lastGen = tb.atlas.Generation()
	tb.frames++
	return nil
}

func (tb *TextBrush) queue(sections []Section) error {
	tb.layouts.NextFrame()

	tb.positioned = tb.positioned[:0]
	for i := range sections {
		glyphs, err := tb.layout(&sections[i])
		if err != nil {
			var se *layout.SectionError
			if errors.As(err, &se) {
				se.Section = i
			}
			return err
		}
		for _, g := range glyphs {
			g.Section = i
			tb.positioned = append(tb.positioned, g)
		}
	}

	resolved, err := tb.glyphs.Queue(tb.positioned, tb.resolved[:0])
	if err != nil {
		return err
	}
	tb.resolved = resolved

	tb.clips = tb.clips[:0]
	for i := range sections {
		tb.clips = append(tb.clips, sections[i].ClipRect())
	}
	tb.quads = tb.quads[:0]
	for i := range resolved {
		r := &resolved[i]
		tb.quads = append(tb.quads, vertex.Glyph{
			Screen: r.Screen,
			UV:     r.UV,
			Color:  r.Color,
			Z:      sections[r.Section].Z,
			Clip:   tb.clips[r.Section],
		})
	}
	mesh := tb.builder.Build(tb.quads)
	if err := tb.pipeline.UploadVertices(mesh); err != nil {
		return fmt.Errorf("textbrush: %w", err)
	}

	if tb.opts.maxIdleFrames > 0 {
		tb.layouts.Sweep(uint64(tb.opts.maxIdleFrames))
	}
	tb.sections = len(sections)
	tb.quadsN = mesh.Quads()
	return nil
}

// layout returns the glyphs of s, shaped on a cache miss.
func (tb *TextBrush) layout(s *Section) ([]layout.PositionedGlyph, error) {
	key := layoutKey{hash: s.Hash(), scale: tb.scale}
	if glyphs, ok := tb.layouts.Get(key); ok {
		return glyphs, nil
	}
	glyphs, err := tb.opts.engine.Layout(tb.fonts, s, tb.scale, nil)
	if err != nil {
		return nil, err
	}
	tb.layouts.Set(key, glyphs)
	return glyphs, nil
}

// frameHash hashes the section hashes in order with the scale factor.
func (tb *TextBrush) frameHash(sections []Section) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], math32.Float32bits(tb.scale))
	_, _ = h.Write(buf[:4])
	for i := range sections {
		binary.LittleEndian.PutUint64(buf[:], sections[i].Hash())
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// Draw records the queued text into rp with one indexed draw call. It
// returns ErrPipelineNotReady when no frame is queued, the last Queue
// failed, or the queued frame was already drawn.
func (tb *TextBrush) Draw(rp hal.RenderPassEncoder) error {
	if tb.destroyed {
		return ErrDestroyed
	}
	if err := tb.pipeline.Draw(rp, tb.texture); err != nil {
		return fmt.Errorf("textbrush: draw: %w", err)
	}
	return nil
}

// ResizeView sets the viewport size in pixels. Queued vertices stay valid.
// A custom transform set with SetTransform is replaced.
func (tb *TextBrush) ResizeView(width, height float32) error {
	if tb.destroyed {
		return ErrDestroyed
	}
	if err := tb.pipeline.ResizeViewport(width, height); err != nil {
		return fmt.Errorf("textbrush: %w", err)
	}
	return nil
}

// SetTransform replaces the projection with the column-major matrix m,
// mapping screen pixels (x, y, z, 1) to clip space. ResizeView restores
// the orthographic projection.
func (tb *TextBrush) SetTransform(m [16]float32) error {
	if tb.destroyed {
		return ErrDestroyed
	}
	if err := tb.pipeline.SetTransform(m); err != nil {
		return fmt.Errorf("textbrush: %w", err)
	}
	return nil
}

// ResizeAtlasIfNeeded grows the atlas by one step when its utilization is
// above the high-water mark or the last Queue had to compact it. It
// reports whether the atlas grew; growth invalidates the queued vertices.
// At the maximum size it returns an error wrapping ErrMaxSizeExceeded.
func (tb *TextBrush) ResizeAtlasIfNeeded() (bool, error) {
	if tb.destroyed {
		return false, ErrDestroyed
	}
	util := tb.atlas.Utilization()
	if util < tb.opts.highWaterMark && !tb.glyphs.Compacted() {
		return false, nil
	}
	w, h, err := tb.atlas.NextSize()
	if err != nil {
		return false, err
	}
	if err := tb.atlas.Grow(w, h); err != nil {
		return false, err
	}
	tb.invalidate()
	slogger().Debug("atlas grown ahead of demand", "width", w, "height", h, "utilization", util)
	return true, nil
}

// SetScaleFactor sets the display scale factor text runs are multiplied
// by. A change drops every cached glyph and layout so glyphs are
// rasterized again at the new pixel size.
func (tb *TextBrush) SetScaleFactor(f float32) error {
	if tb.destroyed {
		return ErrDestroyed
	}
	if !validScale(f) {
		return &ConfigError{Field: "ScaleFactor", Reason: fmt.Sprintf("must be finite and positive, got %v", f)}
	}
	if f == tb.scale {
		return nil
	}
	tb.scale = f
	tb.layouts.Clear()
	tb.invalidate()
	if err := tb.glyphs.Clear(); err != nil {
		return fmt.Errorf("textbrush: %w", err)
	}
	slogger().Info("scale factor changed", "scale", f)
	return nil
}

// ScaleFactor returns the display scale factor.
func (tb *TextBrush) ScaleFactor() float32 { return tb.scale }

// invalidate drops the queued vertices; the next Queue rebuilds them.
func (tb *TextBrush) invalidate() {
	tb.hasLast = false
	tb.pipeline.Invalidate()
}

// AtlasImage returns a CPU copy of the atlas texture, or nil when the
// mirror is disabled. The image is replaced whenever the atlas is
// reallocated.
func (tb *TextBrush) AtlasImage() *image.Alpha {
	if tb.mirror == nil {
		return nil
	}
	return tb.mirror.Alpha()
}

// Fonts returns the number of fonts. Valid font ids are [0, Fonts()).
func (tb *TextBrush) Fonts() int { return len(tb.fonts) }

// Stats returns brush statistics.
func (tb *TextBrush) Stats() Stats {
	as := tb.atlas.Stats()
	gs := tb.glyphs.Stats()
	ls := tb.layouts.Stats()
	ps := tb.pipeline.Stats()
	return Stats{
		Frames:           tb.frames,
		ReusedFrames:     tb.reused,
		Sections:         tb.sections,
		Glyphs:           len(tb.resolved),
		Quads:            tb.quadsN,
		AtlasWidth:       as.Width,
		AtlasHeight:      as.Height,
		AtlasGeneration:  as.Generation,
		AtlasGlyphs:      as.Slots,
		AtlasUtilization: as.Utilization,
		AtlasGrows:       as.Grows,
		AtlasCompactions: gs.Compactions,
		GlyphHits:        gs.Hits,
		GlyphMisses:      gs.Misses,
		LayoutHits:       ls.Hits,
		LayoutMisses:     ls.Misses,
		QuadCapacity:     ps.QuadCapacity,
		DrawCalls:        ps.Draws,
		State:            ps.State.String(),
	}
}

// Destroy releases the GPU resources of the brush. Safe to call multiple
// times.
func (tb *TextBrush) Destroy() {
	if tb.pipeline != nil {
		tb.pipeline.Destroy()
	}
	if tb.texture != nil {
		tb.texture.Destroy()
	}
	tb.destroyed = true
}

func validScale(f float32) bool {
	return f > 0 && !math32.IsInf(f, 0)
}
