package layout

import (
	"unicode"

	"github.com/chewxy/math32"
	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/segmenter"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/bidi"
	"golang.org/x/text/unicode/norm"
)

// Shaper is the default Engine. It shapes text with the go-text HarfBuzz
// port, breaks lines at UAX #14 opportunities and aligns lines inside the
// section bounds.
//
// Shaper reuses internal buffers between calls and is not safe for
// concurrent use.
type Shaper struct {
	shaper shaping.HarfbuzzShaper
	seg    segmenter.Segmenter
	lang   language.Language
	bins   int
	dir    di.Direction

	runes  []rune
	owners []int
	words  []word
	lines  []line
}

// ShaperOption configures a Shaper.
type ShaperOption func(*Shaper)

// WithLanguage sets the BCP 47 language tag passed to the shaper.
// Default: "en".
func WithLanguage(tag string) ShaperOption {
	return func(s *Shaper) {
		s.lang = language.NewLanguage(tag)
	}
}

// WithSubpixelBins sets the number of horizontal subpixel positions glyph
// origins are quantized to. Values below 1 disable subpixel positioning.
// Default: SubpixelBins.
func WithSubpixelBins(n int) ShaperOption {
	return func(s *Shaper) {
		s.bins = n
	}
}

// NewShaper creates the default layout engine.
func NewShaper(opts ...ShaperOption) *Shaper {
	s := &Shaper{
		lang: language.NewLanguage("en"),
		bins: SubpixelBins,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bins < 1 {
		s.bins = 1
	}
	return s
}

// SubpixelBins returns the number of subpixel positions used.
func (s *Shaper) SubpixelBins() int { return s.bins }

// shapedGlyph is a glyph positioned relative to the start of its word.
type shapedGlyph struct {
	font  FontID
	gid   uint32
	size  fixed.Int26_6
	x, y  float32
	color [4]float32
}

// word is the text between two line-break opportunities.
type word struct {
	glyphs []shapedGlyph

	// width includes trailing whitespace, ink excludes it.
	width, ink float32

	ascent, descent, gap float32
	mandatory            bool
}

type line struct {
	start, end           int // word range
	ink                  float32
	ascent, descent, gap float32
}

// Layout implements Engine.
func (s *Shaper) Layout(fonts []*Font, sec *Section, scale float32, out []PositionedGlyph) ([]PositionedGlyph, error) {
	if err := sec.Validate(len(fonts)); err != nil {
		return out, err
	}
	if !(scale > 0) || math32.IsInf(scale, 0) {
		scale = 1
	}

	s.collect(sec)
	if len(s.runes) == 0 {
		return out, nil
	}

	s.dir = paragraphDirection(s.runes)
	s.breakWords(fonts, sec, scale, s.dir)
	s.fillLines(sec)
	return s.place(sec, out), nil
}

// collect gathers the NFC-normalized runes of all runs and records which
// run owns each rune.
func (s *Shaper) collect(sec *Section) {
	s.runes = s.runes[:0]
	s.owners = s.owners[:0]
	for i := range sec.Text {
		for _, r := range norm.NFC.String(sec.Text[i].Content) {
			s.runes = append(s.runes, r)
			s.owners = append(s.owners, i)
		}
	}
}

// paragraphDirection returns RTL when the bidi paragraph starts with a
// right-to-left run. Embedded runs of the other direction are not
// reordered.
func paragraphDirection(runes []rune) di.Direction {
	var p bidi.Paragraph
	if _, err := p.SetString(string(runes)); err != nil {
		return di.DirectionLTR
	}
	ord, err := p.Order()
	if err != nil {
		return di.DirectionLTR
	}
	if ord.Direction() == bidi.RightToLeft {
		return di.DirectionRTL
	}
	return di.DirectionLTR
}

func (s *Shaper) breakWords(fonts []*Font, sec *Section, scale float32, dir di.Direction) {
	// Glyph slices of previous words are reused.
	for i := range s.words {
		s.words[i].glyphs = s.words[i].glyphs[:0]
	}
	n := 0

	s.seg.Init(s.runes)
	iter := s.seg.LineIterator()
	for iter.Next() {
		ln := iter.Line()
		if n == len(s.words) {
			s.words = append(s.words, word{})
		}
		w := &s.words[n]
		n++

		glyphs := w.glyphs
		*w = word{glyphs: glyphs, mandatory: ln.IsMandatoryBreak}

		start := ln.Offset
		end := start + len(ln.Text)
		for end > start && isLineTerminator(s.runes[end-1]) {
			end--
		}
		inkEnd := end
		for inkEnd > start && unicode.IsSpace(s.runes[inkEnd-1]) {
			inkEnd--
		}

		// Empty words (bare newlines) still take the metrics of their run.
		owner := s.owners[start]
		t := &sec.Text[owner]
		w.ascent, w.descent, w.gap = fonts[t.Font].LineMetrics(t.Scale * scale)

		var trailing float32
		for a := start; a < end; {
			b := a + 1
			for b < end && s.owners[b] == s.owners[a] {
				b++
			}
			trailing += s.shapePiece(w, fonts, sec, scale, dir, a, b, inkEnd)
			a = b
		}
		w.ink = w.width - trailing
	}
	s.words = s.words[:n]
}

// shapePiece shapes runes [a, b), all owned by one run, and appends the
// glyphs to w. It returns the advance of glyphs at or after inkEnd.
func (s *Shaper) shapePiece(w *word, fonts []*Font, sec *Section, scale float32, dir di.Direction, a, b, inkEnd int) float32 {
	t := &sec.Text[s.owners[a]]
	f := fonts[t.Font]
	size := t.Scale * scale

	asc, desc, gap := f.LineMetrics(size)
	w.ascent = math32.Max(w.ascent, asc)
	w.descent = math32.Max(w.descent, desc)
	w.gap = math32.Max(w.gap, gap)

	fsize := SizeToFixed(size)
	out := s.shaper.Shape(shaping.Input{
		Text:      s.runes,
		RunStart:  a,
		RunEnd:    b,
		Direction: dir,
		Face:      f.face,
		Size:      fsize,
		Script:    detectScript(s.runes[a:b]),
		Language:  s.lang,
	})

	var trailing float32
	for _, g := range out.Glyphs {
		adv := FixedToFloat(g.XAdvance)
		w.glyphs = append(w.glyphs, shapedGlyph{
			font:  t.Font,
			gid:   uint32(g.GlyphID),
			size:  fsize,
			x:     w.width + FixedToFloat(g.XOffset),
			y:     -FixedToFloat(g.YOffset),
			color: t.Color,
		})
		if g.ClusterIndex >= inkEnd {
			trailing += adv
		}
		w.width += adv
	}
	return trailing
}

// fillLines greedily packs words into lines no wider than the section's
// horizontal bound.
func (s *Shaper) fillLines(sec *Section) {
	maxWidth := math32.Inf(1)
	if sec.Layout.Wrap == WrapWords {
		maxWidth = sec.bound(0)
	}

	s.lines = s.lines[:0]
	var cur line
	var x float32
	open := false

	for i := range s.words {
		w := &s.words[i]
		if open && cur.end > cur.start && x+w.ink > maxWidth {
			s.lines = append(s.lines, cur)
			open = false
		}
		if !open {
			cur = line{start: i, end: i}
			x = 0
			open = true
		}
		cur.end = i + 1
		cur.ink = x + w.ink
		x += w.width
		cur.ascent = math32.Max(cur.ascent, w.ascent)
		cur.descent = math32.Max(cur.descent, w.descent)
		cur.gap = math32.Max(cur.gap, w.gap)

		if w.mandatory {
			s.lines = append(s.lines, cur)
			open = false
		}
	}
	if open {
		s.lines = append(s.lines, cur)
	}
}

// place aligns lines and appends the final glyph positions to out.
func (s *Shaper) place(sec *Section, out []PositionedGlyph) []PositionedGlyph {
	lh := sec.Layout.LineHeight
	if lh == 0 {
		lh = 1
	}

	var height float32
	for i, ln := range s.lines {
		height += (ln.ascent + ln.descent) * lh
		if i < len(s.lines)-1 {
			height += ln.gap * lh
		}
	}

	x0, y0 := sec.Position[0], sec.Position[1]
	top := y0
	switch sec.Layout.VAlign {
	case AlignMiddle:
		top = y0 - height/2
	case AlignBottom:
		top = y0 - height
	}

	y := top
	for _, ln := range s.lines {
		baseline := math32.Round(y + ln.ascent*lh)
		y += (ln.ascent + ln.descent + ln.gap) * lh

		left := x0
		switch sec.Layout.HAlign {
		case AlignCenter:
			left = x0 - ln.ink/2
		case AlignRight:
			left = x0 - ln.ink
		}

		// Right-to-left lines place their words from the last to the
		// first; the trailing space of the last word hangs off the left.
		var wx float32
		first, last, step := ln.start, ln.end, 1
		if s.dir == di.DirectionRTL && ln.end > ln.start {
			first, last, step = ln.end-1, ln.start-1, -1
			lw := &s.words[ln.end-1]
			wx = -(lw.width - lw.ink)
		}
		for wi := first; wi != last; wi += step {
			w := &s.words[wi]
			for _, g := range w.glyphs {
				px, bin := QuantizeX(left+wx+g.x, s.bins)
				out = append(out, PositionedGlyph{
					Key: GlyphKey{
						Font:     g.font,
						Glyph:    g.gid,
						Size:     g.size,
						Subpixel: bin,
					},
					X:     px,
					Y:     math32.Round(baseline + g.y),
					Color: g.color,
				})
			}
			wx += w.width
		}
	}
	return out
}

// detectScript returns the script of the first letter-like rune.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsDigit(r) {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}

func isLineTerminator(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', 0x85, 0x2028, 0x2029:
		return true
	}
	return false
}
