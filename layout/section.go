package layout

import (
	"unicode/utf8"

	"github.com/chewxy/math32"
)

// Wrap controls how a section breaks text into lines.
type Wrap uint8

const (
	// WrapWords breaks lines at Unicode line-break opportunities when a
	// line would exceed the section's horizontal bound. Explicit newlines
	// always break.
	WrapWords Wrap = iota

	// SingleLine ignores the horizontal bound; only explicit newlines
	// break lines.
	SingleLine
)

// String returns the string representation of the wrap mode.
func (w Wrap) String() string {
	switch w {
	case WrapWords:
		return "WrapWords"
	case SingleLine:
		return "SingleLine"
	default:
		return unknownStr
	}
}

// HAlign is the horizontal alignment of lines relative to the section's
// screen position.
type HAlign uint8

const (
	// AlignLeft places the left edge of each line at the screen position.
	AlignLeft HAlign = iota
	// AlignCenter centers each line on the screen position.
	AlignCenter
	// AlignRight places the right edge of each line at the screen position.
	AlignRight
)

// String returns the string representation of the alignment.
func (a HAlign) String() string {
	switch a {
	case AlignLeft:
		return "Left"
	case AlignCenter:
		return "Center"
	case AlignRight:
		return "Right"
	default:
		return unknownStr
	}
}

// VAlign is the vertical alignment of the text block relative to the
// section's screen position.
type VAlign uint8

const (
	// AlignTop places the top of the first line at the screen position.
	AlignTop VAlign = iota
	// AlignMiddle centers the text block on the screen position.
	AlignMiddle
	// AlignBottom places the bottom of the last line at the screen position.
	AlignBottom
)

// String returns the string representation of the alignment.
func (a VAlign) String() string {
	switch a {
	case AlignTop:
		return "Top"
	case AlignMiddle:
		return "Middle"
	case AlignBottom:
		return "Bottom"
	default:
		return unknownStr
	}
}

const unknownStr = "Unknown"

// Layout holds the line breaking and alignment settings of a section.
// The zero value wraps words, aligns top-left and uses natural line height.
type Layout struct {
	Wrap   Wrap
	HAlign HAlign
	VAlign VAlign

	// LineHeight scales the natural line advance
	// (ascent + descent + gap). Zero means 1.
	LineHeight float32
}

// Text is one styled run of a section.
type Text struct {
	// Content is UTF-8 text. It is NFC-normalized before shaping.
	Content string

	// Scale is the font size in pixels per em.
	Scale float32

	// Color is straight (non-premultiplied) RGBA in [0, 1].
	Color [4]float32

	// Font selects the font from the brush's font list.
	Font FontID
}

// NewText returns a Text with a 16px scale and opaque black color.
func NewText(content string) Text {
	return Text{
		Content: content,
		Scale:   16,
		Color:   [4]float32{0, 0, 0, 1},
	}
}

// WithScale returns a copy of t with the given pixel scale.
func (t Text) WithScale(scale float32) Text {
	t.Scale = scale
	return t
}

// WithColor returns a copy of t with the given RGBA color.
func (t Text) WithColor(c [4]float32) Text {
	t.Color = c
	return t
}

// WithFont returns a copy of t using the given font.
func (t Text) WithFont(id FontID) Text {
	t.Font = id
	return t
}

// Section is one unit of text to render: styled runs placed on screen.
type Section struct {
	// Text holds the styled runs, laid out one after another.
	Text []Text

	// Position is the anchor point in screen pixels (origin top-left,
	// y down). Its meaning depends on Layout alignment.
	Position [2]float32

	// Bounds is the maximum width and height of the text block in pixels.
	// A zero or infinite dimension is unbounded. Glyphs outside the bounds
	// are clipped.
	Bounds [2]float32

	Layout Layout

	// Z is the depth of the section in [0, 1]. Sections with a higher Z
	// render above sections with a lower Z.
	Z float32
}

// NewSection returns a section at the given screen position.
func NewSection(x, y float32, texts ...Text) Section {
	return Section{Text: texts, Position: [2]float32{x, y}}
}

// WithBounds returns a copy of s with the given bounds.
func (s Section) WithBounds(w, h float32) Section {
	s.Bounds = [2]float32{w, h}
	return s
}

// WithLayout returns a copy of s with the given layout.
func (s Section) WithLayout(l Layout) Section {
	s.Layout = l
	return s
}

// WithZ returns a copy of s with the given depth.
func (s Section) WithZ(z float32) Section {
	s.Z = z
	return s
}

// AddText returns a copy of s with t appended.
func (s Section) AddText(t Text) Section {
	texts := make([]Text, len(s.Text), len(s.Text)+1)
	copy(texts, s.Text)
	s.Text = append(texts, t)
	return s
}

// IsEmpty reports whether the section has no text content.
func (s *Section) IsEmpty() bool {
	for i := range s.Text {
		if s.Text[i].Content != "" {
			return false
		}
	}
	return true
}

// bound returns the effective bound for dimension i.
func (s *Section) bound(i int) float32 {
	b := s.Bounds[i]
	if b == 0 {
		return math32.Inf(1)
	}
	return b
}

// Rect is an axis-aligned rectangle in screen pixels.
type Rect struct {
	MinX, MinY, MaxX, MaxY float32
}

// Width returns the rectangle width.
func (r Rect) Width() float32 { return r.MaxX - r.MinX }

// Height returns the rectangle height.
func (r Rect) Height() float32 { return r.MaxY - r.MinY }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.MinX >= r.MaxX || r.MinY >= r.MaxY }

// Intersect returns the intersection of r and o.
func (r Rect) Intersect(o Rect) Rect {
	return Rect{
		MinX: math32.Max(r.MinX, o.MinX),
		MinY: math32.Max(r.MinY, o.MinY),
		MaxX: math32.Min(r.MaxX, o.MaxX),
		MaxY: math32.Min(r.MaxY, o.MaxY),
	}
}

// ClipRect returns the screen-space rectangle glyphs of s are clipped to.
// Unbounded dimensions extend to infinity.
func (s *Section) ClipRect() Rect {
	w, h := s.bound(0), s.bound(1)
	x, y := s.Position[0], s.Position[1]

	var r Rect
	switch s.Layout.HAlign {
	case AlignCenter:
		r.MinX, r.MaxX = x-w/2, x+w/2
	case AlignRight:
		r.MinX, r.MaxX = x-w, x
	default:
		r.MinX, r.MaxX = x, x+w
	}
	switch s.Layout.VAlign {
	case AlignMiddle:
		r.MinY, r.MaxY = y-h/2, y+h/2
	case AlignBottom:
		r.MinY, r.MaxY = y-h, y
	default:
		r.MinY, r.MaxY = y, y+h
	}
	return r
}

// Validate checks that s can be laid out with numFonts fonts.
// It returns a *SectionError wrapping ErrInvalidSectionData.
func (s *Section) Validate(numFonts int) error {
	if !finite(s.Position[0]) || !finite(s.Position[1]) {
		return &SectionError{Section: -1, Text: -1, Field: "Position", Reason: "not finite"}
	}
	for i, b := range s.Bounds {
		if math32.IsNaN(b) || b < 0 {
			return &SectionError{Section: -1, Text: -1, Field: "Bounds", Reason: boundReason(i)}
		}
	}
	if !finite(s.Z) || s.Z < 0 || s.Z > 1 {
		return &SectionError{Section: -1, Text: -1, Field: "Z", Reason: "must be in [0, 1]"}
	}
	if !finite(s.Layout.LineHeight) || s.Layout.LineHeight < 0 {
		return &SectionError{Section: -1, Text: -1, Field: "Layout.LineHeight", Reason: "must be finite and non-negative"}
	}
	if s.Layout.Wrap > SingleLine || s.Layout.HAlign > AlignRight || s.Layout.VAlign > AlignBottom {
		return &SectionError{Section: -1, Text: -1, Field: "Layout", Reason: "unknown wrap or alignment value"}
	}
	for i := range s.Text {
		t := &s.Text[i]
		if !utf8.ValidString(t.Content) {
			return &SectionError{Section: -1, Text: i, Field: "Content", Reason: "invalid UTF-8"}
		}
		if !finite(t.Scale) || t.Scale <= 0 {
			return &SectionError{Section: -1, Text: i, Field: "Scale", Reason: "must be finite and positive"}
		}
		if t.Font < 0 || int(t.Font) >= numFonts {
			return &SectionError{Section: -1, Text: i, Field: "Font", Reason: "unknown font id"}
		}
		for _, c := range t.Color {
			if !finite(c) {
				return &SectionError{Section: -1, Text: i, Field: "Color", Reason: "not finite"}
			}
		}
	}
	return nil
}

func boundReason(i int) string {
	if i == 0 {
		return "width must be non-negative"
	}
	return "height must be non-negative"
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}
