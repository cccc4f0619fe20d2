package layout

import (
	"errors"
	"fmt"
)

// Sentinel errors for the layout package.
var (
	// ErrEmptyFontData is returned when font data is empty.
	ErrEmptyFontData = errors.New("layout: empty font data")

	// ErrInvalidSectionData is returned for malformed section input:
	// invalid UTF-8, an unknown font id, non-finite positions or scales.
	ErrInvalidSectionData = errors.New("layout: invalid section data")

	// ErrNoOutline is returned by rasterizers for glyphs that have no
	// vector outline (bitmap or color glyphs).
	ErrNoOutline = errors.New("layout: glyph has no outline")
)

// SectionError describes which part of a section failed validation.
// It unwraps to ErrInvalidSectionData.
type SectionError struct {
	// Section is the index of the section in the queued batch, or -1.
	Section int
	// Text is the index of the text run inside the section, or -1.
	Text int
	// Field names the offending field.
	Field string
	// Reason is a human-readable description.
	Reason string
}

func (e *SectionError) Error() string {
	switch {
	case e.Section >= 0 && e.Text >= 0:
		return fmt.Sprintf("layout: section %d text %d: %s: %s", e.Section, e.Text, e.Field, e.Reason)
	case e.Section >= 0:
		return fmt.Sprintf("layout: section %d: %s: %s", e.Section, e.Field, e.Reason)
	case e.Text >= 0:
		return fmt.Sprintf("layout: text %d: %s: %s", e.Text, e.Field, e.Reason)
	default:
		return fmt.Sprintf("layout: %s: %s", e.Field, e.Reason)
	}
}

func (e *SectionError) Unwrap() error { return ErrInvalidSectionData }
