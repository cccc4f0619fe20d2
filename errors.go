package textbrush

import (
	"errors"
	"fmt"

	"github.com/gogpu/textbrush/internal/atlas"
	"github.com/gogpu/textbrush/internal/glyphcache"
	"github.com/gogpu/textbrush/internal/gpu"
	"github.com/gogpu/textbrush/layout"
)

// Errors returned by the brush. They are the sentinels of the packages
// that detect the condition, so errors.Is matches across layers.
var (
	// ErrAtlasFull is returned by Queue when the glyphs of one frame do not
	// fit into the atlas at its maximum size, even after compaction.
	ErrAtlasFull = glyphcache.ErrAtlasFull

	// ErrMaxSizeExceeded is returned when the atlas would have to grow
	// beyond the configured or device texture limit.
	ErrMaxSizeExceeded = atlas.ErrMaxSizeExceeded

	// ErrInvalidSectionData is returned by Queue for malformed sections:
	// invalid UTF-8, an unknown font id, non-finite positions or scales,
	// negative bounds.
	ErrInvalidSectionData = layout.ErrInvalidSectionData

	// ErrPipelineNotReady is returned by Draw before a successful Queue,
	// after a failed Queue, or when the queued frame was already drawn.
	ErrPipelineNotReady = gpu.ErrPipelineNotReady

	// ErrInvalidViewport is returned by Build and ResizeView for
	// non-positive or non-finite viewport sizes.
	ErrInvalidViewport = gpu.ErrInvalidViewport

	// ErrNoFonts is returned by Build when the builder has no fonts.
	ErrNoFonts = errors.New("textbrush: no fonts")

	// ErrDestroyed is returned by operations on a destroyed brush.
	ErrDestroyed = errors.New("textbrush: brush destroyed")
)

// Typed errors of the brush layers, re-exported for errors.As.
type (
	// SectionError describes which part of a section failed validation.
	SectionError = layout.SectionError

	// FullError reports an atlas overflow with its size and glyph count.
	FullError = glyphcache.FullError

	// GrowError reports a growth request beyond the maximum atlas size.
	GrowError = atlas.GrowError

	// StateError reports a pipeline operation called in the wrong state.
	StateError = gpu.StateError
)

// ConfigError reports an invalid brush option.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("textbrush: invalid config: %s: %s", e.Field, e.Reason)
}
