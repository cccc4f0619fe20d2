package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// Pipeline errors.
var (
	// ErrPipelineNotReady is returned when an operation is called before
	// the setup it depends on.
	ErrPipelineNotReady = errors.New("gpu: pipeline not ready")

	// ErrNilDevice is returned when a nil device or queue is passed.
	ErrNilDevice = errors.New("gpu: device or queue is nil")

	// ErrNilAtlasTexture is returned when Draw is called without a texture.
	ErrNilAtlasTexture = errors.New("gpu: atlas texture is nil")

	// ErrInvalidViewport is returned for non-positive or non-finite
	// viewport sizes.
	ErrInvalidViewport = errors.New("gpu: invalid viewport size")
)

// State is the draw readiness of a Pipeline.
type State int

const (
	// StateUnbound means no viewport has been set.
	StateUnbound State = iota
	// StateBound means the projection is set but no vertices are uploaded.
	StateBound
	// StateReady means vertices for the current frame are uploaded.
	StateReady
	// StateDrawn means the current vertices were drawn.
	StateDrawn
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnbound:
		return "Unbound"
	case StateBound:
		return "Bound"
	case StateReady:
		return "Ready"
	case StateDrawn:
		return "Drawn"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StateError reports an operation called in the wrong pipeline state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("gpu: %s called in state %s", e.Op, e.State)
}

func (e *StateError) Unwrap() error { return ErrPipelineNotReady }

// ConfigError reports an invalid pipeline configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("gpu: invalid config: %s: %s", e.Field, e.Reason)
}

// AtlasFormat selects the texture format of the glyph atlas.
type AtlasFormat int

const (
	// FormatAlpha8 stores coverage in a single 8-bit channel (R8Unorm).
	FormatAlpha8 AtlasFormat = iota
	// FormatRGBA8 replicates coverage into four 8-bit channels
	// (RGBA8Unorm) for backends without R8 sampling.
	FormatRGBA8
)

// String returns a string representation of the format.
func (f AtlasFormat) String() string {
	switch f {
	case FormatAlpha8:
		return "Alpha8"
	case FormatRGBA8:
		return "RGBA8"
	default:
		return fmt.Sprintf("AtlasFormat(%d)", int(f))
	}
}

// TextureFormat returns the GPU format for f.
func (f AtlasFormat) TextureFormat() gputypes.TextureFormat {
	if f == FormatRGBA8 {
		return gputypes.TextureFormatRGBA8Unorm
	}
	return gputypes.TextureFormatR8Unorm
}

// BytesPerPixel returns the texel size of f.
func (f AtlasFormat) BytesPerPixel() int {
	if f == FormatRGBA8 {
		return 4
	}
	return 1
}

// PipelineConfig holds pipeline configuration.
type PipelineConfig struct {
	// Format is the color target format of the render pass.
	// Default: BGRA8Unorm
	Format gputypes.TextureFormat

	// DepthStencilFormat enables depth testing (LessEqual, depth write on)
	// when set. Undefined disables it and relies on draw order.
	DepthStencilFormat gputypes.TextureFormat

	// SampleCount is the MSAA sample count of the render pass (1 or 4).
	// Default: 1
	SampleCount uint32

	// InitialQuadCapacity is the initial vertex buffer capacity in quads.
	// Buffers double on demand and never shrink.
	// Default: 256
	InitialQuadCapacity int
}

// DefaultPipelineConfig returns default configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Format:              gputypes.TextureFormatBGRA8Unorm,
		DepthStencilFormat:  gputypes.TextureFormatUndefined,
		SampleCount:         1,
		InitialQuadCapacity: 256,
	}
}

// Validate checks the configuration.
func (c *PipelineConfig) Validate() error {
	if c.Format == gputypes.TextureFormatUndefined {
		return &ConfigError{Field: "Format", Reason: "must be set"}
	}
	if c.SampleCount != 1 && c.SampleCount != 4 {
		return &ConfigError{Field: "SampleCount", Reason: fmt.Sprintf("must be 1 or 4, got %d", c.SampleCount)}
	}
	if c.InitialQuadCapacity <= 0 {
		return &ConfigError{Field: "InitialQuadCapacity", Reason: "must be positive"}
	}
	return nil
}
