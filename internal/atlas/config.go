package atlas

import (
	"errors"
	"fmt"
)

// Atlas errors.
var (
	// ErrNoSpace is returned by Upload when the bitmap does not fit at the
	// current atlas size.
	ErrNoSpace = errors.New("atlas: no space left at current size")

	// ErrMaxSizeExceeded is returned when growth would exceed the
	// configured maximum texture dimension.
	ErrMaxSizeExceeded = errors.New("atlas: maximum texture size exceeded")

	// ErrInvalidSize is returned for sizes that are not powers of two or
	// that would shrink the atlas.
	ErrInvalidSize = errors.New("atlas: invalid atlas size")

	// ErrInvalidBitmap is returned for bitmaps whose pixel slice does not
	// match their dimensions.
	ErrInvalidBitmap = errors.New("atlas: invalid bitmap")

	// ErrRegionOutOfBounds is returned by uploaders for writes outside the
	// texture.
	ErrRegionOutOfBounds = errors.New("atlas: region is outside atlas bounds")
)

// GrowError reports a growth request beyond the maximum size.
// It unwraps to ErrMaxSizeExceeded.
type GrowError struct {
	Width, Height int
	Max           int
}

func (e *GrowError) Error() string {
	return fmt.Sprintf("atlas: cannot grow to %dx%d: maximum texture size is %d", e.Width, e.Height, e.Max)
}

func (e *GrowError) Unwrap() error { return ErrMaxSizeExceeded }

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "atlas: invalid config." + e.Field + ": " + e.Reason
}

// Size limits.
const (
	// MinSize is the smallest atlas dimension.
	MinSize = 16

	// DefaultInitialSize is the default initial atlas dimension.
	DefaultInitialSize = 256

	// DefaultMaxSize matches the WebGPU default maxTextureDimension2D.
	DefaultMaxSize = 8192

	// DefaultPadding is the default gap between packed bitmaps.
	DefaultPadding = 1
)

// Config holds atlas configuration.
type Config struct {
	// InitialWidth and InitialHeight are the starting texture dimensions.
	// Both must be powers of two.
	InitialWidth, InitialHeight int

	// MaxSize caps both dimensions. Must be a power of two.
	MaxSize int

	// Padding is the number of empty pixels kept right of and below each
	// bitmap so linear sampling does not bleed between glyphs.
	Padding int
}

// DefaultConfig returns the default atlas configuration.
func DefaultConfig() Config {
	return Config{
		InitialWidth:  DefaultInitialSize,
		InitialHeight: DefaultInitialSize,
		MaxSize:       DefaultMaxSize,
		Padding:       DefaultPadding,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !isPow2(c.MaxSize) || c.MaxSize < MinSize {
		return &ConfigError{Field: "MaxSize", Reason: fmt.Sprintf("must be a power of 2 >= %d", MinSize)}
	}
	if !isPow2(c.InitialWidth) || c.InitialWidth < MinSize {
		return &ConfigError{Field: "InitialWidth", Reason: fmt.Sprintf("must be a power of 2 >= %d", MinSize)}
	}
	if !isPow2(c.InitialHeight) || c.InitialHeight < MinSize {
		return &ConfigError{Field: "InitialHeight", Reason: fmt.Sprintf("must be a power of 2 >= %d", MinSize)}
	}
	if c.InitialWidth > c.MaxSize || c.InitialHeight > c.MaxSize {
		return &ConfigError{Field: "InitialWidth", Reason: "initial size must not exceed MaxSize"}
	}
	if c.Padding < 0 || c.Padding >= MinSize {
		return &ConfigError{Field: "Padding", Reason: fmt.Sprintf("must be in [0, %d)", MinSize)}
	}
	return nil
}

func isPow2(v int) bool {
	return v > 0 && v&(v-1) == 0
}
