package textbrush

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/textbrush/internal/atlas"
	"github.com/gogpu/textbrush/internal/gpu"
	"github.com/gogpu/textbrush/layout"
)

// AtlasFormat selects the texture format of the glyph atlas.
type AtlasFormat = gpu.AtlasFormat

// Atlas formats.
const (
	// FormatAlpha8 stores glyph coverage in one R8Unorm channel.
	FormatAlpha8 = gpu.FormatAlpha8
	// FormatRGBA8 replicates coverage into RGBA8Unorm for backends that
	// cannot sample R8 textures.
	FormatRGBA8 = gpu.FormatRGBA8
)

// Option configures a TextBrush during Build.
//
// Example:
//
//	brush, err := textbrush.NewBuilder(font).
//	    WithOptions(
//	        textbrush.WithMaxAtlasSize(4096),
//	        textbrush.WithDepthStencil(gputypes.TextureFormatDepth24Plus),
//	    ).
//	    Build(device, queue, gputypes.TextureFormatBGRA8Unorm, 800, 600)
type Option func(*options)

// options holds the brush configuration.
type options struct {
	initialWidth  int
	initialHeight int
	maxAtlasSize  int
	padding       int
	atlasFormat   AtlasFormat
	mirror        bool

	depthStencil gputypes.TextureFormat
	sampleCount  uint32
	quadCapacity int
	limits       gputypes.Limits

	subpixelBins  int
	engine        layout.Engine
	rasterizer    layout.Rasterizer
	maxIdleFrames int
	layoutCache   int
	highWaterMark float64
	scaleFactor   float32
}

// defaultOptions returns the default brush options.
func defaultOptions() options {
	return options{
		initialWidth:  atlas.DefaultInitialSize,
		initialHeight: atlas.DefaultInitialSize,
		maxAtlasSize:  atlas.DefaultMaxSize,
		padding:       atlas.DefaultPadding,
		atlasFormat:   FormatAlpha8,
		mirror:        true,
		depthStencil:  gputypes.TextureFormatUndefined,
		sampleCount:   1,
		quadCapacity:  256,
		limits:        gputypes.DefaultLimits(),
		subpixelBins:  layout.SubpixelBins,
		maxIdleFrames: 120,
		layoutCache:   1024,
		highWaterMark: 0.85,
		scaleFactor:   1,
	}
}

// WithInitialAtlasSize sets the starting atlas dimensions. Both must be
// powers of two of at least 16.
// Default: 256x256
func WithInitialAtlasSize(width, height int) Option {
	return func(o *options) {
		o.initialWidth, o.initialHeight = width, height
	}
}

// WithMaxAtlasSize caps both atlas dimensions. It must be a power of two
// and is further clamped to the device's MaxTextureDimension2D.
// Default: 8192
func WithMaxAtlasSize(size int) Option {
	return func(o *options) {
		o.maxAtlasSize = size
	}
}

// WithAtlasPadding sets the empty border kept around each glyph bitmap.
// Default: 1
func WithAtlasPadding(px int) Option {
	return func(o *options) {
		o.padding = px
	}
}

// WithAtlasFormat sets the atlas texture format.
// Default: FormatAlpha8
func WithAtlasFormat(f AtlasFormat) Option {
	return func(o *options) {
		o.atlasFormat = f
	}
}

// WithAtlasMirror keeps a CPU copy of the atlas for AtlasImage.
// Default: true
func WithAtlasMirror(enabled bool) Option {
	return func(o *options) {
		o.mirror = enabled
	}
}

// WithDepthStencil enables depth testing of sections by z against a depth
// attachment of the given format. The render pass passed to Draw must
// have a matching depth attachment.
func WithDepthStencil(format gputypes.TextureFormat) Option {
	return func(o *options) {
		o.depthStencil = format
	}
}

// WithSampleCount sets the MSAA sample count of the target render pass.
// Default: 1
func WithSampleCount(n uint32) Option {
	return func(o *options) {
		o.sampleCount = n
	}
}

// WithInitialQuadCapacity sets the initial vertex buffer size in glyphs.
// Default: 256
func WithInitialQuadCapacity(n int) Option {
	return func(o *options) {
		o.quadCapacity = n
	}
}

// WithDeviceLimits sets the device limits the atlas size is clamped to.
// BuildFromProvider reads them from the provider when it exposes them.
// Default: gputypes.DefaultLimits()
func WithDeviceLimits(l gputypes.Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

// WithSubpixelBins sets the number of horizontal subpixel positions of the
// default engine and rasterizer. A custom engine or rasterizer keeps its
// own setting; when both report one through a SubpixelBins() int method
// and the counts differ, Build returns a *ConfigError.
// Default: 4
func WithSubpixelBins(n int) Option {
	return func(o *options) {
		o.subpixelBins = n
	}
}

// WithEngine replaces the default go-text layout engine. Its subpixel
// bins must match the rasterizer's; see WithSubpixelBins.
func WithEngine(e layout.Engine) Option {
	return func(o *options) {
		o.engine = e
	}
}

// WithRasterizer replaces the default outline rasterizer. Its subpixel
// bins must match the engine's; see WithSubpixelBins.
func WithRasterizer(r layout.Rasterizer) Option {
	return func(o *options) {
		o.rasterizer = r
	}
}

// WithMaxIdleFrames evicts glyphs and cached layouts unused for n frames.
// Zero keeps them until the atlas fills up.
// Default: 120
func WithMaxIdleFrames(n int) Option {
	return func(o *options) {
		o.maxIdleFrames = n
	}
}

// WithLayoutCacheSize sets how many section layouts are cached.
// Zero means unlimited.
// Default: 1024
func WithLayoutCacheSize(n int) Option {
	return func(o *options) {
		o.layoutCache = n
	}
}

// WithHighWaterMark sets the atlas utilization in (0, 1] above which
// ResizeAtlasIfNeeded grows the atlas.
// Default: 0.85
func WithHighWaterMark(f float64) Option {
	return func(o *options) {
		o.highWaterMark = f
	}
}

// WithScaleFactor sets the initial display scale factor.
// Default: 1
func WithScaleFactor(f float32) Option {
	return func(o *options) {
		o.scaleFactor = f
	}
}

// validate checks the options that no lower layer validates.
func (o *options) validate() error {
	if o.atlasFormat != FormatAlpha8 && o.atlasFormat != FormatRGBA8 {
		return &ConfigError{Field: "AtlasFormat", Reason: "unknown format " + o.atlasFormat.String()}
	}
	if o.subpixelBins < 1 || o.subpixelBins > 255 {
		return &ConfigError{Field: "SubpixelBins", Reason: fmt.Sprintf("must be in [1, 255], got %d", o.subpixelBins)}
	}
	if o.maxIdleFrames < 0 {
		return &ConfigError{Field: "MaxIdleFrames", Reason: "must not be negative"}
	}
	if o.layoutCache < 0 {
		return &ConfigError{Field: "LayoutCacheSize", Reason: "must not be negative"}
	}
	if !(o.highWaterMark > 0 && o.highWaterMark <= 1) {
		return &ConfigError{Field: "HighWaterMark", Reason: fmt.Sprintf("must be in (0, 1], got %v", o.highWaterMark)}
	}
	if !validScale(o.scaleFactor) {
		return &ConfigError{Field: "ScaleFactor", Reason: fmt.Sprintf("must be finite and positive, got %v", o.scaleFactor)}
	}
	return nil
}

// atlasConfig returns the atlas configuration with the maximum size
// clamped to the device limit.
func (o *options) atlasConfig() atlas.Config {
	maxSize := o.maxAtlasSize
	if limit := int(o.limits.MaxTextureDimension2D); limit > 0 && maxSize > limit {
		clamped := floorPow2(limit)
		slogger().Warn("max atlas size clamped to device limit",
			"requested", maxSize, "limit", limit, "clamped", clamped)
		maxSize = clamped
	}
	cfg := atlas.Config{
		InitialWidth:  min(o.initialWidth, maxSize),
		InitialHeight: min(o.initialHeight, maxSize),
		MaxSize:       maxSize,
		Padding:       o.padding,
	}
	return cfg
}

// floorPow2 returns the largest power of two <= v.
func floorPow2(v int) int {
	p := 1
	for p*2 <= v {
		p *= 2
	}
	return p
}
