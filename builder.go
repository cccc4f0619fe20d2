package textbrush

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/textbrush/internal/atlas"
	"github.com/gogpu/textbrush/internal/cache"
	"github.com/gogpu/textbrush/internal/glyphcache"
	"github.com/gogpu/textbrush/internal/gpu"
	"github.com/gogpu/textbrush/internal/vertex"
	"github.com/gogpu/textbrush/layout"
	"github.com/gogpu/wgpu/hal"
)

// Builder collects fonts and options and creates a TextBrush. Font ids
// follow the order fonts are added, starting at 0.
type Builder struct {
	fonts []*layout.Font
	opts  []Option
	err   error
}

// NewBuilder returns a builder with the given fonts.
func NewBuilder(fonts ...*layout.Font) *Builder {
	return &Builder{fonts: append([]*layout.Font(nil), fonts...)}
}

// WithFont appends a parsed font.
func (b *Builder) WithFont(f *layout.Font) *Builder {
	b.fonts = append(b.fonts, f)
	return b
}

// WithFontBytes parses TTF or OTF data and appends the font. A parse
// error is reported by Build.
func (b *Builder) WithFontBytes(data []byte) *Builder {
	f, err := layout.ParseFont(data)
	if err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("textbrush: font %d: %w", len(b.fonts), err))
		return b
	}
	b.fonts = append(b.fonts, f)
	return b
}

// WithOptions appends brush options.
func (b *Builder) WithOptions(opts ...Option) *Builder {
	b.opts = append(b.opts, opts...)
	return b
}

// Build creates a brush drawing into render passes with the given color
// target format, for a width x height pixel viewport.
func (b *Builder) Build(device hal.Device, queue hal.Queue, format gputypes.TextureFormat, width, height float32) (*TextBrush, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.fonts) == 0 {
		return nil, ErrNoFonts
	}
	for i, f := range b.fonts {
		if f == nil {
			return nil, &ConfigError{Field: "Fonts", Reason: fmt.Sprintf("font %d is nil", i)}
		}
	}
	if device == nil || queue == nil {
		return nil, gpu.ErrNilDevice
	}

	o := defaultOptions()
	for _, opt := range b.opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if o.engine == nil {
		o.engine = layout.NewShaper(layout.WithSubpixelBins(o.subpixelBins))
	}
	if o.rasterizer == nil {
		o.rasterizer = layout.NewOutlineRasterizer(o.subpixelBins)
	}
	if err := checkSubpixelBins(o.engine, o.rasterizer); err != nil {
		return nil, err
	}

	tb := &TextBrush{
		fonts:   b.fonts,
		opts:    o,
		scale:   o.scaleFactor,
		layouts: cache.New[layoutKey, []layout.PositionedGlyph](o.layoutCache),
		builder: vertex.NewBuilder(),
	}
	if err := tb.init(device, queue, format, width, height); err != nil {
		tb.Destroy()
		return nil, err
	}

	w, h := tb.atlas.Size()
	slogger().Info("text brush created",
		"fonts", len(b.fonts), "atlas_width", w, "atlas_height", h,
		"max_atlas", tb.atlas.MaxSize(), "format", o.atlasFormat.String())
	return tb, nil
}

// init creates the GPU resources, the atlas and the glyph cache.
func (tb *TextBrush) init(device hal.Device, queue hal.Queue, format gputypes.TextureFormat, width, height float32) error {
	o := &tb.opts

	pcfg := gpu.DefaultPipelineConfig()
	pcfg.Format = format
	pcfg.DepthStencilFormat = o.depthStencil
	pcfg.SampleCount = o.sampleCount
	pcfg.InitialQuadCapacity = o.quadCapacity
	pipeline, err := gpu.NewPipeline(device, queue, pcfg)
	if err != nil {
		return fmt.Errorf("textbrush: create pipeline: %w", err)
	}
	tb.pipeline = pipeline

	if err := pipeline.ResizeViewport(width, height); err != nil {
		return fmt.Errorf("textbrush: %w", err)
	}

	texture, err := gpu.NewAtlasTexture(device, queue, o.atlasFormat)
	if err != nil {
		return fmt.Errorf("textbrush: create atlas texture: %w", err)
	}
	tb.texture = texture

	var up atlas.Uploader = texture
	if o.mirror {
		tb.mirror = atlas.NewImage()
		up = atlas.Tee{texture, tb.mirror}
	}
	a, err := atlas.New[layout.GlyphKey](o.atlasConfig(), up)
	if err != nil {
		return fmt.Errorf("textbrush: create atlas: %w", err)
	}
	tb.atlas = a
	tb.glyphs = glyphcache.New(tb.fonts, o.rasterizer, a, glyphcache.Config{MaxIdleFrames: o.maxIdleFrames})
	return nil
}

// subpixelBinner is implemented by engines and rasterizers that quantize
// glyph positions.
type subpixelBinner interface {
	SubpixelBins() int
}

// checkSubpixelBins rejects an engine and rasterizer that quantize glyph
// positions to different bin counts.
func checkSubpixelBins(e layout.Engine, r layout.Rasterizer) error {
	eb, ok := e.(subpixelBinner)
	if !ok {
		return nil
	}
	rb, ok := r.(subpixelBinner)
	if !ok {
		return nil
	}
	if eb.SubpixelBins() != rb.SubpixelBins() {
		return &ConfigError{
			Field:  "SubpixelBins",
			Reason: fmt.Sprintf("engine uses %d bins, rasterizer %d", eb.SubpixelBins(), rb.SubpixelBins()),
		}
	}
	return nil
}

// halProvider is implemented by gogpu device providers that expose the
// underlying HAL objects.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// limitsProvider is implemented by providers that report device limits.
type limitsProvider interface {
	Limits() gputypes.Limits
}

// BuildFromProvider creates a brush on the device of a gogpu host
// application. The provider must also expose HalDevice() and HalQueue()
// returning hal.Device and hal.Queue. The color format is the provider's
// surface format, or BGRA8Unorm in headless mode.
func (b *Builder) BuildFromProvider(provider gpucontext.DeviceProvider, width, height float32) (*TextBrush, error) {
	if provider == nil {
		return nil, gpu.ErrNilDevice
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("textbrush: provider %T does not expose HAL types", provider)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("textbrush: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("textbrush: provider HalQueue is not hal.Queue")
	}

	if lp, ok := provider.(limitsProvider); ok {
		b.opts = append(b.opts, WithDeviceLimits(lp.Limits()))
	}
	format := provider.SurfaceFormat()
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatBGRA8Unorm
	}
	return b.Build(device, queue, format, width, height)
}
