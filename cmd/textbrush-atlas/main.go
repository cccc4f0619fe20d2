// Command textbrush-atlas lays out text with textbrush on the noop GPU
// device and writes the resulting glyph atlas to a PNG file.
//
// It is a headless harness for inspecting atlas packing and growth:
//
//	textbrush-atlas -text "Hello, World" -size 48 -out atlas.png
//	textbrush-atlas -font MyFont.ttf -max-atlas 512 -frames 3 -v
package main

import (
	"errors"
	"flag"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/textbrush"
	"github.com/gogpu/textbrush/internal/gpu"
	"github.com/gogpu/textbrush/layout"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/pterm/pterm"
	"golang.org/x/image/font/gofont/goregular"
)

func main() {
	var (
		fontPath    = flag.String("font", "", "TTF/OTF font file (default: Go Regular)")
		text        = flag.String("text", "The quick brown fox jumps over the lazy dog", "text to render")
		size        = flag.Float64("size", 32, "font size in pixels")
		out         = flag.String("out", "atlas.png", "output PNG file")
		maxAtlas    = flag.Int("max-atlas", 2048, "maximum atlas dimension (power of two)")
		frames      = flag.Int("frames", 1, "number of frames to queue and draw")
		width       = flag.Float64("width", 800, "viewport width")
		height      = flag.Float64("height", 600, "viewport height")
		checkShader = flag.Bool("check-shader", false, "validate the glyph shader and exit")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelDebug)
		textbrush.SetLogger(slog.New(pterm.NewSlogHandler(logger)))
	}

	if *checkShader {
		n, err := gpu.ValidateShader()
		if err != nil {
			pterm.Error.Printfln("shader validation failed: %v", err)
			os.Exit(1)
		}
		pterm.Success.Printfln("glyph shader valid (%d bytes SPIR-V)", n)
		return
	}

	cfg := config{
		fontPath: *fontPath,
		text:     *text,
		size:     float32(*size),
		out:      *out,
		maxAtlas: *maxAtlas,
		frames:   *frames,
		width:    float32(*width),
		height:   float32(*height),
	}
	if err := run(cfg); err != nil {
		pterm.Error.Printfln("%v", err)
		os.Exit(1)
	}
}

type config struct {
	fontPath      string
	text          string
	size          float32
	out           string
	maxAtlas      int
	frames        int
	width, height float32
}

func run(cfg config) error {
	device, queue, cleanup, err := openNoopDevice()
	if err != nil {
		return err
	}
	defer cleanup()

	b := textbrush.NewBuilder()
	if cfg.fontPath != "" {
		f, err := layout.ParseFontFile(cfg.fontPath)
		if err != nil {
			return err
		}
		b.WithFont(f)
	} else {
		b.WithFontBytes(goregular.TTF)
	}

	brush, err := b.WithOptions(textbrush.WithMaxAtlasSize(cfg.maxAtlas)).
		Build(device, queue, gputypes.TextureFormatBGRA8Unorm, cfg.width, cfg.height)
	if err != nil {
		return fmt.Errorf("build brush: %w", err)
	}
	defer brush.Destroy()

	sections := buildSections(cfg)
	rp := &noop.RenderPassEncoder{}
	for i := 0; i < cfg.frames; i++ {
		if err := brush.Queue(sections...); err != nil {
			if errors.Is(err, textbrush.ErrAtlasFull) {
				return fmt.Errorf("frame %d: %w (try a larger -max-atlas)", i, err)
			}
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if err := brush.Draw(rp); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}

	if err := writePNG(cfg.out, brush); err != nil {
		return err
	}
	pterm.Success.Printfln("atlas written to %s", cfg.out)
	return printStats(brush.Stats())
}

// buildSections splits text into one section per line, stacked down the
// viewport with increasing depth.
func buildSections(cfg config) []textbrush.Section {
	lines := strings.Split(cfg.text, `\n`)
	sections := make([]textbrush.Section, 0, len(lines))
	for i, line := range lines {
		z := float32(i) / float32(len(lines))
		t := layout.NewText(line).WithScale(cfg.size).WithColor([4]float32{1, 1, 1, 1})
		sec := layout.NewSection(10, 10+float32(i)*cfg.size*1.5, t).
			WithBounds(cfg.width-20, 0).
			WithZ(z)
		sections = append(sections, sec)
	}
	return sections
}

func openNoopDevice() (hal.Device, hal.Queue, func(), error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, nil, errors.New("no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, nil, fmt.Errorf("open device: %w", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup, nil
}

func writePNG(path string, brush *textbrush.TextBrush) error {
	img := brush.AtlasImage()
	if img == nil {
		return errors.New("atlas mirror disabled")
	}
	f, err := os.Create(path) // #nosec G304 -- output path is provided by the user
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func printStats(s textbrush.Stats) error {
	data := pterm.TableData{
		{"Metric", "Value"},
		{"Frames (reused)", fmt.Sprintf("%d (%d)", s.Frames, s.ReusedFrames)},
		{"Sections", fmt.Sprint(s.Sections)},
		{"Glyphs / quads", fmt.Sprintf("%d / %d", s.Glyphs, s.Quads)},
		{"Atlas size", fmt.Sprintf("%dx%d", s.AtlasWidth, s.AtlasHeight)},
		{"Atlas generation", fmt.Sprint(s.AtlasGeneration)},
		{"Atlas glyphs", fmt.Sprint(s.AtlasGlyphs)},
		{"Atlas utilization", fmt.Sprintf("%.1f%%", s.AtlasUtilization*100)},
		{"Atlas grows / compactions", fmt.Sprintf("%d / %d", s.AtlasGrows, s.AtlasCompactions)},
		{"Glyph hits / misses", fmt.Sprintf("%d / %d", s.GlyphHits, s.GlyphMisses)},
		{"Layout hits / misses", fmt.Sprintf("%d / %d", s.LayoutHits, s.LayoutMisses)},
		{"Quad capacity", fmt.Sprint(s.QuadCapacity)},
		{"Draw calls", fmt.Sprint(s.DrawCalls)},
		{"Pipeline state", s.State},
	}
	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}
