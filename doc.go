// Package textbrush renders text on the GPU through the gogpu/wgpu HAL.
//
// # Overview
//
// textbrush sits between a layout engine and a render pass. Each frame the
// application queues its text sections; the brush lays them out, keeps
// rasterized glyphs in a texture atlas and uploads one quad per glyph.
// Drawing records a single indexed draw call into the caller's render pass.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/textbrush"
//	    "github.com/gogpu/textbrush/layout"
//	    "golang.org/x/image/font/gofont/goregular"
//	)
//
//	brush, err := textbrush.NewBuilder().
//	    WithFontBytes(goregular.TTF).
//	    Build(device, queue, gputypes.TextureFormatBGRA8Unorm, 800, 600)
//	if err != nil {
//	    return err
//	}
//	defer brush.Destroy()
//
//	// Every frame:
//	sec := layout.NewSection(10, 10, layout.NewText("Hello").WithScale(24))
//	if err := brush.Queue(sec); err != nil {
//	    return err
//	}
//	if err := brush.Draw(renderPass); err != nil {
//	    return err
//	}
//
// # Frame Model
//
// Queue replaces the previous frame's sections. When the sections and the
// atlas are unchanged, the vertices uploaded for the previous frame are
// drawn again without layout or upload work. Every Queue allows one Draw;
// a second Draw of the same frame returns ErrPipelineNotReady.
//
// # Atlas
//
// Glyphs are packed into a single-channel texture that starts at 256x256
// and doubles one dimension at a time up to WithMaxAtlasSize, clamped to
// the device's MaxTextureDimension2D. Growing repacks every cached glyph,
// which changes the atlas generation; texture coordinates computed under
// an older generation are never drawn. When a frame does not fit at the
// maximum size the atlas is compacted to that frame's glyphs once, and if
// that is not enough Queue returns an error wrapping ErrAtlasFull.
//
// # Coordinate System
//
//   - Origin (0,0) at the top-left of the viewport
//   - X increases right, Y increases down, in pixels
//   - Section Z in [0, 1]; higher Z draws above lower Z
//
// # Logging
//
// The brush is silent by default. SetLogger enables structured logging
// via log/slog for the brush and its internal packages.
package textbrush
