package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/textbrush/internal/atlas"
	"github.com/gogpu/wgpu/hal"
)

// AtlasTexture is the GPU side of the glyph atlas. It implements
// atlas.Uploader: Resize recreates the texture and Upload writes one
// sub-region with Queue.WriteTexture.
type AtlasTexture struct {
	device hal.Device
	queue  hal.Queue
	format AtlasFormat

	tex           hal.Texture
	view          hal.TextureView
	width, height int

	scratch []byte

	// version increments each time the texture view is replaced.
	version uint64
	writes  uint64
}

var _ atlas.Uploader = (*AtlasTexture)(nil)

// NewAtlasTexture creates an atlas texture wrapper. No texture exists
// until the first Resize.
func NewAtlasTexture(device hal.Device, queue hal.Queue, format AtlasFormat) (*AtlasTexture, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	if format != FormatAlpha8 && format != FormatRGBA8 {
		return nil, &ConfigError{Field: "AtlasFormat", Reason: "unknown format " + format.String()}
	}
	return &AtlasTexture{device: device, queue: queue, format: format}, nil
}

// Resize implements atlas.Uploader. The previous texture and its
// contents are released.
func (t *AtlasTexture) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("gpu: invalid atlas size %dx%d", width, height)
	}
	w, h := uint32(width), uint32(height) //nolint:gosec // bounded by atlas MaxSize

	tex, err := t.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "glyph_atlas",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        t.format.TextureFormat(),
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("gpu: create atlas texture %dx%d: %w", width, height, err)
	}
	view, err := t.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "glyph_atlas_view",
		Format:        t.format.TextureFormat(),
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		t.device.DestroyTexture(tex)
		return fmt.Errorf("gpu: create atlas texture view: %w", err)
	}

	t.release()
	t.tex, t.view = tex, view
	t.width, t.height = width, height
	t.version++
	slogger().Debug("atlas texture allocated",
		"width", width, "height", height, "format", t.format.String())
	return nil
}

// Upload implements atlas.Uploader.
func (t *AtlasTexture) Upload(r atlas.Rect, pix []byte) error {
	if t.tex == nil {
		return fmt.Errorf("gpu: upload %v before atlas texture allocation", r)
	}
	if r.X < 0 || r.Y < 0 || r.X+r.Width > t.width || r.Y+r.Height > t.height {
		return fmt.Errorf("%w: %v in %dx%d", atlas.ErrRegionOutOfBounds, r, t.width, t.height)
	}

	data := pix[:r.Width*r.Height]
	bpp := t.format.BytesPerPixel()
	if bpp == 4 {
		t.scratch = expandRGBA(t.scratch[:0], data)
		data = t.scratch
	}

	x, y := uint32(r.X), uint32(r.Y)           //nolint:gosec // checked above
	w, h := uint32(r.Width), uint32(r.Height) //nolint:gosec // checked above
	err := t.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: x, Y: y},
			Aspect:   gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  w * uint32(bpp), //nolint:gosec // 1 or 4
			RowsPerImage: h,
		},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("gpu: write atlas region %v: %w", r, err)
	}
	t.writes++
	return nil
}

// expandRGBA replicates each coverage byte into four channels.
func expandRGBA(dst, coverage []byte) []byte {
	for _, c := range coverage {
		dst = append(dst, c, c, c, c)
	}
	return dst
}

// View returns the current texture view, or nil before the first Resize.
func (t *AtlasTexture) View() hal.TextureView { return t.view }

// Version returns a counter that changes whenever View changes.
func (t *AtlasTexture) Version() uint64 { return t.version }

// Size returns the texture dimensions.
func (t *AtlasTexture) Size() (width, height int) { return t.width, t.height }

// Format returns the atlas texture format.
func (t *AtlasTexture) Format() AtlasFormat { return t.format }

// Writes returns the number of region writes issued.
func (t *AtlasTexture) Writes() uint64 { return t.writes }

// Destroy releases the texture. Safe to call multiple times.
func (t *AtlasTexture) Destroy() {
	t.release()
	t.width, t.height = 0, 0
}

func (t *AtlasTexture) release() {
	if t.view != nil {
		t.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		t.device.DestroyTexture(t.tex)
		t.tex = nil
	}
}
