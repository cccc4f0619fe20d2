package atlas

import (
	"errors"
	"image"
)

// Image is an Uploader that mirrors the atlas texture into an
// *image.Alpha. Used for debugging dumps and tests.
type Image struct {
	img *image.Alpha
}

// NewImage returns an empty mirror. The first Resize allocates it.
func NewImage() *Image {
	return &Image{img: image.NewAlpha(image.Rectangle{})}
}

// Resize implements Uploader.
func (m *Image) Resize(width, height int) error {
	m.img = image.NewAlpha(image.Rect(0, 0, width, height))
	return nil
}

// Upload implements Uploader.
func (m *Image) Upload(r Rect, pix []byte) error {
	b := m.img.Bounds()
	if r.X < 0 || r.Y < 0 || r.X+r.Width > b.Dx() || r.Y+r.Height > b.Dy() {
		return ErrRegionOutOfBounds
	}
	for y := 0; y < r.Height; y++ {
		dst := m.img.PixOffset(r.X, r.Y+y)
		copy(m.img.Pix[dst:dst+r.Width], pix[y*r.Width:(y+1)*r.Width])
	}
	return nil
}

// Alpha returns the mirrored texture. The image is replaced on every
// Resize; callers must not hold it across atlas growth.
func (m *Image) Alpha() *image.Alpha { return m.img }

// Tee fans texture operations out to several uploaders in order.
type Tee []Uploader

// Resize implements Uploader.
func (t Tee) Resize(width, height int) error {
	var errs []error
	for _, u := range t {
		if err := u.Resize(width, height); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Upload implements Uploader.
func (t Tee) Upload(r Rect, pix []byte) error {
	var errs []error
	for _, u := range t {
		if err := u.Upload(r, pix); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
