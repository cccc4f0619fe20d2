package atlas

import (
	"errors"
	"testing"
)

func solid(w, h int, v byte) Bitmap {
	pix := make([]byte, w*h)
	for i := range pix {
		pix[i] = v
	}
	return Bitmap{Width: w, Height: h, Pix: pix}
}

func newTestAtlas(t *testing.T, initial, maxSize int) (*Atlas[int], *Image) {
	t.Helper()
	img := NewImage()
	cfg := Config{InitialWidth: initial, InitialHeight: initial, MaxSize: maxSize, Padding: 1}
	a, err := New[int](cfg, img)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a, img
}

// checkContents verifies every slot's pixels are present at its rect.
func checkContents(t *testing.T, a *Atlas[int], img *Image) {
	t.Helper()
	for k, s := range a.slots {
		for y := 0; y < s.rect.Height; y++ {
			for x := 0; x < s.rect.Width; x++ {
				got := img.Alpha().AlphaAt(s.rect.X+x, s.rect.Y+y).A
				want := s.bm.Pix[y*s.bm.Width+x]
				if got != want {
					t.Fatalf("slot %d pixel (%d,%d) = %d, want %d", k, x, y, got, want)
				}
			}
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"default", DefaultConfig(), ""},
		{"max not pow2", Config{InitialWidth: 64, InitialHeight: 64, MaxSize: 1000}, "MaxSize"},
		{"width not pow2", Config{InitialWidth: 100, InitialHeight: 64, MaxSize: 1024}, "InitialWidth"},
		{"height too small", Config{InitialWidth: 64, InitialHeight: 8, MaxSize: 1024}, "InitialHeight"},
		{"initial over max", Config{InitialWidth: 2048, InitialHeight: 64, MaxSize: 1024}, "InitialWidth"},
		{"negative padding", Config{InitialWidth: 64, InitialHeight: 64, MaxSize: 1024, Padding: -1}, "Padding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestNewNilUploader(t *testing.T) {
	if _, err := New[int](DefaultConfig(), nil); err == nil {
		t.Error("New with nil uploader should fail")
	}
}

func TestUploadNoOverlap(t *testing.T) {
	a, img := newTestAtlas(t, 128, 128)
	sizes := [][2]int{{10, 12}, {7, 20}, {30, 5}, {12, 12}, {3, 3}, {25, 18}, {9, 14}, {40, 8}}

	var rects []Rect
	for i, sz := range sizes {
		r, err := a.Upload(i, solid(sz[0], sz[1], byte(i+1)))
		if err != nil {
			t.Fatalf("Upload(%d) error = %v", i, err)
		}
		if r.Width != sz[0] || r.Height != sz[1] {
			t.Errorf("Upload(%d) rect %v has wrong size", i, r)
		}
		if r.X < 0 || r.Y < 0 || r.X+r.Width > 128 || r.Y+r.Height > 128 {
			t.Errorf("Upload(%d) rect %v outside atlas", i, r)
		}
		rects = append(rects, r)
	}
	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			if rects[i].Overlaps(rects[j]) {
				t.Errorf("rects %v and %v overlap", rects[i], rects[j])
			}
		}
	}
	checkContents(t, a, img)
}

func TestUploadIdempotent(t *testing.T) {
	a, _ := newTestAtlas(t, 64, 64)
	r1, err := a.Upload(1, solid(8, 8, 9))
	if err != nil {
		t.Fatal(err)
	}
	uploads := a.Stats().Uploads
	r2, err := a.Upload(1, solid(8, 8, 9))
	if err != nil {
		t.Fatal(err)
	}
	if r1 != r2 {
		t.Errorf("second Upload rect %v, want %v", r2, r1)
	}
	if a.Stats().Uploads != uploads {
		t.Error("second Upload wrote to the texture")
	}
}

func TestUploadInvalidBitmap(t *testing.T) {
	a, _ := newTestAtlas(t, 64, 64)
	if _, err := a.Upload(1, Bitmap{Width: 4, Height: 4, Pix: make([]byte, 3)}); !errors.Is(err, ErrInvalidBitmap) {
		t.Errorf("Upload(short pix) = %v, want ErrInvalidBitmap", err)
	}
	if _, err := a.Upload(1, Bitmap{}); !errors.Is(err, ErrInvalidBitmap) {
		t.Errorf("Upload(empty) = %v, want ErrInvalidBitmap", err)
	}
}

func TestUploadNoSpace(t *testing.T) {
	a, _ := newTestAtlas(t, 16, 16)
	if _, err := a.Upload(1, solid(20, 4, 1)); !errors.Is(err, ErrNoSpace) {
		t.Errorf("Upload(too wide) = %v, want ErrNoSpace", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := a.Upload(i, solid(6, 6, 1)); err != nil {
			t.Fatalf("Upload(%d) error = %v", i, err)
		}
	}
	if _, err := a.Upload(99, solid(6, 6, 1)); !errors.Is(err, ErrNoSpace) {
		t.Errorf("Upload into full atlas = %v, want ErrNoSpace", err)
	}
}

func TestNextSizeSequence(t *testing.T) {
	a, _ := newTestAtlas(t, 64, 256)
	want := [][2]int{{128, 64}, {128, 128}, {256, 128}, {256, 256}}
	for i, w := range want {
		width, height, err := a.NextSize()
		if err != nil {
			t.Fatalf("step %d: NextSize() error = %v", i, err)
		}
		if width != w[0] || height != w[1] {
			t.Fatalf("step %d: NextSize() = %dx%d, want %dx%d", i, width, height, w[0], w[1])
		}
		if err := a.Grow(width, height); err != nil {
			t.Fatalf("step %d: Grow() error = %v", i, err)
		}
	}
	if _, _, err := a.NextSize(); !errors.Is(err, ErrMaxSizeExceeded) {
		t.Errorf("NextSize at max = %v, want ErrMaxSizeExceeded", err)
	}
}

func TestGrowPreservesBitmaps(t *testing.T) {
	a, img := newTestAtlas(t, 32, 64)
	for i := 0; i < 6; i++ {
		if _, err := a.Upload(i, solid(9, 5+i, byte(10*i+1))); err != nil {
			t.Fatalf("Upload(%d) error = %v", i, err)
		}
	}
	gen := a.Generation()
	if gen != 0 {
		t.Fatalf("initial generation = %d, want 0", gen)
	}

	if err := a.Grow(64, 32); err != nil {
		t.Fatalf("Grow() error = %v", err)
	}
	if a.Generation() != gen+1 {
		t.Errorf("generation = %d, want %d", a.Generation(), gen+1)
	}
	if w, h := a.Size(); w != 64 || h != 32 {
		t.Errorf("Size() = %dx%d, want 64x32", w, h)
	}
	if a.Len() != 6 {
		t.Errorf("Len() = %d, want 6", a.Len())
	}
	if b := img.Alpha().Bounds(); b.Dx() != 64 || b.Dy() != 32 {
		t.Errorf("mirror size = %v", b)
	}
	checkContents(t, a, img)
}

func TestGrowErrors(t *testing.T) {
	a, _ := newTestAtlas(t, 64, 128)

	err := a.Grow(256, 64)
	if !errors.Is(err, ErrMaxSizeExceeded) {
		t.Fatalf("Grow beyond max = %v, want ErrMaxSizeExceeded", err)
	}
	var ge *GrowError
	if !errors.As(err, &ge) || ge.Max != 128 {
		t.Errorf("Grow error = %#v, want *GrowError with Max 128", err)
	}

	if err := a.Grow(96, 64); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Grow(non pow2) = %v, want ErrInvalidSize", err)
	}
	if err := a.Grow(64, 64); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Grow(same size) = %v, want ErrInvalidSize", err)
	}
	if err := a.Grow(32, 128); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Grow(shrink) = %v, want ErrInvalidSize", err)
	}
	if a.Generation() != 0 {
		t.Errorf("failed grows changed generation to %d", a.Generation())
	}
}

func TestCompact(t *testing.T) {
	a, img := newTestAtlas(t, 32, 32)
	for i := 0; i < 4; i++ {
		if _, err := a.Upload(i, solid(12, 12, byte(i+1))); err != nil {
			t.Fatalf("Upload(%d) error = %v", i, err)
		}
	}
	if _, err := a.Upload(4, solid(12, 12, 5)); !errors.Is(err, ErrNoSpace) {
		t.Fatalf("expected atlas to be full, got %v", err)
	}

	if err := a.Compact(func(k int) bool { return k%2 == 0 }); err != nil {
		t.Fatalf("Compact() error = %v", err)
	}
	if a.Len() != 2 {
		t.Errorf("Len() after compact = %d, want 2", a.Len())
	}
	if _, ok := a.Rect(1); ok {
		t.Error("released slot 1 still present")
	}
	if a.Generation() != 1 {
		t.Errorf("generation = %d, want 1", a.Generation())
	}
	if _, err := a.Upload(4, solid(12, 12, 5)); err != nil {
		t.Errorf("Upload after compact = %v", err)
	}
	checkContents(t, a, img)
}

func TestReset(t *testing.T) {
	a, _ := newTestAtlas(t, 32, 32)
	if _, err := a.Upload(1, solid(4, 4, 1)); err != nil {
		t.Fatal(err)
	}
	if err := a.Reset(); err != nil {
		t.Fatal(err)
	}
	if a.Len() != 0 || a.Generation() != 1 {
		t.Errorf("after Reset: Len=%d Generation=%d", a.Len(), a.Generation())
	}
	if a.Utilization() != 0 {
		t.Errorf("Utilization() = %v, want 0", a.Utilization())
	}
}

func TestUV(t *testing.T) {
	a, _ := newTestAtlas(t, 64, 128)
	if err := a.Grow(128, 64); err != nil {
		t.Fatal(err)
	}
	uv := a.UV(Rect{X: 32, Y: 16, Width: 32, Height: 16})
	want := UVRect{U0: 0.25, V0: 0.25, U1: 0.5, V1: 0.5}
	if uv != want {
		t.Errorf("UV() = %+v, want %+v", uv, want)
	}
	if !uv.Normalized() {
		t.Error("UV should be inside unit square")
	}
}

func TestRelease(t *testing.T) {
	a, _ := newTestAtlas(t, 32, 32)
	if _, err := a.Upload(7, solid(4, 4, 1)); err != nil {
		t.Fatal(err)
	}
	a.Release(7)
	if _, ok := a.Rect(7); ok {
		t.Error("Rect() found released key")
	}
}

type failingUploader struct{ Image }

func (f *failingUploader) Upload(Rect, []byte) error { return errors.New("device lost") }

func TestTee(t *testing.T) {
	a, b := NewImage(), NewImage()
	tee := Tee{a, b}
	if err := tee.Resize(16, 16); err != nil {
		t.Fatal(err)
	}
	if err := tee.Upload(Rect{X: 1, Y: 1, Width: 2, Height: 1}, []byte{5, 6}); err != nil {
		t.Fatal(err)
	}
	if a.Alpha().AlphaAt(2, 1).A != 6 || b.Alpha().AlphaAt(2, 1).A != 6 {
		t.Error("Tee did not write to every uploader")
	}
	if err := tee.Upload(Rect{X: 15, Y: 15, Width: 2, Height: 1}, []byte{1, 1}); !errors.Is(err, ErrRegionOutOfBounds) {
		t.Errorf("out of bounds Tee upload = %v", err)
	}

	f := &failingUploader{}
	if err := (Tee{a, f}).Upload(Rect{Width: 1, Height: 1}, []byte{1}); err == nil {
		t.Error("Tee should report uploader errors")
	}
}

func TestUploadPropagatesUploaderError(t *testing.T) {
	a, err := New[int](Config{InitialWidth: 16, InitialHeight: 16, MaxSize: 16}, &failingUploader{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Upload(1, solid(2, 2, 1)); err == nil {
		t.Error("Upload should propagate uploader errors")
	}
	if a.Len() != 0 {
		t.Error("failed upload must not retain the slot")
	}
}

// flakyUploader mirrors into an Image and fails the failAt-th upload after
// being armed.
type flakyUploader struct {
	*Image
	armed   bool
	uploads int
	failAt  int
}

func (f *flakyUploader) Upload(r Rect, pix []byte) error {
	if f.armed {
		f.uploads++
		if f.uploads == f.failAt {
			return errors.New("device lost")
		}
	}
	return f.Image.Upload(r, pix)
}

func TestGrowUploadFailureReleasesUnwrittenSlots(t *testing.T) {
	up := &flakyUploader{Image: NewImage(), failAt: 2}
	a, err := New[int](Config{InitialWidth: 16, InitialHeight: 16, MaxSize: 64}, up)
	if err != nil {
		t.Fatal(err)
	}
	for k := 0; k < 3; k++ {
		if _, err := a.Upload(k, solid(4, 4, byte(100+k))); err != nil {
			t.Fatalf("Upload(%d) error = %v", k, err)
		}
	}

	up.armed = true
	if err := a.Grow(32, 16); err == nil {
		t.Fatal("Grow should report the failed re-upload")
	}
	up.armed = false

	// Every key still reported as packed must have its pixels in the
	// texture.
	for k := 0; k < 3; k++ {
		r, ok := a.Rect(k)
		if !ok {
			continue
		}
		if got := up.Alpha().AlphaAt(r.X, r.Y).A; got != byte(100+k) {
			t.Errorf("key %d packed at %v but texel = %d, want %d", k, r, got, 100+k)
		}
	}
	if a.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after the failed re-upload", a.Len())
	}

	// Released keys can be uploaded again.
	r, err := a.Upload(1, solid(4, 4, 101))
	if err != nil {
		t.Fatalf("re-Upload(1) error = %v", err)
	}
	if got := up.Alpha().AlphaAt(r.X, r.Y).A; got != 101 {
		t.Errorf("re-uploaded texel = %d, want 101", got)
	}
}
