package atlas

import (
	"fmt"
	"sort"
)

// Bitmap is an 8-bit coverage mask with stride Width.
type Bitmap struct {
	Width, Height int
	Pix           []byte
}

// Uploader receives the texture operations of an Atlas. The GPU texture
// implements it; Image mirrors the texture on the CPU.
type Uploader interface {
	// Resize reallocates the texture at the given size. Previous contents
	// are discarded.
	Resize(width, height int) error

	// Upload writes pix (stride r.Width) into r.
	Upload(r Rect, pix []byte) error
}

// UVRect is a normalized texture-coordinate rectangle.
type UVRect struct {
	U0, V0, U1, V1 float32
}

// Normalized reports whether the rectangle lies inside [0,1]x[0,1].
func (uv UVRect) Normalized() bool {
	return uv.U0 >= 0 && uv.V0 >= 0 && uv.U1 <= 1 && uv.V1 <= 1 &&
		uv.U0 <= uv.U1 && uv.V0 <= uv.V1
}

// Stats contains atlas statistics.
type Stats struct {
	Width, Height int
	Generation    uint64
	Slots         int
	Uploads       uint64
	Grows         uint64
	Repacks       uint64
	Utilization   float64
}

type slot[K comparable] struct {
	key  K
	bm   Bitmap
	rect Rect
	seq  uint64
}

// Atlas packs bitmaps into one texture and keeps their raw pixels so they
// can be re-uploaded when the texture is reallocated.
//
// Every reallocation or repack increments the generation. Texture
// coordinates computed under an older generation must not be used.
//
// Atlas is not safe for concurrent use.
type Atlas[K comparable] struct {
	cfg           Config
	width, height int
	generation    uint64
	packer        packer
	slots         map[K]*slot[K]
	seq           uint64
	up            Uploader

	uploads, grows, repacks uint64
}

// New creates an atlas and allocates its initial texture through up.
func New[K comparable](cfg Config, up Uploader) (*Atlas[K], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if up == nil {
		return nil, &ConfigError{Field: "Uploader", Reason: "must not be nil"}
	}
	if err := up.Resize(cfg.InitialWidth, cfg.InitialHeight); err != nil {
		return nil, fmt.Errorf("atlas: allocate texture: %w", err)
	}
	return &Atlas[K]{
		cfg:    cfg,
		width:  cfg.InitialWidth,
		height: cfg.InitialHeight,
		packer: newPacker(cfg.InitialWidth, cfg.InitialHeight, cfg.Padding),
		slots:  make(map[K]*slot[K]),
		up:     up,
	}, nil
}

// Upload packs bm under key, writes it to the texture and returns its
// rect. A key that is already packed returns its existing rect without a
// write. Returns ErrNoSpace when bm does not fit at the current size.
func (a *Atlas[K]) Upload(key K, bm Bitmap) (Rect, error) {
	if s, ok := a.slots[key]; ok {
		return s.rect, nil
	}
	if bm.Width <= 0 || bm.Height <= 0 || len(bm.Pix) < bm.Width*bm.Height {
		return Rect{}, fmt.Errorf("%w: %dx%d with %d bytes", ErrInvalidBitmap, bm.Width, bm.Height, len(bm.Pix))
	}

	r, ok := a.packer.allocate(bm.Width, bm.Height)
	if !ok {
		return Rect{}, ErrNoSpace
	}
	if err := a.up.Upload(r, bm.Pix); err != nil {
		return Rect{}, fmt.Errorf("atlas: upload %v: %w", r, err)
	}
	a.uploads++

	a.seq++
	a.slots[key] = &slot[K]{key: key, bm: bm, rect: r, seq: a.seq}
	return r, nil
}

// Rect returns the rect of a packed key.
func (a *Atlas[K]) Rect(key K) (Rect, bool) {
	s, ok := a.slots[key]
	if !ok {
		return Rect{}, false
	}
	return s.rect, true
}

// Release forgets key and its retained bitmap. The texture space is
// reclaimed on the next repack.
func (a *Atlas[K]) Release(key K) {
	delete(a.slots, key)
}

// UV converts a pixel rect to normalized coordinates for the current size.
func (a *Atlas[K]) UV(r Rect) UVRect {
	w, h := float32(a.width), float32(a.height)
	return UVRect{
		U0: float32(r.X) / w,
		V0: float32(r.Y) / h,
		U1: float32(r.X+r.Width) / w,
		V1: float32(r.Y+r.Height) / h,
	}
}

// NextSize returns the next size of the growth policy: the smaller
// dimension doubles first (width on ties), each capped at MaxSize.
// Returns a *GrowError when both dimensions are already at the cap.
func (a *Atlas[K]) NextSize() (width, height int, err error) {
	w, h := a.width, a.height
	limit := a.cfg.MaxSize
	switch {
	case w >= limit && h >= limit:
		return w, h, &GrowError{Width: w * 2, Height: h, Max: limit}
	case h < w && h < limit:
		h *= 2
	case w < limit:
		w *= 2
	default:
		h *= 2
	}
	return w, h, nil
}

// Grow reallocates the texture at width x height, repacks every retained
// bitmap and re-uploads it. The generation is incremented. Bitmaps that
// no longer fit are released.
func (a *Atlas[K]) Grow(width, height int) error {
	if width > a.cfg.MaxSize || height > a.cfg.MaxSize {
		return &GrowError{Width: width, Height: height, Max: a.cfg.MaxSize}
	}
	if !isPow2(width) || !isPow2(height) {
		return fmt.Errorf("%w: %dx%d is not a power of two", ErrInvalidSize, width, height)
	}
	if width < a.width || height < a.height || (width == a.width && height == a.height) {
		return fmt.Errorf("%w: %dx%d does not grow %dx%d", ErrInvalidSize, width, height, a.width, a.height)
	}

	dropped, err := a.repack(width, height)
	if err != nil {
		return err
	}
	a.grows++
	slogger().Info("atlas grown",
		"width", width, "height", height,
		"generation", a.generation, "slots", len(a.slots), "dropped", dropped)
	return nil
}

// Compact releases every bitmap keep rejects and repacks the rest at the
// current size. The generation is incremented.
func (a *Atlas[K]) Compact(keep func(K) bool) error {
	for k := range a.slots {
		if !keep(k) {
			delete(a.slots, k)
		}
	}
	dropped, err := a.repack(a.width, a.height)
	if err != nil {
		return err
	}
	slogger().Warn("atlas compacted",
		"width", a.width, "height", a.height,
		"generation", a.generation, "slots", len(a.slots), "dropped", dropped)
	return nil
}

// Reset releases every bitmap and clears the texture. The size is kept
// and the generation is incremented.
func (a *Atlas[K]) Reset() error {
	clear(a.slots)
	_, err := a.repack(a.width, a.height)
	return err
}

// repack reallocates the texture and re-uploads retained bitmaps, tallest
// first, in a deterministic order. It returns the number of bitmaps that
// were released because they did not fit or their re-upload failed.
func (a *Atlas[K]) repack(width, height int) (int, error) {
	if err := a.up.Resize(width, height); err != nil {
		return 0, fmt.Errorf("atlas: reallocate texture %dx%d: %w", width, height, err)
	}
	a.width, a.height = width, height
	a.packer.reset(width, height)
	a.generation++
	a.repacks++

	ordered := make([]*slot[K], 0, len(a.slots))
	for _, s := range a.slots {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].bm.Height != ordered[j].bm.Height {
			return ordered[i].bm.Height > ordered[j].bm.Height
		}
		return ordered[i].seq < ordered[j].seq
	})

	dropped := 0
	for i, s := range ordered {
		r, ok := a.packer.allocate(s.bm.Width, s.bm.Height)
		if !ok {
			delete(a.slots, s.key)
			dropped++
			continue
		}
		if err := a.up.Upload(r, s.bm.Pix); err != nil {
			// The new texture is blank where the rest would go; release
			// them so their owners upload them again.
			for _, rest := range ordered[i:] {
				delete(a.slots, rest.key)
			}
			dropped += len(ordered) - i
			return dropped, fmt.Errorf("atlas: re-upload %v: %w", r, err)
		}
		a.uploads++
		s.rect = r
	}
	return dropped, nil
}

// Generation returns the current layout generation.
func (a *Atlas[K]) Generation() uint64 { return a.generation }

// Size returns the current texture dimensions.
func (a *Atlas[K]) Size() (width, height int) { return a.width, a.height }

// MaxSize returns the maximum texture dimension.
func (a *Atlas[K]) MaxSize() int { return a.cfg.MaxSize }

// Len returns the number of packed bitmaps.
func (a *Atlas[K]) Len() int { return len(a.slots) }

// Utilization returns the packed area over the texture area.
func (a *Atlas[K]) Utilization() float64 { return a.packer.utilization() }

// Stats returns atlas statistics.
func (a *Atlas[K]) Stats() Stats {
	return Stats{
		Width:       a.width,
		Height:      a.height,
		Generation:  a.generation,
		Slots:       len(a.slots),
		Uploads:     a.uploads,
		Grows:       a.grows,
		Repacks:     a.repacks,
		Utilization: a.packer.utilization(),
	}
}
