package atlas

import "fmt"

// Rect is a rectangle of atlas pixels.
type Rect struct {
	X, Y, Width, Height int
}

// IsValid returns true if the rect has positive dimensions.
func (r Rect) IsValid() bool {
	return r.Width > 0 && r.Height > 0
}

// Overlaps reports whether r and o share any pixel.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// String returns a string representation of the rect.
func (r Rect) String() string {
	return fmt.Sprintf("Rect(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// shelf is a horizontal row of the packer.
type shelf struct {
	y      int
	height int
	nextX  int
}

// packer implements shelf packing: rectangles are placed left to right on
// horizontal shelves, and a new shelf is opened below the last one when no
// existing shelf fits.
type packer struct {
	width, height int
	padding       int
	shelves       []shelf
	usedArea      int
}

func newPacker(width, height, padding int) packer {
	return packer{
		width:   width,
		height:  height,
		padding: padding,
		shelves: make([]shelf, 0, 16),
	}
}

// reset clears all shelves and resizes the packing area.
func (p *packer) reset(width, height int) {
	p.width, p.height = width, height
	p.shelves = p.shelves[:0]
	p.usedArea = 0
}

// allocate finds space for a width x height rectangle. It returns false
// when the rectangle does not fit.
func (p *packer) allocate(width, height int) (Rect, bool) {
	if width <= 0 || height <= 0 {
		return Rect{}, false
	}
	pw, ph := width+p.padding, height+p.padding
	if pw > p.width || ph > p.height {
		return Rect{}, false
	}

	// Best fit: the shortest shelf that is tall enough wastes least space.
	best := -1
	for i := range p.shelves {
		s := &p.shelves[i]
		if s.nextX+pw > p.width {
			continue
		}
		if ph > s.height {
			// The last shelf can grow if nothing is below it.
			if i != len(p.shelves)-1 || s.y+ph > p.height {
				continue
			}
		}
		if best < 0 || s.height < p.shelves[best].height {
			best = i
		}
	}

	if best < 0 {
		y := 0
		if n := len(p.shelves); n > 0 {
			last := p.shelves[n-1]
			y = last.y + last.height
		}
		if y+ph > p.height {
			return Rect{}, false
		}
		p.shelves = append(p.shelves, shelf{y: y, height: ph})
		best = len(p.shelves) - 1
	}

	s := &p.shelves[best]
	r := Rect{X: s.nextX, Y: s.y, Width: width, Height: height}
	s.nextX += pw
	if ph > s.height {
		s.height = ph
	}
	p.usedArea += width * height
	return r, true
}

// utilization returns the packed pixel area over the total area.
func (p *packer) utilization() float64 {
	total := p.width * p.height
	if total == 0 {
		return 0
	}
	return float64(p.usedArea) / float64(total)
}
