// Package mask holds the raster side of the converter: label masks with one
// category id per pixel, binary masks, connected-component labeling and
// COCO run-length encoding.
package mask

import (
	"fmt"
	"slices"
)

// Label is a 2-D grid of category ids. 0 is background.
type Label struct {
	Width  int
	Height int
	Pix    []uint16
	// Depth is the sample width the mask was read with or should be
	// written with: 8 or 16.
	Depth int
}

// NewLabel returns an all-background label mask.
func NewLabel(width, height int) *Label {
	return &Label{
		Width:  width,
		Height: height,
		Pix:    make([]uint16, width*height),
		Depth:  8,
	}
}

// At returns the category id at (x, y), or 0 outside the mask.
func (l *Label) At(x, y int) uint16 {
	if x < 0 || y < 0 || x >= l.Width || y >= l.Height {
		return 0
	}
	return l.Pix[y*l.Width+x]
}

// Set writes a category id at (x, y). Writes outside the mask are ignored.
func (l *Label) Set(x, y int, v uint16) {
	if x < 0 || y < 0 || x >= l.Width || y >= l.Height {
		return
	}
	l.Pix[y*l.Width+x] = v
}

// Max returns the largest id present.
func (l *Label) Max() uint16 {
	var m uint16
	for _, v := range l.Pix {
		if v > m {
			m = v
		}
	}
	return m
}

// Values returns the distinct non-zero ids present, in ascending order.
func (l *Label) Values() []uint16 {
	var seen [1 << 16]bool
	var out []uint16
	for _, v := range l.Pix {
		if v != 0 && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}

// Binary returns the mask of pixels equal to v.
func (l *Label) Binary(v uint16) *Binary {
	b := NewBinary(l.Width, l.Height)
	for i, p := range l.Pix {
		if p == v {
			b.Pix[i] = 1
		}
	}
	return b
}

// Paint writes v into every pixel set in b and returns how many pixels held
// a different non-zero id before the write.
func (l *Label) Paint(b *Binary, v uint16) (overwritten int, err error) {
	if b.Width != l.Width || b.Height != l.Height {
		return 0, fmt.Errorf("binary mask %dx%d does not match label mask %dx%d",
			b.Width, b.Height, l.Width, l.Height)
	}
	for i, p := range b.Pix {
		if p == 0 {
			continue
		}
		if prev := l.Pix[i]; prev != 0 && prev != v {
			overwritten++
		}
		l.Pix[i] = v
	}
	return overwritten, nil
}

// Binary is a 2-D grid of 0/1 samples.
type Binary struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewBinary returns an empty binary mask.
func NewBinary(width, height int) *Binary {
	return &Binary{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

func (b *Binary) At(x, y int) bool {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return false
	}
	return b.Pix[y*b.Width+x] != 0
}

func (b *Binary) Set(x, y int) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	b.Pix[y*b.Width+x] = 1
}

// Count returns the number of set pixels.
func (b *Binary) Count() int {
	n := 0
	for _, p := range b.Pix {
		if p != 0 {
			n++
		}
	}
	return n
}

// Empty reports whether no pixel is set.
func (b *Binary) Empty() bool {
	return !slices.ContainsFunc(b.Pix, func(p uint8) bool { return p != 0 })
}

// Union sets every pixel of b that is set in o.
func (b *Binary) Union(o *Binary) {
	n := min(len(b.Pix), len(o.Pix))
	for i := 0; i < n; i++ {
		if o.Pix[i] != 0 {
			b.Pix[i] = 1
		}
	}
}

// Subtract clears every pixel of b that is set in o.
func (b *Binary) Subtract(o *Binary) {
	n := min(len(b.Pix), len(o.Pix))
	for i := 0; i < n; i++ {
		if o.Pix[i] != 0 {
			b.Pix[i] = 0
		}
	}
}

// Pad returns a copy of b with n background pixels added on every side.
func (b *Binary) Pad(n int) *Binary {
	out := NewBinary(b.Width+2*n, b.Height+2*n)
	for y := 0; y < b.Height; y++ {
		copy(out.Pix[(y+n)*out.Width+n:], b.Pix[y*b.Width:(y+1)*b.Width])
	}
	return out
}

// IoU returns the intersection over union of two masks of equal size. Two
// empty masks have an IoU of 1.
func IoU(a, b *Binary) float64 {
	var inter, union int
	n := min(len(a.Pix), len(b.Pix))
	for i := 0; i < n; i++ {
		x, y := a.Pix[i] != 0, b.Pix[i] != 0
		if x && y {
			inter++
		}
		if x || y {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

// LabelIoU compares two label masks pixel by pixel over the foreground of
// either: a pixel counts as intersecting when both hold the same id.
func LabelIoU(a, b *Label) float64 {
	var inter, union int
	n := min(len(a.Pix), len(b.Pix))
	for i := 0; i < n; i++ {
		x, y := a.Pix[i], b.Pix[i]
		if x == 0 && y == 0 {
			continue
		}
		union++
		if x == y {
			inter++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}
