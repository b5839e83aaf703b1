package mask

import (
	"errors"
	"fmt"
)

// RLE is a COCO run-length encoding. Runs alternate between background
// and foreground starting with background, over pixels in column-major
// order. Size is [height, width].
type RLE struct {
	Size   [2]int
	Counts []uint32
}

var ErrInvalidRLE = errors.New("invalid run-length encoding")

// Encode returns the run-length encoding of b.
func Encode(b *Binary) RLE {
	r := RLE{Size: [2]int{b.Height, b.Width}}
	var cur uint8
	var run uint32
	for x := 0; x < b.Width; x++ {
		for y := 0; y < b.Height; y++ {
			v := b.Pix[y*b.Width+x]
			if v > 1 {
				v = 1
			}
			if v != cur {
				r.Counts = append(r.Counts, run)
				run, cur = 0, v
			}
			run++
		}
	}
	r.Counts = append(r.Counts, run)
	return r
}

// Decode expands r into a binary mask.
func Decode(r RLE) (*Binary, error) {
	h, w := r.Size[0], r.Size[1]
	if h < 0 || w < 0 {
		return nil, fmt.Errorf("%w: negative size %v", ErrInvalidRLE, r.Size)
	}
	b := NewBinary(w, h)
	total := w * h
	pos := 0
	for i, c := range r.Counts {
		end := pos + int(c)
		if end > total {
			return nil, fmt.Errorf("%w: runs cover %d pixels, mask has %d", ErrInvalidRLE, end, total)
		}
		if i%2 == 1 {
			for p := pos; p < end; p++ {
				x, y := p/h, p%h
				b.Pix[y*w+x] = 1
			}
		}
		pos = end
	}
	return b, nil
}

// Area returns the number of foreground pixels encoded by r.
func (r RLE) Area() int {
	n := 0
	for i := 1; i < len(r.Counts); i += 2 {
		n += int(r.Counts[i])
	}
	return n
}

// String returns the compressed counts string used by pycocotools: each
// count (delta-coded against the count two places back from index 3 on) is
// written as little-endian 5-bit groups offset by '0', with 0x20 marking a
// continuation and 0x10 carrying the sign.
func (r RLE) String() string {
	buf := make([]byte, 0, len(r.Counts)*2)
	for i := range r.Counts {
		x := int64(r.Counts[i])
		if i > 2 {
			x -= int64(r.Counts[i-2])
		}
		for more := true; more; {
			c := x & 0x1f
			x >>= 5
			if c&0x10 != 0 {
				more = x != -1
			} else {
				more = x != 0
			}
			if more {
				c |= 0x20
			}
			buf = append(buf, byte(c+48))
		}
	}
	return string(buf)
}

// ParseCounts decodes a compressed counts string produced by String.
func ParseCounts(s string) ([]uint32, error) {
	var counts []int64
	p := 0
	for p < len(s) {
		var x int64
		k := 0
		for more := true; more; {
			if p >= len(s) {
				return nil, fmt.Errorf("%w: truncated counts string", ErrInvalidRLE)
			}
			c := int64(s[p]) - 48
			if c < 0 || c > 63 {
				return nil, fmt.Errorf("%w: byte %q at %d", ErrInvalidRLE, s[p], p)
			}
			x |= (c & 0x1f) << (5 * k)
			more = c&0x20 != 0
			p++
			k++
			if !more && c&0x10 != 0 {
				x |= -1 << (5 * k)
			}
		}
		if len(counts) > 2 {
			x += counts[len(counts)-2]
		}
		counts = append(counts, x)
	}

	out := make([]uint32, len(counts))
	for i, c := range counts {
		if c < 0 || c > int64(^uint32(0)) {
			return nil, fmt.Errorf("%w: count %d out of range", ErrInvalidRLE, c)
		}
		out[i] = uint32(c)
	}
	return out, nil
}
