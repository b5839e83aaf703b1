// Package contour traces iso-level boundaries of binary masks with
// marching squares.
//
// Pixel centres sit at integer coordinates. Contours run through the
// midpoints between a foreground and a background sample, which is the 0.5
// iso-line of the 0/1 field. Rings are oriented so that outer boundaries
// have a negative signed area and boundaries of enclosed background have a
// positive one.
package contour

import (
	"github.com/menta2k/cocomask/pkg/geometry"
	"github.com/menta2k/cocomask/pkg/mask"
)

// Cell edges, clockwise from the top.
const (
	edgeTop = iota
	edgeRight
	edgeBottom
	edgeLeft
)

// key is a point in doubled coordinates, so that every edge midpoint is
// integral.
type key struct{ x, y int }

type segment struct {
	from, to key
	used     bool
}

// Find returns every closed contour of b. For a mask padded with a
// background border each ring is closed. Rings are returned in the
// row-major order of their topmost-leftmost cell, so the first ring of a
// single 4-connected component is its outer boundary.
//
// Saddle cells (two diagonal foreground corners) keep the foreground
// corners apart, matching 4-connectivity.
func Find(b *mask.Binary) [][]geometry.Point {
	if b.Width < 2 || b.Height < 2 {
		return nil
	}

	var segs []segment
	for y := 0; y < b.Height-1; y++ {
		for x := 0; x < b.Width-1; x++ {
			segs = cellSegments(b, x, y, segs)
		}
	}
	if len(segs) == 0 {
		return nil
	}

	next := make(map[key]int, len(segs))
	for i, s := range segs {
		next[s.from] = i
	}

	var rings [][]geometry.Point
	for i := range segs {
		if segs[i].used {
			continue
		}
		var pts []geometry.Point
		closed := false
		for j := i; ; {
			s := &segs[j]
			if s.used {
				closed = j == i
				break
			}
			s.used = true
			pts = appendVertex(pts, s.from)
			n, ok := next[s.to]
			if !ok {
				break
			}
			j = n
		}
		if !closed {
			continue
		}
		pts = pruneWrap(pts)
		if len(pts) >= 3 {
			rings = append(rings, pts)
		}
	}
	return rings
}

// Translate shifts every vertex by (dx, dy) in place.
func Translate(rings [][]geometry.Point, dx, dy float64) {
	for _, r := range rings {
		for i := range r {
			r[i].X += dx
			r[i].Y += dy
		}
	}
}

func cellSegments(b *mask.Binary, x, y int, segs []segment) []segment {
	tl := b.At(x, y)
	tr := b.At(x+1, y)
	br := b.At(x+1, y+1)
	bl := b.At(x, y+1)

	idx := 0
	if tl {
		idx |= 1
	}
	if tr {
		idx |= 2
	}
	if br {
		idx |= 4
	}
	if bl {
		idx |= 8
	}

	switch idx {
	case 0, 15:
		return segs
	case 5:
		segs = append(segs, orient(x, y, edgeTop, edgeLeft, 0, 0))
		return append(segs, orient(x, y, edgeRight, edgeBottom, 1, 1))
	case 10:
		segs = append(segs, orient(x, y, edgeTop, edgeRight, 1, 0))
		return append(segs, orient(x, y, edgeBottom, edgeLeft, 0, 1))
	}

	corners := [4]bool{tl, tr, br, bl}
	var crossed []int
	for e := edgeTop; e <= edgeLeft; e++ {
		if corners[e] != corners[(e+1)%4] {
			crossed = append(crossed, e)
		}
	}
	// Any foreground corner lies on the foreground side in a non-saddle cell.
	offsets := [4][2]int{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	for c, fg := range corners {
		if fg {
			return append(segs, orient(x, y, crossed[0], crossed[1], offsets[c][0], offsets[c][1]))
		}
	}
	return segs
}

// midpoint returns the doubled coordinates of an edge midpoint of cell
// (x, y).
func midpoint(x, y, e int) key {
	switch e {
	case edgeTop:
		return key{2*x + 1, 2 * y}
	case edgeRight:
		return key{2*x + 2, 2*y + 1}
	case edgeBottom:
		return key{2*x + 1, 2*y + 2}
	default:
		return key{2 * x, 2*y + 1}
	}
}

// orient builds the segment between two edge midpoints, directed so that
// the foreground corner (x+cx, y+cy) lies on the side of (dy, -dx).
func orient(x, y, e1, e2, cx, cy int) segment {
	a, b := midpoint(x, y, e1), midpoint(x, y, e2)
	dx, dy := b.x-a.x, b.y-a.y
	// Vector from the segment's midpoint to the corner, doubled twice.
	px := 4*(x+cx) - (a.x + b.x)
	py := 4*(y+cy) - (a.y + b.y)
	if dy*px-dx*py < 0 {
		a, b = b, a
	}
	return segment{from: a, to: b}
}

// appendVertex adds k to pts, dropping the previous vertex when it is
// collinear with its neighbours.
func appendVertex(pts []geometry.Point, k key) []geometry.Point {
	p := geometry.Point{X: float64(k.x) / 2, Y: float64(k.y) / 2}
	if n := len(pts); n >= 2 && collinear(pts[n-2], pts[n-1], p) {
		pts = pts[:n-1]
	}
	return append(pts, p)
}

// pruneWrap drops collinear vertices across the seam between the last and
// first vertex.
func pruneWrap(pts []geometry.Point) []geometry.Point {
	for len(pts) >= 3 && collinear(pts[len(pts)-2], pts[len(pts)-1], pts[0]) {
		pts = pts[:len(pts)-1]
	}
	for len(pts) >= 3 && collinear(pts[len(pts)-1], pts[0], pts[1]) {
		pts = pts[1:]
	}
	return pts
}

func collinear(a, b, c geometry.Point) bool {
	return (b.X-a.X)*(c.Y-b.Y)-(b.Y-a.Y)*(c.X-b.X) == 0
}
