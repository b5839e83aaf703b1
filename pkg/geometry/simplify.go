package geometry

import (
	"math"
	"slices"
)

// Clean drops consecutive duplicate vertices, including a closing vertex
// that repeats the first one.
func Clean(pts []Point) []Point {
	out := make([]Point, 0, len(pts))
	for _, p := range pts {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

// Valid reports whether pts forms a usable ring: at least three vertices,
// a non-zero area and no self-intersections.
func Valid(pts []Point) bool {
	if len(pts) < 3 {
		return false
	}
	if Area(pts) == 0 {
		return false
	}
	return !SelfIntersects(pts)
}

type segment struct {
	a, b       Point
	minY, maxY float64
	idx        int
}

func segments(pts []Point) []segment {
	n := len(pts)
	segs := make([]segment, n)
	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%n]
		segs[i] = segment{a: a, b: b, minY: math.Min(a.Y, b.Y), maxY: math.Max(a.Y, b.Y), idx: i}
	}
	slices.SortFunc(segs, func(s, t segment) int {
		switch {
		case s.minY < t.minY:
			return -1
		case s.minY > t.minY:
			return 1
		}
		return 0
	})
	return segs
}

// SelfIntersects reports whether any two non-adjacent edges of the ring
// touch, or two adjacent edges fold back onto each other.
func SelfIntersects(pts []Point) bool {
	n := len(pts)
	if n < 3 {
		return false
	}
	segs := segments(pts)
	for i := range segs {
		s := segs[i]
		for j := i + 1; j < len(segs) && segs[j].minY <= s.maxY; j++ {
			t := segs[j]
			d := s.idx - t.idx
			if d < 0 {
				d = -d
			}
			if d == 1 || d == n-1 {
				if foldsBack(s, t) {
					return true
				}
				continue
			}
			if segmentsIntersect(s.a, s.b, t.a, t.b) {
				return true
			}
		}
	}
	return false
}

// RingsIntersect reports whether any edge of a touches any edge of b.
func RingsIntersect(a, b []Point) bool {
	if len(a) < 2 || len(b) < 2 {
		return false
	}
	sa, sb := segments(a), segments(b)
	for _, s := range sa {
		for _, t := range sb {
			if t.minY > s.maxY {
				break
			}
			if t.maxY < s.minY {
				continue
			}
			if segmentsIntersect(s.a, s.b, t.a, t.b) {
				return true
			}
		}
	}
	return false
}

// foldsBack detects adjacent edges that are collinear and point in
// opposite directions.
func foldsBack(s, t segment) bool {
	d1 := Point{s.b.X - s.a.X, s.b.Y - s.a.Y}
	d2 := Point{t.b.X - t.a.X, t.b.Y - t.a.Y}
	return d1.X*d2.Y-d1.Y*d2.X == 0 && d1.X*d2.X+d1.Y*d2.Y < 0
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func onSegment(p, q, r Point) bool {
	return math.Min(p.X, r.X) <= q.X && q.X <= math.Max(p.X, r.X) &&
		math.Min(p.Y, r.Y) <= q.Y && q.Y <= math.Max(p.Y, r.Y)
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// segmentsIntersect reports whether segments p1p2 and p3p4 share a point,
// including touching endpoints and collinear overlap.
func segmentsIntersect(p1, p2, p3, p4 Point) bool {
	d1 := sign(cross(p3, p4, p1))
	d2 := sign(cross(p3, p4, p2))
	d3 := sign(cross(p1, p2, p3))
	d4 := sign(cross(p1, p2, p4))

	if d1*d2 < 0 && d3*d4 < 0 {
		return true
	}
	if d1 == 0 && onSegment(p3, p1, p4) {
		return true
	}
	if d2 == 0 && onSegment(p3, p2, p4) {
		return true
	}
	if d3 == 0 && onSegment(p1, p3, p2) {
		return true
	}
	if d4 == 0 && onSegment(p1, p4, p2) {
		return true
	}
	return false
}

// pointSegmentDistance returns the distance from p to the segment ab.
func pointSegmentDistance(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

// SimplifyRing applies Douglas-Peucker to a closed ring. The ring is split
// at vertex 0 and the vertex farthest from it, and each half is simplified
// independently so the result stays closed.
func SimplifyRing(pts []Point, tolerance float64) []Point {
	n := len(pts)
	if n <= 3 || tolerance <= 0 {
		return slices.Clone(pts)
	}

	far, best := 0, -1.0
	for i := 1; i < n; i++ {
		d := math.Hypot(pts[i].X-pts[0].X, pts[i].Y-pts[0].Y)
		if d > best {
			far, best = i, d
		}
	}

	// ext[n] closes the ring back onto vertex 0.
	ext := append(slices.Clone(pts), pts[0])
	keep := make([]bool, n+1)
	keep[0], keep[far], keep[n] = true, true, true
	douglasPeucker(ext, 0, far, tolerance, keep)
	douglasPeucker(ext, far, n, tolerance, keep)

	out := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		if keep[i] {
			out = append(out, pts[i])
		}
	}
	return out
}

func douglasPeucker(pts []Point, first, last int, tolerance float64, keep []bool) {
	type span struct{ first, last int }
	stack := []span{{first, last}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.last-s.first < 2 {
			continue
		}
		idx, dmax := -1, 0.0
		for i := s.first + 1; i < s.last; i++ {
			d := pointSegmentDistance(pts[i], pts[s.first], pts[s.last])
			if d > dmax {
				idx, dmax = i, d
			}
		}
		if idx >= 0 && dmax > tolerance {
			keep[idx] = true
			stack = append(stack, span{s.first, idx}, span{idx, s.last})
		}
	}
}

// SimplifyRings simplifies every ring with the given tolerance while
// keeping the topology of the set: a simplified ring that collapses below
// three vertices, loses its area, flips orientation, self-intersects or
// touches another ring is replaced by its original vertices.
func SimplifyRings(rings []Ring, tolerance float64) []Ring {
	out := make([]Ring, len(rings))
	changed := make([]bool, len(rings))
	for i, r := range rings {
		out[i] = r
		if tolerance <= 0 {
			continue
		}
		s := SimplifyRing(r.Points, tolerance)
		if len(s) == len(r.Points) {
			continue
		}
		if len(s) < 3 || Area(s) == 0 || SelfIntersects(s) {
			continue
		}
		if r.Source == Inferred && Classify(s) != r.Orientation {
			continue
		}
		out[i].Points = s
		changed[i] = true
	}

	// Repeat until a pass reverts nothing: a reverted ring can cross a
	// ring it was already checked against.
	for reverted := true; reverted; {
		reverted = false
		for i := range out {
			for j := i + 1; j < len(out); j++ {
				if !changed[i] && !changed[j] {
					continue
				}
				if !RingsIntersect(out[i].Points, out[j].Points) {
					continue
				}
				if changed[i] {
					out[i].Points, changed[i] = rings[i].Points, false
				}
				if changed[j] {
					out[j].Points, changed[j] = rings[j].Points, false
				}
				reverted = true
			}
		}
	}
	return out
}
