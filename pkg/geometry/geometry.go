// Package geometry implements the polygon primitives used by the mask
// converter: signed area, orientation classification, ring reversal,
// bounding boxes and areas over ring sets.
//
// Coordinates are image coordinates: x grows to the right and y grows
// downward. A ring is POSITIVE (adds area) when its signed area is
// negative and a HOLE otherwise. This is a convention shared by the
// contour tracer and the rasterizer, not a geometric law.
package geometry

import "math"

// Point is a vertex in image coordinates.
type Point struct {
	X float64
	Y float64
}

// Orientation tells whether a ring adds to or subtracts from an area.
type Orientation int8

const (
	Positive Orientation = iota
	Hole
)

func (o Orientation) String() string {
	if o == Hole {
		return "hole"
	}
	return "positive"
}

// Source records how a ring's orientation was obtained.
type Source int8

const (
	// Inferred orientations come from vertex winding.
	Inferred Source = iota
	// Explicit orientations were carried alongside the ring.
	Explicit
)

// Ring is a closed polygon boundary. The last vertex connects back to the
// first; it is not repeated.
type Ring struct {
	Points      []Point
	Orientation Orientation
	Source      Source
}

// BBox is an axis-aligned box in COCO order [x, y, w, h].
type BBox [4]float64

// SignedArea returns half the shoelace sum over consecutive vertex pairs,
// wrapping from the last vertex to the first.
func SignedArea(pts []Point) float64 {
	n := len(pts)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := i + 1
		if j == n {
			j = 0
		}
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return sum / 2
}

// Area returns the unsigned area enclosed by pts.
func Area(pts []Point) float64 {
	return math.Abs(SignedArea(pts))
}

// Classify returns Positive when the signed area is negative and Hole
// otherwise. Rings with fewer than three points are Positive.
func Classify(pts []Point) Orientation {
	if len(pts) < 3 {
		return Positive
	}
	if SignedArea(pts) < 0 {
		return Positive
	}
	return Hole
}

// Reverse returns a copy of pts in reverse order, which inverts the
// classification of any non-degenerate ring.
func Reverse(pts []Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}

// Resolve turns raw vertex lists into rings with a settled orientation.
// When explicit has one entry per polygon those orientations are used as
// given. Otherwise every orientation is inferred from winding, and if none
// comes out Positive the first ring is forced Positive.
func Resolve(polys [][]Point, explicit []Orientation) []Ring {
	rings := make([]Ring, len(polys))
	if len(explicit) > 0 && len(explicit) == len(polys) {
		for i, p := range polys {
			rings[i] = Ring{Points: p, Orientation: explicit[i], Source: Explicit}
		}
		return rings
	}

	hasPositive := false
	for i, p := range polys {
		o := Classify(p)
		if o == Positive {
			hasPositive = true
		}
		rings[i] = Ring{Points: p, Orientation: o, Source: Inferred}
	}
	if !hasPositive && len(rings) > 0 {
		rings[0].Orientation = Positive
	}
	return rings
}

// Bounds returns the union of vertex bounds across all rings. ok is false
// when there are no vertices.
func Bounds(rings []Ring) (bbox BBox, ok bool) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, r := range rings {
		for _, p := range r.Points {
			minX = math.Min(minX, p.X)
			minY = math.Min(minY, p.Y)
			maxX = math.Max(maxX, p.X)
			maxY = math.Max(maxY, p.Y)
		}
	}
	if math.IsInf(minX, 1) {
		return BBox{}, false
	}
	return BBox{minX, minY, maxX - minX, maxY - minY}, true
}

// NetArea adds the area of Positive rings, subtracts the area of Hole rings
// and clamps the result at zero.
func NetArea(rings []Ring) float64 {
	var total float64
	for _, r := range rings {
		a := Area(r.Points)
		if r.Orientation == Hole {
			total -= a
		} else {
			total += a
		}
	}
	if total < 0 {
		return 0
	}
	return total
}

// Flatten converts pts to the COCO flat form [x1, y1, x2, y2, ...].
func Flatten(pts []Point) []float64 {
	out := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		out = append(out, p.X, p.Y)
	}
	return out
}

// Unflatten converts a COCO flat coordinate list to points. A trailing odd
// value is ignored.
func Unflatten(flat []float64) []Point {
	pts := make([]Point, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		pts = append(pts, Point{X: flat[i], Y: flat[i+1]})
	}
	return pts
}
