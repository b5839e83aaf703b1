// Package raster turns polygon rings back into pixel masks.
//
// A pixel is inside a ring when its centre, at integer coordinates, lies
// inside the polygon. Crossings use a half-open rule on both axes so that
// adjacent polygons sharing an edge never both claim a pixel.
package raster

import (
	"errors"
	"math"
	"slices"

	"github.com/menta2k/cocomask/pkg/geometry"
	"github.com/menta2k/cocomask/pkg/mask"
)

// ErrNoPositiveRing is returned when no ring adds area, so there is no
// shape to draw. Callers treat it as a failed object, not an empty one.
var ErrNoPositiveRing = errors.New("no positive ring")

// edge is a non-horizontal polygon edge with y0 < y1.
type edge struct {
	x0, y0 float64
	y1     float64
	dxdy   float64 // (x1-x0)/(y1-y0)
}

// Rasterizer fills rings into binary masks. Its buffers are reused across
// calls; a Rasterizer is not safe for concurrent use.
type Rasterizer struct {
	Width  int
	Height int

	edges []edge
	xs    []float64
}

// NewRasterizer returns a Rasterizer producing width x height masks.
func NewRasterizer(width, height int) *Rasterizer {
	return &Rasterizer{Width: width, Height: height}
}

// Rasterize builds the mask described by rings: the union of all positive
// rings minus the union of all hole rings. It returns ErrNoPositiveRing if
// no ring is positive.
func (r *Rasterizer) Rasterize(rings []geometry.Ring) (*mask.Binary, error) {
	pos := mask.NewBinary(r.Width, r.Height)
	var holes *mask.Binary
	havePositive := false

	for _, ring := range rings {
		if len(ring.Points) < 3 {
			continue
		}
		if ring.Orientation == geometry.Hole {
			if holes == nil {
				holes = mask.NewBinary(r.Width, r.Height)
			}
			r.Fill(holes, ring.Points)
			continue
		}
		havePositive = true
		r.Fill(pos, ring.Points)
	}
	if !havePositive {
		return nil, ErrNoPositiveRing
	}
	if holes != nil {
		pos.Subtract(holes)
	}
	return pos, nil
}

// Polygons resolves raw vertex lists with geometry.Resolve and rasterizes
// them.
func (r *Rasterizer) Polygons(polys [][]geometry.Point, explicit []geometry.Orientation) (*mask.Binary, error) {
	return r.Rasterize(geometry.Resolve(polys, explicit))
}

// Fill sets every pixel of dst whose centre lies inside pts, using the
// even-odd rule.
func (r *Rasterizer) Fill(dst *mask.Binary, pts []geometry.Point) {
	r.collectEdges(pts)
	if len(r.edges) == 0 {
		return
	}

	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, e := range r.edges {
		minY = math.Min(minY, e.y0)
		maxY = math.Max(maxY, e.y1)
	}
	rowStart := max(0, int(math.Ceil(minY)))
	rowEnd := min(dst.Height, int(math.Ceil(maxY)))

	for row := rowStart; row < rowEnd; row++ {
		y := float64(row)
		r.xs = r.xs[:0]
		for _, e := range r.edges {
			if e.y0 <= y && y < e.y1 {
				r.xs = append(r.xs, e.x0+(y-e.y0)*e.dxdy)
			}
		}
		if len(r.xs) < 2 {
			continue
		}
		slices.Sort(r.xs)

		base := row * dst.Width
		for i := 0; i+1 < len(r.xs); i += 2 {
			xa := max(0, int(math.Ceil(r.xs[i])))
			xb := min(dst.Width, int(math.Ceil(r.xs[i+1])))
			for x := xa; x < xb; x++ {
				dst.Pix[base+x] = 1
			}
		}
	}
}

func (r *Rasterizer) collectEdges(pts []geometry.Point) {
	r.edges = r.edges[:0]
	n := len(pts)
	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%n]
		if a.Y == b.Y {
			continue
		}
		if a.Y > b.Y {
			a, b = b, a
		}
		r.edges = append(r.edges, edge{
			x0:   a.X,
			y0:   a.Y,
			y1:   b.Y,
			dxdy: (b.X - a.X) / (b.Y - a.Y),
		})
	}
}

// Rasterize is a convenience wrapper that allocates a Rasterizer for a
// single call.
func Rasterize(rings []geometry.Ring, width, height int) (*mask.Binary, error) {
	return NewRasterizer(width, height).Rasterize(rings)
}
