package raster

import (
	"errors"
	"testing"

	"github.com/menta2k/cocomask/pkg/geometry"
)

// rect returns a rectangle ring with negative signed area.
func rect(x0, y0, x1, y1 float64) []geometry.Point {
	return []geometry.Point{{X: x0, Y: y0}, {X: x0, Y: y1}, {X: x1, Y: y1}, {X: x1, Y: y0}}
}

func TestRasterizeRectangle(t *testing.T) {
	// Pixel centres 2..5 lie inside [1.5, 5.5).
	rings := []geometry.Ring{{Points: rect(1.5, 1.5, 5.5, 5.5)}}
	m, err := Rasterize(rings, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	if m.Count() != 16 {
		t.Errorf("Expected 16 pixels, got %d", m.Count())
	}
	if !m.At(2, 2) || !m.At(5, 5) || m.At(1, 1) || m.At(6, 6) {
		t.Error("Rectangle filled the wrong pixels")
	}
}

func TestRasterizeAnnulus(t *testing.T) {
	rings := []geometry.Ring{
		{Points: rect(-0.5, -0.5, 9.5, 9.5), Orientation: geometry.Positive},
		{Points: geometry.Reverse(rect(2.5, 2.5, 6.5, 6.5)), Orientation: geometry.Hole},
	}
	m, err := Rasterize(rings, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	if m.At(4, 4) {
		t.Error("Hole pixel should be empty")
	}
	if !m.At(1, 1) || !m.At(8, 8) {
		t.Error("Annulus pixel should be set")
	}
	// Outer area 100 minus inner area 16.
	if m.Count() != 84 {
		t.Errorf("Expected 84 pixels, got %d", m.Count())
	}
}

func TestRasterizeNoPositive(t *testing.T) {
	rings := []geometry.Ring{{Points: rect(0, 0, 4, 4), Orientation: geometry.Hole}}
	if _, err := Rasterize(rings, 5, 5); !errors.Is(err, ErrNoPositiveRing) {
		t.Errorf("Expected ErrNoPositiveRing, got %v", err)
	}
	if _, err := Rasterize(nil, 5, 5); !errors.Is(err, ErrNoPositiveRing) {
		t.Errorf("Expected ErrNoPositiveRing for no rings, got %v", err)
	}
}

func TestPolygonsForcesPositive(t *testing.T) {
	// The only ring winds as a hole and is forced positive.
	polys := [][]geometry.Point{geometry.Reverse(rect(-0.5, -0.5, 5.5, 5.5))}
	m, err := NewRasterizer(6, 6).Polygons(polys, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.Count() != 36 {
		t.Errorf("Expected 36 pixels, got %d", m.Count())
	}
}

func TestAdjacentPolygonsDoNotOverlap(t *testing.T) {
	r := NewRasterizer(10, 10)
	a, _ := r.Rasterize([]geometry.Ring{{Points: rect(0, 0, 5, 10)}})
	b, _ := r.Rasterize([]geometry.Ring{{Points: rect(5, 0, 10, 10)}})
	for i := range a.Pix {
		if a.Pix[i] != 0 && b.Pix[i] != 0 {
			t.Fatalf("Pixel %d claimed by both polygons", i)
		}
	}
}

func TestRasterizeClipsToMask(t *testing.T) {
	m, err := Rasterize([]geometry.Ring{{Points: rect(-20, -20, 50, 50)}}, 8, 4)
	if err != nil {
		t.Fatal(err)
	}
	if m.Count() != 32 {
		t.Errorf("Expected full 32 pixel mask, got %d", m.Count())
	}
}

func TestRasterizeTriangle(t *testing.T) {
	tri := []geometry.Point{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}}
	m, err := Rasterize([]geometry.Ring{{Points: tri}}, 12, 12)
	if err != nil {
		t.Fatal(err)
	}
	// Row y contains x in [0, y), so rows 1..9 hold 1..9 pixels.
	if m.Count() != 45 {
		t.Errorf("Expected 45 pixels, got %d", m.Count())
	}
	if m.At(5, 5) {
		t.Error("Pixel on the diagonal edge belongs to the right neighbour")
	}
}

func BenchmarkRasterize(b *testing.B) {
	rings := []geometry.Ring{
		{Points: rect(10, 10, 500, 500)},
		{Points: geometry.Reverse(rect(100, 100, 200, 200)), Orientation: geometry.Hole},
	}
	r := NewRasterizer(512, 512)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = r.Rasterize(rings)
	}
}
