package contour

import (
	"math"
	"testing"

	"github.com/menta2k/cocomask/pkg/geometry"
	"github.com/menta2k/cocomask/pkg/mask"
)

// createSquareMask returns a w x h mask with a size x size square at (x0, y0).
func createSquareMask(w, h, x0, y0, size int) *mask.Binary {
	b := mask.NewBinary(w, h)
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			b.Set(x, y)
		}
	}
	return b
}

func TestFindSquare(t *testing.T) {
	rings := Find(createSquareMask(20, 20, 5, 5, 10))
	if len(rings) != 1 {
		t.Fatalf("Expected 1 ring, got %d", len(rings))
	}
	r := rings[0]
	if geometry.Classify(r) != geometry.Positive {
		t.Error("Outer boundary should classify as positive")
	}
	// Eight vertices: each corner pixel is cut diagonally.
	if len(r) != 8 {
		t.Errorf("Expected 8 vertices, got %d: %v", len(r), r)
	}
	if a := geometry.Area(r); math.Abs(a-99.5) > 1e-9 {
		t.Errorf("Expected area 99.5, got %f", a)
	}
	bbox, _ := geometry.Bounds([]geometry.Ring{{Points: r}})
	want := geometry.BBox{4.5, 4.5, 10, 10}
	if bbox != want {
		t.Errorf("Expected bbox %v, got %v", want, bbox)
	}
}

func TestFindAnnulus(t *testing.T) {
	b := createSquareMask(20, 20, 2, 2, 14)
	for y := 6; y < 12; y++ {
		for x := 6; x < 12; x++ {
			b.Pix[y*b.Width+x] = 0
		}
	}
	rings := Find(b)
	if len(rings) != 2 {
		t.Fatalf("Expected 2 rings, got %d", len(rings))
	}
	if geometry.Classify(rings[0]) != geometry.Positive {
		t.Error("First ring should be the positive outer boundary")
	}
	if geometry.Classify(rings[1]) != geometry.Hole {
		t.Error("Second ring should be a hole")
	}
	if geometry.Area(rings[1]) >= geometry.Area(rings[0]) {
		t.Error("Hole should be smaller than the outer ring")
	}
}

func TestFindSaddleKeepsDiagonalPixelsApart(t *testing.T) {
	b := mask.NewBinary(4, 4)
	b.Set(1, 1)
	b.Set(2, 2)
	rings := Find(b)
	if len(rings) != 2 {
		t.Fatalf("Expected 2 separate rings, got %d", len(rings))
	}
	for i, r := range rings {
		if geometry.Classify(r) != geometry.Positive {
			t.Errorf("ring %d should be positive", i)
		}
		if a := geometry.Area(r); a != 0.5 {
			t.Errorf("ring %d: expected diamond of area 0.5, got %f", i, a)
		}
	}
}

func TestFindEmptyAndFull(t *testing.T) {
	if rings := Find(mask.NewBinary(5, 5)); len(rings) != 0 {
		t.Errorf("Expected no rings on empty mask, got %d", len(rings))
	}
	if rings := Find(createSquareMask(5, 5, 0, 0, 5)); len(rings) != 0 {
		t.Errorf("Expected no closed rings without background border, got %d", len(rings))
	}
}

func TestTranslate(t *testing.T) {
	rings := [][]geometry.Point{{{X: 1, Y: 1}, {X: 2, Y: 2}}}
	Translate(rings, -1, 3)
	if rings[0][1] != (geometry.Point{X: 1, Y: 5}) {
		t.Errorf("Unexpected translated point %v", rings[0][1])
	}
}

func BenchmarkFind(b *testing.B) {
	m := mask.NewBinary(256, 256)
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			dx, dy := float64(x-128), float64(y-128)
			if dx*dx+dy*dy < 100*100 {
				m.Set(x, y)
			}
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Find(m)
	}
}
