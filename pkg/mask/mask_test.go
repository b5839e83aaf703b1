package mask

import (
	"image"
	"testing"
)

// createRectMask returns a w x h binary mask with the rectangle r set.
func createRectMask(w, h int, r image.Rectangle) *Binary {
	b := NewBinary(w, h)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			b.Set(x, y)
		}
	}
	return b
}

func TestLabelValuesAndBinary(t *testing.T) {
	l := NewLabel(4, 3)
	l.Set(0, 0, 3)
	l.Set(1, 1, 1)
	l.Set(2, 2, 3)
	l.Set(9, 9, 7) // outside, ignored

	vals := l.Values()
	if len(vals) != 2 || vals[0] != 1 || vals[1] != 3 {
		t.Errorf("Expected values [1 3], got %v", vals)
	}
	if l.Max() != 3 {
		t.Errorf("Expected max 3, got %d", l.Max())
	}
	if got := l.Binary(3).Count(); got != 2 {
		t.Errorf("Expected 2 pixels of id 3, got %d", got)
	}
}

func TestLabelPaintCountsOverwrites(t *testing.T) {
	l := NewLabel(5, 5)
	n, err := l.Paint(createRectMask(5, 5, image.Rect(0, 0, 3, 3)), 1)
	if err != nil || n != 0 {
		t.Fatalf("First paint: n=%d err=%v", n, err)
	}
	n, err = l.Paint(createRectMask(5, 5, image.Rect(2, 2, 5, 5)), 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Expected 1 overwritten pixel, got %d", n)
	}
	if l.At(2, 2) != 2 {
		t.Error("Last write should win")
	}
	if _, err := l.Paint(NewBinary(2, 2), 1); err == nil {
		t.Error("Expected size mismatch error")
	}
}

func TestUnionSubtract(t *testing.T) {
	a := createRectMask(10, 10, image.Rect(0, 0, 6, 6))
	b := createRectMask(10, 10, image.Rect(4, 4, 10, 10))
	a.Union(b)
	if a.Count() != 36+36-4 {
		t.Errorf("Unexpected union count %d", a.Count())
	}
	a.Subtract(createRectMask(10, 10, image.Rect(0, 0, 10, 5)))
	if a.At(1, 1) || !a.At(9, 9) {
		t.Error("Subtract cleared the wrong pixels")
	}
}

func TestIoU(t *testing.T) {
	a := createRectMask(10, 10, image.Rect(0, 0, 4, 4))
	b := createRectMask(10, 10, image.Rect(2, 0, 6, 4))
	if got := IoU(a, b); got != 8.0/24.0 {
		t.Errorf("Expected IoU 1/3, got %f", got)
	}
	if IoU(NewBinary(3, 3), NewBinary(3, 3)) != 1 {
		t.Error("Two empty masks should have IoU 1")
	}
}

func TestPad(t *testing.T) {
	b := createRectMask(2, 2, image.Rect(0, 0, 2, 2))
	p := b.Pad(1)
	if p.Width != 4 || p.Height != 4 {
		t.Fatalf("Expected 4x4, got %dx%d", p.Width, p.Height)
	}
	if p.At(0, 0) || !p.At(1, 1) || !p.At(2, 2) || p.At(3, 3) {
		t.Error("Padding misplaced pixels")
	}
}

func TestComponents(t *testing.T) {
	b := createRectMask(20, 10, image.Rect(1, 1, 5, 5))
	b.Union(createRectMask(20, 10, image.Rect(10, 2, 14, 8)))
	// Diagonal neighbour is not 4-connected.
	b.Set(5, 5)

	comps := Components(b)
	if len(comps) != 3 {
		t.Fatalf("Expected 3 components, got %d", len(comps))
	}
	if comps[0].Count != 16 || comps[0].Bounds != image.Rect(1, 1, 5, 5) {
		t.Errorf("Unexpected first component %d %v", comps[0].Count, comps[0].Bounds)
	}
	if comps[1].Bounds != image.Rect(10, 2, 14, 8) {
		t.Errorf("Components should follow row-major first pixel order, got %v", comps[1].Bounds)
	}
	if comps[2].Count != 1 {
		t.Errorf("Expected isolated pixel, got %d", comps[2].Count)
	}

	m, origin := comps[1].Mask(1)
	if origin != image.Pt(9, 1) {
		t.Errorf("Unexpected origin %v", origin)
	}
	if m.Width != 6 || m.Height != 8 || m.Count() != 24 {
		t.Errorf("Unexpected component mask %dx%d count %d", m.Width, m.Height, m.Count())
	}
}

func TestComponentMaskExcludesNeighbours(t *testing.T) {
	// An L shape wraps around a separate block inside its bounds.
	b := createRectMask(8, 8, image.Rect(0, 0, 8, 1))
	b.Union(createRectMask(8, 8, image.Rect(0, 0, 1, 8)))
	b.Union(createRectMask(8, 8, image.Rect(3, 3, 6, 6)))
	comps := Components(b)
	if len(comps) != 2 {
		t.Fatalf("Expected 2 components, got %d", len(comps))
	}
	m, _ := comps[0].Mask(0)
	if m.Count() != 15 {
		t.Errorf("Expected 15 pixels, got %d", m.Count())
	}
}

func TestRLE(t *testing.T) {
	b := createRectMask(4, 3, image.Rect(1, 0, 3, 2))
	r := Encode(b)
	want := []uint32{3, 2, 1, 2, 4}
	if len(r.Counts) != len(want) {
		t.Fatalf("Expected counts %v, got %v", want, r.Counts)
	}
	for i := range want {
		if r.Counts[i] != want[i] {
			t.Fatalf("Expected counts %v, got %v", want, r.Counts)
		}
	}
	if r.Area() != 4 {
		t.Errorf("Expected area 4, got %d", r.Area())
	}

	d, err := Decode(r)
	if err != nil {
		t.Fatal(err)
	}
	if IoU(b, d) != 1 {
		t.Error("Decoded mask differs from source")
	}

	if _, err := Decode(RLE{Size: [2]int{2, 2}, Counts: []uint32{3, 3}}); err == nil {
		t.Error("Expected error for runs exceeding the mask")
	}
}

func TestRLEString(t *testing.T) {
	counts := []uint32{3, 2, 1, 2, 4, 100, 0, 70000}
	r := RLE{Size: [2]int{300, 300}, Counts: counts}
	s := r.String()
	back, err := ParseCounts(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != len(counts) {
		t.Fatalf("Expected %d counts, got %d", len(counts), len(back))
	}
	for i := range counts {
		if back[i] != counts[i] {
			t.Errorf("count %d: expected %d, got %d", i, counts[i], back[i])
		}
	}

	// "3" is a single count of 3 in the pycocotools alphabet.
	if got := (RLE{Counts: []uint32{3}}).String(); got != "3" {
		t.Errorf("Expected \"3\", got %q", got)
	}
	if _, err := ParseCounts("\x01"); err == nil {
		t.Error("Expected error for byte below the alphabet")
	}
}

func BenchmarkComponents(b *testing.B) {
	m := NewBinary(512, 512)
	for y := 0; y < 512; y++ {
		for x := 0; x < 512; x++ {
			if (x/16+y/16)%2 == 0 {
				m.Set(x, y)
			}
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Components(m)
	}
}
