package cocomask

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/menta2k/cocomask/pkg/cache/memory"
	"github.com/menta2k/cocomask/pkg/categories"
	"github.com/menta2k/cocomask/pkg/extract"
	"github.com/menta2k/cocomask/pkg/mask"
	"github.com/menta2k/cocomask/pkg/processing"
	"github.com/menta2k/cocomask/pkg/types"
)

func createTestCategories(t *testing.T) *categories.Table {
	t.Helper()
	cats, err := categories.New([]types.Category{{ID: 1, Name: "square"}, {ID: 2, Name: "ring"}})
	if err != nil {
		t.Fatal(err)
	}
	return cats
}

// createTestMask creates a 20x20 mask with a 10x10 square of category 1
// at (5,5).
func createTestMask() *mask.Label {
	l := mask.NewLabel(20, 20)
	for y := 5; y < 15; y++ {
		for x := 5; x < 15; x++ {
			l.Set(x, y, 1)
		}
	}
	return l
}

func TestNew(t *testing.T) {
	c := New(createTestCategories(t))
	if c == nil {
		t.Fatal("New() returned nil")
	}
	if c.extractor == nil || c.reconstructor == nil || c.processor == nil {
		t.Error("converter component is nil")
	}
}

func TestConvertMask(t *testing.T) {
	c := New(createTestCategories(t))
	ds, stats := c.ConvertMask(createTestMask(), "square.png")

	if stats.Annotations != 1 || stats.Noise != 0 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if len(ds.Images) != 1 || ds.Images[0].ID != 1 || ds.Images[0].Width != 20 {
		t.Fatalf("Unexpected images %+v", ds.Images)
	}
	if len(ds.Categories) != 2 {
		t.Errorf("Expected all categories to be listed, got %d", len(ds.Categories))
	}
	if len(ds.Annotations) != 1 {
		t.Fatalf("Expected 1 annotation, got %d", len(ds.Annotations))
	}

	ann := ds.Annotations[0]
	if ann.ID != 1 || ann.ImageID != 1 || ann.CategoryID != 1 {
		t.Errorf("Unexpected ids %+v", ann)
	}
	if ann.Area < 98 || ann.Area > 102 {
		t.Errorf("Expected area near 100, got %v", ann.Area)
	}
	want := []float64{5, 5, 10, 10}
	for i := range want {
		if math.Abs(ann.BBox[i]-want[i]) > 1 {
			t.Errorf("Expected bbox near %v, got %v", want, ann.BBox)
			break
		}
	}
}

func TestConvertMaskMinArea(t *testing.T) {
	cfg := extract.DefaultConfig()
	cfg.MinArea = 101
	c := NewWithConfig(createTestCategories(t), cfg)
	ds, stats := c.ConvertMask(createTestMask(), "square.png")
	if len(ds.Annotations) != 0 || stats.Noise != 1 {
		t.Errorf("Expected the square to be noise, got %d annotations %+v", len(ds.Annotations), stats)
	}
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := createTestMask()
	path := filepath.Join(dir, "square.tif")
	if err := processing.NewProcessor(nil).SaveMask(src, path); err != nil {
		t.Fatal(err)
	}

	c := New(createTestCategories(t))
	ds, _, err := c.ConvertFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if ds.Images[0].FileName != "square.tif" {
		t.Errorf("Expected base name, got %q", ds.Images[0].FileName)
	}

	res, err := c.ReconstructFile(ds, 1, filepath.Join(dir, "out.png"))
	if err != nil {
		t.Fatal(err)
	}
	if iou := mask.LabelIoU(src, res.Mask); iou < 0.95 {
		t.Errorf("Expected IoU >= 0.95, got %.3f", iou)
	}

	if _, err := c.ReconstructMask(ds, 42); err == nil {
		t.Error("Expected error for unknown image")
	}
}

func TestConvertFileCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "square.tif")
	proc := processing.NewProcessor(nil)
	if err := proc.SaveMask(createTestMask(), path); err != nil {
		t.Fatal(err)
	}

	store := memory.New(8, time.Minute)
	c := New(createTestCategories(t))
	c.SetCache(store)
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return first }

	ctx := context.Background()
	ds, _, err := c.ConvertFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	stamp := ds.Images[0].DateCaptured
	if store.Len() != 1 {
		t.Fatalf("Expected 1 cached entry, got %d", store.Len())
	}

	c.now = func() time.Time { return first.Add(48 * time.Hour) }
	ds, stats, err := c.ConvertFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if ds.Images[0].DateCaptured != stamp || stats.Annotations != 1 {
		t.Errorf("Expected the cached result, got %q %+v", ds.Images[0].DateCaptured, stats)
	}

	changed := createTestMask()
	changed.Set(0, 0, 2)
	if err := proc.SaveMask(changed, path); err != nil {
		t.Fatal(err)
	}
	ds, _, err = c.ConvertFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if ds.Images[0].DateCaptured == stamp || store.Len() != 2 {
		t.Error("A changed file should be converted again")
	}

	if _, _, err := c.ConvertFile(ctx, filepath.Join(dir, "missing.tif")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Errorf("GetVersion() = %q, want %q", GetVersion(), Version)
	}
}
