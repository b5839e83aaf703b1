package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/menta2k/cocomask/pkg/types"
)

func createTestDataset() *types.Dataset {
	ds := New([]types.Category{{ID: 1, Name: "square"}, {ID: 2, Name: "circle"}},
		time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	ds.Images = []types.Image{
		{ID: 1, FileName: "a.tif", Width: 20, Height: 20},
		{ID: 2, FileName: "dir/b.tif", Width: 20, Height: 20},
		{ID: 3, FileName: "c.tif", Width: 20, Height: 20},
	}
	ds.Annotations = []types.Annotation{
		{ID: 1, ImageID: 1, CategoryID: 2, BBox: []float64{0, 0, 1, 1}},
		{ID: 2, ImageID: 1, CategoryID: 1, BBox: []float64{0, 0, 1, 1}},
		{ID: 3, ImageID: 2, CategoryID: 9, BBox: []float64{0, 0, 1, 1}},
	}
	return ds
}

func TestNew(t *testing.T) {
	ds := createTestDataset()
	if ds.Info.Description != "Converted Dataset" || ds.Info.Year != 2024 || ds.Info.Contributor != Contributor {
		t.Errorf("Unexpected info %+v", ds.Info)
	}
	if ds.Info.DateCreated != "2024-05-01 12:00:00" {
		t.Errorf("Unexpected date %q", ds.Info.DateCreated)
	}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")
	ds := createTestDataset()
	if err := Save(ds, path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "nested", ".tmp_out.json")); !os.IsNotExist(err) {
		t.Error("Temporary file should be renamed away")
	}

	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(back.Images) != 3 || len(back.Annotations) != 3 || len(back.Categories) != 2 {
		t.Errorf("Unexpected round trip %d/%d/%d", len(back.Images), len(back.Annotations), len(back.Categories))
	}
}

func TestLoadMissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"images": [], "categories": []}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrMissingKey) {
		t.Errorf("Expected ErrMissingKey, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "none.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
	if _, err := Decode([]byte(`{"images": `)); err == nil {
		t.Error("Expected error for truncated JSON")
	}
}

func TestMerge(t *testing.T) {
	a := createTestDataset()
	b := createTestDataset()
	merged, err := Merge(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.Images) != 6 || len(merged.Annotations) != 6 {
		t.Fatalf("Unexpected sizes %d/%d", len(merged.Images), len(merged.Annotations))
	}
	// b's ids are shifted by max(a ids)+1.
	if merged.Images[3].ID != 5 || merged.Annotations[3].ID != 5 {
		t.Errorf("Unexpected remapped ids %d/%d", merged.Images[3].ID, merged.Annotations[3].ID)
	}
	if merged.Annotations[5].ImageID != 6 {
		t.Errorf("Annotation image id should follow its image, got %d", merged.Annotations[5].ImageID)
	}
	seen := make(map[int64]bool)
	for _, img := range merged.Images {
		if seen[img.ID] {
			t.Errorf("Duplicate image id %d", img.ID)
		}
		seen[img.ID] = true
	}
	if b.Images[0].ID != 1 {
		t.Error("Merge must not modify its inputs")
	}
}

func TestMergeCategoryMismatch(t *testing.T) {
	a := createTestDataset()
	b := createTestDataset()
	b.Categories = []types.Category{{ID: 1, Name: "square"}, {ID: 3, Name: "circle"}}
	if _, err := Merge(a, b); !errors.Is(err, ErrCategoryMismatch) {
		t.Errorf("Expected ErrCategoryMismatch for id change, got %v", err)
	}
	b.Categories = []types.Category{{ID: 1, Name: "square"}}
	if _, err := Merge(a, b); !errors.Is(err, ErrCategoryMismatch) {
		t.Errorf("Expected ErrCategoryMismatch for missing name, got %v", err)
	}
}

func TestMergeFiles(t *testing.T) {
	dir := t.TempDir()
	p1, p2 := filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")
	if err := Save(createTestDataset(), p1); err != nil {
		t.Fatal(err)
	}
	if err := Save(createTestDataset(), p2); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "merged.json")
	if _, err := MergeFiles(p1, p2, out); err != nil {
		t.Fatal(err)
	}
	back, err := Load(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(back.Images) != 6 {
		t.Errorf("Expected 6 images, got %d", len(back.Images))
	}
}

func TestCategoryLabel(t *testing.T) {
	names := map[int64]string{1: "square", 2: "circle"}
	anns := []types.Annotation{{CategoryID: 2}, {CategoryID: 1}, {CategoryID: 2}, {CategoryID: 9}}
	if got := CategoryLabel(anns, names); got != "circle_square_unknown_9" {
		t.Errorf("Unexpected label %q", got)
	}
	if got := CategoryLabel(nil, names); got != "no_annotations" {
		t.Errorf("Unexpected empty label %q", got)
	}
}

func TestSplitFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.json")
	if err := Save(createTestDataset(), in); err != nil {
		t.Fatal(err)
	}

	created, err := SplitFile(in, filepath.Join(dir, "out"), "{image_id}_{image_name}")
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 3 {
		t.Fatalf("Expected 3 files, got %d", len(created))
	}
	if filepath.Base(created[1]) != "2_b.json" {
		t.Errorf("Unexpected file name %s", created[1])
	}
	part, err := Load(created[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(part.Annotations) != 2 || len(part.Categories) != 2 {
		t.Errorf("Unexpected split content %d/%d", len(part.Annotations), len(part.Categories))
	}
}

func TestSplitByCategories(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.json")
	if err := Save(createTestDataset(), in); err != nil {
		t.Fatal(err)
	}
	created, err := SplitByCategories(in, dir, "")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a_cat_circle_square.json", "b_cat_unknown_9.json", "c_cat_no_annotations.json"}
	for i, w := range want {
		if filepath.Base(created[i]) != w {
			t.Errorf("Expected %s, got %s", w, filepath.Base(created[i]))
		}
	}
}
