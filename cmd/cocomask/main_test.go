package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/cocomask/pkg/types"
)

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs("1, 2,30")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 30 {
		t.Errorf("Unexpected ids %v", ids)
	}
	if ids, err := parseIDs(""); err != nil || ids != nil {
		t.Errorf("Expected no ids, got %v %v", ids, err)
	}
	if _, err := parseIDs("1,x"); err == nil {
		t.Error("Expected error for non-numeric id")
	}
}

func writeDataset(t *testing.T, ds *types.Dataset) string {
	t.Helper()
	data, err := json.Marshal(ds)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "ds.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunExitCodes(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "missing.yaml")

	if code := run([]string{"-config", cfg, "version"}); code != 0 {
		t.Errorf("version: expected 0, got %d", code)
	}
	if code := run([]string{"-config", cfg, "bogus"}); code != 2 {
		t.Errorf("unknown command: expected 2, got %d", code)
	}
	if code := run(nil); code != 2 {
		t.Errorf("no command: expected 2, got %d", code)
	}

	healthy := writeDataset(t, &types.Dataset{
		Images:     []types.Image{{ID: 1, FileName: "a.png", Width: 10, Height: 10}},
		Categories: []types.Category{{ID: 1, Name: "thing"}},
		Annotations: []types.Annotation{{
			ID: 1, ImageID: 1, CategoryID: 1, BBox: []float64{1, 1, 4, 4},
			Segmentation: types.Segmentation{Polygons: [][]float64{{1, 1, 1, 5, 5, 5, 5, 1}}},
		}},
	})
	if code := run([]string{"-config", cfg, "health", "-i", healthy, "-format", "token"}); code != 0 {
		t.Errorf("healthy dataset: expected 0, got %d", code)
	}

	broken := writeDataset(t, &types.Dataset{
		Images:      []types.Image{{ID: 1, FileName: "a.png", Width: 10, Height: 10}},
		Categories:  []types.Category{{ID: 1, Name: "thing"}},
		Annotations: []types.Annotation{{ID: 1, ImageID: 9, CategoryID: 1, BBox: []float64{1, 1, 4, 4}}},
	})
	if code := run([]string{"-config", cfg, "health", "-i", broken, "-format", "token"}); code != 1 {
		t.Errorf("orphaned annotation: expected 1, got %d", code)
	}
}

func TestReconstructUsesConfiguredFormat(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfg, []byte("output:\n  mask_format: png\n"), 0644); err != nil {
		t.Fatal(err)
	}
	in := writeDataset(t, &types.Dataset{
		Images:     []types.Image{{ID: 1, FileName: "a.tif", Width: 10, Height: 10}},
		Categories: []types.Category{{ID: 1, Name: "thing"}},
		Annotations: []types.Annotation{{
			ID: 1, ImageID: 1, CategoryID: 1, BBox: []float64{1, 1, 4, 4},
			Segmentation: types.Segmentation{Polygons: [][]float64{{1, 1, 1, 5, 5, 5, 5, 1}}},
		}},
	})

	out := filepath.Join(dir, "masks")
	if code := run([]string{"-config", cfg, "reconstruct", "-i", in, "-o", out}); code != 0 {
		t.Fatalf("reconstruct: expected 0, got %d", code)
	}
	if _, err := os.Stat(filepath.Join(out, "a.png")); err != nil {
		t.Errorf("Expected a.png from the configured format: %v", err)
	}

	out = filepath.Join(dir, "tif")
	if code := run([]string{"-config", cfg, "reconstruct", "-i", in, "-o", out, "-format", "tif"}); code != 0 {
		t.Fatalf("reconstruct -format tif: expected 0, got %d", code)
	}
	if _, err := os.Stat(filepath.Join(out, "a.tif")); err != nil {
		t.Errorf("Expected the flag to override the configured format: %v", err)
	}
}

func TestConvertMissingCategories(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "missing.yaml")
	args := []string{"-config", cfg, "convert", "-i", dir, "-o", filepath.Join(dir, "out.json"), "-c", filepath.Join(dir, "none.json")}
	if code := run(args); code != 1 {
		t.Errorf("Expected 1 for a missing categories file, got %d", code)
	}
}
