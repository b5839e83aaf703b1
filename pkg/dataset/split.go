package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/menta2k/cocomask/pkg/types"
)

const (
	DefaultSplitPattern         = "{image_name}"
	DefaultCategorySplitPattern = "{image_name}_cat_{category_names}"
)

// Split returns one dataset per image, in image order. Each carries the
// source info, licenses and categories and the annotations of its image.
func Split(ds *types.Dataset) []*types.Dataset {
	byImage := ds.GroupByImage()
	out := make([]*types.Dataset, 0, len(ds.Images))
	for _, img := range ds.Images {
		anns := byImage[img.ID]
		if anns == nil {
			anns = []types.Annotation{}
		}
		licenses := ds.Licenses
		if licenses == nil {
			licenses = []types.License{}
		}
		out = append(out, &types.Dataset{
			Info:        ds.Info,
			Licenses:    licenses,
			Images:      []types.Image{img},
			Annotations: anns,
			Categories:  ds.Categories,
		})
	}
	return out
}

// CategoryLabel names the combination of categories used by anns: sorted
// names joined by underscores, unknown_<id> for undefined ids, or
// no_annotations when anns is empty.
func CategoryLabel(anns []types.Annotation, names map[int64]string) string {
	seen := make(map[int64]bool)
	var parts []string
	for _, a := range anns {
		if seen[a.CategoryID] {
			continue
		}
		seen[a.CategoryID] = true
		name, ok := names[a.CategoryID]
		if !ok {
			name = "unknown_" + strconv.FormatInt(a.CategoryID, 10)
		}
		parts = append(parts, name)
	}
	if len(parts) == 0 {
		return "no_annotations"
	}
	slices.Sort(parts)
	return strings.Join(parts, "_")
}

// FormatName expands the {image_name}, {image_id} and {category_names}
// variables of pattern.
func FormatName(pattern string, img types.Image, categoryNames string) string {
	stem := strings.TrimSuffix(filepath.Base(img.FileName), filepath.Ext(img.FileName))
	r := strings.NewReplacer(
		"{image_name}", stem,
		"{image_id}", strconv.FormatInt(img.ID, 10),
		"{category_names}", categoryNames,
	)
	return r.Replace(pattern)
}

// SplitFile writes one dataset per image of the dataset at in into outDir,
// naming each file by pattern. It returns the created paths.
func SplitFile(in, outDir, pattern string) ([]string, error) {
	return splitFile(in, outDir, pattern, DefaultSplitPattern, false)
}

// SplitByCategories is SplitFile with the {category_names} variable
// available in pattern.
func SplitByCategories(in, outDir, pattern string) ([]string, error) {
	return splitFile(in, outDir, pattern, DefaultCategorySplitPattern, true)
}

func splitFile(in, outDir, pattern, def string, byCategories bool) ([]string, error) {
	ds, err := Load(in)
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		pattern = def
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	names := ds.CategoryNames()
	var created []string
	for _, part := range Split(ds) {
		label := ""
		if byCategories {
			label = CategoryLabel(part.Annotations, names)
		}
		path := filepath.Join(outDir, FormatName(pattern, part.Images[0], label)+".json")
		if err := Save(part, path); err != nil {
			return created, err
		}
		created = append(created, path)
	}
	return created, nil
}
