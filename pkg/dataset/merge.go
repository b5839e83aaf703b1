package dataset

import (
	"fmt"
	"slices"

	"github.com/menta2k/cocomask/pkg/types"
)

// Merge appends b to a. Both must define the same category names with the
// same ids. Image and annotation ids of b are shifted past the largest ids
// of a, and b's annotations follow their images. The result carries a's
// info and licenses and b's categories. Neither input is modified.
func Merge(a, b *types.Dataset) (*types.Dataset, error) {
	if err := compareCategories(a.Categories, b.Categories); err != nil {
		return nil, err
	}

	var maxImage, maxAnn int64
	for _, img := range a.Images {
		maxImage = max(maxImage, img.ID)
	}
	for _, ann := range a.Annotations {
		maxAnn = max(maxAnn, ann.ID)
	}
	imageOffset, annOffset := maxImage+1, maxAnn+1

	out := &types.Dataset{
		Info:        a.Info,
		Licenses:    slices.Clone(a.Licenses),
		Images:      make([]types.Image, 0, len(a.Images)+len(b.Images)),
		Annotations: make([]types.Annotation, 0, len(a.Annotations)+len(b.Annotations)),
		Categories:  slices.Clone(b.Categories),
	}
	if out.Licenses == nil {
		out.Licenses = []types.License{}
	}
	out.Images = append(out.Images, a.Images...)
	out.Annotations = append(out.Annotations, a.Annotations...)

	for _, img := range b.Images {
		img.ID += imageOffset
		out.Images = append(out.Images, img)
	}
	for _, ann := range b.Annotations {
		ann.ID += annOffset
		ann.ImageID += imageOffset
		out.Annotations = append(out.Annotations, ann)
	}
	return out, nil
}

func compareCategories(a, b []types.Category) error {
	am := make(map[string]int64, len(a))
	for _, c := range a {
		am[c.Name] = c.ID
	}
	bm := make(map[string]int64, len(b))
	for _, c := range b {
		bm[c.Name] = c.ID
	}
	if len(am) != len(bm) {
		return fmt.Errorf("%w: category names differ", ErrCategoryMismatch)
	}
	for name, id := range am {
		other, ok := bm[name]
		if !ok {
			return fmt.Errorf("%w: category names differ", ErrCategoryMismatch)
		}
		if other != id {
			return fmt.Errorf("%w: category %q has ids %d and %d", ErrCategoryMismatch, name, id, other)
		}
	}
	return nil
}

// MergeFiles merges the datasets at path1 and path2 and saves the result
// to out.
func MergeFiles(path1, path2, out string) (*types.Dataset, error) {
	a, err := Load(path1)
	if err != nil {
		return nil, err
	}
	b, err := Load(path2)
	if err != nil {
		return nil, err
	}
	merged, err := Merge(a, b)
	if err != nil {
		return nil, err
	}
	if err := Save(merged, out); err != nil {
		return nil, err
	}
	return merged, nil
}
