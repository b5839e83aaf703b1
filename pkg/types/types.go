// Package types defines the COCO dataset model shared by the converter,
// the reconstructor and the dataset tools.
package types

import (
	"github.com/menta2k/cocomask/pkg/geometry"
)

// Info describes a dataset.
type Info struct {
	Description string `json:"description"`
	URL         string `json:"url"`
	Version     string `json:"version"`
	Year        int    `json:"year"`
	Contributor string `json:"contributor"`
	DateCreated string `json:"date_created"`
}

type License struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Image is one raster input. Width and Height must match its label mask.
type Image struct {
	ID           int64  `json:"id"`
	FileName     string `json:"file_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	DateCaptured string `json:"date_captured,omitempty"`
	License      *int64 `json:"license"`
}

// Category maps a mask value to a class name.
type Category struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory,omitempty"`
}

// Annotation is one object instance. BBox and Area are derived from the
// segmentation and recomputed whenever it changes.
type Annotation struct {
	ID           int64        `json:"id"`
	ImageID      int64        `json:"image_id"`
	CategoryID   int64        `json:"category_id"`
	Segmentation Segmentation `json:"segmentation"`
	Area         float64      `json:"area"`
	BBox         []float64    `json:"bbox"`
	IsCrowd      int          `json:"iscrowd"`
	// SegmentationTypes carries one explicit orientation per polygon:
	// 1 adds area, 0 is a hole.
	SegmentationTypes []int `json:"segmentation_types,omitempty"`
}

// Rings resolves the polygons of a into oriented rings. Without
// segmentation types orientation comes from winding. Types with one entry
// per polygon are used as given; any other list, empty included, makes
// every polygon Positive.
func (a *Annotation) Rings() []geometry.Ring {
	polys := make([][]geometry.Point, len(a.Segmentation.Polygons))
	for i, p := range a.Segmentation.Polygons {
		polys[i] = geometry.Unflatten(p)
	}
	if a.SegmentationTypes == nil {
		return geometry.Resolve(polys, nil)
	}
	explicit := make([]geometry.Orientation, len(polys))
	if len(a.SegmentationTypes) == len(polys) {
		for i, t := range a.SegmentationTypes {
			if t == 0 {
				explicit[i] = geometry.Hole
			}
		}
	}
	return geometry.Resolve(polys, explicit)
}

// Dataset is a complete COCO document.
type Dataset struct {
	Info        *Info        `json:"info,omitempty"`
	Licenses    []License    `json:"licenses"`
	Images      []Image      `json:"images"`
	Annotations []Annotation `json:"annotations"`
	Categories  []Category   `json:"categories"`
}

// Image returns the image with the given id.
func (d *Dataset) Image(id int64) (Image, bool) {
	for _, img := range d.Images {
		if img.ID == id {
			return img, true
		}
	}
	return Image{}, false
}

// AnnotationsFor returns the annotations of one image in array order.
func (d *Dataset) AnnotationsFor(imageID int64) []Annotation {
	var out []Annotation
	for _, a := range d.Annotations {
		if a.ImageID == imageID {
			out = append(out, a)
		}
	}
	return out
}

// GroupByImage indexes annotations by image id, keeping array order within
// each image.
func (d *Dataset) GroupByImage() map[int64][]Annotation {
	out := make(map[int64][]Annotation, len(d.Images))
	for _, a := range d.Annotations {
		out[a.ImageID] = append(out[a.ImageID], a)
	}
	return out
}

// CategoryNames maps category ids to names.
func (d *Dataset) CategoryNames() map[int64]string {
	out := make(map[int64]string, len(d.Categories))
	for _, c := range d.Categories {
		out[c.ID] = c.Name
	}
	return out
}
