// Package health validates the referential integrity of a dataset and
// summarises its contents.
//
// Findings are data-quality reports, never load failures: a dataset with
// orphaned annotations still loads and converts.
package health

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/menta2k/cocomask/pkg/types"
)

type BasicStats struct {
	Images      int `json:"n_images"`
	Annotations int `json:"n_annotations"`
	Categories  int `json:"n_categories"`
}

type CategoryRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// OrphanedCategories lists categories defined but never used, and ids used
// by annotations but never defined.
type OrphanedCategories struct {
	Unused    []CategoryRef `json:"unused_categories"`
	Undefined []int64       `json:"undefined_categories"`
}

func (o OrphanedCategories) Valid() bool {
	return len(o.Unused) == 0 && len(o.Undefined) == 0
}

type CategoryCount struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Multipolygon struct {
	AnnotationID int64 `json:"annotation_id"`
	ImageID      int64 `json:"image_id"`
	Polygons     int   `json:"polygons"`
}

type MultipolygonStats struct {
	Count   int            `json:"count"`
	Details []Multipolygon `json:"details"`
}

// OrphanedAnnotations lists annotations whose image does not exist.
type OrphanedAnnotations struct {
	IDs []int64 `json:"orphaned_ids"`
}

type ImageRef struct {
	ID       int64  `json:"id"`
	FileName string `json:"file_name"`
}

type InvalidBBox struct {
	AnnotationID int64  `json:"annotation_id"`
	Reason       string `json:"reason"`
}

type ImageStats struct {
	ID            int64  `json:"id"`
	FileName      string `json:"file_name"`
	Annotations   int    `json:"ann_count"`
	Multipolygons int    `json:"multipolygon_count"`
}

type Range struct {
	Min int     `json:"min"`
	Max int     `json:"max"`
	Avg float64 `json:"avg"`
}

type PerImageSummary struct {
	Annotations   *Range `json:"annotations,omitempty"`
	Multipolygons *Range `json:"multipolygons,omitempty"`
}

// Results holds every check run by Check. PerImage is filled in verbose
// mode and Summary otherwise.
type Results struct {
	Basic                    BasicStats          `json:"basic_stats"`
	OrphanedCategories       OrphanedCategories  `json:"orphaned_categories"`
	CategoryDistribution     []CategoryCount     `json:"category_distribution"`
	Multipolygons            MultipolygonStats   `json:"multipolygon_stats"`
	OrphanedAnnotations      OrphanedAnnotations `json:"orphaned_annotations"`
	ImagesWithoutAnnotations []ImageRef          `json:"images_without_annotations"`
	InvalidBBoxes            []InvalidBBox       `json:"invalid_bboxes"`
	PerImage                 []ImageStats        `json:"per_image_stats,omitempty"`
	Summary                  *PerImageSummary    `json:"per_image_summary,omitempty"`
	Verbose                  bool                `json:"verbose"`
}

// HasErrors reports whether any check found an error-class defect:
// undefined categories, orphaned annotations or invalid boxes.
func (r *Results) HasErrors() bool {
	return len(r.OrphanedCategories.Undefined) > 0 ||
		len(r.OrphanedAnnotations.IDs) > 0 ||
		len(r.InvalidBBoxes) > 0
}

// HasWarnings reports unused categories.
func (r *Results) HasWarnings() bool {
	return len(r.OrphanedCategories.Unused) > 0
}

// Check runs all checks on ds.
func Check(ds *types.Dataset, verbose bool) *Results {
	r := &Results{
		Basic: BasicStats{
			Images:      len(ds.Images),
			Annotations: len(ds.Annotations),
			Categories:  len(ds.Categories),
		},
		OrphanedCategories:       OrphanedCategories{Unused: []CategoryRef{}, Undefined: []int64{}},
		CategoryDistribution:     []CategoryCount{},
		Multipolygons:            MultipolygonStats{Details: []Multipolygon{}},
		OrphanedAnnotations:      OrphanedAnnotations{IDs: []int64{}},
		ImagesWithoutAnnotations: []ImageRef{},
		InvalidBBoxes:            []InvalidBBox{},
		Verbose:                  verbose,
	}

	defined := make(map[int64]bool, len(ds.Categories))
	for _, c := range ds.Categories {
		defined[c.ID] = true
	}
	images := make(map[int64]bool, len(ds.Images))
	for _, img := range ds.Images {
		images[img.ID] = true
	}

	used := make(map[int64]int)
	annotated := make(map[int64]bool)
	perImage := make(map[int64]*ImageStats, len(ds.Images))
	for _, img := range ds.Images {
		perImage[img.ID] = &ImageStats{ID: img.ID, FileName: img.FileName}
	}

	for _, ann := range ds.Annotations {
		used[ann.CategoryID]++
		annotated[ann.ImageID] = true

		multi := len(ann.Segmentation.Polygons) > 1
		if multi {
			r.Multipolygons.Details = append(r.Multipolygons.Details, Multipolygon{
				AnnotationID: ann.ID,
				ImageID:      ann.ImageID,
				Polygons:     len(ann.Segmentation.Polygons),
			})
		}

		if !images[ann.ImageID] {
			r.OrphanedAnnotations.IDs = append(r.OrphanedAnnotations.IDs, ann.ID)
		} else {
			s := perImage[ann.ImageID]
			s.Annotations++
			if multi {
				s.Multipolygons++
			}
		}

		if reason := bboxProblem(ann.BBox); reason != "" {
			r.InvalidBBoxes = append(r.InvalidBBoxes, InvalidBBox{AnnotationID: ann.ID, Reason: reason})
		}
	}
	r.Multipolygons.Count = len(r.Multipolygons.Details)

	for _, c := range ds.Categories {
		if used[c.ID] == 0 {
			r.OrphanedCategories.Unused = append(r.OrphanedCategories.Unused, CategoryRef{ID: c.ID, Name: c.Name})
		}
		r.CategoryDistribution = append(r.CategoryDistribution, CategoryCount{ID: c.ID, Name: c.Name, Count: used[c.ID]})
	}
	slices.SortFunc(r.CategoryDistribution, func(a, b CategoryCount) int { return cmp.Compare(a.ID, b.ID) })

	for id := range used {
		if !defined[id] {
			r.OrphanedCategories.Undefined = append(r.OrphanedCategories.Undefined, id)
		}
	}
	slices.Sort(r.OrphanedCategories.Undefined)

	for _, img := range ds.Images {
		if !annotated[img.ID] {
			r.ImagesWithoutAnnotations = append(r.ImagesWithoutAnnotations, ImageRef{ID: img.ID, FileName: img.FileName})
		}
	}

	stats := make([]ImageStats, 0, len(perImage))
	for _, s := range perImage {
		stats = append(stats, *s)
	}
	slices.SortFunc(stats, func(a, b ImageStats) int { return cmp.Compare(a.ID, b.ID) })

	if verbose {
		r.PerImage = stats
	} else {
		r.Summary = summarise(stats)
	}
	return r
}

func bboxProblem(bbox []float64) string {
	if len(bbox) != 4 {
		return "missing or malformed"
	}
	x, y, w, h := bbox[0], bbox[1], bbox[2], bbox[3]
	if w <= 0 || h <= 0 {
		return fmt.Sprintf("invalid dimensions: w=%g, h=%g", w, h)
	}
	if x < 0 || y < 0 {
		return fmt.Sprintf("negative coordinates: x=%g, y=%g", x, y)
	}
	return ""
}

func summarise(stats []ImageStats) *PerImageSummary {
	s := &PerImageSummary{}
	if len(stats) == 0 {
		return s
	}

	anns := Range{Min: stats[0].Annotations, Max: stats[0].Annotations}
	mps := Range{Min: stats[0].Multipolygons, Max: stats[0].Multipolygons}
	var annSum, mpSum int
	for _, st := range stats {
		anns.Min = min(anns.Min, st.Annotations)
		anns.Max = max(anns.Max, st.Annotations)
		mps.Min = min(mps.Min, st.Multipolygons)
		mps.Max = max(mps.Max, st.Multipolygons)
		annSum += st.Annotations
		mpSum += st.Multipolygons
	}
	anns.Avg = float64(annSum) / float64(len(stats))
	s.Annotations = &anns
	if mpSum > 0 {
		mps.Avg = float64(mpSum) / float64(len(stats))
		s.Multipolygons = &mps
	}
	return s
}
