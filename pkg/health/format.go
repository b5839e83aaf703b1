package health

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

const listLimit = 10

const (
	ansiRed    = "\033[91m"
	ansiYellow = "\033[93m"
	ansiGreen  = "\033[92m"
	ansiReset  = "\033[0m"
)

// Formatter renders Results for a reader.
type Formatter interface {
	Format(w io.Writer, path string, r *Results) error
}

// NewFormatter returns the formatter called name: "human" (the default)
// or "token". Human output is coloured when out is a terminal.
func NewFormatter(name string, out *os.File) (Formatter, error) {
	switch name {
	case "", "human":
		return HumanFormatter{Color: IsTerminal(out)}, nil
	case "token":
		return TokenFormatter{}, nil
	}
	return nil, fmt.Errorf("unknown report format %q", name)
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// HumanFormatter prints a sectioned report with OK, WARNING and ERROR
// markers.
type HumanFormatter struct {
	Color bool
}

func (h HumanFormatter) status(color, label string) string {
	if !h.Color {
		return label
	}
	return color + label + ansiReset
}

func (h HumanFormatter) Format(w io.Writer, path string, r *Results) error {
	var b strings.Builder
	rule := strings.Repeat("=", 80)
	ok := h.status(ansiGreen, "OK")
	warning := h.status(ansiYellow, "WARNING")
	failure := h.status(ansiRed, "ERROR")

	more := func(n int) {
		if n > listLimit {
			fmt.Fprintf(&b, "    ... and %s more\n", humanize.Comma(int64(n-listLimit)))
		}
	}

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "COCO Health Check: %s\n", path)
	fmt.Fprintln(&b, rule)

	fmt.Fprintln(&b, "\nBasic Statistics:")
	fmt.Fprintf(&b, "  Images:      %s\n", humanize.Comma(int64(r.Basic.Images)))
	fmt.Fprintf(&b, "  Annotations: %s\n", humanize.Comma(int64(r.Basic.Annotations)))
	fmt.Fprintf(&b, "  Categories:  %s\n", humanize.Comma(int64(r.Basic.Categories)))

	fmt.Fprintln(&b, "\nOrphaned Category Check:")
	oc := r.OrphanedCategories
	if oc.Valid() {
		fmt.Fprintf(&b, "  %s - All categories are properly used\n", ok)
	}
	if n := len(oc.Unused); n > 0 {
		fmt.Fprintf(&b, "  %s - Found %d unused categories (defined but never used):\n", warning, n)
		for _, c := range oc.Unused[:min(n, listLimit)] {
			fmt.Fprintf(&b, "    - Category %d (%s)\n", c.ID, c.Name)
		}
		more(n)
	}
	if n := len(oc.Undefined); n > 0 {
		fmt.Fprintf(&b, "  %s - Found %d undefined categories (used but not defined):\n", failure, n)
		for _, id := range oc.Undefined[:min(n, listLimit)] {
			fmt.Fprintf(&b, "    - Category ID %d\n", id)
		}
		more(n)
	}

	fmt.Fprintln(&b, "\nAnnotations per Class:")
	if len(r.CategoryDistribution) == 0 {
		fmt.Fprintf(&b, "  %s - No categories found\n", warning)
	}
	for _, c := range r.CategoryDistribution {
		fmt.Fprintf(&b, "  Class %d (%s): %s annotations\n", c.ID, c.Name, humanize.Comma(int64(c.Count)))
	}

	fmt.Fprintln(&b, "\nMultipolygon Annotations:")
	fmt.Fprintf(&b, "  Total: %d\n", r.Multipolygons.Count)
	if r.Multipolygons.Count > 0 && r.Verbose {
		fmt.Fprintln(&b, "  Details (first 10):")
		for _, m := range r.Multipolygons.Details[:min(len(r.Multipolygons.Details), listLimit)] {
			fmt.Fprintf(&b, "    - Annotation %d (image %d): %d polygons\n", m.AnnotationID, m.ImageID, m.Polygons)
		}
	}

	fmt.Fprintln(&b, "\nOrphaned Annotation Check:")
	if n := len(r.OrphanedAnnotations.IDs); n == 0 {
		fmt.Fprintf(&b, "  %s - No orphaned annotations found\n", ok)
	} else {
		fmt.Fprintf(&b, "  %s - Found %d orphaned annotations:\n", failure, n)
		for _, id := range r.OrphanedAnnotations.IDs[:min(n, listLimit)] {
			fmt.Fprintf(&b, "    - Annotation %d\n", id)
		}
		more(n)
	}

	fmt.Fprintln(&b, "\nImages Without Annotations:")
	fmt.Fprintf(&b, "  Count: %d\n", len(r.ImagesWithoutAnnotations))
	if len(r.ImagesWithoutAnnotations) > 0 && r.Verbose {
		fmt.Fprintln(&b, "  Examples (first 10):")
		for _, img := range r.ImagesWithoutAnnotations[:min(len(r.ImagesWithoutAnnotations), listLimit)] {
			fmt.Fprintf(&b, "    - Image %d: %s\n", img.ID, img.FileName)
		}
	}

	fmt.Fprintln(&b, "\nBounding Box Validation:")
	if n := len(r.InvalidBBoxes); n == 0 {
		fmt.Fprintf(&b, "  %s - All bounding boxes are valid\n", ok)
	} else {
		fmt.Fprintf(&b, "  %s - Found %d invalid bounding boxes:\n", failure, n)
		for _, bb := range r.InvalidBBoxes[:min(n, listLimit)] {
			fmt.Fprintf(&b, "    - Annotation %d: %s\n", bb.AnnotationID, bb.Reason)
		}
		more(n)
	}

	fmt.Fprintln(&b, "\nPer-Image Statistics:")
	if r.Verbose {
		fmt.Fprintf(&b, "  %-12s %-40s %-15s %s\n", "Image ID", "Filename", "Annotations", "Multipolygons")
		fmt.Fprintf(&b, "  %s %s %s %s\n", strings.Repeat("-", 12), strings.Repeat("-", 40), strings.Repeat("-", 15), strings.Repeat("-", 12))
		for _, s := range r.PerImage[:min(len(r.PerImage), 2*listLimit)] {
			name := s.FileName
			if len(name) > 40 {
				name = name[:38] + ".."
			}
			fmt.Fprintf(&b, "  %-12d %-40s %-15d %d\n", s.ID, name, s.Annotations, s.Multipolygons)
		}
		if n := len(r.PerImage); n > 2*listLimit {
			fmt.Fprintf(&b, "  ... and %s more images\n", humanize.Comma(int64(n-2*listLimit)))
		}
	} else if r.Summary != nil {
		if a := r.Summary.Annotations; a != nil {
			fmt.Fprintf(&b, "  Annotations per image - min: %d, max: %d, avg: %.1f\n", a.Min, a.Max, a.Avg)
		}
		if m := r.Summary.Multipolygons; m != nil {
			fmt.Fprintf(&b, "  Multipolygons per image - min: %d, max: %d, avg: %.1f\n", m.Min, m.Max, m.Avg)
		}
	}

	fmt.Fprintln(&b, "\n"+rule)
	fmt.Fprintln(&b, "Health check complete")
	fmt.Fprintln(&b, rule)

	_, err := io.WriteString(w, b.String())
	return err
}

// TokenFormatter prints compact KEY: value lines meant for programs and
// language-model agents.
type TokenFormatter struct{}

func (TokenFormatter) Format(w io.Writer, path string, r *Results) error {
	var b strings.Builder

	fmt.Fprintf(&b, "COCO_HEALTH_CHECK: %s\n\n", path)
	fmt.Fprintf(&b, "STATS: images=%d annotations=%d categories=%d\n",
		r.Basic.Images, r.Basic.Annotations, r.Basic.Categories)

	oc := r.OrphanedCategories
	switch {
	case oc.Valid():
		fmt.Fprintln(&b, "ORPHANED_CATEGORIES: OK")
	case len(oc.Undefined) > 0:
		fmt.Fprintf(&b, "ORPHANED_CATEGORIES: ERROR unused=%d undefined=%d\n", len(oc.Unused), len(oc.Undefined))
	default:
		fmt.Fprintf(&b, "ORPHANED_CATEGORIES: WARNING unused=%d\n", len(oc.Unused))
	}
	if len(oc.Unused) > 0 {
		parts := make([]string, 0, 5)
		for _, c := range oc.Unused[:min(len(oc.Unused), 5)] {
			parts = append(parts, fmt.Sprintf("%d(%s)", c.ID, c.Name))
		}
		fmt.Fprintf(&b, "  unused: %s\n", strings.Join(parts, ", "))
	}
	if len(oc.Undefined) > 0 {
		fmt.Fprintf(&b, "  undefined: %s\n", joinIDs(oc.Undefined, 5))
	}

	if len(r.CategoryDistribution) > 0 {
		parts := make([]string, len(r.CategoryDistribution))
		for i, c := range r.CategoryDistribution {
			parts[i] = fmt.Sprintf("%d(%s)=%d", c.ID, c.Name, c.Count)
		}
		fmt.Fprintf(&b, "CLASS_DISTRIBUTION: %s\n", strings.Join(parts, " | "))
	}

	fmt.Fprintf(&b, "MULTIPOLYGONS: count=%d\n", r.Multipolygons.Count)

	if ids := r.OrphanedAnnotations.IDs; len(ids) == 0 {
		fmt.Fprintln(&b, "ORPHANED_ANNOTATIONS: OK")
	} else {
		fmt.Fprintf(&b, "ORPHANED_ANNOTATIONS: ERROR count=%d\n", len(ids))
		fmt.Fprintf(&b, "  ids: %s\n", joinIDs(ids, listLimit))
	}

	fmt.Fprintf(&b, "IMAGES_WITHOUT_ANNOTATIONS: count=%d\n", len(r.ImagesWithoutAnnotations))

	if n := len(r.InvalidBBoxes); n == 0 {
		fmt.Fprintln(&b, "BBOXES: OK")
	} else {
		fmt.Fprintf(&b, "BBOXES: ERROR count=%d\n", n)
		parts := make([]string, 0, 5)
		for _, bb := range r.InvalidBBoxes[:min(n, 5)] {
			parts = append(parts, fmt.Sprintf("%d(%s)", bb.AnnotationID, bb.Reason))
		}
		fmt.Fprintf(&b, "  invalid: %s\n", strings.Join(parts, ", "))
	}

	if s := r.Summary; s != nil {
		if a := s.Annotations; a != nil {
			fmt.Fprintf(&b, "PER_IMAGE_ANNOTATIONS: min=%d max=%d avg=%.1f\n", a.Min, a.Max, a.Avg)
		}
		if m := s.Multipolygons; m != nil {
			fmt.Fprintf(&b, "PER_IMAGE_MULTIPOLYGONS: min=%d max=%d avg=%.1f\n", m.Min, m.Max, m.Avg)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func joinIDs(ids []int64, limit int) string {
	parts := make([]string, 0, limit)
	for _, id := range ids[:min(len(ids), limit)] {
		parts = append(parts, fmt.Sprint(id))
	}
	return strings.Join(parts, ", ")
}
