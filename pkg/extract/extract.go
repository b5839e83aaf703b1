// Package extract turns label masks into COCO annotations: one annotation
// per 4-connected component of each known category.
package extract

import (
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/menta2k/cocomask/pkg/categories"
	"github.com/menta2k/cocomask/pkg/contour"
	"github.com/menta2k/cocomask/pkg/geometry"
	"github.com/menta2k/cocomask/pkg/mask"
	"github.com/menta2k/cocomask/pkg/types"
)

const (
	DefaultMinArea           = 10
	DefaultSimplifyTolerance = 0.25
)

// Config controls extraction.
type Config struct {
	// MinArea is the smallest component, in pixels, that becomes an
	// annotation. Smaller components are treated as noise.
	MinArea int
	// SimplifyTolerance is the Douglas-Peucker tolerance in pixels. Zero
	// disables simplification.
	SimplifyTolerance float64
	Logger            *zap.Logger
}

// DefaultConfig returns the standard extraction settings.
func DefaultConfig() Config {
	return Config{
		MinArea:           DefaultMinArea,
		SimplifyTolerance: DefaultSimplifyTolerance,
	}
}

// Stats counts what happened to the components of one mask.
type Stats struct {
	Components  int
	Noise       int
	Dropped     int
	Failed      int
	Annotations int
}

// Result is the outcome of extracting one mask. Annotation ids run from 1
// and ImageID is left at zero; callers number them with Assign.
type Result struct {
	Width       int
	Height      int
	Annotations []types.Annotation
	Stats       Stats
}

// Extractor converts label masks into annotations. It only reads its
// category table and is safe for concurrent use.
type Extractor struct {
	cfg    Config
	cats   *categories.Table
	logger *zap.Logger
}

// New creates an extractor for the given category table.
func New(cats *categories.Table, cfg Config) *Extractor {
	if cfg.MinArea < 1 {
		cfg.MinArea = 1
	}
	if cfg.SimplifyTolerance < 0 {
		cfg.SimplifyTolerance = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, cats: cats, logger: logger}
}

// Extract finds every object in l. Values missing from the category table
// are skipped. name is used in log messages only. A component that cannot
// be traced is dropped without affecting the rest of the mask.
func (e *Extractor) Extract(l *mask.Label, name string) Result {
	res := Result{Width: l.Width, Height: l.Height}
	next := int64(1)

	for _, v := range l.Values() {
		catID := int64(v)
		if !e.cats.Has(catID) {
			e.logger.Debug("skipping value without category",
				zap.String("file", name), zap.Int64("category_id", catID))
			continue
		}

		for _, c := range mask.Components(l.Binary(v)) {
			res.Stats.Components++
			if c.Count < e.cfg.MinArea {
				res.Stats.Noise++
				continue
			}

			ann, ok, err := e.component(&c, catID)
			if err != nil {
				res.Stats.Failed++
				e.logger.Warn("failed to trace component",
					zap.String("file", name),
					zap.Int64("category_id", catID),
					zap.Int("pixels", c.Count),
					zap.Error(err))
				continue
			}
			if !ok {
				res.Stats.Dropped++
				e.logger.Debug("component has no valid rings",
					zap.String("file", name),
					zap.Int64("category_id", catID),
					zap.Stringer("bounds", c.Bounds))
				continue
			}
			ann.ID = next
			next++
			res.Annotations = append(res.Annotations, ann)
		}
	}
	res.Stats.Annotations = len(res.Annotations)
	return res
}

// component traces one connected component. ok is false when no usable
// ring survives.
func (e *Extractor) component(c *mask.Component, catID int64) (ann types.Annotation, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	m, origin := c.Mask(1)
	rings := Trace(m, origin)
	rings = geometry.SimplifyRings(rings, e.cfg.SimplifyTolerance)

	kept := rings[:0]
	for _, r := range rings {
		if len(r.Points) >= 3 {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return types.Annotation{}, false, nil
	}
	return Annotate(kept, catID), true, nil
}

// Trace finds the valid rings of a padded component mask whose top-left
// pixel sits at origin in image coordinates. Degenerate and
// self-intersecting rings are discarded. If every surviving ring winds as
// a hole the first one is made positive.
func Trace(m *mask.Binary, origin image.Point) []geometry.Ring {
	raw := contour.Find(m)
	contour.Translate(raw, float64(origin.X), float64(origin.Y))

	polys := make([][]geometry.Point, 0, len(raw))
	for _, pts := range raw {
		pts = geometry.Clean(pts)
		if !geometry.Valid(pts) {
			continue
		}
		polys = append(polys, pts)
	}
	return geometry.Resolve(polys, nil)
}

// Annotate builds an annotation from rings, deriving bbox and area.
func Annotate(rings []geometry.Ring, catID int64) types.Annotation {
	seg := make([][]float64, len(rings))
	for i, r := range rings {
		seg[i] = geometry.Flatten(r.Points)
	}
	bbox, _ := geometry.Bounds(rings)
	return types.Annotation{
		CategoryID:   catID,
		Segmentation: types.Segmentation{Polygons: seg},
		Area:         geometry.NetArea(rings),
		BBox:         bbox[:],
		IsCrowd:      0,
	}
}

// Assign numbers anns from firstID and attaches them to imageID. It
// returns the next free id.
func Assign(anns []types.Annotation, imageID, firstID int64) int64 {
	id := firstID
	for i := range anns {
		anns[i].ID = id
		anns[i].ImageID = imageID
		id++
	}
	return id
}
