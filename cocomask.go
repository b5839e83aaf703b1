// Package cocomask converts raster label masks into COCO polygon
// annotations and renders COCO annotations back into label masks.
//
// A label mask is a single-channel image where each pixel value is a
// category id and 0 is background. Every connected region of a category
// becomes one annotation whose segmentation is a set of outer rings and
// holes.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		"github.com/menta2k/cocomask"
//		"github.com/menta2k/cocomask/pkg/categories"
//		"github.com/menta2k/cocomask/pkg/dataset"
//	)
//
//	func main() {
//		cats, err := categories.Load("categories.json")
//		if err != nil {
//			log.Fatal(err)
//		}
//		conv := cocomask.New(cats)
//
//		// Extract the objects of one mask
//		ds, stats, err := conv.ConvertFile(context.Background(), "masks/scene_001.tif")
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("%d annotations, %d noise components\n", stats.Annotations, stats.Noise)
//
//		if err := dataset.Save(ds, "scene_001.json"); err != nil {
//			log.Fatal(err)
//		}
//
//		// Paint them back
//		res, err := conv.ReconstructMask(ds, ds.Images[0].ID)
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("overlap: %d pixels\n", res.OverlapPixels)
//	}
//
// The package is a thin front over the components in pkg/:
//
//  1. Geometry (pkg/geometry, pkg/contour, pkg/raster): ring tracing,
//     orientation, simplification and scanline filling
//  2. Extraction (pkg/extract) and reconstruction (pkg/reconstruct)
//  3. Datasets (pkg/dataset, pkg/health, pkg/visualise): I/O, merge,
//     split, integrity checks and overlays
//  4. Batch processing (pkg/pipeline): a worker pool over directories of
//     masks with deterministic numbering
//
// The cocomask command wraps all of this for batch use and can also serve
// it over HTTP.
package cocomask

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/menta2k/cocomask/internal/utils"
	"github.com/menta2k/cocomask/pkg/cache"
	"github.com/menta2k/cocomask/pkg/categories"
	"github.com/menta2k/cocomask/pkg/dataset"
	"github.com/menta2k/cocomask/pkg/extract"
	"github.com/menta2k/cocomask/pkg/mask"
	"github.com/menta2k/cocomask/pkg/processing"
	"github.com/menta2k/cocomask/pkg/reconstruct"
	"github.com/menta2k/cocomask/pkg/types"
)

// Version of the cocomask library
const Version = "1.0.0"

// Converter converts single masks and datasets in both directions.
type Converter struct {
	cats          *categories.Table
	cfg           extract.Config
	cache         cache.Cache
	extractor     *extract.Extractor
	reconstructor *reconstruct.Reconstructor
	processor     *processing.Processor
	now           func() time.Time
}

// New creates a Converter with the default extraction settings.
func New(cats *categories.Table) *Converter {
	return NewWithConfig(cats, extract.DefaultConfig())
}

// NewWithConfig creates a Converter with custom extraction settings.
func NewWithConfig(cats *categories.Table, cfg extract.Config) *Converter {
	return &Converter{
		cats:          cats,
		cfg:           cfg,
		cache:         cache.None{},
		extractor:     extract.New(cats, cfg),
		reconstructor: reconstruct.New(cfg.Logger),
		processor:     processing.NewProcessor(cfg.Logger),
		now:           time.Now,
	}
}

// SetCache makes ConvertFile reuse results for files it has already seen.
func (c *Converter) SetCache(cc cache.Cache) {
	if cc == nil {
		cc = cache.None{}
	}
	c.cache = cc
}

// ConvertMask extracts l into a dataset holding one image with id 1.
func (c *Converter) ConvertMask(l *mask.Label, fileName string) (*types.Dataset, extract.Stats) {
	res := c.extractor.Extract(l, fileName)
	now := c.now()

	ds := dataset.New(c.cats.Categories(), now)
	extract.Assign(res.Annotations, 1, 1)
	ds.Images = append(ds.Images, dataset.NewImage(1, fileName, res.Width, res.Height, now))
	ds.Annotations = append(ds.Annotations, res.Annotations...)
	return ds, res.Stats
}

type convertEntry struct {
	Stats extract.Stats  `json:"stats"`
	Data  *types.Dataset `json:"data"`
}

// ConvertFile loads a TIFF or PNG mask and extracts it. The image is
// recorded under the base name of path. Results are cached by the MD5 of
// the file and the extraction settings. Cache errors are ignored.
func (c *Converter) ConvertFile(ctx context.Context, path string) (*types.Dataset, extract.Stats, error) {
	name := filepath.Base(path)
	md5, err := utils.FileMD5(path)
	if err != nil {
		return nil, extract.Stats{}, fmt.Errorf("failed to read mask: %w", err)
	}
	key := fmt.Sprintf("convert:%s:%s:%d:%g", md5, name, c.cfg.MinArea, c.cfg.SimplifyTolerance)

	var entry convertEntry
	if hit, _ := cache.GetJSON(ctx, c.cache, key, &entry); hit && entry.Data != nil {
		return entry.Data, entry.Stats, nil
	}

	l, err := c.processor.LoadMask(path)
	if err != nil {
		return nil, extract.Stats{}, fmt.Errorf("failed to load mask: %w", err)
	}
	ds, stats := c.ConvertMask(l, name)
	_ = cache.SetJSON(ctx, c.cache, key, convertEntry{Stats: stats, Data: ds})
	return ds, stats, nil
}

// ReconstructMask paints the annotations of one image of ds into a label
// mask.
func (c *Converter) ReconstructMask(ds *types.Dataset, imageID int64) (*reconstruct.Result, error) {
	img, ok := ds.Image(imageID)
	if !ok {
		return nil, fmt.Errorf("image %d not found", imageID)
	}
	return c.reconstructor.Image(ds, img)
}

// ReconstructFile paints one image of ds and writes it to path. The
// format follows the extension of path.
func (c *Converter) ReconstructFile(ds *types.Dataset, imageID int64, path string) (*reconstruct.Result, error) {
	res, err := c.ReconstructMask(ds, imageID)
	if err != nil {
		return nil, err
	}
	if err := c.processor.SaveMask(res.Mask, path); err != nil {
		return nil, fmt.Errorf("failed to save mask: %w", err)
	}
	return res, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
