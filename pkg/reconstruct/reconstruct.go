// Package reconstruct rebuilds label masks from COCO annotations.
//
// Annotations are painted in array order and later ones overwrite earlier
// ones where they overlap. Overlaps are counted so that callers can report
// the loss.
package reconstruct

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/menta2k/cocomask/pkg/mask"
	"github.com/menta2k/cocomask/pkg/raster"
	"github.com/menta2k/cocomask/pkg/types"
)

// Result is a reconstructed mask with counts of what went into it.
type Result struct {
	Mask *mask.Label
	// Painted is the number of annotations that contributed pixels.
	Painted int
	// Skipped is the number of annotations with no usable shape.
	Skipped int
	// OverlapPixels counts pixels overwritten by a different category.
	OverlapPixels int
}

// Reconstructor paints annotations into label masks. It holds no per-call
// state and is safe for concurrent use.
type Reconstructor struct {
	logger *zap.Logger
}

// New creates a reconstructor. A nil logger disables logging.
func New(logger *zap.Logger) *Reconstructor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconstructor{logger: logger}
}

// Reconstruct paints anns into a width x height mask. Annotations without
// a category, without a segmentation, or whose rings hold no positive
// area are skipped. The mask is 8-bit unless a category id exceeds 255.
func (r *Reconstructor) Reconstruct(anns []types.Annotation, width, height int) (*Result, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid mask size %dx%d", width, height)
	}

	res := &Result{Mask: mask.NewLabel(width, height)}
	rast := raster.NewRasterizer(width, height)

	for _, ann := range anns {
		if ann.CategoryID <= 0 || ann.CategoryID > math.MaxUint16 || ann.Segmentation.Empty() {
			res.Skipped++
			if ann.CategoryID > math.MaxUint16 {
				r.logger.Warn("category id does not fit a 16-bit mask",
					zap.Int64("annotation_id", ann.ID),
					zap.Int64("category_id", ann.CategoryID))
			}
			continue
		}

		b, err := r.shape(rast, &ann, width, height)
		if err != nil {
			res.Skipped++
			r.logger.Warn("skipping annotation",
				zap.Int64("annotation_id", ann.ID),
				zap.Int64("category_id", ann.CategoryID),
				zap.Error(err))
			continue
		}

		n, err := res.Mask.Paint(b, uint16(ann.CategoryID))
		if err != nil {
			return nil, err
		}
		res.OverlapPixels += n
		res.Painted++
		if ann.CategoryID > 255 {
			res.Mask.Depth = 16
		}
	}
	return res, nil
}

func (r *Reconstructor) shape(rast *raster.Rasterizer, ann *types.Annotation, width, height int) (*mask.Binary, error) {
	if rle := ann.Segmentation.RLE; rle != nil {
		if rle.Size != [2]int{height, width} {
			return nil, fmt.Errorf("RLE size %v does not match image %dx%d", rle.Size, width, height)
		}
		return mask.Decode(*rle)
	}
	b, err := rast.Rasterize(ann.Rings())
	if errors.Is(err, raster.ErrNoPositiveRing) {
		return nil, fmt.Errorf("annotation has no mask: %w", err)
	}
	return b, err
}

// Image reconstructs the mask of one image of ds.
func (r *Reconstructor) Image(ds *types.Dataset, img types.Image) (*Result, error) {
	return r.Reconstruct(ds.AnnotationsFor(img.ID), img.Width, img.Height)
}
