// Package visualise draws annotations over the photos they describe.
package visualise

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"slices"

	"github.com/disintegration/imaging"
	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dimg"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/cocomask/pkg/geometry"
	"github.com/menta2k/cocomask/pkg/mask"
	"github.com/menta2k/cocomask/pkg/processing"
	"github.com/menta2k/cocomask/pkg/raster"
	"github.com/menta2k/cocomask/pkg/types"
)

var (
	ErrImageNotFound = errors.New("image not found in dataset")
	ErrNoAnnotations = errors.New("no annotations found")
)

// Palette holds the category colours, assigned in category order.
var Palette = []color.NRGBA{
	{0x1f, 0x77, 0xb4, 0xff}, {0xae, 0xc7, 0xe8, 0xff},
	{0xff, 0x7f, 0x0e, 0xff}, {0xff, 0xbb, 0x78, 0xff},
	{0x2c, 0xa0, 0x2c, 0xff}, {0x98, 0xdf, 0x8a, 0xff},
	{0xd6, 0x27, 0x28, 0xff}, {0xff, 0x98, 0x96, 0xff},
	{0x94, 0x67, 0xbd, 0xff}, {0xc5, 0xb0, 0xd5, 0xff},
	{0x8c, 0x56, 0x4b, 0xff}, {0xc4, 0x9c, 0x94, 0xff},
	{0xe3, 0x77, 0xc2, 0xff}, {0xf7, 0xb6, 0xd2, 0xff},
	{0x7f, 0x7f, 0x7f, 0xff}, {0xc7, 0xc7, 0xc7, 0xff},
	{0xbc, 0xbd, 0x22, 0xff}, {0xdb, 0xdb, 0x8d, 0xff},
	{0x17, 0xbe, 0xcf, 0xff}, {0x9e, 0xda, 0xe5, 0xff},
}

var unknownColor = color.NRGBA{0xff, 0x00, 0x00, 0xff}

// Options selects what Overlay draws.
type Options struct {
	// AnnotationIDs restricts drawing to these annotations. Empty means
	// every annotation of the image.
	AnnotationIDs  []int64
	ShowMasks      bool
	ShowBBoxes     bool
	ShowClassNames bool
	// MaskAlpha is the opacity of mask fills, 0..1.
	MaskAlpha   float64
	StrokeWidth float64
}

func DefaultOptions() Options {
	return Options{
		ShowMasks:      true,
		ShowBBoxes:     true,
		ShowClassNames: true,
		MaskAlpha:      0.4,
		StrokeWidth:    2,
	}
}

// Renderer draws the annotations of one dataset.
type Renderer struct {
	ds     *types.Dataset
	names  map[int64]string
	colors map[int64]color.NRGBA
	logger *zap.Logger
}

func NewRenderer(ds *types.Dataset, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	colors := make(map[int64]color.NRGBA, len(ds.Categories))
	for i, c := range ds.Categories {
		colors[c.ID] = Palette[i%len(Palette)]
	}
	return &Renderer{ds: ds, names: ds.CategoryNames(), colors: colors, logger: logger}
}

// Color returns the colour used for a category.
func (r *Renderer) Color(categoryID int64) color.NRGBA {
	if c, ok := r.colors[categoryID]; ok {
		return c
	}
	return unknownColor
}

// FindImage returns the image whose file name matches the base name of
// path.
func (r *Renderer) FindImage(path string) (types.Image, error) {
	base := filepath.Base(path)
	for _, img := range r.ds.Images {
		if filepath.Base(img.FileName) == base {
			return img, nil
		}
	}
	return types.Image{}, fmt.Errorf("%w: %s", ErrImageNotFound, base)
}

func (r *Renderer) annotations(imageID int64, ids []int64) []types.Annotation {
	if len(ids) == 0 {
		return r.ds.AnnotationsFor(imageID)
	}
	var out []types.Annotation
	for _, a := range r.ds.Annotations {
		if slices.Contains(ids, a.ID) {
			out = append(out, a)
		}
	}
	return out
}

// Overlay draws the annotations of imageID over img and returns a new
// image. Masks are filled with the even-odd rule so holes stay clear; an
// annotation made only of holes is drawn as a dashed outline.
func (r *Renderer) Overlay(img image.Image, imageID int64, opts Options) (*image.NRGBA, error) {
	if _, ok := r.ds.Image(imageID); !ok {
		return nil, fmt.Errorf("%w: id %d", ErrImageNotFound, imageID)
	}
	anns := r.annotations(imageID, opts.AnnotationIDs)

	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Src)

	if opts.ShowMasks {
		gc := draw2dimg.NewGraphicContext(canvas)
		for i := range anns {
			r.drawMask(gc, canvas, &anns[i], opts)
		}
	}

	out := imaging.Clone(canvas)
	for _, ann := range anns {
		if len(ann.BBox) != 4 {
			continue
		}
		c := r.Color(ann.CategoryID)
		x, y := int(ann.BBox[0]), int(ann.BBox[1])
		rect := image.Rect(x, y, x+int(ann.BBox[2]+0.5), y+int(ann.BBox[3]+0.5))
		if opts.ShowBBoxes {
			processing.DrawRect(out, rect, c, max(1, int(opts.StrokeWidth)))
		}
		if opts.ShowClassNames {
			name, ok := r.names[ann.CategoryID]
			if !ok {
				name = fmt.Sprintf("unknown_%d", ann.CategoryID)
			}
			drawLabel(out, rect.Min, name, c)
		}
	}

	r.logger.Debug("rendered overlay",
		zap.Int64("image_id", imageID),
		zap.Int("annotations", len(anns)))
	return out, nil
}

func withAlpha(c color.NRGBA, alpha float64) color.NRGBA {
	c.A = uint8(alpha*255 + 0.5)
	return c
}

func (r *Renderer) drawMask(gc *draw2dimg.GraphicContext, canvas *image.RGBA, ann *types.Annotation, opts Options) {
	c := r.Color(ann.CategoryID)

	if rle := ann.Segmentation.RLE; rle != nil {
		m, err := mask.Decode(*rle)
		if err != nil {
			r.logger.Warn("skipping undecodable mask", zap.Int64("annotation_id", ann.ID), zap.Error(err))
			return
		}
		blend(canvas, m, withAlpha(c, opts.MaskAlpha))
		return
	}

	rings := ann.Rings()
	var positive bool
	for _, ring := range rings {
		if ring.Orientation == geometry.Positive {
			positive = true
		}
	}

	gc.Save()
	defer gc.Restore()
	gc.SetLineWidth(opts.StrokeWidth)
	gc.SetStrokeColor(c)

	if !positive {
		gc.SetLineDash([]float64{6, 4}, 0)
		tracePath(gc, rings)
		gc.Stroke()
		return
	}

	gc.SetFillRule(draw2d.FillRuleEvenOdd)
	gc.SetFillColor(withAlpha(c, opts.MaskAlpha))
	tracePath(gc, rings)
	gc.FillStroke()
}

// tracePath adds every ring to the current path. Vertices sit on pixel
// centres, which draw2d places at +0.5.
func tracePath(gc *draw2dimg.GraphicContext, rings []geometry.Ring) {
	gc.BeginPath()
	for _, ring := range rings {
		if len(ring.Points) < 3 {
			continue
		}
		gc.MoveTo(ring.Points[0].X+0.5, ring.Points[0].Y+0.5)
		for _, p := range ring.Points[1:] {
			gc.LineTo(p.X+0.5, p.Y+0.5)
		}
		gc.Close()
	}
}

func blend(dst *image.RGBA, m *mask.Binary, c color.NRGBA) {
	a := uint32(c.A)
	src := [3]uint32{uint32(c.R), uint32(c.G), uint32(c.B)}
	w, h := min(m.Width, dst.Rect.Dx()), min(m.Height, dst.Rect.Dy())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !m.At(x, y) {
				continue
			}
			i := dst.PixOffset(dst.Rect.Min.X+x, dst.Rect.Min.Y+y)
			for k := 0; k < 3; k++ {
				dst.Pix[i+k] = uint8((src[k]*a + uint32(dst.Pix[i+k])*(255-a)) / 255)
			}
			dst.Pix[i+3] = uint8(a + uint32(dst.Pix[i+3])*(255-a)/255)
		}
	}
}

// drawLabel writes name on a filled box just above at, or just below it
// when there is no room.
func drawLabel(dst *image.NRGBA, at image.Point, name string, c color.NRGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.White, Face: face}
	width := d.MeasureString(name).Ceil()
	height := face.Height

	top := at.Y - height - 5
	if top < 0 {
		top = at.Y + 1
	}
	box := image.Rect(at.X, top, at.X+width+4, top+height+2)
	draw.Draw(dst, box, image.NewUniform(withAlpha(c, 0.7)), image.Point{}, draw.Over)

	d.Dot = fixed.P(at.X+2, top+face.Ascent+1)
	d.DrawString(name)
}

// Masked keeps only the pixels covered by the listed annotations inside
// their boxes; the rest of each box is set to black. Pixels outside every
// box are left as they are.
func (r *Renderer) Masked(img image.Image, annotationIDs []int64) (*image.NRGBA, error) {
	anns := r.annotations(-1, annotationIDs)
	if len(annotationIDs) == 0 || len(anns) == 0 {
		return nil, ErrNoAnnotations
	}

	out := imaging.Clone(img)
	w, h := out.Rect.Dx(), out.Rect.Dy()
	black := color.NRGBA{0, 0, 0, 0xff}

	for _, ann := range anns {
		if len(ann.BBox) != 4 {
			continue
		}
		var m *mask.Binary
		var err error
		if rle := ann.Segmentation.RLE; rle != nil {
			m, err = mask.Decode(*rle)
		} else {
			m, err = raster.Rasterize(ann.Rings(), w, h)
		}
		if err != nil {
			r.logger.Warn("skipping annotation", zap.Int64("annotation_id", ann.ID), zap.Error(err))
			continue
		}

		x0, y0 := max(0, int(ann.BBox[0])), max(0, int(ann.BBox[1]))
		x1 := min(w, int(ann.BBox[0])+int(ann.BBox[2]))
		y1 := min(h, int(ann.BBox[1])+int(ann.BBox[3]))
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				if !m.At(x, y) {
					out.SetNRGBA(x, y, black)
				}
			}
		}
	}
	return out, nil
}
