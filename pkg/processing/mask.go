package processing

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/image/tiff"

	"github.com/menta2k/cocomask/pkg/mask"
)

// ErrUnsupportedFormat is returned for mask formats other than tif and png.
var ErrUnsupportedFormat = errors.New("unsupported mask format")

// MaskExtensions lists the file extensions accepted as label masks.
var MaskExtensions = []string{".tif", ".tiff", ".png"}

// IsMaskFile reports whether path has a label mask extension.
func IsMaskFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range MaskExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadMask reads a single-channel label mask from a TIFF or PNG file.
func (p *Processor) LoadMask(path string) (*mask.Label, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	l, err := p.DecodeMask(f, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mask %s: %w", path, err)
	}
	return l, nil
}

// DecodeMask decodes a label mask. name is only used to pick the decoder
// and for log messages; TIFF is tried first for .tif/.tiff names.
func (p *Processor) DecodeMask(r io.Reader, name string) (*mask.Label, error) {
	var img image.Image
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tif", ".tiff":
		img, err = tiff.Decode(r)
	default:
		img, _, err = image.Decode(r)
	}
	if err != nil {
		return nil, err
	}

	l, coerced := LabelFromImage(img)
	if coerced {
		p.logger.Warn("mask is not single-channel 8/16-bit, coercing samples",
			zap.String("file", name),
			zap.String("type", fmt.Sprintf("%T", img)),
			zap.Int("depth", l.Depth))
	}
	return l, nil
}

// LabelFromImage converts img to a label mask. Gray and Gray16 images map
// directly and paletted images use their palette indices. Anything else is
// coerced by taking the first channel, and coerced is true; its depth is
// widened to 16 only when a value exceeds 255.
func LabelFromImage(img image.Image) (l *mask.Label, coerced bool) {
	b := img.Bounds()
	l = mask.NewLabel(b.Dx(), b.Dy())
	depth := 8

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < l.Height; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			row := src.Pix[off : off+l.Width]
			for x, v := range row {
				l.Pix[y*l.Width+x] = uint16(v)
			}
		}
	case *image.Gray16:
		depth = 16
		for y := 0; y < l.Height; y++ {
			for x := 0; x < l.Width; x++ {
				l.Pix[y*l.Width+x] = src.Gray16At(b.Min.X+x, b.Min.Y+y).Y
			}
		}
	case *image.Paletted:
		for y := 0; y < l.Height; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			row := src.Pix[off : off+l.Width]
			for x, v := range row {
				l.Pix[y*l.Width+x] = uint16(v)
			}
		}
	default:
		coerced = true
		wide := false
		switch img.(type) {
		case *image.RGBA64, *image.NRGBA64:
			wide = true
		}
		for y := 0; y < l.Height; y++ {
			for x := 0; x < l.Width; x++ {
				c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
				v := c.R
				if !wide {
					v >>= 8
				}
				l.Pix[y*l.Width+x] = v
			}
		}
	}

	l.Depth = depth
	if coerced && l.Max() > 255 {
		l.Depth = 16
	}
	return l, coerced
}

// LabelImage converts l to an image.Gray, or image.Gray16 when l.Depth is
// 16 or a value exceeds 255.
func LabelImage(l *mask.Label) image.Image {
	r := image.Rect(0, 0, l.Width, l.Height)
	if l.Depth == 16 || l.Max() > 255 {
		img := image.NewGray16(r)
		for i, v := range l.Pix {
			img.Pix[2*i] = uint8(v >> 8)
			img.Pix[2*i+1] = uint8(v)
		}
		return img
	}
	img := image.NewGray(r)
	for i, v := range l.Pix {
		img.Pix[i] = uint8(v)
	}
	return img
}

// EncodeMask writes l in the given format: "tif"/"tiff" (deflate
// compressed) or "png".
func EncodeMask(w io.Writer, l *mask.Label, format string) error {
	img := LabelImage(l)
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "tif", "tiff", "":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case "png":
		return imaging.Encode(w, img, imaging.PNG)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// SaveMask writes l to path, creating parent directories. The format is
// taken from the extension of path.
func (p *Processor) SaveMask(l *mask.Label, path string) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch format {
	case "tif", "tiff", "png":
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeMask(f, l, format); err != nil {
		f.Close()
		return fmt.Errorf("failed to write mask %s: %w", path, err)
	}
	return f.Close()
}
