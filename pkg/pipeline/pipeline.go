// Package pipeline runs extraction and reconstruction over many images on
// a fixed pool of workers.
//
// Each image is an independent unit of work. Results are collected by
// input index and numbered afterwards on a single goroutine, so output is
// the same for any worker count.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/cocomask/internal/utils"
	"github.com/menta2k/cocomask/pkg/categories"
	"github.com/menta2k/cocomask/pkg/dataset"
	"github.com/menta2k/cocomask/pkg/extract"
	"github.com/menta2k/cocomask/pkg/processing"
	"github.com/menta2k/cocomask/pkg/reconstruct"
	"github.com/menta2k/cocomask/pkg/types"
)

// Options configures a Pipeline.
type Options struct {
	Extract extract.Config
	// Workers is the pool size. 0 uses one worker per CPU, 1 runs
	// sequentially.
	Workers int
	// PerFile writes one dataset per mask with ids restarting at 1.
	PerFile bool
	Logger  *zap.Logger
	// Now stamps info blocks and images. Defaults to time.Now.
	Now func() time.Time
}

// Failure records a unit of work that was skipped.
type Failure struct {
	Path string
	Err  error
}

// Summary reports the outcome of a batch run.
type Summary struct {
	Processed     int
	Skipped       int
	Annotations   int
	OverlapPixels int
	Outputs       []string
	Failures      []Failure
}

func (s *Summary) fail(path string, err error) {
	s.Skipped++
	s.Failures = append(s.Failures, Failure{Path: path, Err: err})
}

// Pipeline converts mask collections to datasets and back.
type Pipeline struct {
	opts          Options
	cats          *categories.Table
	extractor     *extract.Extractor
	reconstructor *reconstruct.Reconstructor
	processor     *processing.Processor
	logger        *zap.Logger
}

// New creates a pipeline for the given category table.
func New(cats *categories.Table, opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Extract.Logger == nil {
		opts.Extract.Logger = opts.Logger
	}
	return &Pipeline{
		opts:          opts,
		cats:          cats,
		extractor:     extract.New(cats, opts.Extract),
		reconstructor: reconstruct.New(opts.Logger),
		processor:     processing.NewProcessor(opts.Logger),
		logger:        opts.Logger,
	}
}

type converted struct {
	name string
	res  extract.Result
}

func (p *Pipeline) convertOne(path, base string) (*converted, error) {
	l, err := p.processor.LoadMask(path)
	if err != nil {
		return nil, err
	}
	name, err := filepath.Rel(base, path)
	if err != nil {
		name = filepath.Base(path)
	}
	return &converted{name: filepath.ToSlash(name), res: p.extractor.Extract(l, path)}, nil
}

// Convert extracts every mask file found at input, a file or a directory
// searched recursively. In consolidated mode output is the dataset path;
// in per-file mode each mask is written next to output as
// {output stem}_{mask path}.json, see perFileOutputs.
func (p *Pipeline) Convert(ctx context.Context, input, output string) (*Summary, error) {
	files, err := utils.ListFiles(input, processing.IsMaskFile)
	if err != nil {
		return nil, fmt.Errorf("failed to list masks: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no mask files found in %s", input)
	}

	base := input
	if !utils.DirExists(input) {
		base = filepath.Dir(input)
	}

	p.logger.Info("converting masks",
		zap.String("input", input),
		zap.Int("files", len(files)),
		zap.Int("workers", Workers(p.opts.Workers)),
		zap.Bool("per_file", p.opts.PerFile))

	var sum *Summary
	if p.opts.PerFile {
		sum, err = p.convertPerFile(ctx, files, base, output)
	} else {
		var ds *types.Dataset
		ds, sum, err = p.Dataset(ctx, files, base)
		if err == nil {
			if err = dataset.Save(ds, output); err == nil {
				sum.Outputs = []string{output}
			}
		}
	}
	if err != nil {
		return nil, err
	}

	p.logger.Info("conversion finished",
		zap.Int("processed", sum.Processed),
		zap.Int("skipped", sum.Skipped),
		zap.Int("annotations", sum.Annotations))
	return sum, nil
}

// Dataset extracts files into one consolidated dataset. Image ids follow
// the position of each file in files, starting at 1, and annotation ids
// run across all images in that order. File names are stored relative to
// base.
func (p *Pipeline) Dataset(ctx context.Context, files []string, base string) (*types.Dataset, *Summary, error) {
	results := make([]*converted, len(files))
	errs := forEach(ctx, len(files), p.opts.Workers, func(i int) error {
		c, err := p.convertOne(files[i], base)
		results[i] = c
		return err
	})
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	now := p.opts.Now()
	ds := dataset.New(p.cats.Categories(), now)
	sum := &Summary{}
	next := int64(1)
	for i, c := range results {
		if errs[i] != nil {
			sum.fail(files[i], errs[i])
			p.logger.Error("skipping mask", zap.String("file", files[i]), zap.Error(errs[i]))
			continue
		}
		imageID := int64(i + 1)
		next = extract.Assign(c.res.Annotations, imageID, next)
		ds.Images = append(ds.Images, dataset.NewImage(imageID, c.name, c.res.Width, c.res.Height, now))
		ds.Annotations = append(ds.Annotations, c.res.Annotations...)
		sum.Processed++
		sum.Annotations += len(c.res.Annotations)
	}
	return ds, sum, nil
}

// perFileOutputs names the dataset written for each mask in per-file
// mode: {output stem}_{mask path relative to base, without extension}.json
// with path separators turned into underscores. A mask whose name is
// already taken by an earlier one gets an error instead of a path.
func perFileOutputs(files []string, base, output string) ([]string, []error) {
	dir := filepath.Dir(output)
	stem := utils.Stem(output)
	outputs := make([]string, len(files))
	errs := make([]error, len(files))
	owner := make(map[string]string, len(files))

	for i, f := range files {
		rel, err := filepath.Rel(base, f)
		if err != nil {
			rel = filepath.Base(f)
		}
		rel = strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
		out := filepath.Join(dir, fmt.Sprintf("%s_%s.json", stem, strings.ReplaceAll(rel, "/", "_")))

		if prev, ok := owner[out]; ok {
			errs[i] = fmt.Errorf("output %s is already written for %s", out, prev)
			continue
		}
		owner[out] = f
		outputs[i] = out
	}
	return outputs, errs
}

func (p *Pipeline) convertPerFile(ctx context.Context, files []string, base, output string) (*Summary, error) {
	outputs, clashes := perFileOutputs(files, base, output)
	counts := make([]int, len(files))

	errs := forEach(ctx, len(files), p.opts.Workers, func(i int) error {
		if clashes[i] != nil {
			return clashes[i]
		}
		c, err := p.convertOne(files[i], base)
		if err != nil {
			return err
		}
		now := p.opts.Now()
		ds := dataset.New(p.cats.Categories(), now)
		extract.Assign(c.res.Annotations, 1, 1)
		ds.Images = append(ds.Images, dataset.NewImage(1, c.name, c.res.Width, c.res.Height, now))
		ds.Annotations = append(ds.Annotations, c.res.Annotations...)

		if err := dataset.Save(ds, outputs[i]); err != nil {
			return err
		}
		counts[i] = len(c.res.Annotations)
		return nil
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sum := &Summary{}
	for i, err := range errs {
		if err != nil {
			sum.fail(files[i], err)
			p.logger.Error("skipping mask", zap.String("file", files[i]), zap.Error(err))
			continue
		}
		sum.Processed++
		sum.Annotations += counts[i]
		sum.Outputs = append(sum.Outputs, outputs[i])
	}
	return sum, nil
}

// MaskName returns the output name of the mask reconstructed for an image
// called fileName. An empty format keeps tif, tiff and png names as they
// are and gives anything else a .tif extension; otherwise the extension
// is replaced by format.
func MaskName(fileName, format string) string {
	format = strings.TrimPrefix(strings.ToLower(format), ".")
	if format == "" {
		switch utils.GetFileExtension(fileName) {
		case "tif", "tiff", "png":
			return fileName
		}
		format = "tif"
	}
	return strings.TrimSuffix(fileName, filepath.Ext(fileName)) + "." + format
}

// Reconstruct writes one label mask per image of ds into outDir, named
// after the image's file_name by MaskName.
func (p *Pipeline) Reconstruct(ctx context.Context, ds *types.Dataset, outDir, format string) (*Summary, error) {
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "", "tif", "tiff", "png":
	default:
		return nil, fmt.Errorf("%w: %s", processing.ErrUnsupportedFormat, format)
	}
	if err := utils.EnsureDir(outDir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	groups := ds.GroupByImage()
	outputs := make([]string, len(ds.Images))
	results := make([]*reconstruct.Result, len(ds.Images))

	p.logger.Info("reconstructing masks",
		zap.Int("images", len(ds.Images)),
		zap.Int("annotations", len(ds.Annotations)),
		zap.Int("workers", Workers(p.opts.Workers)))

	errs := forEach(ctx, len(ds.Images), p.opts.Workers, func(i int) error {
		img := ds.Images[i]
		out, err := utils.WithinDir(outDir, MaskName(img.FileName, format))
		if err != nil {
			return err
		}
		res, err := p.reconstructor.Reconstruct(groups[img.ID], img.Width, img.Height)
		if err != nil {
			return err
		}
		if err := p.processor.SaveMask(res.Mask, out); err != nil {
			return err
		}
		outputs[i] = out
		results[i] = res
		return nil
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sum := &Summary{}
	for i, err := range errs {
		img := ds.Images[i]
		if err != nil {
			sum.fail(img.FileName, err)
			p.logger.Error("skipping image",
				zap.Int64("image_id", img.ID),
				zap.String("file", img.FileName),
				zap.Error(err))
			continue
		}
		res := results[i]
		if res.OverlapPixels > 0 {
			p.logger.Warn("overlapping annotations, later ones win",
				zap.Int64("image_id", img.ID),
				zap.String("file", img.FileName),
				zap.Int("overlap_pixels", res.OverlapPixels))
		}
		sum.Processed++
		sum.Annotations += res.Painted
		sum.OverlapPixels += res.OverlapPixels
		sum.Outputs = append(sum.Outputs, outputs[i])
	}

	p.logger.Info("reconstruction finished",
		zap.Int("processed", sum.Processed),
		zap.Int("skipped", sum.Skipped),
		zap.Int("overlap_pixels", sum.OverlapPixels))
	return sum, nil
}

// ReconstructFile loads the dataset at path and reconstructs its masks.
func (p *Pipeline) ReconstructFile(ctx context.Context, path, outDir, format string) (*Summary, error) {
	if !utils.FileExists(path) {
		return nil, fmt.Errorf("dataset not found: %s", path)
	}
	ds, err := dataset.Load(path)
	if err != nil {
		return nil, err
	}
	return p.Reconstruct(ctx, ds, outDir, format)
}
