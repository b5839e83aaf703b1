package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/menta2k/cocomask"
	"github.com/menta2k/cocomask/internal/config"
	"github.com/menta2k/cocomask/internal/server"
	"github.com/menta2k/cocomask/internal/utils"
	"github.com/menta2k/cocomask/pkg/cache"
	"github.com/menta2k/cocomask/pkg/categories"
	"github.com/menta2k/cocomask/pkg/dataset"
	"github.com/menta2k/cocomask/pkg/extract"
	"github.com/menta2k/cocomask/pkg/health"
	"github.com/menta2k/cocomask/pkg/pipeline"
	"github.com/menta2k/cocomask/pkg/processing"
	"github.com/menta2k/cocomask/pkg/visualise"
)

const usage = `usage: cocomask [-config file] <command> [flags]

commands:
  convert      label masks -> COCO dataset
  reconstruct  COCO dataset -> label masks
  merge        merge two datasets
  split        split a dataset into one file per image
  health       check dataset integrity
  visualise    draw annotations over a photo
  serve        run the HTTP service
  version      print the version
`

type command func(ctx context.Context, cfg *config.Config, args []string) error

var commands = map[string]command{
	"convert":     runConvert,
	"reconstruct": runReconstruct,
	"merge":       runMerge,
	"split":       runSplit,
	"health":      runHealth,
	"visualise":   runVisualise,
	"serve":       runServe,
	"version":     runVersion,
}

// errUnhealthy makes the process exit with status 1 without printing an
// extra message.
var errUnhealthy = errors.New("dataset has errors")

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	global := flag.NewFlagSet("cocomask", flag.ExitOnError)
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	configPath := global.String("config", "", "config file (default "+config.GetConfigPath()+")")
	global.Parse(args)

	if global.NArg() == 0 {
		global.Usage()
		return 2
	}
	name := global.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		global.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("config: %v", err)
		return 1
	}
	if err := utils.InitLogger(cfg.Log.Mode); err != nil {
		log.Printf("logger: %v", err)
		return 1
	}
	defer utils.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd(ctx, cfg, global.Args()[1:]); err != nil {
		if !errors.Is(err, errUnhealthy) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		}
		return 1
	}
	return 0
}

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet("cocomask "+name, flag.ExitOnError)
}

func required(fs *flag.FlagSet, names ...string) error {
	for _, n := range names {
		if fs.Lookup(n).Value.String() == "" {
			fs.Usage()
			return fmt.Errorf("-%s is required", n)
		}
	}
	return nil
}

func loadCategories(path string) (*categories.Table, error) {
	if !utils.FileExists(path) {
		return nil, fmt.Errorf("categories file not found: %s", path)
	}
	return categories.Load(path)
}

func printSummary(sum *pipeline.Summary) {
	fmt.Printf("processed: %s, skipped: %s, annotations: %s\n",
		utils.FormatCount(sum.Processed),
		utils.FormatCount(sum.Skipped),
		utils.FormatCount(sum.Annotations))
	for _, f := range sum.Failures {
		fmt.Printf("  skipped %s: %v\n", f.Path, f.Err)
	}
	for _, out := range sum.Outputs {
		fmt.Printf("wrote %s\n", out)
	}
}

func runConvert(ctx context.Context, cfg *config.Config, args []string) error {
	fs := newFlags("convert")
	in := fs.String("i", "", "input mask file or directory (tif/tiff/png)")
	out := fs.String("o", "", "output dataset path")
	catsPath := fs.String("c", "", "categories JSON file")
	perFile := fs.Bool("per-file", false, "write one dataset per mask")
	workers := fs.Int("workers", cfg.Pipeline.Workers, "worker count (0 = one per CPU)")
	minArea := fs.Int("min-area", cfg.Extract.MinArea, "smallest component kept, in pixels")
	tolerance := fs.Float64("tolerance", cfg.Extract.SimplifyTolerance, "polygon simplification tolerance in pixels (0 disables)")
	fs.Parse(args)
	if err := required(fs, "i", "o", "c"); err != nil {
		return err
	}

	cats, err := loadCategories(*catsPath)
	if err != nil {
		return err
	}

	p := pipeline.New(cats, pipeline.Options{
		Extract: extract.Config{MinArea: *minArea, SimplifyTolerance: *tolerance},
		Workers: *workers,
		PerFile: *perFile,
		Logger:  utils.Logger,
	})
	sum, err := p.Convert(ctx, *in, *out)
	if err != nil {
		return err
	}
	printSummary(sum)
	return nil
}

func runReconstruct(ctx context.Context, cfg *config.Config, args []string) error {
	fs := newFlags("reconstruct")
	in := fs.String("i", "", "input dataset JSON")
	out := fs.String("o", "", "output directory for masks")
	workers := fs.Int("workers", cfg.Pipeline.Workers, "worker count (0 = one per CPU)")
	format := fs.String("format", cfg.Output.MaskFormat, "mask format: tif|png (empty keeps the dataset names)")
	fs.Parse(args)
	if err := required(fs, "i", "o"); err != nil {
		return err
	}

	p := pipeline.New(nil, pipeline.Options{Workers: *workers, Logger: utils.Logger})
	sum, err := p.ReconstructFile(ctx, *in, *out, *format)
	if err != nil {
		return err
	}
	printSummary(sum)
	if sum.OverlapPixels > 0 {
		fmt.Printf("overlapping pixels: %s\n", utils.FormatCount(sum.OverlapPixels))
	}
	return nil
}

func runMerge(_ context.Context, _ *config.Config, args []string) error {
	fs := newFlags("merge")
	file1 := fs.String("file1", "", "first dataset")
	file2 := fs.String("file2", "", "second dataset")
	out := fs.String("o", "", "merged dataset path")
	fs.Parse(args)
	if err := required(fs, "file1", "file2", "o"); err != nil {
		return err
	}

	ds, err := dataset.MergeFiles(*file1, *file2, *out)
	if err != nil {
		return err
	}
	fmt.Printf("merged: %s images, %s annotations -> %s\n",
		utils.FormatCount(len(ds.Images)),
		utils.FormatCount(len(ds.Annotations)),
		*out)
	return nil
}

func runSplit(_ context.Context, _ *config.Config, args []string) error {
	fs := newFlags("split")
	in := fs.String("i", "", "input dataset")
	out := fs.String("o", "", "output directory")
	pattern := fs.String("pattern", "", "output name pattern using {image_name}, {image_id} and {category_names}")
	byCategories := fs.Bool("by-categories", false, "include category names in output names")
	fs.Parse(args)
	if err := required(fs, "i", "o"); err != nil {
		return err
	}

	split := dataset.SplitFile
	if *byCategories {
		split = dataset.SplitByCategories
	}
	paths, err := split(*in, *out, *pattern)
	if err != nil {
		return err
	}
	fmt.Printf("processed: %s, skipped: 0\n", utils.FormatCount(len(paths)))
	for _, p := range paths {
		fmt.Printf("wrote %s\n", p)
	}
	return nil
}

func runHealth(_ context.Context, _ *config.Config, args []string) error {
	fs := newFlags("health")
	in := fs.String("i", "", "dataset to check")
	verbose := fs.Bool("verbose", false, "report every image instead of a summary")
	format := fs.String("format", "human", "report format: human|token")
	fs.Parse(args)
	if err := required(fs, "i"); err != nil {
		return err
	}

	f, err := health.NewFormatter(*format, os.Stdout)
	if err != nil {
		return err
	}
	ds, err := dataset.Load(*in)
	if err != nil {
		return err
	}

	res := health.Check(ds, *verbose)
	if err := f.Format(os.Stdout, *in, res); err != nil {
		return err
	}
	if res.HasErrors() {
		return errUnhealthy
	}
	return nil
}

func parseIDs(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid annotation id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func runVisualise(_ context.Context, cfg *config.Config, args []string) error {
	fs := newFlags("visualise")
	dsPath := fs.String("c", "", "dataset JSON")
	in := fs.String("i", "", "photo to draw on")
	out := fs.String("o", "", "output image (default {photo}_overlay.{ext} next to the photo)")
	noMasks := fs.Bool("no-masks", false, "do not fill masks")
	noBoxes := fs.Bool("no-bboxes", false, "do not draw bounding boxes")
	noNames := fs.Bool("no-class-names", false, "do not draw category names")
	maskedView := fs.Bool("masked-view", false, "black out everything in the boxes except the masks")
	idList := fs.String("annotation-ids", "", "comma separated annotation ids to draw")
	fs.Parse(args)
	if err := required(fs, "c", "i"); err != nil {
		return err
	}

	ids, err := parseIDs(*idList)
	if err != nil {
		return err
	}
	if *maskedView && len(ids) == 0 {
		return errors.New("-masked-view needs -annotation-ids")
	}

	ds, err := dataset.Load(*dsPath)
	if err != nil {
		return err
	}
	processor := processing.NewProcessor(utils.Logger)
	photo, err := processor.LoadImage(*in)
	if err != nil {
		return err
	}

	r := visualise.NewRenderer(ds, utils.Logger)
	var result *image.NRGBA
	suffix := "_overlay"
	if *maskedView {
		suffix = "_masked"
		result, err = r.Masked(photo, ids)
	} else {
		img, ferr := r.FindImage(*in)
		if ferr != nil {
			return ferr
		}
		result, err = r.Overlay(photo, img.ID, visualise.Options{
			AnnotationIDs:  ids,
			ShowMasks:      !*noMasks,
			ShowBBoxes:     !*noBoxes,
			ShowClassNames: !*noNames,
			MaskAlpha:      cfg.Visualise.MaskAlpha,
			StrokeWidth:    cfg.Visualise.StrokeWidth,
		})
	}
	if err != nil {
		return err
	}

	format := cfg.Output.OverlayFormat
	path := *out
	if path == "" {
		path = filepath.Join(filepath.Dir(*in), utils.Stem(*in)+suffix+"."+format)
	} else {
		format = ""
	}
	if err := processor.SaveImage(result, path, format, cfg.Output.OverlayQuality, cfg.Output.OverlayLossless); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func runServe(ctx context.Context, cfg *config.Config, args []string) error {
	fs := newFlags("serve")
	port := fs.String("port", cfg.Server.Port, "listen address")
	catsPath := fs.String("c", cfg.Server.Categories, "categories JSON file")
	fs.Parse(args)
	cfg.Server.Port = *port

	cats, err := loadCategories(*catsPath)
	if err != nil {
		return err
	}
	c, err := cache.New(ctx, cache.Options{
		Backend:       cfg.Cache.Backend,
		Size:          cfg.Cache.Size,
		TTL:           cfg.Cache.TTL,
		RedisAddr:     cfg.Cache.Redis.Addr,
		RedisPassword: cfg.Cache.Redis.Password,
		RedisDB:       cfg.Cache.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer c.Close()

	utils.Logger.Info("serving",
		zap.String("port", cfg.Server.Port),
		zap.String("cache", cfg.Cache.Backend),
		zap.Int("categories", cats.Len()))

	return server.New(server.Options{
		Config:     cfg,
		Categories: cats,
		Cache:      c,
		Logger:     utils.Logger,
		Version:    cocomask.Version,
	}).Run(ctx)
}

func runVersion(context.Context, *config.Config, []string) error {
	fmt.Printf("cocomask %s\n", cocomask.GetVersion())
	return nil
}
