package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tyrasd/datashader/pkg/cache"
	"github.com/tyrasd/datashader/pkg/pipeline"
	"github.com/tyrasd/datashader/pkg/source"
)

// renderOpts holds the command-line flags for the render command.
// These options mirror pipeline.Options, plus input/output plumbing.
type renderOpts struct {
	output      string // output PNG path; derived from input when empty
	xCol        string // x coordinate column
	yCol        string // y coordinate column
	glyph       string // points or lines
	width       int    // grid width in cells
	height      int    // grid height in cells
	xRange      string // "lo,hi" x extent; empty = infer from data
	yRange      string // "lo,hi" y extent
	xAxis       string // linear or log
	yAxis       string // linear or log
	reduction   string // per-cell reduction
	column      string // value/category column for reductions that need one
	cats        string // comma-separated category whitelist
	minValue    string // mask cells below this value
	percentile  float64
	colormap    string
	how         string // linear, log, or eq_hist
	span        string // "lo,hi" fixed shading span
	spread      int
	dynspread   bool
	spreadShape string
	workers     int
	cacheDir    string
	noCache     bool
	refresh     bool
}

// newRenderCmd creates the render command for rasterizing a dataset.
//
// Default settings:
//   - reduction: count
//   - colormap: viridis, how: linear
//   - 600x600 grid with ranges inferred from the data
func newRenderCmd() *cobra.Command {
	opts := renderOpts{}

	cmd := &cobra.Command{
		Use:   "render [file or URL]",
		Short: "Aggregate a CSV feed and shade it into a PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output PNG file (default: input name with .png)")
	cmd.Flags().StringVar(&opts.xCol, "x", "x", "x coordinate column")
	cmd.Flags().StringVar(&opts.yCol, "y", "y", "y coordinate column")
	cmd.Flags().StringVar(&opts.glyph, "glyph", "", "glyph: points (default), lines")
	cmd.Flags().IntVar(&opts.width, "width", 0, "grid width in cells")
	cmd.Flags().IntVar(&opts.height, "height", 0, "grid height in cells")
	cmd.Flags().StringVar(&opts.xRange, "x-range", "", "x extent as lo,hi (default: inferred)")
	cmd.Flags().StringVar(&opts.yRange, "y-range", "", "y extent as lo,hi (default: inferred)")
	cmd.Flags().StringVar(&opts.xAxis, "x-axis", "", "x axis scale: linear (default), log")
	cmd.Flags().StringVar(&opts.yAxis, "y-axis", "", "y axis scale: linear (default), log")
	cmd.Flags().StringVarP(&opts.reduction, "reduction", "r", "", "reduction: count (default), any, sum, min, max, mean, var, std, count_cat")
	cmd.Flags().StringVarP(&opts.column, "column", "c", "", "value or category column")
	cmd.Flags().StringVar(&opts.cats, "cats", "", "comma-separated category list for count_cat (default: discovered)")
	cmd.Flags().StringVar(&opts.minValue, "min-value", "", "mask cells below this value")
	cmd.Flags().Float64Var(&opts.percentile, "percentile", 0, "mask cells above this percentile")
	cmd.Flags().StringVar(&opts.colormap, "colormap", "", "colormap name (default: viridis)")
	cmd.Flags().StringVar(&opts.how, "how", "", "value mapping: linear (default), log, eq_hist")
	cmd.Flags().StringVar(&opts.span, "span", "", "fixed shading span as lo,hi (default: data extent)")
	cmd.Flags().IntVar(&opts.spread, "spread", 0, "spread radius in pixels")
	cmd.Flags().BoolVar(&opts.dynspread, "dynspread", false, "grow spread until pixels stop being isolated")
	cmd.Flags().StringVar(&opts.spreadShape, "spread-shape", "", "spread stencil: circle (default), square")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "parallel aggregation partitions")
	cmd.Flags().StringVar(&opts.cacheDir, "cache-dir", "", "cache directory (default: user cache dir)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the render cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "recompute even when cached")

	return cmd
}

// parseRangePair parses a "lo,hi" flag value into a pair of floats.
func parseRangePair(flag, s string) (lo, hi *float64, err error) {
	if s == "" {
		return nil, nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("invalid --%s: %q (want lo,hi)", flag, s)
	}
	l, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --%s: %q is not a number", flag, parts[0])
	}
	h, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --%s: %q is not a number", flag, parts[1])
	}
	return &l, &h, nil
}

// pipelineOptions translates the command flags into pipeline options.
// The source identity is the input path, so repeated renders of the same
// file share cache entries.
func (o *renderOpts) pipelineOptions(input string) (pipeline.Options, error) {
	opts := pipeline.Options{
		Source:      input,
		XCol:        o.xCol,
		YCol:        o.yCol,
		Glyph:       o.glyph,
		Workers:     o.workers,
		Width:       o.width,
		Height:      o.height,
		XAxis:       o.xAxis,
		YAxis:       o.yAxis,
		Reduction:   o.reduction,
		Column:      o.column,
		Percentile:  o.percentile,
		Colormap:    o.colormap,
		How:         o.how,
		SpreadPx:    o.spread,
		DynSpread:   o.dynspread,
		SpreadShape: o.spreadShape,
		Refresh:     o.refresh,
	}

	var err error
	if opts.XMin, opts.XMax, err = parseRangePair("x-range", o.xRange); err != nil {
		return opts, err
	}
	if opts.YMin, opts.YMax, err = parseRangePair("y-range", o.yRange); err != nil {
		return opts, err
	}
	if opts.SpanLo, opts.SpanHi, err = parseRangePair("span", o.span); err != nil {
		return opts, err
	}
	if o.cats != "" {
		opts.Categories = strings.Split(o.cats, ",")
	}
	if o.minValue != "" {
		v, err := strconv.ParseFloat(o.minValue, 64)
		if err != nil {
			return opts, fmt.Errorf("invalid --min-value: %q is not a number", o.minValue)
		}
		opts.MinValue = &v
	}
	return opts, nil
}

// outputPath derives the PNG output path from the flags and input.
func (o *renderOpts) outputPath(input string) string {
	if o.output != "" {
		return o.output
	}
	base := filepath.Base(input)
	if i := strings.LastIndex(base, "?"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".png"
}

// openInput resolves the input argument to a record source. HTTP and
// HTTPS URLs are fetched once up front; anything else is a local CSV.
func openInput(ctx context.Context, input string) (source.Source, error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		sp := newSpinnerWithContext(ctx, "Fetching "+input)
		sp.Start()
		src, err := source.FetchCSV(ctx, input)
		sp.Stop()
		return src, err
	}
	return source.OpenCSV(input)
}

// buildCache constructs the cache backend selected by the flags.
func (o *renderOpts) buildCache() (cache.Cache, error) {
	if o.noCache {
		return cache.NewNullCache(), nil
	}
	dir := o.cacheDir
	if dir == "" {
		var err error
		dir, err = cacheDir()
		if err != nil {
			return nil, err
		}
	}
	return cache.NewFileCache(dir)
}

// runRender aggregates the input and writes the shaded PNG.
func runRender(ctx context.Context, input string, opts *renderOpts) error {
	logger := loggerFromContext(ctx)
	logger.Debugf("Rendering %s", input)

	src, err := openInput(ctx, input)
	if err != nil {
		return err
	}

	pipeOpts, err := opts.pipelineOptions(input)
	if err != nil {
		return err
	}
	pipeOpts.Logger = logger

	c, err := opts.buildCache()
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(c, nil, logger)
	defer runner.Close()

	prog := newProgress(logger)
	sp := newSpinnerWithContext(ctx, "Aggregating "+input)
	sp.Start()
	res, err := runner.Execute(ctx, src, pipeOpts)
	sp.Stop()
	if err != nil {
		return err
	}
	prog.done("Aggregated " + input)

	out := opts.outputPath(input)
	if err := os.WriteFile(out, res.PNG, 0o644); err != nil {
		return err
	}

	printSuccess("Rendered %s", input)
	printFile(out)
	printRenderStats(res.Stats.Cells, len(res.PNG), res.CacheInfo.ImageHit)
	if opts.colormap == "" {
		printNextStep("Try another colormap", "datashader render "+input+" --colormap inferno")
	}
	return nil
}
