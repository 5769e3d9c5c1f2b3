package pipeline

import (
	"image/color"

	"github.com/tyrasd/datashader/pkg/canvas"
	"github.com/tyrasd/datashader/pkg/errors"
	"github.com/tyrasd/datashader/pkg/grid"
	"github.com/tyrasd/datashader/pkg/img"
	"github.com/tyrasd/datashader/pkg/reduction"
	"github.com/tyrasd/datashader/pkg/shade"
)

// buildCanvas constructs the canvas declared by the options. Ranges stay
// unset when the options leave them out; the aggregator infers them.
func buildCanvas(opts *Options) (*canvas.Canvas, error) {
	xAxis, err := canvas.ParseAxis(opts.XAxis)
	if err != nil {
		return nil, err
	}
	yAxis, err := canvas.ParseAxis(opts.YAxis)
	if err != nil {
		return nil, err
	}
	cvs := &canvas.Canvas{
		Width:  opts.Width,
		Height: opts.Height,
		XAxis:  xAxis,
		YAxis:  yAxis,
	}
	if opts.XMin != nil {
		cvs.XRange = &canvas.Range{Lo: *opts.XMin, Hi: *opts.XMax}
	}
	if opts.YMin != nil {
		cvs.YRange = &canvas.Range{Lo: *opts.YMin, Hi: *opts.YMax}
	}
	return cvs, nil
}

// buildReduction resolves the reduction name from the options.
func buildReduction(opts *Options) (reduction.Reduction, error) {
	switch opts.Reduction {
	case "count":
		return reduction.Count(opts.Column), nil
	case "any":
		return reduction.Any(opts.Column), nil
	case "sum":
		return reduction.Sum(opts.Column), nil
	case "min":
		return reduction.Min(opts.Column), nil
	case "max":
		return reduction.Max(opts.Column), nil
	case "mean":
		return reduction.Mean(opts.Column), nil
	case "var":
		return reduction.Var(opts.Column), nil
	case "std":
		return reduction.Std(opts.Column), nil
	case "count_cat":
		return reduction.CountCat(opts.Column, opts.Categories...), nil
	}
	return nil, errors.New(errors.ErrCodeInvalidReduction, "invalid reduction: %s", opts.Reduction)
}

// applyTransforms runs the optional grid filters between aggregation and
// shading. The input grid is never modified.
func applyTransforms(g *grid.Grid, opts *Options) *grid.Grid {
	out := g
	if opts.MinValue != nil {
		floor := *opts.MinValue
		out = out.Where(func(v float64) bool { return v >= floor })
	}
	if opts.Percentile > 0 {
		out = out.PercentileFilter(opts.Percentile)
	}
	return out
}

// buildShadeOptions resolves colormap, transform, and span.
func buildShadeOptions(opts *Options) (shade.Options, error) {
	cmap, err := shade.Lookup(opts.Colormap)
	if err != nil {
		return shade.Options{}, err
	}
	how, err := shade.ParseHow(opts.How)
	if err != nil {
		return shade.Options{}, err
	}
	so := shade.Options{Colormap: cmap, How: how}
	if opts.SpanLo != nil {
		so.Span = &shade.Span{Lo: *opts.SpanLo, Hi: *opts.SpanHi}
	}
	return so, nil
}

// applySpread runs the configured post-processor, if any.
func applySpread(im *img.Image, opts *Options) (*img.Image, error) {
	shape := img.Shape(opts.SpreadShape)
	if opts.DynSpread {
		return im.DynSpread(img.DynSpreadOptions{MaxPx: max(opts.SpreadPx, 0), Shape: shape})
	}
	if opts.SpreadPx > 0 {
		return im.Spread(img.SpreadOptions{Px: opts.SpreadPx, Shape: shape})
	}
	return im, nil
}

// shadeGrids shades the primary grid. Summary reductions produce
// several named grids; the first one drives the image, the rest stay
// available on the Result for callers that need them.
func shadeGrids(grids []reduction.Named, so shade.Options) (*img.Image, error) {
	if len(grids) == 0 {
		return nil, errors.New(errors.ErrCodeInternal, "no grids to shade")
	}
	return shade.Shade(grids[0].Grid, so)
}

// ColorKeyFor pairs category names with the default colors the shader
// would assign them, for callers that render a legend.
func ColorKeyFor(names []string) map[string]color.RGBA {
	key := make(map[string]color.RGBA, len(names))
	for i, name := range names {
		key[name] = shade.CategoryColors[i%len(shade.CategoryColors)]
	}
	return key
}
