package pipeline

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tyrasd/datashader/pkg/aggregate"
	"github.com/tyrasd/datashader/pkg/cache"
	"github.com/tyrasd/datashader/pkg/canvas"
	"github.com/tyrasd/datashader/pkg/errors"
	"github.com/tyrasd/datashader/pkg/grid"
	"github.com/tyrasd/datashader/pkg/img"
	"github.com/tyrasd/datashader/pkg/observability"
	"github.com/tyrasd/datashader/pkg/reduction"
	"github.com/tyrasd/datashader/pkg/source"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and server can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete aggregate → transform → shade pipeline with
// caching. On an image cache hit only Result.PNG is populated; the
// grids are not recomputed.
func (r *Runner) Execute(ctx context.Context, src source.Source, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)

	result := &Result{}

	// Fast path: the finished PNG may already be cached.
	if key, ok := r.imageKey(opts); ok && !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, "img")
			result.PNG = data
			result.CacheInfo.ImageHit = true
			return result, nil
		}
		observability.Cache().OnCacheMiss(ctx, "img")
	}

	// Stage 1: Aggregate
	aggStart := time.Now()
	agg, gridHit, err := r.AggregateWithCacheInfo(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	result.Canvas = agg.Canvas
	result.Stats.AggregateTime = time.Since(aggStart)
	result.Stats.Cells = agg.Grid().Geom.Cells()
	result.CacheInfo.GridHit = gridHit

	r.Logger.Info("aggregated records",
		"reduction", opts.Reduction,
		"cells", result.Stats.Cells,
		"cached", gridHit,
		"duration", result.Stats.AggregateTime)

	// Stage 2: Transform
	transformStart := time.Now()
	result.Grids = make([]reduction.Named, len(agg.Grids))
	for i, named := range agg.Grids {
		result.Grids[i] = reduction.Named{Name: named.Name, Grid: applyTransforms(named.Grid, &opts)}
	}
	result.Stats.TransformTime = time.Since(transformStart)

	// Stage 3: Shade, spread, encode
	shadeStart := time.Now()
	png, im, err := r.renderImage(ctx, result, &opts)
	if err != nil {
		return nil, err
	}
	result.Image = im
	result.PNG = png
	result.Stats.ShadeTime = time.Since(shadeStart)

	r.Logger.Info("shaded image",
		"colormap", opts.Colormap,
		"how", opts.How,
		"bytes", len(result.PNG),
		"duration", result.Stats.ShadeTime)

	if key, ok := r.imageKey(opts); ok {
		_ = r.Cache.Set(ctx, key, result.PNG, cache.TTLImage)
		observability.Cache().OnCacheSet(ctx, "img", len(result.PNG))
	}

	return result, nil
}

// AggregateWithCacheInfo runs the aggregation stage with caching and
// returns cache hit info.
func (r *Runner) AggregateWithCacheInfo(ctx context.Context, src source.Source, opts Options) (*aggregate.Result, bool, error) {
	if err := opts.ValidateForAggregate(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	key, keyed := r.gridKey(opts)
	if keyed && !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			if res, err := decodeAggregate(data); err == nil {
				observability.Cache().OnCacheHit(ctx, "grid")
				return res, true, nil
			}
			// Corrupt entry: recompute and overwrite.
		}
		observability.Cache().OnCacheMiss(ctx, "grid")
	}

	res, err := r.aggregate(ctx, src, opts)
	if err != nil {
		return nil, false, err
	}

	if keyed {
		if data, err := encodeAggregate(res); err == nil {
			_ = r.Cache.Set(ctx, key, data, cache.TTLGrid)
			observability.Cache().OnCacheSet(ctx, "grid", len(data))
		}
	}

	return res, false, nil
}

// Aggregate is a convenience wrapper that calls AggregateWithCacheInfo
// and discards the cache hit info.
func (r *Runner) Aggregate(ctx context.Context, src source.Source, opts Options) (*aggregate.Result, error) {
	res, _, err := r.AggregateWithCacheInfo(ctx, src, opts)
	return res, err
}

// aggregate runs the uncached aggregation pass.
func (r *Runner) aggregate(ctx context.Context, src source.Source, opts Options) (*aggregate.Result, error) {
	cvs, err := buildCanvas(&opts)
	if err != nil {
		return nil, err
	}
	red, err := buildReduction(&opts)
	if err != nil {
		return nil, err
	}
	aggOpts := aggregate.Options{XCol: opts.XCol, YCol: opts.YCol, Workers: opts.Workers}

	observability.Pipeline().OnAggregateStart(ctx, opts.Source, opts.Reduction)
	start := time.Now()
	var res *aggregate.Result
	if opts.IsLines() {
		res, err = aggregate.Lines(ctx, cvs, src, red, aggOpts)
	} else {
		res, err = aggregate.Points(ctx, cvs, src, red, aggOpts)
	}
	cells := 0
	if res != nil {
		cells = res.Grid().Geom.Cells()
	}
	observability.Pipeline().OnAggregateComplete(ctx, opts.Source, opts.Reduction, cells, time.Since(start), err)
	return res, err
}

// renderImage shades the transformed grids, applies spreading, and
// encodes the PNG.
func (r *Runner) renderImage(ctx context.Context, result *Result, opts *Options) ([]byte, *img.Image, error) {
	so, err := buildShadeOptions(opts)
	if err != nil {
		return nil, nil, err
	}

	observability.Pipeline().OnShadeStart(ctx, opts.Colormap)
	start := time.Now()
	im, err := shadeGrids(result.Grids, so)
	observability.Pipeline().OnShadeComplete(ctx, opts.Colormap, time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}

	im, err = applySpread(im, opts)
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	if err := im.EncodePNG(&buf); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), im, nil
}

// RenderImage shades already-aggregated grids into an encoded PNG,
// bypassing the aggregation stage and its cache.
func (r *Runner) RenderImage(ctx context.Context, grids []reduction.Named, opts Options) ([]byte, error) {
	if err := opts.ValidateForShade(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)
	result := &Result{Grids: grids}
	png, _, err := r.renderImage(ctx, result, &opts)
	return png, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// imageKey keys the encoded PNG by the rendering option set. Fields
// that do not change the rendered bytes (Logger, Workers, Refresh) are
// zeroed first, so a refreshed render overwrites the same entry normal
// requests read and parallelism does not fragment the cache. A source
// without an identity cannot be keyed and is never cached.
func (r *Runner) imageKey(opts Options) (string, bool) {
	if opts.Source == "" {
		return "", false
	}
	opts.Logger = nil
	opts.Workers = 0
	opts.Refresh = false
	return r.Keyer.ImageKey(opts.Source, opts), true
}

// gridKey keys the aggregate grid by the aggregation option subset.
func (r *Runner) gridKey(opts Options) (string, bool) {
	if opts.Source == "" {
		return "", false
	}
	return r.Keyer.GridKey(opts.Source, opts.GridKeyOpts()), true
}

// =============================================================================
// Grid serialization for caching
// =============================================================================

// aggregatePayload is the gob wire form of an aggregation result. Gob
// rather than JSON because float grids carry NaN sentinels that JSON
// cannot encode.
type aggregatePayload struct {
	Width, Height          int
	XMin, XMax, YMin, YMax float64
	XLog, YLog             bool
	Grids                  []gridPayload
}

type gridPayload struct {
	Name string
	Kind int
	Cats []string
	Data []float64
}

func encodeAggregate(res *aggregate.Result) ([]byte, error) {
	geom := res.Grid().Geom
	p := aggregatePayload{
		Width: geom.Width, Height: geom.Height,
		XMin: geom.XMin, XMax: geom.XMax, YMin: geom.YMin, YMax: geom.YMax,
		XLog: geom.XLog, YLog: geom.YLog,
	}
	for _, named := range res.Grids {
		p.Grids = append(p.Grids, gridPayload{
			Name: named.Name,
			Kind: int(named.Grid.Kind),
			Cats: named.Grid.Cats,
			Data: named.Grid.Data,
		})
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encoding aggregate for cache")
	}
	return buf.Bytes(), nil
}

func decodeAggregate(data []byte) (*aggregate.Result, error) {
	var p aggregatePayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "decoding cached aggregate")
	}
	if len(p.Grids) == 0 {
		return nil, errors.New(errors.ErrCodeInternal, "cached aggregate has no grids")
	}

	geom := grid.Geometry{
		Width: p.Width, Height: p.Height,
		XMin: p.XMin, XMax: p.XMax, YMin: p.YMin, YMax: p.YMax,
		XLog: p.XLog, YLog: p.YLog,
	}
	res := &aggregate.Result{
		Canvas: &canvas.Canvas{
			Width:  p.Width,
			Height: p.Height,
			XRange: &canvas.Range{Lo: p.XMin, Hi: p.XMax},
			YRange: &canvas.Range{Lo: p.YMin, Hi: p.YMax},
			XAxis:  axisFor(p.XLog),
			YAxis:  axisFor(p.YLog),
		},
	}
	for _, gp := range p.Grids {
		var g *grid.Grid
		switch {
		case len(gp.Cats) > 0:
			g = grid.NewCat(geom, gp.Cats)
		case grid.Kind(gp.Kind) == grid.KindInt:
			g = grid.NewInt(geom)
		default:
			g = grid.NewFloat(geom)
		}
		if len(gp.Data) != len(g.Data) {
			return nil, errors.New(errors.ErrCodeInternal, "cached grid size mismatch")
		}
		copy(g.Data, gp.Data)
		res.Grids = append(res.Grids, reduction.Named{Name: gp.Name, Grid: g})
	}
	return res, nil
}

func axisFor(logScale bool) canvas.Axis {
	if logScale {
		return canvas.Log
	}
	return canvas.Linear
}
