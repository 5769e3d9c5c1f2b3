// Package pipeline provides the core render pipeline.
//
// This package implements the complete aggregate → transform → shade →
// spread pipeline that can be used by CLI and server components. By
// centralizing this logic, we ensure consistent behavior across all
// entry points and avoid code duplication.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Aggregate: Stream records from a source into a fixed-size grid
//  2. Transform: Optional grid filtering (value floor, percentile)
//  3. Shade: Colormap the grid into an RGBA image, spread, encode PNG
//
// Each stage can be run independently or as part of the complete pipeline.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Source:    "taxi.csv",
//	    Width:     600,
//	    Height:    600,
//	    Reduction: "count",
//	    How:       "log",
//	}
//	result, err := runner.Execute(ctx, src, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	png := result.PNG
//
// Run individual stages:
//
//	// Aggregate only
//	agg, err := runner.Aggregate(ctx, src, opts)
//
//	// Shade an existing grid
//	png, err := runner.RenderImage(ctx, g, opts)
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tyrasd/datashader/pkg/canvas"
	"github.com/tyrasd/datashader/pkg/errors"
	"github.com/tyrasd/datashader/pkg/img"
	"github.com/tyrasd/datashader/pkg/reduction"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultWidth is the default grid width in cells.
	DefaultWidth = 600

	// DefaultHeight is the default grid height in cells.
	DefaultHeight = 600

	// DefaultReduction aggregates record counts per cell.
	DefaultReduction = "count"

	// DefaultColormap is the default colormap name.
	DefaultColormap = "viridis"

	// DefaultHow is the default value rescaling transform.
	DefaultHow = "linear"

	// DefaultGlyph projects each record as a single point.
	DefaultGlyph = "points"
)

// Glyph constants for record projection.
const (
	GlyphPoints = "points"
	GlyphLines  = "lines"
)

// ValidGlyphs is the set of supported record projections.
var ValidGlyphs = map[string]bool{
	GlyphPoints: true,
	GlyphLines:  true,
}

// ValidReductions is the set of supported reduction names.
var ValidReductions = map[string]bool{
	"count":     true,
	"any":       true,
	"sum":       true,
	"min":       true,
	"max":       true,
	"mean":      true,
	"var":       true,
	"std":       true,
	"count_cat": true,
}

// reductionsNeedingColumn require a value or category column.
var reductionsNeedingColumn = map[string]bool{
	"sum":       true,
	"min":       true,
	"max":       true,
	"mean":      true,
	"var":       true,
	"std":       true,
	"count_cat": true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the render pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Source options
	Source  string `json:"source,omitempty"` // source identity, used in cache keys
	XCol    string `json:"x_col,omitempty"`
	YCol    string `json:"y_col,omitempty"`
	Glyph   string `json:"glyph,omitempty"` // points or lines
	Workers int    `json:"workers,omitempty"`

	// Canvas options. Unset ranges are inferred from the data.
	Width  int      `json:"width,omitempty"`
	Height int      `json:"height,omitempty"`
	XMin   *float64 `json:"x_min,omitempty"`
	XMax   *float64 `json:"x_max,omitempty"`
	YMin   *float64 `json:"y_min,omitempty"`
	YMax   *float64 `json:"y_max,omitempty"`
	XAxis  string   `json:"x_axis,omitempty"` // linear or log
	YAxis  string   `json:"y_axis,omitempty"`

	// Reduction options
	Reduction  string   `json:"reduction,omitempty"`
	Column     string   `json:"column,omitempty"`
	Categories []string `json:"categories,omitempty"` // count_cat; empty = discover

	// Transform options
	MinValue   *float64 `json:"min_value,omitempty"`  // mask cells below this value
	Percentile float64  `json:"percentile,omitempty"` // mask cells above this percentile; 0 disables

	// Shade options
	Colormap string   `json:"colormap,omitempty"`
	How      string   `json:"how,omitempty"`
	SpanLo   *float64 `json:"span_lo,omitempty"`
	SpanHi   *float64 `json:"span_hi,omitempty"`

	// Spread options
	SpreadPx    int    `json:"spread_px,omitempty"` // fixed spread radius; 0 = none
	DynSpread   bool   `json:"dynspread,omitempty"`
	SpreadShape string `json:"spread_shape,omitempty"`

	// Refresh bypasses cache reads.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Canvas is the fully-ranged canvas the aggregation ran on. Nil
	// when the whole run was served from the image cache.
	Canvas *canvas.Canvas

	// Grids holds the finished aggregate grids, post-transform. Nil on
	// an image cache hit.
	Grids []reduction.Named

	// Image is the shaded RGBA raster. Nil on an image cache hit.
	Image *img.Image

	// PNG is the encoded image.
	PNG []byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Cells         int
	AggregateTime time.Duration
	TransformTime time.Duration
	ShadeTime     time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	GridHit  bool // Whether the aggregate grid came from cache
	ImageHit bool // Whether the encoded image came from cache
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults for
// the full pipeline. This method is idempotent - calling it multiple
// times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForAggregate(); err != nil {
		return err
	}
	if err := o.ValidateForShade(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForAggregate checks and defaults the aggregation options.
func (o *Options) ValidateForAggregate() error {
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if o.Glyph == "" {
		o.Glyph = DefaultGlyph
	}
	if !ValidGlyphs[o.Glyph] {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid glyph: %s (must be points or lines)", o.Glyph)
	}
	if o.Reduction == "" {
		o.Reduction = DefaultReduction
	}
	if !ValidReductions[o.Reduction] {
		return errors.New(errors.ErrCodeInvalidReduction, "invalid reduction: %s", o.Reduction)
	}
	if reductionsNeedingColumn[o.Reduction] && o.Column == "" {
		return errors.New(errors.ErrCodeInvalidReduction, "reduction %s requires a column", o.Reduction)
	}
	if (o.XMin == nil) != (o.XMax == nil) || (o.YMin == nil) != (o.YMax == nil) {
		return errors.New(errors.ErrCodeInvalidRange, "axis ranges must set both ends or neither")
	}
	if _, err := canvas.ParseAxis(o.XAxis); err != nil {
		return err
	}
	if _, err := canvas.ParseAxis(o.YAxis); err != nil {
		return err
	}
	if o.Percentile < 0 || o.Percentile > 100 {
		return errors.New(errors.ErrCodeInvalidConfig, "percentile must be in [0, 100]")
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// ValidateForShade checks and defaults the shading options.
func (o *Options) ValidateForShade() error {
	if o.Colormap == "" {
		o.Colormap = DefaultColormap
	}
	if o.How == "" {
		o.How = DefaultHow
	}
	if o.SpanLo != nil || o.SpanHi != nil {
		if o.SpanLo == nil || o.SpanHi == nil {
			return errors.New(errors.ErrCodeInvalidRange, "span must set both ends or neither")
		}
	}
	if o.SpreadPx < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "spread radius must not be negative")
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// IsLines returns true if records project as connected line segments.
func (o *Options) IsLines() bool {
	return o.Glyph == GlyphLines
}

// gridKeyOpts is the subset of options that determines the aggregate
// grid, used for grid cache keys. Shading options are excluded so
// renders differing only in color reuse the grid.
type gridKeyOpts struct {
	XCol       string   `json:"x_col"`
	YCol       string   `json:"y_col"`
	Glyph      string   `json:"glyph"`
	Workers    int      `json:"-"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	XMin       *float64 `json:"x_min"`
	XMax       *float64 `json:"x_max"`
	YMin       *float64 `json:"y_min"`
	YMax       *float64 `json:"y_max"`
	XAxis      string   `json:"x_axis"`
	YAxis      string   `json:"y_axis"`
	Reduction  string   `json:"reduction"`
	Column     string   `json:"column"`
	Categories []string `json:"categories"`
}

// GridKeyOpts returns the cache key options for the aggregation stage.
func (o *Options) GridKeyOpts() any {
	return gridKeyOpts{
		XCol:       o.XCol,
		YCol:       o.YCol,
		Glyph:      o.Glyph,
		Width:      o.Width,
		Height:     o.Height,
		XMin:       o.XMin,
		XMax:       o.XMax,
		YMin:       o.YMin,
		YMax:       o.YMax,
		XAxis:      o.XAxis,
		YAxis:      o.YAxis,
		Reduction:  o.Reduction,
		Column:     o.Column,
		Categories: o.Categories,
	}
}
