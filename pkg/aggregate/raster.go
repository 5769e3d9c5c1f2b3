package aggregate

import (
	"math"

	"github.com/tyrasd/datashader/pkg/canvas"
	"github.com/tyrasd/datashader/pkg/errors"
	"github.com/tyrasd/datashader/pkg/grid"
)

// RasterOp selects the reduction applied when several source cells fall
// into one destination cell during downsampling. It is a closed tagged
// set, resolved once per Raster call.
type RasterOp int

const (
	// RasterMean averages the contributing source cells.
	RasterMean RasterOp = iota
	// RasterSum totals the contributing source cells.
	RasterSum
	// RasterMin keeps the smallest contributing source cell.
	RasterMin
	// RasterMax keeps the largest contributing source cell.
	RasterMax
	// RasterCount counts the non-empty contributing source cells.
	RasterCount
	// RasterAny records whether any non-empty source cell contributed.
	RasterAny
)

// Raster resamples a source grid onto the canvas resolution. Every
// destination cell covers an axis-aligned rectangle of the source: with
// more source cells than destination cells the rectangle holds many
// source cells and op aggregates them (downsampling); with fewer, each
// destination cell reads the single source cell containing its extent,
// spreading one source cell across many destination cells (upsampling).
// The direction is chosen automatically, per axis, from the resolution
// ratio.
//
// A canvas with unset ranges adopts the source grid's ranges. Destination
// cells outside the source extent stay at the sentinel.
func Raster(cvs *canvas.Canvas, src *grid.Grid, op RasterOp) (*grid.Grid, error) {
	if err := cvs.Validate(); err != nil {
		return nil, err
	}
	if src.Categorical() {
		return nil, errors.New(errors.ErrCodeUnsupported, "raster resampling of categorical grids")
	}
	resolved := cvs.WithRanges(
		canvas.Range{Lo: src.Geom.XMin, Hi: src.Geom.XMax},
		canvas.Range{Lo: src.Geom.YMin, Hi: src.Geom.YMax},
	)
	if err := resolved.Validate(); err != nil {
		return nil, err
	}

	geom := resolved.Geometry()
	out := newRasterGrid(geom, src.Kind, op)

	xv := newAxisView(src.Geom.XMin, src.Geom.XMax, src.Geom.Width, src.Geom.XLog)
	yv := newAxisView(src.Geom.YMin, src.Geom.YMax, src.Geom.Height, src.Geom.YLog)
	dx := newAxisView(geom.XMin, geom.XMax, geom.Width, geom.XLog)
	dy := newAxisView(geom.YMin, geom.YMax, geom.Height, geom.YLog)

	for r := 0; r < geom.Height; r++ {
		sy0, sy1, ok := sourceSpan(dy, yv, r)
		if !ok {
			continue
		}
		for c := 0; c < geom.Width; c++ {
			sx0, sx1, ok := sourceSpan(dx, xv, c)
			if !ok {
				continue
			}
			out.Data[r*geom.Width+c] = foldRect(src, op, sx0, sx1, sy0, sy1, out)
		}
	}
	return out, nil
}

func newRasterGrid(geom grid.Geometry, srcKind grid.Kind, op RasterOp) *grid.Grid {
	switch op {
	case RasterCount, RasterAny:
		return grid.NewInt(geom)
	case RasterMean:
		return grid.NewFloat(geom)
	default:
		if srcKind == grid.KindInt {
			return grid.NewInt(geom)
		}
		return grid.NewFloat(geom)
	}
}

// sourceSpan maps destination cell i to the half-open source cell index
// range its coordinate extent overlaps, clamped to the source grid. The
// range always contains at least one cell when the extents overlap at
// all, which is what makes upsampling a plain containing-cell lookup.
func sourceSpan(dst, src axisView, i int) (lo, hi int, ok bool) {
	c0 := src.pos(dst.edge(i))
	c1 := src.pos(dst.edge(i + 1))
	if c1 <= 0 || c0 >= float64(src.n) {
		return 0, 0, false
	}
	lo = int(math.Floor(c0))
	hi = int(math.Ceil(c1))
	lo = max(lo, 0)
	hi = min(hi, src.n)
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi, true
}

func foldRect(src *grid.Grid, op RasterOp, sx0, sx1, sy0, sy1 int, out *grid.Grid) float64 {
	var (
		acc   float64
		count int
	)
	for sr := sy0; sr < sy1; sr++ {
		for sc := sx0; sc < sx1; sc++ {
			v := src.At(sr, sc)
			if src.Masked(v) {
				continue
			}
			if count == 0 {
				switch op {
				case RasterCount:
					acc = 1
				case RasterAny:
					acc = 1
				default:
					acc = v
				}
				count = 1
				continue
			}
			count++
			switch op {
			case RasterMean, RasterSum:
				acc += v
			case RasterMin:
				acc = math.Min(acc, v)
			case RasterMax:
				acc = math.Max(acc, v)
			case RasterCount:
				acc++
			case RasterAny:
				// saturated
			}
		}
	}
	if count == 0 {
		return out.Sentinel()
	}
	if op == RasterMean {
		return acc / float64(count)
	}
	return acc
}

// axisView is the coordinate mapping of one grid axis, shared by the
// source and destination sides of a resample.
type axisView struct {
	lo, span float64
	n        int
	log      bool
}

func newAxisView(min, max float64, n int, logScale bool) axisView {
	lo, hi := min, max
	if logScale {
		lo, hi = math.Log(lo), math.Log(hi)
	}
	return axisView{lo: lo, span: hi - lo, n: n, log: logScale}
}

// edge returns the coordinate of cell boundary i (0..n inclusive).
func (a axisView) edge(i int) float64 {
	f := a.lo + a.span*float64(i)/float64(a.n)
	if a.log {
		return math.Exp(f)
	}
	return f
}

// pos returns the fractional cell position of a coordinate.
func (a axisView) pos(v float64) float64 {
	if a.log {
		v = math.Log(v)
	}
	return (v - a.lo) / a.span * float64(a.n)
}
