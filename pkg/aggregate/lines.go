package aggregate

import (
	"context"
	"io"
	"math"

	"github.com/tyrasd/datashader/pkg/canvas"
	"github.com/tyrasd/datashader/pkg/reduction"
	"github.com/tyrasd/datashader/pkg/source"
)

// Lines aggregates an ordered series of records as connected line
// segments: every cell intersected by the segment between consecutive
// records receives one reduction update, rasterized with Bresenham's
// algorithm in cell-index space. A single record can therefore touch many
// cells, and a cell crossed by several segments is updated once per touch
// (count increments each time, any saturates). Within one series the
// shared vertex between consecutive segments is counted once, not twice.
//
// Series continuity crosses batch boundaries. A record with a NaN
// coordinate breaks the series, starting a new one at the next record; a
// segment with an out-of-range endpoint is dropped whole, like an
// out-of-range point. Lines always runs sequentially because segment
// order is what defines the series.
func Lines(ctx context.Context, cvs *canvas.Canvas, src source.Source, red reduction.Reduction, opts Options) (*Result, error) {
	opts.setDefaults()
	resolved, proj, cats, err := setup(ctx, cvs, src, red, opts)
	if err != nil {
		return nil, err
	}

	state := red.NewState(resolved.Geometry(), cats)
	cur, err := src.Batches(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var (
		havePrev         bool // a previous series point exists
		plotted          bool // the previous point's cell was already updated
		prevCol, prevRow int
		prevOK           bool
		ctxErr           error
	)

	for {
		b, err := cur.Next(ctx)
		if err == io.EOF {
			break
		}
		if isCancel(err) {
			ctxErr = err
			break
		}
		if err != nil {
			return nil, err
		}

		xs, err := b.Float(opts.XCol)
		if err != nil {
			return nil, err
		}
		ys, err := b.Float(opts.YCol)
		if err != nil {
			return nil, err
		}
		if err := state.BindBatch(b); err != nil {
			return nil, err
		}

		for i := range xs {
			x, y := xs[i], ys[i]
			if math.IsNaN(x) || math.IsNaN(y) {
				havePrev, plotted = false, false
				continue
			}
			col, row, ok := proj.CellXY(x, y)
			if havePrev && prevOK && ok {
				skipFirst := plotted
				canvas.LineCells(prevCol, prevRow, col, row, proj.Width(), func(cell int) {
					if skipFirst {
						skipFirst = false
						return
					}
					state.Add(cell, i)
				})
				plotted = true
			} else {
				plotted = false
			}
			havePrev = true
			prevCol, prevRow, prevOK = col, row, ok
		}
	}
	return &Result{Canvas: resolved, Grids: state.Finalize()}, ctxErr
}
