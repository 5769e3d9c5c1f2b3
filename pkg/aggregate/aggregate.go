// Package aggregate drives the streaming aggregation pass: it pulls
// record batches from a source, projects each record onto the canvas
// grid, and folds it into per-cell reduction state.
//
// # Memory and parallelism
//
// The pass holds one batch and one set of per-partition grids at a time,
// so peak memory is O(batch size + grid size) regardless of how many
// records the source yields. Partitions are processed independently with
// no shared mutable state and combined with the reduction's associative
// merge, so the final grid does not depend on how records are split into
// batches. Counts are exact under any partitioning; floating point
// accumulators can differ in the last bits with the merge order.
//
// # Failure model
//
// Configuration mistakes (invalid canvas, unknown columns) fail before
// the first batch is read. A record with out-of-range or NaN coordinates
// is dropped silently. Cancelling the context stops the pass between
// batches; the grids merged so far are finalized and returned together
// with the context's error.
package aggregate

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/tyrasd/datashader/pkg/canvas"
	"github.com/tyrasd/datashader/pkg/grid"
	"github.com/tyrasd/datashader/pkg/reduction"
	"github.com/tyrasd/datashader/pkg/source"
)

// Options tunes an aggregation pass. The zero value aggregates the "x"
// and "y" columns sequentially.
type Options struct {
	// XCol and YCol name the coordinate columns. Default "x" and "y".
	XCol string
	YCol string

	// Workers sets the number of parallel partitions. Values < 2 select
	// the sequential path. Results are identical either way.
	Workers int
}

func (o *Options) setDefaults() {
	if o.XCol == "" {
		o.XCol = "x"
	}
	if o.YCol == "" {
		o.YCol = "y"
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
}

// Result is the outcome of one aggregation pass.
type Result struct {
	// Canvas is the fully-ranged canvas the pass ran on. When the input
	// canvas left ranges unset this carries the inferred ones.
	Canvas *canvas.Canvas

	// Grids holds one named grid per reduction output: a single entry
	// for plain reductions, one per member for Summary.
	Grids []reduction.Named
}

// Grid returns the first output grid, which is the only one for
// non-summary reductions.
func (r *Result) Grid() *grid.Grid {
	return r.Grids[0].Grid
}

// Named returns the grid produced under the given name, or nil.
func (r *Result) Named(name string) *grid.Grid {
	for _, n := range r.Grids {
		if n.Name == name {
			return n.Grid
		}
	}
	return nil
}

// Points aggregates point records: each record lands in the single cell
// containing its (x, y) coordinate.
//
// If ctx is cancelled mid-pass, Points stops pulling batches and returns
// the grids merged so far alongside the context's error, so partial
// progress is never corrupted.
func Points(ctx context.Context, cvs *canvas.Canvas, src source.Source, red reduction.Reduction, opts Options) (*Result, error) {
	opts.setDefaults()
	resolved, proj, cats, err := setup(ctx, cvs, src, red, opts)
	if err != nil {
		return nil, err
	}
	if opts.Workers > 1 {
		return pointsParallel(ctx, resolved, proj, src, red, cats, opts)
	}
	return pointsSequential(ctx, resolved, proj, src, red, cats, opts)
}

// setup validates the configuration and resolves canvas ranges and
// category order, running the pre-passes the canvas or reduction need.
// Every error returned here is a configuration error raised before the
// aggregation pass proper.
func setup(ctx context.Context, cvs *canvas.Canvas, src source.Source, red reduction.Reduction, opts Options) (*canvas.Canvas, *canvas.Projector, []string, error) {
	if err := cvs.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if err := source.RequireColumns(src, opts.XCol, opts.YCol); err != nil {
		return nil, nil, nil, err
	}
	if err := red.Validate(src); err != nil {
		return nil, nil, nil, err
	}

	resolved := cvs
	if !cvs.Ranged() {
		xr, yr, err := scanRanges(ctx, src, opts.XCol, opts.YCol)
		if err != nil {
			return nil, nil, nil, err
		}
		resolved = cvs.WithRanges(xr, yr)
		if err := resolved.Validate(); err != nil {
			return nil, nil, nil, err
		}
	}

	var cats []string
	if col, declared, ok := red.Categorical(); ok {
		cats = declared
		if len(cats) == 0 {
			var err error
			if cats, err = scanCategories(ctx, src, col); err != nil {
				return nil, nil, nil, err
			}
		}
	}

	proj, err := resolved.Projector()
	if err != nil {
		return nil, nil, nil, err
	}
	return resolved, proj, cats, nil
}

func pointsSequential(ctx context.Context, cvs *canvas.Canvas, proj *canvas.Projector, src source.Source, red reduction.Reduction, cats []string, opts Options) (*Result, error) {
	state := red.NewState(cvs.Geometry(), cats)

	cur, err := src.Batches(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var ctxErr error
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
		if err := addPoints(state, proj, b, opts); err != nil {
			return nil, err
		}
	}
	return &Result{Canvas: cvs, Grids: state.Finalize()}, ctxErr
}

// addPoints folds one batch of point records into state.
func addPoints(state reduction.State, proj *canvas.Projector, b source.Batch, opts Options) error {
	xs, err := b.Float(opts.XCol)
	if err != nil {
		return err
	}
	ys, err := b.Float(opts.YCol)
	if err != nil {
		return err
	}
	if err := state.BindBatch(b); err != nil {
		return err
	}
	for i := range xs {
		if cell, ok := proj.Cell(xs[i], ys[i]); ok {
			state.Add(cell, i)
		}
	}
	return nil
}

// pointsParallel fans batches out to Workers goroutines, each folding
// into its own partial state, then merges the partials in worker order.
// The merge is associative and commutative, so the result matches the
// sequential path exactly.
func pointsParallel(ctx context.Context, cvs *canvas.Canvas, proj *canvas.Projector, src source.Source, red reduction.Reduction, cats []string, opts Options) (*Result, error) {
	cur, err := src.Batches(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	geom := cvs.Geometry()
	states := make([]reduction.State, opts.Workers)
	workErrs := make([]error, opts.Workers)
	batches := make(chan source.Batch, opts.Workers)

	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		states[w] = red.NewState(geom, cats)
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for b := range batches {
				if workErrs[w] != nil {
					continue // drain after failure
				}
				workErrs[w] = addPoints(states[w], proj, b, opts)
			}
		}(w)
	}

	var ctxErr error
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
			close(batches)
			wg.Wait()
			return nil, err
		}
		batches <- b
	}
	close(batches)
	wg.Wait()

	for _, err := range workErrs {
		if err != nil {
			return nil, err
		}
	}
	for w := 1; w < opts.Workers; w++ {
		if err := states[0].Merge(states[w]); err != nil {
			return nil, err
		}
	}
	return &Result{Canvas: cvs, Grids: states[0].Finalize()}, ctxErr
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
