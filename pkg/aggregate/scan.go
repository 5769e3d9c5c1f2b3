package aggregate

import (
	"context"
	"io"
	"math"
	"sort"

	"github.com/tyrasd/datashader/pkg/canvas"
	"github.com/tyrasd/datashader/pkg/errors"
	"github.com/tyrasd/datashader/pkg/source"
)

// scanRanges infers unset canvas ranges with one full pass over the
// coordinate columns, taking the inclusive min/max of the finite values.
// Cost is roughly one aggregation pass, which is why callers that reuse a
// canvas across calls should set ranges explicitly.
func scanRanges(ctx context.Context, src source.Source, xcol, ycol string) (canvas.Range, canvas.Range, error) {
	xlo, xhi := math.Inf(1), math.Inf(-1)
	ylo, yhi := math.Inf(1), math.Inf(-1)

	err := eachBatch(ctx, src, func(b source.Batch) error {
		xs, err := b.Float(xcol)
		if err != nil {
			return err
		}
		ys, err := b.Float(ycol)
		if err != nil {
			return err
		}
		for i := range xs {
			if x := xs[i]; !math.IsNaN(x) && !math.IsInf(x, 0) {
				xlo = math.Min(xlo, x)
				xhi = math.Max(xhi, x)
			}
			if y := ys[i]; !math.IsNaN(y) && !math.IsInf(y, 0) {
				ylo = math.Min(ylo, y)
				yhi = math.Max(yhi, y)
			}
		}
		return nil
	})
	if err != nil {
		return canvas.Range{}, canvas.Range{}, err
	}
	if xlo > xhi || ylo > yhi {
		return canvas.Range{}, canvas.Range{}, errors.New(errors.ErrCodeInvalidRange,
			"cannot infer axis ranges from a source with no finite coordinates")
	}
	// A degenerate single-value axis still needs a non-empty interval.
	if xlo == xhi {
		xhi = xlo + 1
	}
	if ylo == yhi {
		yhi = ylo + 1
	}
	return canvas.Range{Lo: xlo, Hi: xhi}, canvas.Range{Lo: ylo, Hi: yhi}, nil
}

// scanCategories establishes the category order for a categorical
// reduction with no declared categories: the distinct values of the
// grouping column, sorted for a stable, queryable order.
func scanCategories(ctx context.Context, src source.Source, col string) ([]string, error) {
	seen := make(map[string]bool)
	err := eachBatch(ctx, src, func(b source.Batch) error {
		vals, err := b.Str(col)
		if err != nil {
			return err
		}
		for _, v := range vals {
			seen[v] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(seen) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidReduction,
			"no category values found in column %q", col)
	}
	cats := make([]string, 0, len(seen))
	for v := range seen {
		cats = append(cats, v)
	}
	sort.Strings(cats)
	return cats, nil
}

// eachBatch runs fn over one full scan of the source.
func eachBatch(ctx context.Context, src source.Source, fn func(b source.Batch) error) error {
	cur, err := src.Batches(ctx)
	if err != nil {
		return err
	}
	defer cur.Close()
	for {
		b, err := cur.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
	}
}
