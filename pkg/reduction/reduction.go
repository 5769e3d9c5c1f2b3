// Package reduction defines the incremental per-cell statistics computed
// by the aggregation pass.
//
// A Reduction is a closed, tagged variant (count, any, sum, min, max,
// mean, var, std, countcat, summary) behind a uniform state contract:
// allocate per-partition state, fold records in, merge partial states,
// finalize to output grids. The variant is resolved once at aggregation
// setup, never per record.
//
// # Associativity
//
// Every reduction's Merge is associative and commutative, which is what
// makes the aggregation pass safe to split across batches, goroutines, or
// partitions with a final merge: the result is identical for any
// partitioning of the same records. The variance reduction maintains
// Welford-style moment accumulators and merges them with the parallel
// combination formula rather than naively, both for associativity and to
// avoid catastrophic cancellation.
//
// # Missing values
//
// A NaN in a reduction's bound column is a data anomaly, not an error:
// the update for that record is skipped and the pass continues.
// Referencing a column the source does not carry, by contrast, is a fatal
// configuration error caught by Validate before any data is read.
package reduction

import (
	"github.com/tyrasd/datashader/pkg/errors"
	"github.com/tyrasd/datashader/pkg/grid"
	"github.com/tyrasd/datashader/pkg/source"
)

// Named is one finalized output grid. Single-statistic reductions produce
// exactly one with their own name; Summary produces one per member.
type Named struct {
	Name string
	Grid *grid.Grid
}

// Reduction is one immutable, setup-time-resolved statistic definition.
type Reduction interface {
	// Name identifies the reduction ("count", "mean", ...).
	Name() string

	// Validate checks the reduction's column bindings against the source.
	Validate(s source.Source) error

	// Categorical returns the grouping column and declared category order
	// for reductions with a category axis; ok is false otherwise. An
	// empty cats slice asks the aggregator to discover the distinct
	// values of the column in a pre-pass.
	Categorical() (col string, cats []string, ok bool)

	// NewState allocates per-partition accumulation state. cats is the
	// established category order for categorical reductions, nil otherwise.
	NewState(geom grid.Geometry, cats []string) State
}

// State is the mutable per-partition accumulator for one reduction.
// A State is confined to one goroutine between Merge points; immutability
// of everything else keeps the hot update loop lock-free.
type State interface {
	// BindBatch resolves the reduction's columns against a batch once, so
	// Add runs on plain slices.
	BindBatch(b source.Batch) error

	// Add folds record i of the bound batch into cell.
	Add(cell, i int)

	// Merge folds another partial state of the same reduction and
	// geometry into the receiver.
	Merge(o State) error

	// Finalize produces the output grid(s). The state must not be used
	// afterwards.
	Finalize() []Named
}

func mergeMismatch(want string) error {
	return errors.New(errors.ErrCodeInternal, "merging mismatched %s states", want)
}
