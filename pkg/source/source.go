// Package source defines the record-batch interface consumed by the
// aggregation pass, together with in-memory, CSV, HTTP, and MongoDB
// implementations.
//
// A Source is a lazily-consumed sequence of bounded record batches. The
// aggregator pulls batches one at a time without assuming the total record
// count is known, so peak memory stays proportional to one batch plus the
// output grid. Opening a new cursor starts a fresh scan; the aggregator
// relies on this for the range-inference and category-discovery passes
// that precede aggregation when the canvas leaves them unset.
//
// # Columns
//
// Batches expose named columns: float64 columns for coordinates and
// reduction values, string columns for categorical grouping. Referencing a
// column the source does not carry is a configuration error surfaced at
// aggregation setup, never per record. Unparseable or missing numeric
// values inside a column are represented as NaN and skipped by the
// reductions as a data anomaly.
package source

import (
	"context"

	"github.com/tyrasd/datashader/pkg/errors"
)

// Batch is one bounded chunk of records with named columns. Implementations
// return column slices of exactly Len() elements.
type Batch interface {
	// Len returns the number of records in the batch.
	Len() int

	// Float returns the named numeric column. Missing values are NaN.
	Float(col string) ([]float64, error)

	// Str returns the named string column.
	Str(col string) ([]string, error)
}

// Cursor streams batches from a single scan of a source.
// Next returns io.EOF after the last batch.
type Cursor interface {
	Next(ctx context.Context) (Batch, error)
	Close() error
}

// Source is a lazily-consumed sequence of record batches.
type Source interface {
	// Columns lists the column names the source carries, used to validate
	// reduction and coordinate bindings before any data pass runs.
	Columns() []string

	// Batches opens a fresh scan over the source.
	Batches(ctx context.Context) (Cursor, error)
}

// HasColumn reports whether the source carries the named column.
func HasColumn(s Source, col string) bool {
	for _, c := range s.Columns() {
		if c == col {
			return true
		}
	}
	return false
}

// RequireColumns returns a configuration error naming the first column the
// source does not carry.
func RequireColumns(s Source, cols ...string) error {
	for _, col := range cols {
		if col == "" {
			continue
		}
		if !HasColumn(s, col) {
			return errors.New(errors.ErrCodeUnknownColumn,
				"source has no column %q (columns: %v)", col, s.Columns())
		}
	}
	return nil
}
