package source

import (
	"context"
	"io"

	"github.com/tyrasd/datashader/pkg/errors"
)

// DefaultBatchSize bounds the number of records per batch when a source
// does not override it. Chosen so a batch of a few float columns stays
// well under a megabyte.
const DefaultBatchSize = 65536

// Memory is an in-memory Source backed by column slices. All columns must
// have equal length. The zero value is an empty source; use the Add
// methods to populate it.
type Memory struct {
	BatchSize int // records per batch; DefaultBatchSize if 0

	order  []string
	floats map[string][]float64
	strs   map[string][]string
	n      int
}

// NewMemory creates an empty in-memory source.
func NewMemory() *Memory {
	return &Memory{
		floats: make(map[string][]float64),
		strs:   make(map[string][]string),
	}
}

// FromXY creates an in-memory source with two coordinate columns named
// "x" and "y".
func FromXY(xs, ys []float64) *Memory {
	m := NewMemory()
	m.AddFloat("x", xs)
	m.AddFloat("y", ys)
	return m
}

// AddFloat attaches a numeric column. Returns m for chaining.
func (m *Memory) AddFloat(name string, vals []float64) *Memory {
	m.order = append(m.order, name)
	m.floats[name] = vals
	if len(vals) > m.n {
		m.n = len(vals)
	}
	return m
}

// AddStr attaches a string column. Returns m for chaining.
func (m *Memory) AddStr(name string, vals []string) *Memory {
	m.order = append(m.order, name)
	m.strs[name] = vals
	if len(vals) > m.n {
		m.n = len(vals)
	}
	return m
}

// Len returns the number of records.
func (m *Memory) Len() int { return m.n }

// Columns implements Source.
func (m *Memory) Columns() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Batches implements Source. Each call starts a fresh scan.
func (m *Memory) Batches(ctx context.Context) (Cursor, error) {
	for name, col := range m.floats {
		if len(col) != m.n {
			return nil, errors.New(errors.ErrCodeInvalidSource,
				"column %q has %d records, want %d", name, len(col), m.n)
		}
	}
	for name, col := range m.strs {
		if len(col) != m.n {
			return nil, errors.New(errors.ErrCodeInvalidSource,
				"column %q has %d records, want %d", name, len(col), m.n)
		}
	}
	size := m.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &memCursor{src: m, size: size}, nil
}

type memCursor struct {
	src  *Memory
	size int
	pos  int
}

func (c *memCursor) Next(ctx context.Context) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.pos >= c.src.n {
		return nil, io.EOF
	}
	end := c.pos + c.size
	if end > c.src.n {
		end = c.src.n
	}
	b := &memBatch{src: c.src, lo: c.pos, hi: end}
	c.pos = end
	return b, nil
}

func (c *memCursor) Close() error { return nil }

type memBatch struct {
	src    *Memory
	lo, hi int
}

func (b *memBatch) Len() int { return b.hi - b.lo }

func (b *memBatch) Float(col string) ([]float64, error) {
	vals, ok := b.src.floats[col]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownColumn, "no numeric column %q", col)
	}
	return vals[b.lo:b.hi], nil
}

func (b *memBatch) Str(col string) ([]string, error) {
	vals, ok := b.src.strs[col]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownColumn, "no string column %q", col)
	}
	return vals[b.lo:b.hi], nil
}
