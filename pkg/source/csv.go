package source

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/tyrasd/datashader/pkg/errors"
)

// CSV is a Source that streams record batches from a headered CSV file.
// The file is re-opened for every scan, so the range-inference pass and
// the aggregation pass each read it front to back without buffering the
// whole file.
type CSV struct {
	Path      string
	BatchSize int // records per batch; DefaultBatchSize if 0

	header []string
}

// OpenCSV opens path, reads the header row, and returns a CSV source.
func OpenCSV(path string) (*CSV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "opening %s", path)
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "reading header of %s", path)
	}
	return &CSV{Path: path, header: header}, nil
}

// Columns implements Source.
func (c *CSV) Columns() []string {
	out := make([]string, len(c.header))
	copy(out, c.header)
	return out
}

// Batches implements Source. Each call re-opens the file.
func (c *CSV) Batches(ctx context.Context) (Cursor, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "opening %s", c.Path)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = len(c.header)
	if _, err := r.Read(); err != nil { // skip header
		f.Close()
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "reading header of %s", c.Path)
	}
	size := c.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &csvCursor{header: c.header, r: r, f: f, size: size}, nil
}

type csvCursor struct {
	header []string
	r      *csv.Reader
	f      *os.File
	size   int
	done   bool
}

func (c *csvCursor) Next(ctx context.Context) (Batch, error) {
	if c.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([][]string, 0, c.size)
	for len(rows) < c.size {
		rec, err := c.r.Read()
		if err == io.EOF {
			c.done = true
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "reading %s", c.f.Name())
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return nil, io.EOF
	}
	return &rowBatch{header: c.header, rows: rows}, nil
}

func (c *csvCursor) Close() error { return c.f.Close() }

// rowBatch adapts row-oriented records to the columnar Batch interface.
// Column extraction is done on demand and cached per batch, so the hot
// aggregation loop reads plain slices.
type rowBatch struct {
	header []string
	rows   [][]string

	floatCache map[string][]float64
	strCache   map[string][]string
}

func (b *rowBatch) Len() int { return len(b.rows) }

func (b *rowBatch) colIndex(col string) (int, error) {
	for i, name := range b.header {
		if name == col {
			return i, nil
		}
	}
	return 0, errors.New(errors.ErrCodeUnknownColumn, "no column %q", col)
}

func (b *rowBatch) Float(col string) ([]float64, error) {
	if vals, ok := b.floatCache[col]; ok {
		return vals, nil
	}
	i, err := b.colIndex(col)
	if err != nil {
		return nil, err
	}
	vals := make([]float64, len(b.rows))
	for j, row := range b.rows {
		// Unparseable fields become NaN and are skipped by the
		// reductions, matching the missing-value data-anomaly rule.
		v, err := strconv.ParseFloat(row[i], 64)
		if err != nil {
			v = math.NaN()
		}
		vals[j] = v
	}
	if b.floatCache == nil {
		b.floatCache = make(map[string][]float64)
	}
	b.floatCache[col] = vals
	return vals, nil
}

func (b *rowBatch) Str(col string) ([]string, error) {
	if vals, ok := b.strCache[col]; ok {
		return vals, nil
	}
	i, err := b.colIndex(col)
	if err != nil {
		return nil, err
	}
	vals := make([]string, len(b.rows))
	for j, row := range b.rows {
		vals[j] = row[i]
	}
	if b.strCache == nil {
		b.strCache = make(map[string][]string)
	}
	b.strCache[col] = vals
	return vals, nil
}
