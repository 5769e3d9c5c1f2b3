package source

import (
	"context"
	"io"
	"math"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tyrasd/datashader/pkg/errors"
)

// MongoSource streams record batches from a MongoDB collection. Documents
// are pulled lazily through the driver's cursor, so collections larger
// than memory aggregate in bounded space like any other source.
//
// Column names are document field names and must be declared up front;
// MongoDB has no fixed schema to validate against, so the declared
// columns stand in for one.
type MongoSource struct {
	Coll      *mongo.Collection
	FloatCols []string // numeric field names
	StrCols   []string // string field names (categories)
	Filter    bson.D   // optional query filter; nil means all documents
	BatchSize int      // records per batch; DefaultBatchSize if 0
}

// Columns implements Source.
func (m *MongoSource) Columns() []string {
	out := make([]string, 0, len(m.FloatCols)+len(m.StrCols))
	out = append(out, m.FloatCols...)
	out = append(out, m.StrCols...)
	return out
}

// Batches implements Source. Each call issues a fresh Find.
func (m *MongoSource) Batches(ctx context.Context) (Cursor, error) {
	if m.Coll == nil {
		return nil, errors.New(errors.ErrCodeInvalidSource, "mongo source has no collection")
	}
	size := m.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	// Project only the declared columns to keep wire traffic proportional
	// to what the aggregation actually reads.
	proj := bson.D{{Key: "_id", Value: 0}}
	for _, c := range m.Columns() {
		proj = append(proj, bson.E{Key: c, Value: 1})
	}

	filter := m.Filter
	if filter == nil {
		filter = bson.D{}
	}
	cur, err := m.Coll.Find(ctx, filter,
		options.Find().SetProjection(proj).SetBatchSize(int32(size)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err,
			"querying %s", m.Coll.Name())
	}
	return &mongoCursor{src: m, cur: cur, size: size}, nil
}

type mongoCursor struct {
	src  *MongoSource
	cur  *mongo.Cursor
	size int
}

func (c *mongoCursor) Next(ctx context.Context) (Batch, error) {
	b := &mongoBatch{
		floats: make(map[string][]float64, len(c.src.FloatCols)),
		strs:   make(map[string][]string, len(c.src.StrCols)),
	}
	for _, col := range c.src.FloatCols {
		b.floats[col] = make([]float64, 0, c.size)
	}
	for _, col := range c.src.StrCols {
		b.strs[col] = make([]string, 0, c.size)
	}

	for b.n < c.size && c.cur.Next(ctx) {
		var doc bson.M
		if err := c.cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "decoding document")
		}
		for _, col := range c.src.FloatCols {
			b.floats[col] = append(b.floats[col], asFloat(doc[col]))
		}
		for _, col := range c.src.StrCols {
			s, _ := doc[col].(string)
			b.strs[col] = append(b.strs[col], s)
		}
		b.n++
	}
	if err := c.cur.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "iterating cursor")
	}
	if b.n == 0 {
		return nil, io.EOF
	}
	return b, nil
}

func (c *mongoCursor) Close() error {
	return c.cur.Close(context.Background())
}

// asFloat coerces the numeric BSON types to float64. Anything else is a
// missing value and becomes NaN.
func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	default:
		return math.NaN()
	}
}

type mongoBatch struct {
	n      int
	floats map[string][]float64
	strs   map[string][]string
}

func (b *mongoBatch) Len() int { return b.n }

func (b *mongoBatch) Float(col string) ([]float64, error) {
	vals, ok := b.floats[col]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownColumn, "no numeric column %q", col)
	}
	return vals, nil
}

func (b *mongoBatch) Str(col string) ([]string, error) {
	vals, ok := b.strs[col]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownColumn, "no string column %q", col)
	}
	return vals, nil
}
