package reduction

import (
	"math"

	"github.com/tyrasd/datashader/pkg/grid"
	"github.com/tyrasd/datashader/pkg/source"
)

// colReduction carries the shared column binding of the single-column
// reductions.
type colReduction struct {
	name string
	col  string
}

func (r colReduction) Name() string { return r.name }

func (r colReduction) Categorical() (string, []string, bool) { return "", nil, false }

func (r colReduction) Validate(s source.Source) error {
	return source.RequireColumns(s, r.col)
}

// boundCol caches one batch's column slice, or nil when the reduction has
// no target column.
type boundCol struct {
	col  string
	vals []float64
}

func (b *boundCol) bind(batch source.Batch) error {
	if b.col == "" {
		b.vals = nil
		return nil
	}
	vals, err := batch.Float(b.col)
	if err != nil {
		return err
	}
	b.vals = vals
	return nil
}

// value returns record i's column value and whether it is usable. With no
// bound column every record counts as usable.
func (b *boundCol) value(i int) (float64, bool) {
	if b.vals == nil {
		return 0, true
	}
	v := b.vals[i]
	return v, !math.IsNaN(v)
}

// =============================================================================
// count
// =============================================================================

type countReduction struct{ colReduction }

// Count counts records per cell. With a non-empty column, records whose
// column value is missing are not counted.
func Count(col string) Reduction {
	return countReduction{colReduction{name: "count", col: col}}
}

func (r countReduction) NewState(geom grid.Geometry, _ []string) State {
	return &countState{geom: geom, bound: boundCol{col: r.col}, data: make([]float64, geom.Cells())}
}

type countState struct {
	geom  grid.Geometry
	bound boundCol
	data  []float64
}

func (s *countState) BindBatch(b source.Batch) error { return s.bound.bind(b) }

func (s *countState) Add(cell, i int) {
	if _, ok := s.bound.value(i); ok {
		s.data[cell]++
	}
}

func (s *countState) Merge(o State) error {
	os, ok := o.(*countState)
	if !ok {
		return mergeMismatch("count")
	}
	for i, v := range os.data {
		s.data[i] += v
	}
	return nil
}

func (s *countState) Finalize() []Named {
	g := grid.NewInt(s.geom)
	copy(g.Data, s.data)
	return []Named{{Name: "count", Grid: g}}
}

// =============================================================================
// any
// =============================================================================

type anyReduction struct{ colReduction }

// Any records whether each cell received at least one usable record.
// Repeated touches saturate.
func Any(col string) Reduction {
	return anyReduction{colReduction{name: "any", col: col}}
}

func (r anyReduction) NewState(geom grid.Geometry, _ []string) State {
	return &anyState{geom: geom, bound: boundCol{col: r.col}, data: make([]float64, geom.Cells())}
}

type anyState struct {
	geom  grid.Geometry
	bound boundCol
	data  []float64
}

func (s *anyState) BindBatch(b source.Batch) error { return s.bound.bind(b) }

func (s *anyState) Add(cell, i int) {
	if _, ok := s.bound.value(i); ok {
		s.data[cell] = 1
	}
}

func (s *anyState) Merge(o State) error {
	os, ok := o.(*anyState)
	if !ok {
		return mergeMismatch("any")
	}
	for i, v := range os.data {
		if v != 0 {
			s.data[i] = 1
		}
	}
	return nil
}

func (s *anyState) Finalize() []Named {
	g := grid.NewInt(s.geom)
	copy(g.Data, s.data)
	return []Named{{Name: "any", Grid: g}}
}

// =============================================================================
// sum / min / max
// =============================================================================

// foldKind selects the pairwise combining rule shared by sum, min, and max.
type foldKind int

const (
	foldSum foldKind = iota
	foldMin
	foldMax
)

type foldReduction struct {
	colReduction
	kind foldKind
}

// Sum totals the column per cell; missing values are skipped.
func Sum(col string) Reduction {
	return foldReduction{colReduction{name: "sum", col: col}, foldSum}
}

// Min keeps the smallest column value per cell.
func Min(col string) Reduction {
	return foldReduction{colReduction{name: "min", col: col}, foldMin}
}

// Max keeps the largest column value per cell.
func Max(col string) Reduction {
	return foldReduction{colReduction{name: "max", col: col}, foldMax}
}

func (r foldReduction) NewState(geom grid.Geometry, _ []string) State {
	s := &foldState{
		geom:  geom,
		name:  r.name,
		kind:  r.kind,
		bound: boundCol{col: r.col},
		data:  make([]float64, geom.Cells()),
	}
	for i := range s.data {
		s.data[i] = math.NaN()
	}
	return s
}

type foldState struct {
	geom  grid.Geometry
	name  string
	kind  foldKind
	bound boundCol
	data  []float64
}

func (s *foldState) BindBatch(b source.Batch) error { return s.bound.bind(b) }

func (s *foldState) fold(cell int, v float64) {
	cur := s.data[cell]
	if math.IsNaN(cur) {
		s.data[cell] = v
		return
	}
	switch s.kind {
	case foldSum:
		s.data[cell] = cur + v
	case foldMin:
		s.data[cell] = math.Min(cur, v)
	case foldMax:
		s.data[cell] = math.Max(cur, v)
	}
}

func (s *foldState) Add(cell, i int) {
	if v, ok := s.bound.value(i); ok {
		s.fold(cell, v)
	}
}

func (s *foldState) Merge(o State) error {
	os, ok := o.(*foldState)
	if !ok || os.kind != s.kind {
		return mergeMismatch(s.name)
	}
	for i, v := range os.data {
		if !math.IsNaN(v) {
			s.fold(i, v)
		}
	}
	return nil
}

func (s *foldState) Finalize() []Named {
	g := grid.NewFloat(s.geom)
	copy(g.Data, s.data)
	return []Named{{Name: s.name, Grid: g}}
}

// =============================================================================
// mean
// =============================================================================

type meanReduction struct{ colReduction }

// Mean averages the column per cell: a (sum, count) pair merged pairwise,
// finalized to sum/count, with the NaN sentinel where no record landed.
func Mean(col string) Reduction {
	return meanReduction{colReduction{name: "mean", col: col}}
}

func (r meanReduction) NewState(geom grid.Geometry, _ []string) State {
	return &meanState{
		geom:   geom,
		bound:  boundCol{col: r.col},
		sums:   make([]float64, geom.Cells()),
		counts: make([]float64, geom.Cells()),
	}
}

type meanState struct {
	geom   grid.Geometry
	bound  boundCol
	sums   []float64
	counts []float64
}

func (s *meanState) BindBatch(b source.Batch) error { return s.bound.bind(b) }

func (s *meanState) Add(cell, i int) {
	if v, ok := s.bound.value(i); ok {
		s.sums[cell] += v
		s.counts[cell]++
	}
}

func (s *meanState) Merge(o State) error {
	os, ok := o.(*meanState)
	if !ok {
		return mergeMismatch("mean")
	}
	for i := range os.sums {
		s.sums[i] += os.sums[i]
		s.counts[i] += os.counts[i]
	}
	return nil
}

func (s *meanState) Finalize() []Named {
	g := grid.NewFloat(s.geom)
	for i, n := range s.counts {
		if n > 0 {
			g.Data[i] = s.sums[i] / n
		}
	}
	return []Named{{Name: "mean", Grid: g}}
}
