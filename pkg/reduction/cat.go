package reduction

import (
	"github.com/tyrasd/datashader/pkg/grid"
	"github.com/tyrasd/datashader/pkg/source"
)

type countCatReduction struct {
	col        string
	categories []string
}

// CountCat counts records per cell and category, producing a grid with a
// category axis. The category order is established once at aggregation
// start: from categories when non-empty, otherwise from a discovery pass
// over the grouping column run by the aggregator. Summing the result over
// the category axis equals the plain count aggregate cell-by-cell.
func CountCat(col string, categories ...string) Reduction {
	return countCatReduction{col: col, categories: categories}
}

func (r countCatReduction) Name() string { return "countcat" }

func (r countCatReduction) Categorical() (string, []string, bool) { return r.col, r.categories, true }

func (r countCatReduction) Validate(s source.Source) error {
	return source.RequireColumns(s, r.col)
}

func (r countCatReduction) NewState(geom grid.Geometry, cats []string) State {
	if len(cats) == 0 {
		cats = r.categories
	}
	index := make(map[string]int, len(cats))
	for i, c := range cats {
		index[c] = i
	}
	return &countCatState{
		geom:  geom,
		col:   r.col,
		cats:  cats,
		index: index,
		data:  make([]float64, geom.Cells()*len(cats)),
	}
}

type countCatState struct {
	geom  grid.Geometry
	col   string
	cats  []string
	index map[string]int

	vals []string // bound batch column
	data []float64
}

func (s *countCatState) BindBatch(b source.Batch) error {
	vals, err := b.Str(s.col)
	if err != nil {
		return err
	}
	s.vals = vals
	return nil
}

func (s *countCatState) Add(cell, i int) {
	// A value outside the established category set is a data anomaly and
	// is skipped, like a NaN in a numeric column.
	k, ok := s.index[s.vals[i]]
	if !ok {
		return
	}
	s.data[cell*len(s.cats)+k]++
}

func (s *countCatState) Merge(o State) error {
	os, ok := o.(*countCatState)
	if !ok || len(os.cats) != len(s.cats) {
		return mergeMismatch("countcat")
	}
	for i, v := range os.data {
		s.data[i] += v
	}
	return nil
}

func (s *countCatState) Finalize() []Named {
	g := grid.NewCat(s.geom, s.cats)
	copy(g.Data, s.data)
	return []Named{{Name: "countcat", Grid: g}}
}
