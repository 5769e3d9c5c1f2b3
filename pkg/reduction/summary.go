package reduction

import (
	"github.com/tyrasd/datashader/pkg/errors"
	"github.com/tyrasd/datashader/pkg/grid"
	"github.com/tyrasd/datashader/pkg/source"
)

// Item names one member reduction of a Summary.
type Item struct {
	Name string
	R    Reduction
}

type summaryReduction struct {
	items []Item
}

// Summary bundles independent named reductions into one: a single
// streaming pass updates every member, and Finalize yields one named grid
// per member. Members may bind different columns.
func Summary(items ...Item) Reduction {
	return summaryReduction{items: items}
}

func (r summaryReduction) Name() string { return "summary" }

// Categorical returns the grouping column of the first categorical member,
// so the aggregator's category discovery covers summaries too.
func (r summaryReduction) Categorical() (string, []string, bool) {
	for _, it := range r.items {
		if col, cats, ok := it.R.Categorical(); ok {
			return col, cats, true
		}
	}
	return "", nil, false
}

func (r summaryReduction) Validate(s source.Source) error {
	if len(r.items) == 0 {
		return errors.New(errors.ErrCodeInvalidReduction, "summary has no members")
	}
	seen := make(map[string]bool, len(r.items))
	for _, it := range r.items {
		if it.Name == "" {
			return errors.New(errors.ErrCodeInvalidReduction, "summary member has no name")
		}
		if seen[it.Name] {
			return errors.New(errors.ErrCodeInvalidReduction, "duplicate summary member %q", it.Name)
		}
		seen[it.Name] = true
		if _, nested := it.R.(summaryReduction); nested {
			return errors.New(errors.ErrCodeInvalidReduction, "summary member %q is itself a summary", it.Name)
		}
		if err := it.R.Validate(s); err != nil {
			return err
		}
	}
	return nil
}

func (r summaryReduction) NewState(geom grid.Geometry, cats []string) State {
	s := &summaryState{names: make([]string, len(r.items)), states: make([]State, len(r.items))}
	for i, it := range r.items {
		s.names[i] = it.Name
		s.states[i] = it.R.NewState(geom, cats)
	}
	return s
}

type summaryState struct {
	names  []string
	states []State
}

func (s *summaryState) BindBatch(b source.Batch) error {
	for _, st := range s.states {
		if err := st.BindBatch(b); err != nil {
			return err
		}
	}
	return nil
}

func (s *summaryState) Add(cell, i int) {
	for _, st := range s.states {
		st.Add(cell, i)
	}
}

func (s *summaryState) Merge(o State) error {
	os, ok := o.(*summaryState)
	if !ok || len(os.states) != len(s.states) {
		return mergeMismatch("summary")
	}
	for i, st := range s.states {
		if err := st.Merge(os.states[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *summaryState) Finalize() []Named {
	out := make([]Named, 0, len(s.states))
	for i, st := range s.states {
		for _, n := range st.Finalize() {
			out = append(out, Named{Name: s.names[i], Grid: n.Grid})
		}
	}
	return out
}
