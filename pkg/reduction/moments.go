package reduction

import (
	"math"

	"github.com/tyrasd/datashader/pkg/grid"
	"github.com/tyrasd/datashader/pkg/source"
)

type momentsReduction struct {
	colReduction
	std bool
}

// Var computes the population variance of the column per cell using a
// Welford-style (count, mean, M2) accumulator, which stays numerically
// stable when cell values are large relative to their spread.
func Var(col string) Reduction {
	return momentsReduction{colReduction{name: "var", col: col}, false}
}

// Std computes the population standard deviation of the column per cell.
func Std(col string) Reduction {
	return momentsReduction{colReduction{name: "std", col: col}, true}
}

func (r momentsReduction) NewState(geom grid.Geometry, _ []string) State {
	n := geom.Cells()
	return &momentsState{
		geom:  geom,
		name:  r.name,
		std:   r.std,
		bound: boundCol{col: r.col},
		count: make([]float64, n),
		mean:  make([]float64, n),
		m2:    make([]float64, n),
	}
}

type momentsState struct {
	geom  grid.Geometry
	name  string
	std   bool
	bound boundCol

	count []float64
	mean  []float64
	m2    []float64
}

func (s *momentsState) BindBatch(b source.Batch) error { return s.bound.bind(b) }

func (s *momentsState) Add(cell, i int) {
	v, ok := s.bound.value(i)
	if !ok {
		return
	}
	s.count[cell]++
	delta := v - s.mean[cell]
	s.mean[cell] += delta / s.count[cell]
	s.m2[cell] += delta * (v - s.mean[cell])
}

// Merge combines two partial moment accumulators with the parallel
// variance combination formula. Plain concatenation of M2 values would
// lose the between-partition term and understate the variance.
func (s *momentsState) Merge(o State) error {
	os, ok := o.(*momentsState)
	if !ok || os.std != s.std {
		return mergeMismatch(s.name)
	}
	for i := range s.count {
		na, nb := s.count[i], os.count[i]
		if nb == 0 {
			continue
		}
		if na == 0 {
			s.count[i], s.mean[i], s.m2[i] = nb, os.mean[i], os.m2[i]
			continue
		}
		n := na + nb
		delta := os.mean[i] - s.mean[i]
		s.mean[i] += delta * nb / n
		s.m2[i] += os.m2[i] + delta*delta*na*nb/n
		s.count[i] = n
	}
	return nil
}

func (s *momentsState) Finalize() []Named {
	g := grid.NewFloat(s.geom)
	for i, n := range s.count {
		if n == 0 {
			continue
		}
		v := s.m2[i] / n
		if s.std {
			v = math.Sqrt(v)
		}
		g.Data[i] = v
	}
	return []Named{{Name: s.name, Grid: g}}
}
