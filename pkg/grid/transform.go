package grid

import (
	"math"
	"sort"
)

// Where returns a new grid in which cells whose value does not satisfy
// keep are set to the sentinel. Already-masked cells stay masked; keep is
// never called for them.
func (g *Grid) Where(keep func(v float64) bool) *Grid {
	out := g.Clone()
	s := out.Sentinel()
	for i, v := range out.Data {
		if out.Masked(v) {
			continue
		}
		if !keep(v) {
			out.Data[i] = s
		}
	}
	return out
}

// Apply returns a new grid with f applied to every non-masked cell.
// Masked cells keep the sentinel; f never sees them.
func (g *Grid) Apply(f func(v float64) float64) *Grid {
	out := g.Clone()
	for i, v := range out.Data {
		if out.Masked(v) {
			continue
		}
		out.Data[i] = f(v)
	}
	return out
}

// Combine returns a new grid with f applied elementwise to pairs of
// non-masked cells from g and o. A cell masked in either input is masked
// in the output. Combining grids built from different canvases is a
// configuration error.
func (g *Grid) Combine(o *Grid, f func(a, b float64) float64) (*Grid, error) {
	if err := g.compatible(o); err != nil {
		return nil, err
	}
	out := g.like()
	for i := range g.Data {
		a, b := g.Data[i], o.Data[i]
		if g.Masked(a) || o.Masked(b) {
			continue
		}
		out.Data[i] = f(a, b)
	}
	return out, nil
}

// PercentileFilter returns a new grid retaining only cells at or above the
// pth percentile of the non-masked values; all other cells are set to the
// sentinel. p is clamped to [0, 100]. An all-masked grid is returned
// unchanged.
func (g *Grid) PercentileFilter(p float64) *Grid {
	vals := g.unmaskedValues()
	if len(vals) == 0 {
		return g.Clone()
	}
	p = math.Min(100, math.Max(0, p))
	sort.Float64s(vals)

	// Nearest-rank percentile over the non-masked population.
	rank := int(math.Ceil(p / 100 * float64(len(vals))))
	if rank > 0 {
		rank--
	}
	cut := vals[rank]

	return g.Where(func(v float64) bool { return v >= cut })
}

// SumCats reduces the category axis by summation, producing a 2D grid.
// A cell with zero total keeps the integer sentinel, matching the
// non-categorical count aggregate for the same data.
func (g *Grid) SumCats() *Grid {
	if g.Cats == nil {
		return g.Clone()
	}
	out := &Grid{Geom: g.Geom, Kind: g.Kind, Data: make([]float64, g.Geom.Cells())}
	nc := len(g.Cats)
	for cell := 0; cell < g.Geom.Cells(); cell++ {
		var sum float64
		for k := 0; k < nc; k++ {
			sum += g.Data[cell*nc+k]
		}
		out.Data[cell] = sum
	}
	return out
}

// SelectCats returns a new categorical grid restricted to the named
// categories, in the order given. Unknown names are a configuration error.
func (g *Grid) SelectCats(names ...string) (*Grid, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		k, err := g.CatIndex(name)
		if err != nil {
			return nil, err
		}
		idx[i] = k
	}
	out := NewCat(g.Geom, names)
	nc, oc := len(g.Cats), len(names)
	for cell := 0; cell < g.Geom.Cells(); cell++ {
		for i, k := range idx {
			out.Data[cell*oc+i] = g.Data[cell*nc+k]
		}
	}
	return out, nil
}

// MinMax returns the smallest and largest non-masked values and whether
// any non-masked value exists.
func (g *Grid) MinMax() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.Data {
		if g.Masked(v) {
			continue
		}
		ok = true
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi, ok
}

// Total returns the sum of all non-masked values across every cell (and
// category, for categorical grids).
func (g *Grid) Total() float64 {
	var sum float64
	for _, v := range g.Data {
		if !g.Masked(v) {
			sum += v
		}
	}
	return sum
}

func (g *Grid) unmaskedValues() []float64 {
	vals := make([]float64, 0, len(g.Data))
	for _, v := range g.Data {
		if !g.Masked(v) {
			vals = append(vals, v)
		}
	}
	return vals
}
