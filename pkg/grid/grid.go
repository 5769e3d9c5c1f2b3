// Package grid defines the dense aggregate grids produced by the
// aggregation pass and the post-aggregation transform operations on them.
//
// A Grid is the fixed-size 2D (or 3D, when categorical) array of per-cell
// aggregate values. Grids are created once per aggregation call and are
// read-only afterwards: every transform produces a new Grid, preserving
// the original for reuse by further transforms or shading calls. This
// makes read-sharing across goroutines safe without locking.
//
// # Sentinels
//
// Cells that received no data carry a sentinel value:
//   - KindFloat grids use NaN
//   - KindInt grids use 0 (integers have no native missing representation)
//
// All transform operations preserve the sentinel: masked cells stay
// masked, and elementwise functions are applied only to non-masked cells.
//
// # Geometry
//
// Every Grid carries the Geometry of the canvas it was aggregated on.
// Two grids may be combined elementwise only if their geometries are
// identical; mixing mismatched grids is a configuration error.
package grid

import (
	"math"

	"github.com/tyrasd/datashader/pkg/errors"
)

// Kind describes the value type of a grid's cells and therefore its
// empty-cell sentinel.
type Kind int

const (
	// KindFloat grids hold float64 values with NaN as the empty-cell sentinel.
	KindFloat Kind = iota

	// KindInt grids hold integer-valued cells with 0 as the empty-cell
	// sentinel. Values are stored as float64 for a uniform transform and
	// shade path; counts stay exact up to 2^53.
	KindInt
)

// Geometry is the immutable shape and coordinate extent shared by a canvas
// and every grid aggregated on it. Row 0 corresponds to the low end of the
// y range.
type Geometry struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	XMin   float64 `json:"x_min"`
	XMax   float64 `json:"x_max"`
	YMin   float64 `json:"y_min"`
	YMax   float64 `json:"y_max"`
	XLog   bool    `json:"x_log,omitempty"`
	YLog   bool    `json:"y_log,omitempty"`
}

// Cells returns the number of cells in one 2D plane of the grid.
func (g Geometry) Cells() int {
	return g.Width * g.Height
}

// Equal reports whether two geometries have identical shape, ranges, and
// axis scales. Only grids with equal geometries may be combined.
func (g Geometry) Equal(o Geometry) bool {
	return g == o
}

// Grid is a dense aggregate array with shape (Height, Width) or, when Cats
// is non-nil, (Height, Width, len(Cats)). Data is laid out row-major with
// the category axis innermost.
type Grid struct {
	Geom Geometry
	Kind Kind

	// Cats is the stable, ordered category axis for categorical aggregates,
	// nil otherwise. The order is established once at aggregation start and
	// never changes, so downstream category selection is well-defined.
	Cats []string

	// Data holds Height*Width*max(1, len(Cats)) cell values.
	Data []float64
}

// NewFloat creates a float grid with every cell set to the NaN sentinel.
func NewFloat(geom Geometry) *Grid {
	g := &Grid{Geom: geom, Kind: KindFloat, Data: make([]float64, geom.Cells())}
	for i := range g.Data {
		g.Data[i] = math.NaN()
	}
	return g
}

// NewInt creates an integer grid with every cell set to the 0 sentinel.
func NewInt(geom Geometry) *Grid {
	return &Grid{Geom: geom, Kind: KindInt, Data: make([]float64, geom.Cells())}
}

// NewCat creates a categorical integer grid with the given category order
// and every counter set to 0.
func NewCat(geom Geometry, cats []string) *Grid {
	c := make([]string, len(cats))
	copy(c, cats)
	return &Grid{
		Geom: geom,
		Kind: KindInt,
		Cats: c,
		Data: make([]float64, geom.Cells()*len(cats)),
	}
}

// Categorical reports whether the grid has a category axis.
func (g *Grid) Categorical() bool {
	return g.Cats != nil
}

// NumCats returns the length of the category axis, or 0.
func (g *Grid) NumCats() int {
	return len(g.Cats)
}

// CatIndex returns the index of the named category, or an error if the
// category does not exist on this grid.
func (g *Grid) CatIndex(name string) (int, error) {
	for i, c := range g.Cats {
		if c == name {
			return i, nil
		}
	}
	return 0, errors.New(errors.ErrCodeUnknownCategory, "grid has no category %q", name)
}

// Index returns the flat index of (row, col) for a non-categorical grid.
func (g *Grid) Index(row, col int) int {
	return row*g.Geom.Width + col
}

// At returns the value at (row, col) of a non-categorical grid.
func (g *Grid) At(row, col int) float64 {
	return g.Data[g.Index(row, col)]
}

// CatAt returns the value at (row, col, cat) of a categorical grid.
func (g *Grid) CatAt(row, col, cat int) float64 {
	return g.Data[(row*g.Geom.Width+col)*len(g.Cats)+cat]
}

// Sentinel returns the empty-cell sentinel for the grid's kind.
func (g *Grid) Sentinel() float64 {
	if g.Kind == KindInt {
		return 0
	}
	return math.NaN()
}

// Masked reports whether v is the empty-cell sentinel for the grid's kind.
func (g *Grid) Masked(v float64) bool {
	if g.Kind == KindInt {
		return v == 0
	}
	return math.IsNaN(v)
}

// Clone returns a deep copy with the same geometry, kind, and categories.
func (g *Grid) Clone() *Grid {
	out := &Grid{Geom: g.Geom, Kind: g.Kind, Data: make([]float64, len(g.Data))}
	copy(out.Data, g.Data)
	if g.Cats != nil {
		out.Cats = make([]string, len(g.Cats))
		copy(out.Cats, g.Cats)
	}
	return out
}

// like returns an empty (all-sentinel) grid with the same shape as g.
func (g *Grid) like() *Grid {
	out := g.Clone()
	s := out.Sentinel()
	for i := range out.Data {
		out.Data[i] = s
	}
	return out
}

// compatible returns a configuration error unless the two grids share
// geometry, kind, and category axis.
func (g *Grid) compatible(o *Grid) error {
	if !g.Geom.Equal(o.Geom) {
		return errors.New(errors.ErrCodeIncompatibleGrids,
			"grid geometries differ: %dx%d [%g,%g]x[%g,%g] vs %dx%d [%g,%g]x[%g,%g]",
			g.Geom.Width, g.Geom.Height, g.Geom.XMin, g.Geom.XMax, g.Geom.YMin, g.Geom.YMax,
			o.Geom.Width, o.Geom.Height, o.Geom.XMin, o.Geom.XMax, o.Geom.YMin, o.Geom.YMax)
	}
	if g.Kind != o.Kind {
		return errors.New(errors.ErrCodeIncompatibleGrids, "grid kinds differ")
	}
	if len(g.Cats) != len(o.Cats) {
		return errors.New(errors.ErrCodeIncompatibleGrids, "grid category axes differ")
	}
	for i := range g.Cats {
		if g.Cats[i] != o.Cats[i] {
			return errors.New(errors.ErrCodeIncompatibleGrids,
				"grid category axes differ at %d: %q vs %q", i, g.Cats[i], o.Cats[i])
		}
	}
	return nil
}
