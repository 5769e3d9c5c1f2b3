// Package shade turns a finished aggregate grid into an RGBA image.
//
// # Overview
//
// Shading runs three steps per cell: mask sentinel cells, rescale the
// remaining values with a How transform, then map the rescaled values
// onto a colormap. Categorical grids mix one color per category instead
// of sampling a ramp.
//
//	res, _ := aggregate.Points(ctx, cvs, src, reduction.Count(""), aggregate.Options{})
//	im, err := shade.Shade(res.Grid(), shade.Options{How: shade.HowLog})
//
// # Value rescaling
//
// A How receives the cell values with the unmasked minimum already
// subtracted, plus the mask, and returns rescaled values. It must leave
// masked entries masked. [HowLinear], [HowLog], and [HowEqHist] are
// built in; any function with the same contract can be supplied.
package shade

import (
	"image/color"
	"math"
	"sort"

	"github.com/tyrasd/datashader/pkg/errors"
	"github.com/tyrasd/datashader/pkg/grid"
	"github.com/tyrasd/datashader/pkg/img"
)

// =============================================================================
// How transforms
// =============================================================================

// How rescales shifted cell values before colormapping. data holds the
// cell values with the unmasked minimum subtracted; mask marks sentinel
// cells. The returned slice must keep masked entries NaN.
type How func(data []float64, mask []bool) []float64

// HowLinear maps values unchanged.
func HowLinear(data []float64, mask []bool) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		if mask[i] {
			out[i] = math.NaN()
			continue
		}
		out[i] = v
	}
	return out
}

// HowLog compresses values as log(1+x), pulling long-tailed counts into
// a usable color range.
func HowLog(data []float64, mask []bool) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		if mask[i] {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Log1p(v)
	}
	return out
}

// HowEqHist histogram-equalizes: each value maps to its rank in the
// empirical CDF of all unmasked values, so every color is used with
// roughly even frequency regardless of the value distribution. Ranks
// are exact over the full unmasked population.
func HowEqHist(data []float64, mask []bool) []float64 {
	var sorted []float64
	for i, v := range data {
		if !mask[i] {
			sorted = append(sorted, v)
		}
	}
	sort.Float64s(sorted)

	out := make([]float64, len(data))
	n := float64(len(sorted))
	for i, v := range data {
		if mask[i] {
			out[i] = math.NaN()
			continue
		}
		// Fraction of the population at or below v.
		out[i] = float64(sort.SearchFloat64s(sorted, math.Nextafter(v, math.Inf(1)))) / n
	}
	return out
}

// ParseHow resolves a built-in transform name.
func ParseHow(name string) (How, error) {
	switch name {
	case "", "linear":
		return HowLinear, nil
	case "log":
		return HowLog, nil
	case "eq_hist":
		return HowEqHist, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidHow, "unknown how transform %q", name)
}

// =============================================================================
// Shading
// =============================================================================

// Span is an explicit (low, high) range used instead of auto-ranging
// the transformed values.
type Span struct {
	Lo, Hi float64
}

// Options configures Shade. The zero value shades with viridis and the
// linear transform.
type Options struct {
	// Colormap samples colors for scalar grids. Default Viridis.
	Colormap Colormap

	// How rescales values before mapping. Default HowLinear.
	How How

	// Span overrides auto-ranging: transformed values are rescaled
	// against it and clipped, instead of against their own min/max.
	Span *Span

	// ColorKey assigns a color per category for categorical grids. It
	// must cover every category in the grid. Nil selects
	// CategoryColors in grid category order.
	ColorKey map[string]color.RGBA
}

func (o *Options) validateAndSetDefaults() error {
	if len(o.Colormap.Colors) == 0 {
		o.Colormap = Viridis
	}
	if o.How == nil {
		o.How = HowLinear
	}
	if o.Span != nil && !(o.Span.Lo < o.Span.Hi) {
		return errors.New(errors.ErrCodeInvalidRange, "shade span [%v, %v] is empty", o.Span.Lo, o.Span.Hi)
	}
	return nil
}

// Shade colormaps a grid into an image. Sentinel cells come out fully
// transparent; an all-sentinel grid yields an entirely transparent
// image rather than an error. When every unmasked value is equal the
// cells map to the colormap's last color.
func Shade(g *grid.Grid, opts Options) (*img.Image, error) {
	if err := opts.validateAndSetDefaults(); err != nil {
		return nil, err
	}
	if g.Categorical() {
		return shadeCat(g, opts)
	}
	return shadeScalar(g, opts)
}

func shadeScalar(g *grid.Grid, opts Options) (*img.Image, error) {
	data, mask, any := shifted(g, g.Data)
	out := img.New(g.Geom)
	if !any {
		return out, nil
	}

	t, err := normalize(data, mask, opts)
	if err != nil {
		return nil, err
	}
	for i := range t {
		if mask[i] {
			continue
		}
		c := opts.Colormap.At(t[i])
		out.Pix[4*i] = c.R
		out.Pix[4*i+1] = c.G
		out.Pix[4*i+2] = c.B
		out.Pix[4*i+3] = 255
	}
	return out, nil
}

// shadeCat blends one color per category, weighted by each category's
// share of the cell total, with alpha following the transformed total.
func shadeCat(g *grid.Grid, opts Options) (*img.Image, error) {
	key, err := resolveColorKey(g, opts.ColorKey)
	if err != nil {
		return nil, err
	}

	ncat := g.NumCats()
	cells := g.Geom.Cells()
	totals := make([]float64, cells)
	for i := 0; i < cells; i++ {
		for c := 0; c < ncat; c++ {
			if v := g.Data[i*ncat+c]; !g.Masked(v) {
				totals[i] += v
			}
		}
	}

	data, mask, any := shiftedCat(totals)
	out := img.New(g.Geom)
	if !any {
		return out, nil
	}
	t, err := normalize(data, mask, opts)
	if err != nil {
		return nil, err
	}

	for i := 0; i < cells; i++ {
		if mask[i] {
			continue
		}
		var r, gg, b float64
		for c := 0; c < ncat; c++ {
			v := g.Data[i*ncat+c]
			if g.Masked(v) {
				continue
			}
			w := v / totals[i]
			r += w * float64(key[c].R)
			gg += w * float64(key[c].G)
			b += w * float64(key[c].B)
		}
		out.Pix[4*i] = uint8(r + 0.5)
		out.Pix[4*i+1] = uint8(gg + 0.5)
		out.Pix[4*i+2] = uint8(b + 0.5)
		out.Pix[4*i+3] = uint8(t[i]*255 + 0.5)
	}
	return out, nil
}

// shifted copies values with the unmasked minimum subtracted, per the
// How contract. any is false when every cell is sentinel.
func shifted(g *grid.Grid, values []float64) (data []float64, mask []bool, any bool) {
	data = make([]float64, len(values))
	mask = make([]bool, len(values))
	lo := math.Inf(1)
	for i, v := range values {
		if g.Masked(v) {
			mask[i] = true
			data[i] = math.NaN()
			continue
		}
		any = true
		if v < lo {
			lo = v
		}
		data[i] = v
	}
	if any {
		for i := range data {
			if !mask[i] {
				data[i] -= lo
			}
		}
	}
	return data, mask, any
}

// shiftedCat is the categorical variant: a cell is empty when no
// category contributed, so its total stays zero.
func shiftedCat(totals []float64) (data []float64, mask []bool, any bool) {
	data = make([]float64, len(totals))
	mask = make([]bool, len(totals))
	lo := math.Inf(1)
	for i, v := range totals {
		if v == 0 {
			mask[i] = true
			data[i] = math.NaN()
			continue
		}
		any = true
		if v < lo {
			lo = v
		}
		data[i] = v
	}
	if any {
		for i := range data {
			if !mask[i] {
				data[i] -= lo
			}
		}
	}
	return data, mask, any
}

// normalize applies the How transform and rescales the result into
// [0, 1] against the auto-range or the explicit span.
func normalize(data []float64, mask []bool, opts Options) ([]float64, error) {
	tr := opts.How(data, mask)
	if len(tr) != len(data) {
		return nil, errors.New(errors.ErrCodeInvalidHow,
			"how transform returned %d values for %d cells", len(tr), len(data))
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	if opts.Span != nil {
		lo, hi = opts.Span.Lo, opts.Span.Hi
	} else {
		for i, v := range tr {
			if mask[i] || math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}

	out := make([]float64, len(tr))
	for i, v := range tr {
		if mask[i] || math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		if hi <= lo {
			// All values equal: a single color, the ramp's top.
			out[i] = 1
			continue
		}
		t := (v - lo) / (hi - lo)
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
		out[i] = t
	}
	return out, nil
}

// resolveColorKey maps category index to color, either from the
// caller's key or from the default table in grid category order.
func resolveColorKey(g *grid.Grid, key map[string]color.RGBA) ([]color.RGBA, error) {
	out := make([]color.RGBA, g.NumCats())
	if key == nil {
		for i := range out {
			out[i] = CategoryColors[i%len(CategoryColors)]
		}
		return out, nil
	}
	for i, name := range g.Cats {
		c, ok := key[name]
		if !ok {
			return nil, errors.New(errors.ErrCodeUnknownCategory, "color key missing category %q", name)
		}
		out[i] = c
	}
	return out, nil
}
