package server

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/tyrasd/datashader/pkg/errors"
	"github.com/tyrasd/datashader/pkg/pipeline"
)

// optionsFromQuery maps render query parameters onto pipeline options.
// A preset supplies defaults; explicit parameters override it. Malformed
// numeric values are rejected rather than silently defaulted, so a typo
// in a range never renders the wrong extent.
func optionsFromQuery(values url.Values, preset *Preset) (pipeline.Options, error) {
	opts := pipeline.Options{}
	if preset != nil {
		applyPreset(&opts, preset)
	}

	p := &queryParser{values: values}
	opts.Source = p.str("source", opts.Source)
	p.strInto("x", &opts.XCol)
	p.strInto("y", &opts.YCol)
	p.strInto("glyph", &opts.Glyph)
	p.intInto("width", &opts.Width)
	p.intInto("height", &opts.Height)
	p.floatPtr("x_min", &opts.XMin)
	p.floatPtr("x_max", &opts.XMax)
	p.floatPtr("y_min", &opts.YMin)
	p.floatPtr("y_max", &opts.YMax)
	p.strInto("x_axis", &opts.XAxis)
	p.strInto("y_axis", &opts.YAxis)
	p.strInto("reduction", &opts.Reduction)
	p.strInto("column", &opts.Column)
	if cats := p.str("cats", ""); cats != "" {
		opts.Categories = strings.Split(cats, ",")
	}
	p.floatPtr("min_value", &opts.MinValue)
	p.floatInto("percentile", &opts.Percentile)
	p.strInto("colormap", &opts.Colormap)
	p.strInto("how", &opts.How)
	p.floatPtr("span_lo", &opts.SpanLo)
	p.floatPtr("span_hi", &opts.SpanHi)
	p.intInto("spread", &opts.SpreadPx)
	p.boolInto("dynspread", &opts.DynSpread)
	p.strInto("spread_shape", &opts.SpreadShape)
	p.boolInto("refresh", &opts.Refresh)
	if p.err != nil {
		return opts, p.err
	}
	return opts, nil
}

func applyPreset(opts *pipeline.Options, preset *Preset) {
	opts.XCol = preset.XCol
	opts.YCol = preset.YCol
	opts.Glyph = preset.Glyph
	opts.Width = preset.Width
	opts.Height = preset.Height
	opts.XMin = preset.XMin
	opts.XMax = preset.XMax
	opts.YMin = preset.YMin
	opts.YMax = preset.YMax
	opts.XAxis = preset.XAxis
	opts.YAxis = preset.YAxis
	opts.Reduction = preset.Reduction
	opts.Column = preset.Column
	opts.Colormap = preset.Colormap
	opts.How = preset.How
}

// queryParser collects the first parse failure instead of forcing a
// check after every parameter.
type queryParser struct {
	values url.Values
	err    error
}

func (p *queryParser) str(name, fallback string) string {
	if v := p.values.Get(name); v != "" {
		return v
	}
	return fallback
}

func (p *queryParser) strInto(name string, dst *string) {
	if v := p.values.Get(name); v != "" {
		*dst = v
	}
}

func (p *queryParser) intInto(name string, dst *int) {
	v := p.values.Get(name)
	if v == "" || p.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.err = errors.New(errors.ErrCodeInvalidConfig, "parameter %s: %q is not an integer", name, v)
		return
	}
	*dst = n
}

func (p *queryParser) floatInto(name string, dst *float64) {
	v := p.values.Get(name)
	if v == "" || p.err != nil {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.err = errors.New(errors.ErrCodeInvalidConfig, "parameter %s: %q is not a number", name, v)
		return
	}
	*dst = f
}

func (p *queryParser) floatPtr(name string, dst **float64) {
	v := p.values.Get(name)
	if v == "" || p.err != nil {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.err = errors.New(errors.ErrCodeInvalidConfig, "parameter %s: %q is not a number", name, v)
		return
	}
	*dst = &f
}

func (p *queryParser) boolInto(name string, dst *bool) {
	v := p.values.Get(name)
	if v == "" || p.err != nil {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.err = errors.New(errors.ErrCodeInvalidConfig, "parameter %s: %q is not a boolean", name, v)
		return
	}
	*dst = b
}
