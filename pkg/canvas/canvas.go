// Package canvas declares the output grid geometry for an aggregation and
// maps data coordinates onto it.
//
// A Canvas is pure configuration: output resolution, axis ranges, and axis
// scales. It is immutable once constructed and is reused across multiple
// aggregation calls that share the same grid geometry. Ranges may be left
// unset, in which case the aggregator infers them from the data in a
// preceding pass.
//
// The Projector derived from a fully-ranged Canvas performs the actual
// coordinate-to-cell mapping: half-open cell intervals with the upper
// range edge folded into the last cell, linear or log-space bucketing per
// axis, and Bresenham rasterization for line glyphs.
package canvas

import (
	"math"

	"github.com/tyrasd/datashader/pkg/errors"
	"github.com/tyrasd/datashader/pkg/grid"
)

// Axis selects the bucketing rule for one canvas axis.
type Axis int

const (
	// Linear buckets coordinates uniformly across the range.
	Linear Axis = iota

	// Log buckets coordinates uniformly in log space. Ranges on a log
	// axis must be strictly positive.
	Log
)

// String returns the axis name as used in CLI flags and API parameters.
func (a Axis) String() string {
	if a == Log {
		return "log"
	}
	return "linear"
}

// ParseAxis converts an axis name to an Axis value.
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "", "linear":
		return Linear, nil
	case "log":
		return Log, nil
	}
	return Linear, errors.New(errors.ErrCodeInvalidCanvas, "unknown axis type %q (must be linear or log)", s)
}

// Range is a closed coordinate interval.
type Range struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Canvas declares the output resolution, axis ranges, and axis scales for
// an aggregation. A nil XRange or YRange means "infer from the data".
type Canvas struct {
	Width  int
	Height int
	XRange *Range
	YRange *Range
	XAxis  Axis
	YAxis  Axis
}

// New returns a linear-axis canvas with unset ranges.
func New(width, height int) *Canvas {
	return &Canvas{Width: width, Height: height}
}

// Validate checks the canvas configuration. It is called once at
// aggregation setup; a failure here is fatal before any data pass runs.
func (c *Canvas) Validate() error {
	if c.Width < 1 || c.Height < 1 {
		return errors.New(errors.ErrCodeInvalidCanvas,
			"canvas dimensions must be >= 1, got %dx%d", c.Width, c.Height)
	}
	if err := validateRange(c.XRange, c.XAxis, "x"); err != nil {
		return err
	}
	return validateRange(c.YRange, c.YAxis, "y")
}

func validateRange(r *Range, axis Axis, name string) error {
	if r == nil {
		return nil
	}
	if !(r.Lo < r.Hi) {
		return errors.New(errors.ErrCodeInvalidRange,
			"%s_range low must be < high, got (%g, %g)", name, r.Lo, r.Hi)
	}
	if axis == Log && r.Lo <= 0 {
		return errors.New(errors.ErrCodeInvalidRange,
			"%s_range must be strictly positive for a log axis, got (%g, %g)", name, r.Lo, r.Hi)
	}
	return nil
}

// Ranged reports whether both axis ranges are set.
func (c *Canvas) Ranged() bool {
	return c.XRange != nil && c.YRange != nil
}

// WithRanges returns a copy of the canvas with any unset range replaced by
// the given inferred range. The receiver is not modified.
func (c *Canvas) WithRanges(x, y Range) *Canvas {
	out := *c
	if out.XRange == nil {
		xr := x
		out.XRange = &xr
	}
	if out.YRange == nil {
		yr := y
		out.YRange = &yr
	}
	return &out
}

// Geometry returns the grid geometry declared by a fully-ranged canvas.
func (c *Canvas) Geometry() grid.Geometry {
	return grid.Geometry{
		Width:  c.Width,
		Height: c.Height,
		XMin:   c.XRange.Lo,
		XMax:   c.XRange.Hi,
		YMin:   c.YRange.Lo,
		YMax:   c.YRange.Hi,
		XLog:   c.XAxis == Log,
		YLog:   c.YAxis == Log,
	}
}

// axisMap buckets one coordinate axis into n cells, optionally in log space.
type axisMap struct {
	lo, span float64
	n        int
	log      bool
}

func newAxisMap(r Range, n int, log bool) axisMap {
	lo, hi := r.Lo, r.Hi
	if log {
		lo, hi = math.Log(lo), math.Log(hi)
	}
	return axisMap{lo: lo, span: hi - lo, n: n, log: log}
}

// cell maps a coordinate to its cell index. Cells are half-open intervals;
// the upper range edge falls in the last cell. ok is false for NaN or
// out-of-range coordinates (including non-positive values on a log axis).
func (m axisMap) cell(v float64) (int, bool) {
	if m.log {
		if v <= 0 {
			return 0, false
		}
		v = math.Log(v)
	}
	if math.IsNaN(v) || v < m.lo || v > m.lo+m.span {
		return 0, false
	}
	i := int(float64(m.n) * (v - m.lo) / m.span)
	if i == m.n {
		i = m.n - 1
	}
	return i, true
}
