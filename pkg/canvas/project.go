package canvas

import (
	"github.com/tyrasd/datashader/pkg/errors"
)

// Projector maps data coordinates to flat cell indices for one resolved
// canvas. It is immutable and safe for concurrent use by parallel
// aggregation workers.
type Projector struct {
	w, h int
	x, y axisMap
}

// Projector derives the coordinate-to-cell mapping from a fully-ranged,
// valid canvas. Requesting a projector for a canvas with unset ranges is a
// configuration error; the aggregator resolves ranges first.
func (c *Canvas) Projector() (*Projector, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if !c.Ranged() {
		return nil, errors.New(errors.ErrCodeInvalidRange,
			"canvas ranges must be resolved before projecting")
	}
	return &Projector{
		w: c.Width,
		h: c.Height,
		x: newAxisMap(*c.XRange, c.Width, c.XAxis == Log),
		y: newAxisMap(*c.YRange, c.Height, c.YAxis == Log),
	}, nil
}

// Cell maps one point to its flat cell index (row*width + col). ok is
// false when the point is out of range or not a number; such records are
// dropped silently, never reported as errors.
func (p *Projector) Cell(x, y float64) (int, bool) {
	col, ok := p.x.cell(x)
	if !ok {
		return 0, false
	}
	row, ok := p.y.cell(y)
	if !ok {
		return 0, false
	}
	return row*p.w + col, true
}

// CellXY maps one point to its (col, row) cell coordinates.
func (p *Projector) CellXY(x, y float64) (col, row int, ok bool) {
	if col, ok = p.x.cell(x); !ok {
		return 0, 0, false
	}
	if row, ok = p.y.cell(y); !ok {
		return 0, 0, false
	}
	return col, row, true
}

// Width returns the number of cells along the x axis.
func (p *Projector) Width() int { return p.w }

// Height returns the number of cells along the y axis.
func (p *Projector) Height() int { return p.h }

// LineCells visits every cell touched by the straight segment between two
// cell coordinates, in order from (c0, r0) to (c1, r1), using Bresenham's
// algorithm in cell-index space. Both endpoints are visited. A cell may be
// visited once per segment; multi-segment series can touch the same cell
// repeatedly, and each touch counts as one reduction update.
func LineCells(c0, r0, c1, r1, width int, visit func(cell int)) {
	dx := abs(c1 - c0)
	dy := -abs(r1 - r0)
	sx, sy := 1, 1
	if c0 > c1 {
		sx = -1
	}
	if r0 > r1 {
		sy = -1
	}
	err := dx + dy

	for {
		visit(r0*width + c0)
		if c0 == c1 && r0 == r1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			c0 += sx
		}
		if e2 <= dx {
			err += dx
			r0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
