package img

import (
	"github.com/tyrasd/datashader/pkg/errors"
)

// =============================================================================
// Spreading
// =============================================================================

// Shape is a built-in spread stencil shape.
type Shape string

const (
	// ShapeCircle keeps stencil cells within the spread radius.
	ShapeCircle Shape = "circle"
	// ShapeSquare keeps the whole stencil square.
	ShapeSquare Shape = "square"
)

// SpreadOptions tunes a Spread call. The zero value spreads by a
// one-pixel-radius circle composited with OpOver.
type SpreadOptions struct {
	// Px is the spread radius in pixels. 0 means 1. A radius of r yields
	// a (2r+1)-sided stencil.
	Px int

	// Shape picks the built-in stencil. Default ShapeCircle. Ignored
	// when Mask is set.
	Shape Shape

	// Mask is a caller-supplied stencil: a flattened odd-sized boolean
	// square, row-major, centered on the source pixel. When set it
	// overrides Px and Shape.
	Mask []bool

	// Op composites overlapping stencil copies. Default OpOver.
	Op Operator
}

func (o *SpreadOptions) validateAndSetDefaults() (mask []bool, side int, err error) {
	if o.Op == "" {
		o.Op = OpOver
	}
	if _, err := ParseOperator(string(o.Op)); err != nil {
		return nil, 0, err
	}
	if o.Mask != nil {
		side = isqrt(len(o.Mask))
		if side*side != len(o.Mask) || side%2 == 0 {
			return nil, 0, errors.New(errors.ErrCodeInvalidMask, "spread mask must be an odd-sized square, got %d cells", len(o.Mask))
		}
		return o.Mask, side, nil
	}
	if o.Px < 0 {
		return nil, 0, errors.New(errors.ErrCodeInvalidMask, "negative spread radius %d", o.Px)
	}
	px := o.Px
	if px == 0 {
		px = 1
	}
	switch o.Shape {
	case "", ShapeCircle:
		return circleMask(px), 2*px + 1, nil
	case ShapeSquare:
		side = 2*px + 1
		mask = make([]bool, side*side)
		for i := range mask {
			mask[i] = true
		}
		return mask, side, nil
	}
	return nil, 0, errors.New(errors.ErrCodeInvalidMask, "unknown spread shape %q", o.Shape)
}

// circleMask builds a (2r+1)-sided stencil keeping cells whose center
// lies within r of the middle.
func circleMask(r int) []bool {
	side := 2*r + 1
	mask := make([]bool, side*side)
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				mask[(dy+r)*side+(dx+r)] = true
			}
		}
	}
	return mask
}

func isqrt(n int) int {
	s := 0
	for s*s < n {
		s++
	}
	return s
}

// Spread stamps every non-transparent pixel onto each cell of its
// stencil, compositing overlaps with the configured operator. Isolated
// points grow into visible shapes; the input image is not modified.
func (im *Image) Spread(opts SpreadOptions) (*Image, error) {
	mask, side, err := opts.validateAndSetDefaults()
	if err != nil {
		return nil, err
	}
	r := side / 2
	w, h := im.Geom.Width, im.Geom.Height
	out := New(im.Geom)

	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			if !im.Opaque(row, col) {
				continue
			}
			src := im.Pix[4*(row*w+col):]
			for dy := -r; dy <= r; dy++ {
				ty := row + dy
				if ty < 0 || ty >= h {
					continue
				}
				for dx := -r; dx <= r; dx++ {
					tx := col + dx
					if tx < 0 || tx >= w || !mask[(dy+r)*side+(dx+r)] {
						continue
					}
					di := 4 * (ty*w + tx)
					composite(opts.Op, out.Pix[di:di+4:di+4], src[:4:4])
				}
			}
		}
	}
	return out, nil
}

// DynSpreadOptions tunes DynSpread. The zero value targets half the
// pixels having an opaque neighbor, with radii up to 3.
type DynSpreadOptions struct {
	// Threshold is the target fraction of opaque pixels that have at
	// least one opaque 8-neighbor. Default 0.5. Radii keep growing while
	// the measured fraction stays below it.
	Threshold float64

	// MaxPx caps the radius. Default 3.
	MaxPx int

	// Shape and Op are passed through to Spread.
	Shape Shape
	Op    Operator
}

// DynSpread spreads with a radius chosen from pixel density: sparse
// images get wide stencils for visibility, dense images stay sharp. The
// radius stops growing once the fraction of opaque pixels with an opaque
// neighbor reaches the threshold, or at MaxPx.
func (im *Image) DynSpread(opts DynSpreadOptions) (*Image, error) {
	if opts.Threshold == 0 {
		opts.Threshold = 0.5
	}
	if opts.Threshold < 0 || opts.Threshold > 1 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "dynspread threshold %v outside [0, 1]", opts.Threshold)
	}
	if opts.MaxPx == 0 {
		opts.MaxPx = 3
	}
	if opts.MaxPx < 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "negative dynspread radius cap %d", opts.MaxPx)
	}

	px := 0
	cur := im
	for px < opts.MaxPx && neighborDensity(cur) < opts.Threshold {
		px++
		next, err := im.Spread(SpreadOptions{Px: px, Shape: opts.Shape, Op: opts.Op})
		if err != nil {
			return nil, err
		}
		cur = next
	}
	if cur == im {
		return im.Clone(), nil
	}
	return cur, nil
}

// neighborDensity measures the fraction of opaque pixels that have an
// opaque 8-neighbor.
func neighborDensity(im *Image) float64 {
	w, h := im.Geom.Width, im.Geom.Height
	opaque, withNeighbor := 0, 0
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			if !im.Opaque(row, col) {
				continue
			}
			opaque++
			if hasOpaqueNeighbor(im, row, col) {
				withNeighbor++
			}
		}
	}
	if opaque == 0 {
		return 1
	}
	return float64(withNeighbor) / float64(opaque)
}

func hasOpaqueNeighbor(im *Image, row, col int) bool {
	w, h := im.Geom.Width, im.Geom.Height
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			ty, tx := row+dy, col+dx
			if ty >= 0 && ty < h && tx >= 0 && tx < w && im.Opaque(ty, tx) {
				return true
			}
		}
	}
	return false
}
