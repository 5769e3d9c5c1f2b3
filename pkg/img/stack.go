package img

import (
	"github.com/tyrasd/datashader/pkg/errors"
)

// =============================================================================
// Compositing operators
// =============================================================================

// Operator selects the pixel compositing rule used by Stack and Spread.
type Operator string

const (
	// OpOver is standard source-over alpha compositing.
	OpOver Operator = "over"
	// OpAdd sums premultiplied components, clamping at full intensity.
	OpAdd Operator = "add"
	// OpSaturate is Porter-Duff saturate: the source contributes only as
	// much coverage as the backdrop leaves free.
	OpSaturate Operator = "saturate"
	// OpSource keeps the source pixel wherever it is not fully
	// transparent and the backdrop elsewhere.
	OpSource Operator = "source"
)

// ParseOperator resolves an operator name.
func ParseOperator(s string) (Operator, error) {
	switch Operator(s) {
	case OpOver, OpAdd, OpSaturate, OpSource:
		return Operator(s), nil
	}
	return "", errors.New(errors.ErrCodeInvalidConfig, "unknown compositing operator %q", s)
}

// Stack composites the given images pixel-by-pixel, first to last, so
// later images land on top under OpOver. All images must share the same
// pixel dimensions.
func Stack(op Operator, imgs ...*Image) (*Image, error) {
	if _, err := ParseOperator(string(op)); err != nil {
		return nil, err
	}
	if len(imgs) == 0 {
		return nil, errors.New(errors.ErrCodeIncompatibleImages, "stack needs at least one image")
	}
	out := imgs[0].Clone()
	for _, im := range imgs[1:] {
		if !sameSize(out, im) {
			return nil, errors.New(errors.ErrCodeIncompatibleImages,
				"cannot stack %dx%d onto %dx%d",
				im.Geom.Width, im.Geom.Height, out.Geom.Width, out.Geom.Height)
		}
		for i := 0; i < len(out.Pix); i += 4 {
			composite(op, out.Pix[i:i+4:i+4], im.Pix[i:i+4:i+4])
		}
	}
	return out, nil
}

// composite blends src into dst in place. Both are straight-alpha RGBA
// byte quads; the math runs premultiplied and converts back at the end.
func composite(op Operator, dst, src []uint8) {
	if op == OpSource {
		if src[3] != 0 {
			copy(dst, src)
		}
		return
	}

	sa := float64(src[3]) / 255
	da := float64(dst[3]) / 255

	// Premultiplied source and backdrop components.
	var pr, pg, pb [2]float64
	pr[0], pg[0], pb[0] = float64(src[0])/255*sa, float64(src[1])/255*sa, float64(src[2])/255*sa
	pr[1], pg[1], pb[1] = float64(dst[0])/255*da, float64(dst[1])/255*da, float64(dst[2])/255*da

	var fs, fd float64
	switch op {
	case OpOver:
		fs, fd = 1, 1-sa
	case OpAdd:
		fs, fd = 1, 1
	case OpSaturate:
		fs, fd = min(1, 1-da), 1
	}

	a := clamp01(sa*fs + da*fd)
	r := clamp01(pr[0]*fs + pr[1]*fd)
	g := clamp01(pg[0]*fs + pg[1]*fd)
	b := clamp01(pb[0]*fs + pb[1]*fd)

	if a == 0 {
		dst[0], dst[1], dst[2], dst[3] = 0, 0, 0, 0
		return
	}
	dst[0] = uint8(r/a*255 + 0.5)
	dst[1] = uint8(g/a*255 + 0.5)
	dst[2] = uint8(b/a*255 + 0.5)
	dst[3] = uint8(a*255 + 0.5)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
