package img

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/tyrasd/datashader/pkg/grid"
)

func blank(w, h int) *Image {
	return New(grid.Geometry{Width: w, Height: h, XMin: 0, XMax: 1, YMin: 0, YMax: 1})
}

func TestSpreadIsolatedPixel(t *testing.T) {
	im := blank(32, 32)
	red := color.RGBA{R: 255, A: 255}
	im.Set(10, 10, red)

	mask := make([]bool, 9)
	for i := range mask {
		mask[i] = true
	}
	out, err := im.Spread(SpreadOptions{Mask: mask})
	if err != nil {
		t.Fatalf("Spread: %v", err)
	}

	for row := 0; row < 32; row++ {
		for col := 0; col < 32; col++ {
			inBlock := row >= 9 && row <= 11 && col >= 9 && col <= 11
			if got := out.Opaque(row, col); got != inBlock {
				t.Errorf("pixel (%d,%d) opaque = %v, want %v", row, col, got, inBlock)
			}
			if inBlock && out.At(row, col) != red {
				t.Errorf("pixel (%d,%d) = %v, want %v", row, col, out.At(row, col), red)
			}
		}
	}
	if !im.Opaque(10, 10) || im.Opaque(9, 9) {
		t.Error("spread modified its input")
	}
}

func TestSpreadCircleExcludesCorners(t *testing.T) {
	im := blank(8, 8)
	im.Set(4, 4, color.RGBA{A: 255})
	out, err := im.Spread(SpreadOptions{Px: 1, Shape: ShapeCircle})
	if err != nil {
		t.Fatalf("Spread: %v", err)
	}
	if out.Opaque(3, 3) {
		t.Error("circle stencil of radius 1 should not cover the diagonal corner")
	}
	for _, p := range [][2]int{{3, 4}, {5, 4}, {4, 3}, {4, 5}, {4, 4}} {
		if !out.Opaque(p[0], p[1]) {
			t.Errorf("pixel (%d,%d) should be opaque", p[0], p[1])
		}
	}
}

func TestSpreadClipsAtEdges(t *testing.T) {
	im := blank(4, 4)
	im.Set(0, 0, color.RGBA{A: 255})
	out, err := im.Spread(SpreadOptions{Px: 1, Shape: ShapeSquare})
	if err != nil {
		t.Fatalf("Spread: %v", err)
	}
	want := map[[2]int]bool{{0, 0}: true, {0, 1}: true, {1, 0}: true, {1, 1}: true}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			if got := out.Opaque(row, col); got != want[[2]int{row, col}] {
				t.Errorf("pixel (%d,%d) opaque = %v", row, col, got)
			}
		}
	}
}

func TestSpreadMaskValidation(t *testing.T) {
	im := blank(4, 4)
	if _, err := im.Spread(SpreadOptions{Mask: make([]bool, 8)}); err == nil {
		t.Error("non-square mask accepted")
	}
	if _, err := im.Spread(SpreadOptions{Mask: make([]bool, 16)}); err == nil {
		t.Error("even-sided mask accepted")
	}
	if _, err := im.Spread(SpreadOptions{Px: -1}); err == nil {
		t.Error("negative radius accepted")
	}
}

func TestDynSpreadStopsWhenDense(t *testing.T) {
	// A fully painted image is already dense: no spreading should occur.
	dense := blank(8, 8)
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			dense.Set(row, col, color.RGBA{B: 200, A: 255})
		}
	}
	out, err := dense.DynSpread(DynSpreadOptions{})
	if err != nil {
		t.Fatalf("DynSpread: %v", err)
	}
	if !bytes.Equal(out.Pix, dense.Pix) {
		t.Error("dense image changed by dynspread")
	}

	// A single isolated pixel has no opaque neighbor, so it spreads.
	sparse := blank(16, 16)
	sparse.Set(8, 8, color.RGBA{A: 255})
	out, err = sparse.DynSpread(DynSpreadOptions{})
	if err != nil {
		t.Fatalf("DynSpread: %v", err)
	}
	if !out.Opaque(8, 7) || !out.Opaque(7, 8) {
		t.Error("sparse image did not spread")
	}
}

func TestStackOver(t *testing.T) {
	bottom := blank(2, 1)
	bottom.Set(0, 0, color.RGBA{R: 255, A: 255})
	bottom.Set(0, 1, color.RGBA{R: 255, A: 255})
	top := blank(2, 1)
	top.Set(0, 1, color.RGBA{B: 255, A: 255})

	out, err := Stack(OpOver, bottom, top)
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}
	if got := out.At(0, 0); got != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("uncovered pixel = %v, want bottom red", got)
	}
	if got := out.At(0, 1); got != (color.RGBA{B: 255, A: 255}) {
		t.Errorf("covered pixel = %v, want top blue", got)
	}
}

func TestStackOverSemiTransparent(t *testing.T) {
	bottom := blank(1, 1)
	bottom.Set(0, 0, color.RGBA{R: 255, A: 255})
	top := blank(1, 1)
	top.Set(0, 0, color.RGBA{B: 255, A: 128})

	out, err := Stack(OpOver, bottom, top)
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}
	got := out.At(0, 0)
	if got.A != 255 {
		t.Errorf("alpha = %d, want 255 (opaque backdrop)", got.A)
	}
	if got.B <= got.R {
		t.Errorf("got %v, want blue dominating a red backdrop at half alpha", got)
	}
}

func TestStackAddSaturates(t *testing.T) {
	a := blank(1, 1)
	a.Set(0, 0, color.RGBA{R: 200, G: 100, A: 255})
	b := blank(1, 1)
	b.Set(0, 0, color.RGBA{R: 200, G: 100, A: 255})

	out, err := Stack(OpAdd, a, b)
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}
	got := out.At(0, 0)
	if got.R != 255 {
		t.Errorf("R = %d, want clamped 255", got.R)
	}
	if got.G != 200 {
		t.Errorf("G = %d, want 200", got.G)
	}
}

func TestStackSource(t *testing.T) {
	bottom := blank(2, 1)
	bottom.Set(0, 0, color.RGBA{G: 255, A: 255})
	top := blank(2, 1)
	top.Set(0, 1, color.RGBA{R: 255, A: 255})

	out, err := Stack(OpSource, bottom, top)
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}
	if got := out.At(0, 0); got != (color.RGBA{G: 255, A: 255}) {
		t.Errorf("transparent source pixel overwrote backdrop: %v", got)
	}
	if got := out.At(0, 1); got != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("source pixel not copied: %v", got)
	}
}

func TestStackRejectsMismatchedSizes(t *testing.T) {
	if _, err := Stack(OpOver, blank(2, 2), blank(3, 3)); err == nil {
		t.Error("mismatched sizes accepted")
	}
	if _, err := Stack(Operator("screen"), blank(2, 2)); err == nil {
		t.Error("unknown operator accepted")
	}
}

func TestEncodePNGRoundTrip(t *testing.T) {
	im := blank(3, 2)
	im.Set(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255}) // grid bottom-left
	var buf bytes.Buffer
	if err := im.EncodePNG(&buf); err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 3 || bounds.Dy() != 2 {
		t.Fatalf("decoded size = %v, want 3x2", bounds)
	}
	// Row flip: grid row 0 is the picture's bottom row.
	r, g, b, a := decoded.At(0, 1).RGBA()
	if r>>8 != 1 || g>>8 != 2 || b>>8 != 3 || a>>8 != 255 {
		t.Errorf("bottom-left pixel = %d,%d,%d,%d, want 1,2,3,255", r>>8, g>>8, b>>8, a>>8)
	}
}
