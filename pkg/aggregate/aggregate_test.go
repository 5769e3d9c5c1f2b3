package aggregate

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/tyrasd/datashader/pkg/canvas"
	"github.com/tyrasd/datashader/pkg/grid"
	"github.com/tyrasd/datashader/pkg/reduction"
	"github.com/tyrasd/datashader/pkg/source"
)

func unitCanvas(w, h int) *canvas.Canvas {
	return &canvas.Canvas{
		Width:  w,
		Height: h,
		XRange: &canvas.Range{Lo: 0, Hi: 1},
		YRange: &canvas.Range{Lo: 0, Hi: 1},
	}
}

// clusters yields n points drawn from two gaussian blobs, plus value and
// category columns, with a deterministic seed.
func clusters(n int) *source.Memory {
	rng := rand.New(rand.NewSource(7))
	xs := make([]float64, n)
	ys := make([]float64, n)
	vals := make([]float64, n)
	cats := make([]string, n)
	for i := range xs {
		cx, cy, cat := 0.25, 0.25, "a"
		if i%2 == 1 {
			cx, cy, cat = 0.75, 0.75, "b"
		}
		xs[i] = cx + rng.NormFloat64()*0.08
		ys[i] = cy + rng.NormFloat64()*0.08
		vals[i] = rng.Float64() * 10
		cats[i] = cat
	}
	return source.FromXY(xs, ys).AddFloat("val", vals).AddStr("cat", cats)
}

func TestPointsCountConservation(t *testing.T) {
	src := clusters(5000)
	res, err := Points(context.Background(), unitCanvas(32, 32), src, reduction.Count(""), Options{})
	if err != nil {
		t.Fatalf("Points: %v", err)
	}

	// Every in-range record lands in exactly one cell.
	inRange := 0
	cur, err := src.Batches(context.Background())
	if err != nil {
		t.Fatalf("Batches: %v", err)
	}
	defer cur.Close()
	b, err := cur.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	xs, _ := b.Float("x")
	ys, _ := b.Float("y")
	for j := range xs {
		if xs[j] >= 0 && xs[j] <= 1 && ys[j] >= 0 && ys[j] <= 1 {
			inRange++
		}
	}
	if got := int(res.Grid().Total()); got != inRange {
		t.Errorf("count total = %d, want %d in-range records", got, inRange)
	}
}

func TestPointsPartitionInvariance(t *testing.T) {
	src := clusters(3000)
	cvs := unitCanvas(24, 24)
	red := reduction.Summary(
		reduction.Item{Name: "n", R: reduction.Count("")},
		reduction.Item{Name: "mean", R: reduction.Mean("val")},
		reduction.Item{Name: "var", R: reduction.Var("val")},
	)

	base, err := Points(context.Background(), cvs, src, red, Options{})
	if err != nil {
		t.Fatalf("Points: %v", err)
	}

	cases := []struct {
		name      string
		batchSize int
		workers   int
	}{
		{"small batches", 17, 1},
		{"tiny batches", 1, 1},
		{"parallel", 251, 4},
		{"parallel large", 0, 8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src.BatchSize = tc.batchSize
			got, err := Points(context.Background(), cvs, src, red, Options{Workers: tc.workers})
			if err != nil {
				t.Fatalf("Points: %v", err)
			}
			for _, named := range base.Grids {
				other := got.Named(named.Name)
				if other == nil {
					t.Fatalf("missing grid %q", named.Name)
				}
				// Counts must match exactly; mean and variance only up
				// to rounding, since the merge order varies.
				tol := 0.0
				if named.Name != "n" {
					tol = 1e-9
				}
				for i, want := range named.Grid.Data {
					g := other.Data[i]
					if math.IsNaN(g) && math.IsNaN(want) {
						continue
					}
					if math.Abs(g-want) > tol*math.Max(1, math.Abs(want)) {
						t.Fatalf("grid %q cell %d = %v, want %v", named.Name, i, g, want)
					}
				}
			}
		})
	}
	src.BatchSize = 0
}

func TestPointsMeanEqualsSumOverCount(t *testing.T) {
	src := clusters(2000)
	cvs := unitCanvas(16, 16)
	res, err := Points(context.Background(), cvs, src, reduction.Summary(
		reduction.Item{Name: "sum", R: reduction.Sum("val")},
		reduction.Item{Name: "n", R: reduction.Count("val")},
		reduction.Item{Name: "mean", R: reduction.Mean("val")},
	), Options{})
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	sum, n, mean := res.Named("sum"), res.Named("n"), res.Named("mean")
	for i := range mean.Data {
		if n.Data[i] == 0 {
			if !math.IsNaN(mean.Data[i]) {
				t.Fatalf("cell %d: empty cell mean = %v, want NaN", i, mean.Data[i])
			}
			continue
		}
		want := sum.Data[i] / n.Data[i]
		if got := mean.Data[i]; math.Abs(got-want) > 1e-9 {
			t.Fatalf("cell %d: mean = %v, want sum/count = %v", i, got, want)
		}
	}
}

func TestPointsCountCatMarginal(t *testing.T) {
	src := clusters(2000)
	cvs := unitCanvas(16, 16)
	byCat, err := Points(context.Background(), cvs, src, reduction.CountCat("cat"), Options{})
	if err != nil {
		t.Fatalf("Points countcat: %v", err)
	}
	plain, err := Points(context.Background(), cvs, src, reduction.Count(""), Options{})
	if err != nil {
		t.Fatalf("Points count: %v", err)
	}
	marginal := byCat.Grid().SumCats()
	for i, want := range plain.Grid().Data {
		if got := marginal.Data[i]; got != want {
			t.Errorf("cell %d: summed categories = %v, want count %v", i, got, want)
		}
	}
}

func TestPointsAutoRange(t *testing.T) {
	src := source.FromXY([]float64{2, 4, 6}, []float64{10, 20, 30})
	cvs := &canvas.Canvas{Width: 4, Height: 4}
	res, err := Points(context.Background(), cvs, src, reduction.Count(""), Options{})
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if res.Canvas.XRange.Lo != 2 || res.Canvas.XRange.Hi != 6 {
		t.Errorf("inferred x range = %+v, want [2, 6]", *res.Canvas.XRange)
	}
	if res.Canvas.YRange.Lo != 10 || res.Canvas.YRange.Hi != 30 {
		t.Errorf("inferred y range = %+v, want [10, 30]", *res.Canvas.YRange)
	}
	if got := res.Grid().Total(); got != 3 {
		t.Errorf("count total = %v, want 3 (max coords fold into last cell)", got)
	}
}

func TestPointsDropsBadCoordinates(t *testing.T) {
	src := source.FromXY(
		[]float64{0.5, math.NaN(), 5.0, 0.2},
		[]float64{0.5, 0.5, 0.5, -1.0},
	)
	res, err := Points(context.Background(), unitCanvas(8, 8), src, reduction.Count(""), Options{})
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if got := res.Grid().Total(); got != 1 {
		t.Errorf("count total = %v, want 1 (NaN and out-of-range dropped)", got)
	}
}

func TestPointsConfigErrors(t *testing.T) {
	src := source.FromXY([]float64{0.5}, []float64{0.5})
	cases := []struct {
		name string
		cvs  *canvas.Canvas
		red  reduction.Reduction
		opts Options
	}{
		{"zero width", &canvas.Canvas{Width: 0, Height: 4}, reduction.Count(""), Options{}},
		{"unknown value column", unitCanvas(4, 4), reduction.Sum("nope"), Options{}},
		{"unknown coord column", unitCanvas(4, 4), reduction.Count(""), Options{XCol: "lon"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Points(context.Background(), tc.cvs, src, tc.red, tc.opts); err == nil {
				t.Error("expected configuration error, got nil")
			}
		})
	}
}

func TestPointsCancellation(t *testing.T) {
	src := clusters(1000)
	src.BatchSize = 10
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Points(ctx, unitCanvas(8, 8), src, reduction.Count(""), Options{})
	if err == nil {
		t.Fatal("expected context error")
	}
	if res == nil || res.Grid() == nil {
		t.Fatal("cancelled pass should still return the grids merged so far")
	}
	if total := res.Grid().Total(); total > 1000 {
		t.Errorf("partial total = %v, want at most the record count", total)
	}
}

func TestLinesDiagonal(t *testing.T) {
	// One series along the main diagonal: Bresenham covers every
	// diagonal cell exactly once, shared vertices included.
	src := source.FromXY([]float64{0.05, 0.45, 0.95}, []float64{0.05, 0.45, 0.95})
	res, err := Lines(context.Background(), unitCanvas(10, 10), src, reduction.Count(""), Options{})
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	g := res.Grid()
	for i := 0; i < 10; i++ {
		if got := g.At(i, i); got != 1 {
			t.Errorf("diagonal cell (%d,%d) = %v, want 1", i, i, got)
		}
	}
	if got := g.Total(); got != 10 {
		t.Errorf("line total = %v, want 10 diagonal cells", got)
	}
}

func TestLinesNaNBreaksSeries(t *testing.T) {
	// The NaN splits the series into two single-point segments, which
	// draw nothing on their own.
	src := source.FromXY(
		[]float64{0.05, math.NaN(), 0.95},
		[]float64{0.05, math.NaN(), 0.95},
	)
	res, err := Lines(context.Background(), unitCanvas(10, 10), src, reduction.Count(""), Options{})
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	if got := res.Grid().Total(); got != 0 {
		t.Errorf("broken series total = %v, want 0", got)
	}
}

func TestRasterDownsample(t *testing.T) {
	srcGeom := grid.Geometry{Width: 4, Height: 4, XMin: 0, XMax: 1, YMin: 0, YMax: 1}
	src := grid.NewFloat(srcGeom)
	for i := range src.Data {
		src.Data[i] = float64(i)
	}
	src.Data[5] = math.NaN() // one hole

	cvs := &canvas.Canvas{Width: 2, Height: 2}
	got, err := Raster(cvs, src, RasterMean)
	if err != nil {
		t.Fatalf("Raster: %v", err)
	}
	// Top-left dest cell covers source cells {0,1,4}, 5 being masked.
	if want := (0.0 + 1 + 4) / 3; got.At(0, 0) != want {
		t.Errorf("mean(0,0) = %v, want %v", got.At(0, 0), want)
	}
	if want := (2.0 + 3 + 6 + 7) / 4; got.At(0, 1) != want {
		t.Errorf("mean(0,1) = %v, want %v", got.At(0, 1), want)
	}

	cnt, err := Raster(cvs, src, RasterCount)
	if err != nil {
		t.Fatalf("Raster count: %v", err)
	}
	if cnt.Kind != grid.KindInt {
		t.Errorf("count kind = %v, want KindInt", cnt.Kind)
	}
	if got := cnt.At(0, 0); got != 3 {
		t.Errorf("count(0,0) = %v, want 3", got)
	}
}

func TestRasterUpsample(t *testing.T) {
	srcGeom := grid.Geometry{Width: 2, Height: 2, XMin: 0, XMax: 1, YMin: 0, YMax: 1}
	src := grid.NewFloat(srcGeom)
	copy(src.Data, []float64{1, 2, 3, 4})

	cvs := &canvas.Canvas{Width: 4, Height: 4}
	got, err := Raster(cvs, src, RasterMean)
	if err != nil {
		t.Fatalf("Raster: %v", err)
	}
	// Each source cell spreads over a 2x2 block of destination cells.
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			want := src.At(r/2, c/2)
			if v := got.At(r, c); v != want {
				t.Errorf("upsampled (%d,%d) = %v, want %v", r, c, v, want)
			}
		}
	}
}

func TestRasterOutsideSourceExtent(t *testing.T) {
	srcGeom := grid.Geometry{Width: 2, Height: 2, XMin: 0, XMax: 1, YMin: 0, YMax: 1}
	src := grid.NewFloat(srcGeom)
	copy(src.Data, []float64{1, 2, 3, 4})

	cvs := &canvas.Canvas{
		Width: 4, Height: 4,
		XRange: &canvas.Range{Lo: 0, Hi: 2},
		YRange: &canvas.Range{Lo: 0, Hi: 1},
	}
	got, err := Raster(cvs, src, RasterSum)
	if err != nil {
		t.Fatalf("Raster: %v", err)
	}
	for r := 0; r < 4; r++ {
		for c := 2; c < 4; c++ {
			if v := got.At(r, c); !got.Masked(v) {
				t.Errorf("cell (%d,%d) outside source = %v, want sentinel", r, c, v)
			}
		}
	}
	if v := got.At(0, 0); got.Masked(v) {
		t.Error("cell inside source extent unexpectedly masked")
	}
}
