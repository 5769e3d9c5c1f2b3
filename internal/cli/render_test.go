package cli

import (
	"testing"
)

func TestParseRangePair(t *testing.T) {
	lo, hi, err := parseRangePair("x-range", "0.5,8")
	if err != nil {
		t.Fatalf("parseRangePair: %v", err)
	}
	if lo == nil || hi == nil || *lo != 0.5 || *hi != 8 {
		t.Errorf("got lo=%v hi=%v, want 0.5 and 8", lo, hi)
	}

	lo, hi, err = parseRangePair("x-range", "")
	if err != nil || lo != nil || hi != nil {
		t.Errorf("empty flag: got %v %v %v, want nil nil nil", lo, hi, err)
	}

	for _, bad := range []string{"1", "1,2,3", "a,b", "1,"} {
		if _, _, err := parseRangePair("span", bad); err == nil {
			t.Errorf("parseRangePair(%q): expected error", bad)
		}
	}
}

func TestPipelineOptionsTranslation(t *testing.T) {
	o := renderOpts{
		xCol:      "lon",
		yCol:      "lat",
		width:     300,
		height:    200,
		xRange:    "-180,180",
		reduction: "mean",
		column:    "fare",
		cats:      "car,bike",
		minValue:  "2.5",
		colormap:  "inferno",
	}
	opts, err := o.pipelineOptions("trips.csv")
	if err != nil {
		t.Fatalf("pipelineOptions: %v", err)
	}
	if opts.Source != "trips.csv" {
		t.Errorf("Source = %q", opts.Source)
	}
	if opts.XCol != "lon" || opts.YCol != "lat" {
		t.Errorf("cols = %s, %s", opts.XCol, opts.YCol)
	}
	if opts.XMin == nil || *opts.XMin != -180 || *opts.XMax != 180 {
		t.Errorf("x range = %v, %v", opts.XMin, opts.XMax)
	}
	if opts.YMin != nil {
		t.Error("y range should stay unset")
	}
	if len(opts.Categories) != 2 || opts.Categories[0] != "car" {
		t.Errorf("Categories = %v", opts.Categories)
	}
	if opts.MinValue == nil || *opts.MinValue != 2.5 {
		t.Errorf("MinValue = %v", opts.MinValue)
	}
}

func TestPipelineOptionsRejectsBadMinValue(t *testing.T) {
	o := renderOpts{minValue: "low"}
	if _, err := o.pipelineOptions("x.csv"); err == nil {
		t.Error("expected error for non-numeric min-value")
	}
}

func TestOutputPath(t *testing.T) {
	cases := []struct {
		output string
		input  string
		want   string
	}{
		{"", "trips.csv", "trips.png"},
		{"", "/data/trips.csv", "trips.png"},
		{"out.png", "trips.csv", "out.png"},
		{"", "https://example.com/feed.csv?token=x", "feed.png"},
	}
	for _, tc := range cases {
		o := renderOpts{output: tc.output}
		if got := o.outputPath(tc.input); got != tc.want {
			t.Errorf("outputPath(%q, %q) = %q, want %q", tc.output, tc.input, got, tc.want)
		}
	}
}
