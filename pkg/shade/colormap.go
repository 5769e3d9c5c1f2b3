package shade

import (
	"image/color"
	"sort"

	"github.com/tyrasd/datashader/pkg/errors"
)

// =============================================================================
// Colormaps
// =============================================================================

// Colormap is an ordered list of colors sampled by normalized position.
// The list is opaque to the shading pipeline: it only needs length and
// indexability, so any palette works.
type Colormap struct {
	Name   string
	Colors []color.RGBA
}

// At returns the color at position t in [0, 1], linearly interpolating
// between neighboring list entries. Out-of-range positions clamp to the
// ends.
func (m Colormap) At(t float64) color.RGBA {
	if t <= 0 {
		return m.Colors[0]
	}
	if t >= 1 {
		return m.Colors[len(m.Colors)-1]
	}
	idx := t * float64(len(m.Colors)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(m.Colors) {
		upper = len(m.Colors) - 1
	}
	return lerp(m.Colors[lower], m.Colors[upper], idx-float64(lower))
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(a.R) + t*(float64(b.R)-float64(a.R))),
		G: uint8(float64(a.G) + t*(float64(b.G)-float64(a.G))),
		B: uint8(float64(a.B) + t*(float64(b.B)-float64(a.B))),
		A: 255,
	}
}

// Viridis is the matplotlib viridis ramp.
var Viridis = Colormap{Name: "viridis", Colors: []color.RGBA{
	{68, 1, 84, 255},
	{72, 35, 116, 255},
	{64, 67, 135, 255},
	{52, 94, 141, 255},
	{41, 120, 142, 255},
	{32, 144, 140, 255},
	{34, 167, 132, 255},
	{68, 190, 112, 255},
	{121, 209, 81, 255},
	{189, 222, 38, 255},
	{253, 231, 37, 255},
}}

// Plasma is the matplotlib plasma ramp.
var Plasma = Colormap{Name: "plasma", Colors: []color.RGBA{
	{13, 8, 135, 255},
	{75, 3, 161, 255},
	{125, 3, 168, 255},
	{168, 34, 150, 255},
	{203, 70, 121, 255},
	{229, 107, 93, 255},
	{248, 148, 65, 255},
	{253, 195, 40, 255},
	{240, 249, 33, 255},
}}

// Inferno is the matplotlib inferno ramp.
var Inferno = Colormap{Name: "inferno", Colors: []color.RGBA{
	{0, 0, 4, 255},
	{40, 11, 84, 255},
	{101, 21, 110, 255},
	{159, 42, 99, 255},
	{212, 72, 66, 255},
	{245, 125, 21, 255},
	{250, 193, 39, 255},
	{252, 255, 164, 255},
}}

// Magma is the matplotlib magma ramp.
var Magma = Colormap{Name: "magma", Colors: []color.RGBA{
	{0, 0, 4, 255},
	{28, 16, 68, 255},
	{79, 18, 123, 255},
	{129, 37, 129, 255},
	{181, 54, 122, 255},
	{229, 80, 100, 255},
	{251, 135, 97, 255},
	{254, 194, 135, 255},
	{252, 253, 191, 255},
}}

// Grey is a black-to-white ramp.
var Grey = Colormap{Name: "grey", Colors: []color.RGBA{
	{0, 0, 0, 255},
	{255, 255, 255, 255},
}}

var builtins = map[string]Colormap{
	"viridis": Viridis,
	"plasma":  Plasma,
	"inferno": Inferno,
	"magma":   Magma,
	"grey":    Grey,
	"gray":    Grey,
}

// Lookup resolves a built-in colormap by name.
func Lookup(name string) (Colormap, error) {
	if m, ok := builtins[name]; ok {
		return m, nil
	}
	return Colormap{}, errors.New(errors.ErrCodeUnknownColormap, "unknown colormap %q", name)
}

// Names lists the built-in colormap names, sorted.
func Names() []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range builtins {
		if !seen[m.Name] {
			seen[m.Name] = true
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names
}

// CategoryColors is the default categorical color key, assigned to
// categories in grid order. Callers needing specific category colors
// pass an explicit key in Options instead.
var CategoryColors = []color.RGBA{
	{31, 119, 180, 255},
	{255, 127, 14, 255},
	{44, 160, 44, 255},
	{214, 39, 40, 255},
	{148, 103, 189, 255},
	{140, 86, 75, 255},
	{227, 119, 194, 255},
	{127, 127, 127, 255},
	{188, 189, 34, 255},
	{23, 190, 207, 255},
}
