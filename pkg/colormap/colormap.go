// Package colormap provides color gradients for density plots and value grids.
package colormap

import (
	"image/color"
	"math"
	"strings"
)

// Colormap maps normalized values [0, 1] to colors.
type Colormap interface {
	At(t float64) color.Color
}

// LinearColormap is a linear interpolation colormap.
type LinearColormap struct {
	colors []color.RGBA
}

// At returns the color at position t (0-1). NaN maps to transparent.
func (c LinearColormap) At(t float64) color.Color {
	if math.IsNaN(t) {
		return color.RGBA{}
	}
	if t <= 0 {
		return c.colors[0]
	}
	if t >= 1 {
		return c.colors[len(c.colors)-1]
	}

	idx := t * float64(len(c.colors)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(c.colors) {
		upper = len(c.colors) - 1
	}

	frac := idx - float64(lower)
	return interpolate(c.colors[lower], c.colors[upper], frac)
}

func interpolate(c1, c2 color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c1.R) + t*(float64(c2.R)-float64(c1.R))),
		G: uint8(float64(c1.G) + t*(float64(c2.G)-float64(c1.G))),
		B: uint8(float64(c1.B) + t*(float64(c2.B)-float64(c1.B))),
		A: 255,
	}
}

// Reversed runs a colormap from 1 to 0.
type Reversed struct {
	Colormap
}

// At returns the color of the wrapped map at 1-t.
func (r Reversed) At(t float64) color.Color { return r.Colormap.At(1 - t) }

// Diverging maps values below Pivot onto the lower half of a two-sided
// gradient and values above it onto the upper half, so the pivot always
// lands on the neutral middle color.
type Diverging struct {
	Colors LinearColormap
	Pivot  float64 // normalized position of the inflection point
}

// NewDiverging builds a diverging map for data spanning [lo, hi] with the
// given inflection. An inflection outside the range clamps to its edge.
func NewDiverging(lo, hi, inflection float64) Diverging {
	p := Normalize(inflection, lo, hi)
	if math.IsNaN(p) {
		p = 0.5
	}
	return Diverging{Colors: BlueWhiteRed, Pivot: math.Max(0, math.Min(1, p))}
}

// At returns the color at position t.
func (d Diverging) At(t float64) color.Color {
	if math.IsNaN(t) {
		return color.RGBA{}
	}
	var u float64
	switch {
	case t <= d.Pivot && d.Pivot > 0:
		u = 0.5 * t / d.Pivot
	case t <= d.Pivot:
		u = 0.5
	case d.Pivot < 1:
		u = 0.5 + 0.5*(t-d.Pivot)/(1-d.Pivot)
	default:
		u = 0.5
	}
	return d.Colors.At(u)
}

// Normalize maps v in [lo, hi] to [0, 1]. A degenerate range maps every
// finite value to 0.5; NaN stays NaN.
func Normalize(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsNaN(lo) || math.IsNaN(hi) {
		return math.NaN()
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo {
		return 0.5
	}
	return (v - lo) / (hi - lo)
}

// ForGrid picks the gradient for a value grid: a diverging map around the
// inflection for bidirectional grids, the named sequential map reversed for
// grids relative to a maximum, and the named map otherwise.
func ForGrid(name string, bidirectional, maximum bool, lo, hi, inflection float64) Colormap {
	if bidirectional {
		return NewDiverging(lo, hi, inflection)
	}
	c := ByName(name)
	if maximum {
		return Reversed{c}
	}
	return c
}

// ByName returns the sequential colormap registered under name, or Viridis.
func ByName(name string) Colormap {
	switch strings.ToLower(name) {
	case "plasma":
		return Plasma
	case "inferno":
		return Inferno
	case "magma":
		return Magma
	case "seurat":
		return Seurat
	case "jet":
		return Jet
	default:
		return Viridis
	}
}

// Viridis colormap (matplotlib viridis)
var Viridis = LinearColormap{
	colors: []color.RGBA{
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
	},
}

// Plasma colormap
var Plasma = LinearColormap{
	colors: []color.RGBA{
		{13, 8, 135, 255},
		{75, 3, 161, 255},
		{125, 3, 168, 255},
		{168, 34, 150, 255},
		{203, 70, 121, 255},
		{229, 107, 93, 255},
		{248, 148, 65, 255},
		{253, 195, 40, 255},
		{240, 249, 33, 255},
	},
}

// Inferno colormap
var Inferno = LinearColormap{
	colors: []color.RGBA{
		{0, 0, 4, 255},
		{40, 11, 84, 255},
		{101, 21, 110, 255},
		{159, 42, 99, 255},
		{212, 72, 66, 255},
		{245, 125, 21, 255},
		{250, 193, 39, 255},
		{252, 255, 164, 255},
	},
}

// Magma colormap
var Magma = LinearColormap{
	colors: []color.RGBA{
		{0, 0, 4, 255},
		{28, 16, 68, 255},
		{79, 18, 123, 255},
		{129, 37, 129, 255},
		{181, 54, 122, 255},
		{229, 80, 100, 255},
		{251, 135, 97, 255},
		{254, 194, 135, 255},
		{252, 253, 191, 255},
	},
}

// Seurat is the grey-to-red feature plot gradient.
var Seurat = LinearColormap{
	colors: []color.RGBA{
		{211, 211, 211, 255},
		{255, 0, 0, 255},
	},
}

// Jet is the rainbow gradient common in cytometry density plots.
var Jet = LinearColormap{
	colors: []color.RGBA{
		{0, 0, 143, 255},
		{0, 0, 255, 255},
		{0, 255, 255, 255},
		{255, 255, 0, 255},
		{255, 0, 0, 255},
		{128, 0, 0, 255},
	},
}

// BlueWhiteRed is the diverging gradient for bidirectional grids.
var BlueWhiteRed = LinearColormap{
	colors: []color.RGBA{
		{5, 48, 97, 255},
		{67, 147, 195, 255},
		{247, 247, 247, 255},
		{214, 96, 77, 255},
		{103, 0, 31, 255},
	},
}
