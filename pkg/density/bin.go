// Package density bins per-event channel data onto a 2D grid, smooths the
// counts with a triweight kernel, and orders grid cells for painter's
// algorithm rendering.
package density

import (
	"math"

	"github.com/atlasmap-sc/cytoplot/pkg/scale"
)

// Axis describes how one channel is discretized.
type Axis struct {
	Scale scale.Transform
	Arg   float64 // scale argument, e.g. the arcsinh cofactor
	Min   float64
	Max   float64
	Bins  int
}

// BinGrid holds event counts indexed as grid[xBin][yBin].
type BinGrid [][]int

// NewBinGrid returns a zeroed nx×ny count grid.
func NewBinGrid(nx, ny int) BinGrid {
	g := make(BinGrid, nx)
	cells := make([]int, nx*ny)
	for i := range g {
		g[i] = cells[i*ny : (i+1)*ny : (i+1)*ny]
	}
	return g
}

// Total returns the sum of all counts.
func (g BinGrid) Total() int {
	n := 0
	for _, col := range g {
		for _, c := range col {
			n += c
		}
	}
	return n
}

type binner struct {
	transform scale.Transform
	arg       float64
	scaledMin float64
	factor    float64
	bins      int
}

func newBinner(a Axis) binner {
	if a.Bins <= 0 {
		a.Bins = 1
	}
	if a.Scale == nil {
		a.Scale = scale.Linear{}
	}
	if a.Max < a.Min {
		a.Min, a.Max = a.Max, a.Min
	}
	scaledMin := a.Scale.Apply(a.Min, a.Arg)
	return binner{
		transform: a.Scale,
		arg:       a.Arg,
		scaledMin: scaledMin,
		factor:    float64(a.Bins) / (a.Scale.Apply(a.Max, a.Arg) - scaledMin),
		bins:      a.Bins,
	}
}

// index maps v to its bin. NaN and values below range land in bin 0,
// values at or above range land in the last bin.
func (b binner) index(v float64) int {
	f := math.Floor((b.transform.Apply(v, b.arg) - b.scaledMin) * b.factor)
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f >= float64(b.bins):
		return b.bins - 1
	}
	return int(f)
}

// Bin counts the paired events (xs[i], ys[i]) into an x.Bins×y.Bins grid.
// If the slices differ in length the extra events are ignored.
func Bin(x, y Axis, xs, ys []float64) BinGrid {
	bx, by := newBinner(x), newBinner(y)
	g := NewBinGrid(bx.bins, by.bins)

	n := min(len(xs), len(ys))
	for i := 0; i < n; i++ {
		g[bx.index(xs[i])][by.index(ys[i])]++
	}
	return g
}

// Bin1D counts events of a single channel. It is Bin with a one-bin y axis.
func Bin1D(x Axis, xs []float64) BinGrid {
	return Bin(x, Axis{Bins: 1, Min: 0, Max: 1}, xs, make([]float64, len(xs)))
}
