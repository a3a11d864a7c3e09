package density

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// dims is the dimensionality used in the Silverman bandwidth rule.
const dims = 2

// Grid holds smoothed kernel mass indexed as grid[x][y].
type Grid [][]float64

// NewGrid returns a zeroed nx×ny density grid.
func NewGrid(nx, ny int) Grid {
	g := make(Grid, nx)
	cells := make([]float64, nx*ny)
	for i := range g {
		g[i] = cells[i*ny : (i+1)*ny : (i+1)*ny]
	}
	return g
}

// Total returns the summed mass of g.
func (g Grid) Total() float64 {
	var sum float64
	for _, col := range g {
		for _, v := range col {
			sum += v
		}
	}
	return sum
}

// Bandwidth holds the per-axis kernel half-widths, in bins.
type Bandwidth struct {
	X, Y float64
}

// Estimate spreads every count of g over its neighbours with a separable
// triweight kernel. Each count deposits its own mass (less what falls off
// the grid edge), so the result totals roughly g.Total() rather than 1.
func Estimate(g BinGrid, smoothing float64) Grid {
	out, _ := EstimateWithBandwidth(g, smoothing)
	return out
}

// EstimateWithBandwidth is Estimate that also reports the bandwidth it chose.
func EstimateWithBandwidth(g BinGrid, smoothing float64) (Grid, Bandwidth) {
	nx := len(g)
	ny := 0
	if nx > 0 {
		ny = len(g[0])
	}
	out := NewGrid(nx, ny)

	xWeights := make([]float64, nx)
	yWeights := make([]float64, ny)
	var n float64
	for i := 0; i < nx; i++ {
		for j := 0; j < ny && j < len(g[i]); j++ {
			c := float64(g[i][j])
			xWeights[i] += c
			yWeights[j] += c
			n += c
		}
	}
	if n == 0 {
		return out, Bandwidth{}
	}

	_, sdX := stat.PopMeanStdDev(indices(nx), xWeights)
	_, sdY := stat.PopMeanStdDev(indices(ny), yWeights)

	a := math.Pow(4/((dims+2)*n), 1.0/(dims+4))
	bw := Bandwidth{
		X: clampBandwidth(smoothing * sdX * a),
		Y: clampBandwidth(smoothing * sdY * a),
	}
	kx := kernel(bw.X, nx)
	ky := kernel(bw.Y, ny)
	rx, ry := len(kx)-1, len(ky)-1

	for i := 0; i < nx; i++ {
		for j := 0; j < ny && j < len(g[i]); j++ {
			c := g[i][j]
			if c == 0 {
				continue
			}
			count := float64(c)
			for p := max(-rx, -i); p <= rx && i+p < nx; p++ {
				wx := count * kx[abs(p)]
				col := out[i+p]
				for q := max(-ry, -j); q <= ry && j+q < ny; q++ {
					col[j+q] += wx * ky[abs(q)]
				}
			}
		}
	}
	return out, bw
}

func clampBandwidth(bw float64) float64 {
	if math.IsNaN(bw) || math.IsInf(bw, 0) || bw < 0 {
		return 0
	}
	return bw
}

// Triweight is the kernel (1-u²)³ on |u| <= 1, zero elsewhere.
func Triweight(u float64) float64 {
	if u < -1 || u > 1 {
		return 0
	}
	w := 1 - u*u
	return w * w * w
}

// kernel tabulates Triweight(p/bw) for integer offsets 0..floor(bw),
// normalized so the symmetric table sums to 1. Offsets at or beyond limit
// can never land on the grid and are left out of the table, but still count
// toward the normalization.
func kernel(bw float64, limit int) []float64 {
	if bw < 1 {
		return []float64{1}
	}
	r := int(math.Floor(bw))
	size := min(r, max(limit-1, 0)) + 1
	k := make([]float64, size)

	sum := 1.0
	k[0] = 1
	for p := 1; p <= r; p++ {
		w := Triweight(float64(p) / bw)
		if w == 0 {
			continue
		}
		sum += 2 * w
		if p < size {
			k[p] = w
		}
	}
	for p := range k {
		k[p] /= sum
	}
	return k
}

func indices(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
