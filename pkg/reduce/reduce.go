// Package reduce provides NaN-ignoring extremum reductions over dense grids.
//
// Every function skips NaN entries. An empty or all-NaN input yields NaN.
package reduce

import "math"

// Min returns the smallest non-NaN value in xs.
func Min(xs []float64) float64 {
	m := math.NaN()
	for _, v := range xs {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(m) || v < m {
			m = v
		}
	}
	return m
}

// Max returns the largest non-NaN value in xs.
func Max(xs []float64) float64 {
	m := math.NaN()
	for _, v := range xs {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(m) || v > m {
			m = v
		}
	}
	return m
}

// Min2D returns the smallest non-NaN value in grid.
func Min2D(grid [][]float64) float64 {
	m := math.NaN()
	for _, row := range grid {
		if v := Min(row); !math.IsNaN(v) && (math.IsNaN(m) || v < m) {
			m = v
		}
	}
	return m
}

// Max2D returns the largest non-NaN value in grid.
func Max2D(grid [][]float64) float64 {
	m := math.NaN()
	for _, row := range grid {
		if v := Max(row); !math.IsNaN(v) && (math.IsNaN(m) || v > m) {
			m = v
		}
	}
	return m
}

// Min3D returns the smallest non-NaN value in grid.
func Min3D(grid [][][]float64) float64 {
	m := math.NaN()
	for _, layer := range grid {
		if v := Min2D(layer); !math.IsNaN(v) && (math.IsNaN(m) || v < m) {
			m = v
		}
	}
	return m
}

// Max3D returns the largest non-NaN value in grid.
func Max3D(grid [][][]float64) float64 {
	m := math.NaN()
	for _, layer := range grid {
		if v := Max2D(layer); !math.IsNaN(v) && (math.IsNaN(m) || v > m) {
			m = v
		}
	}
	return m
}

// ArgMin2D returns the position of the first smallest non-NaN value.
// ok is false when grid holds no non-NaN value.
func ArgMin2D(grid [][]float64) (row, col int, ok bool) {
	return arg2D(grid, func(a, b float64) bool { return a < b })
}

// ArgMax2D returns the position of the first largest non-NaN value.
func ArgMax2D(grid [][]float64) (row, col int, ok bool) {
	return arg2D(grid, func(a, b float64) bool { return a > b })
}

func arg2D(grid [][]float64, better func(a, b float64) bool) (row, col int, ok bool) {
	best := math.NaN()
	for r, cells := range grid {
		for c, v := range cells {
			if math.IsNaN(v) {
				continue
			}
			if !ok || better(v, best) {
				best, row, col, ok = v, r, c, true
			}
		}
	}
	return row, col, ok
}

// Column extracts column c of grid; rows too short contribute NaN.
func Column(grid [][]float64, c int) []float64 {
	out := make([]float64, len(grid))
	for r, cells := range grid {
		if c >= 0 && c < len(cells) {
			out[r] = cells[c]
		} else {
			out[r] = math.NaN()
		}
	}
	return out
}
