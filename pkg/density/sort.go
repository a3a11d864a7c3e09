package density

import (
	"cmp"
	"slices"
)

// Entry is one grid cell in render order.
type Entry struct {
	Value float64
	X     int
	Y     int
}

// Number is the element type of grids accepted by Sort.
type Number interface {
	~int | ~int32 | ~int64 | ~uint32 | ~float32 | ~float64
}

// Sort flattens grid into entries ordered by ascending value so that dense
// cells paint last. Ties come out in no particular order.
func Sort[G ~[][]T, T Number](grid G) []Entry {
	n := 0
	for _, col := range grid {
		n += len(col)
	}
	out := make([]Entry, 0, n)
	for x, col := range grid {
		for y, v := range col {
			out = append(out, Entry{Value: float64(v), X: x, Y: y})
		}
	}
	slices.SortFunc(out, func(a, b Entry) int { return cmp.Compare(a.Value, b.Value) })
	return out
}
