package plotgrid

import (
	"fmt"
	"math"

	"github.com/atlasmap-sc/cytoplot/internal/formula"
	"github.com/atlasmap-sc/cytoplot/pkg/density"
	"github.com/atlasmap-sc/cytoplot/pkg/population"
	"github.com/atlasmap-sc/cytoplot/pkg/reduce"
)

// refresh rebuilds both caches when dirty. Callers hold g.mu. On error the
// grid stays dirty so the next read retries.
func (g *Grid) refresh() error {
	if !g.dirty {
		return nil
	}

	var (
		values [][][]float64
		err    error
	)
	if custom, ok := g.equation.(Custom); ok {
		values, err = g.customValues(custom.Formula)
	} else {
		values, err = g.statisticValues()
		if err == nil {
			g.applyEquation(values)
		}
	}
	if err != nil {
		return err
	}

	var densities [][][][]float64
	if g.scales != nil {
		densities, err = g.cellDensities()
		if err != nil {
			return err
		}
	}

	g.values = values
	g.densities = densities
	g.dirty = false
	return nil
}

func (g *Grid) newValueGrid() [][][]float64 {
	cells := make([]float64, g.layers*g.rows*g.cols)
	for i := range cells {
		cells[i] = math.NaN()
	}
	out := make([][][]float64, g.layers)
	for l := range out {
		out[l] = make([][]float64, g.rows)
		for r := range out[l] {
			off := (l*g.rows + r) * g.cols
			out[l][r] = cells[off : off+g.cols : off+g.cols]
		}
	}
	return out
}

// included reports whether ref contributes data: it is non-nil and its
// event count is above an active cutoff.
func (g *Grid) included(ref population.Reference) (bool, error) {
	if ref == nil {
		return false, nil
	}
	if g.cutoff < 1 {
		return true, nil
	}
	n, err := ref.EventCount()
	if err != nil {
		return false, fmt.Errorf("event count of %q: %w", ref.Name(), err)
	}
	return n > g.cutoff, nil
}

type reusedStatistic struct {
	ref   population.Reference
	value float64
}

// statisticValues computes the configured statistic for every cell.
func (g *Grid) statisticValues() ([][][]float64, error) {
	out := g.newValueGrid()
	var seen []reusedStatistic

	for l := 0; l < g.layers; l++ {
		for r := 0; r < g.rows; r++ {
			for c := 0; c < g.cols; c++ {
				ref := g.refs[l][r][c]
				if ref == nil {
					continue
				}
				edge := g.reuse && (r == 0 || c == 0)
				if edge {
					if v, ok := lookupReused(seen, ref); ok {
						out[l][r][c] = v
						continue
					}
				}

				v, err := g.cellStatistic(ref)
				if err != nil {
					return nil, fmt.Errorf("cell %d/%d/%d: %w", l, r, c, err)
				}
				out[l][r][c] = v
				if edge {
					seen = append(seen, reusedStatistic{ref: ref, value: v})
				}
			}
		}
	}
	return out, nil
}

func lookupReused(seen []reusedStatistic, ref population.Reference) (float64, bool) {
	for _, s := range seen {
		if ref.Channel() == s.ref.Channel() && ref.IsSamePopulation(s.ref) {
			return s.value, true
		}
	}
	return 0, false
}

func (g *Grid) cellStatistic(ref population.Reference) (float64, error) {
	ok, err := g.included(ref)
	if err != nil || !ok {
		return math.NaN(), err
	}
	v, err := ref.Statistic(g.statistic, ref.Channel())
	if err != nil {
		return math.NaN(), fmt.Errorf("%s of %q: %w", g.statistic, ref.Name(), err)
	}
	return v, nil
}

// applyEquation rewrites values in place against their controls, all of
// which are resolved from a snapshot of layer 0 taken beforehand.
func (g *Grid) applyEquation(values [][][]float64) {
	eq := g.equation.Kind()
	if eq == EquationNone || eq == EquationCustom || g.control.Kind() == ControlNone {
		return
	}

	base := make([][]float64, g.rows)
	for r := range base {
		base[r] = append([]float64(nil), values[0][r]...)
	}
	control := g.controlResolver(base)

	for l := range values {
		for r := range values[l] {
			for c, v := range values[l][r] {
				values[l][r][c] = eq.apply(v, control(r, c))
			}
		}
	}
}

// controlResolver returns the control value for the cell at (row, column)
// of any layer, computed from the layer-0 snapshot base.
func (g *Grid) controlResolver(base [][]float64) func(row, column int) float64 {
	at := func(r, c int) float64 {
		if r < 0 || r >= g.rows || c < 0 || c >= g.cols {
			return math.NaN()
		}
		return base[r][c]
	}
	constant := func(v float64) func(int, int) float64 {
		return func(int, int) float64 { return v }
	}

	switch ctl := g.control.(type) {
	case ByCell:
		return constant(at(ctl.Row, ctl.Column))
	case ByRow:
		return func(_, c int) float64 { return at(ctl.Row, c) }
	case ByColumn:
		return func(r, _ int) float64 { return at(r, ctl.Column) }
	}

	switch g.control.Kind() {
	case ControlCell11:
		return constant(at(0, 0))
	case ControlTableMin:
		return constant(reduce.Min2D(base))
	case ControlTableMax:
		return constant(reduce.Max2D(base))
	case ControlRow1:
		return func(_, c int) float64 { return at(0, c) }
	case ControlColumn1:
		return func(r, _ int) float64 { return at(r, 0) }
	case ControlRowMin, ControlRowMax, ControlColumnMin, ControlColumnMax:
		return g.lineExtremum(base)
	}
	return constant(math.NaN())
}

func (g *Grid) lineExtremum(base [][]float64) func(row, column int) float64 {
	kind := g.control.Kind()
	byRow := kind == ControlRowMin || kind == ControlRowMax
	pick := reduce.Max
	if kind == ControlRowMin || kind == ControlColumnMin {
		pick = reduce.Min
	}

	var ext []float64
	if byRow {
		ext = make([]float64, g.rows)
		for r := range ext {
			ext[r] = pick(base[r])
		}
		return func(r, _ int) float64 { return ext[r] }
	}
	ext = make([]float64, g.cols)
	for c := range ext {
		ext[c] = pick(reduce.Column(base, c))
	}
	return func(_, c int) float64 { return ext[c] }
}

var recordStatistics = []population.Statistic{
	population.StatMean,
	population.StatMedian,
	population.StatStandardDeviation,
	population.StatVariance,
	population.StatMinimum,
	population.StatMaximum,
	population.StatPercent,
	population.StatEventCount,
	population.StatChannelRange,
}

// customValues evaluates formula once per included cell.
func (g *Grid) customValues(f string) ([][][]float64, error) {
	out := g.newValueGrid()
	if f == "" {
		return out, nil
	}
	for l := 0; l < g.layers; l++ {
		for r := 0; r < g.rows; r++ {
			for c := 0; c < g.cols; c++ {
				ref := g.refs[l][r][c]
				ok, err := g.included(ref)
				if err != nil {
					return nil, fmt.Errorf("cell %d/%d/%d: %w", l, r, c, err)
				}
				if !ok {
					continue
				}
				rec, err := cellRecord(ref, l, r, c)
				if err != nil {
					return nil, fmt.Errorf("cell %d/%d/%d: %w", l, r, c, err)
				}
				v, err := g.evaluator.Evaluate(f, rec)
				if err != nil {
					return nil, fmt.Errorf("cell %d/%d/%d: %w", l, r, c, err)
				}
				out[l][r][c] = v
			}
		}
	}
	return out, nil
}

func cellRecord(ref population.Reference, layer, row, column int) (formula.Record, error) {
	stats := make([]float64, len(recordStatistics))
	ch := ref.Channel()
	for i, s := range recordStatistics {
		v, err := ref.Statistic(s, ch)
		if err != nil {
			return formula.Record{}, fmt.Errorf("%s of %q: %w", s, ref.Name(), err)
		}
		stats[i] = v
	}
	return formula.Record{
		Mean:              stats[0],
		Median:            stats[1],
		StandardDeviation: stats[2],
		Variance:          stats[3],
		Minimum:           stats[4],
		Maximum:           stats[5],
		Percent:           stats[6],
		EventCount:        stats[7],
		ChannelRange:      stats[8],
		Layer:             layer,
		Row:               row,
		Column:            column,
		Channel:           ch,
	}, nil
}

// cellDensities bins and smooths each included cell's channel on its
// configured axis.
func (g *Grid) cellDensities() ([][][][]float64, error) {
	sc := g.scales
	smoothing := sc.Smoothing
	if smoothing == 0 {
		smoothing = 1
	}

	out := make([][][][]float64, g.layers)
	for l := range out {
		out[l] = make([][][]float64, g.rows)
		for r := range out[l] {
			out[l][r] = make([][]float64, g.cols)
			for c := range out[l][r] {
				ref := g.refs[l][r][c]
				ok, err := g.included(ref)
				if err != nil {
					return nil, fmt.Errorf("cell %d/%d/%d: %w", l, r, c, err)
				}
				if !ok {
					continue
				}
				src, isSource := ref.(population.EventSource)
				axis, hasAxis := sc.Axes[ref.Channel()]
				if !isSource || !hasAxis {
					continue
				}
				if sc.Bins > 0 {
					axis.Bins = sc.Bins
				}
				events, err := src.Values(ref.Channel())
				if err != nil {
					return nil, fmt.Errorf("cell %d/%d/%d: events of %q: %w", l, r, c, ref.Name(), err)
				}
				grid := density.Estimate(density.Bin1D(axis, events), smoothing)
				curve := make([]float64, len(grid))
				for i, col := range grid {
					curve[i] = col[0]
				}
				out[l][r][c] = curve
			}
		}
	}
	return out, nil
}
