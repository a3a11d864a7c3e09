// Package plotgrid computes a layer × row × column grid of per-population
// statistics, optionally re-expressed against a control cell, for heatmap
// style plots.
//
// Values are computed lazily: configuration setters only mark the grid
// dirty, and the next read recomputes the value and density caches from
// scratch. Layer 0 is canonical for every cross-cell extremum (control
// resolution as well as TableMin/TableMax); other layers are compared
// against it and never contribute their own extrema.
package plotgrid

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/atlasmap-sc/cytoplot/internal/formula"
	"github.com/atlasmap-sc/cytoplot/pkg/density"
	"github.com/atlasmap-sc/cytoplot/pkg/population"
	"github.com/atlasmap-sc/cytoplot/pkg/reduce"
)

// ErrShape is returned for empty or ragged reference grids.
var ErrShape = errors.New("invalid grid shape")

// ScaleContext carries the per-channel binning used for per-cell densities.
type ScaleContext struct {
	// Axes maps a channel name to its scale and range.
	Axes map[string]density.Axis
	// Bins overrides each axis' bin count when positive.
	Bins int
	// Smoothing multiplies the estimated bandwidth; zero means 1.
	Smoothing float64
}

// Grid is the population grid.
type Grid struct {
	mu sync.Mutex

	refs                 [][][]population.Reference
	layers, rows, cols   int
	rowLabels, colLabels []string

	statistic population.Statistic
	equation  Equation
	control   Control
	cutoff    int
	evaluator formula.Evaluator
	reuse     bool
	scales    *ScaleContext

	dirty     bool
	values    [][][]float64
	densities [][][][]float64
}

// Option configures a Grid at construction.
type Option func(*Grid)

// WithLabels sets the row and column labels.
func WithLabels(rows, columns []string) Option {
	return func(g *Grid) {
		g.rowLabels = rows
		g.colLabels = columns
	}
}

// WithStatistic sets the per-cell statistic.
func WithStatistic(s population.Statistic) Option {
	return func(g *Grid) { g.statistic = s.Normalize() }
}

// WithEquation sets the cross-cell equation.
func WithEquation(e Equation) Option {
	return func(g *Grid) { g.equation = normalizeEquation(e) }
}

// WithControl sets the control selection.
func WithControl(c Control) Option {
	return func(g *Grid) { g.control = normalizeControl(c) }
}

// WithCutoff excludes populations with at most n events. n < 1 disables it.
func WithCutoff(n int) Option {
	return func(g *Grid) { g.cutoff = n }
}

// WithEvaluator replaces the formula evaluator used by Custom equations.
func WithEvaluator(e formula.Evaluator) Option {
	return func(g *Grid) { g.evaluator = e }
}

// WithPopulationReuse computes the statistic once for identical populations
// found in row 0 and column 0 and copies it to the repeats. Results are the
// same with or without it.
func WithPopulationReuse() Option {
	return func(g *Grid) { g.reuse = true }
}

// WithScales attaches a scale context, enabling Densities.
func WithScales(sc ScaleContext) Option {
	return func(g *Grid) { g.scales = &sc }
}

// New builds a grid over refs, indexed refs[layer][row][column]. Entries may
// be nil. Every layer must have the same number of rows and every row the
// same number of columns.
func New(refs [][][]population.Reference, opts ...Option) (*Grid, error) {
	if len(refs) == 0 || len(refs[0]) == 0 || len(refs[0][0]) == 0 {
		return nil, fmt.Errorf("%w: grid must have at least one layer, row and column", ErrShape)
	}
	layers, rows, cols := len(refs), len(refs[0]), len(refs[0][0])
	for l, layer := range refs {
		if len(layer) != rows {
			return nil, fmt.Errorf("%w: layer %d has %d rows, want %d", ErrShape, l, len(layer), rows)
		}
		for r, row := range layer {
			if len(row) != cols {
				return nil, fmt.Errorf("%w: layer %d row %d has %d columns, want %d", ErrShape, l, r, len(row), cols)
			}
		}
	}

	g := &Grid{
		refs:      refs,
		layers:    layers,
		rows:      rows,
		cols:      cols,
		statistic: population.StatMean,
		equation:  EquationNone,
		control:   ControlNone,
		dirty:     true,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.evaluator == nil {
		ev, err := formula.New(formula.DefaultCacheSize)
		if err != nil {
			return nil, err
		}
		g.evaluator = ev
	}
	return g, nil
}

// Shape returns the number of layers, rows and columns.
func (g *Grid) Shape() (layers, rows, columns int) { return g.layers, g.rows, g.cols }

// RowLabels returns the row labels.
func (g *Grid) RowLabels() []string { return g.rowLabels }

// ColumnLabels returns the column labels.
func (g *Grid) ColumnLabels() []string { return g.colLabels }

// Reference returns the reference stored at a cell, or nil.
func (g *Grid) Reference(layer, row, column int) population.Reference {
	if !g.inBounds(layer, row, column) {
		return nil
	}
	return g.refs[layer][row][column]
}

func (g *Grid) inBounds(layer, row, column int) bool {
	return layer >= 0 && layer < g.layers && row >= 0 && row < g.rows && column >= 0 && column < g.cols
}

// Statistic returns the configured statistic.
func (g *Grid) Statistic() population.Statistic {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statistic
}

// Equation returns the configured equation.
func (g *Grid) Equation() Equation {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.equation
}

// Control returns the configured control.
func (g *Grid) Control() Control {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.control
}

// Cutoff returns the configured population cutoff.
func (g *Grid) Cutoff() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cutoff
}

// SetStatistic changes the statistic. Undefined values become StatNone.
func (g *Grid) SetStatistic(s population.Statistic) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statistic = s.Normalize()
	g.dirty = true
}

// SetEquation changes the equation. Undefined kinds become EquationNone.
func (g *Grid) SetEquation(e Equation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.equation = normalizeEquation(e)
	g.dirty = true
}

// SetFormula switches the grid to a Custom equation with formula.
func (g *Grid) SetFormula(f string) {
	g.SetEquation(Custom{Formula: f})
}

// SetControl changes the control. Undefined kinds become ControlNone.
func (g *Grid) SetControl(c Control) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.control = normalizeControl(c)
	g.dirty = true
}

// SetCutoff changes the population cutoff.
func (g *Grid) SetCutoff(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cutoff = n
	g.dirty = true
}

// AttachScales sets or, with nil, removes the density scale context.
func (g *Grid) AttachScales(sc *ScaleContext) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if sc != nil {
		cp := *sc
		sc = &cp
	}
	g.scales = sc
	g.dirty = true
}

// Values returns the value grid, recomputing it if the configuration
// changed. Cells are NaN where there is no reference or the population is
// excluded by the cutoff. The returned slices must not be modified.
func (g *Grid) Values() ([][][]float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.refresh(); err != nil {
		return nil, err
	}
	return g.values, nil
}

// Value returns one cell of the value grid; out-of-range cells are NaN.
func (g *Grid) Value(layer, row, column int) (float64, error) {
	values, err := g.Values()
	if err != nil {
		return math.NaN(), err
	}
	if !g.inBounds(layer, row, column) {
		return math.NaN(), nil
	}
	return values[layer][row][column], nil
}

// Densities returns per-cell density arrays indexed
// [layer][row][column][bin]. It is nil when no scale context is attached;
// individual cells are nil when their population is missing, excluded,
// cannot supply events, or its channel has no axis.
func (g *Grid) Densities() ([][][][]float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.refresh(); err != nil {
		return nil, err
	}
	return g.densities, nil
}

// TableMin returns the smallest non-NaN value of layer 0.
func (g *Grid) TableMin() (float64, error) {
	values, err := g.Values()
	if err != nil {
		return math.NaN(), err
	}
	return reduce.Min2D(values[0]), nil
}

// TableMax returns the largest non-NaN value of layer 0.
func (g *Grid) TableMax() (float64, error) {
	values, err := g.Values()
	if err != nil {
		return math.NaN(), err
	}
	return reduce.Max2D(values[0]), nil
}

// IsBidirectional reports whether values diverge around an inflection
// point: a pivoting equation compared against a fixed control cell, row or
// column.
func (g *Grid) IsBidirectional() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bidirectional()
}

func (g *Grid) bidirectional() bool {
	if !g.equation.Kind().pivots() {
		return false
	}
	switch g.control.Kind() {
	case ControlByCell, ControlByRow, ControlByColumn, ControlRow1, ControlColumn1, ControlCell11:
		return true
	}
	return false
}

// IsMaximum reports whether a unidirectional grid is relative to a maximum,
// so every value sits at or below its control.
func (g *Grid) IsMaximum() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maximum()
}

func (g *Grid) maximum() bool {
	if !g.equation.Kind().pivots() {
		return false
	}
	switch g.control.Kind() {
	case ControlTableMax, ControlRowMax, ControlColumnMax:
		return true
	}
	return false
}

// IsMinimum reports whether a unidirectional grid is not relative to a maximum.
func (g *Grid) IsMinimum() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.bidirectional() && !g.maximum()
}

// Inflection returns the pivot of a bidirectional grid, 0 for every
// supported equation, and NaN otherwise.
func (g *Grid) Inflection() float64 {
	if g.IsBidirectional() {
		return 0
	}
	return math.NaN()
}
