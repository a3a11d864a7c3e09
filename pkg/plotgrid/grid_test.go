package plotgrid

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasmap-sc/cytoplot/pkg/density"
	"github.com/atlasmap-sc/cytoplot/pkg/population"
	"github.com/atlasmap-sc/cytoplot/pkg/scale"
)

// fakeRef reports value for every statistic except event count.
type fakeRef struct {
	id      string
	channel string
	value   float64
	count   int
	err     error
	calls   *int
}

func (f *fakeRef) Name() string    { return f.id }
func (f *fakeRef) Channel() string { return f.channel }

func (f *fakeRef) EventCount() (int, error) { return f.count, nil }

func (f *fakeRef) Statistic(s population.Statistic, _ string) (float64, error) {
	if f.calls != nil {
		*f.calls++
	}
	if f.err != nil {
		return 0, f.err
	}
	if s == population.StatEventCount {
		return float64(f.count), nil
	}
	return f.value, nil
}

func (f *fakeRef) IsSamePopulation(other population.Reference) bool {
	o, ok := other.(*fakeRef)
	return ok && o.id == f.id
}

func ref(v float64) *fakeRef {
	return &fakeRef{id: "p", channel: "CD4", value: v, count: 100}
}

// valueGrid builds a fake-reference grid from per-layer values; NaN marks
// an empty cell.
func valueGrid(layers ...[][]float64) [][][]population.Reference {
	out := make([][][]population.Reference, len(layers))
	for l, layer := range layers {
		out[l] = make([][]population.Reference, len(layer))
		for r, row := range layer {
			out[l][r] = make([]population.Reference, len(row))
			for c, v := range row {
				if !math.IsNaN(v) {
					out[l][r][c] = ref(v)
				}
			}
		}
	}
	return out
}

func mustGrid(t *testing.T, refs [][][]population.Reference, opts ...Option) *Grid {
	t.Helper()
	g, err := New(refs, opts...)
	require.NoError(t, err)
	return g
}

func mustValues(t *testing.T, g *Grid) [][][]float64 {
	t.Helper()
	v, err := g.Values()
	require.NoError(t, err)
	return v
}

var nan = math.NaN()

func TestNew_Shape(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	assert.ErrorIs(t, err, ErrShape)

	_, err = New([][][]population.Reference{{{nil, nil}, {nil}}})
	assert.ErrorIs(t, err, ErrShape)

	_, err = New([][][]population.Reference{{{nil}}, {{nil}, {nil}}})
	assert.ErrorIs(t, err, ErrShape)

	g := mustGrid(t, valueGrid([][]float64{{1, 2, 3}, {4, 5, 6}}), WithLabels([]string{"a", "b"}, []string{"x", "y", "z"}))
	l, r, c := g.Shape()
	assert.Equal(t, []int{1, 2, 3}, []int{l, r, c})
	assert.Equal(t, []string{"a", "b"}, g.RowLabels())
	assert.Equal(t, []string{"x", "y", "z"}, g.ColumnLabels())
}

func TestValues_MissingAndCutoff(t *testing.T) {
	t.Parallel()

	refs := valueGrid([][]float64{{1, nan}, {3, 4}})
	refs[0][1][1].(*fakeRef).count = 10
	g := mustGrid(t, refs, WithCutoff(10))

	v := mustValues(t, g)
	assert.Equal(t, 1.0, v[0][0][0])
	assert.True(t, math.IsNaN(v[0][0][1]), "nil reference must be NaN")
	assert.Equal(t, 3.0, v[0][1][0])
	assert.True(t, math.IsNaN(v[0][1][1]), "count at cutoff must be NaN")

	g.SetCutoff(9)
	v = mustValues(t, g)
	assert.Equal(t, 4.0, v[0][1][1])

	g.SetCutoff(0)
	refs[0][1][1].(*fakeRef).count = 0
	g.SetStatistic(population.StatMean)
	v = mustValues(t, g)
	assert.Equal(t, 4.0, v[0][1][1], "cutoff below 1 disables exclusion")
}

func TestValues_RatioByCell(t *testing.T) {
	t.Parallel()

	g := mustGrid(t,
		valueGrid(
			[][]float64{{5, 10}, {2.5, 0}},
			[][]float64{{5, 20}, {nan, 1}},
		),
		WithEquation(EquationRatio),
		WithControl(ByCell{Row: 0, Column: 0}),
	)
	v := mustValues(t, g)

	for l := range v {
		assert.Equal(t, 1.0, v[l][0][0], "layer %d cell (0,0)", l)
	}
	assert.Equal(t, 2.0, v[0][0][1])
	assert.Equal(t, 0.5, v[0][1][0])
	assert.Equal(t, 0.0, v[0][1][1])
	assert.Equal(t, 4.0, v[1][0][1])
	assert.True(t, math.IsNaN(v[1][1][0]))
	assert.Equal(t, 0.2, v[1][1][1])
}

func TestValues_Equations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		eq   EquationKind
		v, c float64
		want float64
	}{
		{EquationRatio, 6, 3, 2},
		{EquationLogRatio, 1000, 10, 2},
		{EquationLog2Ratio, 8, 2, 2},
		{EquationDifference, 2, 7, -5},
		{EquationFold, 4, 4, 0},
		{EquationFold, 8, 4, 1},
		{EquationFold, 2, 4, -1},
		{EquationFold, 1, 4, -3},
	}
	for _, tt := range tests {
		t.Run(tt.eq.String(), func(t *testing.T) {
			g := mustGrid(t, valueGrid([][]float64{{tt.c, tt.v}}), WithEquation(tt.eq), WithControl(ControlCell11))
			v := mustValues(t, g)
			assert.InDelta(t, tt.want, v[0][0][1], 1e-12)
		})
	}

	t.Run("division by zero", func(t *testing.T) {
		g := mustGrid(t, valueGrid([][]float64{{0, 3}}), WithEquation(EquationRatio), WithControl(ControlCell11))
		assert.True(t, math.IsInf(mustValues(t, g)[0][0][1], 1))
	})

	t.Run("log of non-positive", func(t *testing.T) {
		g := mustGrid(t, valueGrid([][]float64{{10, -5}}), WithEquation(EquationLogRatio), WithControl(ControlCell11))
		assert.True(t, math.IsNaN(mustValues(t, g)[0][0][1]))
	})
}

func TestValues_FoldNeverInsideDeadZone(t *testing.T) {
	t.Parallel()

	row := []float64{4, 0.5, 1, 2, 3, 4, 5, 8, 16}
	g := mustGrid(t, valueGrid([][]float64{row}), WithEquation(EquationFold), WithControl(ControlCell11))
	for c, v := range mustValues(t, g)[0][0] {
		// Fold is v/c-1 above the control and 1-c/v below it, so it is
		// continuous through 0 and keeps the sign of v-c.
		switch {
		case row[c] > 4:
			assert.Greater(t, v, 0.0, "column %d", c)
		case row[c] < 4:
			assert.Less(t, v, 0.0, "column %d", c)
		default:
			assert.Equal(t, 0.0, v, "column %d", c)
		}
	}
}

func TestValues_Controls(t *testing.T) {
	t.Parallel()

	layer0 := [][]float64{
		{1, 2, 3},
		{4, nan, 6},
	}
	// Layer 1 holds values outside layer 0's range; they must never be
	// picked as a control.
	layer1 := [][]float64{
		{100, 200, 300},
		{-100, 5, 0.5},
	}

	tests := []struct {
		name   string
		ctl    Control
		layer0 [][]float64
		layer1 [][]float64
	}{
		{"by_cell", ByCell{Row: 1, Column: 2}, [][]float64{{-5, -4, -3}, {-2, nan, 0}}, [][]float64{{94, 194, 294}, {-106, -1, -5.5}}},
		{"cell_1_1", ControlCell11, [][]float64{{0, 1, 2}, {3, nan, 5}}, [][]float64{{99, 199, 299}, {-101, 4, -0.5}}},
		{"table_min", ControlTableMin, [][]float64{{0, 1, 2}, {3, nan, 5}}, [][]float64{{99, 199, 299}, {-101, 4, -0.5}}},
		{"table_max", ControlTableMax, [][]float64{{-5, -4, -3}, {-2, nan, 0}}, [][]float64{{94, 194, 294}, {-106, -1, -5.5}}},
		{"by_row", ByRow{Row: 1}, [][]float64{{-3, nan, -3}, {0, nan, 0}}, [][]float64{{96, nan, 294}, {-104, nan, -5.5}}},
		{"row_1", ControlRow1, [][]float64{{0, 0, 0}, {3, nan, 3}}, [][]float64{{99, 198, 297}, {-101, 3, -2.5}}},
		{"by_column", ByColumn{Column: 2}, [][]float64{{-2, -1, 0}, {-2, nan, 0}}, [][]float64{{97, 197, 297}, {-106, -1, -5.5}}},
		{"column_1", ControlColumn1, [][]float64{{0, 1, 2}, {0, nan, 2}}, [][]float64{{99, 199, 299}, {-104, 1, -3.5}}},
		{"row_min", ControlRowMin, [][]float64{{0, 1, 2}, {0, nan, 2}}, [][]float64{{99, 199, 299}, {-104, 1, -3.5}}},
		{"row_max", ControlRowMax, [][]float64{{-2, -1, 0}, {-2, nan, 0}}, [][]float64{{97, 197, 297}, {-106, -1, -5.5}}},
		{"column_min", ControlColumnMin, [][]float64{{0, 0, 0}, {3, nan, 3}}, [][]float64{{99, 198, 297}, {-101, 3, -2.5}}},
		{"column_max", ControlColumnMax, [][]float64{{-3, 0, -3}, {0, nan, 0}}, [][]float64{{96, 198, 294}, {-104, 3, -5.5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := mustGrid(t, valueGrid(layer0, layer1), WithEquation(EquationDifference), WithControl(tt.ctl))
			v := mustValues(t, g)
			assertGrid(t, tt.layer0, v[0])
			assertGrid(t, tt.layer1, v[1])
		})
	}
}

func assertGrid(t *testing.T, want, got [][]float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for r := range want {
		require.Len(t, got[r], len(want[r]))
		for c := range want[r] {
			if math.IsNaN(want[r][c]) {
				assert.True(t, math.IsNaN(got[r][c]), "(%d,%d): want NaN, got %v", r, c, got[r][c])
				continue
			}
			assert.InDelta(t, want[r][c], got[r][c], 1e-12, "(%d,%d)", r, c)
		}
	}
}

func TestValues_NoControlOrNoEquation(t *testing.T) {
	t.Parallel()

	raw := [][]float64{{1, 2}, {3, 4}}
	g := mustGrid(t, valueGrid(raw), WithEquation(EquationRatio))
	assertGrid(t, raw, mustValues(t, g)[0])

	g = mustGrid(t, valueGrid(raw), WithControl(ControlTableMax))
	assertGrid(t, raw, mustValues(t, g)[0])
}

func TestClassification(t *testing.T) {
	t.Parallel()

	g := mustGrid(t, valueGrid([][]float64{{1}}))
	assert.False(t, g.IsBidirectional())
	assert.False(t, g.IsMaximum())
	assert.True(t, g.IsMinimum())
	assert.True(t, math.IsNaN(g.Inflection()))

	g.SetEquation(EquationDifference)
	g.SetControl(ByRow{Row: 0})
	assert.True(t, g.IsBidirectional())
	assert.False(t, g.IsMinimum())
	assert.Equal(t, 0.0, g.Inflection())

	for _, k := range []ControlKind{ControlTableMax, ControlRowMax, ControlColumnMax} {
		g.SetControl(k)
		assert.False(t, g.IsBidirectional(), k.String())
		assert.True(t, g.IsMaximum(), k.String())
		assert.False(t, g.IsMinimum(), k.String())
		assert.True(t, math.IsNaN(g.Inflection()))
	}
	for _, k := range []ControlKind{ControlTableMin, ControlRowMin, ControlColumnMin, ControlNone} {
		g.SetControl(k)
		assert.False(t, g.IsMaximum(), k.String())
		assert.True(t, g.IsMinimum(), k.String())
	}
	for _, eq := range []EquationKind{EquationRatio, EquationLogRatio, EquationLog2Ratio, EquationFold} {
		g.SetEquation(eq)
		for _, c := range []Control{ByCell{}, ByRow{}, ByColumn{}, ControlRow1, ControlColumn1, ControlCell11} {
			g.SetControl(c)
			assert.True(t, g.IsBidirectional(), "%s/%s", eq, c.Kind())
		}
	}

	g.SetFormula("mean")
	g.SetControl(ControlCell11)
	assert.False(t, g.IsBidirectional())
	assert.True(t, g.IsMinimum())
}

func TestUndefinedEnumsFallBack(t *testing.T) {
	t.Parallel()

	g := mustGrid(t, valueGrid([][]float64{{1, 2}}), WithEquation(EquationRatio), WithControl(ControlCell11))
	g.SetEquation(EquationKind(42))
	assert.Equal(t, EquationNone, g.Equation().Kind())
	g.SetControl(ControlKind(-3))
	assert.Equal(t, ControlNone, g.Control().Kind())
	g.SetStatistic(population.Statistic(77))
	assert.Equal(t, population.StatNone, g.Statistic())

	g.SetControl(ControlByRow)
	assert.Equal(t, ByRow{}, g.Control())
	g.SetEquation(EquationCustom)
	assert.Equal(t, Custom{}, g.Equation())

	assert.Equal(t, ByCell{Row: 2, Column: 3}, ParseControl("BY_CELL", 2, 3))
	assert.Equal(t, ByColumn{Column: 3}, ParseControl("by-column", 2, 3))
	assert.Equal(t, ControlCell11, ParseControl("cell_1_1", 2, 3))
	assert.Equal(t, ControlNone, ParseControl("by_quadrant", 2, 3))
	assert.Equal(t, EquationLog2Ratio, ParseEquation("Log2 Ratio"))
	assert.Equal(t, EquationNone, ParseEquation("sqrt"))
}

func TestValues_LazyRecompute(t *testing.T) {
	t.Parallel()

	calls := 0
	r := ref(3)
	r.calls = &calls
	g := mustGrid(t, [][][]population.Reference{{{r}}})

	mustValues(t, g)
	mustValues(t, g)
	_, _ = g.TableMax()
	assert.Equal(t, 1, calls, "reads without mutation must reuse the cache")

	g.SetStatistic(population.StatMedian)
	mustValues(t, g)
	assert.Equal(t, 2, calls)

	g.SetControl(ControlCell11)
	g.SetEquation(EquationRatio)
	v := mustValues(t, g)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1.0, v[0][0][0])
}

func TestValues_ErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("fetch failed")
	r := ref(2)
	r.err = boom
	g := mustGrid(t, [][][]population.Reference{{{ref(1), r}}})

	_, err := g.Values()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	r.err = nil
	v := mustValues(t, g)
	assert.Equal(t, 2.0, v[0][0][1], "failed refresh must leave the grid dirty")
}

func TestValues_PopulationReuse(t *testing.T) {
	t.Parallel()

	build := func(calls *int) [][][]population.Reference {
		shared := &fakeRef{id: "shared", channel: "CD4", value: 7, count: 50, calls: calls}
		other := &fakeRef{id: "shared", channel: "CD8", value: 9, count: 50, calls: calls}
		unique := &fakeRef{id: "u", channel: "CD4", value: 2, count: 50, calls: calls}
		return [][][]population.Reference{{
			{shared, shared, other},
			{shared, unique, shared},
		}}
	}

	var plainCalls, reuseCalls int
	plain := mustGrid(t, build(&plainCalls), WithEquation(EquationRatio), WithControl(ControlTableMin))
	reused := mustGrid(t, build(&reuseCalls), WithEquation(EquationRatio), WithControl(ControlTableMin), WithPopulationReuse())

	assertGrid(t, mustValues(t, plain)[0], mustValues(t, reused)[0])
	assert.Equal(t, 6, plainCalls)
	// shared/CD4 computed once in row 0 / column 0; (1,2) lies outside the edge.
	assert.Equal(t, 4, reuseCalls)
}

func TestValues_Custom(t *testing.T) {
	t.Parallel()

	refs := valueGrid([][]float64{{2, nan}, {5, 8}})
	refs[0][1][1].(*fakeRef).count = 1
	g := mustGrid(t, refs, WithEquation(Custom{Formula: "mean * 10 + row"}), WithCutoff(1), WithControl(ControlCell11))

	v := mustValues(t, g)
	assert.Equal(t, 20.0, v[0][0][0])
	assert.True(t, math.IsNaN(v[0][0][1]))
	assert.Equal(t, 51.0, v[0][1][0])
	assert.True(t, math.IsNaN(v[0][1][1]), "excluded population")

	g.SetFormula("event_count")
	v = mustValues(t, g)
	assert.Equal(t, 100.0, v[0][0][0])

	g.SetFormula("mean +")
	_, err := g.Values()
	require.Error(t, err)

	g.SetFormula("")
	v = mustValues(t, g)
	assert.True(t, math.IsNaN(v[0][0][0]))
}

func TestTableExtremaUseLayerZero(t *testing.T) {
	t.Parallel()

	g := mustGrid(t, valueGrid(
		[][]float64{{3, nan}, {1, 2}},
		[][]float64{{-50, 99}, {nan, 1000}},
	))
	lo, err := g.TableMin()
	require.NoError(t, err)
	hi, err := g.TableMax()
	require.NoError(t, err)
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 3.0, hi)

	v, err := g.Value(1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, v)
	v, err = g.Value(5, 0, 0)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))
	assert.Nil(t, g.Reference(0, 0, 9))
}

func TestDensities(t *testing.T) {
	t.Parallel()

	events := make([]float64, 400)
	for i := range events {
		events[i] = float64(i%40) + 0.5
	}
	set, err := population.NewEventSet(population.EventSetConfig{
		Name:     "cd4",
		Channels: map[string][]float64{"CD4": events, "CD8": events},
	})
	require.NoError(t, err)

	refs := [][][]population.Reference{{{set.Ref("CD4"), nil, ref(1), set.Ref("CD8")}}}
	g := mustGrid(t, refs)

	d, err := g.Densities()
	require.NoError(t, err)
	assert.Nil(t, d, "no scale context attached")

	g.AttachScales(&ScaleContext{
		Axes: map[string]density.Axis{"CD4": {Scale: scale.Linear{}, Min: 0, Max: 40, Bins: 10}},
		Bins: 20,
	})
	d, err = g.Densities()
	require.NoError(t, err)
	require.Len(t, d, 1)
	require.Len(t, d[0][0], 4)

	curve := d[0][0][0]
	require.Len(t, curve, 20)
	var total float64
	for _, v := range curve {
		total += v
	}
	// Events are uniform over the range, so edge clipping loses some mass.
	assert.LessOrEqual(t, total, 400.0+1e-9)
	assert.Greater(t, total, 300.0)
	assert.Nil(t, d[0][0][1], "nil reference")
	assert.Nil(t, d[0][0][2], "reference without events")
	assert.Nil(t, d[0][0][3], "channel without axis")

	g.AttachScales(nil)
	d, err = g.Densities()
	require.NoError(t, err)
	assert.Nil(t, d)
}
