// Package service wires event files, the plot grid, caches and the
// renderer into the operations the command line exposes.
package service

import (
	"fmt"
	"io"
	"math"

	"github.com/gocarina/gocsv"

	"github.com/atlasmap-sc/cytoplot/internal/cache"
	"github.com/atlasmap-sc/cytoplot/internal/config"
	"github.com/atlasmap-sc/cytoplot/internal/data/events"
	"github.com/atlasmap-sc/cytoplot/internal/render"
	"github.com/atlasmap-sc/cytoplot/pkg/colormap"
	"github.com/atlasmap-sc/cytoplot/pkg/density"
	"github.com/atlasmap-sc/cytoplot/pkg/plotgrid"
	"github.com/atlasmap-sc/cytoplot/pkg/population"
)

// PlotServiceConfig contains plot service configuration.
type PlotServiceConfig struct {
	Config   *config.Config
	Files    []*events.File
	Cache    *cache.Manager
	Renderer *render.PlotRenderer
}

// PlotService builds a plot grid from configured cells and renders it.
type PlotService struct {
	cfg      *config.Config
	cache    *cache.Manager
	renderer *render.PlotRenderer
	grid     *plotgrid.Grid

	// keys[layer][row][column] identifies the population for cache keys.
	keys [][][]string
}

// CellRecord is one exported value grid cell.
type CellRecord struct {
	Layer       int     `csv:"layer"`
	Row         int     `csv:"row"`
	Column      int     `csv:"column"`
	RowLabel    string  `csv:"row_label"`
	ColumnLabel string  `csv:"column_label"`
	Population  string  `csv:"population"`
	Channel     string  `csv:"channel"`
	Value       float64 `csv:"value"`
}

// NewPlotService resolves every configured cell against the loaded files
// and builds the plot grid. Cells naming a population absent from their
// file are logged and left empty.
func NewPlotService(cfg PlotServiceConfig) (*PlotService, error) {
	c := cfg.Config
	layers, rows, cols := c.Grid.Layers, c.Grid.Rows, c.Grid.Columns

	refs := make([][][]population.Reference, layers)
	keys := make([][][]string, layers)
	for l := range refs {
		refs[l] = make([][]population.Reference, rows)
		keys[l] = make([][]string, rows)
		for r := range refs[l] {
			refs[l][r] = make([]population.Reference, cols)
			keys[l][r] = make([]string, cols)
		}
	}

	for _, cell := range c.Grid.Cells {
		if cell.Layer < 0 || cell.Layer >= layers || cell.Row < 0 || cell.Row >= rows || cell.Column < 0 || cell.Column >= cols {
			return nil, fmt.Errorf("cell (%d,%d,%d) outside %dx%dx%d grid", cell.Layer, cell.Row, cell.Column, layers, rows, cols)
		}
		if cell.File < 0 || cell.File >= len(cfg.Files) {
			return nil, fmt.Errorf("cell (%d,%d,%d): file index %d out of range", cell.Layer, cell.Row, cell.Column, cell.File)
		}
		set, err := cfg.Files[cell.File].Population(cell.Population)
		if err != nil {
			Logf("cell (%d,%d,%d) left empty: %v", cell.Layer, cell.Row, cell.Column, err)
			continue
		}
		refs[cell.Layer][cell.Row][cell.Column] = set.Ref(cell.Channel)
		keys[cell.Layer][cell.Row][cell.Column] = fmt.Sprintf("%d/%s", cell.File, cell.Population)
	}

	grid, err := plotgrid.New(refs, c.GridOptions()...)
	if err != nil {
		return nil, err
	}

	return &PlotService{
		cfg:      c,
		cache:    cfg.Cache,
		renderer: cfg.Renderer,
		grid:     grid,
		keys:     keys,
	}, nil
}

// Grid returns the underlying plot grid.
func (s *PlotService) Grid() *plotgrid.Grid { return s.grid }

// Records flattens the value grid for export.
func (s *PlotService) Records() ([]CellRecord, error) {
	values, err := s.grid.Values()
	if err != nil {
		return nil, err
	}
	rowLabels, colLabels := s.grid.RowLabels(), s.grid.ColumnLabels()

	var out []CellRecord
	for l, layer := range values {
		for r, row := range layer {
			for c, v := range row {
				rec := CellRecord{Layer: l, Row: r, Column: c, Value: v}
				if r < len(rowLabels) {
					rec.RowLabel = rowLabels[r]
				}
				if c < len(colLabels) {
					rec.ColumnLabel = colLabels[c]
				}
				if ref := s.grid.Reference(l, r, c); ref != nil {
					rec.Population = ref.Name()
					rec.Channel = ref.Channel()
				}
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

// WriteCSV writes the value grid as CSV.
func (s *PlotService) WriteCSV(w io.Writer) error {
	records, err := s.Records()
	if err != nil {
		return err
	}
	return gocsv.Marshal(records, w)
}

// GridImage renders layer 0 of the value grid as a heatmap. The gradient is
// diverging around the inflection for bidirectional grids and reversed for
// grids relative to a maximum.
func (s *PlotService) GridImage(colormapName string) ([]byte, error) {
	values, err := s.grid.Values()
	if err != nil {
		return nil, err
	}
	lo, err := s.grid.TableMin()
	if err != nil {
		return nil, err
	}
	hi, err := s.grid.TableMax()
	if err != nil {
		return nil, err
	}
	if colormapName == "" {
		colormapName = s.cfg.Render.DefaultColormap
	}
	cmap := colormap.ForGrid(colormapName, s.grid.IsBidirectional(), s.grid.IsMaximum(), lo, hi, s.grid.Inflection())
	return s.renderer.RenderValueGrid(values[0], cmap, lo, hi)
}

// DensityGrid returns the smoothed 2D density of a cell's population over
// the configured x and y channels. Results are cached per population.
func (s *PlotService) DensityGrid(layer, row, column int) (density.Grid, error) {
	ref := s.grid.Reference(layer, row, column)
	if ref == nil {
		return nil, fmt.Errorf("no population at (%d,%d,%d)", layer, row, column)
	}
	src, ok := ref.(population.EventSource)
	if !ok {
		return nil, fmt.Errorf("population %q cannot supply events", ref.Name())
	}

	d := s.cfg.Density
	x, y := d.X.Axis(d.Bins), d.Y.Axis(d.Bins)
	key := cache.DensityKey(s.keys[layer][row][column], x, y, d.Smoothing)
	if g, ok := s.cache.GetDensity(key); ok {
		return g, nil
	}

	xs, err := src.Values(d.X.Channel)
	if err != nil {
		return nil, err
	}
	ys, err := src.Values(d.Y.Channel)
	if err != nil {
		return nil, err
	}
	g := density.Estimate(density.Bin(x, y, xs, ys), d.Smoothing)
	s.cache.SetDensity(key, g)
	return g, nil
}

// DensityImage renders a cell's 2D density plot.
func (s *PlotService) DensityImage(layer, row, column int, colormapName string) ([]byte, error) {
	if colormapName == "" {
		colormapName = s.cfg.Render.DefaultColormap
	}
	if s.grid.Reference(layer, row, column) == nil {
		return nil, fmt.Errorf("no population at (%d,%d,%d)", layer, row, column)
	}

	d := s.cfg.Density
	x, y := d.X.Axis(d.Bins), d.Y.Axis(d.Bins)
	key := cache.PlotKey(s.keys[layer][row][column], x, y, d.Smoothing, colormapName, s.cfg.Render.PlotSize)
	if data, ok := s.cache.GetPlot(key); ok {
		return data, nil
	}

	g, err := s.DensityGrid(layer, row, column)
	if err != nil {
		return nil, err
	}
	data, err := s.renderer.RenderDensity(g, colormapName)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetPlot(key, data); err != nil {
		Logf("failed to cache plot %s: %v", key, err)
	}
	return data, nil
}

// ProfileImage renders a cell's per-channel 1D density, or nil when the
// cell has none.
func (s *PlotService) ProfileImage(layer, row, column int) ([]byte, error) {
	if s.grid.Reference(layer, row, column) == nil {
		return nil, nil
	}
	densities, err := s.grid.Densities()
	if err != nil {
		return nil, err
	}
	if densities == nil || densities[layer][row][column] == nil {
		return nil, nil
	}
	return s.renderer.RenderProfile(densities[layer][row][column])
}

// Summary reports the layer 0 extrema and grid classification.
func (s *PlotService) Summary() (lo, hi float64, kind string, err error) {
	if lo, err = s.grid.TableMin(); err != nil {
		return math.NaN(), math.NaN(), "", err
	}
	if hi, err = s.grid.TableMax(); err != nil {
		return math.NaN(), math.NaN(), "", err
	}
	switch {
	case s.grid.IsBidirectional():
		kind = "bidirectional"
	case s.grid.IsMaximum():
		kind = "maximum"
	default:
		kind = "minimum"
	}
	return lo, hi, kind, nil
}
