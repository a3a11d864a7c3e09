// Package config handles configuration loading for cytoplot.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/atlasmap-sc/cytoplot/pkg/density"
	"github.com/atlasmap-sc/cytoplot/pkg/plotgrid"
	"github.com/atlasmap-sc/cytoplot/pkg/population"
	"github.com/atlasmap-sc/cytoplot/pkg/scale"
)

// Config represents the plot configuration.
type Config struct {
	Data             DataConfig    `yaml:"data"`
	Grid             GridConfig    `yaml:"grid"`
	Statistic        string        `yaml:"statistic"`
	Equation         string        `yaml:"equation"`
	Formula          string        `yaml:"formula"`
	Control          string        `yaml:"control"`
	ControlRow       int           `yaml:"control_row"`
	ControlColumn    int           `yaml:"control_column"`
	Cutoff           int           `yaml:"cutoff"`
	ReusePopulations bool          `yaml:"reuse_populations"`
	Density          DensityConfig `yaml:"density"`
	Render           RenderConfig  `yaml:"render"`
	Cache            CacheConfig   `yaml:"cache"`
	Output           OutputConfig  `yaml:"output"`
}

// DataConfig contains event source settings.
type DataConfig struct {
	Files       []string `yaml:"files"`
	LabelColumn string   `yaml:"label_column"`
	Cofactor    float64  `yaml:"cofactor"`
}

// GridConfig lays populations out on the plot grid.
type GridConfig struct {
	Layers       int          `yaml:"layers"`
	Rows         int          `yaml:"rows"`
	Columns      int          `yaml:"columns"`
	RowLabels    []string     `yaml:"row_labels"`
	ColumnLabels []string     `yaml:"column_labels"`
	Cells        []CellConfig `yaml:"cells"`
}

// CellConfig assigns one population and channel to a grid cell.
type CellConfig struct {
	Layer      int    `yaml:"layer"`
	Row        int    `yaml:"row"`
	Column     int    `yaml:"column"`
	File       int    `yaml:"file"`
	Population string `yaml:"population"`
	Channel    string `yaml:"channel"`
}

// AxisConfig describes the scale and range of one channel.
type AxisConfig struct {
	Channel string  `yaml:"channel"`
	Scale   string  `yaml:"scale"`
	Arg     float64 `yaml:"arg"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
}

// DensityConfig contains binning and smoothing settings.
type DensityConfig struct {
	X         AxisConfig            `yaml:"x"`
	Y         AxisConfig            `yaml:"y"`
	Bins      int                   `yaml:"bins"`
	Smoothing float64               `yaml:"smoothing"`
	CellBins  int                   `yaml:"cell_bins"`
	Channels  map[string]AxisConfig `yaml:"channels"`
}

// RenderConfig contains rendering settings.
type RenderConfig struct {
	PlotSize        int    `yaml:"plot_size"`
	CellSize        int    `yaml:"cell_size"`
	DefaultColormap string `yaml:"default_colormap"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	PlotSizeMB     int `yaml:"plot_size_mb"`
	PlotTTLMinutes int `yaml:"plot_ttl_minutes"`
	DensityEntries int `yaml:"density_entries"`
}

// OutputConfig controls where results are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			LabelColumn: "population",
			Cofactor:    scale.DefaultCofactor,
		},
		Grid: GridConfig{
			Layers:  1,
			Rows:    1,
			Columns: 1,
		},
		Statistic: population.StatMedian.String(),
		Equation:  plotgrid.EquationNone.String(),
		Control:   plotgrid.ControlNone.String(),
		Density: DensityConfig{
			Bins:      128,
			Smoothing: 1.0,
			CellBins:  64,
		},
		Render: RenderConfig{
			PlotSize:        512,
			CellSize:        48,
			DefaultColormap: "viridis",
		},
		Cache: CacheConfig{
			PlotSizeMB:     64,
			PlotTTLMinutes: 10,
			DensityEntries: 256,
		},
		Output: OutputConfig{
			Dir: "./out",
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Data.LabelColumn == "" {
		cfg.Data.LabelColumn = defaults.Data.LabelColumn
	}
	if cfg.Data.Cofactor <= 0 {
		cfg.Data.Cofactor = defaults.Data.Cofactor
	}
	if cfg.Statistic == "" {
		cfg.Statistic = defaults.Statistic
	}
	if cfg.Equation == "" {
		cfg.Equation = defaults.Equation
		if cfg.Formula != "" {
			cfg.Equation = plotgrid.EquationCustom.String()
		}
	}
	if cfg.Control == "" {
		cfg.Control = defaults.Control
	}

	// Grid extents default to the largest index any cell uses.
	for _, c := range cfg.Grid.Cells {
		cfg.Grid.Layers = max(cfg.Grid.Layers, c.Layer+1)
		cfg.Grid.Rows = max(cfg.Grid.Rows, c.Row+1)
		cfg.Grid.Columns = max(cfg.Grid.Columns, c.Column+1)
	}
	cfg.Grid.Rows = max(cfg.Grid.Rows, len(cfg.Grid.RowLabels))
	cfg.Grid.Columns = max(cfg.Grid.Columns, len(cfg.Grid.ColumnLabels))
	if cfg.Grid.Layers <= 0 {
		cfg.Grid.Layers = defaults.Grid.Layers
	}
	if cfg.Grid.Rows <= 0 {
		cfg.Grid.Rows = defaults.Grid.Rows
	}
	if cfg.Grid.Columns <= 0 {
		cfg.Grid.Columns = defaults.Grid.Columns
	}

	if cfg.Density.Bins <= 0 {
		cfg.Density.Bins = defaults.Density.Bins
	}
	if cfg.Density.Smoothing == 0 {
		cfg.Density.Smoothing = defaults.Density.Smoothing
	}
	if cfg.Density.CellBins <= 0 {
		cfg.Density.CellBins = defaults.Density.CellBins
	}
	if cfg.Render.PlotSize == 0 {
		cfg.Render.PlotSize = defaults.Render.PlotSize
	}
	if cfg.Render.CellSize == 0 {
		cfg.Render.CellSize = defaults.Render.CellSize
	}
	if cfg.Render.DefaultColormap == "" {
		cfg.Render.DefaultColormap = defaults.Render.DefaultColormap
	}
	if cfg.Cache.PlotSizeMB == 0 {
		cfg.Cache.PlotSizeMB = defaults.Cache.PlotSizeMB
	}
	if cfg.Cache.PlotTTLMinutes == 0 {
		cfg.Cache.PlotTTLMinutes = defaults.Cache.PlotTTLMinutes
	}
	if cfg.Cache.DensityEntries == 0 {
		cfg.Cache.DensityEntries = defaults.Cache.DensityEntries
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = defaults.Output.Dir
	}
}

// StatisticValue parses the configured statistic; unknown names are StatNone.
func (c *Config) StatisticValue() population.Statistic {
	return population.ParseStatistic(c.Statistic)
}

// EquationValue parses the configured equation; unknown names are EquationNone.
func (c *Config) EquationValue() plotgrid.Equation {
	kind := plotgrid.ParseEquation(c.Equation)
	if kind == plotgrid.EquationCustom {
		return plotgrid.Custom{Formula: c.Formula}
	}
	return kind
}

// ControlValue parses the configured control; unknown names are ControlNone.
func (c *Config) ControlValue() plotgrid.Control {
	return plotgrid.ParseControl(c.Control, c.ControlRow, c.ControlColumn)
}

// Axis converts a to a density axis with the given bin count.
func (a AxisConfig) Axis(bins int) density.Axis {
	return density.Axis{
		Scale: scale.Parse(a.Scale),
		Arg:   a.Arg,
		Min:   a.Min,
		Max:   a.Max,
		Bins:  bins,
	}
}

// ScaleContext builds the per-cell density context, or nil when no
// channel axes are configured.
func (c *Config) ScaleContext() *plotgrid.ScaleContext {
	if len(c.Density.Channels) == 0 {
		return nil
	}
	axes := make(map[string]density.Axis, len(c.Density.Channels))
	for name, a := range c.Density.Channels {
		axes[name] = a.Axis(c.Density.CellBins)
	}
	return &plotgrid.ScaleContext{
		Axes:      axes,
		Bins:      c.Density.CellBins,
		Smoothing: c.Density.Smoothing,
	}
}

// GridOptions converts the configuration into plot grid options.
func (c *Config) GridOptions() []plotgrid.Option {
	opts := []plotgrid.Option{
		plotgrid.WithLabels(c.Grid.RowLabels, c.Grid.ColumnLabels),
		plotgrid.WithStatistic(c.StatisticValue()),
		plotgrid.WithEquation(c.EquationValue()),
		plotgrid.WithControl(c.ControlValue()),
		plotgrid.WithCutoff(c.Cutoff),
	}
	if c.ReusePopulations {
		opts = append(opts, plotgrid.WithPopulationReuse())
	}
	if sc := c.ScaleContext(); sc != nil {
		opts = append(opts, plotgrid.WithScales(*sc))
	}
	return opts
}
