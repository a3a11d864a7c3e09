// Package render draws density plots and value grids using fogleman/gg.
package render

import (
	"bytes"
	"image/color"
	"image/png"
	"math"
	"sync"

	"github.com/fogleman/gg"

	"github.com/atlasmap-sc/cytoplot/pkg/colormap"
	"github.com/atlasmap-sc/cytoplot/pkg/density"
)

// Config contains renderer configuration.
type Config struct {
	PlotSize        int
	CellSize        int
	DefaultColormap string
}

// PlotRenderer renders density plots and value grids to PNG.
type PlotRenderer struct {
	config      Config
	contextPool sync.Pool
	bufferPool  sync.Pool
}

// NewPlotRenderer creates a new plot renderer.
func NewPlotRenderer(cfg Config) *PlotRenderer {
	if cfg.PlotSize <= 0 {
		cfg.PlotSize = 512
	}
	if cfg.CellSize <= 0 {
		cfg.CellSize = 48
	}
	return &PlotRenderer{
		config: cfg,
		contextPool: sync.Pool{
			New: func() interface{} {
				return gg.NewContext(cfg.PlotSize, cfg.PlotSize)
			},
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
	}
}

// RenderDensity renders a smoothed density grid as a square plot.
// Cells are painted in ascending density so dense regions draw on top;
// empty cells are left white. Bin y=0 is at the bottom.
func (r *PlotRenderer) RenderDensity(g density.Grid, colormapName string) ([]byte, error) {
	dc := r.contextPool.Get().(*gg.Context)
	defer r.contextPool.Put(dc)

	dc.SetColor(color.White)
	dc.Clear()

	nx := len(g)
	if nx == 0 || len(g[0]) == 0 {
		return r.encodeContext(dc)
	}
	ny := len(g[0])

	if colormapName == "" {
		colormapName = r.config.DefaultColormap
	}
	cmap := colormap.ByName(colormapName)

	peak := 0.0
	for _, col := range g {
		for _, v := range col {
			peak = math.Max(peak, v)
		}
	}
	if peak <= 0 {
		return r.encodeContext(dc)
	}

	size := float64(r.config.PlotSize)
	w := size / float64(nx)
	h := size / float64(ny)
	for _, e := range density.Sort(g) {
		if e.Value <= 0 {
			continue
		}
		dc.SetColor(cmap.At(e.Value / peak))
		dc.DrawRectangle(float64(e.X)*w, size-float64(e.Y+1)*h, w, h)
		dc.Fill()
	}

	return r.encodeContext(dc)
}

// RenderValueGrid renders one layer of a value grid as a heatmap, one
// square per cell. Values are normalized to [lo, hi] before lookup; NaN
// cells stay transparent.
func (r *PlotRenderer) RenderValueGrid(values [][]float64, cmap colormap.Colormap, lo, hi float64) ([]byte, error) {
	rows := len(values)
	cols := 0
	if rows > 0 {
		cols = len(values[0])
	}
	cell := float64(r.config.CellSize)
	dc := gg.NewContext(max(1, cols*r.config.CellSize), max(1, rows*r.config.CellSize))

	for i, row := range values {
		for j, v := range row {
			if math.IsNaN(v) {
				continue
			}
			dc.SetColor(cmap.At(colormap.Normalize(v, lo, hi)))
			dc.DrawRectangle(float64(j)*cell, float64(i)*cell, cell, cell)
			dc.Fill()
		}
	}

	return r.encodeContext(dc)
}

// RenderProfile renders a 1D density as a line on a cell-sized canvas.
func (r *PlotRenderer) RenderProfile(d []float64) ([]byte, error) {
	size := float64(r.config.CellSize)
	dc := gg.NewContext(r.config.CellSize, r.config.CellSize)
	dc.SetColor(color.White)
	dc.Clear()

	peak := 0.0
	for _, v := range d {
		peak = math.Max(peak, v)
	}
	if len(d) < 2 || peak <= 0 {
		return r.encodeContext(dc)
	}

	step := size / float64(len(d)-1)
	for i, v := range d {
		dc.LineTo(float64(i)*step, size-v/peak*(size-1))
	}
	dc.SetColor(color.Black)
	dc.SetLineWidth(1)
	dc.Stroke()

	return r.encodeContext(dc)
}

func (r *PlotRenderer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	// Use fast PNG encoder
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
