package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/atlasmap-sc/cytoplot/pkg/colormap"
	"github.com/atlasmap-sc/cytoplot/pkg/density"
)

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode png: %v", err)
	}
	return img
}

func near(a, b color.Color) bool {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	d := func(x, y uint32) bool {
		x, y = x>>8, y>>8
		if x > y {
			return x-y <= 2
		}
		return y-x <= 2
	}
	return d(ar, br) && d(ag, bg) && d(ab, bb) && d(aa, ba)
}

func TestRenderDensity(t *testing.T) {
	t.Parallel()

	r := NewPlotRenderer(Config{PlotSize: 8, DefaultColormap: "viridis"})
	g := density.NewGrid(2, 2)
	g[1][1] = 4
	g[0][0] = 2

	img := decode(t, mustRender(t)(r.RenderDensity(g, "")))
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 8 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	// x=1, y=1 is the top-right quadrant.
	if got := img.At(6, 1); !near(got, colormap.Viridis.At(1)) {
		t.Errorf("peak cell: got %v", got)
	}
	// x=0, y=0 is the bottom-left quadrant.
	if got := img.At(1, 6); !near(got, colormap.Viridis.At(0.5)) {
		t.Errorf("half cell: got %v", got)
	}
	if got := img.At(1, 1); !near(got, color.White) {
		t.Errorf("empty cell should be white, got %v", got)
	}
}

func TestRenderDensity_Empty(t *testing.T) {
	t.Parallel()

	r := NewPlotRenderer(Config{PlotSize: 4})
	img := decode(t, mustRender(t)(r.RenderDensity(density.NewGrid(3, 3), "jet")))
	if got := img.At(2, 2); !near(got, color.White) {
		t.Fatalf("expected white canvas, got %v", got)
	}
}

func TestRenderValueGrid(t *testing.T) {
	t.Parallel()

	r := NewPlotRenderer(Config{CellSize: 4})
	values := [][]float64{
		{1, math.NaN()},
		{0, 2},
	}
	img := decode(t, mustRender(t)(r.RenderValueGrid(values, colormap.Viridis, 0, 2)))
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 8 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	if _, _, _, a := img.At(6, 1).RGBA(); a != 0 {
		t.Errorf("NaN cell should be transparent, alpha=%d", a)
	}
	if got := img.At(1, 1); !near(got, colormap.Viridis.At(0.5)) {
		t.Errorf("cell (0,0): got %v", got)
	}
	if got := img.At(6, 6); !near(got, colormap.Viridis.At(1)) {
		t.Errorf("cell (1,1): got %v", got)
	}
}

func TestRenderProfile(t *testing.T) {
	t.Parallel()

	r := NewPlotRenderer(Config{CellSize: 16})
	img := decode(t, mustRender(t)(r.RenderProfile([]float64{0, 1, 2, 1, 0})))
	if img.Bounds().Dx() != 16 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
}

func mustRender(t *testing.T) func([]byte, error) []byte {
	return func(data []byte, err error) []byte {
		t.Helper()
		if err != nil {
			t.Fatalf("render failed: %v", err)
		}
		return data
	}
}
