// Package main is the entry point for the cytoplot command.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/atlasmap-sc/cytoplot/internal/cache"
	"github.com/atlasmap-sc/cytoplot/internal/config"
	"github.com/atlasmap-sc/cytoplot/internal/data/events"
	"github.com/atlasmap-sc/cytoplot/internal/render"
	"github.com/atlasmap-sc/cytoplot/internal/service"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/cytoplot.yaml", "Path to configuration file")
	colormapName := flag.String("colormap", "", "Colormap for rendered plots (default from config)")
	noDensity := flag.Bool("no-density", false, "Skip per-cell density plots")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if len(cfg.Data.Files) == 0 {
		log.Fatalf("No event files configured in %s", *configPath)
	}

	files := make([]*events.File, 0, len(cfg.Data.Files))
	for i, path := range cfg.Data.Files {
		f, err := events.Load(path, i, events.Options{
			LabelColumn: cfg.Data.LabelColumn,
			Cofactor:    cfg.Data.Cofactor,
		})
		if err != nil {
			log.Fatalf("Failed to load events: %v", err)
		}
		log.Printf("  [%d] Loaded %s: %d events, %d channels, populations %v",
			i, path, f.Total, len(f.Channels), f.Populations())
		files = append(files, f)
	}

	cacheManager, err := cache.NewManager(cache.Config{
		PlotCacheSizeMB: cfg.Cache.PlotSizeMB,
		PlotTTL:         time.Duration(cfg.Cache.PlotTTLMinutes) * time.Minute,
		DensityEntries:  cfg.Cache.DensityEntries,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()

	renderer := render.NewPlotRenderer(render.Config{
		PlotSize:        cfg.Render.PlotSize,
		CellSize:        cfg.Render.CellSize,
		DefaultColormap: cfg.Render.DefaultColormap,
	})

	plots, err := service.NewPlotService(service.PlotServiceConfig{
		Config:   cfg,
		Files:    files,
		Cache:    cacheManager,
		Renderer: renderer,
	})
	if err != nil {
		log.Fatalf("Failed to build plot grid: %v", err)
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	if err := writeValues(plots, filepath.Join(cfg.Output.Dir, "values.csv")); err != nil {
		log.Fatalf("Failed to write values: %v", err)
	}

	lo, hi, kind, err := plots.Summary()
	if err != nil {
		log.Fatalf("Failed to summarize grid: %v", err)
	}
	log.Printf("Grid %s (%s): min=%g max=%g", cfg.Statistic, kind, lo, hi)

	img, err := plots.GridImage(*colormapName)
	if err != nil {
		log.Fatalf("Failed to render grid: %v", err)
	}
	writeFile(filepath.Join(cfg.Output.Dir, "grid.png"), img)

	if *noDensity || cfg.Density.X.Channel == "" || cfg.Density.Y.Channel == "" {
		return
	}
	for _, cell := range cfg.Grid.Cells {
		if plots.Grid().Reference(cell.Layer, cell.Row, cell.Column) == nil {
			continue
		}
		name := fmt.Sprintf("density_%d_%d_%d.png", cell.Layer, cell.Row, cell.Column)
		data, err := plots.DensityImage(cell.Layer, cell.Row, cell.Column, *colormapName)
		if err != nil {
			log.Printf("Skipping %s: %v", name, err)
			continue
		}
		writeFile(filepath.Join(cfg.Output.Dir, name), data)

		profile, err := plots.ProfileImage(cell.Layer, cell.Row, cell.Column)
		if err != nil {
			log.Printf("Skipping profile for %s: %v", name, err)
			continue
		}
		if profile != nil {
			writeFile(filepath.Join(cfg.Output.Dir, fmt.Sprintf("profile_%d_%d_%d.png", cell.Layer, cell.Row, cell.Column)), profile)
		}
	}

	stats := cacheManager.Stats()
	log.Printf("Cache: plots=%v densities=%v", stats["plot_cache_len"], stats["density_cache_len"])
}

func writeValues(plots *service.PlotService, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := plots.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	log.Printf("Wrote %s", path)
	return f.Close()
}

func writeFile(path string, data []byte) {
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Fatalf("Failed to write %s: %v", path, err)
	}
	log.Printf("Wrote %s", path)
}
