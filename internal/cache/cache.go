// Package cache provides caching for rendered plots and density grids.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/atlasmap-sc/cytoplot/pkg/density"
)

// Config contains cache configuration.
type Config struct {
	PlotCacheSizeMB int
	PlotTTL         time.Duration
	DensityEntries  int
}

// Manager manages plot and density caches.
type Manager struct {
	plotCache    *bigcache.BigCache
	densityCache *lru.Cache[string, density.Grid]
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	ttl := cfg.PlotTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	// Configure plot cache
	plotCacheConfig := bigcache.Config{
		Shards:             64,
		LifeWindow:         ttl,
		CleanWindow:        ttl / 2,
		MaxEntriesInWindow: 10000,
		MaxEntrySize:       256 * 1024, // 256KB per plot
		HardMaxCacheSize:   cfg.PlotCacheSizeMB,
		Verbose:            false,
	}

	plotCache, err := bigcache.New(context.Background(), plotCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create plot cache: %w", err)
	}

	size := cfg.DensityEntries
	if size <= 0 {
		size = 256
	}
	densityCache, err := lru.New[string, density.Grid](size)
	if err != nil {
		plotCache.Close()
		return nil, fmt.Errorf("failed to create density cache: %w", err)
	}

	return &Manager{
		plotCache:    plotCache,
		densityCache: densityCache,
	}, nil
}

// GetPlot retrieves a rendered plot from cache.
func (m *Manager) GetPlot(key string) ([]byte, bool) {
	data, err := m.plotCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetPlot stores a rendered plot in cache.
func (m *Manager) SetPlot(key string, data []byte) error {
	return m.plotCache.Set(key, data)
}

// GetDensity retrieves a density grid from cache.
func (m *Manager) GetDensity(key string) (density.Grid, bool) {
	return m.densityCache.Get(key)
}

// SetDensity stores a density grid in cache.
func (m *Manager) SetDensity(key string, g density.Grid) {
	m.densityCache.Add(key, g)
}

// DensityKey generates a cache key for a population's 2D density.
func DensityKey(population string, x, y density.Axis, smoothing float64) string {
	return fmt.Sprintf("density:%s:%s:%s:%g", population, axisKey(x), axisKey(y), smoothing)
}

// PlotKey generates a cache key for a rendered density plot.
func PlotKey(population string, x, y density.Axis, smoothing float64, colormap string, size int) string {
	base := DensityKey(population, x, y, smoothing)
	h := sha256.New()
	h.Write([]byte(base))
	return fmt.Sprintf("plot:%d:%s:%s", size, colormap, hex.EncodeToString(h.Sum(nil))[:16])
}

func axisKey(a density.Axis) string {
	name := "linear"
	if a.Scale != nil {
		name = a.Scale.Name()
	}
	return fmt.Sprintf("%s(%g)[%g,%g]/%d", name, a.Arg, a.Min, a.Max, a.Bins)
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"plot_cache_len":    m.plotCache.Len(),
		"plot_cache_cap":    m.plotCache.Capacity(),
		"density_cache_len": m.densityCache.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.plotCache.Close()
}
