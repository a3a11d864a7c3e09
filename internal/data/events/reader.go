// Package events loads per-event channel measurements from CSV files.
//
// Each row is one event. One column names the population (gate) the event
// belongs to; every other column is a channel. Files ending in ".zst" are
// zstd-compressed.
package events

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/klauspost/compress/zstd"

	"github.com/atlasmap-sc/cytoplot/pkg/population"
)

// AllEvents names the population holding every event of a file.
const AllEvents = "all"

// ErrNoPopulation is returned when a requested population is not in a file.
var ErrNoPopulation = errors.New("population not found")

// Options controls how a file is split into populations.
type Options struct {
	LabelColumn string
	Cofactor    float64
}

// File is one loaded event file.
type File struct {
	Path     string
	Index    int
	Total    int
	Channels []string

	populations map[string]*population.EventSet
}

// Load reads the event file at path. index is reported by the file_index statistic.
func Load(path string, index int, opts Options) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	file, err := Read(r, index, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	file.Path = path
	return file, nil
}

// Read parses CSV events from r.
func Read(r io.Reader, index int, opts Options) (*File, error) {
	rows, err := gocsv.CSVToMaps(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}

	channelSet := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			if k != opts.LabelColumn {
				channelSet[k] = struct{}{}
			}
		}
	}
	channels := make([]string, 0, len(channelSet))
	for ch := range channelSet {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	// Bucket row indices by label, keeping "all" for the whole file.
	byLabel := map[string][]int{AllEvents: make([]int, len(rows))}
	for i, row := range rows {
		byLabel[AllEvents][i] = i
		if label := strings.TrimSpace(row[opts.LabelColumn]); label != "" && label != AllEvents {
			byLabel[label] = append(byLabel[label], i)
		}
	}

	file := &File{
		Index:       index,
		Total:       len(rows),
		Channels:    channels,
		populations: make(map[string]*population.EventSet, len(byLabel)),
	}
	for label, idx := range byLabel {
		values := make(map[string][]float64, len(channels))
		for _, ch := range channels {
			col := make([]float64, len(idx))
			for j, i := range idx {
				col[j] = parseValue(rows[i][ch])
			}
			values[ch] = col
		}
		set, err := population.NewEventSet(population.EventSetConfig{
			Name:        label,
			FileIndex:   index,
			ParentCount: len(rows),
			Cofactor:    opts.Cofactor,
			Channels:    values,
		})
		if err != nil {
			return nil, err
		}
		file.populations[label] = set
	}
	return file, nil
}

// parseValue converts a CSV field; blank or malformed fields are NaN.
func parseValue(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Population returns the named population.
func (f *File) Population(name string) (*population.EventSet, error) {
	set, ok := f.populations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrNoPopulation, name, f.Path)
	}
	return set, nil
}

// Populations lists the population names in the file, sorted.
func (f *File) Populations() []string {
	names := make([]string, 0, len(f.populations))
	for name := range f.populations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
