package population

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/atlasmap-sc/cytoplot/pkg/scale"
)

// ErrUnknownChannel is returned when a population has no data for a channel.
var ErrUnknownChannel = errors.New("unknown channel")

// EventSet is an in-memory population: one value slice per channel, all of
// the same length.
type EventSet struct {
	name        string
	fileIndex   int
	parentCount int
	cofactor    float64
	channels    map[string][]float64
	count       int

	mu     sync.Mutex
	sorted map[string][]float64
}

// EventSetConfig describes an EventSet.
type EventSetConfig struct {
	Name      string
	FileIndex int
	// ParentCount is the event count PERCENT is measured against.
	// Zero means the population is its own parent.
	ParentCount int
	// Cofactor is the arcsinh width for the arcsinh median. Zero uses scale.DefaultCofactor.
	Cofactor float64
	Channels map[string][]float64
}

// NewEventSet validates cfg and builds an EventSet.
func NewEventSet(cfg EventSetConfig) (*EventSet, error) {
	count := -1
	for ch, values := range cfg.Channels {
		if count >= 0 && len(values) != count {
			return nil, fmt.Errorf("population %q: channel %q has %d events, want %d", cfg.Name, ch, len(values), count)
		}
		count = len(values)
	}
	if count < 0 {
		count = 0
	}
	parent := cfg.ParentCount
	if parent <= 0 {
		parent = count
	}
	cofactor := cfg.Cofactor
	if cofactor <= 0 {
		cofactor = scale.DefaultCofactor
	}
	return &EventSet{
		name:        cfg.Name,
		fileIndex:   cfg.FileIndex,
		parentCount: parent,
		cofactor:    cofactor,
		channels:    cfg.Channels,
		count:       count,
		sorted:      make(map[string][]float64),
	}, nil
}

// Name returns the population name.
func (e *EventSet) Name() string { return e.name }

// Len returns the number of events.
func (e *EventSet) Len() int { return e.count }

// Channels lists the channel names carried by the set, sorted.
func (e *EventSet) Channels() []string {
	names := make([]string, 0, len(e.channels))
	for ch := range e.channels {
		names = append(names, ch)
	}
	slices.Sort(names)
	return names
}

// Ref returns a Reference to this population reporting on channel.
func (e *EventSet) Ref(channel string) Reference {
	return &channelRef{set: e, channel: channel}
}

// Values returns the raw values of channel. The slice must not be modified.
func (e *EventSet) Values(channel string) ([]float64, error) {
	v, ok := e.channels[channel]
	if !ok {
		return nil, fmt.Errorf("population %q: %w %q", e.name, ErrUnknownChannel, channel)
	}
	return v, nil
}

func (e *EventSet) sortedValues(channel string) ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.sorted[channel]; ok {
		return s, nil
	}
	v, err := e.Values(channel)
	if err != nil {
		return nil, err
	}
	s := slices.Clone(v)
	slices.Sort(s)
	e.sorted[channel] = s
	return s, nil
}

// Statistic computes s over channel. Value statistics of an empty
// population are NaN.
func (e *EventSet) Statistic(s Statistic, channel string) (float64, error) {
	s = s.Normalize()
	switch s {
	case StatNone:
		return math.NaN(), nil
	case StatEventCount:
		return float64(e.count), nil
	case StatFileIndex:
		return float64(e.fileIndex), nil
	case StatPercent:
		if e.parentCount == 0 {
			return math.NaN(), nil
		}
		return 100 * float64(e.count) / float64(e.parentCount), nil
	}

	v, err := e.Values(channel)
	if err != nil {
		return math.NaN(), err
	}
	if len(v) == 0 {
		return math.NaN(), nil
	}

	switch s {
	case StatMean:
		return stat.Mean(v, nil), nil
	case StatStandardDeviation:
		return stat.StdDev(v, nil), nil
	case StatVariance:
		return stat.Variance(v, nil), nil
	case StatMinimum:
		return floats.Min(v), nil
	case StatMaximum:
		return floats.Max(v), nil
	case StatChannelRange:
		return floats.Max(v) - floats.Min(v), nil
	case StatGeometricMean:
		return stat.GeometricMean(v, nil), nil
	}

	sorted, err := e.sortedValues(channel)
	if err != nil {
		return math.NaN(), err
	}
	switch s {
	case StatMedian:
		return stat.Quantile(0.5, stat.Empirical, sorted, nil), nil
	case StatNinetyFifthPercentile:
		return stat.Quantile(0.95, stat.Empirical, sorted, nil), nil
	case StatArcsinhMedian:
		return math.Asinh(stat.Quantile(0.5, stat.Empirical, sorted, nil) / e.cofactor), nil
	}
	return math.NaN(), nil
}

type channelRef struct {
	set     *EventSet
	channel string
}

func (r *channelRef) Name() string             { return r.set.name }
func (r *channelRef) Channel() string          { return r.channel }
func (r *channelRef) EventCount() (int, error) { return r.set.count, nil }

func (r *channelRef) Statistic(s Statistic, channel string) (float64, error) {
	return r.set.Statistic(s, channel)
}

func (r *channelRef) Values(channel string) ([]float64, error) {
	return r.set.Values(channel)
}

// IsSamePopulation reports whether other refers to the same EventSet,
// regardless of channel.
func (r *channelRef) IsSamePopulation(other Reference) bool {
	o, ok := other.(*channelRef)
	return ok && o.set == r.set
}
