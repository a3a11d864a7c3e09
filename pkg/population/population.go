// Package population defines the narrow capability interface the plot grid
// depends on, the closed set of statistics it may request, and an in-memory
// event population implementing both.
package population

import "strings"

// Reference identifies a population and the channel a grid cell reports on.
// Implementations may fetch events lazily; errors returned are genuine
// retrieval failures and must be propagated by callers.
type Reference interface {
	Name() string
	Channel() string
	EventCount() (int, error)
	Statistic(s Statistic, channel string) (float64, error)
	IsSamePopulation(other Reference) bool
}

// EventSource is implemented by references that can hand out raw per-event
// values for a channel. The grid uses it to build per-cell density arrays.
type EventSource interface {
	Values(channel string) ([]float64, error)
}

// Statistic selects the per-cell summary computed for a population.
type Statistic int

const (
	StatNone Statistic = iota
	StatMean
	StatMedian
	StatStandardDeviation
	StatVariance
	StatMinimum
	StatMaximum
	StatFileIndex
	StatPercent
	StatEventCount
	StatChannelRange
	StatGeometricMean
	StatNinetyFifthPercentile
	StatArcsinhMedian

	numStatistics
)

var statisticNames = [...]string{
	StatNone:                  "none",
	StatMean:                  "mean",
	StatMedian:                "median",
	StatStandardDeviation:     "standard_deviation",
	StatVariance:              "variance",
	StatMinimum:               "minimum",
	StatMaximum:               "maximum",
	StatFileIndex:             "file_index",
	StatPercent:               "percent",
	StatEventCount:            "event_count",
	StatChannelRange:          "channel_range",
	StatGeometricMean:         "geometric_mean",
	StatNinetyFifthPercentile: "ninetyfifth_percentile",
	StatArcsinhMedian:         "arcsinh_median",
}

// Valid reports whether s is one of the defined statistics.
func (s Statistic) Valid() bool { return s >= StatNone && s < numStatistics }

// Normalize maps undefined values to StatNone.
func (s Statistic) Normalize() Statistic {
	if !s.Valid() {
		return StatNone
	}
	return s
}

func (s Statistic) String() string {
	return statisticNames[s.Normalize()]
}

// ParseStatistic looks a statistic up by name, ignoring case, spaces and
// hyphens. Unknown names yield StatNone.
func ParseStatistic(name string) Statistic {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	switch key {
	case "sd", "stddev":
		return StatStandardDeviation
	case "min":
		return StatMinimum
	case "max":
		return StatMaximum
	case "count":
		return StatEventCount
	case "95th_percentile", "p95":
		return StatNinetyFifthPercentile
	}
	for s, n := range statisticNames {
		if n == key {
			return Statistic(s)
		}
	}
	return StatNone
}
