// Package scale provides the value transforms applied to channel data before binning.
package scale

import (
	"math"
	"strings"
)

// DefaultCofactor is the arcsinh compression width used when none is given.
const DefaultCofactor = 150.0

// Transform maps a raw channel value to a display value.
// arg parameterizes transforms such as arcsinh; transforms that take no
// parameter ignore it.
type Transform interface {
	Apply(value, arg float64) float64
	Name() string
}

// Linear is the identity transform.
type Linear struct{}

func (Linear) Apply(value, _ float64) float64 { return value }
func (Linear) Name() string                   { return "linear" }

// Log is a base-10 logarithm. Non-positive values map to NaN.
type Log struct{}

func (Log) Apply(value, _ float64) float64 {
	if value <= 0 {
		return math.NaN()
	}
	return math.Log10(value)
}

func (Log) Name() string { return "log" }

// Arcsinh computes asinh(value/arg). A non-positive arg uses DefaultCofactor.
type Arcsinh struct{}

func (Arcsinh) Apply(value, arg float64) float64 {
	if !(arg > 0) {
		arg = DefaultCofactor
	}
	return math.Asinh(value / arg)
}

func (Arcsinh) Name() string { return "arcsinh" }

// Func adapts a plain function to Transform.
type Func func(value, arg float64) float64

func (f Func) Apply(value, arg float64) float64 { return f(value, arg) }
func (Func) Name() string                       { return "func" }

// Parse returns the transform registered under name.
// Unknown names fall back to Linear.
func Parse(name string) Transform {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "log", "log10":
		return Log{}
	case "arcsinh", "asinh":
		return Arcsinh{}
	default:
		return Linear{}
	}
}
