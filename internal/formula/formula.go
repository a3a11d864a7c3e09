// Package formula evaluates user-supplied per-cell formulas for the CUSTOM
// plot grid equation.
package formula

import (
	"errors"
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrFormula wraps compile and evaluation failures.
var ErrFormula = errors.New("invalid formula")

// DefaultCacheSize bounds the number of compiled programs kept.
const DefaultCacheSize = 64

// Record exposes one grid cell's statistics to a formula.
type Record struct {
	Mean              float64
	Median            float64
	StandardDeviation float64
	Variance          float64
	Minimum           float64
	Maximum           float64
	Percent           float64
	EventCount        float64
	ChannelRange      float64
	Layer             int
	Row               int
	Column            int
	Channel           string
}

// Env returns the variables visible to a formula.
func (r Record) Env() map[string]any {
	return map[string]any{
		"mean":               r.Mean,
		"median":             r.Median,
		"standard_deviation": r.StandardDeviation,
		"variance":           r.Variance,
		"minimum":            r.Minimum,
		"maximum":            r.Maximum,
		"percent":            r.Percent,
		"event_count":        r.EventCount,
		"channel_range":      r.ChannelRange,
		"layer":              r.Layer,
		"row":                r.Row,
		"column":             r.Column,
		"channel":            r.Channel,
	}
}

// Evaluator computes one number per cell from a formula and a Record.
type Evaluator interface {
	Evaluate(formula string, rec Record) (float64, error)
}

// ExprEvaluator evaluates formulas with expr, keeping compiled programs in an LRU.
type ExprEvaluator struct {
	programs *lru.Cache[string, *vm.Program]
}

// New creates an ExprEvaluator caching up to size programs.
func New(size int) (*ExprEvaluator, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	programs, err := lru.New[string, *vm.Program](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create program cache: %w", err)
	}
	return &ExprEvaluator{programs: programs}, nil
}

// Compile checks formula against the Record variables.
func (e *ExprEvaluator) Compile(formula string) (*vm.Program, error) {
	if p, ok := e.programs.Get(formula); ok {
		return p, nil
	}
	p, err := expr.Compile(formula, expr.Env(Record{}.Env()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormula, err)
	}
	e.programs.Add(formula, p)
	return p, nil
}

// Evaluate runs formula for rec. Numeric and boolean results are converted
// to float64; any other result type is an error.
func (e *ExprEvaluator) Evaluate(formula string, rec Record) (float64, error) {
	p, err := e.Compile(formula)
	if err != nil {
		return math.NaN(), err
	}
	out, err := expr.Run(p, rec.Env())
	if err != nil {
		return math.NaN(), fmt.Errorf("%w: %v", ErrFormula, err)
	}
	switch v := out.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case nil:
		return math.NaN(), nil
	}
	return math.NaN(), fmt.Errorf("%w: result %v has type %T", ErrFormula, out, out)
}

// Len returns the number of cached programs.
func (e *ExprEvaluator) Len() int { return e.programs.Len() }
