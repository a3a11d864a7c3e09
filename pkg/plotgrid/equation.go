package plotgrid

import (
	"math"
	"strings"
)

// EquationKind enumerates the cross-cell transforms.
type EquationKind int

const (
	EquationNone EquationKind = iota
	EquationRatio
	EquationLogRatio
	EquationLog2Ratio
	EquationFold
	EquationDifference
	EquationCustom

	numEquations
)

var equationNames = [...]string{
	EquationNone:       "none",
	EquationRatio:      "ratio",
	EquationLogRatio:   "log_ratio",
	EquationLog2Ratio:  "log2_ratio",
	EquationFold:       "fold",
	EquationDifference: "difference",
	EquationCustom:     "custom",
}

// Equation is the transform applied to every cell against its control.
// It is either an EquationKind or Custom.
type Equation interface {
	Kind() EquationKind
}

// Kind returns k, or EquationNone if k is undefined.
func (k EquationKind) Kind() EquationKind {
	if k < EquationNone || k >= numEquations {
		return EquationNone
	}
	return k
}

func (k EquationKind) String() string { return equationNames[k.Kind()] }

// Custom evaluates Formula per cell instead of a control-relative transform.
type Custom struct {
	Formula string
}

func (Custom) Kind() EquationKind { return EquationCustom }

// ParseEquation looks an equation up by name. Unknown names yield EquationNone.
func ParseEquation(name string) EquationKind {
	key := normalizeName(name)
	for k, n := range equationNames {
		if n == key {
			return EquationKind(k)
		}
	}
	return EquationNone
}

func normalizeEquation(e Equation) Equation {
	if e == nil {
		return EquationNone
	}
	switch v := e.(type) {
	case Custom:
		return v
	case *Custom:
		if v == nil {
			return Custom{}
		}
		return *v
	}
	k := e.Kind()
	if k == EquationCustom {
		return Custom{}
	}
	return k
}

// pivots reports whether k is one of the equations that centre on 0.
func (k EquationKind) pivots() bool {
	switch k {
	case EquationRatio, EquationLogRatio, EquationLog2Ratio, EquationFold, EquationDifference:
		return true
	}
	return false
}

// apply transforms cell value v against control c. Division by zero and
// logarithms of non-positive ratios follow IEEE-754.
func (k EquationKind) apply(v, c float64) float64 {
	switch k {
	case EquationRatio:
		return v / c
	case EquationLogRatio:
		return math.Log10(v / c)
	case EquationLog2Ratio:
		return math.Log(v/c) / math.Ln2
	case EquationDifference:
		return v - c
	case EquationFold:
		// Shift by one so both branches meet at 0 instead of leaving a gap on [-1, 1].
		if c > v {
			return -(c / v) + 1
		}
		return v/c - 1
	}
	return v
}

// ControlKind enumerates how the control value of a cell is chosen.
type ControlKind int

const (
	ControlNone ControlKind = iota
	ControlByCell
	ControlByRow
	ControlByColumn
	ControlTableMin
	ControlTableMax
	ControlRowMin
	ControlRowMax
	ControlColumnMin
	ControlColumnMax
	ControlRow1
	ControlColumn1
	ControlCell11

	numControls
)

var controlNames = [...]string{
	ControlNone:      "none",
	ControlByCell:    "by_cell",
	ControlByRow:     "by_row",
	ControlByColumn:  "by_column",
	ControlTableMin:  "table_min",
	ControlTableMax:  "table_max",
	ControlRowMin:    "row_min",
	ControlRowMax:    "row_max",
	ControlColumnMin: "column_min",
	ControlColumnMax: "column_max",
	ControlRow1:      "row_1",
	ControlColumn1:   "column_1",
	ControlCell11:    "cell_1_1",
}

// Control selects the reference each cell is compared to. It is either a
// parameterless ControlKind or one of ByCell, ByRow and ByColumn.
type Control interface {
	Kind() ControlKind
}

// Kind returns k, or ControlNone if k is undefined.
func (k ControlKind) Kind() ControlKind {
	if k < ControlNone || k >= numControls {
		return ControlNone
	}
	return k
}

func (k ControlKind) String() string { return controlNames[k.Kind()] }

// ByCell compares every cell to the layer-0 cell at (Row, Column).
type ByCell struct{ Row, Column int }

func (ByCell) Kind() ControlKind { return ControlByCell }

// ByRow compares every cell to the layer-0 cell of its column in Row.
type ByRow struct{ Row int }

func (ByRow) Kind() ControlKind { return ControlByRow }

// ByColumn compares every cell to the layer-0 cell of its row in Column.
type ByColumn struct{ Column int }

func (ByColumn) Kind() ControlKind { return ControlByColumn }

// ParseControl builds a control from its name and, for by_cell, by_row and
// by_column, the control row and column. Unknown names yield ControlNone.
func ParseControl(name string, row, column int) Control {
	key := normalizeName(name)
	for k, n := range controlNames {
		if n != key {
			continue
		}
		switch kind := ControlKind(k); kind {
		case ControlByCell:
			return ByCell{Row: row, Column: column}
		case ControlByRow:
			return ByRow{Row: row}
		case ControlByColumn:
			return ByColumn{Column: column}
		default:
			return kind
		}
	}
	return ControlNone
}

// normalizeControl turns bare parameterised kinds into their variants
// anchored at row/column 0 and undefined kinds into ControlNone.
func normalizeControl(c Control) Control {
	if c == nil {
		return ControlNone
	}
	switch v := c.(type) {
	case ByCell, ByRow, ByColumn:
		return v
	case *ByCell:
		if v != nil {
			return *v
		}
		return ByCell{}
	case *ByRow:
		if v != nil {
			return *v
		}
		return ByRow{}
	case *ByColumn:
		if v != nil {
			return *v
		}
		return ByColumn{}
	}
	switch k := c.Kind(); k {
	case ControlByCell:
		return ByCell{}
	case ControlByRow:
		return ByRow{}
	case ControlByColumn:
		return ByColumn{}
	default:
		return k
	}
}

func normalizeName(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("-", "_", " ", "_").Replace(key)
}
