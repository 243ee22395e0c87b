package table

import (
	"fmt"
	"strconv"
)

// Value is a nullable numeric cell. The zero value is missing, which is
// rendered as an empty cell on disk. Indicators, durations and scores all
// travel through this type so that {0, 1, missing} and "non-negative or
// missing" invariants stay checkable in one place.
type Value struct {
	F     float64
	Valid bool
}

// Num wraps a present numeric value.
func Num(f float64) Value {
	return Value{F: f, Valid: true}
}

// Is reports whether the value is present and equal to f.
func (v Value) Is(f float64) bool {
	return v.Valid && v.F == f
}

// String renders the value for a CSV cell: empty when missing, otherwise
// the shortest exact decimal form.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.F, 'f', -1, 64)
}

// Parse converts a CSV cell into a Value. Empty means missing.
func Parse(cell string) (Value, error) {
	if cell == "" {
		return Value{}, nil
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return Value{}, fmt.Errorf("malformed numeric cell %q: %w", cell, err)
	}
	return Num(f), nil
}
