// Package schema binds semantic roles (frame, object id, coordinates,
// measurements, grouping ids) to the column names of a loaded table.
package schema

import (
	"errors"
	"fmt"

	"github.com/banshee-data/collev/internal/table"
)

// DefaultEventIDColumn is the name of the event id column added by tracking.
const DefaultEventIDColumn = "collid"

var (
	// ErrUnmappedColumn is returned when a required role has no column, or
	// the bound column is absent from the table.
	ErrUnmappedColumn = errors.New("column not mapped")
	// ErrNonNumericColumn is returned when a role that must be numeric is
	// bound to a text column.
	ErrNonNumericColumn = errors.New("column is not numeric")
)

// ColumnError describes a misconfigured column binding.
type ColumnError struct {
	Role   string
	Column string
	Err    error
}

func (e *ColumnError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s: %v", e.Role, e.Err)
	}
	return fmt.Sprintf("%s column %q: %v", e.Role, e.Column, e.Err)
}

func (e *ColumnError) Unwrap() error { return e.Err }

// Operation combines the two measurement columns into one.
type Operation string

const (
	OpNone     Operation = ""
	OpDivide   Operation = "Divide"
	OpMultiply Operation = "Multiply"
	OpAdd      Operation = "Add"
	OpSubtract Operation = "Subtract"
)

// ResultColumn returns the name of the derived measurement column, or "" for
// OpNone and unknown operations.
func (op Operation) ResultColumn() string {
	switch op {
	case OpDivide:
		return "Measurement_Ratio"
	case OpMultiply:
		return "Measurement_Product"
	case OpAdd:
		return "Measurement_Sum"
	case OpSubtract:
		return "Measurement_Difference"
	}
	return ""
}

// Apply combines a and b.
func (op Operation) Apply(a, b float64) float64 {
	switch op {
	case OpDivide:
		return a / b
	case OpMultiply:
		return a * b
	case OpAdd:
		return a + b
	case OpSubtract:
		return a - b
	}
	return a
}

// Columns is the role to column-name binding for one run.
type Columns struct {
	Frame    string
	ObjectID string
	X        string
	Y        string
	Z        string // empty for 2D data

	Measurement1 string
	Measurement2 string
	Operation    Operation

	FieldOfView      string
	AdditionalFilter string

	EventID string
}

// Default returns the bindings used before the user picks columns.
func Default() Columns {
	return Columns{
		Frame:        "frame",
		ObjectID:     "track_id",
		X:            "x",
		Y:            "y",
		Measurement1: "measurement",
		EventID:      DefaultEventIDColumn,
	}
}

// New fills defaults and validates the bindings.
func New(c Columns) (Columns, error) {
	if c.EventID == "" {
		c.EventID = DefaultEventIDColumn
	}
	if err := c.Validate(); err != nil {
		return Columns{}, err
	}
	return c, nil
}

// Validate checks that every required role is bound.
func (c Columns) Validate() error {
	required := []struct{ role, col string }{
		{"frame", c.Frame},
		{"x", c.X},
		{"y", c.Y},
		{"measurement", c.Measurement1},
	}
	for _, r := range required {
		if r.col == "" {
			return &ColumnError{Role: r.role, Err: ErrUnmappedColumn}
		}
	}
	if c.Operation != OpNone {
		if c.Operation.ResultColumn() == "" {
			return fmt.Errorf("unknown measurement operation %q", c.Operation)
		}
		if c.Measurement2 == "" {
			return &ColumnError{Role: "second measurement", Err: ErrUnmappedColumn}
		}
	}
	return nil
}

// ValidateTable checks that the bound columns exist in t and that the
// numeric roles hold numbers.
func (c Columns) ValidateTable(t *table.Table) error {
	numeric := []struct{ role, col string }{
		{"frame", c.Frame},
		{"x", c.X},
		{"y", c.Y},
		{"z", c.Z},
		{"object id", c.ObjectID},
		{"measurement", c.Measurement1},
	}
	if c.Operation != OpNone {
		numeric = append(numeric, struct{ role, col string }{"second measurement", c.Measurement2})
	}
	for _, r := range numeric {
		if r.col == "" {
			continue
		}
		if !t.Has(r.col) {
			return &ColumnError{Role: r.role, Column: r.col, Err: ErrUnmappedColumn}
		}
		if !t.IsNumeric(r.col) {
			return &ColumnError{Role: r.role, Column: r.col, Err: ErrNonNumericColumn}
		}
	}
	for _, r := range []struct{ role, col string }{
		{"field of view", c.FieldOfView},
		{"additional filter", c.AdditionalFilter},
	} {
		if r.col != "" && !t.Has(r.col) {
			return &ColumnError{Role: r.role, Column: r.col, Err: ErrUnmappedColumn}
		}
	}
	return nil
}

// Is3D reports whether a z coordinate is bound.
func (c Columns) Is3D() bool { return c.Z != "" }

// CoordinateColumns returns [x, y] or [x, y, z].
func (c Columns) CoordinateColumns() []string {
	if c.Is3D() {
		return []string{c.X, c.Y, c.Z}
	}
	return []string{c.X, c.Y}
}

// CoreColumns returns frame, y, x and z when bound, in that order.
func (c Columns) CoreColumns() []string {
	if c.Is3D() {
		return []string{c.Frame, c.Y, c.X, c.Z}
	}
	return []string{c.Frame, c.Y, c.X}
}

// Measurement returns the column the pipeline binarizes: the derived column
// when an operation is set, otherwise the first measurement.
func (c Columns) Measurement() string {
	if name := c.Operation.ResultColumn(); name != "" {
		return name
	}
	return c.Measurement1
}

// BinColumn names the binarized activity column.
func (c Columns) BinColumn() string { return c.Measurement() + ".bin" }

// RescaledColumn names the rescaled measurement column.
func (c Columns) RescaledColumn() string { return c.Measurement() + ".resc" }
