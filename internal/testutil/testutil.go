// Package testutil provides shared test utilities and fixtures.
//
// Fixtures build small synthetic observation tables with the column names
// returned by FixtureColumns, so pipeline, geometry and export tests agree
// on one layout.
package testutil

import (
	"math"
	"testing"

	"github.com/banshee-data/collev/internal/schema"
	"github.com/banshee-data/collev/internal/table"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// FixtureColumns binds the fixture columns t, id, x, y and m.
func FixtureColumns() schema.Columns {
	return schema.Columns{
		Frame:        "t",
		ObjectID:     "id",
		X:            "x",
		Y:            "y",
		Measurement1: "m",
		EventID:      schema.DefaultEventIDColumn,
	}
}

// Observation is one fixture row.
type Observation struct {
	T, ID, X, Y, M float64
}

// Table builds a fixture table from rows.
func Table(rows []Observation) *table.Table {
	cols := [5][]float64{}
	for _, r := range rows {
		cols[0] = append(cols[0], r.T)
		cols[1] = append(cols[1], r.ID)
		cols[2] = append(cols[2], r.X)
		cols[3] = append(cols[3], r.Y)
		cols[4] = append(cols[4], r.M)
	}
	for i := range cols {
		if cols[i] == nil {
			cols[i] = []float64{}
		}
	}
	return table.MustNew(
		table.NumericColumn("t", cols[0]),
		table.NumericColumn("id", cols[1]),
		table.NumericColumn("x", cols[2]),
		table.NumericColumn("y", cols[3]),
		table.NumericColumn("m", cols[4]),
	)
}

// Pulse returns frames x objects rows. Objects sit 10 units apart on the x
// axis, so they fall within one neighbourhood of radius 20. Every object is
// active (m = 1) in frames 2 to 7 and inactive (m = 0) otherwise. Rows are
// ordered by frame, then object.
func Pulse(frames, objects int) *table.Table {
	var rows []Observation
	for f := 0; f < frames; f++ {
		for o := 0; o < objects; o++ {
			m := 0.0
			if f >= 2 && f <= 7 {
				m = 1
			}
			rows = append(rows, Observation{T: float64(f), ID: float64(o + 1), X: float64(10 * o), Y: 0, M: m})
		}
	}
	return Table(rows)
}

// TwoGroups returns two spatially separated groups of three objects over ten
// frames. The left group (ids 1-3) is active in frames 1 to 3, the right
// group (ids 4-6) in frames 5 to 8. Object 7 sits far from both and is
// active in frame 5 only.
func TwoGroups() *table.Table {
	var rows []Observation
	for f := 0; f < 10; f++ {
		for o := 0; o < 7; o++ {
			x := float64(5 * o)
			if o >= 3 {
				x = 500 + float64(5*o)
			}
			if o == 6 {
				x = 2000
			}
			active := (o < 3 && f >= 1 && f <= 3) || (o >= 3 && o < 6 && f >= 5 && f <= 8) || (o == 6 && f == 5)
			m := 0.0
			if active {
				m = 1
			}
			rows = append(rows, Observation{T: float64(f), ID: float64(o + 1), X: x, Y: 0, M: m})
		}
	}
	return Table(rows)
}

// WithMissing returns t with the measurement of the given rows set to NaN.
func WithMissing(t *table.Table, rows ...int) *table.Table {
	m := append([]float64(nil), t.Floats("m")...)
	for _, r := range rows {
		m[r] = math.NaN()
	}
	return t.WithFloats("m", m)
}
