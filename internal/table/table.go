// Package table provides the columnar observation table passed between the
// loader, the pipeline stages and the geometry engine.
//
// A Table is immutable by convention: every operation returns a new Table and
// never writes into the column slices of its receiver. Column slices may be
// shared between tables, so callers must not modify slices returned by
// Floats or Texts.
package table

import (
	"fmt"
	"math"
	"sort"
)

// Kind identifies the storage of a column.
type Kind int

const (
	// Numeric columns hold float64 values with NaN for missing cells.
	Numeric Kind = iota
	// Text columns hold the raw cell strings.
	Text
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Text:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column is a named column. Exactly one of Floats or Texts is used,
// depending on Kind.
type Column struct {
	Name   string
	Kind   Kind
	Floats []float64
	Texts  []string
}

// NumericColumn builds a numeric column.
func NumericColumn(name string, values []float64) Column {
	return Column{Name: name, Kind: Numeric, Floats: values}
}

// TextColumn builds a text column.
func TextColumn(name string, values []string) Column {
	return Column{Name: name, Kind: Text, Texts: values}
}

// Len returns the number of cells in the column.
func (c Column) Len() int {
	if c.Kind == Text {
		return len(c.Texts)
	}
	return len(c.Floats)
}

// Table is an ordered set of equal-length columns.
type Table struct {
	cols  []Column
	index map[string]int
	rows  int
}

// New builds a table from columns. All columns must have the same length and
// distinct names.
func New(cols ...Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), t.rows)
		}
		t.index[c.Name] = i
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// MustNew is New for statically known inputs such as test fixtures.
func MustNew(cols ...Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of rows. A nil table has zero rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.rows
}

// Empty reports whether the table is nil or has no rows.
func (t *Table) Empty() bool { return t.Len() == 0 }

// Names returns the column names in order.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[name]
	return ok
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	if t == nil {
		return Column{}, false
	}
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.cols[i], true
}

// Floats returns the values of a numeric column, or nil if the column is
// missing or not numeric.
func (t *Table) Floats(name string) []float64 {
	c, ok := t.Column(name)
	if !ok || c.Kind != Numeric {
		return nil
	}
	return c.Floats
}

// Texts returns the values of a text column, or nil.
func (t *Table) Texts(name string) []string {
	c, ok := t.Column(name)
	if !ok || c.Kind != Text {
		return nil
	}
	return c.Texts
}

// IsNumeric reports whether the named column exists and is numeric.
func (t *Table) IsNumeric(name string) bool {
	c, ok := t.Column(name)
	return ok && c.Kind == Numeric
}

// Cell returns the string form of a cell, as written by the CSV exporter.
func (t *Table) Cell(name string, row int) string {
	c, ok := t.Column(name)
	if !ok {
		return ""
	}
	if c.Kind == Text {
		return c.Texts[row]
	}
	return FormatFloat(c.Floats[row])
}

// With returns a copy of t with c appended, or replacing the column of the
// same name in place.
func (t *Table) With(c Column) (*Table, error) {
	if t == nil || len(t.cols) == 0 {
		return New(c)
	}
	if c.Len() != t.rows {
		return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), t.rows)
	}
	cols := make([]Column, len(t.cols), len(t.cols)+1)
	copy(cols, t.cols)
	if i, ok := t.index[c.Name]; ok {
		cols[i] = c
	} else {
		cols = append(cols, c)
	}
	return New(cols...)
}

// WithFloats is With for a numeric column. It panics if the length does not
// match, which is always a programming error inside the pipeline.
func (t *Table) WithFloats(name string, values []float64) *Table {
	out, err := t.With(NumericColumn(name, values))
	if err != nil {
		panic(err)
	}
	return out
}

// Drop returns a copy of t without the named columns.
func (t *Table) Drop(names ...string) *Table {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	var cols []Column
	for _, c := range t.cols {
		if !skip[c.Name] {
			cols = append(cols, c)
		}
	}
	out := MustNew(cols...)
	if len(cols) == 0 {
		out.rows = t.rows
	}
	return out
}

// Rename returns a copy of t with column from renamed to to.
func (t *Table) Rename(from, to string) (*Table, error) {
	i, ok := t.index[from]
	if !ok {
		return nil, fmt.Errorf("no column %q", from)
	}
	cols := make([]Column, len(t.cols))
	copy(cols, t.cols)
	cols[i].Name = to
	return New(cols...)
}

// Take returns a new table holding rows idx in the given order.
func (t *Table) Take(idx []int) *Table {
	if t == nil {
		return nil
	}
	cols := make([]Column, len(t.cols))
	for i, c := range t.cols {
		nc := Column{Name: c.Name, Kind: c.Kind}
		if c.Kind == Text {
			nc.Texts = make([]string, len(idx))
			for j, r := range idx {
				nc.Texts[j] = c.Texts[r]
			}
		} else {
			nc.Floats = make([]float64, len(idx))
			for j, r := range idx {
				nc.Floats[j] = c.Floats[r]
			}
		}
		cols[i] = nc
	}
	out := MustNew(cols...)
	out.rows = len(idx)
	return out
}

// Filter returns the rows for which keep returns true, in order.
func (t *Table) Filter(keep func(row int) bool) *Table {
	idx := make([]int, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return t.Take(idx)
}

// Head returns at most the first n rows.
func (t *Table) Head(n int) *Table {
	if n > t.Len() {
		n = t.Len()
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return t.Take(idx)
}

// Append concatenates tables with identical column names and kinds.
func Append(parts ...*Table) (*Table, error) {
	var base *Table
	for _, p := range parts {
		if p != nil && len(p.cols) > 0 {
			base = p
			break
		}
	}
	if base == nil {
		return MustNew(), nil
	}
	cols := make([]Column, len(base.cols))
	for i, c := range base.cols {
		cols[i] = Column{Name: c.Name, Kind: c.Kind}
	}
	for _, p := range parts {
		if p == nil || len(p.cols) == 0 {
			continue
		}
		if len(p.cols) != len(cols) {
			return nil, fmt.Errorf("column count mismatch: %d vs %d", len(p.cols), len(cols))
		}
		for i := range cols {
			c := p.cols[i]
			if c.Name != cols[i].Name || c.Kind != cols[i].Kind {
				return nil, fmt.Errorf("column %d mismatch: %q/%s vs %q/%s", i, c.Name, c.Kind, cols[i].Name, cols[i].Kind)
			}
			cols[i].Floats = append(cols[i].Floats, c.Floats...)
			cols[i].Texts = append(cols[i].Texts, c.Texts...)
		}
	}
	return New(cols...)
}

// SortedIndex returns row indices stably sorted by the given numeric columns
// in ascending order. NaN sorts last.
func (t *Table) SortedIndex(by ...string) []int {
	keys := make([][]float64, len(by))
	for i, name := range by {
		keys[i] = t.Floats(name)
	}
	idx := make([]int, t.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		for _, k := range keys {
			if k == nil {
				continue
			}
			va, vb := k[idx[a]], k[idx[b]]
			if va == vb {
				continue
			}
			if math.IsNaN(vb) {
				return !math.IsNaN(va)
			}
			if math.IsNaN(va) {
				return false
			}
			return va < vb
		}
		return false
	})
	return idx
}

// Unique returns the sorted distinct non-NaN values of a numeric column.
func (t *Table) Unique(name string) []float64 {
	vals := t.Floats(name)
	seen := make(map[float64]struct{}, len(vals))
	out := make([]float64, 0)
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// Equal reports whether two tables have the same columns and cells, treating
// NaN cells as equal.
func Equal(a, b *Table) bool {
	if a.Len() != b.Len() {
		return false
	}
	an, bn := a.Names(), b.Names()
	if len(an) != len(bn) {
		return false
	}
	for i, name := range an {
		if bn[i] != name {
			return false
		}
		ca, _ := a.Column(name)
		cb, _ := b.Column(name)
		if ca.Kind != cb.Kind {
			return false
		}
		if ca.Kind == Text {
			for r := range ca.Texts {
				if ca.Texts[r] != cb.Texts[r] {
					return false
				}
			}
			continue
		}
		for r := range ca.Floats {
			x, y := ca.Floats[r], cb.Floats[r]
			if x != y && !(math.IsNaN(x) && math.IsNaN(y)) {
				return false
			}
		}
	}
	return true
}
