package table

import (
	"math"
	"strconv"
	"strings"
)

// FormatFloat renders a cell for CSV output. Integral values are written
// without a decimal point and missing values as the empty string.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ParseFloat parses a cell. Empty cells and the usual missing-value markers
// parse as NaN with ok set to true; anything else that is not a number
// returns ok false.
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "na", "nan":
		return math.NaN(), true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ColumnFromStrings builds a numeric column when every cell parses as a
// number (or is missing), and a text column otherwise.
func ColumnFromStrings(name string, cells []string) Column {
	floats := make([]float64, len(cells))
	for i, s := range cells {
		v, ok := ParseFloat(s)
		if !ok {
			texts := make([]string, len(cells))
			copy(texts, cells)
			return TextColumn(name, texts)
		}
		floats[i] = v
	}
	return NumericColumn(name, floats)
}
