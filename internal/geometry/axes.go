package geometry

import (
	"fmt"
	"strings"
)

// Default axis orders by number of core columns.
const (
	DefaultOrder2D = "tyx"
	DefaultOrder3D = "tzyx"
)

// ReorderAxes rearranges rows whose columns follow the core order
// [t, y, x(, z)] into the axis order named by order, for example "tyx" or
// "tzyx". Axes the rows do not carry, such as z for 2D data, are filled
// with zeros. An empty order selects DefaultOrder2D or DefaultOrder3D
// from nCore.
func ReorderAxes(rows [][]float64, order string, nCore int) ([][]float64, error) {
	if order == "" {
		order = DefaultOrder2D
		if nCore > 3 {
			order = DefaultOrder3D
		}
	}
	order = strings.ToLower(order)
	index := make([]int, len(order))
	for i, ch := range order {
		switch ch {
		case 't':
			index[i] = 0
		case 'y':
			index[i] = 1
		case 'x':
			index[i] = 2
		case 'z':
			index[i] = -1
			if nCore > 3 {
				index[i] = 3
			}
		default:
			return nil, fmt.Errorf("axis order %q: only t, x, y and z are allowed", order)
		}
	}

	out := make([][]float64, len(rows))
	for r, row := range rows {
		o := make([]float64, len(index))
		for i, src := range index {
			if src >= 0 && src < len(row) {
				o[i] = row[src]
			}
		}
		out[r] = o
	}
	return out, nil
}
