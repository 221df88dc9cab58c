package geometry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrDegenerateHull is wrapped by every HullFailure.
var ErrDegenerateHull = errors.New("degenerate convex hull")

// HullFailure records a group whose hull could not be built, typically
// because its points are collinear (2D) or coplanar (3D). A failure never
// stops the remaining groups from being processed.
type HullFailure struct {
	Event   float64
	Frame   float64
	Columns []string
	Points  int
}

func (f HullFailure) Error() string {
	return fmt.Sprintf("event %v frame %v: %d points over [%s]: %v",
		f.Event, f.Frame, f.Points, strings.Join(f.Columns, " "), ErrDegenerateHull)
}

func (f HullFailure) Unwrap() error { return ErrDegenerateHull }

// Polygon is the hull of one event in one frame. Vertices are rows of the
// source group, in counter-clockwise order.
type Polygon struct {
	Event    float64
	Frame    float64
	Vertices [][]float64
	Color    string
}

// Hulls2D builds one polygon per group. Groups of one point are skipped,
// groups of two points pass through unchanged, larger groups are reduced to
// their convex hull. coordCols names the two hull columns for failure
// reports.
func Hulls2D(groups []Group, coordCols []string) ([]Polygon, []HullFailure) {
	var (
		polygons []Polygon
		failures []HullFailure
	)
	for _, g := range groups {
		switch n := len(g.Rows); {
		case n < 2:
			continue
		case n == 2:
			polygons = append(polygons, Polygon{Event: g.Event, Frame: g.Frame, Vertices: g.Rows, Color: ColorFor(g.Event)})
		default:
			idx := hull2D(g.Rows)
			if len(idx) < 3 {
				failures = append(failures, HullFailure{Event: g.Event, Frame: g.Frame, Columns: coordCols, Points: n})
				continue
			}
			vertices := make([][]float64, len(idx))
			for i, j := range idx {
				vertices[i] = g.Rows[j]
			}
			polygons = append(polygons, Polygon{Event: g.Event, Frame: g.Frame, Vertices: vertices, Color: ColorFor(g.Event)})
		}
	}
	return polygons, failures
}

// hull2D returns the row indices of the convex hull of rows, using columns
// 1 and 2 as the plane, in counter-clockwise order starting from the lowest
// point. Collinear points on an edge are dropped.
func hull2D(rows [][]float64) []int {
	pts := make([]r2.Vec, len(rows))
	order := make([]int, len(rows))
	for i, r := range rows {
		pts[i] = r2.Vec{X: r[1], Y: r[2]}
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := pts[order[a]], pts[order[b]]
		if pa.X != pb.X {
			return pa.X < pb.X
		}
		return pa.Y < pb.Y
	})

	turn := func(o, a, b int) float64 {
		return r2.Cross(r2.Sub(pts[a], pts[o]), r2.Sub(pts[b], pts[o]))
	}

	// Andrew's monotone chain: lower hull left to right, then upper hull
	// right to left.
	hull := make([]int, 0, 2*len(order))
	for _, i := range order {
		for len(hull) >= 2 && turn(hull[len(hull)-2], hull[len(hull)-1], i) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, i)
	}
	lower := len(hull) + 1
	for k := len(order) - 2; k >= 0; k-- {
		i := order[k]
		for len(hull) >= lower && turn(hull[len(hull)-2], hull[len(hull)-1], i) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, i)
	}
	return hull[:len(hull)-1]
}
