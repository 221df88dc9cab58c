// Package geometry builds the shapes drawn around collective events: 2D
// convex hull polygons, 3D hull meshes, per-frame bounding boxes and the
// axis reordering applied before anything is handed to a viewer.
//
// Shapes are built from Groups. Every row of a group starts with the frame
// value followed by the spatial coordinates; hulls are computed over the
// columns after the first.
package geometry

import (
	"fmt"
	"math"

	"github.com/banshee-data/collev/internal/table"
)

// Group holds the rows of one event in one frame.
type Group struct {
	Event float64
	Frame float64
	Rows  [][]float64
}

// GroupPoints sorts the table by (event, frame), drops rows with a missing
// value in any used column and splits the rest into one Group per
// (event, frame) pair. Group rows hold the values of cols, in order.
func GroupPoints(t *table.Table, frameCol, eventCol string, cols []string) ([]Group, error) {
	frames := t.Floats(frameCol)
	if frames == nil {
		return nil, fmt.Errorf("frame column %q is missing or not numeric", frameCol)
	}
	events := t.Floats(eventCol)
	if events == nil {
		return nil, fmt.Errorf("event column %q is missing or not numeric", eventCol)
	}
	values := make([][]float64, len(cols))
	for i, c := range cols {
		if values[i] = t.Floats(c); values[i] == nil {
			return nil, fmt.Errorf("column %q is missing or not numeric", c)
		}
	}

	var groups []Group
	for _, r := range t.SortedIndex(eventCol, frameCol) {
		if math.IsNaN(frames[r]) || math.IsNaN(events[r]) {
			continue
		}
		row := make([]float64, len(cols))
		ok := true
		for i := range cols {
			row[i] = values[i][r]
			ok = ok && !math.IsNaN(row[i])
		}
		if !ok {
			continue
		}
		if n := len(groups); n == 0 || groups[n-1].Event != events[r] || groups[n-1].Frame != frames[r] {
			groups = append(groups, Group{Event: events[r], Frame: frames[r]})
		}
		g := &groups[len(groups)-1]
		g.Rows = append(g.Rows, row)
	}
	return groups, nil
}
