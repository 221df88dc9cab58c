package geometry

import (
	"fmt"
	"math"

	"github.com/banshee-data/collev/internal/table"
)

// BoxFaces triangulates the eight corners returned by BoundingBox for 3D
// points into the twelve triangles of the box surface.
var BoxFaces = []Face{
	{3, 5, 4}, {3, 5, 0}, {3, 1, 2}, {3, 1, 0},
	{7, 3, 2}, {7, 3, 4}, {6, 1, 0}, {6, 5, 0},
	{6, 1, 2}, {6, 7, 2}, {6, 5, 4}, {6, 7, 4},
}

// FrameBox is the axis-aligned box around all points of one frame.
type FrameBox struct {
	Frame   float64
	Corners [][]float64
}

// BoundingBox returns the corners of the axis-aligned box around points.
// Each point row is [frame, y, x] or, when is3D, [frame, y, x, z]; corners
// carry the frame of the first point. The 2D box has four corners walking
// (miny,minx) (miny,maxx) (maxy,maxx) (maxy,minx). The 3D box has eight
// corners ordered for BoxFaces.
func BoundingBox(points [][]float64, is3D bool) [][]float64 {
	if len(points) == 0 {
		return nil
	}
	dims := 2
	if is3D {
		dims = 3
	}
	lo := make([]float64, dims)
	hi := make([]float64, dims)
	for d := 0; d < dims; d++ {
		lo[d], hi[d] = math.Inf(1), math.Inf(-1)
	}
	for _, p := range points {
		for d := 0; d < dims; d++ {
			lo[d] = math.Min(lo[d], p[d+1])
			hi[d] = math.Max(hi[d], p[d+1])
		}
	}
	t := points[0][0]
	if !is3D {
		return [][]float64{
			{t, lo[0], lo[1]},
			{t, lo[0], hi[1]},
			{t, hi[0], hi[1]},
			{t, hi[0], lo[1]},
		}
	}
	return [][]float64{
		{t, lo[0], lo[1], lo[2]},
		{t, lo[0], lo[1], hi[2]},
		{t, lo[0], hi[1], hi[2]},
		{t, lo[0], hi[1], lo[2]},
		{t, hi[0], hi[1], lo[2]},
		{t, hi[0], lo[1], lo[2]},
		{t, hi[0], lo[1], hi[2]},
		{t, hi[0], hi[1], hi[2]},
	}
}

// BoundingBoxes returns one box per frame of t, in ascending frame order.
// coordCols are the spatial columns in (y, x[, z]) order. Rows with a
// missing value are ignored.
func BoundingBoxes(t *table.Table, frameCol string, coordCols []string) ([]FrameBox, error) {
	if len(coordCols) != 2 && len(coordCols) != 3 {
		return nil, fmt.Errorf("bounding boxes need 2 or 3 coordinate columns, got %d", len(coordCols))
	}
	cols := append([]string{frameCol}, coordCols...)
	values := make([][]float64, len(cols))
	for i, c := range cols {
		if values[i] = t.Floats(c); values[i] == nil {
			return nil, fmt.Errorf("column %q is missing or not numeric", c)
		}
	}

	var (
		boxes   []FrameBox
		current [][]float64
	)
	flush := func() {
		if len(current) > 0 {
			boxes = append(boxes, FrameBox{Frame: current[0][0], Corners: BoundingBox(current, len(coordCols) == 3)})
			current = nil
		}
	}
	for _, r := range t.SortedIndex(frameCol) {
		row := make([]float64, len(cols))
		ok := true
		for i := range cols {
			row[i] = values[i][r]
			ok = ok && !math.IsNaN(row[i])
		}
		if !ok {
			continue
		}
		if len(current) > 0 && current[0][0] != row[0] {
			flush()
		}
		current = append(current, row)
	}
	flush()
	return boxes, nil
}

// BoxSurface merges 3D boxes into one mesh using BoxFaces. Every vertex
// gets colour id 1.
func BoxSurface(boxes []FrameBox) Mesh {
	var m Mesh
	for _, b := range boxes {
		offset := len(m.Vertices)
		for _, f := range BoxFaces {
			m.Faces = append(m.Faces, Face{f[0] + offset, f[1] + offset, f[2] + offset})
		}
		for _, c := range b.Corners {
			m.Vertices = append(m.Vertices, c)
			m.Colors = append(m.Colors, 1)
		}
	}
	return m
}
