package layers

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/collev/internal/geometry"
	"github.com/banshee-data/collev/internal/schema"
	"github.com/banshee-data/collev/internal/table"
)

// Point size divisors and hull opacity of the event layers.
const (
	activeSizeDivisor = 2.5
	eventSizeDivisor  = 1.2
	hullOpacity       = 0.5
	boxOpacity        = 0.15
	boxEdgeDivisor    = 5
	// surfaceOrder is the vertex axis order of 3D hull surfaces when the
	// style names none.
	surfaceOrder = "tyxz"
)

// PrepareAllPoints describes every observation, coloured by its
// measurement through the style's lookup table. Missing coordinates and
// measurements are filled by linear interpolation along the rows.
func PrepareAllPoints(filtered *table.Table, cols schema.Columns, st Style) (*Descriptor, error) {
	if filtered.Empty() {
		return nil, nil
	}
	core := cols.CoreColumns()
	values := make([][]float64, len(core))
	for i, c := range core {
		v := filtered.Floats(c)
		if v == nil {
			return nil, fmt.Errorf("all cells: column %q is missing or not numeric", c)
		}
		values[i] = fillLinear(v)
	}
	act := filtered.Floats(cols.Measurement())
	if act == nil {
		return nil, fmt.Errorf("all cells: measurement %q is missing or not numeric", cols.Measurement())
	}
	ids := filtered.Floats(cols.ObjectID)
	if ids == nil {
		ids = make([]float64, filtered.Len())
	}

	points, err := geometry.ReorderAxes(rowsOf(values, nil), st.AxisOrder, len(core))
	if err != nil {
		return nil, err
	}
	return &Descriptor{
		Name:   AllCells,
		Kind:   KindPoints,
		Points: points,
		Shown:  allShown(len(points)),
		Properties: map[string][]float64{
			"act": fillLinear(act),
			"id":  append([]float64(nil), ids...),
		},
		ColorBy:        "act",
		Colormap:       st.LUT,
		ContrastLimits: st.ContrastLimits,
		Size:           st.PointSize,
		Opacity:        1,
		Symbol:         "disc",
	}, nil
}

// PrepareActivePoints describes the active rows of a binarized table as
// small black points.
func PrepareActivePoints(binarized *table.Table, cols schema.Columns, st Style) (*Descriptor, error) {
	bin := binarized.Floats(cols.BinColumn())
	if bin == nil {
		return nil, nil
	}
	var active []int
	for r, v := range bin {
		if v > 0 {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		return nil, nil
	}
	core, err := coreValues(binarized, cols)
	if err != nil {
		return nil, fmt.Errorf("active cells: %w", err)
	}
	rows, shown, _ := padTime(rowsOf(core, active), st.PadTime)
	points, err := geometry.ReorderAxes(rows, st.AxisOrder, len(core))
	if err != nil {
		return nil, err
	}
	return &Descriptor{
		Name:      ActiveCells,
		Kind:      KindPoints,
		Points:    points,
		Shown:     shown,
		FaceColor: "black",
		Size:      round2(st.PointSize / activeSizeDivisor),
		Opacity:   1,
		Symbol:    "disc",
	}, nil
}

// PrepareEventPoints describes the rows of the filtered event table, each
// coloured by its event id.
func PrepareEventPoints(events *table.Table, cols schema.Columns, st Style) (*Descriptor, error) {
	if events.Empty() {
		return nil, nil
	}
	ids := events.Floats(cols.EventID)
	if ids == nil {
		return nil, fmt.Errorf("event cells: event id column %q is missing", cols.EventID)
	}
	core, err := coreValues(events, cols)
	if err != nil {
		return nil, fmt.Errorf("event cells: %w", err)
	}
	rows, shown, padded := padTime(rowsOf(core, nil), st.PadTime)
	if padded {
		ids = append([]float64{0}, ids...)
	}
	points, err := geometry.ReorderAxes(rows, st.AxisOrder, len(core))
	if err != nil {
		return nil, err
	}
	colors := make([]string, len(ids))
	for i, id := range ids {
		colors[i] = geometry.ColorFor(id)
	}
	return &Descriptor{
		Name:       EventCells,
		Kind:       KindPoints,
		Points:     points,
		Shown:      shown,
		Properties: map[string][]float64{"collid": ids},
		FaceColors: colors,
		Size:       round2(st.PointSize / eventSizeDivisor),
		Opacity:    1,
	}, nil
}

// PrepareEventHulls describes the hull of every event in every frame: a
// polygon layer for 2D data and a surface for 3D data. The surface is
// patched with an empty vertex for every frame of filtered that no event
// covers. Groups whose hull cannot be built are returned alongside; the
// descriptor is nil when no 2D hull could be built.
func PrepareEventHulls(filtered, events *table.Table, cols schema.Columns, st Style) (*Descriptor, []geometry.HullFailure, error) {
	if events.Empty() {
		return nil, nil, nil
	}
	core := cols.CoreColumns()
	if !cols.Is3D() {
		groups, err := geometry.GroupPoints(events, cols.Frame, cols.EventID, core)
		if err != nil {
			return nil, nil, fmt.Errorf("event hulls: %w", err)
		}
		polygons, failures := geometry.Hulls2D(groups, core[1:])
		d := &Descriptor{
			Name:      EventHulls,
			Kind:      KindShapes,
			Opacity:   hullOpacity,
			EdgeColor: "white",
		}
		for _, p := range polygons {
			vertices, err := geometry.ReorderAxes(p.Vertices, st.AxisOrder, len(core))
			if err != nil {
				return nil, nil, err
			}
			d.Polygons = append(d.Polygons, vertices)
			d.FaceColors = append(d.FaceColors, p.Color)
		}
		if len(d.Polygons) == 0 {
			return nil, failures, nil
		}
		return d, failures, nil
	}

	order := strings.ToLower(st.AxisOrder)
	if order == "" {
		order = surfaceOrder
	}
	if len(order) != 4 || order[0] != 't' {
		return nil, nil, fmt.Errorf("event hulls: axis order %q must name four axes starting with t", st.AxisOrder)
	}
	byAxis := map[rune]string{'t': core[0], 'y': core[1], 'x': core[2], 'z': core[3]}
	seen := make(map[rune]bool, 4)
	vertexCols := make([]string, 0, 4)
	for _, ch := range order {
		c, ok := byAxis[ch]
		if !ok {
			return nil, nil, fmt.Errorf("event hulls: axis order %q: only t, x, y and z are allowed", st.AxisOrder)
		}
		if seen[ch] {
			return nil, nil, fmt.Errorf("event hulls: axis order %q repeats %c", st.AxisOrder, ch)
		}
		seen[ch] = true
		vertexCols = append(vertexCols, c)
	}
	groups, err := geometry.GroupPoints(events, cols.Frame, cols.EventID, vertexCols)
	if err != nil {
		return nil, nil, fmt.Errorf("event hulls: %w", err)
	}
	mesh, failures := geometry.Mesh3D(groups, vertexCols[1:])
	mesh = geometry.PatchMissingFrames(mesh, filtered.Unique(cols.Frame))
	return &Descriptor{
		Name:     EventHulls,
		Kind:     KindSurface,
		Points:   mesh.Vertices,
		Faces:    mesh.Faces,
		ColorIDs: mesh.Colors,
		Colormap: "tab20",
		Opacity:  hullOpacity,
	}, failures, nil
}

// PrepareEventBoundingBox describes the per-frame bounding box of one
// event: red rectangles for 2D data, a translucent red surface patched over
// frames first to last for 3D data.
func PrepareEventBoundingBox(events *table.Table, cols schema.Columns, id float64, st Style, first, last float64) (*Descriptor, error) {
	ids := events.Floats(cols.EventID)
	if ids == nil {
		return nil, nil
	}
	event := events.Filter(func(r int) bool { return ids[r] == id })
	if event.Empty() {
		return nil, nil
	}
	core := cols.CoreColumns()
	boxes, err := geometry.BoundingBoxes(event, cols.Frame, core[1:])
	if err != nil {
		return nil, fmt.Errorf("event bounding box: %w", err)
	}

	if !cols.Is3D() {
		edge := st.PointSize / boxEdgeDivisor
		d := &Descriptor{
			Name:      EventBoundingBox,
			Kind:      KindShapes,
			FaceColor: "transparent",
			EdgeColor: "red",
			EdgeWidth: edge,
			Size:      math.Max(edge*2.5, 1),
			Opacity:   1,
			Label:     fmt.Sprintf("Event Nbr: %s", table.FormatFloat(id)),
		}
		for _, b := range boxes {
			corners, err := geometry.ReorderAxes(b.Corners, st.AxisOrder, len(core))
			if err != nil {
				return nil, err
			}
			d.Polygons = append(d.Polygons, corners)
		}
		return d, nil
	}

	for i := range boxes {
		if boxes[i].Corners, err = geometry.ReorderAxes(boxes[i].Corners, st.AxisOrder, len(core)); err != nil {
			return nil, err
		}
	}
	var frames []float64
	for f := math.Ceil(first); f < last; f++ {
		frames = append(frames, f)
	}
	mesh := geometry.PatchMissingFrames(geometry.BoxSurface(boxes), frames)
	return &Descriptor{
		Name:     EventBoundingBox,
		Kind:     KindSurface,
		Points:   mesh.Vertices,
		Faces:    mesh.Faces,
		ColorIDs: mesh.Colors,
		Colormap: "red",
		Opacity:  boxOpacity,
		Label:    fmt.Sprintf("Event Nbr: %s", table.FormatFloat(id)),
	}, nil
}

func coreValues(t *table.Table, cols schema.Columns) ([][]float64, error) {
	core := cols.CoreColumns()
	values := make([][]float64, len(core))
	for i, c := range core {
		if values[i] = t.Floats(c); values[i] == nil {
			return nil, fmt.Errorf("column %q is missing or not numeric", c)
		}
	}
	return values, nil
}

// rowsOf builds rows from column values, for the given row indices or for
// every row when idx is nil.
func rowsOf(values [][]float64, idx []int) [][]float64 {
	if idx == nil {
		n := 0
		if len(values) > 0 {
			n = len(values[0])
		}
		idx = make([]int, n)
		for i := range idx {
			idx[i] = i
		}
	}
	rows := make([][]float64, len(idx))
	for i, r := range idx {
		row := make([]float64, len(values))
		for c := range values {
			row[c] = values[c][r]
		}
		rows[i] = row
	}
	return rows
}

// padTime prepends a hidden copy of the first row moved to frame 0 when
// pad is set and the rows start at a later frame.
func padTime(rows [][]float64, pad bool) ([][]float64, []bool, bool) {
	if !pad || len(rows) == 0 || rows[0][0] == 0 {
		return rows, allShown(len(rows)), false
	}
	first := append([]float64(nil), rows[0]...)
	first[0] = 0
	shown := allShown(len(rows) + 1)
	shown[0] = false
	return append([][]float64{first}, rows...), shown, true
}

func allShown(n int) []bool {
	shown := make([]bool, n)
	for i := range shown {
		shown[i] = true
	}
	return shown
}

// fillLinear fills missing values between two known values linearly and
// carries the last known value forward. Leading missing values stay.
func fillLinear(v []float64) []float64 {
	out := append([]float64(nil), v...)
	prev := -1
	for i, x := range out {
		if math.IsNaN(x) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			step := (x - out[prev]) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				out[j] = out[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}
	if prev >= 0 {
		for j := prev + 1; j < len(out); j++ {
			out[j] = out[prev]
		}
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
