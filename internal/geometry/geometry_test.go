package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/collev/internal/table"
)

func eventTable(rows [][5]float64) *table.Table {
	cols := [5][]float64{}
	for _, r := range rows {
		for i, v := range r {
			cols[i] = append(cols[i], v)
		}
	}
	return table.MustNew(
		table.NumericColumn("t", cols[0]),
		table.NumericColumn("y", cols[1]),
		table.NumericColumn("x", cols[2]),
		table.NumericColumn("z", cols[3]),
		table.NumericColumn("collid", cols[4]),
	)
}

func TestGroupPoints(t *testing.T) {
	t.Parallel()

	tbl := eventTable([][5]float64{
		{1, 0, 0, 0, 2},
		{0, 1, 1, 0, 1},
		{1, 2, 2, 0, 1},
		{0, math.NaN(), 3, 0, 1},
		{0, 4, 4, 0, 1},
	})
	groups, err := GroupPoints(tbl, "t", "collid", []string{"t", "y", "x"})
	require.NoError(t, err)

	want := []Group{
		{Event: 1, Frame: 0, Rows: [][]float64{{0, 1, 1}, {0, 4, 4}}},
		{Event: 1, Frame: 1, Rows: [][]float64{{1, 2, 2}}},
		{Event: 2, Frame: 1, Rows: [][]float64{{1, 0, 0}}},
	}
	if diff := cmp.Diff(want, groups); diff != "" {
		t.Errorf("GroupPoints mismatch (-want +got):\n%s", diff)
	}

	_, err = GroupPoints(tbl, "t", "missing", []string{"t"})
	assert.Error(t, err)
}

func TestHulls2D_Degeneracies(t *testing.T) {
	t.Parallel()

	pair := [][]float64{{0, 1, 1}, {0, 5, 5}}
	groups := []Group{
		{Event: 1, Frame: 0, Rows: [][]float64{{0, 3, 3}}},
		{Event: 2, Frame: 0, Rows: pair},
		{Event: 3, Frame: 0, Rows: [][]float64{{0, 0, 0}, {0, 1, 1}, {0, 2, 2}}},
	}
	polygons, failures := Hulls2D(groups, []string{"y", "x"})

	require.Len(t, polygons, 1, "single points are skipped, collinear groups fail")
	assert.Equal(t, pair, polygons[0].Vertices, "pairs pass through unchanged")
	assert.Equal(t, 2.0, polygons[0].Event)

	require.Len(t, failures, 1)
	assert.Equal(t, 3.0, failures[0].Event)
	assert.Contains(t, failures[0].Error(), "[y x]")
	assert.True(t, errors.Is(failures[0], ErrDegenerateHull))
}

func TestHulls2D_Square(t *testing.T) {
	t.Parallel()

	rows := [][]float64{
		{4, 0, 0}, {4, 1, 0}, {4, 0.5, 0.5}, {4, 1, 1}, {4, 0, 1},
	}
	polygons, failures := Hulls2D([]Group{{Event: 7, Frame: 4, Rows: rows}}, []string{"y", "x"})
	require.Empty(t, failures)
	require.Len(t, polygons, 1)

	want := [][]float64{{4, 0, 0}, {4, 1, 0}, {4, 1, 1}, {4, 0, 1}}
	if diff := cmp.Diff(want, polygons[0].Vertices); diff != "" {
		t.Errorf("hull vertices mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Palette[7], polygons[0].Color)
}

func TestColorFor_Cycles(t *testing.T) {
	t.Parallel()

	p := float64(len(Palette))
	assert.Equal(t, ColorFor(0), ColorFor(p))
	assert.Equal(t, ColorFor(1), ColorFor(p+1))
	assert.NotEqual(t, ColorFor(p), ColorFor(p+1))
	assert.Equal(t, Palette[0], ColorFor(math.NaN()))
	assert.Equal(t, Palette[len(Palette)-1], ColorFor(-1))
}

func TestMesh3D_SmallGroups(t *testing.T) {
	t.Parallel()

	groups := []Group{
		{Event: 1, Frame: 0, Rows: [][]float64{{0, 1, 1, 1}}},
		{Event: 2, Frame: 0, Rows: [][]float64{{0, 1, 1, 1}, {0, 2, 2, 2}}},
		{Event: 3, Frame: 0, Rows: [][]float64{{0, 1, 1, 1}, {0, 2, 2, 2}, {0, 3, 1, 1}}},
	}
	mesh, failures := Mesh3D(groups, []string{"y", "x", "z"})
	require.Empty(t, failures)

	assert.Equal(t, []Face{{0, 0, 0}, {1, 2, 2}, {3, 4, 5}}, mesh.Faces)
	assert.Equal(t, []int{1, 2, 2, 3, 3, 3}, mesh.Colors)
	assert.Equal(t, 6, mesh.Len())
}

func TestMesh3D_SinglePoint(t *testing.T) {
	t.Parallel()

	mesh, failures := Mesh3D([]Group{{Event: 4, Frame: 2, Rows: [][]float64{{2, 5, 5, 5}}}}, nil)
	assert.Empty(t, failures)
	assert.Equal(t, []Face{{0, 0, 0}}, mesh.Faces)
	assert.Equal(t, []int{4}, mesh.Colors)
}

func TestMesh3D_Cube(t *testing.T) {
	t.Parallel()

	var rows [][]float64
	for _, y := range []float64{0, 1} {
		for _, x := range []float64{0, 1} {
			for _, z := range []float64{0, 1} {
				rows = append(rows, []float64{0, y, x, z})
			}
		}
	}
	rows = append(rows, []float64{0, 0.5, 0.5, 0.5})
	offset := Group{Event: 1, Frame: 0, Rows: [][]float64{{0, 9, 9, 9}}}

	mesh, failures := Mesh3D([]Group{offset, {Event: 2, Frame: 0, Rows: rows}}, []string{"y", "x", "z"})
	require.Empty(t, failures)
	require.Len(t, mesh.Faces, 1+12, "a cube surface has twelve triangles")

	used := map[int]bool{}
	for _, f := range mesh.Faces[1:] {
		for _, v := range f {
			assert.GreaterOrEqual(t, v, 1, "faces are offset past the first group")
			used[v] = true
		}
	}
	assert.Len(t, used, 8)
	assert.False(t, used[9], "the interior point is not a hull vertex")

	// Every triangle faces away from the cube centre.
	for _, f := range mesh.Faces[1:] {
		a, b, c := mesh.Vertices[f[0]], mesh.Vertices[f[1]], mesh.Vertices[f[2]]
		u := [3]float64{b[1] - a[1], b[2] - a[2], b[3] - a[3]}
		v := [3]float64{c[1] - a[1], c[2] - a[2], c[3] - a[3]}
		n := [3]float64{u[1]*v[2] - u[2]*v[1], u[2]*v[0] - u[0]*v[2], u[0]*v[1] - u[1]*v[0]}
		toCentre := [3]float64{0.5 - a[1], 0.5 - a[2], 0.5 - a[3]}
		assert.Less(t, n[0]*toCentre[0]+n[1]*toCentre[1]+n[2]*toCentre[2], 0.0)
	}
}

func TestMesh3D_CoplanarFallsBack(t *testing.T) {
	t.Parallel()

	rows := [][]float64{{3, 0, 0, 1}, {3, 1, 0, 1}, {3, 0, 1, 1}, {3, 1, 1, 1}}
	mesh, failures := Mesh3D([]Group{{Event: 5, Frame: 3, Rows: rows}}, []string{"y", "x", "z"})

	require.Len(t, failures, 1)
	assert.Equal(t, 5.0, failures[0].Event)
	assert.Equal(t, []Face{{0, 1, 2}}, mesh.Faces)
	assert.Equal(t, 4, mesh.Len())
}

func TestPatchMissingFrames(t *testing.T) {
	t.Parallel()

	mesh := Mesh{
		Vertices: [][]float64{{1, 1, 1, 1}, {3, 2, 2, 2}},
		Faces:    []Face{{0, 0, 0}, {1, 1, 1}},
		Colors:   []int{4, 4},
	}
	got := PatchMissingFrames(mesh, []float64{1, 2, 3})

	want := Mesh{
		Vertices: [][]float64{{1, 1, 1, 1}, {3, 2, 2, 2}, {2, 0, 0, 0}},
		Faces:    []Face{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}},
		Colors:   []int{4, 4, 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PatchMissingFrames mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, mesh.Vertices, 2, "input mesh is not modified")

	patched := PatchMissingFrames(Mesh{}, []float64{0, 1, 1})
	assert.Equal(t, []Face{{0, 0, 0}, {1, 1, 1}}, patched.Faces)
	assert.Equal(t, [][]float64{{0, 0, 0, 0}, {1, 0, 0, 0}}, patched.Vertices)
}

func TestBoundingBox(t *testing.T) {
	t.Parallel()

	pts2 := [][]float64{{5, 1, 4}, {5, 3, 2}}
	assert.Equal(t, [][]float64{{5, 1, 2}, {5, 1, 4}, {5, 3, 4}, {5, 3, 2}}, BoundingBox(pts2, false))

	pts3 := [][]float64{{2, 0, 0, 0}, {2, 1, 2, 3}}
	box := BoundingBox(pts3, true)
	require.Len(t, box, 8)
	assert.Equal(t, []float64{2, 0, 0, 0}, box[0])
	assert.Equal(t, []float64{2, 0, 0, 3}, box[1])
	assert.Equal(t, []float64{2, 1, 2, 3}, box[7])

	assert.Nil(t, BoundingBox(nil, false))
}

func TestBoundingBoxes(t *testing.T) {
	t.Parallel()

	tbl := eventTable([][5]float64{
		{2, 0, 0, 0, 1},
		{1, 5, 5, 5, 1},
		{2, 4, 6, 1, 1},
		{1, math.NaN(), 0, 0, 1},
	})
	boxes, err := BoundingBoxes(tbl, "t", []string{"y", "x"})
	require.NoError(t, err)
	require.Len(t, boxes, 2)
	assert.Equal(t, 1.0, boxes[0].Frame)
	assert.Equal(t, [][]float64{{1, 5, 5}, {1, 5, 5}, {1, 5, 5}, {1, 5, 5}}, boxes[0].Corners)
	assert.Equal(t, [][]float64{{2, 0, 0}, {2, 0, 6}, {2, 4, 6}, {2, 4, 0}}, boxes[1].Corners)

	boxes3, err := BoundingBoxes(tbl, "t", []string{"y", "x", "z"})
	require.NoError(t, err)
	surface := BoxSurface(boxes3)
	assert.Equal(t, 16, surface.Len())
	require.Len(t, surface.Faces, 24)
	assert.Equal(t, Face{3 + 8, 5 + 8, 4 + 8}, surface.Faces[12])

	_, err = BoundingBoxes(tbl, "t", []string{"y"})
	assert.Error(t, err)
}

func TestReorderAxes(t *testing.T) {
	t.Parallel()

	rows := [][]float64{{1, 2, 3}}
	tests := []struct {
		order string
		nCore int
		want  [][]float64
	}{
		{"", 3, [][]float64{{1, 2, 3}}},
		{"txy", 3, [][]float64{{1, 3, 2}}},
		{"TYXZ", 3, [][]float64{{1, 2, 3, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.order, func(t *testing.T) {
			got, err := ReorderAxes(rows, tt.order, tt.nCore)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := ReorderAxes([][]float64{{1, 2, 3, 4}}, "", 4)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 4, 2, 3}}, got)

	_, err = ReorderAxes(rows, "tyq", 3)
	assert.Error(t, err)
}
