package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Face is a triangle of vertex indices.
type Face [3]int

// Mesh is a merged surface: vertex rows, triangles indexing into them and
// one colour id per vertex.
type Mesh struct {
	Vertices [][]float64
	Faces    []Face
	Colors   []int
}

// Len returns the number of vertices.
func (m Mesh) Len() int { return len(m.Vertices) }

// Mesh3D builds one surface for all groups. Every row of every group
// becomes a vertex; faces are offset by the number of vertices emitted
// before their group. Groups of one, two and three points get the faces
// [0 0 0], [0 1 1] and [0 1 2]. Larger groups get their convex hull over
// columns 1 to 3; a coplanar group falls back to [0 1 2] and is reported.
// The colour id of a vertex is its event id.
func Mesh3D(groups []Group, coordCols []string) (Mesh, []HullFailure) {
	var (
		mesh     Mesh
		failures []HullFailure
	)
	for _, g := range groups {
		offset := len(mesh.Vertices)
		var faces []Face
		switch n := len(g.Rows); n {
		case 0:
			continue
		case 1:
			faces = []Face{{0, 0, 0}}
		case 2:
			faces = []Face{{0, 1, 1}}
		case 3:
			faces = []Face{{0, 1, 2}}
		default:
			pts := make([]r3.Vec, n)
			for i, r := range g.Rows {
				pts[i] = r3.Vec{X: r[1], Y: r[2], Z: r[3]}
			}
			if faces = hull3D(pts); faces == nil {
				failures = append(failures, HullFailure{Event: g.Event, Frame: g.Frame, Columns: coordCols, Points: n})
				faces = []Face{{0, 1, 2}}
			}
		}
		for _, f := range faces {
			mesh.Faces = append(mesh.Faces, Face{f[0] + offset, f[1] + offset, f[2] + offset})
		}
		for _, r := range g.Rows {
			mesh.Vertices = append(mesh.Vertices, r)
			mesh.Colors = append(mesh.Colors, int(g.Event))
		}
	}
	return mesh, failures
}

// PatchMissingFrames appends, for every frame of required that no vertex
// carries in column 0, a zero vertex at that frame, the degenerate face
// [n n n] pointing at it and colour 0. Viewers that slice surfaces by time
// need at least one vertex per frame.
func PatchMissingFrames(m Mesh, required []float64) Mesh {
	present := make(map[float64]bool, len(m.Vertices))
	for _, v := range m.Vertices {
		present[v[0]] = true
	}
	width := 4
	if len(m.Vertices) > 0 {
		width = len(m.Vertices[0])
	}

	out := Mesh{
		Vertices: append([][]float64(nil), m.Vertices...),
		Faces:    append([]Face(nil), m.Faces...),
		Colors:   append([]int(nil), m.Colors...),
	}
	for _, f := range required {
		if present[f] || math.IsNaN(f) {
			continue
		}
		present[f] = true
		n := len(out.Vertices)
		v := make([]float64, width)
		v[0] = f
		out.Vertices = append(out.Vertices, v)
		out.Faces = append(out.Faces, Face{n, n, n})
		out.Colors = append(out.Colors, 0)
	}
	return out
}

type hullFace struct {
	v      Face
	normal r3.Vec
	offset float64
}

func newHullFace(pts []r3.Vec, a, b, c int) hullFace {
	n := r3.Unit(r3.Cross(r3.Sub(pts[b], pts[a]), r3.Sub(pts[c], pts[a])))
	return hullFace{v: Face{a, b, c}, normal: n, offset: r3.Dot(n, pts[a])}
}

func (f hullFace) distance(p r3.Vec) float64 { return r3.Dot(f.normal, p) - f.offset }

// hull3D returns the outward oriented triangles of the convex hull of pts,
// or nil when the points do not span a volume.
func hull3D(pts []r3.Vec) []Face {
	lo, hi := pts[0], pts[0]
	for _, p := range pts[1:] {
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	scale := r3.Norm(r3.Sub(hi, lo))
	if scale == 0 {
		return nil
	}
	eps := 1e-9 * scale

	// Step 1: find four points spanning a tetrahedron.
	a := 0
	b := farthest(pts, func(p r3.Vec) float64 { return r3.Norm(r3.Sub(p, pts[a])) })
	c := farthest(pts, func(p r3.Vec) float64 {
		return r3.Norm(r3.Cross(r3.Sub(pts[b], pts[a]), r3.Sub(p, pts[a])))
	})
	if r3.Norm(r3.Cross(r3.Sub(pts[b], pts[a]), r3.Sub(pts[c], pts[a]))) <= eps*scale {
		return nil
	}
	base := newHullFace(pts, a, b, c)
	d := farthest(pts, func(p r3.Vec) float64 { return math.Abs(base.distance(p)) })
	if math.Abs(base.distance(pts[d])) <= eps {
		return nil
	}

	// Step 2: orient the tetrahedron faces outwards.
	inside := r3.Scale(0.25, r3.Add(r3.Add(pts[a], pts[b]), r3.Add(pts[c], pts[d])))
	orient := func(i, j, k int) hullFace {
		f := newHullFace(pts, i, j, k)
		if f.distance(inside) > 0 {
			f = newHullFace(pts, i, k, j)
		}
		return f
	}
	faces := []hullFace{orient(a, b, c), orient(a, b, d), orient(a, c, d), orient(b, c, d)}

	// Step 3: add the remaining points one at a time, replacing the faces
	// they can see with a fan over the horizon.
	for p := range pts {
		if p == a || p == b || p == c || p == d {
			continue
		}
		visible := make([]bool, len(faces))
		seesAny := false
		for i, f := range faces {
			if f.distance(pts[p]) > eps {
				visible[i], seesAny = true, true
			}
		}
		if !seesAny {
			continue
		}
		edges := make(map[[2]int]bool)
		for i, f := range faces {
			if visible[i] {
				edges[[2]int{f.v[0], f.v[1]}] = true
				edges[[2]int{f.v[1], f.v[2]}] = true
				edges[[2]int{f.v[2], f.v[0]}] = true
			}
		}
		next := faces[:0:0]
		var horizon [][2]int
		for i, f := range faces {
			if !visible[i] {
				next = append(next, f)
				continue
			}
			for _, e := range [][2]int{{f.v[0], f.v[1]}, {f.v[1], f.v[2]}, {f.v[2], f.v[0]}} {
				if !edges[[2]int{e[1], e[0]}] {
					horizon = append(horizon, e)
				}
			}
		}
		for _, e := range horizon {
			next = append(next, newHullFace(pts, e[0], e[1], p))
		}
		faces = next
	}

	out := make([]Face, len(faces))
	for i, f := range faces {
		out[i] = f.v
	}
	return out
}

func farthest(pts []r3.Vec, score func(r3.Vec) float64) int {
	best, bestScore := 0, math.Inf(-1)
	for i, p := range pts {
		if s := score(p); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}
