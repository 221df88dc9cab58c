package arcos

import (
	"math"
)

// Constants for clustering configuration
const (
	// DefaultEps is the default neighbourhood radius, in coordinate units.
	DefaultEps = 20.0
	// DefaultMinPts is the default minimum cluster size.
	DefaultMinPts = 5
	// estimatedPointsPerCell sizes the grid map up front.
	estimatedPointsPerCell = 4
)

// ClusteringParams configures a Clusterer.
type ClusteringParams struct {
	Eps    float64 // neighbourhood radius
	MinPts int     // minimum neighbourhood size (including the point) of a core point
}

// Clusterer groups the points of one frame. Cluster returns one label per
// point: -1 for noise, otherwise a cluster index starting at 0. Labels are
// assigned in order of the first point of each cluster.
type Clusterer interface {
	Cluster(points [][]float64) []int
	Params() ClusteringParams
	SetParams(ClusteringParams)
}

// gridIndex answers radius queries with a regular grid whose cell size
// matches eps, so only the 3^d neighbouring cells are scanned.
type gridIndex struct {
	cellSize float64
	dims     int
	cells    map[[3]int64][]int
}

func newGridIndex(points [][]float64, cellSize float64) *gridIndex {
	if cellSize <= 0 {
		cellSize = 1
	}
	g := &gridIndex{
		cellSize: cellSize,
		cells:    make(map[[3]int64][]int, len(points)/estimatedPointsPerCell+1),
	}
	if len(points) > 0 {
		g.dims = len(points[0])
	}
	for i, p := range points {
		key := g.cellOf(p)
		g.cells[key] = append(g.cells[key], i)
	}
	return g
}

func (g *gridIndex) cellOf(p []float64) [3]int64 {
	var key [3]int64
	for d := 0; d < g.dims && d < 3; d++ {
		key[d] = int64(math.Floor(p[d] / g.cellSize))
	}
	return key
}

// regionQuery returns the indices of all points within eps of points[idx],
// including idx itself.
func (g *gridIndex) regionQuery(points [][]float64, idx int, eps float64) []int {
	p := points[idx]
	base := g.cellOf(p)
	eps2 := eps * eps

	span := [3]int64{}
	for d := 0; d < g.dims && d < 3; d++ {
		span[d] = 1
	}

	var neighbors []int
	for dx := -span[0]; dx <= span[0]; dx++ {
		for dy := -span[1]; dy <= span[1]; dy++ {
			for dz := -span[2]; dz <= span[2]; dz++ {
				key := [3]int64{base[0] + dx, base[1] + dy, base[2] + dz}
				for _, j := range g.cells[key] {
					if sqDist(p, points[j]) <= eps2 {
						neighbors = append(neighbors, j)
					}
				}
			}
		}
	}
	return neighbors
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for d := range a {
		diff := a[d] - b[d]
		sum += diff * diff
	}
	return sum
}

// DBSCANClusterer implements Clusterer with density based clustering over a
// grid index.
type DBSCANClusterer struct {
	params ClusteringParams
}

// NewDBSCANClusterer creates a DBSCAN clusterer with the given parameters.
func NewDBSCANClusterer(eps float64, minPts int) *DBSCANClusterer {
	return &DBSCANClusterer{params: ClusteringParams{Eps: eps, MinPts: minPts}}
}

// NewDefaultDBSCANClusterer creates a DBSCAN clusterer with default parameters.
func NewDefaultDBSCANClusterer() *DBSCANClusterer {
	return NewDBSCANClusterer(DefaultEps, DefaultMinPts)
}

// Params returns the current clustering parameters.
func (c *DBSCANClusterer) Params() ClusteringParams { return c.params }

// SetParams updates the clustering parameters.
func (c *DBSCANClusterer) SetParams(p ClusteringParams) { c.params = p }

// Cluster labels points. Points are 2D or 3D coordinate rows of equal length.
func (c *DBSCANClusterer) Cluster(points [][]float64) []int {
	n := len(points)
	if n == 0 {
		return nil
	}
	eps := c.params.Eps
	minPts := c.params.MinPts
	if minPts < 1 {
		minPts = 1
	}

	const (
		unvisited = 0
		noise     = -1
	)
	// Internal labels: 0 unvisited, -1 noise, >0 cluster id.
	labels := make([]int, n)
	clusterID := 0
	index := newGridIndex(points, eps)

	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		neighbors := index.regionQuery(points, i, eps)
		if len(neighbors) < minPts {
			labels[i] = noise
			continue
		}
		clusterID++
		labels[i] = clusterID
		for j := 0; j < len(neighbors); j++ {
			idx := neighbors[j]
			if labels[idx] == noise {
				labels[idx] = clusterID
			}
			if labels[idx] != unvisited {
				continue
			}
			labels[idx] = clusterID
			if next := index.regionQuery(points, idx, eps); len(next) >= minPts {
				neighbors = append(neighbors, next...)
			}
		}
	}

	out := make([]int, n)
	for i, l := range labels {
		if l <= 0 {
			out[i] = -1
		} else {
			out[i] = l - 1
		}
	}
	return out
}

// Verify at compile time that *DBSCANClusterer implements Clusterer.
var _ Clusterer = (*DBSCANClusterer)(nil)
