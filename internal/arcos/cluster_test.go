package arcos

import (
	"testing"
)

func TestDBSCANClusterer_NewDefaultDBSCANClusterer(t *testing.T) {
	clusterer := NewDefaultDBSCANClusterer()
	if clusterer == nil {
		t.Fatal("expected non-nil clusterer")
	}

	params := clusterer.Params()
	if params.Eps != DefaultEps {
		t.Errorf("expected Eps=%f, got %f", DefaultEps, params.Eps)
	}
	if params.MinPts != DefaultMinPts {
		t.Errorf("expected MinPts=%d, got %d", DefaultMinPts, params.MinPts)
	}
}

func TestDBSCANClusterer_SetParams(t *testing.T) {
	clusterer := NewDefaultDBSCANClusterer()

	newParams := ClusteringParams{Eps: 1.0, MinPts: 20}
	clusterer.SetParams(newParams)

	got := clusterer.Params()
	if got != newParams {
		t.Errorf("expected %+v, got %+v", newParams, got)
	}
}

func TestDBSCANClusterer_Cluster_EmptyInput(t *testing.T) {
	clusterer := NewDefaultDBSCANClusterer()
	if labels := clusterer.Cluster(nil); labels != nil {
		t.Errorf("expected nil for empty input, got %v", labels)
	}
}

func TestDBSCANClusterer_Cluster_TwoGroupsAndNoise(t *testing.T) {
	points := [][]float64{
		{0, 0}, {1, 0}, {0, 1},
		{100, 100}, {101, 100}, {100, 101},
		{50, 50},
	}
	labels := NewDBSCANClusterer(2, 3).Cluster(points)

	want := []int{0, 0, 0, 1, 1, 1, -1}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("labels = %v, want %v", labels, want)
		}
	}
}

func TestDBSCANClusterer_Cluster_BorderPoint(t *testing.T) {
	// The last point only reaches one core point, so it joins as a border
	// point instead of staying noise.
	points := [][]float64{{0, 0}, {1, 0}, {2, 0}, {3.5, 0}}
	labels := NewDBSCANClusterer(1.5, 3).Cluster(points)

	for i, l := range labels {
		if l != 0 {
			t.Errorf("point %d: expected cluster 0, got %d", i, l)
		}
	}
}

func TestDBSCANClusterer_Cluster_3D(t *testing.T) {
	points := [][]float64{{0, 0, 0}, {0, 0, 1}, {0, 0, 50}}
	labels := NewDBSCANClusterer(2, 2).Cluster(points)

	if labels[0] != 0 || labels[1] != 0 {
		t.Errorf("expected first two points clustered, got %v", labels)
	}
	if labels[2] != -1 {
		t.Errorf("expected distant z point to be noise, got %d", labels[2])
	}
}

func TestDBSCANClusterer_Cluster_MinPtsOneKeepsSingletons(t *testing.T) {
	points := [][]float64{{-10, -10}, {10, 10}}
	labels := NewDBSCANClusterer(1, 1).Cluster(points)

	if labels[0] != 0 || labels[1] != 1 {
		t.Errorf("expected two singleton clusters, got %v", labels)
	}
}

func TestDBSCANClusterer_Cluster_Determinism(t *testing.T) {
	points := [][]float64{
		{5.0, 5.0}, {5.1, 5.1}, {5.2, 5.0}, {9, 9}, {9.1, 9}, {9, 9.1}, {-3, 2},
	}
	clusterer := NewDBSCANClusterer(0.5, 2)
	first := clusterer.Cluster(points)
	for run := 0; run < 5; run++ {
		again := clusterer.Cluster(points)
		for i := range first {
			if first[i] != again[i] {
				t.Fatalf("run %d: labels differ: %v vs %v", run, first, again)
			}
		}
	}
}

func TestGridIndex_RegionQueryHandlesNegativeCells(t *testing.T) {
	points := [][]float64{{-0.1, -0.1}, {0.1, 0.1}, {-5, -5}}
	g := newGridIndex(points, 1)

	got := g.regionQuery(points, 0, 0.5)
	if len(got) != 2 {
		t.Errorf("expected 2 neighbours across the origin, got %v", got)
	}
}
