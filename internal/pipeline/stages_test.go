package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/collev/internal/config"
)

func TestStagesForParam(t *testing.T) {
	t.Parallel()

	binarization := []string{"interpolate_meas", "clip_meas", "clip_low", "clip_high", "smooth_k", "bias_k", "bias_method", "polyDeg", "bin_threshold", "bin_peak_threshold"}
	tracking := []string{"eps_method", "neighbourhood_size", "epsPrev", "min_clustersize", "nprev"}
	filtering := []string{"min_dur", "total_event_size"}
	display := []string{"add_convex_hull", "add_all_cells", "add_bin_cells", "not_a_parameter"}

	for _, name := range binarization {
		assert.Equal(t, AllStages, StagesForParam(name), name)
	}
	for _, name := range tracking {
		assert.Equal(t, StageSet(StageTracking|StageFiltering), StagesForParam(name), name)
	}
	for _, name := range filtering {
		assert.Equal(t, StageSet(StageFiltering), StagesForParam(name), name)
	}
	for _, name := range display {
		assert.True(t, StagesForParam(name).Empty(), name)
	}

	covered := len(binarization) + len(tracking) + len(filtering) + len(display) - 1
	assert.Equal(t, len(config.Names()), covered, "every parameter has a class")
}

func TestStageSet(t *testing.T) {
	t.Parallel()

	var s StageSet
	assert.True(t, s.Empty())
	assert.Equal(t, "{}", s.String())

	s = s.With(StageFiltering).With(StageBinarization)
	assert.True(t, s.Has(StageBinarization))
	assert.False(t, s.Has(StageTracking))
	assert.Equal(t, "{binarization,filtering}", s.String())
	assert.Equal(t, StageSet(StageFiltering), s.Without(StageBinarization))

	assert.Equal(t, AllStages, Downstream(StageBinarization))
	assert.Equal(t, StageSet(StageFiltering), Downstream(StageFiltering))
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running-tracking", stateFor(StageTracking).String())
	assert.Equal(t, "none", Stage(0).String())
}
