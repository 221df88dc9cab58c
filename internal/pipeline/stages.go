package pipeline

import (
	"strings"

	"github.com/banshee-data/collev/internal/config"
)

// Stage identifies one pipeline stage. Stages are bit flags so they combine
// into a StageSet.
type Stage uint8

const (
	StageBinarization Stage = 1 << iota
	StageTracking
	StageFiltering
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageBinarization, StageTracking, StageFiltering}

func (s Stage) String() string {
	switch s {
	case StageBinarization:
		return "binarization"
	case StageTracking:
		return "tracking"
	case StageFiltering:
		return "filtering"
	case 0:
		return "none"
	}
	return "unknown"
}

// StageSet is a set of stages.
type StageSet uint8

// AllStages contains every stage.
const AllStages = StageSet(StageBinarization | StageTracking | StageFiltering)

// Has reports whether s contains stage.
func (s StageSet) Has(stage Stage) bool { return s&StageSet(stage) != 0 }

// With returns s plus stage.
func (s StageSet) With(stage Stage) StageSet { return s | StageSet(stage) }

// Without returns s minus stage.
func (s StageSet) Without(stage Stage) StageSet { return s &^ StageSet(stage) }

// Empty reports whether s contains no stage.
func (s StageSet) Empty() bool { return s == 0 }

func (s StageSet) String() string {
	if s.Empty() {
		return "{}"
	}
	var names []string
	for _, st := range Stages {
		if s.Has(st) {
			names = append(names, st.String())
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Downstream returns stage and every stage after it.
func Downstream(stage Stage) StageSet {
	var out StageSet
	for _, st := range Stages {
		if st >= stage {
			out = out.With(st)
		}
	}
	return out
}

// StagesForClass returns the stages invalidated by a parameter class.
func StagesForClass(c config.Class) StageSet {
	switch c {
	case config.ClassBinarization:
		return Downstream(StageBinarization)
	case config.ClassTracking:
		return Downstream(StageTracking)
	case config.ClassFiltering:
		return Downstream(StageFiltering)
	}
	return 0
}

// StagesForParam returns the stages invalidated by a change to the named
// parameter. Unknown names invalidate nothing.
func StagesForParam(name string) StageSet {
	c, ok := config.ClassOf(name)
	if !ok {
		return 0
	}
	return StagesForClass(c)
}

// State is what the orchestrator is currently doing.
type State uint8

const (
	StateIdle State = iota
	StateBinarizing
	StateTracking
	StateFiltering
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBinarizing:
		return "running-binarization"
	case StateTracking:
		return "running-tracking"
	case StateFiltering:
		return "running-filtering"
	}
	return "unknown"
}

func stateFor(stage Stage) State {
	switch stage {
	case StageBinarization:
		return StateBinarizing
	case StageTracking:
		return StateTracking
	case StageFiltering:
		return StateFiltering
	}
	return StateIdle
}
