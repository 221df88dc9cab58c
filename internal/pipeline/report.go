package pipeline

import "time"

// Report describes one run.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time

	// Requested are the stages that were dirty when the run started.
	Requested StageSet
	// Ran are the stages that completed and published their output.
	Ran StageSet
	// Aborted is the stage whose precondition failed, or zero.
	Aborted    Stage
	Diagnostic string

	// Eps is the neighbourhood radius used by tracking.
	Eps        float64
	ActiveRows int
	RawEvents  int
	Events     int
}

// Completed reports whether every requested stage ran.
func (r Report) Completed() bool {
	return r.Aborted == 0 && r.Ran == r.Requested
}

// Duration is the wall time of the run.
func (r Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
