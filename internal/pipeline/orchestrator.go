package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/banshee-data/collev/internal/arcos"
	"github.com/banshee-data/collev/internal/config"
	"github.com/banshee-data/collev/internal/monitoring"
	"github.com/banshee-data/collev/internal/store"
	"github.com/banshee-data/collev/internal/timeutil"
)

// Diagnostics reported when a stage cannot run.
const (
	MsgNoData           = "No data loaded. Load first using the import data tab."
	MsgNoBinarized      = "No binarized data. Adjust binarization parameters."
	MsgNoEvents         = "No collective events detected. Adjust event detection parameters."
	MsgNoFilteredEvents = "No collective events detected. Adjust filtering parameters."
)

// ErrRunInFlight is returned when a run is requested while another run of
// the same orchestrator has not finished.
var ErrRunInFlight = errors.New("pipeline: a run is already in flight")

// Config holds the optional collaborators of an Orchestrator.
type Config struct {
	// Sink receives stage diagnostics. Defaults to a monitoring.LogSink.
	Sink monitoring.Sink
	// Clock stamps run reports. Defaults to timeutil.RealClock.
	Clock timeutil.Clock
}

// Orchestrator runs the stages of one session.
type Orchestrator struct {
	session *store.Session
	sink    monitoring.Sink
	clock   timeutil.Clock
	state   *store.Value[State]

	run *semaphore.Weighted

	mu     sync.Mutex
	dirty  StageSet
	cancel context.CancelFunc
	last   Report
}

// New returns an orchestrator over session with every stage dirty.
func New(session *store.Session, cfg Config) *Orchestrator {
	if cfg.Sink == nil {
		cfg.Sink = monitoring.LogSink{Prefix: "pipeline: "}
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Orchestrator{
		session: session,
		sink:    cfg.Sink,
		clock:   cfg.Clock,
		state:   store.NewValue(StateIdle),
		run:     semaphore.NewWeighted(1),
		dirty:   AllStages,
	}
}

// Session returns the session the orchestrator works on.
func (o *Orchestrator) Session() *store.Session { return o.session }

// State returns the observable orchestrator state.
func (o *Orchestrator) State() *store.Value[State] { return o.state }

// Dirty returns the stages scheduled for the next Run.
func (o *Orchestrator) Dirty() StageSet {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dirty
}

// MarkDirty schedules stage and every stage after it. Loading new data
// marks binarization.
func (o *Orchestrator) MarkDirty(stage Stage) {
	o.mu.Lock()
	o.dirty |= Downstream(stage)
	o.mu.Unlock()
}

// UpdateParams validates p, stores it in the session and schedules the
// stages affected by every parameter that changed.
func (o *Orchestrator) UpdateParams(p config.Params) (StageSet, error) {
	if err := p.Validate(); err != nil {
		return 0, fmt.Errorf("update params: %w", err)
	}
	var scheduled StageSet
	for _, name := range config.Diff(o.session.Params.Get(), p) {
		scheduled |= StagesForParam(name)
	}
	o.mu.Lock()
	o.dirty |= scheduled
	o.mu.Unlock()
	if !scheduled.Empty() {
		diagf("parameters changed, scheduled %s", scheduled)
	}
	o.session.Params.Set(p)
	return scheduled, nil
}

// Cancel requests cancellation of the run in flight, if any.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// LastReport returns the report of the most recent run.
func (o *Orchestrator) LastReport() Report {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Run executes every dirty stage in order. Precondition failures end the
// run with a diagnostic and a nil error; an error is only returned when
// another run is in flight or ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	return o.execute(ctx, func(dirty StageSet) StageSet { return dirty })
}

// RunBinarizationOnly runs the binarization stage whether or not it is
// dirty. Detection results computed from an older binarization are cleared
// and tracking and filtering are scheduled.
func (o *Orchestrator) RunBinarizationOnly(ctx context.Context) (Report, error) {
	report, err := o.execute(ctx, func(StageSet) StageSet { return StageSet(StageBinarization) })
	if err == nil && report.Ran.Has(StageBinarization) {
		o.session.RawEvents.Set(nil)
		o.session.Events.Set(nil)
		o.session.Stats.Set(nil)
		o.MarkDirty(StageTracking)
	}
	return report, err
}

func (o *Orchestrator) execute(ctx context.Context, pick func(StageSet) StageSet) (Report, error) {
	if !o.run.TryAcquire(1) {
		return Report{}, ErrRunInFlight
	}
	defer o.run.Release(1)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	pending := pick(o.dirty)
	o.dirty &^= pending
	o.cancel = cancel
	o.mu.Unlock()

	report := Report{RunID: uuid.New().String(), Started: o.clock.Now(), Requested: pending}
	tracef("run %s: stages %s", report.RunID, pending)

	err := o.runStages(ctx, pending, &report)
	o.state.Set(StateIdle)
	report.Finished = o.clock.Now()

	o.mu.Lock()
	o.dirty |= pending &^ report.Ran
	o.cancel = nil
	o.last = report
	o.mu.Unlock()

	if err != nil {
		opsf("run %s cancelled after %s: %v", report.RunID, report.Ran, err)
		return report, fmt.Errorf("pipeline run: %w", err)
	}
	diagf("run %s finished in %s: ran %s", report.RunID, report.Duration(), report.Ran)
	return report, nil
}

func (o *Orchestrator) runStages(ctx context.Context, pending StageSet, report *Report) error {
	for _, stage := range Stages {
		if !pending.Has(stage) {
			tracef("skip %s: clean", stage)
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		o.state.Set(stateFor(stage))

		var publish func()
		var diagnostic string
		switch stage {
		case StageBinarization:
			publish, diagnostic = o.binarize(report)
		case StageTracking:
			publish, diagnostic = o.track(report)
		case StageFiltering:
			publish, diagnostic = o.filter(report)
		}
		if diagnostic != "" {
			o.abort(stage, diagnostic, report)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		publish()
		report.Ran = report.Ran.With(stage)
	}
	return nil
}

// abort reports the diagnostic and clears the results of stage and every
// stage after it.
func (o *Orchestrator) abort(stage Stage, diagnostic string, report *Report) {
	opsf("%s aborted: %s", stage, diagnostic)
	report.Aborted = stage
	report.Diagnostic = diagnostic
	o.sink.Report(diagnostic)

	s := o.session
	cleared := Downstream(stage)
	if cleared.Has(StageBinarization) {
		s.Binarized.Set(nil)
	}
	if cleared.Has(StageTracking) {
		s.RawEvents.Set(nil)
	}
	s.Events.Set(nil)
	s.Stats.Set(nil)
}

func (o *Orchestrator) binarize(report *Report) (func(), string) {
	data := o.session.FilteredData.Get()
	if data.Empty() {
		return nil, MsgNoData
	}
	cols := o.session.Columns.Get()
	p := o.session.Params.Get()

	var err error
	if p.Interpolate {
		if data, err = arcos.InterpolateMeasurement(data, cols); err != nil {
			return nil, fmt.Sprintf("Interpolation failed: %v", err)
		}
	}
	if p.Clip {
		if data, err = arcos.ClipMeasurement(data, cols, p.ClipLow, p.ClipHigh); err != nil {
			return nil, fmt.Sprintf("Clipping failed: %v", err)
		}
	}
	b, err := arcos.NewBinarizer(p)
	if err != nil {
		return nil, fmt.Sprintf("Binarization failed: %v", err)
	}
	out, err := b.Binarize(data, cols)
	if err != nil {
		return nil, fmt.Sprintf("Binarization failed: %v", err)
	}
	report.ActiveRows = arcos.ActiveCount(out, cols)
	diagf("binarization: %d of %d rows active (%s)", report.ActiveRows, out.Len(), b.Detrender.Name())
	return func() { o.session.Binarized.Set(out) }, ""
}

func (o *Orchestrator) track(report *Report) (func(), string) {
	bin := o.session.Binarized.Get()
	cols := o.session.Columns.Get()
	if bin.Empty() || arcos.ActiveCount(bin, cols) == 0 {
		return nil, MsgNoBinarized
	}
	p := o.session.Params.Get()

	eps, err := arcos.EstimateEps(bin, cols, p.EpsMethod, p.MinClusterSize, p.NeighbourhoodSize)
	if err != nil {
		return nil, fmt.Sprintf("Eps estimation failed: %v", err)
	}
	report.Eps = eps
	estimated := p.EpsMethod != config.EpsManual && eps != p.NeighbourhoodSize
	p.NeighbourhoodSize = eps

	tracker := &arcos.Tracker{
		Clusterer:  arcos.NewDBSCANClusterer(eps, p.MinClusterSize),
		LinkRadius: p.LinkingRadius(),
		NPrev:      p.NPrev,
	}
	raw := tracker.Track(bin, cols)
	report.RawEvents = len(raw.Unique(cols.EventID))
	diagf("tracking: eps=%.2f link=%.2f nprev=%d, %d events", eps, tracker.LinkRadius, p.NPrev, report.RawEvents)

	return func() {
		if estimated {
			o.session.Params.Set(p)
		}
		o.session.RawEvents.Set(raw)
	}, ""
}

func (o *Orchestrator) filter(report *Report) (func(), string) {
	raw := o.session.RawEvents.Get()
	if raw.Empty() {
		return nil, MsgNoEvents
	}
	cols := o.session.Columns.Get()
	p := o.session.Params.Get()

	events := arcos.FilterEvents(raw, cols, p.MinDuration, p.TotalEventSize)
	if events.Empty() {
		return nil, MsgNoFilteredEvents
	}
	stats := arcos.Stats(events, cols)
	report.Events = stats.Len()
	diagf("filtering: min_dur=%d total_event_size=%d kept %d events", p.MinDuration, p.TotalEventSize, report.Events)

	return func() {
		o.session.Events.Set(events)
		o.session.Stats.Set(stats)
	}, ""
}
