package layers

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/collev/internal/geometry"
	"github.com/banshee-data/collev/internal/monitoring"
	"github.com/banshee-data/collev/internal/store"
	"github.com/banshee-data/collev/internal/table"
)

// ErrUnknownEvent is returned by ShowEvent for an id with no rows.
var ErrUnknownEvent = errors.New("unknown collective event")

// Maker turns the session's pipeline results into viewer layers.
type Maker struct {
	viewer  Viewer
	session *store.Session
}

// NewMaker returns a Maker drawing the results of session into viewer.
func NewMaker(viewer Viewer, session *store.Session) *Maker {
	return &Maker{viewer: viewer, session: session}
}

// RemoveOld removes every layer this package owns from the viewer. Layers
// with other names are left alone.
func (m *Maker) RemoveOld() error {
	owned := make(map[string]bool, len(Names))
	for _, n := range Names {
		owned[n] = true
	}
	var errs []error
	for _, name := range m.viewer.LayerNames() {
		if owned[name] {
			if err := m.viewer.RemoveLayer(name); err != nil {
				errs = append(errs, fmt.Errorf("remove layer %q: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// MakeLayers replaces the package's layers with the current results. The
// observation layers are drawn only when the binarized table has rows and
// the event layers only when events were detected. The parameter toggles
// decide which of them are added. Hull failures are logged and returned.
func (m *Maker) MakeLayers() ([]geometry.HullFailure, error) {
	if err := m.RemoveOld(); err != nil {
		return nil, err
	}
	p := m.session.Params.Get()
	cols := m.session.Columns.Get()
	st := StyleOf(m.session)
	filtered := m.session.FilteredData.Get()
	binarized := m.session.Binarized.Get()
	events := m.session.Events.Get()

	var pending []*Descriptor
	if !binarized.Empty() {
		if p.AddAllCells {
			d, err := PrepareAllPoints(filtered, cols, st)
			if err != nil {
				return nil, err
			}
			pending = append(pending, d)
		}
		if p.AddActiveCells {
			d, err := PrepareActivePoints(binarized, cols, st)
			if err != nil {
				return nil, err
			}
			pending = append(pending, d)
		}
	}

	var failures []geometry.HullFailure
	if !events.Empty() {
		if p.AddConvexHull {
			d, f, err := PrepareEventHulls(filtered, events, cols, st)
			if err != nil {
				return nil, err
			}
			failures = f
			for _, hf := range f {
				monitoring.Logf("layers: skipping hull: %v", hf)
			}
			pending = append(pending, d)
		}
		d, err := PrepareEventPoints(events, cols, st)
		if err != nil {
			return nil, err
		}
		pending = append(pending, d)
	}

	for _, d := range pending {
		if d == nil {
			continue
		}
		if err := m.viewer.AddLayer(d); err != nil {
			return failures, fmt.Errorf("add layer %q: %w", d.Name, err)
		}
	}
	return failures, nil
}

// ShowEvent draws the bounding box of event id, replacing any box already
// shown. When the displayed frame lies outside the event the viewer moves
// to the event's first frame. The first frame is returned.
func (m *Maker) ShowEvent(id float64) (float64, error) {
	if err := m.ClearEvent(); err != nil {
		return 0, err
	}
	events := m.session.Events.Get()
	cols := m.session.Columns.Get()
	start, end, ok := eventSpan(events, cols.EventID, cols.Frame, id)
	if !ok {
		return 0, fmt.Errorf("event %v: %w", id, ErrUnknownEvent)
	}
	first, last := m.viewer.FrameRange()
	d, err := PrepareEventBoundingBox(events, cols, id, StyleOf(m.session), first, last)
	if err != nil {
		return 0, err
	}
	if err := m.viewer.AddLayer(d); err != nil {
		return 0, fmt.Errorf("add layer %q: %w", d.Name, err)
	}
	if cur := m.viewer.CurrentStep(); cur < start || cur > end {
		m.viewer.SetCurrentStep(start)
	}
	return start, nil
}

// ClearEvent removes the event bounding box when it is shown.
func (m *Maker) ClearEvent() error {
	for _, name := range m.viewer.LayerNames() {
		if name == EventBoundingBox {
			return m.viewer.RemoveLayer(name)
		}
	}
	return nil
}

func eventSpan(events *table.Table, eventCol, frameCol string, id float64) (start, end float64, ok bool) {
	ids := events.Floats(eventCol)
	frames := events.Floats(frameCol)
	if ids == nil || frames == nil {
		return 0, 0, false
	}
	start, end = math.Inf(1), math.Inf(-1)
	for r, v := range ids {
		if v != id {
			continue
		}
		ok = true
		start = math.Min(start, frames[r])
		end = math.Max(end, frames[r])
	}
	return start, end, ok
}
