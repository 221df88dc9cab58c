package store

import (
	"github.com/google/uuid"

	"github.com/banshee-data/collev/internal/config"
	"github.com/banshee-data/collev/internal/schema"
	"github.com/banshee-data/collev/internal/table"
)

// Session defaults.
const (
	DefaultFileName    = "."
	DefaultPointSize   = 10.0
	DefaultLUT         = "inferno"
	DefaultOutputOrder = "txyz"
	// NoSelection is the SelectedObjectID value when no object is selected.
	NoSelection int64 = -1
)

// DefaultMinMaxMeasurement is the contrast range used before data is loaded.
var DefaultMinMaxMeasurement = [2]float64{0, 0.5}

// Session is the state of one analysis session. One Session is created per
// session and handed to every component that reads or writes it.
type Session struct {
	ID string

	FileName     *Value[string]
	OriginalData *Value[*table.Table]
	FilteredData *Value[*table.Table]
	Binarized    *Value[*table.Table]
	RawEvents    *Value[*table.Table]
	Events       *Value[*table.Table]
	Stats        *Value[*table.Table]

	Columns *Value[schema.Columns]
	Params  *Value[config.Params]

	MinMaxMeasurement *Value[[2]float64]
	PointSize         *Value[float64]
	SelectedObjectID  *Value[int64]
	LUT               *Value[string]
	OutputOrder       *Value[string]
}

// NewSession returns a session with default values and a fresh ID.
func NewSession() *Session {
	return &Session{
		ID:                uuid.New().String(),
		FileName:          NewValue(DefaultFileName),
		OriginalData:      NewValue[*table.Table](nil),
		FilteredData:      NewValue[*table.Table](nil),
		Binarized:         NewValue[*table.Table](nil),
		RawEvents:         NewValue[*table.Table](nil),
		Events:            NewValue[*table.Table](nil),
		Stats:             NewValue[*table.Table](nil),
		Columns:           NewValue(schema.Default()),
		Params:            NewValue(config.DefaultParams()),
		MinMaxMeasurement: NewValue(DefaultMinMaxMeasurement),
		PointSize:         NewValue(DefaultPointSize),
		SelectedObjectID:  NewValue(NoSelection),
		LUT:               NewValue(DefaultLUT),
		OutputOrder:       NewValue(DefaultOutputOrder),
	}
}

type quieter interface{ SetQuiet(bool) }

func (s *Session) values() []quieter {
	return []quieter{
		s.FileName, s.OriginalData, s.FilteredData, s.Binarized, s.RawEvents,
		s.Events, s.Stats, s.Columns, s.Params, s.MinMaxMeasurement,
		s.PointSize, s.SelectedObjectID, s.LUT, s.OutputOrder,
	}
}

// SetQuiet suppresses or restores notifications on every value.
func (s *Session) SetQuiet(quiet bool) {
	for _, v := range s.values() {
		v.SetQuiet(quiet)
	}
}

// ResetAll restores every value to its default. Listeners are only notified
// when notify is true.
func (s *Session) ResetAll(notify bool) {
	s.SetQuiet(!notify)
	defer s.SetQuiet(false)

	s.FileName.Set(DefaultFileName)
	s.OriginalData.Set(nil)
	s.FilteredData.Set(nil)
	s.Binarized.Set(nil)
	s.RawEvents.Set(nil)
	s.Events.Set(nil)
	s.Stats.Set(nil)
	s.Columns.Set(schema.Default())
	s.Params.Set(config.DefaultParams())
	s.MinMaxMeasurement.Set(DefaultMinMaxMeasurement)
	s.PointSize.Set(DefaultPointSize)
	s.SelectedObjectID.Set(NoSelection)
	s.LUT.Set(DefaultLUT)
	s.OutputOrder.Set(DefaultOutputOrder)
}

// ResetRelevant clears the filtered data, every pipeline result and the
// selection, keeping the loaded file and the user's settings.
func (s *Session) ResetRelevant(notify bool) {
	s.SetQuiet(!notify)
	defer s.SetQuiet(false)

	s.FilteredData.Set(nil)
	s.Binarized.Set(nil)
	s.RawEvents.Set(nil)
	s.Events.Set(nil)
	s.Stats.Set(nil)
	s.SelectedObjectID.Set(NoSelection)
}

// ResetResults clears the pipeline outputs and notifies listeners.
func (s *Session) ResetResults() {
	s.Binarized.Set(nil)
	s.RawEvents.Set(nil)
	s.Events.Set(nil)
	s.Stats.Set(nil)
}
