// Package arcos implements the collective event algorithms: measurement
// preparation, binarization, per-frame clustering, frame-to-frame linking,
// event filtering and event statistics.
//
// Every function takes tables and returns new tables; nothing is modified in
// place.
package arcos

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/collev/internal/config"
	"github.com/banshee-data/collev/internal/schema"
	"github.com/banshee-data/collev/internal/table"
)

// ErrNoMeasurement is returned when the measurement column has no values.
var ErrNoMeasurement = errors.New("measurement column has no values")

// InterpolateMeasurement fills missing measurement values per object by
// linear interpolation over frames.
func InterpolateMeasurement(t *table.Table, cols schema.Columns) (*table.Table, error) {
	meas := cols.Measurement()
	values := t.Floats(meas)
	if values == nil {
		return nil, &schema.ColumnError{Role: "measurement", Column: meas, Err: schema.ErrNonNumericColumn}
	}
	frames := t.Floats(cols.Frame)
	out := make([]float64, len(values))
	copy(out, values)
	for _, rows := range series(t, cols.ObjectID, cols.Frame) {
		filled := interpolateLinear(gather(frames, rows), gather(values, rows))
		scatter(out, rows, filled)
	}
	return t.WithFloats(meas, out), nil
}

// ClipMeasurement clamps the measurement column to its low and high
// quantiles, both given as fractions in [0, 1].
func ClipMeasurement(t *table.Table, cols schema.Columns, low, high float64) (*table.Table, error) {
	meas := cols.Measurement()
	values := t.Floats(meas)
	if values == nil {
		return nil, &schema.ColumnError{Role: "measurement", Column: meas, Err: schema.ErrNonNumericColumn}
	}
	sorted := finite(values)
	if len(sorted) == 0 {
		return nil, ErrNoMeasurement
	}
	sort.Float64s(sorted)
	lo := stat.Quantile(low, stat.LinInterp, sorted, nil)
	hi := stat.Quantile(high, stat.LinInterp, sorted, nil)

	out := make([]float64, len(values))
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			out[i] = v
		case v < lo:
			out[i] = lo
		case v > hi:
			out[i] = hi
		default:
			out[i] = v
		}
	}
	return t.WithFloats(meas, out), nil
}

// Binarizer turns the measurement into an active/inactive column and a
// rescaled [0, 1] column.
type Binarizer struct {
	SmoothK       int
	Threshold     float64
	PeakThreshold float64
	Detrender     Detrender
}

// NewBinarizer builds a Binarizer from the detection parameters.
func NewBinarizer(p config.Params) (*Binarizer, error) {
	d, err := NewDetrender(p)
	if err != nil {
		return nil, err
	}
	return &Binarizer{
		SmoothK:       p.SmoothK,
		Threshold:     p.BinThreshold,
		PeakThreshold: p.BinPeakThreshold,
		Detrender:     d,
	}, nil
}

// Binarize adds cols.RescaledColumn() and cols.BinColumn() to t.
//
// Each object's series is smoothed with a running median of SmoothK samples
// and de-trended. The result is min-max rescaled over the whole table. A row
// is active when its rescaled value exceeds Threshold. When a de-trend
// method is in use, objects whose rescaled peak stays below PeakThreshold
// are inactive throughout.
func (b *Binarizer) Binarize(t *table.Table, cols schema.Columns) (*table.Table, error) {
	meas := cols.Measurement()
	values := t.Floats(meas)
	if values == nil {
		return nil, &schema.ColumnError{Role: "measurement", Column: meas, Err: schema.ErrNonNumericColumn}
	}
	detrender := b.Detrender
	if detrender == nil {
		detrender = NoDetrend{}
	}
	frames := t.Floats(cols.Frame)
	if frames == nil {
		return nil, &schema.ColumnError{Role: "frame", Column: cols.Frame, Err: schema.ErrNonNumericColumn}
	}

	groups := series(t, cols.ObjectID, cols.Frame)
	detrended := make([]float64, len(values))
	for i := range detrended {
		detrended[i] = math.NaN()
	}
	for _, rows := range groups {
		smoothed := runningMedian(gather(values, rows), b.SmoothK)
		scatter(detrended, rows, detrender.Detrend(gather(frames, rows), smoothed))
	}

	known := finite(detrended)
	if len(known) == 0 {
		return nil, ErrNoMeasurement
	}
	lo, hi := floats.Min(known), floats.Max(known)
	resc := make([]float64, len(detrended))
	for i, v := range detrended {
		switch {
		case math.IsNaN(v):
			resc[i] = math.NaN()
		case hi == lo:
			resc[i] = 0
		default:
			resc[i] = (v - lo) / (hi - lo)
		}
	}

	bin := make([]float64, len(resc))
	for i, v := range resc {
		if v > b.Threshold {
			bin[i] = 1
		}
	}
	if _, none := detrender.(NoDetrend); !none {
		for _, rows := range groups {
			peak := math.Inf(-1)
			for _, r := range rows {
				if !math.IsNaN(resc[r]) {
					peak = math.Max(peak, resc[r])
				}
			}
			if peak < b.PeakThreshold {
				for _, r := range rows {
					bin[r] = 0
				}
			}
		}
	}

	out, err := t.With(table.NumericColumn(cols.RescaledColumn(), resc))
	if err != nil {
		return nil, fmt.Errorf("add rescaled column: %w", err)
	}
	return out.WithFloats(cols.BinColumn(), bin), nil
}

// ActiveCount returns the number of active rows of a binarized table.
func ActiveCount(t *table.Table, cols schema.Columns) int {
	n := 0
	for _, v := range t.Floats(cols.BinColumn()) {
		if v > 0 {
			n++
		}
	}
	return n
}
