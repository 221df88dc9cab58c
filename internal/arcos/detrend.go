package arcos

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/collev/internal/config"
)

// Detrender removes slow baseline drift from one object's measurement
// series. frames and values are ordered by frame and have equal length; the
// result has the same length. Missing values stay missing.
type Detrender interface {
	Detrend(frames, values []float64) []float64
	// Name matches the bias_method parameter value.
	Name() string
}

// NoDetrend leaves the series unchanged.
type NoDetrend struct{}

func (NoDetrend) Name() string { return string(config.BiasNone) }

// Detrend returns a copy of values.
func (NoDetrend) Detrend(_, values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	return out
}

// RunningMedianDetrend subtracts a running median baseline of K samples.
// Values below the baseline are clamped to zero.
type RunningMedianDetrend struct {
	K int
}

func (RunningMedianDetrend) Name() string { return string(config.BiasRunningMedian) }

// Detrend subtracts the running median.
func (d RunningMedianDetrend) Detrend(_, values []float64) []float64 {
	baseline := runningMedian(values, d.K)
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Max(v-baseline[i], 0)
		if math.IsNaN(v) || math.IsNaN(baseline[i]) {
			out[i] = math.NaN()
		}
	}
	return out
}

// LinearModelDetrend subtracts a least squares polynomial of Degree in the
// frame number. Values below the fit are clamped to zero.
type LinearModelDetrend struct {
	Degree int
}

func (LinearModelDetrend) Name() string { return string(config.BiasLinearModel) }

// Detrend subtracts the fitted polynomial.
func (d LinearModelDetrend) Detrend(frames, values []float64) []float64 {
	var xs, ys []float64
	for i, v := range values {
		if !math.IsNaN(v) && !math.IsNaN(frames[i]) {
			xs = append(xs, frames[i])
			ys = append(ys, v)
		}
	}
	coef := polyfit(xs, ys, d.Degree)

	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Max(v-polyval(coef, frames[i]), 0)
	}
	return out
}

// polyfit returns coefficients c0..cd of the least squares polynomial. When
// there are too few points for the requested degree it falls back to the
// mean, and to zero for an empty series.
func polyfit(x, y []float64, degree int) []float64 {
	if len(x) == 0 {
		return []float64{0}
	}
	if degree < 1 || len(x) <= degree || stat.Variance(x, nil) == 0 {
		return []float64{stat.Mean(y, nil)}
	}
	if degree == 1 {
		alpha, beta := stat.LinearRegression(x, y, nil, false)
		return []float64{alpha, beta}
	}

	a := mat.NewDense(len(x), degree+1, nil)
	for i, xi := range x {
		p := 1.0
		for j := 0; j <= degree; j++ {
			a.Set(i, j, p)
			p *= xi
		}
	}
	var c mat.VecDense
	if err := c.SolveVec(a, mat.NewVecDense(len(y), append([]float64(nil), y...))); err != nil {
		return []float64{stat.Mean(y, nil)}
	}
	coef := make([]float64, degree+1)
	for j := range coef {
		coef[j] = c.AtVec(j)
	}
	return coef
}

func polyval(coef []float64, x float64) float64 {
	var v float64
	for j := len(coef) - 1; j >= 0; j-- {
		v = v*x + coef[j]
	}
	return v
}

// NewDetrender returns the de-trend strategy selected by p.
func NewDetrender(p config.Params) (Detrender, error) {
	switch p.BiasMethod {
	case config.BiasNone, "":
		return NoDetrend{}, nil
	case config.BiasRunningMedian:
		return RunningMedianDetrend{K: p.BiasK}, nil
	case config.BiasLinearModel:
		return LinearModelDetrend{Degree: p.PolyDeg}, nil
	}
	return nil, fmt.Errorf("unknown bias method %q", p.BiasMethod)
}
