// Package config holds the detection parameters and their file and table
// representations.
package config

import (
	"fmt"
	"strconv"

	"github.com/banshee-data/collev/internal/monitoring"
	"github.com/banshee-data/collev/internal/table"
)

// BiasMethod selects the de-trend strategy applied before thresholding.
type BiasMethod string

const (
	BiasNone          BiasMethod = "none"
	BiasRunningMedian BiasMethod = "runmed"
	BiasLinearModel   BiasMethod = "lm"
)

// EpsMethod selects how the neighbourhood radius is obtained.
type EpsMethod string

const (
	EpsManual    EpsMethod = "manual"
	EpsKneepoint EpsMethod = "kneepoint"
	EpsMean      EpsMethod = "mean"
)

// Params are the detection parameters. The zero value is not useful; start
// from DefaultParams.
type Params struct {
	Interpolate bool
	Clip        bool
	ClipLow     float64
	ClipHigh    float64

	SmoothK          int
	BiasK            int
	BiasMethod       BiasMethod
	PolyDeg          int
	BinThreshold     float64
	BinPeakThreshold float64

	EpsMethod         EpsMethod
	NeighbourhoodSize float64
	// EpsPrev is the linking radius. Zero means NeighbourhoodSize is used.
	EpsPrev        float64
	MinClusterSize int
	NPrev          int

	MinDuration    int
	TotalEventSize int

	AddConvexHull  bool
	AddAllCells    bool
	AddActiveCells bool
}

// DefaultParams returns the parameters a new session starts with.
func DefaultParams() Params {
	return Params{
		ClipLow:           0.0,
		ClipHigh:          1.0,
		SmoothK:           1,
		BiasK:             5,
		BiasMethod:        BiasNone,
		PolyDeg:           1,
		BinThreshold:      0.5,
		BinPeakThreshold:  0.5,
		EpsMethod:         EpsManual,
		NeighbourhoodSize: 20,
		EpsPrev:           20,
		MinClusterSize:    5,
		NPrev:             1,
		MinDuration:       1,
		TotalEventSize:    5,
		AddConvexHull:     true,
		AddAllCells:       true,
		AddActiveCells:    true,
	}
}

// LinkingRadius returns EpsPrev, falling back to the neighbourhood radius.
func (p Params) LinkingRadius() float64 {
	if p.EpsPrev > 0 {
		return p.EpsPrev
	}
	return p.NeighbourhoodSize
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.ClipLow < 0 || p.ClipLow > 1 {
		return fmt.Errorf("clip_low must be between 0 and 1, got %f", p.ClipLow)
	}
	if p.ClipHigh < 0 || p.ClipHigh > 1 {
		return fmt.Errorf("clip_high must be between 0 and 1, got %f", p.ClipHigh)
	}
	if p.ClipLow > p.ClipHigh {
		return fmt.Errorf("clip_low (%f) must not exceed clip_high (%f)", p.ClipLow, p.ClipHigh)
	}
	if p.SmoothK < 1 {
		return fmt.Errorf("smooth_k must be at least 1, got %d", p.SmoothK)
	}
	if p.BiasK < 1 {
		return fmt.Errorf("bias_k must be at least 1, got %d", p.BiasK)
	}
	if p.PolyDeg < 1 {
		return fmt.Errorf("polyDeg must be at least 1, got %d", p.PolyDeg)
	}
	switch p.BiasMethod {
	case BiasNone, BiasRunningMedian, BiasLinearModel:
	default:
		return fmt.Errorf("unknown bias_method %q", p.BiasMethod)
	}
	switch p.EpsMethod {
	case EpsManual:
		if p.NeighbourhoodSize <= 0 {
			return fmt.Errorf("neighbourhood_size must be positive, got %f", p.NeighbourhoodSize)
		}
	case EpsKneepoint, EpsMean:
	default:
		return fmt.Errorf("unknown eps_method %q", p.EpsMethod)
	}
	if p.EpsPrev < 0 {
		return fmt.Errorf("epsPrev must not be negative, got %f", p.EpsPrev)
	}
	if p.MinClusterSize < 1 {
		return fmt.Errorf("min_clustersize must be at least 1, got %d", p.MinClusterSize)
	}
	if p.NPrev < 1 {
		return fmt.Errorf("nprev must be at least 1, got %d", p.NPrev)
	}
	if p.MinDuration < 1 {
		return fmt.Errorf("min_dur must be at least 1, got %d", p.MinDuration)
	}
	if p.TotalEventSize < 1 {
		return fmt.Errorf("total_event_size must be at least 1, got %d", p.TotalEventSize)
	}
	return nil
}

// Class groups parameters by the earliest pipeline stage they affect.
type Class int

const (
	ClassBinarization Class = iota
	ClassTracking
	ClassFiltering
	// ClassDisplay parameters only change which layers are drawn.
	ClassDisplay
)

type field struct {
	name  string
	class Class
	get   func(*Params) string
	set   func(*Params, string) error
}

func boolField(name string, class Class, ptr func(*Params) *bool) field {
	return field{
		name:  name,
		class: class,
		get:   func(p *Params) string { return strconv.FormatBool(*ptr(p)) },
		set: func(p *Params, s string) error {
			v, err := strconv.ParseBool(s)
			if err != nil {
				return err
			}
			*ptr(p) = v
			return nil
		},
	}
}

func floatField(name string, class Class, ptr func(*Params) *float64) field {
	return field{
		name:  name,
		class: class,
		get:   func(p *Params) string { return strconv.FormatFloat(*ptr(p), 'g', -1, 64) },
		set: func(p *Params, s string) error {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return err
			}
			*ptr(p) = v
			return nil
		},
	}
}

func intField(name string, class Class, ptr func(*Params) *int) field {
	return field{
		name:  name,
		class: class,
		get:   func(p *Params) string { return strconv.Itoa(*ptr(p)) },
		set: func(p *Params, s string) error {
			v, err := strconv.Atoi(s)
			if err != nil {
				// Older exports wrote whole numbers as floats.
				f, ferr := strconv.ParseFloat(s, 64)
				if ferr != nil || f != float64(int(f)) {
					return err
				}
				v = int(f)
			}
			*ptr(p) = v
			return nil
		},
	}
}

// fields lists the exported parameters in export order.
var fields = []field{
	boolField("interpolate_meas", ClassBinarization, func(p *Params) *bool { return &p.Interpolate }),
	boolField("clip_meas", ClassBinarization, func(p *Params) *bool { return &p.Clip }),
	floatField("clip_low", ClassBinarization, func(p *Params) *float64 { return &p.ClipLow }),
	floatField("clip_high", ClassBinarization, func(p *Params) *float64 { return &p.ClipHigh }),
	intField("smooth_k", ClassBinarization, func(p *Params) *int { return &p.SmoothK }),
	intField("bias_k", ClassBinarization, func(p *Params) *int { return &p.BiasK }),
	{
		name:  "bias_method",
		class: ClassBinarization,
		get:   func(p *Params) string { return string(p.BiasMethod) },
		set:   func(p *Params, s string) error { p.BiasMethod = BiasMethod(s); return nil },
	},
	intField("polyDeg", ClassBinarization, func(p *Params) *int { return &p.PolyDeg }),
	floatField("bin_threshold", ClassBinarization, func(p *Params) *float64 { return &p.BinThreshold }),
	floatField("bin_peak_threshold", ClassBinarization, func(p *Params) *float64 { return &p.BinPeakThreshold }),
	{
		name:  "eps_method",
		class: ClassTracking,
		get:   func(p *Params) string { return string(p.EpsMethod) },
		set:   func(p *Params, s string) error { p.EpsMethod = EpsMethod(s); return nil },
	},
	floatField("neighbourhood_size", ClassTracking, func(p *Params) *float64 { return &p.NeighbourhoodSize }),
	floatField("epsPrev", ClassTracking, func(p *Params) *float64 { return &p.EpsPrev }),
	intField("min_clustersize", ClassTracking, func(p *Params) *int { return &p.MinClusterSize }),
	intField("nprev", ClassTracking, func(p *Params) *int { return &p.NPrev }),
	intField("min_dur", ClassFiltering, func(p *Params) *int { return &p.MinDuration }),
	intField("total_event_size", ClassFiltering, func(p *Params) *int { return &p.TotalEventSize }),
	boolField("add_convex_hull", ClassDisplay, func(p *Params) *bool { return &p.AddConvexHull }),
	boolField("add_all_cells", ClassDisplay, func(p *Params) *bool { return &p.AddAllCells }),
	boolField("add_bin_cells", ClassDisplay, func(p *Params) *bool { return &p.AddActiveCells }),
}

func lookup(name string) (field, bool) {
	for _, f := range fields {
		if f.name == name {
			return f, true
		}
	}
	return field{}, false
}

// Names returns the exported parameter names in order.
func Names() []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.name
	}
	return names
}

// ClassOf returns the class of the named parameter.
func ClassOf(name string) (Class, bool) {
	f, ok := lookup(name)
	return f.class, ok
}

// Get returns the stringified value of the named parameter.
func (p Params) Get(name string) (string, bool) {
	f, ok := lookup(name)
	if !ok {
		return "", false
	}
	return f.get(&p), true
}

// Set parses and assigns the named parameter.
func (p *Params) Set(name, value string) error {
	f, ok := lookup(name)
	if !ok {
		return fmt.Errorf("unknown parameter %q", name)
	}
	if err := f.set(p, value); err != nil {
		return fmt.Errorf("parameter %s: invalid value %q: %w", name, value, err)
	}
	return nil
}

// Diff returns the names of parameters whose values differ, in export order.
func Diff(a, b Params) []string {
	var changed []string
	for _, f := range fields {
		if f.get(&a) != f.get(&b) {
			changed = append(changed, f.name)
		}
	}
	return changed
}

// Column names of the flat parameter table.
const (
	ParameterColumn = "parameter"
	ValueColumn     = "value"
)

// ToTable renders the parameters as a two-column name/value table.
func (p Params) ToTable() *table.Table {
	names := make([]string, len(fields))
	values := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.name
		values[i] = f.get(&p)
	}
	return table.MustNew(
		table.TextColumn(ParameterColumn, names),
		table.TextColumn(ValueColumn, values),
	)
}

// FromTable reads a name/value table on top of DefaultParams. Unknown
// parameter names are logged and skipped.
func FromTable(t *table.Table) (Params, error) {
	p := DefaultParams()
	if !t.Has(ParameterColumn) || !t.Has(ValueColumn) {
		return p, fmt.Errorf("parameter table needs %q and %q columns", ParameterColumn, ValueColumn)
	}
	for i := 0; i < t.Len(); i++ {
		name := t.Cell(ParameterColumn, i)
		if _, ok := lookup(name); !ok {
			monitoring.Logf("config: skipping unknown parameter %q", name)
			continue
		}
		if err := p.Set(name, t.Cell(ValueColumn, i)); err != nil {
			return p, err
		}
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid parameters: %w", err)
	}
	return p, nil
}
