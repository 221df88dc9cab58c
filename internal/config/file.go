package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// maxParamsFileSize bounds parameter files read from disk.
const maxParamsFileSize = 1 * 1024 * 1024

// ParamsFile is the JSON form of Params. Fields left out of the file keep
// whatever value they are applied onto, so partial files are safe. Keys match
// the names used in the exported parameter table.
type ParamsFile struct {
	Interpolate      *bool    `json:"interpolate_meas,omitempty"`
	Clip             *bool    `json:"clip_meas,omitempty"`
	ClipLow          *float64 `json:"clip_low,omitempty"`
	ClipHigh         *float64 `json:"clip_high,omitempty"`
	SmoothK          *int     `json:"smooth_k,omitempty"`
	BiasK            *int     `json:"bias_k,omitempty"`
	BiasMethod       *string  `json:"bias_method,omitempty"`
	PolyDeg          *int     `json:"polyDeg,omitempty"`
	BinThreshold     *float64 `json:"bin_threshold,omitempty"`
	BinPeakThreshold *float64 `json:"bin_peak_threshold,omitempty"`

	EpsMethod         *string  `json:"eps_method,omitempty"`
	NeighbourhoodSize *float64 `json:"neighbourhood_size,omitempty"`
	EpsPrev           *float64 `json:"epsPrev,omitempty"`
	MinClusterSize    *int     `json:"min_clustersize,omitempty"`
	NPrev             *int     `json:"nprev,omitempty"`

	MinDuration    *int `json:"min_dur,omitempty"`
	TotalEventSize *int `json:"total_event_size,omitempty"`

	AddConvexHull  *bool `json:"add_convex_hull,omitempty"`
	AddAllCells    *bool `json:"add_all_cells,omitempty"`
	AddActiveCells *bool `json:"add_bin_cells,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// FileFromParams returns a fully populated ParamsFile.
func FileFromParams(p Params) *ParamsFile {
	return &ParamsFile{
		Interpolate:       ptrBool(p.Interpolate),
		Clip:              ptrBool(p.Clip),
		ClipLow:           ptrFloat64(p.ClipLow),
		ClipHigh:          ptrFloat64(p.ClipHigh),
		SmoothK:           ptrInt(p.SmoothK),
		BiasK:             ptrInt(p.BiasK),
		BiasMethod:        ptrString(string(p.BiasMethod)),
		PolyDeg:           ptrInt(p.PolyDeg),
		BinThreshold:      ptrFloat64(p.BinThreshold),
		BinPeakThreshold:  ptrFloat64(p.BinPeakThreshold),
		EpsMethod:         ptrString(string(p.EpsMethod)),
		NeighbourhoodSize: ptrFloat64(p.NeighbourhoodSize),
		EpsPrev:           ptrFloat64(p.EpsPrev),
		MinClusterSize:    ptrInt(p.MinClusterSize),
		NPrev:             ptrInt(p.NPrev),
		MinDuration:       ptrInt(p.MinDuration),
		TotalEventSize:    ptrInt(p.TotalEventSize),
		AddConvexHull:     ptrBool(p.AddConvexHull),
		AddAllCells:       ptrBool(p.AddAllCells),
		AddActiveCells:    ptrBool(p.AddActiveCells),
	}
}

// Apply overlays the fields present in f onto p.
func (f *ParamsFile) Apply(p Params) Params {
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setFloat := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setBool(&p.Interpolate, f.Interpolate)
	setBool(&p.Clip, f.Clip)
	setFloat(&p.ClipLow, f.ClipLow)
	setFloat(&p.ClipHigh, f.ClipHigh)
	setInt(&p.SmoothK, f.SmoothK)
	setInt(&p.BiasK, f.BiasK)
	if f.BiasMethod != nil {
		p.BiasMethod = BiasMethod(*f.BiasMethod)
	}
	setInt(&p.PolyDeg, f.PolyDeg)
	setFloat(&p.BinThreshold, f.BinThreshold)
	setFloat(&p.BinPeakThreshold, f.BinPeakThreshold)
	if f.EpsMethod != nil {
		p.EpsMethod = EpsMethod(*f.EpsMethod)
	}
	setFloat(&p.NeighbourhoodSize, f.NeighbourhoodSize)
	setFloat(&p.EpsPrev, f.EpsPrev)
	setInt(&p.MinClusterSize, f.MinClusterSize)
	setInt(&p.NPrev, f.NPrev)
	setInt(&p.MinDuration, f.MinDuration)
	setInt(&p.TotalEventSize, f.TotalEventSize)
	setBool(&p.AddConvexHull, f.AddConvexHull)
	setBool(&p.AddAllCells, f.AddAllCells)
	setBool(&p.AddActiveCells, f.AddActiveCells)
	return p
}

// LoadParamsFile reads a JSON parameter file and applies it onto
// DefaultParams. The path must have a .json extension and the file must be
// under 1MB.
func LoadParamsFile(path string) (Params, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Params{}, fmt.Errorf("params file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return Params{}, fmt.Errorf("failed to stat params file: %w", err)
	}
	if fileInfo.Size() > maxParamsFileSize {
		return Params{}, fmt.Errorf("params file too large: %d bytes (max %d)", fileInfo.Size(), maxParamsFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Params{}, fmt.Errorf("failed to read params file: %w", err)
	}

	var f ParamsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Params{}, fmt.Errorf("failed to parse params JSON: %w", err)
	}

	p := f.Apply(DefaultParams())
	if err := p.Validate(); err != nil {
		return Params{}, fmt.Errorf("invalid parameters: %w", err)
	}
	return p, nil
}

// SaveParamsFile writes p as indented JSON.
func SaveParamsFile(path string, p Params) error {
	if ext := filepath.Ext(path); ext != ".json" {
		return fmt.Errorf("params file must have .json extension, got %q", ext)
	}
	data, err := json.MarshalIndent(FileFromParams(p), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write params file: %w", err)
	}
	return nil
}
