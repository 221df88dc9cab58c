// Package layers turns session tables into viewer layer descriptors and
// keeps a viewer's collective event layers in sync with the session.
package layers

import (
	"github.com/banshee-data/collev/internal/geometry"
	"github.com/banshee-data/collev/internal/store"
)

// Layer names. A viewer holds at most one layer of each.
const (
	AllCells         = "All Cells"
	ActiveCells      = "Active Cells"
	EventCells       = "Collective Events Cells"
	EventHulls       = "Collective Events"
	EventBoundingBox = "Event Bounding Box"
)

// Names lists every layer name managed by Maker.
var Names = []string{AllCells, ActiveCells, EventCells, EventHulls, EventBoundingBox}

// Kind is the viewer layer type of a descriptor.
type Kind int

const (
	KindPoints Kind = iota
	KindShapes
	KindSurface
)

func (k Kind) String() string {
	switch k {
	case KindPoints:
		return "points"
	case KindShapes:
		return "shapes"
	case KindSurface:
		return "surface"
	}
	return "unknown"
}

// Descriptor is everything a viewer needs to create one layer.
type Descriptor struct {
	Name string
	Kind Kind

	// Points holds point rows (KindPoints) or surface vertices
	// (KindSurface), in the requested axis order.
	Points [][]float64
	// Shown flags the visible points; padding points are hidden.
	Shown []bool
	// Properties are per-point values, such as "act" and "id".
	Properties map[string][]float64

	// Polygons are the shapes of a KindShapes layer.
	Polygons [][][]float64
	// Faces and ColorIDs complete a KindSurface layer.
	Faces    []geometry.Face
	ColorIDs []int

	// FaceColors has one colour per point or polygon. When empty,
	// FaceColor applies to all of them.
	FaceColors []string
	FaceColor  string
	// ColorBy names the property mapped through Colormap.
	ColorBy        string
	Colormap       string
	ContrastLimits [2]float64

	Size      float64
	Opacity   float64
	EdgeColor string
	EdgeWidth float64
	Symbol    string
	Label     string
}

// Style carries the session's display settings into the prepare functions.
type Style struct {
	PointSize      float64
	LUT            string
	ContrastLimits [2]float64
	// AxisOrder is passed to geometry.ReorderAxes.
	AxisOrder string
	// PadTime inserts a hidden point at frame 0 when a points layer starts
	// later, so every layer shares the viewer's time axis.
	PadTime bool
}

// StyleOf reads the display settings of a session.
func StyleOf(s *store.Session) Style {
	return Style{
		PointSize:      s.PointSize.Get(),
		LUT:            s.LUT.Get(),
		ContrastLimits: s.MinMaxMeasurement.Get(),
		AxisOrder:      s.OutputOrder.Get(),
		PadTime:        true,
	}
}

// Viewer is the display the layers are added to.
type Viewer interface {
	AddLayer(d *Descriptor) error
	RemoveLayer(name string) error
	LayerNames() []string
	// CurrentStep is the frame currently displayed.
	CurrentStep() float64
	SetCurrentStep(frame float64)
	// FrameRange is the first and last frame of the time axis.
	FrameRange() (first, last float64)
}
