package geometry

import "math"

// Palette is the 20-colour qualitative cycle used for event colours.
var Palette = []string{
	"#1f77b4", "#aec7e8", "#ff7f0e", "#ffbb78", "#2ca02c",
	"#98df8a", "#d62728", "#ff9896", "#9467bd", "#c5b0d5",
	"#8c564b", "#c49c94", "#e377c2", "#f7b6d2", "#7f7f7f",
	"#c7c7c7", "#bcbd22", "#dbdb8d", "#17becf", "#9edae5",
}

// ColorFor returns the palette colour of an event id, wrapping around the
// palette so ids P and P+len(Palette) share a colour.
func ColorFor(id float64) string {
	if math.IsNaN(id) {
		return Palette[0]
	}
	n := len(Palette)
	i := int(id) % n
	if i < 0 {
		i += n
	}
	return Palette[i]
}
