// Package severity maps components to the colors used on the sunburst chart.
package severity

import (
	"slices"

	"github.com/ritzau/sbom-sunburst/pkg/model"
)

// Color is a chart color token: a CSS hex color, optionally with alpha.
type Color string

const (
	ColorNeutral    Color = "#d9d9d9" // structural nodes (application, file)
	ColorCritical   Color = "#701617F2"
	ColorHigh       Color = "#F44949B5"
	ColorMedium     Color = "#ED9757FF"
	ColorLow        Color = "#98D89BFF"
	ColorInfo       Color = "#5799E4FF"
	ColorTransitive Color = "#D8BC81FF"
	ColorUnrated    Color = "#b8b0b0"
)

// Band is a CVSS-like severity band.
type Band string

const (
	BandInfo     Band = "info"
	BandLow      Band = "low"
	BandMedium   Band = "medium"
	BandHigh     Band = "high"
	BandCritical Band = "critical"
)

// Bands lists all bands from the most to the least severe.
var Bands = []Band{BandCritical, BandHigh, BandMedium, BandLow, BandInfo}

// Band boundaries. Which side of each boundary is inclusive matters:
// 9.5 and 7.5 belong to the upper band, 5 and 2.5 to the lower one.
const (
	criticalFrom = 9.5
	highFrom     = 7.5
	mediumAbove  = 5.0
	lowAbove     = 2.5
)

// BandFor classifies a 0-10 rating.
func BandFor(rating float64) Band {
	switch {
	case rating >= criticalFrom:
		return BandCritical
	case rating >= highFrom:
		return BandHigh
	case rating > mediumAbove:
		return BandMedium
	case rating > lowAbove:
		return BandLow
	default:
		return BandInfo
	}
}

// Color returns the chart color of the band.
func (b Band) Color() Color {
	switch b {
	case BandCritical:
		return ColorCritical
	case BandHigh:
		return ColorHigh
	case BandMedium:
		return ColorMedium
	case BandLow:
		return ColorLow
	default:
		return ColorInfo
	}
}

// ColorFor returns the color of a component.
//
// Only libraries are colored by severity, using the rating of their first
// direct vulnerability. A library without direct findings but with vulnerable
// descendants gets the transitive color. Applications and files are neutral,
// everything else is unrated.
func ColorFor(c *model.Component) Color {
	if c == nil {
		return ColorUnrated
	}

	switch {
	case c.IsStructural():
		return ColorNeutral
	case c.Type != model.TypeLibrary:
		return ColorUnrated
	case len(c.Vulnerabilities) > 0:
		return BandFor(c.Vulnerabilities[0].Rating()).Color()
	case c.HasTransitiveVulns:
		return ColorTransitive
	default:
		return ColorUnrated
	}
}

var (
	structuralTypes = slices.DeleteFunc(slices.Clone(model.ComponentTypes), func(t model.ComponentType) bool {
		return !isStructural(t)
	})
	libraryTypes = []model.ComponentType{model.TypeLibrary}
	unratedTypes = slices.DeleteFunc(slices.Clone(model.ComponentTypes), isStructural)
)

func isStructural(t model.ComponentType) bool {
	return (&model.Component{Type: t}).IsStructural()
}

// TypesFor is the reverse of ColorFor on the type axis: it returns every
// component type that can be drawn with the given color. Unknown colors
// yield nil.
func TypesFor(color Color) []model.ComponentType {
	switch color {
	case ColorNeutral:
		return structuralTypes
	case ColorCritical, ColorHigh, ColorMedium, ColorLow, ColorInfo, ColorTransitive:
		return libraryTypes
	case ColorUnrated:
		return unratedTypes
	default:
		return nil
	}
}

// LegendEntry is one swatch of the chart legend.
type LegendEntry struct {
	Title string `json:"title"`
	Color Color  `json:"color"`
}

// Legend returns the legend shown next to the chart.
func Legend() []LegendEntry {
	return []LegendEntry{
		{Title: "Critical", Color: ColorCritical},
		{Title: "High", Color: ColorHigh},
		{Title: "Medium", Color: ColorMedium},
		{Title: "Low", Color: ColorLow},
		{Title: "Info", Color: ColorInfo},
		{Title: "Transitive", Color: ColorTransitive},
	}
}
