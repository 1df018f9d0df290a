// Package resolver maps a clicked chart sector back to the component it was drawn from.
package resolver

import (
	"slices"

	"github.com/ritzau/sbom-sunburst/pkg/logging"
	"github.com/ritzau/sbom-sunburst/pkg/model"
	"github.com/ritzau/sbom-sunburst/pkg/severity"
)

// Resolve finds the first component in pre-order whose name equals name and
// whose type can be drawn with color. Names are not unique, so two components
// sharing name and type cannot be told apart; prefer ResolveID when the
// sector carries its path id.
func Resolve(name string, color severity.Color, root *model.Component) (*model.Component, bool) {
	types := severity.TypesFor(color)
	if len(types) == 0 {
		logging.Debug("click color has no component types", "color", color)
		return nil, false
	}

	var found *model.Component
	root.Walk(func(c *model.Component, _ []int) bool {
		if c.Name == name && slices.Contains(types, c.Type) {
			found = c
			return false
		}
		return true
	})
	return found, found != nil
}

// ResolveID returns the component at the given path id.
func ResolveID(id string, root *model.Component) (*model.Component, bool) {
	if root == nil {
		return nil, false
	}

	path, err := model.ParsePathID(id)
	if err != nil {
		logging.Debug("ignoring malformed node id", "id", id, "error", err)
		return nil, false
	}
	return root.At(path)
}

// ResolveBOMRef returns the first component in pre-order carrying ref.
func ResolveBOMRef(ref string, root *model.Component) (*model.Component, bool) {
	var found *model.Component
	root.Walk(func(c *model.Component, _ []int) bool {
		if c.BOMRef == ref {
			found = c
			return false
		}
		return true
	})
	return found, found != nil
}
