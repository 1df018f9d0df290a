// Package sunburst converts a resolved component tree into the depth-bounded,
// decorated hierarchy handed to the chart renderer.
package sunburst

import (
	"html/template"

	"github.com/ritzau/sbom-sunburst/pkg/label"
	"github.com/ritzau/sbom-sunburst/pkg/logging"
	"github.com/ritzau/sbom-sunburst/pkg/model"
	"github.com/ritzau/sbom-sunburst/pkg/severity"
	"github.com/ritzau/sbom-sunburst/pkg/tooltip"
)

// DefaultMaxDepth is the depth bound used when none is configured.
const DefaultMaxDepth = 12

// RenderNode is one sector of the chart. It is built fresh by Convert and
// never mutated afterwards.
type RenderNode struct {
	// ID is the path id of the originating component (see model.PathID).
	ID string `json:"id"`
	// Name is the full component name; Label is what fits on the sector.
	Name  string `json:"name"`
	Label string `json:"label"`
	// Value is the sector weight: the number of logical descendants, at least 1.
	Value    int                 `json:"value"`
	Color    severity.Color      `json:"color"`
	Type     model.ComponentType `json:"type"`
	Tooltip  template.HTML       `json:"tooltip"`
	Children []*RenderNode       `json:"children,omitempty"`
}

type converter struct {
	maxDepth  int
	nodes     int
	truncated int
}

// Convert builds the render tree of root. Nodes deeper than maxDepth are not
// materialized, so a node at maxDepth is always a leaf even when its component
// has descendants; its Value still counts them. A nil root yields nil and a
// negative bound is treated as 0.
func Convert(root *model.Component, maxDepth int) *RenderNode {
	if root == nil {
		return nil
	}

	c := &converter{maxDepth: max(maxDepth, 0)}
	node, size := c.convert(root, nil)

	logging.Debug("converted component tree",
		"components", size,
		"renderNodes", c.nodes,
		"truncatedSubtrees", c.truncated,
		"maxDepth", c.maxDepth,
	)
	return node
}

// convert returns the render node of comp and the size of comp's logical
// subtree, comp included.
func (c *converter) convert(comp *model.Component, path []int) (*RenderNode, int) {
	depth := len(path)
	c.nodes++

	node := &RenderNode{
		ID:      model.PathID(path),
		Name:    comp.Name,
		Label:   label.Format(comp.Name, depth),
		Color:   severity.ColorFor(comp),
		Type:    comp.Type,
		Tooltip: tooltip.Generate(comp),
	}

	descendants := 0
	if depth < c.maxDepth {
		for i, child := range comp.Children {
			if child == nil {
				continue
			}
			childNode, size := c.convert(child, append(path[:depth:depth], i))
			node.Children = append(node.Children, childNode)
			descendants += size
		}
	} else {
		descendants = comp.CountDescendants()
		if descendants > 0 {
			c.truncated++
			logging.Trace("depth bound reached", "id", node.ID, "name", comp.Name, "hiddenDescendants", descendants)
		}
	}

	node.Value = max(descendants, 1)
	return node, descendants + 1
}

// Walk visits the render tree in pre-order with each node's depth.
func (n *RenderNode) Walk(fn func(node *RenderNode, depth int)) {
	if n == nil {
		return
	}
	n.walk(0, fn)
}

func (n *RenderNode) walk(depth int, fn func(*RenderNode, int)) {
	fn(n, depth)
	for _, child := range n.Children {
		child.walk(depth+1, fn)
	}
}

// Depth returns the depth of the deepest node, the root being at 0.
func (n *RenderNode) Depth() int {
	deepest := 0
	n.Walk(func(_ *RenderNode, depth int) {
		deepest = max(deepest, depth)
	})
	return deepest
}

// Count returns the number of nodes in the render tree.
func (n *RenderNode) Count() int {
	count := 0
	n.Walk(func(*RenderNode, int) { count++ })
	return count
}
