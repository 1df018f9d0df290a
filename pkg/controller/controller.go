// Package controller owns the decomposition being visualized and turns chart
// interaction into component selection.
package controller

import (
	"sync"

	"github.com/ritzau/sbom-sunburst/pkg/logging"
	"github.com/ritzau/sbom-sunburst/pkg/model"
	"github.com/ritzau/sbom-sunburst/pkg/pubsub"
	"github.com/ritzau/sbom-sunburst/pkg/resolver"
	"github.com/ritzau/sbom-sunburst/pkg/severity"
	"github.com/ritzau/sbom-sunburst/pkg/sunburst"
)

// ClickEvent is what the chart reports for a clicked sector.
type ClickEvent struct {
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name"`
	Color severity.Color `json:"color"`
}

// Selection is the component picked by the last successful click.
type Selection struct {
	ID        string           `json:"id"`
	Component *model.Component `json:"component"`
}

type memo struct {
	root     *model.Component
	maxDepth int
	node     *sunburst.RenderNode
}

// Controller is safe for concurrent use. Render trees it hands out are shared
// between callers and must not be modified.
type Controller struct {
	mu            sync.Mutex
	decomposition *model.Decomposition
	maxDepth      int
	memo          memo
	selection     *Selection
	publisher     pubsub.Publisher
}

// New creates a controller in the no-data state. publisher may be nil.
func New(maxDepth int, publisher pubsub.Publisher) *Controller {
	return &Controller{
		maxDepth:  max(maxDepth, 0),
		publisher: publisher,
	}
}

// SetDecomposition replaces the visualized tree. The previous selection is
// dropped because it points into the old tree. A nil decomposition or one
// without a graph puts the controller in the no-data state.
func (c *Controller) SetDecomposition(d *model.Decomposition) {
	if err := d.Validate(); err != nil {
		logging.Warn("decomposition violates tree invariants", "error", err)
	}

	c.mu.Lock()
	c.decomposition = d
	c.memo = memo{}
	c.selection = nil
	event := c.graphEventLocked()
	c.mu.Unlock()

	if d.HasGraph() {
		logging.Info("decomposition loaded", "nodes", event.TotalNodes, "cycles", event.Cycles)
		c.publish(pubsub.TopicGraph, pubsub.EventReplaced, event)
	} else {
		logging.Info("no decomposition data")
		c.publish(pubsub.TopicGraph, pubsub.EventCleared, event)
	}
}

// SetMaxDepth changes the default depth bound.
func (c *Controller) SetMaxDepth(maxDepth int) {
	c.mu.Lock()
	c.maxDepth = max(maxDepth, 0)
	event := c.graphEventLocked()
	c.mu.Unlock()

	c.publish(pubsub.TopicGraph, pubsub.EventDepth, event)
}

// MaxDepth returns the default depth bound.
func (c *Controller) MaxDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxDepth
}

// Render returns the render tree of the current decomposition bounded at
// maxDepth, or false when there is nothing to show. The last tree is reused
// while neither the decomposition nor the bound changes.
func (c *Controller) Render(maxDepth int) (*sunburst.RenderNode, bool) {
	maxDepth = max(maxDepth, 0)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.decomposition.HasGraph() {
		return nil, false
	}

	root := c.decomposition.Graph
	if c.memo.node != nil && c.memo.root == root && c.memo.maxDepth == maxDepth {
		logging.Trace("render tree reused", "maxDepth", maxDepth)
		return c.memo.node, true
	}

	node := sunburst.Convert(root, maxDepth)
	c.memo = memo{root: root, maxDepth: maxDepth, node: node}
	return node, true
}

// Click resolves a clicked sector and selects its component. The sector id is
// tried first; when it is missing or points at a differently named component,
// the name and color are used. A click that resolves to nothing leaves the
// selection untouched.
func (c *Controller) Click(ev ClickEvent) (*model.Component, bool) {
	c.mu.Lock()
	if !c.decomposition.HasGraph() {
		c.mu.Unlock()
		return nil, false
	}

	root := c.decomposition.Graph
	var (
		id   = ev.ID
		comp *model.Component
		ok   bool
	)
	if id != "" {
		comp, ok = resolver.ResolveID(id, root)
		if ok && ev.Name != "" && comp.Name != ev.Name {
			ok = false
		}
	}
	if !ok {
		comp, ok = resolver.Resolve(ev.Name, ev.Color, root)
		id = pathOf(root, comp)
	}
	if !ok {
		c.mu.Unlock()
		logging.Debug("click did not resolve", "id", ev.ID, "name", ev.Name, "color", ev.Color)
		return nil, false
	}

	c.selection = &Selection{ID: id, Component: comp}
	c.mu.Unlock()

	logging.Debug("component selected", "id", id, "name", comp.Name, "bomRef", comp.BOMRef)
	c.publish(pubsub.TopicSelection, pubsub.EventSelected, pubsub.SelectionEvent{
		ID:     id,
		Name:   comp.Name,
		BOMRef: comp.BOMRef,
		Type:   string(comp.Type),
	})
	return comp, true
}

// Selected returns the current selection.
func (c *Controller) Selected() (Selection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selection == nil {
		return Selection{}, false
	}
	return *c.selection, true
}

// Cycles returns the dependency cycles reported with the decomposition.
func (c *Controller) Cycles() []model.DependencyCycle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.decomposition == nil {
		return nil
	}
	return c.decomposition.DependencyCycles
}

// Decomposition returns the current decomposition, nil in the no-data state.
func (c *Controller) Decomposition() *model.Decomposition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decomposition
}

func (c *Controller) graphEventLocked() pubsub.GraphEvent {
	event := pubsub.GraphEvent{MaxDepth: c.maxDepth}
	if c.decomposition != nil {
		event.TotalNodes = c.decomposition.NodeCount()
		event.Cycles = len(c.decomposition.DependencyCycles)
	}
	return event
}

func (c *Controller) publish(topic, eventType string, data any) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(topic, eventType, data); err != nil {
		logging.Warn("publish failed", "topic", topic, "type", eventType, "error", err)
	}
}

// pathOf returns the path id of target within root, or "" when it is absent.
func pathOf(root, target *model.Component) string {
	if target == nil {
		return ""
	}

	var id string
	root.Walk(func(c *model.Component, path []int) bool {
		if c == target {
			id = model.PathID(path)
			return false
		}
		return true
	})
	return id
}
