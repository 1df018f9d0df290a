// Package pubsub pushes visualization state changes to browser clients.
package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published by the visualization controller.
const (
	TopicGraph     = "graph"
	TopicSelection = "selection"
)

// Event types.
const (
	EventReplaced = "replaced" // a new decomposition was installed
	EventCleared  = "cleared"  // no decomposition is loaded
	EventDepth    = "depth"    // the default depth bound changed
	EventSelected = "selected" // a click resolved to a component
)

// Event is one message on a topic.
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"` // per topic, strictly increasing
}

// Subscription is a client's view of one topic.
type Subscription interface {
	Topic() string
	Events() <-chan Event
	Close() error
}

// Publisher fans events out to subscribers.
type Publisher interface {
	// Subscribe registers a subscriber; cancelling ctx closes the subscription.
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Publish(topic string, eventType string, data any) error
	Close() error
}

// GraphEvent describes the decomposition currently being visualized.
type GraphEvent struct {
	TotalNodes int `json:"totalNodes"`
	Cycles     int `json:"cycles"`
	MaxDepth   int `json:"maxDepth"`
}

// SelectionEvent describes the component selected by a click.
type SelectionEvent struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	BOMRef string `json:"bomRef,omitempty"`
	Type   string `json:"type"`
}
