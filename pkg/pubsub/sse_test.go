package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case event, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return event
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func assertQuiet(t *testing.T, sub Subscription) {
	t.Helper()
	select {
	case event := <-sub.Events():
		t.Errorf("unexpected event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBuffer(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()
	pub.ConfigureTopic("test", TopicConfig{BufferSize: 3, ReplayAll: true})

	for i := 1; i <= 5; i++ {
		require.NoError(t, pub.Publish("test", "event", map[string]int{"num": i}))
	}

	sub, err := pub.Subscribe(context.Background(), "test")
	require.NoError(t, err)
	defer sub.Close()

	for want := 3; want <= 5; want++ {
		assert.Equal(t, want, receive(t, sub).Version)
	}
	assertQuiet(t, sub)
}

func TestReplayLastOnly(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()
	pub.ConfigureTopic("test", TopicConfig{BufferSize: 5})

	for i := 1; i <= 3; i++ {
		require.NoError(t, pub.Publish("test", "event", map[string]int{"num": i}))
	}

	sub, err := pub.Subscribe(context.Background(), "test")
	require.NoError(t, err)
	defer sub.Close()

	assert.Equal(t, 3, receive(t, sub).Version)
	assertQuiet(t, sub)
}

func TestNoBuffer(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	for i := 1; i <= 3; i++ {
		require.NoError(t, pub.Publish("test", "event", map[string]int{"num": i}))
	}

	sub, err := pub.Subscribe(context.Background(), "test")
	require.NoError(t, err)
	defer sub.Close()
	assertQuiet(t, sub)

	require.NoError(t, pub.Publish("test", "event", map[string]int{"num": 4}))
	assert.Equal(t, 4, receive(t, sub).Version)
}

func TestVisualizationTopics(t *testing.T) {
	pub := NewVisualizationPublisher()
	defer pub.Close()

	require.NoError(t, pub.Publish(TopicGraph, EventReplaced, GraphEvent{TotalNodes: 10, MaxDepth: 12}))
	require.NoError(t, pub.Publish(TopicSelection, EventSelected, SelectionEvent{ID: "0.1", Name: "qs", Type: "library"}))
	require.NoError(t, pub.Publish(TopicSelection, EventSelected, SelectionEvent{ID: "0.2", Name: "debug", Type: "library"}))

	sel, err := pub.Subscribe(context.Background(), TopicSelection)
	require.NoError(t, err)
	defer sel.Close()

	event := receive(t, sel)
	assert.Equal(t, EventSelected, event.Type)
	var got SelectionEvent
	require.NoError(t, json.Unmarshal(event.Data, &got))
	assert.Equal(t, "debug", got.Name)

	graph, err := pub.Subscribe(context.Background(), TopicGraph)
	require.NoError(t, err)
	defer graph.Close()
	assert.JSONEq(t, `{"totalNodes":10,"cycles":0,"maxDepth":12}`, string(receive(t, graph).Data))
}

func TestContextCancelUnsubscribes(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	_, err := pub.Subscribe(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, 1, pub.SubscriberCount("test"))

	cancel()
	assert.Eventually(t, func() bool { return pub.SubscriberCount("test") == 0 }, time.Second, 5*time.Millisecond)
}

func TestClose(t *testing.T) {
	pub := NewSSEPublisher()
	sub, err := pub.Subscribe(context.Background(), "test")
	require.NoError(t, err)

	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())

	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.ErrorIs(t, pub.Publish("test", "event", nil), ErrClosed)
	_, err = pub.Subscribe(context.Background(), "test")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSSE(&buf, Event{Topic: "graph", Type: EventCleared, Data: json.RawMessage(`{}`), Version: 2}))

	frame := buf.String()
	assert.True(t, strings.HasPrefix(frame, "data: {"), frame)
	assert.True(t, strings.HasSuffix(frame, "}\n\n"), frame)
	assert.Contains(t, frame, `"type":"cleared"`)
}
