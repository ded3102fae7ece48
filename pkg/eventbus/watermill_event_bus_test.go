package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zipwire/zipwire/pkg/channels/gochannel"
	"github.com/zipwire/zipwire/pkg/eventbus"
	"github.com/zipwire/zipwire/pkg/events"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newTestBus(t)

	received := make(chan any, 1)

	err := bus.Handle(events.NodeCompletedEvent, func(_ context.Context, event interface{}) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	event := events.NodeCompleted{
		BaseEvent:  events.NewBaseEvent(events.NodeCompletedEvent, "wf-1"),
		NodeID:     "n1",
		DurationMs: 42,
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", event))

	select {
	case got := <-received:
		completed, ok := got.(*events.NodeCompleted)
		require.True(t, ok)
		assert.Equal(t, "n1", completed.NodeID)
		assert.Equal(t, int64(42), completed.DurationMs)
		assert.Equal(t, "wf-1", completed.GetWorkflowID())
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestWatermillEventBus_MultipleHandlersPerType(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newTestBus(t)

	first := make(chan any, 1)
	second := make(chan any, 1)

	require.NoError(t, bus.Handle(events.NodeCompletedEvent, func(_ context.Context, event interface{}) error {
		first <- event

		return nil
	}))
	require.NoError(t, bus.Handle(events.NodeCompletedEvent, func(_ context.Context, event interface{}) error {
		second <- event

		return nil
	}))

	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "wf-1", events.NodeCompleted{
		BaseEvent: events.NewBaseEvent(events.NodeCompletedEvent, "wf-1"),
		NodeID:    "n1",
	}))

	for name, ch := range map[string]chan any{"first": first, "second": second} {
		select {
		case got := <-ch:
			completed, ok := got.(*events.NodeCompleted)
			require.True(t, ok)
			assert.Equal(t, "n1", completed.NodeID)
		case <-time.After(2 * time.Second):
			t.Fatalf("%s handler was not invoked", name)
		}
	}
}

func TestWatermillEventBus_UnhandledTypeIsAcked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newTestBus(t)

	received := make(chan any, 1)

	err := bus.Handle(events.ExecutionStartedEvent, func(_ context.Context, event interface{}) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for node.failed; the bus must not deliver it.
	require.NoError(t, bus.Publish(ctx, "wf-1", events.NodeFailed{
		BaseEvent: events.NewBaseEvent(events.NodeFailedEvent, "wf-1"),
		NodeID:    "n1",
		Error:     "boom",
	}))

	require.NoError(t, bus.Publish(ctx, "wf-1", events.ExecutionStarted{
		BaseEvent: events.NewBaseEvent(events.ExecutionStartedEvent, "wf-1"),
		SessionID: "s1",
	}))

	select {
	case got := <-received:
		started, ok := got.(*events.ExecutionStarted)
		require.True(t, ok)
		assert.Equal(t, "s1", started.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
