package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type contextApply struct {
	AgentID  string
	ThreadID string
}

func receive[T any](t *testing.T, ch <-chan Event[T]) Event[T] {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "channel closed before event arrived")
		return event
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "timeout waiting for event")
	}
	return Event[T]{}
}

func TestBroker_Subscribe(t *testing.T) {
	broker := NewBroker[contextApply]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := broker.Subscribe(ctx)
	broker.Publish(AppliedEvent, contextApply{AgentID: "a1", ThreadID: "t1"})

	event := receive(t, ch)
	require.Equal(t, AppliedEvent, event.Type)
	require.Equal(t, "a1", event.Payload.AgentID)
	require.False(t, event.Timestamp.IsZero())
}

func TestBroker_MultipleSubscribers(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	ctx := context.Background()
	chans := []<-chan Event[int]{broker.Subscribe(ctx), broker.Subscribe(ctx), broker.Subscribe(ctx)}
	require.Equal(t, 3, broker.SubscriberCount())

	broker.Publish(CreatedEvent, 42)

	for i, ch := range chans {
		event := receive(t, ch)
		require.Equal(t, 42, event.Payload, "subscriber %d", i)
	}
}

func TestBroker_SubscribeFunc_Filters(t *testing.T) {
	broker := NewBroker[contextApply]()
	defer broker.Close()

	ctx := context.Background()
	onlyT2 := broker.SubscribeFunc(ctx, func(c contextApply) bool { return c.ThreadID == "t2" })

	broker.Publish(AppliedEvent, contextApply{AgentID: "a1", ThreadID: "t1"})
	broker.Publish(AppliedEvent, contextApply{AgentID: "a2", ThreadID: "t2"})

	event := receive(t, onlyT2)
	require.Equal(t, "a2", event.Payload.AgentID)

	select {
	case extra := <-onlyT2:
		require.Failf(t, "unexpected event", "%+v", extra)
	default:
	}
	require.Zero(t, broker.Dropped(), "filtered events are not drops")
}

func TestBroker_ContextCancellation(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)
	require.Equal(t, 1, broker.SubscriberCount())

	cancel()
	require.Eventually(t, func() bool { return broker.SubscriberCount() == 0 },
		time.Second, 5*time.Millisecond)

	_, ok := <-ch
	require.False(t, ok, "channel should be closed")
}

func TestBroker_NonBlockingCountsDrops(t *testing.T) {
	broker := NewBrokerWithBuffer[int](1)
	defer broker.Close()

	ch := broker.Subscribe(context.Background())

	broker.Publish(UpdatedEvent, 1)

	done := make(chan struct{})
	go func() {
		broker.Publish(UpdatedEvent, 2)
		broker.Publish(UpdatedEvent, 3)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "Publish blocked")
	}

	require.Equal(t, 1, (<-ch).Payload)
	require.Equal(t, int64(2), broker.Dropped())
}

func TestNewBrokerWithBuffer_NonPositiveUsesDefault(t *testing.T) {
	broker := NewBrokerWithBuffer[int](0)
	defer broker.Close()
	require.Equal(t, defaultBufferSize, broker.bufferSize)
}

func TestBroker_Close(t *testing.T) {
	broker := NewBroker[string]()
	ctx := context.Background()

	ch1 := broker.Subscribe(ctx)
	ch2 := broker.Subscribe(ctx)

	broker.Close()

	_, ok1 := <-ch1
	_, ok2 := <-ch2
	require.False(t, ok1)
	require.False(t, ok2)
	require.Equal(t, 0, broker.SubscriberCount())

	ch3 := broker.Subscribe(ctx)
	_, ok3 := <-ch3
	require.False(t, ok3, "subscribe after close returns a closed channel")

	require.NotPanics(t, func() { broker.Publish(UpdatedEvent, "late") })
}

func TestBroker_CloseIdempotent(t *testing.T) {
	broker := NewBroker[string]()
	ch := broker.Subscribe(context.Background())

	broker.Close()
	broker.Close()

	_, ok := <-ch
	require.False(t, ok)
}

func TestBroker_CancelAfterClose(t *testing.T) {
	broker := NewBroker[string]()
	ctx, cancel := context.WithCancel(context.Background())
	_ = broker.Subscribe(ctx)

	broker.Close()
	require.NotPanics(t, func() { cancel() })
}
