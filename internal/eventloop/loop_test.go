package eventloop

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/agentpanel/internal/metrics"
	"github.com/zjrosen/agentpanel/internal/protocol/dispatch"
	"github.com/zjrosen/agentpanel/internal/protocol/messages"
	"github.com/zjrosen/agentpanel/internal/protocol/schema"
	"github.com/zjrosen/agentpanel/internal/pubsub"
	"github.com/zjrosen/agentpanel/internal/testutil"
	"github.com/zjrosen/agentpanel/internal/wire"
)

func startLoop(t *testing.T, d Dispatcher, opts ...Option) *Loop {
	t.Helper()
	l := New(d, opts...)
	go l.Run(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.WaitForReady(ctx))
	return l
}

func TestLoop_FIFOOrder(t *testing.T) {
	d := dispatch.New(messages.Registry())
	var got []string
	dispatch.Handle(d, messages.ErrorKind, func(_ context.Context, env dispatch.Envelope[messages.HostError]) error {
		got = append(got, env.Payload.Message)
		return nil
	})

	l := startLoop(t, d)
	want := []string{"one", "two", "three", "four", "five"}
	for _, msg := range want {
		require.NoError(t, l.Submit(testutil.Envelope(t, "error", messages.HostError{Message: msg})))
	}
	l.Drain()

	require.Equal(t, want, got)
	require.Equal(t, int64(5), l.ProcessedCount())
	require.False(t, l.IsRunning())
	require.ErrorIs(t, l.Submit(map[string]any{}), ErrNotRunning)
}

func TestLoop_SubmitBeforeRun(t *testing.T) {
	l := New(dispatch.New(messages.Registry()))
	require.ErrorIs(t, l.Submit(nil), ErrNotRunning)
}

func TestLoop_QueueFull(t *testing.T) {
	d := dispatch.New(messages.Registry())
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	dispatch.Handle(d, messages.ErrorKind, func(context.Context, dispatch.Envelope[messages.HostError]) error {
		entered <- struct{}{}
		<-release
		return nil
	})

	m := metrics.New()
	l := startLoop(t, d, WithQueueCapacity(1), WithMetrics(m))
	env := testutil.Envelope(t, "error", messages.HostError{Message: "x"})

	require.NoError(t, l.Submit(env))
	<-entered
	require.NoError(t, l.Submit(env))
	require.ErrorIs(t, l.Submit(env), ErrQueueFull)
	require.Equal(t, 1.0, m.DroppedCount(metrics.ReasonQueueFull))

	close(release)
	l.Drain()
	require.Equal(t, int64(2), l.ProcessedCount())
}

func TestLoop_UndecodableLinesAreDroppedInOrder(t *testing.T) {
	broker := pubsub.NewBroker[dispatch.Diagnostic]()
	defer broker.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	diags := broker.Subscribe(ctx)

	d := dispatch.New(messages.Registry(), dispatch.WithDiagnostics(broker))
	handled := 0
	dispatch.Handle(d, messages.GetAgentsStatus, func(context.Context, dispatch.Envelope[schema.Empty]) error {
		handled++
		return nil
	})
	l := startLoop(t, d)

	input := "{\"kind\":\"get-agents-status\"}\n{broken\n"
	require.NoError(t, wire.Scan(ctx, strings.NewReader(input), l.SubmitLine))
	l.Drain()

	require.Equal(t, 1, handled)
	require.Equal(t, int64(1), l.DroppedCount())
	select {
	case ev := <-diags:
		require.Equal(t, dispatch.DiagMalformed, ev.Payload.Reason)
		require.ErrorIs(t, ev.Payload.Err, wire.ErrUndecodable)
	case <-time.After(time.Second):
		t.Fatal("no diagnostic for undecodable line")
	}
}

func TestLoop_SubmitAndWait(t *testing.T) {
	d := dispatch.New(messages.Registry())
	boom := errors.New("boom")
	dispatch.Handle(d, messages.ErrorKind, func(context.Context, dispatch.Envelope[messages.HostError]) error {
		return boom
	})
	l := startLoop(t, d)
	defer l.Stop()

	out, err := l.SubmitAndWait(context.Background(), testutil.Envelope(t, "error", messages.HostError{Message: "x"}))
	require.NoError(t, err)
	require.True(t, out.Handled)
	require.ErrorIs(t, out.HandlerErr, boom)
	require.Equal(t, int64(1), l.HandlerErrorCount())

	out, err = l.SubmitAndWait(context.Background(), map[string]any{"kind": "totally-unknown"})
	require.NoError(t, err)
	require.Equal(t, dispatch.DiagNoHandler, out.Diagnostic.Reason)
}

func TestLoop_PublishesOutcomes(t *testing.T) {
	broker := pubsub.NewBroker[dispatch.Outcome]()
	defer broker.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := broker.Subscribe(ctx)

	l := startLoop(t, dispatch.New(messages.Registry()), WithOutcomes(broker))
	require.NoError(t, l.Submit("not an envelope"))
	l.Drain()

	select {
	case ev := <-ch:
		require.True(t, ev.Payload.Dropped())
	case <-time.After(time.Second):
		t.Fatal("no outcome published")
	}
}

func TestLoop_StopIsSafeWithConcurrentSubmit(t *testing.T) {
	l := startLoop(t, dispatch.New(messages.Registry()))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = l.Submit(map[string]any{"kind": "x"})
			}
		}()
	}
	l.Drain()
	wg.Wait()
	l.Stop()
	require.False(t, l.IsRunning())
}
