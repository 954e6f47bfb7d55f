package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/agentpanel/internal/metrics"
	"github.com/zjrosen/agentpanel/internal/protocol/dispatch"
	"github.com/zjrosen/agentpanel/internal/protocol/messages"
	"github.com/zjrosen/agentpanel/internal/protocol/schema"
	"github.com/zjrosen/agentpanel/internal/protocol/validate"
	"github.com/zjrosen/agentpanel/internal/pubsub"
	"github.com/zjrosen/agentpanel/internal/testutil"
)

func newDispatcher(opts ...dispatch.Option) *dispatch.Dispatcher {
	return dispatch.New(messages.Registry(), opts...)
}

// ============================================================================
// Routing
// ============================================================================

func TestDispatch_TypedHandlerReceivesDecodedPayload(t *testing.T) {
	d := newDispatcher()

	var got []messages.AgentStatus
	dispatch.Handle(d, messages.AgentsStatusUpdate, func(_ context.Context, env dispatch.Envelope[[]messages.AgentStatus]) error {
		require.Equal(t, "agents-status-update", env.Kind)
		got = env.Payload
		return nil
	})

	out := d.Dispatch(context.Background(), testutil.StandardRoster(t).Envelope())
	require.True(t, out.Handled)
	require.Nil(t, out.Diagnostic)
	require.NoError(t, out.HandlerErr)
	require.Equal(t, testutil.StandardRoster(t).Agents(), got)
}

func TestDispatch_ZeroPayloadKind(t *testing.T) {
	d := newDispatcher()
	calls := 0
	dispatch.Handle(d, messages.GetAgentsStatus, func(_ context.Context, env dispatch.Envelope[schema.Empty]) error {
		calls++
		return nil
	})

	out := d.Dispatch(context.Background(), map[string]any{"kind": "get-agents-status"})
	require.True(t, out.Handled)
	require.Equal(t, 1, calls)
}

func TestDispatch_MalformedNeverReachesHandler(t *testing.T) {
	broker := pubsub.NewBroker[dispatch.Diagnostic]()
	defer broker.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	diags := broker.Subscribe(ctx)

	d := newDispatcher(dispatch.WithDiagnostics(broker))
	calls := 0
	dispatch.Handle(d, messages.AgentsStatusUpdate, func(context.Context, dispatch.Envelope[[]messages.AgentStatus]) error {
		calls++
		return nil
	})

	out := d.Dispatch(ctx, testutil.Decode(t, `{"kind":"agents-status-update","payload":"not-an-array"}`))
	require.False(t, out.Handled)
	require.NotNil(t, out.Diagnostic)
	require.Equal(t, dispatch.DiagMalformed, out.Diagnostic.Reason)
	require.Equal(t, "agents-status-update", out.Diagnostic.Kind)
	require.Zero(t, calls)

	select {
	case ev := <-diags:
		require.Equal(t, pubsub.DroppedEvent, ev.Type)
		require.Equal(t, dispatch.DiagMalformed, ev.Payload.Reason)
	case <-time.After(time.Second):
		t.Fatal("diagnostic not published")
	}
}

func TestDispatch_UnknownKindTolerance(t *testing.T) {
	d := newDispatcher()
	tests := []struct {
		name  string
		value any
	}{
		{"unknown to the schema", map[string]any{"kind": "totally-unknown", "payload": map[string]any{}}},
		{"registered without handler", testutil.Envelope(t, "memory-item-deleted", messages.MemoryItemRef{AgentID: "a", ItemID: "m"})},
		// Handler lookup precedes validation: a malformed envelope of an
		// unhandled kind is reported as no-handler.
		{"malformed without handler", map[string]any{"kind": "memory-item-deleted", "payload": 1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := d.Dispatch(context.Background(), tt.value)
			require.False(t, out.Handled)
			require.NotNil(t, out.Diagnostic)
			require.Equal(t, dispatch.DiagNoHandler, out.Diagnostic.Reason)
		})
	}
}

func TestDispatch_HandlerForUnregisteredKind(t *testing.T) {
	d := newDispatcher()
	d.Register("totally-unknown", dispatch.HandlerFunc(func(context.Context, dispatch.Message) error {
		t.Fatal("handler for a kind outside the schema must not run")
		return nil
	}))

	out := d.Dispatch(context.Background(), map[string]any{"kind": "totally-unknown"})
	require.Equal(t, dispatch.DiagNoHandler, out.Diagnostic.Reason)
	require.ErrorIs(t, out.Diagnostic.Err, validate.ErrUnknownKind)
}

func TestDispatch_NotARecord(t *testing.T) {
	d := newDispatcher()
	for _, v := range []any{nil, "AGENT_TYPING", 3.0, []any{}, map[string]any{"kind": 1.0}} {
		out := d.Dispatch(context.Background(), v)
		require.Equal(t, dispatch.DiagMalformed, out.Diagnostic.Reason)
		require.Empty(t, out.Kind)
	}
}

func TestDispatch_RegisterIsLastWriterWins(t *testing.T) {
	d := newDispatcher()
	var calls []string
	dispatch.Handle(d, messages.AgentTyping, func(context.Context, dispatch.Envelope[messages.TypingEvent]) error {
		calls = append(calls, "first")
		return nil
	})
	dispatch.Handle(d, messages.AgentTyping, func(context.Context, dispatch.Envelope[messages.TypingEvent]) error {
		calls = append(calls, "second")
		return nil
	})

	d.Dispatch(context.Background(), testutil.Envelope(t, "AGENT_TYPING", messages.TypingEvent{AgentID: "a1", ThreadID: "t1"}))
	require.Equal(t, []string{"second"}, calls)

	d.Unregister("AGENT_TYPING")
	require.False(t, d.HasHandler("AGENT_TYPING"))
}

func TestDispatch_HandlerErrorIsNotADiagnostic(t *testing.T) {
	boom := errors.New("boom")
	d := newDispatcher(dispatch.WithMiddleware(dispatch.NewLoggingMiddleware()))
	dispatch.Handle(d, messages.ErrorKind, func(context.Context, dispatch.Envelope[messages.HostError]) error {
		return boom
	})

	out := d.Dispatch(context.Background(), testutil.Envelope(t, "error", messages.HostError{Message: "x"}))
	require.True(t, out.Handled)
	require.Nil(t, out.Diagnostic)
	require.ErrorIs(t, out.HandlerErr, boom)
}

func TestDispatch_HandlerPanicIsRecovered(t *testing.T) {
	d := newDispatcher()
	dispatch.Handle(d, messages.ErrorKind, func(context.Context, dispatch.Envelope[messages.HostError]) error {
		panic("reducer bug")
	})

	var out dispatch.Outcome
	require.NotPanics(t, func() {
		out = d.Dispatch(context.Background(), testutil.Envelope(t, "error", messages.HostError{Message: "x"}))
	})
	require.True(t, out.Handled)
	require.ErrorIs(t, out.HandlerErr, dispatch.ErrHandlerPanic)
	require.Contains(t, out.HandlerErr.Error(), "reducer bug")
}

func TestDispatch_MetricsAndStats(t *testing.T) {
	m := metrics.New()
	d := newDispatcher(dispatch.WithMetrics(m))
	dispatch.Handle(d, messages.ErrorKind, func(context.Context, dispatch.Envelope[messages.HostError]) error { return nil })

	d.Dispatch(context.Background(), testutil.Envelope(t, "error", messages.HostError{Message: "x"}))
	d.Dispatch(context.Background(), map[string]any{"kind": "error", "payload": map[string]any{}})
	d.Dispatch(context.Background(), map[string]any{"kind": "nope"})

	handled, dropped := d.Stats()
	assert.Equal(t, int64(1), handled)
	assert.Equal(t, int64(2), dropped)
	assert.Equal(t, 1.0, m.HandledCount("error"))
	assert.Equal(t, 1.0, m.DroppedCount(metrics.ReasonMalformed))
	assert.Equal(t, 1.0, m.DroppedCount(metrics.ReasonNoHandler))
}

func TestDiagnostic_String(t *testing.T) {
	require.Equal(t, "no-handler kind=x", dispatch.Diagnostic{Reason: dispatch.DiagNoHandler, Kind: "x"}.String())
	require.Equal(t, "malformed kind=<none>: boom",
		dispatch.Diagnostic{Reason: dispatch.DiagMalformed, Err: errors.New("boom")}.String())
}

// ============================================================================
// Properties
// ============================================================================

// Every value is either handled exactly once or dropped with a diagnostic,
// and handlers only ever see values their kind validator accepts.
func TestDispatch_Totality(t *testing.T) {
	reg := messages.Registry()
	rapid.Check(t, func(t *rapid.T) {
		d := dispatch.New(reg)
		calls := map[string]int{}
		handled := map[string]bool{}
		for _, e := range reg.Entries() {
			if !rapid.Bool().Draw(t, "handle-"+e.Kind) {
				continue
			}
			kind := e.Kind
			handled[kind] = true
			d.Register(kind, dispatch.HandlerFunc(func(context.Context, dispatch.Message) error {
				calls[kind]++
				return nil
			}))
		}

		v := testutil.EnvelopeLike().Draw(t, "value")
		out := d.Dispatch(context.Background(), v)

		if out.Handled == (out.Diagnostic != nil) {
			t.Fatalf("exactly one of Handled/Diagnostic must be set: %+v", out)
		}
		total := 0
		for _, n := range calls {
			total += n
		}
		if out.Handled {
			if total != 1 || calls[out.Kind] != 1 {
				t.Fatalf("handled value must invoke its handler once, calls=%v", calls)
			}
			if !validate.ForKind(reg, out.Kind)(v) {
				t.Fatalf("handler saw a value its validator rejects: %#v", v)
			}
			return
		}
		if total != 0 {
			t.Fatalf("dropped value invoked handlers: %v", calls)
		}
		kind, sane := validate.Envelope(v)
		switch {
		case !sane:
			if out.Diagnostic.Reason != dispatch.DiagMalformed {
				t.Fatalf("insane value reported as %s", out.Diagnostic.Reason)
			}
		case !handled[kind]:
			if out.Diagnostic.Reason != dispatch.DiagNoHandler {
				t.Fatalf("unhandled kind %q reported as %s", kind, out.Diagnostic.Reason)
			}
		default:
			if out.Diagnostic.Reason != dispatch.DiagMalformed {
				t.Fatalf("invalid %q reported as %s", kind, out.Diagnostic.Reason)
			}
		}
	})
}
