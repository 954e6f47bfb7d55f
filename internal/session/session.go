// Package session wires one UI session: the dispatcher with its middleware,
// the state stores fed by host broadcasts, the outbound client and the local
// pending-request tracker.
//
// Receive and the handlers it reaches must run on a single goroutine (the
// event loop or the inspector's Update). Actions and views are safe from any
// goroutine.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/agentpanel/internal/config"
	"github.com/zjrosen/agentpanel/internal/log"
	"github.com/zjrosen/agentpanel/internal/metrics"
	"github.com/zjrosen/agentpanel/internal/pending"
	"github.com/zjrosen/agentpanel/internal/protocol/dispatch"
	"github.com/zjrosen/agentpanel/internal/protocol/messages"
	"github.com/zjrosen/agentpanel/internal/protocol/outbound"
	"github.com/zjrosen/agentpanel/internal/pubsub"
	"github.com/zjrosen/agentpanel/internal/state"
	"github.com/zjrosen/agentpanel/internal/tracing"
)

// Option configures a Session.
type Option func(*Session)

// WithProtocol applies protocol tuning. Zero values keep the defaults.
func WithProtocol(p config.ProtocolConfig) Option {
	return func(s *Session) {
		s.protocol = config.Config{Protocol: p}.WithDefaults().Protocol
	}
}

// WithTracer records a span per handled envelope and per outbound request.
func WithTracer(t trace.Tracer) Option {
	return func(s *Session) {
		s.tracer = t
	}
}

// WithMetrics records dispatch and outbound counters.
func WithMetrics(m *metrics.Dispatch) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithClock overrides the time source used to stamp received state.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// Session is one UI session.
type Session struct {
	id       string
	protocol config.ProtocolConfig
	tracer   trace.Tracer
	metrics  *metrics.Dispatch
	now      func() time.Time

	dispatcher  *dispatch.Dispatcher
	diagnostics *pubsub.Broker[dispatch.Diagnostic]
	client      *outbound.Client
	tracker     *pending.Tracker

	roster      *state.Store[state.Roster]
	queue       *state.Store[state.TaskQueue]
	memory      *state.Store[state.Memory]
	retries     *state.Store[state.Retries]
	hostErrors  *state.Store[state.HostErrors]
	auth        *state.Store[state.Auth]
	suggestions *state.Store[state.Suggestions]
	typing      *state.TypingReducer
}

// New creates a session posting requests on port.
func New(port outbound.Port, opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		protocol: config.Defaults().Protocol,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	buf := s.protocol.BroadcastBuffer
	s.diagnostics = pubsub.NewBrokerWithBuffer[dispatch.Diagnostic](buf)
	s.dispatcher = dispatch.New(messages.Registry(),
		dispatch.WithMiddleware(
			dispatch.NewLoggingMiddleware(),
			tracing.NewDispatchMiddleware(s.tracer, s.id),
			dispatch.NewSlowHandlerMiddleware(s.protocol.SlowHandlerThreshold),
		),
		dispatch.WithDiagnostics(s.diagnostics),
		dispatch.WithMetrics(s.metrics),
	)
	s.client = outbound.New(port, messages.Registry(), outbound.WithMetrics(s.metrics))
	s.tracker = pending.NewTracker(s.protocol.PendingTimeout, pending.DefaultCleanupInterval, buf)

	s.roster = state.NewStore(state.Roster{}, buf)
	s.queue = state.NewStore(state.TaskQueue{}, buf)
	s.memory = state.NewStore(state.Memory{}, buf)
	s.retries = state.NewStore(state.Retries{}, buf)
	s.hostErrors = state.NewStore(state.HostErrors{}, buf)
	s.auth = state.NewStore(state.Auth{}, buf)
	s.suggestions = state.NewStore(state.Suggestions{}, buf)
	s.typing = state.NewTypingReducer(buf)

	s.registerHandlers()
	log.Info(log.CatDispatch, "session started", "session_id", s.id)
	return s
}

func (s *Session) registerHandlers() {
	d := s.dispatcher

	dispatch.Handle(d, messages.AgentsStatusUpdate, func(_ context.Context, env dispatch.Envelope[[]messages.AgentStatus]) error {
		s.roster.Set(state.ReduceRoster(s.roster.Load(), env.Payload, s.now()))
		s.tracker.Resolve(pending.RosterKey)
		return nil
	})

	dispatch.Handle(d, messages.TaskQueueUpdate, func(_ context.Context, env dispatch.Envelope[messages.TaskQueue]) error {
		s.queue.Set(state.ReduceTaskQueue(s.queue.Load(), env.Payload, s.now()))
		s.tracker.Resolve(pending.TaskQueueKey)
		return nil
	})

	dispatch.Handle(d, messages.MemorySnapshotReceived, func(_ context.Context, env dispatch.Envelope[messages.MemorySnapshot]) error {
		s.memory.Update(func(m state.Memory) (state.Memory, bool) {
			return state.ReduceMemorySnapshot(m, env.Payload), true
		})
		s.tracker.Resolve(pending.MemoryKey(env.Payload.AgentID))
		return nil
	})

	dispatch.Handle(d, messages.MemoryItemSavedKind, func(_ context.Context, env dispatch.Envelope[messages.MemoryItemSaved]) error {
		s.memory.Update(func(m state.Memory) (state.Memory, bool) {
			return state.ReduceMemorySaved(m, env.Payload), true
		})
		return nil
	})

	dispatch.Handle(d, messages.MemoryItemDeleted, func(_ context.Context, env dispatch.Envelope[messages.MemoryItemRef]) error {
		s.memory.Update(func(m state.Memory) (state.Memory, bool) {
			return state.ReduceMemoryDeleted(m, env.Payload)
		})
		return nil
	})

	dispatch.Handle(d, messages.AgentRetryResult, func(_ context.Context, env dispatch.Envelope[messages.RetryResult]) error {
		s.retries.Set(state.ReduceRetryResult(s.retries.Load(), env.Payload, s.now()))
		s.tracker.Resolve(pending.RetryKey(env.Payload.AgentID, env.Payload.TaskID))
		return nil
	})

	dispatch.Handle(d, messages.ErrorKind, func(_ context.Context, env dispatch.Envelope[messages.HostError]) error {
		s.hostErrors.Set(state.ReduceHostErrors(s.hostErrors.Load(), env.Payload, s.now(), s.protocol.HostErrorHistory))
		log.Warn(log.CatState, "host reported error", "session_id", s.id, "message", env.Payload.Message, "code", env.Payload.Code)
		return nil
	})

	dispatch.Handle(d, messages.AuthStatusUpdate, func(_ context.Context, env dispatch.Envelope[messages.AuthStatus]) error {
		s.auth.Set(state.ReduceAuth(s.auth.Load(), env.Payload))
		s.tracker.Resolve(pending.AuthKey)
		return nil
	})

	dispatch.Handle(d, messages.SuggestionsUpdate, func(_ context.Context, env dispatch.Envelope[[]messages.Suggestion]) error {
		s.suggestions.Set(state.ReduceSuggestions(s.suggestions.Load(), env.Payload))
		s.tracker.Resolve(pending.SuggestionsKey)
		return nil
	})

	s.typing.Register(d)
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Dispatcher returns the session dispatcher, for feeding an event loop.
func (s *Session) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }

// Receive dispatches one inbound value on the caller's goroutine.
func (s *Session) Receive(ctx context.Context, v any) dispatch.Outcome {
	return s.dispatcher.Dispatch(ctx, v)
}

// Diagnostics returns the broker of dropped envelopes.
func (s *Session) Diagnostics() *pubsub.Broker[dispatch.Diagnostic] { return s.diagnostics }

// Expirations returns the broker of requests that were never answered.
func (s *Session) Expirations() *pubsub.Broker[pending.Expired] { return s.tracker.Expirations() }

// TypingBroadcasts returns the context-apply broker of the typing reducer.
func (s *Session) TypingBroadcasts() *pubsub.Broker[state.ContextApply] {
	return s.typing.Broadcasts()
}

// IsPending reports whether the request with the given pending key is still
// waiting for its broadcast.
func (s *Session) IsPending(key string) bool { return s.tracker.IsPending(key) }

// PendingRequests returns the keys of requests waiting for a broadcast.
func (s *Session) PendingRequests() []string { return s.tracker.Pending() }

// Close releases brokers and the tracker. The session must not be used after.
func (s *Session) Close() {
	s.tracker.Close()
	s.diagnostics.Close()
	s.typing.Close()
	s.roster.Close()
	s.queue.Close()
	s.memory.Close()
	s.retries.Close()
	s.hostErrors.Close()
	s.auth.Close()
	s.suggestions.Close()
	log.Info(log.CatDispatch, "session closed", "session_id", s.id)
}
