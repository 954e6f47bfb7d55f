package state

import (
	"context"
	"sort"
	"strings"

	"github.com/zjrosen/agentpanel/internal/log"
	"github.com/zjrosen/agentpanel/internal/protocol/dispatch"
	"github.com/zjrosen/agentpanel/internal/protocol/messages"
	"github.com/zjrosen/agentpanel/internal/pubsub"
)

// TypingState maps thread id to agent id to "is typing". An absent entry means
// not typing. The zero value is an empty state.
type TypingState struct {
	threads map[string]map[string]bool
}

// IsTyping reports whether agent is typing in thread.
func (s TypingState) IsTyping(threadID, agentID string) bool {
	return s.threads[threadID][agentID]
}

// Agents returns the agents currently typing in thread, sorted.
func (s TypingState) Agents(threadID string) []string {
	var out []string
	for agent, typing := range s.threads[threadID] {
		if typing {
			out = append(out, agent)
		}
	}
	sort.Strings(out)
	return out
}

// Threads returns every thread with at least one recorded agent, sorted.
func (s TypingState) Threads() []string {
	out := make([]string, 0, len(s.threads))
	for thread := range s.threads {
		out = append(out, thread)
	}
	sort.Strings(out)
	return out
}

// Map returns a copy of the underlying mapping.
func (s TypingState) Map() map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(s.threads))
	for thread, agents := range s.threads {
		inner := make(map[string]bool, len(agents))
		for a, v := range agents {
			inner[a] = v
		}
		out[thread] = inner
	}
	return out
}

// ApplyTyping applies one typing event. AGENT_TYPING sets the (thread, agent)
// entry to true; any other kind sets it to false. Agent ids are used as sent.
// An empty or blank agent id is ignored: the same state is returned with
// applied false.
func ApplyTyping(s TypingState, kind string, ev messages.TypingEvent) (TypingState, bool) {
	if strings.TrimSpace(ev.AgentID) == "" {
		return s, false
	}
	typing := kind == messages.AgentTyping.Name()

	threads := make(map[string]map[string]bool, len(s.threads)+1)
	for thread, agents := range s.threads {
		threads[thread] = agents
	}
	agents := make(map[string]bool, len(s.threads[ev.ThreadID])+1)
	for a, v := range s.threads[ev.ThreadID] {
		agents[a] = v
	}
	agents[ev.AgentID] = typing
	threads[ev.ThreadID] = agents

	return TypingState{threads: threads}, true
}

// ContextApply is broadcast after every applied typing event so views showing
// the agent's context can refresh.
type ContextApply struct {
	AgentID  string
	ThreadID string
}

// TypingReducer owns the typing state of one session and its context-apply
// broadcasts.
type TypingReducer struct {
	store      *Store[TypingState]
	broadcasts *pubsub.Broker[ContextApply]
}

// NewTypingReducer creates an empty reducer.
func NewTypingReducer(bufferSize int) *TypingReducer {
	return &TypingReducer{
		store:      NewStore(TypingState{}, bufferSize),
		broadcasts: pubsub.NewBrokerWithBuffer[ContextApply](bufferSize),
	}
}

// Apply reduces one event. It broadcasts a ContextApply only when the event
// was applied.
func (r *TypingReducer) Apply(kind string, ev messages.TypingEvent) bool {
	var applied bool
	r.store.Update(func(s TypingState) (TypingState, bool) {
		var next TypingState
		next, applied = ApplyTyping(s, kind, ev)
		return next, applied
	})
	if !applied {
		log.Debug(log.CatState, "typing event without agent ignored", "kind", kind, "thread_id", ev.ThreadID)
		return false
	}
	r.broadcasts.Publish(pubsub.AppliedEvent, ContextApply{
		AgentID:  ev.AgentID,
		ThreadID: ev.ThreadID,
	})
	return true
}

// Register installs handlers for both typing kinds on d.
func (r *TypingReducer) Register(d *dispatch.Dispatcher) {
	handle := func(_ context.Context, env dispatch.Envelope[messages.TypingEvent]) error {
		r.Apply(env.Kind, env.Payload)
		return nil
	}
	dispatch.Handle(d, messages.AgentTyping, handle)
	dispatch.Handle(d, messages.AgentTypingDone, handle)
}

// State returns the current typing state.
func (r *TypingReducer) State() TypingState { return r.store.Load() }

// IsTyping reports whether agent is typing in thread.
func (r *TypingReducer) IsTyping(threadID, agentID string) bool {
	return r.State().IsTyping(threadID, agentID)
}

// TypingAgents returns the agents typing in thread, sorted.
func (r *TypingReducer) TypingAgents(threadID string) []string {
	return r.State().Agents(threadID)
}

// Broadcasts returns the context-apply broker. Listeners subscribe with a
// context and detach by cancelling it.
func (r *TypingReducer) Broadcasts() *pubsub.Broker[ContextApply] {
	return r.broadcasts
}

// Changes returns the broker of typing state changes.
func (r *TypingReducer) Changes() *pubsub.Broker[TypingState] {
	return r.store.Changes()
}

// Close closes both brokers.
func (r *TypingReducer) Close() {
	r.store.Close()
	r.broadcasts.Close()
}
