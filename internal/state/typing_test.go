package state

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/agentpanel/internal/protocol/dispatch"
	"github.com/zjrosen/agentpanel/internal/protocol/messages"
	"github.com/zjrosen/agentpanel/internal/testutil"
)

const (
	typingKind = "AGENT_TYPING"
	doneKind   = "AGENT_TYPING_DONE"
)

func TestApplyTyping_SetsAndClears(t *testing.T) {
	s := TypingState{}
	require.False(t, s.IsTyping("t1", "a1"))

	s, ok := ApplyTyping(s, typingKind, messages.TypingEvent{AgentID: "a1", ThreadID: "t1"})
	require.True(t, ok)
	require.True(t, s.IsTyping("t1", "a1"))

	s, ok = ApplyTyping(s, typingKind, messages.TypingEvent{AgentID: "a2", ThreadID: "t1"})
	require.True(t, ok)
	require.Equal(t, []string{"a1", "a2"}, s.Agents("t1"))

	s, ok = ApplyTyping(s, doneKind, messages.TypingEvent{AgentID: "a1", ThreadID: "t1"})
	require.True(t, ok)
	require.False(t, s.IsTyping("t1", "a1"))
	require.Equal(t, []string{"a2"}, s.Agents("t1"))
	require.Equal(t, []string{"t1"}, s.Threads())
}

func TestApplyTyping_DoesNotMutateInput(t *testing.T) {
	before, _ := ApplyTyping(TypingState{}, typingKind, messages.TypingEvent{AgentID: "a1", ThreadID: "t1"})
	snapshot := before.Map()

	after, _ := ApplyTyping(before, doneKind, messages.TypingEvent{AgentID: "a1", ThreadID: "t1"})
	_, _ = ApplyTyping(after, typingKind, messages.TypingEvent{AgentID: "a9", ThreadID: "t2"})

	require.Equal(t, snapshot, before.Map())
	require.True(t, before.IsTyping("t1", "a1"))
}

func TestApplyTyping_DegenerateAgentIsNoop(t *testing.T) {
	s, _ := ApplyTyping(TypingState{}, typingKind, messages.TypingEvent{AgentID: "a1", ThreadID: "t1"})
	for _, agent := range []string{"", "   ", "\t\n"} {
		next, ok := ApplyTyping(s, doneKind, messages.TypingEvent{AgentID: agent, ThreadID: "t1"})
		require.False(t, ok)
		require.Equal(t, s.Map(), next.Map())
	}
}

func TestTypingReducer_DegenerateEventDoesNotBroadcast(t *testing.T) {
	r := NewTypingReducer(8)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := r.Broadcasts().Subscribe(ctx)

	require.False(t, r.Apply(typingKind, messages.TypingEvent{ThreadID: "t1"}))
	require.True(t, r.Apply(typingKind, messages.TypingEvent{AgentID: "a1", ThreadID: "t1"}))

	select {
	case ev := <-ch:
		require.Equal(t, ContextApply{AgentID: "a1", ThreadID: "t1"}, ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("expected a context-apply broadcast")
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected second broadcast %+v", ev.Payload)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestTypingReducer_BroadcastsWithoutListeners(t *testing.T) {
	r := NewTypingReducer(1)
	defer r.Close()
	for i := 0; i < 10; i++ {
		require.True(t, r.Apply(typingKind, messages.TypingEvent{AgentID: "a1", ThreadID: "t1"}))
	}
	require.True(t, r.IsTyping("t1", "a1"))
}

func TestTypingReducer_ThroughDispatcher(t *testing.T) {
	r := NewTypingReducer(8)
	defer r.Close()
	d := dispatch.New(messages.Registry())
	r.Register(d)

	ctx := context.Background()
	out := d.Dispatch(ctx, testutil.Envelope(t, typingKind, messages.TypingEvent{AgentID: "a1", ThreadID: "t1"}))
	require.True(t, out.Handled)
	require.Equal(t, []string{"a1"}, r.TypingAgents("t1"))

	// Missing agent id is a valid envelope that the reducer ignores.
	out = d.Dispatch(ctx, testutil.Decode(t, `{"kind":"AGENT_TYPING_DONE","payload":{"threadId":"t1"}}`))
	require.True(t, out.Handled)
	require.True(t, r.IsTyping("t1", "a1"))

	out = d.Dispatch(ctx, testutil.Envelope(t, doneKind, messages.TypingEvent{AgentID: "a1", ThreadID: "t1"}))
	require.True(t, out.Handled)
	require.Empty(t, r.TypingAgents("t1"))
}

// ============================================================================
// Properties
// ============================================================================

func apply(s TypingState, step testutil.TypingStep) (TypingState, bool) {
	kind := doneKind
	if step.Started {
		kind = typingKind
	}
	return ApplyTyping(s, kind, messages.TypingEvent{AgentID: step.AgentID, ThreadID: step.ThreadID})
}

func TestApplyTyping_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := TypingState{}
		for _, step := range testutil.TypingSteps().Draw(t, "prefix") {
			s, _ = apply(s, step)
		}
		step := rapid.Custom(func(t *rapid.T) testutil.TypingStep {
			return testutil.TypingStep{
				Started:  rapid.Bool().Draw(t, "started"),
				AgentID:  rapid.SampledFrom([]string{"a1", "a2", ""}).Draw(t, "agent"),
				ThreadID: rapid.SampledFrom([]string{"t1", "t2"}).Draw(t, "thread"),
			}
		}).Draw(t, "step")

		once, _ := apply(s, step)
		twice, _ := apply(once, step)
		if !mapsEqual(once.Map(), twice.Map()) {
			t.Fatalf("applying %+v twice differs from once", step)
		}
	})
}

// The final state equals a model that keeps the last event per (thread,
// agent), whatever the interleaving.
func TestApplyTyping_LastWriteWins(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		steps := testutil.TypingSteps().Draw(t, "steps")

		s := TypingState{}
		model := map[string]map[string]bool{}
		for _, step := range steps {
			s, _ = apply(s, step)
			if strings.TrimSpace(step.AgentID) == "" {
				continue
			}
			if model[step.ThreadID] == nil {
				model[step.ThreadID] = map[string]bool{}
			}
			model[step.ThreadID][step.AgentID] = step.Started
		}

		if !mapsEqual(model, s.Map()) {
			t.Fatalf("state %v does not match last-write model %v", s.Map(), model)
		}
	})
}

func mapsEqual(a, b map[string]map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for thread, agents := range a {
		other, ok := b[thread]
		if !ok || len(other) != len(agents) {
			return false
		}
		for agent, v := range agents {
			if ov, ok := other[agent]; !ok || ov != v {
				return false
			}
		}
	}
	return true
}
