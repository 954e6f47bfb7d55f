package inspector_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/agentpanel/internal/inspector"
	"github.com/zjrosen/agentpanel/internal/pending"
	"github.com/zjrosen/agentpanel/internal/protocol/outbound"
	"github.com/zjrosen/agentpanel/internal/protocol/schema"
	"github.com/zjrosen/agentpanel/internal/pubsub"
	"github.com/zjrosen/agentpanel/internal/session"
	"github.com/zjrosen/agentpanel/internal/wire"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

const rosterLine = `{"kind":"agents-status-update","payload":[{"id":"a1","name":"Coder","mode":"coder","isActive":true,"dependencies":[],"warnings":[]}]}`

func newSession(t *testing.T) (*session.Session, *[]string) {
	t.Helper()
	var sent []string
	s := session.New(outbound.PortFunc(func(_ context.Context, env schema.Envelope) error {
		sent = append(sent, env.Kind)
		return nil
	}))
	t.Cleanup(s.Close)
	return s, &sent
}

func linesOf(raw ...string) chan wire.Line {
	ch := make(chan wire.Line, len(raw))
	for i, r := range raw {
		line := wire.Line{Number: i + 1, Raw: []byte(r)}
		line.Value, line.Err = wire.Decode([]byte(r))
		ch <- line
	}
	close(ch)
	return ch
}

func lineMsg(raw string) inspector.LineMsg {
	line := wire.Line{Number: 1, Raw: []byte(raw)}
	line.Value, line.Err = wire.Decode([]byte(raw))
	return inspector.LineMsg{Line: line}
}

func keyMsg(k string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func TestInspector_ProgramDispatchesCapture(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, _ := newSession(t)

	lines := linesOf(
		`{"kind":"AGENT_TYPING","payload":{"agentId":"a1","threadId":"t1"}}`,
		`{"kind":"totally-unknown"}`,
		`{not json`,
		rosterLine,
	)

	tm := teatest.NewTestModel(t,
		inspector.New(ctx, s, lines, inspector.Config{ShowPayloads: true, Title: "capture.jsonl"}),
		teatest.WithInitialTermSize(120, 30),
	)

	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("end of input"))
	}, teatest.WithDuration(3*time.Second), teatest.WithCheckInterval(20*time.Millisecond))

	tm.Send(keyMsg("q"))
	fm, ok := tm.FinalModel(t, teatest.WithFinalTimeout(3*time.Second)).(inspector.Model)
	require.True(t, ok)

	require.True(t, fm.SourceDone())
	require.Equal(t, 2, fm.Handled())
	require.Equal(t, 2, fm.Dropped())
	require.Equal(t, 4, fm.Events())
	require.True(t, s.Typing().IsTyping("t1", "a1"))
	require.Len(t, s.Roster().Agents, 1)
}

func TestInspector_ViewShowsStateAndRows(t *testing.T) {
	s, _ := newSession(t)
	m := inspector.New(context.Background(), s, nil, inspector.Config{ShowPayloads: true})

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 20})
	updated, _ = updated.Update(lineMsg(rosterLine))
	updated, _ = updated.Update(lineMsg(`{"kind":"AGENT_TYPING","payload":{"agentId":"a1","threadId":"t1"}}`))
	updated, _ = updated.Update(lineMsg(`{"kind":"error","payload":{"message":"boom"}}`))

	view := updated.View()
	require.Contains(t, view, "handled 3")
	require.Contains(t, view, "active: a1")
	require.Contains(t, view, "t1: a1")
	require.Contains(t, view, "agents-status-update")
	require.Contains(t, view, `"message":"boom"`)

	updated, _ = updated.Update(keyMsg("p"))
	require.NotContains(t, updated.View(), `"message":"boom"`, "payloads hidden")
}

func TestInspector_EventLogIsBounded(t *testing.T) {
	s, _ := newSession(t)
	var m tea.Model = inspector.New(context.Background(), s, nil, inspector.Config{MaxEvents: 2})

	for i := 0; i < 5; i++ {
		m, _ = m.Update(lineMsg(`{"kind":"totally-unknown"}`))
	}
	require.Equal(t, 2, m.(inspector.Model).Events())
	require.Equal(t, 5, m.(inspector.Model).Dropped())

	m, _ = m.Update(keyMsg("c"))
	require.Equal(t, 0, m.(inspector.Model).Events())
}

func TestInspector_RefreshSendsRequests(t *testing.T) {
	s, sent := newSession(t)
	var m tea.Model = inspector.New(context.Background(), s, nil, inspector.Config{})

	m, _ = m.Update(keyMsg("r"))
	require.Equal(t, []string{"get-agents-status", "get-task-queue-status"}, *sent)
	require.True(t, s.IsPending(pending.RosterKey))
	_ = m
}

func TestInspector_ExpiredRequestsAreLogged(t *testing.T) {
	s, _ := newSession(t)
	var m tea.Model = inspector.New(context.Background(), s, nil, inspector.Config{})

	m, _ = m.Update(pubsub.Event[pending.Expired]{
		Type:    pubsub.ExpiredEvent,
		Payload: pending.Expired{Key: pending.RosterKey, Kind: "get-agents-status", Waited: 30 * time.Second},
	})
	require.Equal(t, 1, m.(inspector.Model).Events())
	require.Contains(t, m.View(), "expired 1")
	require.Contains(t, m.View(), "no broadcast after 30s")
}

func TestInspector_QuitKey(t *testing.T) {
	s, _ := newSession(t)
	m := inspector.New(context.Background(), s, nil, inspector.Config{})
	_, cmd := m.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}
