// Package inspector is a terminal view of a live UI session. Its Update is
// the session's single UI goroutine: every inbound line is dispatched there,
// so reducers never run concurrently with rendering.
package inspector

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zjrosen/agentpanel/internal/keys"
	"github.com/zjrosen/agentpanel/internal/log"
	"github.com/zjrosen/agentpanel/internal/pending"
	"github.com/zjrosen/agentpanel/internal/protocol/dispatch"
	"github.com/zjrosen/agentpanel/internal/pubsub"
	"github.com/zjrosen/agentpanel/internal/session"
	"github.com/zjrosen/agentpanel/internal/state"
	"github.com/zjrosen/agentpanel/internal/wire"
)

// DefaultMaxEvents bounds the event log when Config.MaxEvents is not set.
const DefaultMaxEvents = 500

// Config holds inspector options.
type Config struct {
	MaxEvents    int
	ShowPayloads bool
	// Title is shown in the header, typically the capture file name.
	Title string
}

// LineMsg carries one inbound wire line.
type LineMsg struct {
	Line wire.Line
}

// SourceClosedMsg reports that the line source has no more lines.
type SourceClosedMsg struct{}

type eventStatus int

const (
	statusHandled eventStatus = iota
	statusHandlerError
	statusDropped
	statusExpired
)

type eventRow struct {
	at      time.Time
	line    int
	kind    string
	status  eventStatus
	detail  string
	payload string
}

// Model is the inspector bubbletea model.
type Model struct {
	ctx     context.Context
	session *session.Session
	lines   <-chan wire.Line

	expirations *pubsub.ContinuousListener[pending.Expired]
	typing      <-chan pubsub.Event[state.ContextApply]
	lastApply   *state.ContextApply

	viewport viewport.Model
	events   []eventRow

	title        string
	maxEvents    int
	showPayloads bool
	follow       bool
	sourceDone   bool

	width  int
	height int

	handled     int
	dropped     int
	handlerErrs int
	expired     int
}

// New creates an inspector over s reading lines from lines. The model stops
// listening to the session brokers when ctx is done.
func New(ctx context.Context, s *session.Session, lines <-chan wire.Line, cfg Config) Model {
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return Model{
		ctx:          ctx,
		session:      s,
		lines:        lines,
		expirations:  pubsub.NewContinuousListener(ctx, s.Expirations()),
		typing:       s.TypingBroadcasts().Subscribe(ctx),
		viewport:     viewport.New(80, 10),
		title:        cfg.Title,
		maxEvents:    maxEvents,
		showPayloads: cfg.ShowPayloads,
		follow:       true,
	}
}

// Init starts listening to the line source and the session brokers.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForLine(m.lines),
		m.expirations.Listen(),
		pubsub.ListenCmd(m.ctx, m.typing),
	)
}

func waitForLine(lines <-chan wire.Line) tea.Cmd {
	if lines == nil {
		return nil
	}
	return func() tea.Msg {
		line, ok := <-lines
		if !ok {
			return SourceClosedMsg{}
		}
		return LineMsg{Line: line}
	}
}

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case LineMsg:
		m.receive(msg.Line)
		return m, waitForLine(m.lines)

	case SourceClosedMsg:
		m.sourceDone = true
		return m, nil

	case pubsub.Event[pending.Expired]:
		m.expired++
		m.push(eventRow{
			at:     time.Now(),
			kind:   msg.Payload.Kind,
			status: statusExpired,
			detail: "no broadcast after " + msg.Payload.Waited.Round(time.Millisecond).String(),
		})
		return m, m.expirations.Listen()

	case pubsub.Event[state.ContextApply]:
		apply := msg.Payload
		m.lastApply = &apply
		return m, pubsub.ListenCmd(m.ctx, m.typing)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Inspector.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Inspector.TogglePayloads):
		m.showPayloads = !m.showPayloads
		m.refreshContent()
	case key.Matches(msg, keys.Inspector.Clear):
		m.events = nil
		m.refreshContent()
	case key.Matches(msg, keys.Inspector.Follow):
		m.follow = !m.follow
		if m.follow {
			m.viewport.GotoBottom()
		}
	case key.Matches(msg, keys.Inspector.Refresh):
		if err := m.session.RequestAgentsStatus(m.ctx); err != nil {
			log.ErrorErr(log.CatUI, "request agents status", err)
		}
		if err := m.session.RequestTaskQueue(m.ctx); err != nil {
			log.ErrorErr(log.CatUI, "request task queue", err)
		}
	case key.Matches(msg, keys.Inspector.Top):
		m.follow = false
		m.viewport.GotoTop()
	case key.Matches(msg, keys.Inspector.Bottom):
		m.viewport.GotoBottom()
	case key.Matches(msg, keys.Inspector.Up):
		m.follow = false
		m.viewport.ScrollUp(1)
	case key.Matches(msg, keys.Inspector.Down):
		m.viewport.ScrollDown(1)
	}
	return m, nil
}

// receive dispatches one line through the session and records the outcome.
func (m *Model) receive(line wire.Line) {
	var out dispatch.Outcome
	if line.Err != nil {
		out = m.session.Dispatcher().Reject(dispatch.DiagMalformed, "", line.Err)
	} else {
		out = m.session.Receive(m.ctx, line.Value)
	}

	row := eventRow{at: time.Now(), line: line.Number, kind: out.Kind}
	switch {
	case out.Diagnostic != nil:
		m.dropped++
		row.status = statusDropped
		row.detail = out.Diagnostic.String()
	case out.HandlerErr != nil:
		m.handled++
		m.handlerErrs++
		row.status = statusHandlerError
		row.detail = out.HandlerErr.Error()
	default:
		m.handled++
		row.status = statusHandled
	}
	if env, ok := line.Value.(map[string]any); ok {
		if payload, present := env["payload"]; present {
			if b, err := json.Marshal(payload); err == nil {
				row.payload = string(b)
			}
		}
	}
	m.push(row)
}

func (m *Model) push(row eventRow) {
	m.events = append(m.events, row)
	if over := len(m.events) - m.maxEvents; over > 0 {
		m.events = append([]eventRow(nil), m.events[over:]...)
	}
	m.refreshContent()
}

func (m *Model) refreshContent() {
	m.viewport.SetContent(m.renderEvents())
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) resize() {
	h := m.height - headerHeight - footerHeight
	if h < 1 {
		h = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
	m.refreshContent()
}

// Handled returns the number of envelopes that reached a handler.
func (m Model) Handled() int { return m.handled }

// Dropped returns the number of envelopes dropped with a diagnostic.
func (m Model) Dropped() int { return m.dropped }

// Events returns the number of rows in the event log.
func (m Model) Events() int { return len(m.events) }

// SourceDone reports whether the line source was exhausted.
func (m Model) SourceDone() bool { return m.sourceDone }

// Run starts the inspector full screen and blocks until the user quits or
// ctx is done.
func Run(ctx context.Context, s *session.Session, lines <-chan wire.Line, cfg Config) error {
	p := tea.NewProgram(New(ctx, s, lines, cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
