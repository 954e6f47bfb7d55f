package inspector

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"github.com/zjrosen/agentpanel/internal/keys"
)

const (
	headerHeight = 5
	footerHeight = 1
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"})
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#047857", Dark: "#10B981"})
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#EF4444"})
	payloadStyle = lipgloss.NewStyle().PaddingLeft(4).Foreground(lipgloss.AdaptiveColor{Light: "#4B5563", Dark: "#D1D5DB"})
)

// View renders the header, the event log and the key help.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) lineWidth() int {
	if m.width <= 0 {
		return 80
	}
	return m.width
}

func (m Model) renderHeader() string {
	w := m.lineWidth()
	title := "agentpanel inspector"
	if m.title != "" {
		title += "  " + m.title
	}
	source := ""
	if m.sourceDone {
		source = "  (end of input)"
	}

	counts := fmt.Sprintf("handled %d  dropped %d  handler errors %d  expired %d",
		m.handled, m.dropped, m.handlerErrs, m.expired)

	roster := m.session.Roster()
	agents := fmt.Sprintf("agents %d (active: %s)", len(roster.Agents), joinOrDash(roster.Active()))
	if q := m.session.TaskQueue().Queue; q.ActiveTask != nil {
		agents += fmt.Sprintf("  task %s (%d pending)", q.ActiveTask.ID, len(q.PendingTasks))
	}

	typingState := m.session.Typing()
	var typing []string
	for _, thread := range typingState.Threads() {
		if who := typingState.Agents(thread); len(who) > 0 {
			typing = append(typing, thread+": "+strings.Join(who, ","))
		}
	}
	typingLine := "typing " + joinOrDash(typing)
	if m.lastApply != nil {
		typingLine += fmt.Sprintf("  last %s@%s", m.lastApply.AgentID, m.lastApply.ThreadID)
	}

	lines := []string{
		titleStyle.Render(ansi.Truncate(title+source, w, "…")),
		ansi.Truncate(counts, w, "…"),
		ansi.Truncate(agents, w, "…"),
		ansi.Truncate(typingLine, w, "…"),
		mutedStyle.Render(strings.Repeat("─", w)),
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	var parts []string
	for _, b := range keys.Inspector.ShortHelp() {
		parts = append(parts, b.Help().Key+" "+b.Help().Desc)
	}
	follow := "follow off"
	if m.follow {
		follow = "follow on"
	}
	parts = append(parts, follow)
	return mutedStyle.Render(ansi.Truncate(strings.Join(parts, " • "), m.lineWidth(), "…"))
}

func (m Model) renderEvents() string {
	if len(m.events) == 0 {
		return mutedStyle.Render("waiting for envelopes…")
	}
	w := m.lineWidth()
	var b strings.Builder
	for i, ev := range m.events {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderRow(ev, w))
		if m.showPayloads && ev.payload != "" {
			b.WriteString("\n")
			b.WriteString(payloadStyle.Render(wordwrap.String(ev.payload, max(w-4, 20))))
		}
	}
	return b.String()
}

const kindColumnWidth = 26

func renderRow(ev eventRow, width int) string {
	kind := ev.kind
	if kind == "" {
		kind = "<no kind>"
	}
	prefix := ev.at.Format("15:04:05")
	if ev.line > 0 {
		prefix += fmt.Sprintf(" #%d", ev.line)
	}

	var status string
	switch ev.status {
	case statusHandled:
		status = okStyle.Render("ok")
	case statusHandlerError:
		status = errorStyle.Render("error")
	case statusDropped:
		status = warnStyle.Render("dropped")
	case statusExpired:
		status = warnStyle.Render("expired")
	}

	row := fmt.Sprintf("%s %s %s", mutedStyle.Render(prefix), status, runewidth.FillRight(kind, kindColumnWidth))
	if ev.detail != "" {
		row += "  " + mutedStyle.Render(ev.detail)
	}
	return ansi.Truncate(row, width, "…")
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, " ")
}
