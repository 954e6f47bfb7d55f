package session

import (
	"github.com/zjrosen/agentpanel/internal/protocol/messages"
	"github.com/zjrosen/agentpanel/internal/state"
)

// Roster returns the last agents-status-update.
func (s *Session) Roster() state.Roster { return s.roster.Load() }

// TaskQueue returns the last task-queue-update.
func (s *Session) TaskQueue() state.TaskQueue { return s.queue.Load() }

// Memories returns the known memories of one agent.
func (s *Session) Memories(agentID string) []messages.MemoryItem {
	return s.memory.Load().Items(agentID)
}

// Memory returns the whole memory state.
func (s *Session) Memory() state.Memory { return s.memory.Load() }

// Typing returns the typing state.
func (s *Session) Typing() state.TypingState { return s.typing.State() }

// Retry returns the status of one retry.
func (s *Session) Retry(agentID, taskID string) (state.RetryStatus, bool) {
	return s.retries.Load().Get(agentID, taskID)
}

// HostErrors returns the recent host errors, oldest first.
func (s *Session) HostErrors() state.HostErrors { return s.hostErrors.Load() }

// Auth returns the last auth status.
func (s *Session) Auth() state.Auth { return s.auth.Load() }

// Suggestions returns the last suggestions.
func (s *Session) Suggestions() state.Suggestions { return s.suggestions.Load() }

// Snapshot is a serializable view of everything the session knows.
type Snapshot struct {
	SessionID   string                           `json:"sessionId" yaml:"session_id"`
	Agents      []messages.AgentStatus           `json:"agents" yaml:"agents"`
	TaskQueue   messages.TaskQueue               `json:"taskQueue" yaml:"task_queue"`
	Memories    map[string][]messages.MemoryItem `json:"memories" yaml:"memories"`
	Typing      map[string][]string              `json:"typing" yaml:"typing"`
	Retries     []state.RetryStatus              `json:"retries" yaml:"retries"`
	HostErrors  []state.HostErrorRecord          `json:"hostErrors" yaml:"host_errors"`
	Auth        *messages.AuthStatus             `json:"auth,omitempty" yaml:"auth,omitempty"`
	Suggestions []messages.Suggestion            `json:"suggestions" yaml:"suggestions"`
	Pending     []string                         `json:"pending" yaml:"pending"`
	Handled     int64                            `json:"handled" yaml:"handled"`
	Dropped     int64                            `json:"dropped" yaml:"dropped"`
}

// Snapshot collects every view into one value.
func (s *Session) Snapshot() Snapshot {
	mem := s.memory.Load()
	memories := make(map[string][]messages.MemoryItem)
	for _, agent := range mem.Agents() {
		memories[agent] = mem.Items(agent)
	}

	typingState := s.typing.State()
	typing := make(map[string][]string)
	for _, thread := range typingState.Threads() {
		if agents := typingState.Agents(thread); len(agents) > 0 {
			typing[thread] = agents
		}
	}

	snap := Snapshot{
		SessionID:   s.id,
		Agents:      s.roster.Load().Agents,
		TaskQueue:   s.queue.Load().Queue,
		Memories:    memories,
		Typing:      typing,
		Retries:     s.retries.Load().All(),
		HostErrors:  s.hostErrors.Load().Items,
		Suggestions: s.suggestions.Load().Items,
		Pending:     s.tracker.Pending(),
	}
	if auth := s.auth.Load(); auth.Known {
		status := auth.Status
		snap.Auth = &status
	}
	snap.Handled, snap.Dropped = s.dispatcher.Stats()
	return snap
}
