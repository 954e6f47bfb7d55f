package state

import (
	"sort"
	"time"

	"github.com/zjrosen/agentpanel/internal/protocol/messages"
)

// Roster is the last agents-status-update received.
type Roster struct {
	Agents    []messages.AgentStatus `json:"agents" yaml:"agents"`
	UpdatedAt time.Time              `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
}

// ReduceRoster replaces the roster.
func ReduceRoster(_ Roster, agents []messages.AgentStatus, at time.Time) Roster {
	return Roster{Agents: cloneSlice(agents), UpdatedAt: at}
}

// Agent looks up one agent by id.
func (r Roster) Agent(id string) (messages.AgentStatus, bool) {
	for _, a := range r.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return messages.AgentStatus{}, false
}

// Active returns the ids of active agents, sorted.
func (r Roster) Active() []string {
	var out []string
	for _, a := range r.Agents {
		if a.IsActive {
			out = append(out, a.ID)
		}
	}
	sort.Strings(out)
	return out
}

// TaskQueue is the last task-queue-update received.
type TaskQueue struct {
	Queue     messages.TaskQueue `json:"queue" yaml:"queue"`
	UpdatedAt time.Time          `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
}

// ReduceTaskQueue replaces the queue.
func ReduceTaskQueue(_ TaskQueue, q messages.TaskQueue, at time.Time) TaskQueue {
	next := messages.TaskQueue{
		PendingTasks:   cloneSlice(q.PendingTasks),
		CompletedTasks: cloneSlice(q.CompletedTasks),
	}
	if q.ActiveTask != nil {
		active := *q.ActiveTask
		next.ActiveTask = &active
	}
	return TaskQueue{Queue: next, UpdatedAt: at}
}

// Auth is the last auth-status-update received. Known is false until one arrives.
type Auth struct {
	Status messages.AuthStatus `json:"status" yaml:"status"`
	Known  bool                `json:"known" yaml:"known"`
}

// ReduceAuth replaces the auth status.
func ReduceAuth(_ Auth, status messages.AuthStatus) Auth {
	return Auth{Status: status, Known: true}
}

// Suggestions is the last suggestions-update received.
type Suggestions struct {
	Items []messages.Suggestion `json:"items" yaml:"items"`
}

// ReduceSuggestions replaces the suggestions.
func ReduceSuggestions(_ Suggestions, items []messages.Suggestion) Suggestions {
	return Suggestions{Items: cloneSlice(items)}
}

// ForAgent returns the suggestions of one agent.
func (s Suggestions) ForAgent(agentID string) []messages.Suggestion {
	var out []messages.Suggestion
	for _, item := range s.Items {
		if item.AgentID == agentID {
			out = append(out, item)
		}
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return append([]T(nil), in...)
}
