package testutil

import (
	"testing"

	"github.com/zjrosen/agentpanel/internal/protocol/messages"
)

// StandardRoster is a planner/coder/reviewer trio where the reviewer waits on
// the coder and the coder carries a warning.
func StandardRoster(t testing.TB) *RosterBuilder {
	t.Helper()
	return NewRoster(t).
		WithAgent("planner-1", "Planner", Mode("planner")).
		WithAgent("coder-1", "Coder", Mode("coder"), DependsOn("planner-1"), Warning("context window at 80%")).
		WithAgent("reviewer-1", "Reviewer", Mode("reviewer"), Inactive(), DependsOn("coder-1"))
}

// StandardTaskQueue has one active task, one pending and one completed.
func StandardTaskQueue() messages.TaskQueue {
	created := 1700000000000.0
	return messages.TaskQueue{
		ActiveTask: &messages.Task{
			ID: "task-2", Description: "Implement parser", Status: messages.TaskActive,
			AgentID: "coder-1", CreatedAt: &created,
		},
		PendingTasks: []messages.Task{
			{ID: "task-3", Description: "Review parser", Status: messages.TaskPending},
		},
		CompletedTasks: []messages.Task{
			{ID: "task-1", Description: "Plan parser", Status: messages.TaskCompleted, AgentID: "planner-1"},
		},
	}
}

// TestMemoryItem is the single memory of the end-to-end snapshot scenario.
func TestMemoryItem() messages.MemoryItem {
	return messages.MemoryItem{ID: "m1", Content: "Memoria test 1", Timestamp: 1000, Tags: []string{"test"}}
}

// MemorySnapshot builds a memory-snapshot-received payload.
func MemorySnapshot(agentID string, items ...messages.MemoryItem) messages.MemorySnapshot {
	if items == nil {
		items = []messages.MemoryItem{}
	}
	return messages.MemorySnapshot{AgentID: agentID, Memories: items}
}
