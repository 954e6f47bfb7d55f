package state

import (
	"sort"
	"time"

	"github.com/zjrosen/agentpanel/internal/protocol/messages"
)

// RetryStatus tracks one retry of one task.
type RetryStatus struct {
	AgentID     string    `json:"agentId" yaml:"agent_id"`
	TaskID      string    `json:"taskId" yaml:"task_id"`
	Pending     bool      `json:"pending" yaml:"pending"`
	Success     bool      `json:"success" yaml:"success"`
	Message     string    `json:"message,omitempty" yaml:"message,omitempty"`
	RequestedAt time.Time `json:"requestedAt,omitempty" yaml:"requested_at,omitempty"`
	CompletedAt time.Time `json:"completedAt,omitempty" yaml:"completed_at,omitempty"`
}

// Retries is keyed by RetryKey.
type Retries struct {
	byKey map[string]RetryStatus
}

// RetryKey identifies a retry.
func RetryKey(agentID, taskID string) string {
	return agentID + "/" + taskID
}

// Get returns the status of one retry.
func (r Retries) Get(agentID, taskID string) (RetryStatus, bool) {
	s, ok := r.byKey[RetryKey(agentID, taskID)]
	return s, ok
}

// All returns every retry sorted by key.
func (r Retries) All() []RetryStatus {
	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]RetryStatus, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.byKey[k])
	}
	return out
}

func (r Retries) with(s RetryStatus) Retries {
	next := make(map[string]RetryStatus, len(r.byKey)+1)
	for k, v := range r.byKey {
		next[k] = v
	}
	next[RetryKey(s.AgentID, s.TaskID)] = s
	return Retries{byKey: next}
}

// ReduceRetryRequested marks a retry as pending, clearing any earlier result.
func ReduceRetryRequested(r Retries, req messages.RetryRequest, at time.Time) Retries {
	return r.with(RetryStatus{AgentID: req.AgentID, TaskID: req.TaskID, Pending: true, RequestedAt: at})
}

// ReduceRetryResult records the host's verdict. A result for a retry this
// session never requested is still recorded.
func ReduceRetryResult(r Retries, res messages.RetryResult, at time.Time) Retries {
	prev := r.byKey[RetryKey(res.AgentID, res.TaskID)]
	return r.with(RetryStatus{
		AgentID:     res.AgentID,
		TaskID:      res.TaskID,
		Success:     res.Success,
		Message:     res.Message,
		RequestedAt: prev.RequestedAt,
		CompletedAt: at,
	})
}
