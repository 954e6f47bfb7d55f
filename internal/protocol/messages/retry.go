package messages

import "github.com/zjrosen/agentpanel/internal/protocol/schema"

// RetryRequest asks the host to re-run one task on one agent.
type RetryRequest struct {
	AgentID string `json:"agentId"`
	TaskID  string `json:"taskId"`
}

// RetryResult reports how a retry went.
type RetryResult struct {
	AgentID string `json:"agentId"`
	TaskID  string `json:"taskId"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

var (
	AgentRetryRequest = schema.Define[RetryRequest](schema.Default,
		schema.SubsystemRetry, "agent-retry-request", schema.ToHost, schema.Object(
			schema.Field("agentId", schema.ID()),
			schema.Field("taskId", schema.ID()),
		))

	AgentRetryResult = schema.Define[RetryResult](schema.Default,
		schema.SubsystemRetry, "agent-retry-result", schema.ToUI, schema.Object(
			schema.Field("agentId", schema.ID()),
			schema.Field("taskId", schema.ID()),
			schema.Field("success", schema.Bool()),
			schema.Optional("message", schema.String()),
		))
)
