package messages

import "github.com/zjrosen/agentpanel/internal/protocol/schema"

// AgentStatus describes one agent in the roster broadcast.
type AgentStatus struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Mode         string   `json:"mode" yaml:"mode"`
	IsActive     bool     `json:"isActive" yaml:"is_active"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
	Warnings     []string `json:"warnings" yaml:"warnings"`
}

var agentStatusShape = schema.Object(
	schema.Field("id", schema.ID()),
	schema.Field("name", schema.String()),
	schema.Field("mode", schema.String()),
	schema.Field("isActive", schema.Bool()),
	schema.Field("dependencies", schema.ArrayOf(schema.String())),
	schema.Field("warnings", schema.ArrayOf(schema.String())),
)

var (
	// GetAgentsStatus asks the host to broadcast the roster.
	GetAgentsStatus = schema.Define[schema.Empty](schema.Default,
		schema.SubsystemRoster, "get-agents-status", schema.ToHost, schema.None())

	// AgentsStatusUpdate replaces the whole roster.
	AgentsStatusUpdate = schema.Define[[]AgentStatus](schema.Default,
		schema.SubsystemRoster, "agents-status-update", schema.ToUI, schema.ArrayOf(agentStatusShape))
)
