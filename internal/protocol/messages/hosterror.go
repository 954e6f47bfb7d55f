package messages

import "github.com/zjrosen/agentpanel/internal/protocol/schema"

// HostError is a user-facing error reported by the host. It is a normal
// payload, not a protocol failure.
type HostError struct {
	Message string `json:"message" yaml:"message"`
	Code    string `json:"code,omitempty" yaml:"code,omitempty"`
	Details any    `json:"details,omitempty" yaml:"details,omitempty"`
}

var ErrorKind = schema.Define[HostError](schema.Default,
	schema.SubsystemError, "error", schema.ToUI, schema.Object(
		schema.Field("message", schema.String()),
		schema.Optional("code", schema.String()),
		schema.Optional("details", schema.Any()),
	))
