package messages

import "github.com/zjrosen/agentpanel/internal/protocol/schema"

// TypingEvent is the payload of AGENT_TYPING and AGENT_TYPING_DONE.
// AgentID is deliberately a plain string: an empty or missing agent id is a
// known degenerate case that the typing reducer ignores rather than a
// malformed envelope.
type TypingEvent struct {
	AgentID  string `json:"agentId"`
	ThreadID string `json:"threadId"`
}

var typingShape = schema.Object(
	schema.Optional("agentId", schema.String()),
	schema.Field("threadId", schema.String()),
)

var (
	AgentTyping = schema.Define[TypingEvent](schema.Default,
		schema.SubsystemTyping, "AGENT_TYPING", schema.ToUI, typingShape)

	AgentTypingDone = schema.Define[TypingEvent](schema.Default,
		schema.SubsystemTyping, "AGENT_TYPING_DONE", schema.ToUI, typingShape)
)
