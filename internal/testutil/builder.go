// Package testutil builds envelopes and property-test generators shared by
// the protocol, state and session tests.
package testutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/agentpanel/internal/protocol/messages"
	"github.com/zjrosen/agentpanel/internal/protocol/schema"
)

// Envelope returns the decoded form of {kind, payload} exactly as the UI would
// see it after a structured clone. A nil payload is omitted.
func Envelope(t testing.TB, kind string, payload any) map[string]any {
	t.Helper()
	env := map[string]any{"kind": kind}
	if payload == nil {
		return env
	}
	generic, err := schema.Generic(payload)
	require.NoError(t, err)
	if generic != nil {
		env["payload"] = generic
	}
	return env
}

// Decode parses raw JSON into an untyped value.
func Decode(t testing.TB, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

// RosterBuilder accumulates agents for an agents-status-update envelope.
type RosterBuilder struct {
	t      testing.TB
	agents []messages.AgentStatus
}

// NewRoster starts an empty roster.
func NewRoster(t testing.TB) *RosterBuilder {
	t.Helper()
	return &RosterBuilder{t: t}
}

// AgentOption customizes one roster agent.
type AgentOption func(*messages.AgentStatus)

// Mode sets the agent mode.
func Mode(mode string) AgentOption {
	return func(a *messages.AgentStatus) { a.Mode = mode }
}

// Inactive marks the agent as not active.
func Inactive() AgentOption {
	return func(a *messages.AgentStatus) { a.IsActive = false }
}

// DependsOn adds dependencies.
func DependsOn(ids ...string) AgentOption {
	return func(a *messages.AgentStatus) { a.Dependencies = append(a.Dependencies, ids...) }
}

// Warning adds warnings.
func Warning(msgs ...string) AgentOption {
	return func(a *messages.AgentStatus) { a.Warnings = append(a.Warnings, msgs...) }
}

// WithAgent adds an agent. Agents default to active, mode "coder", no
// dependencies and no warnings.
func (b *RosterBuilder) WithAgent(id, name string, opts ...AgentOption) *RosterBuilder {
	a := messages.AgentStatus{
		ID:           id,
		Name:         name,
		Mode:         "coder",
		IsActive:     true,
		Dependencies: []string{},
		Warnings:     []string{},
	}
	for _, opt := range opts {
		opt(&a)
	}
	b.agents = append(b.agents, a)
	return b
}

// Agents returns the typed roster.
func (b *RosterBuilder) Agents() []messages.AgentStatus {
	return append([]messages.AgentStatus(nil), b.agents...)
}

// Envelope renders the agents-status-update envelope.
func (b *RosterBuilder) Envelope() map[string]any {
	b.t.Helper()
	agents := b.agents
	if agents == nil {
		agents = []messages.AgentStatus{}
	}
	return Envelope(b.t, messages.AgentsStatusUpdate.Name(), agents)
}
