package messages

import "github.com/zjrosen/agentpanel/internal/protocol/schema"

// SuggestionKind classifies a suggestion.
type SuggestionKind string

const (
	SuggestRefactor SuggestionKind = "refactor"
	SuggestFix      SuggestionKind = "fix"
	SuggestTest     SuggestionKind = "test"
	SuggestDocs     SuggestionKind = "docs"
)

// Suggestion is one agent proposal shown to the user.
type Suggestion struct {
	ID      string         `json:"id" yaml:"id"`
	AgentID string         `json:"agentId" yaml:"agent_id"`
	Text    string         `json:"text" yaml:"text"`
	Kind    SuggestionKind `json:"kind" yaml:"kind"`
}

// SuggestionsRequest optionally narrows suggestions to one agent.
type SuggestionsRequest struct {
	AgentID string `json:"agentId,omitempty"`
}

var (
	GetSuggestions = schema.Define[SuggestionsRequest](schema.Default,
		schema.SubsystemSuggestions, "get-suggestions", schema.ToHost, schema.Object(
			schema.Optional("agentId", schema.ID()),
		))

	SuggestionsUpdate = schema.Define[[]Suggestion](schema.Default,
		schema.SubsystemSuggestions, "suggestions-update", schema.ToUI, schema.ArrayOf(schema.Object(
			schema.Field("id", schema.ID()),
			schema.Field("agentId", schema.ID()),
			schema.Field("text", schema.String()),
			schema.Field("kind", schema.Enum(string(SuggestRefactor), string(SuggestFix), string(SuggestTest), string(SuggestDocs))),
		)))
)
