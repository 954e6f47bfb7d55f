package messages

import "github.com/zjrosen/agentpanel/internal/protocol/schema"

// AuthProvider identifies how the host authenticated.
type AuthProvider string

const (
	ProviderGitHub    AuthProvider = "github"
	ProviderMicrosoft AuthProvider = "microsoft"
	ProviderAPIKey    AuthProvider = "apiKey"
)

// AuthStatus is the auth-status-update payload.
type AuthStatus struct {
	IsAuthenticated bool         `json:"isAuthenticated" yaml:"is_authenticated"`
	Provider        AuthProvider `json:"provider,omitempty" yaml:"provider,omitempty"`
	Account         string       `json:"account,omitempty" yaml:"account,omitempty"`
}

var (
	GetAuthStatus = schema.Define[schema.Empty](schema.Default,
		schema.SubsystemAuth, "get-auth-status", schema.ToHost, schema.None())

	AuthStatusUpdate = schema.Define[AuthStatus](schema.Default,
		schema.SubsystemAuth, "auth-status-update", schema.ToUI, schema.Object(
			schema.Field("isAuthenticated", schema.Bool()),
			schema.Optional("provider", schema.Enum(string(ProviderGitHub), string(ProviderMicrosoft), string(ProviderAPIKey))),
			schema.Optional("account", schema.String()),
		))
)
