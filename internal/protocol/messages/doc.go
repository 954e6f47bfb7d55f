// Package messages is the catalog of envelope kinds exchanged between the UI
// and the extension host. Each subsystem declares its kinds and payload types
// in its own file; declarations register into schema.Default at init.
package messages

import "github.com/zjrosen/agentpanel/internal/protocol/schema"

// Registry returns the registry holding every kind in this package.
func Registry() *schema.Registry { return schema.Default }
