package presentation

import (
	"github.com/zjrosen/agentpanel/internal/protocol/schema"
)

// KindDTO describes one registered kind.
type KindDTO struct {
	Kind            string         `json:"kind" yaml:"kind"`
	Subsystem       string         `json:"subsystem" yaml:"subsystem"`
	Direction       string         `json:"direction" yaml:"direction"`
	PayloadOptional bool           `json:"payloadOptional" yaml:"payload_optional"`
	Schema          map[string]any `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// FromEntry converts a registry entry. The envelope schema is included when
// withSchema is set.
func FromEntry(e schema.Entry, withSchema bool) KindDTO {
	dto := KindDTO{
		Kind:            e.Kind,
		Subsystem:       string(e.Subsystem),
		Direction:       e.Direction.String(),
		PayloadOptional: e.PayloadOptional(),
	}
	if withSchema {
		dto.Schema = schema.EnvelopeSchemaFor(e)
	}
	return dto
}

// FromEntries converts every entry, keeping order.
func FromEntries(entries []schema.Entry, withSchema bool) []KindDTO {
	out := make([]KindDTO, len(entries))
	for i, e := range entries {
		out[i] = FromEntry(e, withSchema)
	}
	return out
}
