package schema

import "fmt"

const draft07 = "http://json-schema.org/draft-07/schema#"

// EnvelopeSchema renders a standalone JSON Schema document describing a full
// envelope of the given kind.
func (r *Registry) EnvelopeSchema(kind string) (map[string]any, error) {
	e, ok := r.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return EnvelopeSchemaFor(e), nil
}

// EnvelopeSchemaFor renders the envelope schema of one entry.
func EnvelopeSchemaFor(e Entry) map[string]any {
	required := []any{"kind"}
	if !e.PayloadOptional() {
		required = append(required, "payload")
	}
	return map[string]any{
		"$schema":     draft07,
		"title":       e.Kind,
		"description": fmt.Sprintf("%s envelope (%s, %s)", e.Kind, e.Subsystem, e.Direction),
		"type":        "object",
		"properties": map[string]any{
			"kind":    map[string]any{"type": "string", "const": e.Kind},
			"payload": e.Shape.JSONSchema(),
		},
		"required": required,
	}
}

// Catalog renders every registered kind, keyed by kind.
func (r *Registry) Catalog() map[string]map[string]any {
	out := make(map[string]map[string]any)
	for _, e := range r.Entries() {
		out[e.Kind] = EnvelopeSchemaFor(e)
	}
	return out
}
