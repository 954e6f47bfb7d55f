package schema

import "encoding/json"

// Envelope is the only unit that crosses the process boundary. It carries no
// identity beyond its content: no id, no sequence number, no correlation.
type Envelope struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload,omitempty"`
}

// Generic converts a Go value into the untyped form a decoded envelope has on
// the receiving side (map[string]any, []any, float64, string, bool, nil).
// Outbound payloads pass through it so they are checked exactly as the host
// would see them.
func Generic(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, ok := v.(Empty); ok {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
