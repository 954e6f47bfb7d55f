package validate_test

import (
	"encoding/json"
	"testing"

	"github.com/xeipuuv/gojsonschema"
	"pgregory.net/rapid"

	"github.com/zjrosen/agentpanel/internal/protocol/messages"
	"github.com/zjrosen/agentpanel/internal/protocol/schema"
	"github.com/zjrosen/agentpanel/internal/protocol/validate"
	"github.com/zjrosen/agentpanel/internal/testutil"
)

// The exported JSON Schema of every kind must accept exactly what the
// hand-written validator accepts.
func TestValidators_AgreeWithJSONSchema(t *testing.T) {
	reg := messages.Registry()
	compiled := make(map[string]*gojsonschema.Schema)
	for _, e := range reg.Entries() {
		s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema.EnvelopeSchemaFor(e)))
		if err != nil {
			t.Fatalf("compile schema for %s: %v", e.Kind, err)
		}
		compiled[e.Kind] = s
	}

	rapid.Check(t, func(t *rapid.T) {
		v := testutil.EnvelopeLike().Draw(t, "value")
		kind, ok := validate.Envelope(v)
		if !ok || compiled[kind] == nil {
			kind = rapid.SampledFrom(testutil.KnownKinds()[3:]).Draw(t, "fallbackKind")
		}

		doc, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal candidate: %v", err)
		}
		result, err := compiled[kind].Validate(gojsonschema.NewBytesLoader(doc))
		if err != nil {
			t.Fatalf("validate %s: %v", kind, err)
		}

		hand := validate.ForKind(reg, kind)(v)
		if hand != result.Valid() {
			t.Fatalf("kind %s: validator=%v jsonschema=%v errors=%v value=%s", kind, hand, result.Valid(), result.Errors(), doc)
		}
	})
}
