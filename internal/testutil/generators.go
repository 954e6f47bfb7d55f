package testutil

import (
	"pgregory.net/rapid"

	"github.com/zjrosen/agentpanel/internal/protocol/messages"
)

// Scalar generates JSON scalars in their decoded Go form.
func Scalar() *rapid.Generator[any] {
	return rapid.OneOf(
		rapid.Just[any](nil),
		rapid.Map(rapid.Bool(), func(b bool) any { return b }),
		rapid.Map(rapid.IntRange(-1_000_000, 1_000_000), func(n int) any { return float64(n) }),
		rapid.Map(rapid.Float64Range(-1e6, 1e6), func(f float64) any { return f }),
		rapid.Map(rapid.String(), func(s string) any { return s }),
		rapid.Map(rapid.SampledFrom([]string{"", " ", "a1", "t1", "pending", "github"}), func(s string) any { return s }),
	)
}

// JSONValue generates arbitrary decoded JSON values nested up to depth levels.
func JSONValue(depth int) *rapid.Generator[any] {
	if depth <= 0 {
		return Scalar()
	}
	inner := JSONValue(depth - 1)
	return rapid.OneOf(
		Scalar(),
		rapid.Map(rapid.SliceOfN(inner, 0, 4), func(s []any) any { return s }),
		rapid.Map(rapid.MapOfN(FieldName(), inner, 0, 5), func(m map[string]any) any { return m }),
	)
}

// FieldName favours the property names the catalog uses so generated records
// sometimes come close to valid payloads.
func FieldName() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.SampledFrom([]string{
			"kind", "payload", "id", "name", "mode", "isActive", "dependencies", "warnings",
			"agentId", "threadId", "taskId", "itemId", "content", "timestamp", "tags",
			"memories", "item", "success", "message", "code", "details",
			"activeTask", "pendingTasks", "completedTasks", "status", "description",
		}),
		rapid.StringN(0, 6, -1),
	)
}

// KnownKinds lists every kind in the catalog plus a few strangers.
func KnownKinds() []string {
	kinds := []string{"totally-unknown", "", "Agent_Typing"}
	for _, e := range messages.Registry().Entries() {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// EnvelopeLike generates values shaped roughly like envelopes: usually a
// record with a kind drawn from KnownKinds and an arbitrary payload, sometimes
// something else entirely.
func EnvelopeLike() *rapid.Generator[any] {
	return rapid.Custom(func(t *rapid.T) any {
		switch rapid.IntRange(0, 9).Draw(t, "variant") {
		case 0:
			return JSONValue(3).Draw(t, "arbitrary")
		case 1:
			return map[string]any{"kind": JSONValue(1).Draw(t, "kindValue")}
		default:
			env := map[string]any{"kind": rapid.SampledFrom(KnownKinds()).Draw(t, "kind")}
			if rapid.Bool().Draw(t, "hasPayload") {
				env["payload"] = JSONValue(3).Draw(t, "payload")
			}
			return env
		}
	})
}

// TypingStep is one generated typing event.
type TypingStep struct {
	Started  bool
	AgentID  string
	ThreadID string
}

// TypingSteps generates a sequence of typing events over a small key space so
// the same (thread, agent) pair recurs.
func TypingSteps() *rapid.Generator[[]TypingStep] {
	step := rapid.Custom(func(t *rapid.T) TypingStep {
		return TypingStep{
			Started:  rapid.Bool().Draw(t, "started"),
			AgentID:  rapid.SampledFrom([]string{"a1", "a2", "a3", "", "  "}).Draw(t, "agent"),
			ThreadID: rapid.SampledFrom([]string{"t1", "t2", "t3"}).Draw(t, "thread"),
		}
	})
	return rapid.SliceOfN(step, 0, 40)
}
