package messages

import (
	"time"

	"github.com/zjrosen/agentpanel/internal/protocol/schema"
)

// MemoryItem is one remembered fact of an agent.
type MemoryItem struct {
	ID        string   `json:"id" yaml:"id"`
	Content   string   `json:"content" yaml:"content"`
	Timestamp float64  `json:"timestamp" yaml:"timestamp"`
	Tags      []string `json:"tags" yaml:"tags"`
}

// Time converts the millisecond timestamp into a time.Time.
func (m MemoryItem) Time() time.Time {
	return time.UnixMilli(int64(m.Timestamp))
}

// MemorySnapshotRequest is the request-memory-snapshot payload.
type MemorySnapshotRequest struct {
	AgentID string `json:"agentId"`
}

// MemorySnapshot is the memory-snapshot-received payload.
type MemorySnapshot struct {
	AgentID  string       `json:"agentId"`
	Memories []MemoryItem `json:"memories"`
}

// SaveMemoryItemRequest is the save-memory-item payload.
type SaveMemoryItemRequest struct {
	AgentID string   `json:"agentId"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// MemoryItemSaved is the memory-item-saved payload.
type MemoryItemSaved struct {
	AgentID string     `json:"agentId"`
	Item    MemoryItem `json:"item"`
}

// MemoryItemRef names one item of one agent. Used in both directions of delete.
type MemoryItemRef struct {
	AgentID string `json:"agentId"`
	ItemID  string `json:"itemId"`
}

var memoryItemShape = schema.Object(
	schema.Field("id", schema.ID()),
	schema.Field("content", schema.String()),
	schema.Field("timestamp", schema.Finite()),
	schema.Field("tags", schema.ArrayOf(schema.String())),
)

var memoryItemRefShape = schema.Object(
	schema.Field("agentId", schema.ID()),
	schema.Field("itemId", schema.ID()),
)

var (
	RequestMemorySnapshot = schema.Define[MemorySnapshotRequest](schema.Default,
		schema.SubsystemMemory, "request-memory-snapshot", schema.ToHost,
		schema.Object(schema.Field("agentId", schema.ID())))

	MemorySnapshotReceived = schema.Define[MemorySnapshot](schema.Default,
		schema.SubsystemMemory, "memory-snapshot-received", schema.ToUI, schema.Object(
			schema.Field("agentId", schema.ID()),
			schema.Field("memories", schema.ArrayOf(memoryItemShape)),
		))

	SaveMemoryItem = schema.Define[SaveMemoryItemRequest](schema.Default,
		schema.SubsystemMemory, "save-memory-item", schema.ToHost, schema.Object(
			schema.Field("agentId", schema.ID()),
			schema.Field("content", schema.String()),
			schema.Field("tags", schema.ArrayOf(schema.String())),
		))

	MemoryItemSavedKind = schema.Define[MemoryItemSaved](schema.Default,
		schema.SubsystemMemory, "memory-item-saved", schema.ToUI, schema.Object(
			schema.Field("agentId", schema.ID()),
			schema.Field("item", memoryItemShape),
		))

	DeleteMemoryItem = schema.Define[MemoryItemRef](schema.Default,
		schema.SubsystemMemory, "delete-memory-item", schema.ToHost, memoryItemRefShape)

	MemoryItemDeleted = schema.Define[MemoryItemRef](schema.Default,
		schema.SubsystemMemory, "memory-item-deleted", schema.ToUI, memoryItemRefShape)
)
