package state

import (
	"sort"

	"github.com/zjrosen/agentpanel/internal/protocol/messages"
)

// Memory holds each agent's memory items in arrival order.
type Memory struct {
	byAgent map[string][]messages.MemoryItem
}

// Items returns a copy of one agent's items.
func (m Memory) Items(agentID string) []messages.MemoryItem {
	items, ok := m.byAgent[agentID]
	if !ok {
		return nil
	}
	return cloneSlice(items)
}

// Known reports whether any snapshot or delta has been received for agent.
func (m Memory) Known(agentID string) bool {
	_, ok := m.byAgent[agentID]
	return ok
}

// Agents returns every agent with memory state, sorted.
func (m Memory) Agents() []string {
	out := make([]string, 0, len(m.byAgent))
	for a := range m.byAgent {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func (m Memory) with(agentID string, items []messages.MemoryItem) Memory {
	next := make(map[string][]messages.MemoryItem, len(m.byAgent)+1)
	for a, list := range m.byAgent {
		next[a] = list
	}
	next[agentID] = items
	return Memory{byAgent: next}
}

// ReduceMemorySnapshot replaces one agent's items with the snapshot.
func ReduceMemorySnapshot(m Memory, snap messages.MemorySnapshot) Memory {
	return m.with(snap.AgentID, cloneSlice(snap.Memories))
}

// ReduceMemorySaved inserts the item, or replaces the item with the same id in
// place.
func ReduceMemorySaved(m Memory, saved messages.MemoryItemSaved) Memory {
	items := cloneSlice(m.byAgent[saved.AgentID])
	for i := range items {
		if items[i].ID == saved.Item.ID {
			items[i] = saved.Item
			return m.with(saved.AgentID, items)
		}
	}
	return m.with(saved.AgentID, append(items, saved.Item))
}

// ReduceMemoryDeleted removes the item with the given id. Deleting an unknown
// item is a no-op and returns changed false.
func ReduceMemoryDeleted(m Memory, ref messages.MemoryItemRef) (Memory, bool) {
	items := m.byAgent[ref.AgentID]
	for i := range items {
		if items[i].ID != ref.ItemID {
			continue
		}
		next := make([]messages.MemoryItem, 0, len(items)-1)
		next = append(next, items[:i]...)
		next = append(next, items[i+1:]...)
		return m.with(ref.AgentID, next), true
	}
	return m, false
}
