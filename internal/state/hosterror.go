package state

import (
	"time"

	"github.com/zjrosen/agentpanel/internal/protocol/messages"
)

// DefaultHostErrorHistory bounds HostErrors when no limit is configured.
const DefaultHostErrorHistory = 50

// HostErrorRecord is one received error envelope.
type HostErrorRecord struct {
	Error      messages.HostError `json:"error" yaml:"error"`
	ReceivedAt time.Time          `json:"receivedAt" yaml:"received_at"`
}

// HostErrors keeps the most recent host errors, oldest first.
type HostErrors struct {
	Items []HostErrorRecord `json:"items" yaml:"items"`
}

// Latest returns the newest error.
func (h HostErrors) Latest() (HostErrorRecord, bool) {
	if len(h.Items) == 0 {
		return HostErrorRecord{}, false
	}
	return h.Items[len(h.Items)-1], true
}

// ReduceHostErrors appends e, dropping the oldest entries beyond limit.
func ReduceHostErrors(h HostErrors, e messages.HostError, at time.Time, limit int) HostErrors {
	if limit <= 0 {
		limit = DefaultHostErrorHistory
	}
	items := make([]HostErrorRecord, 0, min(len(h.Items)+1, limit))
	start := 0
	if over := len(h.Items) + 1 - limit; over > 0 {
		start = over
	}
	items = append(items, h.Items[start:]...)
	items = append(items, HostErrorRecord{Error: e, ReceivedAt: at})
	return HostErrors{Items: items}
}
