// Package pending remembers outbound requests that are waiting for a
// broadcast, so the UI can stop showing a spinner after a while. It is purely
// local: the protocol itself has no timeouts, acknowledgements or correlation.
package pending

import (
	"sort"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/agentpanel/internal/log"
	"github.com/zjrosen/agentpanel/internal/pubsub"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultCleanupInterval = time.Second
)

// Keys for requests whose answer is a whole-subsystem broadcast.
const (
	RosterKey      = "roster"
	TaskQueueKey   = "taskqueue"
	AuthKey        = "auth"
	SuggestionsKey = "suggestions"
)

// MemoryKey is the key of a memory snapshot request for one agent.
func MemoryKey(agentID string) string { return "memory:" + agentID }

// RetryKey is the key of a retry request.
func RetryKey(agentID, taskID string) string { return "retry:" + agentID + "/" + taskID }

// Expired describes a request that was never answered in time.
type Expired struct {
	Key       string
	Kind      string
	StartedAt time.Time
	Waited    time.Duration
}

type request struct {
	kind      string
	startedAt time.Time
	resolved  atomic.Bool
}

// Tracker holds pending requests in a go-cache with a TTL.
type Tracker struct {
	cache       *gocache.Cache
	timeout     time.Duration
	expirations *pubsub.Broker[Expired]
	now         func() time.Time
}

// NewTracker creates a tracker expiring requests after timeout. Expired
// entries are swept every cleanupInterval.
func NewTracker(timeout, cleanupInterval time.Duration, bufferSize int) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	t := &Tracker{
		cache:       gocache.New(timeout, cleanupInterval),
		timeout:     timeout,
		expirations: pubsub.NewBrokerWithBuffer[Expired](bufferSize),
		now:         time.Now,
	}
	t.cache.OnEvicted(t.evicted)
	return t
}

// Begin marks key as waiting. Beginning an already pending key restarts its
// timer.
func (t *Tracker) Begin(key, kind string) {
	t.cache.Set(key, &request{kind: kind, startedAt: t.now()}, t.timeout)
	log.Debug(log.CatCache, "request pending", "key", key, "kind", kind)
}

// Resolve clears key. It reports whether key was pending.
func (t *Tracker) Resolve(key string) bool {
	v, found := t.cache.Get(key)
	if !found {
		return false
	}
	if req, ok := v.(*request); ok {
		req.resolved.Store(true)
	}
	t.cache.Delete(key)
	log.Debug(log.CatCache, "request resolved", "key", key)
	return true
}

// IsPending reports whether key is waiting and not yet expired.
func (t *Tracker) IsPending(key string) bool {
	_, found := t.cache.Get(key)
	return found
}

// Pending returns the pending keys, sorted.
func (t *Tracker) Pending() []string {
	items := t.cache.Items()
	out := make([]string, 0, len(items))
	for k := range items {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Sweep expires overdue requests now instead of waiting for the janitor.
func (t *Tracker) Sweep() {
	t.cache.DeleteExpired()
}

// Expirations returns the broker of expired requests.
func (t *Tracker) Expirations() *pubsub.Broker[Expired] {
	return t.expirations
}

// Close drops every pending request without publishing and closes the broker.
func (t *Tracker) Close() {
	t.cache.OnEvicted(nil)
	t.cache.Flush()
	t.expirations.Close()
}

func (t *Tracker) evicted(key string, v any) {
	req, ok := v.(*request)
	if !ok || req.resolved.Load() {
		return
	}
	exp := Expired{Key: key, Kind: req.kind, StartedAt: req.startedAt, Waited: t.now().Sub(req.startedAt)}
	log.Warn(log.CatCache, "request timed out", "key", key, "kind", req.kind, "waited", exp.Waited)
	t.expirations.Publish(pubsub.ExpiredEvent, exp)
}
