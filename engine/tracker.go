package engine

import (
	"sync"
	"time"

	"arc/models"
)

// defaultOutboundRetention bounds how long an outbound record is kept. Any
// echo of our own publication arriving later than this is treated as foreign;
// ten minutes is far beyond any plausible transport echo latency.
const defaultOutboundRetention = 10 * time.Minute

// outboundTracker remembers which (sender, timestamp) keys this client
// published, so the transport's echo of our own message is recognized and
// not re-processed as a peer's message.
type outboundTracker struct {
	mu        sync.Mutex
	records   map[models.MessageKey]time.Time
	retention time.Duration
}

func newOutboundTracker(retention time.Duration) *outboundTracker {
	if retention <= 0 {
		retention = defaultOutboundRetention
	}
	return &outboundTracker{
		records:   make(map[models.MessageKey]time.Time),
		retention: retention,
	}
}

// record registers a locally published key. Called synchronously before the
// publish call so even a same-instant echo is classified as self.
func (t *outboundTracker) record(key models.MessageKey, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[key] = at
}

// isSelf reports whether key matches a recorded outbound publication. The
// record is kept so duplicate echoes classify the same way.
func (t *outboundTracker) isSelf(key models.MessageKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.records[key]
	return ok
}

// prune drops records older than the retention window.
func (t *outboundTracker) prune(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	pruned := 0
	for key, at := range t.records {
		if now.Sub(at) > t.retention {
			delete(t.records, key)
			pruned++
		}
	}
	return pruned
}

func (t *outboundTracker) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
