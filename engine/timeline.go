package engine

import (
	"sort"
	"sync"

	"arc/models"
)

// timeline holds every message row keyed by (sender, id) and presents them
// sorted ascending by authoring timestamp regardless of arrival order. Rows
// are mutated in place as decryption resolves; nothing is ever removed.
type timeline struct {
	mu   sync.RWMutex
	rows map[models.MessageKey]*models.Message
}

func newTimeline() *timeline {
	return &timeline{rows: make(map[models.MessageKey]*models.Message)}
}

// upsert inserts the row if its key is new, otherwise merges it into the
// existing row without regressing resolved state. Returns true on insert.
func (t *timeline) upsert(msg models.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := msg.Key()
	existing, ok := t.rows[key]
	if !ok {
		row := msg
		t.rows[key] = &row
		return true
	}

	if msg.SenderNickname != "" {
		existing.SenderNickname = msg.SenderNickname
	}
	if msg.Content != "" {
		existing.Content = msg.Content
	}
	if len(msg.Kit) > 0 {
		existing.Kit = msg.Kit
	}
	if msg.Condition != "" {
		existing.Condition = msg.Condition
	}
	if msg.Delivered {
		existing.Delivered = true
	}
	if msg.Mine {
		existing.Mine = true
	}
	// A resolved row never goes back to pending on a duplicate delivery.
	if existing.State != models.DecryptionSuccess {
		existing.State = msg.State
	}
	return false
}

// markDelivered flips the delivered flag on an existing row.
func (t *timeline) markDelivered(key models.MessageKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	row, ok := t.rows[key]
	if !ok {
		return false
	}
	row.Delivered = true
	return true
}

// setDecrypted transitions a row to success with the recovered plaintext.
// The kit is retained for later re-verification.
func (t *timeline) setDecrypted(key models.MessageKey, content string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	row, ok := t.rows[key]
	if !ok {
		return false
	}
	row.Content = content
	row.State = models.DecryptionSuccess
	return true
}

// setFailed transitions a row to failed, keeping the kit for retry. A row
// that already resolved keeps its plaintext; a late failed attempt for the
// same key must not mask it.
func (t *timeline) setFailed(key models.MessageKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	row, ok := t.rows[key]
	if !ok || row.State == models.DecryptionSuccess {
		return false
	}
	row.State = models.DecryptionFailed
	return true
}

// resolved reports whether the row exists and has decrypted successfully.
func (t *timeline) resolved(key models.MessageKey) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row, ok := t.rows[key]
	return ok && row.State == models.DecryptionSuccess
}

// setPending moves a failed row back to pending ahead of a retry attempt.
// Returns the retained kit and condition, or false when the row is missing
// or not in failed state.
func (t *timeline) setPending(key models.MessageKey) (models.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	row, ok := t.rows[key]
	if !ok || row.State != models.DecryptionFailed {
		return models.Message{}, false
	}
	row.State = models.DecryptionPending
	return *row, true
}

// find locates rows by authoring timestamp alone, for the retry entry point
// where the caller addresses a message by its visible id.
func (t *timeline) find(id int64) []models.MessageKey {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var keys []models.MessageKey
	for key := range t.rows {
		if key.ID == id {
			keys = append(keys, key)
		}
	}
	return keys
}

// snapshot returns every row sorted ascending by id, sender breaking ties.
func (t *timeline) snapshot() []models.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows := make([]models.Message, 0, len(t.rows))
	for _, row := range t.rows {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ID != rows[j].ID {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].Sender < rows[j].Sender
	})
	return rows
}

// visible applies the display policy: everything self-authored is shown, and
// foreign rows only when they carry (or carried) an access condition. Foreign
// cleartext never enters the rendered view.
func (t *timeline) visible() []models.Message {
	all := t.snapshot()
	rows := make([]models.Message, 0, len(all))
	for _, row := range all {
		if row.Mine || row.Encrypted() {
			rows = append(rows, row)
		}
	}
	return rows
}
