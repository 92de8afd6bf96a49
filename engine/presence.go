package engine

import (
	"sort"
	"sync"

	"arc/models"
)

// presenceMap keeps the latest known position per sender. Last-write-wins is
// decided by arrival order, not the embedded timestamp: there is no
// reordering buffer, and a stale overwrite self-corrects on the next ping.
type presenceMap struct {
	mu       sync.RWMutex
	latest   map[string]models.LocationUpdate
	lastSeen map[string]int64
}

func newPresenceMap() *presenceMap {
	return &presenceMap{
		latest:   make(map[string]models.LocationUpdate),
		lastSeen: make(map[string]int64),
	}
}

// observe unconditionally overwrites the sender's entry. seenAt is the local
// arrival time in milliseconds.
func (p *presenceMap) observe(update models.LocationUpdate, seenAt int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest[update.Sender] = update
	p.lastSeen[update.Sender] = seenAt
}

// locations returns every known position sorted by sender for stable output.
func (p *presenceMap) locations() []models.LocationUpdate {
	p.mu.RLock()
	defer p.mu.RUnlock()

	updates := make([]models.LocationUpdate, 0, len(p.latest))
	for _, update := range p.latest {
		updates = append(updates, update)
	}
	sort.Slice(updates, func(i, j int) bool {
		return updates[i].Sender < updates[j].Sender
	})
	return updates
}

// activeUsers projects the map down to who-is-around. Entries are never
// expired here; staleness cutoffs belong to the presentation layer.
func (p *presenceMap) activeUsers() []models.ActiveUser {
	p.mu.RLock()
	defer p.mu.RUnlock()

	users := make([]models.ActiveUser, 0, len(p.latest))
	for sender, update := range p.latest {
		users = append(users, models.ActiveUser{
			Sender:     sender,
			Nickname:   update.Nickname,
			LastSeenAt: p.lastSeen[sender],
		})
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Sender < users[j].Sender
	})
	return users
}
