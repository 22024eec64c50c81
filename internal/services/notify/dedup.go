package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCooldown is the canonical dedup window applied uniformly to
// every entity-anchored notification type.
const DefaultCooldown = 30 * time.Minute

// Deduplicator is a time-bounded registry preventing the same
// (user, type, related entity) notification from firing more than once
// per cooldown window. A true return atomically records the attempt.
type Deduplicator interface {
	ShouldNotify(ctx context.Context, userID uuid.UUID, notificationType Type, relatedID string) (bool, error)
}

// Type anchors a notification to the kind of entity it refers to.
type Type string

const (
	TypeSignal Type = "signal"
	TypeTrade  Type = "trade"
	TypeSystem Type = "system"
)

// String returns string representation
func (t Type) String() string {
	return string(t)
}

func dedupKey(userID uuid.UUID, notificationType Type, relatedID string) string {
	return fmt.Sprintf("notify:%s:%s:%s", userID, notificationType, relatedID)
}

// MemoryDeduplicator is the single-node registry: a mutex-guarded map
// with periodic purging. Two near-simultaneous calls with the same key
// cannot both return true because the check and the record happen under
// one lock.
type MemoryDeduplicator struct {
	mu       sync.Mutex
	cooldown time.Duration
	entries  map[string]time.Time
	now      func() time.Time
}

// NewMemoryDeduplicator creates an in-memory dedup registry. A
// non-positive cooldown falls back to the 30m default.
func NewMemoryDeduplicator(cooldown time.Duration) *MemoryDeduplicator {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &MemoryDeduplicator{
		cooldown: cooldown,
		entries:  make(map[string]time.Time),
		now:      time.Now,
	}
}

// ShouldNotify reports whether the notification may fire and records the
// attempt when it may. An empty relatedID always passes: deduplication
// only applies to entity-anchored notifications.
func (d *MemoryDeduplicator) ShouldNotify(ctx context.Context, userID uuid.UUID, notificationType Type, relatedID string) (bool, error) {
	if relatedID == "" {
		return true, nil
	}

	key := dedupKey(userID, notificationType, relatedID)
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if recordedAt, ok := d.entries[key]; ok && now.Sub(recordedAt) < d.cooldown {
		return false, nil
	}
	d.entries[key] = now
	return true, nil
}

// GC purges entries older than the cooldown window. Runs under the same
// lock as ShouldNotify so purging cannot race a concurrent insert.
func (d *MemoryDeduplicator) GC() int {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	purged := 0
	for key, recordedAt := range d.entries {
		if now.Sub(recordedAt) >= d.cooldown {
			delete(d.entries, key)
			purged++
		}
	}
	return purged
}

// Len returns the current registry size
func (d *MemoryDeduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
