package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hermes/pkg/errors"
)

// SetNXer is the Redis capability the dedup registry needs.
type SetNXer interface {
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisDeduplicator backs the registry with Redis SET NX + TTL, which
// gives compare-and-set across processes and expiry-based garbage
// collection in one primitive.
type RedisDeduplicator struct {
	client   SetNXer
	cooldown time.Duration
}

// NewRedisDeduplicator creates a Redis-backed dedup registry. A
// non-positive cooldown falls back to the 30m default.
func NewRedisDeduplicator(client SetNXer, cooldown time.Duration) *RedisDeduplicator {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &RedisDeduplicator{client: client, cooldown: cooldown}
}

// ShouldNotify reports whether the notification may fire. The SETNX
// winner records the attempt; everyone else inside the TTL loses.
func (d *RedisDeduplicator) ShouldNotify(ctx context.Context, userID uuid.UUID, notificationType Type, relatedID string) (bool, error) {
	if relatedID == "" {
		return true, nil
	}

	ok, err := d.client.SetNX(ctx, dedupKey(userID, notificationType, relatedID), d.cooldown)
	if err != nil {
		return false, errors.Wrap(err, "dedup setnx")
	}
	return ok, nil
}
