// internal/store/dedupe.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDedupeLog records one sent notification per (profile, opportunity, day)
// in Redis. SetNX makes MarkSent first-writer-wins under concurrent dispatch
// runs, and the key carries its own expiry so the log needs no sweeper.
type RedisDedupeLog struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

func NewRedisDedupeLog(rdb *redis.Client, ttl time.Duration) *RedisDedupeLog {
	return &RedisDedupeLog{
		redis: rdb,
		ttl:   ttl,
		now:   time.Now,
	}
}

func (d *RedisDedupeLog) key(profileID, opportunityID string) string {
	day := d.now().UTC().Format("2006-01-02")
	return fmt.Sprintf("notify:sent:%s:%s:%s", profileID, opportunityID, day)
}

// MarkSent claims today's notification slot. Returns true when this caller
// won the claim, false when some earlier run already sent today.
func (d *RedisDedupeLog) MarkSent(ctx context.Context, profileID, opportunityID string) (bool, error) {
	ok, err := d.redis.SetNX(ctx, d.key(profileID, opportunityID), "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe mark sent: %w", err)
	}
	return ok, nil
}

func (d *RedisDedupeLog) AlreadySentToday(ctx context.Context, profileID, opportunityID string) (bool, error) {
	n, err := d.redis.Exists(ctx, d.key(profileID, opportunityID)).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe check: %w", err)
	}
	return n > 0, nil
}
