// internal/store/cache.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"grantmatch-workers/internal/common/logger"
	"grantmatch-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

// CachedProfileStore fronts a ProfileStore with a Redis read-through cache.
// Cache failures degrade to the backing store; they are logged, never fatal.
type CachedProfileStore struct {
	backend ProfileStore
	redis   *redis.Client
	ttl     time.Duration
	logger  logger.Logger
}

func NewCachedProfileStore(backend ProfileStore, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedProfileStore {
	return &CachedProfileStore{
		backend: backend,
		redis:   rdb,
		ttl:     ttl,
		logger:  log,
	}
}

func profileCacheKey(id string) string {
	return fmt.Sprintf("profile:%s", id)
}

func (s *CachedProfileStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	key := profileCacheKey(id)

	cached, err := s.redis.Get(ctx, key).Result()
	if err == nil {
		var profile models.Profile
		if err := json.Unmarshal([]byte(cached), &profile); err == nil {
			return &profile, nil
		}
		// A corrupt entry falls through to the backing store and gets rewritten.
		s.logger.Warn("discarding unreadable cached profile", map[string]interface{}{
			"profile_id": id,
		})
	} else if err != redis.Nil {
		s.logger.Warn("profile cache read failed", map[string]interface{}{
			"profile_id": id,
			"error":      err.Error(),
		})
	}

	profile, err := s.backend.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(profile); err == nil {
		if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.logger.Warn("profile cache write failed", map[string]interface{}{
				"profile_id": id,
				"error":      err.Error(),
			})
		}
	}

	return profile, nil
}

// ListProfiles always hits the backing store; the full listing is only used
// by opportunity fan-out, which runs far less often than per-profile reads.
func (s *CachedProfileStore) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	return s.backend.ListProfiles(ctx)
}

// Invalidate drops a profile from the cache after an update elsewhere.
func (s *CachedProfileStore) Invalidate(ctx context.Context, id string) error {
	return s.redis.Del(ctx, profileCacheKey(id)).Err()
}
