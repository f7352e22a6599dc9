package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// DefaultCompetitionTTL bounds how long a cached competition may be served.
const DefaultCompetitionTTL = 30 * time.Second

// CompetitionCache implements domain.CompetitionCache.
//
// Key schema:
//
//	tokenbet:competition:{id} - hash with field "data" holding JSON
type CompetitionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCompetitionCache creates a CompetitionCache. A non-positive ttl selects
// DefaultCompetitionTTL.
func NewCompetitionCache(c *Client, ttl time.Duration) *CompetitionCache {
	if ttl <= 0 {
		ttl = DefaultCompetitionTTL
	}
	return &CompetitionCache{rdb: c.Underlying(), ttl: ttl}
}

func competitionKey(id string) string { return "tokenbet:competition:" + id }

// Set stores c with the cache TTL.
func (cc *CompetitionCache) Set(ctx context.Context, c domain.Competition) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("redis: marshal competition %s: %w", c.ID, err)
	}

	key := competitionKey(c.ID)
	pipe := cc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, cc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set competition %s: %w", c.ID, err)
	}
	return nil
}

// Get returns the cached competition or domain.ErrNotFound on a miss.
func (cc *CompetitionCache) Get(ctx context.Context, id string) (domain.Competition, error) {
	data, err := cc.rdb.HGet(ctx, competitionKey(id), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Competition{}, domain.ErrNotFound
		}
		return domain.Competition{}, fmt.Errorf("redis: get competition %s: %w", id, err)
	}

	var c domain.Competition
	if err := json.Unmarshal(data, &c); err != nil {
		return domain.Competition{}, fmt.Errorf("redis: unmarshal competition %s: %w", id, err)
	}
	return c, nil
}

// Invalidate drops the cached competition.
func (cc *CompetitionCache) Invalidate(ctx context.Context, id string) error {
	if err := cc.rdb.Del(ctx, competitionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate competition %s: %w", id, err)
	}
	return nil
}

var _ domain.CompetitionCache = (*CompetitionCache)(nil)
