package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// NonceStore implements domain.NonceStore with SET NX PX, so a signed
// request is accepted by at most one replica and survives restarts for the
// length of its TTL.
type NonceStore struct {
	rdb    *redis.Client
	prefix string
}

// NewNonceStore creates a NonceStore backed by the given Client.
func NewNonceStore(c *Client) *NonceStore {
	return &NonceStore{rdb: c.Underlying(), prefix: "tokenbet:nonce:"}
}

// Claim records key for ttl and reports whether no live record existed.
func (ns *NonceStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	ok, err := ns.rdb.SetNX(ctx, ns.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: claim nonce: %w", err)
	}
	return ok, nil
}

var _ domain.NonceStore = (*NonceStore)(nil)
