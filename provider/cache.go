package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vendalink/routegate/role"
)

// ErrRedisUnavailable is returned (wrapped) when the cache backend fails.
var ErrRedisUnavailable = errors.New("redis unavailable")

// CacheConfig controls CachedChecker TTLs and key layout.
type CacheConfig struct {
	// Prefix namespaces all cache keys. Empty means "rg".
	Prefix string
	// PositiveTTL caches granted memberships. Zero means 60s.
	PositiveTTL time.Duration
	// NegativeTTL caches denied memberships, kept short so fresh grants
	// (bootstrap, promotion) surface quickly. Zero means 15s.
	NegativeTTL time.Duration
}

// CachedChecker wraps a membership checker with a Redis read-through cache
// for the resolver path. The common case — a role already resolved and
// sufficient — must not cost a network round-trip per navigation.
//
// Cache faults fail open to the live check, never to a grant: when Redis is
// down the answer still comes from the oracle.
type CachedChecker struct {
	next   role.MembershipChecker
	redis  redis.UniversalClient
	prefix string
	posTTL time.Duration
	negTTL time.Duration
}

// NewCachedChecker wraps next with a Redis cache.
func NewCachedChecker(next role.MembershipChecker, client redis.UniversalClient, cfg CacheConfig) *CachedChecker {
	if cfg.Prefix == "" {
		cfg.Prefix = "rg"
	}
	if cfg.PositiveTTL <= 0 {
		cfg.PositiveTTL = time.Minute
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = 15 * time.Second
	}

	return &CachedChecker{
		next:   next,
		redis:  client,
		prefix: cfg.Prefix,
		posTTL: cfg.PositiveTTL,
		negTTL: cfg.NegativeTTL,
	}
}

func (c *CachedChecker) key(identityID string, r role.Role) string {
	return c.prefix + ":rm:" + identityID + ":" + r.String()
}

// CheckRoleMembership answers from cache when possible, otherwise asks the
// wrapped checker and caches the answer. Oracle errors are never cached.
func (c *CachedChecker) CheckRoleMembership(ctx context.Context, identityID string, r role.Role) (bool, error) {
	key := c.key(identityID, r)

	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		return cached == "1", nil
	}
	if !errors.Is(err, redis.Nil) {
		// Cache fault: fall through to the live oracle.
		return c.checkAndStore(ctx, key, identityID, r)
	}

	return c.checkAndStore(ctx, key, identityID, r)
}

func (c *CachedChecker) checkAndStore(ctx context.Context, key, identityID string, r role.Role) (bool, error) {
	granted, err := c.next.CheckRoleMembership(ctx, identityID, r)
	if err != nil {
		return false, err
	}

	value := "0"
	ttl := c.negTTL
	if granted {
		value = "1"
		ttl = c.posTTL
	}
	// Best-effort write; a failed store only costs the next lookup.
	_ = c.redis.Set(ctx, key, value, ttl).Err()

	return granted, nil
}

// Invalidate drops every cached tier for an identity. Called on identity
// change and sign-out so stale memberships never leak across sessions.
func (c *CachedChecker) Invalidate(ctx context.Context, identityID string) error {
	keys := make([]string, 0, len(role.Descending)+1)
	for _, tier := range role.Descending {
		keys = append(keys, c.key(identityID, tier))
	}
	keys = append(keys, c.key(identityID, role.User))

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
