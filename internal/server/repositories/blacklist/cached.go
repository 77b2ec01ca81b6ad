package blacklist

import (
	"context"
	"time"

	"github.com/fittrack/server/internal/logging"
	"github.com/fittrack/server/internal/server/models"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "revoked:"

// Cache is the subset of the redis client the ledger uses. *redis.Client
// satisfies it.
type Cache interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedLedger fronts a durable ledger with a Redis existence cache so the
// per-request IsRevoked check does not hit Postgres. Only positive answers
// are cached (keyed until the token's own expiry); absence always falls
// through to the durable store. Cache failures degrade to the durable store
// and are logged, never surfaced.
type CachedLedger struct {
	ledger Ledger
	rdb    Cache
	logger logging.Logger
}

func NewCachedLedger(ledger Ledger, rdb Cache, logger logging.Logger) *CachedLedger {
	return &CachedLedger{ledger: ledger, rdb: rdb, logger: logger}
}

func (c *CachedLedger) Revoke(ctx context.Context, entry *models.RevokedToken) error {
	if err := c.ledger.Revoke(ctx, entry); err != nil {
		return err
	}
	c.cacheEntry(ctx, entry)
	return nil
}

// Prime writes revocations that are already durable into the cache. Services
// call it after a transactional revoke commits, since those writes bypass
// this wrapper.
func (c *CachedLedger) Prime(ctx context.Context, entries []*models.RevokedToken) {
	for _, e := range entries {
		c.cacheEntry(ctx, e)
	}
}

// cacheEntry is best-effort; the durable row is the source of truth.
func (c *CachedLedger) cacheEntry(ctx context.Context, entry *models.RevokedToken) {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return
	}
	if err := c.rdb.Set(ctx, cacheKeyPrefix+entry.JTI, "1", ttl).Err(); err != nil {
		c.logger.Warn(ctx, "revocation cache write failed", "error", err)
	}
}

func (c *CachedLedger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, cacheKeyPrefix+jti).Result()
	if err == nil && n > 0 {
		return true, nil
	}
	if err != nil {
		c.logger.Warn(ctx, "revocation cache read failed", "error", err)
	}

	return c.ledger.IsRevoked(ctx, jti)
}

func (c *CachedLedger) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	// Cache entries expire on their own; only the durable rows need pruning.
	return c.ledger.PruneExpired(ctx, now)
}
