// Package replaycache provides a Redis-backed replay cache for
// reference-based idempotency lookups.
//
// A cached record answers duplicate Apply calls without a round trip to
// the durable store. The cache is strictly best-effort: Redis being down
// degrades to store lookups, never to errors.
package replaycache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	ledger "github.com/dway/ledger"
)

// Compile-time interface check.
var _ ledger.ReplayCache = (*Cache)(nil)

// DefaultTTL bounds how long a replay record stays cached. Replays past
// the TTL fall back to the store and repopulate the cache.
const DefaultTTL = 24 * time.Hour

// keyPrefix namespaces replay keys in a shared Redis instance.
const keyPrefix = "ledger:replay"

// Cache caches replay records in Redis.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the record expiry. Defaults to DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithLogger sets the logger for cache failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a Cache on top of an existing Redis client.
func New(client redis.UniversalClient, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get implements ledger.ReplayCache. A Redis error reads as a miss.
func (c *Cache) Get(ctx context.Context, ledgerName, reference string) (*ledger.ReplayRecord, bool) {
	data, err := c.client.Get(ctx, c.key(ledgerName, reference)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("replaycache: get failed",
				"ledger", ledgerName,
				"reference", reference,
				"error", err,
			)
		}
		return nil, false
	}
	var rec ledger.ReplayRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		c.logger.Warn("replaycache: corrupt record",
			"ledger", ledgerName,
			"reference", reference,
			"error", err,
		)
		return nil, false
	}
	return &rec, true
}

// Set implements ledger.ReplayCache. Failures are logged and dropped.
func (c *Cache) Set(ctx context.Context, ledgerName, reference string, rec *ledger.ReplayRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		c.logger.Warn("replaycache: marshal failed",
			"ledger", ledgerName,
			"reference", reference,
			"error", err,
		)
		return
	}
	if err := c.client.Set(ctx, c.key(ledgerName, reference), data, c.ttl).Err(); err != nil {
		c.logger.Warn("replaycache: set failed",
			"ledger", ledgerName,
			"reference", reference,
			"error", err,
		)
	}
}

func (c *Cache) key(ledgerName, reference string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, ledgerName, reference)
}
