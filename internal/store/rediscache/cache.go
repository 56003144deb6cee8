// Package rediscache puts a Redis read-through cache in front of the read-only
// calendar source and service catalog.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

const defaultTTL = time.Minute

// Client is the subset of redis.Cmdable the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Config struct {
	TTL    time.Duration
	Prefix string
}

type cache struct {
	rdb    Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func newCache(rdb Client, logger *slog.Logger, cfg Config) cache {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "slotkeeper"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return cache{rdb: rdb, ttl: cfg.TTL, prefix: cfg.Prefix, logger: logger.With("component", "rediscache")}
}

func (c cache) key(kind, tenantID, id string) string {
	return c.prefix + ":" + kind + ":" + tenantID + ":" + id
}

// readThrough returns the cached value for key, or calls load and caches its result.
// Redis failures are logged and bypassed.
func readThrough[T any](ctx context.Context, c cache, key string, load func(context.Context) (T, error)) (T, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if uerr := json.Unmarshal(raw, &v); uerr == nil {
			return v, nil
		}
		c.logger.Warn("discarding undecodable cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("redis get failed", "key", key, "err", err)
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", "key", key, "err", err)
	}
	return v, nil
}

type Calendar struct {
	cache
	next store.CalendarSource
}

func NewCalendar(next store.CalendarSource, rdb Client, logger *slog.Logger, cfg Config) *Calendar {
	return &Calendar{cache: newCache(rdb, logger, cfg), next: next}
}

var _ store.CalendarSource = (*Calendar)(nil)

func (c *Calendar) GetResource(ctx context.Context, tenantID, resourceID string) (domain.Resource, error) {
	return readThrough(ctx, c.cache, c.key("resource", tenantID, resourceID), func(ctx context.Context) (domain.Resource, error) {
		return c.next.GetResource(ctx, tenantID, resourceID)
	})
}

// Invalidate drops the cached schedule for a resource.
func (c *Calendar) Invalidate(ctx context.Context, tenantID, resourceID string) error {
	return c.rdb.Del(ctx, c.key("resource", tenantID, resourceID)).Err()
}

type Catalog struct {
	cache
	next store.ServiceCatalog
}

func NewCatalog(next store.ServiceCatalog, rdb Client, logger *slog.Logger, cfg Config) *Catalog {
	return &Catalog{cache: newCache(rdb, logger, cfg), next: next}
}

var _ store.ServiceCatalog = (*Catalog)(nil)

func (c *Catalog) GetService(ctx context.Context, tenantID, serviceID string) (domain.Service, error) {
	return readThrough(ctx, c.cache, c.key("service", tenantID, serviceID), func(ctx context.Context) (domain.Service, error) {
		return c.next.GetService(ctx, tenantID, serviceID)
	})
}

// ReadyCheck pings Redis.
func ReadyCheck(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
