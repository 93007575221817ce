package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/example/yachay/pkg/models"
)

// Cache holds translations keyed by normalized label
type Cache interface {
	Get(ctx context.Context, label string) (*models.Translation, bool, error)
	Set(ctx context.Context, t *models.Translation) error
	Delete(ctx context.Context, label string) error
}

type noCache struct{}

func (noCache) Get(context.Context, string) (*models.Translation, bool, error) {
	return nil, false, nil
}
func (noCache) Set(context.Context, *models.Translation) error { return nil }
func (noCache) Delete(context.Context, string) error           { return nil }

const redisKeyPrefix = "yachay:translation:"

// RedisCache stores translations as JSON strings with a TTL
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisClient connects to addr and checks the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrapf(err, "catalog: redis ping %s", addr)
	}
	return rdb, nil
}

// NewRedisCache wraps rdb
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func redisKey(label string) string {
	return redisKeyPrefix + label
}

func (c *RedisCache) Get(ctx context.Context, label string) (*models.Translation, bool, error) {
	raw, err := c.rdb.Get(ctx, redisKey(label)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "catalog: redis get")
	}
	var t models.Translation
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, false, eris.Wrap(err, "catalog: decode cached translation")
	}
	return &t, true, nil
}

func (c *RedisCache) Set(ctx context.Context, t *models.Translation) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return eris.Wrap(err, "catalog: encode translation")
	}
	if err := c.rdb.Set(ctx, redisKey(t.Label), raw, c.ttl).Err(); err != nil {
		return eris.Wrap(err, "catalog: redis set")
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, label string) error {
	if err := c.rdb.Del(ctx, redisKey(label)).Err(); err != nil {
		return eris.Wrap(err, "catalog: redis del")
	}
	return nil
}

type memoryItem struct {
	t       models.Translation
	expires time.Time
}

// MemoryCache is an in-process cache used when redis is not configured
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryCache creates a cache whose entries live for ttl. A zero ttl
// keeps entries forever.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		items: make(map[string]memoryItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, label string) (*models.Translation, bool, error) {
	c.mu.RLock()
	item, ok := c.items[label]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !item.expires.IsZero() && !c.now().Before(item.expires) {
		c.mu.Lock()
		delete(c.items, label)
		c.mu.Unlock()
		return nil, false, nil
	}
	t := item.t
	return &t, true, nil
}

func (c *MemoryCache) Set(_ context.Context, t *models.Translation) error {
	item := memoryItem{t: *t}
	if c.ttl > 0 {
		item.expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.items[t.Label] = item
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, label string) error {
	c.mu.Lock()
	delete(c.items, label)
	c.mu.Unlock()
	return nil
}
