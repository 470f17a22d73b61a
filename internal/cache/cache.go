// Package cache keeps task list pages and stats in Redis using cache-aside.
// Every task mutation drops all cached entries under the prefix.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	stats  Stats
}

// Stats counts cache traffic since start.
type Stats struct {
	Hits    atomic.Uint64
	Misses  atomic.Uint64
	Sets    atomic.Uint64
	Deletes atomic.Uint64
	Errors  atomic.Uint64
}

type StatsSnapshot struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Sets    uint64  `json:"sets"`
	Deletes uint64  `json:"deletes"`
	Errors  uint64  `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

func New(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

// Connect dials addr and verifies the server answers.
func Connect(ctx context.Context, addr, prefix string, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return New(client, prefix, ttl), nil
}

// ListKey encodes every field of p, so distinct queries never share an entry.
func ListKey(p model.ListParams) string {
	p = p.Normalize()
	v := url.Values{}
	v.Set("status", string(p.Status))
	v.Set("q", p.Search)
	v.Set("sort", string(p.Sort))
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("size", strconv.Itoa(p.PageSize))
	return "list:" + v.Encode()
}

func StatsKey(today model.Date) string {
	return "stats:" + today.String()
}

func (c *Cache) GetPage(ctx context.Context, p model.ListParams) (model.TaskPage, bool, error) {
	var page model.TaskPage
	ok, err := c.get(ctx, ListKey(p), &page)
	return page, ok, err
}

func (c *Cache) SetPage(ctx context.Context, p model.ListParams, page model.TaskPage) error {
	return c.set(ctx, ListKey(p), page)
}

func (c *Cache) GetStats(ctx context.Context, today model.Date) (model.Stats, bool, error) {
	var stats model.Stats
	ok, err := c.get(ctx, StatsKey(today), &stats)
	return stats, ok, err
}

func (c *Cache) SetStats(ctx context.Context, today model.Date, stats model.Stats) error {
	return c.set(ctx, StatsKey(today), stats)
}

// Invalidate removes every key under the prefix.
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.deletePattern(ctx, "*")
}

func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		c.stats.Misses.Add(1)
		return false, nil
	}
	if err != nil {
		c.stats.Errors.Add(1)
		return false, fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.stats.Errors.Add(1)
		return false, fmt.Errorf("cache unmarshal: %w", err)
	}
	c.stats.Hits.Add(1)
	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		c.stats.Errors.Add(1)
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.stats.Errors.Add(1)
		return fmt.Errorf("cache set: %w", err)
	}
	c.stats.Sets.Add(1)
	return nil
}

func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+pattern, 100).Result()
		if err != nil {
			c.stats.Errors.Add(1)
			return fmt.Errorf("cache scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.stats.Errors.Add(1)
				return fmt.Errorf("cache delete: %w", err)
			}
			c.stats.Deletes.Add(uint64(len(keys)))
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *Cache) Snapshot() StatsSnapshot {
	s := StatsSnapshot{
		Hits:    c.stats.Hits.Load(),
		Misses:  c.stats.Misses.Load(),
		Sets:    c.stats.Sets.Load(),
		Deletes: c.stats.Deletes.Load(),
		Errors:  c.stats.Errors.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total) * 100
	}
	return s
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
