package fallback

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// probeEntry is the cached shape of one (repo_type, namespace, name)
// existence probe, spec §4.H. Negative probes (Exists=false) are
// cached too, so a repeated miss within the TTL does not re-probe.
type probeEntry struct {
	SourceURL  string    `msgpack:"source_url"`
	SourceName string    `msgpack:"source_name"`
	SourceType string    `msgpack:"source_type"`
	Exists     bool      `msgpack:"exists"`
	CheckedAt  time.Time `msgpack:"checked_at"`
}

// Cache is a TTL-bounded existence-probe cache over Redis, msgpack-
// encoded the way the teacher's wire payloads are, generalized from
// common/mredis's plain get/set cache-aside helper.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache builds a Cache against an already-configured Redis client.
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func cacheKey(repoType, namespace, name string) string {
	return "fallback:probe:" + repoType + ":" + namespace + ":" + name
}

// Get returns the cached probe for (repoType, namespace, name), and
// whether it was present at all (a cache miss, not the probe's own
// Exists field, which may legitimately be false).
func (c *Cache) Get(ctx context.Context, repoType, namespace, name string) (*probeEntry, bool, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(repoType, namespace, name)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	var entry probeEntry
	if err := msgpack.Unmarshal(raw, &entry); err != nil {
		return nil, false, err
	}

	return &entry, true, nil
}

// Set stores entry under (repoType, namespace, name) with the cache's
// configured TTL, positive or negative.
func (c *Cache) Set(ctx context.Context, repoType, namespace, name string, entry probeEntry) error {
	raw, err := msgpack.Marshal(entry)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, cacheKey(repoType, namespace, name), raw, c.ttl).Err()
}
