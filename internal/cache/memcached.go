package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "rent-lookup:"

// Memcached is a Store backed by memcached. Entries are JSON-encoded with their FetchedAt so
// TimeBounded can tell fresh from stale; the memcached item expiry is the retention window,
// which should be longer than the TTL so stale fallback keeps working.
type Memcached[V any] struct {
	client    *memcache.Client
	retention time.Duration
}

// NewMemcached creates a memcached store. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcached[V any](addrs string, timeout time.Duration, maxIdleConns int, retention time.Duration) *Memcached[V] {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &Memcached[V]{client: client, retention: retention}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (c *Memcached[V]) key(k string) string {
	return keyPrefix + k
}

// Load implements Store. Returns false, nil on miss.
func (c *Memcached[V]) Load(ctx context.Context, key string) (Entry[V], bool, error) {
	if ctx.Err() != nil {
		return Entry[V]{}, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return Entry[V]{}, false, nil
		}
		return Entry[V]{}, false, err
	}
	var e Entry[V]
	if err := json.Unmarshal(item.Value, &e); err != nil {
		return Entry[V]{}, false, err
	}
	return e, true, nil
}

// Save implements Store.
func (c *Memcached[V]) Save(ctx context.Context, key string, entry Entry[V]) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      raw,
		Expiration: expirationSeconds(c.retention),
	})
}

// expirationSeconds converts retention to a memcached relative expiry. Values beyond
// 30 days would be read as unix timestamps, so they are clamped; 0 means no expiry.
func expirationSeconds(retention time.Duration) int32 {
	const maxRelativeExp = 30 * 24 * 60 * 60
	sec := int64(retention.Seconds())
	if sec <= 0 {
		return 0
	}
	if sec > maxRelativeExp {
		return maxRelativeExp
	}
	return int32(sec)
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *Memcached[V]) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *Memcached[V]) Close() error {
	return c.client.Close()
}
