// Package cache defines the boundary to an external in-memory cache
// service. The chain engine does not use it: Blocks persists through
// store.Store only and writes nothing through this cache. Eviction policy
// is the cache implementation's own concern.
package cache

import "time"

// Cache is a byte-oriented cache keyed by string.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
	Delete(key string)
	Close() error
}

// Config selects and configures a Cache implementation.
type Config struct {
	// Driver selects the backing implementation: "bigcache" (default, an
	// in-process cache) or "redis" (a shared/networked cache).
	Driver string

	// TTL is how long entries live before bigcache evicts them.
	TTL time.Duration

	// RedisAddr is the address of the Redis server when Driver == "redis".
	RedisAddr string
}

// New constructs a Cache per cfg.
func New(cfg Config) (Cache, error) {
	switch cfg.Driver {
	case "redis":
		return newRedisCache(cfg)
	default:
		return newBigCache(cfg)
	}
}
