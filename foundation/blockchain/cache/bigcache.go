package cache

import (
	"context"
	"time"

	bigcache "github.com/allegro/bigcache/v3"
)

// bigCacheAdapter is the default Cache implementation: fast, in-process,
// no external dependency to run a single node.
type bigCacheAdapter struct {
	bc *bigcache.BigCache
}

func newBigCache(cfg Config) (Cache, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	bcConfig := bigcache.DefaultConfig(ttl)
	bcConfig.CleanWindow = ttl / 10
	if bcConfig.CleanWindow <= 0 {
		bcConfig.CleanWindow = time.Second
	}

	bc, err := bigcache.New(context.Background(), bcConfig)
	if err != nil {
		return nil, err
	}

	return &bigCacheAdapter{bc: bc}, nil
}

func (b *bigCacheAdapter) Get(key string) ([]byte, bool) {
	v, err := b.bc.Get(key)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (b *bigCacheAdapter) Set(key string, value []byte) error {
	return b.bc.Set(key, value)
}

func (b *bigCacheAdapter) Delete(key string) {
	b.bc.Delete(key)
}

func (b *bigCacheAdapter) Close() error {
	return b.bc.Close()
}
