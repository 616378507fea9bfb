package cache

import (
	"context"

	redis "github.com/redis/go-redis/v9"
)

// redisAdapter backs a shared/networked cache deployment, for running
// several read-replica nodes behind the same cache.
type redisAdapter struct {
	client *redis.Client
}

func newRedisCache(cfg Config) (Cache, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	return &redisAdapter{client: client}, nil
}

func (r *redisAdapter) Get(key string) ([]byte, bool) {
	v, err := r.client.Get(context.Background(), key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *redisAdapter) Set(key string, value []byte) error {
	return r.client.Set(context.Background(), key, value, 0).Err()
}

func (r *redisAdapter) Delete(key string) {
	r.client.Del(context.Background(), key)
}

func (r *redisAdapter) Close() error {
	return r.client.Close()
}
