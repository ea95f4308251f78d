package cache

import (
	"context"
	"encoding/json"
	"time"

	"devsocial/pkg/config"

	"github.com/redis/go-redis/v9"
)

// Cache is the JSON read-through cache used by the feed. Failures are
// swallowed: a miss or a dropped write only costs a store round trip.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Del(ctx context.Context, keys ...string)
	DelPattern(ctx context.Context, pattern string)
	// Generation reads a counter; Bump advances it. Readers fold the
	// counter into their keys so fills racing a bump land on dead keys.
	Generation(ctx context.Context, key string) int64
	Bump(ctx context.Context, key string)
}

func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 3,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

type Redis struct {
	client *redis.Client
}

func New(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Get retrieves JSON-encoded value from cache
func (r *Redis) Get(ctx context.Context, key string, dest interface{}) bool {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, dest) == nil
}

// Set stores JSON-encoded value in cache
func (r *Redis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	r.client.Set(ctx, key, data, ttl)
}

func (r *Redis) Del(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	r.client.Del(ctx, keys...)
}

// DelPattern deletes keys matching a pattern in batches to look easy on memory
func (r *Redis) DelPattern(ctx context.Context, pattern string) {
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	const batchSize = 100

	pipe := r.client.Pipeline()
	count := 0

	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		count++

		if count >= batchSize {
			pipe.Exec(ctx)
			count = 0
		}
	}

	if count > 0 {
		pipe.Exec(ctx)
	}
}

func (r *Redis) Generation(ctx context.Context, key string) int64 {
	n, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		return 0
	}
	return n
}

func (r *Redis) Bump(ctx context.Context, key string) {
	r.client.Incr(ctx, key)
}

// Nop never hits; used when no Redis address is configured.
type Nop struct{}

func (Nop) Get(context.Context, string, interface{}) bool           { return false }
func (Nop) Set(context.Context, string, interface{}, time.Duration) {}
func (Nop) Del(context.Context, ...string)                          {}
func (Nop) DelPattern(context.Context, string)                      {}
func (Nop) Generation(context.Context, string) int64                { return 0 }
func (Nop) Bump(context.Context, string)                            {}
