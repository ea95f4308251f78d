package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"devsocial/pkg/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return mr, New(client)
}

func TestRedisGetSet(t *testing.T) {
	mr, c := newTestRedis(t)
	ctx := context.Background()

	type item struct {
		Name string `json:"name"`
	}
	c.Set(ctx, "k", item{Name: "feed"}, 15*time.Second)

	var got item
	require.True(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "feed", got.Name)

	mr.FastForward(16 * time.Second)
	assert.False(t, c.Get(ctx, "k", &got))
}

func TestRedisDelPatternAcrossBatches(t *testing.T) {
	mr, c := newTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		c.Set(ctx, fmt.Sprintf("feed:public:%d:10::", i), i, time.Minute)
	}
	c.Set(ctx, "other", 1, time.Minute)

	c.DelPattern(ctx, PublicFeedPattern)

	assert.Len(t, mr.Keys(), 1)
	assert.True(t, mr.Exists("other"))
}

func TestNopNeverHits(t *testing.T) {
	var c Cache = Nop{}
	c.Set(context.Background(), "k", 1, time.Minute)

	var v int
	assert.False(t, c.Get(context.Background(), "k", &v))
}

func TestPublicFeedKey(t *testing.T) {
	assert.Equal(t, "feed:public:3:2:10:achievement:go,rust", PublicFeedKey(3, 2, 10, "achievement", []string{"go", "rust"}))
}

func TestRedisGeneration(t *testing.T) {
	mr, c := newTestRedis(t)
	ctx := context.Background()

	assert.Zero(t, c.Generation(ctx, FeedGenerationKey))
	c.Bump(ctx, FeedGenerationKey)
	c.Bump(ctx, FeedGenerationKey)
	assert.Equal(t, int64(2), c.Generation(ctx, FeedGenerationKey))

	c.DelPattern(ctx, PublicFeedPattern)
	assert.True(t, mr.Exists(FeedGenerationKey), "generation survives feed invalidation")

	var n Nop
	n.Bump(ctx, FeedGenerationKey)
	assert.Zero(t, n.Generation(ctx, FeedGenerationKey))
}
