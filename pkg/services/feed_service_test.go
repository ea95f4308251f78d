package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"devsocial/pkg/broker"
	"devsocial/pkg/cache"
	"devsocial/pkg/models"
	"devsocial/pkg/repository"
	"devsocial/pkg/search"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ids(posts []models.Post) []int64 {
	out := make([]int64, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestListPublicOrderingAndFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := f.post(t, f.ana, CreatePostInput{Content: "old", Tags: []string{"Go"}})
	private := f.post(t, f.ana, CreatePostInput{Content: "hidden", Visibility: models.VisibilityPrivate})
	followers := f.post(t, f.bruno, CreatePostInput{Content: "friends", Visibility: models.VisibilityFollowers})
	achievement := f.post(t, f.bruno, CreatePostInput{Content: "won", Kind: models.KindAchievement, Tags: []string{"rust"}})
	_, err := f.svc.Posts.SetPinned(ctx, f.mod, old.ID, true)
	require.NoError(t, err)

	page, err := f.svc.Feed.ListPublic(ctx, 0, 1, 10, FeedFilters{})
	require.NoError(t, err)
	assert.Equal(t, []int64{old.ID, achievement.ID}, ids(page.Items))
	assert.NotContains(t, ids(page.Items), private.ID)
	assert.NotContains(t, ids(page.Items), followers.ID)
	assert.Equal(t, models.Pagination{Page: 1, Limit: 10, Total: 2, Pages: 1}, page.Pagination)
	assert.Equal(t, "Ana Lima", page.Items[0].Author.Name)

	byKind, err := f.svc.Feed.ListPublic(ctx, 0, 1, 10, FeedFilters{Kind: models.KindAchievement})
	require.NoError(t, err)
	assert.Equal(t, []int64{achievement.ID}, ids(byKind.Items))

	byTag, err := f.svc.Feed.ListPublic(ctx, 0, 1, 10, FeedFilters{Tags: []string{" GO "}})
	require.NoError(t, err)
	assert.Equal(t, []int64{old.ID}, ids(byTag.Items))

	_, err = f.svc.Feed.ListPublic(ctx, 0, 1, 10, FeedFilters{Kind: "poll"})
	assert.True(t, errors.Is(err, ErrValidationFailed))
}

func TestListPublicPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		f.post(t, f.ana, CreatePostInput{Content: "post"})
	}

	page, err := f.svc.Feed.ListPublic(ctx, 0, 2, 5, FeedFilters{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)
	assert.Equal(t, 3, page.Pagination.Pages)

	clamped, err := f.svc.Feed.ListPublic(ctx, 0, 0, 500, FeedFilters{})
	require.NoError(t, err)
	assert.Equal(t, 1, clamped.Pagination.Page)
	assert.Equal(t, models.MaxPageSize, clamped.Pagination.Limit)
	assert.Len(t, clamped.Items, 12)

	beyond, err := f.svc.Feed.ListPublic(ctx, 0, 9, 5, FeedFilters{})
	require.NoError(t, err)
	assert.NotNil(t, beyond.Items)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, 12, beyond.Pagination.Total)
}

func TestListPublicEmptyStore(t *testing.T) {
	f := newFixture(t)

	page, err := f.svc.Feed.ListPublic(context.Background(), 0, 1, 10, FeedFilters{})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Equal(t, models.Pagination{Page: 1, Limit: 10, Total: 0, Pages: 0}, page.Pagination)
}

func TestListPublicCachesAnonymousPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	f.svc = New(Deps{Repo: f.store.Repository(), Cache: cache.New(client), Index: f.index, Notifier: f.notifier, FeedTTL: time.Minute})

	first := f.post(t, f.ana, CreatePostInput{Content: "first", Metadata: []byte(`{"location":"Recife"}`)})
	page, err := f.svc.Feed.ListPublic(ctx, 0, 1, 10, FeedFilters{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, mr.Exists(cache.PublicFeedKey(1, 1, 10, "", []string{})), "creating the post bumped the generation")

	cached, err := f.svc.Feed.ListPublic(ctx, 0, 1, 10, FeedFilters{})
	require.NoError(t, err)
	assert.Equal(t, first.ID, cached.Items[0].ID)
	assert.Equal(t, models.UpdateMetadata{Location: "Recife"}, cached.Items[0].Metadata)

	f.post(t, f.ana, CreatePostInput{Content: "second"})
	assert.Equal(t, []string{cache.FeedGenerationKey}, mr.Keys())

	fresh, err := f.svc.Feed.ListPublic(ctx, 0, 1, 10, FeedFilters{})
	require.NoError(t, err)
	assert.Len(t, fresh.Items, 2)
}

type racingCache struct {
	cache.Cache
	beforeSet func()
}

func (c *racingCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if fn := c.beforeSet; fn != nil {
		c.beforeSet = nil
		fn()
	}
	c.Cache.Set(ctx, key, value, ttl)
}

func TestListPublicDropsFillRacingInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	rc := &racingCache{Cache: cache.New(client)}
	f.svc = New(Deps{Repo: f.store.Repository(), Cache: rc, Index: f.index, Notifier: f.notifier, FeedTTL: time.Minute})

	p := f.post(t, f.ana, CreatePostInput{Content: "hot take"})

	// A like lands after the page was read but before it is cached.
	rc.beforeSet = func() {
		_, err := f.svc.Engagement.ToggleLike(ctx, p.ID, f.bruno.ID)
		require.NoError(t, err)
	}
	stale, err := f.svc.Feed.ListPublic(ctx, 0, 1, 10, FeedFilters{})
	require.NoError(t, err)
	assert.Zero(t, stale.Items[0].LikesCount)

	fresh, err := f.svc.Feed.ListPublic(ctx, 0, 1, 10, FeedFilters{})
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.Items[0].LikesCount)
}

func TestListPersonal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	own := f.post(t, f.ana, CreatePostInput{Content: "mine", Visibility: models.VisibilityPrivate})
	followed := f.post(t, f.bruno, CreatePostInput{Content: "for followers", Visibility: models.VisibilityFollowers})
	f.post(t, f.bruno, CreatePostInput{Content: "secret", Visibility: models.VisibilityPrivate})
	f.post(t, f.mod, CreatePostInput{Content: "not followed"})

	page, err := f.svc.Feed.ListPersonal(ctx, f.ana.ID, []int64{f.bruno.ID}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{followed.ID, own.ID}, ids(page.Items))

	_, err = f.svc.Feed.ListPersonal(ctx, 0, nil, 1, 10)
	assert.True(t, errors.Is(err, ErrAuthenticationFailed))
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.post(t, f.ana, CreatePostInput{Content: "benchmarking golang generics"})
	b := f.post(t, f.bruno, CreatePostInput{Content: "golang tooling tips", Tags: []string{"golang"}})
	f.post(t, f.bruno, CreatePostInput{Content: "private golang", Visibility: models.VisibilityPrivate})
	c := f.post(t, f.bruno, CreatePostInput{Content: "unrelated"})

	hits, err := f.svc.Feed.Search(ctx, 0, "golang", FeedFilters{}, 1, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{a.ID, b.ID}, ids(hits.Items))
	assert.Equal(t, 2, hits.Pagination.Total)
	assert.Equal(t, b.ID, hits.Items[0].ID, "tag and content match ranks first")

	byAuthor, err := f.svc.Feed.Search(ctx, 0, "golang", FeedFilters{AuthorHandle: "ANA"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, ids(byAuthor.Items))

	unknown, err := f.svc.Feed.Search(ctx, 0, "golang", FeedFilters{AuthorHandle: "ghost"}, 1, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{a.ID, b.ID}, ids(unknown.Items), "unknown author is ignored")
	assert.Equal(t, 2, unknown.Pagination.Total)

	recent, err := f.svc.Feed.Search(ctx, 0, "  ", FeedFilters{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID, b.ID, a.ID}, ids(recent.Items))

	require.NoError(t, f.svc.Posts.Delete(ctx, f.ana, a.ID))
	after, err := f.svc.Feed.Search(ctx, 0, "golang", FeedFilters{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, ids(after.Items))
}

func TestSearchTotalSkipsStaleHits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	kept := f.post(t, f.ana, CreatePostInput{Content: "golang kept"})
	hidden := f.post(t, f.ana, CreatePostInput{Content: "golang hidden"})

	// The store changes behind the index, as when another instance wrote it.
	private := models.VisibilityPrivate
	_, err := f.store.Repository().Posts.UpdateFields(ctx, hidden.ID, repository.PostPatch{Visibility: &private})
	require.NoError(t, err)

	page, err := f.svc.Feed.Search(ctx, 0, "golang", FeedFilters{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{kept.ID}, ids(page.Items))
	assert.Equal(t, 1, page.Pagination.Total)

	again, err := f.index.Search(ctx, search.Query{Text: "golang", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, again.Total, "stale hit is repaired in the index")
}

func TestSearchAcrossInstancesSharingStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)

	instance := func() *Services {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		b := broker.New(client, zap.NewNop())
		t.Cleanup(func() {
			b.Close()
			client.Close()
		})
		idx, err := search.Open("")
		require.NoError(t, err)
		t.Cleanup(func() { idx.Close() })
		replica := search.NewReplica(idx, b, f.store.Repository().Posts, "devsocial:index", zap.NewNop())
		require.NoError(t, replica.Start())
		return New(Deps{Repo: f.store.Repository(), Index: replica, Notifier: f.notifier, Logger: zap.NewNop()})
	}
	east, west := instance(), instance()

	p, err := east.Posts.Create(ctx, f.ana, CreatePostInput{Content: "golang across the fleet"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		page, err := west.Feed.Search(ctx, 0, "golang", FeedFilters{}, 1, 10)
		return err == nil && len(page.Items) == 1 && page.Pagination.Total == 1
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, east.Posts.Delete(ctx, f.ana, p.ID))
	assert.Eventually(t, func() bool {
		hits, err := west.Feed.Search(ctx, 0, "golang", FeedFilters{}, 1, 10)
		return err == nil && hits.Pagination.Total == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	private := f.post(t, f.ana, CreatePostInput{Content: "private", Visibility: models.VisibilityPrivate})
	followers := f.post(t, f.ana, CreatePostInput{Content: "followers", Visibility: models.VisibilityFollowers})

	_, err := f.svc.Feed.Get(ctx, private.ID, f.bruno.ID)
	assert.True(t, errors.Is(err, ErrAccessDenied))

	got, err := f.svc.Feed.Get(ctx, private.ID, f.ana.ID)
	require.NoError(t, err)
	assert.Equal(t, private.ID, got.ID)

	_, err = f.svc.Feed.Get(ctx, followers.ID, 0)
	assert.NoError(t, err)

	_, err = f.svc.Feed.Get(ctx, 999, 0)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, f.svc.Posts.Delete(ctx, f.ana, followers.ID))
	_, err = f.svc.Feed.Get(ctx, followers.ID, f.ana.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}
