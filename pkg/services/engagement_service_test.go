package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"devsocial/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleLike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.ana, CreatePostInput{Content: "like me"})

	res, err := f.svc.Engagement.ToggleLike(ctx, p.ID, f.bruno.ID)
	require.NoError(t, err)
	assert.Equal(t, LikeResult{Liked: true, LikesCount: 1}, res)

	notices := f.notifier.notices()
	require.Len(t, notices, 1)
	assert.Equal(t, "notifications_1", notices[0].Room)
	n := notices[0].Payload.(Notification)
	assert.Equal(t, "like", n.Type)
	assert.Equal(t, p.ID, n.PostID)
	assert.Equal(t, "bruno", n.From.Handle)

	res, err = f.svc.Engagement.ToggleLike(ctx, p.ID, f.bruno.ID)
	require.NoError(t, err)
	assert.Equal(t, LikeResult{Liked: false, LikesCount: 0}, res)
	assert.Len(t, f.notifier.notices(), 1, "unlike does not notify")

	_, err = f.svc.Engagement.ToggleLike(ctx, p.ID, f.ana.ID)
	require.NoError(t, err)
	assert.Len(t, f.notifier.notices(), 1, "self like does not notify")

	viewed, err := f.svc.Feed.Get(ctx, p.ID, f.ana.ID)
	require.NoError(t, err)
	assert.True(t, viewed.Liked)
	assert.Equal(t, 1, viewed.LikesCount)
}

func TestToggleLikeConcurrentDistinctAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.ana, CreatePostInput{Content: "popular"})

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(account int64) {
			defer wg.Done()
			_, err := f.svc.Engagement.ToggleLike(ctx, p.ID, account)
			assert.NoError(t, err)
		}(int64(100 + i))
	}
	wg.Wait()

	got, err := f.svc.Feed.Get(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, n, got.LikesCount)
}

func TestToggleLikeGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	private := f.post(t, f.ana, CreatePostInput{Content: "mine", Visibility: models.VisibilityPrivate})

	_, err := f.svc.Engagement.ToggleLike(ctx, private.ID, f.bruno.ID)
	assert.True(t, errors.Is(err, ErrAccessDenied))

	_, err = f.svc.Engagement.ToggleLike(ctx, 404, f.bruno.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = f.svc.Engagement.ToggleLike(ctx, private.ID, 0)
	assert.True(t, errors.Is(err, ErrAuthenticationFailed))

	require.NoError(t, f.svc.Posts.Delete(ctx, f.ana, private.ID))
	_, err = f.svc.Engagement.ToggleLike(ctx, private.ID, f.ana.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestToggleShare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.ana, CreatePostInput{Content: "share me"})

	res, err := f.svc.Engagement.ToggleShare(ctx, p.ID, f.bruno.ID)
	require.NoError(t, err)
	assert.Equal(t, ShareResult{Shared: true, SharesCount: 1}, res)

	res, err = f.svc.Engagement.ToggleShare(ctx, p.ID, f.bruno.ID)
	require.NoError(t, err)
	assert.Equal(t, ShareResult{Shared: false, SharesCount: 0}, res)
	assert.Empty(t, f.notifier.notices())
}
