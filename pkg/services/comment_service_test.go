package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"devsocial/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCommentAndThreading(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.ana, CreatePostInput{Content: "discuss"})

	older, err := f.svc.Comments.AddComment(ctx, p.ID, f.bruno.ID, "first!", nil)
	require.NoError(t, err)
	newer, err := f.svc.Comments.AddComment(ctx, p.ID, f.mod.ID, "second", nil)
	require.NoError(t, err)

	var replies []int64
	for i := 0; i < 4; i++ {
		r, err := f.svc.Comments.AddComment(ctx, p.ID, f.ana.ID, "reply", &older.ID)
		require.NoError(t, err)
		replies = append(replies, r.ID)
	}

	page, err := f.svc.Comments.ListTopLevel(ctx, p.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, newer.ID, page.Items[0].ID)
	assert.Empty(t, page.Items[0].Replies)
	assert.NotNil(t, page.Items[0].Replies)
	assert.Zero(t, page.Items[0].ReplyCount)

	thread := page.Items[1]
	assert.Equal(t, older.ID, thread.ID)
	require.Len(t, thread.Replies, 3)
	assert.Equal(t, replies[:3], []int64{thread.Replies[0].ID, thread.Replies[1].ID, thread.Replies[2].ID})
	assert.Equal(t, 4, thread.ReplyCount)
	assert.Equal(t, models.Pagination{Page: 1, Limit: 10, Total: 2, Pages: 1}, page.Pagination)

	count, err := f.svc.Comments.CountReplies(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	post, err := f.svc.Feed.Get(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, post.CommentsCount)
}

func TestAddCommentNotifiesPostAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.ana, CreatePostInput{Content: "discuss"})

	_, err := f.svc.Comments.AddComment(ctx, p.ID, f.ana.ID, "own comment", nil)
	require.NoError(t, err)
	assert.Empty(t, f.notifier.notices())

	c, err := f.svc.Comments.AddComment(ctx, p.ID, f.bruno.ID, "  nice  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "nice", c.Content)

	notices := f.notifier.notices()
	require.Len(t, notices, 1)
	assert.Equal(t, "notifications_1", notices[0].Room)
	assert.Equal(t, "comment", notices[0].Payload.(Notification).Type)
}

func TestAddCommentErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.ana, CreatePostInput{Content: "one"})
	other := f.post(t, f.ana, CreatePostInput{Content: "two"})
	foreign, err := f.svc.Comments.AddComment(ctx, other.ID, f.bruno.ID, "elsewhere", nil)
	require.NoError(t, err)
	missing := int64(999)

	cases := []struct {
		name    string
		postID  int64
		content string
		parent  *int64
		want    error
	}{
		{"empty content", p.ID, "   ", nil, ErrValidationFailed},
		{"too long", p.ID, strings.Repeat("a", 1001), nil, ErrValidationFailed},
		{"missing post", 404, "hi", nil, ErrNotFound},
		{"missing parent", p.ID, "hi", &missing, ErrNotFound},
		{"parent on other post", p.ID, "hi", &foreign.ID, ErrValidationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Comments.AddComment(ctx, tc.postID, f.bruno.ID, tc.content, tc.parent)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}

	_, err = f.svc.Comments.AddComment(ctx, p.ID, f.bruno.ID, strings.Repeat("é", 1000), nil)
	assert.NoError(t, err, "limit counts characters, not bytes")
}

func TestDeleteComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.ana, CreatePostInput{Content: "discuss"})
	c, err := f.svc.Comments.AddComment(ctx, p.ID, f.bruno.ID, "oops", nil)
	require.NoError(t, err)

	err = f.svc.Comments.Delete(ctx, f.ana, c.ID)
	assert.True(t, errors.Is(err, ErrAccessDenied))

	require.NoError(t, f.svc.Comments.Delete(ctx, f.mod, c.ID))

	err = f.svc.Comments.Delete(ctx, f.bruno, c.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = f.svc.Comments.AddComment(ctx, p.ID, f.ana.ID, "reply to deleted", &c.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	post, err := f.svc.Feed.Get(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Zero(t, post.CommentsCount)
}

func TestCountReplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, f.ana, CreatePostInput{Content: "thread"})
	root, err := f.svc.Comments.AddComment(ctx, p.ID, f.bruno.ID, "root", nil)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = f.svc.Comments.AddComment(ctx, p.ID, f.ana.ID, "reply", &root.ID)
		require.NoError(t, err)
	}

	n, err := f.svc.Comments.CountReplies(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.svc.Comments.CountReplies(ctx, 999)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, f.svc.Comments.Delete(ctx, f.bruno, root.ID))
	_, err = f.svc.Comments.CountReplies(ctx, root.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListTopLevelMissingPost(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Comments.ListTopLevel(context.Background(), 77, 1, 10)
	assert.True(t, errors.Is(err, ErrNotFound))
}
