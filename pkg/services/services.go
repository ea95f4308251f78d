package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"devsocial/pkg/cache"
	"devsocial/pkg/models"
	"devsocial/pkg/repository"
	"devsocial/pkg/search"

	"go.uber.org/zap"
)

// Notifier delivers server-originated events to connected clients. The
// real-time router implements it; deliveries are best effort.
type Notifier interface {
	NotifyAccount(accountID int64, payload interface{}) int
	ProjectUpdated(projectID string, payload interface{}) int
}

// PostIndex is the relevance index behind Search.
type PostIndex interface {
	Put(p models.Post) error
	Delete(id int64) error
	Search(ctx context.Context, q search.Query) (search.Result, error)
}

type Deps struct {
	Repo     *repository.Repository
	Cache    cache.Cache
	Index    PostIndex
	Notifier Notifier
	Logger   *zap.Logger
	FeedTTL  time.Duration
}

type Services struct {
	Feed       FeedService
	Posts      PostService
	Engagement EngagementService
	Comments   CommentService
}

func New(d Deps) *Services {
	if d.Cache == nil {
		d.Cache = cache.Nop{}
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.FeedTTL <= 0 {
		d.FeedTTL = 15 * time.Second
	}

	b := &base{
		repo:     d.Repo,
		cache:    d.Cache,
		index:    d.Index,
		notifier: d.Notifier,
		log:      d.Logger.Named("services"),
	}
	return &Services{
		Feed:       &feedService{base: b, ttl: d.FeedTTL},
		Posts:      &postService{base: b},
		Engagement: &engagementService{base: b},
		Comments:   &commentService{base: b},
	}
}

type base struct {
	repo     *repository.Repository
	cache    cache.Cache
	index    PostIndex
	notifier Notifier
	log      *zap.Logger
}

// fail logs an infrastructure error and wraps it for the caller.
func (b *base) fail(op string, err error) error {
	b.log.Sugar().Errorf("failed to %s: %s", op, err.Error())
	return fmt.Errorf("%s: %w", op, err)
}

func (b *base) invalidateFeed(ctx context.Context) {
	b.cache.Bump(ctx, cache.FeedGenerationKey)
	b.cache.DelPattern(ctx, cache.PublicFeedPattern)
}

func (b *base) indexPut(p models.Post) {
	if b.index == nil {
		return
	}
	if err := b.index.Put(p); err != nil {
		b.log.Sugar().Errorf("failed to index post %d: %s", p.ID, err.Error())
	}
}

func (b *base) indexDelete(id int64) {
	if b.index == nil {
		return
	}
	if err := b.index.Delete(id); err != nil {
		b.log.Sugar().Errorf("failed to remove post %d from index: %s", id, err.Error())
	}
}

// activePost loads a post for an engagement or comment operation: it must
// exist, be active and be readable by viewerID.
func (b *base) activePost(ctx context.Context, postID, viewerID int64) (*models.Post, error) {
	p, err := b.repo.Posts.FindByID(ctx, postID, viewerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFound("post not found")
	}
	if err != nil {
		return nil, b.fail("load post", err)
	}
	if !p.Active {
		return nil, NotFound("post not found")
	}
	if !p.VisibleTo(viewerID) {
		return nil, AccessDenied("post is private")
	}
	return p, nil
}

type nopNotifier struct{}

func (nopNotifier) NotifyAccount(int64, interface{}) int   { return 0 }
func (nopNotifier) ProjectUpdated(string, interface{}) int { return 0 }

// Notification payloads pushed to personal rooms.
type Notification struct {
	Type    string               `json:"type"`
	PostID  int64                `json:"postId"`
	From    models.AuthorSummary `json:"from"`
	Comment *models.Comment      `json:"comment,omitempty"`
}
