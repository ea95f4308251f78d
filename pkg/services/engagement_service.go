package services

import (
	"context"
	"errors"

	"devsocial/pkg/models"
	"devsocial/pkg/repository"
)

type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

type ShareResult struct {
	Shared      bool `json:"shared"`
	SharesCount int  `json:"shares_count"`
}

type EngagementService interface {
	ToggleLike(ctx context.Context, postID, accountID int64) (LikeResult, error)
	ToggleShare(ctx context.Context, postID, accountID int64) (ShareResult, error)
}

type engagementService struct {
	*base
}

// toggle adds the account to the relation set, or removes it when the add
// changed nothing. Membership and count come back from the store, never from
// a value read before the mutation.
func (s *engagementService) toggle(ctx context.Context, post *models.Post, rel models.Relation, accountID int64) (bool, models.Counters, error) {
	added, counters, err := s.repo.Posts.AddToSet(ctx, post.ID, rel, accountID)
	if err != nil {
		return false, counters, err
	}
	if added {
		return true, counters, nil
	}

	_, counters, err = s.repo.Posts.RemoveFromSet(ctx, post.ID, rel, accountID)
	return false, counters, err
}

func (s *engagementService) load(ctx context.Context, postID, accountID int64) (*models.Post, error) {
	if accountID <= 0 {
		return nil, &Error{Kind: KindAuthenticationFailed, Message: "authentication required"}
	}
	return s.activePost(ctx, postID, accountID)
}

func (s *engagementService) ToggleLike(ctx context.Context, postID, accountID int64) (LikeResult, error) {
	post, err := s.load(ctx, postID, accountID)
	if err != nil {
		return LikeResult{}, err
	}

	liked, counters, err := s.toggle(ctx, post, models.RelationLikes, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return LikeResult{}, NotFound("post not found")
	}
	if err != nil {
		return LikeResult{}, s.fail("toggle like", err)
	}

	s.invalidateFeed(ctx)

	if liked && post.AuthorID != accountID {
		s.notifier.NotifyAccount(post.AuthorID, Notification{
			Type:   "like",
			PostID: post.ID,
			From:   s.summary(ctx, accountID),
		})
	}

	return LikeResult{Liked: liked, LikesCount: counters.Likes}, nil
}

func (s *engagementService) ToggleShare(ctx context.Context, postID, accountID int64) (ShareResult, error) {
	post, err := s.load(ctx, postID, accountID)
	if err != nil {
		return ShareResult{}, err
	}

	shared, counters, err := s.toggle(ctx, post, models.RelationShares, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return ShareResult{}, NotFound("post not found")
	}
	if err != nil {
		return ShareResult{}, s.fail("toggle share", err)
	}

	s.invalidateFeed(ctx)
	return ShareResult{Shared: shared, SharesCount: counters.Shares}, nil
}

// summary resolves the author projection for notifications. A failed lookup
// still yields the id.
func (b *base) summary(ctx context.Context, accountID int64) models.AuthorSummary {
	a, err := b.repo.Accounts.FindByID(ctx, accountID)
	if err != nil {
		return models.AuthorSummary{ID: accountID}
	}
	return a.Summary()
}
