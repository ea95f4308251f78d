package services

import (
	"context"
	"errors"

	"devsocial/pkg/models"
	"devsocial/pkg/repository"
)

const replyPreviewSize = 3

type CommentService interface {
	ListTopLevel(ctx context.Context, postID int64, page, limit int) (models.Page[models.ThreadedComment], error)
	AddComment(ctx context.Context, postID, authorID int64, content string, parentID *int64) (*models.Comment, error)
	CountReplies(ctx context.Context, commentID int64) (int, error)
	Delete(ctx context.Context, actor models.Identity, commentID int64) error
}

type commentService struct {
	*base
}

// readablePost is activePost without a viewer: comment listings are public
// for any active post.
func (s *commentService) readablePost(ctx context.Context, postID int64) (*models.Post, error) {
	p, err := s.repo.Posts.FindByID(ctx, postID, 0)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFound("post not found")
	}
	if err != nil {
		return nil, s.fail("load post", err)
	}
	if !p.Active {
		return nil, NotFound("post not found")
	}
	return p, nil
}

func (s *commentService) ListTopLevel(ctx context.Context, postID int64, page, limit int) (models.Page[models.ThreadedComment], error) {
	req := models.NewPageRequest(page, limit)
	if _, err := s.readablePost(ctx, postID); err != nil {
		return models.Page[models.ThreadedComment]{}, err
	}

	total, err := s.repo.Comments.CountTopLevel(ctx, postID)
	if err != nil {
		return models.Page[models.ThreadedComment]{}, s.fail("count comments", err)
	}
	if req.Skip() >= total {
		return models.NewPage[models.ThreadedComment](nil, req, total), nil
	}

	top, err := s.repo.Comments.FindTopLevel(ctx, postID, req.Skip(), req.Limit)
	if err != nil {
		return models.Page[models.ThreadedComment]{}, s.fail("list comments", err)
	}

	ids := make([]int64, len(top))
	for i, c := range top {
		ids[i] = c.ID
	}

	previews, err := s.repo.Comments.ReplyPreviews(ctx, ids, replyPreviewSize)
	if err != nil {
		return models.Page[models.ThreadedComment]{}, s.fail("load reply previews", err)
	}
	counts, err := s.repo.Comments.CountReplies(ctx, ids)
	if err != nil {
		return models.Page[models.ThreadedComment]{}, s.fail("count replies", err)
	}

	threaded := make([]models.ThreadedComment, len(top))
	for i, c := range top {
		replies := previews[c.ID]
		if replies == nil {
			replies = []models.Comment{}
		}
		threaded[i] = models.ThreadedComment{
			Comment:    c,
			Replies:    replies,
			ReplyCount: counts[c.ID],
		}
	}
	return models.NewPage(threaded, req, total), nil
}

func (s *commentService) AddComment(ctx context.Context, postID, authorID int64, content string, parentID *int64) (*models.Comment, error) {
	if authorID <= 0 {
		return nil, &Error{Kind: KindAuthenticationFailed, Message: "authentication required"}
	}
	content, err := validateContent(content, maxCommentContent)
	if err != nil {
		return nil, err
	}

	post, err := s.activePost(ctx, postID, authorID)
	if err != nil {
		return nil, err
	}

	if parentID != nil {
		parent, err := s.repo.Comments.FindByID(ctx, *parentID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("parent comment not found")
		}
		if err != nil {
			return nil, s.fail("load parent comment", err)
		}
		if !parent.Active {
			return nil, NotFound("parent comment not found")
		}
		if parent.PostID != postID {
			return nil, ValidationFailed("parent comment belongs to another post")
		}
	}

	comment, _, err := s.repo.Comments.Insert(ctx, models.Comment{
		PostID:   postID,
		AuthorID: authorID,
		Content:  content,
		ParentID: parentID,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFound("post not found")
	}
	if err != nil {
		return nil, s.fail("add comment", err)
	}

	s.invalidateFeed(ctx)

	if post.AuthorID != authorID {
		s.notifier.NotifyAccount(post.AuthorID, Notification{
			Type:    "comment",
			PostID:  postID,
			From:    comment.Author,
			Comment: comment,
		})
	}
	return comment, nil
}

func (s *commentService) CountReplies(ctx context.Context, commentID int64) (int, error) {
	c, err := s.repo.Comments.FindByID(ctx, commentID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, NotFound("comment not found")
	}
	if err != nil {
		return 0, s.fail("load comment", err)
	}
	if !c.Active {
		return 0, NotFound("comment not found")
	}

	counts, err := s.repo.Comments.CountReplies(ctx, []int64{commentID})
	if err != nil {
		return 0, s.fail("count replies", err)
	}
	return counts[commentID], nil
}

func (s *commentService) Delete(ctx context.Context, actor models.Identity, commentID int64) error {
	if !actor.Authenticated() {
		return &Error{Kind: KindAuthenticationFailed, Message: "authentication required"}
	}

	c, err := s.repo.Comments.FindByID(ctx, commentID)
	if errors.Is(err, repository.ErrNotFound) {
		return NotFound("comment not found")
	}
	if err != nil {
		return s.fail("load comment", err)
	}
	if !c.Active {
		return NotFound("comment not found")
	}
	if c.AuthorID != actor.ID && !actor.Elevated() {
		return AccessDenied("only the author can delete this comment")
	}

	_, err = s.repo.Comments.SoftDelete(ctx, commentID)
	if errors.Is(err, repository.ErrNotFound) {
		return NotFound("comment not found")
	}
	if err != nil {
		return s.fail("delete comment", err)
	}

	s.invalidateFeed(ctx)
	return nil
}
