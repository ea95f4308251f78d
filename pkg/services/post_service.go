package services

import (
	"context"
	"encoding/json"
	"errors"

	"devsocial/pkg/models"
	"devsocial/pkg/repository"
)

type CreatePostInput struct {
	Content    string            `json:"content"`
	Images     []string          `json:"images"`
	Kind       models.PostKind   `json:"type"`
	Tags       []string          `json:"tags"`
	Visibility models.Visibility `json:"visibility"`
	Metadata   json.RawMessage   `json:"metadata"`
}

// UpdatePostInput patches the fields that are present.
type UpdatePostInput struct {
	Content    *string            `json:"content"`
	Images     *[]string          `json:"images"`
	Tags       *[]string          `json:"tags"`
	Visibility *models.Visibility `json:"visibility"`
	Metadata   json.RawMessage    `json:"metadata"`
}

type PostService interface {
	Create(ctx context.Context, author models.Identity, in CreatePostInput) (*models.Post, error)
	Update(ctx context.Context, actor models.Identity, postID int64, in UpdatePostInput) (*models.Post, error)
	Delete(ctx context.Context, actor models.Identity, postID int64) error
	SetPinned(ctx context.Context, actor models.Identity, postID int64, pinned bool) (*models.Post, error)
}

type postService struct {
	*base
}

// ProjectUpdate is pushed to project rooms when a project_update post lands.
type ProjectUpdate struct {
	Type      string               `json:"type"`
	ProjectID string               `json:"projectId"`
	Post      *models.Post         `json:"post"`
	Author    models.AuthorSummary `json:"author"`
}

func decodeMetadata(kind models.PostKind, raw json.RawMessage) (models.Metadata, error) {
	md, err := models.DecodeMetadata(kind, raw)
	if err != nil {
		return nil, ValidationFailed("invalid metadata: " + err.Error())
	}
	if err := validateMetadata(md); err != nil {
		return nil, err
	}
	return md, nil
}

func (s *postService) Create(ctx context.Context, author models.Identity, in CreatePostInput) (*models.Post, error) {
	if !author.Authenticated() {
		return nil, &Error{Kind: KindAuthenticationFailed, Message: "authentication required"}
	}

	content, err := validateContent(in.Content, maxPostContent)
	if err != nil {
		return nil, err
	}
	images, err := validateImages(in.Images)
	if err != nil {
		return nil, err
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	kind := in.Kind
	if kind == "" {
		kind = models.KindUpdate
	}
	if !kind.Valid() {
		return nil, ValidationFailed("invalid post type")
	}
	vis := in.Visibility
	if vis == "" {
		vis = models.VisibilityPublic
	}
	if !vis.Valid() {
		return nil, ValidationFailed("invalid visibility")
	}
	md, err := decodeMetadata(kind, in.Metadata)
	if err != nil {
		return nil, err
	}

	post, err := s.repo.Posts.Insert(ctx, models.Post{
		AuthorID:   author.ID,
		Content:    content,
		Images:     images,
		Kind:       kind,
		Tags:       tags,
		Visibility: vis,
		Metadata:   md,
	})
	if err != nil {
		return nil, s.fail("create post", err)
	}

	s.indexPut(*post)
	s.invalidateFeed(ctx)

	// Project rooms are open to anyone, so only public updates are pushed.
	if pu, ok := md.(models.ProjectUpdateMetadata); ok && post.Visibility == models.VisibilityPublic {
		s.notifier.ProjectUpdated(pu.ProjectID, ProjectUpdate{
			Type:      "post",
			ProjectID: pu.ProjectID,
			Post:      post,
			Author:    post.Author,
		})
	}
	return post, nil
}

// owned loads an active post the actor may modify. Elevated roles pass when
// allowElevated is set.
func (s *postService) owned(ctx context.Context, actor models.Identity, postID int64, allowElevated bool) (*models.Post, error) {
	if !actor.Authenticated() {
		return nil, &Error{Kind: KindAuthenticationFailed, Message: "authentication required"}
	}
	p, err := s.repo.Posts.FindByID(ctx, postID, actor.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFound("post not found")
	}
	if err != nil {
		return nil, s.fail("load post", err)
	}
	if !p.Active {
		return nil, NotFound("post not found")
	}
	if p.AuthorID != actor.ID && !(allowElevated && actor.Elevated()) {
		return nil, AccessDenied("only the author can change this post")
	}
	return p, nil
}

func (s *postService) Update(ctx context.Context, actor models.Identity, postID int64, in UpdatePostInput) (*models.Post, error) {
	current, err := s.owned(ctx, actor, postID, false)
	if err != nil {
		return nil, err
	}

	var patch repository.PostPatch
	if in.Content != nil {
		content, err := validateContent(*in.Content, maxPostContent)
		if err != nil {
			return nil, err
		}
		patch.Content = &content
	}
	if in.Images != nil {
		images, err := validateImages(*in.Images)
		if err != nil {
			return nil, err
		}
		patch.Images = &images
	}
	if in.Tags != nil {
		tags, err := normalizeTags(*in.Tags)
		if err != nil {
			return nil, err
		}
		patch.Tags = &tags
	}
	if in.Visibility != nil {
		if !in.Visibility.Valid() {
			return nil, ValidationFailed("invalid visibility")
		}
		patch.Visibility = in.Visibility
	}
	if len(in.Metadata) > 0 {
		md, err := decodeMetadata(current.Kind, in.Metadata)
		if err != nil {
			return nil, err
		}
		patch.Metadata = md
	}

	post, err := s.repo.Posts.UpdateFields(ctx, postID, patch)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFound("post not found")
	}
	if err != nil {
		return nil, s.fail("update post", err)
	}

	s.indexPut(*post)
	s.invalidateFeed(ctx)
	return post, nil
}

func (s *postService) Delete(ctx context.Context, actor models.Identity, postID int64) error {
	if _, err := s.owned(ctx, actor, postID, true); err != nil {
		return err
	}

	err := s.repo.Posts.SoftDelete(ctx, postID)
	if errors.Is(err, repository.ErrNotFound) {
		return NotFound("post not found")
	}
	if err != nil {
		return s.fail("delete post", err)
	}

	s.indexDelete(postID)
	s.invalidateFeed(ctx)
	return nil
}

func (s *postService) SetPinned(ctx context.Context, actor models.Identity, postID int64, pinned bool) (*models.Post, error) {
	if !actor.Elevated() {
		return nil, AccessDenied("only moderators can pin posts")
	}

	post, err := s.repo.Posts.UpdateFields(ctx, postID, repository.PostPatch{Pinned: &pinned})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFound("post not found")
	}
	if err != nil {
		return nil, s.fail("pin post", err)
	}

	s.invalidateFeed(ctx)
	return post, nil
}
