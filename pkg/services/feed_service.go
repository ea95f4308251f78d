package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"devsocial/pkg/cache"
	"devsocial/pkg/models"
	"devsocial/pkg/repository"
	"devsocial/pkg/search"
)

// FeedFilters narrow a listing. Zero values disable each filter.
type FeedFilters struct {
	Kind         models.PostKind
	Tags         []string
	AuthorHandle string
}

type FeedService interface {
	ListPublic(ctx context.Context, viewerID int64, page, limit int, f FeedFilters) (models.Page[models.Post], error)
	ListPersonal(ctx context.Context, viewerID int64, following []int64, page, limit int) (models.Page[models.Post], error)
	Search(ctx context.Context, viewerID int64, query string, f FeedFilters, page, limit int) (models.Page[models.Post], error)
	Get(ctx context.Context, postID, viewerID int64) (*models.Post, error)
}

type feedService struct {
	*base
	ttl time.Duration
}

func (s *feedService) filter(f FeedFilters) (repository.PostFilter, error) {
	if f.Kind != "" && !f.Kind.Valid() {
		return repository.PostFilter{}, ValidationFailed("invalid post type")
	}
	tags, err := normalizeTags(f.Tags)
	if err != nil {
		return repository.PostFilter{}, err
	}
	return repository.PostFilter{
		Visibilities: []models.Visibility{models.VisibilityPublic},
		Kind:         f.Kind,
		Tags:         tags,
	}, nil
}

func (s *feedService) list(ctx context.Context, req models.PageRequest, q repository.PostQuery) (models.Page[models.Post], error) {
	total, err := s.repo.Posts.Count(ctx, q.Filter)
	if err != nil {
		return models.Page[models.Post]{}, s.fail("count posts", err)
	}

	var posts []models.Post
	if req.Skip() < total {
		q.Skip = req.Skip()
		q.Limit = req.Limit
		posts, err = s.repo.Posts.Find(ctx, q)
		if err != nil {
			return models.Page[models.Post]{}, s.fail("list posts", err)
		}
	}
	return models.NewPage(posts, req, total), nil
}

func (s *feedService) ListPublic(ctx context.Context, viewerID int64, page, limit int, f FeedFilters) (models.Page[models.Post], error) {
	req := models.NewPageRequest(page, limit)
	filter, err := s.filter(f)
	if err != nil {
		return models.Page[models.Post]{}, err
	}

	// Viewer flags make authenticated pages per-account; only anonymous
	// pages are shared through the cache.
	var key string
	if viewerID == 0 {
		gen := s.cache.Generation(ctx, cache.FeedGenerationKey)
		key = cache.PublicFeedKey(gen, req.Page, req.Limit, string(filter.Kind), filter.Tags)
		var cached models.Page[models.Post]
		if s.cache.Get(ctx, key, &cached) {
			return cached, nil
		}
	}

	result, err := s.list(ctx, req, repository.PostQuery{Filter: filter, Sort: repository.SortRanked, ViewerID: viewerID})
	if err != nil {
		return result, err
	}

	if viewerID == 0 {
		s.cache.Set(ctx, key, result, s.ttl)
	}
	return result, nil
}

func (s *feedService) ListPersonal(ctx context.Context, viewerID int64, following []int64, page, limit int) (models.Page[models.Post], error) {
	if viewerID <= 0 {
		return models.Page[models.Post]{}, &Error{Kind: KindAuthenticationFailed, Message: "authentication required"}
	}
	req := models.NewPageRequest(page, limit)
	filter := repository.PostFilter{
		Personal: &repository.PersonalScope{ViewerID: viewerID, Following: following},
	}
	return s.list(ctx, req, repository.PostQuery{Filter: filter, Sort: repository.SortRanked, ViewerID: viewerID})
}

func (s *feedService) Search(ctx context.Context, viewerID int64, query string, f FeedFilters, page, limit int) (models.Page[models.Post], error) {
	req := models.NewPageRequest(page, limit)
	filter, err := s.filter(f)
	if err != nil {
		return models.Page[models.Post]{}, err
	}

	if handle := strings.ToLower(strings.TrimSpace(f.AuthorHandle)); handle != "" {
		// An unknown handle leaves the search unfiltered.
		author, err := s.repo.Accounts.FindByHandle(ctx, handle)
		switch {
		case err == nil:
			filter.AuthorID = author.ID
		case !errors.Is(err, repository.ErrNotFound):
			return models.Page[models.Post]{}, s.fail("find author", err)
		}
	}

	query = strings.TrimSpace(query)
	if query == "" || s.index == nil {
		return s.list(ctx, req, repository.PostQuery{Filter: filter, Sort: repository.SortRecent, ViewerID: viewerID})
	}

	hits, err := s.index.Search(ctx, search.Query{
		Text:     query,
		Kind:     filter.Kind,
		Tags:     filter.Tags,
		AuthorID: filter.AuthorID,
		Skip:     req.Skip(),
		Limit:    req.Limit,
	})
	if err != nil {
		return models.Page[models.Post]{}, s.fail("search posts", err)
	}

	found, err := s.repo.Posts.FindByIDs(ctx, hits.IDs, viewerID)
	if err != nil {
		return models.Page[models.Post]{}, s.fail("load search hits", err)
	}

	byID := make(map[int64]models.Post, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	// Hits the store no longer serves are dropped from the total and
	// repaired in the index so later pages stay consistent.
	ranked := make([]models.Post, 0, len(hits.IDs))
	stale := 0
	for _, id := range hits.IDs {
		p, ok := byID[id]
		switch {
		case !ok:
			stale++
			s.indexDelete(id)
		case p.Visibility != models.VisibilityPublic:
			stale++
			s.indexPut(p)
		default:
			ranked = append(ranked, p)
		}
	}
	return models.NewPage(ranked, req, hits.Total-stale), nil
}

func (s *feedService) Get(ctx context.Context, postID, viewerID int64) (*models.Post, error) {
	return s.activePost(ctx, postID, viewerID)
}
