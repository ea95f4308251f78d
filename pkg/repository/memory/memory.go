// Package memory is an in-process implementation of the repository
// interfaces for development and tests. One mutex guards the whole store, so
// every set mutation and its recount happen as one step.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"devsocial/pkg/models"
	"devsocial/pkg/repository"
)

type postRow struct {
	post   models.Post
	likes  map[int64]bool
	shares map[int64]bool
}

type Store struct {
	mu        sync.Mutex
	now       func() time.Time
	accounts  map[int64]models.Account
	following map[int64][]int64
	posts     map[int64]*postRow
	comments  map[int64]*models.Comment
	nextPost  int64
	nextCmt   int64
}

func New() *Store {
	return &Store{
		now:       time.Now,
		accounts:  make(map[int64]models.Account),
		following: make(map[int64][]int64),
		posts:     make(map[int64]*postRow),
		comments:  make(map[int64]*models.Comment),
	}
}

// Repository exposes the store through the repository interfaces.
func (s *Store) Repository() *repository.Repository {
	return &repository.Repository{
		Posts:    (*posts)(s),
		Comments: (*comments)(s),
		Accounts: (*accounts)(s),
		Follows:  (*follows)(s),
	}
}

// SetClock replaces the time source used for created_at stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) PutAccount(a models.Account) {
	s.mu.Lock()
	s.accounts[a.ID] = a
	s.mu.Unlock()
}

func (s *Store) Follow(follower int64, followees ...int64) {
	s.mu.Lock()
	s.following[follower] = append(s.following[follower], followees...)
	s.mu.Unlock()
}

func (s *Store) author(id int64) models.AuthorSummary {
	if a, ok := s.accounts[id]; ok {
		return a.Summary()
	}
	return models.AuthorSummary{ID: id}
}

// view copies a stored post and fills the projection and viewer flags.
func (s *Store) view(row *postRow, viewerID int64) models.Post {
	p := row.post
	p.Images = append([]string{}, row.post.Images...)
	p.Tags = append([]string{}, row.post.Tags...)
	p.Author = s.author(p.AuthorID)
	p.LikesCount = len(row.likes)
	p.SharesCount = len(row.shares)
	p.CommentsCount = s.activeComments(p.ID)
	p.Liked = viewerID > 0 && row.likes[viewerID]
	p.Shared = viewerID > 0 && row.shares[viewerID]
	return p
}

func (s *Store) activeComments(postID int64) int {
	n := 0
	for _, c := range s.comments {
		if c.PostID == postID && c.Active {
			n++
		}
	}
	return n
}

func (s *Store) counters(row *postRow) models.Counters {
	return models.Counters{
		Likes:    len(row.likes),
		Comments: s.activeComments(row.post.ID),
		Shares:   len(row.shares),
	}
}

// ── Posts ──

type posts Store

func (r *posts) store() *Store { return (*Store)(r) }

func matches(p models.Post, f repository.PostFilter) bool {
	if !p.Active {
		return false
	}
	if len(f.Visibilities) > 0 && !containsVisibility(f.Visibilities, p.Visibility) {
		return false
	}
	if f.Kind != "" && p.Kind != f.Kind {
		return false
	}
	if len(f.Tags) > 0 && !overlaps(p.Tags, f.Tags) {
		return false
	}
	if f.AuthorID > 0 && p.AuthorID != f.AuthorID {
		return false
	}
	if f.Personal != nil {
		if p.AuthorID == f.Personal.ViewerID {
			return true
		}
		if !containsID(f.Personal.Following, p.AuthorID) {
			return false
		}
		return p.Visibility == models.VisibilityPublic || p.Visibility == models.VisibilityFollowers
	}
	return true
}

func less(a, b models.Post, sortBy repository.PostSort) bool {
	if sortBy == repository.SortRanked && a.Pinned != b.Pinned {
		return a.Pinned
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (r *posts) Find(ctx context.Context, q repository.PostQuery) ([]models.Post, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []models.Post{}
	for _, row := range s.posts {
		if matches(row.post, q.Filter) {
			matched = append(matched, s.view(row, q.ViewerID))
		}
	}
	sort.Slice(matched, func(i, j int) bool { return less(matched[i], matched[j], q.Sort) })

	return window(matched, q.Skip, q.Limit), nil
}

func (r *posts) Count(ctx context.Context, f repository.PostFilter) (int, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, row := range s.posts {
		if matches(row.post, f) {
			n++
		}
	}
	return n, nil
}

func (r *posts) FindByID(ctx context.Context, id, viewerID int64) (*models.Post, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p := s.view(row, viewerID)
	return &p, nil
}

func (r *posts) FindByIDs(ctx context.Context, ids []int64, viewerID int64) ([]models.Post, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Post{}
	for _, id := range ids {
		if row, ok := s.posts[id]; ok && row.post.Active {
			out = append(out, s.view(row, viewerID))
		}
	}
	return out, nil
}

func (r *posts) Insert(ctx context.Context, p models.Post) (*models.Post, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPost++
	now := s.now()
	p.ID = s.nextPost
	p.Active = true
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	row := &postRow{post: p, likes: map[int64]bool{}, shares: map[int64]bool{}}
	s.posts[p.ID] = row
	out := s.view(row, 0)
	return &out, nil
}

func (r *posts) set(row *postRow, rel models.Relation) map[int64]bool {
	if rel == models.RelationShares {
		return row.shares
	}
	return row.likes
}

func (r *posts) AddToSet(ctx context.Context, postID int64, rel models.Relation, accountID int64) (bool, models.Counters, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.posts[postID]
	if !ok || !row.post.Active {
		return false, models.Counters{}, repository.ErrNotFound
	}
	set := r.set(row, rel)
	if set[accountID] {
		return false, s.counters(row), nil
	}
	set[accountID] = true
	return true, s.counters(row), nil
}

func (r *posts) RemoveFromSet(ctx context.Context, postID int64, rel models.Relation, accountID int64) (bool, models.Counters, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.posts[postID]
	if !ok || !row.post.Active {
		return false, models.Counters{}, repository.ErrNotFound
	}
	set := r.set(row, rel)
	if !set[accountID] {
		return false, s.counters(row), nil
	}
	delete(set, accountID)
	return true, s.counters(row), nil
}

func (r *posts) UpdateFields(ctx context.Context, id int64, patch repository.PostPatch) (*models.Post, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.posts[id]
	if !ok || !row.post.Active {
		return nil, repository.ErrNotFound
	}
	if patch.Empty() {
		out := s.view(row, 0)
		return &out, nil
	}

	p := &row.post
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	if patch.Images != nil {
		p.Images = append([]string{}, *patch.Images...)
	}
	if patch.Tags != nil {
		p.Tags = append([]string{}, *patch.Tags...)
	}
	if patch.Visibility != nil {
		p.Visibility = *patch.Visibility
	}
	if patch.Metadata != nil {
		p.Metadata = patch.Metadata
	}
	if patch.Pinned != nil {
		p.Pinned = *patch.Pinned
	}
	p.UpdatedAt = s.now()

	out := s.view(row, 0)
	return &out, nil
}

func (r *posts) SoftDelete(ctx context.Context, id int64) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.posts[id]
	if !ok || !row.post.Active {
		return repository.ErrNotFound
	}
	row.post.Active = false
	row.post.UpdatedAt = s.now()
	return nil
}

// ── Comments ──

type comments Store

func (r *comments) store() *Store { return (*Store)(r) }

func (r *comments) project(c *models.Comment) models.Comment {
	out := *c
	out.Author = r.store().author(c.AuthorID)
	return out
}

func (r *comments) Insert(ctx context.Context, c models.Comment) (*models.Comment, models.Counters, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.posts[c.PostID]
	if !ok || !row.post.Active {
		return nil, models.Counters{}, repository.ErrNotFound
	}

	s.nextCmt++
	c.ID = s.nextCmt
	c.Active = true
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	stored := c
	s.comments[c.ID] = &stored

	out := r.project(&stored)
	return &out, s.counters(row), nil
}

func (r *comments) FindByID(ctx context.Context, id int64) (*models.Comment, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := r.project(c)
	return &out, nil
}

func (r *comments) topLevel(postID int64) []models.Comment {
	out := []models.Comment{}
	for _, c := range r.comments {
		if c.PostID == postID && c.ParentID == nil && c.Active {
			out = append(out, r.project(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *comments) FindTopLevel(ctx context.Context, postID int64, skip, limit int) ([]models.Comment, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	return window(r.topLevel(postID), skip, limit), nil
}

func (r *comments) CountTopLevel(ctx context.Context, postID int64) (int, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(r.topLevel(postID)), nil
}

func (r *comments) replies(parentID int64) []models.Comment {
	out := []models.Comment{}
	for _, c := range r.comments {
		if c.ParentID != nil && *c.ParentID == parentID && c.Active {
			out = append(out, r.project(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *comments) ReplyPreviews(ctx context.Context, parentIDs []int64, perParent int) (map[int64][]models.Comment, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[int64][]models.Comment, len(parentIDs))
	if perParent <= 0 {
		return result, nil
	}
	for _, id := range parentIDs {
		if replies := r.replies(id); len(replies) > 0 {
			result[id] = window(replies, 0, perParent)
		}
	}
	return result, nil
}

func (r *comments) CountReplies(ctx context.Context, parentIDs []int64) (map[int64]int, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[int64]int, len(parentIDs))
	for _, id := range parentIDs {
		if n := len(r.replies(id)); n > 0 {
			result[id] = n
		}
	}
	return result, nil
}

func (r *comments) SoftDelete(ctx context.Context, id int64) (models.Counters, error) {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok || !c.Active {
		return models.Counters{}, repository.ErrNotFound
	}
	c.Active = false

	row, ok := s.posts[c.PostID]
	if !ok {
		return models.Counters{}, nil
	}
	return s.counters(row), nil
}

// ── Accounts ──

type accounts Store

func (r *accounts) FindByID(ctx context.Context, id int64) (*models.Account, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *accounts) FindByHandle(ctx context.Context, handle string) (*models.Account, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Handle == handle {
			out := a
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

type follows Store

func (r *follows) Following(ctx context.Context, accountID int64) ([]int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]int64{}, s.following[accountID]...), nil
}

// ── helpers ──

func window[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return append([]T{}, items[skip:end]...)
}

func containsVisibility(vs []models.Visibility, v models.Visibility) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}

func containsID(ids []int64, id int64) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
