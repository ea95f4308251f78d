package repository

import (
	"context"
	"errors"

	"devsocial/pkg/models"
)

var ErrNotFound = errors.New("record not found")

// PostFilter is the predicate for post listings. Listings always require an
// active post; the remaining fields narrow further when set.
type PostFilter struct {
	Visibilities []models.Visibility
	Kind         models.PostKind
	Tags         []string
	AuthorID     int64
	Personal     *PersonalScope
}

// PersonalScope selects the viewer's own posts plus non-private posts from the
// accounts the viewer follows.
type PersonalScope struct {
	ViewerID  int64
	Following []int64
}

type PostSort int

const (
	// SortRanked orders pinned posts first, then newest first.
	SortRanked PostSort = iota
	// SortRecent orders newest first only.
	SortRecent
)

type PostQuery struct {
	Filter   PostFilter
	Sort     PostSort
	Skip     int
	Limit    int
	ViewerID int64
}

// PostPatch lists the fields to overwrite. Nil fields are left untouched.
type PostPatch struct {
	Content    *string
	Images     *[]string
	Tags       *[]string
	Visibility *models.Visibility
	Metadata   models.Metadata
	Pinned     *bool
}

func (p PostPatch) Empty() bool {
	return p.Content == nil && p.Images == nil && p.Tags == nil &&
		p.Visibility == nil && p.Metadata == nil && p.Pinned == nil
}

type PostRepository interface {
	Find(ctx context.Context, q PostQuery) ([]models.Post, error)
	Count(ctx context.Context, f PostFilter) (int, error)
	// FindByID returns the post whether active or not; ErrNotFound when absent.
	FindByID(ctx context.Context, id, viewerID int64) (*models.Post, error)
	// FindByIDs returns the active posts among ids, in no particular order.
	FindByIDs(ctx context.Context, ids []int64, viewerID int64) ([]models.Post, error)
	Insert(ctx context.Context, p models.Post) (*models.Post, error)
	// AddToSet and RemoveFromSet change one relation set atomically and return
	// whether membership changed plus the recomputed counters.
	AddToSet(ctx context.Context, postID int64, rel models.Relation, accountID int64) (bool, models.Counters, error)
	RemoveFromSet(ctx context.Context, postID int64, rel models.Relation, accountID int64) (bool, models.Counters, error)
	UpdateFields(ctx context.Context, id int64, patch PostPatch) (*models.Post, error)
	SoftDelete(ctx context.Context, id int64) error
}

type CommentRepository interface {
	// Insert stores the comment and recomputes the post's comment count.
	Insert(ctx context.Context, c models.Comment) (*models.Comment, models.Counters, error)
	FindByID(ctx context.Context, id int64) (*models.Comment, error)
	FindTopLevel(ctx context.Context, postID int64, skip, limit int) ([]models.Comment, error)
	CountTopLevel(ctx context.Context, postID int64) (int, error)
	// ReplyPreviews returns up to perParent active replies per parent, oldest first.
	ReplyPreviews(ctx context.Context, parentIDs []int64, perParent int) (map[int64][]models.Comment, error)
	CountReplies(ctx context.Context, parentIDs []int64) (map[int64]int, error)
	SoftDelete(ctx context.Context, id int64) (models.Counters, error)
}

type AccountRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Account, error)
	FindByHandle(ctx context.Context, handle string) (*models.Account, error)
}

// FollowRepository supplies the opaque following list for personal feeds.
type FollowRepository interface {
	Following(ctx context.Context, accountID int64) ([]int64, error)
}

type Repository struct {
	Posts    PostRepository
	Comments CommentRepository
	Accounts AccountRepository
	Follows  FollowRepository
}
