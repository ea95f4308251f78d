package models

import (
	"encoding/json"
	"time"
)

type PostKind string

const (
	KindUpdate        PostKind = "post"
	KindProjectUpdate PostKind = "project_update"
	KindAchievement   PostKind = "achievement"
	KindAnnouncement  PostKind = "announcement"
)

func (k PostKind) Valid() bool {
	switch k {
	case KindUpdate, KindProjectUpdate, KindAchievement, KindAnnouncement:
		return true
	}
	return false
}

type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityFollowers Visibility = "followers"
	VisibilityPrivate   Visibility = "private"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityFollowers, VisibilityPrivate:
		return true
	}
	return false
}

type Post struct {
	ID            int64         `json:"id"`
	AuthorID      int64         `json:"author_id"`
	Author        AuthorSummary `json:"author"`
	Content       string        `json:"content"`
	Images        []string      `json:"images"`
	Kind          PostKind      `json:"type"`
	Tags          []string      `json:"tags"`
	Visibility    Visibility    `json:"visibility"`
	Pinned        bool          `json:"is_pinned"`
	Active        bool          `json:"is_active"`
	LikesCount    int           `json:"likes_count"`
	CommentsCount int           `json:"comments_count"`
	SharesCount   int           `json:"shares_count"`
	Liked         bool          `json:"liked"`
	Shared        bool          `json:"shared"`
	Metadata      Metadata      `json:"metadata,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// VisibleTo reports whether a single-post read by viewerID is allowed.
// Only private posts are restricted.
func (p *Post) VisibleTo(viewerID int64) bool {
	return p.Visibility != VisibilityPrivate || p.AuthorID == viewerID
}

// UnmarshalJSON resolves the metadata variant from the post type.
func (p *Post) UnmarshalJSON(data []byte) error {
	type alias Post
	aux := struct {
		*alias
		Metadata json.RawMessage `json:"metadata,omitempty"`
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	md, err := DecodeMetadata(p.Kind, aux.Metadata)
	if err != nil {
		return err
	}
	p.Metadata = md
	return nil
}

// Counters are the denormalized cardinalities of a post's relation sets.
type Counters struct {
	Likes    int `json:"likes_count"`
	Comments int `json:"comments_count"`
	Shares   int `json:"shares_count"`
}

// Relation names a per-account relation set on a post.
type Relation string

const (
	RelationLikes  Relation = "likes"
	RelationShares Relation = "shares"
)
