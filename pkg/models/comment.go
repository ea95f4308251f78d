package models

import "time"

type Comment struct {
	ID        int64         `json:"id"`
	PostID    int64         `json:"post_id"`
	AuthorID  int64         `json:"author_id"`
	Author    AuthorSummary `json:"author"`
	Content   string        `json:"content"`
	ParentID  *int64        `json:"parent_comment"`
	Active    bool          `json:"is_active"`
	CreatedAt time.Time     `json:"created_at"`
}

// ThreadedComment is a top-level comment with a bounded preview of its replies.
type ThreadedComment struct {
	Comment
	Replies    []Comment `json:"replies"`
	ReplyCount int       `json:"reply_count"`
}
