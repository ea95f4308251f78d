package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"devsocial/pkg/models"

	"github.com/lib/pq"
)

const commentColumns = `
	c.id, c.post_id, c.author_id, c.content, c.parent_id, c.is_active, c.created_at,
	a.username, a.first_name, a.last_name, a.avatar, a.rating`

type commentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) CommentRepository {
	return &commentRepository{db: db}
}

func scanComment(row rowScanner) (models.Comment, error) {
	var (
		c        models.Comment
		parentID sql.NullInt64
		first    string
		last     string
	)
	err := row.Scan(
		&c.ID, &c.PostID, &c.AuthorID, &c.Content, &parentID, &c.Active, &c.CreatedAt,
		&c.Author.Handle, &first, &last, &c.Author.Avatar, &c.Author.Reputation,
	)
	if err != nil {
		return c, err
	}
	if parentID.Valid {
		pid := parentID.Int64
		c.ParentID = &pid
	}
	c.Author.ID = c.AuthorID
	c.Author.Name = strings.TrimSpace(first + " " + last)
	return c, nil
}

func (r *commentRepository) queryComments(ctx context.Context, query string, args ...interface{}) ([]models.Comment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *commentRepository) Insert(ctx context.Context, c models.Comment) (*models.Comment, models.Counters, error) {
	var counters models.Counters

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, counters, err
	}
	defer tx.Rollback()

	var locked int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM posts WHERE id = $1 AND is_active FOR UPDATE`, c.PostID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, counters, ErrNotFound
	}
	if err != nil {
		return nil, counters, err
	}

	var parentID sql.NullInt64
	if c.ParentID != nil {
		parentID = sql.NullInt64{Int64: *c.ParentID, Valid: true}
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO comments (post_id, author_id, content, parent_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, c.PostID, c.AuthorID, c.Content, parentID).Scan(&id)
	if err != nil {
		return nil, counters, err
	}

	if err := recountComments(ctx, tx, c.PostID, &counters); err != nil {
		return nil, counters, err
	}

	if err := tx.Commit(); err != nil {
		return nil, counters, err
	}

	created, err := r.FindByID(ctx, id)
	return created, counters, err
}

func recountComments(ctx context.Context, tx *sql.Tx, postID int64, c *models.Counters) error {
	return tx.QueryRowContext(ctx, `
		UPDATE posts SET comments_count = (SELECT COUNT(*) FROM comments WHERE post_id = $1 AND is_active)
		WHERE id = $1
		RETURNING likes_count, comments_count, shares_count
	`, postID).Scan(&c.Likes, &c.Comments, &c.Shares)
}

func (r *commentRepository) FindByID(ctx context.Context, id int64) (*models.Comment, error) {
	c, err := scanComment(r.db.QueryRowContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments c
		JOIN accounts a ON a.id = c.author_id
		WHERE c.id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *commentRepository) FindTopLevel(ctx context.Context, postID int64, skip, limit int) ([]models.Comment, error) {
	return r.queryComments(ctx, `
		SELECT `+commentColumns+`
		FROM comments c
		JOIN accounts a ON a.id = c.author_id
		WHERE c.post_id = $1 AND c.parent_id IS NULL AND c.is_active
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT $2 OFFSET $3
	`, postID, limit, skip)
}

func (r *commentRepository) CountTopLevel(ctx context.Context, postID int64) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM comments
		WHERE post_id = $1 AND parent_id IS NULL AND is_active
	`, postID).Scan(&total)
	return total, err
}

// ReplyPreviews loads the first perParent replies of every parent in one query.
func (r *commentRepository) ReplyPreviews(ctx context.Context, parentIDs []int64, perParent int) (map[int64][]models.Comment, error) {
	result := make(map[int64][]models.Comment, len(parentIDs))
	if len(parentIDs) == 0 || perParent <= 0 {
		return result, nil
	}

	replies, err := r.queryComments(ctx, `
		SELECT id, post_id, author_id, content, parent_id, is_active, created_at,
		       username, first_name, last_name, avatar, rating
		FROM (
			SELECT `+commentColumns+`,
			       ROW_NUMBER() OVER (PARTITION BY c.parent_id ORDER BY c.created_at ASC, c.id ASC) AS rn
			FROM comments c
			JOIN accounts a ON a.id = c.author_id
			WHERE c.parent_id = ANY($1) AND c.is_active
		) ranked
		WHERE rn <= $2
		ORDER BY parent_id, created_at ASC, id ASC
	`, pq.Array(parentIDs), perParent)
	if err != nil {
		return result, err
	}

	for _, reply := range replies {
		pid := *reply.ParentID
		result[pid] = append(result[pid], reply)
	}
	return result, nil
}

func (r *commentRepository) CountReplies(ctx context.Context, parentIDs []int64) (map[int64]int, error) {
	result := make(map[int64]int, len(parentIDs))
	if len(parentIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT parent_id, COUNT(*) FROM comments
		WHERE parent_id = ANY($1) AND is_active
		GROUP BY parent_id
	`, pq.Array(parentIDs))
	if err != nil {
		return result, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pid   int64
			count int
		)
		if err := rows.Scan(&pid, &count); err != nil {
			return result, err
		}
		result[pid] = count
	}
	return result, rows.Err()
}

func (r *commentRepository) SoftDelete(ctx context.Context, id int64) (models.Counters, error) {
	var counters models.Counters

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return counters, err
	}
	defer tx.Rollback()

	var postID int64
	err = tx.QueryRowContext(ctx, `
		UPDATE comments SET is_active = false
		WHERE id = $1 AND is_active
		RETURNING post_id
	`, id).Scan(&postID)
	if errors.Is(err, sql.ErrNoRows) {
		return counters, ErrNotFound
	}
	if err != nil {
		return counters, err
	}

	var locked int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM posts WHERE id = $1 FOR UPDATE`, postID).Scan(&locked); err != nil {
		return counters, err
	}
	if err := recountComments(ctx, tx, postID, &counters); err != nil {
		return counters, err
	}

	return counters, tx.Commit()
}
