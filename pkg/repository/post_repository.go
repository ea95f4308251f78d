package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"devsocial/pkg/models"

	"github.com/lib/pq"
)

var relationTables = map[models.Relation]string{
	models.RelationLikes:  "post_likes",
	models.RelationShares: "post_shares",
}

var relationCounts = map[models.Relation]string{
	models.RelationLikes:  "likes_count",
	models.RelationShares: "shares_count",
}

const postColumns = `
	p.id, p.author_id, p.content, COALESCE(p.images, '{}'), p.type, COALESCE(p.tags, '{}'), p.visibility,
	p.is_pinned, p.is_active, p.likes_count, p.comments_count, p.shares_count, p.metadata, p.created_at, p.updated_at,
	a.username, a.first_name, a.last_name, a.avatar, a.rating`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

// selectPosts renders the projection including the viewer-relative flags.
func selectPosts(w *where, viewerID int64) string {
	v := w.arg(viewerID)
	return fmt.Sprintf(`SELECT %s,
		EXISTS(SELECT 1 FROM post_likes pl WHERE pl.post_id = p.id AND pl.account_id = %s) AS liked,
		EXISTS(SELECT 1 FROM post_shares ps WHERE ps.post_id = p.id AND ps.account_id = %s) AS shared
		FROM posts p
		JOIN accounts a ON a.id = p.author_id`, postColumns, v, v)
}

func scanPost(row rowScanner) (models.Post, error) {
	var (
		p        models.Post
		kind     string
		vis      string
		metadata []byte
		first    string
		last     string
	)
	err := row.Scan(
		&p.ID, &p.AuthorID, &p.Content, pq.Array(&p.Images), &kind, pq.Array(&p.Tags), &vis,
		&p.Pinned, &p.Active, &p.LikesCount, &p.CommentsCount, &p.SharesCount, &metadata, &p.CreatedAt, &p.UpdatedAt,
		&p.Author.Handle, &first, &last, &p.Author.Avatar, &p.Author.Reputation,
		&p.Liked, &p.Shared,
	)
	if err != nil {
		return p, err
	}

	p.Kind = models.PostKind(kind)
	p.Visibility = models.Visibility(vis)
	p.Author.ID = p.AuthorID
	p.Author.Name = strings.TrimSpace(first + " " + last)

	md, err := models.DecodeMetadata(p.Kind, metadata)
	if err != nil {
		return p, fmt.Errorf("decode metadata of post %d: %w", p.ID, err)
	}
	p.Metadata = md
	return p, nil
}

func (r *postRepository) queryPosts(ctx context.Context, query string, args ...interface{}) ([]models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (r *postRepository) Find(ctx context.Context, q PostQuery) ([]models.Post, error) {
	w := &where{}
	head := selectPosts(w, q.ViewerID)
	w.postFilter(q.Filter)
	limit := w.arg(q.Limit)
	offset := w.arg(q.Skip)

	query := fmt.Sprintf("%s %s %s LIMIT %s OFFSET %s", head, w.String(), orderBy(q.Sort), limit, offset)
	return r.queryPosts(ctx, query, w.args...)
}

func (r *postRepository) Count(ctx context.Context, f PostFilter) (int, error) {
	w := &where{}
	w.postFilter(f)

	var total int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts p "+w.String(), w.args...).Scan(&total)
	return total, err
}

func (r *postRepository) FindByID(ctx context.Context, id, viewerID int64) (*models.Post, error) {
	w := &where{}
	head := selectPosts(w, viewerID)
	w.add("p.id = " + w.arg(id))

	p, err := scanPost(r.db.QueryRowContext(ctx, head+" "+w.String(), w.args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postRepository) FindByIDs(ctx context.Context, ids []int64, viewerID int64) ([]models.Post, error) {
	if len(ids) == 0 {
		return []models.Post{}, nil
	}

	w := &where{}
	head := selectPosts(w, viewerID)
	w.add("p.id = ANY(" + w.arg(pq.Array(ids)) + ")")
	w.add("p.is_active")
	return r.queryPosts(ctx, head+" "+w.String(), w.args...)
}

func (r *postRepository) Insert(ctx context.Context, p models.Post) (*models.Post, error) {
	metadata, err := encodeMetadata(p.Metadata)
	if err != nil {
		return nil, err
	}

	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO posts (author_id, content, images, type, tags, visibility, is_pinned, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, p.AuthorID, p.Content, pq.Array(nonNilStrings(p.Images)), string(p.Kind), pq.Array(nonNilStrings(p.Tags)),
		string(p.Visibility), p.Pinned, metadata).Scan(&id)
	if err != nil {
		return nil, err
	}

	return r.FindByID(ctx, id, 0)
}

func (r *postRepository) AddToSet(ctx context.Context, postID int64, rel models.Relation, accountID int64) (bool, models.Counters, error) {
	return r.mutateSet(ctx, postID, rel, accountID, true)
}

func (r *postRepository) RemoveFromSet(ctx context.Context, postID int64, rel models.Relation, accountID int64) (bool, models.Counters, error) {
	return r.mutateSet(ctx, postID, rel, accountID, false)
}

// mutateSet locks the post row, applies one conditional insert or delete to the
// relation table and recomputes the count from the table's cardinality, all in
// one transaction. Concurrent toggles on the same post serialize on the lock.
func (r *postRepository) mutateSet(ctx context.Context, postID int64, rel models.Relation, accountID int64, add bool) (bool, models.Counters, error) {
	var c models.Counters

	table, ok := relationTables[rel]
	if !ok {
		return false, c, fmt.Errorf("unknown relation %q", rel)
	}
	countCol := relationCounts[rel]

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, c, err
	}
	defer tx.Rollback()

	var locked int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM posts WHERE id = $1 AND is_active FOR UPDATE`, postID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, c, ErrNotFound
	}
	if err != nil {
		return false, c, err
	}

	var stmt string
	if add {
		stmt = fmt.Sprintf(`
			INSERT INTO %s (post_id, account_id) VALUES ($1, $2)
			ON CONFLICT (post_id, account_id) DO NOTHING
			RETURNING 1`, table)
	} else {
		stmt = fmt.Sprintf(`DELETE FROM %s WHERE post_id = $1 AND account_id = $2 RETURNING 1`, table)
	}

	changed := true
	var dummy int
	err = tx.QueryRowContext(ctx, stmt, postID, accountID).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		changed = false
	} else if err != nil {
		return false, c, err
	}

	err = tx.QueryRowContext(ctx, fmt.Sprintf(`
		UPDATE posts SET %s = (SELECT COUNT(*) FROM %s WHERE post_id = $1)
		WHERE id = $1
		RETURNING likes_count, comments_count, shares_count
	`, countCol, table), postID).Scan(&c.Likes, &c.Comments, &c.Shares)
	if err != nil {
		return false, c, err
	}

	if err := tx.Commit(); err != nil {
		return false, c, err
	}
	return changed, c, nil
}

func (r *postRepository) UpdateFields(ctx context.Context, id int64, patch PostPatch) (*models.Post, error) {
	if patch.Empty() {
		return r.FindByID(ctx, id, 0)
	}

	var sets []string
	w := &where{}

	if patch.Content != nil {
		sets = append(sets, "content = "+w.arg(*patch.Content))
	}
	if patch.Images != nil {
		sets = append(sets, "images = "+w.arg(pq.Array(nonNilStrings(*patch.Images))))
	}
	if patch.Tags != nil {
		sets = append(sets, "tags = "+w.arg(pq.Array(nonNilStrings(*patch.Tags))))
	}
	if patch.Visibility != nil {
		sets = append(sets, "visibility = "+w.arg(string(*patch.Visibility)))
	}
	if patch.Metadata != nil {
		metadata, err := encodeMetadata(patch.Metadata)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "metadata = "+w.arg(metadata))
	}
	if patch.Pinned != nil {
		sets = append(sets, "is_pinned = "+w.arg(*patch.Pinned))
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf(`UPDATE posts SET %s WHERE id = %s AND is_active RETURNING id`, strings.Join(sets, ", "), w.arg(id))

	var updated int64
	err := r.db.QueryRowContext(ctx, query, w.args...).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return r.FindByID(ctx, id, 0)
}

func (r *postRepository) SoftDelete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE posts SET is_active = false, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// encodeMetadata returns a text value for the jsonb column; lib/pq would send
// a []byte as bytea.
func encodeMetadata(md models.Metadata) (interface{}, error) {
	if md == nil {
		return nil, nil
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func visibilityStrings(vs []models.Visibility) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
