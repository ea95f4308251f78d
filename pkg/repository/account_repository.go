package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"devsocial/pkg/models"
)

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) scan(row rowScanner) (*models.Account, error) {
	var (
		a    models.Account
		role string
	)
	err := row.Scan(&a.ID, &a.Handle, &a.FirstName, &a.LastName, &a.Avatar, &a.Reputation, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Role = models.Role(role)
	return &a, nil
}

func (r *accountRepository) FindByID(ctx context.Context, id int64) (*models.Account, error) {
	return r.scan(r.db.QueryRowContext(ctx,
		`SELECT id, username, first_name, last_name, avatar, rating, role FROM accounts WHERE id = $1`, id,
	))
}

func (r *accountRepository) FindByHandle(ctx context.Context, handle string) (*models.Account, error) {
	return r.scan(r.db.QueryRowContext(ctx,
		`SELECT id, username, first_name, last_name, avatar, rating, role FROM accounts WHERE username = $1`,
		strings.ToLower(strings.TrimSpace(handle)),
	))
}

type followRepository struct {
	db *sql.DB
}

func NewFollowRepository(db *sql.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Following(ctx context.Context, accountID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT followee_id FROM account_follows WHERE follower_id = $1`, accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NewPostgres wires every repository to the same connection pool.
func NewPostgres(db *sql.DB) *Repository {
	return &Repository{
		Posts:    NewPostRepository(db),
		Comments: NewCommentRepository(db),
		Accounts: NewAccountRepository(db),
		Follows:  NewFollowRepository(db),
	}
}
