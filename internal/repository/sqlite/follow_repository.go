package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"capitol-watch/internal/domain"
	"capitol-watch/internal/repository"
)

const createFollowsTable = `
CREATE TABLE IF NOT EXISTS follows (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL,
	congressman TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE(username, congressman),
	FOREIGN KEY(username) REFERENCES users(username) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_follows_username ON follows(username);
`

type FollowRepository struct {
	db *sql.DB
}

func NewFollowRepository(db *sql.DB) repository.FollowRepository {
	return &FollowRepository{db: db}
}

// Init must run after the users table exists.
func (r *FollowRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createFollowsTable); err != nil {
		return fmt.Errorf("create follows table: %w", err)
	}
	return nil
}

func (r *FollowRepository) Add(ctx context.Context, username, congressman string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username=?`, username).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrUserNotFound
		}
		return fmt.Errorf("lookup follow owner: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO follows (username, congressman, created_at)
VALUES (?, ?, ?)
ON CONFLICT(username, congressman) DO NOTHING`,
		username,
		congressman,
		time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("insert follow: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit follow: %w", err)
	}
	return nil
}

func (r *FollowRepository) Remove(ctx context.Context, username, congressman string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM follows WHERE username=? AND congressman=?`, username, congressman)
	if err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("follow delete rows affected: %w", err)
	}
	if aff == 0 {
		return repository.ErrFollowNotFound
	}
	return nil
}

func (r *FollowRepository) ListByUser(ctx context.Context, username string) ([]domain.Follow, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, username, congressman, created_at
FROM follows
WHERE username=?
ORDER BY id ASC`, username)
	if err != nil {
		return nil, fmt.Errorf("query follows: %w", err)
	}
	defer rows.Close()

	follows := []domain.Follow{}
	for rows.Next() {
		var f domain.Follow
		if err := rows.Scan(&f.ID, &f.Username, &f.Congressman, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan follow: %w", err)
		}
		follows = append(follows, f)
	}

	return follows, rows.Err()
}
