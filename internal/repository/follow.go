package repository

import (
	"context"
	"errors"

	"capitol-watch/internal/domain"
)

// ErrFollowNotFound is returned by Remove when the pair was never recorded.
var ErrFollowNotFound = errors.New("follow not found")

// FollowRepository stores the user -> congressman follow graph.
//
// Add is idempotent: recording an existing pair succeeds without creating a
// duplicate. Add returns ErrUserNotFound when the username is unknown.
type FollowRepository interface {
	Init(ctx context.Context) error
	Add(ctx context.Context, username, congressman string) error
	Remove(ctx context.Context, username, congressman string) error
	ListByUser(ctx context.Context, username string) ([]domain.Follow, error)
}
