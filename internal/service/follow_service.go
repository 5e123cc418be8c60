package service

import (
	"context"
	"errors"
	"strings"

	"capitol-watch/internal/repository"
)

var (
	// ErrInvalidFollow is returned when the username or congressman is blank.
	ErrInvalidFollow = errors.New("username and congressman are required")
	// ErrUnknownUser is returned when following on behalf of an unregistered user.
	ErrUnknownUser = errors.New("unknown user")
	// ErrNotFollowing is returned by Unfollow when the pair does not exist.
	ErrNotFollowing = errors.New("not following congressman")
)

// FollowService maintains the set of congressmen each user follows.
type FollowService interface {
	Follow(ctx context.Context, username, congressman string) error
	Unfollow(ctx context.Context, username, congressman string) error
	ListFollowed(ctx context.Context, username string) ([]string, error)
}

type followService struct {
	follows repository.FollowRepository
}

func NewFollowService(follows repository.FollowRepository) FollowService {
	return &followService{follows: follows}
}

func (s *followService) Follow(ctx context.Context, username, congressman string) error {
	username, congressman, err := normalizeFollow(username, congressman)
	if err != nil {
		return err
	}

	if err := s.follows.Add(ctx, username, congressman); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUnknownUser
		}
		return err
	}
	return nil
}

func (s *followService) Unfollow(ctx context.Context, username, congressman string) error {
	username, congressman, err := normalizeFollow(username, congressman)
	if err != nil {
		return err
	}

	if err := s.follows.Remove(ctx, username, congressman); err != nil {
		if errors.Is(err, repository.ErrFollowNotFound) {
			return ErrNotFollowing
		}
		return err
	}
	return nil
}

func (s *followService) ListFollowed(ctx context.Context, username string) ([]string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return []string{}, nil
	}

	follows, err := s.follows.ListByUser(ctx, username)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(follows))
	for _, f := range follows {
		names = append(names, f.Congressman)
	}
	return names, nil
}

func normalizeFollow(username, congressman string) (string, string, error) {
	username = strings.TrimSpace(username)
	congressman = strings.TrimSpace(congressman)
	if username == "" || congressman == "" {
		return "", "", ErrInvalidFollow
	}
	return username, congressman, nil
}
