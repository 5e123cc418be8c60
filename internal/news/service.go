package news

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"capitol-watch/internal/domain"
)

// DefaultLimit is the number of items returned per lookup, and also the most
// any lookup may return.
const DefaultLimit = 5

// Fetcher is the upstream news source.
type Fetcher interface {
	GetNews(ctx context.Context, category string) ([]domain.NewsItem, error)
}

// Cache stores JSON-encodable values with a TTL.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Service is the news gateway used by the HTTP layer.
type Service interface {
	Latest(ctx context.Context, category string) ([]domain.NewsItem, error)
}

type service struct {
	fetcher Fetcher
	cache   Cache
	ttl     time.Duration
	limit   int
	logger  *logrus.Logger
}

// NewService builds the gateway. cache may be nil.
func NewService(fetcher Fetcher, cache Cache, ttl time.Duration, limit int, logger *logrus.Logger) Service {
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &service{
		fetcher: fetcher,
		cache:   cache,
		ttl:     ttl,
		limit:   limit,
		logger:  logger,
	}
}

// Latest returns at most limit items for category. An empty result is not an error.
func (s *service) Latest(ctx context.Context, category string) ([]domain.NewsItem, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = DefaultCategory
	}
	key := "news:" + category

	if s.cache != nil {
		var cached []domain.NewsItem
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.WithField("category", category).Warnf("news cache read: %v", err)
		} else if hit {
			return truncate(cached, s.limit), nil
		}
	}

	items, err := s.fetcher.GetNews(ctx, category)
	if err != nil {
		return nil, err
	}
	items = truncate(items, s.limit)

	if s.cache != nil && len(items) > 0 && s.ttl > 0 {
		if err := s.cache.Set(ctx, key, items, s.ttl); err != nil {
			s.logger.WithField("category", category).Warnf("news cache write: %v", err)
		}
	}
	return items, nil
}

func truncate(items []domain.NewsItem, limit int) []domain.NewsItem {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
