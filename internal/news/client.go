package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"capitol-watch/internal/domain"
)

const (
	// DefaultBaseURL is the Finnhub REST endpoint.
	DefaultBaseURL = "https://finnhub.io/api/v1"

	// DefaultCategory is used when the caller does not name one.
	DefaultCategory = "general"
)

// Client fetches market news from Finnhub.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

// NewClient creates a news client. perSecond caps outbound requests; zero or
// less disables throttling.
func NewClient(baseURL, apiKey string, perSecond float64, logger *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// GetNews returns the provider's news items for category, newest first.
func (c *Client) GetNews(ctx context.Context, category string) ([]domain.NewsItem, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		category = DefaultCategory
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("news rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("category", category)
	fullURL := fmt.Sprintf("%s/news?%s", c.baseURL, params.Encode())

	logger := c.logger.WithFields(logrus.Fields{"provider": "finnhub", "category": category})
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	// key goes in a header so it never shows up in a *url.Error
	req.Header.Set("X-Finnhub-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Errorf("news request: %v", err)
		return nil, fmt.Errorf("news request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("news status %d", resp.StatusCode)
		logger.Error(err)
		return nil, err
	}

	var items []domain.NewsItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		logger.Errorf("decode news: %v", err)
		return nil, fmt.Errorf("decode news: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
		"results":     len(items),
	}).Debug("news response")
	return items, nil
}
