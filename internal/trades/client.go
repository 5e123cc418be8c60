package trades

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"capitol-watch/internal/domain"
)

// DefaultFeedURL is the House Stock Watcher transaction dump.
const DefaultFeedURL = "https://house-stock-watcher-data.s3-us-west-2.amazonaws.com/data/all_transactions.json"

// Client downloads the disclosed-transactions feed.
type Client struct {
	feedURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

func NewClient(feedURL string, logger *logrus.Logger) *Client {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		feedURL: feedURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		// the feed is a multi-megabyte dump; one download every few seconds is plenty
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
		logger:  logger,
	}
}

// FetchAll returns every transaction in the feed.
func (c *Client) FetchAll(ctx context.Context) ([]domain.Trade, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("trades rate limit: %w", err)
	}

	logger := c.logger.WithField("provider", "trades")
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Errorf("trades request: %v", err)
		return nil, fmt.Errorf("trades request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("trades feed status %d", resp.StatusCode)
		logger.Error(err)
		return nil, err
	}

	var trades []domain.Trade
	if err := json.NewDecoder(resp.Body).Decode(&trades); err != nil {
		logger.Errorf("decode trades: %v", err)
		return nil, fmt.Errorf("decode trades: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"duration_ms": time.Since(start).Milliseconds(),
		"results":     len(trades),
	}).Debug("trades feed downloaded")
	return trades, nil
}
