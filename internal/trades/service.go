package trades

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"

	"capitol-watch/internal/domain"
)

// DefaultLimit is how many of the most recent trades are reported.
const DefaultLimit = 10

// ErrMissingCongressman is returned when the lookup name is blank.
var ErrMissingCongressman = errors.New("congressman is required")

// Fetcher is the upstream trade feed.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]domain.Trade, error)
}

// Archiver receives every completed report. Implementations must not block.
type Archiver interface {
	Enqueue(ctx context.Context, report domain.TradeReport) error
}

// Service is the trade gateway used by the HTTP layer.
type Service interface {
	RecentTrades(ctx context.Context, congressman string) (*domain.TradeReport, error)
}

type service struct {
	fetcher  Fetcher
	archiver Archiver
	limit    int
	logger   *logrus.Logger
	now      func() time.Time
}

// NewService builds the gateway. archiver may be nil.
func NewService(fetcher Fetcher, archiver Archiver, limit int, logger *logrus.Logger) Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &service{
		fetcher:  fetcher,
		archiver: archiver,
		limit:    limit,
		logger:   logger,
		now:      time.Now,
	}
}

// RecentTrades finds the newest trades disclosed by congressman and writes
// them to the log.
func (s *service) RecentTrades(ctx context.Context, congressman string) (*domain.TradeReport, error) {
	congressman = strings.TrimSpace(congressman)
	if congressman == "" {
		return nil, ErrMissingCongressman
	}

	all, err := s.fetcher.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &domain.TradeReport{
		Congressman: congressman,
		FetchedAt:   s.now().UTC(),
		Trades:      newest(matching(all, congressman), s.limit),
	}

	logger := s.logger.WithField("congressman", congressman)
	if len(report.Trades) == 0 {
		logger.Info("no recent trades found")
	}
	for _, t := range report.Trades {
		logger.WithFields(logrus.Fields{
			"representative":   t.Representative,
			"ticker":           t.Ticker,
			"type":             t.Type,
			"amount":           t.Amount,
			"transaction_date": t.TransactionDate,
			"disclosure_date":  t.DisclosureDate,
		}).Info("recent trade")
	}

	if s.archiver != nil {
		if err := s.archiver.Enqueue(ctx, *report); err != nil {
			logger.Warnf("archive trade report: %v", err)
		}
	}

	return report, nil
}

// matching keeps trades whose representative contains name, compared with
// Unicode case folding so "pelosi" matches "Hon. Nancy Pelosi".
func matching(all []domain.Trade, name string) []domain.Trade {
	folder := cases.Fold()
	needle := folder.String(name)

	var out []domain.Trade
	for _, t := range all {
		if strings.Contains(folder.String(t.Representative), needle) {
			out = append(out, t)
		}
	}
	return out
}

// newest sorts by transaction date descending; undated trades sort last.
func newest(trades []domain.Trade, limit int) []domain.Trade {
	sort.SliceStable(trades, func(i, j int) bool {
		return transactionTime(trades[i]).After(transactionTime(trades[j]))
	})
	if len(trades) > limit {
		trades = trades[:limit]
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	return trades
}

func transactionTime(t domain.Trade) time.Time {
	for _, layout := range []string{"2006-01-02", "01/02/2006"} {
		if ts, err := time.Parse(layout, t.TransactionDate); err == nil {
			return ts
		}
	}
	return time.Time{}
}
