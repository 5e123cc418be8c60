package archiver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"capitol-watch/internal/domain"
	"capitol-watch/internal/storage"
)

// ErrNotStarted is returned by Enqueue before Start or after Shutdown.
var ErrNotStarted = errors.New("archiver not running")

// Manager uploads trade reports to object storage in the background.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	Enqueue(ctx context.Context, report domain.TradeReport) error
}

type Config struct {
	Bucket        string
	KeyPrefix     string
	MaxConcurrent int
	UploadTimeout time.Duration
	Logger        *logrus.Logger
}

type manager struct {
	cfg     Config
	storage storage.Service

	sem    chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	// ctx gates admission only; uploads run detached from it
	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(cfg Config, store storage.Service) Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.UploadTimeout == 0 {
		cfg.UploadTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "trade-reports"
	}
	return &manager{
		cfg:     cfg,
		storage: store,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
	}
}

func (m *manager) Start(ctx context.Context) error {
	if m.cfg.Bucket == "" {
		return fmt.Errorf("archive bucket is required")
	}
	m.mu.Lock()
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()
	m.cfg.Logger.Infof("trade archiver started, bucket: %s", m.cfg.Bucket)
	return nil
}

// Shutdown stops accepting reports and waits for in-flight uploads, each
// bounded by UploadTimeout. Queued reports that have not started uploading
// are dropped.
func (m *manager) Shutdown() {
	m.mu.Lock()
	cancel := m.cancel
	m.ctx = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.cfg.Logger.Info("trade archiver stopped")
}

// Enqueue schedules report for upload and returns immediately. The request
// context is not used for the upload itself.
func (m *manager) Enqueue(_ context.Context, report domain.TradeReport) error {
	m.mu.Lock()
	runCtx := m.ctx
	if runCtx != nil {
		m.wg.Add(1)
	}
	m.mu.Unlock()
	if runCtx == nil {
		return ErrNotStarted
	}

	key := ObjectKey(m.cfg.KeyPrefix, report.Congressman, uuid.NewString())
	go func() {
		defer m.wg.Done()
		select {
		case <-runCtx.Done():
			return
		case m.sem <- struct{}{}:
			defer func() { <-m.sem }()
			if runCtx.Err() != nil {
				return
			}
			m.upload(context.WithoutCancel(runCtx), key, report)
		}
	}()
	return nil
}

// upload must be given a context that Shutdown does not cancel.
func (m *manager) upload(ctx context.Context, key string, report domain.TradeReport) {
	logger := m.cfg.Logger.WithFields(logrus.Fields{
		"congressman": report.Congressman,
		"key":         key,
	})

	uploadCtx, cancel := context.WithTimeout(ctx, m.cfg.UploadTimeout)
	defer cancel()

	dest, err := m.storage.PutJSON(uploadCtx, m.cfg.Bucket, key, report)
	if err != nil {
		logger.Errorf("archive upload: %v", err)
		return
	}
	logger.Infof("trade report archived to %s", dest)
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a congressman name into a stable key segment.
func Slug(name string) string {
	s := slugUnsafe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "unknown"
	}
	return s
}

// ObjectKey builds {prefix}/{slug}/{id}.json.
func ObjectKey(prefix, congressman, id string) string {
	prefix = strings.Trim(prefix, "/")
	key := fmt.Sprintf("%s/%s.json", Slug(congressman), id)
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

var _ Manager = (*manager)(nil)
