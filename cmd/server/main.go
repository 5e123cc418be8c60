package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"capitol-watch/internal/archiver"
	"capitol-watch/internal/auth"
	"capitol-watch/internal/cache"
	"capitol-watch/internal/config"
	apphttp "capitol-watch/internal/http"
	"capitol-watch/internal/news"
	"capitol-watch/internal/repository"
	"capitol-watch/internal/repository/postgres"
	"capitol-watch/internal/repository/sqlite"
	"capitol-watch/internal/service"
	"capitol-watch/internal/storage"
	"capitol-watch/internal/trades"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer repos.Close()

	userService := service.NewUserService(repos.users)
	followService := service.NewFollowService(repos.follows)

	redisCache := cache.NewRedis(ctx, cache.Options{
		Addr:     cfg.Redis.Addr,
		URL:      cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   "capitol:",
	}, logger)
	defer redisCache.Close()

	if cfg.News.APIKey == "" {
		logger.Warn("news.apikey is empty, news requests will be rejected upstream")
	}
	newsClient := news.NewClient(cfg.News.BaseURL, cfg.News.APIKey, cfg.News.RateLimit, logger)
	newsService := news.NewService(
		newsClient,
		redisCache,
		time.Duration(cfg.News.CacheTTLSeconds)*time.Second,
		cfg.News.Limit,
		logger,
	)

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	var (
		archive      archiver.Manager
		tradeArchive trades.Archiver
	)
	if storageSvc != nil {
		archive = archiver.NewManager(archiver.Config{
			Bucket:    cfg.Storage.Bucket,
			KeyPrefix: cfg.Storage.KeyPrefix,
			Logger:    logger,
		}, storageSvc)
		// stopped by Shutdown below, after the HTTP server drains
		if err := archive.Start(context.Background()); err != nil {
			logger.Fatalf("start archiver: %v", err)
		}
		tradeArchive = archive
	}

	tradeClient := trades.NewClient(cfg.Trades.FeedURL, logger)
	tradeService := trades.NewService(tradeClient, tradeArchive, cfg.Trades.Limit, logger)

	secret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("auth.jwtsecret is empty, tokens will not survive a restart")
	}
	tokens := auth.NewTokenIssuer(secret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	var store storage.Service
	if storageSvc != nil {
		store = storageSvc
	}
	handler := apphttp.NewHandler(
		userService,
		followService,
		newsService,
		tradeService,
		store,
		cfg.Storage.Bucket,
		cfg.Storage.KeyPrefix,
		tokens,
		logger,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if archive != nil {
		archive.Shutdown()
	}

	logger.Info("bye")
}

type repositories struct {
	users   repository.UserRepository
	follows repository.FollowRepository
	closer  io.Closer
}

func (r repositories) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func openRepositories(ctx context.Context, cfg config.Config, logger *logrus.Logger) (repositories, error) {
	var repos repositories
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.Open(cfg.Database.DSN, logger)
		if err != nil {
			return repos, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return repos, fmt.Errorf("postgres handle: %w", err)
		}
		repos = repositories{
			users:   postgres.NewUserRepository(db),
			follows: postgres.NewFollowRepository(db),
			closer:  sqlDB,
		}
	default:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return repos, err
		}
		repos = repositories{
			users:   sqlite.NewUserRepository(db),
			follows: sqlite.NewFollowRepository(db),
			closer:  db,
		}
	}

	// follows references users, so users first
	if err := repos.users.Init(ctx); err != nil {
		repos.Close()
		return repositories{}, fmt.Errorf("init user repository: %w", err)
	}
	if err := repos.follows.Init(ctx); err != nil {
		repos.Close()
		return repositories{}, fmt.Errorf("init follow repository: %w", err)
	}
	logger.WithField("driver", cfg.Database.Driver).Info("database ready")
	return repos, nil
}

// buildStorage returns nil when no archive bucket is configured.
func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*storage.S3Service, error) {
	if cfg.Storage.Bucket == "" {
		logger.Info("storage.bucket is empty, trade report archive disabled")
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("archiving trade reports to s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}
