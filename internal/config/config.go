package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Driver string
		Path   string
		DSN    string
	}
	News struct {
		BaseURL         string
		APIKey          string
		Limit           int
		RateLimit       float64
		CacheTTLSeconds int
	}
	Trades struct {
		FeedURL string
		Limit   int
	}
	Redis struct {
		Addr     string
		URL      string
		Password string
		DB       int
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Auth struct {
		JWTSecret       string
		TokenTTLMinutes int
	}
	Log struct {
		Level string
	}
}

// Load reads configuration from environment variables and optional config files.
// Variables are prefixed with CAPITOL_, e.g. CAPITOL_NEWS_APIKEY.
func Load() (Config, error) {
	// .env never overrides the real environment
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CAPITOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:5000")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/capitol.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("news.baseurl", "https://finnhub.io/api/v1")
	v.SetDefault("news.apikey", "")
	v.SetDefault("news.limit", 5)
	v.SetDefault("news.ratelimit", 1.0)
	v.SetDefault("news.cachettlseconds", 300)
	v.SetDefault("trades.feedurl", "https://house-stock-watcher-data.s3-us-west-2.amazonaws.com/data/all_transactions.json")
	v.SetDefault("trades.limit", 10)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "trade-reports")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttlminutes", 60*24)
	v.SetDefault("log.level", "info")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.News.Limit <= 0 || c.News.Limit > 5 {
		return fmt.Errorf("news.limit must be between 1 and 5, got %d", c.News.Limit)
	}
	return nil
}
