package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	URL      string
	Password string
	DB       int
	Prefix   string
}

// Redis is a JSON value cache. A Redis with no client is disabled: every Get
// misses and every Set is dropped.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects using opts. When no address is configured or the server
// does not answer a ping, a disabled cache is returned.
func NewRedis(ctx context.Context, opts Options, logger *logrus.Logger) *Redis {
	var redisOpts *redis.Options
	switch {
	case opts.URL != "":
		parsed, err := redis.ParseURL(opts.URL)
		if err != nil {
			logger.Warnf("redis url invalid, cache disabled: %v", err)
			return &Redis{}
		}
		redisOpts = parsed
	case opts.Addr != "":
		redisOpts = &redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}
	default:
		logger.Info("redis not configured, cache disabled")
		return &Redis{}
	}

	client := redis.NewClient(redisOpts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warnf("redis connection failed, cache disabled: %v", err)
		_ = client.Close()
		return &Redis{}
	}

	logger.Infof("connected to redis at %s", redisOpts.Addr)
	return &Redis{client: client, prefix: opts.Prefix}
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Enabled() bool {
	return r != nil && r.client != nil
}

// Get decodes the cached value for key into dst. The boolean reports a hit.
func (r *Redis) Get(ctx context.Context, key string, dst any) (bool, error) {
	if !r.Enabled() {
		return false, nil
	}
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !r.Enabled() {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	if !r.Enabled() {
		return nil
	}
	return r.client.Close()
}
