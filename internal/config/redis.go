package config

import (
	"context"
	"crypto/tls"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig backs the rate limiter and the response cache.
type RedisConfig struct {
	URL      string // REDIS_URL, wins over the discrete fields when set
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// LoadRedisConfig reads REDIS_URL, or REDIS_ADDR (REDIS_HOST and
// REDIS_PORT together override it), REDIS_PASSWORD, REDIS_DB and REDIS_TLS.
func LoadRedisConfig() RedisConfig {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	return RedisConfig{
		URL:      os.Getenv("REDIS_URL"),
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envInt("REDIS_DB", 0),
		TLS:      envBool("REDIS_TLS", false),
	}
}

// Options turns the config into client options.
func (c RedisConfig) Options() (*redis.Options, error) {
	if c.URL != "" {
		return redis.ParseURL(c.URL)
	}
	opt := &redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB}
	if c.TLS {
		opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opt, nil
}

// NewRedisClient returns nil when the config is unusable or the server
// does not answer a ping; the cache and rate limit middleware then pass
// requests straight through.
func NewRedisClient(ctx context.Context, cfg RedisConfig, log *zap.Logger) *redis.Client {
	opt, err := cfg.Options()
	if err != nil {
		log.Warn("redis config invalid, cache and rate limit disabled", zap.Error(err))
		return nil
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, cache and rate limit disabled", zap.String("addr", opt.Addr), zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}
