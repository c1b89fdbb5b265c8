// Command dormctl runs operator tasks against the dormitory database:
// schema migration, demo data, admin accounts, bulk repairs and the event
// journal consumer.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/dorm-management/internal/config"
	"github.com/iliyamo/dorm-management/internal/database"
	"github.com/iliyamo/dorm-management/internal/logger"
	"github.com/iliyamo/dorm-management/internal/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dormctl",
		Short:         "Dormitory management operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		migrateCmd(),
		seedCmd(),
		createAdminCmd(),
		refreshRoomsCmd(),
		recalcInvoicesCmd(),
		consumeEventsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every subcommand starts from.
type env struct {
	cfg config.Config
	log *zap.Logger
}

func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "dormctl")
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log}, nil
}

func (e *env) openDB(ctx context.Context) (*sql.DB, error) {
	db, err := database.Open(ctx, e.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// purgeCache drops the API's cached responses after a bulk write. Without
// Redis there is nothing to purge.
func (e *env) purgeCache(ctx context.Context) {
	cfg := config.LoadCacheConfig()
	if !cfg.Enabled {
		return
	}
	rdb := config.NewRedisClient(ctx, config.LoadRedisConfig(), e.log)
	if rdb == nil {
		return
	}
	defer func() { _ = rdb.Close() }()
	purgeResponseCache(ctx, rdb, cfg, e.log)
}

func purgeResponseCache(ctx context.Context, rdb *redis.Client, cfg config.CacheConfig, log *zap.Logger) int {
	if rdb == nil || !cfg.Enabled {
		return 0
	}
	n, err := middleware.PurgeCache(ctx, rdb, cfg.Prefix)
	if err != nil {
		log.Warn("response cache purge failed", zap.String("prefix", cfg.Prefix), zap.Error(err))
		return n
	}
	log.Info("response cache purged", zap.String("prefix", cfg.Prefix), zap.Int("keys", n))
	return n
}
