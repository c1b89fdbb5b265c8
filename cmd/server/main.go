package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/dorm-management/internal/app"
	"github.com/iliyamo/dorm-management/internal/config"
	"github.com/iliyamo/dorm-management/internal/database"
	"github.com/iliyamo/dorm-management/internal/handler"
	"github.com/iliyamo/dorm-management/internal/logger"
	"github.com/iliyamo/dorm-management/internal/middleware"
	"github.com/iliyamo/dorm-management/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "dorm-api")
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Open(context.Background(), cfg)
	if err != nil {
		log.Fatal("database open failed", zap.Error(err))
	}
	defer db.Close()

	a := app.New(cfg, db, log)
	rdb := config.NewRedisClient(context.Background(), config.LoadRedisConfig(), log)
	if rdb != nil {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(logger.RequestLogger(log))

	h := router.Handlers{
		Health:      handler.Health(db),
		Auth:        handler.NewAuthHandler(cfg, a.Repos.Users, log),
		Students:    handler.NewStudentHandler(a.Repos.Students, log),
		Catalog:     handler.NewCatalogHandler(a.Repos.RoomTypes, a.Repos.Services, a.Services.Catalog, log),
		Rooms:       handler.NewRoomHandler(a.Repos.Rooms, a.Services.Rooms, log),
		Contracts:   handler.NewContractHandler(a.Repos.Contracts, a.Repos.Usages, a.Services.Contracts, log),
		Usages:      handler.NewUsageHandler(a.Repos.Usages, a.Services.Usages, log),
		Invoices:    handler.NewInvoiceHandler(a.Repos.Invoices, a.Repos.Usages, a.Services.Invoices, log),
		Maintenance: handler.NewMaintenanceHandler(a.Services.Rooms, a.Services.Invoices, log),
	}
	router.RegisterRoutes(e, h, cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log),
	)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}
