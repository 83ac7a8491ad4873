package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sitepulse/sitepulse/internal/alert"
	"github.com/sitepulse/sitepulse/internal/config"
	"github.com/sitepulse/sitepulse/internal/httpapi"
	"github.com/sitepulse/sitepulse/internal/logging"
	"github.com/sitepulse/sitepulse/internal/metrics"
	"github.com/sitepulse/sitepulse/internal/notify"
	"github.com/sitepulse/sitepulse/internal/probe"
	"github.com/sitepulse/sitepulse/internal/ratelimit"
	"github.com/sitepulse/sitepulse/internal/repo"
	"github.com/sitepulse/sitepulse/internal/repo/file"
	"github.com/sitepulse/sitepulse/internal/repo/memory"
	"github.com/sitepulse/sitepulse/internal/repo/postgres"
	"github.com/sitepulse/sitepulse/internal/repo/sqlite"
	"github.com/sitepulse/sitepulse/internal/scheduler"
)

func main() {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogConsole)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_open_error", zap.Error(err))
	}
	defer store.Close()

	// Size the limiter's key set to the configured fleet plus slack for
	// ad-hoc submissions through the API.
	maxKeys := cfg.LimiterMaxKeys
	if maxKeys == 0 && len(cfg.Sites) > 0 {
		maxKeys = len(cfg.Sites) * 2
	}
	limiter, err := ratelimit.New(cfg.AlertBurst, cfg.AlertWindow(), maxKeys)
	if err != nil {
		logger.Fatal("limiter_config_error", zap.Error(err))
	}

	sinks := notify.Multi{notify.NewLogger(logger)}
	if slack := notify.NewSlack(cfg.SlackWebhook); slack != nil {
		sinks = append(sinks, slack)
	}

	metricsEngine := metrics.NewEngine(store, store, logger)
	engine := alert.NewEngine(logger, store, store, metricsEngine, limiter, sinks)

	var checker probe.Checker = probe.NewHTTPChecker(cfg.HTTPTimeout)
	if cfg.Retries > 1 {
		checker = &probe.RetryChecker{Inner: checker, Attempts: cfg.Retries, Backoff: cfg.RetryWait}
	}

	runner := scheduler.NewRunner(logger, engine, checker, cfg.Sites, cfg.Schedule, cfg.HTTPTimeout, cfg.Concurrency)
	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler_error", zap.Error(err))
		}
	}()

	api := httpapi.NewServer(logger, engine)
	srv := &http.Server{Addr: cfg.Addr, Handler: api.Router(cfg.PublicRPM, cfg.PublicBurst)}

	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("api_error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutCtx)
	logger.Info("shutdown_complete")
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		logger.Info("store_backend", zap.String("kind", "postgres"))
		return postgres.New(ctx, cfg.DatabaseURL, cfg.HistoryCap, logger)
	case cfg.SQLitePath != "":
		logger.Info("store_backend", zap.String("kind", "sqlite"), zap.String("path", cfg.SQLitePath))
		return sqlite.Open(ctx, cfg.SQLitePath, cfg.HistoryCap)
	case cfg.DataDir != "":
		logger.Info("store_backend", zap.String("kind", "file"), zap.String("dir", cfg.DataDir))
		return file.Open(cfg.DataDir, cfg.HistoryCap)
	default:
		logger.Info("store_backend", zap.String("kind", "memory"))
		return memory.New(cfg.HistoryCap), nil
	}
}
