package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pideci/backend/internal/cache"
	"pideci/backend/internal/config"
	"pideci/backend/internal/httpapi"
	"pideci/backend/internal/observability"
	"pideci/backend/internal/reporting"
	"pideci/backend/internal/scheduler"
	"pideci/backend/internal/seed"
	"pideci/backend/internal/service"
	"pideci/backend/internal/store"
	"pideci/backend/internal/store/memory"
	pgstore "pideci/backend/internal/store/postgres"
	sqlitestore "pideci/backend/internal/store/sqlite"
)

type repository interface {
	store.Repository
	Close() error
}

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Error("invalid security configuration", "error", err)
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	metrics := observability.NewMetrics()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("repository unavailable", "error", err)
		os.Exit(1)
	}
	closers := []func() error{repo.Close}

	statsCache, closeCache := openCache(ctx, cfg, logger)
	if closeCache != nil {
		closers = append(closers, closeCache)
	}

	reports := reporting.NewEngine(repo, statsCache, cfg.StatsCacheTTL(), loc).WithLogger(logger)
	svc := service.New(repo,
		service.WithLocation(loc),
		service.WithLogger(logger),
		service.WithMetrics(metrics),
		service.WithStatsInvalidator(reports),
	)

	if err := seed.Run(ctx, svc, seed.Options{AdminPassword: cfg.SeedAdminPassword, DemoMenu: cfg.SeedDemoData}, logger); err != nil {
		logger.Error("seeding failed", "error", err)
		os.Exit(1)
	}

	// The startup check always runs so a fresh install opens with a session.
	rollover := scheduler.New(svc, loc, logger, metrics)
	_, _ = rollover.RunOnce(ctx)
	if cfg.RolloverEnabled {
		if err := rollover.Start(cfg.RolloverSchedule); err != nil {
			logger.Error("invalid ROLLOVER_SCHEDULE", "spec", cfg.RolloverSchedule, "error", err)
			os.Exit(1)
		}
	}

	api := httpapi.New(svc, reports, httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL()), httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		CookieSecure:  cfg.CookieSecure,
		Logger:        logger,
		Metrics:       metrics,
		Health:        healthCheck(repo),
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("POS backend listening", "addr", cfg.Address(), "timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	rollover.Stop(shutdownCtx)

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", "error", err)
		}
	}

	logger.Info("server stopped")
}

// openRepository picks postgres when DATABASE_URL is set, then sqlite when
// SQLITE_PATH is set, and otherwise keeps everything in memory.
func openRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		logger.Info("repository: postgres")
		return pg, nil
	case cfg.SQLitePath != "":
		db, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite %s: %w", cfg.SQLitePath, err)
		}
		logger.Info("repository: sqlite", "path", cfg.SQLitePath)
		return db, nil
	default:
		logger.Warn("repository: in-memory, data is lost on restart")
		return memory.New(), nil
	}
}

// openCache connects the statistics cache. A missing or unreachable redis
// degrades to no caching.
func openCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (cache.Cache, func() error) {
	if cfg.RedisAddr == "" {
		logger.Info("cache: noop")
		return cache.Noop{}, nil
	}
	redisCache := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, using noop cache", "addr", cfg.RedisAddr, "error", err)
		_ = redisCache.Close()
		return cache.Noop{}, nil
	}
	logger.Info("cache: redis", "addr", cfg.RedisAddr)
	return redisCache, redisCache.Close
}

func healthCheck(repo repository) func(ctx context.Context) error {
	p, ok := repo.(pinger)
	if !ok {
		return nil
	}
	return p.Ping
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
