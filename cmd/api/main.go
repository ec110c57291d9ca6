// Command api serves the feed directory over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"

	"github.com/jdholdren/podindex/internal/api"
	"github.com/jdholdren/podindex/internal/catalog"
	"github.com/jdholdren/podindex/internal/identity"
	"github.com/jdholdren/podindex/internal/logger"
	"github.com/jdholdren/podindex/internal/migrations"
	"github.com/jdholdren/podindex/internal/store"
	"github.com/jdholdren/podindex/internal/sync"
)

type config struct {
	Database       string `env:"DATABASE, required"`
	DatabaseDriver string `env:"DATABASE_DRIVER, default=sqlite"`

	Port       int    `env:"PORT, default=4444"`
	CorsOrigin string `env:"CORS_ORIGIN, default=*"`

	// Which format to use for logging: either text or json
	LoggerFormat string     `env:"LOGGER_FORMAT, default=text"`
	LoggerLevel  slog.Level `env:"LOGGER_LEVEL, default=info"`

	MaxResults        int           `env:"MAX_RESULTS, default=1000"`
	DefaultResults    int           `env:"DEFAULT_RESULTS, default=40"`
	SyncWindow        time.Duration `env:"SYNC_WINDOW, default=15m"`
	SyncResults       int           `env:"SYNC_RESULTS, default=100"`
	ResponseCacheTTL  time.Duration `env:"RESPONSE_CACHE_TTL, default=30s"`
	ResponseCacheSize int           `env:"RESPONSE_CACHE_SIZE, default=512"`

	// Episodes published longer ago than this are pruned. Zero keeps everything.
	EpisodeRetention time.Duration `env:"EPISODE_RETENTION, default=0s"`
	PruneInterval    time.Duration `env:"PRUNE_INTERVAL, default=1h"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}
	if err := cfg.validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	slog.SetDefault(logger.New(os.Stderr, cfg.LoggerFormat, cfg.LoggerLevel))

	if err := runServer(ctx, cfg); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

// validate catches settings that envconfig accepts but the server can't run with.
func (c config) validate() error {
	if c.EpisodeRetention < 0 {
		return fmt.Errorf("EPISODE_RETENTION must not be negative, got %s", c.EpisodeRetention)
	}
	if c.EpisodeRetention > 0 && c.PruneInterval <= 0 {
		return fmt.Errorf("PRUNE_INTERVAL must be positive when EPISODE_RETENTION is set, got %s", c.PruneInterval)
	}

	return nil
}

func runServer(ctx context.Context, cfg config) error {
	dbx, err := store.Open(store.Config{Driver: cfg.DatabaseDriver, DSN: cfg.Database})
	if err != nil {
		return err
	}
	defer dbx.Close()

	s := store.New(dbx)

	// Retry until the database answers
	if err := retry.Fibonacci(ctx, 1*time.Second, func(ctx context.Context) error {
		if err := s.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "database not ready", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("error reaching database: %w", err)
	}

	if cfg.DatabaseDriver == store.DriverSQLite {
		if err := migrations.Run(dbx); err != nil {
			return fmt.Errorf("error running migrations: %w", err)
		}
	}

	var (
		repo   = catalog.New(s)
		ids    = identity.New(s)
		syncer = sync.New(s, repo, sync.Config{
			Window:         cfg.SyncWindow,
			MaxResults:     cfg.MaxResults,
			DefaultResults: cfg.SyncResults,
		})
		srvr = api.NewServer(api.ServerConfig{
			Port:           cfg.Port,
			CorsOrigin:     cfg.CorsOrigin,
			MaxResults:     cfg.MaxResults,
			DefaultResults: cfg.DefaultResults,
			CacheTTL:       cfg.ResponseCacheTTL,
			CacheSize:      cfg.ResponseCacheSize,
		}, repo, ids, syncer)
	)

	var g run.Group
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	g.Add(func() error {
		slog.Info("listening", "port", cfg.Port)
		if err := srvr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error listening: %s", err)
		}
		return nil
	}, func(error) {
		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srvr.Shutdown(downCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}
	})

	if cfg.EpisodeRetention > 0 {
		pruneCtx, stopPruning := context.WithCancel(ctx)
		pruner := catalog.NewPruner(repo, cfg.EpisodeRetention, cfg.PruneInterval, nil)
		g.Add(func() error {
			return pruner.Run(pruneCtx)
		}, func(error) {
			stopPruning()
		})
	}

	err = g.Run()
	var sigErr run.SignalError
	switch {
	case errors.As(err, &sigErr):
		slog.Info("shutting down", "signal", sigErr.Signal)
		return nil
	case errors.Is(err, context.Canceled):
		slog.Info("shutting down")
		return nil
	}

	return err
}
