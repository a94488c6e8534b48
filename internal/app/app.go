// Package app wires configuration into stores, the directory and the use
// cases shared by the API server and the admin CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/tenancy-engine/internal/adapter/api/handler"
	"github.com/V4T54L/tenancy-engine/internal/adapter/metrics"
	"github.com/V4T54L/tenancy-engine/internal/adapter/repository/memory"
	"github.com/V4T54L/tenancy-engine/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/tenancy-engine/internal/adapter/repository/redis"
	"github.com/V4T54L/tenancy-engine/internal/adapter/repository/wal"
	"github.com/V4T54L/tenancy-engine/internal/domain"
	"github.com/V4T54L/tenancy-engine/internal/pkg/config"
	"github.com/V4T54L/tenancy-engine/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

// App holds the wired components. Close releases them.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.LeaseMetrics
	Repo    domain.LeaseRepository
	Leases  *usecase.LeaseService
	Alerts  *usecase.AlertService
	// Deps are the backing stores probed by the readiness check.
	Deps map[string]handler.Pinger
	// DB is nil when leases are kept in memory.
	DB *sql.DB

	closers []func() error
}

// Open connects the configured stores. Without POSTGRES_URL leases live in
// memory, journaled to JOURNAL_DIR when set; without REDIS_ADDR display
// names fall back to ids.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewLeaseMetrics(reg),
		Deps:    map[string]handler.Pinger{},
	}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	dir, err := a.openDirectory(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := usecase.Options{
		Location:             loc,
		IndexationNoticeDays: cfg.IndexationNoticeDays,
		Metrics:              a.Metrics,
	}
	clock := domain.SystemClock{}
	a.Leases = usecase.NewLeaseService(a.Repo, dir, clock, logger, opts)
	a.Alerts = usecase.NewAlertService(a.Repo, dir, clock, logger, opts)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("failed to open postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.DB = db
		a.Deps["postgres"] = db
		a.Repo = postgres.NewLeaseRepository(db, a.Logger)
		a.Logger.Info("using postgres lease store")
		return nil
	}

	var journal memory.Journal
	if cfg.JournalDir != "" {
		j, err := wal.NewJournal(cfg.JournalDir, cfg.JournalSegmentBytes, cfg.JournalMaxBytes, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to open lease journal: %w", err)
		}
		a.closers = append(a.closers, j.Close)
		journal = j
	}
	repo := memory.NewLeaseRepository(journal, a.Logger)
	if err := repo.Restore(ctx); err != nil {
		return err
	}
	a.Repo = repo
	a.Logger.Info("using in-memory lease store", "journal_dir", cfg.JournalDir)
	return nil
}

func (a *App) openDirectory(ctx context.Context) (domain.Directory, error) {
	cfg := a.Config
	if cfg.RedisAddr == "" {
		return redisrepo.StaticDirectory{}, nil
	}
	redisOpts, err := redisOptions(cfg.RedisAddr)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(redisOpts)
	a.closers = append(a.closers, client.Close)
	if err := client.Ping(ctx).Err(); err != nil {
		// Names are display-only; the directory degrades to ids until redis is back.
		a.Logger.Warn("could not connect to redis, display names will fall back to ids", "error", err)
	}
	a.Deps["redis"] = handler.PingFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	return redisrepo.NewDirectory(client, a.Logger, cfg.DirectoryCacheTTL, a.Metrics), nil
}

// redisOptions accepts a plain host:port as well as a redis:// or rediss://
// URL carrying credentials and a database number.
func redisOptions(addr string) (*redis.Options, error) {
	if !strings.Contains(addr, "://") {
		return &redis.Options{Addr: addr}, nil
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return opts, nil
}

// Close releases every opened resource in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
