package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/enricher/internal/config"
	"github.com/JonMunkholm/enricher/internal/enrich"
	"github.com/JonMunkholm/enricher/internal/history"
	"github.com/JonMunkholm/enricher/internal/logging"
	"github.com/JonMunkholm/enricher/internal/presets"
	"github.com/JonMunkholm/enricher/internal/processing"
	"github.com/JonMunkholm/enricher/internal/session"
	"github.com/JonMunkholm/enricher/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := presets.Load(cfg.Presets.File)
	if err != nil {
		return err
	}
	slog.Info("presets loaded",
		"sites", len(p.Sites),
		"candidates", len(p.Candidates),
		"companies", len(p.Companies),
	)

	recorder, closeHistory, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeHistory()

	opts := processing.DefaultOptions(p.Companies)
	opts.StartDelay = cfg.Processing.StartDelay
	if cfg.Processing.Interval > 0 {
		opts.Interval = cfg.Processing.Interval
	}

	runner := processing.NewRunner(processing.RunnerConfig{
		Options:  opts,
		Limiter:  processing.NewLimiter(cfg.Processing.MaxConcurrent, cfg.Processing.MaxWaitTime),
		Recorder: recorder,
		Timeout:  cfg.Processing.Timeout,
	})

	var src rand.Source
	if cfg.Processing.Seed != 0 {
		src = rand.NewSource(cfg.Processing.Seed)
	}

	sessions := session.NewStore(p.WizardOptions())
	server := web.NewServer(cfg, web.Deps{
		Sessions: sessions,
		Runner:   runner,
		Provider: enrich.NewMockProvider(p.Candidates, src),
		History:  recorder,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	g.Go(func() error {
		return sessions.RunJanitor(gctx, session.JanitorConfig{
			TTL:           cfg.Session.TTL,
			CheckInterval: cfg.Session.CheckInterval,
		})
	})

	g.Go(func() error {
		return server.RunMaintenance(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		status := runner.LimiterStatus()
		if status.Active > 0 {
			slog.Info("cancelling active runs", "active", status.Active)
		}
		runner.CancelAll()
		if err := runner.Wait(shutdownCtx); err != nil {
			slog.Warn("runs did not stop in time", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// openHistory returns the PostgreSQL recorder when a database is configured
// and the in-memory one otherwise.
func openHistory(ctx context.Context, cfg *config.Config) (history.Recorder, func(), error) {
	if !cfg.Database.Enabled() {
		slog.Info("run history kept in memory", "capacity", cfg.Database.HistoryCapacity)
		return history.NewMemoryRecorder(cfg.Database.HistoryCapacity), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	rec, err := history.NewPostgresRecorder(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	slog.Info("run history stored in PostgreSQL")
	return rec, pool.Close, nil
}
