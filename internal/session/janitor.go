package session

// janitor.go expires idle sessions in the background. It is long-running
// and stops when its context is cancelled.

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultTTL           = 2 * time.Hour
	DefaultCheckInterval = 5 * time.Minute
)

// JanitorConfig controls session expiry. Zero values select the defaults.
type JanitorConfig struct {
	TTL           time.Duration // idle time before a session is dropped
	CheckInterval time.Duration // how often to look
}

// RunJanitor expires idle sessions every CheckInterval until ctx is done.
// It always returns nil so it can run inside an errgroup.
func (st *Store) RunJanitor(ctx context.Context, cfg JanitorConfig) error {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}

	slog.Info("session janitor started", "ttl", cfg.TTL, "interval", cfg.CheckInterval)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session janitor stopped")
			return nil
		case <-ticker.C:
			st.sweep(cfg.TTL)
		}
	}
}

func (st *Store) sweep(ttl time.Duration) {
	start := time.Now()
	if n := st.Expire(ttl); n > 0 {
		slog.Info("expired idle sessions",
			"expired", n,
			"remaining", st.Len(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
