package core

// scheduler.go runs background maintenance for the session service.
//
// The reaper closes sessions nobody is watching and nobody has touched for
// IdleTimeout. It is long-running and context-aware for graceful shutdown.

import (
	"context"
	"log/slog"
	"time"
)

// Reaper defaults.
const (
	DefaultIdleTimeout  = 30 * time.Minute
	DefaultReapInterval = time.Minute
)

// ReaperConfig holds configuration for the idle-session reaper.
// All fields have sensible defaults if zero values are provided.
type ReaperConfig struct {
	IdleTimeout   time.Duration // Inactivity before a session is closed (default: 30m)
	CheckInterval time.Duration // How often to run (default: 1m)
}

func (c ReaperConfig) withDefaults() ReaperConfig {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultReapInterval
	}
	return c
}

// StartReaper periodically closes idle sessions. It runs immediately on
// start, then every CheckInterval, and returns when ctx is cancelled.
func (s *Service) StartReaper(ctx context.Context, cfg ReaperConfig) {
	cfg = cfg.withDefaults()
	slog.Info("session reaper started",
		"idle_timeout", cfg.IdleTimeout,
		"check_interval", cfg.CheckInterval,
	)

	s.runReapJob(cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session reaper stopped")
			return
		case <-ticker.C:
			s.runReapJob(cfg)
		}
	}
}

// runReapJob performs one reap cycle.
func (s *Service) runReapJob(cfg ReaperConfig) {
	start := time.Now()
	reaped := s.ReapIdle(cfg.IdleTimeout)
	if reaped == 0 {
		slog.Debug("reap job completed", "sessions_reaped", 0)
		return
	}
	slog.Info("reaped idle sessions",
		"sessions_reaped", reaped,
		"sessions_open", s.SessionCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
