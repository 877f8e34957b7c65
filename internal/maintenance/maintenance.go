// Package maintenance runs periodic background tasks as Go tickers: filling
// in missing player-of-the-game awards and forgetting finished sessions.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/albapepper/eventcentral/internal/config"
	"github.com/albapepper/eventcentral/internal/potg"
	"github.com/albapepper/eventcentral/internal/store"
)

// backfillBatch caps how many games one sweep rescores.
const backfillBatch = 100

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	BackfillInterval time.Duration // Award games that have stats but no POTG
	PruneInterval    time.Duration // Drop finished sessions from the status list
	SessionRetention time.Duration // How long a finished session stays visible
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		BackfillInterval: 30 * time.Minute,
		PruneInterval:    15 * time.Minute,
		SessionRetention: 24 * time.Hour,
	}
}

// ConfigFrom takes the backfill interval from cfg and the rest from
// DefaultConfig.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	c.BackfillInterval = cfg.POTGBackfillInterval
	return c
}

// Pruner forgets finished sessions.
type Pruner interface {
	Prune(retain time.Duration) []string
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, s store.Store, sessions Pruner, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"backfill", cfg.BackfillInterval,
		"prune", cfg.PruneInterval,
		"retention", cfg.SessionRetention)

	tickers := make([]*time.Ticker, 0, 2)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	if cfg.BackfillInterval > 0 {
		t := time.NewTicker(cfg.BackfillInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, "backfill", func() { BackfillPOTG(ctx, s, logger) })
	}

	if cfg.PruneInterval > 0 && sessions != nil {
		t := time.NewTicker(cfg.PruneInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, "prune", func() { pruneSessions(sessions, cfg.SessionRetention, logger) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, name string, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// BackfillPOTG scores games that have stat rows but no award, e.g. after a
// crash between writing stats and writing the award. Returns how many games
// got one.
func BackfillPOTG(ctx context.Context, s store.Store, logger *slog.Logger) int {
	ids, err := s.GamesMissingPOTG(ctx, backfillBatch)
	if err != nil {
		logger.Warn("Backfill: failed to list games", "error", err)
		return 0
	}
	awarded := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		pog, err := potg.Recompute(ctx, s, id)
		if err != nil {
			logger.Warn("Backfill: failed to score game", "game_id", id, "error", err)
			continue
		}
		if pog != nil {
			awarded++
		}
	}
	if awarded > 0 {
		logger.Info("Backfill: awarded players of the game", "count", awarded, "checked", len(ids))
	}
	return awarded
}

func pruneSessions(p Pruner, retain time.Duration, logger *slog.Logger) {
	if pruned := p.Prune(retain); len(pruned) > 0 {
		logger.Info("Pruned finished sessions", "events", pruned)
	}
}
