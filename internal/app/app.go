// Package app builds the object graph shared by the api server and the
// ingest CLI: store, registry, reconciler, browser driver, scraper, the
// provider API client and the session manager on top of them.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/albapepper/eventcentral/internal/browser"
	"github.com/albapepper/eventcentral/internal/config"
	"github.com/albapepper/eventcentral/internal/db"
	"github.com/albapepper/eventcentral/internal/provider/gc"
	"github.com/albapepper/eventcentral/internal/reconcile"
	"github.com/albapepper/eventcentral/internal/registry"
	"github.com/albapepper/eventcentral/internal/scrape"
	"github.com/albapepper/eventcentral/internal/session"
	"github.com/albapepper/eventcentral/internal/store"
	"github.com/albapepper/eventcentral/internal/store/sqlite"
	"github.com/albapepper/eventcentral/internal/tracked"
)

// App holds the wired components. Pool is nil when DB_DRIVER=sqlite.
type App struct {
	Config     *config.Config
	Store      store.Store
	Pool       *db.Pool
	Registry   *registry.Registry
	Reconciler *reconcile.Reconciler
	Driver     browser.Driver
	Scraper    *scrape.Scraper
	Tokens     *gc.TokenCache
	API        *gc.Client

	logger *slog.Logger
	close  func()
}

// OpenStore connects to the configured database. The returned func releases
// it.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, *db.Pool, func(), error) {
	switch cfg.DBDriver {
	case "sqlite":
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, nil, func() { s.Close() }, nil
	default:
		pool, err := db.New(ctx, cfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		return db.NewStore(pool), pool, pool.Close, nil
	}
}

// New opens the store and builds everything on top of it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	st, pool, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config: cfg,
		Store:  st,
		Pool:   pool,
		logger: logger,
		close:  closeStore,
	}
	a.Registry, err = registry.New(st, cfg.TeamAliases, logger)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("team aliases: %w", err)
	}
	a.Reconciler = reconcile.New(st, a.Registry, logger)
	a.Driver = browser.NewChrome(browser.Options{
		RemoteURL:   cfg.ChromeURL,
		ExecPath:    cfg.ChromePath,
		ProfileDir:  cfg.BrowserProfileDir,
		Headless:    cfg.BrowserHeadless,
		PageTimeout: cfg.PageTimeout,
		Logger:      logger,
	})
	a.Scraper = scrape.New(cfg.ProviderWebURL, logger)

	if cfg.Transport == config.TransportAPI {
		src := &gc.BrowserTokenSource{
			Driver:  a.Driver,
			Scraper: a.Scraper,
			TeamURL: tokenTeamURL(cfg.TeamsFile, logger),
		}
		a.Tokens = gc.NewTokenCache(src, cfg.TokenRefreshMargin, logger)
		a.API = gc.NewClient(gc.Options{
			BaseURL:      cfg.ProviderAPIURL,
			RequestDelay: cfg.RequestDelay,
			RetryMax:     cfg.RetryMax,
			Logger:       logger,
		}, a.Tokens)
	}
	return a, nil
}

// Manager builds a session manager. onSaved may be nil.
func (a *App) Manager(onSaved func(gameID int64)) *session.Manager {
	return session.NewManager(session.OptionsFromConfig(a.Config), session.Deps{
		Store:      a.Store,
		Reconciler: a.Reconciler,
		Driver:     a.Driver,
		Scraper:    a.Scraper,
		API:        a.API,
		Logger:     a.logger,
		OnSaved:    onSaved,
	})
}

// Close releases the store.
func (a *App) Close() {
	if a.close != nil {
		a.close()
	}
}

// tokenTeamURL picks the first tracked team; its schedule is where the
// browser goes to capture a token.
func tokenTeamURL(path string, logger *slog.Logger) string {
	f, err := tracked.Load(path)
	if err != nil {
		logger.Warn("Teams file unreadable, token capture will fail until it is fixed", "path", path, "error", err)
		return ""
	}
	if len(f.Teams) == 0 {
		return ""
	}
	return f.Teams[0].URL
}
