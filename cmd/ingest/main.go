// Command ingest is the EventCentral command-line tool.
//
// Usage:
//
//	eventcentral-ingest poll presidents-day
//	eventcentral-ingest scrape-event presidents-day
//	eventcentral-ingest parse saved-box-score.html
//	eventcentral-ingest potg recompute --game 42
//	eventcentral-ingest migrate
//	eventcentral-ingest teams validate --file ec-teams.txt
//	eventcentral-ingest token
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/eventcentral/internal/app"
	"github.com/albapepper/eventcentral/internal/boxscore"
	"github.com/albapepper/eventcentral/internal/config"
	"github.com/albapepper/eventcentral/internal/db"
	"github.com/albapepper/eventcentral/internal/maintenance"
	"github.com/albapepper/eventcentral/internal/potg"
	"github.com/albapepper/eventcentral/internal/provider/gc"
	"github.com/albapepper/eventcentral/internal/scrape"
	"github.com/albapepper/eventcentral/internal/store"
	"github.com/albapepper/eventcentral/internal/store/sqlite"
	"github.com/albapepper/eventcentral/internal/tracked"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")
	slog.SetDefault(logger)

	root := &cobra.Command{
		Use:          "eventcentral-ingest",
		Short:        "EventCentral box score ingestion CLI",
		SilenceUsage: true,
	}

	root.AddCommand(pollCmd())
	root.AddCommand(scrapeEventCmd())
	root.AddCommand(parseCmd())
	root.AddCommand(potgCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(teamsCmd())
	root.AddCommand(tokenCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// Polling
// --------------------------------------------------------------------------

func pollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll <eventId>",
		Short: "Poll an event until every game is final or interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(func(ctx context.Context, a *app.App) error {
				m := a.Manager(nil)
				out, err := m.Start(args[0])
				if err != nil {
					return err
				}
				logger.Info("Polling", "event", out.EventName, "run_id", out.RunID, "teams", out.TeamsLoaded)

				s, _ := m.Session(out.EventID)
				select {
				case <-s.Done():
				case <-ctx.Done():
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					defer cancel()
					if err := m.Shutdown(shutdownCtx); err != nil {
						return err
					}
				}
				snap := m.Status()[0]
				logger.Info("Polling finished",
					"event", snap.EventID, "state", snap.State,
					"reason", snap.StopReason, "cycles", snap.Cycles)
				if snap.LastError != "" {
					return fmt.Errorf("session ended with error: %s", snap.LastError)
				}
				return nil
			})
		},
	}
}

func scrapeEventCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape-event <eventId>",
		Short: "Run a single polling cycle for an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(func(ctx context.Context, a *app.App) error {
				start := time.Now()
				res, err := a.Manager(nil).RunOnce(ctx, args[0])
				if err != nil {
					return err
				}
				logger.Info("Cycle finished",
					"event", args[0],
					"duration", time.Since(start).Round(time.Second),
					"summary", res.Summary())
				for _, e := range res.Errors {
					logger.Error("cycle error", "error", e)
				}
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// Offline tools
// --------------------------------------------------------------------------

func parseCmd() *cobra.Command {
	var finalInnings float64
	cmd := &cobra.Command{
		Use:   "parse <file.html>",
		Short: "Parse a saved box score page and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			doc, err := goquery.NewDocumentFromReader(f)
			if err != nil {
				return fmt.Errorf("parse html: %w", err)
			}
			page := scrape.ParseBoxScore(doc)
			if len(page.Tables) < 4 {
				logger.Warn("Fewer than four stat tables", "tables", len(page.Tables))
			}
			res := boxscore.ResolveScore(&page.Header, page.Box, finalInnings)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"away":       page.AwayName,
				"home":       page.HomeName,
				"game_time":  page.GameTime,
				"resolution": res,
				"box":        page.Box,
			})
		},
	}
	cmd.Flags().Float64Var(&finalInnings, "final-innings", boxscore.DefaultFinalInnings, "Innings each side must pitch before a game without a header status counts as final")
	return cmd
}

func teamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "Tracked team file tools",
	}
	var file string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check the tracked team file and list its events",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = os.Getenv("TEAMS_FILE")
			}
			if file == "" {
				file = "ec-teams.txt"
			}
			f, err := tracked.Load(file)
			if err != nil {
				return err
			}
			for _, e := range f.Events() {
				logger.Info("Event", "id", e.ID, "name", e.Name, "teams", len(e.Teams))
			}
			for _, le := range f.Errors {
				logger.Error("Invalid line", "line", le.Line, "text", le.Text, "error", le.Err)
			}
			if len(f.Errors) > 0 {
				return fmt.Errorf("%d invalid line(s) in %s", len(f.Errors), file)
			}
			return nil
		},
	}
	validate.Flags().StringVar(&file, "file", "", "Teams file (default $TEAMS_FILE or ec-teams.txt)")
	cmd.AddCommand(validate)
	return cmd
}

// --------------------------------------------------------------------------
// Store maintenance
// --------------------------------------------------------------------------

func potgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "potg",
		Short: "Player of the game tools",
	}
	var (
		gameID  int64
		all     bool
		missing bool
	)
	recompute := &cobra.Command{
		Use:   "recompute",
		Short: "Rescore the player of the game from stored stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			if gameID == 0 && !all && !missing {
				return fmt.Errorf("one of --game, --all or --missing is required")
			}
			return runWithStore(func(ctx context.Context, cfg *config.Config, s store.Store) error {
				if missing {
					n := maintenance.BackfillPOTG(ctx, s, logger)
					logger.Info("Backfill finished", "awarded", n)
					return nil
				}
				ids := []int64{gameID}
				if all {
					games, err := s.ListGames(ctx, store.GameFilter{})
					if err != nil {
						return err
					}
					ids = ids[:0]
					for _, g := range games {
						ids = append(ids, g.ID)
					}
				}
				for _, id := range ids {
					pog, err := potg.Recompute(ctx, s, id)
					if err != nil {
						logger.Error("Recompute failed", "game_id", id, "error", err)
						continue
					}
					if pog == nil {
						logger.Info("No stats, award cleared", "game_id", id)
						continue
					}
					logger.Info("Player of the game", "game_id", id, "player_id", pog.PlayerID, "score", pog.Score, "highlights", pog.Highlights)
				}
				return nil
			})
		},
	}
	recompute.Flags().Int64Var(&gameID, "game", 0, "Game ID to rescore")
	recompute.Flags().BoolVar(&all, "all", false, "Rescore every game")
	recompute.Flags().BoolVar(&missing, "missing", false, "Only games that have stats but no award")
	cmd.AddCommand(recompute)
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.DBDriver == "sqlite" {
				s, err := sqlite.Open(cfg.SQLitePath)
				if err != nil {
					return err
				}
				defer s.Close()
				logger.Info("SQLite schema migrated", "path", cfg.SQLitePath)
				return nil
			}
			if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return err
			}
			logger.Info("Postgres schema applied")
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// Provider
// --------------------------------------------------------------------------

func tokenCmd() *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Capture a provider API token through the browser and report its expiry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(func(ctx context.Context, a *app.App) error {
				tokens := a.Tokens
				if tokens == nil {
					f, err := tracked.Load(a.Config.TeamsFile)
					if err != nil {
						return err
					}
					if len(f.Teams) == 0 {
						return fmt.Errorf("no tracked teams in %s", a.Config.TeamsFile)
					}
					tokens = gc.NewTokenCache(&gc.BrowserTokenSource{
						Driver:  a.Driver,
						Scraper: a.Scraper,
						TeamURL: f.Teams[0].URL,
					}, a.Config.TokenRefreshMargin, logger)
				}
				tok, err := tokens.Token(ctx)
				if err != nil {
					return err
				}
				logger.Info("Token captured", "expires", tokens.Expiry().Format(time.RFC3339))
				if show {
					fmt.Fprintln(cmd.OutOrStdout(), tok)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "Print the token")
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// runWithStore handles config loading, store connection, and context cancellation.
func runWithStore(fn func(ctx context.Context, cfg *config.Config, s store.Store) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	s, _, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	return fn(ctx, cfg, s)
}

// runWithApp is runWithStore plus the browser, scraper and session wiring.
func runWithApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
