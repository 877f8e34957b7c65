// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/ingest.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Team aliases: provider spellings that refer to the same club
// --------------------------------------------------------------------------

// DefaultTeamAliases maps raw provider names to their canonical team name.
// Lookups try an exact match first, then a case-insensitive one.
var DefaultTeamAliases = map[string]string{
	"Ballplex Bolts 11U": "Ballplex Academy 11U",
	"Warriors 11U":       "Warriors Baseball Club Orange 11U",
	"tc elite 11u":       "TC ELITE 11U",
	"TC ELITE 11U 11U":   "TC ELITE 11U",
	"Tc Elite 11u":       "TC ELITE 11U",
	"TC Elite 11U":       "TC ELITE 11U",
	"TC ELITE 11U 11u":   "TC ELITE 11U",
}

// --------------------------------------------------------------------------
// Table names: single source of truth, matches schema.sql
// --------------------------------------------------------------------------

const (
	TeamsTable        = "ec_teams"
	PlayersTable      = "ec_players"
	GamesTable        = "ec_games"
	GameStatsTable    = "ec_game_stats"
	PlayerOfGameTable = "ec_player_of_game"
	GameRefsTable     = "ec_game_refs"
)

// Transport selects how box scores are fetched from the provider.
const (
	TransportDOM = "dom"
	TransportAPI = "api"
)

// --------------------------------------------------------------------------
// Config struct: populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBDriver       string // postgres, sqlite
	SQLitePath     string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Control API auth
	ControlAPISecret     string
	ControlAPISecretHash string // bcrypt
	ControlJWTSecret     string
	AuthFailLimit        int
	AuthFailWindow       time.Duration

	// Polling
	TeamsFile             string
	PollInterval          time.Duration
	AutoStopWindow        time.Duration
	MaxSessions           int
	TeamDelay             time.Duration
	PageTimeout           time.Duration
	RetryMax              int
	FinalInningsThreshold float64
	Transport             string

	// Provider
	ProviderWebURL     string
	ProviderAPIURL     string
	TokenRefreshMargin time.Duration
	RequestDelay       time.Duration

	// Browser
	ChromeURL         string // remote allocator websocket/debug URL
	ChromePath        string
	BrowserProfileDir string
	BrowserHeadless   bool

	// Maintenance
	POTGBackfillInterval time.Duration

	// Cache
	CacheEnabled bool

	TeamAliases map[string]string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	driver := strings.ToLower(envOr("DB_DRIVER", "postgres"))
	dbURL := envOr("DATABASE_URL", "")
	if driver == "postgres" && dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set (or DB_DRIVER=sqlite)")
	}
	if driver != "postgres" && driver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	transport := strings.ToLower(envOr("TRANSPORT", TransportDOM))
	if transport != TransportDOM && transport != TransportAPI {
		return nil, fmt.Errorf("unsupported TRANSPORT %q", transport)
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBDriver:       driver,
		SQLitePath:     envOr("SQLITE_PATH", "eventcentral.db"),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 3456)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		ControlAPISecret:     envOr("CONTROL_API_SECRET", envOr("API_SECRET", "")),
		ControlAPISecretHash: envOr("CONTROL_API_SECRET_HASH", ""),
		ControlJWTSecret:     envOr("CONTROL_JWT_SECRET", ""),
		AuthFailLimit:        envInt("AUTH_FAIL_LIMIT", 10),
		AuthFailWindow:       time.Duration(envInt("AUTH_FAIL_WINDOW_MINUTES", 15)) * time.Minute,

		TeamsFile:             envOr("TEAMS_FILE", "ec-teams.txt"),
		PollInterval:          time.Duration(envInt("POLL_INTERVAL_MINUTES", 10)) * time.Minute,
		AutoStopWindow:        time.Duration(envInt("AUTO_STOP_MINUTES", 60)) * time.Minute,
		MaxSessions:           envInt("MAX_SESSIONS", 3),
		TeamDelay:             time.Duration(envInt("TEAM_DELAY_SECONDS", 3)) * time.Second,
		PageTimeout:           time.Duration(envInt("PAGE_TIMEOUT_SECONDS", 30)) * time.Second,
		RetryMax:              envInt("RETRY_MAX", 2),
		FinalInningsThreshold: envFloat("FINAL_INNINGS_THRESHOLD", 3),
		Transport:             transport,

		ProviderWebURL:     envOr("GC_WEB_URL", "https://web.gc.com"),
		ProviderAPIURL:     envOr("GC_API_URL", "https://api.team-manager.gc.com"),
		TokenRefreshMargin: time.Duration(envInt("TOKEN_REFRESH_MARGIN_MINUTES", 10)) * time.Minute,
		RequestDelay:       time.Duration(envInt("GC_REQUEST_DELAY_MS", 150)) * time.Millisecond,

		ChromeURL:         envOr("CHROME_URL", ""),
		ChromePath:        envOr("CHROME_PATH", ""),
		BrowserProfileDir: envOr("BROWSER_PROFILE_DIR", ""),
		BrowserHeadless:   envBool("BROWSER_HEADLESS", true),

		POTGBackfillInterval: time.Duration(envInt("POTG_BACKFILL_MINUTES", 30)) * time.Minute,

		CacheEnabled: envBool("CACHE_ENABLED", true),

		TeamAliases: DefaultTeamAliases,
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ControlAuthConfigured reports whether any control API credential is set.
func (c *Config) ControlAuthConfigured() bool {
	return c.ControlAPISecret != "" || c.ControlAPISecretHash != "" || c.ControlJWTSecret != ""
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
