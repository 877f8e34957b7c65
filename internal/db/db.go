// Package db provides a pgxpool-based connection pool with prepared statement
// registration, schema migration, and the Postgres implementation of
// store.Store.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/eventcentral/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Migrate applies schema.sql. Every statement is idempotent.
func Migrate(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect for migration: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

const gameColumns = `id, external_id, away_team_id, home_team_id, away_score, home_score,
	status, game_date, COALESCE(game_time, ''), COALESCE(age_group, ''), COALESCE(event_name, ''), updated_at`

// registerPreparedStatements registers all statements the store uses.
// Prepared statements eliminate parse overhead on every scrape cycle.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Teams
		"team_by_name_key": "SELECT id, name, COALESCE(external_id, ''), COALESCE(age_group, '') FROM ec_teams WHERE name_key = $1",
		"team_by_id":       "SELECT id, name, COALESCE(external_id, ''), COALESCE(age_group, '') FROM ec_teams WHERE id = $1",
		"team_insert":      "INSERT INTO ec_teams (name, name_key, external_id, age_group) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, '')) ON CONFLICT (name_key) DO NOTHING RETURNING id",
		"team_update":      "UPDATE ec_teams SET external_id = NULLIF($2, ''), age_group = NULLIF($3, ''), updated_at = NOW() WHERE id = $1",

		// Players
		"player_by_name_team": "SELECT id, name, COALESCE(jersey, ''), team_id FROM ec_players WHERE name_key = $1 AND team_id = $2",
		"player_insert":       "INSERT INTO ec_players (name, name_key, team_id, jersey) VALUES ($1, $2, $3, NULLIF($4, '')) ON CONFLICT (name_key, team_id) DO NOTHING RETURNING id",
		"player_update":       "UPDATE ec_players SET jersey = NULLIF($2, '') WHERE id = $1",

		// Games
		"game_by_id":          "SELECT " + gameColumns + " FROM ec_games WHERE id = $1",
		"game_by_external_id": `SELECT ` + gameColumns + ` FROM ec_games WHERE external_id = $1
			OR id = (SELECT game_id FROM ec_game_refs WHERE external_id = $1)
			ORDER BY id LIMIT 1`,
		"games_between":       "SELECT " + gameColumns + " FROM ec_games WHERE (away_team_id = $1 AND home_team_id = $2) OR (away_team_id = $2 AND home_team_id = $1) ORDER BY id",
		"game_insert": `INSERT INTO ec_games (external_id, away_team_id, home_team_id, away_score, home_score, status, game_date, game_time, age_group, event_name)
			VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''))
			RETURNING id, updated_at`,
		"game_update": `UPDATE ec_games SET external_id = NULLIF($2, ''), away_team_id = $3, home_team_id = $4,
			away_score = $5, home_score = $6, status = $7, game_date = $8, game_time = NULLIF($9, ''),
			age_group = NULLIF($10, ''), event_name = NULLIF($11, ''), updated_at = NOW()
			WHERE id = $1 RETURNING updated_at`,

		// Game refs
		"ref_insert":   "INSERT INTO ec_game_refs (game_id, external_id, viewer_id) VALUES ($1, $2, NULLIF($3, '')) ON CONFLICT (external_id) DO NOTHING",
		"refs_by_game": "SELECT game_id, external_id, COALESCE(viewer_id, '') FROM ec_game_refs WHERE game_id = $1 ORDER BY id",

		// Stats
		"stats_delete": "DELETE FROM ec_game_stats WHERE game_id = $1",
		"stat_insert": `INSERT INTO ec_game_stats (game_id, player_id, team_id, stat_type, ab, h, r, rbi, bb, so, doubles, triples, hr, position, ip, er)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULLIF($14, ''), $15, $16)`,
		"stats_by_game": `SELECT id, game_id, player_id, team_id, stat_type, ab, h, r, rbi, bb, so, doubles, triples, hr,
			COALESCE(position, ''), ip::float8, er FROM ec_game_stats WHERE game_id = $1 ORDER BY id`,

		// Player of the game
		"potg_delete": "DELETE FROM ec_player_of_game WHERE game_id = $1",
		"potg_insert": `INSERT INTO ec_player_of_game (game_id, player_id, team_id, score, highlights, auto_selected)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		"potg_by_game": `SELECT id, game_id, player_id, team_id, score::float8, COALESCE(highlights, ''), auto_selected
			FROM ec_player_of_game WHERE game_id = $1`,
		"games_missing_potg": `SELECT DISTINCT s.game_id FROM ec_game_stats s
			LEFT JOIN ec_player_of_game p ON p.game_id = s.game_id
			WHERE p.id IS NULL ORDER BY s.game_id LIMIT $1`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
