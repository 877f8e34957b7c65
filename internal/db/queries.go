package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/eventcentral/internal/store"
)

// Read-model queries for the API. The filters vary per request, so these are
// built per call rather than prepared.

func (s *Store) ListGames(ctx context.Context, f store.GameFilter) ([]store.GameSummary, error) {
	where, args := whereGames(f, "g")
	sql := `SELECT g.id, g.external_id, g.away_team_id, g.home_team_id, g.away_score, g.home_score,
			g.status, g.game_date, COALESCE(g.game_time, ''), COALESCE(g.age_group, ''), COALESCE(g.event_name, ''), g.updated_at,
			a.name, h.name
		FROM ec_games g
		JOIN ec_teams a ON a.id = g.away_team_id
		JOIN ec_teams h ON h.id = g.home_team_id` + where + ` ORDER BY g.id DESC`
	if f.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var out []store.GameSummary
	for rows.Next() {
		var gs store.GameSummary
		var ext *string
		if err := rows.Scan(&gs.ID, &ext, &gs.AwayTeamID, &gs.HomeTeamID, &gs.AwayScore, &gs.HomeScore,
			&gs.Status, &gs.GameDate, &gs.GameTime, &gs.AgeGroup, &gs.EventName, &gs.UpdatedAt,
			&gs.AwayTeam, &gs.HomeTeam); err != nil {
			return nil, fmt.Errorf("scan game summary: %w", err)
		}
		if ext != nil {
			gs.ExternalID = *ext
		}
		out = append(out, gs)
	}
	return out, rows.Err()
}

const statLineSelect = `SELECT s.id, s.game_id, s.player_id, s.team_id, s.stat_type,
		s.ab, s.h, s.r, s.rbi, s.bb, s.so, s.doubles, s.triples, s.hr,
		COALESCE(s.position, ''), s.ip::float8, s.er,
		p.name, COALESCE(p.jersey, ''), t.name
	FROM ec_game_stats s
	JOIN ec_players p ON p.id = s.player_id
	JOIN ec_teams t ON t.id = s.team_id
	JOIN ec_games g ON g.id = s.game_id`

func (s *Store) GameStatLines(ctx context.Context, gameID int64) ([]store.StatLine, error) {
	rows, err := s.pool.Query(ctx, statLineSelect+" WHERE s.game_id = $1 ORDER BY s.id", gameID)
	if err != nil {
		return nil, fmt.Errorf("stat lines for game %d: %w", gameID, err)
	}
	return collectStatLines(rows)
}

func (s *Store) ListStatLines(ctx context.Context, f store.GameFilter) ([]store.StatLine, error) {
	where, args := whereGames(f, "g")
	rows, err := s.pool.Query(ctx, statLineSelect+where+" ORDER BY s.id", args...)
	if err != nil {
		return nil, fmt.Errorf("list stat lines: %w", err)
	}
	return collectStatLines(rows)
}

func collectStatLines(rows pgx.Rows) ([]store.StatLine, error) {
	defer rows.Close()
	var out []store.StatLine
	for rows.Next() {
		var l store.StatLine
		if err := rows.Scan(&l.ID, &l.GameID, &l.PlayerID, &l.TeamID, &l.StatType,
			&l.AB, &l.H, &l.R, &l.RBI, &l.BB, &l.SO, &l.Doubles, &l.Triples, &l.HR,
			&l.Position, &l.IP, &l.ER,
			&l.PlayerName, &l.Jersey, &l.TeamName); err != nil {
			return nil, fmt.Errorf("scan stat line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) ListPlayersOfGame(ctx context.Context, f store.GameFilter) ([]store.POTGEntry, error) {
	where, args := whereGames(f, "g")
	sql := `SELECT pg.id, pg.game_id, pg.player_id, pg.team_id, pg.score::float8, COALESCE(pg.highlights, ''), pg.auto_selected,
			p.name, t.name, a.name, h.name, g.game_date, COALESCE(g.event_name, ''), COALESCE(g.age_group, '')
		FROM ec_player_of_game pg
		JOIN ec_games g ON g.id = pg.game_id
		JOIN ec_players p ON p.id = pg.player_id
		JOIN ec_teams t ON t.id = pg.team_id
		JOIN ec_teams a ON a.id = g.away_team_id
		JOIN ec_teams h ON h.id = g.home_team_id` + where + ` ORDER BY pg.score DESC, pg.id`
	if f.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list potg: %w", err)
	}
	defer rows.Close()

	var out []store.POTGEntry
	for rows.Next() {
		var e store.POTGEntry
		if err := rows.Scan(&e.ID, &e.GameID, &e.PlayerID, &e.TeamID, &e.Score, &e.Highlights, &e.AutoSelected,
			&e.PlayerName, &e.TeamName, &e.AwayTeam, &e.HomeTeam, &e.GameDate, &e.EventName, &e.AgeGroup); err != nil {
			return nil, fmt.Errorf("scan potg: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
