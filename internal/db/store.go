package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/albapepper/eventcentral/internal/store"
)

// Store implements store.Store on the pool's prepared statements.
type Store struct {
	pool *Pool
}

var _ store.Store = (*Store)(nil)

// NewStore wraps a pool as a store.Store.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.HealthCheck(ctx)
}

// --------------------------------------------------------------------------
// Teams & players
// --------------------------------------------------------------------------

func (s *Store) FindTeamByName(ctx context.Context, name string) (*store.Team, error) {
	var t store.Team
	err := s.pool.QueryRow(ctx, "team_by_name_key", store.NameKey(name)).
		Scan(&t.ID, &t.Name, &t.ExternalID, &t.AgeGroup)
	if err != nil {
		return nil, notFound(err, "team %q", name)
	}
	return &t, nil
}

func (s *Store) TeamByID(ctx context.Context, id int64) (*store.Team, error) {
	var t store.Team
	err := s.pool.QueryRow(ctx, "team_by_id", id).Scan(&t.ID, &t.Name, &t.ExternalID, &t.AgeGroup)
	if err != nil {
		return nil, notFound(err, "team %d", id)
	}
	return &t, nil
}

func (s *Store) CreateTeam(ctx context.Context, t *store.Team) error {
	err := s.pool.QueryRow(ctx, "team_insert", t.Name, store.NameKey(t.Name), t.ExternalID, t.AgeGroup).Scan(&t.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("create team %q: %w", t.Name, store.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create team %q: %w", t.Name, err)
	}
	return nil
}

func (s *Store) UpdateTeam(ctx context.Context, t *store.Team) error {
	if _, err := s.pool.Exec(ctx, "team_update", t.ID, t.ExternalID, t.AgeGroup); err != nil {
		return fmt.Errorf("update team %d: %w", t.ID, err)
	}
	return nil
}

func (s *Store) FindPlayer(ctx context.Context, name string, teamID int64) (*store.Player, error) {
	var p store.Player
	err := s.pool.QueryRow(ctx, "player_by_name_team", store.NameKey(name), teamID).
		Scan(&p.ID, &p.Name, &p.Jersey, &p.TeamID)
	if err != nil {
		return nil, notFound(err, "player %q on team %d", name, teamID)
	}
	return &p, nil
}

func (s *Store) CreatePlayer(ctx context.Context, p *store.Player) error {
	err := s.pool.QueryRow(ctx, "player_insert", p.Name, store.NameKey(p.Name), p.TeamID, p.Jersey).Scan(&p.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("create player %q: %w", p.Name, store.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create player %q: %w", p.Name, err)
	}
	return nil
}

func (s *Store) UpdatePlayer(ctx context.Context, p *store.Player) error {
	if _, err := s.pool.Exec(ctx, "player_update", p.ID, p.Jersey); err != nil {
		return fmt.Errorf("update player %d: %w", p.ID, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Games
// --------------------------------------------------------------------------

func scanGame(row pgx.Row) (*store.Game, error) {
	var g store.Game
	var ext *string
	err := row.Scan(&g.ID, &ext, &g.AwayTeamID, &g.HomeTeamID, &g.AwayScore, &g.HomeScore,
		&g.Status, &g.GameDate, &g.GameTime, &g.AgeGroup, &g.EventName, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if ext != nil {
		g.ExternalID = *ext
	}
	return &g, nil
}

func (s *Store) GameByID(ctx context.Context, id int64) (*store.Game, error) {
	g, err := scanGame(s.pool.QueryRow(ctx, "game_by_id", id))
	if err != nil {
		return nil, notFound(err, "game %d", id)
	}
	return g, nil
}

func (s *Store) GameByExternalID(ctx context.Context, externalID string) (*store.Game, error) {
	if externalID == "" {
		return nil, store.ErrNotFound
	}
	g, err := scanGame(s.pool.QueryRow(ctx, "game_by_external_id", externalID))
	if err != nil {
		return nil, notFound(err, "game external_id=%s", externalID)
	}
	return g, nil
}

func (s *Store) GamesBetween(ctx context.Context, teamA, teamB int64) ([]store.Game, error) {
	rows, err := s.pool.Query(ctx, "games_between", teamA, teamB)
	if err != nil {
		return nil, fmt.Errorf("games between %d and %d: %w", teamA, teamB, err)
	}
	defer rows.Close()

	var games []store.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

func (s *Store) CreateGame(ctx context.Context, g *store.Game) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if g.Status == "" {
		g.Status = store.StatusUpcoming
	}
	err := s.pool.QueryRow(ctx, "game_insert",
		g.ExternalID, g.AwayTeamID, g.HomeTeamID, g.AwayScore, g.HomeScore,
		g.Status, g.GameDate, g.GameTime, g.AgeGroup, g.EventName,
	).Scan(&g.ID, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create game: %w", err)
	}
	return nil
}

func (s *Store) UpdateGame(ctx context.Context, g *store.Game) error {
	if err := g.Validate(); err != nil {
		return err
	}
	err := s.pool.QueryRow(ctx, "game_update",
		g.ID, g.ExternalID, g.AwayTeamID, g.HomeTeamID, g.AwayScore, g.HomeScore,
		g.Status, g.GameDate, g.GameTime, g.AgeGroup, g.EventName,
	).Scan(&g.UpdatedAt)
	if err != nil {
		return notFound(err, "update game %d", g.ID)
	}
	return nil
}

func (s *Store) AddGameRef(ctx context.Context, ref store.GameRef) error {
	if ref.ExternalID == "" {
		return nil
	}
	if _, err := s.pool.Exec(ctx, "ref_insert", ref.GameID, ref.ExternalID, ref.ViewerID); err != nil {
		return fmt.Errorf("add ref %s for game %d: %w", ref.ExternalID, ref.GameID, err)
	}
	return nil
}

func (s *Store) GameRefs(ctx context.Context, gameID int64) ([]store.GameRef, error) {
	rows, err := s.pool.Query(ctx, "refs_by_game", gameID)
	if err != nil {
		return nil, fmt.Errorf("refs for game %d: %w", gameID, err)
	}
	defer rows.Close()

	var refs []store.GameRef
	for rows.Next() {
		var r store.GameRef
		if err := rows.Scan(&r.GameID, &r.ExternalID, &r.ViewerID); err != nil {
			return nil, fmt.Errorf("scan ref: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// --------------------------------------------------------------------------
// Stats & player of the game
// --------------------------------------------------------------------------

func (s *Store) ReplaceGameStats(ctx context.Context, gameID int64, stats []store.GameStat) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "stats_delete", gameID); err != nil {
		return fmt.Errorf("delete stats for game %d: %w", gameID, err)
	}
	if _, err := tx.Exec(ctx, "potg_delete", gameID); err != nil {
		return fmt.Errorf("delete potg for game %d: %w", gameID, err)
	}

	// Sequential inserts keep ids in slice order.
	for _, st := range stats {
		_, err := tx.Exec(ctx, "stat_insert",
			gameID, st.PlayerID, st.TeamID, st.StatType,
			st.AB, st.H, st.R, st.RBI, st.BB, st.SO, st.Doubles, st.Triples, st.HR,
			st.Position, st.IP, st.ER)
		if err != nil {
			return fmt.Errorf("insert %s stat for player %d: %w", st.StatType, st.PlayerID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) GameStats(ctx context.Context, gameID int64) ([]store.GameStat, error) {
	rows, err := s.pool.Query(ctx, "stats_by_game", gameID)
	if err != nil {
		return nil, fmt.Errorf("stats for game %d: %w", gameID, err)
	}
	defer rows.Close()

	var stats []store.GameStat
	for rows.Next() {
		var st store.GameStat
		if err := rows.Scan(&st.ID, &st.GameID, &st.PlayerID, &st.TeamID, &st.StatType,
			&st.AB, &st.H, &st.R, &st.RBI, &st.BB, &st.SO, &st.Doubles, &st.Triples, &st.HR,
			&st.Position, &st.IP, &st.ER); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *Store) SetPlayerOfGame(ctx context.Context, pog *store.PlayerOfGame) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "potg_delete", pog.GameID); err != nil {
		return fmt.Errorf("clear potg for game %d: %w", pog.GameID, err)
	}
	err = tx.QueryRow(ctx, "potg_insert",
		pog.GameID, pog.PlayerID, pog.TeamID, pog.Score, pog.Highlights, pog.AutoSelected,
	).Scan(&pog.ID)
	if err != nil {
		return fmt.Errorf("insert potg for game %d: %w", pog.GameID, err)
	}
	return tx.Commit(ctx)
}

func (s *Store) ClearPlayerOfGame(ctx context.Context, gameID int64) error {
	if _, err := s.pool.Exec(ctx, "potg_delete", gameID); err != nil {
		return fmt.Errorf("clear potg for game %d: %w", gameID, err)
	}
	return nil
}

func (s *Store) PlayerOfGame(ctx context.Context, gameID int64) (*store.PlayerOfGame, error) {
	var p store.PlayerOfGame
	err := s.pool.QueryRow(ctx, "potg_by_game", gameID).
		Scan(&p.ID, &p.GameID, &p.PlayerID, &p.TeamID, &p.Score, &p.Highlights, &p.AutoSelected)
	if err != nil {
		return nil, notFound(err, "potg for game %d", gameID)
	}
	return &p, nil
}

func (s *Store) GamesMissingPOTG(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, "games_missing_potg", limit)
	if err != nil {
		return nil, fmt.Errorf("games missing potg: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), store.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), store.ErrConflict)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// whereGames builds the shared WHERE clause for the read-model queries.
func whereGames(f store.GameFilter, alias string) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(col, v string) {
		if v == "" {
			return
		}
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s.%s = $%d", alias, col, len(args)))
	}
	add("age_group", f.AgeGroup)
	add("event_name", f.EventName)
	add("status", f.Status)
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
