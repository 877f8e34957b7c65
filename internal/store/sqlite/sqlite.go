// Package sqlite implements store.Store on gorm with the sqlite driver. It
// backs local development (DB_DRIVER=sqlite) and every package test that
// needs a real store.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/albapepper/eventcentral/internal/config"
	"github.com/albapepper/eventcentral/internal/store"
)

// Store is a gorm-backed store.Store.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// Open connects to the sqlite database at path (":memory:" for an ephemeral
// database) and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// One connection: sqlite serializes writers, and an in-memory database
	// exists only on the connection that created it.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&teamRow{}, &playerRow{}, &gameRow{}, &refRow{}, &statRow{}, &potgRow{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// --------------------------------------------------------------------------
// Teams & players
// --------------------------------------------------------------------------

func (s *Store) FindTeamByName(ctx context.Context, name string) (*store.Team, error) {
	var row teamRow
	err := s.db.WithContext(ctx).Where("name_key = ?", store.NameKey(name)).First(&row).Error
	if err != nil {
		return nil, notFound(err, "team %q", name)
	}
	t := row.toTeam()
	return &t, nil
}

func (s *Store) TeamByID(ctx context.Context, id int64) (*store.Team, error) {
	var row teamRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFound(err, "team %d", id)
	}
	t := row.toTeam()
	return &t, nil
}

func (s *Store) CreateTeam(ctx context.Context, t *store.Team) error {
	row := teamRow{
		Name:       t.Name,
		NameKey:    store.NameKey(t.Name),
		ExternalID: t.ExternalID,
		AgeGroup:   t.AgeGroup,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return conflict(err, "create team %q", t.Name)
	}
	t.ID = row.ID
	return nil
}

func (s *Store) UpdateTeam(ctx context.Context, t *store.Team) error {
	err := s.db.WithContext(ctx).Model(&teamRow{}).Where("id = ?", t.ID).Updates(map[string]interface{}{
		"external_id": t.ExternalID,
		"age_group":   t.AgeGroup,
		"updated_at":  time.Now(),
	}).Error
	if err != nil {
		return fmt.Errorf("update team %d: %w", t.ID, err)
	}
	return nil
}

func (s *Store) FindPlayer(ctx context.Context, name string, teamID int64) (*store.Player, error) {
	var row playerRow
	err := s.db.WithContext(ctx).
		Where("name_key = ? AND team_id = ?", store.NameKey(name), teamID).
		First(&row).Error
	if err != nil {
		return nil, notFound(err, "player %q on team %d", name, teamID)
	}
	p := row.toPlayer()
	return &p, nil
}

func (s *Store) CreatePlayer(ctx context.Context, p *store.Player) error {
	row := playerRow{
		Name:    p.Name,
		NameKey: store.NameKey(p.Name),
		TeamID:  p.TeamID,
		Jersey:  p.Jersey,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return conflict(err, "create player %q", p.Name)
	}
	p.ID = row.ID
	return nil
}

func (s *Store) UpdatePlayer(ctx context.Context, p *store.Player) error {
	err := s.db.WithContext(ctx).Model(&playerRow{}).Where("id = ?", p.ID).
		Update("jersey", p.Jersey).Error
	if err != nil {
		return fmt.Errorf("update player %d: %w", p.ID, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Games
// --------------------------------------------------------------------------

func (s *Store) GameByID(ctx context.Context, id int64) (*store.Game, error) {
	var row gameRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFound(err, "game %d", id)
	}
	g := row.toGame()
	return &g, nil
}

func (s *Store) GameByExternalID(ctx context.Context, externalID string) (*store.Game, error) {
	if externalID == "" {
		return nil, store.ErrNotFound
	}
	var row gameRow
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).Order("id").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var ref refRow
		if rerr := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&ref).Error; rerr != nil {
			return nil, notFound(rerr, "game external_id=%s", externalID)
		}
		return s.GameByID(ctx, ref.GameID)
	}
	if err != nil {
		return nil, notFound(err, "game external_id=%s", externalID)
	}
	g := row.toGame()
	return &g, nil
}

func (s *Store) GamesBetween(ctx context.Context, teamA, teamB int64) ([]store.Game, error) {
	var rows []gameRow
	err := s.db.WithContext(ctx).
		Where("(away_team_id = ? AND home_team_id = ?) OR (away_team_id = ? AND home_team_id = ?)",
			teamA, teamB, teamB, teamA).
		Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("games between %d and %d: %w", teamA, teamB, err)
	}
	games := make([]store.Game, len(rows))
	for i, r := range rows {
		games[i] = r.toGame()
	}
	return games, nil
}

func (s *Store) CreateGame(ctx context.Context, g *store.Game) error {
	if err := g.Validate(); err != nil {
		return err
	}
	row := newGameRow(g)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return conflict(err, "create game")
	}
	g.ID = row.ID
	g.Status = row.Status
	g.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Store) UpdateGame(ctx context.Context, g *store.Game) error {
	if err := g.Validate(); err != nil {
		return err
	}
	row := newGameRow(g)
	now := time.Now()
	err := s.db.WithContext(ctx).Model(&gameRow{}).Where("id = ?", g.ID).Updates(map[string]interface{}{
		"external_id":  row.ExternalID,
		"away_team_id": row.AwayTeamID,
		"home_team_id": row.HomeTeamID,
		"away_score":   row.AwayScore,
		"home_score":   row.HomeScore,
		"status":       row.Status,
		"game_date":    row.GameDate,
		"game_time":    row.GameTime,
		"age_group":    row.AgeGroup,
		"event_name":   row.EventName,
		"updated_at":   now,
	}).Error
	if err != nil {
		return fmt.Errorf("update game %d: %w", g.ID, err)
	}
	g.UpdatedAt = now
	return nil
}

func (s *Store) AddGameRef(ctx context.Context, ref store.GameRef) error {
	if ref.ExternalID == "" {
		return nil
	}
	row := refRow{GameID: ref.GameID, ExternalID: ref.ExternalID, ViewerID: ref.ViewerID}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "external_id"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("add ref %s for game %d: %w", ref.ExternalID, ref.GameID, err)
	}
	return nil
}

func (s *Store) GameRefs(ctx context.Context, gameID int64) ([]store.GameRef, error) {
	var rows []refRow
	if err := s.db.WithContext(ctx).Where("game_id = ?", gameID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("refs for game %d: %w", gameID, err)
	}
	refs := make([]store.GameRef, len(rows))
	for i, r := range rows {
		refs[i] = r.toRef()
	}
	return refs, nil
}

// --------------------------------------------------------------------------
// Stats & player of the game
// --------------------------------------------------------------------------

func (s *Store) ReplaceGameStats(ctx context.Context, gameID int64, stats []store.GameStat) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("game_id = ?", gameID).Delete(&statRow{}).Error; err != nil {
			return fmt.Errorf("delete stats for game %d: %w", gameID, err)
		}
		if err := tx.Where("game_id = ?", gameID).Delete(&potgRow{}).Error; err != nil {
			return fmt.Errorf("delete potg for game %d: %w", gameID, err)
		}
		for _, st := range stats {
			row := newStatRow(st)
			row.GameID = gameID
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("insert %s stat for player %d: %w", st.StatType, st.PlayerID, err)
			}
		}
		return nil
	})
}

func (s *Store) GameStats(ctx context.Context, gameID int64) ([]store.GameStat, error) {
	var rows []statRow
	if err := s.db.WithContext(ctx).Where("game_id = ?", gameID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("stats for game %d: %w", gameID, err)
	}
	stats := make([]store.GameStat, len(rows))
	for i, r := range rows {
		stats[i] = r.toStat()
	}
	return stats, nil
}

func (s *Store) SetPlayerOfGame(ctx context.Context, pog *store.PlayerOfGame) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("game_id = ?", pog.GameID).Delete(&potgRow{}).Error; err != nil {
			return fmt.Errorf("clear potg for game %d: %w", pog.GameID, err)
		}
		row := potgRow{
			GameID:       pog.GameID,
			PlayerID:     pog.PlayerID,
			TeamID:       pog.TeamID,
			Score:        pog.Score,
			Highlights:   pog.Highlights,
			AutoSelected: pog.AutoSelected,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert potg for game %d: %w", pog.GameID, err)
		}
		pog.ID = row.ID
		return nil
	})
}

func (s *Store) ClearPlayerOfGame(ctx context.Context, gameID int64) error {
	if err := s.db.WithContext(ctx).Where("game_id = ?", gameID).Delete(&potgRow{}).Error; err != nil {
		return fmt.Errorf("clear potg for game %d: %w", gameID, err)
	}
	return nil
}

func (s *Store) PlayerOfGame(ctx context.Context, gameID int64) (*store.PlayerOfGame, error) {
	var row potgRow
	if err := s.db.WithContext(ctx).Where("game_id = ?", gameID).First(&row).Error; err != nil {
		return nil, notFound(err, "potg for game %d", gameID)
	}
	p := row.toPOTG()
	return &p, nil
}

// --------------------------------------------------------------------------
// Read models
// --------------------------------------------------------------------------

func (s *Store) ListGames(ctx context.Context, f store.GameFilter) ([]store.GameSummary, error) {
	rows, err := s.filteredGames(ctx, f)
	if err != nil {
		return nil, err
	}
	teams, err := s.teamsFor(ctx, rows)
	if err != nil {
		return nil, err
	}
	out := make([]store.GameSummary, len(rows))
	for i, r := range rows {
		out[i] = store.GameSummary{
			Game:     r.toGame(),
			AwayTeam: teams[r.AwayTeamID].Name,
			HomeTeam: teams[r.HomeTeamID].Name,
		}
	}
	return out, nil
}

func (s *Store) GameStatLines(ctx context.Context, gameID int64) ([]store.StatLine, error) {
	var rows []statRow
	if err := s.db.WithContext(ctx).Where("game_id = ?", gameID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("stat lines for game %d: %w", gameID, err)
	}
	return s.joinStatLines(ctx, rows)
}

func (s *Store) ListStatLines(ctx context.Context, f store.GameFilter) ([]store.StatLine, error) {
	f.Limit = 0
	games, err := s.filteredGames(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(games))
	for i, g := range games {
		ids[i] = g.ID
	}
	var rows []statRow
	if err := s.db.WithContext(ctx).Where("game_id IN ?", ids).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list stat lines: %w", err)
	}
	return s.joinStatLines(ctx, rows)
}

func (s *Store) ListPlayersOfGame(ctx context.Context, f store.GameFilter) ([]store.POTGEntry, error) {
	limit := f.Limit
	f.Limit = 0
	games, err := s.filteredGames(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, nil
	}
	byID := make(map[int64]gameRow, len(games))
	ids := make([]int64, len(games))
	for i, g := range games {
		ids[i] = g.ID
		byID[g.ID] = g
	}

	q := s.db.WithContext(ctx).Where("game_id IN ?", ids).Order("score DESC, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []potgRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list potg: %w", err)
	}

	teams, err := s.teamsFor(ctx, games)
	if err != nil {
		return nil, err
	}
	playerIDs := make([]int64, len(rows))
	for i, r := range rows {
		playerIDs[i] = r.PlayerID
	}
	players, err := s.playersByID(ctx, playerIDs)
	if err != nil {
		return nil, err
	}

	out := make([]store.POTGEntry, len(rows))
	for i, r := range rows {
		g := byID[r.GameID].toGame()
		out[i] = store.POTGEntry{
			PlayerOfGame: r.toPOTG(),
			PlayerName:   players[r.PlayerID].Name,
			TeamName:     teams[r.TeamID].Name,
			AwayTeam:     teams[g.AwayTeamID].Name,
			HomeTeam:     teams[g.HomeTeamID].Name,
			GameDate:     g.GameDate,
			EventName:    g.EventName,
			AgeGroup:     g.AgeGroup,
		}
	}
	return out, nil
}

func (s *Store) GamesMissingPOTG(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []int64
	err := s.db.WithContext(ctx).Raw(fmt.Sprintf(`
		SELECT DISTINCT s.game_id FROM %s s
		LEFT JOIN %s p ON p.game_id = s.game_id
		WHERE p.id IS NULL
		ORDER BY s.game_id
		LIMIT ?`, config.GameStatsTable, config.PlayerOfGameTable), limit).Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("games missing potg: %w", err)
	}
	return ids, nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func (s *Store) filteredGames(ctx context.Context, f store.GameFilter) ([]gameRow, error) {
	q := s.db.WithContext(ctx).Model(&gameRow{})
	if f.AgeGroup != "" {
		q = q.Where("age_group = ?", f.AgeGroup)
	}
	if f.EventName != "" {
		q = q.Where("event_name = ?", f.EventName)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var rows []gameRow
	if err := q.Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return rows, nil
}

func (s *Store) teamsFor(ctx context.Context, games []gameRow) (map[int64]teamRow, error) {
	ids := make([]int64, 0, len(games)*2)
	for _, g := range games {
		ids = append(ids, g.AwayTeamID, g.HomeTeamID)
	}
	return s.teamsByID(ctx, ids)
}

func (s *Store) teamsByID(ctx context.Context, ids []int64) (map[int64]teamRow, error) {
	out := make(map[int64]teamRow)
	if len(ids) == 0 {
		return out, nil
	}
	var rows []teamRow
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load teams: %w", err)
	}
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

func (s *Store) playersByID(ctx context.Context, ids []int64) (map[int64]playerRow, error) {
	out := make(map[int64]playerRow)
	if len(ids) == 0 {
		return out, nil
	}
	var rows []playerRow
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

func (s *Store) joinStatLines(ctx context.Context, rows []statRow) ([]store.StatLine, error) {
	playerIDs := make([]int64, len(rows))
	teamIDs := make([]int64, len(rows))
	for i, r := range rows {
		playerIDs[i] = r.PlayerID
		teamIDs[i] = r.TeamID
	}
	players, err := s.playersByID(ctx, playerIDs)
	if err != nil {
		return nil, err
	}
	teams, err := s.teamsByID(ctx, teamIDs)
	if err != nil {
		return nil, err
	}
	out := make([]store.StatLine, len(rows))
	for i, r := range rows {
		p := players[r.PlayerID]
		out[i] = store.StatLine{
			GameStat:   r.toStat(),
			PlayerName: p.Name,
			Jersey:     p.Jersey,
			TeamName:   teams[r.TeamID].Name,
		}
	}
	return out, nil
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), store.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func conflict(err error, format string, args ...interface{}) error {
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), store.ErrConflict)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique index")
}
