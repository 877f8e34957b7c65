// Package store defines the persistence interface the ingestion engine writes
// through, along with the row types it exchanges. Two implementations exist:
// internal/db (Postgres via pgx) and internal/store/sqlite (gorm + sqlite).
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by single-row lookups that match nothing.
	ErrNotFound = errors.New("not found")
	// ErrFinalWithoutScore rejects a final game that is missing a score.
	ErrFinalWithoutScore = errors.New("final game requires both scores")
	// ErrSameTeams rejects a game whose away and home team are identical.
	ErrSameTeams = errors.New("away and home team must differ")
	// ErrConflict is returned when a create hits a unique constraint, e.g.
	// two sessions creating the same team at once.
	ErrConflict = errors.New("unique constraint conflict")
)

// Game statuses.
const (
	StatusUpcoming = "upcoming"
	StatusLive     = "live"
	StatusFinal    = "final"
)

// Stat types.
const (
	StatBatting  = "batting"
	StatPitching = "pitching"
)

// --------------------------------------------------------------------------
// Rows
// --------------------------------------------------------------------------

type Team struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ExternalID string `json:"external_id,omitempty"`
	AgeGroup   string `json:"age_group,omitempty"`
}

type Player struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Jersey string `json:"jersey,omitempty"`
	TeamID int64  `json:"team_id"`
}

type Game struct {
	ID         int64      `json:"id"`
	ExternalID string     `json:"external_id,omitempty"`
	AwayTeamID int64      `json:"away_team_id"`
	HomeTeamID int64      `json:"home_team_id"`
	AwayScore  *int       `json:"away_score"`
	HomeScore  *int       `json:"home_score"`
	Status     string     `json:"status"`
	GameDate   *time.Time `json:"game_date,omitempty"`
	GameTime   string     `json:"game_time,omitempty"`
	AgeGroup   string     `json:"age_group,omitempty"`
	EventName  string     `json:"event_name,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Validate checks the row-level game invariants.
func (g *Game) Validate() error {
	if g.AwayTeamID == g.HomeTeamID {
		return ErrSameTeams
	}
	if g.Status == StatusFinal && (g.AwayScore == nil || g.HomeScore == nil) {
		return ErrFinalWithoutScore
	}
	return nil
}

// GameStat is one player's batting or pitching line for a game. IP is held
// in baseball notation (4.2 = four innings, two outs).
type GameStat struct {
	ID       int64  `json:"id"`
	GameID   int64  `json:"game_id"`
	PlayerID int64  `json:"player_id"`
	TeamID   int64  `json:"team_id"`
	StatType string `json:"stat_type"`

	// Batting
	AB       int    `json:"ab,omitempty"`
	Doubles  int    `json:"doubles,omitempty"`
	Triples  int    `json:"triples,omitempty"`
	HR       int    `json:"hr,omitempty"`
	RBI      int    `json:"rbi,omitempty"`
	Position string `json:"pos,omitempty"`

	// Pitching
	IP float64 `json:"ip,omitempty"`
	ER int     `json:"er,omitempty"`

	// Shared: hits, runs, walks and strikeouts (allowed, for pitchers)
	H  int `json:"h"`
	R  int `json:"r"`
	BB int `json:"bb"`
	SO int `json:"so"`
}

// GameRef records the provider game id one team's schedule uses for a game.
// Each side of a game lists it under its own id, so a game carries up to
// one ref per viewing team.
type GameRef struct {
	GameID     int64  `json:"game_id"`
	ExternalID string `json:"external_id"`
	ViewerID   string `json:"viewer_id,omitempty"`
}

type PlayerOfGame struct {
	ID           int64   `json:"id"`
	GameID       int64   `json:"game_id"`
	PlayerID     int64   `json:"player_id"`
	TeamID       int64   `json:"team_id"`
	Score        float64 `json:"score"`
	Highlights   string  `json:"highlights"`
	AutoSelected bool    `json:"auto_selected"`
}

// --------------------------------------------------------------------------
// Read models
// --------------------------------------------------------------------------

// GameFilter narrows list queries. Empty fields match everything.
type GameFilter struct {
	AgeGroup  string
	EventName string
	Status    string
	Limit     int
}

// GameSummary is a game joined with its team names.
type GameSummary struct {
	Game
	AwayTeam string `json:"away_team"`
	HomeTeam string `json:"home_team"`
}

// StatLine is a game stat joined with player and team names, used by the
// detail and leaderboard endpoints.
type StatLine struct {
	GameStat
	PlayerName string `json:"player_name"`
	Jersey     string `json:"jersey,omitempty"`
	TeamName   string `json:"team_name"`
}

// POTGEntry is a player-of-the-game award joined with its context.
type POTGEntry struct {
	PlayerOfGame
	PlayerName string     `json:"player_name"`
	TeamName   string     `json:"team_name"`
	AwayTeam   string     `json:"away_team"`
	HomeTeam   string     `json:"home_team"`
	GameDate   *time.Time `json:"game_date,omitempty"`
	EventName  string     `json:"event_name,omitempty"`
	AgeGroup   string     `json:"age_group,omitempty"`
}

// --------------------------------------------------------------------------
// Interface
// --------------------------------------------------------------------------

// Store is everything the registry, reconciler, POTG scorer, session
// manager and read API need from persistence.
type Store interface {
	// Teams and players. Name lookups are case-insensitive.
	FindTeamByName(ctx context.Context, name string) (*Team, error)
	TeamByID(ctx context.Context, id int64) (*Team, error)
	CreateTeam(ctx context.Context, t *Team) error
	UpdateTeam(ctx context.Context, t *Team) error
	FindPlayer(ctx context.Context, name string, teamID int64) (*Player, error)
	CreatePlayer(ctx context.Context, p *Player) error
	UpdatePlayer(ctx context.Context, p *Player) error

	// Games.
	GameByID(ctx context.Context, id int64) (*Game, error)
	// GameByExternalID matches games.external_id or any recorded GameRef.
	GameByExternalID(ctx context.Context, externalID string) (*Game, error)
	// GamesBetween returns games between two teams in either orientation,
	// oldest first.
	GamesBetween(ctx context.Context, teamA, teamB int64) ([]Game, error)
	CreateGame(ctx context.Context, g *Game) error
	UpdateGame(ctx context.Context, g *Game) error
	// AddGameRef records ref. An external id already recorded is left
	// pointing at its game.
	AddGameRef(ctx context.Context, ref GameRef) error
	// GameRefs returns a game's refs in the order they were recorded.
	GameRefs(ctx context.Context, gameID int64) ([]GameRef, error)

	// ReplaceGameStats deletes every stat row and the player-of-the-game row
	// for a game and inserts stats, in one transaction. Inserted rows get
	// increasing IDs in slice order.
	ReplaceGameStats(ctx context.Context, gameID int64, stats []GameStat) error
	// GameStats returns a game's stat rows in insertion order.
	GameStats(ctx context.Context, gameID int64) ([]GameStat, error)

	// SetPlayerOfGame replaces the award for pog.GameID.
	SetPlayerOfGame(ctx context.Context, pog *PlayerOfGame) error
	ClearPlayerOfGame(ctx context.Context, gameID int64) error
	PlayerOfGame(ctx context.Context, gameID int64) (*PlayerOfGame, error)

	// Read models.
	ListGames(ctx context.Context, f GameFilter) ([]GameSummary, error)
	GameStatLines(ctx context.Context, gameID int64) ([]StatLine, error)
	ListStatLines(ctx context.Context, f GameFilter) ([]StatLine, error)
	ListPlayersOfGame(ctx context.Context, f GameFilter) ([]POTGEntry, error)
	// GamesMissingPOTG returns ids of games with stats but no award.
	GamesMissingPOTG(ctx context.Context, limit int) ([]int64, error)

	Ping(ctx context.Context) error
}

// NameKey is the case-folded, whitespace-collapsed form used for unique
// name lookups.
func NameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
