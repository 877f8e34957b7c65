package sqlite

import (
	"time"

	"gorm.io/datatypes"

	"github.com/albapepper/eventcentral/internal/config"
	"github.com/albapepper/eventcentral/internal/store"
)

type teamRow struct {
	ID         int64  `gorm:"primaryKey"`
	Name       string `gorm:"not null"`
	NameKey    string `gorm:"uniqueIndex;not null"`
	ExternalID string `gorm:"index"`
	AgeGroup   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (teamRow) TableName() string { return config.TeamsTable }

type playerRow struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	NameKey   string `gorm:"uniqueIndex:idx_player_name_team;not null"`
	TeamID    int64  `gorm:"uniqueIndex:idx_player_name_team;not null"`
	Jersey    string
	CreatedAt time.Time
}

func (playerRow) TableName() string { return config.PlayersTable }

type gameRow struct {
	ID         int64   `gorm:"primaryKey"`
	ExternalID *string `gorm:"index"`
	AwayTeamID int64   `gorm:"index;not null"`
	HomeTeamID int64   `gorm:"index;not null"`
	AwayScore  *int
	HomeScore  *int
	Status     string `gorm:"not null;default:upcoming"`
	GameDate   *datatypes.Date
	GameTime   string
	AgeGroup   string `gorm:"index"`
	EventName  string `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (gameRow) TableName() string { return config.GamesTable }

type refRow struct {
	ID         int64  `gorm:"primaryKey"`
	GameID     int64  `gorm:"index;not null"`
	ExternalID string `gorm:"uniqueIndex;not null"`
	ViewerID   string
	CreatedAt  time.Time
}

func (refRow) TableName() string { return config.GameRefsTable }

type statRow struct {
	ID       int64  `gorm:"primaryKey"`
	GameID   int64  `gorm:"uniqueIndex:idx_stat_game_player_type;not null"`
	PlayerID int64  `gorm:"uniqueIndex:idx_stat_game_player_type;not null"`
	StatType string `gorm:"uniqueIndex:idx_stat_game_player_type;not null"`
	TeamID   int64  `gorm:"index;not null"`
	AB       int
	H        int
	R        int
	RBI      int
	BB       int
	SO       int
	Doubles  int
	Triples  int
	HR       int
	Position string
	IP       float64
	ER       int
}

func (statRow) TableName() string { return config.GameStatsTable }

type potgRow struct {
	ID           int64 `gorm:"primaryKey"`
	GameID       int64 `gorm:"uniqueIndex;not null"`
	PlayerID     int64 `gorm:"not null"`
	TeamID       int64 `gorm:"not null"`
	Score        float64
	Highlights   string
	AutoSelected bool
	CreatedAt    time.Time
}

func (potgRow) TableName() string { return config.PlayerOfGameTable }

// --------------------------------------------------------------------------
// Conversions
// --------------------------------------------------------------------------

func (r teamRow) toTeam() store.Team {
	return store.Team{ID: r.ID, Name: r.Name, ExternalID: r.ExternalID, AgeGroup: r.AgeGroup}
}

func (r playerRow) toPlayer() store.Player {
	return store.Player{ID: r.ID, Name: r.Name, Jersey: r.Jersey, TeamID: r.TeamID}
}

func newGameRow(g *store.Game) gameRow {
	row := gameRow{
		ID:         g.ID,
		AwayTeamID: g.AwayTeamID,
		HomeTeamID: g.HomeTeamID,
		AwayScore:  g.AwayScore,
		HomeScore:  g.HomeScore,
		Status:     g.Status,
		GameTime:   g.GameTime,
		AgeGroup:   g.AgeGroup,
		EventName:  g.EventName,
	}
	if g.ExternalID != "" {
		ext := g.ExternalID
		row.ExternalID = &ext
	}
	if g.GameDate != nil {
		d := datatypes.Date(*g.GameDate)
		row.GameDate = &d
	}
	if row.Status == "" {
		row.Status = store.StatusUpcoming
	}
	return row
}

func (r gameRow) toGame() store.Game {
	g := store.Game{
		ID:         r.ID,
		AwayTeamID: r.AwayTeamID,
		HomeTeamID: r.HomeTeamID,
		AwayScore:  r.AwayScore,
		HomeScore:  r.HomeScore,
		Status:     r.Status,
		GameTime:   r.GameTime,
		AgeGroup:   r.AgeGroup,
		EventName:  r.EventName,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.ExternalID != nil {
		g.ExternalID = *r.ExternalID
	}
	if r.GameDate != nil {
		t := time.Time(*r.GameDate)
		g.GameDate = &t
	}
	return g
}

func (r refRow) toRef() store.GameRef {
	return store.GameRef{GameID: r.GameID, ExternalID: r.ExternalID, ViewerID: r.ViewerID}
}

func newStatRow(s store.GameStat) statRow {
	return statRow{
		GameID:   s.GameID,
		PlayerID: s.PlayerID,
		TeamID:   s.TeamID,
		StatType: s.StatType,
		AB:       s.AB,
		H:        s.H,
		R:        s.R,
		RBI:      s.RBI,
		BB:       s.BB,
		SO:       s.SO,
		Doubles:  s.Doubles,
		Triples:  s.Triples,
		HR:       s.HR,
		Position: s.Position,
		IP:       s.IP,
		ER:       s.ER,
	}
}

func (r statRow) toStat() store.GameStat {
	return store.GameStat{
		ID:       r.ID,
		GameID:   r.GameID,
		PlayerID: r.PlayerID,
		TeamID:   r.TeamID,
		StatType: r.StatType,
		AB:       r.AB,
		H:        r.H,
		R:        r.R,
		RBI:      r.RBI,
		BB:       r.BB,
		SO:       r.SO,
		Doubles:  r.Doubles,
		Triples:  r.Triples,
		HR:       r.HR,
		Position: r.Position,
		IP:       r.IP,
		ER:       r.ER,
	}
}

func (r potgRow) toPOTG() store.PlayerOfGame {
	return store.PlayerOfGame{
		ID:           r.ID,
		GameID:       r.GameID,
		PlayerID:     r.PlayerID,
		TeamID:       r.TeamID,
		Score:        r.Score,
		Highlights:   r.Highlights,
		AutoSelected: r.AutoSelected,
	}
}
