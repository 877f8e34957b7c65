package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/eventcentral/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func intp(n int) *int { return &n }

func TestTeams_CaseInsensitiveUnique(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	team := &store.Team{Name: "TC ELITE 11U", AgeGroup: "11U"}
	require.NoError(t, s.CreateTeam(ctx, team))
	assert.NotZero(t, team.ID)

	found, err := s.FindTeamByName(ctx, "tc elite  11u")
	require.NoError(t, err)
	assert.Equal(t, team.ID, found.ID)
	assert.Equal(t, "TC ELITE 11U", found.Name)

	err = s.CreateTeam(ctx, &store.Team{Name: "Tc Elite 11U"})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.FindTeamByName(ctx, "Nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)

	found.ExternalID = "abc123"
	require.NoError(t, s.UpdateTeam(ctx, found))
	again, err := s.FindTeamByName(ctx, "TC ELITE 11U")
	require.NoError(t, err)
	assert.Equal(t, "abc123", again.ExternalID)
}

func TestPlayers_UniquePerTeam(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := &store.Team{Name: "A"}
	b := &store.Team{Name: "B"}
	require.NoError(t, s.CreateTeam(ctx, a))
	require.NoError(t, s.CreateTeam(ctx, b))

	p := &store.Player{Name: "Jake Smith", TeamID: a.ID}
	require.NoError(t, s.CreatePlayer(ctx, p))
	require.NoError(t, s.CreatePlayer(ctx, &store.Player{Name: "Jake Smith", TeamID: b.ID}))
	assert.ErrorIs(t, s.CreatePlayer(ctx, &store.Player{Name: "jake smith", TeamID: a.ID}), store.ErrConflict)

	found, err := s.FindPlayer(ctx, "JAKE SMITH", a.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)
}

func TestGames_ValidateAndLookup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := &store.Team{Name: "A"}
	b := &store.Team{Name: "B"}
	require.NoError(t, s.CreateTeam(ctx, a))
	require.NoError(t, s.CreateTeam(ctx, b))

	assert.ErrorIs(t, s.CreateGame(ctx, &store.Game{AwayTeamID: a.ID, HomeTeamID: a.ID}), store.ErrSameTeams)
	assert.ErrorIs(t, s.CreateGame(ctx, &store.Game{AwayTeamID: a.ID, HomeTeamID: b.ID, Status: store.StatusFinal}), store.ErrFinalWithoutScore)

	date := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	g := &store.Game{ExternalID: "ext-1", AwayTeamID: a.ID, HomeTeamID: b.ID, AwayScore: intp(0), HomeScore: intp(3), Status: store.StatusLive, GameDate: &date}
	require.NoError(t, s.CreateGame(ctx, g))

	byExt, err := s.GameByExternalID(ctx, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, g.ID, byExt.ID)
	require.NotNil(t, byExt.AwayScore)
	assert.Equal(t, 0, *byExt.AwayScore)
	require.NotNil(t, byExt.GameDate)
	assert.Equal(t, 15, byExt.GameDate.Day())

	between, err := s.GamesBetween(ctx, b.ID, a.ID)
	require.NoError(t, err)
	require.Len(t, between, 1)

	g.Status = store.StatusFinal
	g.HomeScore = intp(4)
	require.NoError(t, s.UpdateGame(ctx, g))
	got, err := s.GameByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFinal, got.Status)
	assert.Equal(t, 4, *got.HomeScore)

	_, err = s.GameByExternalID(ctx, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReplaceGameStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := &store.Team{Name: "A"}
	b := &store.Team{Name: "B"}
	require.NoError(t, s.CreateTeam(ctx, a))
	require.NoError(t, s.CreateTeam(ctx, b))
	p := &store.Player{Name: "P", TeamID: a.ID}
	require.NoError(t, s.CreatePlayer(ctx, p))
	g := &store.Game{AwayTeamID: a.ID, HomeTeamID: b.ID}
	require.NoError(t, s.CreateGame(ctx, g))

	stats := []store.GameStat{
		{PlayerID: p.ID, TeamID: a.ID, StatType: store.StatBatting, AB: 3, H: 2},
		{PlayerID: p.ID, TeamID: a.ID, StatType: store.StatPitching, IP: 2.1, SO: 4},
	}
	require.NoError(t, s.ReplaceGameStats(ctx, g.ID, stats))
	require.NoError(t, s.SetPlayerOfGame(ctx, &store.PlayerOfGame{GameID: g.ID, PlayerID: p.ID, TeamID: a.ID, Score: 9.5, AutoSelected: true}))

	missing, err := s.GamesMissingPOTG(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, missing)

	// Replacing again leaves exactly the new rows and drops the award.
	require.NoError(t, s.ReplaceGameStats(ctx, g.ID, stats[:1]))
	got, err := s.GameStats(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].H)

	_, err = s.PlayerOfGame(ctx, g.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	missing, err = s.GamesMissingPOTG(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{g.ID}, missing)

	lines, err := s.GameStatLines(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "P", lines[0].PlayerName)
	assert.Equal(t, "A", lines[0].TeamName)
}

func TestReadModels_Filter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := &store.Team{Name: "A"}
	b := &store.Team{Name: "B"}
	require.NoError(t, s.CreateTeam(ctx, a))
	require.NoError(t, s.CreateTeam(ctx, b))
	g1 := &store.Game{AwayTeamID: a.ID, HomeTeamID: b.ID, AgeGroup: "11U", EventName: "Spring Classic"}
	g2 := &store.Game{AwayTeamID: b.ID, HomeTeamID: a.ID, AgeGroup: "12U", EventName: "Other"}
	require.NoError(t, s.CreateGame(ctx, g1))
	require.NoError(t, s.CreateGame(ctx, g2))

	games, err := s.ListGames(ctx, store.GameFilter{AgeGroup: "11U"})
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "A", games[0].AwayTeam)
	assert.Equal(t, "B", games[0].HomeTeam)

	p := &store.Player{Name: "P", TeamID: a.ID}
	require.NoError(t, s.CreatePlayer(ctx, p))
	require.NoError(t, s.SetPlayerOfGame(ctx, &store.PlayerOfGame{GameID: g1.ID, PlayerID: p.ID, TeamID: a.ID, Score: 5}))
	require.NoError(t, s.SetPlayerOfGame(ctx, &store.PlayerOfGame{GameID: g2.ID, PlayerID: p.ID, TeamID: a.ID, Score: 8}))

	entries, err := s.ListPlayersOfGame(ctx, store.GameFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 8.0, entries[0].Score)
	assert.Equal(t, "P", entries[0].PlayerName)

	entries, err = s.ListPlayersOfGame(ctx, store.GameFilter{EventName: "Spring Classic"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, g1.ID, entries[0].GameID)
}
