package potg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/eventcentral/internal/store"
	"github.com/albapepper/eventcentral/internal/store/sqlite"
)

func TestBattingScore(t *testing.T) {
	s := store.GameStat{StatType: store.StatBatting, AB: 4, R: 2, H: 3, RBI: 2, BB: 1, SO: 0}
	assert.InDelta(t, 14.0, BattingScore(s), 1e-9)

	hr := store.GameStat{StatType: store.StatBatting, AB: 3, H: 1, HR: 1, RBI: 1, R: 1, SO: 1}
	// 0 singles + 5 + 2 + 1.5 - 0.5
	assert.InDelta(t, 8.0, BattingScore(hr), 1e-9)
}

func TestPitchingScore(t *testing.T) {
	s := store.GameStat{StatType: store.StatPitching, IP: 3.2, SO: 6, ER: 1, BB: 2, H: 3}
	// 9.6 + 12 - 2 - 2 - 1.5
	assert.InDelta(t, 16.1, PitchingScore(s), 1e-9)
}

func TestScore_CombinesBattingAndPitching(t *testing.T) {
	stats := []store.GameStat{
		{PlayerID: 1, TeamID: 10, StatType: store.StatBatting, AB: 4, R: 2, H: 3, RBI: 2, BB: 1},
		{PlayerID: 2, TeamID: 10, StatType: store.StatBatting, AB: 3, H: 1},
		{PlayerID: 2, TeamID: 10, StatType: store.StatPitching, IP: 4, SO: 5},
	}

	award, ok := Score(stats)
	require.True(t, ok)
	// Player 2: 2 + 12 + 10 = 24
	assert.Equal(t, int64(2), award.PlayerID)
	assert.Equal(t, int64(10), award.TeamID)
	assert.Equal(t, 24.0, award.Score)
	assert.Equal(t, "1-for-3 | 4 IP, 5 K, 0 ER", award.Highlights)
}

func TestScore_TieBreak(t *testing.T) {
	stats := []store.GameStat{
		{PlayerID: 9, TeamID: 1, StatType: store.StatBatting, AB: 2, H: 1},
		{PlayerID: 3, TeamID: 2, StatType: store.StatBatting, AB: 2, H: 1},
	}
	award, ok := Score(stats)
	require.True(t, ok)
	assert.Equal(t, int64(9), award.PlayerID, "earliest row wins a tie")

	// Same answer no matter how often it is computed.
	for i := 0; i < 5; i++ {
		again, _ := Score(stats)
		assert.Equal(t, award, again)
	}
}

func TestScore_Empty(t *testing.T) {
	_, ok := Score(nil)
	assert.False(t, ok)
}

func TestScore_RoundsToOneDecimal(t *testing.T) {
	stats := []store.GameStat{{PlayerID: 1, StatType: store.StatPitching, IP: 1.1, H: 1}}
	award, ok := Score(stats)
	require.True(t, ok)
	// 3.3 - 0.5
	assert.Equal(t, 2.8, award.Score)
	assert.Equal(t, "1.1 IP, 0 ER", award.Highlights)
}

func TestRecompute(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	a := &store.Team{Name: "A"}
	b := &store.Team{Name: "B"}
	require.NoError(t, s.CreateTeam(ctx, a))
	require.NoError(t, s.CreateTeam(ctx, b))
	p1 := &store.Player{Name: "One", TeamID: a.ID}
	p2 := &store.Player{Name: "Two", TeamID: b.ID}
	require.NoError(t, s.CreatePlayer(ctx, p1))
	require.NoError(t, s.CreatePlayer(ctx, p2))
	g := &store.Game{AwayTeamID: a.ID, HomeTeamID: b.ID}
	require.NoError(t, s.CreateGame(ctx, g))

	require.NoError(t, s.ReplaceGameStats(ctx, g.ID, []store.GameStat{
		{PlayerID: p1.ID, TeamID: a.ID, StatType: store.StatBatting, AB: 3, H: 1},
		{PlayerID: p2.ID, TeamID: b.ID, StatType: store.StatBatting, AB: 3, H: 2, RBI: 1},
	}))

	for i := 0; i < 3; i++ {
		pog, err := Recompute(ctx, s, g.ID)
		require.NoError(t, err)
		require.NotNil(t, pog)
		assert.Equal(t, p2.ID, pog.PlayerID)
		assert.Equal(t, 6.0, pog.Score)
		assert.True(t, pog.AutoSelected)
	}

	stored, err := s.PlayerOfGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "2-for-3, 1 RBI", stored.Highlights)

	require.NoError(t, s.ReplaceGameStats(ctx, g.ID, nil))
	pog, err := Recompute(ctx, s, g.ID)
	require.NoError(t, err)
	assert.Nil(t, pog)
}
