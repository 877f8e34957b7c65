package maintenance

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/eventcentral/internal/cache"
	"github.com/albapepper/eventcentral/internal/store"
	"github.com/albapepper/eventcentral/internal/store/sqlite"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackfillPOTG(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	a := &store.Team{Name: "A"}
	b := &store.Team{Name: "B"}
	require.NoError(t, s.CreateTeam(ctx, a))
	require.NoError(t, s.CreateTeam(ctx, b))
	p := &store.Player{Name: "One", TeamID: a.ID}
	require.NoError(t, s.CreatePlayer(ctx, p))

	g := &store.Game{AwayTeamID: a.ID, HomeTeamID: b.ID}
	require.NoError(t, s.CreateGame(ctx, g))
	require.NoError(t, s.ReplaceGameStats(ctx, g.ID, []store.GameStat{
		{PlayerID: p.ID, TeamID: a.ID, StatType: store.StatBatting, AB: 3, H: 2},
	}))

	// Stats without an award, as after a crash mid-save.
	_, err = s.PlayerOfGame(ctx, g.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	assert.Equal(t, 1, BackfillPOTG(ctx, s, quietLogger()))
	pog, err := s.PlayerOfGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, pog.PlayerID)

	assert.Equal(t, 0, BackfillPOTG(ctx, s, quietLogger()), "nothing left to award")
}

type fakePruner struct {
	retain chan time.Duration
}

func (f *fakePruner) Prune(retain time.Duration) []string {
	select {
	case f.retain <- retain:
	default:
	}
	return []string{"presidents-day"}
}

func TestStart_RunsPruneOnTick(t *testing.T) {
	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := &fakePruner{retain: make(chan time.Duration, 1)}
	done := make(chan struct{})
	go func() {
		Start(ctx, s, p, Config{PruneInterval: 5 * time.Millisecond, SessionRetention: time.Hour}, quietLogger())
		close(done)
	}()

	select {
	case got := <-p.retain:
		assert.Equal(t, time.Hour, got)
	case <-time.After(5 * time.Second):
		t.Fatal("prune never ran")
	}
	cancel()
	<-done
}

func TestInvalidateReadCache(t *testing.T) {
	c := cache.New(true)
	defer c.Close()

	c.Set("games:11U::final:0", []byte(`[]`), time.Minute)
	c.Set("game:7:123", []byte(`{}`), time.Minute)
	c.Set("game:8:123", []byte(`{}`), time.Minute)
	c.Set("leaders:::0:5:5", []byte(`{}`), time.Minute)

	InvalidateReadCache(c, quietLogger())(7)

	_, _, ok := c.Get("games:11U::final:0")
	assert.False(t, ok)
	_, _, ok = c.Get("game:7:123")
	assert.False(t, ok)
	_, _, ok = c.Get("leaders:::0:5:5")
	assert.False(t, ok)
	_, _, ok = c.Get("game:8:123")
	assert.True(t, ok, "other games stay cached")
}
