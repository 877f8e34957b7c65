package session

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCycle_ReopenedGameResetsAutoStop(t *testing.T) {
	t0 := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	s := newSession("presidents-day", "Presidents Day", "run-1", slog.New(slog.NewTextHandler(io.Discard, nil)), t0)
	s.setRunning()

	allFinal := &CycleResult{GamesFound: 2, Final: 2}
	reopened := &CycleResult{GamesFound: 2, Final: 1, LiveOrUpcoming: 1}

	assert.Zero(t, s.recordCycle(allFinal, t0))
	assert.Equal(t, 10*time.Minute, s.recordCycle(allFinal, t0.Add(10*time.Minute)))
	snap := s.snapshot(t0.Add(10*time.Minute), time.Hour)
	require.NotNil(t, snap.AutoStopInMinutes)
	assert.InDelta(t, 50, *snap.AutoStopInMinutes, 0.001)

	// A game flips back to live: the countdown disappears and the session
	// keeps running.
	assert.Zero(t, s.recordCycle(reopened, t0.Add(20*time.Minute)))
	snap = s.snapshot(t0.Add(20*time.Minute), time.Hour)
	assert.Nil(t, snap.AutoStopInMinutes)
	assert.Equal(t, StateRunning, snap.State)

	// The next all-final cycle starts the window over.
	assert.Zero(t, s.recordCycle(allFinal, t0.Add(30*time.Minute)))
	assert.Equal(t, 5*time.Minute, s.recordCycle(allFinal, t0.Add(35*time.Minute)))
	snap = s.snapshot(t0.Add(35*time.Minute), time.Hour)
	require.NotNil(t, snap.AutoStopInMinutes)
	assert.InDelta(t, 55, *snap.AutoStopInMinutes, 0.001)
}

func TestFinish_UsesSessionClock(t *testing.T) {
	at := time.Date(2026, 2, 15, 18, 0, 0, 0, time.UTC)
	s := newSession("presidents-day", "Presidents Day", "run-1", slog.New(slog.NewTextHandler(io.Discard, nil)), at)
	s.clock = func() time.Time { return at }

	s.finish(StateStopped, "all games final", nil)
	assert.Equal(t, at, s.finished())
	assert.False(t, s.active())
}
