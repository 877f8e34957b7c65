package session

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_Wraps(t *testing.T) {
	r := NewRing(3)
	assert.Empty(t, r.Tail(10))

	for i := 1; i <= 5; i++ {
		r.Add(fmt.Sprintf("line %d", i))
	}
	assert.Equal(t, []string{"line 3", "line 4", "line 5"}, r.Tail(0))
	assert.Equal(t, []string{"line 4", "line 5"}, r.Tail(2))
}

func TestRingHandler_TeesInfoAndAbove(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	ring := NewRing(10)
	logger := slog.New(newRingHandler(base, ring)).With("event", "x")

	logger.Debug("dropped")
	logger.Info("Game saved", "game_id", 7)
	logger.Warn("Game skipped", "error", "boom")

	lines := ring.Tail(0)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "INFO Game saved game_id=7")
	assert.Contains(t, lines[1], "WARN Game skipped error=boom")

	assert.NotContains(t, buf.String(), "Game saved", "the base handler keeps its own level")
	assert.Contains(t, buf.String(), "event=x")
}
