package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/eventcentral/internal/config"
)

func testConfig(t *testing.T, transport string) *config.Config {
	t.Helper()
	teams := filepath.Join(t.TempDir(), "teams.txt")
	require.NoError(t, os.WriteFile(teams, []byte("https://web.gc.com/teams/fXEnuJhCgzAL | 11U | Presidents Day\n"), 0o644))
	return &config.Config{
		DBDriver:       "sqlite",
		SQLitePath:     ":memory:",
		TeamsFile:      teams,
		Transport:      transport,
		ProviderWebURL: "https://web.gc.com",
		ProviderAPIURL: "https://api.team-manager.gc.com",
		MaxSessions:    2,
		TeamAliases:    config.DefaultTeamAliases,
	}
}

func TestNew_DOMTransport(t *testing.T) {
	a, err := New(context.Background(), testConfig(t, config.TransportDOM), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Pool)
	assert.Nil(t, a.API)
	require.NoError(t, a.Store.Ping(context.Background()))

	m := a.Manager(nil)
	events, err := m.Events()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "presidents-day", events[0].ID)
}

func TestNew_APITransport(t *testing.T) {
	a, err := New(context.Background(), testConfig(t, config.TransportAPI), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.API)
	assert.NotNil(t, a.Tokens)
	assert.Equal(t, "https://web.gc.com/teams/fXEnuJhCgzAL", tokenTeamURL(a.Config.TeamsFile, a.logger))
}
