package tracked

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `# Space Coast
https://web.gc.com/teams/fXEnuJhCgzAL | 8U | Space Coast Presidents Day | 2026-02-14 | 2026-02-16

https://web.gc.com/teams/D4CK5E1BGDsq | 11U | Space Coast Presidents Day | 2026-02-13 | 2026-02-15
https://web.gc.com/teams/Zz9 |  |
https://example.com/teams/abc | 9U | Other
https://web.gc.com/teams/Qq1 | 10U | Spring Open | 2026-13-01
`

func TestParse(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	require.Len(t, f.Teams, 3)
	assert.Equal(t, "fXEnuJhCgzAL", f.Teams[0].TeamID)
	assert.Equal(t, "8U", f.Teams[0].AgeGroup)
	assert.Equal(t, 2, f.Teams[0].Line)
	assert.Equal(t, "space-coast-presidents-day", f.Teams[0].EventID)
	require.NotNil(t, f.Teams[0].Start)
	assert.Equal(t, "2026-02-14", f.Teams[0].Start.Format(dateLayout))

	assert.Equal(t, DefaultAgeGroup, f.Teams[2].AgeGroup)
	assert.Equal(t, DefaultEventName, f.Teams[2].EventName)
	assert.Nil(t, f.Teams[2].Start)

	require.Len(t, f.Errors, 2)
	assert.Equal(t, 6, f.Errors[0].Line)
	assert.ErrorIs(t, f.Errors[0], ErrNotTeamURL)
	assert.Equal(t, 7, f.Errors[1].Line)
}

func TestEvents(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	events := f.Events()
	require.Len(t, events, 2)
	sc := events[0]
	assert.Equal(t, "space-coast-presidents-day", sc.ID)
	assert.Len(t, sc.Teams, 2)
	assert.Equal(t, "2026-02-13", sc.Start.Format(dateLayout))
	assert.Equal(t, "2026-02-16", sc.End.Format(dateLayout))

	_, ok := f.Event("unknown-event")
	assert.True(t, ok)
	_, ok = f.Event("nope")
	assert.False(t, ok)

	assert.True(t, f.TeamIDs()["D4CK5E1BGDsq"])
}

func TestInRange(t *testing.T) {
	start := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
	team := Team{Start: &start, End: &end}

	assert.True(t, team.InRange(time.Date(2026, 2, 16, 18, 30, 0, 0, time.UTC)))
	assert.True(t, team.InRange(start))
	assert.False(t, team.InRange(time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC)))
	assert.False(t, team.InRange(time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC)))
	assert.True(t, Team{}.InRange(time.Now()))
}

func TestParseGameDate(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	hint := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)

	d, ok := ParseGameDate("Sun Feb 15, 12:00 PM - 1:00 PM ET", &hint, now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), d)

	d, ok = ParseGameDate("Sat March 7, 9:00 AM", nil, now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC), d)

	_, ok = ParseGameDate("TBD", nil, now)
	assert.False(t, ok)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "space-coast-presidents-day", Slug("  Space Coast: Presidents' Day! "))
}
