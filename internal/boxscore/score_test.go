package boxscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pitching(ip string) []PitchingLine {
	v, _ := ParseInnings(ip)
	return []PitchingLine{{Name: "P", IP: v}}
}

func TestResolveScore_HeaderOverrides(t *testing.T) {
	zero, seven := 0, 7
	box := Box{
		AwayBatting: []BattingLine{{Name: "a", R: 2}},
		HomeBatting: []BattingLine{{Name: "b", R: 5}},
	}

	res := ResolveScore(&HeaderSignal{AwayScore: &zero, HomeScore: &seven, Status: StatusFinal}, box, 3)
	require.NotNil(t, res.AwayScore)
	require.NotNil(t, res.HomeScore)
	assert.Equal(t, 0, *res.AwayScore)
	assert.Equal(t, 7, *res.HomeScore)
	assert.Equal(t, StatusFinal, res.Status)
	assert.True(t, res.ScoreFromHeader)
	assert.True(t, res.StatusFromHeader)
}

func TestResolveScore_FallbackFinal(t *testing.T) {
	box := Box{
		AwayBatting:  []BattingLine{{R: 1}, {R: 2}},
		HomeBatting:  []BattingLine{{R: 4}},
		AwayPitching: pitching("3.0"),
		HomePitching: pitching("3.0"),
	}
	res := ResolveScore(nil, box, 3)
	assert.Equal(t, StatusFinal, res.Status)
	assert.Equal(t, 3, *res.AwayScore)
	assert.Equal(t, 4, *res.HomeScore)
	assert.False(t, res.ScoreFromHeader)
}

func TestResolveScore_FallbackLive(t *testing.T) {
	box := Box{
		AwayPitching: pitching("4.0"),
		HomePitching: pitching("2.2"),
	}
	res := ResolveScore(&HeaderSignal{}, box, 3)
	assert.Equal(t, StatusLive, res.Status)
	assert.Nil(t, res.AwayScore)
}

func TestResolveScore_FinalAlwaysHasScores(t *testing.T) {
	res := ResolveScore(&HeaderSignal{Status: StatusFinal}, Box{}, 3)
	require.NotNil(t, res.AwayScore)
	require.NotNil(t, res.HomeScore)
	assert.Equal(t, 0, *res.AwayScore)
}

func TestBoxSwap(t *testing.T) {
	b := Box{AwayBatting: []BattingLine{{Name: "away"}}, HomePitching: pitching("1.0")}
	s := b.Swap()
	assert.Equal(t, "away", s.HomeBatting[0].Name)
	assert.Len(t, s.AwayPitching, 1)
	assert.False(t, s.Empty())
	assert.True(t, Box{}.Empty())
}
