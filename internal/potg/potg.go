// Package potg scores player performances in a game and picks the Player of
// the Game. Scoring is a pure function of the game's current stat rows, so
// recomputing any number of times gives the same award.
package potg

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/albapepper/eventcentral/internal/store"
)

// Batting and pitching weights.
const (
	wSingle  = 2.0
	wHR      = 5.0
	wRBI     = 2.0
	wRun     = 1.5
	wWalk    = 1.0
	wBatK    = -0.5
	wIP      = 3.0
	wPitchK  = 2.0
	wER      = -2.0
	wPitchBB = -1.0
	wHitsAll = -0.5
)

const epsilon = 1e-9

// Award is the computed Player of the Game.
type Award struct {
	PlayerID   int64
	TeamID     int64
	Score      float64
	Highlights string
}

// BattingScore is a batting row's contribution.
func BattingScore(s store.GameStat) float64 {
	singles := s.H - s.Doubles - s.Triples - s.HR
	return wSingle*float64(singles) + wHR*float64(s.HR) + wRBI*float64(s.RBI) +
		wRun*float64(s.R) + wWalk*float64(s.BB) + wBatK*float64(s.SO)
}

// PitchingScore is a pitching row's contribution. IP is the notation value.
func PitchingScore(s store.GameStat) float64 {
	return wIP*s.IP + wPitchK*float64(s.SO) + wER*float64(s.ER) +
		wPitchBB*float64(s.BB) + wHitsAll*float64(s.H)
}

type tally struct {
	playerID  int64
	teamID    int64
	firstSeen int
	total     float64
	fragments []string
}

// Score picks the top performer from a game's stat rows, given in insertion
// order. Ties go to the player whose first row came earliest, then to the
// lower player id. ok is false when there are no rows.
func Score(stats []store.GameStat) (award Award, ok bool) {
	byPlayer := make(map[int64]*tally)
	order := make([]*tally, 0)

	for i, s := range stats {
		t := byPlayer[s.PlayerID]
		if t == nil {
			t = &tally{playerID: s.PlayerID, teamID: s.TeamID, firstSeen: i}
			byPlayer[s.PlayerID] = t
			order = append(order, t)
		}
		switch s.StatType {
		case store.StatBatting:
			t.total += BattingScore(s)
			if f := battingFragment(s); f != "" {
				t.fragments = append(t.fragments, f)
			}
		case store.StatPitching:
			t.total += PitchingScore(s)
			if f := pitchingFragment(s); f != "" {
				t.fragments = append(t.fragments, f)
			}
		}
	}
	if len(order) == 0 {
		return Award{}, false
	}

	best := order[0]
	for _, t := range order[1:] {
		if beats(t, best) {
			best = t
		}
	}
	return Award{
		PlayerID:   best.playerID,
		TeamID:     best.teamID,
		Score:      round1(best.total),
		Highlights: strings.Join(best.fragments, " | "),
	}, true
}

func beats(a, b *tally) bool {
	switch {
	case a.total > b.total+epsilon:
		return true
	case a.total < b.total-epsilon:
		return false
	case a.firstSeen != b.firstSeen:
		return a.firstSeen < b.firstSeen
	default:
		return a.playerID < b.playerID
	}
}

func battingFragment(s store.GameStat) string {
	var parts []string
	if s.H > 0 {
		parts = append(parts, fmt.Sprintf("%d-for-%d", s.H, s.AB))
	}
	if s.HR > 0 {
		parts = append(parts, fmt.Sprintf("%d HR", s.HR))
	}
	if s.RBI > 0 {
		parts = append(parts, fmt.Sprintf("%d RBI", s.RBI))
	}
	if s.R > 0 {
		parts = append(parts, fmt.Sprintf("%d R", s.R))
	}
	return strings.Join(parts, ", ")
}

func pitchingFragment(s store.GameStat) string {
	var parts []string
	if s.IP > 0 {
		parts = append(parts, strconv.FormatFloat(s.IP, 'f', -1, 64)+" IP")
	}
	if s.SO > 0 {
		parts = append(parts, fmt.Sprintf("%d K", s.SO))
	}
	if s.ER == 0 && s.IP > 0 {
		parts = append(parts, "0 ER")
	}
	return strings.Join(parts, ", ")
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// Recompute rescores a game from its stored rows and replaces the award.
// A game with no stats ends up with no award.
func Recompute(ctx context.Context, s store.Store, gameID int64) (*store.PlayerOfGame, error) {
	stats, err := s.GameStats(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}

	award, ok := Score(stats)
	if !ok {
		if err := s.ClearPlayerOfGame(ctx, gameID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	pog := &store.PlayerOfGame{
		GameID:       gameID,
		PlayerID:     award.PlayerID,
		TeamID:       award.TeamID,
		Score:        award.Score,
		Highlights:   award.Highlights,
		AutoSelected: true,
	}
	if err := s.SetPlayerOfGame(ctx, pog); err != nil {
		return nil, fmt.Errorf("save potg: %w", err)
	}
	return pog, nil
}
