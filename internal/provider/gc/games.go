package gc

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/albapepper/eventcentral/internal/boxscore"
	"github.com/albapepper/eventcentral/internal/reconcile"
)

// TeamInfo is the public team record.
type TeamInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AgeGroup    string `json:"age_group"`
	AgeDivision string `json:"age_division"`
}

var ageRe = regexp.MustCompile(`(?i)(\d{1,2}U)`)

// Age returns the team's age group as "9U", "10U", and so on, or "".
func (t TeamInfo) Age() string {
	raw := t.AgeGroup
	if raw == "" {
		raw = t.AgeDivision
	}
	if m := ageRe.FindString(raw); m != "" {
		return strings.ToUpper(m)
	}
	return raw
}

// Game is one entry from a team's public game list.
type Game struct {
	ID           string `json:"id"`
	GameStatus   string `json:"game_status"`
	HomeAway     string `json:"home_away"`
	StartTS      string `json:"start_ts"`
	OpponentTeam struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"opponent_team"`
	Score *struct {
		Team         *int `json:"team"`
		OpponentTeam *int `json:"opponent_team"`
	} `json:"score"`
}

// Status maps the provider's game_status onto ours.
func (g Game) Status() boxscore.Status {
	switch strings.ToLower(g.GameStatus) {
	case "completed", "final":
		return boxscore.StatusFinal
	case "in_progress", "live", "active":
		return boxscore.StatusLive
	default:
		return boxscore.StatusUpcoming
	}
}

// IsHome reports whether the listing team is the home side.
func (g Game) IsHome() bool {
	return strings.EqualFold(g.HomeAway, "home")
}

// StartDate returns the game's calendar date in UTC.
func (g Game) StartDate() (time.Time, bool) {
	if g.StartTS == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, g.StartTS)
	if err != nil {
		return time.Time{}, false
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

var (
	coreAgeRe   = regexp.MustCompile(`\b\d{1,2}u\b`)
	corePunctRe = regexp.MustCompile(`[^\w\s]`)
)

// CoreName lowercases a team name and strips age tags and punctuation.
func CoreName(name string) string {
	s := strings.ToLower(name)
	s = coreAgeRe.ReplaceAllString(s, "")
	s = corePunctRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// NamesMatch compares two team names by their core names: equal, or one
// containing the other when the shorter is at least four characters and
// more than half the longer's length.
func NamesMatch(a, b string) bool {
	ca, cb := CoreName(a), CoreName(b)
	if ca == "" || cb == "" {
		return false
	}
	if ca == cb {
		return true
	}
	short, long := ca, cb
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) < 4 || !strings.Contains(long, short) {
		return false
	}
	return float64(len(short))/float64(len(long)) > 0.5
}

// OpponentInEvent keeps games whose opponent is tracked, by provider id or
// by name.
func OpponentInEvent(g Game, trackedIDs map[string]bool, trackedNames []string) bool {
	if g.OpponentTeam.ID != "" && trackedIDs[g.OpponentTeam.ID] {
		return true
	}
	for _, n := range trackedNames {
		if NamesMatch(g.OpponentTeam.Name, n) {
			return true
		}
	}
	return false
}

// BuildObservation turns a listed game and its box score into an
// observation seen from the listing team.
func BuildObservation(team TeamInfo, g Game, box RawBoxScore) (reconcile.Observation, error) {
	ourName := team.Name
	if tb, ok := box[team.ID]; ok && tb.TeamName != "" {
		ourName = tb.TeamName
	}
	if ourName == "" {
		ourName = "Unknown"
	}
	oppName := g.OpponentTeam.Name
	if oppName == "" {
		oppName = "Unknown"
	}

	oppID := g.OpponentTeam.ID
	for id := range box {
		if id != team.ID && (oppID == "" || id == oppID) {
			oppID = id
			break
		}
	}

	var ourScore, oppScore *int
	if g.Score != nil {
		ourScore, oppScore = g.Score.Team, g.Score.OpponentTeam
	}

	obs := reconcile.Observation{
		ExternalID: g.ID,
		ViewerID:   team.ID,
		Status:     g.Status(),
	}
	if d, ok := g.StartDate(); ok {
		obs.GameDate = &d
	}

	ourBat, ourPitch, err := mapSide(box, team.ID)
	if err != nil {
		return obs, err
	}
	oppBat, oppPitch, err := mapSide(box, oppID)
	if err != nil {
		return obs, err
	}

	if g.IsHome() {
		obs.AwayName, obs.HomeName = oppName, ourName
		obs.AwayExternalID, obs.HomeExternalID = oppID, team.ID
		obs.AwayScore, obs.HomeScore = oppScore, ourScore
		obs.Box = boxscore.Box{AwayBatting: oppBat, AwayPitching: oppPitch, HomeBatting: ourBat, HomePitching: ourPitch}
	} else {
		obs.AwayName, obs.HomeName = ourName, oppName
		obs.AwayExternalID, obs.HomeExternalID = team.ID, oppID
		obs.AwayScore, obs.HomeScore = ourScore, oppScore
		obs.Box = boxscore.Box{AwayBatting: ourBat, AwayPitching: ourPitch, HomeBatting: oppBat, HomePitching: oppPitch}
	}

	if obs.Status == boxscore.StatusFinal && (obs.AwayScore == nil || obs.HomeScore == nil) {
		header := &boxscore.HeaderSignal{Status: boxscore.StatusFinal}
		res := boxscore.ResolveScore(header, obs.Box, boxscore.DefaultFinalInnings)
		obs.AwayScore, obs.HomeScore = res.AwayScore, res.HomeScore
	}
	return obs, nil
}

func mapSide(box RawBoxScore, teamID string) ([]boxscore.BattingLine, []boxscore.PitchingLine, error) {
	tb, ok := box[teamID]
	if !ok {
		return nil, nil, nil
	}
	bat, pitch, err := MapTeam(tb)
	if err != nil {
		return nil, nil, fmt.Errorf("team %s: %w", teamID, err)
	}
	return bat, pitch, nil
}
