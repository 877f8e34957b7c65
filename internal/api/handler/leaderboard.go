package handler

import (
	"math"
	"net/http"
	"sort"
	"strconv"

	"github.com/albapepper/eventcentral/internal/api/respond"
	"github.com/albapepper/eventcentral/internal/boxscore"
	"github.com/albapepper/eventcentral/internal/cache"
	"github.com/albapepper/eventcentral/internal/store"
)

const (
	leaderboardSize = 15
	defaultMinAB    = 5
	defaultMinIP    = 5

	// Youth games are seven innings.
	regulationInnings = 7
)

// BattingLeader is a player's batting totals across the filtered games.
type BattingLeader struct {
	PlayerID   int64   `json:"player_id"`
	PlayerName string  `json:"player_name"`
	TeamName   string  `json:"team_name"`
	Games      int     `json:"games"`
	AB         int     `json:"ab"`
	H          int     `json:"h"`
	Doubles    int     `json:"doubles"`
	Triples    int     `json:"triples"`
	HR         int     `json:"hr"`
	RBI        int     `json:"rbi"`
	R          int     `json:"r"`
	BB         int     `json:"bb"`
	SO         int     `json:"so"`
	AVG        float64 `json:"avg"`
	OBP        float64 `json:"obp"`
	SLG        float64 `json:"slg"`
}

// PitchingLeader is a player's pitching totals across the filtered games.
type PitchingLeader struct {
	PlayerID   int64            `json:"player_id"`
	PlayerName string           `json:"player_name"`
	TeamName   string           `json:"team_name"`
	Games      int              `json:"games"`
	IP         boxscore.Innings `json:"ip"`
	H          int              `json:"h"`
	R          int              `json:"r"`
	ER         int              `json:"er"`
	BB         int              `json:"bb"`
	SO         int              `json:"so"`
	ERA        float64          `json:"era"`
	WHIP       float64          `json:"whip"`
	K7         float64          `json:"k_per_7"`
}

// Leaderboards returns the top batters and pitchers. Batters need min_ab
// at-bats and pitchers min_ip innings to qualify.
// @Summary Batting and pitching leaderboards
// @Tags leaderboards
// @Produce json
// @Param age_group query string false "Age group"
// @Param event_name query string false "Event name"
// @Param min_ab query int false "Minimum at-bats (default 5)"
// @Param min_ip query int false "Minimum innings pitched (default 5)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /api/v1/leaderboards [get]
func (h *Handler) Leaderboards(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		return
	}
	f.Limit = 0
	minAB, ok := intParam(r, "min_ab", defaultMinAB)
	if !ok {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_MIN_AB", "min_ab must be a non-negative integer")
		return
	}
	minIP, ok := intParam(r, "min_ip", defaultMinIP)
	if !ok {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_MIN_IP", "min_ip must be a non-negative integer")
		return
	}

	h.serveCached(w, r, filterKey("leaders", f, minAB, minIP), cache.TTLLeaderboard, func() (interface{}, error) {
		lines, err := h.store.ListStatLines(r.Context(), f)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"batting":  BattingLeaders(lines, minAB),
			"pitching": PitchingLeaders(lines, float64(minIP)),
			"min_ab":   minAB,
			"min_ip":   minIP,
		}, nil
	})
}

func intParam(r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// BattingLeaders aggregates batting lines per player and ranks qualifiers by
// average, then on-base percentage.
func BattingLeaders(lines []store.StatLine, minAB int) []BattingLeader {
	byPlayer := make(map[int64]*BattingLeader)
	for _, l := range lines {
		if l.StatType != store.StatBatting {
			continue
		}
		b, ok := byPlayer[l.PlayerID]
		if !ok {
			b = &BattingLeader{PlayerID: l.PlayerID, PlayerName: l.PlayerName, TeamName: l.TeamName}
			byPlayer[l.PlayerID] = b
		}
		b.Games++
		b.AB += l.AB
		b.H += l.H
		b.Doubles += l.Doubles
		b.Triples += l.Triples
		b.HR += l.HR
		b.RBI += l.RBI
		b.R += l.R
		b.BB += l.BB
		b.SO += l.SO
	}

	out := make([]BattingLeader, 0, len(byPlayer))
	for _, b := range byPlayer {
		if b.AB < minAB || b.AB == 0 {
			continue
		}
		singles := b.H - b.Doubles - b.Triples - b.HR
		if singles < 0 {
			singles = 0
		}
		tb := singles + 2*b.Doubles + 3*b.Triples + 4*b.HR
		b.AVG = round(float64(b.H)/float64(b.AB), 3)
		b.OBP = round(float64(b.H+b.BB)/float64(b.AB+b.BB), 3)
		b.SLG = round(float64(tb)/float64(b.AB), 3)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AVG != out[j].AVG {
			return out[i].AVG > out[j].AVG
		}
		if out[i].OBP != out[j].OBP {
			return out[i].OBP > out[j].OBP
		}
		return out[i].PlayerName < out[j].PlayerName
	})
	if len(out) > leaderboardSize {
		out = out[:leaderboardSize]
	}
	return out
}

// PitchingLeaders aggregates pitching lines per player and ranks qualifiers
// by ERA, then WHIP. Rates are per seven innings.
func PitchingLeaders(lines []store.StatLine, minIP float64) []PitchingLeader {
	byPlayer := make(map[int64]*PitchingLeader)
	for _, l := range lines {
		if l.StatType != store.StatPitching {
			continue
		}
		p, ok := byPlayer[l.PlayerID]
		if !ok {
			p = &PitchingLeader{PlayerID: l.PlayerID, PlayerName: l.PlayerName, TeamName: l.TeamName}
			byPlayer[l.PlayerID] = p
		}
		p.Games++
		p.IP = p.IP.Add(boxscore.InningsFromNotation(l.IP))
		p.H += l.H
		p.R += l.R
		p.ER += l.ER
		p.BB += l.BB
		p.SO += l.SO
	}

	out := make([]PitchingLeader, 0, len(byPlayer))
	for _, p := range byPlayer {
		ip := p.IP.Thirds()
		if ip < minIP || ip == 0 {
			continue
		}
		p.ERA = round(float64(p.ER)*regulationInnings/ip, 2)
		p.WHIP = round(float64(p.BB+p.H)/ip, 2)
		p.K7 = round(float64(p.SO)*regulationInnings/ip, 2)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ERA != out[j].ERA {
			return out[i].ERA < out[j].ERA
		}
		if out[i].WHIP != out[j].WHIP {
			return out[i].WHIP < out[j].WHIP
		}
		return out[i].PlayerName < out[j].PlayerName
	})
	if len(out) > leaderboardSize {
		out = out[:leaderboardSize]
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
