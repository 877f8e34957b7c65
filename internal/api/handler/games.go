package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/eventcentral/internal/api/respond"
	"github.com/albapepper/eventcentral/internal/cache"
	"github.com/albapepper/eventcentral/internal/store"
)

const maxListLimit = 500

// TeamBox is one side of a game detail.
type TeamBox struct {
	TeamID   int64            `json:"team_id"`
	Name     string           `json:"name"`
	Score    *int             `json:"score"`
	Batting  []store.StatLine `json:"batting"`
	Pitching []store.StatLine `json:"pitching"`
}

// GameDetail is a game with both box scores and its player of the game.
type GameDetail struct {
	Game         store.Game `json:"game"`
	Away         TeamBox    `json:"away"`
	Home         TeamBox    `json:"home"`
	PlayerOfGame *POTGView  `json:"player_of_game"`
}

// POTGView is an award with the player's name.
type POTGView struct {
	store.PlayerOfGame
	PlayerName string `json:"player_name"`
	TeamName   string `json:"team_name"`
}

// parseFilter reads age_group, event_name, status and limit.
func parseFilter(r *http.Request) (store.GameFilter, error) {
	q := r.URL.Query()
	f := store.GameFilter{
		AgeGroup:  strings.TrimSpace(q.Get("age_group")),
		EventName: strings.TrimSpace(q.Get("event_name")),
		Status:    strings.ToLower(strings.TrimSpace(q.Get("status"))),
	}
	switch f.Status {
	case "", store.StatusUpcoming, store.StatusLive, store.StatusFinal:
	default:
		return f, fmt.Errorf("status must be one of upcoming, live, final")
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 || n > maxListLimit {
			return f, fmt.Errorf("limit must be between 1 and %d", maxListLimit)
		}
		f.Limit = n
	}
	return f, nil
}

func filterKey(prefix string, f store.GameFilter, extra ...interface{}) string {
	key := fmt.Sprintf("%s:%s:%s:%s:%d", prefix, f.AgeGroup, f.EventName, f.Status, f.Limit)
	for _, e := range extra {
		key += fmt.Sprintf(":%v", e)
	}
	return key
}

// ListGames returns games, newest first.
// @Summary List games
// @Tags games
// @Produce json
// @Param age_group query string false "Age group, e.g. 11U"
// @Param event_name query string false "Event name"
// @Param status query string false "Game status" Enums(upcoming, live, final)
// @Param limit query int false "Maximum rows (1-500)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /api/v1/games [get]
func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		return
	}
	h.serveCached(w, r, filterKey("games", f), cache.TTLGames, func() (interface{}, error) {
		games, err := h.store.ListGames(r.Context(), f)
		if err != nil {
			return nil, err
		}
		if games == nil {
			games = []store.GameSummary{}
		}
		return map[string]interface{}{"games": games, "count": len(games)}, nil
	})
}

// GetGame returns one game with both box scores.
// @Summary Game detail
// @Tags games
// @Produce json
// @Param id path int true "Game ID"
// @Success 200 {object} GameDetail
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /api/v1/games/{id} [get]
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ID", "ID must be a positive integer")
		return
	}

	g, err := h.store.GameByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("game %d not found", id))
		return
	}
	if err != nil {
		h.logger.Error("Game lookup failed", "id", id, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to load game")
		return
	}

	h.serveCached(w, r, fmt.Sprintf("game:%d:%d", id, g.UpdatedAt.UnixNano()), cache.TTLGameDetail, func() (interface{}, error) {
		return h.gameDetail(r, g)
	})
}

func (h *Handler) gameDetail(r *http.Request, g *store.Game) (*GameDetail, error) {
	ctx := r.Context()
	d := &GameDetail{
		Game: *g,
		Away: TeamBox{TeamID: g.AwayTeamID, Score: g.AwayScore, Batting: []store.StatLine{}, Pitching: []store.StatLine{}},
		Home: TeamBox{TeamID: g.HomeTeamID, Score: g.HomeScore, Batting: []store.StatLine{}, Pitching: []store.StatLine{}},
	}
	for _, side := range []*TeamBox{&d.Away, &d.Home} {
		t, err := h.store.TeamByID(ctx, side.TeamID)
		if err != nil {
			return nil, err
		}
		side.Name = t.Name
	}

	lines, err := h.store.GameStatLines(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		side := &d.Home
		if l.TeamID == g.AwayTeamID {
			side = &d.Away
		}
		if l.StatType == store.StatPitching {
			side.Pitching = append(side.Pitching, l)
		} else {
			side.Batting = append(side.Batting, l)
		}
	}

	pog, err := h.store.PlayerOfGame(ctx, g.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		v := &POTGView{PlayerOfGame: *pog}
		for _, l := range lines {
			if l.PlayerID == pog.PlayerID {
				v.PlayerName, v.TeamName = l.PlayerName, l.TeamName
				break
			}
		}
		d.PlayerOfGame = v
	}
	return d, nil
}
