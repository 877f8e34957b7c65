package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/albapepper/eventcentral/internal/api/respond"
	"github.com/albapepper/eventcentral/internal/cache"
	"github.com/albapepper/eventcentral/internal/store"
)

// ListPOTG returns awards ordered by score, one per player, game and team.
// @Summary Players of the game
// @Tags potg
// @Produce json
// @Param age_group query string false "Age group"
// @Param event_name query string false "Event name"
// @Param limit query int false "Maximum rows (1-500)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /api/v1/potg [get]
func (h *Handler) ListPOTG(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		return
	}
	limit := f.Limit
	f.Limit = 0

	h.serveCached(w, r, filterKey("potg", f, limit), cache.TTLPOTG, func() (interface{}, error) {
		rows, err := h.store.ListPlayersOfGame(r.Context(), f)
		if err != nil {
			return nil, err
		}
		out := dedupPOTG(rows)
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return map[string]interface{}{"players_of_game": out, "count": len(out)}, nil
	})
}

// dedupPOTG keeps the first row per (player name, game, team). Rows arrive
// ordered by score, so the kept row is the best one.
func dedupPOTG(rows []store.POTGEntry) []store.POTGEntry {
	seen := make(map[string]bool, len(rows))
	out := make([]store.POTGEntry, 0, len(rows))
	for _, r := range rows {
		key := fmt.Sprintf("%s|%d|%s", strings.ToLower(r.PlayerName), r.GameID, strings.ToLower(r.TeamName))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
