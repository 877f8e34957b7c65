package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/albapepper/eventcentral/internal/api/respond"
	"github.com/albapepper/eventcentral/internal/session"
)

// EventRequest is the body of /scrape-event and /stop.
type EventRequest struct {
	EventID string `json:"eventId"`
}

// GetStatus lists every session with its countdown and recent logs.
// @Summary Session status
// @Tags control
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} respond.ErrorResponse
// @Router /status [get]
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	snaps := h.sessions.Status()
	running := 0
	for _, s := range snaps {
		if s.State == session.StateRunning || s.State == session.StateIdle {
			running++
		}
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"sessions":     snaps,
		"running":      running,
		"max_sessions": h.cfg.MaxSessions,
	})
}

// ScrapeEvent starts polling an event.
// @Summary Start polling an event
// @Tags control
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body EventRequest true "Event to poll"
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /scrape-event [post]
func (h *Handler) ScrapeEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := respond.DecodeBody(r, &req); err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be JSON", err.Error())
		return
	}
	req.EventID = strings.TrimSpace(req.EventID)
	if req.EventID == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_EVENT_ID", "eventId is required")
		return
	}

	out, err := h.sessions.Start(req.EventID)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrUnknownEvent):
		respond.WriteError(w, http.StatusNotFound, "UNKNOWN_EVENT", "No tracked teams for event "+req.EventID)
		return
	case errors.Is(err, session.ErrNoTeams):
		respond.WriteError(w, http.StatusBadRequest, "NO_TEAMS", "Event has no tracked teams")
		return
	case errors.Is(err, session.ErrAlreadyRunning):
		respond.WriteError(w, http.StatusConflict, "ALREADY_RUNNING", "Event is already being polled")
		return
	case errors.Is(err, session.ErrCapacity):
		respond.WriteError(w, http.StatusServiceUnavailable, "AT_CAPACITY", "Too many active sessions")
		return
	default:
		h.logger.Error("Failed to start session", "event", req.EventID, "error", err)
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "START_FAILED", "Could not start session", err.Error())
		return
	}

	h.logger.Info("Session requested", "event", out.EventID, "run_id", out.RunID)
	respond.WriteJSONObject(w, http.StatusAccepted, map[string]interface{}{
		"status":      "starting",
		"eventId":     out.EventID,
		"eventName":   out.EventName,
		"runId":       out.RunID,
		"teamsLoaded": out.TeamsLoaded,
	})
}

// StopEvent stops one session, or all when no eventId is given.
// @Summary Stop polling
// @Tags control
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body EventRequest false "Event to stop; omit to stop all"
// @Success 200 {object} map[string]interface{}
// @Router /stop [post]
func (h *Handler) StopEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := respond.DecodeBody(r, &req); err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be JSON", err.Error())
		return
	}

	var stopped []string
	if id := strings.TrimSpace(req.EventID); id != "" {
		stopped = h.sessions.Stop(id)
	} else {
		stopped = h.sessions.StopAll()
	}
	if stopped == nil {
		stopped = []string{}
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"stopped": stopped})
}

// GetEvents lists the events in the tracked-team file.
// @Summary Tracked events
// @Tags control
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /events [get]
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.sessions.Events()
	if err != nil {
		h.logger.Error("Failed to read teams file", "error", err)
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "TEAMS_FILE", "Could not read the teams file", err.Error())
		return
	}
	type eventView struct {
		ID        string  `json:"id"`
		Name      string  `json:"name"`
		Teams     int     `json:"teams"`
		StartDate *string `json:"start_date,omitempty"`
		EndDate   *string `json:"end_date,omitempty"`
	}
	out := make([]eventView, 0, len(events))
	for _, e := range events {
		v := eventView{ID: e.ID, Name: e.Name, Teams: len(e.Teams)}
		if e.Start != nil {
			s := e.Start.Format("2006-01-02")
			v.StartDate = &s
		}
		if e.End != nil {
			s := e.End.Format("2006-01-02")
			v.EndDate = &s
		}
		out = append(out, v)
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"events": out})
}
