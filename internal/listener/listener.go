// Package listener provides a Postgres LISTEN/NOTIFY consumer that lets
// schedulers and database jobs start and stop polling sessions without going
// through the HTTP control API. It holds a dedicated pgx connection (not from
// the pool) listening on the `ec_control` channel.
//
//	SELECT pg_notify('ec_control', '{"action":"start","eventId":"presidents-day"}');
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/eventcentral/internal/session"
)

const (
	Channel          = "ec_control"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// Actions accepted in a control payload.
const (
	ActionStart = "start"
	ActionStop  = "stop"
)

// ControlEvent is the JSON payload from pg_notify('ec_control', ...). An
// empty EventID with action stop stops every session.
type ControlEvent struct {
	Action  string `json:"action"`
	EventID string `json:"eventId"`
}

// Sessions is what a control event drives.
type Sessions interface {
	Start(eventID string) (*session.StartResult, error)
	Stop(eventID string) []string
	StopAll() []string
}

// Start opens a dedicated connection and listens on the control channel. It
// reconnects automatically on connection loss. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, sessions Sessions, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, sessions, logger)
		if ctx.Err() != nil {
			logger.Info("Control listener stopped (context cancelled)")
			return
		}

		logger.Error("Control listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, sessions Sessions, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+Channel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", Channel, err)
	}
	logger.Info("Control listener connected", "channel", Channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		Handle(sessions, notification.Payload, logger)
	}
}

// Handle applies one control payload. Start returns as soon as the session
// is accepted, so this never blocks the listener for long.
func Handle(sessions Sessions, payload string, logger *slog.Logger) error {
	var event ControlEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		logger.Warn("Failed to parse control event", "payload", payload, "error", err)
		return fmt.Errorf("parse control event: %w", err)
	}
	event.EventID = strings.TrimSpace(event.EventID)

	switch strings.ToLower(event.Action) {
	case ActionStart:
		if event.EventID == "" {
			logger.Warn("Control start without eventId", "payload", payload)
			return fmt.Errorf("start: missing eventId")
		}
		out, err := sessions.Start(event.EventID)
		if err != nil {
			logger.Warn("Control start rejected", "event", event.EventID, "error", err)
			return err
		}
		logger.Info("Control start accepted",
			"event", out.EventID, "run_id", out.RunID, "teams", out.TeamsLoaded)
	case ActionStop:
		var stopped []string
		if event.EventID == "" {
			stopped = sessions.StopAll()
		} else {
			stopped = sessions.Stop(event.EventID)
		}
		logger.Info("Control stop applied", "stopped", stopped)
	default:
		logger.Warn("Unknown control action", "action", event.Action)
		return fmt.Errorf("unknown action %q", event.Action)
	}
	return nil
}
