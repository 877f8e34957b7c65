package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State is where a session is in its lifecycle.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateError   State = "error"
)

const (
	ringSize   = 500
	statusTail = 50
)

// Session polls one event until stopped.
type Session struct {
	EventID   string
	EventName string
	RunID     string

	logger *slog.Logger
	logs   *Ring
	cancel context.CancelFunc
	done   chan struct{}
	clock  func() time.Time

	mu            sync.Mutex
	state         State
	startedAt     time.Time
	lastCycleAt   time.Time
	cycles        int
	last          *CycleResult
	allFinalSince *time.Time
	stopReason    string
	lastErr       string
	finishedAt    time.Time
}

// Snapshot is a point-in-time view of a session for the status endpoint.
type Snapshot struct {
	EventID           string       `json:"event_id"`
	EventName         string       `json:"event_name"`
	RunID             string       `json:"run_id"`
	State             State        `json:"state"`
	StartedAt         time.Time    `json:"started_at"`
	LastCycleAt       *time.Time   `json:"last_cycle_at,omitempty"`
	Cycles            int          `json:"cycles"`
	LastCycle         *CycleResult `json:"last_cycle,omitempty"`
	AutoStopInMinutes *float64     `json:"auto_stop_in_minutes,omitempty"`
	StopReason        string       `json:"stop_reason,omitempty"`
	LastError         string       `json:"last_error,omitempty"`
	RecentLogs        []string     `json:"recent_logs"`
}

func newSession(eventID, eventName, runID string, base *slog.Logger, now time.Time) *Session {
	ring := NewRing(ringSize)
	logger := slog.New(newRingHandler(base.Handler(), ring)).With("event", eventID, "run_id", runID)
	return &Session{
		EventID:   eventID,
		EventName: eventName,
		RunID:     runID,
		logger:    logger,
		logs:      ring,
		done:      make(chan struct{}),
		state:     StateIdle,
		startedAt: now,
		clock:     time.Now,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session's goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) active() bool {
	st := s.State()
	return st == StateIdle || st == StateRunning
}

func (s *Session) finished() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedAt
}

func (s *Session) setRunning() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.state = StateRunning
	}
	s.mu.Unlock()
}

func (s *Session) requestStop(reason string) {
	s.mu.Lock()
	if s.stopReason == "" {
		s.stopReason = reason
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *Session) finish(state State, reason string, err error) {
	s.mu.Lock()
	s.state = state
	s.finishedAt = s.clock()
	if s.stopReason == "" {
		s.stopReason = reason
	}
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()
}

// recordCycle stores the result and returns how long every game has been
// final, or zero when some game is still open.
func (s *Session) recordCycle(res *CycleResult, now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles++
	s.lastCycleAt = now
	s.last = res
	if !res.AllFinal() {
		s.allFinalSince = nil
		return 0
	}
	if s.allFinalSince == nil {
		t := now
		s.allFinalSince = &t
	}
	return now.Sub(*s.allFinalSince)
}

func (s *Session) snapshot(now time.Time, autoStop time.Duration) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		EventID:    s.EventID,
		EventName:  s.EventName,
		RunID:      s.RunID,
		State:      s.state,
		StartedAt:  s.startedAt,
		Cycles:     s.cycles,
		LastCycle:  s.last,
		StopReason: s.stopReason,
		LastError:  s.lastErr,
		RecentLogs: s.logs.Tail(statusTail),
	}
	if !s.lastCycleAt.IsZero() {
		t := s.lastCycleAt
		snap.LastCycleAt = &t
	}
	if s.allFinalSince != nil && s.state == StateRunning {
		left := (autoStop - now.Sub(*s.allFinalSince)).Minutes()
		if left < 0 {
			left = 0
		}
		snap.AutoStopInMinutes = &left
	}
	return snap
}
