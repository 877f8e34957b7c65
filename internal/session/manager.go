// Package session runs one polling loop per tracked event. Each loop owns a
// browser session, walks the event's teams every poll interval and feeds
// what it finds to the reconciler until every game is final or it is told
// to stop.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/albapepper/eventcentral/internal/boxscore"
	"github.com/albapepper/eventcentral/internal/browser"
	"github.com/albapepper/eventcentral/internal/config"
	"github.com/albapepper/eventcentral/internal/provider/gc"
	"github.com/albapepper/eventcentral/internal/reconcile"
	"github.com/albapepper/eventcentral/internal/scrape"
	"github.com/albapepper/eventcentral/internal/store"
	"github.com/albapepper/eventcentral/internal/tracked"
)

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrNoTeams        = errors.New("event has no tracked teams")
	ErrAlreadyRunning = errors.New("event is already being polled")
	ErrCapacity       = errors.New("too many active sessions")
)

// Options tune the polling loop.
type Options struct {
	TeamsFile     string
	PollInterval  time.Duration
	AutoStop      time.Duration
	MaxSessions   int
	TeamDelay     time.Duration
	RetryMax      int
	RetryInterval time.Duration
	FinalInnings  float64
	Transport     string
}

// OptionsFromConfig copies the polling settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TeamsFile:     cfg.TeamsFile,
		PollInterval:  cfg.PollInterval,
		AutoStop:      cfg.AutoStopWindow,
		MaxSessions:   cfg.MaxSessions,
		TeamDelay:     cfg.TeamDelay,
		RetryMax:      cfg.RetryMax,
		RetryInterval: time.Second,
		FinalInnings:  cfg.FinalInningsThreshold,
		Transport:     cfg.Transport,
	}
}

// Deps are the collaborators a Manager drives. API may be nil when the
// transport is the DOM. OnSaved, when set, is called after every game write.
type Deps struct {
	Store      store.Store
	Reconciler *reconcile.Reconciler
	Driver     browser.Driver
	Scraper    *scrape.Scraper
	API        *gc.Client
	Logger     *slog.Logger
	OnSaved    func(gameID int64)
}

// StartResult is returned when a session is accepted.
type StartResult struct {
	EventID     string `json:"event_id"`
	EventName   string `json:"event_name"`
	RunID       string `json:"run_id"`
	TeamsLoaded int    `json:"teams_loaded"`
}

// Manager owns every session. At most one session per event is active and
// at most MaxSessions run at once.
type Manager struct {
	opts   Options
	deps   Deps
	logger *slog.Logger
	sem    *semaphore.Weighted
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(opts Options, deps Deps) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Minute
	}
	if opts.FinalInnings <= 0 {
		opts.FinalInnings = boxscore.DefaultFinalInnings
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Second
	}
	if opts.Transport == "" {
		opts.Transport = config.TransportDOM
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:     opts,
		deps:     deps,
		logger:   logger,
		sem:      semaphore.NewWeighted(int64(opts.MaxSessions)),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Events lists the events in the tracked-team file.
func (m *Manager) Events() ([]tracked.Event, error) {
	f, err := tracked.Load(m.opts.TeamsFile)
	if err != nil {
		return nil, err
	}
	return f.Events(), nil
}

func (m *Manager) loadEvent(eventID string) (tracked.Event, error) {
	f, err := tracked.Load(m.opts.TeamsFile)
	if err != nil {
		return tracked.Event{}, err
	}
	ev, ok := f.Event(eventID)
	if !ok {
		return tracked.Event{}, fmt.Errorf("%s: %w", eventID, ErrUnknownEvent)
	}
	if len(ev.Teams) == 0 {
		return tracked.Event{}, fmt.Errorf("%s: %w", eventID, ErrNoTeams)
	}
	return ev, nil
}

// Start launches a polling session for eventID and returns immediately.
func (m *Manager) Start(eventID string) (*StartResult, error) {
	ev, err := m.loadEvent(eventID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx.Err() != nil {
		return nil, fmt.Errorf("manager is shut down")
	}
	if s, ok := m.sessions[ev.ID]; ok && s.active() {
		return nil, fmt.Errorf("%s: %w", ev.ID, ErrAlreadyRunning)
	}
	if !m.sem.TryAcquire(1) {
		return nil, fmt.Errorf("limit %d: %w", m.opts.MaxSessions, ErrCapacity)
	}

	s := newSession(ev.ID, ev.Name, uuid.NewString(), m.logger, m.now())
	s.clock = m.now
	ctx, cancel := context.WithCancel(m.ctx)
	s.cancel = cancel
	m.sessions[ev.ID] = s

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(s.done)
		defer m.sem.Release(1)
		defer cancel()
		m.run(ctx, s)
	}()

	s.logger.Info("Session started", "teams", len(ev.Teams), "transport", m.opts.Transport)
	return &StartResult{
		EventID:     ev.ID,
		EventName:   ev.Name,
		RunID:       s.RunID,
		TeamsLoaded: len(ev.Teams),
	}, nil
}

// Stop cancels the session for eventID and returns the ids it stopped.
func (m *Manager) Stop(eventID string) []string {
	m.mu.Lock()
	s, ok := m.sessions[eventID]
	m.mu.Unlock()
	if !ok || !s.active() {
		return []string{}
	}
	s.requestStop("stopped by request")
	return []string{eventID}
}

// StopAll cancels every active session.
func (m *Manager) StopAll() []string {
	m.mu.Lock()
	var active []*Session
	for _, s := range m.sessions {
		if s.active() {
			active = append(active, s)
		}
	}
	m.mu.Unlock()

	stopped := make([]string, 0, len(active))
	for _, s := range active {
		s.requestStop("stopped by request")
		stopped = append(stopped, s.EventID)
	}
	sort.Strings(stopped)
	return stopped
}

// Status returns a snapshot of every known session, ordered by event id.
func (m *Manager) Status() []Snapshot {
	m.mu.Lock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.Unlock()

	now := m.now()
	out := make([]Snapshot, 0, len(list))
	for _, s := range list {
		out = append(out, s.snapshot(now, m.opts.AutoStop))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out
}

// Active counts sessions that are idle or running.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.active() {
			n++
		}
	}
	return n
}

// Session returns the session for eventID, if any.
func (m *Manager) Session(eventID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[eventID]
	return s, ok
}

// Prune forgets sessions that finished more than retain ago and returns
// their event ids.
func (m *Manager) Prune(retain time.Duration) []string {
	cutoff := m.now().Add(-retain)
	m.mu.Lock()
	defer m.mu.Unlock()
	var pruned []string
	for id, s := range m.sessions {
		if s.active() {
			continue
		}
		if !s.finished().After(cutoff) {
			delete(m.sessions, id)
			pruned = append(pruned, id)
		}
	}
	sort.Strings(pruned)
	return pruned
}

// Shutdown stops every session and waits for them to exit or for ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, s := range m.sessions {
		if s.active() {
			s.requestStop("shutdown")
		}
	}
	m.cancel()
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs a single cycle for eventID in the caller's goroutine. It
// does not register a session.
func (m *Manager) RunOnce(ctx context.Context, eventID string) (*CycleResult, error) {
	ev, err := m.loadEvent(eventID)
	if err != nil {
		return nil, err
	}
	s := newSession(ev.ID, ev.Name, uuid.NewString(), m.logger, m.now())

	sess, err := m.openBrowser(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	return m.cycle(ctx, s, sess)
}

func (m *Manager) openBrowser(ctx context.Context) (browser.Session, error) {
	sess, err := m.deps.Driver.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening browser: %w", err)
	}
	if err := m.deps.Scraper.CheckLogin(ctx, sess); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

func (m *Manager) run(ctx context.Context, s *Session) {
	sess, err := m.openBrowser(ctx)
	if err != nil {
		if ctx.Err() != nil {
			s.finish(StateStopped, "stopped before start", nil)
			return
		}
		s.logger.Error("Session could not start", "error", err)
		reason := "browser error"
		if errors.Is(err, scrape.ErrSessionExpired) {
			reason = "provider login expired"
		}
		s.finish(StateError, reason, err)
		return
	}
	defer sess.Close()
	s.setRunning()

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		res, err := m.cycle(ctx, s, sess)
		if err != nil && ctx.Err() == nil {
			s.logger.Error("Session failed", "error", err)
			s.finish(StateError, "fatal cycle error", err)
			return
		}
		if ctx.Err() != nil {
			s.logger.Info("Session stopped")
			s.finish(StateStopped, "stopped", nil)
			return
		}

		finalFor := s.recordCycle(res, m.now())
		if res.AllFinal() && finalFor >= m.opts.AutoStop {
			s.logger.Info("All games final, stopping", "final_for", finalFor.String())
			s.finish(StateStopped, "all games final", nil)
			return
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Session stopped")
			s.finish(StateStopped, "stopped", nil)
			return
		case <-ticker.C:
		}
	}
}
