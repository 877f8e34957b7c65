package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/eventcentral/internal/browser/browsertest"
	"github.com/albapepper/eventcentral/internal/config"
	"github.com/albapepper/eventcentral/internal/provider/gc"
	"github.com/albapepper/eventcentral/internal/reconcile"
	"github.com/albapepper/eventcentral/internal/registry"
	"github.com/albapepper/eventcentral/internal/scrape"
	"github.com/albapepper/eventcentral/internal/store"
	"github.com/albapepper/eventcentral/internal/store/sqlite"
)

const (
	webURL    = "https://web.gc.com"
	teamURL   = webURL + "/teams/fXEnuJhCgzAL"
	finalGame = teamURL + "/schedule/0b6e2f4a-8c1d-4e2b-9a77-3f5d0c1e2a10/box-score"
	otherGame = teamURL + "/schedule/7f1a9b3c-2d4e-4f60-8a1b-9c0d1e2f3a44/box-score"

	finalExtID = "0b6e2f4a-8c1d-4e2b-9a77-3f5d0c1e2a10"

	teamsFile = `# tracked teams
https://web.gc.com/teams/fXEnuJhCgzAL | 11U | Presidents Day | 2026-02-14 | 2026-02-16
https://web.gc.com/teams/Other123 | 12U | Fall Classic
`
	pendingPage = `<html><body><span data-testid="away-team-name">Lions 11U</span>` +
		`<span data-testid="home-team-name">Sharks 11U</span></body></html>`
)

type env struct {
	m     *Manager
	d     *browsertest.Driver
	store *sqlite.Store

	mu    sync.Mutex
	saved []int64
}

func (e *env) savedGames() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int64(nil), e.saved...)
}

func fixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("..", "scrape", "testdata", name))
	require.NoError(t, err)
	return string(b)
}

func newEnv(t *testing.T, opts Options) *env {
	t.Helper()
	path := filepath.Join(t.TempDir(), "teams.txt")
	require.NoError(t, os.WriteFile(path, []byte(teamsFile), 0o644))

	d := browsertest.NewDriver()
	d.Evals["desktop-sign-in-button"] = true
	d.Links[`a[href*="/schedule"]`] = teamURL + "/schedule"
	d.SetPage(teamURL+"/schedule", fixture(t, "schedule.html"))
	d.SetPage(finalGame, fixture(t, "box_score.html"))
	d.SetPage(otherGame, pendingPage)

	st, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	opts.TeamsFile = path
	opts.RetryInterval = time.Millisecond
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Hour
	}
	if opts.AutoStop == 0 {
		opts.AutoStop = time.Hour
	}

	e := &env{d: d, store: st}
	reg, err := registry.New(st, config.DefaultTeamAliases, nil)
	require.NoError(t, err)
	e.m = NewManager(opts, Deps{
		Store:      st,
		Reconciler: reconcile.New(st, reg, nil),
		Driver:     d,
		Scraper:    scrape.New(webURL, nil),
		OnSaved: func(id int64) {
			e.mu.Lock()
			e.saved = append(e.saved, id)
			e.mu.Unlock()
		},
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.m.Shutdown(ctx)
	})
	return e
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop")
	}
}

func countVisits(d *browsertest.Driver, url string) int {
	n := 0
	for _, v := range d.Visits() {
		if v == url {
			n++
		}
	}
	return n
}

func TestRunOnce_SavesFinalAndSkipsItNextCycle(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()

	res, err := e.m.RunOnce(ctx, "presidents-day")
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 1, res.Teams)
	assert.Equal(t, 2, res.GamesFound)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Pending)
	assert.Equal(t, 1, res.LiveOrUpcoming)
	assert.False(t, res.AllFinal())

	g, err := e.store.GameByExternalID(ctx, finalExtID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFinal, g.Status)
	require.NotNil(t, g.AwayScore)
	assert.Equal(t, 0, *g.AwayScore)
	assert.Equal(t, 4, *g.HomeScore)
	assert.Equal(t, "Presidents Day", g.EventName)
	require.NotNil(t, g.GameDate)
	assert.Equal(t, "2026-02-15", g.GameDate.Format("2006-01-02"))
	assert.Equal(t, []int64{g.ID}, e.savedGames())

	res, err = e.m.RunOnce(ctx, "presidents-day")
	require.NoError(t, err)
	assert.Equal(t, 1, res.SkippedFinal)
	assert.Equal(t, 0, res.Saved)
	assert.Equal(t, 1, countVisits(e.d, finalGame), "final games are not scraped again")
	assert.Equal(t, 2, e.d.Closed())
}

func TestRunOnce_OutOfRangeGamesIgnored(t *testing.T) {
	e := newEnv(t, Options{})
	path := e.m.opts.TeamsFile
	require.NoError(t, os.WriteFile(path, []byte(
		"https://web.gc.com/teams/fXEnuJhCgzAL | 11U | Presidents Day | 2026-03-01 | 2026-03-02\n"), 0o644))

	res, err := e.m.RunOnce(context.Background(), "presidents-day")
	require.NoError(t, err)
	assert.Equal(t, 1, res.OutOfRange)
	assert.Equal(t, 0, res.Saved)
}

func TestRunOnce_UnknownEvent(t *testing.T) {
	e := newEnv(t, Options{})
	_, err := e.m.RunOnce(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = e.m.Start("nope")
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestRunOnce_RecoversFromPanic(t *testing.T) {
	e := newEnv(t, Options{})
	e.m.deps.Store = nil

	res, err := e.m.RunOnce(context.Background(), "presidents-day")
	require.NoError(t, err)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "panic")
}

func TestStart_AutoStopsWhenEverythingIsFinal(t *testing.T) {
	e := newEnv(t, Options{AutoStop: time.Nanosecond, PollInterval: 10 * time.Millisecond})
	e.d.SetPage(otherGame, fixture(t, "box_score.html"))

	out, err := e.m.Start("presidents-day")
	require.NoError(t, err)
	assert.Equal(t, 1, out.TeamsLoaded)
	assert.NotEmpty(t, out.RunID)

	s, ok := e.m.Session("presidents-day")
	require.True(t, ok)
	waitDone(t, s)

	snap := e.m.Status()[0]
	assert.Equal(t, StateStopped, snap.State)
	assert.Equal(t, "all games final", snap.StopReason)
	assert.GreaterOrEqual(t, snap.Cycles, 2)
	assert.Equal(t, 1, e.d.Closed())

	assert.Empty(t, e.m.Prune(time.Hour), "recently finished sessions are kept")
	e.m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.Equal(t, []string{"presidents-day"}, e.m.Prune(time.Hour))
	assert.Empty(t, e.m.Status())
}

func TestStart_AutoStopCountdown(t *testing.T) {
	e := newEnv(t, Options{AutoStop: 30 * time.Minute})
	e.d.SetPage(otherGame, fixture(t, "box_score.html"))

	_, err := e.m.Start("presidents-day")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return e.m.Status()[0].Cycles == 1
	}, 5*time.Second, 10*time.Millisecond)

	snap := e.m.Status()[0]
	assert.Equal(t, StateRunning, snap.State)
	require.NotNil(t, snap.AutoStopInMinutes)
	assert.InDelta(t, 30, *snap.AutoStopInMinutes, 1)
	assert.True(t, snap.LastCycle.AllFinal())
	assert.NotEmpty(t, snap.RecentLogs)

	assert.Equal(t, []string{"presidents-day"}, e.m.Stop("presidents-day"))
	s, _ := e.m.Session("presidents-day")
	waitDone(t, s)
	assert.Equal(t, StateStopped, s.State())
	assert.Nil(t, e.m.Status()[0].AutoStopInMinutes)
}

func TestStart_DuplicateAndCapacity(t *testing.T) {
	e := newEnv(t, Options{MaxSessions: 1})

	_, err := e.m.Start("presidents-day")
	require.NoError(t, err)

	_, err = e.m.Start("presidents-day")
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	_, err = e.m.Start("fall-classic")
	assert.ErrorIs(t, err, ErrCapacity)
	assert.Equal(t, 1, e.m.Active())

	e.m.Stop("presidents-day")
	s, _ := e.m.Session("presidents-day")
	waitDone(t, s)

	_, err = e.m.Start("fall-classic")
	require.NoError(t, err)
	assert.Equal(t, []string{"fall-classic"}, e.m.StopAll())
	assert.Empty(t, e.m.Stop("presidents-day"))
}

func TestStart_ExpiredLoginIsAnError(t *testing.T) {
	e := newEnv(t, Options{})
	e.d.Evals["desktop-sign-in-button"] = false

	_, err := e.m.Start("presidents-day")
	require.NoError(t, err)
	s, _ := e.m.Session("presidents-day")
	waitDone(t, s)

	snap := e.m.Status()[0]
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, "provider login expired", snap.StopReason)
	assert.Contains(t, snap.LastError, "expired")
	assert.Equal(t, 1, e.d.Opened())
	assert.Equal(t, 1, e.d.Closed())
}

func TestEvents(t *testing.T) {
	e := newEnv(t, Options{})
	events, err := e.m.Events()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "presidents-day", events[0].ID)
	assert.Equal(t, "fall-classic", events[1].ID)
}

const apiBox = `{
  "fXEnuJhCgzAL": {"team_name": "Lions 11U",
    "players": [{"id": "p1", "first_name": "Al", "last_name": "Lion", "number": "1"}],
    "groups": [
      {"category": "lineup", "stats": [{"player_id": "p1", "stats": {"AB": 3, "R": 2, "H": 2, "RBI": 1, "BB": 0, "SO": 0}}]},
      {"category": "pitching", "stats": [{"player_id": "p1", "stats": {"IP": 3, "H": 1, "R": 1, "ER": 1, "BB": 0, "SO": 5}}]}
    ]},
  "Tgr9Kq2mZ": {"team_name": "Tigers 11U",
    "players": [{"id": "q1", "first_name": "Cy", "last_name": "Tiger", "number": "7"}],
    "groups": [
      {"category": "lineup", "stats": [{"player_id": "q1", "stats": {"AB": 3, "R": 1, "H": 1, "RBI": 1, "BB": 0, "SO": 2}}]},
      {"category": "pitching", "stats": [{"player_id": "q1", "stats": {"IP": 3, "H": 2, "R": 2, "ER": 2, "BB": 0, "SO": 3}}]}
    ]}
}`

func TestRunOnce_APITransport(t *testing.T) {
	e := newEnv(t, Options{Transport: config.TransportAPI})
	require.NoError(t, os.WriteFile(e.m.opts.TeamsFile, []byte(
		"https://web.gc.com/teams/fXEnuJhCgzAL | 11U | Presidents Day | 2026-02-14 | 2026-02-16\n"+
			"https://web.gc.com/teams/Tgr9Kq2mZ | 11U | Presidents Day | 2026-02-14 | 2026-02-16\n"), 0o644))

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	e.d.Headers["gc-token"] = token

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/public/teams/fXEnuJhCgzAL":
			fmt.Fprint(w, `{"id":"fXEnuJhCgzAL","name":"Lions 11U"}`)
		case "/public/teams/Tgr9Kq2mZ":
			fmt.Fprint(w, `{"id":"Tgr9Kq2mZ","name":"Tigers 11U"}`)
		case "/public/teams/fXEnuJhCgzAL/games":
			fmt.Fprint(w, `[
				{"id":"g1","game_status":"completed","home_away":"home","start_ts":"2026-02-15T15:00:00Z",
				 "opponent_team":{"id":"Tgr9Kq2mZ","name":"Tigers 11U"},"score":{"team":2,"opponent_team":1}},
				{"id":"g2","game_status":"completed","home_away":"away","start_ts":"2026-02-15T18:00:00Z",
				 "opponent_team":{"id":"zzz","name":"Nobody Special"}},
				{"id":"g3","game_status":"scheduled","home_away":"away","start_ts":"2026-02-16T15:00:00Z",
				 "opponent_team":{"name":"Tigers"}},
				{"id":"g0","game_status":"completed","home_away":"away","start_ts":"2026-01-10T15:00:00Z",
				 "opponent_team":{"id":"Tgr9Kq2mZ","name":"Tigers 11U"}}
			]`)
		case "/public/teams/Tgr9Kq2mZ/games":
			fmt.Fprint(w, `[{"id":"g1","game_status":"completed","home_away":"away","start_ts":"2026-02-15T15:00:00Z",
				"opponent_team":{"id":"fXEnuJhCgzAL","name":"Lions 11U"},"score":{"team":1,"opponent_team":2}}]`)
		case "/game-stream-processing/g1/boxscore":
			if r.Header.Get("gc-token") != token {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			fmt.Fprint(w, apiBox)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := &gc.BrowserTokenSource{Driver: e.d, Scraper: e.m.deps.Scraper, TeamURL: teamURL}
	e.m.deps.API = gc.NewClient(gc.Options{BaseURL: srv.URL, RetryInterval: time.Millisecond},
		gc.NewTokenCache(src, 10*time.Minute, nil))

	ctx := context.Background()
	res, err := e.m.RunOnce(ctx, "presidents-day")
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 2, res.Teams)
	assert.Equal(t, 1, res.OutOfRange)
	assert.Equal(t, 1, res.NonEvent)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, 1, res.SkippedFinal, "the opponent's view of g1 is already final")
	assert.Equal(t, 1, res.LiveOrUpcoming)
	assert.Equal(t, 3, res.GamesFound)

	g, err := e.store.GameByExternalID(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, *g.AwayScore)
	assert.Equal(t, 2, *g.HomeScore)
	assert.Equal(t, "11U", g.AgeGroup)

	stats, err := e.store.GameStats(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, stats, 4)
}
