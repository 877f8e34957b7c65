package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/albapepper/eventcentral/internal/cache"
	"github.com/albapepper/eventcentral/internal/config"
	"github.com/albapepper/eventcentral/internal/session"
	"github.com/albapepper/eventcentral/internal/store"
	"github.com/albapepper/eventcentral/internal/store/sqlite"
	"github.com/albapepper/eventcentral/internal/tracked"
)

const testSecret = "s3cret"

type fakeSessions struct {
	startErr error
	started  []string
	stopped  []string
	snaps    []session.Snapshot
	events   []tracked.Event
}

func (f *fakeSessions) Start(eventID string) (*session.StartResult, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = append(f.started, eventID)
	return &session.StartResult{EventID: eventID, EventName: "Presidents Day", RunID: "run-1", TeamsLoaded: 2}, nil
}

func (f *fakeSessions) Stop(eventID string) []string {
	f.stopped = append(f.stopped, eventID)
	return []string{eventID}
}

func (f *fakeSessions) StopAll() []string { return nil }
func (f *fakeSessions) Status() []session.Snapshot { return f.snaps }
func (f *fakeSessions) Events() ([]tracked.Event, error) { return f.events, nil }

func testConfig() *config.Config {
	return &config.Config{
		CORSAllowOrigins: []string{"*"},
		ControlAPISecret: testSecret,
		AuthFailLimit:    3,
		AuthFailWindow:   time.Minute,
		MaxSessions:      2,
		Transport:        config.TransportDOM,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, cfg *config.Config, sessions *fakeSessions) (http.Handler, *sqlite.Store) {
	t.Helper()
	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	c := cache.New(true)
	t.Cleanup(c.Close)
	return NewRouter(s, sessions, c, cfg, quietLogger()), s
}

func do(h http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error.Code
}

func signJWT(t *testing.T, key, sub string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return tok
}

func TestHealthIsPublic(t *testing.T) {
	h, _ := newTestRouter(t, testConfig(), &fakeSessions{
		snaps: []session.Snapshot{{EventID: "a", State: session.StateRunning}, {EventID: "b", State: session.StateStopped}},
	})

	w := do(h, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 2, body["sessions"])
	assert.EqualValues(t, 1, body["running"])
	assert.NotEmpty(t, w.Header().Get("X-Process-Time"))

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health/db", "", "").Code)
}

func TestControlAuth(t *testing.T) {
	cfg := testConfig()
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg.ControlAPISecretHash = string(hash)
	cfg.ControlJWTSecret = "jwt-key"
	cfg.AuthFailLimit = 100

	h, _ := newTestRouter(t, cfg, &fakeSessions{})

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"no credential", "", http.StatusUnauthorized},
		{"wrong secret", "nope", http.StatusUnauthorized},
		{"shared secret", testSecret, http.StatusOK},
		{"bcrypt secret", "hashed-secret", http.StatusOK},
		{"jwt", signJWT(t, "jwt-key", "scheduler"), http.StatusOK},
		{"jwt wrong key", signJWT(t, "other-key", "scheduler"), http.StatusUnauthorized},
		{"jwt without subject", signJWT(t, "jwt-key", ""), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodGet, "/status", tt.token, "")
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	w := do(h, http.MethodGet, "/status?token="+testSecret, "", "")
	assert.Equal(t, http.StatusOK, w.Code, "query token")
}

func TestControlAuth_ThrottlesRepeatedFailures(t *testing.T) {
	h, _ := newTestRouter(t, testConfig(), &fakeSessions{})

	for i := 0; i < 3; i++ {
		w := do(h, http.MethodGet, "/status", "wrong", "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := do(h, http.MethodGet, "/status", testSecret, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "AUTH_THROTTLED", errorCode(t, w))
}

func TestControlDisabledWithoutCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.ControlAPISecret = ""
	h, _ := newTestRouter(t, cfg, &fakeSessions{})

	w := do(h, http.MethodPost, "/scrape-event", "anything", `{"eventId":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "CONTROL_DISABLED", errorCode(t, w))
}

func TestScrapeEvent(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		startErr error
		want     int
		code     string
	}{
		{"accepted", `{"eventId":"presidents-day"}`, nil, http.StatusAccepted, ""},
		{"missing id", `{}`, nil, http.StatusBadRequest, "MISSING_EVENT_ID"},
		{"bad json", `{"eventId":`, nil, http.StatusBadRequest, "INVALID_BODY"},
		{"unknown event", `{"eventId":"x"}`, fmt.Errorf("x: %w", session.ErrUnknownEvent), http.StatusNotFound, "UNKNOWN_EVENT"},
		{"no teams", `{"eventId":"x"}`, session.ErrNoTeams, http.StatusBadRequest, "NO_TEAMS"},
		{"already running", `{"eventId":"x"}`, session.ErrAlreadyRunning, http.StatusConflict, "ALREADY_RUNNING"},
		{"at capacity", `{"eventId":"x"}`, session.ErrCapacity, http.StatusServiceUnavailable, "AT_CAPACITY"},
		{"other failure", `{"eventId":"x"}`, errors.New("teams file unreadable"), http.StatusInternalServerError, "START_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeSessions{startErr: tt.startErr}
			h, _ := newTestRouter(t, testConfig(), fs)

			w := do(h, http.MethodPost, "/scrape-event", testSecret, tt.body)
			require.Equal(t, tt.want, w.Code, w.Body.String())
			if tt.code != "" {
				assert.Equal(t, tt.code, errorCode(t, w))
				return
			}
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "starting", body["status"])
			assert.Equal(t, "presidents-day", body["eventId"])
			assert.Equal(t, "run-1", body["runId"])
			assert.EqualValues(t, 2, body["teamsLoaded"])
			assert.Equal(t, []string{"presidents-day"}, fs.started)
		})
	}
}

func TestStopEvent(t *testing.T) {
	fs := &fakeSessions{}
	h, _ := newTestRouter(t, testConfig(), fs)

	w := do(h, http.MethodPost, "/stop", testSecret, `{"eventId":"presidents-day"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"stopped":["presidents-day"]}`, w.Body.String())

	w = do(h, http.MethodPost, "/stop", testSecret, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"stopped":[]}`, w.Body.String())
}

func TestGetEvents(t *testing.T) {
	start := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	fs := &fakeSessions{events: []tracked.Event{
		{ID: "presidents-day", Name: "Presidents Day", Start: &start, Teams: make([]tracked.Team, 2)},
	}}
	h, _ := newTestRouter(t, testConfig(), fs)

	w := do(h, http.MethodGet, "/events", testSecret, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"events":[{"id":"presidents-day","name":"Presidents Day","teams":2,"start_date":"2026-02-14"}]}`, w.Body.String())
}

// seedGame stores a final game with one batter per side, a pitcher and an award.
func seedGame(t *testing.T, s store.Store) *store.Game {
	t.Helper()
	ctx := context.Background()
	away := &store.Team{Name: "Lions 11U", AgeGroup: "11U"}
	home := &store.Team{Name: "TC ELITE 11U", AgeGroup: "11U"}
	require.NoError(t, s.CreateTeam(ctx, away))
	require.NoError(t, s.CreateTeam(ctx, home))

	players := map[string]*store.Player{
		"Jake Smith": {Name: "Jake Smith", TeamID: away.ID},
		"Leo Ruiz":   {Name: "Leo Ruiz", TeamID: home.ID},
	}
	for _, p := range players {
		require.NoError(t, s.CreatePlayer(ctx, p))
	}

	zero, four := 0, 4
	g := &store.Game{
		AwayTeamID: away.ID, HomeTeamID: home.ID,
		AwayScore: &zero, HomeScore: &four,
		Status: store.StatusFinal, AgeGroup: "11U", EventName: "Presidents Day",
	}
	require.NoError(t, s.CreateGame(ctx, g))
	require.NoError(t, s.ReplaceGameStats(ctx, g.ID, []store.GameStat{
		{PlayerID: players["Jake Smith"].ID, TeamID: away.ID, StatType: store.StatBatting, AB: 3, H: 1},
		{PlayerID: players["Leo Ruiz"].ID, TeamID: home.ID, StatType: store.StatBatting, AB: 3, H: 2, HR: 1, RBI: 3, R: 1},
		{PlayerID: players["Leo Ruiz"].ID, TeamID: home.ID, StatType: store.StatPitching, IP: 4.2, SO: 8, H: 1},
	}))
	require.NoError(t, s.SetPlayerOfGame(ctx, &store.PlayerOfGame{
		GameID: g.ID, PlayerID: players["Leo Ruiz"].ID, TeamID: home.ID, Score: 14.5, AutoSelected: true,
	}))
	return g
}

func TestListGames_ETag(t *testing.T) {
	h, s := newTestRouter(t, testConfig(), &fakeSessions{})
	seedGame(t, s)

	w := do(h, http.MethodGet, "/api/v1/games?age_group=11U&status=final", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Games []store.GameSummary `json:"games"`
		Count int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "Lions 11U", body.Games[0].AwayTeam)
	assert.Equal(t, "TC ELITE 11U", body.Games[0].HomeTeam)

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/games?age_group=11U&status=final", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotModified, w.Code)
}

func TestListGames_BadFilter(t *testing.T) {
	h, _ := newTestRouter(t, testConfig(), &fakeSessions{})

	w := do(h, http.MethodGet, "/api/v1/games?status=postponed", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(h, http.MethodGet, "/api/v1/games?limit=0", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetGame(t *testing.T) {
	h, s := newTestRouter(t, testConfig(), &fakeSessions{})
	g := seedGame(t, s)

	w := do(h, http.MethodGet, fmt.Sprintf("/api/v1/games/%d", g.ID), "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var d struct {
		Away struct {
			Name     string           `json:"name"`
			Batting  []store.StatLine `json:"batting"`
			Pitching []store.StatLine `json:"pitching"`
		} `json:"away"`
		Home struct {
			Name     string           `json:"name"`
			Batting  []store.StatLine `json:"batting"`
			Pitching []store.StatLine `json:"pitching"`
		} `json:"home"`
		PlayerOfGame *struct {
			PlayerName string  `json:"player_name"`
			Score      float64 `json:"score"`
		} `json:"player_of_game"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, "Lions 11U", d.Away.Name)
	assert.Len(t, d.Away.Batting, 1)
	assert.Empty(t, d.Away.Pitching)
	assert.Equal(t, "TC ELITE 11U", d.Home.Name)
	assert.Len(t, d.Home.Batting, 1)
	assert.Len(t, d.Home.Pitching, 1)
	require.NotNil(t, d.PlayerOfGame)
	assert.Equal(t, "Leo Ruiz", d.PlayerOfGame.PlayerName)
	assert.Equal(t, 14.5, d.PlayerOfGame.Score)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/v1/games/9999", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/v1/games/abc", "", "").Code)
}

func TestListPOTGAndLeaderboards(t *testing.T) {
	h, s := newTestRouter(t, testConfig(), &fakeSessions{})
	seedGame(t, s)

	w := do(h, http.MethodGet, "/api/v1/potg", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var potg struct {
		Players []store.POTGEntry `json:"players_of_game"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &potg))
	require.Len(t, potg.Players, 1)
	assert.Equal(t, "Leo Ruiz", potg.Players[0].PlayerName)
	assert.Equal(t, "TC ELITE 11U", potg.Players[0].TeamName)

	w = do(h, http.MethodGet, "/api/v1/leaderboards?min_ab=3&min_ip=4", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var lb struct {
		Batting []struct {
			PlayerName string  `json:"player_name"`
			AVG        float64 `json:"avg"`
		} `json:"batting"`
		Pitching []struct {
			PlayerName string  `json:"player_name"`
			IP         float64 `json:"ip"`
		} `json:"pitching"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lb))
	require.Len(t, lb.Batting, 2)
	assert.Equal(t, "Leo Ruiz", lb.Batting[0].PlayerName)
	assert.Equal(t, 0.667, lb.Batting[0].AVG)
	require.Len(t, lb.Pitching, 1)
	assert.Equal(t, 4.2, lb.Pitching[0].IP)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/v1/leaderboards?min_ab=-1", "", "").Code)
}
