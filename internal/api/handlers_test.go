package api

import (
	"bytes"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roboclaude/internal/config"
	"roboclaude/internal/game"
)

// ============================================================================
// Test fixtures
// ============================================================================

type testEnv struct {
	ts          *httptest.Server
	sessions    *game.Manager
	leaderboard *game.Leaderboard
	hub         *WebSocketHub
}

func testRateLimit() config.RateLimitConfig {
	rl := config.DefaultRateLimit()
	rl.RequestsPerSecond = 1000
	rl.Burst = 1000
	return rl
}

func newTestEnv(t *testing.T, maxSessions int) *testEnv {
	t.Helper()

	m := game.NewManager(config.DefaultGame(), maxSessions, 0)
	lb := game.NewLeaderboard(10)
	m.OnCreate(func(s *game.Session) {
		lb.Attach(s.ID, s.Loop().Bus())
	})

	srv := config.DefaultServer()
	srv.BroadcastHz = 60
	rl := testRateLimit()
	hub := NewWebSocketHub(srv, rl)

	router := NewRouter(RouterConfig{
		Sessions:       m,
		Leaderboard:    lb,
		EventLog:       game.NewEventLog(),
		Hub:            hub,
		RateLimit:      &rl,
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)

	t.Cleanup(func() {
		hub.Close()
		ts.Close()
		m.CloseAll()
	})
	return &testEnv{ts: ts, sessions: m, leaderboard: lb, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) createSession(t *testing.T, body string) game.SessionInfo {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/sessions", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var info game.SessionInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	return info
}

func decodeMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// ============================================================================
// Router purity
// ============================================================================

func TestNewRouterHasNoSideEffects(t *testing.T) {
	router := NewRouter(RouterConfig{
		Sessions:       game.NewManager(config.DefaultGame(), 1, 0),
		DisableLogging: true,
	})
	require.NotNil(t, router)
}

// ============================================================================
// Session endpoints
// ============================================================================

func TestCreateAndFetchSession(t *testing.T) {
	env := newTestEnv(t, 4)

	resp := env.do(t, http.MethodPost, "/api/sessions", `{"seed": 7}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var info game.SessionInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))

	assert.Equal(t, "/api/sessions/"+info.ID, resp.Header.Get("Location"))
	assert.Equal(t, int64(7), info.Seed)
	assert.False(t, info.Started)
	assert.Equal(t, 1, info.Wave)

	resp = env.do(t, http.MethodGet, "/api/sessions/"+info.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeMap(t, resp)
	assert.Equal(t, info.ID, got["id"])
	assert.Equal(t, "generating", got["phase"])

	resp = env.do(t, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 1)
}

func TestCreateSessionWithoutBody(t *testing.T) {
	env := newTestEnv(t, 4)
	info := env.createSession(t, "")
	assert.NotEmpty(t, info.ID)
	assert.NotZero(t, info.Seed)
}

func TestCreateSessionAndStart(t *testing.T) {
	env := newTestEnv(t, 4)
	info := env.createSession(t, `{"start": true}`)
	assert.True(t, info.Started)
	assert.True(t, info.Running)
}

func TestSessionLimit(t *testing.T) {
	env := newTestEnv(t, 2)
	env.createSession(t, "")
	env.createSession(t, "")

	resp := env.do(t, http.MethodPost, "/api/sessions", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, decodeMap(t, resp)["error"], "session limit")
}

func TestUnknownSession(t *testing.T) {
	env := newTestEnv(t, 4)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/sessions/nope", ""},
		{http.MethodDelete, "/api/sessions/nope", ""},
		{http.MethodPost, "/api/sessions/nope/start", ""},
		{http.MethodPost, "/api/sessions/nope/pause", ""},
		{http.MethodPost, "/api/sessions/nope/input", `{"up": true}`},
		{http.MethodPost, "/api/sessions/nope/lightning", ""},
		{http.MethodGet, "/api/sessions/nope/snapshot", ""},
		{http.MethodGet, "/api/sessions/nope/screenshot.png", ""},
		{http.MethodGet, "/ws/nope", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		})
	}
}

func TestDeleteSession(t *testing.T) {
	env := newTestEnv(t, 4)
	info := env.createSession(t, "")

	resp := env.do(t, http.MethodDelete, "/api/sessions/"+info.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/sessions/"+info.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Zero(t, env.sessions.Len())
}

func TestRequestValidation(t *testing.T) {
	env := newTestEnv(t, 4)
	info := env.createSession(t, "")
	base := "/api/sessions/" + info.ID

	tests := []struct {
		name string
		path string
		body string
	}{
		{"unknown weapon", "/weapon", `{"weapon": "bfg"}`},
		{"weapon invalid json", "/weapon", `{weapon}`},
		{"reflections above max", "/reflections", `{"reflections": 10}`},
		{"reflections negative", "/reflections", `{"reflections": -1}`},
		{"reflections missing", "/reflections", `{}`},
		{"input invalid json", "/input", `{"up": "yes"}`},
		{"input empty body", "/input", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, base+tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, decodeMap(t, resp)["error"])
		})
	}
}

func TestWeaponSelection(t *testing.T) {
	env := newTestEnv(t, 4)
	info := env.createSession(t, "")
	s, err := env.sessions.Get(info.ID)
	require.NoError(t, err)

	resp := env.do(t, http.MethodPost, "/api/sessions/"+info.ID+"/weapon", `{"weapon": "laser"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "laser", decodeMap(t, resp)["id"])
	assert.Equal(t, game.WeaponLaser, s.Loop().Arsenal().Mode())

	resp = env.do(t, http.MethodPost, "/api/sessions/"+info.ID+"/weapon", `{"cycle": true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "standard", decodeMap(t, resp)["id"], "cycling wraps around")

	resp = env.do(t, http.MethodPost, "/api/sessions/"+info.ID+"/reflections", `{"reflections": 9}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(9), decodeMap(t, resp)["reflections"])
	assert.Equal(t, 9, s.Loop().Arsenal().Reflections())
}

func TestInputReachesLoop(t *testing.T) {
	env := newTestEnv(t, 4)
	info := env.createSession(t, "")
	s, err := env.sessions.Get(info.ID)
	require.NoError(t, err)

	x := s.Loop().State().Player.X
	resp := env.do(t, http.MethodPost, "/api/sessions/"+info.ID+"/input", `{"right": true}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	s.Loop().Update()
	assert.Greater(t, s.Loop().State().Player.X, x)
}

func TestPauseAndLightningGates(t *testing.T) {
	env := newTestEnv(t, 4)
	info := env.createSession(t, "")
	base := "/api/sessions/" + info.ID

	resp := env.do(t, http.MethodPost, base+"/lightning", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "not started")

	resp = env.do(t, http.MethodPost, base+"/start", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeMap(t, resp)["started"])

	resp = env.do(t, http.MethodPost, base+"/pause", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeMap(t, resp)["paused"])

	resp = env.do(t, http.MethodPost, base+"/lightning", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "paused")
	assert.Contains(t, decodeMap(t, resp)["error"], "paused")

	resp = env.do(t, http.MethodPost, base+"/resume", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decodeMap(t, resp)["paused"])

	resp = env.do(t, http.MethodPost, base+"/lightning", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeMap(t, resp)
	assert.Contains(t, body, "chain")
	assert.Contains(t, body, "hits")
}

func TestSnapshotCodecs(t *testing.T) {
	env := newTestEnv(t, 4)
	info := env.createSession(t, "")
	base := "/api/sessions/" + info.ID + "/snapshot"

	resp := env.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	snap := decodeMap(t, resp)
	assert.Equal(t, float64(1), snap["wave"])
	assert.Contains(t, snap, "player")

	resp = env.do(t, http.MethodGet, base+"?codec=msgpack", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/msgpack", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, msgpackCodec{}.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "player")
	assert.Contains(t, decoded, "lightning")

	resp = env.do(t, http.MethodGet, base+"?codec=xml", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScreenshot(t *testing.T) {
	env := newTestEnv(t, 4)
	info := env.createSession(t, "")

	resp := env.do(t, http.MethodGet, "/api/sessions/"+info.ID+"/screenshot.png", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())
}

// ============================================================================
// Catalog endpoints
// ============================================================================

func TestWeaponsCatalog(t *testing.T) {
	env := newTestEnv(t, 4)
	resp := env.do(t, http.MethodGet, "/api/weapons", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var weapons []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&weapons))
	require.Len(t, weapons, 4)
	ids := make([]any, len(weapons))
	for i, w := range weapons {
		ids[i] = w["id"]
	}
	assert.Equal(t, []any{"standard", "homing", "spread", "laser"}, ids)
}

func TestLeaderboardEndpoint(t *testing.T) {
	env := newTestEnv(t, 4)
	now := time.Now()
	env.leaderboard.Record("a", 500, 3, now)
	env.leaderboard.Record("b", 900, 4, now)

	resp := env.do(t, http.MethodGet, "/api/leaderboard?limit=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var top []game.LeaderboardEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&top))
	require.Len(t, top, 1)
	assert.Equal(t, "b", top[0].SessionID)
	assert.Equal(t, 1, top[0].Rank)

	resp = env.do(t, http.MethodGet, "/api/leaderboard?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLeaderboardWithoutTable(t *testing.T) {
	router := NewRouter(RouterConfig{
		Sessions:       game.NewManager(config.DefaultGame(), 1, 0),
		DisableLogging: true,
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, 4)
	env.createSession(t, "")
	env.createSession(t, "")

	resp := env.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decodeMap(t, resp)
	assert.Equal(t, float64(2), stats["sessions"])
	assert.Equal(t, float64(0), stats["wsClients"])
	assert.Contains(t, stats, "eventLog")
	assert.Contains(t, stats, "rateLimit")
}

// ============================================================================
// Middleware
// ============================================================================

func TestRouterRateLimitMiddleware(t *testing.T) {
	rl := config.DefaultRateLimit()
	rl.RequestsPerSecond = 0.001
	rl.Burst = 2

	router := NewRouter(RouterConfig{
		Sessions:       game.NewManager(config.DefaultGame(), 1, 0),
		RateLimit:      &rl,
		DisableLogging: true,
	})

	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/weapons", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/weapons", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "limits are per IP")
}

func TestRecovererReturns500(t *testing.T) {
	router := NewRouter(RouterConfig{
		Sessions:       game.NewManager(config.DefaultGame(), 1, 0),
		DisableLogging: true,
	})
	router.Get("/boom", func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{game.ErrSessionNotFound, http.StatusNotFound},
		{game.ErrSessionLimit, http.StatusServiceUnavailable},
		{game.ErrNotStarted, http.StatusConflict},
		{game.ErrPaused, http.StatusConflict},
		{game.ErrLightningCooldown, http.StatusConflict},
		{game.ErrUnknownWeapon, http.StatusBadRequest},
		{game.ErrInvalidReflections, http.StatusBadRequest},
		{errUnknownCodec, http.StatusBadRequest},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestDecodeBodyIsBounded(t *testing.T) {
	big := `{"weapon": "` + strings.Repeat("x", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(big))

	var out weaponRequest
	err := decodeBody(req, &out, false)
	assert.ErrorIs(t, err, errBadRequest)
}
