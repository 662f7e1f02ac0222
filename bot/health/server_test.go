package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telefoot/telefoot-bot/bot/license"
	"github.com/telefoot/telefoot-bot/bot/runloop"
	"github.com/telefoot/telefoot-bot/bot/session"
	"github.com/telefoot/telefoot-bot/bot/watchdog"
	coreconfig "github.com/telefoot/telefoot-bot/core/config"
)

type okDialer struct{}

type okHandle struct{ phone string }

func (h *okHandle) Phone() string               { return h.phone }
func (h *okHandle) Ping(context.Context) error  { return nil }
func (h *okHandle) Close(context.Context) error { return nil }

func (okDialer) Dial(_ context.Context, phone, _ string) (session.Handle, error) {
	return &okHandle{phone: phone}, nil
}

func (okDialer) BeginLogin(context.Context, string, string) (session.LoginFlow, error) {
	panic("not used")
}

type stubConn struct{ connected bool }

func (c *stubConn) Connected(context.Context) bool { return c.connected }

func (c *stubConn) Reconnect(context.Context) error {
	c.connected = true
	return nil
}

type fixture struct {
	srv  *Server
	reg  *session.Registry
	mgr  *license.Manager
	conn *stubConn
}

func newTestServer(t *testing.T) (fixture, context.CancelFunc) {
	t.Helper()
	dir := t.TempDir()
	st, err := license.OpenStore(filepath.Join(dir, "users.json"))
	require.NoError(t, err)
	mgr := license.NewManager(st, nil)

	reg, err := session.OpenRegistry(filepath.Join(dir, "sessions.json"))
	require.NoError(t, err)
	sup := session.NewSupervisor(reg, okDialer{}, dir, "")

	loop := runloop.New(8)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	conn := &stubConn{connected: true}
	wd := watchdog.New(loop, sup, conn, nil, time.Minute, true)
	cfg := coreconfig.HealthConfig{Listen: ":0", ReadTimeout: time.Second, IdleTimeout: time.Second}
	return fixture{srv: NewServer(cfg, mgr, reg, wd, conn), reg: reg, mgr: mgr, conn: conn}, cancel
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRootReportsAlive(t *testing.T) {
	f, cancel := newTestServer(t)
	defer cancel()

	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "OK", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["bot_connected"])
}

func TestStatusReportsComponents(t *testing.T) {
	f, cancel := newTestServer(t)
	defer cancel()
	ctx := context.Background()
	_, _, err := f.mgr.Activate(ctx, 100, "mois")
	require.NoError(t, err)
	require.NoError(t, f.mgr.RegisterNewUser(ctx, 200))
	require.NoError(t, f.reg.Put(&session.Descriptor{Phone: "+2250700000001", Connected: true}))

	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string        `json:"status"`
		Data   StatusPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "OK", resp.Status)
	assert.True(t, resp.Data.BotConnected)
	assert.Equal(t, 2, resp.Data.Users.Total)
	assert.Equal(t, 1, resp.Data.Users.Active)
	assert.Equal(t, 1, resp.Data.Sessions.Total)
	assert.True(t, resp.Data.Watchdog.AutoEnabled)
}

func TestReactivateRunsTrigger(t *testing.T) {
	f, cancel := newTestServer(t)
	defer cancel()
	require.NoError(t, f.reg.Put(&session.Descriptor{Phone: "+2250700000001"}))

	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reactivate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "OK", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["restored"])
}

func TestHealthMonitorDegraded(t *testing.T) {
	f, cancel := newTestServer(t)
	defer cancel()
	require.NoError(t, f.reg.Put(&session.Descriptor{Phone: "+2250700000001"}))

	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health-monitor", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Degraded", decode(t, rec).Status)

	// Give the self trigger time to reconnect, then the monitor is green.
	require.Eventually(t, func() bool {
		_, connected := f.reg.Counts()
		return connected == 1
	}, time.Second, 10*time.Millisecond)

	rec = httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health-monitor", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthMonitorDegradedWhenBotDown(t *testing.T) {
	f, cancel := newTestServer(t)
	defer cancel()
	f.conn.connected = false

	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health-monitor", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Degraded", decode(t, rec).Status)

	// The background trigger repairs the bot connection.
	require.Eventually(t, func() bool {
		return f.conn.connected
	}, time.Second, 10*time.Millisecond)

	rec = httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health-monitor", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthMonitorHealthyWithNoSessions(t *testing.T) {
	f, cancel := newTestServer(t)
	defer cancel()

	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health-monitor", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsExposed(t *testing.T) {
	f, cancel := newTestServer(t)
	defer cancel()
	ctx := context.Background()
	_, _, err := f.mgr.Activate(ctx, 100, "semaine")
	require.NoError(t, err)
	require.NoError(t, f.reg.Put(&session.Descriptor{Phone: "+2250700000001"}))

	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "telefoot_users_total 1")
	assert.Contains(t, body, "telefoot_users_active 1")
	assert.Contains(t, body, "telefoot_sessions_total 1")
	assert.Contains(t, body, "telefoot_bot_connected 1")
	assert.Contains(t, body, "telefoot_reactivations_total 0")
}
