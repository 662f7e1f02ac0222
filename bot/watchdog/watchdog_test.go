package watchdog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telefoot/telefoot-bot/bot/runloop"
	"github.com/telefoot/telefoot-bot/bot/session"
)

type recordingNotifier struct {
	admin []string
}

func (n *recordingNotifier) NotifyAdmin(_ context.Context, text string) error {
	n.admin = append(n.admin, text)
	return nil
}

type fakeConn struct {
	connected  bool
	reconnects int
	fail       bool
}

func (c *fakeConn) Connected(context.Context) bool { return c.connected }

func (c *fakeConn) Reconnect(context.Context) error {
	c.reconnects++
	if c.fail {
		return errors.New("getMe failed")
	}
	c.connected = true
	return nil
}

type stubDialer struct{}

type stubHandle struct{ phone string }

func (h *stubHandle) Phone() string               { return h.phone }
func (h *stubHandle) Ping(context.Context) error  { return nil }
func (h *stubHandle) Close(context.Context) error { return nil }

func (stubDialer) Dial(_ context.Context, phone, _ string) (session.Handle, error) {
	return &stubHandle{phone: phone}, nil
}

func (stubDialer) BeginLogin(context.Context, string, string) (session.LoginFlow, error) {
	panic("not used")
}

func newFixture(t *testing.T) (*Watchdog, *recordingNotifier, *session.Supervisor, *fakeConn, context.CancelFunc) {
	t.Helper()
	dir := t.TempDir()
	reg, err := session.OpenRegistry(filepath.Join(dir, "sessions.json"))
	require.NoError(t, err)
	sup := session.NewSupervisor(reg, stubDialer{}, dir, "")

	loop := runloop.New(8)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	n := &recordingNotifier{}
	conn := &fakeConn{connected: true}
	return New(loop, sup, conn, n, 10*time.Millisecond, true), n, sup, conn, cancel
}

func TestIsReactivationRequest(t *testing.T) {
	assert.True(t, IsReactivationRequest("réactiver le bot automatique"))
	assert.True(t, IsReactivationRequest("Merci de RÉACTIVER LE BOT AUTOMATIQUE svp"))
	assert.False(t, IsReactivationRequest("bonjour"))
	assert.False(t, IsReactivationRequest("réactiver"))
}

func TestCheckDoesNotCountHealthyPrimary(t *testing.T) {
	w, _, sup, _, cancel := newFixture(t)
	defer cancel()
	ctx := context.Background()
	require.NoError(t, sup.Registry().Put(&session.Descriptor{Phone: "+2250700000001"}))

	// First check dials the primary (it was down), counting one
	// reactivation; the second finds it live and counts nothing.
	w.check(ctx)
	assert.Equal(t, int64(1), w.State().Snapshot().Reactivations)
	w.check(ctx)
	assert.Equal(t, int64(1), w.State().Snapshot().Reactivations)
}

func TestTriggerAlwaysCounts(t *testing.T) {
	w, n, sup, _, cancel := newFixture(t)
	defer cancel()
	ctx := context.Background()
	require.NoError(t, sup.Registry().Put(&session.Descriptor{Phone: "+2250700000001"}))
	require.NoError(t, sup.Registry().Put(&session.Descriptor{Phone: "+2250700000002"}))

	res, err := w.Trigger(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Restored)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, int64(1), w.State().Snapshot().Reactivations)
	require.Len(t, n.admin, 1)
	assert.Contains(t, n.admin[0], "2 session(s)")
	assert.Contains(t, n.admin[0], "démarrage : 1")

	// Everything already live: still a reactivation.
	res, err = w.Trigger(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Restored)
	assert.Equal(t, int64(2), w.State().Snapshot().Reactivations)
	assert.False(t, w.State().Snapshot().LastTrigger.IsZero())
}

func TestCheckRepairsBotConnection(t *testing.T) {
	w, _, _, conn, cancel := newFixture(t)
	defer cancel()
	ctx := context.Background()
	conn.connected = false

	w.check(ctx)
	assert.Equal(t, 1, conn.reconnects)
	assert.True(t, conn.connected)
	assert.Equal(t, int64(1), w.State().Snapshot().Reactivations)

	// Bot connection back up: nothing to repair, nothing to count.
	w.check(ctx)
	assert.Equal(t, 1, conn.reconnects)
	assert.Equal(t, int64(1), w.State().Snapshot().Reactivations)
}

func TestCheckSkipsLiveBotConnection(t *testing.T) {
	w, _, _, conn, cancel := newFixture(t)
	defer cancel()

	w.check(context.Background())
	assert.Zero(t, conn.reconnects)
}

func TestFailedBotRepairDoesNotCount(t *testing.T) {
	w, _, _, conn, cancel := newFixture(t)
	defer cancel()
	conn.connected = false
	conn.fail = true

	w.check(context.Background())
	assert.Equal(t, 1, conn.reconnects)
	assert.Equal(t, int64(0), w.State().Snapshot().Reactivations)
}

func TestSetAutoStopsPeriodicChecks(t *testing.T) {
	w, _, sup, _, cancel := newFixture(t)
	defer cancel()
	require.NoError(t, sup.Registry().Put(&session.Descriptor{Phone: "+2250700000001"}))
	w.SetAuto(false)

	runCtx, stop := context.WithCancel(context.Background())
	go w.Run(runCtx)
	time.Sleep(50 * time.Millisecond)
	stop()

	assert.Equal(t, int64(0), w.State().Snapshot().Reactivations)
	assert.False(t, w.State().Snapshot().AutoEnabled)
}
