package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	phone   string
	pingErr error
	closed  bool
}

func (h *fakeHandle) Phone() string               { return h.phone }
func (h *fakeHandle) Ping(context.Context) error  { return h.pingErr }
func (h *fakeHandle) Close(context.Context) error { h.closed = true; return nil }

type fakeFlow struct {
	phone     string
	submitErr error
	aborted   bool
}

func (f *fakeFlow) Submit(_ context.Context, code string) (Handle, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &fakeHandle{phone: f.phone}, nil
}

func (f *fakeFlow) Abort(context.Context) error { f.aborted = true; return nil }

type fakeDialer struct {
	dials   map[string]int
	failing map[string]error
	handles map[string]*fakeHandle
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		dials:   make(map[string]int),
		failing: make(map[string]error),
		handles: make(map[string]*fakeHandle),
	}
}

func (d *fakeDialer) Dial(_ context.Context, phone, _ string) (Handle, error) {
	d.dials[phone]++
	if err := d.failing[phone]; err != nil {
		return nil, err
	}
	h := &fakeHandle{phone: phone}
	d.handles[phone] = h
	return h, nil
}

func (d *fakeDialer) BeginLogin(_ context.Context, phone, _ string) (LoginFlow, error) {
	return &fakeFlow{phone: phone}, nil
}

func newTestSupervisor(t *testing.T, primary string) (*Supervisor, *fakeDialer, string) {
	t.Helper()
	dir := t.TempDir()
	reg, err := OpenRegistry(filepath.Join(dir, "sessions.json"))
	require.NoError(t, err)
	d := newFakeDialer()
	return NewSupervisor(reg, d, dir, primary), d, dir
}

func TestNormalizePhone(t *testing.T) {
	for raw, want := range map[string]string{
		"+225 07 10 82 54 22": "+2250710825422",
		"2250710825422":       "+2250710825422",
		"+33 (0)6-12-34-56-78": "+33061234567" + "8",
	} {
		got, err := NormalizePhone(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
	for _, raw := range []string{"", "abc", "+225abc123", "123", "12345678901234567890"} {
		_, err := NormalizePhone(raw)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, raw)
	}
}

func TestRegistryPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")

	reg, err := OpenRegistry(path)
	require.NoError(t, err)
	require.NoError(t, reg.Put(&Descriptor{Phone: "+2250700000001", Connected: true, LinkedAt: time.Now()}))
	require.NoError(t, reg.Put(&Descriptor{Phone: "+2250700000002"}))
	require.NoError(t, reg.SetConnected("+2250700000002", true))
	require.NoError(t, reg.Delete("+2250700000001"))

	again, err := OpenRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Len())
	d, ok := again.Get("+2250700000002")
	require.True(t, ok)
	assert.True(t, d.Connected)
}

func TestRestoreAllIsIdempotent(t *testing.T) {
	s, d, _ := newTestSupervisor(t, "")
	ctx := context.Background()
	require.NoError(t, s.Registry().Put(&Descriptor{Phone: "+2250700000001", Connected: true}))
	require.NoError(t, s.Registry().Put(&Descriptor{Phone: "+2250700000002", Connected: true}))

	restored, failed := s.RestoreAll(ctx)
	assert.Equal(t, 2, restored)
	assert.Equal(t, 0, failed)

	// A second pass finds everything live and dials nothing.
	restored, failed = s.RestoreAll(ctx)
	assert.Equal(t, 0, restored)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 1, d.dials["+2250700000001"])
	assert.Equal(t, 1, d.dials["+2250700000002"])
	assert.Equal(t, 2, s.LiveCount())
}

func TestRestoreAllIsolatesFailures(t *testing.T) {
	s, d, _ := newTestSupervisor(t, "")
	ctx := context.Background()
	require.NoError(t, s.Registry().Put(&Descriptor{Phone: "+2250700000001"}))
	require.NoError(t, s.Registry().Put(&Descriptor{Phone: "+2250700000002"}))
	require.NoError(t, s.Registry().Put(&Descriptor{Phone: "+2250700000003"}))
	d.failing["+2250700000002"] = errors.New("auth key invalid")

	restored, failed := s.RestoreAll(ctx)
	assert.Equal(t, 2, restored)
	assert.Equal(t, 1, failed)
	assert.True(t, s.IsConnected("+2250700000001"))
	assert.False(t, s.IsConnected("+2250700000002"))
	assert.True(t, s.IsConnected("+2250700000003"))

	bad, ok := s.Registry().Get("+2250700000002")
	require.True(t, ok)
	assert.False(t, bad.Connected)
}

func TestRestoreAllRetriesPreviouslyFailedDescriptor(t *testing.T) {
	s, d, _ := newTestSupervisor(t, "")
	ctx := context.Background()
	require.NoError(t, s.Registry().Put(&Descriptor{Phone: "+2250700000001"}))
	d.failing["+2250700000001"] = errors.New("flood wait")

	restored, failed := s.RestoreAll(ctx)
	assert.Equal(t, 0, restored)
	assert.Equal(t, 1, failed)

	// The transient fault clears; the next pass picks the descriptor back
	// up even though its persisted Connected flag is false.
	delete(d.failing, "+2250700000001")
	restored, failed = s.RestoreAll(ctx)
	assert.Equal(t, 1, restored)
	assert.Equal(t, 0, failed)
	assert.True(t, s.IsConnected("+2250700000001"))
	assert.Equal(t, 2, d.dials["+2250700000001"])
}

func TestReconnectPrimaryNoOpWhenLive(t *testing.T) {
	s, d, _ := newTestSupervisor(t, "+2250700000001")
	ctx := context.Background()
	require.NoError(t, s.Registry().Put(&Descriptor{Phone: "+2250700000001"}))
	s.RestoreAll(ctx)
	require.Equal(t, 1, d.dials["+2250700000001"])

	reconnected, err := s.ReconnectPrimary(ctx)
	require.NoError(t, err)
	assert.False(t, reconnected)
	assert.Equal(t, 1, d.dials["+2250700000001"])
}

func TestReconnectPrimaryRedialsDeadHandle(t *testing.T) {
	s, d, _ := newTestSupervisor(t, "+2250700000001")
	ctx := context.Background()
	require.NoError(t, s.Registry().Put(&Descriptor{Phone: "+2250700000001"}))
	s.RestoreAll(ctx)

	d.handles["+2250700000001"].pingErr = errors.New("disconnected")
	reconnected, err := s.ReconnectPrimary(ctx)
	require.NoError(t, err)
	assert.True(t, reconnected)
	assert.Equal(t, 2, d.dials["+2250700000001"])
	assert.True(t, s.IsConnected("+2250700000001"))
}

func TestReconnectPrimaryWithoutSessions(t *testing.T) {
	s, _, _ := newTestSupervisor(t, "")
	reconnected, err := s.ReconnectPrimary(context.Background())
	require.NoError(t, err)
	assert.False(t, reconnected)
}

func TestTeardownAllKeepsConnectedFlags(t *testing.T) {
	s, d, _ := newTestSupervisor(t, "")
	ctx := context.Background()
	require.NoError(t, s.Registry().Put(&Descriptor{Phone: "+2250700000001"}))
	s.RestoreAll(ctx)

	s.TeardownAll(ctx, time.Second)
	assert.Equal(t, 0, s.LiveCount())
	assert.True(t, d.handles["+2250700000001"].closed)

	// The flag survives so the next start restores this session.
	desc, ok := s.Registry().Get("+2250700000001")
	require.True(t, ok)
	assert.True(t, desc.Connected)
}

func TestCleanupRemovesEverything(t *testing.T) {
	s, d, dir := newTestSupervisor(t, "")
	ctx := context.Background()
	require.NoError(t, s.Registry().Put(&Descriptor{Phone: "+2250700000001"}))
	s.RestoreAll(ctx)

	cred := s.CredentialPath("+2250700000001")
	assert.Equal(t, filepath.Join(dir, "telefeed_2250700000001.session"), cred)
	require.NoError(t, os.WriteFile(cred, []byte("opaque"), 0o600))

	require.NoError(t, s.Cleanup(ctx, "+225 07 000 000 01"))
	assert.Equal(t, 0, s.Registry().Len())
	assert.False(t, s.IsConnected("+2250700000001"))
	assert.True(t, d.handles["+2250700000001"].closed)
	_, err := os.Stat(cred)
	assert.True(t, os.IsNotExist(err))

	// Cleaning an unknown number is safe.
	require.NoError(t, s.Cleanup(ctx, "+2250700000009"))
}

func TestLinkAndCompleteLink(t *testing.T) {
	s, _, _ := newTestSupervisor(t, "")
	ctx := context.Background()

	phone, err := s.Link(ctx, "+225 07 000 000 01")
	require.NoError(t, err)
	assert.Equal(t, "+2250700000001", phone)

	_, err = s.Link(ctx, phone)
	assert.ErrorIs(t, err, ErrLinkPending)

	require.NoError(t, s.CompleteLink(ctx, phone, "12345"))
	assert.True(t, s.IsConnected(phone))
	desc, ok := s.Registry().Get(phone)
	require.True(t, ok)
	assert.True(t, desc.Connected)

	// The flow is consumed.
	assert.ErrorIs(t, s.CompleteLink(ctx, phone, "12345"), ErrNoLinkPending)
}

func TestAbortLink(t *testing.T) {
	s, _, _ := newTestSupervisor(t, "")
	ctx := context.Background()

	phone, err := s.Link(ctx, "+2250700000001")
	require.NoError(t, err)
	s.AbortLink(ctx, phone)
	assert.ErrorIs(t, s.CompleteLink(ctx, phone, "12345"), ErrNoLinkPending)
}
