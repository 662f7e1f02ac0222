package license

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := OpenStore(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	return st
}

func TestRegisterNewUserIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	ctx := context.Background()

	require.NoError(t, m.RegisterNewUser(ctx, 42))
	require.NoError(t, m.RegisterNewUser(ctx, 42))

	assert.Equal(t, 1, st.Len())
	status, err := m.StatusOf(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, StatusUnregistered, status)
}

func TestCheckAccessFollowsStoredStateAndClock(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(st, func() time.Time { return now })
	ctx := context.Background()

	assert.False(t, m.CheckAccess(ctx, 42), "unknown user has no access")

	key, expires, err := m.Activate(ctx, 42, "semaine")
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.WithinDuration(t, now.Add(7*24*time.Hour), expires, time.Second)
	assert.True(t, m.CheckAccess(ctx, 42))

	// Access flips off lazily once the clock passes the expiry, with no
	// status-mutating call in between.
	now = expires.Add(time.Second)
	assert.False(t, m.CheckAccess(ctx, 42))

	status, err := m.StatusOf(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, status)

	rec, err := m.InfoOf(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, rec.Status, "stored status is not swept")
}

func TestActivateMonthDuration(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(st, func() time.Time { return now })

	_, expires, err := m.Activate(context.Background(), 7, "mois")
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(30*24*time.Hour), expires, time.Second)
}

func TestActivateInvalidPlanLeavesRecordUnchanged(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	ctx := context.Background()

	_, _, err := m.Activate(ctx, 42, "semaine")
	require.NoError(t, err)
	before, err := m.InfoOf(ctx, 42)
	require.NoError(t, err)

	_, _, err = m.Activate(ctx, 42, "annee")
	assert.ErrorIs(t, err, ErrInvalidPlan)

	after, err := m.InfoOf(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReactivationExtendsFromNowNotFromOldExpiry(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(st, func() time.Time { return now })
	ctx := context.Background()

	_, first, err := m.Activate(ctx, 42, "semaine")
	require.NoError(t, err)

	now = now.Add(24 * time.Hour)
	_, second, err := m.Activate(ctx, 42, "semaine")
	require.NoError(t, err)

	assert.WithinDuration(t, now.Add(7*24*time.Hour), second, time.Second)
	assert.NotEqual(t, first.Add(7*24*time.Hour), second, "no stacking on the old expiry")
}

func TestActivationClearsPendingPaymentRequest(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	ctx := context.Background()

	require.NoError(t, m.RegisterNewUser(ctx, 42))
	requestedAt := time.Now()
	_, err := st.Mutate(42, func(rec *UserRecord) error {
		rec.Status = StatusPaymentRequested
		rec.RequestedPlan = PlanMonth
		rec.PaymentRequestedAt = &requestedAt
		return nil
	})
	require.NoError(t, err)

	_, _, err = m.Activate(ctx, 42, "mois")
	require.NoError(t, err)

	rec, err := m.InfoOf(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, rec.Status)
	assert.Equal(t, PlanNone, rec.RequestedPlan)
	assert.Nil(t, rec.PaymentRequestedAt)
}

func TestLicenseKeysAreFreshPerActivation(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		key, _, err := m.Activate(ctx, 42, "semaine")
		require.NoError(t, err)
		require.NotEmpty(t, key)
		assert.False(t, seen[key], "key %q repeated", key)
		seen[key] = true
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	st, err := OpenStore(path)
	require.NoError(t, err)
	m := NewManager(st, nil)
	ctx := context.Background()

	key, _, err := m.Activate(ctx, 42, "mois")
	require.NoError(t, err)

	reopened, err := OpenStore(path)
	require.NoError(t, err)
	rec, ok := reopened.Get(42)
	require.True(t, ok)
	assert.Equal(t, int64(42), rec.ID)
	assert.Equal(t, StatusActive, rec.Status)
	assert.Equal(t, key, rec.LicenseKey)
}

func TestStartActivateExpireScenario(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(st, func() time.Time { return now })
	ctx := context.Background()

	// /start: lazy registration, then unregistered -> inactive.
	require.NoError(t, m.RegisterNewUser(ctx, 42))
	require.NoError(t, m.CompleteRegistration(ctx, 42))
	status, err := m.StatusOf(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, status)
	assert.False(t, m.CheckAccess(ctx, 42))

	// admin: /activer 42 semaine
	key, expires, err := m.Activate(ctx, 42, "semaine")
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.WithinDuration(t, now.Add(7*24*time.Hour), expires, time.Second)
	assert.True(t, m.CheckAccess(ctx, 42))

	// 7 days + 1 second later, with no further calls.
	now = now.Add(7*24*time.Hour + time.Second)
	assert.False(t, m.CheckAccess(ctx, 42))
}
