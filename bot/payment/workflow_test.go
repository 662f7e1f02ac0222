package payment

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telefoot/telefoot-bot/bot/license"
)

type fakeNotifier struct {
	mu    sync.Mutex
	admin []string
	users map[int64][]string
	fail  bool
}

func (n *fakeNotifier) NotifyAdmin(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("send failed")
	}
	n.admin = append(n.admin, text)
	return nil
}

func (n *fakeNotifier) NotifyUser(_ context.Context, userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("send failed")
	}
	if n.users == nil {
		n.users = make(map[int64][]string)
	}
	n.users[userID] = append(n.users[userID], text)
	return nil
}

func newTestWorkflow(t *testing.T, ttl time.Duration, clock func() time.Time) (*Workflow, *fakeNotifier, *license.Manager) {
	t.Helper()
	st, err := license.OpenStore(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	mgr := license.NewManager(st, clock)
	n := &fakeNotifier{}
	return NewWorkflow(mgr, n, ttl, clock), n, mgr
}

func TestRequestPaymentOpensPending(t *testing.T) {
	w, n, mgr := newTestWorkflow(t, 0, nil)
	ctx := context.Background()

	rec, err := w.RequestPayment(ctx, 100, "mois")
	require.NoError(t, err)
	assert.Equal(t, license.StatusPaymentRequested, rec.Status)
	assert.Equal(t, license.PlanMonth, rec.RequestedPlan)
	require.NotNil(t, rec.PaymentRequestedAt)

	require.Len(t, n.admin, 1)
	assert.Contains(t, n.admin[0], "/activer 100 mois")
	require.Len(t, n.users[100], 1)

	st, err := mgr.StatusOf(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, license.StatusPaymentRequested, st)
}

func TestRequestPaymentSamePlanRejected(t *testing.T) {
	w, n, _ := newTestWorkflow(t, 0, nil)
	ctx := context.Background()

	_, err := w.RequestPayment(ctx, 100, "mois")
	require.NoError(t, err)
	_, err = w.RequestPayment(ctx, 100, "mois")
	assert.ErrorIs(t, err, ErrAlreadyRequested)

	// The rejection must not re-notify.
	assert.Len(t, n.admin, 1)
}

func TestRequestPaymentDifferentPlanOverwrites(t *testing.T) {
	w, n, _ := newTestWorkflow(t, 0, nil)
	ctx := context.Background()

	_, err := w.RequestPayment(ctx, 100, "mois")
	require.NoError(t, err)
	rec, err := w.RequestPayment(ctx, 100, "semaine")
	require.NoError(t, err)
	assert.Equal(t, license.PlanWeek, rec.RequestedPlan)

	// Exactly one admin notification carries the final plan.
	var weekly int
	for _, msg := range n.admin {
		if strings.Contains(msg, "/activer 100 semaine") {
			weekly++
		}
	}
	assert.Equal(t, 1, weekly)
	assert.Contains(t, n.admin[len(n.admin)-1], "semaine")
}

func TestRequestPaymentInvalidPlan(t *testing.T) {
	w, n, mgr := newTestWorkflow(t, 0, nil)
	ctx := context.Background()

	_, err := w.RequestPayment(ctx, 100, "annee")
	assert.ErrorIs(t, err, license.ErrInvalidPlan)
	assert.Empty(t, n.admin)
	assert.False(t, mgr.Store().Exists(100))
}

func TestRequestPaymentPendingTTLExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	w, n, _ := newTestWorkflow(t, time.Hour, clock)
	ctx := context.Background()

	_, err := w.RequestPayment(ctx, 100, "mois")
	require.NoError(t, err)
	_, err = w.RequestPayment(ctx, 100, "mois")
	assert.ErrorIs(t, err, ErrAlreadyRequested)

	// After the TTL the same plan may be requested again.
	now = now.Add(2 * time.Hour)
	rec, err := w.RequestPayment(ctx, 100, "mois")
	require.NoError(t, err)
	assert.Equal(t, now, *rec.PaymentRequestedAt)
	assert.Len(t, n.admin, 2)
}

func TestCancelPaymentRevertsStatus(t *testing.T) {
	w, _, mgr := newTestWorkflow(t, 0, nil)
	ctx := context.Background()

	_, err := w.RequestPayment(ctx, 100, "mois")
	require.NoError(t, err)
	require.NoError(t, w.CancelPayment(ctx, 100))

	rec, err := mgr.InfoOf(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, license.StatusInactive, rec.Status)
	assert.Equal(t, license.PlanNone, rec.RequestedPlan)
	assert.Nil(t, rec.PaymentRequestedAt)
}

func TestCancelPaymentKeepsActiveLicense(t *testing.T) {
	w, _, mgr := newTestWorkflow(t, 0, nil)
	ctx := context.Background()

	_, _, err := mgr.Activate(ctx, 100, "mois")
	require.NoError(t, err)
	// A renewal request then a cancel must land back on active.
	_, err = w.RequestPayment(ctx, 100, "semaine")
	require.NoError(t, err)
	require.NoError(t, w.CancelPayment(ctx, 100))

	rec, err := mgr.InfoOf(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, license.StatusActive, rec.Status)
}

func TestCancelPaymentIsNoOpSafe(t *testing.T) {
	w, _, mgr := newTestWorkflow(t, 0, nil)
	ctx := context.Background()

	// Unknown user.
	assert.NoError(t, w.CancelPayment(ctx, 999))
	// Known user without a pending request.
	require.NoError(t, mgr.RegisterNewUser(ctx, 100))
	assert.NoError(t, w.CancelPayment(ctx, 100))
	rec, err := mgr.InfoOf(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, license.StatusUnregistered, rec.Status)
}

func TestHandleCallbackVerifiesSender(t *testing.T) {
	w, n, mgr := newTestWorkflow(t, 0, nil)
	ctx := context.Background()

	act := RequestPaymentAction{Plan: license.PlanMonth, ActingUser: 100}
	err := w.HandleCallback(ctx, 200, act)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, n.admin)
	assert.False(t, mgr.Store().Exists(100))
	assert.False(t, mgr.Store().Exists(200))

	require.NoError(t, w.HandleCallback(ctx, 100, act))
	rec, err := mgr.InfoOf(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, license.StatusPaymentRequested, rec.Status)
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	w, n, mgr := newTestWorkflow(t, 0, nil)
	n.fail = true
	ctx := context.Background()

	rec, err := w.RequestPayment(ctx, 100, "mois")
	require.NoError(t, err)
	assert.Equal(t, license.StatusPaymentRequested, rec.Status)

	got, err := mgr.InfoOf(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, license.StatusPaymentRequested, got.Status)
}

func TestDecodeAction(t *testing.T) {
	act, err := DecodeAction(CallbackPay, "mois|42")
	require.NoError(t, err)
	req, ok := act.(RequestPaymentAction)
	require.True(t, ok)
	assert.Equal(t, license.PlanMonth, req.Plan)
	assert.Equal(t, int64(42), req.ActingUser)

	act, err = DecodeAction(CallbackCancelPayment, "")
	require.NoError(t, err)
	_, ok = act.(CancelPaymentAction)
	assert.True(t, ok)

	_, err = DecodeAction(CallbackPay, "mois")
	assert.ErrorIs(t, err, ErrUnknownAction)
	_, err = DecodeAction(CallbackPay, "annee|42")
	assert.ErrorIs(t, err, license.ErrInvalidPlan)
	_, err = DecodeAction(CallbackPay, "mois|abc")
	assert.ErrorIs(t, err, ErrUnknownAction)
	_, err = DecodeAction("bogus", "")
	assert.ErrorIs(t, err, ErrUnknownAction)

	assert.Equal(t, "semaine|7", EncodePayPayload(license.PlanWeek, 7))
}
