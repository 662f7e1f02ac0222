// Package payment implements the two-party payment request workflow: a user
// asks for a plan, the admin is notified, and the admin later activates the
// license out of band. The workflow owns every transition into and out of the
// payment_requested state.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/telefoot/telefoot-bot/bot/license"
	"github.com/telefoot/telefoot-bot/bot/texts"
	"github.com/telefoot/telefoot-bot/core/logger"
	"log/slog"
)

var (
	// ErrAlreadyRequested reports a repeat request for the plan that is
	// already pending.
	ErrAlreadyRequested = errors.New("payment: request already pending for this plan")
	// ErrUnauthorized reports a callback whose embedded user id does not
	// match the actual sender.
	ErrUnauthorized = errors.New("payment: acting user does not match sender")
)

// Notifier delivers workflow notifications. Delivery is best effort: a failed
// notification is logged, never rolled into the state change.
type Notifier interface {
	NotifyAdmin(ctx context.Context, text string) error
	NotifyUser(ctx context.Context, userID int64, text string) error
}

// Workflow coordinates payment requests on top of the license manager.
type Workflow struct {
	licenses   *license.Manager
	notifier   Notifier
	pendingTTL time.Duration
	now        func() time.Time
}

// NewWorkflow builds a Workflow. pendingTTL bounds how long a request stays
// pending before a repeat of the same plan is treated as fresh; zero disables
// the bound. clock may be nil.
func NewWorkflow(licenses *license.Manager, notifier Notifier, pendingTTL time.Duration, clock func() time.Time) *Workflow {
	if clock == nil {
		clock = time.Now
	}
	return &Workflow{
		licenses:   licenses,
		notifier:   notifier,
		pendingTTL: pendingTTL,
		now:        clock,
	}
}

// HandleCallback decodes nothing itself; it takes an already-decoded Action
// and verifies the sender identity before mutating anything. A mismatch
// returns ErrUnauthorized and leaves state untouched.
func (w *Workflow) HandleCallback(ctx context.Context, senderID int64, act Action) error {
	switch a := act.(type) {
	case RequestPaymentAction:
		if a.ActingUser != senderID {
			logger.Warn(ctx, "service.payment", "payment.unauthorized",
				slog.Int64("user_id", senderID),
				slog.Int64("claimed_id", a.ActingUser),
			)
			return ErrUnauthorized
		}
		_, err := w.RequestPayment(ctx, senderID, string(a.Plan))
		return err
	case CancelPaymentAction:
		return w.CancelPayment(ctx, senderID)
	}
	return ErrUnknownAction
}

// RequestPayment opens (or overwrites) a payment request for userID.
//
// Requesting the plan that is already pending returns ErrAlreadyRequested
// unless the pending request has outlived the TTL. Requesting a different
// plan overwrites the pending one; only the final plan is what the admin
// sees. Unknown plans return license.ErrInvalidPlan without touching the
// record.
func (w *Workflow) RequestPayment(ctx context.Context, userID int64, rawPlan string) (*license.UserRecord, error) {
	plan, err := license.ParsePlan(rawPlan)
	if err != nil {
		return nil, err
	}

	if err := w.licenses.RegisterNewUser(ctx, userID); err != nil {
		return nil, err
	}

	now := w.now()
	rec, err := w.licenses.Store().Mutate(userID, func(u *license.UserRecord) error {
		if u.Status == license.StatusPaymentRequested && u.RequestedPlan == plan && !w.stale(u, now) {
			return ErrAlreadyRequested
		}
		u.Status = license.StatusPaymentRequested
		u.RequestedPlan = plan
		t := now
		u.PaymentRequestedAt = &t
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "service.payment", "payment.requested",
		slog.Int64("user_id", userID),
		slog.String("plan", string(plan)),
	)
	w.notify(ctx, userID, plan)
	return rec, nil
}

// CancelPayment withdraws a pending request. It is safe to call when no
// request is pending or when the user does not exist; both are no-ops.
func (w *Workflow) CancelPayment(ctx context.Context, userID int64) error {
	if !w.licenses.Store().Exists(userID) {
		return nil
	}
	now := w.now()
	_, err := w.licenses.Store().Mutate(userID, func(u *license.UserRecord) error {
		if u.Status != license.StatusPaymentRequested {
			return nil
		}
		u.ClearPaymentRequest()
		if u.ExpiresAt != nil && u.ExpiresAt.After(now) {
			u.Status = license.StatusActive
		} else {
			u.Status = license.StatusInactive
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "service.payment", "payment.cancelled", slog.Int64("user_id", userID))
	return nil
}

func (w *Workflow) stale(u *license.UserRecord, now time.Time) bool {
	if w.pendingTTL <= 0 || u.PaymentRequestedAt == nil {
		return false
	}
	return now.Sub(*u.PaymentRequestedAt) > w.pendingTTL
}

func (w *Workflow) notify(ctx context.Context, userID int64, plan license.Plan) {
	if w.notifier == nil {
		return
	}
	price := plan.Price()
	if err := w.notifier.NotifyAdmin(ctx, texts.AdminPaymentRequest(userID, string(plan), price)); err != nil {
		logger.Warn(ctx, "service.payment", "payment.notify_admin_failed",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
	if err := w.notifier.NotifyUser(ctx, userID, texts.PaymentRequested(texts.PlanLabel(string(plan)), price)); err != nil {
		logger.Warn(ctx, "service.payment", "payment.notify_user_failed",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
}
