// Package license implements the per-user license/subscription state machine.
// Records live in a whole-file JSON snapshot and are only ever mutated through
// the Store, which serializes access and persists before reporting success.
package license

import (
	"errors"
	"strings"
	"time"
)

// Status enumerates the license states a user record can be in.
type Status string

const (
	// StatusUnregistered marks a record created on first contact, before any plan.
	StatusUnregistered Status = "unregistered"
	// StatusInactive marks a user without a valid license.
	StatusInactive Status = "inactive"
	// StatusActive marks a user whose license has not lapsed.
	StatusActive Status = "active"
	// StatusExpired marks a user whose license has lapsed.
	StatusExpired Status = "expired"
	// StatusPaymentRequested marks a pending two-party payment handshake.
	StatusPaymentRequested Status = "payment_requested"
)

// Plan enumerates the subscription durations sold by the bot.
type Plan string

const (
	// PlanNone means no plan was ever requested or activated.
	PlanNone Plan = ""
	// PlanWeek is the one week subscription.
	PlanWeek Plan = "semaine"
	// PlanMonth is the one month subscription.
	PlanMonth Plan = "mois"
)

var (
	// ErrInvalidPlan reports a plan string outside the recognized set.
	ErrInvalidPlan = errors.New("license: invalid plan")
	// ErrNotFound reports an unknown user id.
	ErrNotFound = errors.New("license: user not found")
)

// ParsePlan validates a raw plan string from a command or callback payload.
func ParsePlan(raw string) (Plan, error) {
	switch Plan(strings.ToLower(strings.TrimSpace(raw))) {
	case PlanWeek:
		return PlanWeek, nil
	case PlanMonth:
		return PlanMonth, nil
	}
	return PlanNone, ErrInvalidPlan
}

// Duration returns the validity period purchased with the plan.
func (p Plan) Duration() time.Duration {
	switch p {
	case PlanWeek:
		return 7 * 24 * time.Hour
	case PlanMonth:
		return 30 * 24 * time.Hour
	}
	return 0
}

// Price returns the display price of the plan.
func (p Plan) Price() string {
	switch p {
	case PlanWeek:
		return "1000f"
	case PlanMonth:
		return "3000f"
	}
	return ""
}

// UserRecord is the durable license state of one end user. A record is
// created on first contact and never deleted, only mutated.
type UserRecord struct {
	ID                 int64      `json:"id"`
	Status             Status     `json:"status"`
	Plan               Plan       `json:"plan,omitempty"`
	LicenseKey         string     `json:"license_key,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	RequestedPlan      Plan       `json:"requested_plan,omitempty"`
	PaymentRequestedAt *time.Time `json:"payment_requested_at,omitempty"`
}

// Clone returns a deep copy safe to hand outside the store.
func (r *UserRecord) Clone() *UserRecord {
	if r == nil {
		return nil
	}
	cp := *r
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		cp.ExpiresAt = &t
	}
	if r.PaymentRequestedAt != nil {
		t := *r.PaymentRequestedAt
		cp.PaymentRequestedAt = &t
	}
	return &cp
}

// ClearPaymentRequest drops the pending-request fields without touching the
// rest of the record.
func (r *UserRecord) ClearPaymentRequest() {
	r.RequestedPlan = PlanNone
	r.PaymentRequestedAt = nil
}
