package license

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/telefoot/telefoot-bot/core/logger"
)

const logComponent = "service.license"

// Manager drives license state transitions and access checks on top of the
// Store. Expiry is detected lazily on read; no background sweep mutates
// records.
type Manager struct {
	store *Store
	now   func() time.Time
}

// NewManager builds a Manager. A nil clock defaults to time.Now; tests pass
// a fixed clock to pin expiry math.
func NewManager(store *Store, clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	return &Manager{store: store, now: clock}
}

// RegisterNewUser creates an unregistered record on first contact. Calling it
// again for the same id is a no-op.
func (m *Manager) RegisterNewUser(ctx context.Context, id int64) error {
	created, err := m.store.Ensure(id)
	if err != nil {
		return err
	}
	if created {
		logger.Info(ctx, logComponent, "user.registered",
			slog.String("status", "ok"),
			slog.Int64("user_id", id),
		)
	}
	return nil
}

// CompleteRegistration promotes a record from unregistered to inactive, the
// resting state of a user without a license. Records in any other state are
// left alone.
func (m *Manager) CompleteRegistration(ctx context.Context, id int64) error {
	_, err := m.store.Mutate(id, func(rec *UserRecord) error {
		if rec.Status == StatusUnregistered {
			rec.Status = StatusInactive
		}
		return nil
	})
	return err
}

// CheckAccess reports whether id currently holds a valid license. It is a
// pure function of the stored record and the current time and never mutates
// status.
func (m *Manager) CheckAccess(ctx context.Context, id int64) bool {
	rec, ok := m.store.Get(id)
	if !ok {
		return false
	}
	if rec.Status != StatusActive || rec.ExpiresAt == nil {
		return false
	}
	return rec.ExpiresAt.After(m.now())
}

// Activate grants id the given plan, generating a fresh license key and an
// expiry computed from now (re-activation extends from now, never stacks on
// the previous expiry). Pending payment-request fields are cleared. The
// record is persisted before the key is returned.
func (m *Manager) Activate(ctx context.Context, id int64, rawPlan string) (string, time.Time, error) {
	plan, err := ParsePlan(rawPlan)
	if err != nil {
		return "", time.Time{}, err
	}

	// Lazy registration: the admin may activate a user who never sent /start.
	if err := m.RegisterNewUser(ctx, id); err != nil {
		return "", time.Time{}, err
	}

	key := newLicenseKey()
	expires := m.now().Add(plan.Duration())

	if _, err := m.store.Mutate(id, func(rec *UserRecord) error {
		rec.Status = StatusActive
		rec.Plan = plan
		rec.LicenseKey = key
		rec.ExpiresAt = &expires
		rec.ClearPaymentRequest()
		return nil
	}); err != nil {
		return "", time.Time{}, err
	}

	logger.Info(ctx, logComponent, "user.activated",
		slog.String("status", "ok"),
		slog.Int64("user_id", id),
		slog.String("plan", string(plan)),
	)
	return key, expires, nil
}

// StatusOf returns the effective status of id. An active record whose expiry
// has passed reads as expired without being rewritten.
func (m *Manager) StatusOf(ctx context.Context, id int64) (Status, error) {
	rec, ok := m.store.Get(id)
	if !ok {
		return "", ErrNotFound
	}
	if rec.Status == StatusActive && rec.ExpiresAt != nil && !rec.ExpiresAt.After(m.now()) {
		return StatusExpired, nil
	}
	return rec.Status, nil
}

// InfoOf returns a copy of the stored record.
func (m *Manager) InfoOf(ctx context.Context, id int64) (*UserRecord, error) {
	rec, ok := m.store.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// GetUserByTelegramID satisfies the helpers.CurrentUser service contract.
func (m *Manager) GetUserByTelegramID(ctx context.Context, id int64) (*UserRecord, error) {
	return m.InfoOf(ctx, id)
}

// Counts returns the total and currently-valid user counts for diagnostics.
func (m *Manager) Counts() (total, active int) {
	now := m.now()
	for _, rec := range m.store.All() {
		total++
		if rec.Status == StatusActive && rec.ExpiresAt != nil && rec.ExpiresAt.After(now) {
			active++
		}
	}
	return total, active
}

// Store exposes the underlying record store for collaborators that share the
// single-writer choke point (the payment workflow).
func (m *Manager) Store() *Store {
	return m.store
}

// Now returns the manager's clock reading; collaborators reuse it so the
// license and payment timelines agree.
func (m *Manager) Now() time.Time {
	return m.now()
}

func newLicenseKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
