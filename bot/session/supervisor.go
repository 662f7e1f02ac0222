// Package session manages linked Telegram accounts: the persisted registry
// of descriptors, the credential artifacts on disk, and the live connection
// handles. All handle mutation goes through the run loop, so the supervisor
// itself carries no lock around the handle map.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/telefoot/telefoot-bot/core/logger"
	"log/slog"
)

var (
	// ErrNoLinkPending reports a CompleteLink without a prior Link.
	ErrNoLinkPending = errors.New("session: no link in progress for this number")
	// ErrLinkPending reports a second Link for a number already mid-flow.
	ErrLinkPending = errors.New("session: link already in progress for this number")
)

// Supervisor owns the live handles and drives restore, reconnect, linking
// and cleanup against the registry and the dialer.
type Supervisor struct {
	reg          *Registry
	dialer       Dialer
	credDir      string
	primaryPhone string

	handles map[string]Handle
	flows   map[string]LoginFlow
}

// NewSupervisor builds a Supervisor. primaryPhone names the account that the
// watchdog keeps alive; when empty, the first registered number is primary.
func NewSupervisor(reg *Registry, dialer Dialer, credDir, primaryPhone string) *Supervisor {
	return &Supervisor{
		reg:          reg,
		dialer:       dialer,
		credDir:      credDir,
		primaryPhone: primaryPhone,
		handles:      make(map[string]Handle),
		flows:        make(map[string]LoginFlow),
	}
}

// CredentialPath returns where the credential artifact for phone lives.
func (s *Supervisor) CredentialPath(phone string) string {
	name := "telefeed_" + strings.TrimPrefix(phone, "+") + ".session"
	return filepath.Join(s.credDir, name)
}

// RestoreAll dials every registered session that has no live handle,
// regardless of the persisted Connected flag: a descriptor that failed on
// the previous pass gets another attempt here, which is how transient
// failures heal at the next watchdog cycle. It is idempotent (numbers with
// a live handle are skipped) and one failing number never stops the rest.
// It reports how many sessions were restored and how many failed this pass.
func (s *Supervisor) RestoreAll(ctx context.Context) (restored, failed int) {
	for _, d := range s.reg.All() {
		if _, live := s.handles[d.Phone]; live {
			continue
		}
		h, err := s.dialer.Dial(ctx, d.Phone, s.CredentialPath(d.Phone))
		if err != nil {
			failed++
			logger.Warn(ctx, "service.sessions", "session.restore_failed",
				slog.String("phone", d.Phone),
				slog.String("err", err.Error()),
			)
			if err := s.reg.SetConnected(d.Phone, false); err != nil {
				logger.Error(ctx, "service.sessions", "session.persist_failed",
					slog.String("phone", d.Phone),
					slog.String("err", err.Error()),
				)
			}
			continue
		}
		s.handles[d.Phone] = h
		restored++
		if err := s.reg.SetConnected(d.Phone, true); err != nil {
			logger.Error(ctx, "service.sessions", "session.persist_failed",
				slog.String("phone", d.Phone),
				slog.String("err", err.Error()),
			)
		}
		logger.Info(ctx, "service.sessions", "session.restored", slog.String("phone", d.Phone))
	}
	return restored, failed
}

// Primary returns the phone number the watchdog watches, or "" when no
// session is registered.
func (s *Supervisor) Primary() string {
	if s.primaryPhone != "" {
		return s.primaryPhone
	}
	all := s.reg.All()
	if len(all) == 0 {
		return ""
	}
	return all[0].Phone
}

// ReconnectPrimary checks the primary session and redials it when it is
// missing or unresponsive. It reports whether a reconnect actually happened;
// a live primary is a no-op.
func (s *Supervisor) ReconnectPrimary(ctx context.Context) (bool, error) {
	phone := s.Primary()
	if phone == "" {
		return false, nil
	}
	if h, live := s.handles[phone]; live {
		if err := h.Ping(ctx); err == nil {
			return false, nil
		}
		_ = h.Close(ctx)
		delete(s.handles, phone)
		logger.Warn(ctx, "service.sessions", "session.primary_unresponsive", slog.String("phone", phone))
	}
	h, err := s.dialer.Dial(ctx, phone, s.CredentialPath(phone))
	if err != nil {
		if perr := s.reg.SetConnected(phone, false); perr != nil {
			logger.Error(ctx, "service.sessions", "session.persist_failed",
				slog.String("phone", phone),
				slog.String("err", perr.Error()),
			)
		}
		return false, fmt.Errorf("reconnect %s: %w", phone, err)
	}
	s.handles[phone] = h
	if err := s.reg.SetConnected(phone, true); err != nil {
		logger.Error(ctx, "service.sessions", "session.persist_failed",
			slog.String("phone", phone),
			slog.String("err", err.Error()),
		)
	}
	logger.Info(ctx, "service.sessions", "session.primary_reconnected", slog.String("phone", phone))
	return true, nil
}

// TeardownAll closes every live handle, spending at most timeout per handle.
// Connected flags in the registry are left as they are so the next start
// restores the same set.
func (s *Supervisor) TeardownAll(ctx context.Context, timeout time.Duration) {
	for phone, h := range s.handles {
		closeCtx, cancel := context.WithTimeout(ctx, timeout)
		if err := h.Close(closeCtx); err != nil {
			logger.Warn(ctx, "service.sessions", "session.close_failed",
				slog.String("phone", phone),
				slog.String("err", err.Error()),
			)
		}
		cancel()
		delete(s.handles, phone)
	}
	for phone, f := range s.flows {
		abortCtx, cancel := context.WithTimeout(ctx, timeout)
		_ = f.Abort(abortCtx)
		cancel()
		delete(s.flows, phone)
	}
}

// Cleanup removes a session entirely: closes the live handle if any, deletes
// the descriptor, and removes the credential artifact from disk.
func (s *Supervisor) Cleanup(ctx context.Context, rawPhone string) error {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return err
	}
	if h, live := s.handles[phone]; live {
		_ = h.Close(ctx)
		delete(s.handles, phone)
	}
	if err := s.reg.Delete(phone); err != nil {
		return err
	}
	if err := os.Remove(s.CredentialPath(phone)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credential artifact: %w", err)
	}
	logger.Info(ctx, "service.sessions", "session.cleaned", slog.String("phone", phone))
	return nil
}

// Link starts an interactive login for rawPhone and returns the canonical
// number. The flow stays pending until CompleteLink or AbortLink.
func (s *Supervisor) Link(ctx context.Context, rawPhone string) (string, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return "", err
	}
	if _, pending := s.flows[phone]; pending {
		return "", ErrLinkPending
	}
	flow, err := s.dialer.BeginLogin(ctx, phone, s.CredentialPath(phone))
	if err != nil {
		return "", fmt.Errorf("begin login %s: %w", phone, err)
	}
	s.flows[phone] = flow
	logger.Info(ctx, "service.sessions", "session.link_started", slog.String("phone", phone))
	return phone, nil
}

// CompleteLink finishes a pending login with the confirmation code and
// registers the new session as connected.
func (s *Supervisor) CompleteLink(ctx context.Context, phone, code string) error {
	flow, ok := s.flows[phone]
	if !ok {
		return ErrNoLinkPending
	}
	h, err := flow.Submit(ctx, code)
	if err != nil {
		return fmt.Errorf("complete login %s: %w", phone, err)
	}
	delete(s.flows, phone)
	if old, live := s.handles[phone]; live {
		_ = old.Close(ctx)
	}
	s.handles[phone] = h
	if err := s.reg.Put(&Descriptor{Phone: phone, Connected: true, LinkedAt: time.Now()}); err != nil {
		return err
	}
	logger.Info(ctx, "service.sessions", "session.linked", slog.String("phone", phone))
	return nil
}

// AbortLink drops a pending login flow if one exists.
func (s *Supervisor) AbortLink(ctx context.Context, phone string) {
	if flow, ok := s.flows[phone]; ok {
		_ = flow.Abort(ctx)
		delete(s.flows, phone)
	}
}

// IsConnected reports whether a live handle exists for phone.
func (s *Supervisor) IsConnected(phone string) bool {
	_, live := s.handles[phone]
	return live
}

// Registry exposes the descriptor set for read paths.
func (s *Supervisor) Registry() *Registry {
	return s.reg
}

// LiveCount returns how many handles are currently open.
func (s *Supervisor) LiveCount() int {
	return len(s.handles)
}
