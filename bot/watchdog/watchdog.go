// Package watchdog keeps the bot connection and the primary phone session
// alive. It runs a passive periodic check and serves explicit reactivation
// triggers coming from the message channel or the HTTP surface. All session
// work is submitted to the run loop; the watchdog itself only keeps counters.
package watchdog

import (
	"context"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/telefoot/telefoot-bot/bot/runloop"
	"github.com/telefoot/telefoot-bot/bot/session"
	"github.com/telefoot/telefoot-bot/bot/texts"
	"github.com/telefoot/telefoot-bot/core/logger"
	"log/slog"
)

// reactivationRe matches the instruction text an operator (or the external
// monitor) sends over the message channel to force a reactivation.
var reactivationRe = regexp.MustCompile(`(?i)réactiver le bot automatique`)

// IsReactivationRequest reports whether an incoming message asks for a
// reactivation.
func IsReactivationRequest(text string) bool {
	return reactivationRe.MatchString(text)
}

// AdminNotifier delivers watchdog reports to the admin. Best effort.
type AdminNotifier interface {
	NotifyAdmin(ctx context.Context, text string) error
}

// PrimaryConn observes and repairs the bot's own Telegram connection. It is
// a separate concern from the per-phone sessions the supervisor owns.
type PrimaryConn interface {
	Connected(ctx context.Context) bool
	Reconnect(ctx context.Context) error
}

// Result summarizes one reactivation pass.
type Result struct {
	Restored    int
	Failed      int
	Reconnected bool
}

// State holds the watchdog counters. Reads are lock free so the health
// surface can snapshot them without touching the run loop.
type State struct {
	reactivations atomic.Int64
	autoEnabled   atomic.Bool
	lastTrigger   atomic.Int64 // unix nanos, 0 when never triggered
}

// Snapshot is the read-side view of State.
type Snapshot struct {
	Reactivations int64
	AutoEnabled   bool
	LastTrigger   time.Time
}

func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Reactivations: s.reactivations.Load(),
		AutoEnabled:   s.autoEnabled.Load(),
	}
	if ns := s.lastTrigger.Load(); ns != 0 {
		snap.LastTrigger = time.Unix(0, ns)
	}
	return snap
}

// Watchdog owns the periodic check and the trigger path.
type Watchdog struct {
	loop     *runloop.Loop
	sup      *session.Supervisor
	primary  PrimaryConn
	notifier AdminNotifier
	interval time.Duration
	state    *State
}

func New(loop *runloop.Loop, sup *session.Supervisor, primary PrimaryConn, notifier AdminNotifier, interval time.Duration, autoEnabled bool) *Watchdog {
	w := &Watchdog{
		loop:     loop,
		sup:      sup,
		primary:  primary,
		notifier: notifier,
		interval: interval,
		state:    &State{},
	}
	w.state.autoEnabled.Store(autoEnabled)
	return w
}

func (w *Watchdog) State() *State {
	return w.state
}

// SetAuto switches the periodic check on or off.
func (w *Watchdog) SetAuto(enabled bool) {
	w.state.autoEnabled.Store(enabled)
}

// Run drives the periodic check until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.state.autoEnabled.Load() {
				continue
			}
			w.check(ctx)
		}
	}
}

// check probes the bot's own Telegram connection, then pings the primary
// phone session and redials it when needed. A healthy pass leaves the
// counters untouched.
func (w *Watchdog) check(ctx context.Context) {
	w.repairPrimaryConn(ctx)

	var reconnected bool
	err := w.loop.Submit(ctx, "watchdog.check", func(ctx context.Context) error {
		var err error
		reconnected, err = w.sup.ReconnectPrimary(ctx)
		return err
	})
	if err != nil {
		logger.Warn(ctx, "watchdog", "watchdog.check_failed", slog.String("err", err.Error()))
		return
	}
	if reconnected {
		w.recordTrigger()
		logger.Info(ctx, "watchdog", "watchdog.session_reconnected",
			slog.Int64("reactivations", w.state.reactivations.Load()),
		)
	}
}

// repairPrimaryConn brings the bot connection back when the probe fails. It
// runs off the loop: the probe is a plain HTTP round trip and never touches
// session handles.
func (w *Watchdog) repairPrimaryConn(ctx context.Context) {
	if w.primary == nil || w.primary.Connected(ctx) {
		return
	}
	if err := w.primary.Reconnect(ctx); err != nil {
		logger.Warn(ctx, "watchdog", "watchdog.primary_conn_down", slog.String("err", err.Error()))
		return
	}
	w.recordTrigger()
	logger.Info(ctx, "watchdog", "watchdog.primary_conn_repaired",
		slog.Int64("reactivations", w.state.reactivations.Load()),
	)
}

// Trigger runs a full reactivation pass: repair the bot connection, restore
// every registered session, then make sure the primary phone session is up.
// It always counts as a reactivation, even when everything was already live,
// and it reports to the admin when a notifier is wired.
func (w *Watchdog) Trigger(ctx context.Context) (Result, error) {
	w.repairPrimaryConn(ctx)

	var res Result
	err := w.loop.Submit(ctx, "watchdog.trigger", func(ctx context.Context) error {
		res.Restored, res.Failed = w.sup.RestoreAll(ctx)
		reconnected, err := w.sup.ReconnectPrimary(ctx)
		res.Reconnected = reconnected
		return err
	})
	w.recordTrigger()
	if err != nil {
		logger.Error(ctx, "watchdog", "watchdog.trigger_failed", slog.String("err", err.Error()))
		return res, err
	}
	logger.Info(ctx, "watchdog", "watchdog.triggered",
		slog.Int("sessions_restored", res.Restored),
		slog.Int("sessions_failed", res.Failed),
		slog.Int64("reactivations", w.state.reactivations.Load()),
	)
	if w.notifier != nil {
		if nerr := w.notifier.NotifyAdmin(ctx, texts.ReactivationDone(res.Restored, res.Failed, w.state.reactivations.Load())); nerr != nil {
			logger.Warn(ctx, "watchdog", "watchdog.notify_failed", slog.String("err", nerr.Error()))
		}
	}
	return res, nil
}

func (w *Watchdog) recordTrigger() {
	w.state.reactivations.Add(1)
	w.state.lastTrigger.Store(time.Now().UnixNano())
}
