// Package health exposes the HTTP surface used by external monitors: liveness,
// a component status report, a manual reactivation trigger and Prometheus
// metrics. It never blocks on the Telegram side; reads come from snapshots
// and atomic counters, and the one mutating endpoint goes through the run
// loop like everything else.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telefoot/telefoot-bot/bot/license"
	"github.com/telefoot/telefoot-bot/bot/session"
	"github.com/telefoot/telefoot-bot/bot/watchdog"
	"github.com/telefoot/telefoot-bot/core/buildinfo"
	coreconfig "github.com/telefoot/telefoot-bot/core/config"
	"github.com/telefoot/telefoot-bot/core/logger"
	"log/slog"
)

// StatusPayload is what GET /status reports.
type StatusPayload struct {
	Uptime       string `json:"uptime"`
	BotConnected bool   `json:"bot_connected"`
	Users        Users  `json:"users"`
	Sessions     Stats  `json:"sessions"`
	Watchdog     WD     `json:"watchdog"`
}

type Users struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

type Stats struct {
	Total     int `json:"total"`
	Connected int `json:"connected"`
}

type WD struct {
	Reactivations int64      `json:"reactivations"`
	AutoEnabled   bool       `json:"auto_enabled"`
	LastTrigger   *time.Time `json:"last_trigger,omitempty"`
}

// Server is the health HTTP server.
type Server struct {
	cfg       coreconfig.HealthConfig
	licenses  *license.Manager
	registry  *session.Registry
	wd        *watchdog.Watchdog
	primary   watchdog.PrimaryConn
	startedAt time.Time

	promReg *prometheus.Registry
	srv     *http.Server
}

func NewServer(cfg coreconfig.HealthConfig, licenses *license.Manager, registry *session.Registry, wd *watchdog.Watchdog, primary watchdog.PrimaryConn) *Server {
	s := &Server{
		cfg:       cfg,
		licenses:  licenses,
		registry:  registry,
		wd:        wd,
		primary:   primary,
		startedAt: time.Now(),
		promReg:   prometheus.NewRegistry(),
	}
	s.registerMetrics()
	s.srv = &http.Server{
		Addr:        cfg.Listen,
		Handler:     s.Router(),
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: cfg.IdleTimeout,
	}
	return s
}

func (s *Server) registerMetrics() {
	s.promReg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "telefoot_users_total",
			Help: "Registered users.",
		}, func() float64 { t, _ := s.licenses.Counts(); return float64(t) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "telefoot_users_active",
			Help: "Users with a currently valid license.",
		}, func() float64 { _, a := s.licenses.Counts(); return float64(a) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "telefoot_sessions_total",
			Help: "Registered sessions.",
		}, func() float64 { t, _ := s.registry.Counts(); return float64(t) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "telefoot_sessions_connected",
			Help: "Sessions with a live connection.",
		}, func() float64 { _, c := s.registry.Counts(); return float64(c) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "telefoot_bot_connected",
			Help: "Whether the bot's own Telegram connection answers (1) or not (0).",
		}, func() float64 {
			if s.botConnected(context.Background()) {
				return 1
			}
			return 0
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "telefoot_reactivations_total",
			Help: "Reactivation passes since start.",
		}, func() float64 { return float64(s.wd.State().Snapshot().Reactivations) }),
	)
}

// Router builds the chi router; split out so tests can drive it directly.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/", s.handleRoot)
	r.Get("/status", s.handleStatus)
	r.Post("/reactivate", s.handleReactivate)
	r.Get("/health-monitor", s.handleHealthMonitor)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) botConnected(ctx context.Context) bool {
	return s.primary != nil && s.primary.Connected(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, ok(map[string]interface{}{
		"service":       "telefoot-bot",
		"version":       buildinfo.Version,
		"bot_connected": s.botConnected(r.Context()),
		"uptime":        time.Since(s.startedAt).Truncate(time.Second).String(),
	}))
}

func (s *Server) statusPayload(ctx context.Context) StatusPayload {
	usersTotal, usersActive := s.licenses.Counts()
	sessTotal, sessConnected := s.registry.Counts()
	snap := s.wd.State().Snapshot()
	p := StatusPayload{
		Uptime:       time.Since(s.startedAt).Truncate(time.Second).String(),
		BotConnected: s.botConnected(ctx),
		Users:        Users{Total: usersTotal, Active: usersActive},
		Sessions:     Stats{Total: sessTotal, Connected: sessConnected},
		Watchdog: WD{
			Reactivations: snap.Reactivations,
			AutoEnabled:   snap.AutoEnabled,
		},
	}
	if !snap.LastTrigger.IsZero() {
		t := snap.LastTrigger
		p.Watchdog.LastTrigger = &t
	}
	return p
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, ok(s.statusPayload(r.Context())))
}

func (s *Server) handleReactivate(w http.ResponseWriter, r *http.Request) {
	res, err := s.wd.Trigger(r.Context())
	if err != nil {
		logger.Error(r.Context(), "health", "health.reactivate_failed", slog.String("err", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, fail(err.Error()))
		return
	}
	render.JSON(w, r, ok(map[string]interface{}{
		"restored":    res.Restored,
		"failed":      res.Failed,
		"reconnected": res.Reconnected,
	}))
}

// handleHealthMonitor is the endpoint an external uptime monitor polls. A
// degraded state (bot connection down, or registered sessions with none
// connected) answers 503 and kicks off a reactivation in the background so
// the next poll finds the bot repaired.
func (s *Server) handleHealthMonitor(w http.ResponseWriter, r *http.Request) {
	total, connected := s.registry.Counts()
	sessionsDown := total > 0 && connected == 0
	if sessionsDown || !s.botConnected(r.Context()) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if _, err := s.wd.Trigger(ctx); err != nil {
				logger.Error(ctx, "health", "health.self_trigger_failed", slog.String("err", err.Error()))
			}
		}()
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, degraded(s.statusPayload(r.Context())))
		return
	}
	render.JSON(w, r, ok(s.statusPayload(r.Context())))
}

// Start runs the listener until Shutdown.
func (s *Server) Start() error {
	logger.Info(context.Background(), "health", "health.listening", slog.String("listen", s.cfg.Listen))
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
