// Package app assembles the bot: configuration, storage, domain services,
// the Telegram surface and the HTTP health surface.
package app

import (
	"context"
	"path/filepath"
	"time"

	"log/slog"

	"github.com/telefoot/telefoot-bot/core/bootstrap"
	corecmd "github.com/telefoot/telefoot-bot/core/cmd"
	coreconfig "github.com/telefoot/telefoot-bot/core/config"
	"github.com/telefoot/telefoot-bot/core/logger"
	tg "github.com/telefoot/telefoot-bot/core/telegram"
	"github.com/telefoot/telefoot-bot/core/telegram/router"
	"github.com/telefoot/telefoot-bot/core/telegram/state"

	"github.com/telefoot/telefoot-bot/bot/handlers"
	"github.com/telefoot/telefoot-bot/bot/health"
	"github.com/telefoot/telefoot-bot/bot/license"
	"github.com/telefoot/telefoot-bot/bot/payment"
	"github.com/telefoot/telefoot-bot/bot/runloop"
	"github.com/telefoot/telefoot-bot/bot/session"
	"github.com/telefoot/telefoot-bot/bot/watchdog"
)

// Config wraps the core configuration for the cmd runner.
type Config struct {
	core *coreconfig.Config
}

func (c *Config) CoreConfig() *coreconfig.Config { return c.core }

// LoadConfig reads the YAML/env configuration for the runner.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	cfg, err := coreconfig.Load(path)
	if err != nil {
		return nil, err
	}
	return &Config{core: cfg}, nil
}

// Storage bundles the durable snapshot stores opened at bootstrap.
type Storage struct {
	Users    *license.Store
	Sessions *session.Registry
}

// App owns every running component of the bot.
type App struct {
	cfg *coreconfig.Config

	licenses *license.Manager
	payments *payment.Workflow
	sup      *session.Supervisor
	loop     *runloop.Loop
	wd       *watchdog.Watchdog
	health   *health.Server
	fsm      state.Manager
	notifier *telegramNotifier
	primary  *botConn

	stopBackground context.CancelFunc
}

// Bootstrap initializes logging and storage and wires the services together.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg := carrier.CoreConfig()

	res, err := bootstrap.Run(bootstrap.Options[Storage]{
		Config: cfg,
		OpenStorage: func(cfg *coreconfig.Config) (Storage, error) {
			users, err := license.OpenStore(filepath.Join(cfg.Storage.Dir, cfg.Storage.UsersFile))
			if err != nil {
				return Storage{}, err
			}
			sessions, err := session.OpenRegistry(filepath.Join(cfg.Storage.Dir, cfg.Storage.SessionsFile))
			if err != nil {
				return Storage{}, err
			}
			return Storage{Users: users, Sessions: sessions}, nil
		},
	})
	if err != nil {
		return nil, err
	}

	notifier := newTelegramNotifier(cfg.Telegram.AdminID)
	primary := &botConn{}
	licenses := license.NewManager(res.Storage.Users, nil)
	payments := payment.NewWorkflow(licenses, notifier, cfg.Licensing.PendingRequestTTL, nil)
	sup := session.NewSupervisor(res.Storage.Sessions, session.ArtifactDialer{}, cfg.Storage.Dir, cfg.Sessions.PrimaryPhone)
	loop := runloop.New(32)
	wd := watchdog.New(loop, sup, primary, notifier, cfg.Watchdog.CheckInterval, *cfg.Watchdog.AutoReactivation)

	return &App{
		cfg:      cfg,
		licenses: licenses,
		payments: payments,
		sup:      sup,
		loop:     loop,
		wd:       wd,
		health:   health.NewServer(cfg.Health, licenses, res.Storage.Sessions, wd, primary),
		fsm:      state.NewMemoryManager(),
		notifier: notifier,
		primary:  primary,
	}, nil
}

// TelegramRunOptions builds the bot runtime: registry, middleware chain,
// routes and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	handlers.Register(reg, &handlers.Deps{
		Cfg:      a.cfg,
		Licenses: a.licenses,
		Payments: a.payments,
		Sup:      a.sup,
		Loop:     a.loop,
		WD:       a.wd,
		FSM:      a.fsm,
		Notifier: a.notifier,
	})

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.fsm, reg, router.TextOptions{})...)

	mws := tg.DefaultMiddlewares(a.cfg, nil)
	mws = append(mws, tg.Middleware{Name: "fsm_session", Use: state.WithSession(a.fsm)})

	return tg.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: mws,
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	a.notifier.bind(rt.Bot)
	a.primary.bind(rt.Bot)

	bgCtx, cancel := context.WithCancel(context.Background())
	a.stopBackground = cancel

	go a.loop.Run(bgCtx)
	go a.wd.Run(bgCtx)
	go func() {
		if err := a.health.Start(); err != nil {
			logger.Error(bgCtx, "health", "health.serve_failed", slog.String("err", err.Error()))
		}
	}()

	// Bring back every previously linked session before updates flow.
	return a.loop.Submit(ctx, "session.restore_all", func(ctx context.Context) error {
		restored, failed := a.sup.RestoreAll(ctx)
		logger.Info(ctx, "app", "app.sessions_restored",
			slog.Int("sessions_restored", restored),
			slog.Int("sessions_failed", failed),
		)
		return nil
	})
}

func (a *App) onStop(ctx context.Context, _ tg.Runtime) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := a.health.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "app", "app.health_shutdown_failed", slog.String("err", err.Error()))
	}

	err := a.loop.Submit(shutdownCtx, "session.teardown_all", func(ctx context.Context) error {
		a.sup.TeardownAll(ctx, a.cfg.Watchdog.TeardownTimeout)
		return nil
	})
	if err != nil {
		logger.Warn(shutdownCtx, "app", "app.teardown_failed", slog.String("err", err.Error()))
	}

	if a.stopBackground != nil {
		a.stopBackground()
	}
	return nil
}
