// Package handlers wires the bot command surface to the domain services:
// licensing, payments, session supervision and the watchdog.
package handlers

import (
	coreconfig "github.com/telefoot/telefoot-bot/core/config"
	tg "github.com/telefoot/telefoot-bot/core/telegram"
	"github.com/telefoot/telefoot-bot/core/telegram/commands"
	"github.com/telefoot/telefoot-bot/core/telegram/state"

	"github.com/telefoot/telefoot-bot/bot/license"
	"github.com/telefoot/telefoot-bot/bot/payment"
	"github.com/telefoot/telefoot-bot/bot/runloop"
	"github.com/telefoot/telefoot-bot/bot/session"
	"github.com/telefoot/telefoot-bot/bot/watchdog"
)

// Deps carries everything the handlers need. All session mutation goes
// through Loop; license and payment operations guard their own state.
type Deps struct {
	Cfg      *coreconfig.Config
	Licenses *license.Manager
	Payments *payment.Workflow
	Sup      *session.Supervisor
	Loop     *runloop.Loop
	WD       *watchdog.Watchdog
	FSM      state.Manager
	Notifier payment.Notifier
}

func (d *Deps) isAdmin(id int64) bool {
	return id == d.Cfg.Telegram.AdminID
}

// Register installs every command, callback and conversation state on the
// registry.
func Register(reg *tg.Registry, d *Deps) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     d.handleStart,
		Description: "Démarrer le bot",
	})
	reg.RegisterCommand("/status", commands.Command{
		Handler:     d.handleStatus,
		Description: "État de votre abonnement",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     d.handleHelp,
		Description: "Aide",
	})
	reg.RegisterCommand("/menu", commands.Command{
		Handler:     d.handleMenu,
		Description: "Menu principal",
	})
	reg.RegisterCommand("/payer", commands.Command{
		Handler:     d.handlePayer,
		Description: "Acheter un abonnement",
		Aliases:     []string{"abonnement"},
	})
	reg.RegisterCommand("/pronostics", commands.Command{
		Handler:     d.handlePronostics,
		Description: "Pronostics du jour",
	})

	reg.RegisterCommand("/activer", commands.Command{
		Handler:     d.handleActivate,
		Description: "Activer une licence",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/connect", commands.Command{
		Handler:     d.handleConnect,
		Description: "Lier un compte",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/reconnect", commands.Command{
		Handler:     d.handleReconnect,
		Description: "Relancer la session principale",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/clean", commands.Command{
		Handler:     d.handleClean,
		Description: "Supprimer une session",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/test", commands.Command{
		Handler:     d.handleTest,
		Description: "État des sessions",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/config", commands.Command{
		Handler:     d.handleConfig,
		Description: "Configuration du bot",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/guide", commands.Command{
		Handler:     d.handleGuide,
		Description: "Guide d'utilisation",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/delay", commands.Command{
		Handler:     d.handleDelay,
		Description: "Réglages de délai",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/settings", commands.Command{
		Handler:     d.handleSettings,
		Description: "Paramètres",
		AdminOnly:   true,
		Hidden:      true,
	})

	_ = reg.RegisterCallback(payment.CallbackPay, d.handlePayCallback)
	_ = reg.RegisterCallback(payment.CallbackCancelPayment, d.handleCancelCallback)

	reg.SetTextFallback(d.handleText)

	state.RegisterHandler(stateAwaitCode, d.handleConnectCode)
}
