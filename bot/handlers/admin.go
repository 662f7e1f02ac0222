package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/telefoot/telefoot-bot/bot/license"
	"github.com/telefoot/telefoot-bot/bot/session"
	"github.com/telefoot/telefoot-bot/bot/texts"
	"github.com/telefoot/telefoot-bot/core/logger"
	tghelpers "github.com/telefoot/telefoot-bot/core/telegram/helpers"
	"log/slog"
)

// handleActivate processes "/activer <id> <plan>".
func (d *Deps) handleActivate(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	args := c.Args()
	if len(args) != 2 {
		return tghelpers.SendText(c, texts.UsageActiver())
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		return tghelpers.SendText(c, texts.UsageActiver())
	}

	key, expires, err := d.Licenses.Activate(ctx, userID, args[1])
	if errors.Is(err, license.ErrInvalidPlan) {
		return tghelpers.SendText(c, texts.UnknownPlan(args[1]))
	}
	if err != nil {
		return err
	}

	label := texts.PlanLabel(args[1])
	if d.Notifier != nil {
		if nerr := d.Notifier.NotifyUser(ctx, userID, texts.Activated(label, key, expires)); nerr != nil {
			logger.Warn(ctx, "tg", "activate.notify_failed",
				slog.Int64("user_id", userID),
				slog.String("err", nerr.Error()),
			)
		}
	}
	return tghelpers.SendText(c, texts.AdminActivated(userID, label, expires))
}

// handleConnect starts linking a new account and waits for the code.
func (d *Deps) handleConnect(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	args := c.Args()
	if len(args) != 1 {
		return tghelpers.SendText(c, texts.UsageConnect())
	}

	var phone string
	err := d.Loop.Submit(ctx, "session.link", func(ctx context.Context) error {
		var err error
		phone, err = d.Sup.Link(ctx, args[0])
		return err
	})
	if err != nil {
		var verr *session.ValidationError
		if errors.As(err, &verr) {
			return tghelpers.SendText(c, texts.InvalidPhone(args[0]))
		}
		if errors.Is(err, session.ErrLinkPending) {
			return tghelpers.SendText(c, texts.ConnectPrompt(args[0]))
		}
		return err
	}

	d.FSM.SetState(c.Sender().ID, stateAwaitCode)
	d.FSM.SetTemp(c.Sender().ID, tempConnectPhone, phone)
	return tghelpers.SendText(c, texts.ConnectPrompt(phone))
}

func (d *Deps) handleReconnect(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	var reconnected bool
	err := d.Loop.Submit(ctx, "session.reconnect_primary", func(ctx context.Context) error {
		var err error
		reconnected, err = d.Sup.ReconnectPrimary(ctx)
		return err
	})
	if err != nil {
		return tghelpers.SendText(c, fmt.Sprintf("❌ Reconnexion échouée : %v", err))
	}
	if reconnected {
		return tghelpers.SendText(c, "🔄 Session principale relancée.")
	}
	return tghelpers.SendText(c, "✅ Session principale déjà active.")
}

func (d *Deps) handleClean(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	args := c.Args()
	if len(args) != 1 {
		return tghelpers.SendText(c, texts.UsageClean())
	}
	err := d.Loop.Submit(ctx, "session.clean", func(ctx context.Context) error {
		return d.Sup.Cleanup(ctx, args[0])
	})
	if err != nil {
		var verr *session.ValidationError
		if errors.As(err, &verr) {
			return tghelpers.SendText(c, texts.InvalidPhone(args[0]))
		}
		return err
	}
	phone, _ := session.NormalizePhone(args[0])
	return tghelpers.SendText(c, texts.SessionCleaned(phone))
}

// handleTest reports every registered session and its live state.
func (d *Deps) handleTest(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	var b strings.Builder
	err := d.Loop.Submit(ctx, "session.report", func(context.Context) error {
		descs := d.Sup.Registry().All()
		if len(descs) == 0 {
			b.WriteString("Aucune session enregistrée.")
			return nil
		}
		fmt.Fprintf(&b, "📡 Sessions (%d) :\n", len(descs))
		for _, desc := range descs {
			mark := "🔴"
			if d.Sup.IsConnected(desc.Phone) {
				mark = "🟢"
			}
			fmt.Fprintf(&b, "%s %s\n", mark, desc.Phone)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return tghelpers.SendText(c, b.String())
}

func (d *Deps) handleConfig(c tele.Context) error {
	snap := d.WD.State().Snapshot()
	total, connected := d.Sup.Registry().Counts()
	usersTotal, usersActive := d.Licenses.Counts()
	msg := fmt.Sprintf(
		"⚙️ Configuration\n\n"+
			"Mode : %s\n"+
			"Watchdog : toutes les %s (auto: %t)\n"+
			"Réactivations : %d\n"+
			"Sessions : %d/%d connectées\n"+
			"Utilisateurs : %d (%d actifs)\n"+
			"Santé HTTP : %s",
		d.Cfg.Telegram.RunMode,
		d.Cfg.Watchdog.CheckInterval,
		snap.AutoEnabled,
		snap.Reactivations,
		connected, total,
		usersTotal, usersActive,
		d.Cfg.Health.Listen,
	)
	return tghelpers.SendText(c, msg)
}

func (d *Deps) handleGuide(c tele.Context) error {
	return tghelpers.SendText(c, texts.Guide())
}

func (d *Deps) handleDelay(c tele.Context) error {
	return tghelpers.SendText(c, texts.DelaySettings())
}

func (d *Deps) handleSettings(c tele.Context) error {
	return tghelpers.SendText(c, texts.Settings())
}
