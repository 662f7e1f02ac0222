package handlers

import (
	tele "gopkg.in/telebot.v4"

	"github.com/telefoot/telefoot-bot/bot/texts"
	"github.com/telefoot/telefoot-bot/bot/watchdog"
	"github.com/telefoot/telefoot-bot/core/logger"
	tghelpers "github.com/telefoot/telefoot-bot/core/telegram/helpers"
	"log/slog"
)

// handleText is the fallback for plain messages. Its one real job is the
// reactivation channel: an instruction message is acknowledged with "ok"
// first, then the reactivation pass runs.
func (d *Deps) handleText(c tele.Context) error {
	if !watchdog.IsReactivationRequest(c.Text()) {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	logger.Info(ctx, "tg", "reactivation.requested", slog.Int64("user_id", c.Sender().ID))

	if err := tghelpers.SendText(c, texts.ReactivationAck); err != nil {
		return err
	}
	if _, err := d.WD.Trigger(ctx); err != nil {
		logger.Error(ctx, "tg", "reactivation.failed", slog.String("err", err.Error()))
	}
	return nil
}
