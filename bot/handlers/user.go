package handlers

import (
	"errors"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/telefoot/telefoot-bot/bot/license"
	"github.com/telefoot/telefoot-bot/bot/payment"
	"github.com/telefoot/telefoot-bot/bot/texts"
	"github.com/telefoot/telefoot-bot/core/telegram/callbacks"
	tghelpers "github.com/telefoot/telefoot-bot/core/telegram/helpers"
	"github.com/telefoot/telefoot-bot/core/telegram/keyboard"
)

func (d *Deps) handleStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	if err := d.Licenses.RegisterNewUser(ctx, userID); err != nil {
		return err
	}
	if err := d.Licenses.CompleteRegistration(ctx, userID); err != nil {
		return err
	}
	return tghelpers.SendText(c, texts.Welcome(c.Sender().FirstName))
}

func (d *Deps) handleStatus(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID

	// "/status <id>" lets the admin inspect any user's record.
	if args := c.Args(); len(args) == 1 && d.isAdmin(userID) {
		return d.handleAdminStatus(c, args[0])
	}

	rec, err := tghelpers.CurrentUser(ctx, d.Licenses, userID)
	if err != nil {
		if errors.Is(err, license.ErrNotFound) {
			return tghelpers.SendText(c, texts.StatusInactive())
		}
		return err
	}
	status, err := d.Licenses.StatusOf(ctx, userID)
	if err != nil {
		return err
	}

	switch status {
	case license.StatusActive:
		return tghelpers.SendText(c, texts.StatusActive(texts.PlanLabel(string(rec.Plan)), *rec.ExpiresAt))
	case license.StatusExpired:
		return tghelpers.SendText(c, texts.StatusExpired())
	case license.StatusPaymentRequested:
		return tghelpers.SendText(c, texts.StatusPaymentRequested(texts.PlanLabel(string(rec.RequestedPlan))))
	default:
		return tghelpers.SendText(c, texts.StatusInactive())
	}
}

func (d *Deps) handleAdminStatus(c tele.Context, rawID string) error {
	ctx := tghelpers.BuildContext(c)
	targetID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || targetID <= 0 {
		return tghelpers.SendText(c, texts.UsageStatus())
	}

	rec, err := d.Licenses.InfoOf(ctx, targetID)
	if errors.Is(err, license.ErrNotFound) {
		return tghelpers.SendText(c, texts.AdminUserUnknown(targetID))
	}
	if err != nil {
		return err
	}
	status, err := d.Licenses.StatusOf(ctx, targetID)
	if err != nil {
		return err
	}

	plan := rec.Plan
	if status == license.StatusPaymentRequested {
		plan = rec.RequestedPlan
	}
	return tghelpers.SendText(
		c,
		texts.AdminUserStatus(targetID, string(status), texts.PlanLabel(string(plan)), rec.LicenseKey, rec.ExpiresAt),
	)
}

func (d *Deps) handleHelp(c tele.Context) error {
	return tghelpers.SendText(c, texts.Help(d.isAdmin(c.Sender().ID)))
}

func (d *Deps) handleMenu(c tele.Context) error {
	return d.handlePayer(c)
}

func (d *Deps) handlePayer(c tele.Context) error {
	userID := c.Sender().ID
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{
			Text:   texts.PlanWeekLabel + " — " + texts.PlanWeekPrice,
			Unique: payment.CallbackPay,
			Data:   payment.EncodePayPayload(license.PlanWeek, userID),
		}},
		[]keyboard.InlineBtn{{
			Text:   texts.PlanMonthLabel + " — " + texts.PlanMonthPrice,
			Unique: payment.CallbackPay,
			Data:   payment.EncodePayPayload(license.PlanMonth, userID),
		}},
		[]keyboard.InlineBtn{{
			Text:   "❌ Annuler",
			Unique: payment.CallbackCancelPayment,
			Data:   "-",
		}},
	)
	return tghelpers.SendText(c, texts.Tariffs(), &tele.SendOptions{ReplyMarkup: markup})
}

func (d *Deps) handlePronostics(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if !d.Licenses.CheckAccess(ctx, c.Sender().ID) {
		return tghelpers.SendText(c, texts.AccessDenied())
	}
	return tghelpers.SendText(c, texts.Pronostics(time.Now()))
}

func (d *Deps) handlePayCallback(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	key := callbacks.CallbackKey(c)
	payload := callbacks.CallbackPayload(c)

	act, err := payment.DecodeAction(key, payload)
	if err != nil {
		if errors.Is(err, license.ErrInvalidPlan) || errors.Is(err, payment.ErrUnknownAction) {
			return tghelpers.SendText(c, texts.UnknownPlan(payload))
		}
		return err
	}

	switch err := d.Payments.HandleCallback(ctx, c.Sender().ID, act); {
	case errors.Is(err, payment.ErrUnauthorized):
		return c.Respond(&tele.CallbackResponse{Text: "⛔"})
	case errors.Is(err, payment.ErrAlreadyRequested):
		return tghelpers.SendText(c, texts.PaymentAlreadyPending())
	case err != nil:
		return err
	}
	// The workflow confirms to the user through the notifier.
	return nil
}

func (d *Deps) handleCancelCallback(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if err := d.Payments.CancelPayment(ctx, c.Sender().ID); err != nil {
		return err
	}
	return tghelpers.SendText(c, texts.PaymentCancelled())
}
