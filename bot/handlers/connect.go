package handlers

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/telefoot/telefoot-bot/bot/texts"
	tghelpers "github.com/telefoot/telefoot-bot/core/telegram/helpers"
	"github.com/telefoot/telefoot-bot/core/telegram/state"
)

// stateAwaitCode waits for the login confirmation code after /connect.
const stateAwaitCode state.State = "connect_await_code"

const tempConnectPhone = "connect_phone"

// handleConnectCode consumes the confirmation code. The code arrives with an
// "aa" prefix so Telegram does not swallow it as a login code.
func (d *Deps) handleConnectCode(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID

	phoneVal, ok := d.FSM.GetTemp(userID, tempConnectPhone)
	phone, _ := phoneVal.(string)
	if !ok || phone == "" {
		d.FSM.Clear(userID)
		return nil
	}

	code := strings.TrimSpace(c.Text())
	code = strings.TrimPrefix(strings.ToLower(code), "aa")
	if code == "" {
		return tghelpers.SendText(c, texts.ConnectPrompt(phone))
	}

	err := d.Loop.Submit(ctx, "session.complete_link", func(ctx context.Context) error {
		return d.Sup.CompleteLink(ctx, phone, code)
	})
	if err != nil {
		// Leave the state in place so the admin can retry with a fresh code.
		return tghelpers.SendText(c, "❌ Code refusé, réessayez.")
	}

	d.FSM.ClearTemp(userID, tempConnectPhone)
	d.FSM.Clear(userID)
	return tghelpers.SendText(c, texts.ConnectDone(phone))
}
