package app

import (
	"context"
	"fmt"
	"sync"

	tele "gopkg.in/telebot.v4"
)

// botConn probes the bot's own Telegram connection with a getMe round trip.
// Like the notifier, the bot handle only exists once the runtime has started,
// so the probe is created early and bound later. The Bot API transport is
// stateless HTTP, so a successful round trip also is the repair: there is no
// separate re-dial step to perform.
type botConn struct {
	mu  sync.RWMutex
	bot *tele.Bot
}

func (p *botConn) bind(bot *tele.Bot) {
	p.mu.Lock()
	p.bot = bot
	p.mu.Unlock()
}

func (p *botConn) ping() error {
	p.mu.RLock()
	bot := p.bot
	p.mu.RUnlock()
	if bot == nil {
		return fmt.Errorf("primary: bot not started")
	}
	_, err := bot.Raw("getMe", nil)
	return err
}

func (p *botConn) Connected(_ context.Context) bool {
	return p.ping() == nil
}

func (p *botConn) Reconnect(_ context.Context) error {
	return p.ping()
}
