package app

import (
	"context"
	"fmt"
	"sync"

	tele "gopkg.in/telebot.v4"
)

// telegramNotifier sends workflow notifications over the bot. The bot handle
// only exists once the runtime has started, so the notifier is created early
// and bound later.
type telegramNotifier struct {
	mu      sync.RWMutex
	bot     *tele.Bot
	adminID int64
}

func newTelegramNotifier(adminID int64) *telegramNotifier {
	return &telegramNotifier{adminID: adminID}
}

func (n *telegramNotifier) bind(bot *tele.Bot) {
	n.mu.Lock()
	n.bot = bot
	n.mu.Unlock()
}

func (n *telegramNotifier) send(userID int64, text string) error {
	n.mu.RLock()
	bot := n.bot
	n.mu.RUnlock()
	if bot == nil {
		return fmt.Errorf("notifier: bot not started")
	}
	_, err := bot.Send(&tele.User{ID: userID}, text)
	return err
}

func (n *telegramNotifier) NotifyAdmin(_ context.Context, text string) error {
	return n.send(n.adminID, text)
}

func (n *telegramNotifier) NotifyUser(_ context.Context, userID int64, text string) error {
	return n.send(userID, text)
}
