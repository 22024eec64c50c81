package telegram

import (
	"context"

	"hermes/internal/domain/user"
	"hermes/internal/services/notify"
	"hermes/pkg/logger"
)

// Notifier delivers notifications over Telegram. Users without a
// linked Telegram chat are skipped silently.
type Notifier struct {
	bot *Bot
	log *logger.Logger
}

// NewNotifier creates a Telegram notification channel
func NewNotifier(bot *Bot) *Notifier {
	return &Notifier{
		bot: bot,
		log: logger.Get().With("component", "telegram_notifier"),
	}
}

// Name returns the channel name
func (n *Notifier) Name() string {
	return "telegram"
}

// Deliver sends the message text to the user's Telegram chat
func (n *Notifier) Deliver(ctx context.Context, u *user.User, msg notify.Message) error {
	if u.TelegramID == 0 {
		n.log.Debugw("User has no telegram chat, skipping", "user_id", u.ID)
		return nil
	}
	return n.bot.SendMessage(ctx, u.TelegramID, msg.Text)
}
