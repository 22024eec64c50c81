package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Bot wraps the Telegram Bot API for outbound notifications. Rate
// limited to stay inside Telegram's global send budget.
type Bot struct {
	api         *tgbotapi.BotAPI
	rateLimiter *rate.Limiter
	log         *logger.Logger
}

// NewBot creates a new Telegram bot instance
func NewBot(token string) (*Bot, error) {
	if token == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "telegram bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "create telegram bot")
	}

	return &Bot{
		api: api,
		// Telegram allows ~30 messages/second with bursts
		rateLimiter: rate.NewLimiter(rate.Limit(20), 30),
		log:         logger.Get().With("component", "telegram_bot"),
	}, nil
}

// SendMessage sends a plain-text message to a chat
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := b.rateLimiter.Wait(ctx); err != nil {
		return errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		return errors.Wrap(err, "send telegram message")
	}
	return nil
}
