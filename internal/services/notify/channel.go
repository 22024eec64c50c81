package notify

import (
	"context"

	"hermes/internal/domain/user"
	"hermes/pkg/logger"
)

// Message is a rendered notification ready for delivery.
type Message struct {
	Text     string
	Metadata map[string]string
}

// Channel delivers a message to a user over one medium.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, u *user.User, msg Message) error
}

// LogChannel writes notifications to the application log. Fallback for
// environments without a real delivery channel.
type LogChannel struct {
	log *logger.Logger
}

// NewLogChannel creates a log-backed channel
func NewLogChannel() *LogChannel {
	return &LogChannel{log: logger.Get().With("component", "log_channel")}
}

// Name returns the channel name
func (c *LogChannel) Name() string {
	return "log"
}

// Deliver logs the message instead of sending it
func (c *LogChannel) Deliver(ctx context.Context, u *user.User, msg Message) error {
	c.log.Infow("Notification", "user_id", u.ID, "text", msg.Text)
	return nil
}

// MultiChannel fans a message out to several channels. Partial failure
// is tolerated: delivery counts as success when at least one channel
// accepted the message.
type MultiChannel struct {
	channels []Channel
	log      *logger.Logger
}

// NewMultiChannel creates a fanning-out channel
func NewMultiChannel(channels ...Channel) *MultiChannel {
	return &MultiChannel{
		channels: channels,
		log:      logger.Get().With("component", "notification_channels"),
	}
}

// Name returns the channel name
func (m *MultiChannel) Name() string {
	return "multi"
}

// Deliver sends to every channel, returning nil if any succeeded.
func (m *MultiChannel) Deliver(ctx context.Context, u *user.User, msg Message) error {
	var lastErr error
	delivered := false

	for _, ch := range m.channels {
		if err := ch.Deliver(ctx, u, msg); err != nil {
			m.log.Warnw("Channel delivery failed",
				"channel", ch.Name(),
				"user_id", u.ID,
				"error", err,
			)
			lastErr = err
			continue
		}
		delivered = true
	}

	if delivered || lastErr == nil {
		return nil
	}
	return lastErr
}
