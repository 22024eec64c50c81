package notify

import (
	"context"

	"hermes/internal/domain/user"
	"hermes/internal/metrics"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Notifier combines the dedup registry with the delivery channels. All
// engine-facing notification traffic goes through it.
type Notifier struct {
	dedup   Deduplicator
	channel Channel
	log     *logger.Logger
}

// NewNotifier constructs a notifier
func NewNotifier(dedup Deduplicator, channel Channel) *Notifier {
	return &Notifier{
		dedup:   dedup,
		channel: channel,
		log:     logger.Get().With("component", "notifier"),
	}
}

// Notify delivers a notification unless the dedup registry suppresses
// it. Returns true when the message was handed to a channel.
func (n *Notifier) Notify(ctx context.Context, u *user.User, notificationType Type, relatedID string, msg Message) (bool, error) {
	if u == nil {
		return false, errors.ErrInvalidInput
	}

	ok, err := n.dedup.ShouldNotify(ctx, u.ID, notificationType, relatedID)
	if err != nil {
		return false, errors.Wrap(err, "dedup check")
	}
	if !ok {
		metrics.NotificationsSuppressed.Inc()
		n.log.Debugw("Notification suppressed",
			"user_id", u.ID,
			"type", notificationType,
			"related_id", relatedID,
		)
		return false, nil
	}

	if err := n.channel.Deliver(ctx, u, msg); err != nil {
		metrics.NotificationsFailed.Inc()
		return false, errors.Wrap(err, "deliver notification")
	}

	metrics.NotificationsSent.WithLabelValues(notificationType.String()).Inc()
	return true, nil
}
