package consumers

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"hermes/internal/adapters/kafka"
	"hermes/internal/domain/signal"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// SignalRegistrar is the slice of the signal service the consumer needs.
type SignalRegistrar interface {
	Create(ctx context.Context, params signal.CreateParams) (*signal.Signal, error)
}

// SignalEvent is the wire format of an inbound signal registration,
// published by the upstream signal generation pipeline.
type SignalEvent struct {
	Type      string          `json:"type"`
	Token     string          `json:"token"`
	Price     decimal.Decimal `json:"price"`
	RiskLevel string          `json:"risk_level"`

	// WindowSeconds is the decision window length. Zero falls back to
	// the consumer default.
	WindowSeconds int `json:"window_seconds,omitempty"`
}

// DefaultDecisionWindow is applied when the event carries no window.
const DefaultDecisionWindow = 15 * time.Minute

// SignalConsumer ingests signal registrations from the event stream and
// registers them in the lifecycle store.
type SignalConsumer struct {
	consumer *kafka.Consumer
	signals  SignalRegistrar
	log      *logger.Logger
}

// NewSignalConsumer creates a new signal registration consumer
func NewSignalConsumer(consumer *kafka.Consumer, signals SignalRegistrar) *SignalConsumer {
	return &SignalConsumer{
		consumer: consumer,
		signals:  signals,
		log:      logger.Get().With("component", "signal_consumer"),
	}
}

// Start consumes until the context is cancelled
func (c *SignalConsumer) Start(ctx context.Context) error {
	defer func() {
		if err := c.consumer.Close(); err != nil {
			c.log.Errorw("Failed to close signal consumer", "error", err)
		}
	}()

	err := c.consumer.Consume(ctx, c.handleMessage)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *SignalConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var event SignalEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// Malformed payloads are dropped, not retried
		c.log.Warnw("Dropping malformed signal event",
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}

	sig, err := c.signals.Create(ctx, toCreateParams(event))
	if err != nil {
		if errors.Is(err, errors.ErrInvalidInput) {
			c.log.Warnw("Dropping invalid signal event",
				"offset", msg.Offset,
				"token", event.Token,
				"error", err,
			)
			return nil
		}
		return errors.Wrap(err, "register signal")
	}

	c.log.Infow("Signal ingested",
		"signal_id", sig.ID,
		"type", sig.Type,
		"token", sig.Token,
	)
	return nil
}

func toCreateParams(event SignalEvent) signal.CreateParams {
	window := DefaultDecisionWindow
	if event.WindowSeconds > 0 {
		window = time.Duration(event.WindowSeconds) * time.Second
	}
	return signal.CreateParams{
		Type:      signal.Type(event.Type),
		Token:     event.Token,
		Price:     event.Price,
		RiskLevel: signal.RiskLevel(event.RiskLevel),
		Window:    window,
	}
}
