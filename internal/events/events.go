package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Publisher abstracts the event stream so the engine can be tested
// without a broker. The Kafka producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Noop discards events. Used when Kafka is not configured.
type Noop struct{}

// Publish discards the event
func (Noop) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	return nil
}

// SignalClaimed is emitted once per signal won by an execution run.
type SignalClaimed struct {
	SignalID  uuid.UUID `json:"signal_id"`
	Type      string    `json:"type"`
	Token     string    `json:"token"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// TradeExecuted is emitted after a trade is persisted and its cycle
// transition has completed.
type TradeExecuted struct {
	TradeID      uuid.UUID       `json:"trade_id"`
	UserID       uuid.UUID       `json:"user_id"`
	SignalID     *uuid.UUID      `json:"signal_id,omitempty"`
	CycleID      *uuid.UUID      `json:"cycle_id,omitempty"`
	Type         string          `json:"type"`
	Token        string          `json:"token"`
	Price        decimal.Decimal `json:"price"`
	Amount       decimal.Decimal `json:"amount"`
	AutoExecuted bool            `json:"auto_executed"`
	ExecutedAt   time.Time       `json:"executed_at"`
}

// CycleOpened is emitted when a buy starts a new position cycle.
type CycleOpened struct {
	CycleID    uuid.UUID       `json:"cycle_id"`
	UserID     uuid.UUID       `json:"user_id"`
	Token      string          `json:"token"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Amount     decimal.Decimal `json:"amount"`
	OpenedAt   time.Time       `json:"opened_at"`
}

// CycleClosed is emitted when a full sell exits the cycle.
type CycleClosed struct {
	CycleID       uuid.UUID       `json:"cycle_id"`
	UserID        uuid.UUID       `json:"user_id"`
	Token         string          `json:"token"`
	ExitPrice     decimal.Decimal `json:"exit_price"`
	PnL           decimal.Decimal `json:"pnl"`
	PnLPercentage decimal.Decimal `json:"pnl_percentage"`
	ClosedAt      time.Time       `json:"closed_at"`
}

// TradeFailed is emitted when a per-user execution attempt fails.
type TradeFailed struct {
	UserID   uuid.UUID `json:"user_id"`
	SignalID uuid.UUID `json:"signal_id"`
	Token    string    `json:"token"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}
