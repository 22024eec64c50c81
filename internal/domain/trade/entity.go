package trade

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hermes/internal/domain/signal"
)

// Trade is an executed order record. Immutable once created except for
// the late-bound CycleID backfill: the trade is persisted before the
// cycle transition so a notification can never reference a trade that
// does not yet exist in the ledger.
type Trade struct {
	ID      uuid.UUID  `db:"id"`
	UserID  uuid.UUID  `db:"user_id"`
	CycleID *uuid.UUID `db:"cycle_id"`

	// SignalID links auto-executed trades back to their signal.
	SignalID *uuid.UUID `db:"signal_id"`

	Type   signal.Type     `db:"type"`
	Token  string          `db:"token"`
	Price  decimal.Decimal `db:"price"`
	Amount decimal.Decimal `db:"amount"`
	Status Status          `db:"status"`

	// OrderID is the exchange-side order identifier.
	OrderID string `db:"order_id"`

	AutoExecuted bool      `db:"auto_executed"`
	CreatedAt    time.Time `db:"created_at"`
}

// Status defines trade execution status
type Status string

const (
	StatusFilled   Status = "filled"
	StatusPartial  Status = "partial"
	StatusRejected Status = "rejected"
)

// String returns string representation
func (s Status) String() string {
	return string(s)
}
