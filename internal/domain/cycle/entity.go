package cycle

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cycle tracks the full lifecycle of one position in one token for one
// user, from entry to exit. At most one cycle per (user, token) may be
// open at any time; a new cycle begins the next time the token is bought
// after the previous cycle exits.
type Cycle struct {
	ID     uuid.UUID `db:"id"`
	UserID uuid.UUID `db:"user_id"`
	Token  string    `db:"token"`
	State  State     `db:"state"`

	EntryPrice decimal.Decimal `db:"entry_price"`
	ExitPrice  decimal.Decimal `db:"exit_price"`
	Amount     decimal.Decimal `db:"amount"`

	EntryTradeID uuid.UUID  `db:"entry_trade_id"`
	ExitTradeID  *uuid.UUID `db:"exit_trade_id"`

	PnL           decimal.Decimal `db:"pnl"`
	PnLPercentage decimal.Decimal `db:"pnl_percentage"`

	// PartialExits records sells that reduced the position without
	// closing it. Stored as JSONB.
	PartialExits []PartialExit `db:"-"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// PartialExit records one partial sell inside an open cycle.
type PartialExit struct {
	TradeID    uuid.UUID       `json:"trade_id"`
	Percentage decimal.Decimal `json:"percentage"`
	Price      decimal.Decimal `json:"price"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  time.Time       `json:"timestamp"`
}

// State defines cycle lifecycle state
type State string

const (
	StateEntry State = "entry"
	StateHold  State = "hold"
	StateExit  State = "exit"
)

// Valid checks if cycle state is valid
func (s State) Valid() bool {
	switch s {
	case StateEntry, StateHold, StateExit:
		return true
	}
	return false
}

// String returns string representation
func (s State) String() string {
	return string(s)
}

// IsOpen reports whether the cycle can still absorb sells. hold is
// informational only: the open/closed distinction is the sole guard.
func (s State) IsOpen() bool {
	return s == StateEntry || s == StateHold
}
