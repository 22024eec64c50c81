package portfolio

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Snapshot is a cached view of a user's exchange portfolio, refreshed
// after every trade. It is a best-effort cache, not an authoritative
// ledger: a stale snapshot is tolerated, the trade record is the source
// of truth.
type Snapshot struct {
	UserID           uuid.UUID       `db:"user_id"`
	TotalValue       decimal.Decimal `db:"total_value"`
	FreeCapital      decimal.Decimal `db:"free_capital"`
	AllocatedCapital decimal.Decimal `db:"allocated_capital"`
	Holdings         []Holding       `db:"-"`
	RefreshedAt      time.Time       `db:"refreshed_at"`
}

// Holding is one token position inside a snapshot.
type Holding struct {
	Token         string          `json:"token"`
	Amount        decimal.Decimal `json:"amount"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	Value         decimal.Decimal `json:"value"`
	PnL           decimal.Decimal `json:"pnl"`
	PnLPercentage decimal.Decimal `json:"pnl_percentage"`
}

// Holding returns the holding for a token, or nil.
func (s *Snapshot) Holding(token string) *Holding {
	for i := range s.Holdings {
		if s.Holdings[i].Token == token {
			return &s.Holdings[i]
		}
	}
	return nil
}

// Holds reports whether the snapshot contains a positive amount of the
// token.
func (s *Snapshot) Holds(token string) bool {
	h := s.Holding(token)
	return h != nil && h.Amount.GreaterThan(decimal.Zero)
}

// ComputeHolding derives value and PnL figures for a position. A zero
// average price (unknown cost basis, airdrops, exchange data gaps) yields
// a zero PnL percentage rather than a division error, with PnL equal to
// the full current value.
func ComputeHolding(token string, amount, averagePrice, currentPrice decimal.Decimal) Holding {
	value := amount.Mul(currentPrice)
	cost := amount.Mul(averagePrice)
	pnl := value.Sub(cost)

	pct := decimal.Zero
	if !averagePrice.IsZero() {
		pct = currentPrice.Sub(averagePrice).Div(averagePrice).Mul(hundred)
	}

	return Holding{
		Token:         token,
		Amount:        amount,
		AveragePrice:  averagePrice,
		CurrentPrice:  currentPrice,
		Value:         value,
		PnL:           pnl,
		PnLPercentage: pct,
	}
}
