package exchange

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hermes/internal/domain/portfolio"
	"hermes/internal/domain/signal"
)

// Gateway is the unified contract for a user's exchange. One
// implementation per exchange, selected at construction time; call sites
// never branch on an exchange name.
type Gateway interface {
	Name() string

	// GetPrice returns the current quote price of the symbol.
	GetPrice(ctx context.Context, userID uuid.UUID, symbol string) (decimal.Decimal, error)

	// ExecuteTrade places a market order on behalf of the user.
	ExecuteTrade(ctx context.Context, userID uuid.UUID, symbol string, side signal.Type, quantity decimal.Decimal) (*TradeResult, error)

	// GetPortfolioSnapshot fetches the user's current portfolio.
	// Best-effort: callers tolerate failure without rolling back
	// trade state.
	GetPortfolioSnapshot(ctx context.Context, userID uuid.UUID) (*portfolio.Snapshot, error)
}

// TradeResult is the exchange-side outcome of an executed order.
type TradeResult struct {
	OrderID   string
	Price     decimal.Decimal
	Status    string
	Timestamp time.Time
}
