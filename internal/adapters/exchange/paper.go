package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hermes/internal/domain/portfolio"
	"hermes/internal/domain/signal"
	"hermes/pkg/logger"
)

// PaperGateway simulates an exchange in process. Used in development mode
// and tests: fills every order at the book price and tracks per-user
// balances so portfolio snapshots stay consistent with executed trades.
type PaperGateway struct {
	mu       sync.Mutex
	prices   map[string]decimal.Decimal
	accounts map[uuid.UUID]*paperAccount
	capital  decimal.Decimal
	log      *logger.Logger
}

type paperAccount struct {
	free     decimal.Decimal
	holdings map[string]*paperHolding
}

type paperHolding struct {
	amount       decimal.Decimal
	averagePrice decimal.Decimal
}

// NewPaperGateway creates a simulated gateway. Every user starts with
// startingCapital of free quote currency.
func NewPaperGateway(prices map[string]decimal.Decimal, startingCapital decimal.Decimal) *PaperGateway {
	book := make(map[string]decimal.Decimal, len(prices))
	for sym, p := range prices {
		book[sym] = p
	}
	return &PaperGateway{
		prices:   book,
		accounts: make(map[uuid.UUID]*paperAccount),
		capital:  startingCapital,
		log:      logger.Get().With("component", "paper_gateway"),
	}
}

// Name returns the gateway name
func (g *PaperGateway) Name() string {
	return "paper"
}

// SetPrice updates the simulated book price for a symbol.
func (g *PaperGateway) SetPrice(symbol string, price decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prices[symbol] = price
}

// GetPrice returns the simulated book price.
func (g *PaperGateway) GetPrice(ctx context.Context, userID uuid.UUID, symbol string) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	price, ok := g.prices[symbol]
	if !ok {
		return decimal.Zero, NewGatewayError(CodeInvalidSymbol, fmt.Sprintf("unknown symbol %s", symbol), nil)
	}
	return price, nil
}

// ExecuteTrade fills a market order at the book price.
func (g *PaperGateway) ExecuteTrade(ctx context.Context, userID uuid.UUID, symbol string, side signal.Type, quantity decimal.Decimal) (*TradeResult, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, NewGatewayError(CodeRejected, "quantity must be positive", nil)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	price, ok := g.prices[symbol]
	if !ok {
		return nil, NewGatewayError(CodeInvalidSymbol, fmt.Sprintf("unknown symbol %s", symbol), nil)
	}

	acct := g.account(userID)
	cost := price.Mul(quantity)

	switch side {
	case signal.TypeBuy:
		if acct.free.LessThan(cost) {
			return nil, NewGatewayError(CodeInsufficientBalance,
				fmt.Sprintf("need %s, have %s", cost, acct.free), nil)
		}
		acct.free = acct.free.Sub(cost)

		h, ok := acct.holdings[symbol]
		if !ok {
			acct.holdings[symbol] = &paperHolding{amount: quantity, averagePrice: price}
		} else {
			total := h.amount.Add(quantity)
			h.averagePrice = h.averagePrice.Mul(h.amount).Add(cost).Div(total)
			h.amount = total
		}

	case signal.TypeSell:
		h, ok := acct.holdings[symbol]
		if !ok || h.amount.LessThan(quantity) {
			return nil, NewGatewayError(CodeInsufficientBalance,
				fmt.Sprintf("no %s position to sell", symbol), nil)
		}
		h.amount = h.amount.Sub(quantity)
		acct.free = acct.free.Add(cost)
		if h.amount.IsZero() {
			delete(acct.holdings, symbol)
		}

	default:
		return nil, NewGatewayError(CodeRejected, fmt.Sprintf("unsupported side %s", side), nil)
	}

	g.log.Debugw("Paper trade filled",
		"user_id", userID,
		"symbol", symbol,
		"side", side,
		"quantity", quantity,
		"price", price,
	)

	return &TradeResult{
		OrderID:   "paper-" + uuid.NewString(),
		Price:     price,
		Status:    "filled",
		Timestamp: time.Now().UTC(),
	}, nil
}

// GetPortfolioSnapshot builds a snapshot from the simulated account.
func (g *PaperGateway) GetPortfolioSnapshot(ctx context.Context, userID uuid.UUID) (*portfolio.Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	acct := g.account(userID)

	snap := &portfolio.Snapshot{
		UserID:      userID,
		FreeCapital: acct.free,
		RefreshedAt: time.Now().UTC(),
	}

	allocated := decimal.Zero
	for sym, h := range acct.holdings {
		current := g.prices[sym]
		holding := portfolio.ComputeHolding(sym, h.amount, h.averagePrice, current)
		snap.Holdings = append(snap.Holdings, holding)
		allocated = allocated.Add(holding.Value)
	}

	snap.AllocatedCapital = allocated
	snap.TotalValue = acct.free.Add(allocated)
	return snap, nil
}

func (g *PaperGateway) account(userID uuid.UUID) *paperAccount {
	acct, ok := g.accounts[userID]
	if !ok {
		acct = &paperAccount{
			free:     g.capital,
			holdings: make(map[string]*paperHolding),
		}
		g.accounts[userID] = acct
	}
	return acct
}
