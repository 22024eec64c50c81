package exchange

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"hermes/internal/domain/portfolio"
	"hermes/internal/domain/signal"
	"hermes/pkg/errors"
)

// RateLimited wraps a Gateway with a token bucket so engine runs cannot
// exceed the exchange API budget.
type RateLimited struct {
	inner   Gateway
	limiter *rate.Limiter
}

// NewRateLimited wraps gw with a per-minute request budget. Burst is 10%
// of the per-minute limit, minimum 1.
func NewRateLimited(gw Gateway, requestsPerMinute int) *RateLimited {
	rps := float64(requestsPerMinute) / 60.0
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		inner:   gw,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Name returns the wrapped gateway name
func (r *RateLimited) Name() string {
	return r.inner.Name()
}

// GetPrice waits for rate-limit clearance then delegates.
func (r *RateLimited) GetPrice(ctx context.Context, userID uuid.UUID, symbol string) (decimal.Decimal, error) {
	if err := r.wait(ctx); err != nil {
		return decimal.Zero, err
	}
	return r.inner.GetPrice(ctx, userID, symbol)
}

// ExecuteTrade waits for rate-limit clearance then delegates.
func (r *RateLimited) ExecuteTrade(ctx context.Context, userID uuid.UUID, symbol string, side signal.Type, quantity decimal.Decimal) (*TradeResult, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.ExecuteTrade(ctx, userID, symbol, side, quantity)
}

// GetPortfolioSnapshot waits for rate-limit clearance then delegates.
func (r *RateLimited) GetPortfolioSnapshot(ctx context.Context, userID uuid.UUID) (*portfolio.Snapshot, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.GetPortfolioSnapshot(ctx, userID)
}

func (r *RateLimited) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}
	return nil
}
