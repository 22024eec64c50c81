package eligibility

import (
	"context"
	"time"

	"hermes/internal/domain/portfolio"
	"hermes/internal/domain/signal"
	"hermes/internal/domain/user"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// DefaultSuppressionWindow is how long a user who was already shown a
// BUY signal for a token stays excluded from new signals for it.
const DefaultSuppressionWindow = 24 * time.Hour

// Filter computes the set of users a signal applies to. Pure read: safe
// to call repeatedly from the manual-accept path, the notifier job and
// the auto-execution job without altering state.
type Filter struct {
	users             user.Repository
	portfolios        portfolio.Repository
	suppressionWindow time.Duration
	log               *logger.Logger
}

// NewFilter constructs an eligibility filter. A non-positive window
// falls back to the 24h default.
func NewFilter(users user.Repository, portfolios portfolio.Repository, suppressionWindow time.Duration) *Filter {
	if suppressionWindow <= 0 {
		suppressionWindow = DefaultSuppressionWindow
	}
	return &Filter{
		users:             users,
		portfolios:        portfolios,
		suppressionWindow: suppressionWindow,
		log:               logger.Get().With("component", "eligibility_filter"),
	}
}

// FindEligible returns the users who should act on the signal. autoOnly
// restricts BUY eligibility to users opted into auto-execution.
func (f *Filter) FindEligible(ctx context.Context, sig *signal.Signal, autoOnly bool) ([]*user.User, error) {
	if sig == nil {
		return nil, errors.ErrInvalidInput
	}

	switch sig.Type {
	case signal.TypeBuy:
		return f.findBuyEligible(ctx, sig, autoOnly)
	case signal.TypeSell:
		return f.findSellEligible(ctx, sig)
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "signal type %q", sig.Type)
	}
}

// findBuyEligible matches risk level, connected exchange and the
// auto-trade flag, then applies the token suppression window. The
// suppression is a hard exclusion, not a preference.
func (f *Filter) findBuyEligible(ctx context.Context, sig *signal.Signal, autoOnly bool) ([]*user.User, error) {
	candidates, err := f.users.ListByRiskLevel(ctx, sig.RiskLevel, autoOnly)
	if err != nil {
		return nil, errors.Wrap(err, "list users by risk level")
	}

	now := time.Now().UTC()
	eligible := make([]*user.User, 0, len(candidates))
	for _, u := range candidates {
		if u.RecentlySignaled(sig.Token, f.suppressionWindow, now) {
			f.log.Debugw("User suppressed, token signaled recently",
				"user_id", u.ID,
				"token", sig.Token,
			)
			continue
		}
		eligible = append(eligible, u)
	}
	return eligible, nil
}

// findSellEligible matches every connected user currently holding the
// token. Risk level is irrelevant: a user should be told to exit a
// position they hold regardless of declared risk appetite.
func (f *Filter) findSellEligible(ctx context.Context, sig *signal.Signal) ([]*user.User, error) {
	candidates, err := f.users.ListExchangeConnected(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list exchange-connected users")
	}

	eligible := make([]*user.User, 0, len(candidates))
	for _, u := range candidates {
		snap, err := f.portfolios.GetByUser(ctx, u.ID)
		if err != nil {
			// No portfolio record means no position: ineligible,
			// never an error.
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}
			return nil, errors.Wrap(err, "get portfolio")
		}
		if snap.Holds(sig.Token) {
			eligible = append(eligible, u)
		}
	}
	return eligible, nil
}
