package cycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

var hundred = decimal.NewFromInt(100)

// Service is the cycle state machine. All transitions funnel through it
// so the one-open-cycle-per-(user, token) invariant has a single owner.
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService constructs the cycle state machine.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, log: logger.Get().With("component", "cycle_state_machine")}
}

// OpenOnBuy creates a cycle in state entry for a BUY trade. If an open
// cycle already exists for (user, token) it is returned unchanged and no
// second cycle is created.
func (s *Service) OpenOnBuy(ctx context.Context, userID uuid.UUID, token string, entryTradeID uuid.UUID, entryPrice, amount decimal.Decimal) (*Cycle, error) {
	if userID == uuid.Nil || entryTradeID == uuid.Nil || token == "" {
		return nil, errors.ErrInvalidInput
	}
	if entryPrice.LessThanOrEqual(decimal.Zero) || amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Wrap(errors.ErrInvalidInput, "entry price and amount must be positive")
	}

	existing, err := s.repo.GetOpenByUserToken(ctx, userID, token)
	if err == nil {
		s.log.Warnw("BUY with cycle already open, keeping existing",
			"user_id", userID,
			"token", token,
			"cycle_id", existing.ID,
		)
		return existing, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, errors.Wrap(err, "check open cycle")
	}

	now := time.Now().UTC()
	c := &Cycle{
		ID:           uuid.New(),
		UserID:       userID,
		Token:        token,
		State:        StateEntry,
		EntryPrice:   entryPrice,
		Amount:       amount,
		EntryTradeID: entryTradeID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		// Lost a race to a concurrent BUY for the same (user, token):
		// the unique index rejected the insert, return the winner.
		if errors.Is(err, errors.ErrAlreadyExists) {
			return s.repo.GetOpenByUserToken(ctx, userID, token)
		}
		return nil, errors.Wrap(err, "create cycle")
	}

	s.log.Infow("Cycle opened",
		"cycle_id", c.ID,
		"user_id", userID,
		"token", token,
		"entry_price", entryPrice,
	)
	return c, nil
}

// CloseOnFullSell exits an open cycle, fixing exit price and realized
// PnL. Calling it on a cycle that is not open is an error.
func (s *Service) CloseOnFullSell(ctx context.Context, c *Cycle, exitTradeID uuid.UUID, exitPrice, amount decimal.Decimal) (*Cycle, error) {
	if c == nil || exitTradeID == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}
	if !c.State.IsOpen() {
		return nil, errors.Wrapf(errors.ErrCycleClosed, "cycle %s in state %s", c.ID, c.State)
	}
	if exitPrice.LessThan(decimal.Zero) || amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Wrap(errors.ErrInvalidInput, "exit price and amount must be valid")
	}

	c.State = StateExit
	c.ExitPrice = exitPrice
	c.ExitTradeID = &exitTradeID
	c.PnL = exitPrice.Sub(c.EntryPrice).Mul(amount)
	c.PnLPercentage = pnlPercentage(c.EntryPrice, exitPrice)
	c.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, errors.Wrap(err, "close cycle")
	}

	s.log.Infow("Cycle closed",
		"cycle_id", c.ID,
		"user_id", c.UserID,
		"token", c.Token,
		"pnl", c.PnL,
		"pnl_pct", c.PnLPercentage,
	)
	return c, nil
}

// RecordPartialSell appends a partial exit to an open cycle. State is
// unchanged: partial sells never close a cycle.
func (s *Service) RecordPartialSell(ctx context.Context, c *Cycle, tradeID uuid.UUID, percentage, price, amount decimal.Decimal) (*Cycle, error) {
	if c == nil || tradeID == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}
	if !c.State.IsOpen() {
		return nil, errors.Wrapf(errors.ErrCycleClosed, "cycle %s in state %s", c.ID, c.State)
	}
	if percentage.LessThanOrEqual(decimal.Zero) || percentage.GreaterThan(hundred) {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "percentage %s outside (0, 100]", percentage)
	}

	c.PartialExits = append(c.PartialExits, PartialExit{
		TradeID:    tradeID,
		Percentage: percentage,
		Price:      price,
		Amount:     amount,
		Timestamp:  time.Now().UTC(),
	})
	c.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, errors.Wrap(err, "record partial sell")
	}

	s.log.Infow("Partial sell recorded",
		"cycle_id", c.ID,
		"percentage", percentage,
		"amount", amount,
	)
	return c, nil
}

// MarkHold moves an entry cycle to hold. Informational only: no
// transition guard depends on hold.
func (s *Service) MarkHold(ctx context.Context, c *Cycle) error {
	if c == nil {
		return errors.ErrInvalidInput
	}
	if c.State != StateEntry {
		return errors.Wrapf(errors.ErrInvalidInput, "cannot hold cycle in state %s", c.State)
	}
	c.State = StateHold
	c.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, c); err != nil {
		return errors.Wrap(err, "mark hold")
	}
	return nil
}

// GetOpen returns the open cycle for (user, token), or ErrNoOpenCycle.
func (s *Service) GetOpen(ctx context.Context, userID uuid.UUID, token string) (*Cycle, error) {
	c, err := s.repo.GetOpenByUserToken(ctx, userID, token)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.Wrapf(errors.ErrNoOpenCycle, "user %s token %s", userID, token)
		}
		return nil, errors.Wrap(err, "get open cycle")
	}
	return c, nil
}

// pnlPercentage computes (exit - entry) / entry * 100 in decimal. A zero
// entry price yields zero rather than a division error.
func pnlPercentage(entry, exit decimal.Decimal) decimal.Decimal {
	if entry.IsZero() {
		return decimal.Zero
	}
	return exit.Sub(entry).Div(entry).Mul(hundred)
}
