package autoexec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hermes/internal/adapters/exchange"
	"hermes/internal/adapters/kafka"
	"hermes/internal/domain/cycle"
	"hermes/internal/domain/portfolio"
	"hermes/internal/domain/signal"
	"hermes/internal/domain/trade"
	"hermes/internal/domain/user"
	"hermes/internal/events"
	"hermes/internal/metrics"
	"hermes/internal/services/notify"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// EligibilityFilter computes the users a signal applies to.
type EligibilityFilter interface {
	FindEligible(ctx context.Context, sig *signal.Signal, autoOnly bool) ([]*user.User, error)
}

// Notifier delivers deduplicated notifications.
type Notifier interface {
	Notify(ctx context.Context, u *user.User, notificationType notify.Type, relatedID string, msg notify.Message) (bool, error)
}

// Auditor records executed trades in the append-only audit log.
type Auditor interface {
	Record(ctx context.Context, t *trade.Trade)
}

// Config tunes one engine instance.
type Config struct {
	// BuyAllocation is the fraction of total portfolio value committed
	// per BUY signal
	BuyAllocation decimal.Decimal

	// GatewayTimeout bounds each exchange and persistence call
	GatewayTimeout time.Duration

	// MaxConcurrentUsers bounds the per-signal user worker pool
	MaxConcurrentUsers int
}

// DefaultConfig returns the historical engine defaults.
func DefaultConfig() Config {
	return Config{
		BuyAllocation:      decimal.NewFromFloat(0.10),
		GatewayTimeout:     10 * time.Second,
		MaxConcurrentUsers: 5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BuyAllocation.LessThanOrEqual(decimal.Zero) {
		c.BuyAllocation = d.BuyAllocation
	}
	if c.GatewayTimeout <= 0 {
		c.GatewayTimeout = d.GatewayTimeout
	}
	if c.MaxConcurrentUsers <= 0 {
		c.MaxConcurrentUsers = d.MaxConcurrentUsers
	}
	return c
}

// Engine claims expired signals and executes them for every eligible
// user. The claim's flag flip is the entire signal-level concurrency
// contract: of any number of racing engine runs, exactly one wins each
// signal; the rest see nothing to do.
type Engine struct {
	signals    signal.Repository
	users      user.Repository
	trades     trade.Repository
	portfolios portfolio.Repository
	cycles     *cycle.Service
	filter     EligibilityFilter
	gateway    exchange.Gateway
	notifier   Notifier
	publisher  events.Publisher
	auditor    Auditor
	cfg        Config
	log        *logger.Logger
	now        func() time.Time
}

// NewEngine constructs the auto-execution engine. auditor may be nil.
func NewEngine(
	signals signal.Repository,
	users user.Repository,
	trades trade.Repository,
	portfolios portfolio.Repository,
	cycles *cycle.Service,
	filter EligibilityFilter,
	gateway exchange.Gateway,
	notifier Notifier,
	publisher events.Publisher,
	auditor Auditor,
	cfg Config,
) *Engine {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Engine{
		signals:    signals,
		users:      users,
		trades:     trades,
		portfolios: portfolios,
		cycles:     cycles,
		filter:     filter,
		gateway:    gateway,
		notifier:   notifier,
		publisher:  publisher,
		auditor:    auditor,
		cfg:        cfg.withDefaults(),
		log:        logger.Get().With("component", "autoexec_engine"),
		now:        time.Now,
	}
}

// RunOnce claims every expired, unclaimed signal and processes each for
// its eligible users. Per-signal and per-user failures are recorded in
// the summary, never propagated; only a failure to reach the claim step
// at all is returned as an error.
func (e *Engine) RunOnce(ctx context.Context) (*RunSummary, error) {
	start := e.now()
	summary := &RunSummary{}

	claimed, err := e.signals.ClaimExpired(ctx, start.UTC())
	if err != nil {
		metrics.EngineRuns.WithLabelValues("error").Inc()
		return nil, errors.Wrap(err, "claim expired signals")
	}

	summary.Processed = len(claimed)
	metrics.SignalsClaimed.Add(float64(len(claimed)))

	if len(claimed) == 0 {
		metrics.EngineRuns.WithLabelValues("ok").Inc()
		return summary, nil
	}

	e.log.Infow("Claimed expired signals", "count", len(claimed))

	for _, sig := range claimed {
		// Claimed signals stay claimed even when the run budget is
		// exhausted: a partially processed signal surfaces missed
		// users in details, never a duplicate execution later.
		if ctx.Err() != nil {
			e.log.Warnw("Run budget exhausted, remaining signals deferred claimed",
				"signal_id", sig.ID,
			)
			break
		}
		e.processSignal(ctx, sig, summary)
	}

	metrics.EngineRuns.WithLabelValues("ok").Inc()
	metrics.EngineRunDuration.Observe(e.now().Sub(start).Seconds())

	e.log.Infow("Engine run complete",
		"processed", summary.Processed,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"duration", e.now().Sub(start),
	)
	return summary, nil
}

func (e *Engine) processSignal(ctx context.Context, sig *signal.Signal, summary *RunSummary) {
	e.publish(ctx, kafka.TopicSignalClaimed, sig.ID.String(), events.SignalClaimed{
		SignalID:  sig.ID,
		Type:      sig.Type.String(),
		Token:     sig.Token,
		ClaimedAt: e.now().UTC(),
	})

	eligible, err := e.filter.FindEligible(ctx, sig, true)
	if err != nil {
		e.log.Errorw("Eligibility lookup failed",
			"signal_id", sig.ID,
			"error", err,
		)
		summary.add(Detail{
			SignalID: sig.ID,
			Token:    sig.Token,
			Outcome:  OutcomeFailed,
			Reason:   fmt.Sprintf("eligibility: %v", err),
		})
		return
	}

	if len(eligible) == 0 {
		e.log.Debugw("No eligible users for signal", "signal_id", sig.ID)
		return
	}

	// Users are independent: fan out across a bounded pool. Each user
	// appears at most once per signal and signals run sequentially, so
	// no two goroutines ever touch the same user's cycles.
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		workers = make(chan struct{}, e.cfg.MaxConcurrentUsers)
	)

	for _, u := range eligible {
		wg.Add(1)
		workers <- struct{}{}

		go func(u *user.User) {
			defer wg.Done()
			defer func() { <-workers }()
			defer func() {
				if r := recover(); r != nil {
					e.log.Errorw("User processing panicked",
						"signal_id", sig.ID,
						"user_id", u.ID,
						"panic", r,
					)
					mu.Lock()
					summary.add(Detail{
						SignalID: sig.ID,
						UserID:   u.ID,
						Token:    sig.Token,
						Outcome:  OutcomeFailed,
						Reason:   fmt.Sprintf("panic: %v", r),
					})
					mu.Unlock()
				}
			}()

			detail := e.processUser(ctx, sig, u)
			mu.Lock()
			summary.add(detail)
			mu.Unlock()
		}(u)
	}

	wg.Wait()
}

// processUser executes one signal for one user. Every failure is caught
// here and converted into a Detail so one user can never abort another.
func (e *Engine) processUser(ctx context.Context, sig *signal.Signal, u *user.User) Detail {
	detail := Detail{
		SignalID: sig.ID,
		UserID:   u.ID,
		Token:    sig.Token,
	}

	quantity, openCycle, err := e.tradeQuantity(ctx, sig, u)
	if err != nil {
		if errors.Is(err, errors.ErrNoOpenCycle) {
			// SELL with nothing to close: a normal skip, not a failure
			detail.Outcome = OutcomeSkipped
			detail.Reason = "no open cycle for token"
			return detail
		}
		detail.Outcome = OutcomeFailed
		detail.Reason = err.Error()
		e.notifyFailure(ctx, sig, u, err)
		return detail
	}

	result, err := e.executeTrade(ctx, sig, u, quantity)
	if err != nil {
		e.log.Warnw("Trade execution failed",
			"signal_id", sig.ID,
			"user_id", u.ID,
			"token", sig.Token,
			"error", err,
		)
		metrics.TradesExecuted.WithLabelValues(sig.Type.String(), "failed").Inc()
		detail.Outcome = OutcomeFailed
		detail.Reason = err.Error()
		e.notifyFailure(ctx, sig, u, err)
		e.publish(ctx, kafka.TopicTradeFailed, u.ID.String(), events.TradeFailed{
			UserID:   u.ID,
			SignalID: sig.ID,
			Token:    sig.Token,
			Reason:   err.Error(),
			FailedAt: e.now().UTC(),
		})
		return detail
	}

	status := trade.Status(result.Status)
	if status == "" {
		status = trade.StatusFilled
	}

	t := &trade.Trade{
		ID:           uuid.New(),
		UserID:       u.ID,
		SignalID:     &sig.ID,
		Type:         sig.Type,
		Token:        sig.Token,
		Price:        result.Price,
		Amount:       quantity,
		Status:       status,
		OrderID:      result.OrderID,
		AutoExecuted: true,
		CreatedAt:    e.now().UTC(),
	}

	// Trade before cycle before portfolio before notification: the
	// notification must never reference a trade missing from the ledger.
	if err := e.persist(ctx, func(c context.Context) error {
		return e.trades.Create(c, t)
	}); err != nil {
		detail.Outcome = OutcomeFailed
		detail.Reason = fmt.Sprintf("persist trade: %v", err)
		e.notifyFailure(ctx, sig, u, err)
		return detail
	}

	cyc, err := e.driveCycle(ctx, sig, u, t, openCycle, quantity, result.Price)
	if err != nil {
		detail.Outcome = OutcomeFailed
		detail.TradeID = &t.ID
		detail.Reason = fmt.Sprintf("cycle transition: %v", err)
		e.notifyFailure(ctx, sig, u, err)
		return detail
	}
	t.CycleID = &cyc.ID

	if sig.Type == signal.TypeBuy {
		if err := e.persist(ctx, func(c context.Context) error {
			return e.users.MarkSignaled(c, u.ID, sig.Token, e.now().UTC())
		}); err != nil {
			// Suppression bookkeeping failure is not worth failing the
			// trade over; the user may see the token again early.
			e.log.Warnw("Failed to mark token signaled", "user_id", u.ID, "error", err)
		}
	}

	e.refreshPortfolio(ctx, u)

	if e.auditor != nil {
		e.auditor.Record(ctx, t)
	}

	metrics.TradesExecuted.WithLabelValues(sig.Type.String(), status.String()).Inc()
	e.publish(ctx, kafka.TopicTradeExecuted, u.ID.String(), events.TradeExecuted{
		TradeID:      t.ID,
		UserID:       u.ID,
		SignalID:     t.SignalID,
		CycleID:      t.CycleID,
		Type:         t.Type.String(),
		Token:        t.Token,
		Price:        t.Price,
		Amount:       t.Amount,
		AutoExecuted: true,
		ExecutedAt:   t.CreatedAt,
	})

	e.notifyExecuted(ctx, u, t)

	detail.Outcome = OutcomeExecuted
	detail.TradeID = &t.ID
	return detail
}

// tradeQuantity determines how much to trade. BUY commits a fixed
// fraction of total portfolio value; SELL exits the entire tracked
// position. Returns the open cycle for SELL so the close step does not
// re-fetch it.
func (e *Engine) tradeQuantity(ctx context.Context, sig *signal.Signal, u *user.User) (decimal.Decimal, *cycle.Cycle, error) {
	switch sig.Type {
	case signal.TypeBuy:
		snap, err := e.portfolioValue(ctx, u)
		if err != nil {
			return decimal.Zero, nil, err
		}
		if snap.TotalValue.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero, nil, errors.Wrap(errors.ErrInsufficientBalance, "portfolio has no value")
		}
		qty := snap.TotalValue.Mul(e.cfg.BuyAllocation).Div(sig.Price)
		return qty, nil, nil

	case signal.TypeSell:
		open, err := e.cycles.GetOpen(ctx, u.ID, sig.Token)
		if err != nil {
			return decimal.Zero, nil, err
		}
		return open.Amount, open, nil

	default:
		return decimal.Zero, nil, errors.Wrapf(errors.ErrInvalidInput, "signal type %q", sig.Type)
	}
}

// portfolioValue reads the cached snapshot, falling back to a live
// gateway fetch for users with no cache yet.
func (e *Engine) portfolioValue(ctx context.Context, u *user.User) (*portfolio.Snapshot, error) {
	snap, err := e.portfolios.GetByUser(ctx, u.ID)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, errors.Wrap(err, "get portfolio snapshot")
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.GatewayTimeout)
	defer cancel()

	snap, err = e.gateway.GetPortfolioSnapshot(callCtx, u.ID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch portfolio snapshot")
	}
	return snap, nil
}

func (e *Engine) executeTrade(ctx context.Context, sig *signal.Signal, u *user.User, quantity decimal.Decimal) (*exchange.TradeResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.GatewayTimeout)
	defer cancel()

	return e.gateway.ExecuteTrade(callCtx, u.ID, sig.Token, sig.Type, quantity)
}

// driveCycle opens or closes the cycle for the executed trade and
// backfills the trade's cycle reference.
func (e *Engine) driveCycle(ctx context.Context, sig *signal.Signal, u *user.User, t *trade.Trade, openCycle *cycle.Cycle, quantity, fillPrice decimal.Decimal) (*cycle.Cycle, error) {
	var (
		c   *cycle.Cycle
		err error
	)

	switch sig.Type {
	case signal.TypeBuy:
		c, err = e.cycles.OpenOnBuy(ctx, u.ID, sig.Token, t.ID, fillPrice, quantity)
	case signal.TypeSell:
		c, err = e.cycles.CloseOnFullSell(ctx, openCycle, t.ID, fillPrice, quantity)
	}
	if err != nil {
		return nil, err
	}

	switch {
	case sig.Type == signal.TypeBuy && c.EntryTradeID == t.ID:
		// Anchored to this trade means the buy opened it rather than
		// joining an existing open cycle.
		e.publish(ctx, kafka.TopicCycleOpened, c.ID.String(), events.CycleOpened{
			CycleID:    c.ID,
			UserID:     c.UserID,
			Token:      c.Token,
			EntryPrice: c.EntryPrice,
			Amount:     c.Amount,
			OpenedAt:   c.CreatedAt,
		})
	case sig.Type == signal.TypeSell:
		e.publish(ctx, kafka.TopicCycleClosed, c.ID.String(), events.CycleClosed{
			CycleID:       c.ID,
			UserID:        c.UserID,
			Token:         c.Token,
			ExitPrice:     c.ExitPrice,
			PnL:           c.PnL,
			PnLPercentage: c.PnLPercentage,
			ClosedAt:      time.Now().UTC(),
		})
	}

	if err := e.persist(ctx, func(cc context.Context) error {
		return e.trades.AttachCycle(cc, t.ID, c.ID)
	}); err != nil {
		// Trade and cycle are consistent, only the backref is missing
		e.log.Warnw("Failed to backfill trade cycle reference",
			"trade_id", t.ID,
			"cycle_id", c.ID,
			"error", err,
		)
	}
	return c, nil
}

// refreshPortfolio updates the cached snapshot after a trade. Best
// effort: the trade is the source of truth, a stale cache is tolerated.
func (e *Engine) refreshPortfolio(ctx context.Context, u *user.User) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.GatewayTimeout)
	defer cancel()

	snap, err := e.gateway.GetPortfolioSnapshot(callCtx, u.ID)
	if err != nil {
		e.log.Warnw("Portfolio refresh failed", "user_id", u.ID, "error", err)
		return
	}
	snap.UserID = u.ID

	if err := e.portfolios.Upsert(ctx, snap); err != nil {
		e.log.Warnw("Portfolio snapshot write failed", "user_id", u.ID, "error", err)
	}
}

func (e *Engine) notifyExecuted(ctx context.Context, u *user.User, t *trade.Trade) {
	msg := notify.Message{
		Text: fmt.Sprintf("%s %s %s at %s (auto-executed)",
			t.Type,
			humanize.CommafWithDigits(t.Amount.InexactFloat64(), 6),
			t.Token,
			humanize.CommafWithDigits(t.Price.InexactFloat64(), 2),
		),
		Metadata: map[string]string{
			"trade_id": t.ID.String(),
			"token":    t.Token,
		},
	}

	if _, err := e.notifier.Notify(ctx, u, notify.TypeTrade, t.ID.String(), msg); err != nil {
		e.log.Warnw("Trade notification failed", "user_id", u.ID, "trade_id", t.ID, "error", err)
	}
}

// notifyFailure tells the user their auto-execution failed. Keyed on the
// signal so retries inside the cooldown cannot spam.
func (e *Engine) notifyFailure(ctx context.Context, sig *signal.Signal, u *user.User, cause error) {
	msg := notify.Message{
		Text: fmt.Sprintf("Auto-execution of %s %s failed: %v", sig.Type, sig.Token, cause),
		Metadata: map[string]string{
			"signal_id": sig.ID.String(),
			"token":     sig.Token,
		},
	}

	if _, err := e.notifier.Notify(ctx, u, notify.TypeTrade, sig.ID.String()+":failed", msg); err != nil {
		e.log.Warnw("Failure notification failed", "user_id", u.ID, "error", err)
	}
}

func (e *Engine) persist(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.GatewayTimeout)
	defer cancel()
	return fn(callCtx)
}

func (e *Engine) publish(ctx context.Context, topic, key string, event interface{}) {
	if err := e.publisher.Publish(ctx, topic, key, event); err != nil {
		e.log.Warnw("Event publish failed", "topic", topic, "error", err)
	}
}
