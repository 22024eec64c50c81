package autoexec

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/adapters/exchange"
	"hermes/internal/domain/cycle"
	"hermes/internal/domain/portfolio"
	"hermes/internal/domain/signal"
	"hermes/internal/domain/trade"
	"hermes/internal/domain/user"
	"hermes/internal/services/notify"
	"hermes/pkg/errors"
)

// --- fakes -----------------------------------------------------------------

type fakeSignalRepo struct {
	signal.Repository
	mu      sync.Mutex
	signals []*signal.Signal
	failure error
}

func (r *fakeSignalRepo) ClaimExpired(ctx context.Context, now time.Time) ([]*signal.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failure != nil {
		return nil, r.failure
	}
	var claimed []*signal.Signal
	for _, s := range r.signals {
		if !s.AutoExecuted && s.Expired(now) {
			s.AutoExecuted = true
			cp := *s
			claimed = append(claimed, &cp)
		}
	}
	return claimed, nil
}

type fakeUserRepo struct {
	user.Repository
	mu    sync.Mutex
	marks map[uuid.UUID][]string
}

func (r *fakeUserRepo) MarkSignaled(ctx context.Context, userID uuid.UUID, token string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.marks == nil {
		r.marks = make(map[uuid.UUID][]string)
	}
	r.marks[userID] = append(r.marks[userID], token)
	return nil
}

func (r *fakeUserRepo) marked(userID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.marks[userID]
}

type fakeTradeRepo struct {
	trade.Repository
	mu     sync.Mutex
	trades []*trade.Trade
}

func (r *fakeTradeRepo) Create(ctx context.Context, t *trade.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.trades = append(r.trades, &cp)
	return nil
}

func (r *fakeTradeRepo) AttachCycle(ctx context.Context, tradeID, cycleID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.trades {
		if t.ID == tradeID {
			t.CycleID = &cycleID
		}
	}
	return nil
}

func (r *fakeTradeRepo) all() []*trade.Trade {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*trade.Trade, len(r.trades))
	copy(out, r.trades)
	return out
}

type fakePortfolioRepo struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID]*portfolio.Snapshot
}

func (r *fakePortfolioRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*portfolio.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snapshots[userID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *snap
	return &cp, nil
}

func (r *fakePortfolioRepo) Upsert(ctx context.Context, s *portfolio.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshots == nil {
		r.snapshots = make(map[uuid.UUID]*portfolio.Snapshot)
	}
	cp := *s
	r.snapshots[s.UserID] = &cp
	return nil
}

type memCycleRepo struct {
	mu     sync.Mutex
	cycles map[uuid.UUID]*cycle.Cycle
}

func newMemCycleRepo() *memCycleRepo {
	return &memCycleRepo{cycles: make(map[uuid.UUID]*cycle.Cycle)}
}

func (r *memCycleRepo) Create(ctx context.Context, c *cycle.Cycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.cycles {
		if existing.UserID == c.UserID && existing.Token == c.Token && existing.State.IsOpen() {
			return errors.ErrAlreadyExists
		}
	}
	cp := *c
	r.cycles[c.ID] = &cp
	return nil
}

func (r *memCycleRepo) GetByID(ctx context.Context, id uuid.UUID) (*cycle.Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cycles[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCycleRepo) GetOpenByUserToken(ctx context.Context, userID uuid.UUID, token string) (*cycle.Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cycles {
		if c.UserID == userID && c.Token == token && c.State.IsOpen() {
			cp := *c
			return &cp, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (r *memCycleRepo) GetOpenByUser(ctx context.Context, userID uuid.UUID) ([]*cycle.Cycle, error) {
	return nil, nil
}

func (r *memCycleRepo) Update(ctx context.Context, c *cycle.Cycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.cycles[c.ID] = &cp
	return nil
}

type fakeFilter struct {
	users []*user.User
	err   error
}

func (f *fakeFilter) FindEligible(ctx context.Context, sig *signal.Signal, autoOnly bool) ([]*user.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users, nil
}

type fakeGateway struct {
	mu        sync.Mutex
	failFor   map[uuid.UUID]error
	snapshots map[uuid.UUID]*portfolio.Snapshot
	executed  int
	status    string
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) GetPrice(ctx context.Context, userID uuid.UUID, symbol string) (decimal.Decimal, error) {
	return decimal.Zero, errors.ErrInvalidSymbol
}

func (g *fakeGateway) ExecuteTrade(ctx context.Context, userID uuid.UUID, symbol string, side signal.Type, quantity decimal.Decimal) (*exchange.TradeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failFor[userID]; err != nil {
		return nil, err
	}
	g.executed++
	status := g.status
	if status == "" {
		status = "filled"
	}
	return &exchange.TradeResult{
		OrderID:   uuid.NewString(),
		Price:     decimal.NewFromInt(3500),
		Status:    status,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (g *fakeGateway) GetPortfolioSnapshot(ctx context.Context, userID uuid.UUID) (*portfolio.Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if snap, ok := g.snapshots[userID]; ok {
		cp := *snap
		return &cp, nil
	}
	return &portfolio.Snapshot{UserID: userID, TotalValue: decimal.NewFromInt(10000)}, nil
}

func (g *fakeGateway) executions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.executed
}

type recordingChannel struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (c *recordingChannel) Name() string { return "recording" }

func (c *recordingChannel) Deliver(ctx context.Context, u *user.User, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// --- harness ---------------------------------------------------------------

type harness struct {
	engine     *Engine
	signals    *fakeSignalRepo
	users      *fakeUserRepo
	trades     *fakeTradeRepo
	portfolios *fakePortfolioRepo
	cycleRepo  *memCycleRepo
	cycles     *cycle.Service
	gateway    *fakeGateway
	channel    *recordingChannel
}

func newHarness(eligible []*user.User, sigs ...*signal.Signal) *harness {
	h := &harness{
		signals:    &fakeSignalRepo{signals: sigs},
		users:      &fakeUserRepo{},
		trades:     &fakeTradeRepo{},
		portfolios: &fakePortfolioRepo{snapshots: make(map[uuid.UUID]*portfolio.Snapshot)},
		cycleRepo:  newMemCycleRepo(),
		gateway:    &fakeGateway{failFor: make(map[uuid.UUID]error)},
		channel:    &recordingChannel{},
	}
	h.cycles = cycle.NewService(h.cycleRepo)

	for _, u := range eligible {
		h.portfolios.snapshots[u.ID] = &portfolio.Snapshot{
			UserID:     u.ID,
			TotalValue: decimal.NewFromInt(10000),
		}
	}

	h.engine = NewEngine(
		h.signals,
		h.users,
		h.trades,
		h.portfolios,
		h.cycles,
		&fakeFilter{users: eligible},
		h.gateway,
		notify.NewNotifier(notify.NewMemoryDeduplicator(0), h.channel),
		nil,
		nil,
		Config{
			BuyAllocation:      decimal.NewFromFloat(0.10),
			GatewayTimeout:     time.Second,
			MaxConcurrentUsers: 4,
		},
	)
	return h
}

func expiredBuy(token string) *signal.Signal {
	now := time.Now().UTC()
	return &signal.Signal{
		ID:        uuid.New(),
		Type:      signal.TypeBuy,
		Token:     token,
		Price:     decimal.NewFromInt(3500),
		RiskLevel: signal.RiskMedium,
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(-time.Minute),
	}
}

func expiredSell(token string) *signal.Signal {
	s := expiredBuy(token)
	s.Type = signal.TypeSell
	return s
}

func autoUser() *user.User {
	return &user.User{
		ID:                uuid.New(),
		RiskLevel:         signal.RiskMedium,
		ExchangeConnected: true,
		AutoTradeEnabled:  true,
		IsActive:          true,
	}
}

// --- tests -----------------------------------------------------------------

func TestRunOnce_ExecutesBuyForEligibleUser(t *testing.T) {
	u := autoUser()
	h := newHarness([]*user.User{u}, expiredBuy("ETH"))

	summary, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 0, summary.Failed)

	trades := h.trades.all()
	require.Len(t, trades, 1)
	tr := trades[0]
	assert.Equal(t, signal.TypeBuy, tr.Type)
	assert.Equal(t, "ETH", tr.Token)
	assert.True(t, tr.AutoExecuted)
	assert.Equal(t, trade.StatusFilled, tr.Status)
	require.NotNil(t, tr.CycleID)

	// 10000 * 0.10 / 3500
	expectedQty := decimal.NewFromInt(1000).Div(decimal.NewFromInt(3500))
	assert.True(t, tr.Amount.Equal(expectedQty), "qty = %s", tr.Amount)

	// cycle opened in entry state, anchored to the trade both ways
	c, err := h.cycleRepo.GetOpenByUserToken(context.Background(), u.ID, "ETH")
	require.NoError(t, err)
	assert.Equal(t, cycle.StateEntry, c.State)
	assert.Equal(t, tr.ID, c.EntryTradeID)
	assert.Equal(t, c.ID, *tr.CycleID)

	// exactly one notification
	assert.Equal(t, 1, h.channel.count())

	// token marked for suppression
	assert.Equal(t, []string{"ETH"}, h.users.marked(u.ID))
}

func TestRunOnce_RecordsGatewayStatus(t *testing.T) {
	u := autoUser()
	h := newHarness([]*user.User{u}, expiredBuy("ETH"))
	h.gateway.status = "partial"

	summary, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Successful)

	trades := h.trades.all()
	require.Len(t, trades, 1)
	assert.Equal(t, trade.StatusPartial, trades[0].Status)
}

func TestRunOnce_SecondRunIsNoOp(t *testing.T) {
	u := autoUser()
	h := newHarness([]*user.User{u}, expiredBuy("ETH"))
	ctx := context.Background()

	first, err := h.engine.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, first.Successful)

	second, err := h.engine.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, second.Processed, "claimed signals are never re-claimed")
	assert.Len(t, h.trades.all(), 1)
	assert.Equal(t, 1, h.channel.count())
}

func TestRunOnce_ConcurrentRunsExecuteOnce(t *testing.T) {
	u := autoUser()
	h := newHarness([]*user.User{u}, expiredBuy("ETH"))
	ctx := context.Background()

	const n = 6
	summaries := make([]*RunSummary, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			summaries[i], errs[i] = h.engine.RunOnce(ctx)
		}(i)
	}
	wg.Wait()

	executed := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		executed += summaries[i].Successful
	}

	assert.Equal(t, 1, executed, "exactly one run wins the claim")
	assert.Len(t, h.trades.all(), 1)
	assert.Equal(t, 1, h.gateway.executions())
}

func TestRunOnce_SellClosesOpenCycle(t *testing.T) {
	u := autoUser()
	h := newHarness([]*user.User{u}, expiredSell("ETH"))
	ctx := context.Background()

	// Pre-existing position from an earlier buy
	open, err := h.cycles.OpenOnBuy(ctx, u.ID, "ETH", uuid.New(),
		decimal.NewFromInt(3000), decimal.NewFromInt(2))
	require.NoError(t, err)

	summary, err := h.engine.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Successful)

	trades := h.trades.all()
	require.Len(t, trades, 1)
	assert.Equal(t, signal.TypeSell, trades[0].Type)
	assert.True(t, trades[0].Amount.Equal(decimal.NewFromInt(2)), "sell exits the full position")

	closed, err := h.cycleRepo.GetByID(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, cycle.StateExit, closed.State)
	// (3500 - 3000) * 2 = 1000
	assert.True(t, closed.PnL.Equal(decimal.NewFromInt(1000)), "pnl = %s", closed.PnL)

	// SELL never feeds the suppression record
	assert.Empty(t, h.users.marked(u.ID))
}

func TestRunOnce_SellWithoutCycleSkips(t *testing.T) {
	u := autoUser()
	h := newHarness([]*user.User{u}, expiredSell("ETH"))

	summary, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Successful)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Details, 1)
	assert.Equal(t, OutcomeSkipped, summary.Details[0].Outcome)

	assert.Empty(t, h.trades.all())
	assert.Equal(t, 0, h.channel.count(), "a normal skip is silent")
}

func TestRunOnce_UserFailureIsIsolated(t *testing.T) {
	healthy := autoUser()
	broken := autoUser()
	h := newHarness([]*user.User{healthy, broken}, expiredBuy("ETH"))
	h.gateway.failFor[broken.ID] = errors.ErrExchangeUnavailable

	summary, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 1, summary.Failed)

	trades := h.trades.all()
	require.Len(t, trades, 1)
	assert.Equal(t, healthy.ID, trades[0].UserID)

	// success notification for one, failure notification for the other
	assert.Equal(t, 2, h.channel.count())
}

func TestRunOnce_InsufficientPortfolioFails(t *testing.T) {
	u := autoUser()
	h := newHarness([]*user.User{u}, expiredBuy("ETH"))
	h.portfolios.snapshots[u.ID] = &portfolio.Snapshot{
		UserID:     u.ID,
		TotalValue: decimal.Zero,
	}
	h.gateway.snapshots = map[uuid.UUID]*portfolio.Snapshot{
		u.ID: {UserID: u.ID, TotalValue: decimal.Zero},
	}

	summary, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Empty(t, h.trades.all())
}

func TestRunOnce_NoExpiredSignals(t *testing.T) {
	active := expiredBuy("ETH")
	active.ExpiresAt = time.Now().UTC().Add(time.Hour)
	h := newHarness([]*user.User{autoUser()}, active)

	summary, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Processed)
	assert.Empty(t, h.trades.all())
}

func TestRunOnce_ClaimFailureIsFatal(t *testing.T) {
	h := newHarness([]*user.User{autoUser()}, expiredBuy("ETH"))
	h.signals.failure = errors.ErrUnavailable

	_, err := h.engine.RunOnce(context.Background())
	assert.ErrorIs(t, err, errors.ErrUnavailable)
}

func TestRunOnce_EligibilityFailureRecordedPerSignal(t *testing.T) {
	h := newHarness(nil, expiredBuy("ETH"), expiredBuy("BTC"))
	h.engine.filter = &fakeFilter{err: errors.ErrUnavailable}

	summary, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err, "per-signal failures never abort the run")

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Failed)
}

func TestRunOnce_PortfolioRefreshedAfterTrade(t *testing.T) {
	u := autoUser()
	h := newHarness([]*user.User{u}, expiredBuy("ETH"))
	h.gateway.snapshots = map[uuid.UUID]*portfolio.Snapshot{
		u.ID: {TotalValue: decimal.NewFromInt(12345)},
	}

	_, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)

	snap, err := h.portfolios.GetByUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, snap.TotalValue.Equal(decimal.NewFromInt(12345)), "cache refreshed from gateway")
}
