package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"hermes/internal/domain/trade"
	"hermes/pkg/errors"
)

// Compile-time check
var _ trade.Repository = (*TradeRepository)(nil)

// TradeRepository implements trade.Repository using sqlx
type TradeRepository struct {
	db DBTX
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db DBTX) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create inserts a new trade
func (r *TradeRepository) Create(ctx context.Context, t *trade.Trade) error {
	query := `
		INSERT INTO trades (
			id, user_id, cycle_id, signal_id,
			type, token, price, amount, status,
			order_id, auto_executed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.UserID, t.CycleID, t.SignalID,
		t.Type, t.Token, t.Price, t.Amount, t.Status,
		t.OrderID, t.AutoExecuted, t.CreatedAt,
	)
	return err
}

// GetByID retrieves a trade by ID
func (r *TradeRepository) GetByID(ctx context.Context, id uuid.UUID) (*trade.Trade, error) {
	var t trade.Trade

	if err := r.db.GetContext(ctx, &t, `SELECT * FROM trades WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// GetByUser retrieves recent trades for a user
func (r *TradeRepository) GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*trade.Trade, error) {
	var trades []*trade.Trade

	query := `
		SELECT * FROM trades
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &trades, query, userID, limit); err != nil {
		return nil, err
	}
	return trades, nil
}

// AttachCycle backfills the trade's cycle reference
func (r *TradeRepository) AttachCycle(ctx context.Context, tradeID, cycleID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE trades SET cycle_id = $2 WHERE id = $1`,
		tradeID, cycleID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.ErrNotFound
	}
	return nil
}
