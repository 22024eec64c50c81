package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"hermes/internal/domain/cycle"
	"hermes/pkg/errors"
)

// Compile-time check
var _ cycle.Repository = (*CycleRepository)(nil)

// CycleRepository implements cycle.Repository using sqlx.
// A partial unique index enforces the open-cycle invariant at the
// storage layer:
//
//	CREATE UNIQUE INDEX cycles_one_open ON cycles (user_id, token)
//	WHERE state <> 'exit';
type CycleRepository struct {
	db DBTX
}

// NewCycleRepository creates a new cycle repository
func NewCycleRepository(db DBTX) *CycleRepository {
	return &CycleRepository{db: db}
}

const cycleColumns = `
	id, user_id, token, state,
	entry_price, exit_price, amount,
	entry_trade_id, exit_trade_id,
	pnl, pnl_percentage, partial_exits,
	created_at, updated_at`

// Create inserts a new cycle
func (r *CycleRepository) Create(ctx context.Context, c *cycle.Cycle) error {
	exitsJSON, err := json.Marshal(c.PartialExits)
	if err != nil {
		return errors.Wrap(err, "failed to marshal partial exits")
	}

	query := `
		INSERT INTO cycles (` + cycleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.db.ExecContext(ctx, query,
		c.ID, c.UserID, c.Token, c.State,
		c.EntryPrice, c.ExitPrice, c.Amount,
		c.EntryTradeID, c.ExitTradeID,
		c.PnL, c.PnLPercentage, exitsJSON,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return errors.Wrapf(errors.ErrAlreadyExists, "open cycle for user %s token %s", c.UserID, c.Token)
		}
		return err
	}
	return nil
}

// GetByID retrieves a cycle by ID
func (r *CycleRepository) GetByID(ctx context.Context, id uuid.UUID) (*cycle.Cycle, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE id = $1`, id)
	return scanCycle(row)
}

// GetOpenByUserToken retrieves the open cycle for (user, token)
func (r *CycleRepository) GetOpenByUserToken(ctx context.Context, userID uuid.UUID, token string) (*cycle.Cycle, error) {
	query := `
		SELECT ` + cycleColumns + ` FROM cycles
		WHERE user_id = $1 AND token = $2 AND state <> 'exit'`

	row := r.db.QueryRowContext(ctx, query, userID, token)
	return scanCycle(row)
}

// GetOpenByUser retrieves all open cycles for a user
func (r *CycleRepository) GetOpenByUser(ctx context.Context, userID uuid.UUID) ([]*cycle.Cycle, error) {
	query := `
		SELECT ` + cycleColumns + ` FROM cycles
		WHERE user_id = $1 AND state <> 'exit'
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cycles []*cycle.Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// Update persists cycle changes
func (r *CycleRepository) Update(ctx context.Context, c *cycle.Cycle) error {
	exitsJSON, err := json.Marshal(c.PartialExits)
	if err != nil {
		return errors.Wrap(err, "failed to marshal partial exits")
	}

	query := `
		UPDATE cycles SET
			state = $2,
			exit_price = $3,
			exit_trade_id = $4,
			pnl = $5,
			pnl_percentage = $6,
			partial_exits = $7,
			updated_at = $8
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		c.ID, c.State, c.ExitPrice, c.ExitTradeID,
		c.PnL, c.PnLPercentage, exitsJSON, c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func scanCycle(row rowScanner) (*cycle.Cycle, error) {
	var c cycle.Cycle
	var exitsJSON []byte

	err := row.Scan(
		&c.ID, &c.UserID, &c.Token, &c.State,
		&c.EntryPrice, &c.ExitPrice, &c.Amount,
		&c.EntryTradeID, &c.ExitTradeID,
		&c.PnL, &c.PnLPercentage, &exitsJSON,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		return nil, err
	}

	if len(exitsJSON) > 0 {
		if err := json.Unmarshal(exitsJSON, &c.PartialExits); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal partial exits")
		}
	}
	return &c, nil
}
