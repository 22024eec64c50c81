package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"hermes/internal/domain/signal"
	"hermes/internal/domain/user"
	"hermes/pkg/errors"
)

// Marks older than this are dropped on write. Kept well above the 24h
// suppression window so a longer configured window still has data.
const tokenMarkRetention = 7 * 24 * time.Hour

// Compile-time check
var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository using sqlx
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, telegram_id, telegram_username, risk_level,
	exchange_connected, auto_trade_enabled, is_active,
	last_signal_tokens, created_at, updated_at`

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	marksJSON, err := json.Marshal(u.LastSignalTokens)
	if err != nil {
		return errors.Wrap(err, "failed to marshal signal token marks")
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.ExecContext(ctx, query,
		u.ID, u.TelegramID, u.TelegramUsername, u.RiskLevel,
		u.ExchangeConnected, u.AutoTradeEnabled, u.IsActive,
		marksJSON, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByTelegramID retrieves a user by Telegram ID
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*user.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
	return scanUser(row)
}

// Update persists user changes
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	marksJSON, err := json.Marshal(u.LastSignalTokens)
	if err != nil {
		return errors.Wrap(err, "failed to marshal signal token marks")
	}

	query := `
		UPDATE users SET
			telegram_username = $2,
			risk_level = $3,
			exchange_connected = $4,
			auto_trade_enabled = $5,
			is_active = $6,
			last_signal_tokens = $7,
			updated_at = $8
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		u.ID, u.TelegramUsername, u.RiskLevel,
		u.ExchangeConnected, u.AutoTradeEnabled, u.IsActive,
		marksJSON, u.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.ErrNotFound
	}
	return nil
}

// ListByRiskLevel returns active, exchange-connected users matching the
// risk level, optionally restricted to auto-trade users
func (r *UserRepository) ListByRiskLevel(ctx context.Context, level signal.RiskLevel, autoOnly bool) ([]*user.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users
		WHERE is_active = true
		  AND exchange_connected = true
		  AND risk_level = $1
		  AND ($2 = false OR auto_trade_enabled = true)
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, level, autoOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

// ListExchangeConnected returns every active user with a linked exchange
func (r *UserRepository) ListExchangeConnected(ctx context.Context) ([]*user.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users
		WHERE is_active = true AND exchange_connected = true
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

// MarkSignaled appends a token mark to the user's rolling record. A
// single statement rewrites the array in place so two engine processes
// marking the same user cannot lose each other's writes. The previous
// mark for the token and marks past retention are pruned in the same
// expression.
func (r *UserRepository) MarkSignaled(ctx context.Context, userID uuid.UUID, token string, at time.Time) error {
	query := `
		UPDATE users
		SET last_signal_tokens = (
			SELECT COALESCE(jsonb_agg(mark), '[]'::jsonb)
			FROM jsonb_array_elements(last_signal_tokens) AS mark
			WHERE mark->>'token' <> $2
			  AND (mark->>'timestamp')::timestamptz > $4
		) || jsonb_build_object('token', $2, 'timestamp', $3),
		    updated_at = $3
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, userID, token, at, at.Add(-tokenMarkRetention))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*user.User, error) {
	var u user.User
	var marksJSON []byte

	err := row.Scan(
		&u.ID, &u.TelegramID, &u.TelegramUsername, &u.RiskLevel,
		&u.ExchangeConnected, &u.AutoTradeEnabled, &u.IsActive,
		&marksJSON, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		return nil, err
	}

	if len(marksJSON) > 0 {
		if err := json.Unmarshal(marksJSON, &u.LastSignalTokens); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal signal token marks")
		}
	}
	return &u, nil
}

func scanUsers(rows *sql.Rows) ([]*user.User, error) {
	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
