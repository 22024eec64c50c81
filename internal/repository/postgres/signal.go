package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"hermes/internal/domain/signal"
	"hermes/pkg/errors"
)

// Compile-time check
var _ signal.Repository = (*SignalRepository)(nil)

// SignalRepository implements signal.Repository using sqlx
type SignalRepository struct {
	db DBTX
}

// NewSignalRepository creates a new signal repository
func NewSignalRepository(db DBTX) *SignalRepository {
	return &SignalRepository{db: db}
}

// Create inserts a new signal
func (r *SignalRepository) Create(ctx context.Context, s *signal.Signal) error {
	query := `
		INSERT INTO signals (
			id, type, token, price, risk_level, auto_executed, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.Type, s.Token, s.Price, s.RiskLevel, s.AutoExecuted, s.CreatedAt, s.ExpiresAt,
	)
	return err
}

// GetByID retrieves a signal by ID
func (r *SignalRepository) GetByID(ctx context.Context, id uuid.UUID) (*signal.Signal, error) {
	var s signal.Signal

	query := `SELECT * FROM signals WHERE id = $1`

	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetActive retrieves unclaimed signals still inside their decision window
func (r *SignalRepository) GetActive(ctx context.Context, now time.Time) ([]*signal.Signal, error) {
	var signals []*signal.Signal

	query := `
		SELECT * FROM signals
		WHERE expires_at > $1 AND auto_executed = false
		ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &signals, query, now); err != nil {
		return nil, err
	}
	return signals, nil
}

// ClaimExpired atomically claims every expired, unclaimed signal.
// The conditional UPDATE is the idempotency boundary: of two concurrent
// runs, only one observes each auto_executed flag flip false->true.
func (r *SignalRepository) ClaimExpired(ctx context.Context, now time.Time) ([]*signal.Signal, error) {
	var signals []*signal.Signal

	query := `
		UPDATE signals
		SET auto_executed = true
		WHERE expires_at <= $1 AND auto_executed = false
		RETURNING id, type, token, price, risk_level, auto_executed, created_at, expires_at`

	if err := r.db.SelectContext(ctx, &signals, query, now); err != nil {
		return nil, errors.Wrap(errors.ErrUnavailable, err.Error())
	}
	return signals, nil
}

// TryClaim claims one signal for the manual-accept path. Returns
// ErrClaimConflict when the flag was already flipped by another caller.
func (r *SignalRepository) TryClaim(ctx context.Context, id uuid.UUID) (*signal.Signal, error) {
	var s signal.Signal

	query := `
		UPDATE signals
		SET auto_executed = true
		WHERE id = $1 AND auto_executed = false
		RETURNING id, type, token, price, risk_level, auto_executed, created_at, expires_at`

	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either unknown id or already claimed; disambiguate
			if _, lookupErr := r.GetByID(ctx, id); lookupErr != nil {
				return nil, lookupErr
			}
			return nil, errors.ErrClaimConflict
		}
		return nil, err
	}
	return &s, nil
}
