package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"hermes/internal/domain/portfolio"
	"hermes/pkg/errors"
)

// Compile-time check
var _ portfolio.Repository = (*PortfolioRepository)(nil)

// PortfolioRepository implements portfolio.Repository using sqlx
type PortfolioRepository struct {
	db DBTX
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db DBTX) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// GetByUser retrieves the cached snapshot for a user
func (r *PortfolioRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*portfolio.Snapshot, error) {
	var s portfolio.Snapshot
	var holdingsJSON []byte

	query := `
		SELECT user_id, total_value, free_capital, allocated_capital, holdings, refreshed_at
		FROM portfolios WHERE user_id = $1`

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&s.UserID, &s.TotalValue, &s.FreeCapital, &s.AllocatedCapital,
		&holdingsJSON, &s.RefreshedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		return nil, err
	}

	if len(holdingsJSON) > 0 {
		if err := json.Unmarshal(holdingsJSON, &s.Holdings); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal holdings")
		}
	}
	return &s, nil
}

// Upsert replaces the user's cached snapshot
func (r *PortfolioRepository) Upsert(ctx context.Context, s *portfolio.Snapshot) error {
	holdingsJSON, err := json.Marshal(s.Holdings)
	if err != nil {
		return errors.Wrap(err, "failed to marshal holdings")
	}

	query := `
		INSERT INTO portfolios (user_id, total_value, free_capital, allocated_capital, holdings, refreshed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			total_value = EXCLUDED.total_value,
			free_capital = EXCLUDED.free_capital,
			allocated_capital = EXCLUDED.allocated_capital,
			holdings = EXCLUDED.holdings,
			refreshed_at = EXCLUDED.refreshed_at`

	_, err = r.db.ExecContext(ctx, query,
		s.UserID, s.TotalValue, s.FreeCapital, s.AllocatedCapital,
		holdingsJSON, s.RefreshedAt,
	)
	return err
}
