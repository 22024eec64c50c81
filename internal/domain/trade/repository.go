package trade

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for trade data access
type Repository interface {
	Create(ctx context.Context, t *Trade) error
	GetByID(ctx context.Context, id uuid.UUID) (*Trade, error)
	GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Trade, error)

	// AttachCycle backfills the cycle reference once the cycle
	// transition has completed. The only mutation a trade permits.
	AttachCycle(ctx context.Context, tradeID, cycleID uuid.UUID) error
}
