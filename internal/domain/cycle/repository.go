package cycle

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for cycle data access
type Repository interface {
	Create(ctx context.Context, c *Cycle) error
	GetByID(ctx context.Context, id uuid.UUID) (*Cycle, error)

	// GetOpenByUserToken returns the open cycle for (user, token) or
	// errors.ErrNotFound. The schema enforces at most one via a partial
	// unique index on (user_id, token) where state <> 'exit'.
	GetOpenByUserToken(ctx context.Context, userID uuid.UUID, token string) (*Cycle, error)

	GetOpenByUser(ctx context.Context, userID uuid.UUID) ([]*Cycle, error)
	Update(ctx context.Context, c *Cycle) error
}
