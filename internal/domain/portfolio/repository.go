package portfolio

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for portfolio snapshot access
type Repository interface {
	// GetByUser returns the cached snapshot or errors.ErrNotFound. A
	// missing snapshot is a normal state for new users, not a failure.
	GetByUser(ctx context.Context, userID uuid.UUID) (*Snapshot, error)

	// Upsert replaces the user's cached snapshot.
	Upsert(ctx context.Context, s *Snapshot) error
}
