package signal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for signal data access
type Repository interface {
	Create(ctx context.Context, sig *Signal) error
	GetByID(ctx context.Context, id uuid.UUID) (*Signal, error)

	// GetActive returns signals still inside their decision window
	GetActive(ctx context.Context, now time.Time) ([]*Signal, error)

	// ClaimExpired atomically flips auto_executed on every expired,
	// unclaimed signal and returns the signals this caller won.
	// Implemented as a single conditional UPDATE so two concurrent
	// runs can never both claim the same signal.
	ClaimExpired(ctx context.Context, now time.Time) ([]*Signal, error)

	// TryClaim claims a single signal for the manual-accept path.
	// Returns errors.ErrClaimConflict when already claimed.
	TryClaim(ctx context.Context, id uuid.UUID) (*Signal, error)
}
