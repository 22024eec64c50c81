package user

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hermes/internal/domain/signal"
)

// Repository defines the interface for user data access
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	Update(ctx context.Context, u *User) error

	// ListByRiskLevel returns active, exchange-connected users matching
	// the risk level. autoOnly restricts to users opted into auto-trade.
	ListByRiskLevel(ctx context.Context, level signal.RiskLevel, autoOnly bool) ([]*User, error)

	// ListExchangeConnected returns every active user with a linked
	// exchange, regardless of risk level.
	ListExchangeConnected(ctx context.Context) ([]*User, error)

	// MarkSignaled appends a token mark to the user's rolling record,
	// pruning expired marks.
	MarkSignaled(ctx context.Context, userID uuid.UUID, token string, at time.Time) error
}
