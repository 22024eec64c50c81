package user

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Service manages user account operations.
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService constructs a user service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, log: logger.Get().With("component", "user_service")}
}

// Register creates a new user record.
func (s *Service) Register(ctx context.Context, u *User) error {
	if u == nil {
		return errors.ErrInvalidInput
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if !u.RiskLevel.Valid() {
		return errors.Wrapf(errors.ErrInvalidInput, "risk level %q", u.RiskLevel)
	}
	now := time.Now().UTC()
	u.IsActive = true
	u.CreatedAt = now
	u.UpdatedAt = now

	if err := s.repo.Create(ctx, u); err != nil {
		return errors.Wrap(err, "register user")
	}
	return nil
}

// GetByID retrieves a user by identifier.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	if id == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return u, nil
}

// GetByTelegramID retrieves a user by Telegram identifier.
func (s *Service) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	u, err := s.repo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, errors.Wrap(err, "get user by telegram id")
	}
	return u, nil
}

// SetAutoTrade toggles auto-execution for the user. Enabling requires a
// connected exchange.
func (s *Service) SetAutoTrade(ctx context.Context, id uuid.UUID, enabled bool) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if enabled && !u.ExchangeConnected {
		return errors.Wrap(errors.ErrInvalidInput, "auto-trade requires a connected exchange")
	}
	u.AutoTradeEnabled = enabled
	u.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, u); err != nil {
		return errors.Wrap(err, "set auto trade")
	}
	s.log.Infow("Auto-trade setting changed", "user_id", id, "enabled", enabled)
	return nil
}
