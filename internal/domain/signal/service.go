package signal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Service manages signal lifecycle operations.
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService constructs a signal service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, log: logger.Get().With("component", "signal_service")}
}

// CreateParams describes a new signal to register.
type CreateParams struct {
	Type      Type
	Token     string
	Price     decimal.Decimal
	RiskLevel RiskLevel
	Window    time.Duration
}

// Create registers a new signal with an expiry window.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Signal, error) {
	if !params.Type.Valid() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "signal type %q", params.Type)
	}
	if !params.RiskLevel.Valid() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "risk level %q", params.RiskLevel)
	}
	if params.Token == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "token is required")
	}
	if params.Price.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Wrap(errors.ErrInvalidInput, "price must be positive")
	}
	if params.Window <= 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "expiry window must be positive")
	}

	now := time.Now().UTC()
	sig := &Signal{
		ID:        uuid.New(),
		Type:      params.Type,
		Token:     params.Token,
		Price:     params.Price,
		RiskLevel: params.RiskLevel,
		CreatedAt: now,
		ExpiresAt: now.Add(params.Window),
	}

	if err := s.repo.Create(ctx, sig); err != nil {
		return nil, errors.Wrap(err, "create signal")
	}

	s.log.Infow("Signal registered",
		"signal_id", sig.ID,
		"type", sig.Type,
		"token", sig.Token,
		"expires_at", sig.ExpiresAt,
	)
	return sig, nil
}

// GetByID retrieves a signal by identifier.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Signal, error) {
	if id == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}
	sig, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get signal")
	}
	return sig, nil
}

// GetActive lists signals still inside their decision window.
func (s *Service) GetActive(ctx context.Context) ([]*Signal, error) {
	signals, err := s.repo.GetActive(ctx, time.Now().UTC())
	if err != nil {
		return nil, errors.Wrap(err, "get active signals")
	}
	return signals, nil
}

// Accept claims a signal on behalf of a manual user action. The claim
// uses the same flag-flip as the auto-execution path, so a manual accept
// racing a scheduled run resolves to exactly one winner.
func (s *Service) Accept(ctx context.Context, id uuid.UUID) (*Signal, error) {
	if id == uuid.Nil {
		return nil, errors.ErrInvalidInput
	}
	sig, err := s.repo.TryClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Infow("Signal claimed manually", "signal_id", id)
	return sig, nil
}
