package user

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/domain/signal"
	"hermes/pkg/errors"
)

type memUserRepo struct {
	Repository
	users map[uuid.UUID]*User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*User)}
}

func (r *memUserRepo) Create(ctx context.Context, u *User) error {
	if _, ok := r.users[u.ID]; ok {
		return errors.ErrAlreadyExists
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	for _, u := range r.users {
		if u.TelegramID == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (r *memUserRepo) Update(ctx context.Context, u *User) error {
	if _, ok := r.users[u.ID]; !ok {
		return errors.ErrNotFound
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func TestService_Register(t *testing.T) {
	repo := newMemUserRepo()
	svc := NewService(repo)
	ctx := context.Background()

	u := &User{
		TelegramID:        100001,
		TelegramUsername:  "demo_medium",
		RiskLevel:         signal.RiskMedium,
		ExchangeConnected: true,
	}
	require.NoError(t, svc.Register(ctx, u))

	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.True(t, u.IsActive)
	assert.False(t, u.CreatedAt.IsZero())
	assert.Equal(t, u.CreatedAt, u.UpdatedAt)

	stored, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "demo_medium", stored.TelegramUsername)
}

func TestService_Register_InvalidRiskLevel(t *testing.T) {
	svc := NewService(newMemUserRepo())

	err := svc.Register(context.Background(), &User{
		TelegramID: 100002,
		RiskLevel:  signal.RiskLevel("reckless"),
	})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestService_Register_NilUser(t *testing.T) {
	svc := NewService(newMemUserRepo())
	assert.ErrorIs(t, svc.Register(context.Background(), nil), errors.ErrInvalidInput)
}

func TestService_GetByTelegramID(t *testing.T) {
	repo := newMemUserRepo()
	svc := NewService(repo)
	ctx := context.Background()

	u := &User{TelegramID: 100003, RiskLevel: signal.RiskLow}
	require.NoError(t, svc.Register(ctx, u))

	found, err := svc.GetByTelegramID(ctx, 100003)
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = svc.GetByTelegramID(ctx, 999999)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestService_SetAutoTrade(t *testing.T) {
	repo := newMemUserRepo()
	svc := NewService(repo)
	ctx := context.Background()

	connected := &User{TelegramID: 1, RiskLevel: signal.RiskLow, ExchangeConnected: true}
	require.NoError(t, svc.Register(ctx, connected))

	require.NoError(t, svc.SetAutoTrade(ctx, connected.ID, true))
	stored, err := repo.GetByID(ctx, connected.ID)
	require.NoError(t, err)
	assert.True(t, stored.AutoTradeEnabled)
}

func TestService_SetAutoTrade_RequiresConnectedExchange(t *testing.T) {
	repo := newMemUserRepo()
	svc := NewService(repo)
	ctx := context.Background()

	unlinked := &User{TelegramID: 2, RiskLevel: signal.RiskLow}
	require.NoError(t, svc.Register(ctx, unlinked))

	err := svc.SetAutoTrade(ctx, unlinked.ID, true)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	// Disabling never needs a linked exchange.
	assert.NoError(t, svc.SetAutoTrade(ctx, unlinked.ID, false))
}
