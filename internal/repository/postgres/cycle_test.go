package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/domain/cycle"
	"hermes/pkg/errors"
)

var cycleRowColumns = []string{
	"id", "user_id", "token", "state",
	"entry_price", "exit_price", "amount",
	"entry_trade_id", "exit_trade_id",
	"pnl", "pnl_percentage", "partial_exits",
	"created_at", "updated_at",
}

func testCycle() *cycle.Cycle {
	now := time.Now().UTC()
	return &cycle.Cycle{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Token:        "BTC",
		State:        cycle.StateEntry,
		EntryPrice:   decimal.NewFromInt(45000),
		Amount:       decimal.NewFromFloat(0.5),
		EntryTradeID: uuid.New(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestCycleRepository_Create_UniqueViolationMapsToAlreadyExists(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCycleRepository(db)

	mock.ExpectExec(`INSERT INTO cycles`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "cycles_one_open"})

	err := repo.Create(context.Background(), testCycle())
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCycleRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCycleRepository(db)

	mock.ExpectExec(`INSERT INTO cycles`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), testCycle()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCycleRepository_GetOpenByUserToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCycleRepository(db)

	c := testCycle()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT[\s\S]+FROM cycles\s+WHERE user_id = \$1 AND token = \$2 AND state <> 'exit'`).
		WithArgs(c.UserID, c.Token).
		WillReturnRows(sqlmock.NewRows(cycleRowColumns).AddRow(
			c.ID, c.UserID, c.Token, "entry",
			"45000", "0", "0.5",
			c.EntryTradeID, nil,
			"0", "0", []byte(`[]`),
			now, now,
		))

	got, err := repo.GetOpenByUserToken(context.Background(), c.UserID, c.Token)
	require.NoError(t, err)

	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, cycle.StateEntry, got.State)
	assert.True(t, got.EntryPrice.Equal(decimal.NewFromInt(45000)))
	assert.Nil(t, got.ExitTradeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCycleRepository_GetOpenByUserToken_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCycleRepository(db)

	userID := uuid.New()
	mock.ExpectQuery(`SELECT[\s\S]+FROM cycles`).
		WithArgs(userID, "BTC").
		WillReturnRows(sqlmock.NewRows(cycleRowColumns))

	_, err := repo.GetOpenByUserToken(context.Background(), userID, "BTC")
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCycleRepository_GetOpenByUserToken_UnmarshalsPartialExits(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCycleRepository(db)

	c := testCycle()
	now := time.Now().UTC()
	tradeID := uuid.New()
	exits := `[{"trade_id":"` + tradeID.String() + `","percentage":"40","price":"48000","amount":"0.2","timestamp":"2025-06-01T12:00:00Z"}]`

	mock.ExpectQuery(`SELECT[\s\S]+FROM cycles`).
		WithArgs(c.UserID, c.Token).
		WillReturnRows(sqlmock.NewRows(cycleRowColumns).AddRow(
			c.ID, c.UserID, c.Token, "hold",
			"45000", "0", "0.5",
			c.EntryTradeID, nil,
			"0", "0", []byte(exits),
			now, now,
		))

	got, err := repo.GetOpenByUserToken(context.Background(), c.UserID, c.Token)
	require.NoError(t, err)

	require.Len(t, got.PartialExits, 1)
	assert.Equal(t, tradeID, got.PartialExits[0].TradeID)
	assert.True(t, got.PartialExits[0].Percentage.Equal(decimal.NewFromInt(40)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCycleRepository_Update_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCycleRepository(db)

	mock.ExpectExec(`UPDATE cycles SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), testCycle())
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
