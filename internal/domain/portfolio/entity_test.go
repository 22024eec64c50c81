package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHolding(t *testing.T) {
	h := ComputeHolding("BTC",
		decimal.NewFromFloat(0.5),
		decimal.NewFromInt(40000),
		decimal.NewFromInt(50000),
	)

	assert.True(t, h.Value.Equal(decimal.NewFromInt(25000)), "value = %s", h.Value)
	assert.True(t, h.PnL.Equal(decimal.NewFromInt(5000)), "pnl = %s", h.PnL)
	assert.True(t, h.PnLPercentage.Equal(decimal.NewFromInt(25)), "pct = %s", h.PnLPercentage)
}

func TestComputeHolding_ZeroAveragePrice(t *testing.T) {
	h := ComputeHolding("BTC",
		decimal.NewFromFloat(0.5),
		decimal.Zero,
		decimal.NewFromInt(50000),
	)

	assert.True(t, h.PnLPercentage.IsZero(), "pct = %s", h.PnLPercentage)
	assert.True(t, h.PnL.Equal(decimal.NewFromInt(25000)), "pnl = %s", h.PnL)
	assert.True(t, h.Value.Equal(decimal.NewFromInt(25000)))
}

func TestComputeHolding_Loss(t *testing.T) {
	h := ComputeHolding("ETH",
		decimal.NewFromInt(2),
		decimal.NewFromInt(4000),
		decimal.NewFromInt(3000),
	)

	assert.True(t, h.PnL.Equal(decimal.NewFromInt(-2000)), "pnl = %s", h.PnL)
	assert.True(t, h.PnLPercentage.Equal(decimal.NewFromInt(-25)), "pct = %s", h.PnLPercentage)
}

func TestSnapshot_Holds(t *testing.T) {
	snap := &Snapshot{
		Holdings: []Holding{
			{Token: "BTC", Amount: decimal.NewFromFloat(0.5)},
			{Token: "DUST", Amount: decimal.Zero},
		},
	}

	assert.True(t, snap.Holds("BTC"))
	assert.False(t, snap.Holds("DUST"), "zero amount does not count as holding")
	assert.False(t, snap.Holds("ETH"))

	h := snap.Holding("BTC")
	require.NotNil(t, h)
	assert.Equal(t, "BTC", h.Token)
	assert.Nil(t, snap.Holding("ETH"))
}
