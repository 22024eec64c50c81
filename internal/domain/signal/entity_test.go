package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignal_Expired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s := &Signal{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, s.Expired(now))

	s.ExpiresAt = now.Add(-time.Minute)
	assert.True(t, s.Expired(now))

	// Expiry exactly at now counts as expired
	s.ExpiresAt = now
	assert.True(t, s.Expired(now))
}

func TestSignal_Active(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s := &Signal{ExpiresAt: now.Add(time.Minute)}
	assert.True(t, s.Active(now))

	s.AutoExecuted = true
	assert.False(t, s.Active(now), "claimed signal is no longer active")

	s.AutoExecuted = false
	s.ExpiresAt = now.Add(-time.Minute)
	assert.False(t, s.Active(now))
}

func TestTypeAndRiskLevelValidation(t *testing.T) {
	assert.True(t, TypeBuy.Valid())
	assert.True(t, TypeSell.Valid())
	assert.False(t, Type("HOLD").Valid())

	assert.True(t, RiskLow.Valid())
	assert.True(t, RiskMedium.Valid())
	assert.True(t, RiskHigh.Valid())
	assert.False(t, RiskLevel("extreme").Valid())
}
