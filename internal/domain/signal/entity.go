package signal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Signal is an immutable trading recommendation with a decision window.
// Once the window elapses without manual action the auto-execution engine
// claims it by flipping AutoExecuted, which transitions false->true exactly
// once and never reverts.
type Signal struct {
	ID           uuid.UUID       `db:"id"`
	Type         Type            `db:"type"`
	Token        string          `db:"token"`
	Price        decimal.Decimal `db:"price"`
	RiskLevel    RiskLevel       `db:"risk_level"`
	AutoExecuted bool            `db:"auto_executed"`
	CreatedAt    time.Time       `db:"created_at"`
	ExpiresAt    time.Time       `db:"expires_at"`
}

// Type is the signal direction
type Type string

const (
	TypeBuy  Type = "BUY"
	TypeSell Type = "SELL"
)

// Valid checks if signal type is valid
func (t Type) Valid() bool {
	return t == TypeBuy || t == TypeSell
}

// String returns string representation
func (t Type) String() string {
	return string(t)
}

// RiskLevel classifies a signal's risk appetite
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid checks if risk level is valid
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// String returns string representation
func (r RiskLevel) String() string {
	return string(r)
}

// Expired reports whether the decision window has elapsed at the given time.
func (s *Signal) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Active reports whether the signal is still within its decision window
// and has not been claimed.
func (s *Signal) Active(now time.Time) bool {
	return !s.AutoExecuted && s.ExpiresAt.After(now)
}
