package user

import (
	"time"

	"github.com/google/uuid"

	"hermes/internal/domain/signal"
)

// User represents a system user (Telegram user)
type User struct {
	ID               uuid.UUID        `db:"id"`
	TelegramID       int64            `db:"telegram_id"`
	TelegramUsername string           `db:"telegram_username"`
	RiskLevel        signal.RiskLevel `db:"risk_level"`

	// ExchangeConnected is true once the user has linked exchange
	// API credentials. Users without a connected exchange never
	// receive or execute signals.
	ExchangeConnected bool `db:"exchange_connected"`

	// AutoTradeEnabled opts the user into auto-execution once a
	// signal's decision window elapses without manual action.
	AutoTradeEnabled bool `db:"auto_trade_enabled"`

	IsActive bool `db:"is_active"`

	// LastSignalTokens is a rolling record of the most recent BUY
	// signal surfaced per token, used to suppress repeats. Stored as
	// JSONB. Appended only for BUY signals, never SELL.
	LastSignalTokens []TokenMark `db:"-"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// TokenMark records when a token was last surfaced to the user.
type TokenMark struct {
	Token     string    `json:"token"`
	Timestamp time.Time `json:"timestamp"`
}

// RecentlySignaled reports whether the user was shown a signal for the
// token within the suppression window ending at now.
func (u *User) RecentlySignaled(token string, window time.Duration, now time.Time) bool {
	cutoff := now.Add(-window)
	for _, mark := range u.LastSignalTokens {
		if mark.Token == token && mark.Timestamp.After(cutoff) {
			return true
		}
	}
	return false
}

// MarkSignaled appends a token mark, replacing any previous mark for the
// same token and dropping marks older than the retention window.
func (u *User) MarkSignaled(token string, retention time.Duration, now time.Time) {
	cutoff := now.Add(-retention)
	kept := u.LastSignalTokens[:0]
	for _, mark := range u.LastSignalTokens {
		if mark.Token == token || !mark.Timestamp.After(cutoff) {
			continue
		}
		kept = append(kept, mark)
	}
	u.LastSignalTokens = append(kept, TokenMark{Token: token, Timestamp: now})
}
