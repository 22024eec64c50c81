package autoexec

import (
	"github.com/google/uuid"
)

// Outcome classifies one per-user execution attempt.
type Outcome string

const (
	OutcomeExecuted Outcome = "executed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Detail records what happened for one (signal, user) pair.
type Detail struct {
	SignalID uuid.UUID  `json:"signal_id"`
	UserID   uuid.UUID  `json:"user_id"`
	Token    string     `json:"token"`
	Outcome  Outcome    `json:"outcome"`
	TradeID  *uuid.UUID `json:"trade_id,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// RunSummary is the structured result of one engine run, returned to
// the scheduler for observability.
type RunSummary struct {
	Processed  int      `json:"processed"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Details    []Detail `json:"details"`
}

func (s *RunSummary) add(d Detail) {
	switch d.Outcome {
	case OutcomeExecuted:
		s.Successful++
	case OutcomeFailed:
		s.Failed++
	}
	s.Details = append(s.Details, d)
}
