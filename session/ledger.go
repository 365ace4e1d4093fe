package session

import (
	"math"

	"github.com/tailored-agentic-units/converse/backend"
)

// TokenUsage is a point-in-time view of the ledger.
type TokenUsage struct {
	Used      int `json:"used"`
	Available int `json:"available"`
	Limit     int `json:"limit"`
}

// TokenLedger tracks cumulative input/output token counts against a fixed
// model budget. Usage is recorded once per turn from the backend-reported
// cumulative figures and never decreases within a session epoch; only Reset
// (a new epoch) clears it. Not safe for concurrent use; the controller
// serializes access.
type TokenLedger struct {
	limit   int // 0 means unbounded
	reserve int // minimum tokens reserved for a full question+answer exchange
	input   int
	output  int
}

// NewTokenLedger creates a ledger for the given budget. A limit of 0 means
// unbounded.
func NewTokenLedger(limit, reserve int) *TokenLedger {
	return &TokenLedger{limit: limit, reserve: reserve}
}

// Record updates the ledger from the backend's cumulative usage figures.
// Figures lower than what is already recorded are ignored; the ledger is
// monotone within an epoch.
func (l *TokenLedger) Record(totalInput, totalOutput int) {
	if totalInput > l.input {
		l.input = totalInput
	}
	if totalOutput > l.output {
		l.output = totalOutput
	}
}

// Reset clears the ledger for a new session epoch.
func (l *TokenLedger) Reset() {
	l.input = 0
	l.output = 0
}

// Usage returns the current snapshot. For an unbounded limit, Available is
// MaxInt and Limit is 0.
func (l *TokenLedger) Usage() TokenUsage {
	return l.usageFor(l.input + l.output)
}

// Preview returns the snapshot the ledger would report after recording the
// given cumulative figures, without recording them. The controller uses this
// to enrich the usage event before committing the turn.
func (l *TokenLedger) Preview(totalInput, totalOutput int) TokenUsage {
	input, output := l.input, l.output
	if totalInput > input {
		input = totalInput
	}
	if totalOutput > output {
		output = totalOutput
	}
	return l.usageFor(input + output)
}

func (l *TokenLedger) usageFor(used int) TokenUsage {
	if l.limit == 0 {
		return TokenUsage{Used: used, Available: math.MaxInt, Limit: 0}
	}
	available := l.limit - used
	if available < 0 {
		available = 0
	}
	return TokenUsage{Used: used, Available: available, Limit: l.limit}
}

// CanContinue reports whether another turn can happen: false when the
// backend cannot take a follow-up turn at all, otherwise whether enough
// budget remains for a full exchange.
func (l *TokenLedger) CanContinue(caps backend.Capabilities, historyLength int) bool {
	if !caps.SupportsMultiTurn && historyLength > 0 {
		return false
	}
	if l.limit == 0 {
		return true
	}
	return l.Usage().Available > l.reserve
}
