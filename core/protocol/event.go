package protocol

import (
	"iter"
	"time"
)

// EventType identifies the kind of a stream event.
type EventType string

const (
	// EventSearch carries retrieval results and their display projection.
	// Emitted at most once, first, and only by Start.
	EventSearch EventType = "search"
	// EventData carries one assistant text delta.
	EventData EventType = "data"
	// EventFinishReason carries the backend's stop reason. Emitted at most
	// once per turn, after the last data event.
	EventFinishReason EventType = "finishReason"
	// EventUsage carries the turn's Usage snapshot. Terminal informational
	// event of a turn.
	EventUsage EventType = "usage"
	// EventDone marks the end of a controller stream.
	EventDone EventType = "done"
)

// Event is one element of a turn's event sequence. Message holds the
// payload for the event type: a SearchData projection for search, a string
// delta for data, a stop-reason string for finishReason, a *Usage for usage,
// and nil for done.
type Event struct {
	Type    EventType `json:"type"`
	Message any       `json:"message"`
}

// Stream is a lazy, demand-driven event sequence. Production suspends after
// each element until the consumer requests the next one; there is no
// producer-side buffering. A non-nil error terminates the sequence.
type Stream = iter.Seq2[Event, error]

// Usage is the per-turn token accounting snapshot emitted on usage events.
// Input/Output fields are this turn's deltas; Total fields are cumulative
// for the session epoch. Available and Limit reflect the ledger after the
// turn was recorded.
type Usage struct {
	InputTokens       int    `json:"inputTokens"`
	OutputTokens      int    `json:"outputTokens"`
	TotalInputTokens  int    `json:"totalInputTokens"`
	TotalOutputTokens int    `json:"totalOutputTokens"`
	TotalTokens       int    `json:"totalTokens"`
	Available         int    `json:"available"`
	Limit             int    `json:"limit"`
	TurnNumber        int    `json:"turnNumber"`
	QueryTokens       int    `json:"queryTokens"`
	ContextTokens     int    `json:"contextTokens"`
	Prompt            string `json:"prompt"`
	Context           string `json:"context"`

	// Elapsed-time enrichment. RetrievalElapsed is set only on the first
	// turn of an epoch, where retrieval actually ran.
	TimeToFirstToken time.Duration `json:"timeToFirstToken"`
	TimeToLastToken  time.Duration `json:"timeToLastToken"`
	RetrievalElapsed time.Duration `json:"retrievalElapsed,omitempty"`
}
