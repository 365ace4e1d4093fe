// Package backend normalizes interchangeable text-generation engines behind
// one handler contract. Three adapter variants cover the engine shapes:
// a persistent multi-turn session, a one-shot writer task, and a stateless
// batch engine that receives the full message list on every call.
//
// Every variant produces the same per-turn event grammar on its stream:
// zero or more data events, at most one finishReason event, then exactly one
// usage event as the terminal informational element.
package backend

import (
	"context"
	"iter"

	"github.com/tailored-agentic-units/converse/core/protocol"
)

// Capabilities describes the static traits of a (provider, model) pair.
// Dispatch decisions key off these flags, never off provider strings.
type Capabilities struct {
	SupportsMultiTurn     bool `json:"supportsMultiTurn"`
	SupportsTokenTracking bool `json:"supportsTokenTracking"`
}

// Input is one dispatch from the session controller. Messages is the fully
// reconstructed list (system prompt + history + latest user message); each
// variant consumes the parts its engine shape needs.
type Input struct {
	// Messages is the complete message list for stateless batch engines.
	Messages []protocol.Message
	// Latest is the newest user message, for engines that retain their own
	// conversation state.
	Latest string
	// System is the system text (base prompt plus assembled context) used
	// when a persistent engine session is first opened.
	System string
	// Context is the assembled retrieval context on its own, for one-shot
	// writer engines that take task and context separately.
	Context string
}

// Usage is the normalized per-turn accounting reported on a turn's terminal
// usage event. Input/Output are this turn's deltas; the Total fields are
// cumulative across the handler's lifetime. Text carries the full assistant
// output of the turn so the controller can commit history; it is not part
// of the public usage shape.
type Usage struct {
	InputTokens       int
	OutputTokens      int
	TotalInputTokens  int
	TotalOutputTokens int
	TotalTokens       int
	Text              string
}

// TokenCount is an engine-reported token figure for one call.
type TokenCount struct {
	Input  int
	Output int
}

// Delta is one raw element produced by an engine. Text carries a content
// delta; FinishReason and Usage arrive on the engine's closing elements and
// may be absent when the engine does not report them.
type Delta struct {
	Text         string
	FinishReason string
	Usage        *TokenCount
}

// Handler is the normalized handle over one backend session. Send returns a
// lazy event stream for one turn; caller-misuse (such as a follow-up turn on
// a one-shot engine) is reported synchronously with no stream produced.
// Handlers are not safe for concurrent Send calls.
type Handler interface {
	Send(ctx context.Context, input Input) (protocol.Stream, error)
	Close(ctx context.Context) error
}

// SessionEngine opens persistent conversation sessions that retain state on
// the engine side. Prior turns live in the engine; each prompt carries only
// the newest user message.
type SessionEngine interface {
	Open(ctx context.Context, system string, temperature float64) (EngineSession, error)
}

// EngineSession is one live engine-side conversation.
type EngineSession interface {
	Prompt(ctx context.Context, text string) iter.Seq2[Delta, error]
	Close() error
}

// TaskEngine produces exactly one completion for a one-shot task with
// static context.
type TaskEngine interface {
	Complete(ctx context.Context, task, context string) iter.Seq2[Delta, error]
}

// BatchEngine is stateless across calls; it receives the full message list
// every time because it retains no conversation state of its own.
type BatchEngine interface {
	Generate(ctx context.Context, messages []protocol.Message, temperature float64) iter.Seq2[Delta, error]
}
