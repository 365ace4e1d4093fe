package backend

import (
	"iter"
	"strings"

	"github.com/tailored-agentic-units/converse/core/protocol"
	"github.com/tailored-agentic-units/converse/core/tokens"
)

// totals accumulates a handler's cumulative token usage across turns.
type totals struct {
	input  int
	output int
}

// relay consumes raw engine deltas and produces the canonical
// data*/finishReason/usage event grammar. Each event is emitted only on
// consumer demand; there is no producer-side buffering. Totals are updated
// and the usage event emitted only after the engine sequence completes
// without error, so an abandoned or failed stream leaves the cumulative
// figures exactly as they were.
//
// When the engine reports no usage (or tracking is disabled), this turn's
// figures fall back to estimatedInput and a heuristic over the produced
// text.
func relay(deltas iter.Seq2[Delta, error], estimatedInput int, tracks bool, t *totals) protocol.Stream {
	return func(yield func(protocol.Event, error) bool) {
		var text strings.Builder
		finish := ""
		var reported *TokenCount

		for d, err := range deltas {
			if err != nil {
				yield(protocol.Event{}, err)
				return
			}
			if d.Text != "" {
				text.WriteString(d.Text)
				if !yield(protocol.Event{Type: protocol.EventData, Message: d.Text}, nil) {
					return
				}
			}
			if d.FinishReason != "" {
				finish = d.FinishReason
			}
			if d.Usage != nil {
				reported = d.Usage
			}
		}

		if finish == "" {
			finish = "stop"
		}
		if !yield(protocol.Event{Type: protocol.EventFinishReason, Message: finish}, nil) {
			return
		}

		in, out := estimatedInput, tokens.Estimate(text.String())
		if tracks && reported != nil {
			in, out = reported.Input, reported.Output
		}
		t.input += in
		t.output += out

		usage := &Usage{
			InputTokens:       in,
			OutputTokens:      out,
			TotalInputTokens:  t.input,
			TotalOutputTokens: t.output,
			TotalTokens:       t.input + t.output,
			Text:              text.String(),
		}
		yield(protocol.Event{Type: protocol.EventUsage, Message: usage}, nil)
	}
}

// estimateMessages sums the heuristic cost of a full message list.
func estimateMessages(messages []protocol.Message) int {
	total := 0
	for _, msg := range messages {
		total += tokens.EstimateMessage(msg.Content)
	}
	return total
}
