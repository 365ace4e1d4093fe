package backend

import (
	"context"

	"github.com/tailored-agentic-units/converse/core/protocol"
	"github.com/tailored-agentic-units/converse/core/tokens"
)

// oneshotHandler adapts a TaskEngine. It produces exactly one turn; any
// second Send fails synchronously without invoking the engine.
type oneshotHandler struct {
	engine TaskEngine
	tracks bool
	used   bool
	t      totals
}

// NewOneShotHandler creates a single-turn handler over a task engine.
func NewOneShotHandler(engine TaskEngine, tracksTokens bool) Handler {
	return &oneshotHandler{engine: engine, tracks: tracksTokens}
}

func (h *oneshotHandler) Send(ctx context.Context, input Input) (protocol.Stream, error) {
	if h.used {
		return nil, ErrUnsupportedFollowUp
	}
	h.used = true

	est := tokens.EstimateMessage(input.Latest) + tokens.Estimate(input.Context)
	return relay(h.engine.Complete(ctx, input.Latest, input.Context), est, h.tracks, &h.t), nil
}

func (h *oneshotHandler) Close(ctx context.Context) error {
	return nil
}
