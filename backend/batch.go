package backend

import (
	"context"

	"github.com/tailored-agentic-units/converse/core/protocol"
)

// batchHandler adapts a BatchEngine. The engine retains no conversation
// state, so every Send carries the full reconstructed message list. The
// handler itself is cheap and holds no engine resources.
type batchHandler struct {
	engine      BatchEngine
	temperature float64
	tracks      bool
	t           totals
}

// NewBatchHandler creates a stateless multi-turn handler over a batch engine.
func NewBatchHandler(engine BatchEngine, temperature float64, tracksTokens bool) Handler {
	return &batchHandler{engine: engine, temperature: temperature, tracks: tracksTokens}
}

func (h *batchHandler) Send(ctx context.Context, input Input) (protocol.Stream, error) {
	est := estimateMessages(input.Messages)
	return relay(h.engine.Generate(ctx, input.Messages, h.temperature), est, h.tracks, &h.t), nil
}

func (h *batchHandler) Close(ctx context.Context) error {
	return nil
}
