package backend

import (
	"context"
	"fmt"

	"github.com/tailored-agentic-units/converse/core/protocol"
	"github.com/tailored-agentic-units/converse/core/tokens"
)

// persistentHandler adapts a SessionEngine. The engine session is opened
// lazily on the first Send from the system text and sampling temperature;
// later turns carry only the newest user message since prior turns already
// live in the engine's own state.
type persistentHandler struct {
	engine      SessionEngine
	temperature float64
	tracks      bool

	sess   EngineSession
	opened bool
	t      totals
}

// NewPersistentHandler creates a multi-turn handler over a session engine.
func NewPersistentHandler(engine SessionEngine, temperature float64, tracksTokens bool) Handler {
	return &persistentHandler{engine: engine, temperature: temperature, tracks: tracksTokens}
}

func (h *persistentHandler) Send(ctx context.Context, input Input) (protocol.Stream, error) {
	first := false
	if h.sess == nil {
		sess, err := h.engine.Open(ctx, input.System, h.temperature)
		if err != nil {
			return nil, fmt.Errorf("open engine session: %w", err)
		}
		h.sess = sess
		first = true
	}

	est := tokens.EstimateMessage(input.Latest)
	if first {
		est += tokens.EstimateMessage(input.System)
	}

	return relay(h.sess.Prompt(ctx, input.Latest), est, h.tracks, &h.t), nil
}

func (h *persistentHandler) Close(ctx context.Context) error {
	if h.sess == nil {
		return nil
	}
	err := h.sess.Close()
	h.sess = nil
	return err
}
