package backend

import (
	"context"
	"iter"
	"slices"
	"strings"

	"github.com/tailored-agentic-units/converse/core/protocol"
)

// NewSessionEngine adapts a stateless batch engine into the persistent
// session-engine contract by carrying conversation state client-side. Each
// prompt replays the accumulated messages; the exchange is committed to the
// bridge's state only after the underlying stream completes.
func NewSessionEngine(batch BatchEngine) SessionEngine {
	return &bridgeEngine{batch: batch}
}

type bridgeEngine struct {
	batch BatchEngine
}

func (e *bridgeEngine) Open(ctx context.Context, system string, temperature float64) (EngineSession, error) {
	sess := &bridgeSession{batch: e.batch, temperature: temperature}
	if system != "" {
		sess.messages = []protocol.Message{protocol.NewMessage(protocol.RoleSystem, system)}
	}
	return sess, nil
}

type bridgeSession struct {
	batch       BatchEngine
	temperature float64
	messages    []protocol.Message
}

func (s *bridgeSession) Prompt(ctx context.Context, text string) iter.Seq2[Delta, error] {
	return func(yield func(Delta, error) bool) {
		msgs := append(slices.Clone(s.messages), protocol.NewMessage(protocol.RoleUser, text))

		var out strings.Builder
		for d, err := range s.batch.Generate(ctx, msgs, s.temperature) {
			if err != nil {
				yield(Delta{}, err)
				return
			}
			out.WriteString(d.Text)
			if !yield(d, nil) {
				return
			}
		}

		s.messages = append(msgs, protocol.NewMessage(protocol.RoleAssistant, out.String()))
	}
}

func (s *bridgeSession) Close() error {
	s.messages = nil
	return nil
}
