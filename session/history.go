package session

import (
	"sync"

	"github.com/tailored-agentic-units/converse/core/protocol"
)

// history holds the committed conversation turns. A user+assistant pair is
// appended atomically only after a turn's stream completes, so the length
// is even at every externally observable point.
type history struct {
	mu       sync.RWMutex
	messages []protocol.Message
}

func (h *history) AppendPair(userContent, assistantContent string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages,
		protocol.NewMessage(protocol.RoleUser, userContent),
		protocol.NewMessage(protocol.RoleAssistant, assistantContent),
	)
}

// Messages returns a defensive copy of the committed turns.
func (h *history) Messages() []protocol.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	copied := make([]protocol.Message, len(h.messages))
	copy(copied, h.messages)
	return copied
}

func (h *history) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

func (h *history) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}
