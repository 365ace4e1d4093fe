// Package transcript persists completed conversations: the committed turns
// plus the final token accounting of a session epoch.
package transcript

import (
	"context"
	"time"

	"github.com/tailored-agentic-units/converse/core/protocol"
)

// Transcript is one saved conversation.
type Transcript struct {
	ID        string             `json:"id"`
	Provider  string             `json:"provider"`
	Model     string             `json:"model"`
	StartedAt time.Time          `json:"startedAt"`
	Turns     []protocol.Message `json:"turns"`

	TokensUsed  int `json:"tokensUsed"`
	TokenLimit  int `json:"tokenLimit,omitempty"`
	ChunksFinal int `json:"chunksFinal,omitempty"`
}

// Store persists transcripts keyed by session ID. Implementations are
// stateless — they perform I/O on each call without caching.
type Store interface {
	// List returns all stored transcript IDs.
	List(ctx context.Context) ([]string, error)
	// Load retrieves one transcript by ID.
	Load(ctx context.Context, id string) (*Transcript, error)
	// Save persists a transcript, creating or overwriting as needed.
	Save(ctx context.Context, t *Transcript) error
	// Delete removes a transcript. A missing ID is ignored.
	Delete(ctx context.Context, id string) error
}
