package session

import (
	"context"

	"github.com/tailored-agentic-units/converse/retrieval"
)

// ContextState holds the currently assembled retrieval context. It is
// replaced wholesale by Start and mutated in place only by the halving
// reduction. ChunkCount never increases within an epoch.
type ContextState struct {
	Text           string
	ChunkCount     int
	TokenBreakdown retrieval.Breakdown
	RawChunks      []retrieval.Chunk
	InitialQuery   string
}

// reduce applies the halving back-off: rebuild the context from
// max(chunkCount/2, minChunks) chunks. Returns false without touching state
// when there is nothing to reduce or the rebuild fails. This trades context
// completeness for a bounded number of retries, not a precise token fit.
func (cs *ContextState) reduce(ctx context.Context, builder retrieval.ContextBuilder, provider, model string, minChunks int) bool {
	if len(cs.RawChunks) == 0 || cs.ChunkCount <= minChunks {
		return false
	}

	target := cs.ChunkCount / 2
	if target < minChunks {
		target = minChunks
	}

	built, err := builder.RebuildWithLimit(ctx, retrieval.RebuildRequest{
		Chunks:           cs.RawChunks,
		Query:            cs.InitialQuery,
		Provider:         provider,
		Model:            model,
		TargetChunkCount: target,
	})
	if err != nil {
		return false
	}

	cs.Text = built.Context
	cs.ChunkCount = built.ChunkCount
	cs.TokenBreakdown = built.TokenBreakdown
	return true
}
