package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tailored-agentic-units/converse/core/tokens"
)

// ErrNoChunks is returned when a build is requested with no chunks to
// assemble.
var ErrNoChunks = errors.New("no chunks to build context from")

// Breakdown itemizes the estimated token cost of an assembled context.
type Breakdown struct {
	Query   int `json:"query"`
	Context int `json:"context"`
	Total   int `json:"total"`
}

// BuildRequest asks for a context assembled from ranked chunks.
type BuildRequest struct {
	Chunks       []Chunk
	Query        string
	Provider     string
	Model        string
	ForMultiTurn bool
	IsFirstTurn  bool
}

// RebuildRequest asks for a context rebuilt under a chunk-count ceiling.
// Used by the controller's halving back-off when tokens run short.
type RebuildRequest struct {
	Chunks           []Chunk
	Query            string
	Provider         string
	Model            string
	TargetChunkCount int
}

// BuiltContext is the outcome of a context build: the assembled text, how
// many chunks made it in, and the estimated token cost.
type BuiltContext struct {
	Context        string
	ChunkCount     int
	TokenBreakdown Breakdown
	TokenEstimate  int
}

// ContextBuilder turns ranked chunks into a context string with an
// estimated token cost.
type ContextBuilder interface {
	Build(ctx context.Context, req BuildRequest) (*BuiltContext, error)
	RebuildWithLimit(ctx context.Context, req RebuildRequest) (*BuiltContext, error)
}

// Builder is the default ContextBuilder. It orders chunks by relevance,
// caps them at MaxChunks, and formats them as numbered source blocks.
type Builder struct {
	// MaxChunks caps how many chunks an unbounded Build may include.
	MaxChunks int
}

// NewBuilder creates a Builder with the given chunk cap. A cap of zero or
// less means no cap.
func NewBuilder(maxChunks int) *Builder {
	return &Builder{MaxChunks: maxChunks}
}

// Build assembles a context from the highest-scoring chunks.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (*BuiltContext, error) {
	limit := len(req.Chunks)
	if b.MaxChunks > 0 && b.MaxChunks < limit {
		limit = b.MaxChunks
	}
	return b.assemble(req.Chunks, req.Query, limit)
}

// RebuildWithLimit assembles a context from at most TargetChunkCount chunks.
// Fails when the target is not satisfiable.
func (b *Builder) RebuildWithLimit(ctx context.Context, req RebuildRequest) (*BuiltContext, error) {
	if req.TargetChunkCount <= 0 {
		return nil, fmt.Errorf("invalid target chunk count %d", req.TargetChunkCount)
	}
	limit := req.TargetChunkCount
	if limit > len(req.Chunks) {
		limit = len(req.Chunks)
	}
	return b.assemble(req.Chunks, req.Query, limit)
}

func (b *Builder) assemble(chunks []Chunk, query string, limit int) (*BuiltContext, error) {
	if len(chunks) == 0 || limit == 0 {
		return nil, ErrNoChunks
	}

	ranked := make([]Chunk, len(chunks))
	copy(ranked, chunks)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	ranked = ranked[:limit]

	var sb strings.Builder
	for i, chunk := range ranked {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		title := chunk.Title
		if title == "" {
			title = chunk.PostID
		}
		fmt.Fprintf(&sb, "[Source %d: %s]\n%s", i+1, title, chunk.Content)
	}
	text := sb.String()

	breakdown := Breakdown{
		Query:   tokens.Estimate(query),
		Context: tokens.Estimate(text),
	}
	breakdown.Total = breakdown.Query + breakdown.Context

	return &BuiltContext{
		Context:        text,
		ChunkCount:     len(ranked),
		TokenBreakdown: breakdown,
		TokenEstimate:  breakdown.Total,
	}, nil
}
