// Package retrieval provides the search and context-assembly collaborators
// consumed by the session controller: the Retriever contract with a
// chromem-go vector store implementation, and the ContextBuilder contract
// with a token-estimating default builder.
package retrieval

import (
	"context"
	"time"
)

// Filters narrows a retrieval query. All fields are optional; zero values
// apply no restriction.
type Filters struct {
	PostTypes  []string `json:"postType,omitempty"`
	MinDate    string   `json:"minDate,omitempty"` // ISO date, e.g. "2024-06-01"
	Categories []string `json:"categoryPrimary,omitempty"`
}

// Post identifies one source document that contributed chunks.
type Post struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	URL      string   `json:"url,omitempty"`
	Date     string   `json:"date,omitempty"`
	Type     string   `json:"type,omitempty"`
	Category []string `json:"category,omitempty"`
}

// Chunk is one retrieved unit of source content with its relevance score.
type Chunk struct {
	PostID  string  `json:"postId"`
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content"`
	Score   float32 `json:"score"`
}

// Metadata carries retrieval bookkeeping. The session controller augments
// Elapsed with its own timing keys.
type Metadata struct {
	Elapsed     map[string]time.Duration `json:"elapsed"`
	TotalChunks int                      `json:"totalChunks"`
}

// Result is the outcome of one retrieval query.
type Result struct {
	Posts    []Post   `json:"posts"`
	Chunks   []Chunk  `json:"chunks"`
	Metadata Metadata `json:"metadata"`
}

// Retriever turns a query plus filters into ranked content chunks.
type Retriever interface {
	Search(ctx context.Context, query string, filters Filters) (*Result, error)
}
