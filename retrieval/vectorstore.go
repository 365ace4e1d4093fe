package retrieval

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
)

const defaultTopK = 8

// VectorStore is a Retriever backed by a chromem-go collection. Documents
// are indexed per chunk with post metadata so filters can be applied at
// query time. A dataDir of "" keeps the store in memory; otherwise it
// persists under dataDir.
type VectorStore struct {
	mu   sync.RWMutex
	db   *chromem.DB
	col  *chromem.Collection
	topK int
}

const collectionName = "chunks"

// NewVectorStore opens (or creates) a vector store. embed computes chunk
// embeddings; pass chromem.NewEmbeddingFuncOpenAICompat for a hosted
// embedding endpoint, or a local function in tests.
func NewVectorStore(dataDir string, embed chromem.EmbeddingFunc) (*VectorStore, error) {
	var db *chromem.DB
	var err error
	if dataDir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dataDir, false)
		if err != nil {
			return nil, fmt.Errorf("open vector store: %w", err)
		}
	}

	col := db.GetCollection(collectionName, embed)
	if col == nil {
		col, err = db.CreateCollection(collectionName, nil, embed)
		if err != nil {
			return nil, fmt.Errorf("create collection: %w", err)
		}
	}

	return &VectorStore{db: db, col: col, topK: defaultTopK}, nil
}

// SetTopK overrides how many chunks Search retrieves before filtering.
func (s *VectorStore) SetTopK(k int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k > 0 {
		s.topK = k
	}
}

// Index adds (or re-adds) a post's chunks to the store. Each chunk becomes
// one document whose metadata carries the post attributes used by Filters.
func (s *VectorStore) Index(ctx context.Context, post Post, chunks []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, content := range chunks {
		doc := chromem.Document{
			ID:      fmt.Sprintf("%s#%d", post.ID, i),
			Content: content,
			Metadata: map[string]string{
				"post_id":  post.ID,
				"title":    post.Title,
				"url":      post.URL,
				"date":     post.Date,
				"type":     post.Type,
				"category": strings.Join(post.Category, ","),
			},
		}
		if err := s.col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", doc.ID, err)
		}
	}
	return nil
}

// Count reports how many chunks are indexed.
func (s *VectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.col.Count()
}

// Search returns the chunks most similar to the query that pass the
// filters, plus the distinct posts they came from, ordered by best score.
func (s *VectorStore) Search(ctx context.Context, query string, filters Filters) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	started := time.Now()

	result := &Result{
		Metadata: Metadata{Elapsed: map[string]time.Duration{}},
	}

	count := s.col.Count()
	if count == 0 {
		result.Metadata.Elapsed["vector_search"] = time.Since(started)
		return result, nil
	}

	k := s.topK
	if k > count {
		k = count
	}

	hits, err := s.col.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	seen := make(map[string]int) // post ID -> index into result.Posts
	for _, hit := range hits {
		post := postFromMetadata(hit.Metadata)
		if !matchesFilters(post, filters) {
			continue
		}

		result.Chunks = append(result.Chunks, Chunk{
			PostID:  post.ID,
			Title:   post.Title,
			Content: hit.Content,
			Score:   hit.Similarity,
		})

		if _, ok := seen[post.ID]; !ok {
			seen[post.ID] = len(result.Posts)
			result.Posts = append(result.Posts, post)
		}
	}

	result.Metadata.TotalChunks = len(result.Chunks)
	result.Metadata.Elapsed["vector_search"] = time.Since(started)
	return result, nil
}

func postFromMetadata(meta map[string]string) Post {
	post := Post{
		ID:    meta["post_id"],
		Title: meta["title"],
		URL:   meta["url"],
		Date:  meta["date"],
		Type:  meta["type"],
	}
	if cats := meta["category"]; cats != "" {
		post.Category = strings.Split(cats, ",")
	}
	return post
}

// matchesFilters applies Filters in code rather than through chromem's
// where-map, which only supports single exact matches. ISO dates compare
// lexicographically.
func matchesFilters(post Post, filters Filters) bool {
	if len(filters.PostTypes) > 0 && !slices.Contains(filters.PostTypes, post.Type) {
		return false
	}
	if filters.MinDate != "" && post.Date != "" && post.Date < filters.MinDate {
		return false
	}
	if len(filters.Categories) > 0 {
		matched := false
		for _, want := range filters.Categories {
			if slices.Contains(post.Category, want) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
