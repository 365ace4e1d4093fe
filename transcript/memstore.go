package transcript

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type memStore struct {
	mu          sync.RWMutex
	transcripts map[string]*Transcript
}

// NewMemStore creates an in-memory Store, useful for tests and ephemeral
// sessions.
func NewMemStore() Store {
	return &memStore{transcripts: make(map[string]*Transcript)}
}

func (s *memStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.transcripts))
	for id := range s.transcripts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memStore) Load(_ context.Context, id string) (*Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.transcripts[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	copied := *t
	return &copied, nil
}

func (s *memStore) Save(_ context.Context, t *Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *t
	s.transcripts[t.ID] = &copied
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.transcripts, id)
	return nil
}
