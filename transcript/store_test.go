package transcript_test

import (
	"errors"
	"testing"
	"time"

	"github.com/tailored-agentic-units/converse/core/protocol"
	"github.com/tailored-agentic-units/converse/transcript"
)

func sampleTranscript(id string) *transcript.Transcript {
	return &transcript.Transcript{
		ID:        id,
		Provider:  "platform",
		Model:     "test-model",
		StartedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Turns: []protocol.Message{
			protocol.NewMessage(protocol.RoleUser, "What is X?"),
			protocol.NewMessage(protocol.RoleAssistant, "X is a thing."),
		},
		TokensUsed:  150,
		TokenLimit:  2000,
		ChunksFinal: 4,
	}
}

func stores(t *testing.T) map[string]transcript.Store {
	t.Helper()
	return map[string]transcript.Store{
		"file": transcript.NewFileStore(t.TempDir()),
		"mem":  transcript.NewMemStore(),
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			saved := sampleTranscript("session-1")
			if err := store.Save(t.Context(), saved); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			loaded, err := store.Load(t.Context(), "session-1")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			if loaded.ID != saved.ID || loaded.Provider != saved.Provider || loaded.Model != saved.Model {
				t.Errorf("identity fields lost: %+v", loaded)
			}
			if !loaded.StartedAt.Equal(saved.StartedAt) {
				t.Errorf("StartedAt = %v, want %v", loaded.StartedAt, saved.StartedAt)
			}
			if len(loaded.Turns) != 2 {
				t.Fatalf("got %d turns, want 2", len(loaded.Turns))
			}
			if loaded.Turns[1].Role != protocol.RoleAssistant || loaded.Turns[1].Content != "X is a thing." {
				t.Errorf("assistant turn lost: %+v", loaded.Turns[1])
			}
			if loaded.TokensUsed != 150 || loaded.TokenLimit != 2000 || loaded.ChunksFinal != 4 {
				t.Errorf("accounting fields lost: %+v", loaded)
			}
		})
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			first := sampleTranscript("session-1")
			if err := store.Save(t.Context(), first); err != nil {
				t.Fatal(err)
			}

			updated := sampleTranscript("session-1")
			updated.TokensUsed = 900
			if err := store.Save(t.Context(), updated); err != nil {
				t.Fatal(err)
			}

			loaded, err := store.Load(t.Context(), "session-1")
			if err != nil {
				t.Fatal(err)
			}
			if loaded.TokensUsed != 900 {
				t.Errorf("TokensUsed = %d, want 900", loaded.TokensUsed)
			}
		})
	}
}

func TestStore_LoadMissing(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Load(t.Context(), "absent"); !errors.Is(err, transcript.ErrNotFound) {
				t.Errorf("got %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_List(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"b-session", "a-session"} {
				if err := store.Save(t.Context(), sampleTranscript(id)); err != nil {
					t.Fatal(err)
				}
			}

			ids, err := store.List(t.Context())
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(ids) != 2 {
				t.Fatalf("got %d ids %v, want 2", len(ids), ids)
			}
			seen := map[string]bool{}
			for _, id := range ids {
				seen[id] = true
			}
			if !seen["a-session"] || !seen["b-session"] {
				t.Errorf("missing ids in %v", ids)
			}
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Save(t.Context(), sampleTranscript("session-1")); err != nil {
				t.Fatal(err)
			}
			if err := store.Delete(t.Context(), "session-1"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, err := store.Load(t.Context(), "session-1"); !errors.Is(err, transcript.ErrNotFound) {
				t.Errorf("got %v after delete, want ErrNotFound", err)
			}

			// Deleting a missing ID is not an error.
			if err := store.Delete(t.Context(), "session-1"); err != nil {
				t.Errorf("second Delete failed: %v", err)
			}
		})
	}
}

func TestFileStore_ListEmptyRoot(t *testing.T) {
	store := transcript.NewFileStore("/nonexistent/transcripts")
	ids, err := store.List(t.Context())
	if err != nil {
		t.Fatalf("List on missing root failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("got %v, want no ids", ids)
	}
}

func TestMemStore_LoadReturnsCopy(t *testing.T) {
	store := transcript.NewMemStore()
	if err := store.Save(t.Context(), sampleTranscript("s")); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load(t.Context(), "s")
	if err != nil {
		t.Fatal(err)
	}
	loaded.TokensUsed = 999999

	reloaded, err := store.Load(t.Context(), "s")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.TokensUsed != 150 {
		t.Error("mutating a loaded transcript must not affect the store")
	}
}
