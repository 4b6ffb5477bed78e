package game

import (
	"context"
	"sync"
	"time"
)

// SavedGame is one stored match as listed to the UI shell.
type SavedGame struct {
	ID        string      `json:"id"`
	Snapshot  AppSnapshot `json:"snapshot"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// GameStore is the persistence collaborator contract. Save may assign a new
// id on first save and returns the effective one; Load reports found=false
// for an unknown id without an error.
type GameStore interface {
	Save(ctx context.Context, id string, snap AppSnapshot) (string, error)
	Load(ctx context.Context, id string) (AppSnapshot, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]SavedGame, error)
}

// InMemoryGameStore keeps saved games in a map. Used in tests and as the
// fallback when no database is configured.
type InMemoryGameStore struct {
	mu sync.Mutex
	m  map[string]SavedGame
}

func NewInMemoryGameStore() *InMemoryGameStore {
	return &InMemoryGameStore{m: make(map[string]SavedGame)}
}

func (s *InMemoryGameStore) Save(ctx context.Context, id string, snap AppSnapshot) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		id = snap.GameID
	}
	s.m[id] = SavedGame{ID: id, Snapshot: snap, UpdatedAt: time.Now()}
	return id, nil
}

func (s *InMemoryGameStore) Load(ctx context.Context, id string) (AppSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sg, ok := s.m[id]
	if !ok {
		return AppSnapshot{}, false, nil
	}
	return sg.Snapshot, true, nil
}

func (s *InMemoryGameStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[id]
	delete(s.m, id)
	return ok, nil
}

func (s *InMemoryGameStore) List(ctx context.Context) ([]SavedGame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SavedGame, 0, len(s.m))
	for _, sg := range s.m {
		out = append(out, sg)
	}
	return out, nil
}
