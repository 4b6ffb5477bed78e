package game

import (
	"context"
	"log/slog"
	"sync"

	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/opqueue"
	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/session"
	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/timer"
)

// Service keeps the in-memory controller cache and restores sessions from
// the persistence collaborator on demand.
type Service struct {
	log         *slog.Logger
	cfg         Config
	store       GameStore
	checkpoints timer.CheckpointStore
	queue       *opqueue.Queue
	loads       *opqueue.LoadingRegistry

	mu sync.Mutex
	in map[string]*Controller
}

func NewService(cfg Config, store GameStore, checkpoints timer.CheckpointStore,
	queue *opqueue.Queue, loads *opqueue.LoadingRegistry, log *slog.Logger) *Service {

	if log == nil {
		log = slog.Default()
	}
	return &Service{
		log:         log,
		cfg:         cfg,
		store:       store,
		checkpoints: checkpoints,
		queue:       queue,
		loads:       loads,
		in:          make(map[string]*Controller),
	}
}

// Create starts a fresh session from the supplied details and persists its
// initial snapshot.
func (s *Service) Create(ctx context.Context, details session.GamePayload) (*Controller, string) {
	c := NewController("", s.cfg, s.store, s.checkpoints, s.queue, s.loads, nil, s.log)
	id := c.NewGame(details)

	s.mu.Lock()
	s.in[id] = c
	s.mu.Unlock()
	s.trackRekeys(c)
	return c, id
}

// trackRekeys re-keys the cache when a controller switches to a different
// game (load_game / new_game), so two live controllers never autosave the
// same saved-game row.
func (s *Service) trackRekeys(c *Controller) {
	c.setRekey(func(oldID, newID string) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.in[oldID] == c {
			delete(s.in, oldID)
		}
		if other, ok := s.in[newID]; ok && other != c {
			// another controller already owns this game; keep it
			s.log.Warn("duplicate live session for game", "gameId", newID)
			return
		}
		s.in[newID] = c
	})
}

// GetOrLoad returns the cached controller for id, or restores the session
// from storage. found=false means no such saved game.
func (s *Service) GetOrLoad(ctx context.Context, id string) (*Controller, bool, error) {
	s.mu.Lock()
	c, ok := s.in[id]
	s.mu.Unlock()
	if ok {
		return c, true, nil
	}

	c = NewController(id, s.cfg, s.store, s.checkpoints, s.queue, s.loads, nil, s.log)
	err := <-c.LoadGame(id)
	if err != nil {
		c.Close()
		if err == ErrGameNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}

	s.mu.Lock()
	// a concurrent GetOrLoad may have raced us; keep the first one
	if existing, ok := s.in[id]; ok {
		s.mu.Unlock()
		c.Close()
		return existing, true, nil
	}
	s.in[id] = c
	s.mu.Unlock()
	s.trackRekeys(c)
	return c, true, nil
}

// List returns every saved game from the persistence collaborator.
func (s *Service) List(ctx context.Context) ([]SavedGame, error) {
	return s.store.List(ctx)
}

// Delete removes a saved game and evicts its controller.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	if c, ok := s.in[id]; ok {
		c.Close()
		delete(s.in, id)
	}
	s.mu.Unlock()

	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if s.checkpoints != nil {
		if cerr := s.checkpoints.DeleteCheckpoint(ctx, id); cerr != nil {
			s.log.Warn("checkpoint delete failed", "gameId", id, "err", cerr)
		}
	}
	return ok, nil
}

// Close tears down every cached controller.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.in {
		c.Close()
		delete(s.in, id)
	}
}
