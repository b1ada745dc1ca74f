// Package repository keeps the process-scoped registry of live game
// sessions.
package repository

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tecu23/arena-server/pkg/game"
)

// InMemoryRepository is an in-memory session registry. Sessions are lost on
// restart.
type InMemoryRepository struct {
	sessions  map[string]*game.Session
	evictions map[string]*time.Timer
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewInMemoryRepository creates an empty registry
func NewInMemoryRepository(logger *zap.Logger) *InMemoryRepository {
	return &InMemoryRepository{
		sessions:  make(map[string]*game.Session),
		evictions: make(map[string]*time.Timer),
		logger:    logger,
	}
}

// GetOrCreate returns the session registered under id, building it with
// create when absent. The boolean reports whether a new session was made.
func (r *InMemoryRepository) GetOrCreate(id string, create func() *game.Session) (*game.Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return s, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Lost the race to another creator
	if s, ok := r.sessions[id]; ok {
		return s, false
	}

	s = create()
	r.sessions[id] = s
	r.logger.Debug("session created", zap.String("game_id", id))
	return s, true
}

// Add registers a session built by the caller. It fails when the id is taken.
func (r *InMemoryRepository) Add(s *game.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	r.sessions[s.ID] = s
	return nil
}

// Get retrieves a session by id
func (r *InMemoryRepository) Get(id string) (*game.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", game.ErrGameNotFound, id)
	}
	return s, nil
}

// Remove evicts a session and stops its timers. It reports whether the
// session was present.
func (r *InMemoryRepository) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	if t, scheduled := r.evictions[id]; scheduled {
		t.Stop()
		delete(r.evictions, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	s.Close()
	r.logger.Debug("session removed", zap.String("game_id", id))
	return true
}

// ScheduleEviction removes the session after the given delay. Scheduling
// again for the same id replaces the earlier timer.
func (r *InMemoryRepository) ScheduleEviction(id string, after time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return
	}
	if t, ok := r.evictions[id]; ok {
		t.Stop()
	}

	r.evictions[id] = time.AfterFunc(after, func() {
		r.Remove(id)
	})
}

// List returns every registered session, oldest first.
func (r *InMemoryRepository) List() []*game.Session {
	r.mu.RLock()
	out := make([]*game.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ListOpen returns the sessions that are waiting for an opponent or in
// play.
func (r *InMemoryRepository) ListOpen() []*game.Session {
	var open []*game.Session
	for _, s := range r.List() {
		if !s.Status().Terminal() {
			open = append(open, s)
		}
	}
	return open
}

// Count returns the number of registered sessions.
func (r *InMemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close stops every pending eviction and session timer.
func (r *InMemoryRepository) Close() {
	r.mu.Lock()
	sessions := r.sessions
	for _, t := range r.evictions {
		t.Stop()
	}
	r.sessions = make(map[string]*game.Session)
	r.evictions = make(map[string]*time.Timer)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
