package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"streamlayout/internal/core/domain"
	"streamlayout/internal/core/ports"
)

type MemorySessionRepository struct {
	sessions map[domain.SessionID]ports.LayoutSession
	mu       sync.RWMutex
}

// NewMemorySessionRepository creates a new in-memory session repository.
func NewMemorySessionRepository() ports.SessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[domain.SessionID]ports.LayoutSession),
	}
}

// Add stores session. It fails with domain.ErrSessionExists for a known id.
func (r *MemorySessionRepository) Add(ctx context.Context, session ports.LayoutSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID()]; exists {
		return fmt.Errorf("session %s: %w", session.ID(), domain.ErrSessionExists)
	}

	r.sessions[session.ID()] = session
	return nil
}

func (r *MemorySessionRepository) GetByID(ctx context.Context, id domain.SessionID) (ports.LayoutSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}

	return session, nil
}

func (r *MemorySessionRepository) Remove(ctx context.Context, id domain.SessionID) (ports.LayoutSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}

	delete(r.sessions, id)
	return session, nil
}

// List returns sessions ordered by id.
func (r *MemorySessionRepository) List(ctx context.Context) ([]ports.LayoutSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]ports.LayoutSession, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID() < sessions[j].ID()
	})

	return sessions, nil
}
