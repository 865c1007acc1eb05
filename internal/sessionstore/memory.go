package sessionstore

import (
	"context"
	"sync"

	"petapt/internal/domain"
)

type memoryEntry struct {
	identity  domain.Identity
	hasID     bool
	marker    Marker
	hasMarker bool
}

// MemoryStore is a process-local Store used in tests and when Redis is not configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) LoadIdentity(_ context.Context, sessionID string) (domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[sessionID]
	if !ok || !e.hasID {
		return domain.Identity{}, ErrNoState
	}
	return e.identity, nil
}

func (s *MemoryStore) SaveIdentity(_ context.Context, sessionID string, identity domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[sessionID]
	e.identity, e.hasID = identity, true
	s.entries[sessionID] = e
	return nil
}

func (s *MemoryStore) LoadMarker(_ context.Context, sessionID string) (Marker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[sessionID]
	if !ok || !e.hasMarker {
		return Marker{}, ErrNoState
	}
	return e.marker, nil
}

func (s *MemoryStore) SaveMarker(_ context.Context, sessionID string, marker Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[sessionID]
	e.marker, e.hasMarker = marker, true
	s.entries[sessionID] = e
	return nil
}

func (s *MemoryStore) DeleteMarker(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok {
		return nil
	}
	e.marker, e.hasMarker = Marker{}, false
	s.entries[sessionID] = e
	return nil
}
