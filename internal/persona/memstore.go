package persona

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// It is suitable for tests and single-process deployments without a database.
type MemStore struct {
	mu       sync.RWMutex
	personas map[string]Persona
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		personas: make(map[string]Persona),
	}
}

// Create implements [Store.Create].
func (s *MemStore) Create(_ context.Context, p *Persona) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.personas[p.ID]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, p.ID)
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.personas[p.ID] = *p
	return nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(_ context.Context, id string) (*Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.personas[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// UpdateDescription implements [Store.UpdateDescription].
func (s *MemStore) UpdateDescription(_ context.Context, id, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.personas[id]
	if !ok {
		return nil
	}
	p.Description = description
	p.UpdatedAt = time.Now()
	s.personas[id] = p
	return nil
}

// UpdateVoice implements [Store.UpdateVoice].
func (s *MemStore) UpdateVoice(_ context.Context, id, voiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.personas[id]
	if !ok {
		return nil
	}
	p.VoiceID = voiceID
	p.UpdatedAt = time.Now()
	s.personas[id] = p
	return nil
}

// List implements [Store.List].
func (s *MemStore) List(context.Context) ([]Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Persona, 0, len(s.personas))
	for _, p := range s.personas {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
