package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type pairKey struct {
	playerID string
	npcID    string
}

// MemStore is an in-memory [Store] for tests and local development. It is
// safe for concurrent use.
type MemStore struct {
	mu      sync.Mutex
	players map[string]struct{}
	pairs   map[pairKey][]Exchange
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory history store.
func NewMemStore() *MemStore {
	return &MemStore{
		players: make(map[string]struct{}),
		pairs:   make(map[pairKey][]Exchange),
	}
}

func (s *MemStore) Recent(_ context.Context, playerID, npcID string, limit int) ([]Exchange, error) {
	if limit <= 0 {
		return []Exchange{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.pairs[pairKey{playerID, npcID}]
	if len(seq) > limit {
		seq = seq[len(seq)-limit:]
	}
	window := make([]Exchange, len(seq))
	copy(window, seq)
	return window, nil
}

func (s *MemStore) Append(_ context.Context, playerID, npcID string, ex Exchange) error {
	if playerID == "" || npcID == "" {
		return fmt.Errorf("history: append: playerID and npcID must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}
	s.players[playerID] = struct{}{}
	key := pairKey{playerID, npcID}
	s.pairs[key] = append(s.pairs[key], ex)
	return nil
}

func (s *MemStore) CreatePlayer(_ context.Context, playerID string) error {
	if playerID == "" {
		return fmt.Errorf("history: create player: id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[playerID]; ok {
		return fmt.Errorf("%w: %q", ErrPlayerExists, playerID)
	}
	s.players[playerID] = struct{}{}
	return nil
}

func (s *MemStore) PlayerHistory(_ context.Context, playerID string) (map[string][]Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[playerID]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrPlayerNotFound, playerID)
	}

	result := make(map[string][]Exchange)
	for key, seq := range s.pairs {
		if key.playerID != playerID {
			continue
		}
		cp := make([]Exchange, len(seq))
		copy(cp, seq)
		result[key.npcID] = cp
	}
	return result, nil
}

func (s *MemStore) ListPlayers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
