package storage

import (
	"context"
	"sort"
	"sync"

	"planreminder/internal/model"
)

// MemoryStore is a mutex-guarded in-process ClientStore, used when no
// database is configured and throughout the tests.
type MemoryStore struct {
	mu      sync.RWMutex
	clients map[string]model.Client
}

func NewMemoryStore(clients ...model.Client) *MemoryStore {
	s := &MemoryStore{clients: make(map[string]model.Client, len(clients))}
	for _, c := range clients {
		s.clients[c.ID] = c
	}
	return s
}

// Clients returns a snapshot ordered by client id for deterministic planning.
func (s *MemoryStore) Clients(ctx context.Context) ([]model.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ClientByID(ctx context.Context, id string) (*model.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *MemoryStore) UpdateClient(ctx context.Context, c model.Client) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[c.ID]; !ok {
		return ErrNotFound
	}
	s.clients[c.ID] = c
	return nil
}

// AddClient inserts or replaces a client record.
func (s *MemoryStore) AddClient(c model.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
}
