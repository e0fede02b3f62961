package society

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with in-process concurrency safety.
type MemoryStore struct {
	mu        sync.RWMutex
	societies map[string]*Society
	rosters   map[string][]string
	present   map[string]map[string]struct{}
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		societies: make(map[string]*Society),
		rosters:   make(map[string][]string),
		present:   make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Create(ctx context.Context, soc *Society) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if soc.CreatedAt.IsZero() {
		soc.CreatedAt = time.Now().UTC()
	}
	cp := *soc
	s.societies[soc.ID] = &cp
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, id string) (*Society, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	soc, ok := s.societies[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *soc
	return &cp, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.societies[id]; !ok {
		return ErrNotFound
	}
	delete(s.societies, id)
	delete(s.rosters, id)
	delete(s.present, id)
	return nil
}

func (s *MemoryStore) AddMember(ctx context.Context, societyID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.societies[societyID]; !ok {
		return ErrNotFound
	}
	set, ok := s.present[societyID]
	if !ok {
		set = make(map[string]struct{})
		s.present[societyID] = set
	}
	if _, dup := set[userID]; dup {
		return nil
	}
	set[userID] = struct{}{}
	s.rosters[societyID] = append(s.rosters[societyID], userID)
	return nil
}

func (s *MemoryStore) Members(ctx context.Context, societyID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.societies[societyID]; !ok {
		return nil, ErrNotFound
	}
	roster := s.rosters[societyID]
	out := make([]string, len(roster))
	copy(out, roster)
	return out, nil
}
