package billing

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store with in-process concurrency safety.
type MemoryStore struct {
	mu          sync.RWMutex
	charges     map[string]*Charge
	obligations map[string]*Obligation
	// fan-out key (chargeID, memberID) -> obligation id
	pairs map[[2]string]string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		charges:     make(map[string]*Charge),
		obligations: make(map[string]*Obligation),
		pairs:       make(map[[2]string]string),
	}
}

func (s *MemoryStore) CreateCharge(ctx context.Context, c *Charge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	cp := *c
	s.charges[c.ID] = &cp
	return nil
}

func (s *MemoryStore) FindCharge(ctx context.Context, id string) (*Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.charges[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) ChargesByCreator(ctx context.Context, creatorID string) ([]Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Charge
	for _, c := range s.charges {
		if c.CreatedBy == creatorID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *MemoryStore) EnsureObligation(ctx context.Context, o *Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{o.ChargeID, o.MemberID}
	if _, exists := s.pairs[key]; exists {
		return nil
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	cp := *o
	s.obligations[o.ID] = &cp
	s.pairs[key] = o.ID
	return nil
}

func (s *MemoryStore) FindObligation(ctx context.Context, id string) (*Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.obligations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) ObligationsByMember(ctx context.Context, memberID string) ([]MemberSettlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []*Obligation
	for _, o := range s.obligations {
		if o.MemberID == memberID {
			rows = append(rows, o)
		}
	}
	// Most recent first. ULIDs sort by creation time, so the id is a stable
	// tiebreaker for rows created within the same instant.
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID > rows[j].ID
	})

	out := make([]MemberSettlement, 0, len(rows))
	for _, o := range rows {
		c, ok := s.charges[o.ChargeID]
		if !ok {
			continue
		}
		out = append(out, MemberSettlement{
			ObligationID: o.ID,
			ChargeID:     c.ID,
			Title:        c.Title,
			Amount:       c.Amount,
			DueDate:      c.DueDate,
			IssueDate:    c.IssueDate,
			Description:  c.Description,
			Status:       o.Status,
			PaidAt:       o.PaidAt,
			AmountPaid:   o.AmountPaid,
		})
	}
	return out, nil
}

func (s *MemoryStore) ObligationsByCharge(ctx context.Context, chargeID string, status ObligationStatus) ([]Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.charges[chargeID]; !ok {
		return nil, ErrNotFound
	}
	var out []Obligation
	for _, o := range s.obligations {
		if o.ChargeID != chargeID {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SettleObligation(ctx context.Context, id string, amountPaid int64, externalRef string) (*Obligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.obligations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Status != StatusPending {
		return nil, ErrAlreadyPaid
	}
	now := time.Now().UTC()
	o.Status = StatusPaid
	o.AmountPaid = amountPaid
	o.PaidAt = &now
	o.ExternalPaymentRef = externalRef
	cp := *o
	return &cp, nil
}
