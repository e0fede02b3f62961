package society

import (
	"context"
	"fmt"
	"strings"

	"societyos.org/internal/audit"
	"societyos.org/internal/auth"
	"societyos.org/internal/ids"
)

// Service is the membership registry. Society creation spans three writes
// (manager identity, society, backpatch); the store cannot make that atomic
// across both subsystems, so the service runs it as a saga with compensating
// deletes on partial failure.
type Service struct {
	store      Store
	identities *auth.Service
	users      auth.Store
}

// NewService constructs the membership registry.
func NewService(store Store, identities *auth.Service, users auth.Store) *Service {
	return &Service{store: store, identities: identities, users: users}
}

func validateProfile(p Profile) error {
	if strings.TrimSpace(p.Name) == "" ||
		strings.TrimSpace(p.Address) == "" ||
		strings.TrimSpace(p.City) == "" ||
		strings.TrimSpace(p.State) == "" ||
		strings.TrimSpace(p.PinCode) == "" {
		return fmt.Errorf("%w: all society fields are required", ErrInvalidInput)
	}
	return nil
}

// CreateSocietyWithManager creates the manager identity (role=admin), the
// society referencing it, and backpatches the manager with the society id.
// A failure after the first write rolls back what was written.
func (s *Service) CreateSocietyWithManager(ctx context.Context, manager auth.Profile, p Profile) (*Society, *auth.User, error) {
	if err := validateProfile(p); err != nil {
		return nil, nil, err
	}
	manager.Role = auth.RoleAdmin
	mgr, err := s.identities.Register(ctx, manager)
	if err != nil {
		return nil, nil, err
	}

	soc := &Society{
		ID:        ids.New(),
		Name:      strings.TrimSpace(p.Name),
		Address:   strings.TrimSpace(p.Address),
		City:      strings.TrimSpace(p.City),
		State:     strings.TrimSpace(p.State),
		PinCode:   strings.TrimSpace(p.PinCode),
		ManagerID: mgr.ID,
	}
	if err := s.store.Create(ctx, soc); err != nil {
		s.compensate(ctx, "society.create", func() error { return s.users.Delete(ctx, mgr.ID) })
		return nil, nil, err
	}
	if err := s.users.SetSociety(ctx, mgr.ID, soc.ID); err != nil {
		s.compensate(ctx, "society.backpatch", func() error { return s.store.Delete(ctx, soc.ID) })
		s.compensate(ctx, "society.backpatch", func() error { return s.users.Delete(ctx, mgr.ID) })
		return nil, nil, err
	}
	mgr.SocietyID = soc.ID

	_ = audit.LogEvent(ctx, "society.create", map[string]any{
		"society_id": soc.ID,
		"manager_id": mgr.ID,
		"city":       soc.City,
	})
	return soc, mgr, nil
}

// AddMember registers a new member identity and appends it to the roster with
// one atomic insert. Concurrent admissions to the same society cannot lose
// each other.
func (s *Service) AddMember(ctx context.Context, societyID string, member auth.Profile) (*auth.User, error) {
	if strings.TrimSpace(societyID) == "" {
		return nil, fmt.Errorf("%w: societyId is required", ErrInvalidInput)
	}
	if _, err := s.store.Find(ctx, societyID); err != nil {
		return nil, err
	}

	member.Role = auth.RoleMember
	u, err := s.identities.Register(ctx, member)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetSociety(ctx, u.ID, societyID); err != nil {
		s.compensate(ctx, "society.member.add", func() error { return s.users.Delete(ctx, u.ID) })
		return nil, err
	}
	if err := s.store.AddMember(ctx, societyID, u.ID); err != nil {
		s.compensate(ctx, "society.member.add", func() error { return s.users.Delete(ctx, u.ID) })
		return nil, err
	}
	u.SocietyID = societyID

	_ = audit.LogEvent(ctx, "society.member.add", map[string]any{
		"society_id": societyID,
		"member_id":  u.ID,
	})
	return u, nil
}

// Find returns a society by id.
func (s *Service) Find(ctx context.Context, id string) (*Society, error) {
	return s.store.Find(ctx, id)
}

// Members returns the current roster snapshot.
func (s *Service) Members(ctx context.Context, societyID string) ([]string, error) {
	return s.store.Members(ctx, societyID)
}

// compensate runs a rollback step. A failed rollback is logged for manual
// reconciliation; the original error still propagates to the caller.
func (s *Service) compensate(ctx context.Context, op string, fn func() error) {
	if err := fn(); err != nil {
		_ = audit.LogEvent(ctx, "society.compensation.failed", map[string]any{
			"operation": op,
			"error":     err.Error(),
		})
	}
}
