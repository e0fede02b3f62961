package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"societyos.org/internal/audit"
	"societyos.org/internal/auth"
	"societyos.org/internal/ids"
	"societyos.org/internal/obs"
	"societyos.org/internal/society"
	"societyos.org/internal/stream"
)

// ChargeRequest carries the caller-supplied fields of a new charge.
type ChargeRequest struct {
	Title       string
	IssueDate   time.Time
	DueDate     time.Time
	Amount      int64
	Description string
	CreatedBy   string
}

// Service is the billing ledger and settlement query engine. One
// manager-issued charge fans out into per-member obligations; settlement
// queries join the two back together.
type Service struct {
	store  Store
	users  auth.Store
	roster *society.Service
	events *stream.Stream
	now    func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithEvents publishes charge and settlement events to the given stream.
func WithEvents(s *stream.Stream) Option {
	return func(svc *Service) { svc.events = s }
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(svc *Service) {
		if fn != nil {
			svc.now = fn
		}
	}
}

// NewService constructs the billing ledger.
func NewService(store Store, users auth.Store, roster *society.Service, opts ...Option) *Service {
	svc := &Service{store: store, users: users, roster: roster, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) validate(req ChargeRequest) error {
	if strings.TrimSpace(req.Title) == "" ||
		strings.TrimSpace(req.Description) == "" ||
		strings.TrimSpace(req.CreatedBy) == "" ||
		req.IssueDate.IsZero() || req.DueDate.IsZero() {
		return fmt.Errorf("%w: all fields are required", ErrInvalidInput)
	}
	if req.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// CreateCharge persists a charge scoped to the creating manager's society and
// fans out one pending obligation per current roster member.
//
// The fan-out is idempotent: each obligation is keyed on (charge, member), so
// a retry after partial failure fills the gaps without duplicating rows. A
// fan-out that still leaves members uncovered returns the created charge
// together with ErrFanoutIncomplete - the charge exists and must be
// reconciled, not re-created.
func (s *Service) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	manager, err := s.users.Find(ctx, req.CreatedBy)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if manager.SocietyID == "" {
		return nil, ErrNotFound
	}
	members, err := s.roster.Members(ctx, manager.SocietyID)
	if err != nil {
		return nil, err
	}

	charge := &Charge{
		ID:          ids.New(),
		SocietyID:   manager.SocietyID,
		Title:       strings.TrimSpace(req.Title),
		IssueDate:   req.IssueDate,
		DueDate:     req.DueDate,
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   manager.ID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateCharge(ctx, charge); err != nil {
		return nil, err
	}

	created, err := s.fanOut(ctx, charge, members)
	obs.ObserveFanout(created, err == nil)
	if err != nil {
		_ = audit.LogEvent(ctx, "billing.fanout.incomplete", map[string]any{
			"charge_id":  charge.ID,
			"society_id": charge.SocietyID,
			"members":    len(members),
			"written":    created,
			"error":      err.Error(),
		})
		return charge, fmt.Errorf("%w: %d of %d obligations written", ErrFanoutIncomplete, created, len(members))
	}

	_ = audit.LogEvent(ctx, "billing.charge.create", map[string]any{
		"charge_id":   charge.ID,
		"society_id":  charge.SocietyID,
		"amount":      charge.Amount,
		"obligations": len(members),
	})
	if s.events != nil {
		s.events.Publish(stream.Event{
			Kind:        stream.KindChargeCreated,
			SocietyID:   charge.SocietyID,
			ChargeID:    charge.ID,
			Amount:      charge.Amount,
			Obligations: len(members),
		})
	}
	return charge, nil
}

// fanOut writes one pending obligation per member, reporting how many inserts
// were attempted successfully.
func (s *Service) fanOut(ctx context.Context, charge *Charge, members []string) (int, error) {
	for i, memberID := range members {
		o := &Obligation{
			ID:       ids.New(),
			ChargeID: charge.ID,
			MemberID: memberID,
			Status:   StatusPending,
		}
		if err := s.store.EnsureObligation(ctx, o); err != nil {
			return i, err
		}
	}
	return len(members), nil
}

// ReconcileCharge re-runs the idempotent fan-out for an existing charge
// against the society's current roster, filling any gaps a crashed fan-out
// left behind. Members admitted after the charge was issued gain an
// obligation too; existing rows are untouched.
func (s *Service) ReconcileCharge(ctx context.Context, chargeID string) (int, error) {
	charge, err := s.store.FindCharge(ctx, chargeID)
	if err != nil {
		return 0, err
	}
	members, err := s.roster.Members(ctx, charge.SocietyID)
	if err != nil {
		return 0, err
	}
	existing, err := s.store.ObligationsByCharge(ctx, chargeID, "")
	if err != nil {
		return 0, err
	}
	covered := make(map[string]struct{}, len(existing))
	for _, o := range existing {
		covered[o.MemberID] = struct{}{}
	}

	filled := 0
	for _, memberID := range members {
		if _, ok := covered[memberID]; ok {
			continue
		}
		o := &Obligation{
			ID:       ids.New(),
			ChargeID: charge.ID,
			MemberID: memberID,
			Status:   StatusPending,
		}
		if err := s.store.EnsureObligation(ctx, o); err != nil {
			return filled, fmt.Errorf("%w: reconcile stopped after %d rows", ErrFanoutIncomplete, filled)
		}
		filled++
	}
	if filled > 0 {
		_ = audit.LogEvent(ctx, "billing.fanout.reconciled", map[string]any{
			"charge_id": chargeID,
			"filled":    filled,
		})
	}
	return filled, nil
}

// ListChargesForManager returns all charges created by the identity. An empty
// slice, not an error, when there are none.
func (s *Service) ListChargesForManager(ctx context.Context, managerID string) ([]Charge, error) {
	if strings.TrimSpace(managerID) == "" {
		return nil, fmt.Errorf("%w: managerId is required", ErrInvalidInput)
	}
	charges, err := s.store.ChargesByCreator(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if charges == nil {
		charges = []Charge{}
	}
	return charges, nil
}

// ObligationsForMember returns the member's flattened settlement view, most
// recent obligation first. An empty slice, not an error, when there are none.
func (s *Service) ObligationsForMember(ctx context.Context, memberID string) ([]MemberSettlement, error) {
	if strings.TrimSpace(memberID) == "" {
		return nil, fmt.Errorf("%w: memberId is required", ErrInvalidInput)
	}
	rows, err := s.store.ObligationsByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []MemberSettlement{}
	}
	return rows, nil
}

// Obligation returns one obligation by id.
func (s *Service) Obligation(ctx context.Context, id string) (*Obligation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: obligation id is required", ErrInvalidInput)
	}
	return s.store.FindObligation(ctx, id)
}

// MarkPaid settles an obligation: pending -> paid with the paid amount,
// settlement time and optional external payment reference. Settling an
// already-paid obligation fails with ErrAlreadyPaid; there is no reversal.
func (s *Service) MarkPaid(ctx context.Context, obligationID string, amountPaid int64, externalRef string) (*Obligation, error) {
	if strings.TrimSpace(obligationID) == "" {
		return nil, fmt.Errorf("%w: obligationId is required", ErrInvalidInput)
	}
	if amountPaid <= 0 {
		return nil, ErrInvalidAmount
	}
	o, err := s.store.SettleObligation(ctx, obligationID, amountPaid, strings.TrimSpace(externalRef))
	if err != nil {
		return nil, err
	}

	_ = audit.LogEvent(ctx, "billing.obligation.paid", map[string]any{
		"obligation_id": o.ID,
		"charge_id":     o.ChargeID,
		"member_id":     o.MemberID,
		"amount_paid":   o.AmountPaid,
	})
	if s.events != nil {
		charge, ferr := s.store.FindCharge(ctx, o.ChargeID)
		societyID := ""
		if ferr == nil {
			societyID = charge.SocietyID
		}
		s.events.Publish(stream.Event{
			Kind:      stream.KindObligationPaid,
			SocietyID: societyID,
			ChargeID:  o.ChargeID,
			MemberID:  o.MemberID,
			Amount:    o.AmountPaid,
		})
	}
	return o, nil
}

// PaidMembers returns the settled obligations of a charge, the manager-facing
// reconciliation view.
func (s *Service) PaidMembers(ctx context.Context, chargeID string) ([]Obligation, error) {
	if strings.TrimSpace(chargeID) == "" {
		return nil, fmt.Errorf("%w: chargeId is required", ErrInvalidInput)
	}
	rows, err := s.store.ObligationsByCharge(ctx, chargeID, StatusPaid)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []Obligation{}
	}
	return rows, nil
}
