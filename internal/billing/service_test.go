package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"societyos.org/internal/auth"
	"societyos.org/internal/society"
	"societyos.org/internal/stream"
)

type fixture struct {
	billing *Service
	store   Store
	users   auth.Store
	roster  *society.Service
	manager *auth.User
	soc     *society.Society
	members []*auth.User
}

// newFixture provisions a society with the given number of members and a
// billing service on top of it.
func newFixture(t *testing.T, memberCount int, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	users := auth.NewMemoryStore()
	identities, err := auth.NewService(users, auth.WithSecret("test-secret"))
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}
	roster := society.NewService(society.NewMemoryStore(), identities, users)

	soc, mgr, err := roster.CreateSocietyWithManager(ctx,
		auth.Profile{Name: "Mgr", Phone: "9000000100", Email: "mgr@example.com", Password: "pw"},
		society.Profile{Name: "Green Acres", Address: "12 Lake Road", City: "Pune", State: "MH", PinCode: "411001"},
	)
	if err != nil {
		t.Fatalf("CreateSocietyWithManager: %v", err)
	}

	f := &fixture{
		store:   NewMemoryStore(),
		users:   users,
		roster:  roster,
		manager: mgr,
		soc:     soc,
	}
	for i := 0; i < memberCount; i++ {
		phone := "900000020" + string(rune('0'+i))
		m, err := roster.AddMember(ctx, soc.ID, auth.Profile{
			Name: "Member", Phone: phone, Email: phone + "@example.com", Password: "pw",
		})
		if err != nil {
			t.Fatalf("AddMember: %v", err)
		}
		f.members = append(f.members, m)
	}
	f.billing = NewService(f.store, users, roster, opts...)
	return f
}

func chargeRequest(createdBy string) ChargeRequest {
	now := time.Now().UTC()
	return ChargeRequest{
		Title:       "Monthly maintenance",
		IssueDate:   now,
		DueDate:     now.Add(30 * 24 * time.Hour),
		Amount:      500,
		Description: "Maintenance for June",
		CreatedBy:   createdBy,
	}
}

func TestCreateChargeFanOutCompleteness(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	charge, err := f.billing.CreateCharge(ctx, chargeRequest(f.manager.ID))
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}
	if charge.SocietyID != f.soc.ID {
		t.Fatalf("charge scoped to wrong society: %s", charge.SocietyID)
	}

	rows, err := f.store.ObligationsByCharge(ctx, charge.ID, "")
	if err != nil {
		t.Fatalf("ObligationsByCharge: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("fan-out wrote %d obligations, want 3", len(rows))
	}
	seen := make(map[string]bool)
	for _, o := range rows {
		if o.Status != StatusPending {
			t.Fatalf("obligation %s status = %q, want pending", o.ID, o.Status)
		}
		if seen[o.MemberID] {
			t.Fatalf("duplicate obligation for member %s", o.MemberID)
		}
		seen[o.MemberID] = true
	}
	for _, m := range f.members {
		if !seen[m.ID] {
			t.Fatalf("member %s has no obligation", m.ID)
		}
	}
}

func TestCreateChargeValidation(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	req := chargeRequest(f.manager.ID)
	req.Title = "  "
	if _, err := f.billing.CreateCharge(ctx, req); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank title: got %v", err)
	}

	req = chargeRequest(f.manager.ID)
	req.Amount = 0
	if _, err := f.billing.CreateCharge(ctx, req); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v", err)
	}
	req.Amount = -500
	if _, err := f.billing.CreateCharge(ctx, req); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative amount: got %v", err)
	}

	if _, err := f.billing.CreateCharge(ctx, chargeRequest("no-such-user")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown manager: got %v", err)
	}

	// An identity without a society cannot issue charges.
	orphan := &auth.User{ID: "orphan", Name: "O", Phone: "1", Email: "o@x", PasswordHash: "h", Role: auth.RoleAdmin}
	if err := f.users.Create(ctx, orphan); err != nil {
		t.Fatalf("Create orphan: %v", err)
	}
	if _, err := f.billing.CreateCharge(ctx, chargeRequest("orphan")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("manager without society: got %v", err)
	}
}

// flakyStore fails EnsureObligation after a set number of inserts, simulating
// a crash mid fan-out.
type flakyStore struct {
	Store
	failAfter int
	inserts   int
}

func (s *flakyStore) EnsureObligation(ctx context.Context, o *Obligation) error {
	if s.inserts >= s.failAfter {
		return errors.New("storage rejected write")
	}
	s.inserts++
	return s.Store.EnsureObligation(ctx, o)
}

func TestCreateChargePartialFanOutThenReconcile(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	flaky := &flakyStore{Store: f.store, failAfter: 1}
	svc := NewService(flaky, f.users, f.roster)

	charge, err := svc.CreateCharge(ctx, chargeRequest(f.manager.ID))
	if !errors.Is(err, ErrFanoutIncomplete) {
		t.Fatalf("expected ErrFanoutIncomplete, got %v", err)
	}
	if charge == nil {
		t.Fatalf("charge must be returned for reconciliation")
	}
	partial, _ := f.store.ObligationsByCharge(ctx, charge.ID, "")
	if len(partial) != 1 {
		t.Fatalf("expected 1 obligation before reconcile, got %d", len(partial))
	}

	// Retry through the healthy store: fills gaps, duplicates nothing.
	filled, err := f.billing.ReconcileCharge(ctx, charge.ID)
	if err != nil {
		t.Fatalf("ReconcileCharge: %v", err)
	}
	if filled != 2 {
		t.Fatalf("reconcile filled %d rows, want 2", filled)
	}
	rows, _ := f.store.ObligationsByCharge(ctx, charge.ID, "")
	if len(rows) != 3 {
		t.Fatalf("expected 3 obligations after reconcile, got %d", len(rows))
	}

	// Reconciling a complete charge is a no-op.
	filled, err = f.billing.ReconcileCharge(ctx, charge.ID)
	if err != nil || filled != 0 {
		t.Fatalf("second reconcile: filled=%d err=%v", filled, err)
	}
}

// brokenUserStore fails every identity lookup with a storage error.
type brokenUserStore struct {
	auth.Store
	err error
}

func (s *brokenUserStore) Find(ctx context.Context, id string) (*auth.User, error) {
	return nil, s.err
}

func TestCreateChargeStorageErrorNotMaskedAsNotFound(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	storeErr := errors.New("connection reset")
	broken := NewService(f.store, &brokenUserStore{Store: f.users, err: storeErr}, f.roster)

	_, err := broken.CreateCharge(ctx, chargeRequest(f.manager.ID))
	if errors.Is(err, ErrNotFound) {
		t.Fatal("storage failure must not report as a missing manager")
	}
	if !errors.Is(err, storeErr) {
		t.Fatalf("err = %v, want the storage error", err)
	}

	// A genuinely unknown manager still maps to ErrNotFound.
	if _, err := f.billing.CreateCharge(ctx, chargeRequest("no-such-manager")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown manager err = %v, want ErrNotFound", err)
	}
}

func TestListChargesForManager(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	charges, err := f.billing.ListChargesForManager(ctx, f.manager.ID)
	if err != nil {
		t.Fatalf("ListChargesForManager: %v", err)
	}
	if len(charges) != 0 {
		t.Fatalf("expected empty list, got %d", len(charges))
	}

	if _, err := f.billing.CreateCharge(ctx, chargeRequest(f.manager.ID)); err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}
	charges, err = f.billing.ListChargesForManager(ctx, f.manager.ID)
	if err != nil || len(charges) != 1 {
		t.Fatalf("expected 1 charge, got %d (err=%v)", len(charges), err)
	}
}

func TestObligationsForMemberOrdering(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	member := f.members[0]

	first, err := f.billing.CreateCharge(ctx, chargeRequest(f.manager.ID))
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}
	req := chargeRequest(f.manager.ID)
	req.Title = "Water tank repair"
	req.Amount = 1200
	second, err := f.billing.CreateCharge(ctx, req)
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}

	view, err := f.billing.ObligationsForMember(ctx, member.ID)
	if err != nil {
		t.Fatalf("ObligationsForMember: %v", err)
	}
	if len(view) != 2 {
		t.Fatalf("expected 2 settlements, got %d", len(view))
	}
	// Most recent obligation first.
	if view[0].ChargeID != second.ID || view[1].ChargeID != first.ID {
		t.Fatalf("wrong order: %s then %s", view[0].ChargeID, view[1].ChargeID)
	}
	if view[0].Title != "Water tank repair" || view[0].Amount != 1200 {
		t.Fatalf("flattened view lost charge fields: %+v", view[0])
	}
	if view[0].Status != StatusPending {
		t.Fatalf("fresh obligation must be pending")
	}
}

func TestObligationsForMemberEmpty(t *testing.T) {
	f := newFixture(t, 1)
	view, err := f.billing.ObligationsForMember(context.Background(), "stranger")
	if err != nil {
		t.Fatalf("ObligationsForMember: %v", err)
	}
	if len(view) != 0 {
		t.Fatalf("expected empty view, got %d", len(view))
	}
	if _, err := f.billing.ObligationsForMember(context.Background(), "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank member id: got %v", err)
	}
}

func TestMarkPaid(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	charge, err := f.billing.CreateCharge(ctx, chargeRequest(f.manager.ID))
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}
	rows, _ := f.store.ObligationsByCharge(ctx, charge.ID, "")
	obligation := rows[0]

	paid, err := f.billing.MarkPaid(ctx, obligation.ID, 500, "pay_ref_123")
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if paid.Status != StatusPaid || paid.AmountPaid != 500 || paid.PaidAt == nil {
		t.Fatalf("settlement not recorded: %+v", paid)
	}
	if paid.ExternalPaymentRef != "pay_ref_123" {
		t.Fatalf("external ref lost: %q", paid.ExternalPaymentRef)
	}

	// No reversal and no double settlement.
	if _, err := f.billing.MarkPaid(ctx, obligation.ID, 500, ""); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("double settle: expected ErrAlreadyPaid, got %v", err)
	}
	if _, err := f.billing.MarkPaid(ctx, "missing", 500, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown obligation: got %v", err)
	}
	if _, err := f.billing.MarkPaid(ctx, obligation.ID, 0, ""); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v", err)
	}

	settled, err := f.billing.PaidMembers(ctx, charge.ID)
	if err != nil {
		t.Fatalf("PaidMembers: %v", err)
	}
	if len(settled) != 1 || settled[0].MemberID != obligation.MemberID {
		t.Fatalf("unexpected paid members: %+v", settled)
	}
}

func TestChargeEventsPublished(t *testing.T) {
	events := stream.New()
	f := newFixture(t, 2, WithEvents(events))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := events.Subscribe(ctx)

	charge, err := f.billing.CreateCharge(ctx, chargeRequest(f.manager.ID))
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}

	select {
	case ev := <-sub:
		if ev.Kind != stream.KindChargeCreated || ev.ChargeID != charge.ID || ev.Obligations != 2 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no charge event published")
	}
}
